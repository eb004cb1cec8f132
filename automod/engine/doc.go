// The moderation orchestrator: ties the oracle, the decision pipeline (scoring, strikes, action), and the stores
// together.
//
// A typical evaluation looks like:
//
//	res, err := eng.Evaluate(ctx, "message text", scoring.Context{ChannelID: "general"}, "user123")
//
// and res.Action is what the caller should enforce. Infractions are recorded by the engine itself.
package engine
