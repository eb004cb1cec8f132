package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/galaxyguard/warden/automod/action"
	"github.com/galaxyguard/warden/automod/config"
	"github.com/galaxyguard/warden/automod/countstore"
	"github.com/galaxyguard/warden/automod/historystore"
	"github.com/galaxyguard/warden/automod/messagestore"
	"github.com/galaxyguard/warden/automod/moderr"
	"github.com/galaxyguard/warden/automod/oracle"
	"github.com/galaxyguard/warden/automod/scoring"
	"github.com/galaxyguard/warden/automod/setstore"
	"github.com/galaxyguard/warden/automod/settingsstore"
	"github.com/galaxyguard/warden/automod/strikes"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("warden/engine")

type Policy string

const (
	// adjusted severity, six-step action ladder, escalation from strike history
	PolicyTiered Policy = "tiered"
	// max and normalized cumulative score against the five-step ladders
	PolicyCumulative Policy = "cumulative"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(s)) {
	case PolicyTiered, "":
		return PolicyTiered, nil
	case PolicyCumulative:
		return PolicyCumulative, nil
	}
	return "", fmt.Errorf("unknown scoring policy: %q", s)
}

// Runtime for moderating messages: calls the oracle, applies the decision pipeline, and records infractions.
//
// Config, Oracle, and History are required. The remaining stores are optional and disable the features which use
// them when nil.
type Engine struct {
	Logger *slog.Logger
	// global thresholds; per-user overrides from Settings are merged on top
	Config   config.Config
	Policy   Policy
	Oracle   oracle.Oracle
	History  historystore.HistoryStore
	Settings settingsstore.SettingsStore
	// channel activity counters, for the high-activity modifier
	Counters countstore.CountStore
	// includes the sensitive channel list
	Sets     setstore.SetStore
	Notifier Notifier
	// captured chat messages; message capture is unavailable when nil
	Messages messagestore.MessageStore
	// clock, for tests
	Now func() time.Time
}

func (eng *Engine) now() time.Time {
	if eng.Now == nil {
		return time.Now().UTC()
	}
	return eng.Now().UTC()
}

func (eng *Engine) policy() Policy {
	if eng.Policy == "" {
		return PolicyTiered
	}
	return eng.Policy
}

func (eng *Engine) logger() *slog.Logger {
	if eng.Logger == nil {
		return slog.Default()
	}
	return eng.Logger
}

// Infractions are recorded for every action which does something. Review is only recorded when configured.
func loggable(a action.Action, cfg config.Config) bool {
	switch a {
	case action.Allow:
		return false
	case action.Review:
		return cfg.LogReview
	}
	return true
}

func enforcementDuration(a action.Action, cfg config.Config) config.Window {
	switch a {
	case action.Mute:
		return cfg.Durations.Mute
	case action.TempBan:
		return cfg.Durations.TempBan
	}
	return 0
}

// Effective config for a user: the global config with their override (if any) applied.
func (eng *Engine) configFor(ctx context.Context, userID string) (config.Config, error) {
	if eng.Settings == nil {
		return eng.Config, nil
	}
	o, err := eng.Settings.Get(ctx, userID)
	if err != nil {
		return config.Config{}, moderr.Dependency("engine.settings", err)
	}
	return eng.Config.WithOverride(o)
}

// Moderates one message: scores it with the oracle, decides on an action (escalated by the user's recent history
// under the tiered policy), and records an infraction when the action calls for one.
//
// The oracle is called exactly once. When it fails, the error is returned; there is no fallback to "allow".
func (eng *Engine) Evaluate(ctx context.Context, content string, mctx scoring.Context, userID string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "Evaluate", trace.WithAttributes(
		attribute.String("policy", string(eng.policy())),
		attribute.String("channel", mctx.ChannelID),
	))
	defer span.End()

	start := time.Now()
	res, err := eng.evaluate(ctx, content, mctx, userID)
	evaluationDuration.WithLabelValues(string(eng.policy())).Observe(time.Since(start).Seconds())
	if err != nil {
		evaluationErrors.WithLabelValues(moderr.KindOf(err).String()).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	evaluationCount.WithLabelValues(string(res.Policy), res.Action.String()).Inc()
	if res.Escalated {
		escalationCount.WithLabelValues(res.BaseAction.String(), res.Action.String()).Inc()
	}
	span.SetAttributes(attribute.String("action", res.Action.String()), attribute.Float64("severity", res.AdjustedSeverity))
	return res, nil
}

func (eng *Engine) evaluate(ctx context.Context, content string, mctx scoring.Context, userID string) (*Result, error) {
	op := "engine.evaluate"
	if strings.TrimSpace(content) == "" {
		return nil, moderr.Validation(op, "content is empty")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, moderr.Validation(op, "user id is empty")
	}
	if eng.Oracle == nil || eng.History == nil {
		return nil, moderr.Configuration(op, "engine requires an oracle and a history store")
	}
	logger := eng.logger().With("user", userID, "channel", mctx.ChannelID)

	cfg, err := eng.configFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	ores, err := eng.classify(ctx, content)
	if err != nil {
		return nil, err
	}
	analysis, summary, err := scoring.Analyze(cfg, ores.Scores)
	if err != nil {
		return nil, err
	}

	hist, err := eng.getOrCreateHistory(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := eng.now()
	decay := cfg.Strikes.Decay.Duration()
	ledger := strikes.NewLedger(hist, now, decay)

	mctx = eng.resolveContext(ctx, logger, cfg, mctx, userID)
	signals := scoring.Signals{
		TrustScore:   hist.TrustScore,
		IsNewUser:    ledger.IsNewUser(cfg.Modifiers.NewUserWindow.Duration()),
		StrikeWeight: ledger.DecayedWeight(),
	}
	adj := scoring.NewAdjuster(cfg).AdjustDetail(analysis.HighestSeverity, mctx, signals)

	res := &Result{
		Policy:           eng.policy(),
		UserID:           userID,
		Context:          mctx,
		Scores:           ores.Scores,
		Analysis:         analysis,
		Summary:          summary,
		Severity:         analysis.HighestSeverity,
		AdjustedSeverity: adj.Severity,
		Modifiers:        adj.Applied,
		StrikeWeight:     signals.StrikeWeight,
		Logger:           logger,
	}
	category := analysis.FlaggedCategory
	switch res.Policy {
	case PolicyCumulative:
		act := action.NewCumulativePolicy(cfg).Decide(summary)
		res.BaseAction, res.Action = act, act
		category = summary.MaxCategory
	default:
		dec := action.NewResolver(cfg).Resolve(adj.Severity, ledger)
		res.BaseAction, res.Action, res.Escalated = dec.Base, dec.Action, dec.Escalated
	}
	res.Duration = enforcementDuration(res.Action, cfg)

	if loggable(res.Action, cfg) {
		inf := strikes.Infraction{
			ID:        uuid.NewString(),
			Type:      res.Action,
			Category:  category,
			Severity:  res.Severity,
			Timestamp: now,
			Content:   content,
			Context:   mctx,
			DecayAt:   now.Add(decay),
		}
		updated, err := eng.History.AppendInfraction(ctx, userID, inf)
		if err != nil {
			return nil, moderr.Dependency("engine.history", fmt.Errorf("recording infraction: %w", err))
		}
		res.Infraction = findInfraction(updated, inf)
		infractionCount.WithLabelValues(res.Action.String(), category).Inc()
	}

	eng.notify(ctx, res)
	res.CanonicalLogLine()
	return res, nil
}

func (eng *Engine) classify(ctx context.Context, content string) (*oracle.Result, error) {
	ctx, span := tracer.Start(ctx, "Classify")
	defer span.End()

	start := time.Now()
	ores, err := eng.Oracle.Classify(ctx, content)
	oracleDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if moderr.KindOf(err) == moderr.KindUnknown {
			err = moderr.Dependency("engine.oracle", err)
		}
		return nil, err
	}
	if ores == nil {
		return nil, moderr.Malformed("engine.oracle", "oracle returned no result")
	}
	// an empty map is a real "nothing scored"; a missing one is not
	if ores.Scores == nil {
		return nil, moderr.Malformed("engine.oracle", "oracle result has no scores")
	}
	return ores, nil
}

// Histories are created lazily, on a user's first moderated message.
func (eng *Engine) getOrCreateHistory(ctx context.Context, userID string) (*strikes.History, error) {
	hist, err := eng.History.Get(ctx, userID)
	if err != nil {
		return nil, moderr.Dependency("engine.history", err)
	}
	if hist != nil {
		return hist, nil
	}
	hist, err = eng.History.Create(ctx, userID)
	if err != nil {
		return nil, moderr.Dependency("engine.history", err)
	}
	return hist, nil
}

// the stored copy may differ from what was submitted (eg, clamped timestamp)
func findInfraction(h *strikes.History, inf strikes.Infraction) *strikes.Infraction {
	if h != nil {
		for i := len(h.Infractions) - 1; i >= 0; i-- {
			if h.Infractions[i].ID == inf.ID {
				out := h.Infractions[i]
				return &out
			}
		}
	}
	return &inf
}

// Stateless evaluation of a score map against the cumulative ladders of the global config. Scores are used as given
// (sub-categories are not folded).
func (eng *Engine) EvaluateScores(scores scoring.ScoreMap) CumulativeResult {
	return evaluateScores(eng.Config, scores)
}

// Like EvaluateScores, but with the user's threshold override applied.
func (eng *Engine) EvaluateScoresFor(ctx context.Context, userID string, scores scoring.ScoreMap) (CumulativeResult, error) {
	if strings.TrimSpace(userID) == "" {
		return eng.EvaluateScores(scores), nil
	}
	cfg, err := eng.configFor(ctx, userID)
	if err != nil {
		return CumulativeResult{}, err
	}
	return evaluateScores(cfg, scores), nil
}

func evaluateScores(cfg config.Config, scores scoring.ScoreMap) CumulativeResult {
	sum := scoring.Extract(scores)
	return CumulativeResult{
		Action:          action.NewCumulativePolicy(cfg).Decide(sum),
		HighestSeverity: sum.MaxScore,
		HighestCategory: sum.MaxCategory,
		CumulativeScore: sum.NormalizedCumulativeScore,
	}
}
