// Automated moderation decisions for chat messages.
//
// This package (`github.com/galaxyguard/warden/automod`) turns per-category risk scores from an external
// classification service (the "oracle") in to an enforcement action: allow, review, warn, delete, mute, temporary
// ban, ban, or permanent ban. Scores are adjusted for the situation a message was sent in (sensitive channel, high
// activity) and for who sent it (trusted, new, repeat offender). Under the tiered policy, actions escalate when a
// user keeps offending within a window. Every punitive decision is recorded as an infraction in the user's history,
// and infractions decay over time.
//
// The work is split across sub-packages:
//
//   - `scoring`: category score extraction, severity tiers, and context adjustment
//   - `action`: the action ladder, escalation, and the stateless cumulative policy
//   - `strikes`: infraction history and strike weight calculations
//   - `config`: thresholds, windows, and per-user overrides
//   - `oracle`: the classification service client
//   - `engine`: the orchestrator tying these together
//   - `historystore`, `settingsstore`, `countstore`, `setstore`, `cachestore`: pluggable state backends
//
// See `cmd/warden` for an HTTP daemon built on this package.
package automod
