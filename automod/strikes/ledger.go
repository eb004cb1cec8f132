// Infraction history for users, and the strike calculations over it.
//
// A History is append-only: infractions are never edited, and old ones are never deleted by the engine. Instead
// their weight decays over time, and recent-infraction queries simply filter by timestamp.
package strikes

import (
	"math"
	"time"

	"github.com/galaxyguard/warden/automod/action"
	"github.com/galaxyguard/warden/automod/scoring"
)

// Immutable record of one enforcement action against a user.
type Infraction struct {
	ID        string          `json:"id"`
	Type      action.Action   `json:"type"`
	Category  string          `json:"category"`
	Severity  float64         `json:"severity"`
	Timestamp time.Time       `json:"timestamp"`
	Content   string          `json:"content,omitempty"`
	Context   scoring.Context `json:"context"`
	DecayAt   time.Time       `json:"decayAt"`
}

type History struct {
	UserID string `json:"userId"`
	// chronological (non-decreasing timestamps)
	Infractions      []Infraction `json:"infractions"`
	LastInfractionAt *time.Time   `json:"lastInfractionAt,omitempty"`
	TotalInfractions int          `json:"totalInfractions"`
	CreatedAt        time.Time    `json:"createdAt"`
	TrustScore       float64      `json:"trustScore"`
}

// Copy with its own infraction slice.
func (h *History) Clone() *History {
	if h == nil {
		return nil
	}
	out := *h
	out.Infractions = append([]Infraction(nil), h.Infractions...)
	if h.LastInfractionAt != nil {
		t := *h.LastInfractionAt
		out.LastInfractionAt = &t
	}
	return &out
}

// Read-only strike calculations over a history, evaluated at a fixed point in time. A nil History behaves like an
// empty one.
type Ledger struct {
	History *History
	Now     time.Time
	// time constant for exponential decay
	Decay time.Duration
}

func NewLedger(h *History, now time.Time, decay time.Duration) Ledger {
	return Ledger{History: h, Now: now, Decay: decay}
}

func (l Ledger) infractions() []Infraction {
	if l.History == nil {
		return nil
	}
	return l.History.Infractions
}

// Sum of severity * exp(-age/decay) over all infractions. Older infractions count for less, but never drop out
// entirely. Infractions timestamped in the future count at full severity.
func (l Ledger) DecayedWeight() float64 {
	total := 0.0
	for _, inf := range l.infractions() {
		total += decayed(inf.Severity, l.Now.Sub(inf.Timestamp), l.Decay)
	}
	return total
}

func decayed(severity float64, age, decay time.Duration) float64 {
	if age < 0 {
		age = 0
	}
	if decay <= 0 {
		return severity
	}
	return severity * math.Exp(-float64(age)/float64(decay))
}

// Infractions with timestamp at or after now-window.
func (l Ledger) Recent(window time.Duration) []Infraction {
	cutoff := l.Now.Add(-window)
	var out []Infraction
	for _, inf := range l.infractions() {
		if !inf.Timestamp.Before(cutoff) {
			out = append(out, inf)
		}
	}
	return out
}

// Implements action.StrikeCounter
func (l Ledger) RecentCount(a action.Action, window time.Duration) int {
	n := 0
	for _, inf := range l.Recent(window) {
		if inf.Type == a {
			n++
		}
	}
	return n
}

// Counts of recent infractions, by action type.
func (l Ledger) RecentCounts(window time.Duration) map[action.Action]int {
	out := make(map[action.Action]int)
	for _, inf := range l.Recent(window) {
		out[inf.Type]++
	}
	return out
}

// True if the history has no creation time, or was created within the window.
func (l Ledger) IsNewUser(window time.Duration) bool {
	if l.History == nil || l.History.CreatedAt.IsZero() {
		return true
	}
	return l.Now.Sub(l.History.CreatedAt) < window
}

func (l Ledger) ByAction(a action.Action) []Infraction {
	var out []Infraction
	for _, inf := range l.infractions() {
		if inf.Type == a {
			out = append(out, inf)
		}
	}
	return out
}

// Infractions with minSeverity <= severity <= maxSeverity.
func (l Ledger) BySeverityRange(minSeverity, maxSeverity float64) []Infraction {
	var out []Infraction
	for _, inf := range l.infractions() {
		if inf.Severity >= minSeverity && inf.Severity <= maxSeverity {
			out = append(out, inf)
		}
	}
	return out
}

var _ action.StrikeCounter = Ledger{}
