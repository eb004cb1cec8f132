// Enforcement actions, and the policies which map severity scores to them.
package action

import (
	"fmt"
)

// Enforcement action. Values are ordered by severity, so actions can be compared directly.
//
// Two ladders share this type: the graduated ladder (allow, review, warn, mute, temp_ban, perm_ban) and the
// max/cumulative ladder (allow, warn, delete, mute, ban). Comparisons across ladders are well-defined but rarely
// meaningful.
type Action int

const (
	Allow Action = iota
	Review
	Warn
	Delete
	Mute
	TempBan
	Ban
	PermBan
)

var actionNames = map[Action]string{
	Allow:   "allow",
	Review:  "review",
	Warn:    "warn",
	Delete:  "delete",
	Mute:    "mute",
	TempBan: "temp_ban",
	Ban:     "ban",
	PermBan: "perm_ban",
}

func (a Action) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}
	return fmt.Sprintf("action(%d)", int(a))
}

func Parse(s string) (Action, error) {
	for a, name := range actionNames {
		if name == s {
			return a, nil
		}
	}
	switch s {
	case "needs_review":
		return Review, nil
	case "tempBan":
		return TempBan, nil
	case "permBan":
		return PermBan, nil
	}
	return Allow, fmt.Errorf("unknown moderation action: %q", s)
}

func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Whether the action restricts the user at all (anything beyond allow and review).
func (a Action) IsPunitive() bool {
	return a > Review
}
