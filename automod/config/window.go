package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// A time window, written in config files as whole days ("7d"). Go duration strings ("36h") are accepted as well.
type Window time.Duration

// Parses "<integer>d" (eg, "30d"), falling back to time.ParseDuration syntax.
func ParseWindow(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty window")
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid window %q: %w", s, err)
		}
		if n < 0 {
			return 0, fmt.Errorf("invalid window %q: negative", s)
		}
		return time.Duration(n) * day, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid window %q: %w", s, err)
	}
	return d, nil
}

func (w Window) Duration() time.Duration {
	return time.Duration(w)
}

func (w Window) String() string {
	d := time.Duration(w)
	if d > 0 && d%day == 0 {
		return fmt.Sprintf("%dd", d/day)
	}
	return d.String()
}

func (w *Window) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	d, err := ParseWindow(s)
	if err != nil {
		return err
	}
	*w = Window(d)
	return nil
}

func (w Window) MarshalYAML() (any, error) {
	return w.String(), nil
}

func (w *Window) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	d, err := ParseWindow(s)
	if err != nil {
		return err
	}
	*w = Window(d)
	return nil
}

func (w Window) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.String())
}
