package scoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

type CategoryScore struct {
	Category string
	Score    float64
}

// Per-category scores as reported by the classification oracle, in the order the oracle reported them.
//
// This is a slice rather than a map because the order matters: when two categories share the highest score, the one
// seen first wins. JSON encoding and decoding preserve document order.
type ScoreMap []CategoryScore

// Builds a ScoreMap from a plain map, ordered by category name (Go maps have no order of their own).
func ScoreMapFromMap(m map[string]float64) ScoreMap {
	out := make(ScoreMap, 0, len(m))
	for k, v := range m {
		out = append(out, CategoryScore{Category: k, Score: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

func (m ScoreMap) Get(category string) (float64, bool) {
	for _, cs := range m {
		if cs.Category == category {
			return cs.Score, true
		}
	}
	return 0, false
}

// Parent category of an oracle sub-category: "hate/threatening" -> "hate". Plain categories are returned as-is.
func ParentCategory(category string) string {
	parent, _, _ := strings.Cut(category, "/")
	return parent
}

// Collapses sub-categories in to their parent category, keeping the highest score. Each parent keeps the position
// where it (or one of its sub-categories) was first seen.
func (m ScoreMap) Fold() ScoreMap {
	out := make(ScoreMap, 0, len(m))
	idx := make(map[string]int, len(m))
	for _, cs := range m {
		p := ParentCategory(cs.Category)
		if i, ok := idx[p]; ok {
			if cs.Score > out[i].Score {
				out[i].Score = cs.Score
			}
			continue
		}
		idx[p] = len(out)
		out = append(out, CategoryScore{Category: p, Score: cs.Score})
	}
	return out
}

func (m *ScoreMap) UnmarshalJSON(b []byte) error {
	if !gjson.ValidBytes(b) {
		return fmt.Errorf("invalid JSON for category scores")
	}
	res := gjson.ParseBytes(b)
	if res.Type == gjson.Null {
		*m = nil
		return nil
	}
	if !res.IsObject() {
		return fmt.Errorf("category scores must be a JSON object")
	}
	out := ScoreMap{}
	var err error
	res.ForEach(func(key, val gjson.Result) bool {
		if val.Type != gjson.Number {
			err = fmt.Errorf("score for category %q is not a number", key.String())
			return false
		}
		out = append(out, CategoryScore{Category: key.String(), Score: val.Float()})
		return true
	})
	if err != nil {
		return err
	}
	*m = out
	return nil
}

func (m ScoreMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, cs := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(cs.Category)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(cs.Score)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
