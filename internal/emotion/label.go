// Package emotion holds the expression labels and the windowed majority vote
// that turns per-frame classifications into a dominant emotion.
package emotion

import (
	"fmt"
	"math"
	"strings"
)

// Label is one facial expression class.
type Label string

const (
	Happy     Label = "happy"
	Sad       Label = "sad"
	Angry     Label = "angry"
	Fearful   Label = "fearful"
	Disgusted Label = "disgusted"
	Surprised Label = "surprised"
	Neutral   Label = "neutral"
)

// Labels lists every label in enum order. Arg-max ties resolve to the earliest entry.
var Labels = []Label{Happy, Sad, Angry, Fearful, Disgusted, Surprised, Neutral}

// Valid reports whether l is a member of the enum.
func (l Label) Valid() bool {
	for _, known := range Labels {
		if l == known {
			return true
		}
	}
	return false
}

// ParseLabel converts free text ("Happy", " sad ") into a Label.
func ParseLabel(s string) (Label, error) {
	l := Label(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("unknown emotion %q", s)
	}
	return l, nil
}

// Scores maps each label to a classifier confidence in [0,1].
type Scores map[Label]float64

// Top returns the highest scoring label. ok is false when no known label is present.
func (s Scores) Top() (label Label, score float64, ok bool) {
	for _, l := range Labels {
		v, present := s[l]
		if !present {
			continue
		}
		// Strictly greater keeps the earliest label on ties.
		if !ok || v > score {
			label, score, ok = l, v, true
		}
	}
	return label, score, ok
}

// ConfidencePct renders a [0,1] score as a percentage rounded to one decimal.
func ConfidencePct(score float64) float64 {
	return math.Round(score*1000) / 10
}

// Dominant returns the most frequent label in history. Among labels sharing the
// maximum count, the one that appeared first wins. ok is false for an empty history.
func Dominant(history []Label) (Label, bool) {
	if len(history) == 0 {
		return "", false
	}
	counts := make(map[Label]int, len(Labels))
	maxCount := 0
	for _, l := range history {
		counts[l]++
		if counts[l] > maxCount {
			maxCount = counts[l]
		}
	}
	for _, l := range history {
		if counts[l] == maxCount {
			return l, true
		}
	}
	return "", false
}
