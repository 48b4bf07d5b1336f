package types

import (
	"strings"

	"github.com/andresmejia3/moodlens/internal/emotion"
)

// ExpressionResult matches the JSON structure returned by the HTTP expression service
type ExpressionResult struct {
	Face        bool               `json:"face"`
	Expressions map[string]float64 `json:"expressions"` // label -> probability
}

// Scores converts the raw map into typed scores. Labels outside the enum are dropped.
func (r ExpressionResult) Scores() emotion.Scores {
	if !r.Face {
		return nil
	}
	out := make(emotion.Scores, len(r.Expressions))
	for name, v := range r.Expressions {
		l := emotion.Label(strings.ToLower(strings.TrimSpace(name)))
		if l.Valid() {
			out[l] = v
		}
	}
	return out
}

// ErrorResult captures the error object returned by the service on failure
type ErrorResult struct {
	Error string `json:"error"`
}
