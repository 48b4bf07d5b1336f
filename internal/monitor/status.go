package monitor

import (
	"fmt"

	"github.com/andresmejia3/moodlens/internal/emotion"
	"github.com/andresmejia3/moodlens/internal/suggest"
)

// Kind identifies a status update.
type Kind int

const (
	KindStarting Kind = iota
	KindAnalyzing
	KindCurrent
	KindNoFace
	KindDominant
	KindStopped
	KindCameraUnavailable
	KindDetectionError
	KindUnexpected
)

var kindNames = map[Kind]string{
	KindStarting:          "starting",
	KindAnalyzing:         "analyzing",
	KindCurrent:           "current",
	KindNoFace:            "no_face",
	KindDominant:          "dominant",
	KindStopped:           "stopped",
	KindCameraUnavailable: "camera_unavailable",
	KindDetectionError:    "detection_error",
	KindUnexpected:        "unexpected",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText lets Kind render as its name in JSON.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Status replaces whatever status was displayed before it.
type Status struct {
	Kind          Kind          `json:"kind"`
	Label         emotion.Label `json:"label,omitempty"`
	ConfidencePct float64       `json:"confidence_pct,omitempty"`
	Message       string        `json:"message,omitempty"`
	// Sample is the tick position inside the current window (1..Window) for
	// per-tick statuses, zero otherwise.
	Sample int `json:"sample,omitempty"`
	Window int `json:"window,omitempty"`
}

// PerTick reports whether the status was produced by a sampling tick.
func (s Status) PerTick() bool {
	switch s.Kind {
	case KindCurrent, KindNoFace, KindDetectionError:
		return true
	}
	return false
}

func (s Status) String() string {
	switch s.Kind {
	case KindStarting:
		return "Starting..."
	case KindAnalyzing:
		return "Analyzing emotions..."
	case KindCurrent:
		return fmt.Sprintf("Current: %s (%.1f%%)", s.Label, s.ConfidencePct)
	case KindNoFace:
		return "No face detected"
	case KindDominant:
		return fmt.Sprintf("Detected emotion: %s", s.Label)
	case KindStopped:
		return "Emotion detection stopped"
	case KindCameraUnavailable:
		return "Camera unavailable: " + s.Message
	case KindDetectionError:
		return "Detection error: " + s.Message
	case KindUnexpected:
		return "Unexpected error: " + s.Message
	}
	return s.Kind.String()
}

// StatusSink receives status updates. Implementations must not call back into
// the Controller.
type StatusSink interface {
	Status(Status)
}

// SuggestionSink receives suggestion payloads and the clear signal sent on stop.
type SuggestionSink interface {
	ShowSuggestions(suggest.Payload)
	ClearSuggestions()
}
