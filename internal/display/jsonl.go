package display

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/andresmejia3/moodlens/internal/monitor"
	"github.com/andresmejia3/moodlens/internal/suggest"
)

// Event is one JSON line.
type Event struct {
	Type        string           `json:"type"` // status | suggestions | clear
	At          time.Time        `json:"at"`
	Status      *monitor.Status  `json:"status,omitempty"`
	Suggestions *suggest.Payload `json:"suggestions,omitempty"`
}

// JSONLines writes one Event per line, for piping into other tools.
type JSONLines struct {
	mu  sync.Mutex
	enc *json.Encoder
	now func() time.Time
}

func NewJSONLines(out io.Writer) *JSONLines {
	return &JSONLines{enc: json.NewEncoder(out), now: time.Now}
}

func (j *JSONLines) write(ev Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	ev.At = j.now().UTC()
	// Encoding errors mean stdout is gone; nothing useful left to do.
	_ = j.enc.Encode(ev)
}

func (j *JSONLines) Status(s monitor.Status) {
	j.write(Event{Type: "status", Status: &s})
}

func (j *JSONLines) ShowSuggestions(p suggest.Payload) {
	j.write(Event{Type: "suggestions", Suggestions: &p})
}

func (j *JSONLines) ClearSuggestions() {
	j.write(Event{Type: "clear"})
}
