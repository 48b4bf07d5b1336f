// Package display renders controller output for a terminal or as JSON lines.
package display

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/andresmejia3/moodlens/internal/monitor"
	"github.com/andresmejia3/moodlens/internal/suggest"
	"github.com/schollz/progressbar/v3"
)

var kindIcons = map[monitor.Kind]string{
	monitor.KindStarting:          "🎥",
	monitor.KindAnalyzing:         "🔍",
	monitor.KindDominant:          "🎭",
	monitor.KindStopped:           "⏹️ ",
	monitor.KindCameraUnavailable: "❌",
	monitor.KindUnexpected:        "💥",
}

// Terminal draws window progress as a bar and everything else as status lines.
// Last write wins: a new status replaces the bar description.
type Terminal struct {
	mu  sync.Mutex
	out io.Writer

	bar        *progressbar.ProgressBar
	barMax     int
	lastSample int
}

func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out}
}

// Status implements monitor.StatusSink.
func (t *Terminal) Status(s monitor.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s.PerTick() && s.Window > 0 {
		t.tick(s)
		return
	}

	t.closeBar()
	icon, ok := kindIcons[s.Kind]
	if !ok {
		icon = "ℹ️ "
	}
	fmt.Fprintf(t.out, "%s %s\n", icon, s)
}

func (t *Terminal) tick(s monitor.Status) {
	// A sample at or below the last one means a new window started.
	if t.bar == nil || t.barMax != s.Window || s.Sample <= t.lastSample {
		t.closeBar()
		t.bar = progressbar.NewOptions(s.Window,
			progressbar.OptionSetDescription(describe(s)),
			progressbar.OptionSetWriter(t.out),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(20),
		)
		t.barMax = s.Window
	}
	t.bar.Describe(describe(s))
	t.bar.Set(s.Sample)
	t.lastSample = s.Sample
}

func describe(s monitor.Status) string {
	switch s.Kind {
	case monitor.KindCurrent:
		return "😶 " + s.String()
	case monitor.KindNoFace:
		return "👀 " + s.String()
	default:
		return "⚠️  " + s.String()
	}
}

func (t *Terminal) closeBar() {
	if t.bar == nil {
		return
	}
	fmt.Fprintln(t.out)
	t.bar = nil
	t.barMax = 0
	t.lastSample = 0
}

// ShowSuggestions implements monitor.SuggestionSink.
func (t *Terminal) ShowSuggestions(p suggest.Payload) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeBar()

	var b strings.Builder
	fmt.Fprintf(&b, "\n╭─ Feeling %s? Try these:\n", p.Emotion)
	if p.Fallback {
		fmt.Fprintf(&b, "│  (nothing saved for %s yet, here are some neutral picks)\n", p.Emotion)
	}
	for _, e := range p.Entries {
		fmt.Fprintf(&b, "│  • %s\n", e.Description)
		if e.Description != e.URL {
			fmt.Fprintf(&b, "│    %s\n", e.URL)
		}
	}
	b.WriteString("╰─\n")
	io.WriteString(t.out, b.String())
}

// ClearSuggestions implements monitor.SuggestionSink.
func (t *Terminal) ClearSuggestions() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeBar()
	fmt.Fprintln(t.out, "🧹 Suggestions cleared")
}
