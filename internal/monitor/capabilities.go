package monitor

import (
	"context"
	"time"

	"github.com/andresmejia3/moodlens/internal/emotion"
)

// FrameSource yields the most recent video frame.
type FrameSource interface {
	// Frame returns the current frame, or false if none is available yet.
	Frame() ([]byte, bool)
	// Close releases the underlying device.
	Close() error
}

// EndingSource is implemented by frame sources that can stop on their own,
// such as a capture process that exits. Err blocks until Done is closed.
type EndingSource interface {
	Done() <-chan struct{}
	Err() error
}

// Camera acquires frame sources.
type Camera interface {
	Acquire(ctx context.Context) (FrameSource, error)
}

// Classifier scores the facial expression in a frame.
// found is false when no face was detected; that is not an error.
type Classifier interface {
	Classify(ctx context.Context, frame []byte) (scores emotion.Scores, found bool, err error)
}

// Ticker is the subset of time.Ticker the sampling loop needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}
