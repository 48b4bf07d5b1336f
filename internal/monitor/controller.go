// Package monitor drives the sampling loop: it pulls frames on a fixed period,
// classifies them, aggregates labels over a window and publishes the dominant
// emotion together with suggestions for it.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/andresmejia3/moodlens/internal/emotion"
	"github.com/andresmejia3/moodlens/internal/suggest"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultPeriod     = 500 * time.Millisecond
	DefaultWindowSize = 20
)

// ErrCameraUnavailable wraps every frame source acquisition failure.
var ErrCameraUnavailable = errors.New("camera unavailable")

// Config holds the sampling parameters.
type Config struct {
	Period     time.Duration
	WindowSize int
}

func (c Config) withDefaults() Config {
	if c.Period <= 0 {
		c.Period = DefaultPeriod
	}
	if c.WindowSize < 1 {
		c.WindowSize = DefaultWindowSize
	}
	return c
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the diagnostic logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTicker replaces the ticker factory, mainly for tests.
func WithTicker(f func(time.Duration) Ticker) Option {
	return func(c *Controller) {
		if f != nil {
			c.newTicker = f
		}
	}
}

// session is everything owned by one Start..Stop cycle.
type session struct {
	id     string
	gen    uint64
	parent context.Context
	cancel context.CancelFunc
	ticker Ticker
	source FrameSource
	window *emotion.Window
}

// Controller owns at most one sampling session at a time.
type Controller struct {
	cfg         Config
	camera      Camera
	classifier  Classifier
	engine      *suggest.Engine
	status      StatusSink
	suggestions SuggestionSink
	logger      *zap.Logger
	newTicker   func(time.Duration) Ticker

	mu   sync.Mutex
	gen  uint64
	sess *session
	wg   sync.WaitGroup
}

// New returns an idle Controller.
func New(cfg Config, camera Camera, classifier Classifier, engine *suggest.Engine, status StatusSink, suggestions SuggestionSink, opts ...Option) *Controller {
	c := &Controller{
		cfg:         cfg.withDefaults(),
		camera:      camera,
		classifier:  classifier,
		engine:      engine,
		status:      status,
		suggestions: suggestions,
		logger:      zap.NewNop(),
		newTicker:   newTimeTicker,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the effective sampling parameters.
func (c *Controller) Config() Config { return c.cfg }

// Start begins a new session. Any running session is torn down first, so at
// most one timer is ever active. ctx bounds the session and every
// classification it issues.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.endSessionLocked()
	c.status.Status(Status{Kind: KindStarting})

	src, err := c.camera.Acquire(ctx)
	if err != nil {
		c.logger.Warn("frame source acquisition failed", zap.Error(err))
		c.status.Status(Status{Kind: KindCameraUnavailable, Message: err.Error()})
		return fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}

	c.gen++
	runCtx, cancel := context.WithCancel(ctx)
	s := &session{
		id:     uuid.NewString(),
		gen:    c.gen,
		parent: ctx,
		cancel: cancel,
		ticker: c.newTicker(c.cfg.Period),
		source: src,
		window: emotion.NewWindow(c.cfg.WindowSize),
	}
	c.sess = s

	c.wg.Add(1)
	go c.run(runCtx, s)

	c.logger.Info("session started",
		zap.String("session", s.id),
		zap.Uint64("generation", s.gen),
		zap.Duration("period", c.cfg.Period),
		zap.Int("window", c.cfg.WindowSize))
	c.status.Status(Status{Kind: KindAnalyzing})
	return nil
}

// Stop ends the running session, if any, and resets the displayed state.
// It never waits for an in-flight classification; a result that arrives later
// is discarded.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.endSessionLocked()
	c.status.Status(Status{Kind: KindStopped})
	c.suggestions.ClearSuggestions()
}

// Running reports whether a session is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess != nil
}

// Wait blocks until every session loop has exited. Call it after Stop.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) endSessionLocked() {
	s := c.sess
	if s == nil {
		return
	}
	c.sess = nil
	s.ticker.Stop()
	s.cancel()
	s.window.Reset()
	if err := s.source.Close(); err != nil {
		c.logger.Warn("failed to release frame source", zap.String("session", s.id), zap.Error(err))
	}
	c.logger.Info("session ended", zap.String("session", s.id), zap.Uint64("generation", s.gen))
}

// current reports whether s is still the live session.
func (c *Controller) current(s *session) bool {
	return c.sess != nil && c.sess.gen == s.gen
}

func (c *Controller) run(ctx context.Context, s *session) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.ticker.C():
			if ctx.Err() != nil {
				return
			}
			c.tick(s)
		}
	}
}

// tick runs one sample. Panics are reported and swallowed so the loop survives.
func (c *Controller) tick(s *session) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("tick panicked", zap.String("session", s.id), zap.Any("panic", r))
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.current(s) {
				c.status.Status(Status{Kind: KindUnexpected, Message: fmt.Sprint(r)})
			}
		}
	}()

	c.mu.Lock()
	live := c.current(s)
	c.mu.Unlock()
	if !live {
		return
	}

	if ended, err := sourceEnded(s.source); ended {
		c.lose(s, err)
		return
	}

	frame, ok := s.source.Frame()
	if !ok {
		return
	}

	scores, found, err := c.classifier.Classify(s.parent, frame)
	c.apply(s, scores, found, err)
}

func sourceEnded(src FrameSource) (bool, error) {
	es, ok := src.(EndingSource)
	if !ok {
		return false, nil
	}
	select {
	case <-es.Done():
		return true, es.Err()
	default:
		return false, nil
	}
}

// lose ends a session whose frame source died underneath it.
func (c *Controller) lose(s *session, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.current(s) {
		return
	}
	msg := "capture ended"
	if err != nil {
		msg = err.Error()
	}
	c.logger.Warn("frame source ended", zap.String("session", s.id), zap.Error(err))
	c.endSessionLocked()
	c.status.Status(Status{Kind: KindCameraUnavailable, Message: msg})
}

// apply folds one classification into the session window.
func (c *Controller) apply(s *session, scores emotion.Scores, found bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.current(s) {
		c.logger.Debug("discarding late classification", zap.String("session", s.id), zap.Uint64("generation", s.gen))
		return
	}

	w := s.window
	switch {
	case err != nil:
		w.Miss()
		c.logger.Warn("classification failed", zap.String("session", s.id), zap.Error(err))
		c.status.Status(Status{Kind: KindDetectionError, Message: err.Error(), Sample: w.Ticks(), Window: w.Size()})
	case !found:
		w.Miss()
		c.status.Status(Status{Kind: KindNoFace, Sample: w.Ticks(), Window: w.Size()})
	default:
		label, score, ok := scores.Top()
		if !ok {
			w.Miss()
			c.logger.Debug("classifier returned no known labels", zap.String("session", s.id))
			c.status.Status(Status{Kind: KindNoFace, Sample: w.Ticks(), Window: w.Size()})
			break
		}
		w.Record(label)
		c.status.Status(Status{
			Kind:          KindCurrent,
			Label:         label,
			ConfidencePct: emotion.ConfidencePct(score),
			Sample:        w.Ticks(),
			Window:        w.Size(),
		})
	}

	if !w.Full() {
		return
	}

	samples := w.Len()
	dominant, ok := w.Close()
	if !ok {
		c.logger.Debug("window closed without samples", zap.String("session", s.id))
		return
	}
	c.logger.Info("window closed",
		zap.String("session", s.id),
		zap.String("dominant", string(dominant)),
		zap.Int("samples", samples))
	c.status.Status(Status{Kind: KindDominant, Label: dominant})
	c.suggestions.ShowSuggestions(c.engine.Suggest(dominant))
}
