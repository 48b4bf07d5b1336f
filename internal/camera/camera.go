// Package camera turns an ffmpeg capture process into a monitor.FrameSource
// that always exposes the most recent complete JPEG.
package camera

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/andresmejia3/moodlens/internal/monitor"
	"github.com/andresmejia3/moodlens/internal/utils"
	"go.uber.org/zap"
)

const megabyte = 1024 * 1024

// DefaultStartupWait is how long Acquire waits for the first frame.
const DefaultStartupWait = 3 * time.Second

// FFmpeg acquires frame sources by spawning ffmpeg.
type FFmpeg struct {
	args   utils.CaptureArgs
	logger *zap.Logger
	// StartupWait bounds the wait for a first frame. A capture that exits in
	// this time fails Acquire; a slow device is handed over as is.
	StartupWait time.Duration
}

// NewFFmpeg returns a camera for the given capture settings.
func NewFFmpeg(args utils.CaptureArgs, logger *zap.Logger) *FFmpeg {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFmpeg{args: args, logger: logger, StartupWait: DefaultStartupWait}
}

// Acquire starts ffmpeg and returns a Stream reading from it.
func (f *FFmpeg) Acquire(ctx context.Context) (monitor.FrameSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	if strings.HasPrefix(f.args.Device, "/dev/") {
		if _, err := os.Stat(f.args.Device); err != nil {
			return nil, fmt.Errorf("camera device %s: %w", f.args.Device, err)
		}
	}

	ffmpeg := utils.NewCaptureCmd(f.args)
	out, err := ffmpeg.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := ffmpeg.Start(); err != nil {
		out.Close()
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	f.logger.Info("capture started", zap.String("device", f.args.Device), zap.Int("pid", ffmpeg.Process.Pid))
	s := newStream(out, ffmpeg, f.logger)

	if err := s.awaitFirstFrame(ctx, f.StartupWait); err != nil {
		s.Close()
		if msg := strings.TrimSpace(ffmpeg.Stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return s, nil
}

// Stream holds the latest frame read from an MJPEG byte stream.
type Stream struct {
	cmd    *utils.SafeCommand
	out    io.ReadCloser
	logger *zap.Logger

	mu     sync.RWMutex
	latest []byte
	frames int

	ready     chan struct{} // closed on the first frame
	done      chan struct{}
	err       error
	closeOnce sync.Once
	closeErr  error
}

// NewStream starts consuming r in the background.
func NewStream(r io.ReadCloser, logger *zap.Logger) *Stream {
	return newStream(r, nil, logger)
}

func newStream(r io.ReadCloser, cmd *utils.SafeCommand, logger *zap.Logger) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Stream{
		cmd:    cmd,
		out:    r,
		logger: logger,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.consume()
	return s
}

func (s *Stream) consume() {
	defer close(s.done)
	defer func() {
		// A dead stream must not keep serving its last frame.
		s.mu.Lock()
		s.latest = nil
		s.mu.Unlock()
	}()
	defer func() {
		if r := recover(); r != nil {
			s.err = fmt.Errorf("frame reader panicked: %v", r)
			s.logger.Error("frame reader panicked", zap.Any("panic", r))
		}
	}()

	scanner := bufio.NewScanner(s.out)
	scanner.Buffer(make([]byte, megabyte), 64*megabyte)
	scanner.Split(utils.SplitJpeg)

	for scanner.Scan() {
		// Each frame gets its own buffer so readers can hold on to a snapshot.
		frame := make([]byte, len(scanner.Bytes()))
		copy(frame, scanner.Bytes())

		s.mu.Lock()
		s.latest = frame
		s.frames++
		if s.frames == 1 {
			close(s.ready)
		}
		s.mu.Unlock()
	}
	s.err = scanner.Err()
	if s.err != nil && !errors.Is(s.err, os.ErrClosed) {
		s.logger.Warn("frame reader stopped", zap.Error(s.err))
	}
}

// ErrCaptureEnded reports a capture that stopped producing frames on its own.
var ErrCaptureEnded = errors.New("capture ended")

// awaitFirstFrame returns once a frame arrived, the wait ran out, or the
// stream ended early.
func (s *Stream) awaitFirstFrame(ctx context.Context, wait time.Duration) error {
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-s.ready:
		return nil
	case <-s.done:
		if s.err != nil {
			return fmt.Errorf("%w before the first frame: %v", ErrCaptureEnded, s.err)
		}
		return fmt.Errorf("%w before the first frame", ErrCaptureEnded)
	case <-timer.C:
		s.logger.Warn("no frame yet, continuing", zap.Duration("waited", wait))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Frame returns the most recent complete JPEG.
func (s *Stream) Frame() ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil, false
	}
	return s.latest, true
}

// Frames is the number of frames decoded so far.
func (s *Stream) Frames() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frames
}

// Done is closed once the underlying stream ends.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Err reports why the stream ended. It blocks until Done is closed and
// returns ErrCaptureEnded for a clean end of input.
func (s *Stream) Err() error {
	<-s.done
	if s.err != nil {
		return s.err
	}
	return ErrCaptureEnded
}

// Close stops ffmpeg and releases the pipe. It is safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		if s.cmd != nil && s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		// Closing the read end unblocks the scanner.
		s.out.Close()
		<-s.done

		s.mu.Lock()
		s.latest = nil
		s.mu.Unlock()

		if s.cmd != nil {
			// Wait reports the kill we just issued; only surface real failures.
			if err := s.cmd.Wait(); err != nil {
				var exitErr *exec.ExitError
				if !errors.As(err, &exitErr) {
					s.closeErr = err
				}
				if s.cmd.Stderr.Len() > 0 {
					s.logger.Debug("ffmpeg output", zap.String("stderr", s.cmd.Stderr.String()))
				}
			}
		}
	})
	return s.closeErr
}
