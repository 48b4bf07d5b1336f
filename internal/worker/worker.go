package worker

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"time"

	"github.com/andresmejia3/moodlens/internal/emotion"
	"github.com/andresmejia3/moodlens/internal/utils" // Using the SafeCommand wrapper
	"go.uber.org/zap"
)

const (
	statusOK    = 0
	statusError = 1
)

// MaxResponseSize bounds one reply. Real replies are a few dozen bytes.
const MaxResponseSize = 64 * 1024

// ErrBroken is returned when the reply stream lost sync and the worker
// cannot be restarted.
var ErrBroken = errors.New("worker reply stream is out of sync")

// Config controls how the Python expression worker is launched.
type Config struct {
	Python      string        // interpreter, defaults to python3
	Script      string        // worker script, defaults to python/expression_worker.py
	ReadTimeout time.Duration // per-frame response deadline, zero disables it
	Logger      *zap.Logger
}

// ExpressionWorker is a long-lived Python process that scores facial expressions.
// Models are loaded once at process start; frames are streamed over stdin and
// results come back on a dedicated pipe (FD 3).
type ExpressionWorker struct {
	ID          int
	Cmd         *utils.SafeCommand
	Stdin       io.WriteCloser
	DataPipe    io.ReadCloser
	ReadTimeout time.Duration

	cfg    Config
	logger *zap.Logger

	mu sync.Mutex
	// broken is set once a request went unanswered. Its reply may still be in
	// flight, so nothing on DataPipe can be trusted until the process is replaced.
	broken bool
	// spawn replaces the process; nil disables restarts.
	spawn func() error
}

// NewExpressionWorker spawns the worker process.
func NewExpressionWorker(ctx context.Context, id int, cfg Config) (*ExpressionWorker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Python == "" {
		cfg.Python = "python3"
	}
	if cfg.Script == "" {
		cfg.Script = "python/expression_worker.py"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	w := &ExpressionWorker{
		ID:          id,
		ReadTimeout: cfg.ReadTimeout,
		cfg:         cfg,
		logger:      cfg.Logger.With(zap.Int("worker", id)),
	}
	w.spawn = w.start
	if err := w.start(); err != nil {
		return nil, err
	}
	return w, nil
}

// start launches a fresh process and swaps it in.
func (w *ExpressionWorker) start() error {
	// 1. Initialize the SafeCommand
	py := utils.NewSafeCommand(w.cfg.Python, "-u", w.cfg.Script)

	// Create a side-channel pipe (FD 3) for clean data transfer
	r, pw, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("failed to create pipe: %w", err)
	}
	// Pass the write-end to the child process. It will appear as FD 3.
	py.Cmd.ExtraFiles = []*os.File{pw}

	stdin, err := py.StdinPipe()
	if err != nil {
		pw.Close() // Prevent FD leak
		r.Close()  // Close read-end too!
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := py.Start(); err != nil {
		pw.Close() // Close write end if start fails
		r.Close()  // Close read-end too!
		return fmt.Errorf("worker %d failed to start: %w", w.ID, err)
	}

	// Close the write-end in the parent so only the child holds it
	pw.Close()

	w.Cmd = py
	w.Stdin = stdin
	w.DataPipe = r
	w.broken = false
	w.log().Info("worker started", zap.Int("pid", py.Process.Pid), zap.String("script", w.cfg.Script))
	return nil
}

// Detection is the decoded worker answer for one frame.
type Detection struct {
	Face   bool
	Scores emotion.Scores
}

// ProcessFrame sends one JPEG and decodes the reply.
//
// Request:  [Length u32][JPEG]
// Response: [Length u32][Status u8] then
//
//	OK:    [Face u8] and, when Face == 1, one float32 per label in emotion.Labels order
//	Error: [MsgLen u32][Msg]
//
// Any transport failure leaves the worker broken; the next call restarts it.
func (w *ExpressionWorker) ProcessFrame(data []byte) (Detection, error) {
	if w.broken {
		if err := w.restart(); err != nil {
			return Detection{}, err
		}
	}
	resp, err := w.communicate(data)
	if err != nil {
		w.broken = true
		return Detection{}, err
	}
	return decodeDetection(resp)
}

// Classify implements monitor.Classifier. Calls are serialized because the
// worker handles one frame at a time.
func (w *ExpressionWorker) Classify(ctx context.Context, frame []byte) (emotion.Scores, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	det, err := w.ProcessFrame(frame)
	if err != nil {
		return nil, false, err
	}
	return det.Scores, det.Face, nil
}

func (w *ExpressionWorker) restart() error {
	if w.spawn == nil {
		return fmt.Errorf("worker %d: %w", w.ID, ErrBroken)
	}
	w.log().Warn("restarting worker after a lost reply")
	w.shutdown(true)
	if err := w.spawn(); err != nil {
		return fmt.Errorf("worker %d restart failed: %w", w.ID, err)
	}
	return nil
}

func (w *ExpressionWorker) communicate(data []byte) ([]byte, error) {
	// Protocol: [Length][Data]
	if err := binary.Write(w.Stdin, binary.BigEndian, uint32(len(data))); err != nil {
		return nil, err
	}
	if _, err := w.Stdin.Write(data); err != nil {
		return nil, err
	}

	if d, ok := w.DataPipe.(interface{ SetReadDeadline(time.Time) error }); ok && w.ReadTimeout > 0 {
		if err := d.SetReadDeadline(time.Now().Add(w.ReadTimeout)); err == nil {
			defer d.SetReadDeadline(time.Time{})
		}
	}

	// Read Result
	header := make([]byte, 4)
	if _, err := io.ReadFull(w.DataPipe, header); err != nil {
		return nil, w.readErr(err)
	}

	respLen := binary.BigEndian.Uint32(header)
	if respLen > MaxResponseSize {
		return nil, fmt.Errorf("worker %d reply of %d bytes exceeds %d", w.ID, respLen, MaxResponseSize)
	}
	respBody := make([]byte, respLen)
	if _, err := io.ReadFull(w.DataPipe, respBody); err != nil {
		return nil, w.readErr(err)
	}
	return respBody, nil
}

func (w *ExpressionWorker) readErr(err error) error {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		w.log().Warn("worker reply timed out", zap.Duration("timeout", w.ReadTimeout))
		return fmt.Errorf("worker %d timed out after %s", w.ID, w.ReadTimeout)
	}
	return err // This is where we catch a worker that died on import
}

func (w *ExpressionWorker) log() *zap.Logger {
	if w.logger == nil {
		return zap.NewNop()
	}
	return w.logger
}

func decodeDetection(resp []byte) (Detection, error) {
	r := bytes.NewReader(resp)

	status, err := r.ReadByte()
	if err != nil {
		return Detection{}, fmt.Errorf("empty worker response")
	}

	if status == statusError {
		var msgLen uint32
		if err := binary.Read(r, binary.BigEndian, &msgLen); err != nil {
			return Detection{}, fmt.Errorf("malformed worker error: %w", err)
		}
		if int64(msgLen) > int64(r.Len()) {
			return Detection{}, fmt.Errorf("malformed worker error: message length %d exceeds reply", msgLen)
		}
		msg := make([]byte, msgLen)
		if _, err := io.ReadFull(r, msg); err != nil {
			return Detection{}, fmt.Errorf("malformed worker error: %w", err)
		}
		return Detection{}, fmt.Errorf("python worker error: %s", msg)
	}
	if status != statusOK {
		return Detection{}, fmt.Errorf("unknown worker status %d", status)
	}

	face, err := r.ReadByte()
	if err != nil {
		return Detection{}, fmt.Errorf("malformed worker response: %w", err)
	}
	if face == 0 {
		return Detection{}, nil
	}

	raw := make([]float32, len(emotion.Labels))
	if err := binary.Read(r, binary.BigEndian, raw); err != nil {
		return Detection{}, fmt.Errorf("malformed expression scores: %w", err)
	}
	scores := make(emotion.Scores, len(raw))
	for i, v := range raw {
		if math.IsNaN(float64(v)) {
			continue
		}
		scores[emotion.Labels[i]] = float64(v)
	}
	return Detection{Face: true, Scores: scores}, nil
}

// shutdown closes the pipes and reaps the process. kill is used when the
// worker may be stuck mid-frame and would never see stdin close.
func (w *ExpressionWorker) shutdown(kill bool) {
	if w.Stdin != nil {
		w.Stdin.Close()
	}
	if w.DataPipe != nil {
		w.DataPipe.Close()
	}
	if w.Cmd == nil {
		return
	}
	if kill && w.Cmd.Process != nil {
		_ = w.Cmd.Process.Kill()
	}
	if err := w.Cmd.Wait(); err != nil {
		w.log().Debug("worker exited", zap.Error(err), zap.String("stderr", w.Cmd.Stderr.String()))
	} else {
		w.log().Debug("worker exited")
	}
}

// Close shuts the worker down and reaps the process.
func (w *ExpressionWorker) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.shutdown(w.broken)
}
