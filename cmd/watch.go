package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/andresmejia3/moodlens/internal/camera"
	"github.com/andresmejia3/moodlens/internal/clients"
	"github.com/andresmejia3/moodlens/internal/display"
	"github.com/andresmejia3/moodlens/internal/monitor"
	"github.com/andresmejia3/moodlens/internal/suggest"
	"github.com/andresmejia3/moodlens/internal/utils"
	"github.com/andresmejia3/moodlens/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchOpts Options

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the camera and suggest content for the dominant emotion",
	Long: `Samples the camera on a fixed period, classifies each frame and, once a
window of samples is complete, shows suggestions for the dominant emotion.

While running, type a command and press Enter:
  start   begin a new session (refused while one is running)
  stop    end the session and clear suggestions
  quit    stop and exit (Ctrl+C works too)`,
	Run: func(cmd *cobra.Command, args []string) {
		runWatch(cmd.Context(), watchOpts)
	},
}

func init() {
	watchCmd.Flags().StringVarP(&watchOpts.Device, "device", "i", "/dev/video0", "Camera device or video file")
	watchCmd.Flags().StringVar(&watchOpts.Format, "format", "", "ffmpeg input format (v4l2, avfoundation, dshow); empty lets ffmpeg probe")
	watchCmd.Flags().IntVar(&watchOpts.FPS, "fps", 5, "Frames per second decoded from the device")
	watchCmd.Flags().BoolVar(&watchOpts.Realtime, "realtime", false, "Read file inputs at their native rate")
	watchCmd.Flags().StringVarP(&watchOpts.Period, "period", "p", "500ms", "Sampling period")
	watchCmd.Flags().IntVarP(&watchOpts.WindowSize, "window", "w", monitor.DefaultWindowSize, "Samples per aggregation window")
	watchCmd.Flags().StringVarP(&watchOpts.Classifier, "classifier", "c", "python", "Expression classifier: python or http")
	watchCmd.Flags().StringVar(&watchOpts.WorkerScript, "worker-script", "python/expression_worker.py", "Python expression worker script")
	watchCmd.Flags().StringVar(&watchOpts.Python, "python", "python3", "Python interpreter for the worker")
	watchCmd.Flags().StringVar(&watchOpts.ClassifierURL, "classifier-url", "http://localhost:8000", "Base URL of the HTTP expression service")
	watchCmd.Flags().StringVar(&watchOpts.WorkerTimeout, "worker-timeout", "5s", "Per-frame classification timeout")
	watchCmd.Flags().Uint64Var(&watchOpts.Seed, "seed", 0, "Seed for suggestion sampling (0 picks a random seed)")
	watchCmd.Flags().BoolVar(&watchOpts.JSON, "json", false, "Emit JSON lines on stdout instead of the terminal view")

	rootCmd.AddCommand(watchCmd)
}

// validateWatchFlags checks flag values before anything is spawned.
func validateWatchFlags(opts *Options) error {
	if strings.TrimSpace(opts.Device) == "" {
		return fmt.Errorf("device must not be empty")
	}
	period, err := time.ParseDuration(opts.Period)
	if err != nil {
		return fmt.Errorf("invalid period format (use '500ms', '1s'): %w", err)
	}
	if period <= 0 {
		return fmt.Errorf("period must be positive, got %s", period)
	}
	if opts.WindowSize < 1 {
		return fmt.Errorf("window must be >= 1, got %d", opts.WindowSize)
	}
	if opts.FPS < 0 {
		return fmt.Errorf("fps must be >= 0, got %d", opts.FPS)
	}
	timeout, err := time.ParseDuration(opts.WorkerTimeout)
	if err != nil {
		return fmt.Errorf("invalid worker-timeout format (use '5s'): %w", err)
	}
	if timeout < 0 {
		return fmt.Errorf("worker-timeout must not be negative, got %s", timeout)
	}
	switch opts.Classifier {
	case "python":
		if _, err := os.Stat(opts.WorkerScript); err != nil {
			return fmt.Errorf("worker script: %w", err)
		}
	case "http":
		if !strings.HasPrefix(opts.ClassifierURL, "http://") && !strings.HasPrefix(opts.ClassifierURL, "https://") {
			return fmt.Errorf("classifier-url must start with http:// or https://, got %q", opts.ClassifierURL)
		}
	default:
		return fmt.Errorf("unknown classifier %q (use python or http)", opts.Classifier)
	}
	return nil
}

// newEngine seeds the suggestion sampler when --seed is set.
func newEngine(c *suggest.Catalog, seed uint64) *suggest.Engine {
	if seed == 0 {
		return suggest.NewEngine(c)
	}
	return suggest.NewEngine(c, suggest.WithRand(rand.New(rand.NewPCG(seed, seed))))
}

// classifier is a monitor.Classifier that may own a process.
type classifier struct {
	monitor.Classifier
	// cmd returns the live worker process, if any, for the error report.
	cmd   func() *utils.SafeCommand
	close func()
}

// dieFn is utils.Die, replaced in tests.
var dieFn = utils.Die

// fail reaps the worker before exiting, since Die skips deferred calls.
func (c *classifier) fail(r any) {
	c.close()
	var logs *utils.SafeCommand
	if c.cmd != nil {
		logs = c.cmd()
	}
	dieFn("Unexpected failure", fmt.Errorf("%v", r), logs)
}

func newClassifier(ctx context.Context, opts Options) (*classifier, error) {
	timeout, _ := time.ParseDuration(opts.WorkerTimeout)
	switch opts.Classifier {
	case "http":
		return &classifier{Classifier: clients.NewHTTP(opts.ClassifierURL, timeout), close: func() {}}, nil
	default:
		w, err := worker.NewExpressionWorker(ctx, 0, worker.Config{
			Python:      opts.Python,
			Script:      opts.WorkerScript,
			ReadTimeout: timeout,
			Logger:      logger.Named("worker"),
		})
		if err != nil {
			return nil, err
		}
		return &classifier{Classifier: w, cmd: func() *utils.SafeCommand { return w.Cmd }, close: w.Close}, nil
	}
}

func runWatch(ctx context.Context, opts Options) {
	if err := validateWatchFlags(&opts); err != nil {
		utils.Die("Invalid watch flags", err, nil)
	}
	period, _ := time.ParseDuration(opts.Period)

	cat, source, err := loadCatalog(ctx)
	if err != nil {
		utils.Die("Failed to load suggestion catalog", err, nil)
	}
	fmt.Fprintf(os.Stderr, "📚 Loaded %d suggestions (%s)\n", cat.Len(), source)

	fmt.Fprintf(os.Stderr, "⚙️  Starting %s classifier...\n", opts.Classifier)
	cl, err := newClassifier(ctx, opts)
	if err != nil {
		utils.Die("Failed to start classifier", err, nil)
	}
	defer cl.close()

	// Panics escaping the controller land here with the worker's logs attached.
	defer func() {
		if r := recover(); r != nil {
			cl.fail(r)
		}
	}()

	var status monitor.StatusSink
	var sugg monitor.SuggestionSink
	if opts.JSON {
		j := display.NewJSONLines(os.Stdout)
		status, sugg = j, j
	} else {
		t := display.NewTerminal(os.Stderr)
		status, sugg = t, t
	}

	cam := camera.NewFFmpeg(utils.CaptureArgs{
		Device:   opts.Device,
		Format:   opts.Format,
		FPS:      opts.FPS,
		Realtime: opts.Realtime,
	}, logger.Named("camera"))

	ctrl := monitor.New(
		monitor.Config{Period: period, WindowSize: opts.WindowSize},
		cam, cl, newEngine(cat, opts.Seed), status, sugg,
		monitor.WithLogger(logger.Named("monitor")),
	)

	// Camera failures are reported through the status sink and can be retried with "start".
	if err := ctrl.Start(ctx); err != nil {
		logger.Warn("initial start failed", zap.Error(err))
	}

	control(ctx, ctrl, os.Stdin, os.Stderr)

	ctrl.Stop()
	ctrl.Wait()
}

// controlTarget is the part of the controller the command loop drives.
type controlTarget interface {
	Start(ctx context.Context) error
	Stop()
	Running() bool
}

// control reads commands from in until quit or ctx ends. EOF on in leaves the
// session running.
func control(ctx context.Context, t controlTarget, in io.Reader, out io.Writer) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		defer func() {
			if r := recover(); r != nil {
				logger.Error("command reader panicked", zap.Any("panic", r))
				fmt.Fprintf(out, "💥 Command input failed: %v (Ctrl+C to exit)\n", r)
			}
		}()
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "\n🛑 Interrupted")
			return
		case line, ok := <-lines:
			if !ok {
				// stdin closed; keep running until interrupted
				lines = nil
				continue
			}
			if quit := handleCommand(ctx, t, strings.TrimSpace(line), out); quit {
				return
			}
		}
	}
}

func handleCommand(ctx context.Context, t controlTarget, line string, out io.Writer) (quit bool) {
	switch strings.ToLower(line) {
	case "":
	case "start":
		if t.Running() {
			fmt.Fprintln(out, "⚠️  Already running, type 'stop' first")
			return false
		}
		if err := t.Start(ctx); err != nil {
			logger.Warn("start failed", zap.Error(err))
		}
	case "stop":
		t.Stop()
	case "quit", "exit", "q":
		return true
	case "help", "?":
		fmt.Fprintln(out, "Commands: start, stop, quit")
	default:
		fmt.Fprintf(out, "❓ Unknown command %q (start, stop, quit)\n", line)
	}
	return false
}
