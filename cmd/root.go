package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/andresmejia3/moodlens/internal/store"
	"github.com/andresmejia3/moodlens/internal/suggest"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Options holds configuration for the watch command
type Options struct {
	Device        string
	Format        string
	FPS           int
	Realtime      bool
	Period        string
	WindowSize    int
	Classifier    string
	WorkerScript  string
	Python        string
	ClassifierURL string
	WorkerTimeout string
	Seed          uint64
	JSON          bool
}

var (
	// DB is the optional database connection shared by subcommands
	DB *store.Store
	// dbURL is the connection string
	dbURL string
	// catalogPath overrides the stored and built-in catalogs
	catalogPath string

	logger  = zap.NewNop()
	verbose bool
	logFile string
)

// Version is the application version.
const Version = "0.1.0"

const defaultDBURL = "postgres://localhost:5432/moodlens"

// annotationDB marks commands that cannot run without PostgreSQL.
const annotationDB = "requires-db"

var rootCmd = &cobra.Command{
	Use:     "moodlens",
	Short:   "Webcam emotion monitor with mood-based suggestions",
	Version: Version, // This enables the --version flag
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(verbose, logFile)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		logger = l

		url := resolveDBURL()
		_, required := cmd.Annotations[annotationDB]
		if url == "" {
			if !required {
				return nil
			}
			url = defaultDBURL
		}

		// Use the command's context (which will be cancellable) for the connection
		DB, err = store.New(cmd.Context(), url)
		if err != nil {
			if required {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			logger.Warn("database unavailable, using file or built-in catalog", zap.Error(err))
			fmt.Fprintf(os.Stderr, "⚠️  Database unavailable, continuing without it\n")
			DB = nil
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if DB != nil {
			// Use Background here because the main context might be cancelled already (due to Ctrl+C)
			// and we still need to send the "Close" command to the DB.
			DB.Close(context.Background())
		}
		_ = logger.Sync()
	},
}

// resolveDBURL returns the --db flag, else a URL built from POSTGRES_* variables,
// else the empty string.
func resolveDBURL() string {
	if dbURL != "" {
		return dbURL
	}
	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		return ""
	}
	user := os.Getenv("POSTGRES_USER")
	pass := os.Getenv("POSTGRES_PASSWORD")
	name := os.Getenv("POSTGRES_DB")
	port := os.Getenv("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, name)
}

// newLogger builds the diagnostic logger. User-facing output stays on the
// emoji status lines; zap only carries warnings unless --verbose is set.
func newLogger(verbose bool, path string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	if path != "" {
		cfg.OutputPaths = []string{path}
		cfg.ErrorOutputPaths = []string{path}
	}
	return cfg.Build()
}

// loadCatalog picks the active catalog: --catalog file, then the database,
// then the catalog compiled into the binary. The second value names the source.
func loadCatalog(ctx context.Context) (*suggest.Catalog, string, error) {
	if catalogPath != "" {
		c, err := suggest.LoadCatalogFile(catalogPath)
		if err != nil {
			return nil, "", err
		}
		return c, catalogPath, nil
	}
	if DB != nil {
		c, err := DB.LoadCatalog(ctx)
		switch {
		case err == nil:
			return c, "database", nil
		case errors.Is(err, store.ErrEmptyCatalog):
			logger.Debug("no stored catalog, using built-in")
		default:
			logger.Warn("failed to load stored catalog, using built-in", zap.Error(err))
		}
	}
	return suggest.DefaultCatalog(), "built-in", nil
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// This tells Cobra not to print the version in the help text, which is cleaner.
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "PostgreSQL connection string (default: POSTGRES_* env, else no database)")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "YAML suggestion catalog (overrides the database and built-in catalogs)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write structured logs to this file instead of stderr")
}
