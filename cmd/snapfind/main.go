// Package main implements the snapfind CLI: rank the images under a folder
// by how well they match a text description.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/snapfind/internal/config"
	"github.com/fyrsmithlabs/snapfind/internal/embeddings"
	"github.com/fyrsmithlabs/snapfind/internal/logging"
	"github.com/fyrsmithlabs/snapfind/internal/present"
	"github.com/fyrsmithlabs/snapfind/internal/search"
	"github.com/fyrsmithlabs/snapfind/internal/telemetry"
)

// Build information, set via ldflags.
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

const promptText = "What are you searching for? "

// newProvider is swapped in tests.
var newProvider = embeddings.NewProvider

// ensureRuntime is swapped in tests.
var ensureRuntime = embeddings.EnsureONNXRuntime

type searchFlags struct {
	configPath string
	rootDir    string
	topN       int
	mode       string
	query      string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags searchFlags

	cmd := &cobra.Command{
		Use:   "snapfind",
		Short: "Find images in a folder that match a text description",
		Long: `snapfind ranks the PNG and JPEG images under a directory by semantic
similarity to a free-text query using a CLIP embedding model, then shows the
best matches on the console or in an interactive terminal viewer.

Configuration is read from ~/.config/snapfind/config.yaml and SNAPFIND_*
environment variables; flags override both.

Examples:
  # Prompt for a query and browse matches under ./images
  snapfind

  # Print the top 10 matches for a query
  snapfind --root ~/Pictures --top 10 --mode console --query "a red car"`,
		Version:      version,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSearch(cmd, flags)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.configPath, "config", "c", "", "config file (default ~/.config/snapfind/config.yaml)")
	f.StringVarP(&flags.rootDir, "root", "r", "", "directory to search (default ./images)")
	f.IntVarP(&flags.topN, "top", "n", 0, "number of matches to show (default 5)")
	f.StringVarP(&flags.mode, "mode", "m", "", "presenter: viewer or console (default viewer)")
	f.StringVarP(&flags.query, "query", "q", "", "search text; prompts on stdin when omitted")
	f.StringVar(&flags.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")

	cmd.AddCommand(newSetupCmd(), newVersionCmd())
	return cmd
}

// loadConfig loads file and environment configuration, applies flags that
// were set explicitly, then validates the merged result.
func loadConfig(cmd *cobra.Command, flags searchFlags) (*config.Config, error) {
	cfg, err := config.LoadUnvalidated(flags.configPath)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("root") {
		cfg.Search.RootDir = flags.rootDir
	}
	if changed("top") {
		cfg.Search.TopN = flags.topN
	}
	if changed("mode") {
		cfg.Presenter.Mode = flags.mode
	}
	if changed("log-level") {
		cfg.Logging.Level = flags.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	cfg.Search.RootDir = config.ExpandHome(cfg.Search.RootDir)
	cfg.Embeddings.ModelDir = config.ExpandHome(cfg.Embeddings.ModelDir)
	return cfg, nil
}

func newLogger(cfg config.LoggingConfig, out io.Writer) (*logging.Logger, error) {
	level, err := logging.LevelFromString(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	lc := logging.NewDefaultConfig()
	lc.Level = level
	lc.Format = cfg.Format
	lc.Output = out
	return logging.NewLogger(lc)
}

func runSearch(cmd *cobra.Command, flags searchFlags) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()

	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	tel := telemetry.New(version, logger.Named("telemetry"))
	tel.Install()
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Debug(ctx, "telemetry shutdown", zap.Error(err))
		}
	}()

	query := flags.query
	if !cmd.Flags().Changed("query") {
		query, err = promptQuery(cmd.InOrStdin(), stdout)
		if err != nil {
			return err
		}
	}
	if strings.TrimSpace(query) == "" {
		return search.ErrEmptyQuery
	}

	libPath := cfg.Embeddings.ONNXPath
	if cfg.Embeddings.Provider == config.ProviderONNX && libPath == "" {
		libPath, err = ensureRuntime(ctx, stderr)
		if err != nil {
			return err
		}
	}

	provider, err := newProvider(embeddings.ProviderConfig{
		Provider:    cfg.Embeddings.Provider,
		Model:       cfg.Embeddings.Model,
		Dimension:   cfg.Embeddings.Dimension,
		ModelDir:    cfg.Embeddings.ModelDir,
		LibraryPath: libPath,
		BaseURL:     cfg.Embeddings.BaseURL,
		APIKey:      cfg.Embeddings.APIKey.Value(),
		Timeout:     cfg.Embeddings.Timeout.Duration(),
		MaxRetries:  cfg.Embeddings.MaxRetries,
		Logger:      logger.Named("embeddings"),
	})
	if err != nil {
		return fmt.Errorf("initializing embedding provider: %w", err)
	}
	defer func() {
		if err := provider.Close(); err != nil {
			logger.Warn(ctx, "closing embedding provider", zap.Error(err))
		}
	}()

	svc, err := search.NewService(search.Config{
		RootDir: cfg.Search.RootDir,
		TopN:    cfg.Search.TopN,
	}, provider, logger)
	if err != nil {
		return err
	}

	result, err := svc.Search(ctx, query)
	if err != nil {
		return err
	}

	if len(result.Matches) == 0 {
		fmt.Fprintln(stdout, present.NoResultsMessage)
		return nil
	}

	var sink present.Sink
	switch cfg.Presenter.Mode {
	case config.ModeConsole:
		sink = present.NewConsoleSink(stdout)
	default:
		sink = present.NewViewerSink(present.ViewerConfig{
			Query:           query,
			ThumbnailWidth:  cfg.Presenter.ThumbnailWidth,
			ThumbnailHeight: cfg.Presenter.ThumbnailHeight,
			Logger:          logger.Named("viewer"),
		})
	}

	if err := sink.Render(ctx, result.Matches); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("presenting results: %w", err)
	}
	return nil
}

// promptQuery asks for a query and reads one line. EOF without input yields
// an empty query.
func promptQuery(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, promptText)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading query: %w", err)
	}
	return strings.TrimSpace(line), nil
}
