package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/schaermu/buildstamp/internal/artifact"
	"github.com/schaermu/buildstamp/internal/config"
	"github.com/schaermu/buildstamp/internal/git"
	"github.com/schaermu/buildstamp/internal/host"
	"github.com/schaermu/buildstamp/internal/notify"
	"github.com/schaermu/buildstamp/internal/reconcile"
	"github.com/schaermu/buildstamp/internal/stamp"
	"github.com/schaermu/buildstamp/internal/template"
	"github.com/schaermu/buildstamp/internal/version"
)

var (
	// Set by goreleaser
	buildVersion = "dev"
	commit       = "none"
	date         = "unknown"

	// Global flags
	cfgFile   string
	envFile   string
	logLevel  string
	logFormat string
	skipHash  string

	// Command flags
	dryRun      bool
	placeholder string
	hashLength  int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "buildstamp",
	Short: "Stamp build outputs with the git revision and prune stale artifacts",
	Long: `buildstamp binds a version token, by default the abbreviated git hash of HEAD,
into output filename templates such as "app.[githash].min.js".

After the build completes it removes artifacts of earlier versions from the
output directory: files with the same template shape but a different token.`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run [-- build command...]",
	Short: "Run the build with stamped filenames, then clean up stale artifacts",
	Long: `Run resolves the version token, binds it into the configured filename
templates and runs the build command with the results exported as
BUILDSTAMP_VERSION, BUILDSTAMP_FILENAME, BUILDSTAMP_CHUNK_FILENAME and
BUILDSTAMP_OUTPUT_PATH.

When the build succeeds and cleanup is enabled, artifacts of other versions
are deleted from the output directory. Arguments after "--" replace
build.command from the config file.`,
	RunE: runBuild,
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete artifacts of other versions without running a build",
	RunE:  runClean,
}

var matchCmd = &cobra.Command{
	Use:   "match TEMPLATE [NAME...]",
	Short: "Show the cleanup pattern for a template and test names against it",
	Long: `Match binds the version token into TEMPLATE, prints the synthesized cleanup
pattern and reports for every NAME whether cleanup would delete it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMatch,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("buildstamp %s\n", buildVersion)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./buildstamp.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config, ignored when missing")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&skipHash, "skip-hash", "", "use this version token instead of the git revision")

	// Run and clean flags
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be deleted without deleting")
	cleanCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be deleted without deleting")

	// Match flags
	matchCmd.Flags().StringVar(&placeholder, "placeholder", template.DefaultPlaceholder, "placeholder replaced by the version token")
	matchCmd.Flags().IntVar(&hashLength, "hash-length", version.DefaultLength, "number of git hash characters")

	// Add commands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(versionCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if len(args) > 0 {
		cfg.Build.Command = args
	}
	if len(cfg.Build.Command) == 0 {
		return fmt.Errorf("no build command: set build.command or pass one after --")
	}

	return execute(ctx, cfg, logger)
}

func runClean(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Cleanup = true
	cfg.Build.Command = nil

	return execute(ctx, cfg, logger)
}

// execute runs one build session against the command host
func execute(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	protect, err := artifact.NewProtectSet(cfg.Protect)
	if err != nil {
		return err
	}

	reconciler := reconcile.NewReconciler(cfg.CleanupPolicy, protect, logger, dryRun)

	callback := notify.Log(logger)
	if cfg.Manifest != "" && !dryRun {
		callback = notify.Chain(callback, notify.ManifestWriter(cfg.Manifest, logger))
	}

	plugin := stamp.New(stamp.Options{
		Placeholder: cfg.Placeholder,
		Cleanup:     cfg.Cleanup,
		SkipHash:    cfg.SkipHash,
		HashLength:  cfg.HashLength,
		Regex:       cfg.Regex.ByKey(),
		Callback:    callback,
	}, git.NewShellClient(cfg.RepoDir), reconciler, logger)

	h := host.NewCommand(cfg.Build.Command, cfg.Build.Dir, stamp.Output{
		Filename:      cfg.Output.Filename,
		ChunkFilename: cfg.Output.ChunkFilename,
		Path:          cfg.Output.Path,
	}, logger)

	session, err := plugin.Apply(ctx, h)
	if err != nil {
		logger.Error("build setup failed", "error", err)
		return err
	}
	h.SetVersion(session.Token.String())

	logger.Info("version resolved",
		"version", session.Token,
		"source", cfg.TokenSource(),
		"strategy", session.Strategy.String())

	if err := h.Run(ctx); err != nil {
		logger.Error("build failed", "error", err)
		return err
	}

	return nil
}

func runMatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	// The config file is optional here; it only supplies the repository and token
	repoDir, explicit := "", skipHash
	if cfgFile != "" {
		cfg, err := loadConfig(setupLogger())
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		repoDir, explicit = cfg.RepoDir, cfg.SkipHash
	}

	token, err := version.NewResolver(explicit, hashLength, git.NewShellClient(repoDir)).Resolve(ctx)
	if err != nil {
		return err
	}

	binder := template.NewBinder(placeholder, token, nil, setupLogger())
	bound, ok := binder.Bind("template", args[0])
	if !ok {
		return fmt.Errorf("template %q does not contain placeholder %q", args[0], placeholder)
	}
	m, ok := binder.Matcher("template")
	if !ok {
		return fmt.Errorf("no cleanup pattern for %q: the version token is not part of the filename", bound)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "version:  %s\n", token)
	fmt.Fprintf(out, "bound:    %s\n", bound)
	fmt.Fprintf(out, "pattern:  %s\n", m.Pattern())
	for _, name := range args[1:] {
		verdict := "keep"
		if m.Match(name) {
			verdict = "delete"
		}
		fmt.Fprintf(out, "%-6s %s\n", verdict, name)
	}
	return nil
}

func setupLogger() *slog.Logger {
	// Parse log level
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// Create handler based on format
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

func loadConfig(logger *slog.Logger) (*config.Config, error) {
	// Variables from the dotenv file feed ${VAR} expansion in the config
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	configPath := cfgFile
	if configPath == "" {
		configPath = "buildstamp.yaml"
	}

	logger.Info("loading configuration", "path", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if skipHash != "" {
		cfg.SkipHash = skipHash
	}

	logger.Debug("configuration loaded",
		"output_path", cfg.Output.Path,
		"filename", cfg.Output.Filename,
		"chunk_filename", cfg.Output.ChunkFilename,
		"cleanup", cfg.Cleanup,
		"cleanup_policy", cfg.CleanupPolicy)

	return cfg, nil
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	return ctx, cancel
}
