package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/evanw/packcore/internal/cache"
	"github.com/evanw/packcore/internal/compiler"
	"github.com/evanw/packcore/internal/config"
	"github.com/evanw/packcore/internal/dependency"
	"github.com/evanw/packcore/internal/exitcode"
	"github.com/evanw/packcore/internal/fs"
	"github.com/evanw/packcore/internal/logger"
	"github.com/evanw/packcore/internal/manifest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// The config file is the compiler options plus what only the command line
// tool needs. Every key can also be set with a "PACKCORE_" environment
// variable, e.g. "PACKCORE_OUTPUT_PATH".
type buildConfig struct {
	config.Options `mapstructure:",squash"`

	Manifest string `mapstructure:"manifest"`

	// Assets are written to this bucket instead of the local disk if a
	// bucket name is set
	Storage fs.MinioOptions `mapstructure:"storage"`

	LogLevel    string `mapstructure:"logLevel"`
	LogFormat   string `mapstructure:"logFormat"`
	MetricsFile string `mapstructure:"metricsFile"`
}

type buildFlags struct {
	configFile string
	entries    map[string]string
	watch      bool
	interval   time.Duration
}

var errBuildFailed = errors.New("build failed")

func newBuildCommand() *cobra.Command {
	v := viper.New()
	flags := &buildFlags{}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the entry points and write the output files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, v, flags)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.configFile, "config", "c", "", "config file (default is ./packcore.yaml if it exists)")
	f.StringToStringVarP(&flags.entries, "entry", "e", nil, "entry point as name=request (may be repeated)")
	f.BoolVarP(&flags.watch, "watch", "w", false, "keep rebuilding until interrupted")
	f.DurationVar(&flags.interval, "interval", time.Second, "time between rebuilds with --watch")
	f.String("manifest", "packcore.manifest.yaml", "module graph manifest")
	f.String("outdir", "", "output directory (default \"dist\")")
	f.Bool("clean", false, "remove output files that are no longer produced")
	f.Bool("tree-shaking", true, "remove unused exports")
	f.Bool("mangle-exports", false, "give used exports short names")
	f.Int("concurrency", 0, "modules processed at once (default GOMAXPROCS)")
	f.String("log-level", "info", "trace log level (verbose, debug, info, warning, error, silent)")
	f.String("log-format", "console", "trace log format (console or json)")
	f.String("metrics-file", "", "write Prometheus metrics to this file after every build")

	for key, flag := range map[string]string{
		"manifest":      "manifest",
		"output.path":   "outdir",
		"output.clean":  "clean",
		"treeShaking":   "tree-shaking",
		"mangleExports": "mangle-exports",
		"concurrency":   "concurrency",
		"logLevel":      "log-level",
		"logFormat":     "log-format",
		"metricsFile":   "metrics-file",
	} {
		// Only fails if the flag doesn't exist
		if err := v.BindPFlag(key, f.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %q: %v", flag, err))
		}
	}
	return cmd
}

func loadBuildConfig(v *viper.Viper, flags *buildFlags) (*buildConfig, error) {
	v.SetDefault("sideEffects", true)
	v.SetDefault("incrementalRebuildEmitAsset", true)
	v.SetEnvPrefix("PACKCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags.configFile != "" {
		v.SetConfigFile(flags.configFile)
	} else {
		v.SetConfigName("packcore")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		// Only an explicitly requested config file has to exist
		var notFound viper.ConfigFileNotFoundError
		if flags.configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &buildConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if len(flags.entries) > 0 {
		cfg.Entry = flags.entries
	}
	cfg.Options.Normalize()
	return cfg, nil
}

func parseLogLevel(text string) (logger.LogLevel, error) {
	switch strings.ToLower(text) {
	case "verbose":
		return logger.LevelVerbose, nil
	case "debug":
		return logger.LevelDebug, nil
	case "", "info":
		return logger.LevelInfo, nil
	case "warning":
		return logger.LevelWarning, nil
	case "error":
		return logger.LevelError, nil
	case "silent":
		return logger.LevelSilent, nil
	default:
		return logger.LevelNone, fmt.Errorf("invalid log level %q", text)
	}
}

func parseTraceFormat(text string) (logger.TraceFormat, error) {
	switch strings.ToLower(text) {
	case "", "console":
		return logger.TraceConsole, nil
	case "json":
		return logger.TraceJSON, nil
	default:
		return logger.TraceConsole, fmt.Errorf("invalid log format %q", text)
	}
}

func newOutputFS(cfg *buildConfig, trace zerolog.Logger) (fs.OutputFS, error) {
	if cfg.Storage.Bucket != "" {
		return fs.NewMinioFS(cfg.Storage, trace)
	}
	return fs.RealFS{Root: cfg.Context}, nil
}

func runBuild(cmd *cobra.Command, v *viper.Viper, flags *buildFlags) error {
	cfg, err := loadBuildConfig(v, flags)
	if err != nil {
		return exitcode.Set(err, exitcode.Usage)
	}
	level, err := parseLogLevel(cfg.LogLevel)
	if err != nil {
		return exitcode.Set(err, exitcode.Usage)
	}
	format, err := parseTraceFormat(cfg.LogFormat)
	if err != nil {
		return exitcode.Set(err, exitcode.Usage)
	}
	trace := logger.NewTraceLogger(cmd.ErrOrStderr(), format, level)

	workerSyntax, err := dependency.ParseWorkerSyntax(cfg.WorkerSyntax)
	if err != nil {
		return exitcode.Set(fmt.Errorf("invalid worker syntax: %w", err), exitcode.Usage)
	}
	cacheSet := cache.MakeCacheSet()
	graph, err := manifest.Load(manifest.Options{
		FS:           fs.RealFS{},
		FSCache:      &cacheSet.FSCache,
		WorkerSyntax: &workerSyntax,
	}, cfg.Manifest)
	if err != nil {
		return exitcode.Set(err, exitcode.Usage)
	}

	outputFS, err := newOutputFS(cfg, trace)
	if err != nil {
		return exitcode.Set(err, exitcode.Usage)
	}
	registry := prometheus.NewRegistry()
	c, err := compiler.New(compiler.Params{
		Options:  cfg.Options,
		Factory:  graph,
		Resolver: graph,
		OutputFS: outputFS,
		Cache:    cacheSet,
		Logger:   &trace,
		Metrics:  compiler.NewMetrics(registry),
	})
	if err != nil {
		return exitcode.Set(err, exitcode.Usage)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	build := func() error {
		stats, err := c.Build(ctx)
		if stats != nil {
			msgs := append(append([]logger.Msg{}, stats.Errors...), stats.Warnings...)
			logger.PrintMessagesToStderr(msgs, logger.OutputOptions{
				IncludeSource: true,
				ErrorLimit:    10,
				Color:         logger.ColorIfTerminal,
				LogLevel:      level,
			})
		}
		if cfg.MetricsFile != "" {
			if err := prometheus.WriteToTextfile(cfg.MetricsFile, registry); err != nil {
				trace.Warn().Err(err).Str("path", cfg.MetricsFile).Msg("Failed to write metrics")
			}
		}
		if err != nil {
			return classifyBuildError(err)
		}
		if stats.HasErrors() {
			return exitcode.Set(errBuildFailed, exitcode.BuildFailed)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", stats)
		return nil
	}

	if !flags.watch {
		return build()
	}

	// Unchanged files are skipped by the compiler itself, so rebuilding on a
	// timer only writes what changed
	ticker := time.NewTicker(flags.interval)
	defer ticker.Stop()
	for {
		if err := build(); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			trace.Error().Err(err).Msg("Build failed, waiting for changes")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func classifyBuildError(err error) error {
	var internalError *compiler.InternalError
	switch {
	case errors.Is(err, compiler.ErrInvalidOptions):
		return exitcode.Set(err, exitcode.Usage)
	case errors.As(err, &internalError):
		return exitcode.Set(err, exitcode.Internal)
	default:
		return exitcode.Set(err, exitcode.BuildFailed)
	}
}
