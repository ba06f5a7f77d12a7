// Command gdasprep extracts GDAS 0.25 degree GRIB2 fields and writes
// model-ready artifacts. Configuration comes from the environment; flags
// override individual settings for one invocation.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/Benedict-Hyland/weather-modelling/internal/adapter/gribnative"
	httpadapter "github.com/Benedict-Hyland/weather-modelling/internal/adapter/http"
	kafkaadapter "github.com/Benedict-Hyland/weather-modelling/internal/adapter/kafka"
	"github.com/Benedict-Hyland/weather-modelling/internal/adapter/netcdfio"
	"github.com/Benedict-Hyland/weather-modelling/internal/adapter/wgrib2"
	"github.com/Benedict-Hyland/weather-modelling/internal/adapter/zarrstore"
	"github.com/Benedict-Hyland/weather-modelling/internal/config"
	"github.com/Benedict-Hyland/weather-modelling/internal/domain"
	"github.com/Benedict-Hyland/weather-modelling/internal/observability"
	"github.com/Benedict-Hyland/weather-modelling/internal/pipeline"
	"github.com/Benedict-Hyland/weather-modelling/internal/resolve"
)

type cli struct {
	DataDir   []string `help:"Archive roots searched in order." placeholder:"DIR"`
	OutputDir string   `help:"Artifact output directory."`
	Levels    int      `help:"Pressure level set, 13 or 37."`
	Decoder   string   `help:"GRIB2 decoder backend: wgrib2 or native."`
	Format    string   `help:"Artifact format: zarr, netcdf, or both."`
	Keep      bool     `help:"Retain decoder interchange files for debugging."`
	Cleanup   bool     `help:"Remove consumed archive files after a successful write."`

	Pair    pairCmd    `cmd:"" help:"Build one artifact from two forecast cycles six hours apart."`
	Windows windowsCmd `cmd:"" help:"Build the six lead-pair artifacts for one forecast cycle."`
}

type pairCmd struct {
	InputA string `arg:"" help:"Earlier input: forecast key (YYYYMMDD_HH_LLL) or GRIB2 path."`
	InputB string `arg:"" help:"Later input, one cycle interval after the first."`
}

type windowsCmd struct {
	Cycle string `arg:"" help:"Cycle input: forecast key or GRIB2 path of any lead in the cycle."`
}

type app struct {
	ctx      context.Context
	pipeline *pipeline.Pipeline
	resolver *resolve.Resolver
}

func (c *pairCmd) Run(a *app) error {
	return a.pipeline.ProcessCyclePair(a.ctx, c.InputA, c.InputB)
}

func (c *windowsCmd) Run(a *app) error {
	key, err := domain.ParseForecastKey(c.Cycle)
	if err != nil {
		key, _, err = a.resolver.Resolve(c.Cycle)
		if err != nil {
			return fmt.Errorf("resolve cycle %q: %w", c.Cycle, err)
		}
	}
	return a.pipeline.ProcessLeadPairs(a.ctx, key)
}

func main() {
	var flags cli
	kctx := kong.Parse(&flags,
		kong.Name("gdasprep"),
		kong.Description("Extract GDAS GRIB2 fields into model-ready zarr/netcdf artifacts."),
		kong.UsageOnError(),
	)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := applyOverrides(cfg, &flags); err != nil {
		slog.Error("invalid flags", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	var decoder pipeline.Decoder
	switch cfg.Decoder {
	case config.DecoderNative:
		decoder = gribnative.NewDecoder(logger)
	default:
		decoder = wgrib2.NewDecoder(cfg.Wgrib2Path, cfg.WorkDir, cfg.KeepWork, logger)
	}

	var writers []pipeline.ArtifactWriter
	if cfg.Format == config.FormatZarr || cfg.Format == config.FormatBoth {
		writers = append(writers, zarrstore.NewWriter(logger))
	}
	if cfg.Format == config.FormatNetCDF || cfg.Format == config.FormatBoth {
		writers = append(writers, netcdfio.NewWriter(logger))
	}

	var notifier pipeline.Notifier
	var kafkaNotifier *kafkaadapter.Notifier
	if cfg.NotifyEnabled() {
		kafkaNotifier = kafkaadapter.NewNotifier(cfg, logger)
		notifier = kafkaNotifier
		logger.Info("artifact notifications enabled", "topic", cfg.KafkaTopic)
	}

	resolver := resolve.New(cfg.DataDirs, logger)
	driver := pipeline.NewDriver(decoder, cfg.LevelMode, logger, metrics)
	p := pipeline.New(resolver, driver, writers, notifier, cfg.LevelMode, cfg.OutputDir, logger, metrics)
	if cfg.CleanupInputs {
		p.EnableInputCleanup()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *httpadapter.Server
	if cfg.MetricsAddr != "" {
		checker := httpadapter.StorageChecker{Dirs: append(append([]string(nil), cfg.DataDirs...), cfg.OutputDir)}
		srv = httpadapter.NewServer(cfg.MetricsAddr, checker, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	runErr := kctx.Run(&app{ctx: ctx, pipeline: p, resolver: resolver})

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		cancel()
	}
	if kafkaNotifier != nil {
		if err := kafkaNotifier.Close(); err != nil {
			logger.Error("kafka close error", "error", err)
		}
	}

	if runErr != nil {
		logger.Error("run failed", "error", runErr)
		os.Exit(1)
	}
}

// applyOverrides folds set flags into the environment-derived config and
// revalidates the result.
func applyOverrides(cfg *config.Config, flags *cli) error {
	if len(flags.DataDir) > 0 {
		cfg.DataDirs = flags.DataDir
	}
	if flags.OutputDir != "" {
		cfg.OutputDir = flags.OutputDir
	}
	if flags.Levels != 0 {
		mode, err := domain.ParseLevelMode(flags.Levels)
		if err != nil {
			return err
		}
		cfg.LevelMode = mode
	}
	if flags.Decoder != "" {
		cfg.Decoder = flags.Decoder
	}
	if flags.Format != "" {
		cfg.Format = flags.Format
	}
	if flags.Keep {
		cfg.KeepWork = true
	}
	if flags.Cleanup {
		cfg.CleanupInputs = true
	}
	return cfg.Validate()
}
