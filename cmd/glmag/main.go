// Command glmag converts a GLM fireball export into a calibrated absolute-magnitude
// light curve: an augmented CSV table and a chart.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/star/glmag/internal/config"
	"github.com/star/glmag/internal/glm"
	"github.com/star/glmag/internal/lightcurve"
	"github.com/star/glmag/internal/metrics"
	"github.com/star/glmag/internal/output"
	"github.com/star/glmag/internal/propagation"
	"github.com/star/glmag/internal/tle"
	"github.com/star/glmag/internal/tracing"
	"github.com/star/glmag/internal/transform"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "glmag:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	// Settings problems found before the real logger exists go to stderr as JSON.
	boot := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg := config.Load(boot)
	magRange := fmt.Sprintf("%g,%g", cfg.MagRange[0], cfg.MagRange[1])

	cmd := &cobra.Command{
		Use:   "glmag [input.csv]",
		Short: "Compute a calibrated magnitude light curve from GLM fireball data",
		Long: `glmag reads a GLM event export (comment header with the satellite position,
then one row per detection), computes the flash-to-satellite range and the absolute
magnitude of every detection, applies the velocity/spectral and altitude/flare
corrections and writes the augmented table and a light-curve chart.

Every flag defaults to the matching GLMAG_* environment variable.

Examples:
  glmag GLM_csv_file.csv
  glmag event.csv --velocity 31.5 --height 35000 --chart event.svg
  glmag event.csv --tle goes.tle --tle-sat "GOES 16" --metrics-textfile glmag.prom`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.ConfigFile != "" {
				if err := config.ApplyFile(cfg.ConfigFile, cmd.Flags()); err != nil {
					return err
				}
			}
			if len(args) == 1 {
				cfg.InputPath = args[0]
			}
			if cmd.Flags().Changed("mag-range") {
				r, err := config.ParseMagRange(magRange)
				if err != nil {
					return err
				}
				cfg.MagRange = r
			}
			logger, err := newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, logger)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&cfg.InputPath, "input", "i", cfg.InputPath, "GLM CSV export to read")
	f.StringVarP(&cfg.OutputCSV, "output", "o", cfg.OutputCSV, "augmented CSV table to write")
	f.StringVar(&cfg.OutputChart, "chart", cfg.OutputChart, "light-curve chart to write (.png, .svg, .pdf; empty to skip)")
	f.Float64Var(&cfg.FlashHeightM, "height", cfg.FlashHeightM, "assumed flash height above the ellipsoid (m)")
	f.Float64VarP(&cfg.VelocityKmS, "velocity", "v", cfg.VelocityKmS, "assumed meteor velocity (km/s)")
	f.StringVar(&magRange, "mag-range", magRange, "chart magnitude range as faint,bright")
	f.Float64Var(&cfg.CalibrationA, "calibration-a", cfg.CalibrationA, "velocity slope of the 777 nm signal model")
	f.Float64Var(&cfg.CalibrationC, "calibration-c", cfg.CalibrationC, "zero point of the 777 nm signal model")
	f.Float64Var(&cfg.IntegrationTime, "integration-time", cfg.IntegrationTime, "detector integration time (s)")
	f.Float64Var(&cfg.LensRadius, "lens-radius", cfg.LensRadius, "effective lens radius")
	f.StringVar(&cfg.Stages, "stages", cfg.Stages, "correction stages (spectral, nonflare, flare)")
	f.BoolVar(&cfg.LegacyColumns, "legacy-columns", cfg.LegacyColumns, "also write mag_BHFcorr, a copy of the flare correction")
	f.IntVar(&cfg.Workers, "workers", cfg.Workers, "per-sample worker pool size")
	f.StringVar(&cfg.GeometryKey, "geometry-key", cfg.GeometryKey, "header key of the satellite lat/lon/distance line (default: satellite, else first matching line)")
	f.StringVar(&cfg.TLEPath, "tle", cfg.TLEPath, "TLE file to place the satellite from instead of the header")
	f.StringVar(&cfg.TLESatellite, "tle-sat", cfg.TLESatellite, "satellite name or NORAD number in the TLE file")
	f.StringVarP(&cfg.ConfigFile, "config", "c", cfg.ConfigFile, "TOML file of flag values (keys are flag names)")
	f.StringVar(&cfg.MetricsTextfile, "metrics-textfile", cfg.MetricsTextfile, "write run metrics in Prometheus textfile format")
	f.StringVar(&cfg.TraceFile, "trace-file", cfg.TraceFile, "write OpenTelemetry spans as JSON to this file")

	pf := cmd.PersistentFlags()
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	pf.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (json, text)")

	cmd.AddCommand(newTLECmd(&cfg))
	return cmd
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	l, err := config.ParseLogLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: l}
	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) (err error) {
	start := time.Now()

	shutdown, terr := tracing.Init(ctx, tracing.Config{File: cfg.TraceFile}, logger)
	if terr != nil {
		logger.Warn("tracing unavailable, continuing without spans", "error", terr)
	}
	ctx, span := tracing.Tracer().Start(ctx, "glmag.run")

	defer func() {
		metrics.RecordRun(err)
		if err != nil {
			logger.Error("run failed", "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "run failed")
		}
		span.End()
		tracing.ShutdownWithTimeout(context.Background(), shutdown, logger)

		if cfg.MetricsTextfile == "" {
			return
		}
		if werr := metrics.WriteTextfile(cfg.MetricsTextfile); werr != nil {
			logger.Error("failed to write metrics textfile", "path", cfg.MetricsTextfile, "error", werr)
		}
	}()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger.Info("glmag config", cfg.LogAttrs()...)

	rc, err := cfg.RunConfig()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	_, parseSpan := tracing.Tracer().Start(ctx, "glm.ParseFile", trace.WithAttributes(attribute.String("glmag.input", cfg.InputPath)))
	ev, err := glm.ParseFile(cfg.InputPath, glm.Options{GeometryKey: cfg.GeometryKey}, logger)
	parseSpan.End()
	if err != nil {
		return err
	}
	logger.Info("loaded GLM export",
		"path", cfg.InputPath,
		"samples", len(ev.Samples),
		"start", ev.Start().Format(time.RFC3339Nano),
		"satellite", ev.Satellite.String(),
	)

	if cfg.TLEPath != "" {
		sat, err := satelliteFromTLE(cfg.TLEPath, cfg.TLESatellite, ev.Start(), logger)
		if err != nil {
			return err
		}
		offset := transform.RangeKm(geometryECEF(ev.Satellite), geometryECEF(sat))
		logger.Info("satellite placed from TLE",
			"tle_sat", cfg.TLESatellite,
			"header", ev.Satellite.String(),
			"tle", sat.String(),
			"offset_km", offset,
		)
		ev.Satellite = sat
	}

	p, err := lightcurve.NewPipeline(rc, logger)
	if err != nil {
		return err
	}
	res, err := p.Run(ctx, ev)
	if err != nil {
		return err
	}

	if err := writeOutputs(ctx, cfg, res); err != nil {
		return err
	}

	peak, idx := res.Peak()
	logger.Info("run complete",
		"output_csv", cfg.OutputCSV,
		"output_chart", cfg.OutputChart,
		"samples", len(res.Samples),
		"peak_mag", peak,
		"peak_time", res.Samples[idx].Time.Format(time.RFC3339Nano),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func writeOutputs(ctx context.Context, cfg config.Config, res *lightcurve.Result) error {
	_, span := tracing.Tracer().Start(ctx, "output.Write")
	defer span.End()

	if err := output.WriteCSVFile(cfg.OutputCSV, res, output.CSVOptions{LegacyColumns: cfg.LegacyColumns}); err != nil {
		return err
	}
	if cfg.OutputChart == "" {
		return nil
	}
	opts := output.DefaultChartOptions()
	opts.MagRange = cfg.MagRange
	opts.Title = filepath.Base(cfg.InputPath)
	return output.RenderChart(cfg.OutputChart, res, opts)
}

func satelliteFromTLE(path, query string, at time.Time, logger *slog.Logger) (glm.SatelliteGeometry, error) {
	entries, err := tle.ParseFile(path, logger)
	if err != nil {
		return glm.SatelliteGeometry{}, err
	}
	entry, err := tle.Find(entries, query)
	if err != nil {
		return glm.SatelliteGeometry{}, fmt.Errorf("%s: %w", path, err)
	}
	if age := at.Sub(entry.Epoch); age > 14*24*time.Hour || age < -14*24*time.Hour {
		logger.Warn("TLE epoch is far from the event", "tle_epoch", entry.Epoch, "event", at, "age_hours", age.Hours())
	}

	geo, err := propagation.GeometryAt(entry, at)
	if err != nil {
		return glm.SatelliteGeometry{}, err
	}
	if !(geo.AltM > 0) {
		return glm.SatelliteGeometry{}, fmt.Errorf("TLE places %s below the ellipsoid", entry.Name)
	}
	return glm.SatelliteGeometry{LatDeg: geo.LatDeg, LonDeg: geo.LonDeg, HeightM: geo.AltM}, nil
}

func geometryECEF(g glm.SatelliteGeometry) transform.PositionECEF {
	return transform.GeodeticToECEF(g.LonDeg, g.LatDeg, g.HeightM)
}

func newTLECmd(cfg *config.Config) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "tle",
		Short: "Print the TLE-derived sub-satellite point and height",
		Long: `tle lists the satellites in --tle (or only --tle-sat) with the geodetic position
SGP4 places them at, for comparison with the header of a GLM export.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.TLEPath == "" {
				return errors.New("--tle is required")
			}
			when := time.Now().UTC()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
				when = t
			}
			logger, err := newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			return printTLEGeometry(cmd.OutOrStdout(), cfg.TLEPath, cfg.TLESatellite, when, logger)
		},
	}
	cmd.Flags().StringVar(&cfg.TLEPath, "tle", cfg.TLEPath, "TLE file")
	cmd.Flags().StringVar(&cfg.TLESatellite, "tle-sat", cfg.TLESatellite, "only this satellite (name or NORAD number)")
	cmd.Flags().StringVar(&at, "at", "", "UTC time (RFC 3339), default now")
	return cmd
}

func printTLEGeometry(w io.Writer, path, query string, at time.Time, logger *slog.Logger) error {
	entries, err := tle.ParseFile(path, logger)
	if err != nil {
		return err
	}
	if query != "" {
		e, err := tle.Find(entries, query)
		if err != nil {
			return err
		}
		entries = []tle.TLEEntry{e}
	}

	fmt.Fprintf(w, "Loaded %d TLE entries, positions at %s\n", len(entries), at.Format(time.RFC3339))
	for _, e := range entries {
		geo, err := propagation.GeometryAt(e, at)
		if err != nil {
			fmt.Fprintf(w, "%-24s %6d  error: %v\n", e.Name, e.NORADID, err)
			continue
		}
		sat := glm.SatelliteGeometry{LatDeg: geo.LatDeg, LonDeg: geo.LonDeg, HeightM: geo.AltM}
		fmt.Fprintf(w, "%-24s %6d  %s  (epoch %s)\n", e.Name, e.NORADID, sat.String(), e.Epoch.Format(time.RFC3339))
	}
	return nil
}
