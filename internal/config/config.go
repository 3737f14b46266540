// Package config holds the invocation settings of a glmag run.
//
// Every setting has a GLMAG_* environment variable. Load reads them with
// warn-and-default semantics; cmd/glmag then uses the result as flag defaults. A TOML
// settings file (ApplyFile) fills in the flags not given on the command line, so the
// precedence is defaults, environment, file, flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/star/glmag/internal/correction"
	"github.com/star/glmag/internal/lightcurve"
	"github.com/star/glmag/internal/radiometry"
)

// Config is the complete set of run settings.
type Config struct {
	InputPath   string
	OutputCSV   string
	OutputChart string // empty disables the chart

	FlashHeightM float64
	VelocityKmS  float64

	// MagRange is the plotted magnitude range, faint limit first: {-14, -26}
	// draws -14 at the bottom of the chart.
	MagRange [2]float64

	CalibrationA    float64
	CalibrationC    float64
	IntegrationTime float64
	LensRadius      float64
	Stages          string // comma separated correction stages
	LegacyColumns   bool   // also write the duplicated flare column

	Workers int

	// GeometryKey names the header line holding the satellite position. Empty means
	// "satellite", falling back to the first line shaped like one.
	GeometryKey string

	TLEPath      string
	TLESatellite string

	ConfigFile      string // TOML file of flag values
	MetricsTextfile string
	TraceFile       string
	LogLevel        string
	LogFormat       string
}

// Default returns the settings the original calibration was published with.
func Default() Config {
	return Config{
		InputPath:       "GLM_csv_file.csv",
		OutputCSV:       "output.csv",
		OutputChart:     "lightcurve.png",
		FlashHeightM:    16000,
		VelocityKmS:     20,
		MagRange:        [2]float64{-14, -26},
		CalibrationA:    radiometry.Calibration777.A,
		CalibrationC:    radiometry.Calibration777.C,
		IntegrationTime: radiometry.DefaultIntegrationTime,
		LensRadius:      radiometry.DefaultLensRadius,
		Stages:          "spectral,nonflare,flare",
		Workers:         runtime.NumCPU(),
		LogLevel:        "info",
		LogFormat:       "json",
	}
}

// Load returns Default overridden by GLMAG_* environment variables. Invalid values are
// logged and ignored.
func Load(logger *slog.Logger) Config {
	cfg := Default()

	if v := os.Getenv("GLMAG_INPUT"); v != "" {
		cfg.InputPath = v
	}
	if v, ok := os.LookupEnv("GLMAG_OUTPUT_CSV"); ok && v != "" {
		cfg.OutputCSV = v
	}
	if v, ok := os.LookupEnv("GLMAG_OUTPUT_CHART"); ok {
		cfg.OutputChart = v
	}

	envFloat(logger, "GLMAG_HEIGHT", &cfg.FlashHeightM, finite)
	envFloat(logger, "GLMAG_VELOCITY", &cfg.VelocityKmS, positive)
	envFloat(logger, "GLMAG_CALIBRATION_A", &cfg.CalibrationA, finite)
	envFloat(logger, "GLMAG_CALIBRATION_C", &cfg.CalibrationC, finite)
	envFloat(logger, "GLMAG_INTEGRATION_TIME", &cfg.IntegrationTime, positive)
	envFloat(logger, "GLMAG_LENS_RADIUS", &cfg.LensRadius, positive)

	if v := os.Getenv("GLMAG_MAG_RANGE"); v != "" {
		r, err := ParseMagRange(v)
		if err != nil {
			logger.Warn("invalid GLMAG_MAG_RANGE value, using default", "value", v, "default", cfg.MagRange, "error", err)
		} else {
			cfg.MagRange = r
		}
	}

	if v := os.Getenv("GLMAG_STAGES"); v != "" {
		cfg.Stages = v
	}
	if v := os.Getenv("GLMAG_LEGACY_COLUMNS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid GLMAG_LEGACY_COLUMNS value, defaulting to false", "value", v)
		} else {
			cfg.LegacyColumns = b
		}
	}

	if v := os.Getenv("GLMAG_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid GLMAG_WORKERS value, using default", "value", v, "default", cfg.Workers)
		} else {
			cfg.Workers = n
		}
	}

	if v := os.Getenv("GLMAG_GEOMETRY_KEY"); v != "" {
		cfg.GeometryKey = v
	}
	cfg.TLEPath = os.Getenv("GLMAG_TLE")
	cfg.TLESatellite = os.Getenv("GLMAG_TLE_SAT")
	cfg.ConfigFile = os.Getenv("GLMAG_CONFIG")
	cfg.MetricsTextfile = os.Getenv("GLMAG_METRICS_TEXTFILE")
	cfg.TraceFile = os.Getenv("GLMAG_TRACE_FILE")

	if v := os.Getenv("GLMAG_LOG_LEVEL"); v != "" {
		if _, err := ParseLogLevel(v); err != nil {
			logger.Warn("invalid GLMAG_LOG_LEVEL value, using default", "value", v, "default", cfg.LogLevel)
		} else {
			cfg.LogLevel = v
		}
	}
	if v := os.Getenv("GLMAG_LOG_FORMAT"); v != "" {
		switch strings.ToLower(v) {
		case "json", "text":
			cfg.LogFormat = strings.ToLower(v)
		default:
			logger.Warn("invalid GLMAG_LOG_FORMAT value, using default", "value", v, "default", cfg.LogFormat)
		}
	}

	return cfg
}

func positive(f float64) bool { return f > 0 && !math.IsInf(f, 0) }
func finite(f float64) bool   { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func envFloat(logger *slog.Logger, key string, dst *float64, valid func(float64) bool) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || !valid(f) {
		logger.Warn("invalid "+key+" value, using default", "value", v, "default", *dst)
		return
	}
	*dst = f
}

// ParseMagRange parses "faint,bright" (for example "-14,-26").
func ParseMagRange(s string) ([2]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return [2]float64{}, fmt.Errorf("magnitude range %q: want two comma separated values", s)
	}
	var r [2]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return [2]float64{}, fmt.Errorf("magnitude range %q: %w", s, err)
		}
		r[i] = f
	}
	if err := validMagRange(r); err != nil {
		return [2]float64{}, err
	}
	return r, nil
}

func validMagRange(r [2]float64) error {
	if !finite(r[0]) || !finite(r[1]) {
		return fmt.Errorf("magnitude range %v is not finite", r)
	}
	if r[0] == r[1] {
		return fmt.Errorf("magnitude range %v is empty", r)
	}
	return nil
}

// ParseLogLevel accepts debug, info, warn and error (any case).
func ParseLogLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", s, err)
	}
	return l, nil
}

// Validate checks the settings that are not covered by lightcurve.RunConfig.
func (c Config) Validate() error {
	var errs []error
	if c.InputPath == "" {
		errs = append(errs, errors.New("input path is required"))
	}
	if c.OutputCSV == "" {
		errs = append(errs, errors.New("output CSV path is required"))
	}
	if err := validMagRange(c.MagRange); err != nil {
		errs = append(errs, err)
	}
	if (c.TLEPath == "") != (c.TLESatellite == "") {
		errs = append(errs, errors.New("TLE file and TLE satellite must be given together"))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// RunConfig builds the immutable pipeline configuration.
func (c Config) RunConfig() (lightcurve.RunConfig, error) {
	model, err := radiometry.NewModel(
		radiometry.Calibration{A: c.CalibrationA, C: c.CalibrationC},
		c.IntegrationTime,
		c.LensRadius,
	)
	if err != nil {
		return lightcurve.RunConfig{}, fmt.Errorf("radiometric model: %w", err)
	}
	chain, err := correction.ParseStages(c.Stages, model)
	if err != nil {
		return lightcurve.RunConfig{}, fmt.Errorf("correction stages: %w", err)
	}

	rc := lightcurve.RunConfig{
		VelocityKmS:  c.VelocityKmS,
		FlashHeightM: c.FlashHeightM,
		Model:        model,
		Chain:        chain,
		Workers:      c.Workers,
	}
	if err := rc.Validate(); err != nil {
		return lightcurve.RunConfig{}, err
	}
	return rc, nil
}

// LogAttrs returns the effective settings as structured log attributes.
func (c Config) LogAttrs() []any {
	return []any{
		"input", c.InputPath,
		"output_csv", c.OutputCSV,
		"output_chart", c.OutputChart,
		"flash_height_m", c.FlashHeightM,
		"velocity_km_s", c.VelocityKmS,
		"mag_range", c.MagRange,
		"calibration_a", c.CalibrationA,
		"calibration_c", c.CalibrationC,
		"integration_time_s", c.IntegrationTime,
		"lens_radius", c.LensRadius,
		"stages", c.Stages,
		"workers", c.Workers,
		"tle", c.TLEPath,
		"tle_sat", c.TLESatellite,
	}
}
