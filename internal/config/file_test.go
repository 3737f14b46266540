package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFlags(cfg *Config, magRange *string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("glmag", pflag.ContinueOnError)
	fs.Float64Var(&cfg.VelocityKmS, "velocity", cfg.VelocityKmS, "")
	fs.Float64Var(&cfg.FlashHeightM, "height", cfg.FlashHeightM, "")
	fs.Float64Var(&cfg.LensRadius, "lens-radius", cfg.LensRadius, "")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "")
	fs.BoolVar(&cfg.LegacyColumns, "legacy-columns", cfg.LegacyColumns, "")
	fs.StringVar(&cfg.Stages, "stages", cfg.Stages, "")
	fs.StringVar(magRange, "mag-range", *magRange, "")
	fs.StringVar(&cfg.ConfigFile, "config", "", "")
	return fs
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "glmag.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestApplyFile(t *testing.T) {
	cfg := Default()
	magRange := "-14,-26"
	fs := testFlags(&cfg, &magRange)
	require.NoError(t, fs.Parse([]string{"--height", "42000"}))

	path := writeFile(t, `
velocity = 31.5
height = 35000
lens-radius = 5.58e-5
workers = 4
legacy-columns = true
stages = "spectral,flare"
mag-range = [-10, -22.5]
`)
	require.NoError(t, ApplyFile(path, fs))

	assert.Equal(t, 31.5, cfg.VelocityKmS)
	assert.Equal(t, 42000.0, cfg.FlashHeightM, "explicit flag wins over the file")
	assert.Equal(t, 5.58e-5, cfg.LensRadius)
	assert.Equal(t, 4, cfg.Workers)
	assert.True(t, cfg.LegacyColumns)
	assert.Equal(t, "spectral,flare", cfg.Stages)
	assert.Equal(t, "-10,-22.5", magRange)
	assert.True(t, fs.Changed("mag-range"))
}

func TestApplyFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown key", `speed = 20`, "unknown setting"},
		{"nested config", `config = "other.toml"`, "unknown setting"},
		{"bad value", `velocity = "fast"`, "velocity"},
		{"table value", "[velocity]\nvalue = 1", "unsupported value type"},
		{"syntax", `velocity = `, "reading config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			magRange := "-14,-26"
			fs := testFlags(&cfg, &magRange)
			err := ApplyFile(writeFile(t, tt.content), fs)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	cfg := Default()
	magRange := "-14,-26"
	err := ApplyFile(filepath.Join(t.TempDir(), "missing.toml"), testFlags(&cfg, &magRange))
	assert.Error(t, err)
}

func TestFlagValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"text", "text"},
		{true, "true"},
		{int64(8), "8"},
		{0.002, "0.002"},
		{[]any{int64(-14), -26.5}, "-14,-26.5"},
	}
	for _, tt := range tests {
		got, err := flagValue(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
