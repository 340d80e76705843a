package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T) (*viper.Viper, *pflag.FlagSet) {
	t.Helper()
	v := viper.New()
	SetViperDefaults(v)
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, RegisterFlags(v, flags))
	return v, flags
}

func TestDefaults(t *testing.T) {
	v, _ := newViper(t)

	cfg, err := ReadConfigFromViper(v)
	require.NoError(t, err)
	assert.False(t, cfg.Assembly.Disabled)
	assert.Empty(t, cfg.Assembly.Exclude)
	assert.GreaterOrEqual(t, cfg.Assembly.Workers, 1)
	assert.Equal(t, 10000, cfg.Assembly.MaxGlobMatches)
	assert.Equal(t, 64, cfg.Assembly.MaxGlobDepth)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, LogText, cfg.Logging.Format)
	assert.Equal(t, FormatJSON, cfg.Output.Format)
	assert.Equal(t, "-", cfg.Output.Path)
}

func TestFlagsOverrideDefaults(t *testing.T) {
	v, flags := newViper(t)

	require.NoError(t, flags.Parse([]string{
		"--no-assemble",
		"--exclude", "**/fixtures/**",
		"--exclude", "examples/*",
		"--workers", "2",
		"-f", "cyclonedx",
		"-o", "bom.json",
		"--log-level", "debug",
	}))

	cfg, err := ReadConfigFromViper(v)
	require.NoError(t, err)
	assert.True(t, cfg.Assembly.Disabled)
	assert.Equal(t, []string{"**/fixtures/**", "examples/*"}, cfg.Assembly.Exclude)
	assert.Equal(t, 2, cfg.Assembly.Workers)
	assert.Equal(t, FormatCycloneDX, cfg.Output.Format)
	assert.Equal(t, "bom.json", cfg.Output.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sbom-assembler.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
assembly:
  max_glob_matches: 50
  exclude:
    - vendor/**
logging:
  format: json
output:
  format: protobom
`), 0o600))

	v, _ := newViper(t)
	require.NoError(t, LoadFile(v, path))

	cfg, err := ReadConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Assembly.MaxGlobMatches)
	assert.Equal(t, []string{"vendor/**"}, cfg.Assembly.Exclude)
	assert.Equal(t, LogJSON, cfg.Logging.Format)
	assert.Equal(t, FormatProtobom, cfg.Output.Format)

	assert.NoError(t, LoadFile(v, ""))
	assert.Error(t, LoadFile(viper.New(), filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestEnvironment(t *testing.T) {
	t.Setenv("SBOM_ASSEMBLER_OUTPUT_FORMAT", "tree")

	v, _ := newViper(t)
	cfg, err := ReadConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, FormatTree, cfg.Output.Format)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	good := Config{
		Assembly: AssemblyConfig{Workers: 1},
		Logging:  LoggingConfig{Format: LogText},
		Output:   OutputConfig{Format: FormatJSON},
	}
	require.NoError(t, good.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no workers", func(c *Config) { c.Assembly.Workers = 0 }},
		{"negative limit", func(c *Config) { c.Assembly.MaxGlobDepth = -1 }},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"output format", func(c *Config) { c.Output.Format = "spdx" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := good
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
