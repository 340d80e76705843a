// Package config holds the sbom-assembler configuration and its viper
// wiring.
package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by viper, e.g.
// SBOM_ASSEMBLER_LOGGING_LEVEL.
const EnvPrefix = "sbom_assembler"

// Config is the complete configuration of an assembly run.
type Config struct {
	Assembly AssemblyConfig `mapstructure:"assembly"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Output   OutputConfig   `mapstructure:"output"`
}

// AssemblyConfig controls the merge passes.
type AssemblyConfig struct {
	Disabled             bool     `mapstructure:"disabled"`
	Exclude              []string `mapstructure:"exclude"`
	Workers              int      `mapstructure:"workers"`
	MaxGlobMatches       int      `mapstructure:"max_glob_matches"`
	MaxGlobDepth         int      `mapstructure:"max_glob_depth"`
	AssignUnclaimedFiles bool     `mapstructure:"assign_unclaimed_files"`
}

// LoggingConfig is the configuration for the logger
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	LogFile string `mapstructure:"file"`
}

// OutputConfig selects the result writer.
type OutputConfig struct {
	Format string `mapstructure:"format"`
	Path   string `mapstructure:"path"`
}

// Output formats.
const (
	FormatJSON      = "json"
	FormatCycloneDX = "cyclonedx"
	FormatProtobom  = "protobom"
	FormatTree      = "tree"
)

// Log formats.
const (
	LogText = "text"
	LogJSON = "json"
)

// SetViperDefaults sets the default values for the configuration to be picked up by viper
func SetViperDefaults(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("assembly.disabled", false)
	v.SetDefault("assembly.exclude", []string{})
	v.SetDefault("assembly.workers", runtime.NumCPU())
	v.SetDefault("assembly.max_glob_matches", 10000)
	v.SetDefault("assembly.max_glob_depth", 64)
	v.SetDefault("assembly.assign_unclaimed_files", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", LogText)
	v.SetDefault("logging.file", "")

	v.SetDefault("output.format", FormatJSON)
	v.SetDefault("output.path", "-")
}

// ReadConfigFromViper unmarshals and validates the configuration held by v.
func ReadConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile merges the YAML config file at path into v. An empty path is a
// no-op.
func LoadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	return nil
}

// Validate validates the configuration
func (c Config) Validate() error {
	if c.Assembly.Workers < 1 {
		return fmt.Errorf("assembly.workers must be at least 1, got %d", c.Assembly.Workers)
	}
	if c.Assembly.MaxGlobMatches < 0 || c.Assembly.MaxGlobDepth < 0 {
		return fmt.Errorf("assembly glob limits must not be negative")
	}
	switch c.Logging.Format {
	case LogText, LogJSON:
	default:
		return fmt.Errorf("logging.format %q is not supported", c.Logging.Format)
	}
	switch c.Output.Format {
	case FormatJSON, FormatCycloneDX, FormatProtobom, FormatTree:
	default:
		return fmt.Errorf("output.format %q is not supported (json, cyclonedx, protobom, tree)", c.Output.Format)
	}
	return nil
}

// FlagInst is a function that creates a flag and returns a pointer to the value
type FlagInst[V any] func(name string, value V, usage string) *V

// FlagInstShort is a function that creates a flag with a shorthand and
// returns a pointer to the value
type FlagInstShort[V any] func(name, shorthand string, value V, usage string) *V

// BindConfigFlag creates the flag cmdLineArg and binds it to viperPath. The
// current viper value is the flag's default.
func BindConfigFlag[V any](
	v *viper.Viper,
	flags *pflag.FlagSet,
	viperPath string,
	cmdLineArg string,
	defaultValue V,
	help string,
	binder FlagInst[V],
) error {
	binder(cmdLineArg, defaultValue, help)
	return doViperBind(v, flags, viperPath, cmdLineArg)
}

// BindConfigFlagWithShort is BindConfigFlag for flags with a shorthand.
func BindConfigFlagWithShort[V any](
	v *viper.Viper,
	flags *pflag.FlagSet,
	viperPath string,
	cmdLineArg string,
	short string,
	defaultValue V,
	help string,
	binder FlagInstShort[V],
) error {
	binder(cmdLineArg, short, defaultValue, help)
	return doViperBind(v, flags, viperPath, cmdLineArg)
}

func doViperBind(v *viper.Viper, flags *pflag.FlagSet, viperPath, cmdLineArg string) error {
	if err := v.BindPFlag(viperPath, flags.Lookup(cmdLineArg)); err != nil {
		return fmt.Errorf("failed to bind flag %s to viper path %s: %w", cmdLineArg, viperPath, err)
	}
	return nil
}

// RegisterFlags registers every configuration flag on flags and binds it
// to v. SetViperDefaults must have been called on v.
func RegisterFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	binds := []func() error{
		func() error {
			return BindConfigFlag(v, flags, "assembly.disabled", "no-assemble",
				v.GetBool("assembly.disabled"), "Emit one package per record without merging", flags.Bool)
		},
		func() error {
			return BindConfigFlag(v, flags, "assembly.exclude", "exclude",
				v.GetStringSlice("assembly.exclude"), "Glob excluded from workspace member discovery (repeatable)", flags.StringSlice)
		},
		func() error {
			return BindConfigFlag(v, flags, "assembly.workers", "workers",
				v.GetInt("assembly.workers"), "Number of record groups merged concurrently", flags.Int)
		},
		func() error {
			return BindConfigFlag(v, flags, "assembly.max_glob_matches", "max-glob-matches",
				v.GetInt("assembly.max_glob_matches"), "Stop expanding a workspace pattern after this many matches", flags.Int)
		},
		func() error {
			return BindConfigFlag(v, flags, "assembly.max_glob_depth", "max-glob-depth",
				v.GetInt("assembly.max_glob_depth"), "Skip paths deeper than this when expanding ** patterns", flags.Int)
		},
		func() error {
			return BindConfigFlag(v, flags, "assembly.assign_unclaimed_files", "assign-unclaimed-files",
				v.GetBool("assembly.assign_unclaimed_files"), "Give unclaimed files to the package of the nearest manifest directory", flags.Bool)
		},
		func() error {
			return BindConfigFlag(v, flags, "logging.level", "log-level",
				v.GetString("logging.level"), "Log level (debug, info, warn, error)", flags.String)
		},
		func() error {
			return BindConfigFlag(v, flags, "logging.format", "log-format",
				v.GetString("logging.format"), "Log format (text, json)", flags.String)
		},
		func() error {
			return BindConfigFlag(v, flags, "logging.file", "log-file",
				v.GetString("logging.file"), "Also write logs to this file", flags.String)
		},
		func() error {
			return BindConfigFlagWithShort(v, flags, "output.format", "format", "f",
				v.GetString("output.format"), "Output format (json, cyclonedx, protobom, tree)", flags.StringP)
		},
		func() error {
			return BindConfigFlagWithShort(v, flags, "output.path", "output", "o",
				v.GetString("output.path"), "Output file path (use '-' for stdout)", flags.StringP)
		},
	}
	for _, bind := range binds {
		if err := bind(); err != nil {
			return err
		}
	}
	return nil
}
