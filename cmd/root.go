// Package cmd is the sbom-assembler command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/StinkyLord/sbom-assembler/internal/assembly"
	"github.com/StinkyLord/sbom-assembler/internal/config"
	"github.com/StinkyLord/sbom-assembler/internal/input"
	"github.com/StinkyLord/sbom-assembler/internal/logger"
	"github.com/StinkyLord/sbom-assembler/internal/output"
	"github.com/StinkyLord/sbom-assembler/internal/pattern"
)

const toolVersion = "1.0.0"

// NewRootCmd builds the command tree. Every command gets its own viper
// instance so tests can run commands side by side.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sbom-assembler",
		Short: "Package assembly engine for software composition analysis",
		Long: `sbom-assembler merges the package records extracted from manifests,
lockfiles and installed package databases into logical packages, with their
dependencies and the files that belong to them.

Records are grouped three ways:
  • Sibling datafiles:   package.json + package-lock.json in one directory
  • Nested datafiles:    a manifest plus metadata files in subdirectories
  • Installed databases: rpm, dpkg and alpine databases expanded to files

Workspaces (npm, pnpm, cargo) are then split into one package per member.`,
		SilenceUsage: true,
	}
	rootCmd.AddCommand(newAssembleCmd(), newVersionCmd())
	return rootCmd
}

func newAssembleCmd() *cobra.Command {
	v := viper.New()
	config.SetViperDefaults(v)

	var (
		flagInput    string
		flagScanRoot string
		flagConfig   string
	)

	cmd := &cobra.Command{
		Use:   "assemble",
		Short: "Assemble extracted records into packages",
		Long: `Read the records produced by the package parsers and assemble them into
packages, dependencies and file associations.

Examples:
  sbom-assembler assemble --input records.json --output result.json
  sbom-assembler assemble -i records.yaml --scan-root /src/project -f cyclonedx -o bom.json
  parser ... | sbom-assembler assemble -i - -f tree`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadFile(v, flagConfig); err != nil {
				return err
			}
			cfg, err := config.ReadConfigFromViper(v)
			if err != nil {
				return err
			}
			return runAssemble(cmd.Context(), cfg, flagInput, flagScanRoot)
		},
	}

	cmd.Flags().StringVarP(&flagInput, "input", "i", "-", "Records file, JSON or YAML (use '-' for stdin)")
	cmd.Flags().StringVar(&flagScanRoot, "scan-root", "", "Directory the records were extracted from; its files are listed for file association")
	cmd.Flags().StringVar(&flagConfig, "config", "", "YAML configuration file")
	if err := config.RegisterFlags(v, cmd.Flags()); err != nil {
		// Flag names are static; a bind failure is a programming error.
		panic(err)
	}
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sbom-assembler v%s\n", toolVersion)
		},
	}
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runAssemble(ctx context.Context, cfg *config.Config, inputPath, scanRoot string) error {
	log, closeLog := logger.FromConfig(cfg.Logging)
	defer func() {
		_ = closeLog()
	}()

	log.Info().Str("version", toolVersion).Str("input", inputPath).Msg("sbom-assembler starting")

	doc, err := input.LoadFile(inputPath)
	if err != nil {
		return err
	}

	files := doc.Files
	if scanRoot != "" {
		absRoot, err := filepath.Abs(scanRoot)
		if err != nil {
			return fmt.Errorf("cannot resolve directory %q: %w", scanRoot, err)
		}
		info, err := os.Stat(absRoot)
		if err != nil {
			return fmt.Errorf("directory %q does not exist: %w", absRoot, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%q is not a directory", absRoot)
		}
		walked, err := input.WalkFiles(ctx, absRoot)
		if err != nil {
			return fmt.Errorf("listing files under %s: %w", absRoot, err)
		}
		log.Debug().Str("root", absRoot).Int("files", len(walked)).Msg("listed scanned files")
		files = append(files, walked...)
	}
	doc.Files = files

	a := assembly.New(log)
	a.Disabled = cfg.Assembly.Disabled
	a.ExcludePatterns = cfg.Assembly.Exclude
	a.Workers = cfg.Assembly.Workers
	a.AssignUnclaimedFiles = cfg.Assembly.AssignUnclaimedFiles
	a.Limits = pattern.Limits{
		MaxMatches: cfg.Assembly.MaxGlobMatches,
		MaxDepth:   cfg.Assembly.MaxGlobDepth,
	}

	res, err := a.Assemble(doc.Records, doc.WithRecordPaths())
	if err != nil {
		return fmt.Errorf("assembly failed: %w", err)
	}

	log.Info().
		Int("records", len(doc.Records)).
		Int("packages", len(res.Packages)).
		Int("dependencies", len(res.Dependencies)).
		Int("unattached", len(res.Unattached)).
		Msg("assembly complete")

	if err := output.Write(cfg.Output.Format, res, cfg.Output.Path, toolVersion); err != nil {
		return fmt.Errorf("failed to write %s output: %w", cfg.Output.Format, err)
	}
	if cfg.Output.Path != "-" {
		log.Info().Str("path", cfg.Output.Path).Msg("result written")
	}
	return nil
}
