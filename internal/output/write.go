// Package output provides SBOM serializers for an assembly result.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"

	"github.com/StinkyLord/sbom-assembler/internal/assembly"
	"github.com/StinkyLord/sbom-assembler/internal/config"
)

// Write serialises res in the given format to outputPath. If outputPath is
// "-", it writes to stdout.
func Write(format string, res *assembly.Result, outputPath, toolVersion string) error {
	switch format {
	case config.FormatJSON:
		return WriteJSON(res, outputPath, toolVersion)
	case config.FormatCycloneDX, "cdx":
		return WriteCycloneDX(res, outputPath, toolVersion)
	case config.FormatProtobom:
		return WriteProtobom(res, outputPath, toolVersion)
	case config.FormatTree:
		return WriteDependencyTree(res, outputPath)
	default:
		return fmt.Errorf("unsupported format %q (supported: json, cyclonedx, protobom, tree)", format)
	}
}

// writeJSON marshals v as indented JSON and writes it to outputPath (or stdout if "-").
func writeJSON(outputPath string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return writeBytes(outputPath, data)
}

func writeBytes(outputPath string, data []byte) error {
	if outputPath == "-" {
		return writeTo(os.Stdout, data)
	}
	return os.WriteFile(outputPath, append(data, '\n'), 0o644)
}

func writeTo(w io.Writer, data []byte) error {
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
