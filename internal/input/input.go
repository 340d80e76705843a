// Package input loads the records produced by the parsers and the list of
// scanned files.
package input

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/StinkyLord/sbom-assembler/internal/model"
)

// Document is the input of one assembly run.
type Document struct {
	Records []model.ExtractedRecord `json:"records" yaml:"records"`
	// Files lists every scanned path relative to the scan root.
	Files []string `json:"files,omitempty" yaml:"files,omitempty"`
}

// Format of an input document.
type Format int

const (
	JSON Format = iota
	YAML
)

// FormatForPath picks the decoder from the file extension. Anything that is
// not .yaml or .yml is read as JSON.
func FormatForPath(p string) Format {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".yaml", ".yml":
		return YAML
	default:
		return JSON
	}
}

// LoadFile reads the document at path ("-" for stdin).
func LoadFile(path string) (*Document, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(filepath.Clean(path))
	}
	if err != nil {
		return nil, fmt.Errorf("reading input %s: %w", path, err)
	}
	doc, err := Decode(data, FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("decoding input %s: %w", path, err)
	}
	return doc, nil
}

// Decode parses a document. Besides the {records, files} object, a bare
// list of records is accepted.
func Decode(data []byte, f Format) (*Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return &Document{}, nil
	}

	var doc Document
	switch f {
	case YAML:
		if trimmed[0] == '-' {
			if err := yaml.Unmarshal(trimmed, &doc.Records); err != nil {
				return nil, err
			}
		} else if err := yaml.Unmarshal(trimmed, &doc); err != nil {
			return nil, err
		}
	default:
		if trimmed[0] == '[' {
			if err := json.Unmarshal(trimmed, &doc.Records); err != nil {
				return nil, err
			}
		} else if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, err
		}
	}

	for i := range doc.Records {
		doc.Records[i].SourcePath = normalizePath(doc.Records[i].SourcePath)
		if doc.Records[i].ExtraData != nil {
			doc.Records[i].ExtraData = normalizeMap(doc.Records[i].ExtraData)
		}
	}
	for i := range doc.Files {
		doc.Files[i] = normalizePath(doc.Files[i])
	}
	return &doc, nil
}

// WithRecordPaths returns files plus every record source path missing from
// it, sorted. Datafiles are scanned files even when no file list was given.
func (d *Document) WithRecordPaths() []string {
	seen := make(map[string]struct{}, len(d.Files))
	out := make([]string, 0, len(d.Files)+len(d.Records))
	for _, f := range d.Files {
		if _, ok := seen[f]; !ok {
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}
	for _, r := range d.Records {
		if _, ok := seen[r.SourcePath]; !ok && r.SourcePath != "" {
			seen[r.SourcePath] = struct{}{}
			out = append(out, r.SourcePath)
		}
	}
	sort.Strings(out)
	return out
}

// skippedDirs are never descended into by WalkFiles.
var skippedDirs = map[string]struct{}{
	".git": {},
	".hg":  {},
	".svn": {},
}

// WalkFiles lists the regular files below root as slash-separated paths
// relative to root. Symlinks are listed but never followed.
func WalkFiles(ctx context.Context, root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan root %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root %q is not a directory", root)
	}

	var files []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrPermission) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if _, skip := skippedDirs[d.Name()]; skip && p != root {
				return fs.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

func normalizePath(p string) string {
	p = filepath.ToSlash(p)
	p = strings.TrimPrefix(p, "./")
	return strings.TrimPrefix(p, "/")
}

// normalizeMap turns map[any]any values left by YAML into map[string]any so
// the assembler sees one shape regardless of input format.
func normalizeMap(m map[string]any) map[string]any {
	for k, v := range m {
		m[k] = normalizeValue(v)
	}
	return m
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return normalizeMap(t)
	case map[any]any:
		return normalizeMap(model.AsMap(t))
	case []any:
		for i := range t {
			t[i] = normalizeValue(t[i])
		}
		return t
	default:
		return v
	}
}
