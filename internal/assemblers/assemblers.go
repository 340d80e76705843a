// Package assemblers holds the compiled-in table that maps record datasource
// ids to the merge strategy used to assemble them into packages.
package assemblers

import (
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/StinkyLord/sbom-assembler/internal/model"
	"github.com/StinkyLord/sbom-assembler/internal/pattern"
)

// Mode is the merge strategy for a group of datasources.
type Mode int

const (
	// SiblingMerge merges records whose files share a directory.
	SiblingMerge Mode = iota
	// NestedMerge merges records under a common anchor directory.
	NestedMerge
	// OnePerRecord turns every record into its own package.
	OnePerRecord
)

func (m Mode) String() string {
	switch m {
	case SiblingMerge:
		return "sibling"
	case NestedMerge:
		return "nested"
	case OnePerRecord:
		return "one-per-record"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Pattern is one file pattern of a config. AnchorLevelsUp is only used in
// NestedMerge mode: the number of directories to ascend from the matched
// file's parent to reach the anchor.
type Pattern struct {
	Glob           string
	AnchorLevelsUp int
}

// Config describes how one group of datasources is assembled.
type Config struct {
	Key           string
	DatasourceIDs []model.DatasourceID
	Mode          Mode
	// Patterns are ordered: a lower index takes precedence when merging.
	Patterns []Pattern
	// PackageType is used to build a purl for records that carry neither a
	// purl nor a type.
	PackageType string
	// DBPathSuffix maps an installed-database datasource to the path of its
	// database file relative to the filesystem root it describes.
	DBPathSuffix map[model.DatasourceID]string
	// NamespaceFromOSRelease propagates the distribution namespace found in
	// the root's os-release file to the packages.
	NamespaceFromOSRelease bool
}

// Handles reports whether id belongs to this config.
func (c *Config) Handles(id model.DatasourceID) bool {
	for _, d := range c.DatasourceIDs {
		if d == id {
			return true
		}
	}
	return false
}

// PatternIndex returns the index of the first pattern matching p, or -1.
// Patterns without a "/" are matched against the file name.
func (c *Config) PatternIndex(p string) int {
	for i, pat := range c.Patterns {
		target := p
		if !strings.Contains(pat.Glob, "/") {
			target = path.Base(p)
		}
		if pattern.Match(target, pat.Glob) {
			return i
		}
	}
	return -1
}

// Lookup returns the config handling datasource id.
func Lookup(id model.DatasourceID) (*Config, bool) {
	c, ok := index()[id]
	return c, ok
}

var index = sync.OnceValue(func() map[model.DatasourceID]*Config {
	m := make(map[model.DatasourceID]*Config)
	for i := range Table {
		for _, id := range Table[i].DatasourceIDs {
			if _, dup := m[id]; !dup {
				m[id] = &Table[i]
			}
		}
	}
	return m
})

// Validate checks the table: every pattern compiles, every nested pattern has
// a non-negative anchor, installed-database configs declare their layout and
// no datasource id belongs to two configs.
func Validate() error {
	seen := make(map[model.DatasourceID]string)
	m := pattern.NewMatcher()
	for _, c := range Table {
		if c.Key == "" {
			return fmt.Errorf("assembler config without key")
		}
		if len(c.Patterns) == 0 {
			return fmt.Errorf("assembler %s: no patterns", c.Key)
		}
		for _, id := range c.DatasourceIDs {
			if other, ok := seen[id]; ok {
				return fmt.Errorf("datasource %s claimed by %s and %s", id, other, c.Key)
			}
			seen[id] = c.Key
			if c.Mode == OnePerRecord && c.DBPathSuffix[id] == "" {
				return fmt.Errorf("assembler %s: no database path for %s", c.Key, id)
			}
		}
		for _, p := range c.Patterns {
			if err := m.Validate(p.Glob); err != nil {
				return fmt.Errorf("assembler %s: %w", c.Key, err)
			}
			if p.AnchorLevelsUp < 0 {
				return fmt.Errorf("assembler %s: pattern %q: negative anchor level", c.Key, p.Glob)
			}
		}
	}
	return nil
}
