// Package assembly turns per-file extracted records into packages,
// dependencies and file associations.
package assembly

import (
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/StinkyLord/sbom-assembler/internal/assemblers"
	"github.com/StinkyLord/sbom-assembler/internal/model"
	"github.com/StinkyLord/sbom-assembler/internal/pattern"
	"github.com/StinkyLord/sbom-assembler/internal/workspace"
)

// Result is the representation-agnostic output of an assembly run.
type Result struct {
	Packages     []*model.Package
	Dependencies []*model.Dependency
	Files        *model.FileAssociations
	Unattached   []model.UnattachedRecord
}

// Assembler runs the merge passes over a record set.
type Assembler struct {
	// Disabled skips every pass and emits one package per record that
	// carries a usable identity.
	Disabled bool

	// ExcludePatterns are globs removed from workspace member discovery.
	ExcludePatterns []string

	// Limits bound glob expansion during member discovery.
	Limits pattern.Limits

	// Workers bounds the number of groups merged concurrently.
	Workers int

	// AssignUnclaimedFiles gives files no package claimed to the package
	// whose datafile directory is the closest ancestor.
	AssignUnclaimedFiles bool

	Log zerolog.Logger

	matcher *pattern.Matcher
}

// New creates an Assembler with default limits.
func New(log zerolog.Logger) *Assembler {
	return &Assembler{
		Limits:  pattern.DefaultLimits,
		Workers: runtime.NumCPU(),
		Log:     log,
		matcher: pattern.NewMatcher(),
	}
}

// groupResult is what merging one record group produces.
type groupResult struct {
	pkg        *model.Package
	deps       []*model.Dependency
	claimed    []string
	unattached []model.UnattachedRecord

	// Set for installed-database packages only.
	record *model.ExtractedRecord
	config *assemblers.Config
}

// passResult is the fan-in unit collected from the concurrent passes.
type passResult struct {
	name   string
	groups []groupResult
}

// Assemble runs every pass over records. files lists every scanned path
// relative to the scan root. The only error is an invalid built-in table.
func (a *Assembler) Assemble(records []model.ExtractedRecord, files []string) (*Result, error) {
	if err := assemblers.Validate(); err != nil {
		return nil, fmt.Errorf("invalid assembler table: %w", err)
	}
	if a.matcher == nil {
		a.matcher = pattern.NewMatcher()
	}

	fa := model.NewFileAssociations(files)
	recs := make([]*model.ExtractedRecord, len(records))
	for i := range records {
		recs[i] = &records[i]
	}

	if a.Disabled {
		res := a.assembleDisabled(recs, fa)
		a.Log.Info().
			Int("records", len(recs)).
			Int("packages", len(res.Packages)).
			Msg("assembly disabled, emitted one package per record")
		return res, nil
	}

	parts := partition(recs)
	a.Log.Debug().
		Int("sibling_buckets", len(parts.sibling)).
		Int("nested_configs", len(parts.nested)).
		Int("db_records", len(parts.expand)).
		Int("skipped", parts.skipped).
		Msg("partitioned records")

	// The three passes work on disjoint records. Run them concurrently and
	// fan their results in.
	resultCh := make(chan passResult, 3)
	var wg sync.WaitGroup
	for _, pass := range []struct {
		name string
		run  func() []groupResult
	}{
		{"sibling", func() []groupResult { return a.siblingPass(parts.sibling) }},
		{"nested", func() []groupResult { return a.nestedPass(parts.nested) }},
		{"expand", func() []groupResult { return a.expandPass(parts.expand) }},
	} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resultCh <- passResult{name: pass.name, groups: pass.run()}
		}()
	}
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	byPass := make(map[string][]groupResult, 3)
	for r := range resultCh {
		byPass[r.name] = r.groups
	}

	res := &Result{Files: fa}
	var db []groupResult
	for _, name := range []string{"sibling", "nested", "expand"} {
		groups := byPass[name]
		n := 0
		for _, g := range groups {
			res.Unattached = append(res.Unattached, g.unattached...)
			if g.pkg == nil {
				continue
			}
			n++
			res.Packages = append(res.Packages, g.pkg)
			res.Dependencies = append(res.Dependencies, g.deps...)
			for _, p := range g.claimed {
				fa.Add(p, g.pkg.UID)
			}
			if g.record != nil {
				db = append(db, g)
			}
		}
		a.Log.Info().Str("pass", name).Int("packages", n).Msg("merge pass complete")
	}

	byPath := indexByPath(recs)
	a.resolveFileReferences(db, fa, byPath)
	claimNodeModules(recs, res.Packages, fa)

	ws := workspace.Merge(workspace.Input{
		Packages:     res.Packages,
		Dependencies: res.Dependencies,
		Records:      byPath,
		Files:        fa,
		Merge:        mergeMember,
		Matcher:      a.matcher,
		Limits:       a.Limits,
		Exclude:      a.ExcludePatterns,
		Log:          a.Log,
	})
	res.Packages, res.Dependencies = ws.Packages, ws.Dependencies
	res.Unattached = dropAttached(res.Unattached, ws.Attached)
	res.Unattached = append(res.Unattached, ws.Unattached...)

	if a.AssignUnclaimedFiles {
		n := assignUnclaimedFiles(res.Packages, fa)
		a.Log.Debug().Int("files", n).Msg("assigned unclaimed files")
	}

	sort.SliceStable(res.Unattached, func(i, j int) bool {
		return res.Unattached[i].SourcePath < res.Unattached[j].SourcePath
	})
	a.Log.Info().
		Int("packages", len(res.Packages)).
		Int("dependencies", len(res.Dependencies)).
		Int("unattached", len(res.Unattached)).
		Msg("assembly complete")
	return res, nil
}

// assembleDisabled emits one package per identity-bearing record, with no
// merging.
func (a *Assembler) assembleDisabled(recs []*model.ExtractedRecord, fa *model.FileAssociations) *Result {
	res := &Result{Files: fa}
	for _, rec := range recs {
		g := singleRecord(rec, packageType(rec))
		res.Unattached = append(res.Unattached, g.unattached...)
		if g.pkg == nil {
			continue
		}
		res.Packages = append(res.Packages, g.pkg)
		res.Dependencies = append(res.Dependencies, g.deps...)
		fa.Add(rec.SourcePath, g.pkg.UID)
	}
	return res
}

// runGroups merges n independent groups with bounded concurrency. Each
// group writes only its own slot, so the output order is the input order.
func (a *Assembler) runGroups(n int, merge func(i int) groupResult) []groupResult {
	out := make([]groupResult, n)
	var g errgroup.Group
	g.SetLimit(max(a.Workers, 1))
	for i := 0; i < n; i++ {
		g.Go(func() error {
			out[i] = merge(i)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

type partitions struct {
	sibling []siblingBucket
	nested  []nestedSet
	expand  []dbRecord
	skipped int
}

type siblingBucket struct {
	config  *assemblers.Config
	dir     string
	records []*model.ExtractedRecord
}

type nestedSet struct {
	config  *assemblers.Config
	records []*model.ExtractedRecord
}

type dbRecord struct {
	config *assemblers.Config
	record *model.ExtractedRecord
}

// partition splits records by the mode of the config handling them.
// Buckets are sorted so that output order does not depend on map order.
func partition(recs []*model.ExtractedRecord) partitions {
	var parts partitions
	buckets := map[string]*siblingBucket{}
	nested := map[string]*nestedSet{}

	for _, rec := range recs {
		cfg, ok := assemblers.Lookup(rec.DatasourceID)
		if !ok {
			parts.skipped++
			continue
		}
		switch cfg.Mode {
		case assemblers.SiblingMerge:
			dir := rec.Dir()
			key := cfg.Key + "\x00" + dir
			b, ok := buckets[key]
			if !ok {
				b = &siblingBucket{config: cfg, dir: dir}
				buckets[key] = b
			}
			b.records = append(b.records, rec)
		case assemblers.NestedMerge:
			s, ok := nested[cfg.Key]
			if !ok {
				s = &nestedSet{config: cfg}
				nested[cfg.Key] = s
			}
			s.records = append(s.records, rec)
		case assemblers.OnePerRecord:
			parts.expand = append(parts.expand, dbRecord{config: cfg, record: rec})
		}
	}

	for _, b := range buckets {
		parts.sibling = append(parts.sibling, *b)
	}
	sort.Slice(parts.sibling, func(i, j int) bool {
		if parts.sibling[i].dir != parts.sibling[j].dir {
			return parts.sibling[i].dir < parts.sibling[j].dir
		}
		return parts.sibling[i].config.Key < parts.sibling[j].config.Key
	})
	for _, s := range nested {
		parts.nested = append(parts.nested, *s)
	}
	sort.Slice(parts.nested, func(i, j int) bool {
		return parts.nested[i].config.Key < parts.nested[j].config.Key
	})
	return parts
}

// mergeMember merges the records of one workspace member under the config
// of its manifest.
func mergeMember(records []*model.ExtractedRecord) (*model.Package, []*model.Dependency) {
	if len(records) == 0 {
		return nil, nil
	}
	cfg, ok := assemblers.Lookup(records[0].DatasourceID)
	if !ok {
		return nil, nil
	}
	g := mergeGroup(cfg, records)
	return g.pkg, g.deps
}

func packageType(rec *model.ExtractedRecord) string {
	if cfg, ok := assemblers.Lookup(rec.DatasourceID); ok {
		return cfg.PackageType
	}
	return ""
}

func dropAttached(unattached []model.UnattachedRecord, attached []string) []model.UnattachedRecord {
	if len(attached) == 0 {
		return unattached
	}
	gone := make(map[string]bool, len(attached))
	for _, p := range attached {
		gone[p] = true
	}
	out := unattached[:0]
	for _, u := range unattached {
		if !gone[u.SourcePath] {
			out = append(out, u)
		}
	}
	return out
}

func indexByPath(recs []*model.ExtractedRecord) map[string][]*model.ExtractedRecord {
	out := make(map[string][]*model.ExtractedRecord, len(recs))
	for _, rec := range recs {
		out[rec.SourcePath] = append(out[rec.SourcePath], rec)
	}
	return out
}
