package assembly

import (
	"fmt"
	"sort"

	"github.com/StinkyLord/sbom-assembler/internal/assemblers"
	"github.com/StinkyLord/sbom-assembler/internal/model"
)

func (a *Assembler) siblingPass(buckets []siblingBucket) []groupResult {
	return a.runGroups(len(buckets), func(i int) groupResult {
		b := buckets[i]
		return mergeGroup(b.config, b.records)
	})
}

// mergeGroup merges one group of related records into a single package.
//
// Records are ordered by the index of the first config pattern matching
// them, then by path; records matching no pattern go last. The first record
// with a usable identity seeds the package, every other record only fills
// empty scalars and adds to the list fields. Without any usable identity no
// package is created and every record is reported unattached.
func mergeGroup(cfg *assemblers.Config, records []*model.ExtractedRecord) groupResult {
	ordered := orderByPrecedence(cfg, records)

	var seed *model.ExtractedRecord
	for _, rec := range ordered {
		if rec.HasIdentity() {
			seed = rec
			break
		}
	}
	if seed == nil {
		return groupResult{unattached: unattach(ordered)}
	}

	pkg := model.NewPackage(seed, cfg.PackageType)
	for _, rec := range ordered {
		if rec != seed {
			pkg.Update(rec)
		}
	}

	var deps model.DependencySet
	var claimed []string
	for _, rec := range ordered {
		claimed = appendPath(claimed, rec.SourcePath)
		attachDependencies(pkg, rec, &deps)
	}
	return groupResult{pkg: pkg, deps: deps.Items(), claimed: claimed}
}

// singleRecord turns one record into its own package.
func singleRecord(rec *model.ExtractedRecord, fallbackType string) groupResult {
	if !rec.HasIdentity() {
		return groupResult{unattached: unattach([]*model.ExtractedRecord{rec})}
	}
	pkg := model.NewPackage(rec, fallbackType)
	var deps model.DependencySet
	attachDependencies(pkg, rec, &deps)
	return groupResult{pkg: pkg, deps: deps.Items(), claimed: []string{rec.SourcePath}}
}

// attachDependencies adds rec's dependencies to pkg. Dependencies without a
// purl cannot be referenced and are dropped with a diagnostic on pkg.
func attachDependencies(pkg *model.Package, rec *model.ExtractedRecord, deps *model.DependencySet) {
	for _, d := range rec.Dependencies {
		dep := model.NewDependency(d, pkg.UID, rec)
		if dep == nil {
			pkg.AddDiagnostic(model.Diagnostic{
				Kind:    model.DiagDependencyWithoutPURL,
				Message: fmt.Sprintf("dependency %q declared without a package url was dropped", d.Requirement),
				Path:    rec.SourcePath,
			})
			continue
		}
		deps.Add(dep)
	}
}

func unattach(records []*model.ExtractedRecord) []model.UnattachedRecord {
	out := make([]model.UnattachedRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, model.UnattachedRecord{
			SourcePath:   rec.SourcePath,
			DatasourceID: rec.DatasourceID,
			Dependencies: rec.Dependencies,
			Diagnostics: []model.Diagnostic{{
				Kind:    model.DiagUnresolvableIdentity,
				Message: "no package url or name and version in this record or its siblings",
				Path:    rec.SourcePath,
			}},
		})
	}
	return out
}

type ranked struct {
	rec  *model.ExtractedRecord
	rank int
	pos  int
}

func orderByPrecedence(cfg *assemblers.Config, records []*model.ExtractedRecord) []*model.ExtractedRecord {
	rs := make([]ranked, len(records))
	for i, rec := range records {
		rank := cfg.PatternIndex(rec.SourcePath)
		if rank < 0 {
			rank = len(cfg.Patterns)
		}
		rs[i] = ranked{rec: rec, rank: rank, pos: i}
	}
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].rank != rs[j].rank {
			return rs[i].rank < rs[j].rank
		}
		if rs[i].rec.SourcePath != rs[j].rec.SourcePath {
			return rs[i].rec.SourcePath < rs[j].rec.SourcePath
		}
		return rs[i].pos < rs[j].pos
	})
	out := make([]*model.ExtractedRecord, len(rs))
	for i, r := range rs {
		out[i] = r.rec
	}
	return out
}

func appendPath(paths []string, p string) []string {
	for _, existing := range paths {
		if existing == p {
			return paths
		}
	}
	return append(paths, p)
}
