package assembly

import (
	"sort"

	"github.com/StinkyLord/sbom-assembler/internal/assemblers"
	"github.com/StinkyLord/sbom-assembler/internal/model"
)

// AnchorFor returns the anchor directory of a file matched by pat: its
// parent directory ascended pat.AnchorLevelsUp times. Ascending past the
// scan root stops at the root ("").
func AnchorFor(p string, pat assemblers.Pattern) string {
	dir := model.ParentDir(p)
	for i := 0; i < pat.AnchorLevelsUp && dir != ""; i++ {
		dir = model.ParentDir(dir)
	}
	return dir
}

// recordAnchor is the anchor of rec under cfg and the index of the pattern
// that produced it (-1 when no pattern matches and the parent dir is used).
func recordAnchor(cfg *assemblers.Config, rec *model.ExtractedRecord) (string, int) {
	idx := cfg.PatternIndex(rec.SourcePath)
	if idx < 0 {
		return rec.Dir(), -1
	}
	return AnchorFor(rec.SourcePath, cfg.Patterns[idx]), idx
}

// Candidates returns the indices of the records in recs, not yet marked in
// assigned, whose own anchor under cfg is anchor. Records matching no
// pattern only group with themselves and are never candidates. The result
// is ordered by pattern index, then path.
func Candidates(anchor string, cfg *assemblers.Config, recs []*model.ExtractedRecord, assigned []bool) []int {
	type cand struct {
		idx  int
		rank int
	}
	var cands []cand
	for i, rec := range recs {
		if assigned[i] {
			continue
		}
		a, rank := recordAnchor(cfg, rec)
		if rank < 0 || a != anchor {
			continue
		}
		cands = append(cands, cand{idx: i, rank: rank})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].rank != cands[j].rank {
			return cands[i].rank < cands[j].rank
		}
		return recs[cands[i].idx].SourcePath < recs[cands[j].idx].SourcePath
	})
	out := make([]int, len(cands))
	for i, c := range cands {
		out[i] = c.idx
	}
	return out
}

// nestedGroups partitions the records of one nested config into anchor
// groups. Seeds are visited in (pattern index, path) order and every record
// they claim is marked assigned, so no record lands in two groups.
func nestedGroups(cfg *assemblers.Config, recs []*model.ExtractedRecord) [][]*model.ExtractedRecord {
	seeds := make([]int, len(recs))
	ranks := make([]int, len(recs))
	for i, rec := range recs {
		seeds[i] = i
		_, ranks[i] = recordAnchor(cfg, rec)
		if ranks[i] < 0 {
			ranks[i] = len(cfg.Patterns)
		}
	}
	sort.SliceStable(seeds, func(i, j int) bool {
		a, b := seeds[i], seeds[j]
		if ranks[a] != ranks[b] {
			return ranks[a] < ranks[b]
		}
		return recs[a].SourcePath < recs[b].SourcePath
	})

	assigned := make([]bool, len(recs))
	var groups [][]*model.ExtractedRecord
	for _, s := range seeds {
		if assigned[s] {
			continue
		}
		anchor, rank := recordAnchor(cfg, recs[s])
		if rank < 0 {
			assigned[s] = true
			groups = append(groups, []*model.ExtractedRecord{recs[s]})
			continue
		}
		var group []*model.ExtractedRecord
		for _, idx := range Candidates(anchor, cfg, recs, assigned) {
			assigned[idx] = true
			group = append(group, recs[idx])
		}
		groups = append(groups, group)
	}
	return groups
}

func (a *Assembler) nestedPass(sets []nestedSet) []groupResult {
	type job struct {
		config  *assemblers.Config
		records []*model.ExtractedRecord
	}
	var jobs []job
	for _, s := range sets {
		groups := nestedGroups(s.config, s.records)
		a.Log.Debug().Str("assembler", s.config.Key).Int("groups", len(groups)).Msg("nested anchor groups")
		for _, g := range groups {
			jobs = append(jobs, job{config: s.config, records: g})
		}
	}
	return a.runGroups(len(jobs), func(i int) groupResult {
		return mergeGroup(jobs[i].config, jobs[i].records)
	})
}
