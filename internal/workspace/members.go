package workspace

import (
	"fmt"
	"sort"
	"strings"

	"github.com/StinkyLord/sbom-assembler/internal/model"
)

// discoverMembers expands the root's member patterns over the directories
// holding member manifests below the root. Bad patterns and truncated
// expansions do not stop discovery; they come back as diagnostics.
func discoverMembers(in Input, records []*model.ExtractedRecord, root *Root) ([]*member, []model.Diagnostic) {
	tool := root.Tool
	manifests := map[string]*model.ExtractedRecord{}
	for _, rec := range records {
		// A name is enough: the version may still be inherited.
		if !tool.IsMemberManifest(rec) || (rec.Name == "" && !rec.HasIdentity()) {
			continue
		}
		dir := rec.Dir()
		if dir == root.Dir || !model.IsUnder(dir, root.Dir) {
			continue
		}
		rel := model.RelTo(dir, root.Dir)
		if hasBuildSegment(rel, tool.BuildDirs()) {
			continue
		}
		if _, ok := manifests[rel]; !ok {
			manifests[rel] = rec
		}
	}
	rels := make([]string, 0, len(manifests))
	for rel := range manifests {
		rels = append(rels, rel)
	}

	var diags []model.Diagnostic
	matched := map[string]bool{}
	for _, inc := range root.Include {
		exp, err := in.Matcher.Expand(inc, rels, in.Limits)
		if err != nil {
			diags = append(diags, patternDiagnostic(root, inc, err))
			in.Log.Warn().Err(err).Str("pattern", inc).Msg("skipping malformed workspace pattern")
			continue
		}
		if exp.Truncated {
			diags = append(diags, model.Diagnostic{
				Kind:    model.DiagGlobTruncated,
				Message: fmt.Sprintf("pattern %q matched more than %d directories; the rest were ignored", inc, in.Limits.MaxMatches),
				Path:    root.Dir,
			})
			in.Log.Warn().Str("pattern", inc).Int("max_matches", in.Limits.MaxMatches).Msg("workspace pattern expansion truncated")
		}
		if exp.DepthLimited {
			diags = append(diags, model.Diagnostic{
				Kind:    model.DiagGlobTruncated,
				Message: fmt.Sprintf("pattern %q matched directories deeper than %d segments; they were ignored", inc, in.Limits.MaxDepth),
				Path:    root.Dir,
			})
			in.Log.Warn().Str("pattern", inc).Int("max_depth", in.Limits.MaxDepth).Msg("workspace pattern expansion depth limited")
		}
		for _, rel := range exp.Matches {
			matched[rel] = true
		}
	}

	var members []*member
	for rel := range matched {
		if excluded, d := isExcluded(in, root, rel, &diags); excluded {
			in.Log.Debug().Str("member", rel).Str("by", d).Msg("workspace member excluded")
			continue
		}
		dir := joinDir(root.Dir, rel)
		members = append(members, &member{
			dir:      dir,
			manifest: manifests[rel],
			records:  memberRecords(tool, records, dir, manifests[rel]),
		})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].dir < members[j].dir })
	return members, dedupDiagnostics(diags)
}

// isExcluded checks the tool's own exclusions against the member directory
// relative to the root, and the invocation's exclusions against both the
// relative and the scan-root path.
func isExcluded(in Input, root *Root, rel string, diags *[]model.Diagnostic) (bool, string) {
	for _, ex := range root.Exclude {
		ok, err := in.Matcher.MatchAnchored(rel, ex)
		if err != nil {
			*diags = append(*diags, patternDiagnostic(root, ex, err))
			continue
		}
		if ok {
			return true, ex
		}
	}
	full := joinDir(root.Dir, rel)
	for _, ex := range in.Exclude {
		for _, p := range []string{full, rel} {
			ok, err := in.Matcher.MatchAnchored(p, ex)
			if err != nil {
				*diags = append(*diags, patternDiagnostic(root, ex, err))
				break
			}
			if ok {
				return true, ex
			}
		}
	}
	return false, ""
}

// memberRecords returns the manifest first, then every other record of the
// tool sitting in the member directory.
func memberRecords(tool Tool, records []*model.ExtractedRecord, dir string, manifest *model.ExtractedRecord) []*model.ExtractedRecord {
	out := []*model.ExtractedRecord{manifest}
	for _, rec := range records {
		if rec == manifest || rec.Dir() != dir || !tool.Handles(rec) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func patternDiagnostic(root *Root, pat string, err error) model.Diagnostic {
	return model.Diagnostic{
		Kind:    model.DiagMalformedPattern,
		Message: fmt.Sprintf("workspace pattern %q: %v", pat, err),
		Path:    root.Dir,
	}
}

func dedupDiagnostics(diags []model.Diagnostic) []model.Diagnostic {
	seen := map[model.Diagnostic]bool{}
	out := diags[:0]
	for _, d := range diags {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}

func hasBuildSegment(rel string, buildDirs []string) bool {
	for _, seg := range strings.Split(rel, "/") {
		for _, b := range buildDirs {
			if seg == b {
				return true
			}
		}
	}
	return false
}

func joinDir(dir, rel string) string {
	if dir == "" {
		return rel
	}
	return dir + "/" + rel
}

// splitPatterns separates include patterns from "!"-prefixed exclusions and
// normalizes both to slash paths without a leading "./" or trailing "/".
func splitPatterns(patterns []string) (include, exclude []string) {
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		neg := strings.HasPrefix(p, "!")
		p = strings.TrimPrefix(p, "!")
		p = strings.TrimPrefix(p, "./")
		p = strings.TrimSuffix(p, "/")
		if p == "" || p == "." {
			continue
		}
		if neg {
			exclude = append(exclude, p)
		} else {
			include = append(include, p)
		}
	}
	return include, exclude
}
