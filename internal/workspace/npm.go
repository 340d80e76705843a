package workspace

import (
	"slices"
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/StinkyLord/sbom-assembler/internal/model"
)

var npmDatasources = []model.DatasourceID{
	model.NpmPackageJson,
	model.NpmPackageLockJson,
	model.YarnLock,
	model.PnpmLockYaml,
	model.PnpmWorkspaceYaml,
}

// NpmTool handles the "workspaces" field of a root package.json, as used by
// npm and yarn. The field is either a pattern list or an object with a
// "packages" list.
type NpmTool struct{}

func (*NpmTool) Name() string { return "npm" }

func (*NpmTool) Ecosystem() string { return "npm" }

func (*NpmTool) Detect(records []*model.ExtractedRecord) []*Root {
	var roots []*Root
	for _, rec := range records {
		if rec.DatasourceID != model.NpmPackageJson || isNodeModules(rec.SourcePath) {
			continue
		}
		patterns := npmWorkspacePatterns(rec.ExtraData["workspaces"])
		if len(patterns) == 0 {
			continue
		}
		inc, exc := splitPatterns(patterns)
		roots = append(roots, &Root{
			Dir:      rec.Dir(),
			Manifest: rec,
			Config:   rec,
			Include:  inc,
			Exclude:  exc,
		})
	}
	return withTool(&NpmTool{}, roots)
}

func (*NpmTool) IsMemberManifest(rec *model.ExtractedRecord) bool {
	return rec.DatasourceID == model.NpmPackageJson
}

func (*NpmTool) Handles(rec *model.ExtractedRecord) bool {
	return slices.Contains(npmDatasources, rec.DatasourceID)
}

func (*NpmTool) BuildDirs() []string { return []string{"node_modules"} }

func (*NpmTool) Prepare(_ *Root, records []*model.ExtractedRecord) []*model.ExtractedRecord {
	return records
}

func (*NpmTool) Resolve(_ *Root, dep *model.Dependency, members map[string]string) (bool, bool) {
	return resolveWorkspaceProtocol(dep, members)
}

// resolveWorkspaceProtocol rewrites a "workspace:" requirement into the
// concrete requirement it stands for:
//
//	workspace:*      -> member version
//	workspace:^      -> ^member version
//	workspace:^1.2.0 -> ^1.2.0
//
// The named member must exist in every case.
func resolveWorkspaceProtocol(dep *model.Dependency, members map[string]string) (bool, bool) {
	spec, ok := strings.CutPrefix(dep.Requirement, "workspace:")
	if !ok {
		return false, false
	}
	ver, found := members[dep.Name()]
	if !found {
		return true, false
	}
	spec = strings.TrimSpace(spec)
	switch spec {
	case "", "*":
		dep.Requirement = ver
	case "^", "~", ">", "<", "=", ">=", "<=":
		dep.Requirement = spec + ver
	default:
		if !validRequirement(spec) {
			return true, false
		}
		dep.Requirement = spec
	}
	return true, true
}

// validRequirement reports whether spec is a concrete version or a version
// constraint.
func validRequirement(spec string) bool {
	s := strings.TrimLeft(spec, "^~=v")
	if _, err := version.NewVersion(s); err == nil {
		return true
	}
	_, err := version.NewConstraint(spec)
	return err == nil
}

func npmWorkspacePatterns(v any) []string {
	if list := model.AsStrings(v); len(list) > 0 {
		return list
	}
	if obj := model.AsMap(v); obj != nil {
		return model.AsStrings(obj["packages"])
	}
	return nil
}

func isNodeModules(p string) bool {
	return strings.HasPrefix(p, "node_modules/") || strings.Contains(p, "/node_modules/")
}

func withTool(t Tool, roots []*Root) []*Root {
	for _, r := range roots {
		r.Tool = t
	}
	return roots
}
