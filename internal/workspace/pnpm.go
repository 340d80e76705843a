package workspace

import (
	"slices"

	"github.com/StinkyLord/sbom-assembler/internal/model"
)

// PnpmTool handles pnpm-workspace.yaml. Unlike npm, a pnpm root that is
// itself a publishable package survives the merge and keeps the shared
// files and root dependencies.
type PnpmTool struct{}

func (*PnpmTool) Name() string { return "pnpm" }

func (*PnpmTool) Ecosystem() string { return "npm" }

func (*PnpmTool) Detect(records []*model.ExtractedRecord) []*Root {
	manifests := map[string]*model.ExtractedRecord{}
	for _, rec := range records {
		if rec.DatasourceID == model.NpmPackageJson && !isNodeModules(rec.SourcePath) {
			manifests[rec.SourcePath] = rec
		}
	}

	var roots []*Root
	for _, rec := range records {
		if rec.DatasourceID != model.PnpmWorkspaceYaml || isNodeModules(rec.SourcePath) {
			continue
		}
		patterns := rec.ExtraStrings("packages")
		if len(patterns) == 0 {
			patterns = rec.ExtraStrings("workspaces")
		}
		if len(patterns) == 0 {
			continue
		}
		inc, exc := splitPatterns(patterns)
		manifest := manifests[joinDir(rec.Dir(), "package.json")]
		roots = append(roots, &Root{
			Dir:      rec.Dir(),
			Manifest: manifest,
			Config:   rec,
			Include:  inc,
			Exclude:  exc,
			KeepRoot: manifest != nil && manifest.HasIdentity() && !manifest.IsPrivate,
		})
	}
	return withTool(&PnpmTool{}, roots)
}

func (*PnpmTool) IsMemberManifest(rec *model.ExtractedRecord) bool {
	return rec.DatasourceID == model.NpmPackageJson
}

func (*PnpmTool) Handles(rec *model.ExtractedRecord) bool {
	return slices.Contains(npmDatasources, rec.DatasourceID)
}

func (*PnpmTool) BuildDirs() []string { return []string{"node_modules"} }

func (*PnpmTool) Prepare(_ *Root, records []*model.ExtractedRecord) []*model.ExtractedRecord {
	return records
}

func (*PnpmTool) Resolve(_ *Root, dep *model.Dependency, members map[string]string) (bool, bool) {
	return resolveWorkspaceProtocol(dep, members)
}
