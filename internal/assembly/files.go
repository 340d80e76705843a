package assembly

import (
	"slices"
	"strings"

	"github.com/StinkyLord/sbom-assembler/internal/model"
)

// excludedDirs are never searched for an owning package by
// assignUnclaimedFiles.
var excludedDirs = map[string]struct{}{
	"node_modules": {},
	".git":         {},
	"target":       {},
	"vendor":       {},
	"venv":         {},
	".venv":        {},
	"__pycache__":  {},
}

const nodeModules = "node_modules"

// claimNodeModules gives every file of an installed npm dependency (a
// node_modules/<name> directory holding a package.json record) to the npm
// project whose manifest sits next to that node_modules directory.
func claimNodeModules(recs []*model.ExtractedRecord, packages []*model.Package, fa *model.FileAssociations) {
	projects := map[string]string{}
	for _, p := range packages {
		if !slices.Contains(p.DatasourceIDs, model.NpmPackageJson) {
			continue
		}
		for _, df := range p.DatafilePaths {
			if isNodeModulesPath(df) {
				continue
			}
			dir := model.ParentDir(df)
			if _, ok := projects[dir]; !ok {
				projects[dir] = p.UID
			}
		}
	}
	if len(projects) == 0 {
		return
	}

	owners := map[string]string{}
	for _, rec := range recs {
		if rec.DatasourceID != model.NpmPackageJson || !rec.HasIdentity() {
			continue
		}
		project, ok := nodeModulesProject(rec.SourcePath)
		if !ok {
			continue
		}
		if uid, ok := projects[project]; ok {
			owners[rec.Dir()] = uid
		}
	}
	if len(owners) == 0 {
		return
	}

	for _, p := range fa.Paths() {
		dir, ok := installedPackageDir(p)
		if !ok {
			continue
		}
		if uid, ok := owners[dir]; ok {
			fa.Add(p, uid)
		}
	}
}

// nodeModulesProject returns the directory holding the first node_modules
// segment of p.
func nodeModulesProject(p string) (string, bool) {
	if strings.HasPrefix(p, nodeModules+"/") {
		return "", true
	}
	i := strings.Index(p, "/"+nodeModules+"/")
	if i < 0 {
		return "", false
	}
	return p[:i], true
}

// installedPackageDir returns the node_modules/<name> (or
// node_modules/@scope/<name>) directory that contains p.
func installedPackageDir(p string) (string, bool) {
	var prefix, rest string
	if after, ok := strings.CutPrefix(p, nodeModules+"/"); ok {
		prefix, rest = nodeModules+"/", after
	} else if i := strings.Index(p, "/"+nodeModules+"/"); i >= 0 {
		prefix, rest = p[:i+len(nodeModules)+2], p[i+len(nodeModules)+2:]
	} else {
		return "", false
	}
	parts := strings.SplitN(rest, "/", 3)
	if strings.HasPrefix(rest, "@") {
		if len(parts) < 3 {
			return "", false
		}
		return prefix + parts[0] + "/" + parts[1], true
	}
	if len(parts) < 2 {
		return "", false
	}
	return prefix + parts[0], true
}

func isNodeModulesPath(p string) bool {
	return strings.HasPrefix(p, nodeModules+"/") || strings.Contains(p, "/"+nodeModules+"/")
}

// assignUnclaimedFiles gives each file without any claim to the package
// whose datafile directory is its nearest ancestor. Files below excluded
// directories stay unclaimed. Installed-database packages own only the files
// they declare and are not candidates. It returns the number of files
// assigned.
func assignUnclaimedFiles(packages []*model.Package, fa *model.FileAssociations) int {
	owners := map[string]string{}
	for _, p := range packages {
		if len(p.FileReferences) > 0 {
			continue
		}
		for _, df := range p.DatafilePaths {
			dir := model.ParentDir(df)
			if _, ok := owners[dir]; !ok {
				owners[dir] = p.UID
			}
		}
	}
	if len(owners) == 0 {
		return 0
	}

	n := 0
	for _, p := range fa.Paths() {
		if len(fa.Get(p)) > 0 || inExcludedDir(p) {
			continue
		}
		dir := model.ParentDir(p)
		for {
			if uid, ok := owners[dir]; ok {
				fa.Add(p, uid)
				n++
				break
			}
			if dir == "" {
				break
			}
			dir = model.ParentDir(dir)
		}
	}
	return n
}

func inExcludedDir(p string) bool {
	segs := strings.Split(p, "/")
	for _, s := range segs[:len(segs)-1] {
		if _, ok := excludedDirs[s]; ok {
			return true
		}
	}
	return false
}
