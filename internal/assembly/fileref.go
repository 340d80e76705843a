package assembly

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/StinkyLord/sbom-assembler/internal/model"
)

// osReleasePaths are tried in order below an installed-database root.
var osReleasePaths = []string{"etc/os-release", "usr/lib/os-release"}

// DBRoot returns the filesystem root implied by an installed-database file:
// datafilePath with suffix and everything after it removed. For
// "rootfs/var/lib/dpkg/status" and suffix "var/lib/dpkg/status" it is
// "rootfs/". The empty string is the scan root.
func DBRoot(datafilePath, suffix string) string {
	if suffix == "" {
		return ""
	}
	i := strings.LastIndex(datafilePath, suffix)
	if i <= 0 {
		return ""
	}
	return datafilePath[:i]
}

// resolveFileReferences links installed-database packages to the scanned
// files they declare. Roots are independent and resolved in parallel; each
// package belongs to exactly one root.
func (a *Assembler) resolveFileReferences(db []groupResult, fa *model.FileAssociations, byPath map[string][]*model.ExtractedRecord) {
	roots := map[string][]groupResult{}
	for _, g := range db {
		root := DBRoot(g.record.SourcePath, g.config.DBPathSuffix[g.record.DatasourceID])
		roots[root] = append(roots[root], g)
	}
	if len(roots) == 0 {
		return
	}

	names := make([]string, 0, len(roots))
	for r := range roots {
		names = append(names, r)
	}
	sort.Strings(names)
	all := fa.Paths()

	var eg errgroup.Group
	eg.SetLimit(max(a.Workers, 1))
	for _, root := range names {
		eg.Go(func() error {
			index := pathIndex(all, root)
			missing := 0
			for _, g := range roots[root] {
				missing += resolvePackage(g, root, index, fa)
				if g.config.NamespaceFromOSRelease {
					if ns := osReleaseNamespace(root, byPath); ns != "" {
						propagateNamespace(g, ns)
					}
				}
			}
			a.Log.Debug().
				Str("root", root).
				Int("packages", len(roots[root])).
				Int("missing_refs", missing).
				Msg("resolved file references")
			return nil
		})
	}
	_ = eg.Wait()
}

// pathIndex returns the scanned paths under root.
func pathIndex(all []string, root string) map[string]struct{} {
	index := make(map[string]struct{})
	for _, p := range all {
		if strings.HasPrefix(p, root) {
			index[p] = struct{}{}
		}
	}
	return index
}

// resolvePackage claims every referenced file present under root for the
// package and records the rest as missing. It returns the missing count.
func resolvePackage(g groupResult, root string, index map[string]struct{}, fa *model.FileAssociations) int {
	pkg := g.pkg
	var missing []string
	for _, ref := range pkg.FileReferences {
		resolved := root + strings.TrimPrefix(ref.Path, "/")
		if _, ok := index[resolved]; ok {
			fa.Add(resolved, pkg.UID)
			continue
		}
		missing = append(missing, ref.Path)
	}
	if len(missing) == 0 {
		return 0
	}

	sort.Strings(missing)
	missing = compact(missing)
	pkg.MissingFileReferences = missing
	extra := make([]map[string]any, 0, len(missing))
	for _, m := range missing {
		extra = append(extra, map[string]any{"path": m})
		pkg.AddDiagnostic(model.Diagnostic{
			Kind:    model.DiagMissingFileReference,
			Message: fmt.Sprintf("declared file %q not found under %q", m, rootLabel(root)),
			Path:    m,
		})
	}
	pkg.SetExtra("missing_file_references", extra)
	return len(missing)
}

func osReleaseNamespace(root string, byPath map[string][]*model.ExtractedRecord) string {
	for _, p := range osReleasePaths {
		for _, rec := range byPath[root+p] {
			if rec.DatasourceID == model.EtcOsRelease && rec.Namespace != "" {
				return rec.Namespace
			}
		}
	}
	return ""
}

func propagateNamespace(g groupResult, ns string) {
	g.pkg.Namespace = ns
	for _, d := range g.deps {
		d.Namespace = ns
	}
}

func rootLabel(root string) string {
	if root == "" {
		return "/"
	}
	return root
}

func compact(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}
