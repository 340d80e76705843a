// Package workspace splits monorepo aggregate packages into one package per
// workspace member. It runs after every other pass, over the complete
// package set, and returns a new collection instead of editing the old one.
package workspace

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/StinkyLord/sbom-assembler/internal/model"
	"github.com/StinkyLord/sbom-assembler/internal/pattern"
)

// Tool is the interface every workspace-capable package manager implements.
type Tool interface {
	Name() string

	// Ecosystem names the member manifests the tool works on. Two tools of
	// one ecosystem declaring the same root claim the same members.
	Ecosystem() string

	// Detect returns the workspace roots declared by records. records is
	// sorted by path.
	Detect(records []*model.ExtractedRecord) []*Root

	// IsMemberManifest reports whether rec is the manifest of a package that
	// can be a workspace member.
	IsMemberManifest(rec *model.ExtractedRecord) bool

	// Handles reports whether rec belongs to this tool's ecosystem (member
	// manifests, lockfiles, workspace configs).
	Handles(rec *model.ExtractedRecord) bool

	// BuildDirs are directories holding tool output. They never contain
	// members and their files are never shared.
	BuildDirs() []string

	// Prepare returns the records a member package is built from, with
	// workspace-level fields inherited. records must not be modified.
	Prepare(root *Root, records []*model.ExtractedRecord) []*model.ExtractedRecord

	// Resolve rewrites a workspace marker in dep's requirement. handled is
	// false when dep carries no marker; resolved is false when the marker
	// names nothing that can be found.
	Resolve(root *Root, dep *model.Dependency, members map[string]string) (handled, resolved bool)
}

// Root is one detected workspace root.
type Root struct {
	Tool Tool
	// Dir is the root directory ("" for the scan root).
	Dir string
	// Manifest is the root manifest record. pnpm roots may have none.
	Manifest *model.ExtractedRecord
	// Config is the record that declared the workspace.
	Config *model.ExtractedRecord

	Include []string
	Exclude []string

	// KeepRoot keeps the root package: shared files and root dependencies
	// go to it instead of to every member.
	KeepRoot bool

	// Shared holds tool-specific workspace-level settings.
	Shared map[string]any
	// SharedDeps holds workspace-level dependency declarations by name.
	SharedDeps map[string]any
}

// MergeFunc merges the records of one member into a package and its
// dependencies, using the same rules as the sibling pass.
type MergeFunc func(records []*model.ExtractedRecord) (*model.Package, []*model.Dependency)

// Input is the complete state after the earlier passes.
type Input struct {
	Packages     []*model.Package
	Dependencies []*model.Dependency
	// Records indexes every extracted record by source path.
	Records map[string][]*model.ExtractedRecord
	Files   *model.FileAssociations
	Merge   MergeFunc

	Matcher *pattern.Matcher
	Limits  pattern.Limits
	// Exclude are per-invocation globs removed from member discovery.
	Exclude []string
	Tools   []Tool
	Log     zerolog.Logger
}

// Output is the package collection with superseded packages retired.
type Output struct {
	Packages     []*model.Package
	Dependencies []*model.Dependency
	// Attached lists the source paths now carried by a member package.
	// Records whose identity only became complete through inheritance were
	// unattached before the merge.
	Attached []string
	// Unattached holds the records of retired packages that no member
	// carries, such as the root manifest of a workspace.
	Unattached []model.UnattachedRecord
}

// DefaultTools are the workspace tools known to the engine.
func DefaultTools() []Tool {
	return []Tool{&NpmTool{}, &PnpmTool{}, &CargoTool{}}
}

// Merge detects every workspace root and replaces its aggregate packages
// with per-member packages. Roots are processed one at a time, each over
// the collection left by the previous one. Roots of different ecosystems
// in one directory are merged independently.
func Merge(in Input) Output {
	out := Output{Packages: in.Packages, Dependencies: in.Dependencies}
	if in.Matcher == nil {
		in.Matcher = pattern.NewMatcher()
	}
	if in.Tools == nil {
		in.Tools = DefaultTools()
	}
	if in.Merge == nil {
		in.Merge = defaultMerge
	}

	records := sortedRecords(in.Records)
	roots := detect(in.Tools, records)
	if len(roots) == 0 {
		return out
	}

	shared := map[string]bool{}
	for i, group := range roots {
		if len(group) > 1 {
			flagConflict(out.Packages, group, in.Log)
			continue
		}
		foreign := foreignMemberDirs(in, records, roots, i)
		out = mergeRoot(in, records, group[0], out, foreign, shared)
	}
	out.Unattached = dropPaths(out.Unattached, out.Attached)
	return out
}

// detect groups the roots of all tools by directory and ecosystem, sorted
// by directory then ecosystem.
func detect(tools []Tool, records []*model.ExtractedRecord) [][]*Root {
	type key struct{ dir, eco string }
	byKey := map[key][]*Root{}
	for _, t := range tools {
		for _, r := range t.Detect(records) {
			k := key{r.Dir, t.Ecosystem()}
			byKey[k] = append(byKey[k], r)
		}
	}
	keys := make([]key, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].dir != keys[j].dir {
			return keys[i].dir < keys[j].dir
		}
		return keys[i].eco < keys[j].eco
	})
	out := make([][]*Root, 0, len(keys))
	for _, k := range keys {
		out = append(out, byKey[k])
	}
	return out
}

// foreignMemberDirs returns the member directories of the roots that share
// a directory with roots[i] but belong to another ecosystem.
func foreignMemberDirs(in Input, records []*model.ExtractedRecord, roots [][]*Root, i int) []string {
	self := roots[i][0]
	quiet := in
	quiet.Log = zerolog.Nop()
	var dirs []string
	for j, group := range roots {
		if j == i || group[0].Dir != self.Dir {
			continue
		}
		for _, r := range group {
			found, _ := discoverMembers(quiet, records, r)
			for _, m := range found {
				dirs = append(dirs, m.dir)
			}
		}
	}
	return dirs
}

func flagConflict(packages []*model.Package, group []*Root, log zerolog.Logger) {
	names := make([]string, len(group))
	for i, r := range group {
		names[i] = r.Tool.Name()
	}
	dir := group[0].Dir
	msg := fmt.Sprintf("workspace root %q is declared by %s; left unmerged", label(dir), strings.Join(names, " and "))
	log.Warn().Str("dir", label(dir)).Strs("tools", names).Msg("conflicting workspace declarations")

	for _, p := range rootPackages(packages, group) {
		p.AddDiagnostic(model.Diagnostic{Kind: model.DiagWorkspaceConflict, Message: msg, Path: dir})
	}
}

// rootPackages returns the packages built from a manifest or config record
// of any root in group.
func rootPackages(packages []*model.Package, group []*Root) []*model.Package {
	paths := map[string]bool{}
	for _, r := range group {
		if r.Manifest != nil {
			paths[r.Manifest.SourcePath] = true
		}
		if r.Config != nil {
			paths[r.Config.SourcePath] = true
		}
	}
	var out []*model.Package
	for _, p := range packages {
		for _, df := range p.DatafilePaths {
			if paths[df] {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

type member struct {
	dir      string
	manifest *model.ExtractedRecord
	records  []*model.ExtractedRecord
	pkg      *model.Package
	deps     []*model.Dependency
}

// mergeRoot merges one root. foreign lists member directories of other
// ecosystems declared in the same directory; shared records the files
// handed to every member by an earlier root, which this root may share too.
func mergeRoot(in Input, records []*model.ExtractedRecord, root *Root, cur Output, foreign []string, shared map[string]bool) Output {
	log := in.Log.With().Str("tool", root.Tool.Name()).Str("root", label(root.Dir)).Logger()
	tool := root.Tool

	found, diags := discoverMembers(in, records, root)
	aggregates := rootPackages(cur.Packages, []*Root{root})
	if len(found) == 0 {
		log.Warn().Strs("patterns", root.Include).Msg("no workspace members found")
		for _, p := range aggregates {
			p.AddDiagnostic(model.Diagnostic{
				Kind:    model.DiagWorkspaceNoMembers,
				Message: fmt.Sprintf("no members matched %v", root.Include),
				Path:    root.Dir,
			})
			for _, d := range diags {
				p.AddDiagnostic(d)
			}
		}
		return cur
	}

	// Records at the root that the tool owns: manifest, lockfiles, config.
	var rootRecords []*model.ExtractedRecord
	for _, rec := range records {
		if rec.Dir() == root.Dir && tool.Handles(rec) {
			rootRecords = append(rootRecords, rec)
		}
	}

	retired := map[string]struct{}{}
	var keptRoot *model.Package
	if root.KeepRoot && len(aggregates) > 0 {
		keptRoot = aggregates[0]
	} else {
		for _, p := range aggregates {
			retired[p.UID] = struct{}{}
		}
	}

	// Old packages of the members are superseded too.
	memberPaths := map[string]bool{}
	for _, m := range found {
		for _, rec := range m.records {
			memberPaths[rec.SourcePath] = true
		}
	}
	for _, p := range cur.Packages {
		for _, df := range p.DatafilePaths {
			if memberPaths[df] {
				retired[p.UID] = struct{}{}
				break
			}
		}
	}

	// New member packages.
	versions := map[string]string{}
	for _, m := range found {
		m.pkg, m.deps = in.Merge(tool.Prepare(root, m.records))
		if m.pkg == nil {
			continue
		}
		if name := memberName(m.pkg); name != "" && m.pkg.Version != "" {
			versions[name] = m.pkg.Version
		}
	}
	var members []*member
	var noIdentity []model.Diagnostic
	for _, m := range found {
		if m.pkg != nil {
			members = append(members, m)
			continue
		}
		log.Warn().Str("member", m.dir).Msg("workspace member has no usable identity")
		noIdentity = append(noIdentity, model.Diagnostic{
			Kind:    model.DiagUnresolvableIdentity,
			Message: fmt.Sprintf("workspace member %q has no usable identity; its files are left unassigned", label(m.dir)),
			Path:    m.dir,
		})
	}

	// Hoist root-level dependencies.
	var targets []*model.Package
	if keptRoot != nil {
		targets = []*model.Package{keptRoot}
	} else {
		for _, m := range members {
			targets = append(targets, m.pkg)
		}
	}
	var newDeps []*model.Dependency
	existing := map[string]*model.DependencySet{}
	for _, t := range targets {
		set := &model.DependencySet{}
		for _, d := range depsOf(cur.Dependencies, t.UID) {
			set.Add(d)
		}
		for _, m := range members {
			if m.pkg == t {
				for _, d := range m.deps {
					set.Add(d)
				}
			}
		}
		existing[t.UID] = set
	}
	for _, rec := range rootRecords {
		for _, decl := range rec.Dependencies {
			for _, t := range targets {
				dep := model.NewDependency(decl, t.UID, rec)
				if existing[t.UID].Add(dep) && t != keptRoot {
					newDeps = append(newDeps, dep)
				}
			}
		}
	}

	// Resolve workspace markers on every dependency of the workspace.
	owned := map[string]bool{}
	for _, m := range members {
		owned[m.pkg.UID] = true
		newDeps = append(newDeps, m.deps...)
	}
	toResolve := slices.Clone(newDeps)
	if keptRoot != nil {
		owned[keptRoot.UID] = true
		toResolve = append(toResolve, depsOf(cur.Dependencies, keptRoot.UID)...)
	}
	unresolved := 0
	for _, d := range toResolve {
		handled, ok := tool.Resolve(root, d, versions)
		if handled && !ok {
			unresolved++
			d.AddDiagnostic(model.Diagnostic{
				Kind:    model.DiagUnresolvedWorkspaceReference,
				Message: fmt.Sprintf("workspace reference %q to %q matches no workspace member", d.Requirement, d.Name()),
				Path:    d.DatafilePath,
			})
		}
	}

	// Root-level diagnostics go where the root's files go.
	for _, t := range targets {
		for _, d := range diags {
			t.AddDiagnostic(d)
		}
		for _, d := range noIdentity {
			t.AddDiagnostic(d)
		}
	}

	reassignFiles(in.Files, root, found, members, keptRoot, retired, owned, foreign, shared)
	in.Files.Scrub(retired)

	next := Output{Attached: cur.Attached, Unattached: cur.Unattached}
	carried := map[string]bool{}
	for _, m := range members {
		next.Attached = append(next.Attached, m.pkg.DatafilePaths...)
		for _, df := range m.pkg.DatafilePaths {
			carried[df] = true
		}
	}
	for _, p := range cur.Packages {
		if _, gone := retired[p.UID]; !gone {
			next.Packages = append(next.Packages, p)
			continue
		}
		next.Unattached = append(next.Unattached, retiredRecords(in, root, p, carried)...)
	}
	for _, m := range members {
		next.Packages = append(next.Packages, m.pkg)
	}
	for _, d := range cur.Dependencies {
		if _, gone := retired[d.ForPackageUID]; !gone {
			next.Dependencies = append(next.Dependencies, d)
		}
	}
	next.Dependencies = append(next.Dependencies, newDeps...)

	log.Info().
		Int("members", len(members)).
		Int("retired", len(retired)).
		Int("unresolved_refs", unresolved).
		Bool("kept_root", keptRoot != nil).
		Msg("merged workspace")
	return next
}

// retiredRecords returns the records of a retired package whose source
// paths no member carries, each flagged as belonging to a retired
// workspace aggregate.
func retiredRecords(in Input, root *Root, p *model.Package, carried map[string]bool) []model.UnattachedRecord {
	var out []model.UnattachedRecord
	for _, df := range p.DatafilePaths {
		if carried[df] {
			continue
		}
		carried[df] = true
		for _, rec := range in.Records[df] {
			out = append(out, model.UnattachedRecord{
				SourcePath:   rec.SourcePath,
				DatasourceID: rec.DatasourceID,
				Dependencies: rec.Dependencies,
				Diagnostics: []model.Diagnostic{{
					Kind:    model.DiagWorkspaceRootRetired,
					Message: fmt.Sprintf("aggregate package of %s workspace %q was replaced by its members", root.Tool.Name(), label(root.Dir)),
					Path:    rec.SourcePath,
				}},
			})
		}
	}
	return out
}

func dropPaths(unattached []model.UnattachedRecord, attached []string) []model.UnattachedRecord {
	if len(unattached) == 0 || len(attached) == 0 {
		return unattached
	}
	gone := make(map[string]bool, len(attached))
	for _, p := range attached {
		gone[p] = true
	}
	var out []model.UnattachedRecord
	for _, u := range unattached {
		if !gone[u.SourcePath] {
			out = append(out, u)
		}
	}
	return out
}

// reassignFiles recomputes for_packages below the root. A file inside a
// member directory belongs to that member, or to nobody new when the
// member has no package. Other files belong to the kept root or to every
// member, unless they sit in a build directory, in a member directory of
// another ecosystem, or are claimed by a package unrelated to the
// workspace. Files an earlier root shared are shared again.
func reassignFiles(fa *model.FileAssociations, root *Root, found, members []*member, keptRoot *model.Package, retired map[string]struct{}, owned map[string]bool, foreign []string, shared map[string]bool) {
	dirs := make([]*member, len(found))
	copy(dirs, found)
	// Deepest first so nested members win over their parents.
	sort.SliceStable(dirs, func(i, j int) bool { return len(dirs[i].dir) > len(dirs[j].dir) })

	for _, p := range fa.Paths() {
		if !model.IsUnder(p, root.Dir) || p == root.Dir {
			continue
		}
		var kept []string
		for _, uid := range fa.Get(p) {
			if _, gone := retired[uid]; gone || owned[uid] {
				continue
			}
			kept = append(kept, uid)
		}

		if m := owningMember(p, dirs); m != nil {
			if m.pkg != nil {
				kept = append(kept, m.pkg.UID)
			}
			fa.Set(p, kept)
			continue
		}
		if (len(kept) > 0 && !shared[p]) || underAny(p, foreign) || inBuildDir(model.RelTo(p, root.Dir), root.Tool.BuildDirs()) {
			fa.Set(p, kept)
			continue
		}
		if keptRoot != nil {
			fa.Set(p, append(kept, keptRoot.UID))
		} else {
			for _, m := range members {
				kept = append(kept, m.pkg.UID)
			}
			fa.Set(p, kept)
		}
		shared[p] = true
	}
}

func underAny(p string, dirs []string) bool {
	for _, d := range dirs {
		if model.IsUnder(p, d) {
			return true
		}
	}
	return false
}

func owningMember(p string, byDepth []*member) *member {
	for _, m := range byDepth {
		if model.IsUnder(p, m.dir) {
			return m
		}
	}
	return nil
}

func inBuildDir(rel string, buildDirs []string) bool {
	first, _, _ := strings.Cut(rel, "/")
	return slices.Contains(buildDirs, first)
}

func depsOf(deps []*model.Dependency, uid string) []*model.Dependency {
	var out []*model.Dependency
	for _, d := range deps {
		if d.ForPackageUID == uid {
			out = append(out, d)
		}
	}
	return out
}

// memberName is the name other packages use to depend on pkg.
func memberName(pkg *model.Package) string {
	if n := model.PURLName(pkg.PackageURL); n != "" {
		return n
	}
	if pkg.Namespace != "" {
		return pkg.Namespace + "/" + pkg.Name
	}
	return pkg.Name
}

func sortedRecords(byPath map[string][]*model.ExtractedRecord) []*model.ExtractedRecord {
	paths := make([]string, 0, len(byPath))
	for p := range byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	var out []*model.ExtractedRecord
	for _, p := range paths {
		out = append(out, byPath[p]...)
	}
	return out
}

// defaultMerge seeds a package from the first identity-bearing record and
// fills it from the rest.
func defaultMerge(records []*model.ExtractedRecord) (*model.Package, []*model.Dependency) {
	var pkg *model.Package
	for _, rec := range records {
		if rec.HasIdentity() {
			pkg = model.NewPackage(rec, rec.Type)
			break
		}
	}
	if pkg == nil {
		return nil, nil
	}
	var deps model.DependencySet
	for _, rec := range records {
		if !slices.Contains(pkg.DatafilePaths, rec.SourcePath) {
			pkg.Update(rec)
		}
		for _, d := range rec.Dependencies {
			deps.Add(model.NewDependency(d, pkg.UID, rec))
		}
	}
	return pkg, deps.Items()
}

func label(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}
