package workspace

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StinkyLord/sbom-assembler/internal/model"
	"github.com/StinkyLord/sbom-assembler/internal/pattern"
)

// fixture builds the pre-workspace state: one package per identity-bearing
// record, claiming its own datafile.
func fixture(t *testing.T, recs []*model.ExtractedRecord, files []string) Input {
	t.Helper()
	in := Input{
		Records: map[string][]*model.ExtractedRecord{},
		Files:   model.NewFileAssociations(files),
		Matcher: pattern.NewMatcher(),
		Limits:  pattern.DefaultLimits,
		Log:     zerolog.Nop(),
	}
	for _, rec := range recs {
		in.Records[rec.SourcePath] = append(in.Records[rec.SourcePath], rec)
		pkg, deps := defaultMerge([]*model.ExtractedRecord{rec})
		if pkg == nil {
			continue
		}
		in.Packages = append(in.Packages, pkg)
		in.Dependencies = append(in.Dependencies, deps...)
		in.Files.Add(rec.SourcePath, pkg.UID)
	}
	return in
}

func npmManifest(p, purl string, extra map[string]any, deps ...model.DeclaredDependency) *model.ExtractedRecord {
	return &model.ExtractedRecord{
		DatasourceID: model.NpmPackageJson,
		SourcePath:   p,
		Type:         "npm",
		PackageURL:   purl,
		ExtraData:    extra,
		Dependencies: deps,
	}
}

func byName(t *testing.T, pkgs []*model.Package, name string) *model.Package {
	t.Helper()
	for _, p := range pkgs {
		if p.Name == name {
			return p
		}
	}
	require.Failf(t, "package not found", "no package named %q", name)
	return nil
}

func depsFor(deps []*model.Dependency, uid string) []*model.Dependency {
	var out []*model.Dependency
	for _, d := range deps {
		if d.ForPackageUID == uid {
			out = append(out, d)
		}
	}
	return out
}

func npmWorkspace() ([]*model.ExtractedRecord, []string) {
	recs := []*model.ExtractedRecord{
		npmManifest("package.json", "pkg:npm/monorepo@1.0.0",
			map[string]any{"workspaces": []any{"packages/*", "!packages/legacy"}},
			model.DeclaredDependency{PackageURL: "pkg:npm/typescript", Requirement: "^5.0.0", Scope: "devDependencies"},
		),
		npmManifest("packages/a/package.json", "pkg:npm/a@1.2.0", nil),
		npmManifest("packages/b/package.json", "pkg:npm/b@2.0.0", nil,
			model.DeclaredDependency{PackageURL: "pkg:npm/a", Requirement: "workspace:*", Scope: "dependencies"},
			model.DeclaredDependency{PackageURL: "pkg:npm/ghost", Requirement: "workspace:^", Scope: "dependencies"},
		),
		npmManifest("packages/legacy/package.json", "pkg:npm/legacy@0.1.0", nil),
		npmManifest("tools/cli/package.json", "pkg:npm/cli@3.0.0", nil),
	}
	files := []string{
		"package.json",
		"README.md",
		"node_modules/left-pad/index.js",
		"packages/a/package.json",
		"packages/a/index.js",
		"packages/b/package.json",
		"packages/legacy/package.json",
		"tools/cli/package.json",
	}
	return recs, files
}

func TestMergeNpmWorkspace(t *testing.T) {
	recs, files := npmWorkspace()
	in := fixture(t, recs, files)
	rootUID := byName(t, in.Packages, "monorepo").UID
	oldA := byName(t, in.Packages, "a").UID

	out := Merge(in)

	names := make([]string, 0, len(out.Packages))
	for _, p := range out.Packages {
		names = append(names, p.Name)
	}
	assert.ElementsMatch(t, []string{"a", "b", "legacy", "cli"}, names)

	a := byName(t, out.Packages, "a")
	b := byName(t, out.Packages, "b")
	assert.NotEqual(t, oldA, a.UID, "members get fresh uids")

	t.Run("retired packages leave no trace", func(t *testing.T) {
		for _, e := range in.Files.Entries() {
			assert.NotContains(t, e.ForPackages, rootUID, e.Path)
			assert.NotContains(t, e.ForPackages, oldA, e.Path)
		}
		for _, d := range out.Dependencies {
			assert.NotEqual(t, rootUID, d.ForPackageUID)
			assert.NotEqual(t, oldA, d.ForPackageUID)
		}
	})

	t.Run("file ownership", func(t *testing.T) {
		assert.Equal(t, []string{a.UID}, in.Files.Get("packages/a/index.js"))
		assert.ElementsMatch(t, []string{a.UID, b.UID}, in.Files.Get("README.md"))
		assert.ElementsMatch(t, []string{a.UID, b.UID}, in.Files.Get("package.json"))
		assert.Empty(t, in.Files.Get("node_modules/left-pad/index.js"))
		// Not a member: keeps its own claim only.
		cli := byName(t, out.Packages, "cli")
		assert.Equal(t, []string{cli.UID}, in.Files.Get("tools/cli/package.json"))
	})

	t.Run("retired root manifest reported unattached", func(t *testing.T) {
		require.Len(t, out.Unattached, 1)
		u := out.Unattached[0]
		assert.Equal(t, "package.json", u.SourcePath)
		assert.Equal(t, model.NpmPackageJson, u.DatasourceID)
		require.Len(t, u.Dependencies, 1)
		assert.Equal(t, "pkg:npm/typescript", u.Dependencies[0].PackageURL)
		require.Len(t, u.Diagnostics, 1)
		assert.Equal(t, model.DiagWorkspaceRootRetired, u.Diagnostics[0].Kind)
	})

	t.Run("excluded member untouched", func(t *testing.T) {
		legacy := byName(t, out.Packages, "legacy")
		assert.Equal(t, []string{legacy.UID}, in.Files.Get("packages/legacy/package.json"))
	})

	t.Run("root dependencies hoisted to every member", func(t *testing.T) {
		for _, m := range []*model.Package{a, b} {
			var found bool
			for _, d := range depsFor(out.Dependencies, m.UID) {
				if d.PackageURL == "pkg:npm/typescript" {
					found = true
					assert.Equal(t, "package.json", d.DatafilePath)
				}
			}
			assert.True(t, found, m.Name)
		}
	})

	t.Run("workspace references", func(t *testing.T) {
		var local, ghost *model.Dependency
		for _, d := range depsFor(out.Dependencies, b.UID) {
			switch d.PackageURL {
			case "pkg:npm/a":
				local = d
			case "pkg:npm/ghost":
				ghost = d
			}
		}
		require.NotNil(t, local)
		require.NotNil(t, ghost)
		assert.Equal(t, "1.2.0", local.Requirement)
		assert.Empty(t, local.Diagnostics)
		assert.Equal(t, "workspace:^", ghost.Requirement)
		require.Len(t, ghost.Diagnostics, 1)
		assert.Equal(t, model.DiagUnresolvedWorkspaceReference, ghost.Diagnostics[0].Kind)
	})

	t.Run("dependency uids unique", func(t *testing.T) {
		seen := map[string]bool{}
		for _, d := range out.Dependencies {
			assert.False(t, seen[d.DependencyUID], d.DependencyUID)
			seen[d.DependencyUID] = true
		}
	})
}

func TestMergeInvocationExclude(t *testing.T) {
	recs, files := npmWorkspace()
	in := fixture(t, recs, files)
	in.Exclude = []string{"**/b"}

	out := Merge(in)

	var members []string
	for _, p := range out.Packages {
		if p.Name == "a" || p.Name == "b" {
			members = append(members, p.Name)
		}
	}
	assert.ElementsMatch(t, []string{"a", "b"}, members)
	b := byName(t, out.Packages, "b")
	a := byName(t, out.Packages, "a")
	// b was not merged: it keeps its original claim and is not a sharer.
	assert.Equal(t, []string{b.UID}, in.Files.Get("packages/b/package.json"))
	assert.Equal(t, []string{a.UID}, in.Files.Get("README.md"))
}

func TestMergePnpmKeepsPublishableRoot(t *testing.T) {
	recs := []*model.ExtractedRecord{
		npmManifest("package.json", "pkg:npm/kit@4.0.0", nil),
		{
			DatasourceID: model.PnpmWorkspaceYaml,
			SourcePath:   "pnpm-workspace.yaml",
			ExtraData:    map[string]any{"packages": []any{"pkgs/*"}},
		},
		npmManifest("pkgs/core/package.json", "pkg:npm/%40kit/core@4.0.0", nil),
		npmManifest("pkgs/ui/package.json", "pkg:npm/%40kit/ui@4.0.0", nil,
			model.DeclaredDependency{PackageURL: "pkg:npm/%40kit/core", Requirement: "workspace:~"},
		),
	}
	files := []string{"package.json", "pnpm-workspace.yaml", "LICENSE", "pkgs/core/package.json", "pkgs/ui/package.json"}
	in := fixture(t, recs, files)
	root := byName(t, in.Packages, "kit")

	out := Merge(in)

	require.Len(t, out.Packages, 3)
	assert.Same(t, root, byName(t, out.Packages, "kit"))
	assert.Empty(t, out.Unattached)
	assert.Equal(t, []string{root.UID}, in.Files.Get("LICENSE"))
	assert.Equal(t, []string{root.UID}, in.Files.Get("pnpm-workspace.yaml"))

	ui := byName(t, out.Packages, "ui")
	deps := depsFor(out.Dependencies, ui.UID)
	require.Len(t, deps, 1)
	assert.Equal(t, "~4.0.0", deps[0].Requirement)
}

func TestMergePnpmPrivateRootRetired(t *testing.T) {
	priv := npmManifest("package.json", "pkg:npm/internal@0.0.0", nil)
	priv.IsPrivate = true
	recs := []*model.ExtractedRecord{
		priv,
		{
			DatasourceID: model.PnpmWorkspaceYaml,
			SourcePath:   "pnpm-workspace.yaml",
			ExtraData:    map[string]any{"packages": []any{"apps/**"}},
		},
		npmManifest("apps/web/package.json", "pkg:npm/web@1.0.0", nil),
	}
	in := fixture(t, recs, []string{"package.json", "pnpm-workspace.yaml", "apps/web/package.json"})

	out := Merge(in)

	require.Len(t, out.Packages, 1)
	web := out.Packages[0]
	assert.Equal(t, "web", web.Name)
	assert.Equal(t, []string{web.UID}, in.Files.Get("package.json"))
}

func TestMergeConflictingDeclarations(t *testing.T) {
	recs := []*model.ExtractedRecord{
		npmManifest("package.json", "pkg:npm/root@1.0.0", map[string]any{"workspaces": []any{"a"}}),
		{
			DatasourceID: model.PnpmWorkspaceYaml,
			SourcePath:   "pnpm-workspace.yaml",
			ExtraData:    map[string]any{"packages": []any{"b"}},
		},
		npmManifest("a/package.json", "pkg:npm/a@1.0.0", nil),
		npmManifest("b/package.json", "pkg:npm/b@1.0.0", nil),
	}
	in := fixture(t, recs, nil)
	before := append([]*model.Package(nil), in.Packages...)

	out := Merge(in)

	assert.Equal(t, before, out.Packages)
	root := byName(t, out.Packages, "root")
	require.Len(t, root.Diagnostics, 1)
	assert.Equal(t, model.DiagWorkspaceConflict, root.Diagnostics[0].Kind)
}

func TestMergePolyglotRoot(t *testing.T) {
	recs := []*model.ExtractedRecord{
		{
			DatasourceID: model.CargoToml,
			SourcePath:   "Cargo.toml",
			Type:         "cargo",
			ExtraData:    map[string]any{"workspace": map[string]any{"members": []any{"crates/*"}}},
		},
		npmManifest("package.json", "pkg:npm/site@1.0.0", map[string]any{"workspaces": []any{"js/*"}}),
		{
			DatasourceID: model.CargoToml,
			SourcePath:   "crates/core/Cargo.toml",
			Type:         "cargo",
			Name:         "core",
			Version:      "0.1.0",
		},
		npmManifest("js/ui/package.json", "pkg:npm/ui@2.0.0", nil),
	}
	files := []string{
		"Cargo.toml",
		"package.json",
		"README.md",
		"crates/core/Cargo.toml",
		"crates/core/src/lib.rs",
		"js/ui/package.json",
		"js/ui/index.js",
	}
	in := fixture(t, recs, files)
	site := byName(t, in.Packages, "site")

	out := Merge(in)

	names := make([]string, 0, len(out.Packages))
	for _, p := range out.Packages {
		names = append(names, p.Name)
		for _, d := range p.Diagnostics {
			assert.NotEqual(t, model.DiagWorkspaceConflict, d.Kind, p.Name)
		}
	}
	assert.ElementsMatch(t, []string{"core", "ui"}, names)

	core := byName(t, out.Packages, "core")
	ui := byName(t, out.Packages, "ui")
	assert.Equal(t, []string{core.UID}, in.Files.Get("crates/core/src/lib.rs"))
	assert.Equal(t, []string{ui.UID}, in.Files.Get("js/ui/index.js"))
	assert.ElementsMatch(t, []string{core.UID, ui.UID}, in.Files.Get("README.md"))
	for _, e := range in.Files.Entries() {
		assert.NotContains(t, e.ForPackages, site.UID, e.Path)
	}
	assert.ElementsMatch(t, []string{"crates/core/Cargo.toml", "js/ui/package.json"}, out.Attached)
}

func TestMergeMemberWithoutIdentity(t *testing.T) {
	web := npmManifest("packages/web/package.json", "", nil)
	web.Name = "web"
	recs := []*model.ExtractedRecord{
		npmManifest("package.json", "pkg:npm/root@1.0.0", map[string]any{"workspaces": []any{"packages/*"}}),
		npmManifest("packages/a/package.json", "pkg:npm/a@1.2.0", nil),
		web,
	}
	files := []string{"package.json", "packages/a/package.json", "packages/web/package.json", "packages/web/src/app.js"}
	in := fixture(t, recs, files)

	out := Merge(in)

	a := byName(t, out.Packages, "a")
	require.Len(t, out.Packages, 1)
	assert.Empty(t, in.Files.Get("packages/web/src/app.js"))
	assert.Empty(t, in.Files.Get("packages/web/package.json"))
	assert.Equal(t, []string{a.UID}, in.Files.Get("package.json"))

	var kinds []model.DiagnosticKind
	for _, d := range a.Diagnostics {
		kinds = append(kinds, d.Kind)
	}
	assert.Contains(t, kinds, model.DiagUnresolvableIdentity)
}

func TestMergeNoMembers(t *testing.T) {
	recs := []*model.ExtractedRecord{
		npmManifest("package.json", "pkg:npm/root@1.0.0", map[string]any{"workspaces": []any{"nothing/*"}}),
	}
	in := fixture(t, recs, []string{"package.json"})

	out := Merge(in)

	require.Len(t, out.Packages, 1)
	root := out.Packages[0]
	require.Len(t, root.Diagnostics, 1)
	assert.Equal(t, model.DiagWorkspaceNoMembers, root.Diagnostics[0].Kind)
	assert.Equal(t, []string{root.UID}, in.Files.Get("package.json"))
}

func TestMergeTruncatedAndMalformedPatterns(t *testing.T) {
	recs := []*model.ExtractedRecord{
		npmManifest("package.json", "pkg:npm/root@1.0.0", map[string]any{"workspaces": []any{"libs/*", "libs/[z-a]"}}),
		npmManifest("libs/one/package.json", "pkg:npm/one@1.0.0", nil),
		npmManifest("libs/two/package.json", "pkg:npm/two@1.0.0", nil),
	}
	in := fixture(t, recs, nil)
	in.Limits = pattern.Limits{MaxMatches: 1}

	out := Merge(in)

	one := byName(t, out.Packages, "one")
	var kinds []model.DiagnosticKind
	for _, d := range one.Diagnostics {
		kinds = append(kinds, d.Kind)
	}
	assert.ElementsMatch(t, []model.DiagnosticKind{model.DiagGlobTruncated, model.DiagMalformedPattern}, kinds)
	// "two" was cut by the limit and keeps its pre-merge package.
	two := byName(t, out.Packages, "two")
	assert.Empty(t, two.Diagnostics)
}

func TestMergeCargoInheritance(t *testing.T) {
	recs := []*model.ExtractedRecord{
		{
			DatasourceID: model.CargoToml,
			SourcePath:   "Cargo.toml",
			Type:         "cargo",
			ExtraData: map[string]any{"workspace": map[string]any{
				"members": []any{"crates/*"},
				"exclude": []any{"crates/scratch"},
				"package": map[string]any{
					"version":    "0.3.0",
					"license":    "MIT OR Apache-2.0",
					"edition":    "2021",
					"authors":    []any{"Jane Doe <jane@example.org>"},
					"categories": []any{"parsing"},
				},
				"dependencies": map[string]any{
					"serde": map[string]any{"version": "1.0.190", "features": []any{"derive"}},
					"log":   "0.4",
				},
			}},
		},
		{
			DatasourceID: model.CargoLock,
			SourcePath:   "Cargo.lock",
			Dependencies: []model.DeclaredDependency{{PackageURL: "pkg:cargo/serde@1.0.190", Requirement: "1.0.190"}},
		},
		{
			DatasourceID: model.CargoToml,
			SourcePath:   "crates/core/Cargo.toml",
			Type:         "cargo",
			Name:         "core",
			Parties: []model.Party{{Role: "author", Name: "Someone Else"}},
			ExtraData: map[string]any{
				"version":    "workspace",
				"license":    map[string]any{"workspace": true},
				"edition":    "workspace",
				"authors":    "workspace",
				"categories": "workspace",
			},
			Dependencies: []model.DeclaredDependency{
				{PackageURL: "pkg:cargo/serde", ExtraData: map[string]any{"workspace": true}},
				{PackageURL: "pkg:cargo/log", ExtraData: map[string]any{"workspace": true}},
				{PackageURL: "pkg:cargo/missing", ExtraData: map[string]any{"workspace": true}},
			},
		},
		{
			DatasourceID: model.CargoToml,
			SourcePath:   "crates/cli/Cargo.toml",
			Type:         "cargo",
			Name:         "cli",
			Version:      "1.0.0",
			Dependencies: []model.DeclaredDependency{
				{PackageURL: "pkg:cargo/core", ExtraData: map[string]any{"workspace": true}},
			},
		},
		{
			DatasourceID: model.CargoToml,
			SourcePath:   "crates/scratch/Cargo.toml",
			Type:         "cargo",
			Name:         "scratch",
			Version:      "0.0.1",
		},
	}
	files := []string{"Cargo.toml", "Cargo.lock", "target/debug/core", "crates/core/Cargo.toml", "crates/core/src/lib.rs", "crates/cli/Cargo.toml"}
	in := fixture(t, recs, files)

	out := Merge(in)

	core := byName(t, out.Packages, "core")
	assert.Equal(t, "0.3.0", core.Version)
	assert.Equal(t, "pkg:cargo/core@0.3.0", core.PackageURL)
	assert.Equal(t, "https://crates.io/api/v1/crates/core/0.3.0/download", core.DownloadURL)
	assert.Equal(t, "MIT OR Apache-2.0", core.ExtractedLicenseStatement)
	assert.Equal(t, []string{"parsing"}, core.Keywords)
	assert.Equal(t, "2021", core.ExtraData["rust_edition"])
	assert.NotContains(t, core.ExtraData, "version")
	require.Len(t, core.Parties, 1)
	assert.Equal(t, model.Party{Role: "author", Name: "Jane Doe", Email: "jane@example.org"}, core.Parties[0])
	assert.Contains(t, out.Attached, "crates/core/Cargo.toml")

	reqs := map[string]*model.Dependency{}
	for _, d := range depsFor(out.Dependencies, core.UID) {
		reqs[d.PackageURL] = d
	}
	assert.Equal(t, "1.0.190", reqs["pkg:cargo/serde"].Requirement)
	assert.Equal(t, "0.4", reqs["pkg:cargo/log"].Requirement)
	require.Len(t, reqs["pkg:cargo/missing"].Diagnostics, 1)
	assert.Contains(t, reqs, "pkg:cargo/serde@1.0.190", "lockfile dependency hoisted")

	cli := byName(t, out.Packages, "cli")
	cliDeps := depsFor(out.Dependencies, cli.UID)
	var onCore *model.Dependency
	for _, d := range cliDeps {
		if d.PackageURL == "pkg:cargo/core" {
			onCore = d
		}
	}
	require.NotNil(t, onCore)
	assert.Equal(t, "0.3.0", onCore.Requirement)

	assert.Empty(t, in.Files.Get("target/debug/core"))
	assert.ElementsMatch(t, []string{core.UID, cli.UID}, in.Files.Get("Cargo.toml"))
	assert.Equal(t, []string{core.UID}, in.Files.Get("crates/core/src/lib.rs"))

	scratch := byName(t, out.Packages, "scratch")
	assert.Empty(t, scratch.Diagnostics)
}

func TestInheritCargoOrder(t *testing.T) {
	t.Parallel()

	shared := map[string]any{
		"version":    "2.0.0",
		"categories": []any{"parsing", "encoding"},
		"keywords":   []any{"toml", "parsing", "config"},
		"authors":    []any{"Ann <ann@x.io>", "Bob"},
	}
	rec := &model.ExtractedRecord{
		DatasourceID: model.CargoToml,
		SourcePath:   "crates/x/Cargo.toml",
		Name:         "x",
		Keywords:     []string{"own"},
		Parties:      []model.Party{{Role: "author", Name: "Carol"}},
		ExtraData: map[string]any{
			"version":    "workspace",
			"categories": "workspace",
			"keywords":   "workspace",
			"authors":    "workspace",
		},
	}

	for range 20 {
		got := inheritCargo(rec, shared)
		assert.Equal(t, []string{"own", "parsing", "encoding", "toml", "config"}, got.Keywords)
		assert.Equal(t, []model.Party{
			{Role: "author", Name: "Ann", Email: "ann@x.io"},
			{Role: "author", Name: "Bob"},
		}, got.Parties)
		assert.Equal(t, "pkg:cargo/x@2.0.0", got.PackageURL)
		assert.Equal(t, "https://crates.io/api/v1/crates/x/2.0.0/download", got.DownloadURL)
	}
	assert.Equal(t, []string{"own"}, rec.Keywords)
	assert.Len(t, rec.Parties, 1)
}

func TestResolveWorkspaceProtocol(t *testing.T) {
	t.Parallel()

	members := map[string]string{"a": "1.2.0", "@s/b": "0.9.1"}
	tests := []struct {
		purl, req string
		handled   bool
		resolved  bool
		want      string
	}{
		{"pkg:npm/a", "workspace:*", true, true, "1.2.0"},
		{"pkg:npm/a", "workspace:", true, true, "1.2.0"},
		{"pkg:npm/a", "workspace:^", true, true, "^1.2.0"},
		{"pkg:npm/%40s/b", "workspace:~", true, true, "~0.9.1"},
		{"pkg:npm/a", "workspace:^1.0.0", true, true, "^1.0.0"},
		{"pkg:npm/a", "workspace:>= 1.0, < 2.0", true, true, ">= 1.0, < 2.0"},
		{"pkg:npm/a", "workspace:banana", true, false, "workspace:banana"},
		{"pkg:npm/zzz", "workspace:*", true, false, "workspace:*"},
		{"pkg:npm/a", "^1.0.0", false, false, "^1.0.0"},
	}
	for _, tt := range tests {
		t.Run(tt.req, func(t *testing.T) {
			dep := &model.Dependency{PackageURL: tt.purl, Requirement: tt.req}
			handled, resolved := resolveWorkspaceProtocol(dep, members)
			assert.Equal(t, tt.handled, handled)
			assert.Equal(t, tt.resolved, resolved)
			assert.Equal(t, tt.want, dep.Requirement)
		})
	}
}

func TestSplitPatterns(t *testing.T) {
	t.Parallel()

	inc, exc := splitPatterns([]string{"./packages/*", "apps/", "!apps/old", ".", ""})
	assert.Equal(t, []string{"packages/*", "apps"}, inc)
	assert.Equal(t, []string{"apps/old"}, exc)
}

func TestParseAuthor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, model.Party{Role: "author", Name: "Ann", Email: "ann@x.io"}, parseAuthor("Ann <ann@x.io>"))
	assert.Equal(t, model.Party{Role: "author", Name: "Bob"}, parseAuthor("Bob"))
}
