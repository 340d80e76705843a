package model

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasIdentity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rec  ExtractedRecord
		want bool
	}{
		{name: "purl", rec: ExtractedRecord{PackageURL: "pkg:npm/foo@1.0.0"}, want: true},
		{name: "name and version", rec: ExtractedRecord{Name: "foo", Version: "1.0.0"}, want: true},
		{name: "name only", rec: ExtractedRecord{Name: "foo"}, want: false},
		{name: "garbage purl", rec: ExtractedRecord{PackageURL: "not a purl"}, want: false},
		{name: "empty", rec: ExtractedRecord{}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.rec.HasIdentity())
		})
	}
}

func TestNewPackageAndUpdate(t *testing.T) {
	t.Parallel()

	first := &ExtractedRecord{
		DatasourceID: NpmPackageJson,
		SourcePath:   "app/package.json",
		Type:         "npm",
		Name:         "app",
		Version:      "1.0.0",
		Keywords:     []string{"cli"},
	}
	second := &ExtractedRecord{
		DatasourceID: NpmPackageLockJson,
		SourcePath:   "app/package-lock.json",
		Name:         "app",
		Version:      "2.0.0",
		Description:  "from the lockfile",
		Keywords:     []string{"cli", "tool"},
	}

	p := NewPackage(first, "npm")
	p.Update(second)

	assert.Equal(t, "1.0.0", p.Version)
	assert.Equal(t, "from the lockfile", p.Description)
	assert.Equal(t, "pkg:npm/app@1.0.0", p.PackageURL)
	assert.Equal(t, []string{"app/package.json", "app/package-lock.json"}, p.DatafilePaths)
	assert.Equal(t, []DatasourceID{NpmPackageJson, NpmPackageLockJson}, p.DatasourceIDs)
	assert.Equal(t, []string{"cli", "tool"}, p.Keywords)
	assert.True(t, strings.HasPrefix(p.UID, "pkg:npm/app@1.0.0?uuid="))
}

func TestNewPackageFromPURLFillsIdentity(t *testing.T) {
	t.Parallel()

	p := NewPackage(&ExtractedRecord{
		DatasourceID: AlpineInstalledDb,
		SourcePath:   "lib/apk/db/installed",
		PackageURL:   "pkg:alpine/musl@1.2.4?arch=x86_64",
	}, "alpine")

	assert.Equal(t, "alpine", p.Type)
	assert.Equal(t, "musl", p.Name)
	assert.Equal(t, "1.2.4", p.Version)
	assert.True(t, strings.HasPrefix(p.UID, "pkg:alpine/musl@1.2.4?arch=x86_64&uuid="))
}

func TestBuildPackageUID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		purl       string
		wantPrefix string
		wantSuffix string
	}{
		{name: "plain", purl: "pkg:npm/foo@1.0.0", wantPrefix: "pkg:npm/foo@1.0.0?uuid="},
		{name: "qualifiers", purl: "pkg:rpm/fedora/bash@5?arch=x86_64", wantPrefix: "pkg:rpm/fedora/bash@5?arch=x86_64&uuid="},
		{name: "subpath", purl: "pkg:golang/foo@1#sub/dir", wantPrefix: "pkg:golang/foo@1?uuid=", wantSuffix: "#sub/dir"},
		{name: "empty", purl: "", wantPrefix: "uuid:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a, b := BuildPackageUID(tt.purl), BuildPackageUID(tt.purl)
			assert.NotEqual(t, a, b)
			assert.True(t, strings.HasPrefix(a, tt.wantPrefix), a)
			assert.True(t, strings.HasSuffix(a, tt.wantSuffix), a)
		})
	}
}

func TestDependencySetDedup(t *testing.T) {
	t.Parallel()

	rec := &ExtractedRecord{SourcePath: "package.json", DatasourceID: NpmPackageJson}
	var set DependencySet
	assert.True(t, set.Add(NewDependency(DeclaredDependency{PackageURL: "pkg:npm/a", Requirement: "^1", Scope: "dependencies"}, "uid", rec)))
	assert.False(t, set.Add(NewDependency(DeclaredDependency{PackageURL: "pkg:npm/a", Requirement: "^1", Scope: "dependencies"}, "uid", rec)))
	assert.True(t, set.Add(NewDependency(DeclaredDependency{PackageURL: "pkg:npm/a", Requirement: "^1", Scope: "devDependencies"}, "uid", rec)))
	assert.False(t, set.Add(NewDependency(DeclaredDependency{Requirement: "^1"}, "uid", rec)))
	assert.Len(t, set.Items(), 2)
}

func TestPURLName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "@scope/pkg", PURLName("pkg:npm/%40scope/pkg@1.0.0"))
	assert.Equal(t, "left-pad", PURLName("pkg:npm/left-pad"))
	assert.Equal(t, "", PURLName("nope"))
}

func TestFileAssociationsConcurrentAdd(t *testing.T) {
	t.Parallel()

	fa := NewFileAssociations([]string{"a", "b"})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fa.Add("a", string(rune('A'+i%5)))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, fa.Get("a"))
	assert.Empty(t, fa.Get("b"))

	fa.Scrub(map[string]struct{}{"A": {}, "C": {}})
	assert.Equal(t, []string{"B", "D", "E"}, fa.Get("a"))

	entries := fa.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Path)
	assert.Equal(t, []string{}, entries[1].ForPackages)
}

func TestBuildDependencyTree(t *testing.T) {
	t.Parallel()

	app := &Package{UID: "app-uid", Name: "app", Version: "1.0.0", PackageURL: "pkg:npm/app@1.0.0"}
	lib := &Package{UID: "lib-uid", Name: "lib", Version: "2.0.0", PackageURL: "pkg:npm/lib@2.0.0"}
	deps := []*Dependency{
		{PackageURL: "pkg:npm/lib@2.0.0", ForPackageUID: "app-uid", IsDirect: true},
		{PackageURL: "pkg:npm/missing", ForPackageUID: "app-uid"},
		{PackageURL: "pkg:npm/app@1.0.0", ForPackageUID: "lib-uid"},
	}

	tree := BuildDependencyTree([]*Package{app, lib}, deps)

	assert.Equal(t, []string{"lib-uid"}, tree.DependsOn("app-uid"))
	assert.Equal(t, []string{"app-uid"}, tree.DependsOn("lib-uid"))
	// Both are targeted, so the cycle leaves no roots.
	assert.Empty(t, tree.Roots)

	tree = BuildDependencyTree([]*Package{app, lib}, deps[:2])
	require.Len(t, tree.Roots, 1)
	root := tree.Roots[0]
	assert.Equal(t, "app", root.Name)
	require.Len(t, root.Children, 2)
	assert.Equal(t, "lib", root.Children[0].Name)
	assert.Equal(t, "direct", root.Children[0].DependencyType)
	assert.Equal(t, "missing", root.Children[1].Name)
	assert.Empty(t, root.Children[1].PackageUID)
}
