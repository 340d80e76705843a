package input

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StinkyLord/sbom-assembler/internal/model"
)

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	doc, err := Decode([]byte(`{
  "records": [
    {
      "datasource_id": "npm_package_json",
      "source_path": "./web/package.json",
      "package_url": "pkg:npm/web@1.0.0",
      "extra_data": {"workspaces": ["packages/*"]},
      "dependencies": [{"package_url": "pkg:npm/react", "requirement": "^18.0.0", "is_runtime": true}]
    }
  ],
  "files": ["web/package.json", "/web/index.js"]
}`), JSON)
	require.NoError(t, err)

	require.Len(t, doc.Records, 1)
	rec := doc.Records[0]
	assert.Equal(t, model.NpmPackageJson, rec.DatasourceID)
	assert.Equal(t, "web/package.json", rec.SourcePath)
	assert.Equal(t, []string{"packages/*"}, rec.ExtraStrings("workspaces"))
	require.Len(t, rec.Dependencies, 1)
	assert.True(t, rec.Dependencies[0].IsRuntime)
	assert.Equal(t, []string{"web/package.json", "web/index.js"}, doc.Files)
}

func TestDecodeBareList(t *testing.T) {
	t.Parallel()

	doc, err := Decode([]byte(`[{"datasource_id": "go_mod", "source_path": "go.mod"}]`), JSON)
	require.NoError(t, err)
	require.Len(t, doc.Records, 1)
	assert.Equal(t, model.GoMod, doc.Records[0].DatasourceID)

	doc, err = Decode([]byte("- datasource_id: cargo_toml\n  source_path: Cargo.toml\n"), YAML)
	require.NoError(t, err)
	require.Len(t, doc.Records, 1)
	assert.Equal(t, "Cargo.toml", doc.Records[0].SourcePath)
}

func TestDecodeYAMLNestedExtra(t *testing.T) {
	t.Parallel()

	doc, err := Decode([]byte(`
records:
  - datasource_id: cargo_toml
    source_path: Cargo.toml
    extra_data:
      workspace:
        members: ["crates/*"]
        package:
          version: 0.3.0
`), YAML)
	require.NoError(t, err)
	require.Len(t, doc.Records, 1)

	ws := model.AsMap(doc.Records[0].ExtraData["workspace"])
	require.NotNil(t, ws)
	assert.Equal(t, []string{"crates/*"}, model.AsStrings(ws["members"]))
	pkg, ok := ws["package"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "0.3.0", pkg["version"])
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte(`{"records": [`), JSON)
	assert.Error(t, err)

	doc, err := Decode([]byte("  \n"), YAML)
	require.NoError(t, err)
	assert.Empty(t, doc.Records)
}

func TestFormatForPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, YAML, FormatForPath("records.YML"))
	assert.Equal(t, YAML, FormatForPath("a/records.yaml"))
	assert.Equal(t, JSON, FormatForPath("records.json"))
	assert.Equal(t, JSON, FormatForPath("-"))
}

func TestWithRecordPaths(t *testing.T) {
	t.Parallel()

	doc := &Document{
		Records: []model.ExtractedRecord{{SourcePath: "b/go.mod"}, {SourcePath: "a.txt"}},
		Files:   []string{"c.txt", "a.txt"},
	}
	assert.Equal(t, []string{"a.txt", "b/go.mod", "c.txt"}, doc.WithRecordPaths())
}

func TestLoadFileAndWalk(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	for _, p := range []string{"package.json", "src/index.js", ".git/HEAD", "node_modules/x/package.json"} {
		full := filepath.Join(root, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("{}"), 0o600))
	}

	files, err := WalkFiles(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"node_modules/x/package.json", "package.json", "src/index.js"}, files)

	_, err = WalkFiles(context.Background(), filepath.Join(root, "package.json"))
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = WalkFiles(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)

	recs := filepath.Join(root, "records.yaml")
	require.NoError(t, os.WriteFile(recs, []byte("records:\n  - datasource_id: npm_package_json\n    source_path: package.json\n"), 0o600))
	doc, err := LoadFile(recs)
	require.NoError(t, err)
	require.Len(t, doc.Records, 1)

	_, err = LoadFile(filepath.Join(root, "absent.json"))
	assert.Error(t, err)
}
