package workspace

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/StinkyLord/sbom-assembler/internal/model"
)

// CargoTool handles the [workspace] table of a root Cargo.toml. Members may
// inherit package fields from [workspace.package] and dependency versions
// from [workspace.dependencies].
type CargoTool struct{}

func (*CargoTool) Name() string { return "cargo" }

func (*CargoTool) Ecosystem() string { return "cargo" }

func (*CargoTool) Detect(records []*model.ExtractedRecord) []*Root {
	var roots []*Root
	for _, rec := range records {
		if rec.DatasourceID != model.CargoToml {
			continue
		}
		ws := model.AsMap(rec.ExtraData["workspace"])
		if ws == nil {
			continue
		}
		inc, exc := splitPatterns(model.AsStrings(ws["members"]))
		if len(inc) == 0 {
			continue
		}
		_, extra := splitPatterns(prefixAll("!", model.AsStrings(ws["exclude"])))
		roots = append(roots, &Root{
			Dir:        rec.Dir(),
			Manifest:   rec,
			Config:     rec,
			Include:    inc,
			Exclude:    append(exc, extra...),
			Shared:     model.AsMap(ws["package"]),
			SharedDeps: model.AsMap(ws["dependencies"]),
		})
	}
	return withTool(&CargoTool{}, roots)
}

func (*CargoTool) IsMemberManifest(rec *model.ExtractedRecord) bool {
	return rec.DatasourceID == model.CargoToml
}

func (*CargoTool) Handles(rec *model.ExtractedRecord) bool {
	return rec.DatasourceID == model.CargoToml || rec.DatasourceID == model.CargoLock
}

func (*CargoTool) BuildDirs() []string { return []string{"target"} }

func (*CargoTool) Prepare(root *Root, records []*model.ExtractedRecord) []*model.ExtractedRecord {
	out := slices.Clone(records)
	for i, rec := range out {
		if rec.DatasourceID == model.CargoToml {
			out[i] = inheritCargo(rec, root.Shared)
		}
	}
	return out
}

// inheritedKeys lists the [workspace.package] fields a member may inherit,
// in the order they are applied.
var inheritedKeys = []string{
	"version", "license", "description", "homepage", "repository",
	"categories", "keywords", "edition", "rust-version", "authors",
}

// inheritCargo returns a copy of rec with every "<key>.workspace = true"
// field filled from the workspace package table. Inherited authors replace
// the member's own. A member with a name and a version gets a fresh purl
// and crates.io download URL.
func inheritCargo(rec *model.ExtractedRecord, shared map[string]any) *model.ExtractedRecord {
	c := *rec
	c.ExtraData = maps.Clone(rec.ExtraData)
	c.Keywords = slices.Clone(rec.Keywords)
	c.Parties = slices.Clone(rec.Parties)

	for _, key := range inheritedKeys {
		v, ok := rec.ExtraData[key]
		if !ok || !inheritsFromWorkspace(v) {
			continue
		}
		val, ok := shared[key]
		if !ok {
			continue
		}
		switch key {
		case "version":
			c.Version, _ = val.(string)
		case "license":
			c.ExtractedLicenseStatement, _ = val.(string)
		case "description":
			c.Description, _ = val.(string)
		case "homepage":
			c.HomepageURL, _ = val.(string)
		case "repository":
			c.VCSURL, _ = val.(string)
		case "categories", "keywords":
			for _, k := range model.AsStrings(val) {
				if !slices.Contains(c.Keywords, k) {
					c.Keywords = append(c.Keywords, k)
				}
			}
		case "edition":
			c.ExtraData["rust_edition"] = val
		case "rust-version":
			c.ExtraData["rust_version"] = val
		case "authors":
			c.Parties = nil
			for _, a := range model.AsStrings(val) {
				c.Parties = append(c.Parties, parseAuthor(a))
			}
		}
		delete(c.ExtraData, key)
	}

	if c.Name != "" && c.Version != "" {
		c.PackageURL = model.BuildPURL("cargo", "", c.Name, c.Version)
		c.DownloadURL = fmt.Sprintf("https://crates.io/api/v1/crates/%s/%s/download", c.Name, c.Version)
	}
	return &c
}

// inheritsFromWorkspace reports whether a manifest value defers to the
// workspace: either the bare string "workspace" or {workspace = true}.
func inheritsFromWorkspace(v any) bool {
	if s, ok := v.(string); ok {
		return s == "workspace"
	}
	m := model.AsMap(v)
	b, _ := m["workspace"].(bool)
	return b
}

// parseAuthor splits "Name <email>".
func parseAuthor(s string) model.Party {
	p := model.Party{Role: "author", Name: strings.TrimSpace(s)}
	if i := strings.Index(s, "<"); i >= 0 {
		if j := strings.Index(s[i:], ">"); j > 0 {
			p.Name = strings.TrimSpace(s[:i])
			p.Email = strings.TrimSpace(s[i+1 : i+j])
		}
	}
	return p
}

// Resolve fills the requirement of a "dep.workspace = true" dependency from
// [workspace.dependencies], falling back to the version of a member crate
// with that name.
func (*CargoTool) Resolve(root *Root, dep *model.Dependency, members map[string]string) (bool, bool) {
	if b, _ := dep.ExtraData["workspace"].(bool); !b {
		return false, false
	}
	name := dep.Name()
	switch v := root.SharedDeps[name].(type) {
	case string:
		dep.Requirement = v
		return true, true
	default:
		if s, ok := model.AsMap(v)["version"].(string); ok && s != "" {
			dep.Requirement = s
			return true, true
		}
	}
	if ver, ok := members[name]; ok {
		dep.Requirement = ver
		return true, true
	}
	return true, false
}

func prefixAll(prefix string, list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = prefix + s
	}
	return out
}
