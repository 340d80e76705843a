// Package model defines the data structures flowing through the package
// assembly engine: raw per-file records produced by parsers, and the
// packages, dependencies and file associations assembled from them.
package model

import (
	"path"
	"strings"

	"github.com/package-url/packageurl-go"
)

// ExtractedRecord is one parser's raw output for one package entry found in
// one file. Records are immutable once produced.
type ExtractedRecord struct {
	DatasourceID DatasourceID `json:"datasource_id" yaml:"datasource_id"`
	SourcePath   string       `json:"source_path" yaml:"source_path"`

	Type       string `json:"type,omitempty" yaml:"type,omitempty"`
	Namespace  string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Name       string `json:"name,omitempty" yaml:"name,omitempty"`
	Version    string `json:"version,omitempty" yaml:"version,omitempty"`
	PackageURL string `json:"package_url,omitempty" yaml:"package_url,omitempty"`
	IsPrivate  bool   `json:"is_private,omitempty" yaml:"is_private,omitempty"`

	PrimaryLanguage           string   `json:"primary_language,omitempty" yaml:"primary_language,omitempty"`
	Description               string   `json:"description,omitempty" yaml:"description,omitempty"`
	HomepageURL               string   `json:"homepage_url,omitempty" yaml:"homepage_url,omitempty"`
	DownloadURL               string   `json:"download_url,omitempty" yaml:"download_url,omitempty"`
	VCSURL                    string   `json:"vcs_url,omitempty" yaml:"vcs_url,omitempty"`
	ExtractedLicenseStatement string   `json:"extracted_license_statement,omitempty" yaml:"extracted_license_statement,omitempty"`
	Copyright                 string   `json:"copyright,omitempty" yaml:"copyright,omitempty"`
	SHA1                      string   `json:"sha1,omitempty" yaml:"sha1,omitempty"`
	SHA256                    string   `json:"sha256,omitempty" yaml:"sha256,omitempty"`
	Keywords                  []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Parties                   []Party  `json:"parties,omitempty" yaml:"parties,omitempty"`

	Dependencies   []DeclaredDependency `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	FileReferences []FileReference      `json:"file_references,omitempty" yaml:"file_references,omitempty"`
	ExtraData      map[string]any       `json:"extra_data,omitempty" yaml:"extra_data,omitempty"`
}

// DeclaredDependency is a dependency as a parser saw it in a datafile.
type DeclaredDependency struct {
	PackageURL  string         `json:"package_url,omitempty" yaml:"package_url,omitempty"`
	Requirement string         `json:"requirement,omitempty" yaml:"requirement,omitempty"`
	Scope       string         `json:"scope,omitempty" yaml:"scope,omitempty"`
	IsDirect    bool           `json:"is_direct,omitempty" yaml:"is_direct,omitempty"`
	IsRuntime   bool           `json:"is_runtime,omitempty" yaml:"is_runtime,omitempty"`
	IsOptional  bool           `json:"is_optional,omitempty" yaml:"is_optional,omitempty"`
	ExtraData   map[string]any `json:"extra_data,omitempty" yaml:"extra_data,omitempty"`
}

// FileReference is a path declared by an installed-package database entry.
type FileReference struct {
	Path   string `json:"path" yaml:"path"`
	Size   int64  `json:"size,omitempty" yaml:"size,omitempty"`
	MD5    string `json:"md5,omitempty" yaml:"md5,omitempty"`
	SHA1   string `json:"sha1,omitempty" yaml:"sha1,omitempty"`
	SHA256 string `json:"sha256,omitempty" yaml:"sha256,omitempty"`
}

// Party is a person or organization related to a package.
type Party struct {
	Role  string `json:"role,omitempty" yaml:"role,omitempty"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
	URL   string `json:"url,omitempty" yaml:"url,omitempty"`
}

// Dir returns the slash-separated parent directory of the record's source
// path, or "" for files at the scan root.
func (r *ExtractedRecord) Dir() string {
	return ParentDir(r.SourcePath)
}

// HasIdentity reports whether the record alone can name a package: either a
// parseable package URL or both a name and a version.
func (r *ExtractedRecord) HasIdentity() bool {
	if r.PackageURL != "" {
		if _, err := packageurl.FromString(r.PackageURL); err == nil {
			return true
		}
	}
	return r.Name != "" && r.Version != ""
}

// ResolvedPURL returns the record's package URL, synthesizing one from
// type/namespace/name/version when the parser did not provide a usable one.
// fallbackType is used when the record carries no type of its own.
func (r *ExtractedRecord) ResolvedPURL(fallbackType string) string {
	if r.PackageURL != "" {
		if _, err := packageurl.FromString(r.PackageURL); err == nil {
			return r.PackageURL
		}
	}
	if r.Name == "" {
		return ""
	}
	return BuildPURL(firstNonEmpty(r.Type, fallbackType, "generic"), r.Namespace, r.Name, r.Version)
}

// ExtraStrings returns the string list stored under key in the record's
// extra data. Both []string and []any (as decoded from JSON/YAML) are
// accepted; non-string items are skipped.
func (r *ExtractedRecord) ExtraStrings(key string) []string {
	if r.ExtraData == nil {
		return nil
	}
	return AsStrings(r.ExtraData[key])
}

// AsStrings converts a decoded JSON/YAML list into a string slice.
func AsStrings(v any) []string {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// AsMap converts a decoded JSON/YAML object into map[string]any. YAML v3
// decodes into map[string]any already; older decoders may produce
// map[any]any, which is normalized here.
func AsMap(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if ks, ok := k.(string); ok {
				out[ks] = val
			}
		}
		return out
	default:
		return nil
	}
}

// BuildPURL renders a package URL from its parts.
func BuildPURL(purlType, namespace, name, version string) string {
	p := packageurl.NewPackageURL(purlType, namespace, name, version, nil, "")
	return p.ToString()
}

// ParentDir returns the slash-separated parent directory of p, or "" when p
// has no directory component.
func ParentDir(p string) string {
	p = strings.TrimSuffix(p, "/")
	d := path.Dir(p)
	if d == "." || d == "/" {
		return ""
	}
	return d
}

// IsUnder reports whether p is dir itself or lies below it. The empty dir is
// the scan root and contains everything.
func IsUnder(p, dir string) bool {
	if dir == "" {
		return true
	}
	return p == dir || strings.HasPrefix(p, dir+"/")
}

// RelTo returns p relative to dir (which must contain it).
func RelTo(p, dir string) string {
	if dir == "" {
		return p
	}
	return strings.TrimPrefix(strings.TrimPrefix(p, dir), "/")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
