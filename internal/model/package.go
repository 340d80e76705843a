package model

import (
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Package is one logical package assembled from one or more records.
//
// UID is set once by NewPackage and never changes. A package that a later
// pass supersedes is dropped from the result, never rewritten under the same
// UID.
type Package struct {
	UID        string `json:"package_uid"`
	Type       string `json:"type,omitempty"`
	Namespace  string `json:"namespace,omitempty"`
	Name       string `json:"name,omitempty"`
	Version    string `json:"version,omitempty"`
	PackageURL string `json:"purl,omitempty"`
	IsPrivate  bool   `json:"is_private,omitempty"`

	PrimaryLanguage           string   `json:"primary_language,omitempty"`
	Description               string   `json:"description,omitempty"`
	HomepageURL               string   `json:"homepage_url,omitempty"`
	DownloadURL               string   `json:"download_url,omitempty"`
	VCSURL                    string   `json:"vcs_url,omitempty"`
	ExtractedLicenseStatement string   `json:"extracted_license_statement,omitempty"`
	Copyright                 string   `json:"copyright,omitempty"`
	SHA1                      string   `json:"sha1,omitempty"`
	SHA256                    string   `json:"sha256,omitempty"`
	Keywords                  []string `json:"keywords,omitempty"`
	Parties                   []Party  `json:"parties,omitempty"`

	DatafilePaths         []string        `json:"datafile_paths"`
	DatasourceIDs         []DatasourceID  `json:"datasource_ids"`
	FileReferences        []FileReference `json:"file_references,omitempty"`
	MissingFileReferences []string        `json:"missing_file_references,omitempty"`

	ExtraData   map[string]any `json:"extra_data,omitempty"`
	Diagnostics []Diagnostic   `json:"diagnostics,omitempty"`
}

// NewPackage creates a package seeded from rec and assigns its UID.
// fallbackType is the package type used when rec has neither a purl nor a
// type. The caller must have checked rec.HasIdentity.
func NewPackage(rec *ExtractedRecord, fallbackType string) *Package {
	p := &Package{
		Type:      firstNonEmpty(rec.Type, fallbackType),
		Namespace: rec.Namespace,
		Name:      rec.Name,
		Version:   rec.Version,
		IsPrivate: rec.IsPrivate,
	}
	p.PackageURL = rec.ResolvedPURL(fallbackType)
	p.fillFromPURL()
	p.Update(rec)
	p.UID = BuildPackageUID(p.PackageURL)
	return p
}

// Update merges rec into p. Scalars are only written when currently empty;
// list fields are unioned. The datafile path and datasource id are always
// recorded.
func (p *Package) Update(rec *ExtractedRecord) {
	setIfEmpty(&p.Type, rec.Type)
	setIfEmpty(&p.Namespace, rec.Namespace)
	setIfEmpty(&p.Name, rec.Name)
	setIfEmpty(&p.Version, rec.Version)
	setIfEmpty(&p.PrimaryLanguage, rec.PrimaryLanguage)
	setIfEmpty(&p.Description, rec.Description)
	setIfEmpty(&p.HomepageURL, rec.HomepageURL)
	setIfEmpty(&p.DownloadURL, rec.DownloadURL)
	setIfEmpty(&p.VCSURL, rec.VCSURL)
	setIfEmpty(&p.ExtractedLicenseStatement, rec.ExtractedLicenseStatement)
	setIfEmpty(&p.Copyright, rec.Copyright)
	setIfEmpty(&p.SHA1, rec.SHA1)
	setIfEmpty(&p.SHA256, rec.SHA256)
	if p.PackageURL == "" {
		p.PackageURL = rec.ResolvedPURL(p.Type)
	}

	for _, kw := range rec.Keywords {
		p.Keywords = appendUnique(p.Keywords, kw)
	}
	for _, party := range rec.Parties {
		if !slices.Contains(p.Parties, party) {
			p.Parties = append(p.Parties, party)
		}
	}
	for _, ref := range rec.FileReferences {
		if !slices.Contains(p.FileReferences, ref) {
			p.FileReferences = append(p.FileReferences, ref)
		}
	}
	for k, v := range rec.ExtraData {
		if p.ExtraData == nil {
			p.ExtraData = make(map[string]any, len(rec.ExtraData))
		}
		if _, ok := p.ExtraData[k]; !ok {
			p.ExtraData[k] = v
		}
	}

	p.AddDatafile(rec.SourcePath, rec.DatasourceID)
}

// AddDatafile records that path (produced by datasource id) contributed to p.
func (p *Package) AddDatafile(path string, id DatasourceID) {
	if path != "" {
		p.DatafilePaths = appendUnique(p.DatafilePaths, path)
	}
	if id != "" && !slices.Contains(p.DatasourceIDs, id) {
		p.DatasourceIDs = append(p.DatasourceIDs, id)
	}
}

// AddDiagnostic attaches d to the package.
func (p *Package) AddDiagnostic(d Diagnostic) {
	p.Diagnostics = append(p.Diagnostics, d)
}

// SetExtra stores value under key, allocating the bag if needed.
func (p *Package) SetExtra(key string, value any) {
	if p.ExtraData == nil {
		p.ExtraData = make(map[string]any)
	}
	p.ExtraData[key] = value
}

func (p *Package) fillFromPURL() {
	purl, err := ParsePURL(p.PackageURL)
	if err != nil {
		return
	}
	setIfEmpty(&p.Type, purl.Type)
	setIfEmpty(&p.Namespace, purl.Namespace)
	setIfEmpty(&p.Name, purl.Name)
	setIfEmpty(&p.Version, purl.Version)
}

// BuildPackageUID derives a new unique id from purl by adding a random uuid
// qualifier. Any subpath is kept after the qualifiers.
//
//	pkg:npm/foo@1.0.0          -> pkg:npm/foo@1.0.0?uuid=<uuid>
//	pkg:rpm/fedora/bash?arch=x -> pkg:rpm/fedora/bash?arch=x&uuid=<uuid>
func BuildPackageUID(purl string) string {
	id := uuid.NewString()
	if purl == "" {
		return "uuid:" + id
	}
	base, subpath, hasSubpath := strings.Cut(purl, "#")
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	uid := base + sep + "uuid=" + id
	if hasSubpath {
		uid += "#" + subpath
	}
	return uid
}

func setIfEmpty(dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
	}
}

func appendUnique(list []string, v string) []string {
	if v == "" || slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}
