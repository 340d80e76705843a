package model

// Dependency is a declared dependency attached to exactly one package.
type Dependency struct {
	PackageURL    string         `json:"purl"`
	Requirement   string         `json:"extracted_requirement,omitempty"`
	Scope         string         `json:"scope,omitempty"`
	IsDirect      bool           `json:"is_direct"`
	IsRuntime     bool           `json:"is_runtime"`
	IsOptional    bool           `json:"is_optional"`
	Namespace     string         `json:"namespace,omitempty"`
	DependencyUID string         `json:"dependency_uid"`
	ForPackageUID string         `json:"for_package_uid"`
	DatafilePath  string         `json:"datafile_path"`
	DatasourceID  DatasourceID   `json:"datasource_id"`
	ExtraData     map[string]any `json:"extra_data,omitempty"`
	Diagnostics   []Diagnostic   `json:"diagnostics,omitempty"`
}

// NewDependency attaches a declared dependency to the package forUID.
// It returns nil when the dependency carries no package URL.
func NewDependency(d DeclaredDependency, forUID string, rec *ExtractedRecord) *Dependency {
	if d.PackageURL == "" {
		return nil
	}
	return &Dependency{
		PackageURL:    d.PackageURL,
		Requirement:   d.Requirement,
		Scope:         d.Scope,
		IsDirect:      d.IsDirect,
		IsRuntime:     d.IsRuntime,
		IsOptional:    d.IsOptional,
		DependencyUID: BuildPackageUID(d.PackageURL),
		ForPackageUID: forUID,
		DatafilePath:  rec.SourcePath,
		DatasourceID:  rec.DatasourceID,
		ExtraData:     d.ExtraData,
	}
}

// Key returns the deduplication key of a dependency within one package.
func (d *Dependency) Key() string {
	return d.PackageURL + "\x00" + d.Requirement + "\x00" + d.Scope
}

// Name returns the ecosystem-spelled name of the dependency target.
func (d *Dependency) Name() string {
	return PURLName(d.PackageURL)
}

// AddDiagnostic attaches diag to the dependency.
func (d *Dependency) AddDiagnostic(diag Diagnostic) {
	d.Diagnostics = append(d.Diagnostics, diag)
}

// DependencySet accumulates dependencies in insertion order, dropping any
// whose Key was already seen.
type DependencySet struct {
	items []*Dependency
	seen  map[string]struct{}
}

// Add appends d unless an equivalent dependency is already present. It
// reports whether d was added.
func (s *DependencySet) Add(d *Dependency) bool {
	if d == nil {
		return false
	}
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	k := d.Key()
	if _, ok := s.seen[k]; ok {
		return false
	}
	s.seen[k] = struct{}{}
	s.items = append(s.items, d)
	return true
}

// Items returns the accumulated dependencies.
func (s *DependencySet) Items() []*Dependency {
	return s.items
}

