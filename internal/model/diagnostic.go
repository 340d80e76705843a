package model

// DiagnosticKind classifies a non-fatal assembly problem.
type DiagnosticKind string

const (
	DiagUnresolvableIdentity         DiagnosticKind = "unresolvable_identity"
	DiagMissingFileReference         DiagnosticKind = "missing_file_reference"
	DiagUnresolvedWorkspaceReference DiagnosticKind = "unresolved_workspace_reference"
	DiagGlobTruncated                DiagnosticKind = "glob_truncated"
	DiagMalformedPattern             DiagnosticKind = "malformed_pattern"
	DiagWorkspaceConflict            DiagnosticKind = "workspace_conflict"
	DiagWorkspaceNoMembers           DiagnosticKind = "workspace_no_members"
	DiagDependencyWithoutPURL        DiagnosticKind = "dependency_without_purl"
	DiagWorkspaceRootRetired         DiagnosticKind = "workspace_root_retired"
)

// Diagnostic is attached to the entity it concerns so it shows up in output.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Message string         `json:"message"`
	Path    string         `json:"path,omitempty"`
}

// UnattachedRecord is a record that was consumed by a merge pass but could
// not be attached to any package.
type UnattachedRecord struct {
	SourcePath   string               `json:"source_path"`
	DatasourceID DatasourceID         `json:"datasource_id"`
	Dependencies []DeclaredDependency `json:"dependencies,omitempty"`
	Diagnostics  []Diagnostic         `json:"diagnostics"`
}
