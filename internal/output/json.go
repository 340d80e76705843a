package output

import (
	"time"

	"github.com/StinkyLord/sbom-assembler/internal/assembly"
	"github.com/StinkyLord/sbom-assembler/internal/model"
)

type jsonDocument struct {
	Headers      []jsonHeader             `json:"headers"`
	Packages     []*model.Package         `json:"packages"`
	Dependencies []*model.Dependency      `json:"dependencies"`
	Files        []model.FileEntry        `json:"files"`
	Unattached   []model.UnattachedRecord `json:"unattached_records"`
}

type jsonHeader struct {
	ToolName    string         `json:"tool_name"`
	ToolVersion string         `json:"tool_version"`
	EndTime     string         `json:"end_timestamp"`
	Counts      map[string]int `json:"counts"`
}

// WriteJSON writes the assembled packages, dependencies, file associations
// and unattached records as one JSON document.
func WriteJSON(res *assembly.Result, outputPath, toolVersion string) error {
	return writeJSON(outputPath, buildJSON(res, toolVersion, time.Now().UTC()))
}

func buildJSON(res *assembly.Result, toolVersion string, now time.Time) jsonDocument {
	doc := jsonDocument{
		Packages:     nonNil(res.Packages),
		Dependencies: nonNil(res.Dependencies),
		Files:        []model.FileEntry{},
		Unattached:   nonNil(res.Unattached),
	}
	if res.Files != nil {
		doc.Files = res.Files.Entries()
	}
	doc.Headers = []jsonHeader{{
		ToolName:    "sbom-assembler",
		ToolVersion: toolVersion,
		EndTime:     now.Format(time.RFC3339),
		Counts: map[string]int{
			"packages":           len(doc.Packages),
			"dependencies":       len(doc.Dependencies),
			"files":              len(doc.Files),
			"unattached_records": len(doc.Unattached),
		},
	}}
	return doc
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
