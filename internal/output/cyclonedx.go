package output

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/StinkyLord/sbom-assembler/internal/assembly"
	"github.com/StinkyLord/sbom-assembler/internal/model"
)

// ---- CycloneDX 1.4 JSON schema types ----

type cdxBOM struct {
	BOMFormat      string          `json:"bomFormat"`
	SpecVersion    string          `json:"specVersion"`
	Version        int             `json:"version"`
	SerialNumber   string          `json:"serialNumber"`
	Metadata       cdxMetadata     `json:"metadata"`
	Components     []cdxComponent  `json:"components"`
	Dependencies   []cdxDependency `json:"dependencies,omitempty"`
	DependencyTree []*cdxTreeNode  `json:"x-dependencyTree,omitempty"`
}

// cdxTreeNode is a recursive tree node for the x-dependencyTree extension.
// Packages nothing else depends on sit at the root; each node carries its
// full subtree of children inline.
type cdxTreeNode struct {
	Name           string         `json:"name"`
	Version        string         `json:"version,omitempty"`
	PURL           string         `json:"purl,omitempty"`
	Ref            string         `json:"ref,omitempty"`
	DependencyType string         `json:"dependencyType"`
	Children       []*cdxTreeNode `json:"children,omitempty"`
}

type cdxMetadata struct {
	Timestamp string    `json:"timestamp"`
	Tools     []cdxTool `json:"tools"`
}

type cdxTool struct {
	Vendor  string `json:"vendor"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

type cdxComponent struct {
	Type        string        `json:"type"`
	BOMRef      string        `json:"bom-ref"`
	Name        string        `json:"name"`
	Group       string        `json:"group,omitempty"`
	Version     string        `json:"version,omitempty"`
	PURL        string        `json:"purl,omitempty"`
	Description string        `json:"description,omitempty"`
	Copyright   string        `json:"copyright,omitempty"`
	Hashes      []cdxHash     `json:"hashes,omitempty"`
	Licenses    []cdxLicense  `json:"licenses,omitempty"`
	ExtRefs     []cdxExtRef   `json:"externalReferences,omitempty"`
	Properties  []cdxProperty `json:"properties,omitempty"`
}

type cdxHash struct {
	Alg     string `json:"alg"`
	Content string `json:"content"`
}

type cdxLicense struct {
	Expression string `json:"expression"`
}

type cdxExtRef struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type cdxProperty struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// cdxDependency represents one node in the CycloneDX dependency graph.
// "ref" is the bom-ref (package uid) of the component; "dependsOn" lists the
// bom-refs of the assembled packages its dependencies resolve to.
type cdxDependency struct {
	Ref       string   `json:"ref"`
	DependsOn []string `json:"dependsOn"`
}

// WriteCycloneDX serialises the assembly result as a CycloneDX 1.4 JSON SBOM
// and writes it to the given output path. If outputPath is "-", it writes to
// stdout.
func WriteCycloneDX(res *assembly.Result, outputPath, toolVersion string) error {
	return writeJSON(outputPath, buildCycloneDX(res, toolVersion))
}

func buildCycloneDX(res *assembly.Result, toolVersion string) cdxBOM {
	pkgs := sortedPackages(res.Packages)
	tree := model.BuildDependencyTree(pkgs, res.Dependencies)

	comps := make([]cdxComponent, 0, len(pkgs))
	deps := make([]cdxDependency, 0, len(pkgs))
	for _, p := range pkgs {
		comps = append(comps, packageToComponent(p))
		dependsOn := tree.DependsOn(p.UID)
		if dependsOn == nil {
			dependsOn = []string{}
		}
		deps = append(deps, cdxDependency{Ref: p.UID, DependsOn: dependsOn})
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i].Ref < deps[j].Ref })

	var depTree []*cdxTreeNode
	for _, root := range tree.Roots {
		depTree = append(depTree, modelNodeToCDX(root))
	}

	return cdxBOM{
		BOMFormat:    "CycloneDX",
		SpecVersion:  "1.4",
		Version:      1,
		SerialNumber: "urn:uuid:" + uuid.NewString(),
		Metadata: cdxMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Tools: []cdxTool{{
				Vendor:  "StinkyLord",
				Name:    "sbom-assembler",
				Version: toolVersion,
			}},
		},
		Components:     comps,
		Dependencies:   deps,
		DependencyTree: depTree,
	}
}

func packageToComponent(p *model.Package) cdxComponent {
	comp := cdxComponent{
		Type:        "library",
		BOMRef:      p.UID,
		Name:        p.Name,
		Group:       p.Namespace,
		Version:     p.Version,
		PURL:        p.PackageURL,
		Description: p.Description,
		Copyright:   p.Copyright,
	}
	if p.SHA1 != "" {
		comp.Hashes = append(comp.Hashes, cdxHash{Alg: "SHA-1", Content: p.SHA1})
	}
	if p.SHA256 != "" {
		comp.Hashes = append(comp.Hashes, cdxHash{Alg: "SHA-256", Content: p.SHA256})
	}
	if p.ExtractedLicenseStatement != "" {
		comp.Licenses = []cdxLicense{{Expression: p.ExtractedLicenseStatement}}
	}
	for _, ref := range []cdxExtRef{
		{Type: "website", URL: p.HomepageURL},
		{Type: "distribution", URL: p.DownloadURL},
		{Type: "vcs", URL: p.VCSURL},
	} {
		if ref.URL != "" {
			comp.ExtRefs = append(comp.ExtRefs, ref)
		}
	}

	add := func(name, value string) {
		comp.Properties = append(comp.Properties, cdxProperty{Name: name, Value: value})
	}
	if p.IsPrivate {
		add("sbom:private", "true")
	}
	for _, ds := range p.DatasourceIDs {
		add("sbom:datasourceId", string(ds))
	}
	for _, path := range p.DatafilePaths {
		add("sbom:datafilePath", path)
	}
	for _, path := range p.MissingFileReferences {
		add("sbom:missingFileReference", path)
	}
	for _, d := range p.Diagnostics {
		add("sbom:diagnostic", strings.TrimSpace(string(d.Kind)+": "+d.Message))
	}
	return comp
}

// modelNodeToCDX converts a model.TreeNode to a cdxTreeNode recursively.
func modelNodeToCDX(n *model.TreeNode) *cdxTreeNode {
	node := &cdxTreeNode{
		Name:           n.Name,
		Version:        n.Version,
		PURL:           n.PURL,
		Ref:            n.PackageUID,
		DependencyType: n.DependencyType,
	}
	for _, child := range n.Children {
		node.Children = append(node.Children, modelNodeToCDX(child))
	}
	return node
}

// sortedPackages orders packages by name, then purl, then uid.
func sortedPackages(in []*model.Package) []*model.Package {
	pkgs := make([]*model.Package, len(in))
	copy(pkgs, in)
	sort.Slice(pkgs, func(i, j int) bool {
		if pkgs[i].Name != pkgs[j].Name {
			return pkgs[i].Name < pkgs[j].Name
		}
		if pkgs[i].PackageURL != pkgs[j].PackageURL {
			return pkgs[i].PackageURL < pkgs[j].PackageURL
		}
		return pkgs[i].UID < pkgs[j].UID
	})
	return pkgs
}
