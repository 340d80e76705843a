package output

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/protobom/protobom/pkg/sbom"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/StinkyLord/sbom-assembler/internal/assembly"
	"github.com/StinkyLord/sbom-assembler/internal/model"
)

// WriteProtobom serialises the assembly result as a protobom document in its
// protojson encoding. Each package becomes a PACKAGE node keyed by its uid,
// resolved dependencies become dependsOn edges, and packages nothing depends
// on are the root elements.
func WriteProtobom(res *assembly.Result, outputPath, toolVersion string) error {
	doc := buildProtobom(res, toolVersion)
	data, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal protobom document: %w", err)
	}
	return writeBytes(outputPath, data)
}

func buildProtobom(res *assembly.Result, toolVersion string) *sbom.Document {
	pkgs := sortedPackages(res.Packages)
	tree := model.BuildDependencyTree(pkgs, res.Dependencies)

	nl := sbom.NewNodeList()
	for _, p := range pkgs {
		nl.AddNode(packageToNode(p))
		if to := tree.DependsOn(p.UID); len(to) > 0 {
			nl.Edges = append(nl.Edges, &sbom.Edge{
				Type: sbom.Edge_dependsOn,
				From: p.UID,
				To:   to,
			})
		}
	}
	for _, root := range tree.Roots {
		nl.RootElements = append(nl.RootElements, root.PackageUID)
	}

	return &sbom.Document{
		Metadata: &sbom.Metadata{
			Id:      "urn:uuid:" + uuid.NewString(),
			Version: "1",
			Name:    "sbom-assembler",
			Date:    timestamppb.Now(),
			Tools: []*sbom.Tool{{
				Name:    "sbom-assembler",
				Version: toolVersion,
				Vendor:  "StinkyLord",
			}},
		},
		NodeList: nl,
	}
}

func packageToNode(p *model.Package) *sbom.Node {
	node := &sbom.Node{
		Id:          p.UID,
		Type:        sbom.Node_PACKAGE,
		Name:        p.Name,
		Version:     p.Version,
		Description: p.Description,
		Copyright:   p.Copyright,
		UrlHome:     p.HomepageURL,
		UrlDownload: p.DownloadURL,
		Identifiers: map[int32]string{},
		Hashes:      map[int32]string{},
	}
	if p.PackageURL != "" {
		node.Identifiers[int32(sbom.SoftwareIdentifierType_PURL)] = p.PackageURL
	}
	if p.SHA1 != "" {
		node.Hashes[int32(sbom.HashAlgorithm_SHA1)] = p.SHA1
	}
	if p.SHA256 != "" {
		node.Hashes[int32(sbom.HashAlgorithm_SHA256)] = p.SHA256
	}
	if p.ExtractedLicenseStatement != "" {
		node.Licenses = []string{p.ExtractedLicenseStatement}
	}
	for _, ds := range p.DatasourceIDs {
		node.Properties = append(node.Properties, &sbom.Property{Name: "datasource_id", Data: string(ds)})
	}
	for _, path := range p.DatafilePaths {
		node.Properties = append(node.Properties, &sbom.Property{Name: "datafile_path", Data: path})
	}
	return node
}
