package output

import (
	"github.com/StinkyLord/sbom-assembler/internal/assembly"
	"github.com/StinkyLord/sbom-assembler/internal/model"
)

// WriteDependencyTree serialises the assembled packages as a pure dependency
// tree JSON and writes it to the given output path. If outputPath is "-", it
// writes to stdout.
//
// The output is a JSON array of root packages, those no other package depends
// on. Each node carries its package uid and purl plus a "children" array that
// recursively contains its dependencies. Dependencies that did not resolve to
// an assembled package appear as leaves without a package_uid.
//
// Example output:
//
//	[
//	  {
//	    "name": "app",
//	    "version": "1.0.0",
//	    "purl": "pkg:npm/app@1.0.0",
//	    "package_uid": "pkg:npm/app@1.0.0?uuid=...",
//	    "dependencyType": "root",
//	    "children": [
//	      {
//	        "name": "left-pad",
//	        "purl": "pkg:npm/left-pad",
//	        "dependencyType": "direct",
//	        "requirement": "^1.3.0"
//	      }
//	    ]
//	  }
//	]
func WriteDependencyTree(res *assembly.Result, outputPath string) error {
	tree := model.BuildDependencyTree(sortedPackages(res.Packages), res.Dependencies)
	if len(tree.Roots) == 0 {
		// Emit an empty array rather than null
		return writeJSON(outputPath, []struct{}{})
	}
	return writeJSON(outputPath, tree.Roots)
}
