package model

import (
	"sort"

	"github.com/package-url/packageurl-go"
)

// TreeNode is a single node in the recursive dependency tree.
// Each node carries its full subtree of children inline, like npm's
// package-lock.json, so the tree can be rendered at any depth.
//
// Example:
//
//	X@1 -> children: [A@1 -> children: [B@1]]
//	Y@1 -> children: [C@1 -> children: [A@1 -> children: [B@1]]]
type TreeNode struct {
	Name           string      `json:"name"`
	Version        string      `json:"version,omitempty"`
	PURL           string      `json:"purl,omitempty"`
	PackageUID     string      `json:"package_uid,omitempty"`
	DependencyType string      `json:"dependencyType"` // "root", "direct" or "transitive"
	Requirement    string      `json:"requirement,omitempty"`
	Scope          string      `json:"scope,omitempty"`
	Children       []*TreeNode `json:"children,omitempty"`
}

// DependencyTree links assembled packages through their dependencies.
type DependencyTree struct {
	Packages []*Package

	// ByUID provides O(1) lookup of a package by uid.
	ByUID map[string]*Package

	// Edges maps a package uid to the dependencies it declares, sorted by
	// purl. Target is set when a dependency resolves to an assembled package.
	Edges map[string][]Edge

	// Roots is the recursive tree: packages nothing else depends on at the
	// top level, each carrying their full subtree of children.
	Roots []*TreeNode
}

// Edge is one dependency of a package, resolved to an assembled package when
// possible.
type Edge struct {
	Dependency *Dependency
	Target     *Package
}

// BuildDependencyTree resolves every dependency against the package set and
// builds the package graph.
//
// A dependency resolves to a package with the same purl (qualifiers and
// subpath ignored). Without a version on the dependency purl it resolves to
// the only package of that name, if there is exactly one.
func BuildDependencyTree(packages []*Package, deps []*Dependency) *DependencyTree {
	tree := &DependencyTree{
		Packages: packages,
		ByUID:    make(map[string]*Package, len(packages)),
		Edges:    make(map[string][]Edge, len(packages)),
	}

	byPURL := make(map[string]*Package, len(packages))
	byName := make(map[string][]*Package, len(packages))
	for _, p := range packages {
		tree.ByUID[p.UID] = p
		if k, ok := purlKey(p.PackageURL, true); ok {
			byPURL[k] = p
		}
		if k, ok := purlKey(p.PackageURL, false); ok {
			byName[k] = append(byName[k], p)
		}
	}

	targeted := make(map[string]bool)
	for _, d := range deps {
		if _, ok := tree.ByUID[d.ForPackageUID]; !ok {
			continue
		}
		e := Edge{Dependency: d}
		if k, ok := purlKey(d.PackageURL, true); ok && byPURL[k] != nil {
			e.Target = byPURL[k]
		} else if k, ok := purlKey(d.PackageURL, false); ok && len(byName[k]) == 1 && !hasVersion(d.PackageURL) {
			e.Target = byName[k][0]
		}
		if e.Target != nil && e.Target.UID != d.ForPackageUID {
			targeted[e.Target.UID] = true
		}
		tree.Edges[d.ForPackageUID] = append(tree.Edges[d.ForPackageUID], e)
	}
	for uid := range tree.Edges {
		edges := tree.Edges[uid]
		sort.SliceStable(edges, func(i, j int) bool {
			return edges[i].Dependency.PackageURL < edges[j].Dependency.PackageURL
		})
	}

	var roots []*Package
	for _, p := range packages {
		if !targeted[p.UID] {
			roots = append(roots, p)
		}
	}
	tree.Roots = tree.buildTree(roots)
	return tree
}

// DependsOn returns the uids of the packages that uid's dependencies resolve
// to, sorted and deduplicated.
func (t *DependencyTree) DependsOn(uid string) []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range t.Edges[uid] {
		if e.Target == nil || seen[e.Target.UID] {
			continue
		}
		seen[e.Target.UID] = true
		out = append(out, e.Target.UID)
	}
	sort.Strings(out)
	return out
}

// workItem holds a pending node to be expanded along with the set of ancestor
// uids on the path from the root to this node (used for cycle detection).
type workItem struct {
	pkg       *Package
	node      *TreeNode
	ancestors map[string]bool
}

// buildTree builds the npm-style dependency tree iteratively, level by level,
// using a queue instead of recursion. Cycles are broken by tracking the
// ancestor set on the path from the root: a child that would close a cycle
// is emitted as a leaf.
func (t *DependencyTree) buildTree(roots []*Package) []*TreeNode {
	sorted := make([]*Package, len(roots))
	copy(sorted, roots)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}
		return sorted[i].PackageURL < sorted[j].PackageURL
	})

	out := make([]*TreeNode, 0, len(sorted))
	queue := make([]workItem, 0, len(sorted))

	for _, p := range sorted {
		node := &TreeNode{
			Name:           p.Name,
			Version:        p.Version,
			PURL:           p.PackageURL,
			PackageUID:     p.UID,
			DependencyType: "root",
		}
		out = append(out, node)
		queue = append(queue, workItem{pkg: p, node: node, ancestors: map[string]bool{p.UID: true}})
	}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		for _, e := range t.Edges[item.pkg.UID] {
			d := e.Dependency
			depType := "transitive"
			if d.IsDirect {
				depType = "direct"
			}

			if e.Target == nil {
				// Referenced but not assembled: placeholder leaf.
				item.node.Children = append(item.node.Children, &TreeNode{
					Name:           d.Name(),
					PURL:           d.PackageURL,
					DependencyType: depType,
					Requirement:    d.Requirement,
					Scope:          d.Scope,
				})
				continue
			}

			child := &TreeNode{
				Name:           e.Target.Name,
				Version:        e.Target.Version,
				PURL:           e.Target.PackageURL,
				PackageUID:     e.Target.UID,
				DependencyType: depType,
				Requirement:    d.Requirement,
				Scope:          d.Scope,
			}
			item.node.Children = append(item.node.Children, child)

			if item.ancestors[e.Target.UID] {
				continue
			}
			ancestors := make(map[string]bool, len(item.ancestors)+1)
			for k := range item.ancestors {
				ancestors[k] = true
			}
			ancestors[e.Target.UID] = true
			queue = append(queue, workItem{pkg: e.Target, node: child, ancestors: ancestors})
		}
	}

	return out
}

// purlKey normalizes a purl for graph lookups, dropping qualifiers and
// subpath, and optionally the version.
func purlKey(s string, withVersion bool) (string, bool) {
	p, err := ParsePURL(s)
	if err != nil {
		return "", false
	}
	version := ""
	if withVersion {
		if p.Version == "" {
			return "", false
		}
		version = p.Version
	}
	return packageurl.NewPackageURL(p.Type, p.Namespace, p.Name, version, nil, "").ToString(), true
}

func hasVersion(s string) bool {
	p, err := ParsePURL(s)
	return err == nil && p.Version != ""
}
