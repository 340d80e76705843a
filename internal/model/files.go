package model

import (
	"slices"
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
)

// FileAssociations maps scanned file paths to the uids of the packages that
// claim them (for_packages). It is safe for concurrent use; each per-path
// update is atomic.
type FileAssociations struct {
	m *xsync.MapOf[string, []string]
}

// NewFileAssociations returns an association map holding every scanned path
// with an empty for_packages set.
func NewFileAssociations(paths []string) *FileAssociations {
	fa := &FileAssociations{
		m: xsync.NewMapOf[string, []string](xsync.WithPresize(len(paths))),
	}
	for _, p := range paths {
		fa.m.Store(p, nil)
	}
	return fa
}

// Add records uid as claiming path. Unknown paths are added.
func (fa *FileAssociations) Add(path, uid string) {
	fa.m.Compute(path, func(old []string, _ bool) ([]string, bool) {
		i, found := slices.BinarySearch(old, uid)
		if found {
			return old, false
		}
		next := make([]string, 0, len(old)+1)
		next = append(next, old[:i]...)
		next = append(next, uid)
		next = append(next, old[i:]...)
		return next, false
	})
}

// Set replaces the claims on path with uids.
func (fa *FileAssociations) Set(path string, uids []string) {
	next := slices.Clone(uids)
	sort.Strings(next)
	next = slices.Compact(next)
	fa.m.Store(path, next)
}

// Get returns the sorted uids claiming path.
func (fa *FileAssociations) Get(path string) []string {
	v, _ := fa.m.Load(path)
	return slices.Clone(v)
}

// Paths returns every known path, sorted.
func (fa *FileAssociations) Paths() []string {
	out := make([]string, 0, fa.m.Size())
	fa.m.Range(func(k string, _ []string) bool {
		out = append(out, k)
		return true
	})
	sort.Strings(out)
	return out
}

// Scrub removes every uid in retired from every path.
func (fa *FileAssociations) Scrub(retired map[string]struct{}) {
	if len(retired) == 0 {
		return
	}
	for _, p := range fa.Paths() {
		fa.m.Compute(p, func(old []string, _ bool) ([]string, bool) {
			next := old[:0:0]
			for _, uid := range old {
				if _, gone := retired[uid]; !gone {
					next = append(next, uid)
				}
			}
			return next, false
		})
	}
}

// FileEntry is one path with its for_packages set.
type FileEntry struct {
	Path        string   `json:"path"`
	ForPackages []string `json:"for_packages"`
}

// Entries returns every path with its claims, sorted by path.
func (fa *FileAssociations) Entries() []FileEntry {
	paths := fa.Paths()
	out := make([]FileEntry, 0, len(paths))
	for _, p := range paths {
		uids := fa.Get(p)
		if uids == nil {
			uids = []string{}
		}
		out = append(out, FileEntry{Path: p, ForPackages: uids})
	}
	return out
}
