package resources

import (
	"fmt"
	"io/fs"
	"sort"
)

// Resource is a file served from memory at a fixed virtual path.
type Resource struct {
	Path string // "/" followed by the file name
	Data []byte
}

// Name returns the path without its leading separator.
func (r *Resource) Name() string {
	return r.Path[1:]
}

// Size returns the exact length of the content.
func (r *Resource) Size() int64 {
	return int64(len(r.Data))
}

// Table is an immutable set of resources keyed by virtual path.
// It is safe for concurrent use because nothing mutates it after construction.
type Table struct {
	byPath map[string]*Resource
	sorted []*Resource
}

// New builds a table from the regular files directly under dir in fsys.
func New(fsys fs.FS, dir string) (*Table, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read resources: %w", err)
	}

	t := &Table{byPath: make(map[string]*Resource, len(entries))}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		data, err := fs.ReadFile(fsys, dir+"/"+e.Name())
		if err != nil {
			return nil, fmt.Errorf("read resource %s: %w", e.Name(), err)
		}
		t.add(&Resource{Path: "/" + e.Name(), Data: data})
	}
	return t, nil
}

// Default builds the table from the embedded files.
func Default() (*Table, error) {
	return New(Assets, "files")
}

// FromMap builds a table from name to content pairs.
func FromMap(files map[string][]byte) *Table {
	t := &Table{byPath: make(map[string]*Resource, len(files))}
	for name, data := range files {
		t.add(&Resource{Path: "/" + name, Data: data})
	}
	return t
}

func (t *Table) add(r *Resource) {
	t.byPath[r.Path] = r
	t.sorted = append(t.sorted, r)
	sort.Slice(t.sorted, func(i, j int) bool { return t.sorted[i].Path < t.sorted[j].Path })
}

// Lookup returns the resource stored at path, such as "/README.txt".
func (t *Table) Lookup(path string) (*Resource, bool) {
	if t == nil {
		return nil, false
	}
	r, ok := t.byPath[path]
	return r, ok
}

// All returns every resource ordered by path.
func (t *Table) All() []*Resource {
	if t == nil {
		return nil
	}
	return t.sorted
}

// Len returns the number of resources.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.sorted)
}
