// Package registry holds the candidates discovered by a scan and the
// aggregate numbers the UI renders. It is a plain single-writer structure;
// the interaction model owns it for the life of the process.
package registry

import "time"

// Status tracks what has happened to a candidate since discovery.
type Status int

const (
	StatusPending Status = iota
	StatusDeleted
	StatusFailed
)

// Candidate is one file eligible for deletion.
type Candidate struct {
	Path       string // absolute, unique key
	Rel        string // root-relative, used for os.Root operations
	Size       int64
	ModTime    time.Time
	Kind       string
	Selected   bool
	Status     Status
	FailReason string
}

// Registry is an insertion-ordered, path-keyed candidate collection.
type Registry struct {
	order []string
	index map[string]*Candidate

	count         int
	totalBytes    int64
	selectedCount int
	selectedBytes int64
	deleted       int
}

func New() *Registry {
	return &Registry{index: map[string]*Candidate{}}
}

// Add inserts a candidate at the end of the display order. A path already
// present is left untouched.
func (r *Registry) Add(c Candidate) {
	if _, ok := r.index[c.Path]; ok {
		return
	}
	c.Status = StatusPending
	c.Selected = false
	stored := c
	r.index[c.Path] = &stored
	r.order = append(r.order, c.Path)
	r.count++
	r.totalBytes += c.Size
}

// Toggle flips the selection of the candidate at path. Unknown, deleted and
// failed paths are ignored.
func (r *Registry) Toggle(path string) {
	c, ok := r.index[path]
	if !ok || c.Status != StatusPending {
		return
	}
	if c.Selected {
		c.Selected = false
		r.selectedCount--
		r.selectedBytes -= c.Size
	} else {
		c.Selected = true
		r.selectedCount++
		r.selectedBytes += c.Size
	}
}

// SelectAll marks every pending candidate.
func (r *Registry) SelectAll() {
	for _, path := range r.order {
		c := r.index[path]
		if c.Status == StatusPending && !c.Selected {
			c.Selected = true
			r.selectedCount++
			r.selectedBytes += c.Size
		}
	}
}

// SelectNone clears every selection.
func (r *Registry) SelectNone() {
	for _, path := range r.order {
		c := r.index[path]
		if c.Selected {
			c.Selected = false
			r.selectedCount--
			r.selectedBytes -= c.Size
		}
	}
}

// MarkDeleted records a successful removal. The candidate leaves the visible
// list and every aggregate but stays retrievable for the summary.
func (r *Registry) MarkDeleted(path string) {
	c, ok := r.index[path]
	if !ok || c.Status == StatusDeleted {
		return
	}
	if c.Selected {
		c.Selected = false
		r.selectedCount--
		r.selectedBytes -= c.Size
	}
	c.Status = StatusDeleted
	c.FailReason = ""
	r.count--
	r.totalBytes -= c.Size
	r.deleted++
}

// MarkFailed records a failed removal. The candidate stays visible and keeps
// counting toward the reclaimable total.
func (r *Registry) MarkFailed(path, reason string) {
	c, ok := r.index[path]
	if !ok || c.Status == StatusDeleted {
		return
	}
	if c.Selected {
		c.Selected = false
		r.selectedCount--
		r.selectedBytes -= c.Size
	}
	c.Status = StatusFailed
	c.FailReason = reason
}

// Remove drops a candidate entirely.
func (r *Registry) Remove(path string) {
	c, ok := r.index[path]
	if !ok {
		return
	}
	if c.Status == StatusDeleted {
		r.deleted--
	} else {
		if c.Selected {
			r.selectedCount--
			r.selectedBytes -= c.Size
		}
		r.count--
		r.totalBytes -= c.Size
	}
	delete(r.index, path)
	for i, p := range r.order {
		if p == path {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns a copy of the candidate at path.
func (r *Registry) Get(path string) (Candidate, bool) {
	c, ok := r.index[path]
	if !ok {
		return Candidate{}, false
	}
	return *c, true
}

// Visible returns pending and failed candidates in discovery order.
func (r *Registry) Visible() []Candidate {
	out := make([]Candidate, 0, len(r.order))
	for _, path := range r.order {
		c := r.index[path]
		if c.Status == StatusDeleted {
			continue
		}
		out = append(out, *c)
	}
	return out
}

// All returns every candidate, deleted ones included, in discovery order.
func (r *Registry) All() []Candidate {
	out := make([]Candidate, 0, len(r.order))
	for _, path := range r.order {
		out = append(out, *r.index[path])
	}
	return out
}

// SelectedPaths returns the paths marked for deletion, in discovery order.
func (r *Registry) SelectedPaths() []string {
	paths := []string{}
	for _, path := range r.order {
		c := r.index[path]
		if c.Selected && c.Status == StatusPending {
			paths = append(paths, path)
		}
	}
	return paths
}

// Count is the number of not-yet-deleted candidates.
func (r *Registry) Count() int { return r.count }

// TotalBytes is the reclaimable total over not-yet-deleted candidates.
func (r *Registry) TotalBytes() int64 { return r.totalBytes }

// SelectedCount is the number of candidates marked for deletion.
func (r *Registry) SelectedCount() int { return r.selectedCount }

// SelectedBytes is the byte total over marked candidates.
func (r *Registry) SelectedBytes() int64 { return r.selectedBytes }

// DeletedCount is the number of candidates removed so far.
func (r *Registry) DeletedCount() int { return r.deleted }
