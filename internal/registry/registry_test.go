package registry

import (
	"testing"
	"time"
)

func candidate(path string, size int64) Candidate {
	return Candidate{
		Path:    path,
		Rel:     path[1:],
		Size:    size,
		ModTime: time.Unix(1700000000, 0),
		Kind:    "gguf",
	}
}

func TestAddAggregates(t *testing.T) {
	r := New()
	r.Add(candidate("/a/one.bin", 100))
	r.Add(candidate("/a/two.bin", 250))
	r.Add(candidate("/a/one.bin", 999)) // duplicate path must be a no-op

	if r.Count() != 2 {
		t.Errorf("Count = %d, want 2", r.Count())
	}
	if r.TotalBytes() != 350 {
		t.Errorf("TotalBytes = %d, want 350", r.TotalBytes())
	}
	if got := r.Visible(); len(got) != 2 || got[0].Path != "/a/one.bin" || got[1].Path != "/a/two.bin" {
		t.Errorf("Visible order wrong: %+v", got)
	}
}

func TestToggleIdempotence(t *testing.T) {
	r := New()
	r.Add(candidate("/m.gguf", 42))

	r.Toggle("/m.gguf")
	if r.SelectedCount() != 1 || r.SelectedBytes() != 42 {
		t.Fatalf("after toggle: count=%d bytes=%d", r.SelectedCount(), r.SelectedBytes())
	}
	r.Toggle("/m.gguf")
	if r.SelectedCount() != 0 || r.SelectedBytes() != 0 {
		t.Fatalf("after double toggle: count=%d bytes=%d", r.SelectedCount(), r.SelectedBytes())
	}

	// Unknown path is a silent no-op.
	r.Toggle("/missing")
	if r.SelectedCount() != 0 {
		t.Error("toggle of unknown path changed state")
	}
}

func TestSelectAllNone(t *testing.T) {
	r := New()
	r.Add(candidate("/a", 1))
	r.Add(candidate("/b", 2))
	r.Add(candidate("/c", 4))
	r.MarkDeleted("/c")

	r.SelectAll()
	if r.SelectedCount() != 2 || r.SelectedBytes() != 3 {
		t.Fatalf("SelectAll: count=%d bytes=%d, want 2/3", r.SelectedCount(), r.SelectedBytes())
	}
	if r.SelectedBytes() > r.TotalBytes() {
		t.Error("selected bytes exceed reclaimable total")
	}

	r.SelectNone()
	if r.SelectedCount() != 0 || r.SelectedBytes() != 0 {
		t.Fatalf("SelectNone: count=%d bytes=%d", r.SelectedCount(), r.SelectedBytes())
	}
}

func TestMarkDeleted(t *testing.T) {
	r := New()
	r.Add(candidate("/a", 100))
	r.Add(candidate("/b", 50))
	r.Toggle("/a")

	r.MarkDeleted("/a")

	if r.Count() != 1 || r.TotalBytes() != 50 {
		t.Errorf("aggregates after delete: count=%d total=%d, want 1/50", r.Count(), r.TotalBytes())
	}
	if r.SelectedCount() != 0 {
		t.Error("deleted candidate still counted as selected")
	}
	if r.DeletedCount() != 1 {
		t.Errorf("DeletedCount = %d, want 1", r.DeletedCount())
	}
	if got := r.Visible(); len(got) != 1 || got[0].Path != "/b" {
		t.Errorf("Visible after delete: %+v", got)
	}
	// Retained for the summary.
	if c, ok := r.Get("/a"); !ok || c.Status != StatusDeleted {
		t.Errorf("deleted candidate not retrievable: %+v ok=%v", c, ok)
	}
}

func TestMarkFailed(t *testing.T) {
	r := New()
	r.Add(candidate("/a", 100))
	r.Toggle("/a")

	r.MarkFailed("/a", "permission denied")

	if r.Count() != 1 || r.TotalBytes() != 100 {
		t.Error("failed candidate must stay in the reclaimable total")
	}
	if r.SelectedCount() != 0 {
		t.Error("failed candidate must be deselected")
	}
	c, _ := r.Get("/a")
	if c.Status != StatusFailed || c.FailReason != "permission denied" {
		t.Errorf("candidate = %+v", c)
	}
	if got := r.Visible(); len(got) != 1 {
		t.Error("failed candidate must stay visible")
	}
}

func TestRemove(t *testing.T) {
	r := New()
	r.Add(candidate("/a", 10))
	r.Add(candidate("/b", 20))
	r.Toggle("/b")

	r.Remove("/b")
	if r.Count() != 1 || r.TotalBytes() != 10 || r.SelectedCount() != 0 {
		t.Errorf("after remove: count=%d total=%d selected=%d", r.Count(), r.TotalBytes(), r.SelectedCount())
	}
	if _, ok := r.Get("/b"); ok {
		t.Error("removed candidate still present")
	}

	r.MarkDeleted("/a")
	r.Remove("/a")
	if r.DeletedCount() != 0 || len(r.All()) != 0 {
		t.Errorf("registry not empty: deleted=%d all=%d", r.DeletedCount(), len(r.All()))
	}
}

func TestSelectedPaths(t *testing.T) {
	r := New()
	r.Add(candidate("/a", 1))
	r.Add(candidate("/b", 2))
	r.Add(candidate("/c", 3))
	r.Toggle("/c")
	r.Toggle("/a")

	got := r.SelectedPaths()
	if len(got) != 2 || got[0] != "/a" || got[1] != "/c" {
		t.Errorf("SelectedPaths = %v, want discovery order [/a /c]", got)
	}
}
