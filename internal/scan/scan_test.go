package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/entro314-labs/modelkill/internal/registry"
)

func writeFile(t *testing.T, root, rel string, content []byte) {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		t.Fatal(err)
	}
}

func ggufContent(payload int) []byte {
	return append([]byte("GGUF"), make([]byte, payload)...)
}

func openRoot(t *testing.T, dir string) *os.Root {
	t.Helper()
	root, err := os.OpenRoot(dir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { root.Close() })
	return root
}

func runScan(t *testing.T, ctx context.Context, opts Options) ([]registry.Candidate, Done) {
	t.Helper()
	events, err := Run(ctx, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var cands []registry.Candidate
	var done Done
	for ev := range events {
		switch ev := ev.(type) {
		case Found:
			cands = append(cands, ev.Candidate)
		case Done:
			done = ev
		}
	}
	return cands, done
}

func TestScanSpecScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "model.bin", ggufContent(1000))
	writeFile(t, dir, "notes.txt", []byte("no magic here, 50 bytes of plain prose padding..."))
	writeFile(t, dir, "empty.gguf", nil)

	cands, done := runScan(t, context.Background(), Options{
		Root:       dir,
		RootHandle: openRoot(t, dir),
	})

	if len(cands) != 1 {
		t.Fatalf("found %d candidates, want 1: %+v", len(cands), cands)
	}
	c := cands[0]
	if c.Path != filepath.Join(dir, "model.bin") {
		t.Errorf("Path = %q", c.Path)
	}
	if c.Rel != "model.bin" {
		t.Errorf("Rel = %q", c.Rel)
	}
	if c.Size != 1004 {
		t.Errorf("Size = %d, want 1004", c.Size)
	}
	if c.Kind != "gguf" {
		t.Errorf("Kind = %q, want gguf", c.Kind)
	}
	if c.ModTime.IsZero() {
		t.Error("ModTime not populated")
	}
	if done.Found != 1 || done.Cancelled || done.Errors != 0 {
		t.Errorf("done = %+v", done)
	}
}

func TestScanMatchesRegardlessOfExtension(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "weights", ggufContent(10))
	writeFile(t, dir, "weights.gguf", ggufContent(20))
	writeFile(t, dir, "decoy.gguf", []byte("not a model at all"))
	writeFile(t, dir, "short", []byte("GG")) // shorter than the magic

	cands, _ := runScan(t, context.Background(), Options{
		Root:       dir,
		RootHandle: openRoot(t, dir),
	})

	got := map[string]bool{}
	for _, c := range cands {
		got[c.Rel] = true
	}
	if len(got) != 2 || !got["weights"] || !got["weights.gguf"] {
		t.Errorf("candidates = %v, want weights and weights.gguf only", got)
	}
}

func TestScanSkipsSymlinksAndSkipDirs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "real.bin", ggufContent(5))
	writeFile(t, dir, ".git/objects/pack.bin", ggufContent(5))
	writeFile(t, dir, "sub/nested.bin", ggufContent(5))

	if err := os.Symlink(filepath.Join(dir, "real.bin"), filepath.Join(dir, "alias.bin")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if err := os.Symlink(filepath.Join(dir, "sub"), filepath.Join(dir, "subalias")); err != nil {
		t.Fatal(err)
	}

	cands, done := runScan(t, context.Background(), Options{
		Root:       dir,
		RootHandle: openRoot(t, dir),
		Workers:    1,
	})

	var rels []string
	for _, c := range cands {
		rels = append(rels, c.Rel)
	}
	want := []string{"real.bin", filepath.Join("sub", "nested.bin")}
	if len(rels) != len(want) {
		t.Fatalf("candidates = %v, want %v", rels, want)
	}
	for i := range want {
		if rels[i] != want[i] {
			t.Fatalf("candidates = %v, want %v", rels, want)
		}
	}
	if done.Errors != 0 {
		t.Errorf("symlink skipping must not count as an error, got %d", done.Errors)
	}
}

func TestScanSingleWorkerDeterministic(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.bin", ggufContent(2))
	writeFile(t, dir, "a.bin", ggufContent(1))
	writeFile(t, dir, "sub/c.bin", ggufContent(3))

	for run := 0; run < 3; run++ {
		cands, _ := runScan(t, context.Background(), Options{
			Root:       dir,
			RootHandle: openRoot(t, dir),
			Workers:    1,
		})
		want := []string{"a.bin", "b.bin", filepath.Join("sub", "c.bin")}
		if len(cands) != 3 {
			t.Fatalf("run %d: %d candidates", run, len(cands))
		}
		for i, c := range cands {
			if c.Rel != want[i] {
				t.Fatalf("run %d: order = %v, want %v", run, cands, want)
			}
		}
	}
}

func TestScanMaxDepth(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "top.bin", ggufContent(1))
	writeFile(t, dir, "one/mid.bin", ggufContent(1))
	writeFile(t, dir, "one/two/deep.bin", ggufContent(1))

	cands, _ := runScan(t, context.Background(), Options{
		Root:       dir,
		RootHandle: openRoot(t, dir),
		MaxDepth:   2,
		Workers:    1,
	})

	got := map[string]bool{}
	for _, c := range cands {
		got[c.Rel] = true
	}
	if len(got) != 2 || !got["top.bin"] || !got[filepath.Join("one", "mid.bin")] {
		t.Errorf("candidates = %v, want top.bin and one/mid.bin", got)
	}
}

func TestScanCancellation(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 20; i++ {
		writeFile(t, dir, filepath.Join("d", string(rune('a'+i)), "m.bin"), ggufContent(1))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cands, done := runScan(t, ctx, Options{
		Root:       dir,
		RootHandle: openRoot(t, dir),
		Workers:    1,
	})

	if !done.Cancelled {
		t.Error("done.Cancelled = false after cancellation")
	}
	// A full rescan must find a superset of whatever the partial run emitted.
	full, fullDone := runScan(t, context.Background(), Options{
		Root:       dir,
		RootHandle: openRoot(t, dir),
		Workers:    1,
	})
	if fullDone.Cancelled || len(full) < len(cands) {
		t.Errorf("full scan found %d, partial found %d", len(full), len(cands))
	}
	if len(full) != 20 {
		t.Errorf("full scan found %d, want 20", len(full))
	}
}

func TestScanInvalidRoot(t *testing.T) {
	if _, err := Run(context.Background(), Options{Root: "/nope"}); err != ErrInvalidRoot {
		t.Errorf("Run with nil handle: err = %v, want ErrInvalidRoot", err)
	}
}

func TestScanParallelFindsEverything(t *testing.T) {
	dir := t.TempDir()
	want := 0
	for _, sub := range []string{"a", "b", "c", "d/e", "d/f/g"} {
		writeFile(t, dir, filepath.Join(sub, "model.bin"), ggufContent(100))
		writeFile(t, dir, filepath.Join(sub, "readme.txt"), []byte("text"))
		want++
	}

	cands, done := runScan(t, context.Background(), Options{
		Root:       dir,
		RootHandle: openRoot(t, dir),
		Workers:    4,
	})

	if len(cands) != want {
		t.Fatalf("found %d, want %d", len(cands), want)
	}
	var total int64
	seen := map[string]bool{}
	for _, c := range cands {
		if seen[c.Path] {
			t.Errorf("duplicate candidate %s", c.Path)
		}
		seen[c.Path] = true
		total += c.Size
	}
	if total != int64(want)*104 {
		t.Errorf("total size = %d, want %d", total, want*104)
	}
	if done.Elapsed <= 0 || done.Elapsed > time.Minute {
		t.Errorf("implausible elapsed %v", done.Elapsed)
	}
}
