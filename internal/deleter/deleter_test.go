package deleter

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func newExecutor(t *testing.T) (*Executor, string) {
	t.Helper()
	dir := t.TempDir()
	root, err := os.OpenRoot(dir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { root.Close() })
	return New(root, zerolog.Nop()), dir
}

func TestDelete(t *testing.T) {
	e, dir := newExecutor(t)
	if err := os.WriteFile(filepath.Join(dir, "m.gguf"), []byte("GGUF"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := e.Delete("m.gguf"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "m.gguf")); !errors.Is(err, os.ErrNotExist) {
		t.Error("file still exists after delete")
	}
}

func TestDeleteNotFound(t *testing.T) {
	e, _ := newExecutor(t)
	err := e.Delete("gone.bin")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if !Succeeded(err) {
		t.Error("NotFound must count as success")
	}
}

func TestDeleteRejectsUnsafePaths(t *testing.T) {
	e, _ := newExecutor(t)
	for _, rel := range []string{"", ".", "/etc/passwd"} {
		if err := e.Delete(rel); err == nil {
			t.Errorf("Delete(%q) expected error", rel)
		}
	}
}

func TestDeleteAllContinuesPastFailures(t *testing.T) {
	e, dir := newExecutor(t)
	for _, name := range []string{"a.bin", "c.bin"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("GGUF"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	results := e.DeleteAll([]string{"a.bin", "missing.bin", "c.bin"})

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results["a.bin"] != nil || results["c.bin"] != nil {
		t.Errorf("existing files should delete cleanly: %v", results)
	}
	if !errors.Is(results["missing.bin"], ErrNotFound) {
		t.Errorf("missing.bin err = %v", results["missing.bin"])
	}
	for _, name := range []string{"a.bin", "c.bin"} {
		if _, err := os.Stat(filepath.Join(dir, name)); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s still exists", name)
		}
	}
}

func TestSucceeded(t *testing.T) {
	if !Succeeded(nil) {
		t.Error("nil must succeed")
	}
	if Succeeded(ErrPermission) {
		t.Error("permission failures are not success")
	}
}
