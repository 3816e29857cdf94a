package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveRoot(t *testing.T) {
	got, err := resolveRoot([]string{"relative/dir"})
	if err != nil {
		t.Fatalf("resolveRoot: %v", err)
	}
	if !filepath.IsAbs(got) {
		t.Errorf("resolveRoot returned non-absolute path %q", got)
	}

	home, err := resolveRoot(nil)
	if err != nil {
		t.Fatalf("resolveRoot (default): %v", err)
	}
	if home == "" || !filepath.IsAbs(home) {
		t.Errorf("default root = %q", home)
	}
}

func TestInvalidRootFails(t *testing.T) {
	rootCmd.SetArgs([]string{filepath.Join(t.TempDir(), "does-not-exist")})
	defer rootCmd.SetArgs(nil)

	if err := rootCmd.Execute(); err == nil {
		t.Error("expected an error for a missing root")
	}
}

func TestListSignatures(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--list-signatures"})
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		listSignatures = false
	}()

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.String(), "gguf") {
		t.Errorf("output missing gguf signature:\n%s", out.String())
	}
}
