// Package deleter removes confirmed files through a root-anchored handle so
// a delete can never reach outside the scanned tree.
package deleter

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

var (
	// ErrNotFound means the file was already gone. Callers treat it as
	// success: the desired end state is reached either way.
	ErrNotFound = errors.New("delete: file not found")

	// ErrPermission means the file exists but could not be removed.
	ErrPermission = errors.New("delete: permission denied")
)

// Executor deletes files below a fixed root. One attempt per path, no
// retries, and one failure never stops the rest of a batch.
type Executor struct {
	root *os.Root
	log  zerolog.Logger
}

func New(root *os.Root, log zerolog.Logger) *Executor {
	return &Executor{root: root, log: log}
}

// Delete removes the file at the root-relative path. The error is nil,
// ErrNotFound, ErrPermission, or the underlying IO error.
func (e *Executor) Delete(rel string) error {
	cleaned, err := validatePath(rel)
	if err != nil {
		return err
	}
	if e.root == nil {
		return errors.New("delete: root handle is nil")
	}

	err = e.root.Remove(cleaned)
	switch {
	case err == nil:
		e.log.Info().Str("path", cleaned).Msg("deleted")
		return nil
	case errors.Is(err, fs.ErrNotExist):
		e.log.Debug().Str("path", cleaned).Msg("already gone")
		return ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		e.log.Warn().Str("path", cleaned).Msg("permission denied")
		return ErrPermission
	default:
		e.log.Warn().Str("path", cleaned).Err(err).Msg("delete failed")
		return err
	}
}

// DeleteAll attempts every path once and reports the per-path outcome.
func (e *Executor) DeleteAll(rels []string) map[string]error {
	results := make(map[string]error, len(rels))
	for _, rel := range rels {
		results[rel] = e.Delete(rel)
	}
	return results
}

// Succeeded reports whether a Delete outcome reached the desired end state.
func Succeeded(err error) bool {
	return err == nil || errors.Is(err, ErrNotFound)
}

func validatePath(rel string) (string, error) {
	if rel == "" {
		return "", errors.New("delete: empty path")
	}
	cleaned := filepath.Clean(rel)
	if cleaned == "." || cleaned == string(os.PathSeparator) {
		return "", errors.New("delete: refusing to delete root")
	}
	if filepath.IsAbs(cleaned) {
		return "", errors.New("delete: absolute paths are not allowed")
	}
	return cleaned, nil
}
