// Package sig identifies model-weight files by their leading magic bytes.
package sig

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Signature is one known magic prefix and the format it identifies.
type Signature struct {
	Magic []byte
	Kind  string
}

var defaultSignatures = []Signature{
	{Magic: []byte("GGUF"), Kind: "gguf"},
	{Magic: []byte("ggjt"), Kind: "ggml-jt"},
	{Magic: []byte("ggla"), Kind: "ggml-lora"},
	{Magic: []byte("ggmf"), Kind: "ggml-mf"},
	{Magic: []byte("ggml"), Kind: "ggml"},
}

// Table is a closed set of signatures checked in order.
type Table struct {
	sigs   []Signature
	maxLen int
}

// DefaultTable returns the built-in signature set.
func DefaultTable() Table {
	return newTable(defaultSignatures)
}

// BuildTable merges the defaults with extra "kind:hexmagic" entries and
// removes any kinds named in disable.
func BuildTable(extra, disable []string) (Table, error) {
	sigs := make([]Signature, len(defaultSignatures))
	copy(sigs, defaultSignatures)

	for _, raw := range extra {
		s, err := parseSignature(raw)
		if err != nil {
			return Table{}, err
		}
		sigs = append(sigs, s)
	}

	if len(disable) > 0 {
		drop := map[string]struct{}{}
		for _, kind := range disable {
			drop[strings.TrimSpace(kind)] = struct{}{}
		}
		kept := sigs[:0]
		for _, s := range sigs {
			if _, ok := drop[s.Kind]; !ok {
				kept = append(kept, s)
			}
		}
		sigs = kept
	}

	if len(sigs) == 0 {
		return Table{}, fmt.Errorf("sig: no signatures left after disabling")
	}
	return newTable(sigs), nil
}

func newTable(sigs []Signature) Table {
	maxLen := 0
	for _, s := range sigs {
		if len(s.Magic) > maxLen {
			maxLen = len(s.Magic)
		}
	}
	return Table{sigs: sigs, maxLen: maxLen}
}

func parseSignature(raw string) (Signature, error) {
	kind, hexMagic, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok || kind == "" || hexMagic == "" {
		return Signature{}, fmt.Errorf("sig: invalid signature %q, want kind:hexmagic", raw)
	}
	magic, err := hex.DecodeString(hexMagic)
	if err != nil {
		return Signature{}, fmt.Errorf("sig: invalid magic in %q: %w", raw, err)
	}
	if len(magic) == 0 {
		return Signature{}, fmt.Errorf("sig: empty magic in %q", raw)
	}
	return Signature{Magic: magic, Kind: kind}, nil
}

// Detect reports the kind whose magic is an exact prefix of header. A header
// shorter than every magic never matches.
func (t Table) Detect(header []byte) (string, bool) {
	for _, s := range t.sigs {
		if len(header) >= len(s.Magic) && bytes.Equal(header[:len(s.Magic)], s.Magic) {
			return s.Kind, true
		}
	}
	return "", false
}

// MaxLen is the longest magic in the table; reading this many bytes from the
// start of a file is always enough to classify it.
func (t Table) MaxLen() int {
	return t.maxLen
}

// Kinds returns the kind labels in the table, sorted.
func (t Table) Kinds() []string {
	kinds := make([]string, 0, len(t.sigs))
	for _, s := range t.sigs {
		kinds = append(kinds, s.Kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Describe returns one "kind  hexmagic" line per signature for --list-signatures.
func (t Table) Describe() []string {
	lines := make([]string, 0, len(t.sigs))
	for _, s := range t.sigs {
		lines = append(lines, fmt.Sprintf("%-12s %s", s.Kind, hex.EncodeToString(s.Magic)))
	}
	return lines
}
