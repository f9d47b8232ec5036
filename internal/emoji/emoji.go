// Package emoji substitutes Unicode emoji with short bracketed descriptions
// so they survive fonts that cannot render them. The mapping is loaded once
// per process, asynchronously; rendering never waits for it.
package emoji

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	yaml "gopkg.in/yaml.v3"
)

//go:embed table.yaml
var defaultTable []byte

// Table maps emoji sequences to text labels. The zero value is usable and
// behaves as "not yet loaded": Replace passes text through unchanged.
type Table struct {
	mu       sync.RWMutex
	replacer *strings.Replacer
	size     int
}

// NewTable returns an empty, not-yet-loaded table.
func NewTable() *Table { return &Table{} }

// LoadDefault installs the embedded mapping.
func (t *Table) LoadDefault() {
	if err := t.load(defaultTable); err != nil {
		// The embedded table is validated by tests; a parse failure here
		// means a broken build, but rendering must still proceed.
		log.Error().Err(err).Msg("embedded emoji table failed to parse")
	}
}

// LoadFile installs a mapping from a YAML file of emoji: label pairs.
func (t *Table) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := t.load(b); err != nil {
		return fmt.Errorf("emoji table %s: %w", path, err)
	}
	return nil
}

// StartLoading loads the table in the background: the file at path when
// given, otherwise the embedded default. Errors fall back to the default
// and are logged; they never surface to the export.
func (t *Table) StartLoading(path string) {
	go func() {
		if path == "" {
			t.LoadDefault()
			return
		}
		if err := t.LoadFile(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("emoji table load failed; using embedded default")
			t.LoadDefault()
		}
	}()
}

func (t *Table) load(b []byte) error {
	var m map[string]string
	if err := yaml.Unmarshal(b, &m); err != nil {
		return err
	}
	// Longer sequences first so multi-codepoint emoji win over their
	// prefixes.
	keys := make([]string, 0, len(m))
	for k := range m {
		if k != "" && m[k] != "" {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, "["+m[k]+"]")
	}
	r := strings.NewReplacer(pairs...)

	t.mu.Lock()
	t.replacer = r
	t.size = len(keys)
	t.mu.Unlock()
	return nil
}

// Ready reports whether a mapping has finished loading.
func (t *Table) Ready() bool {
	if t == nil {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.replacer != nil
}

// Len reports how many sequences the loaded mapping covers.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// Replace substitutes every mapped emoji in s with its bracketed label.
// Unmapped emoji pass through unchanged. While the table is still loading,
// s is returned as-is: substitution is best-effort and never blocks.
func (t *Table) Replace(s string) string {
	if t == nil {
		return s
	}
	t.mu.RLock()
	r := t.replacer
	t.mu.RUnlock()
	if r == nil {
		return s
	}
	return r.Replace(s)
}
