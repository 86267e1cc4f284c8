// Package glossary loads glossary terms and resolves matched text back to
// the canonical term key.
package glossary

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"
)

// ErrEmptyTerm is returned for a blank glossary key.
var ErrEmptyTerm = errors.New("glossary term is empty")

//go:embed glossary.json
var bundled []byte

// Entry is the definition of one term.
type Entry struct {
	Definition string `json:"definition" yaml:"definition"`
	Link       string `json:"link" yaml:"link"`
	Category   string `json:"category,omitempty" yaml:"category,omitempty"`
}

// Validate reports a missing definition or link.
func (e Entry) Validate() error {
	switch {
	case strings.TrimSpace(e.Definition) == "":
		return fmt.Errorf("definition is missing")
	case strings.TrimSpace(e.Link) == "":
		return fmt.Errorf("link is missing")
	}
	return nil
}

// Terms maps term keys to entries and remembers the order keys were added.
// The zero value is empty and ready to use.
type Terms struct {
	order   []string
	entries map[string]Entry
	folded  map[string][]string
}

// fold builds a new Caser per call; a Caser must not be shared between
// goroutines.
func fold(s string) string {
	return cases.Fold().String(s)
}

// Add inserts or replaces a term. Replacing keeps the original position.
func (t *Terms) Add(term string, entry Entry) error {
	if strings.TrimSpace(term) == "" {
		return ErrEmptyTerm
	}
	if t.entries == nil {
		t.entries = make(map[string]Entry)
		t.folded = make(map[string][]string)
	}
	if _, exists := t.entries[term]; !exists {
		t.order = append(t.order, term)
		key := fold(term)
		t.folded[key] = append(t.folded[key], term)
	}
	t.entries[term] = entry
	return nil
}

// Len returns the number of terms.
func (t *Terms) Len() int {
	return len(t.order)
}

// Keys returns the terms in insertion order.
func (t *Terms) Keys() []string {
	keys := make([]string, len(t.order))
	copy(keys, t.order)
	return keys
}

// Get returns the entry stored under the exact key.
func (t *Terms) Get(term string) (Entry, bool) {
	e, ok := t.entries[term]
	return e, ok
}

// Resolve maps matched page text to its glossary key. An exact-case key
// wins; otherwise the earliest-added key with the same case fold.
func (t *Terms) Resolve(matched string) (string, bool) {
	if _, ok := t.entries[matched]; ok {
		return matched, true
	}
	candidates := t.folded[fold(matched)]
	if len(candidates) == 0 {
		return "", false
	}
	return candidates[0], true
}

// Lookup resolves matched text and returns the canonical key with its entry.
func (t *Terms) Lookup(matched string) (string, Entry, bool) {
	key, ok := t.Resolve(matched)
	if !ok {
		return "", Entry{}, false
	}
	return key, t.entries[key], true
}

// UnmarshalJSON decodes a JSON object of term -> entry, preserving key order.
func (t *Terms) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to read glossary: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("glossary must be a JSON object")
	}

	*t = Terms{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("failed to read glossary key: %w", err)
		}
		key, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("failed to decode entry %q: %w", key, err)
		}
		// A malformed entry is kept empty so the term still matches and
		// Validate reports it when it is used.
		var entry Entry
		_ = json.Unmarshal(raw, &entry)
		if err := t.Add(key, entry); err != nil {
			// Blank keys cannot be matched; drop them.
			continue
		}
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("failed to read glossary end: %w", err)
	}
	return nil
}

// MarshalJSON encodes the terms as a JSON object in insertion order.
func (t Terms) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range t.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(t.entries[key])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalYAML decodes a YAML mapping of term -> entry in document order.
func (t *Terms) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("glossary must be a YAML mapping")
	}
	*t = Terms{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		var entry Entry
		_ = node.Content[i+1].Decode(&entry)
		if err := t.Add(key, entry); err != nil {
			continue
		}
	}
	return nil
}

// Parse decodes a JSON glossary.
func Parse(data []byte) (*Terms, error) {
	terms := &Terms{}
	if err := json.Unmarshal(data, terms); err != nil {
		return nil, fmt.Errorf("failed to parse glossary JSON: %w", err)
	}
	return terms, nil
}

// ParseYAML decodes a YAML glossary.
func ParseYAML(data []byte) (*Terms, error) {
	terms := &Terms{}
	if err := yaml.Unmarshal(data, terms); err != nil {
		return nil, fmt.Errorf("failed to parse glossary YAML: %w", err)
	}
	return terms, nil
}

// Load reads a glossary file. Files ending in .yaml or .yml are read as
// YAML, everything else as JSON. An empty path loads the bundled glossary.
func Load(path string) (*Terms, error) {
	if strings.TrimSpace(path) == "" {
		return Bundled()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read glossary file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return Parse(data)
	}
}

// Bundled returns the glossary shipped with the binary.
func Bundled() (*Terms, error) {
	return Parse(bundled)
}
