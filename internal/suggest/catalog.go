// Package suggest maps a dominant emotion to a small, varied set of external
// resources drawn from a static catalog.
package suggest

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/andresmejia3/moodlens/internal/emotion"
	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

// ErrNoFallback is returned when a catalog has no neutral entries to fall back on.
var ErrNoFallback = errors.New("catalog has no neutral entries")

// Entry is one suggested resource.
type Entry struct {
	URL         string `yaml:"url" json:"url"`
	Description string `yaml:"description" json:"description"`
}

// UnmarshalYAML accepts either a {url, description} mapping or the compact
// "https://example.com - Description" string form.
func (e *Entry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		parsed, err := ParseEntry(value.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", value.Line, err)
		}
		*e = parsed
		return nil
	}
	type plain Entry
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*e = Entry(p)
	return nil
}

// ParseEntry splits "url - description" on the first " - " separator.
// A bare URL is accepted and used as its own description.
func ParseEntry(s string) (Entry, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Entry{}, fmt.Errorf("empty catalog entry")
	}
	url, desc, found := strings.Cut(s, " - ")
	url = strings.TrimSpace(url)
	desc = strings.TrimSpace(desc)
	if !found || desc == "" {
		desc = url
	}
	return Entry{URL: url, Description: desc}, nil
}

// Catalog is an immutable emotion -> entries table.
type Catalog struct {
	entries map[emotion.Label][]Entry
}

// NewCatalog validates and copies m. Every key must be a known label, every entry
// needs a URL, and the neutral list must be non-empty.
func NewCatalog(m map[emotion.Label][]Entry) (*Catalog, error) {
	c := &Catalog{entries: make(map[emotion.Label][]Entry, len(m))}
	for label, list := range m {
		if !label.Valid() {
			return nil, fmt.Errorf("unknown emotion %q in catalog", label)
		}
		cp := make([]Entry, 0, len(list))
		for i, e := range list {
			if strings.TrimSpace(e.URL) == "" {
				return nil, fmt.Errorf("%s entry %d: missing url", label, i)
			}
			if e.Description == "" {
				e.Description = e.URL
			}
			cp = append(cp, e)
		}
		c.entries[label] = cp
	}
	if len(c.entries[emotion.Neutral]) == 0 {
		return nil, ErrNoFallback
	}
	return c, nil
}

// LoadCatalog decodes a YAML document keyed by emotion label.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var raw map[string][]Entry
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	m := make(map[emotion.Label][]Entry, len(raw))
	for key, list := range raw {
		label, err := emotion.ParseLabel(key)
		if err != nil {
			return nil, err
		}
		m[label] = append(m[label], list...)
	}
	return NewCatalog(m)
}

// LoadCatalogFile reads a YAML catalog from disk.
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	c, err := LoadCatalog(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() *Catalog {
	c, err := LoadCatalog(bytes.NewReader(defaultCatalogYAML))
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

// Lookup returns a copy of the entries for l, if any.
func (c *Catalog) Lookup(l emotion.Label) ([]Entry, bool) {
	list, ok := c.entries[l]
	if !ok || len(list) == 0 {
		return nil, false
	}
	out := make([]Entry, len(list))
	copy(out, list)
	return out, true
}

// Entries returns the list for l, substituting the neutral list when l is absent.
func (c *Catalog) Entries(l emotion.Label) (entries []Entry, fallback bool) {
	if list, ok := c.Lookup(l); ok {
		return list, false
	}
	list, _ := c.Lookup(emotion.Neutral)
	return list, true
}

// Labels returns the labels present in the catalog, in enum order.
func (c *Catalog) Labels() []emotion.Label {
	var out []emotion.Label
	for _, l := range emotion.Labels {
		if len(c.entries[l]) > 0 {
			out = append(out, l)
		}
	}
	return out
}

// All returns a deep copy of the table.
func (c *Catalog) All() map[emotion.Label][]Entry {
	out := make(map[emotion.Label][]Entry, len(c.entries))
	for l := range c.entries {
		out[l], _ = c.Lookup(l)
	}
	return out
}

// Len is the total number of entries.
func (c *Catalog) Len() int {
	n := 0
	for _, list := range c.entries {
		n += len(list)
	}
	return n
}
