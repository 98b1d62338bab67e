// Package catalog loads authored decisions from YAML.
//
// Authored decisions are presented as-is instead of being generated, and may
// declare typed impacts on each option. A default catalog is embedded; an
// optional file can add entries or replace default ones by key.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "github.com/louisbranch/chronicle/internal/platform/errors"
	"github.com/louisbranch/chronicle/internal/services/story/domain/decision"
	"github.com/louisbranch/chronicle/internal/services/story/domain/impact"
)

//go:embed default.yaml
var defaultCatalog []byte

// File is the top-level structure of a catalog file.
type File struct {
	Version   string  `yaml:"version"`
	Decisions []Entry `yaml:"decisions"`
}

// Entry is one authored decision.
type Entry struct {
	Key              string         `yaml:"key"`
	Prompt           string         `yaml:"prompt"`
	Importance       string         `yaml:"importance,omitempty"`
	NarrativeContext string         `yaml:"narrative_context,omitempty"`
	Location         *LocationEntry `yaml:"location,omitempty"`
	Characters       []string       `yaml:"characters,omitempty"`
	Options          []OptionEntry  `yaml:"options"`
}

// LocationEntry anchors an authored decision to a place.
type LocationEntry struct {
	Type string `yaml:"type"`
	Name string `yaml:"name,omitempty"`
}

// OptionEntry is one authored option.
type OptionEntry struct {
	Text    string        `yaml:"text"`
	Impact  string        `yaml:"impact"`
	Tags    []string      `yaml:"tags,omitempty"`
	Impacts []ImpactEntry `yaml:"impacts,omitempty"`
}

// ImpactEntry is the flat YAML form of a typed impact.
type ImpactEntry struct {
	Type       string  `yaml:"type"`
	Target     string  `yaml:"target"`
	Value      float64 `yaml:"value"`
	Severity   string  `yaml:"severity,omitempty"`
	DurationMS int64   `yaml:"duration_ms,omitempty"`
}

// Catalog indexes authored decisions by key.
type Catalog struct {
	entries map[string]Entry
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	catalog := &Catalog{entries: map[string]Entry{}}
	if err := catalog.merge(defaultCatalog, "default catalog"); err != nil {
		return nil, err
	}
	return catalog, nil
}

// Load returns the embedded catalog overlaid with the file at path. An empty
// path returns the embedded catalog alone.
func Load(path string) (*Catalog, error) {
	catalog, err := Default()
	if err != nil {
		return nil, err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return catalog, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	if err := catalog.merge(data, path); err != nil {
		return nil, err
	}
	return catalog, nil
}

// Parse builds a catalog from YAML data without the embedded defaults.
func Parse(data []byte) (*Catalog, error) {
	catalog := &Catalog{entries: map[string]Entry{}}
	if err := catalog.merge(data, "catalog"); err != nil {
		return nil, err
	}
	return catalog, nil
}

func (c *Catalog) merge(data []byte, source string) error {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse %s: %w", source, err)
	}
	for i, entry := range file.Decisions {
		entry.Key = strings.TrimSpace(entry.Key)
		if err := entry.validate(); err != nil {
			return fmt.Errorf("%s entry %d: %w", source, i, err)
		}
		c.entries[entry.Key] = entry
	}
	return nil
}

// Keys returns the catalog keys in sorted order.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Entry returns the authored entry for key.
func (c *Catalog) Entry(key string) (Entry, error) {
	entry, ok := c.entries[strings.TrimSpace(key)]
	if !ok {
		return Entry{}, apperrors.WithMetadata(apperrors.CodeCatalogEntryNotFound,
			fmt.Sprintf("catalog entry %q not found", key),
			map[string]string{"Key": key})
	}
	return entry, nil
}

// Build stamps a fresh authored decision for key.
func (c *Catalog) Build(factory decision.Factory, key string) (decision.Decision, error) {
	entry, err := c.Entry(key)
	if err != nil {
		return decision.Decision{}, err
	}
	return entry.Build(factory)
}

// Build turns the entry into an authored decision with fresh ids.
func (e Entry) Build(factory decision.Factory) (decision.Decision, error) {
	options := make([]decision.Option, 0, len(e.Options))
	for _, item := range e.Options {
		option, err := factory.CreateOption(item.Text, item.Impact, item.Tags...)
		if err != nil {
			return decision.Decision{}, err
		}
		impacts, err := item.impacts()
		if err != nil {
			return decision.Decision{}, err
		}
		option.Impacts = impacts
		options = append(options, option)
	}

	importance, _ := decision.ParseImportance(e.Importance)
	input := decision.CreateDecisionInput{
		Prompt:           e.Prompt,
		Options:          options,
		NarrativeContext: e.NarrativeContext,
		Importance:       importance,
		Characters:       e.Characters,
	}
	if e.Location != nil {
		input.Location = &decision.Location{
			Type: decision.LocationType(strings.ToLower(strings.TrimSpace(e.Location.Type))),
			Name: strings.TrimSpace(e.Location.Name),
		}
	}
	return factory.CreateDecision(input)
}

func (e Entry) validate() error {
	invalid := func(message string) error {
		return apperrors.WithMetadata(apperrors.CodeCatalogInvalidEntry, message, map[string]string{"Key": e.Key})
	}
	if e.Key == "" {
		return invalid("catalog entry key is required")
	}
	if strings.TrimSpace(e.Prompt) == "" {
		return invalid(fmt.Sprintf("catalog entry %q has no prompt", e.Key))
	}
	if len(e.Options) == 0 {
		return invalid(fmt.Sprintf("catalog entry %q has no options", e.Key))
	}
	if e.Importance != "" {
		if _, ok := decision.ParseImportance(e.Importance); !ok {
			return invalid(fmt.Sprintf("catalog entry %q has unknown importance %q", e.Key, e.Importance))
		}
	}
	for _, option := range e.Options {
		if strings.TrimSpace(option.Text) == "" {
			return invalid(fmt.Sprintf("catalog entry %q has an option without text", e.Key))
		}
		if _, err := option.impacts(); err != nil {
			return err
		}
	}
	return nil
}

func (o OptionEntry) impacts() ([]impact.Impact, error) {
	if len(o.Impacts) == 0 {
		return nil, nil
	}
	out := make([]impact.Impact, 0, len(o.Impacts))
	for _, item := range o.Impacts {
		parsed, err := impact.FromWire(item.Type, item.Target, item.Value, item.Severity, item.DurationMS)
		if err != nil {
			return nil, err
		}
		out = append(out, parsed)
	}
	return out, nil
}
