// Package template loads the test catalogue of one report template.
//
// A catalogue is a JSON object with exactly three categories. Each category
// lists test names in extraction order and one regular expression that pulls
// the numeric value out of the text following a test name:
//
//	{
//	  "type_1": {"tests": ["hemoglobina"], "regex": "resultado: (-?\\d+,?\\d*)"},
//	  "type_2": {"tests": ["glicose"], "regex": "(-?\\d+,?\\d*)", "strategy": "prefix"},
//	  "type_3": {"tests": ["ureia"], "regex": "resultado .+\\n.*?(-?\\d+,?\\d+)"}
//	}
//
// "strategy" is optional for categories named type_1 (exact), type_2 (prefix)
// and type_3 (exact_multiline).
package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"golang.org/x/exp/slices"

	"labpivot/internal/normalize"
	"labpivot/pkg/contract"
)

// CategoryCount is the number of categories a catalogue must define.
const CategoryCount = 3

// strategy of the conventional category names.
var conventional = map[string]contract.Strategy{
	"type_1": contract.ExactLine,
	"type_2": contract.PrefixLine,
	"type_3": contract.ExactLineMultiline,
}

type categoryDef struct {
	Tests    []string `json:"tests"`
	Regex    string   `json:"regex"`
	Strategy string   `json:"strategy,omitempty"`
}

// Test: one catalogue entry with its compiled structural matcher.
type Test struct {
	Name     string
	Category string
	matcher  *regexp.Regexp
}

// FindIn returns the offset right after the first structural match of the
// test name in text.
func (t Test) FindIn(text string) (int, bool) {
	loc := t.matcher.FindStringIndex(text)
	if loc == nil {
		return 0, false
	}
	return loc[1], true
}

// Category: ordered tests sharing one strategy and one value regex.
type Category struct {
	name     string
	strategy contract.Strategy
	pattern  string
	value    *regexp.Regexp
	tests    []Test
}

func (c *Category) Name() string { return c.name }
func (c *Category) Strategy() contract.Strategy { return c.strategy }

// Pattern returns the value regex as written in the catalogue.
func (c *Category) Pattern() string { return c.pattern }

// Tests returns the category's tests in catalogue order.
func (c *Category) Tests() []Test { return slices.Clone(c.tests) }

// Names returns the category's test names in catalogue order.
func (c *Category) Names() []string {
	out := make([]string, len(c.tests))
	for i, t := range c.tests {
		out[i] = t.Name
	}
	return out
}

// Value applies the value regex to rest and returns the first capturing group
// of the first match (the whole match when the regex has no group).
func (c *Category) Value(rest string) (string, bool) {
	m := c.value.FindStringSubmatch(rest)
	if m == nil {
		return "", false
	}
	if len(m) > 1 {
		return m[1], true
	}
	return m[0], true
}

// Registry: immutable catalogue. Safe for concurrent use.
type Registry struct {
	cats []*Category
}

// Categories returns the categories sorted by name.
func (r *Registry) Categories() []*Category { return slices.Clone(r.cats) }

// Category looks a category up by name.
func (r *Registry) Category(name string) (*Category, bool) {
	for _, c := range r.cats {
		if c.name == name {
			return c, true
		}
	}
	return nil, false
}

// Tests returns every test name in category order. A name listed by more than
// one category appears once, at its first position.
func (r *Registry) Tests() []string {
	var out []string
	seen := map[string]bool{}
	for _, c := range r.cats {
		for _, t := range c.tests {
			if seen[t.Name] {
				continue
			}
			seen[t.Name] = true
			out = append(out, t.Name)
		}
	}
	return out
}

// Load reads and parses a catalogue file.
func Load(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contract.ErrTemplateLoad, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a catalogue. Every schema violation wraps
// contract.ErrTemplateLoad.
func Parse(r io.Reader) (*Registry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contract.ErrTemplateLoad, err)
	}
	var top map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&top); err != nil {
		return nil, fmt.Errorf("%w: %v", contract.ErrTemplateLoad, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after catalogue object", contract.ErrTemplateLoad)
	}
	if len(top) != CategoryCount {
		return nil, fmt.Errorf("%w: want %d categories, got %d", contract.ErrTemplateLoad, CategoryCount, len(top))
	}

	names := make([]string, 0, len(top))
	for name := range top {
		names = append(names, name)
	}
	slices.Sort(names)

	reg := &Registry{cats: make([]*Category, 0, len(names))}
	for _, name := range names {
		c, err := buildCategory(name, top[name])
		if err != nil {
			return nil, fmt.Errorf("%w: category %q: %v", contract.ErrTemplateLoad, name, err)
		}
		reg.cats = append(reg.cats, c)
	}
	return reg, nil
}

func buildCategory(name string, raw json.RawMessage) (*Category, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("empty category name")
	}
	var def categoryDef
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&def); err != nil {
		return nil, err
	}

	strategy, err := resolveStrategy(name, def.Strategy)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(def.Regex) == "" {
		return nil, fmt.Errorf("regex is required")
	}
	pattern := def.Regex
	if strategy == contract.ExactLineMultiline {
		pattern = "(?m)" + pattern
	}
	value, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("regex: %v", err)
	}
	c := &Category{name: name, strategy: strategy, pattern: def.Regex, value: value}
	seen := make(map[string]bool, len(def.Tests))
	for i, t := range def.Tests {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("test %d: empty name", i)
		}
		if seen[t] {
			return nil, fmt.Errorf("test %q listed twice", t)
		}
		seen[t] = true
		c.tests = append(c.tests, Test{Name: t, Category: name, matcher: structural(strategy, t)})
	}
	return c, nil
}

func resolveStrategy(category, declared string) (contract.Strategy, error) {
	if strings.TrimSpace(declared) != "" {
		s, ok := contract.ParseStrategy(declared)
		if !ok {
			return 0, fmt.Errorf("unknown strategy %q", declared)
		}
		return s, nil
	}
	if s, ok := conventional[category]; ok {
		return s, nil
	}
	return 0, fmt.Errorf("strategy is required for category names other than type_1, type_2, type_3")
}

// structural builds the line matcher for a test name. Names are literals,
// matched in canonical form so the catalogue may keep accents and case.
func structural(s contract.Strategy, name string) *regexp.Regexp {
	q := regexp.QuoteMeta(strings.TrimSpace(normalize.Canonicalize(name)))
	if s == contract.PrefixLine {
		return regexp.MustCompile(`(?m)^` + q)
	}
	return regexp.MustCompile(`(?m)^` + q + `$`)
}
