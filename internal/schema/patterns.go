package schema

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v2"

	"consignrecon/internal"
	"consignrecon/internal/util"
)

//go:embed default_patterns.yaml
var defaultPatternsYAML []byte

// Patterns is the data side of schema inference. It is loaded from YAML so
// header variants can be extended without touching matching logic.
type Patterns struct {
	Fields                  map[internal.Field][]string  `yaml:"fields"`
	IgnoreTokens            []string                     `yaml:"ignoreTokens"`
	Sniff                   map[internal.Field]SniffRule `yaml:"sniff"`
	Classification          ClassificationRules          `yaml:"classification"`
	InvalidReferenceMarkers []string                     `yaml:"invalidReferenceMarkers"`
}

type SniffRule struct {
	Patterns     []string `yaml:"patterns,omitempty"`
	IntegerBelow float64  `yaml:"integerBelow,omitempty"`
	Fractional   bool     `yaml:"fractional,omitempty"`
}

type ClassificationRules struct {
	HeaderWeight float64   `yaml:"headerWeight"`
	ValueWeight  float64   `yaml:"valueWeight"`
	ValueCap     float64   `yaml:"valueCap"`
	NameWeight   float64   `yaml:"nameWeight"`
	Load         KindRules `yaml:"load"`
	Sales        KindRules `yaml:"sales"`
}

type KindRules struct {
	Headers    []string `yaml:"headers"`
	Values     []string `yaml:"values"`
	Fractional bool     `yaml:"fractional,omitempty"`
	Names      []string `yaml:"names"`
}

// DefaultPatterns returns the embedded pattern table.
func DefaultPatterns() (Patterns, error) {
	var p Patterns
	if err := yaml.Unmarshal(defaultPatternsYAML, &p); err != nil {
		return Patterns{}, fmt.Errorf("embedded patterns: %w", err)
	}
	return p, nil
}

// LoadPatterns reads an override file on top of the embedded defaults. Field
// lists present in the file replace the default list for that field only.
func LoadPatterns(path string) (Patterns, error) {
	p, err := DefaultPatterns()
	if err != nil {
		return Patterns{}, err
	}
	if path == "" {
		return p, nil
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return Patterns{}, fmt.Errorf("read patterns %s: %w", path, err)
	}
	if err := yaml.Unmarshal(blob, &p); err != nil {
		return Patterns{}, fmt.Errorf("parse patterns %s: %w", path, err)
	}
	return p, nil
}

// Marshal renders the table back to YAML.
func (p Patterns) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

// compiled is the ready-to-match form of Patterns.
type compiled struct {
	fields       map[internal.Field][]patternKey
	ignoreTokens map[string]struct{}
	sniff        map[internal.Field]compiledSniff
	classify     ClassificationRules
	load         compiledKind
	sales        compiledKind
}

type patternKey struct {
	raw    string
	key    string
	tokens []string
}

type compiledSniff struct {
	patterns     []*regexp.Regexp
	integerBelow float64
	fractional   bool
}

type compiledKind struct {
	headers    []*regexp.Regexp
	values     []*regexp.Regexp
	fractional bool
	names      []*regexp.Regexp
}

func (p Patterns) compile() (*compiled, error) {
	known := map[internal.Field]struct{}{}
	for _, f := range internal.AllFields {
		known[f] = struct{}{}
	}

	c := &compiled{
		fields:       map[internal.Field][]patternKey{},
		ignoreTokens: map[string]struct{}{},
		sniff:        map[internal.Field]compiledSniff{},
		classify:     p.Classification,
	}

	for _, tok := range p.IgnoreTokens {
		c.ignoreTokens[util.NormalizeKey(tok)] = struct{}{}
	}

	for field, variants := range p.Fields {
		if _, ok := known[field]; !ok {
			return nil, fmt.Errorf("unknown field %q in patterns", field)
		}
		keys := make([]patternKey, 0, len(variants))
		for _, v := range variants {
			key := util.NormalizeKey(v)
			if key == "" {
				continue
			}
			keys = append(keys, patternKey{raw: v, key: key, tokens: c.significantTokens(v)})
		}
		c.fields[field] = keys
	}

	for field, rule := range p.Sniff {
		if _, ok := known[field]; !ok {
			return nil, fmt.Errorf("unknown field %q in sniff rules", field)
		}
		res, err := compileAll(rule.Patterns)
		if err != nil {
			return nil, fmt.Errorf("sniff %s: %w", field, err)
		}
		c.sniff[field] = compiledSniff{patterns: res, integerBelow: rule.IntegerBelow, fractional: rule.Fractional}
	}

	var err error
	if c.load, err = compileKind(p.Classification.Load); err != nil {
		return nil, fmt.Errorf("load classification: %w", err)
	}
	if c.sales, err = compileKind(p.Classification.Sales); err != nil {
		return nil, fmt.Errorf("sales classification: %w", err)
	}
	return c, nil
}

func (c *compiled) significantTokens(s string) []string {
	out := []string{}
	for _, tok := range util.Tokenize(s) {
		if _, skip := c.ignoreTokens[tok]; skip {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func compileKind(k KindRules) (compiledKind, error) {
	headers, err := compileAll(k.Headers)
	if err != nil {
		return compiledKind{}, err
	}
	values, err := compileAll(k.Values)
	if err != nil {
		return compiledKind{}, err
	}
	names, err := compileAll(k.Names)
	if err != nil {
		return compiledKind{}, err
	}
	return compiledKind{headers: headers, values: values, fractional: k.Fractional, names: names}, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}
