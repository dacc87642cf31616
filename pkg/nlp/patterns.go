package nlp

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed patterns/*.yaml
var embeddedPatterns embed.FS

type patternFile struct {
	Language string        `yaml:"language"`
	Dialect  bool          `yaml:"dialect"`
	Patterns []patternSpec `yaml:"patterns"`
}

type patternSpec struct {
	Category  string            `yaml:"category"`
	Intent    string            `yaml:"intent"`
	Context   string            `yaml:"context"`
	Templates []string          `yaml:"templates"`
	Examples  []string          `yaml:"examples"`
	Defaults  map[string]string `yaml:"defaults"`
	Excludes  []string          `yaml:"excludes"`
}

// PatternSet holds the compiled pattern tables per base language.
type PatternSet struct {
	standard map[string][]CommandPattern
	dialect  map[string][]CommandPattern
}

// DefaultPatterns loads the tables shipped with the package.
func DefaultPatterns() (*PatternSet, error) {
	return LoadPatterns(embeddedPatterns, "patterns")
}

// LoadPatterns reads every *.yaml table under dir.
func LoadPatterns(fsys fs.FS, dir string) (*PatternSet, error) {
	files, err := fs.Glob(fsys, path.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	set := &PatternSet{
		standard: map[string][]CommandPattern{},
		dialect:  map[string][]CommandPattern{},
	}
	for _, name := range files {
		raw, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var file patternFile
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		if err := set.add(file); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	return set, nil
}

func (s *PatternSet) add(file patternFile) error {
	lang := BaseLanguage(file.Language)
	if lang == "" {
		return fmt.Errorf("missing language")
	}

	target := s.standard
	if file.Dialect {
		target = s.dialect
	}

	for i, def := range file.Patterns {
		if def.Intent == "" {
			return fmt.Errorf("pattern %d: missing intent", i)
		}
		cat := Category(def.Category)
		if categoryRank(cat) == len(Categories) {
			return fmt.Errorf("pattern %s: unknown category %q", def.Intent, def.Category)
		}
		if cat == CategoryContext && def.Context == "" {
			return fmt.Errorf("pattern %s: contextual pattern without context", def.Intent)
		}
		if len(def.Templates) == 0 {
			return fmt.Errorf("pattern %s: no templates", def.Intent)
		}

		p := CommandPattern{
			Category: cat,
			Intent:   def.Intent,
			Examples: def.Examples,
			Defaults: def.Defaults,
			Dialect:  file.Dialect,
			Context:  def.Context,
			Language: lang,
			order:    len(target[lang]),
		}
		for _, src := range def.Templates {
			t, err := ParseTemplate(src)
			if err != nil {
				return fmt.Errorf("pattern %s: %w", def.Intent, err)
			}
			p.Templates = append(p.Templates, t)
		}
		for _, word := range def.Excludes {
			p.Excludes = append(p.Excludes, foldDiacritics(word))
		}
		target[lang] = append(target[lang], p)
	}
	return nil
}

// For returns the patterns for a language in matching order: contextual
// follow-ups for the live context first, then each category in priority
// order with dialect patterns ahead of standard ones.
func (s *PatternSet) For(language, context string) []CommandPattern {
	base := BaseLanguage(language)
	dialect := IsSwissDialect(language)

	var groups [][]CommandPattern
	if dialect {
		groups = append(groups, s.dialect[base])
	}
	groups = append(groups, s.standard[base])

	var out []CommandPattern
	if context != "" {
		for _, group := range groups {
			for _, p := range group {
				if p.Category == CategoryContext && p.Context == context {
					out = append(out, p)
				}
			}
		}
	}
	for _, cat := range Categories {
		for _, group := range groups {
			for _, p := range group {
				if p.Category == cat {
					out = append(out, p)
				}
			}
		}
	}
	return out
}

// Languages lists the base languages with a standard table.
func (s *PatternSet) Languages() []string {
	out := make([]string, 0, len(s.standard))
	for lang := range s.standard {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}
