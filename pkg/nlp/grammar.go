package nlp

import (
	"fmt"
	"strconv"
	"strings"
)

type elementKind int

const (
	elementLiteral elementKind = iota
	elementSlot
	elementWildcard
)

// maxNumberTokens bounds how many tokens a spoken number may span.
const maxNumberTokens = 4

type element struct {
	kind     elementKind
	alts     []string
	name     string
	number   bool
	choice   bool
	optional bool
}

// Template is a compiled match template.
//
// Syntax, one element per whitespace separated token:
//
//	word        literal
//	a|b         one of several literals
//	word?       optional literal (also a|b?)
//	{name}      one or more tokens captured as name
//	{name?}     optional capture
//	{name:number}  a spoken or written number, captured as digits
//	{name=a|b}  exactly one of the listed words, captured
//	*           any number of tokens, not captured
type Template struct {
	Source   string
	elements []element
	slots    []string
}

// ParseTemplate compiles a template source string.
func ParseTemplate(src string) (Template, error) {
	t := Template{Source: src}
	fields := strings.Fields(strings.ToLower(src))
	if len(fields) == 0 {
		return t, fmt.Errorf("empty template")
	}

	seen := map[string]bool{}
	for _, f := range fields {
		switch {
		case f == "*":
			t.elements = append(t.elements, element{kind: elementWildcard})

		case strings.HasPrefix(f, "{"):
			if !strings.HasSuffix(f, "}") || len(f) < 3 {
				return t, fmt.Errorf("template %q: malformed slot %q", src, f)
			}
			body := f[1 : len(f)-1]
			el := element{kind: elementSlot}
			if strings.HasSuffix(body, "?") {
				el.optional = true
				body = strings.TrimSuffix(body, "?")
			}
			name, choices, isChoice := strings.Cut(body, "=")
			if isChoice {
				for _, alt := range strings.Split(choices, "|") {
					if alt == "" {
						return t, fmt.Errorf("template %q: empty choice in %q", src, f)
					}
					el.alts = append(el.alts, foldDiacritics(alt))
				}
				el.choice = true
			}
			name, typ, typed := strings.Cut(name, ":")
			if typed {
				if typ != "number" {
					return t, fmt.Errorf("template %q: unknown slot type %q", src, typ)
				}
				el.number = true
			}
			if name == "" {
				return t, fmt.Errorf("template %q: unnamed slot", src)
			}
			if seen[name] {
				return t, fmt.Errorf("template %q: duplicate slot %q", src, name)
			}
			seen[name] = true
			el.name = name
			t.elements = append(t.elements, el)
			t.slots = append(t.slots, name)

		default:
			el := element{kind: elementLiteral}
			if strings.HasSuffix(f, "?") {
				el.optional = true
				f = strings.TrimSuffix(f, "?")
			}
			for _, alt := range strings.Split(f, "|") {
				if alt == "" {
					return t, fmt.Errorf("template %q: empty alternative in %q", src, f)
				}
				el.alts = append(el.alts, foldDiacritics(alt))
			}
			t.elements = append(t.elements, el)
		}
	}
	return t, nil
}

// MustParseTemplate is ParseTemplate for static tables.
func MustParseTemplate(src string) Template {
	t, err := ParseTemplate(src)
	if err != nil {
		panic(err)
	}
	return t
}

// Slots returns the declared slot names in order.
func (t Template) Slots() []string {
	return t.slots
}

// Match reports whether the whole token sequence fits the template and
// returns the captured slot values. Number slots hold decimal digits.
func (t Template) Match(tokens []string, language string) (map[string]string, bool) {
	m := matcher{
		elements: t.elements,
		tokens:   tokens,
		folded:   make([]string, len(tokens)),
		language: language,
		captures: map[string]string{},
	}
	for i, tok := range tokens {
		m.folded[i] = foldDiacritics(tok)
	}
	if !m.match(0, 0) {
		return nil, false
	}
	return m.captures, true
}

type matcher struct {
	elements []element
	tokens   []string
	folded   []string
	language string
	captures map[string]string
}

func (m *matcher) match(ei, ti int) bool {
	if ei == len(m.elements) {
		return ti == len(m.tokens)
	}
	el := m.elements[ei]
	remaining := len(m.tokens) - ti

	switch el.kind {
	case elementLiteral:
		if remaining > 0 && el.matches(m.folded[ti]) && m.match(ei+1, ti+1) {
			return true
		}
		return el.optional && m.match(ei+1, ti)

	case elementWildcard:
		for n := 0; n <= remaining; n++ {
			if m.match(ei+1, ti+n) {
				return true
			}
		}
		return false

	case elementSlot:
		if el.choice {
			if remaining > 0 && el.matches(m.folded[ti]) {
				m.captures[el.name] = m.tokens[ti]
				if m.match(ei+1, ti+1) {
					return true
				}
				delete(m.captures, el.name)
			}
			return el.optional && m.match(ei+1, ti)
		}
		if el.number {
			for n := min(maxNumberTokens, remaining); n >= 1; n-- {
				v, ok := ParseNumberWords(m.tokens[ti:ti+n], m.language)
				if !ok {
					continue
				}
				m.captures[el.name] = strconv.Itoa(v)
				if m.match(ei+1, ti+n) {
					return true
				}
				delete(m.captures, el.name)
			}
			return el.optional && m.match(ei+1, ti)
		}

		if el.optional && m.match(ei+1, ti) {
			return true
		}
		for n := 1; n <= remaining; n++ {
			m.captures[el.name] = strings.Join(m.tokens[ti:ti+n], " ")
			if m.match(ei+1, ti+n) {
				return true
			}
		}
		delete(m.captures, el.name)
		return false
	}
	return false
}

func (el element) matches(token string) bool {
	for _, alt := range el.alts {
		if alt == token {
			return true
		}
	}
	return false
}
