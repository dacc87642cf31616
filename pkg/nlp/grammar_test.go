package nlp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTemplateErrors(t *testing.T) {
	for _, src := range []string{"", "{}", "{x:date}", "{a} {a}", "a||b", "{=a|b}", "{m=a||b}"} {
		_, err := ParseTemplate(src)
		require.Error(t, err, "template %q", src)
	}
}

func TestTemplateMatch(t *testing.T) {
	tests := []struct {
		name     string
		template string
		text     string
		lang     string
		want     map[string]string
		ok       bool
	}{
		{
			name:     "number and item",
			template: "ich möchte|will {quantity:number?} {item}",
			text:     "ich will zwei bier",
			lang:     "de",
			want:     map[string]string{"quantity": "2", "item": "bier"},
			ok:       true,
		},
		{
			name:     "optional number skipped",
			template: "ich möchte|will {quantity:number?} {item}",
			text:     "ich möchte grosse pommes",
			lang:     "de",
			want:     map[string]string{"item": "grosse pommes"},
			ok:       true,
		},
		{
			name:     "slot needs a token",
			template: "gehe zu|zur {page}",
			text:     "gehe zur",
			lang:     "de",
			ok:       false,
		},
		{
			name:     "optional literal",
			template: "zeig mir? die karte",
			text:     "zeig die karte",
			lang:     "de",
			want:     map[string]string{},
			ok:       true,
		},
		{
			name:     "wildcard",
			template: "* bitte",
			text:     "zahlen bitte",
			lang:     "de",
			want:     map[string]string{},
			ok:       true,
		},
		{
			name:     "choice slot",
			template: "mit {method=karte|bar}",
			text:     "mit bar",
			lang:     "de",
			want:     map[string]string{"method": "bar"},
			ok:       true,
		},
		{
			name:     "choice slot rejects other words",
			template: "mit {method=karte|bar}",
			text:     "mit twint",
			lang:     "de",
			ok:       false,
		},
		{
			name:     "spoken number across tokens",
			template: "{n:number} {item}",
			text:     "vingt et un croissants",
			lang:     "fr",
			want:     map[string]string{"n": "21", "item": "croissants"},
			ok:       true,
		},
		{
			name:     "diacritics are ignored",
			template: "ich mochte {item}",
			text:     "ich möchte pizza",
			lang:     "de",
			want:     map[string]string{"item": "pizza"},
			ok:       true,
		},
		{
			name:     "trailing tokens fail",
			template: "ja",
			text:     "ja bitte",
			lang:     "de",
			ok:       false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tmpl, err := ParseTemplate(tc.template)
			require.NoError(t, err)

			got, ok := tmpl.Match(strings.Fields(tc.text), tc.lang)
			require.Equal(t, tc.ok, ok)
			if tc.ok {
				require.Equal(t, tc.want, got)
			}
		})
	}
}

func TestTemplateSlots(t *testing.T) {
	tmpl := MustParseTemplate("füge {quantity:number?} {item} hinzu")
	require.Equal(t, []string{"quantity", "item"}, tmpl.Slots())
}
