package nlp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		token string
		lang  string
		want  int
		ok    bool
	}{
		{"3", "de-CH", 3, true},
		{"zwei", "de-CH", 2, true},
		{"einen", "de-DE", 1, true},
		{"zweiundzwanzig", "de", 22, true},
		{"einundzwanzig", "de", 21, true},
		{"dreissig", "de-CH", 30, true},
		{"septante", "fr-CH", 70, true},
		{"huitante", "fr-CH", 80, true},
		{"nonante", "fr-FR", 90, true},
		{"ventuno", "it", 21, true},
		{"trentadue", "it-CH", 32, true},
		{"twelve", "en-GB", 12, true},
		{"bier", "de", 0, false},
		{"-1", "de", 0, false},
		{"1.5", "de", 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.lang+"/"+tc.token, func(t *testing.T) {
			got, ok := ParseNumber(tc.token, tc.lang)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestParseNumberWords(t *testing.T) {
	got, ok := ParseNumberWords([]string{"vingt", "et", "un"}, "fr")
	require.True(t, ok)
	require.Equal(t, 21, got)

	got, ok = ParseNumberWords([]string{"quatre", "vingt", "dix"}, "fr")
	require.True(t, ok)
	require.Equal(t, 90, got)

	got, ok = ParseNumberWords([]string{"septante", "deux"}, "fr-CH")
	require.True(t, ok)
	require.Equal(t, 72, got)

	got, ok = ParseNumberWords([]string{"twenty", "one"}, "en")
	require.True(t, ok)
	require.Equal(t, 21, got)

	_, ok = ParseNumberWords([]string{"one", "two"}, "en")
	require.False(t, ok)

	_, ok = ParseNumberWords([]string{"et", "un"}, "fr")
	require.False(t, ok)
}
