package recognition

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWakeDetector(t *testing.T) {
	w := NewWakeDetector([]string{"hey eatech", "hoi eatech", "eatech"}, DefaultWakeSimilarity)

	tests := []struct {
		name   string
		text   string
		rest   string
		phrase string
		found  bool
	}{
		{"prefix", "Hey Eatech, zeig mir das Menü", "zeig mir das Menü", "hey eatech", true},
		{"dialect variant", "hoi eatech i möcht en burger", "i möcht en burger", "hoi eatech", true},
		{"longest phrase wins", "hey eatech", "", "hey eatech", true},
		{"middle of sentence", "bitte eatech warenkorb", "bitte warenkorb", "eatech", true},
		{"split brand", "hey e tech menü", "menü", "hey eatech", true},
		{"absent", "zeig mir das menü", "zeig mir das menü", "", false},
		{"unrelated greeting", "hey there", "hey there", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rest, phrase, found := w.Detect(tt.text)
			require.Equal(t, tt.found, found)
			require.Equal(t, tt.rest, rest)
			require.Equal(t, tt.phrase, phrase)
		})
	}
}

func TestWakeDetectorExactOnly(t *testing.T) {
	w := NewWakeDetector([]string{"hey eatech"}, 0)
	_, _, found := w.Detect("hey e tech menü")
	require.False(t, found)
}

func TestLevelMeter(t *testing.T) {
	require.Zero(t, RMS(nil))
	require.InDelta(t, 1.0, RMS([]int16{-32768, -32768}), 1e-9)
	require.InDelta(t, 0.5, RMS([]int16{16384, -16384}), 1e-9)

	var m LevelMeter
	level, floor := m.Feed([]int16{3277, -3277})
	require.InDelta(t, 0.1, level, 1e-3)
	require.Equal(t, level, floor)

	loud, floor := m.Feed([]int16{16384, -16384})
	require.InDelta(t, 0.5, loud, 1e-9)
	require.Less(t, floor, 0.11)
	require.Greater(t, floor, 0.1)

	quiet, floor := m.Feed([]int16{328, -328})
	require.InDelta(t, quiet, floor, 1e-12)
}
