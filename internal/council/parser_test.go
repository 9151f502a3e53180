package council

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRanking(t *testing.T) {
	cases := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "numbered after marker",
			text: "Response A is thin.\nResponse B is better.\n\nFINAL RANKING:\n1. Response B\n2. Response A\n3. Response C",
			want: []string{"Response B", "Response A", "Response C"},
		},
		{
			name: "no space after period",
			text: "FINAL RANKING:\n1.Response C\n2.\tResponse A",
			want: []string{"Response C", "Response A"},
		},
		{
			name: "trailing punctuation dropped",
			text: "FINAL RANKING:\n1. Response A.\n2. Response B,",
			want: []string{"Response A", "Response B"},
		},
		{
			name: "section ends at blank line",
			text: "FINAL RANKING:\n1. Response B\n2. Response A\n\nNotes: 3. Response C was weak",
			want: []string{"Response B", "Response A"},
		},
		{
			name: "first marker to end of section",
			text: "FINAL RANKING:\n1. Response A\nFINAL RANKING:\n1. Response B",
			want: []string{"Response A", "Response B"},
		},
		{
			name: "marker without numbers falls back to whole text",
			text: "I liked Response B most.\nFINAL RANKING: Response B then Response A",
			want: []string{"Response B", "Response B", "Response A"},
		},
		{
			name: "lowercase marker falls back",
			text: "final ranking:\n1. Response C\n2. Response A\nResponse C",
			want: []string{"Response C", "Response A", "Response C"},
		},
		{
			name: "lowercase labels never match",
			text: "FINAL RANKING:\n1. response a\n2. Response b",
			want: []string{},
		},
		{
			name: "double space never matches",
			text: "Response  A and Response B",
			want: []string{"Response B"},
		},
		{
			name: "empty",
			text: "",
			want: []string{},
		},
		{
			name: "whitespace only",
			text: "   \n\t ",
			want: []string{},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseRanking(tc.text)
			require.NotNil(t, got)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseRankingFromRejectsNonStrings(t *testing.T) {
	_, err := ParseRankingFrom(nil)
	var te *TypeError
	require.ErrorAs(t, err, &te)

	_, err = ParseRankingFrom(42)
	require.ErrorAs(t, err, &te)
	assert.Contains(t, err.Error(), "int")

	var nilStr *string
	_, err = ParseRankingFrom(nilStr)
	require.ErrorAs(t, err, &te)

	got, err := ParseRankingFrom("FINAL RANKING:\n1. Response A")
	require.NoError(t, err)
	assert.Equal(t, []string{"Response A"}, got)
}

func TestParseRankingReportsFallback(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		want     []string
		fallback bool
	}{
		{"numbered section", "FINAL RANKING:\n1. Response B\n2. Response A", []string{"Response B", "Response A"}, false},
		{"marker without numbers", "Response A is weak.\nFINAL RANKING:\nResponse B, Response A", []string{"Response A", "Response B", "Response A"}, true},
		{"no marker", "I prefer Response C over Response A", []string{"Response C", "Response A"}, true},
		{"nothing at all", "FINAL RANKING:\n\nno labels", []string{}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, fallback := parseRanking(tc.text)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.fallback, fallback)
		})
	}
}
