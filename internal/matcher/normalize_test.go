package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{name: "feat with period", title: "Song Name (feat. Guest Artist)", want: "Song Name"},
		{name: "ft", title: "Song Name (ft. Someone)", want: "Song Name"},
		{name: "featuring", title: "Song Name (featuring Someone)", want: "Song Name"},
		{name: "with", title: "Song Name (with Friend)", want: "Song Name"},
		{name: "square brackets", title: "Song Name [feat. Guest]", want: "Song Name"},
		{name: "no annotation", title: "Clean Song Name", want: "Clean Song Name"},
		{name: "collapses whitespace", title: "Song  Name   (feat. Guest)", want: "Song Name"},
		{name: "case insensitive", title: "Song (FEAT. Guest)", want: "Song"},
		{name: "mixed case ft", title: "Song [Ft. Guest]", want: "Song"},
		{name: "keeps other brackets", title: "Song (Remastered 2011)", want: "Song (Remastered 2011)"},
		{name: "keeps words starting with with", title: "Song (Without You)", want: "Song (Without You)"},
		{name: "annotation mid title", title: "Song (feat. X) - Radio Edit", want: "Song - Radio Edit"},
		{name: "multiple annotations", title: "Song (feat. A) [with B]", want: "Song"},
		{name: "trims", title: "  Song  ", want: "Song"},
		{name: "empty", title: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.title))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	titles := []string{
		"Song Name (feat. Guest Artist)",
		"(feat(feat. X) Y)",
		"A  B [ft. C] (with D)   E",
		"Café (featuring Zoë)",
		"Plain",
		"   ",
	}
	for _, title := range titles {
		once := Normalize(title)
		assert.Equal(t, once, Normalize(once), "title %q", title)
	}
}

func TestArtistMatches(t *testing.T) {
	tests := []struct {
		source, candidate string
		want              bool
	}{
		{"Daft Punk", "Daft Punk, Pharrell Williams", true},
		{"Daft Punk, Pharrell Williams", "daft punk", true},
		{"BEYONCÉ", "Beyoncé", true},
		{"Artist", "Someone Else", false},
		{"", "Artist", false},
		{"Artist", "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ArtistMatches(tt.source, tt.candidate), "%q vs %q", tt.source, tt.candidate)
	}
}

func TestTrackKey(t *testing.T) {
	assert.Equal(t, TrackKey("Song (feat. X)", "The Band"), TrackKey("song", "band"))
	assert.Equal(t, "band|song", TrackKey("  Song ", "BAND"))
	assert.NotEqual(t, TrackKey("Song", "Band"), TrackKey("Song", "Other"))
}
