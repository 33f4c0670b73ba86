package matcher

import (
	"testing"

	"github.com/desertthunder/ptx/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name string
		a, b models.Track
		want Score
	}{
		{
			name: "isrc ignores case and metadata",
			a:    models.Track{Title: "A", Artist: "X", ISRC: "usabc1234567"},
			b:    models.Track{Title: "B", Artist: "Y", ISRC: "USABC1234567"},
			want: ISRCMatch,
		},
		{
			name: "normalized key",
			a:    models.Track{Title: "Song (feat. Guest)", Artist: "The Band"},
			b:    models.Track{Title: "song", Artist: "BAND"},
			want: KeyMatch,
		},
		{
			name: "small typo",
			a:    models.Track{Title: "Colour", Artist: "Band"},
			b:    models.Track{Title: "Color", Artist: "Band"},
			want: FuzzyMatch,
		},
		{
			name: "different song",
			a:    models.Track{Title: "Yesterday", Artist: "The Beatles"},
			b:    models.Track{Title: "Tomorrow", Artist: "Annie"},
			want: NoMatch,
		},
		{
			name: "empty titles",
			a:    models.Track{Artist: "Band"},
			b:    models.Track{Artist: "Band"},
			want: NoMatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.a, tt.b))
		})
	}
}

func TestCompare(t *testing.T) {
	source := []models.Track{
		{ID: "s1", Title: "One", Artist: "Band", ISRC: "ISRC00000001"},
		{ID: "s2", Title: "Two", Artist: "Band"},
		{ID: "s3", Title: "Three", Artist: "Band"},
	}
	dest := []models.Track{
		{ID: "d3", Title: "Three (feat. Guest)", Artist: "Band"},
		{ID: "d1", Title: "One (Remastered)", Artist: "Band", ISRC: "ISRC00000001"},
		{ID: "d9", Title: "Unrelated Anthem", Artist: "Someone"},
	}

	result := Compare(source, dest)
	require.Len(t, result.Matched, 2)
	assert.Equal(t, "s1", result.Matched[0].Source.ID)
	assert.Equal(t, "d1", result.Matched[0].Dest.ID)
	assert.Equal(t, ISRCMatch, result.Matched[0].Score)
	assert.Equal(t, "s3", result.Matched[1].Source.ID)
	assert.Equal(t, "d3", result.Matched[1].Dest.ID)
	assert.Equal(t, KeyMatch, result.Matched[1].Score)

	require.Len(t, result.Missing, 1)
	assert.Equal(t, "s2", result.Missing[0].ID)
	require.Len(t, result.Extra, 1)
	assert.Equal(t, "d9", result.Extra[0].ID)
}

func TestCompareUsesEachTrackOnce(t *testing.T) {
	source := []models.Track{
		{ID: "s1", Title: "Song", Artist: "Band"},
		{ID: "s2", Title: "Song", Artist: "Band"},
	}
	dest := []models.Track{{ID: "d1", Title: "Song", Artist: "Band"}}

	result := Compare(source, dest)
	require.Len(t, result.Matched, 1)
	assert.Equal(t, "s1", result.Matched[0].Source.ID)
	require.Len(t, result.Missing, 1)
	assert.Equal(t, "s2", result.Missing[0].ID)
	assert.Empty(t, result.Extra)
}

func TestCompareEmpty(t *testing.T) {
	result := Compare(nil, nil)
	assert.NotNil(t, result.Matched)
	assert.Empty(t, result.Matched)
	assert.Empty(t, result.Missing)
	assert.Empty(t, result.Extra)
}
