package matcher

import (
	"sort"

	"github.com/agnivade/levenshtein"
	"github.com/desertthunder/ptx/internal/models"
)

// Score ranks how strongly two tracks from different catalogs agree.
type Score int

const (
	NoMatch    Score = 0
	FuzzyMatch Score = 1 // artist|title keys within maxKeyDistance edits
	KeyMatch   Score = 2 // identical artist|title keys
	ISRCMatch  Score = 3
)

const maxKeyDistance = 3

// Match scores a pair of tracks by ISRC, then normalized key, then edit distance.
func Match(a, b models.Track) Score {
	if a.ISRC != "" && b.ISRC != "" && Fold(a.ISRC) == Fold(b.ISRC) {
		return ISRCMatch
	}
	if a.Title == "" || b.Title == "" {
		return NoMatch
	}

	aKey, bKey := TrackKey(a.Title, a.Artist), TrackKey(b.Title, b.Artist)
	if aKey == bKey {
		return KeyMatch
	}
	if levenshtein.ComputeDistance(aKey, bKey) <= maxKeyDistance {
		return FuzzyMatch
	}
	return NoMatch
}

// Pair is a source track and the destination track it was matched to.
type Pair struct {
	Source models.Track
	Dest   models.Track
	Score  Score
}

// Comparison is the result of [Compare].
type Comparison struct {
	Matched []Pair
	Missing []models.Track // in source, absent from destination
	Extra   []models.Track // in destination, absent from source
}

type candidate struct {
	src, dst int
	score    Score
}

// Compare pairs source and destination tracks greedily by descending score.
// Each track is used at most once; Matched and Missing keep source order, Extra keeps destination order.
func Compare(source, dest []models.Track) Comparison {
	var candidates []candidate
	for i := range source {
		for j := range dest {
			if score := Match(source[i], dest[j]); score != NoMatch {
				candidates = append(candidates, candidate{src: i, dst: j, score: score})
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	pairedSrc := make(map[int]int)
	pairedDst := make(map[int]bool)
	scores := make(map[int]Score)
	for _, c := range candidates {
		if _, ok := pairedSrc[c.src]; ok || pairedDst[c.dst] {
			continue
		}
		pairedSrc[c.src] = c.dst
		pairedDst[c.dst] = true
		scores[c.src] = c.score
	}

	result := Comparison{
		Matched: make([]Pair, 0),
		Missing: make([]models.Track, 0),
		Extra:   make([]models.Track, 0),
	}
	for i, track := range source {
		if j, ok := pairedSrc[i]; ok {
			result.Matched = append(result.Matched, Pair{Source: track, Dest: dest[j], Score: scores[i]})
		} else {
			result.Missing = append(result.Missing, track)
		}
	}
	for j, track := range dest {
		if !pairedDst[j] {
			result.Extra = append(result.Extra, track)
		}
	}
	return result
}
