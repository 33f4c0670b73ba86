package matcher

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// featurePattern matches a bracketed featured-artist annotation and any whitespace before it.
var featurePattern = regexp.MustCompile(`(?i)\s*[\(\[](?:feat\.?|ft\.?|featuring|with)\s+[^\)\]]+[\)\]]`)

// Normalize strips bracketed featured-artist annotations such as "(feat. X)", "[ft. X]",
// "(featuring X)" and "(with X)" from a title, then collapses whitespace and trims.
//
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(title string) string {
	s := norm.NFC.String(title)
	for {
		next := featurePattern.ReplaceAllString(s, "")
		if next == s {
			break
		}
		s = next
	}
	return strings.Join(strings.Fields(s), " ")
}

// Fold returns s in case-folded NFC form for case-insensitive comparison.
func Fold(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}

// ArtistMatches reports whether either artist name contains the other, ignoring case.
// Empty names never match.
func ArtistMatches(source, candidate string) bool {
	a, b := Fold(source), Fold(candidate)
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// TrackKey builds a case-folded "artist|title" key with annotations removed and a
// leading "the " dropped from the artist, used to compare tracks across catalogs.
func TrackKey(title, artist string) string {
	artist = strings.TrimPrefix(Fold(strings.Join(strings.Fields(artist), " ")), "the ")
	return artist + "|" + Fold(Normalize(title))
}
