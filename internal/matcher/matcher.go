package matcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ptx/internal/models"
	"github.com/desertthunder/ptx/internal/services"
	"github.com/desertthunder/ptx/internal/shared"
)

// Matcher resolves source tracks against one destination catalog.
//
// Tiers run in a fixed order and the catalog's ranking is never reordered:
//  1. direct ISRC query, when the track has an ISRC and the catalog supports it
//  2. structured title/artist query; for catalogs without ISRC queries an exact ISRC among
//     these candidates is accepted immediately
//  3. title-only over-fetch scanned for the exact ISRC, when the catalog lacks ISRC queries
//  4. the first tier-2 candidate whose artist matches, else the top tier-2 candidate
type Matcher struct {
	catalog services.Catalog
	logger  *log.Logger
}

// NewMatcher binds a matcher to catalog. A nil logger discards output.
func NewMatcher(catalog services.Catalog, logger *log.Logger) *Matcher {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Matcher{catalog: catalog, logger: logger.WithPrefix("matcher")}
}

// SearchTrack finds the destination equivalent of src.
//
// A track with no match yields a not-found outcome and a nil error. Search failures yield a
// not-found outcome carrying an error wrapping [shared.ErrTrackSearch], which is also returned.
func (m *Matcher) SearchTrack(ctx context.Context, src models.Track) (models.MatchOutcome, error) {
	caps := m.catalog.Capabilities()
	title := Normalize(src.Title)
	if title == "" {
		title = strings.TrimSpace(src.Title)
	}

	if src.ISRC != "" && caps.DirectISRCQuery {
		results, err := m.search(ctx, src, services.Query{ISRC: src.ISRC, Limit: 1})
		if err != nil {
			return models.NotFound(src, err), err
		}
		if len(results) > 0 {
			return m.accept(src, results[0], models.TierDirectISRC), nil
		}
	}

	candidates, err := m.search(ctx, src, services.Query{Title: title, Artist: src.Artist, Limit: caps.DefaultSearchLimit})
	if err != nil {
		return models.NotFound(src, err), err
	}

	broad := src.ISRC != "" && !caps.DirectISRCQuery
	if broad {
		if hit, ok := findISRC(candidates, src.ISRC); ok {
			return m.accept(src, hit, models.TierCandidateISRC), nil
		}

		wide, err := m.search(ctx, src, services.Query{Title: title, Limit: caps.MaxSearchResults})
		if err != nil {
			m.logger.Warn("broad search failed, using structured results", "track", describe(src), "err", err)
		} else if hit, ok := findISRC(wide, src.ISRC); ok {
			return m.accept(src, hit, models.TierBroadISRC), nil
		}
	}

	if pick, ok := firstArtistMatch(candidates, src.Artist); ok {
		return m.accept(src, pick, models.TierArtistMatch), nil
	}
	if len(candidates) > 0 {
		m.logger.Debug("no artist match, accepting top result", "track", describe(src), "candidate", describe(candidates[0]))
		return m.accept(src, candidates[0], models.TierTopResult), nil
	}

	m.logger.Debug("not found", "track", describe(src))
	return models.NotFound(src, nil), nil
}

// search runs one catalog query and drops candidates that are unusable for this catalog.
func (m *Matcher) search(ctx context.Context, src models.Track, q services.Query) ([]models.Track, error) {
	results, err := m.catalog.Search(ctx, q)
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", shared.ErrTrackSearch, m.catalog.Name(), err)
		m.logger.Warn("search failed", "track", describe(src), "err", err)
		return nil, err
	}

	name := m.catalog.Name()
	kept := make([]models.Track, 0, len(results))
	for _, r := range results {
		if r.Service != name || r.ID == "" {
			m.logger.Debug("discarding candidate", "candidate", describe(r), "service", r.Service)
			continue
		}
		kept = append(kept, r)
	}
	return kept, nil
}

func (m *Matcher) accept(src, dest models.Track, tier models.MatchTier) models.MatchOutcome {
	m.logger.Debug("matched", "track", describe(src), "dest_id", dest.ID, "tier", tier)
	return models.Matched(src, &dest, tier)
}

func findISRC(candidates []models.Track, isrc string) (models.Track, bool) {
	for _, c := range candidates {
		if c.ISRC != "" && strings.EqualFold(c.ISRC, isrc) {
			return c, true
		}
	}
	return models.Track{}, false
}

func firstArtistMatch(candidates []models.Track, artist string) (models.Track, bool) {
	for _, c := range candidates {
		if ArtistMatches(artist, c.Artist) {
			return c, true
		}
	}
	return models.Track{}, false
}

func describe(t models.Track) string {
	return t.Artist + " - " + t.Title
}
