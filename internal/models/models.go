// package models defines the data model for the playlist transfer tool
package models

import (
	"time"
)

// Model defines the base interface for all persistent models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// Track represents a music track as known to one catalog.
//
// ID and URL are only meaningful relative to the catalog named by Service.
type Track struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album,omitempty"`
	ISRC     string `json:"isrc,omitempty"`     // International Standard Recording Code for matching
	Duration int    `json:"duration,omitempty"` // Duration in milliseconds
	URL      string `json:"url,omitempty"`
	Service  string `json:"service,omitempty"` // Catalog that produced this track
}

// Playlist represents a playlist from any catalog. Track order is playback order.
type Playlist struct {
	ID          string  `json:"id,omitempty"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Public      bool    `json:"public"`
	URL         string  `json:"url,omitempty"`
	Service     string  `json:"service,omitempty"`
	TrackCount  int     `json:"track_count"`
	Tracks      []Track `json:"tracks,omitempty"`
}

// MatchTier identifies which matcher strategy produced a destination track.
type MatchTier int

const (
	TierNone          MatchTier = iota // no match
	TierDirectISRC                     // exact ISRC query against the catalog
	TierArtistMatch                    // structured query, artist heuristic satisfied
	TierTopResult                      // structured query, top-ranked candidate accepted as fallback
	TierBroadISRC                      // title-only over-fetch with client-side ISRC scan
	TierCandidateISRC                  // exact ISRC found among structured query candidates
)

func (t MatchTier) String() string {
	switch t {
	case TierDirectISRC:
		return "direct_isrc"
	case TierArtistMatch:
		return "artist_match"
	case TierTopResult:
		return "top_result"
	case TierBroadISRC:
		return "broad_isrc"
	case TierCandidateISRC:
		return "candidate_isrc"
	default:
		return "none"
	}
}

// ParseMatchTier is the inverse of [MatchTier.String]. Unknown names map to [TierNone].
func ParseMatchTier(name string) MatchTier {
	for t := TierDirectISRC; t <= TierCandidateISRC; t++ {
		if t.String() == name {
			return t
		}
	}
	return TierNone
}

// MatchOutcome is the per-track result of resolving a source track against a destination catalog.
//
// Found == false implies Dest == nil.
type MatchOutcome struct {
	Source Track
	Dest   *Track
	Found  bool
	Tier   MatchTier
	Err    error // search failure that degraded this outcome to not found
}

// NotFound builds an outcome for a source track with no destination match.
func NotFound(src Track, err error) MatchOutcome {
	return MatchOutcome{Source: src, Tier: TierNone, Err: err}
}

// Matched builds a found outcome. A nil dest yields a not-found outcome.
func Matched(src Track, dest *Track, tier MatchTier) MatchOutcome {
	if dest == nil {
		return NotFound(src, nil)
	}
	return MatchOutcome{Source: src, Dest: dest, Found: true, Tier: tier}
}

// Status renders the outcome the way audit logs and history tables show it.
func (o MatchOutcome) Status() string {
	if o.Found {
		return "Found"
	}
	return "Not Found"
}
