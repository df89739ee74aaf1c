// Package engine holds the source adapters a player searches and streams
// through, and the router that picks one for a free-text query.
package engine

import (
	"context"

	"github.com/sonroyaalmerol/kumaplayer/internal/media"
)

const (
	SourceYouTube = "youtube"
	SourceSpotify = "spotify"
	SourceFile    = "file"
)

type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// Level maps a quality tier to 0, 1 or 2. Unknown tiers count as high.
func (q Quality) Level() int {
	switch q {
	case QualityLow:
		return 0
	case QualityMedium:
		return 1
	}
	return 2
}

// Config is the part of the player options engines care about.
type Config struct {
	Quality  Quality
	FileRoot string
}

type SearchOptions struct {
	// Limit caps the number of tracks. Zero or negative means no limit.
	Limit int
}

// Engine searches and streams tracks for one source tag.
//
// Search must not fail on upstream or parse errors that amount to "nothing
// found"; those come back as an empty slice. GetStream returns (nil, nil)
// when the engine is not responsible for the track under cfg.
type Engine interface {
	Source() string
	IsResponsible(ctx context.Context, query string, cfg Config) bool
	Search(ctx context.Context, query string, cfg Config, opts SearchOptions) ([]media.SearchResult, error)
	GetStream(ctx context.Context, track media.Track, cfg Config) (*media.TrackStream, error)
}
