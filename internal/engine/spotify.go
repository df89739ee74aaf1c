package engine

import (
	"context"
	"log/slog"
	"math"
	"regexp"
	"strings"

	"github.com/samber/lo"
	"github.com/sonroyaalmerol/kumaplayer/internal/media"
	"github.com/sonroyaalmerol/kumaplayer/internal/spotify"
)

var spotifyURL = regexp.MustCompile(`^https?://open.spotify.com/`)

// SpotifyClient is the catalog lookup the engine needs. Spotify has no
// public audio, streams are resolved through another engine.
type SpotifyClient interface {
	Track(ctx context.Context, id string) (spotify.Track, error)
	Collection(ctx context.Context, kind, id string) (spotify.Collection, error)
	CollectionTracks(ctx context.Context, kind, id string, offset, limit int) ([]spotify.Track, bool, error)
}

type Spotify struct {
	client   SpotifyClient
	streamer Engine
	log      *slog.Logger
}

// NewSpotify builds the engine. streamer is searched for "title artist" to
// find playable audio, normally the YouTube engine.
func NewSpotify(client SpotifyClient, streamer Engine, log *slog.Logger) *Spotify {
	if log == nil {
		log = slog.Default()
	}
	return &Spotify{client: client, streamer: streamer, log: log.With("engine", SourceSpotify)}
}

func (s *Spotify) Source() string { return SourceSpotify }

func (s *Spotify) IsResponsible(_ context.Context, query string, _ Config) bool {
	return spotifyURL.MatchString(query)
}

func (s *Spotify) Search(ctx context.Context, query string, _ Config, opts SearchOptions) ([]media.SearchResult, error) {
	if s.client == nil {
		return nil, nil
	}
	kind, id, err := spotify.ParseID(strings.TrimSpace(query))
	if err != nil {
		s.log.Debug("not a spotify resource", "query", query, "err", err)
		return nil, nil
	}

	switch kind {
	case spotify.KindTrack:
		t, err := s.client.Track(ctx, id)
		if err != nil {
			s.log.Warn("track lookup failed", "id", id, "err", err)
			return nil, nil
		}
		return []media.SearchResult{{Tracks: []media.Track{spotifyToTrack(t, nil)}, Source: SourceSpotify}}, nil
	case spotify.KindPlaylist, spotify.KindAlbum:
		res, err := s.searchCollection(ctx, kind, id, query, opts.Limit)
		if err != nil {
			s.log.Warn("collection lookup failed", "kind", kind, "id", id, "err", err)
			return nil, nil
		}
		return []media.SearchResult{res}, nil
	}
	return nil, nil
}

func (s *Spotify) GetStream(ctx context.Context, track media.Track, cfg Config) (*media.TrackStream, error) {
	if s.streamer == nil {
		return nil, nil
	}
	q := track.Title
	if track.Artist != "" {
		q = track.Title + " " + track.Artist
	}
	results, err := s.streamer.Search(ctx, q, cfg, SearchOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 || len(results[0].Tracks) == 0 {
		return nil, nil
	}
	mapped := results[0].Tracks[0]
	mapped.Seek = track.Seek
	return s.streamer.GetStream(ctx, mapped, cfg)
}

type spotifyPager struct {
	client   SpotifyClient
	kind, id string
}

func (p spotifyPager) First(ctx context.Context) ([]spotify.Track, bool, error) {
	return p.client.CollectionTracks(ctx, p.kind, p.id, 0, PageSize)
}

func (p spotifyPager) Next(ctx context.Context, n int) ([]spotify.Track, error) {
	tracks, _, err := p.client.CollectionTracks(ctx, p.kind, p.id, PageSize, n)
	return tracks, err
}

func (p spotifyPager) All(ctx context.Context) ([]spotify.Track, error) {
	tracks, _, err := p.client.CollectionTracks(ctx, p.kind, p.id, 0, 0)
	return tracks, err
}

func (s *Spotify) searchCollection(ctx context.Context, kind, id, query string, limit int) (media.SearchResult, error) {
	col, err := s.client.Collection(ctx, kind, id)
	if err != nil {
		return media.SearchResult{}, err
	}
	items, err := fetchLimited(ctx, spotifyPager{client: s.client, kind: kind, id: id}, limit)
	if err != nil {
		return media.SearchResult{}, err
	}

	pl := &media.Playlist{Title: col.Title, URL: query, ThumbnailURL: col.Thumbnail}
	tracks := lo.Map(items, func(t spotify.Track, _ int) media.Track { return spotifyToTrack(t, pl) })
	return media.SearchResult{Tracks: tracks, Playlist: pl, Source: SourceSpotify}, nil
}

func spotifyToTrack(t spotify.Track, pl *media.Playlist) media.Track {
	return media.Track{
		Title:    t.Title,
		URL:      t.URL,
		Duration: int(math.Round(float64(t.DurationMs) / 1000)),
		Artist:   strings.Join(t.Artists, ", "),
		Source:   SourceSpotify,
		Playlist: pl,
	}
}
