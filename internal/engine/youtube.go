package engine

import (
	"context"
	"log/slog"
	"math"
	"net/url"
	"regexp"
	"strings"

	"github.com/samber/lo"
	"github.com/sonroyaalmerol/kumaplayer/internal/media"
	"github.com/sonroyaalmerol/kumaplayer/internal/youtube"
)

const defaultSearchLimit = 10

var youtubeURL = regexp.MustCompile(`^https?://((www\.|music\.)?youtube\.com|youtu\.be)/`)

// formatByLevel is indexed by Quality.Level.
var formatByLevel = [...]string{
	"worstaudio/worst",
	"ba[abr<=128]/ba[acodec^=opus]/bestaudio/best",
	"ba[acodec^=opus]/ba[ext=m4a]/bestaudio/best",
}

// YouTubeClient is the slice of yt-dlp the engine needs.
type YouTubeClient interface {
	Video(ctx context.Context, url string) (*youtube.Entry, error)
	Search(ctx context.Context, query string, limit int) ([]youtube.Entry, error)
	Playlist(ctx context.Context, url string, start, end int) (*youtube.Playlist, error)
	StreamURL(ctx context.Context, url, format string) (string, error)
}

type YouTube struct {
	client YouTubeClient
	log    *slog.Logger
}

func NewYouTube(client YouTubeClient, log *slog.Logger) *YouTube {
	if log == nil {
		log = slog.Default()
	}
	return &YouTube{client: client, log: log.With("engine", SourceYouTube)}
}

func (y *YouTube) Source() string { return SourceYouTube }

func (y *YouTube) IsResponsible(_ context.Context, query string, _ Config) bool {
	return youtubeURL.MatchString(query)
}

func (y *YouTube) Search(ctx context.Context, query string, cfg Config, opts SearchOptions) ([]media.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	if y.IsResponsible(ctx, query, cfg) {
		if isPlaylistURL(query) {
			res, err := y.searchPlaylist(ctx, query, opts.Limit)
			if err != nil {
				y.log.Warn("playlist lookup failed", "query", query, "err", err)
				return nil, nil
			}
			return []media.SearchResult{res}, nil
		}

		v, err := y.client.Video(ctx, query)
		if err != nil {
			y.log.Warn("video lookup failed", "query", query, "err", err)
			return nil, nil
		}
		return []media.SearchResult{{Tracks: []media.Track{entryToTrack(*v, nil)}, Source: SourceYouTube}}, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	entries, err := y.client.Search(ctx, query, limit)
	if err != nil {
		y.log.Warn("search failed", "query", query, "err", err)
		return nil, nil
	}
	tracks := lo.Map(entries, func(e youtube.Entry, _ int) media.Track { return entryToTrack(e, nil) })
	return []media.SearchResult{{Tracks: tracks, Source: SourceYouTube}}, nil
}

func (y *YouTube) GetStream(ctx context.Context, track media.Track, cfg Config) (*media.TrackStream, error) {
	streamURL, err := y.client.StreamURL(ctx, track.URL, formatByLevel[cfg.Quality.Level()])
	if err != nil {
		return nil, err
	}
	return &media.TrackStream{URL: streamURL, Type: media.StreamArbitrary, Seek: track.Seek}, nil
}

type youtubePlaylistPager struct {
	client YouTubeClient
	url    string
	meta   *media.Playlist
}

func (p *youtubePlaylistPager) fetch(ctx context.Context, start, end int) (*youtube.Playlist, error) {
	pl, err := p.client.Playlist(ctx, p.url, start, end)
	if err != nil {
		return nil, err
	}
	if p.meta == nil {
		p.meta = &media.Playlist{Title: pl.Title, URL: pl.URL, ThumbnailURL: pl.Thumbnail}
	}
	return pl, nil
}

// First trusts yt-dlp's playlist_count when present and otherwise assumes
// a full page continues.
func (p *youtubePlaylistPager) First(ctx context.Context) ([]youtube.Entry, bool, error) {
	pl, err := p.fetch(ctx, 1, PageSize)
	if err != nil {
		return nil, false, err
	}
	if pl.Count > 0 {
		return pl.Entries, pl.Count > PageSize, nil
	}
	return pl.Entries, len(pl.Entries) >= PageSize, nil
}

func (p *youtubePlaylistPager) Next(ctx context.Context, n int) ([]youtube.Entry, error) {
	pl, err := p.fetch(ctx, PageSize+1, PageSize+n)
	if err != nil {
		return nil, err
	}
	return pl.Entries, nil
}

func (p *youtubePlaylistPager) All(ctx context.Context) ([]youtube.Entry, error) {
	pl, err := p.fetch(ctx, 1, 0)
	if err != nil {
		return nil, err
	}
	return pl.Entries, nil
}

func (y *YouTube) searchPlaylist(ctx context.Context, query string, limit int) (media.SearchResult, error) {
	pg := &youtubePlaylistPager{client: y.client, url: query}
	entries, err := fetchLimited(ctx, pg, limit)
	if err != nil {
		return media.SearchResult{}, err
	}

	pl := pg.meta
	if pl != nil && pl.URL == "" {
		pl = nil
	}
	tracks := lo.Map(entries, func(e youtube.Entry, _ int) media.Track { return entryToTrack(e, pl) })
	return media.SearchResult{Tracks: tracks, Playlist: pl, Source: SourceYouTube}, nil
}

// isPlaylistURL is true for /playlist pages and for links carrying a list
// parameter without a specific video.
func isPlaylistURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	q := u.Query()
	if q.Get("list") == "" || u.Host == "youtu.be" {
		return false
	}
	return u.Path == "/playlist" || q.Get("v") == ""
}

func entryToTrack(e youtube.Entry, pl *media.Playlist) media.Track {
	return media.Track{
		Title:        e.Title,
		URL:          e.URL,
		Duration:     int(math.Round(e.Duration)),
		Artist:       e.Uploader,
		ThumbnailURL: e.Thumbnail,
		Source:       SourceYouTube,
		Playlist:     pl,
	}
}
