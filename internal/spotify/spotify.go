package spotify

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	KindTrack    = "track"
	KindPlaylist = "playlist"
	KindAlbum    = "album"

	playlistPageSize = 100
	albumPageSize    = 50
)

type Track struct {
	ID         string
	Title      string
	Artists    []string
	DurationMs int
	URL        string
}

// Collection is a playlist or album header without its tracks.
type Collection struct {
	Kind      string
	ID        string
	Title     string
	URL       string
	Thumbnail string
	Total     int
}

type Client struct {
	raw *spotify.Client
}

func NewClientCredentials(ctx context.Context, clientID, clientSecret string) (*Client, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("spotify client credentials not configured")
	}
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	httpClient := cfg.Client(ctx)
	return &Client{raw: spotify.New(httpClient, spotify.WithRetry(true))}, nil
}

// ParseID extracts the resource kind and id from an open.spotify.com URL or a
// spotify: URI. Locale prefixes such as /intl-de/ are skipped.
func ParseID(raw string) (kind, id string, err error) {
	if strings.HasPrefix(raw, "spotify:") {
		parts := strings.Split(raw, ":")
		if len(parts) == 3 {
			return parts[1], parts[2], nil
		}
		return "", "", fmt.Errorf("invalid spotify URI %q", raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	if u.Host != "open.spotify.com" && u.Host != "www.open.spotify.com" {
		return "", "", fmt.Errorf("not a spotify URL: %q", raw)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) > 0 && strings.HasPrefix(parts[0], "intl-") {
		parts = parts[1:]
	}
	if len(parts) < 2 {
		return "", "", fmt.Errorf("invalid spotify URL path %q", u.Path)
	}
	switch parts[0] {
	case KindAlbum, KindPlaylist, KindTrack:
		return parts[0], parts[1], nil
	}
	return "", "", fmt.Errorf("unsupported spotify type %q", parts[0])
}

func (c *Client) Track(ctx context.Context, id string) (Track, error) {
	t, err := c.raw.GetTrack(ctx, spotify.ID(id))
	if err != nil {
		return Track{}, err
	}
	return fromSimple(t.SimpleTrack), nil
}

func (c *Client) Collection(ctx context.Context, kind, id string) (Collection, error) {
	switch kind {
	case KindPlaylist:
		pl, err := c.raw.GetPlaylist(ctx, spotify.ID(id))
		if err != nil {
			return Collection{}, err
		}
		return Collection{
			Kind:      kind,
			ID:        id,
			Title:     pl.Name,
			URL:       pl.ExternalURLs["spotify"],
			Thumbnail: firstImage(pl.Images),
			Total:     int(pl.Tracks.Total),
		}, nil
	case KindAlbum:
		alb, err := c.raw.GetAlbum(ctx, spotify.ID(id))
		if err != nil {
			return Collection{}, err
		}
		return Collection{
			Kind:      kind,
			ID:        id,
			Title:     alb.Name,
			URL:       alb.ExternalURLs["spotify"],
			Thumbnail: firstImage(alb.Images),
			Total:     int(alb.Tracks.Total),
		}, nil
	}
	return Collection{}, fmt.Errorf("unsupported spotify collection %q", kind)
}

// CollectionTracks returns the tracks in the limit positions starting at
// offset, walking as many API pages as needed, and whether the collection
// continues past them. Episodes and local files take a position but yield no
// track. A limit of zero or less reads the rest of the collection.
func (c *Client) CollectionTracks(ctx context.Context, kind, id string, offset, limit int) ([]Track, bool, error) {
	pageSize := playlistPageSize
	if kind == KindAlbum {
		pageSize = albumPageSize
	}

	var out []Track
	covered := 0
	for {
		n := pageSize
		if limit > 0 {
			n = min(pageSize, limit-covered)
		}
		page, more, err := c.page(ctx, kind, id, offset, n)
		if err != nil {
			return out, false, err
		}
		out = append(out, page...)
		offset += n
		covered += n
		if !more || (limit > 0 && covered >= limit) {
			return out, more, nil
		}
	}
}

func (c *Client) page(ctx context.Context, kind, id string, offset, n int) ([]Track, bool, error) {
	opts := []spotify.RequestOption{spotify.Limit(n), spotify.Offset(offset)}
	switch kind {
	case KindPlaylist:
		page, err := c.raw.GetPlaylistItems(ctx, spotify.ID(id), opts...)
		if err != nil {
			return nil, false, err
		}
		out := make([]Track, 0, len(page.Items))
		for _, it := range page.Items {
			// episodes and local files carry no track
			if it.Track.Track == nil {
				continue
			}
			out = append(out, fromSimple(it.Track.Track.SimpleTrack))
		}
		return out, page.Next != "", nil
	case KindAlbum:
		page, err := c.raw.GetAlbumTracks(ctx, spotify.ID(id), opts...)
		if err != nil {
			return nil, false, err
		}
		out := make([]Track, 0, len(page.Tracks))
		for _, t := range page.Tracks {
			out = append(out, fromSimple(t))
		}
		return out, page.Next != "", nil
	}
	return nil, false, fmt.Errorf("unsupported spotify collection %q", kind)
}

func fromSimple(t spotify.SimpleTrack) Track {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}
	u := t.ExternalURLs["spotify"]
	if u == "" && t.ID != "" {
		u = "https://open.spotify.com/track/" + t.ID.String()
	}
	return Track{
		ID:         t.ID.String(),
		Title:      t.Name,
		Artists:    artists,
		DurationMs: int(t.Duration),
		URL:        u,
	}
}

func firstImage(images []spotify.Image) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}
