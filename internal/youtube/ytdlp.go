package youtube

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	ytdlp "github.com/lrstanley/go-ytdlp"
)

// Entry is a single video as reported by yt-dlp.
type Entry struct {
	ID        string
	Title     string
	URL       string
	Uploader  string
	Thumbnail string
	Duration  float64 // seconds
	IsLive    bool
}

type Playlist struct {
	Title     string
	URL       string
	Thumbnail string
	// Count is the size of the whole playlist, 0 when yt-dlp did not say.
	Count     int
	Entries   []Entry
}

type Options struct {
	CookiesPath string
	POToken     string
}

// Client shells out to yt-dlp through go-ytdlp.
type Client struct {
	opts        Options
	installOnce sync.Once
}

func NewClient(opts Options) *Client {
	return &Client{opts: opts}
}

func (c *Client) ensureInstalled(ctx context.Context) {
	c.installOnce.Do(func() {
		if _, err := ytdlp.Install(ctx, nil); err != nil {
			slog.Warn("yt-dlp install failed, relying on PATH", "err", err)
		}
	})
}

func (c *Client) command(url string) *ytdlp.Command {
	cmd := ytdlp.New().NoCheckCertificates()
	if c.opts.CookiesPath != "" {
		cmd = cmd.Cookies(c.opts.CookiesPath)
	}
	if strings.Contains(url, "youtube.com") || strings.Contains(url, "youtu.be") {
		args := "youtube:player-client=default,mweb"
		if c.opts.POToken != "" {
			args += ";po_token=" + c.opts.POToken
		}
		cmd = cmd.ExtractorArgs(args)
	}
	return cmd
}

func (c *Client) run(ctx context.Context, cmd *ytdlp.Command, target string) (*ytdlp.ExtractedInfo, error) {
	c.ensureInstalled(ctx)

	res, err := cmd.Run(ctx, target)
	if err != nil {
		if strings.Contains(err.Error(), "Sign in to confirm") {
			return nil, fmt.Errorf("yt-dlp %s (PO token may be required): %w", target, err)
		}
		return nil, fmt.Errorf("yt-dlp %s: %w", target, err)
	}
	infos, err := res.GetExtractedInfo()
	if err != nil {
		return nil, fmt.Errorf("parse yt-dlp json for %s: %w", target, err)
	}
	if len(infos) == 0 || infos[0] == nil {
		return nil, fmt.Errorf("yt-dlp returned no info for %s", target)
	}
	return infos[0], nil
}

// Video resolves metadata for a single video URL.
func (c *Client) Video(ctx context.Context, url string) (*Entry, error) {
	info, err := c.run(ctx, c.command(url).NoPlaylist().DumpSingleJSON(), url)
	if err != nil {
		return nil, err
	}
	e := toEntry(info)
	return &e, nil
}

// Search runs a ytsearch query and returns up to limit flat entries.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	target := fmt.Sprintf("ytsearch%d:%s", limit, query)
	info, err := c.run(ctx, c.command("youtube.com").FlatPlaylist().DumpSingleJSON(), target)
	if err != nil {
		return nil, err
	}
	return toEntries(info.Entries), nil
}

// Playlist fetches the 1-based inclusive item range [start, end]. An end of
// zero or less fetches everything from start on.
func (c *Client) Playlist(ctx context.Context, url string, start, end int) (*Playlist, error) {
	if start < 1 {
		start = 1
	}
	spec := fmt.Sprintf("%d:", start)
	if end > 0 {
		spec = fmt.Sprintf("%d:%d", start, end)
	}

	cmd := c.command(url).FlatPlaylist().PlaylistItems(spec).DumpSingleJSON()
	info, err := c.run(ctx, cmd, url)
	if err != nil {
		return nil, err
	}
	slog.Debug("yt-dlp playlist fetched", "url", url, "items", spec, "entries", len(info.Entries))

	pl := &Playlist{
		Title:     s(info.Title),
		URL:       firstNonEmpty(s(info.WebpageURL), url),
		Thumbnail: thumbnail(info),
		Entries:   toEntries(info.Entries),
	}
	if info.PlaylistCount != nil {
		pl.Count = *info.PlaylistCount
	}
	return pl, nil
}

// StreamURL resolves a direct media URL for the given format selector.
func (c *Client) StreamURL(ctx context.Context, url, format string) (string, error) {
	cmd := c.command(url).Format(format).NoPlaylist().DumpJSON()
	info, err := c.run(ctx, cmd, url)
	if err != nil {
		return "", err
	}
	if u := audioURL(info); u != "" {
		return u, nil
	}
	return "", fmt.Errorf("no playable format for %s", url)
}

// audioURL prefers requested formats, then the top-level url, then any format.
func audioURL(info *ytdlp.ExtractedInfo) string {
	for _, rf := range info.RequestedFormats {
		if rf != nil && strings.HasPrefix(rf.URL, "http") {
			return rf.URL
		}
	}
	if u := s(info.URL); strings.HasPrefix(u, "http") {
		return u
	}
	for _, f := range info.Formats {
		if f != nil && strings.HasPrefix(f.URL, "http") {
			return f.URL
		}
	}
	return ""
}

func toEntries(in []*ytdlp.ExtractedInfo) []Entry {
	out := make([]Entry, 0, len(in))
	for _, e := range in {
		if e == nil {
			continue
		}
		out = append(out, toEntry(e))
	}
	return out
}

func toEntry(e *ytdlp.ExtractedInfo) Entry {
	url := s(e.WebpageURL)
	if url == "" {
		if u := s(e.URL); strings.HasPrefix(u, "http") {
			url = u
		} else if e.ID != "" {
			url = "https://www.youtube.com/watch?v=" + e.ID
		}
	}
	return Entry{
		ID:        e.ID,
		Title:     s(e.Title),
		URL:       url,
		Uploader:  s(e.Uploader),
		Thumbnail: thumbnail(e),
		Duration:  f(e.Duration),
		IsLive:    b(e.IsLive),
	}
}

func thumbnail(e *ytdlp.ExtractedInfo) string {
	for _, t := range e.Thumbnails {
		if t != nil && t.URL != "" {
			return t.URL
		}
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func s(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func f(ptr *float64) float64 {
	if ptr == nil {
		return 0
	}
	return *ptr
}

func b(ptr *bool) bool {
	if ptr == nil {
		return false
	}
	return *ptr
}
