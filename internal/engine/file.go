package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sonroyaalmerol/kumaplayer/internal/media"
	"github.com/sonroyaalmerol/kumaplayer/internal/metadata"
	"github.com/sonroyaalmerol/kumaplayer/internal/utils"
)

// File plays local audio files below Config.FileRoot.
type File struct {
	meta metadata.Reader
	log  *slog.Logger
}

func NewFile(meta metadata.Reader, log *slog.Logger) *File {
	if meta == nil {
		meta = metadata.TagReader{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &File{meta: meta, log: log.With("engine", SourceFile)}
}

func (f *File) Source() string { return SourceFile }

// resolve maps a query to an absolute path of a regular file strictly inside
// the root. Relative queries are taken relative to the root.
func (f *File) resolve(query string, cfg Config) (string, bool) {
	if cfg.FileRoot == "" || query == "" {
		return "", false
	}
	root, err := filepath.Abs(cfg.FileRoot)
	if err != nil {
		return "", false
	}
	path := query
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	if !utils.IsSubPath(root, path) {
		return "", false
	}
	st, err := os.Stat(path)
	if err != nil || !st.Mode().IsRegular() {
		return "", false
	}
	return filepath.Clean(path), true
}

func (f *File) IsResponsible(_ context.Context, query string, cfg Config) bool {
	_, ok := f.resolve(query, cfg)
	return ok
}

func (f *File) Search(_ context.Context, query string, cfg Config, _ SearchOptions) ([]media.SearchResult, error) {
	path, ok := f.resolve(query, cfg)
	if !ok {
		return nil, nil
	}
	info, err := f.meta.Read(path)
	if err != nil {
		f.log.Warn("metadata extraction failed", "path", path, "err", err)
		return nil, nil
	}

	title := info.Title
	if title == "" {
		title = filepath.Base(path)
	}
	track := media.Track{
		Title:    title,
		URL:      path,
		Duration: max(info.Duration, 0),
		Artist:   info.Artist,
		Source:   SourceFile,
	}
	return []media.SearchResult{{Tracks: []media.Track{track}, Source: SourceFile}}, nil
}

func (f *File) GetStream(_ context.Context, track media.Track, cfg Config) (*media.TrackStream, error) {
	path, ok := f.resolve(track.URL, cfg)
	if !ok {
		return nil, nil
	}
	return &media.TrackStream{URL: path, Type: media.StreamArbitrary, Seek: track.Seek}, nil
}
