package media

import (
	"io"
	"time"
)

// Playlist is shared by pointer between every track that came from it.
// Treat it as read-only once an engine has built it.
type Playlist struct {
	Title        string
	URL          string
	ThumbnailURL string
}

type Track struct {
	Title        string
	URL          string // absolute URL or local path
	Duration     int    // seconds, 0 when unknown
	Artist       string
	ThumbnailURL string
	Source       string
	Playlist     *Playlist

	// Seek is the resume offset for the next stream request.
	Seek time.Duration
}

// FromStart returns a copy of t with the resume offset cleared.
func (t Track) FromStart() Track {
	t.Seek = 0
	return t
}

type SearchResult struct {
	Tracks   []Track
	Playlist *Playlist
	Source   string
}

type StreamType int

const (
	// StreamArbitrary needs probing and decoding before it can be sent.
	StreamArbitrary StreamType = iota
	// StreamRaw is interleaved s16le stereo PCM at 48kHz.
	StreamRaw
)

// TrackStream is what an engine hands to the audio subsystem. Exactly one of
// Reader and URL is set; URL may be a remote address or a local path.
type TrackStream struct {
	Reader io.ReadCloser
	URL    string
	Type   StreamType
	Seek   time.Duration
}

func (s *TrackStream) Close() error {
	if s == nil || s.Reader == nil {
		return nil
	}
	return s.Reader.Close()
}
