package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/zmb3/spotify/v2"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		in       string
		kind, id string
		wantErr  bool
	}{
		{in: "https://open.spotify.com/track/abc123", kind: KindTrack, id: "abc123"},
		{in: "https://open.spotify.com/playlist/pl1?si=xyz", kind: KindPlaylist, id: "pl1"},
		{in: "https://open.spotify.com/intl-de/album/al9", kind: KindAlbum, id: "al9"},
		{in: "spotify:track:abc123", kind: KindTrack, id: "abc123"},
		{in: "https://example.com/track/abc", wantErr: true},
		{in: "https://open.spotify.com/show/abc", wantErr: true},
		{in: "https://open.spotify.com/track", wantErr: true},
	}
	for _, tt := range tests {
		kind, id, err := ParseID(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseID(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseID(%q): %v", tt.in, err)
			continue
		}
		if kind != tt.kind || id != tt.id {
			t.Errorf("ParseID(%q) = %q, %q; want %q, %q", tt.in, kind, id, tt.kind, tt.id)
		}
	}
}

// playlistServer serves a playlist of total positions where the episodes
// positions hold podcast episodes.
func playlistServer(t *testing.T, total int, episodes map[int]bool) (*Client, func() [][2]int) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls [][2]int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/playlists/pl/tracks" {
			http.NotFound(w, r)
			return
		}
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		mu.Lock()
		calls = append(calls, [2]int{offset, limit})
		mu.Unlock()

		end := min(offset+limit, total)
		items := []map[string]any{}
		for i := offset; i < end; i++ {
			if episodes[i] {
				items = append(items, map[string]any{"track": map[string]any{"type": "episode", "id": fmt.Sprintf("e%d", i)}})
				continue
			}
			items = append(items, map[string]any{"track": map[string]any{
				"type": "track", "id": fmt.Sprintf("t%d", i), "name": fmt.Sprintf("song %d", i), "duration_ms": 1000,
			}})
		}
		next := ""
		if end < total {
			next = fmt.Sprintf("http://next?offset=%d", end)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": items, "total": total, "offset": offset, "limit": limit, "next": next,
		})
	}))
	t.Cleanup(srv.Close)

	c := &Client{raw: spotify.New(srv.Client(), spotify.WithBaseURL(srv.URL+"/"))}
	return c, func() [][2]int {
		mu.Lock()
		defer mu.Unlock()
		return append([][2]int(nil), calls...)
	}
}

func TestCollectionTracksCountsPositions(t *testing.T) {
	ctx := context.Background()
	c, calls := playlistServer(t, 130, map[int]bool{2: true, 50: true, 110: true})

	tracks, more, err := c.CollectionTracks(ctx, KindPlaylist, "pl", 0, 100)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(tracks) != 98 || !more {
		t.Fatalf("first page: %d tracks more=%v, want 98 and more", len(tracks), more)
	}
	if got := calls(); len(got) != 1 || got[0] != [2]int{0, 100} {
		t.Fatalf("first page calls = %v", got)
	}

	tracks, more, err = c.CollectionTracks(ctx, KindPlaylist, "pl", 100, 20)
	if err != nil || len(tracks) != 19 || !more {
		t.Fatalf("follow-up: %d tracks more=%v err=%v", len(tracks), more, err)
	}
	if tracks[0].Title != "song 100" {
		t.Fatalf("follow-up starts at %q, want song 100", tracks[0].Title)
	}

	tracks, more, err = c.CollectionTracks(ctx, KindPlaylist, "pl", 0, 0)
	if err != nil || len(tracks) != 127 || more {
		t.Fatalf("all: %d tracks more=%v err=%v", len(tracks), more, err)
	}
	if got := calls(); len(got) != 4 || got[3] != [2]int{100, 100} {
		t.Fatalf("all calls = %v", got)
	}
}
