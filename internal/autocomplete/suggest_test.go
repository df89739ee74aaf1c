package autocomplete

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sonroyaalmerol/kumaplayer/internal/media"
	"github.com/sonroyaalmerol/kumaplayer/internal/player"
)

type fakeSearcher struct {
	results []media.SearchResult
	query   string
}

func (f *fakeSearcher) Search(_ context.Context, q string, _ player.SearchOptions) []media.SearchResult {
	f.query = q
	return f.results
}

func withSuggestServer(t *testing.T, body string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ds") != "yt" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	prev := suggestURL
	suggestURL = srv.URL
	t.Cleanup(func() { suggestURL = prev })
}

func TestGetYouTubeSuggestions(t *testing.T) {
	withSuggestServer(t, `["lofi",["lofi hip hop","lofi girl",3]]`)
	got, err := GetYouTubeSuggestions(context.Background(), http.DefaultClient, "lofi")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "lofi hip hop" {
		t.Fatalf("got %v", got)
	}
}

func TestChoicesTracksFirst(t *testing.T) {
	withSuggestServer(t, `["q",["s1","s2","s3","s4","s5","s6"]]`)
	s := &fakeSearcher{results: []media.SearchResult{{
		Tracks: []media.Track{
			{Title: "Song", Artist: "Band", URL: "https://youtube.com/watch?v=1"},
			{Title: "Long", URL: "https://example.com/" + strings.Repeat("x", 200)},
		},
	}}}
	got := Choices(context.Background(), http.DefaultClient, s, "q", 4)
	if len(got) != 4 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].Name != "🎵 Song - Band" || got[0].Value != "https://youtube.com/watch?v=1" {
		t.Fatalf("first = %+v", got[0])
	}
	if got[1].Name != "YouTube: s1" {
		t.Fatalf("second = %+v", got[1])
	}
	if s.query != "q" {
		t.Fatalf("query = %q", s.query)
	}
}

func TestChoiceTruncatesName(t *testing.T) {
	c := choice(strings.Repeat("é", 150), "v")
	if n := len([]rune(c.Name)); n != maxChoiceLen {
		t.Fatalf("name runes = %d", n)
	}
}
