package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sonroyaalmerol/kumaplayer/internal/i18n"
	"github.com/sonroyaalmerol/kumaplayer/internal/media"
	"github.com/sonroyaalmerol/kumaplayer/internal/player"
)

func TestProgressBar(t *testing.T) {
	if got := ProgressBar(4, 0); got != "🔘▬▬▬" {
		t.Fatalf("0%% = %q", got)
	}
	if got := ProgressBar(4, 0.5); got != "▬▬🔘▬" {
		t.Fatalf("50%% = %q", got)
	}
	if got := ProgressBar(4, 2); got != "▬▬▬🔘" {
		t.Fatalf("clamped = %q", got)
	}
	if got := ProgressBar(0, 0.5); got != "" {
		t.Fatalf("zero width = %q", got)
	}
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	got, err := Page(items, 2, 2)
	if err != nil || len(got) != 2 || got[0] != 3 {
		t.Fatalf("page 2 = %v, %v", got, err)
	}
	got, err = Page(items, 3, 2)
	if err != nil || len(got) != 1 || got[0] != 5 {
		t.Fatalf("page 3 = %v, %v", got, err)
	}
	if _, err := Page(items, 4, 2); !errors.Is(err, ErrPageOutOfRange) {
		t.Fatalf("page 4 err = %v", err)
	}
	if got, err := Page([]int(nil), 1, 10); err != nil || len(got) != 0 {
		t.Fatalf("empty = %v, %v", got, err)
	}
	if Pages(0, 10) != 1 || Pages(11, 10) != 2 {
		t.Fatal("Pages")
	}
}

func TestProgressLine(t *testing.T) {
	np := NowPlaying{
		Track:    media.Track{Title: "a", Duration: 180},
		Position: 62 * time.Second,
		Repeat:   player.RepeatTrack,
	}
	got := ProgressLine(np)
	if !strings.Contains(got, "01:02/03:00") || !strings.HasSuffix(got, "🔂") || !strings.HasPrefix(got, "▶️") {
		t.Fatalf("line = %q", got)
	}
	np.Paused = true
	np.Track.Duration = 0
	got = ProgressLine(np)
	if !strings.HasPrefix(got, "⏸️") || strings.Contains(got, "/") {
		t.Fatalf("paused live line = %q", got)
	}
}

func TestQueueEmbed(t *testing.T) {
	tr := i18n.MustLoad("en")
	queue := []media.Track{
		{Title: "one", URL: "https://a/1", Duration: 60},
		{Title: "two", URL: "https://a/2", Duration: 30},
		{Title: "three", URL: "https://a/3", Duration: 30},
	}
	np := &NowPlaying{Track: media.Track{Title: "cur", URL: "https://a/0", Duration: 10, Source: "youtube"}}
	e, err := QueueEmbed(tr, np, queue, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(e.Description, "`3.` [three]") || strings.Contains(e.Description, "[one]") {
		t.Fatalf("description = %q", e.Description)
	}
	if e.Fields[0].Value != "02:00" || e.Fields[1].Value != "Page 2 of 2" {
		t.Fatalf("fields = %v %v", e.Fields[0].Value, e.Fields[1].Value)
	}
	if e.Footer.Text != "Source: youtube" {
		t.Fatalf("footer = %q", e.Footer.Text)
	}

	e, err = QueueEmbed(tr, nil, nil, 1, 10)
	if err != nil || !strings.Contains(e.Description, "The queue is empty.") {
		t.Fatalf("empty queue = %v, %v", e, err)
	}
}
