package player

import (
	"context"
	"errors"
	"testing"

	"github.com/samber/lo"
	"github.com/sonroyaalmerol/kumaplayer/internal/engine"
	"github.com/sonroyaalmerol/kumaplayer/internal/media"
	"github.com/sonroyaalmerol/kumaplayer/internal/voice/voicetest"
)

func newTestManager(defaults Options) (*Manager, *voicetest.Adapter) {
	adapter := voicetest.NewAdapter()
	eng := &fakeEngine{source: engine.SourceYouTube}
	return NewManager(defaults, Deps{Adapter: adapter, Engines: []engine.Engine{eng}}, nil), adapter
}

func TestManagerGetReturnsSameInstance(t *testing.T) {
	m, _ := newTestManager(Options{})
	if m.Find("g1") != nil {
		t.Fatalf("Find created a player")
	}
	a := m.Get("g1")
	b := m.Get("g1", Options{Quality: engine.QualityLow})
	if a != b {
		t.Fatalf("Get returned different players")
	}
	if a.Options().Quality != "" {
		t.Fatalf("overrides applied to an existing player")
	}
	if m.Find("g1") != a {
		t.Fatalf("Find did not return the registered player")
	}
	m.Get("g0")
	if got := m.Players(); len(got) != 2 || got[0] != "g0" || got[1] != "g1" {
		t.Fatalf("Players = %v", got)
	}
}

func TestManagerRemove(t *testing.T) {
	m, adapter := newTestManager(Options{})
	p := m.Get("g1")
	_ = p.Add(context.Background(), PlayOptions{ChannelID: "c1", Tracks: []media.Track{track("A"), track("B")}})

	m.Remove("g1")
	if m.Find("g1") != nil {
		t.Fatalf("player still registered")
	}
	if _, ok := adapter.Connection("g1"); ok {
		t.Fatalf("connection not torn down")
	}
	if len(p.GetQueue()) != 0 {
		t.Fatalf("queue not cleared")
	}
	m.Remove("g1")
}

func TestManagerForwardsEventsWithGuildID(t *testing.T) {
	m, _ := newTestManager(Options{})
	var started, ended, destroyed []string
	var failed []string
	m.OnTrackStart(func(g string, t media.Track) { started = append(started, g+":"+t.Title) })
	m.OnTrackEnd(func(g string) { ended = append(ended, g) })
	m.OnDestroyed(func(g string) { destroyed = append(destroyed, g) })
	m.OnError(func(g string, err error) {
		if errors.Is(err, ErrUnknownEngine) {
			failed = append(failed, g)
		}
	})

	ctx := context.Background()
	_ = m.Get("g1").Add(ctx, PlayOptions{ChannelID: "c1", Tracks: []media.Track{track("A")}})
	_ = m.Get("g2").Play(ctx, PlayOptions{ChannelID: "c9", Tracks: []media.Track{{Title: "x", Source: "nope"}}})
	if len(started) != 1 || started[0] != "g1:A" {
		t.Fatalf("started = %v", started)
	}
	if len(failed) != 1 || failed[0] != "g2" {
		t.Fatalf("failed = %v", failed)
	}

	m.Find("g1").Stop()
	if len(destroyed) != 1 || destroyed[0] != "g1" {
		t.Fatalf("destroyed = %v", destroyed)
	}
	if len(ended) != 1 || ended[0] != "g1" {
		t.Fatalf("ended = %v", ended)
	}
}

func TestManagerMergesOverrides(t *testing.T) {
	a := &fakeEngine{source: "a"}
	b := &fakeEngine{source: "b"}
	m, _ := newTestManager(Options{
		InitialVolume: lo.ToPtr(80),
		FileRoot:      "/music",
		CustomEngines: map[string]engine.Engine{"a": a},
	})
	p := m.Get("g1", Options{
		StopOnEnd:     lo.ToPtr(false),
		FileRoot:      "/other",
		CustomEngines: map[string]engine.Engine{"b": b},
	})
	opts := p.Options()
	if *opts.InitialVolume != 80 || opts.FileRoot != "/other" || opts.stopOnEnd() {
		t.Fatalf("merged options = %+v", opts)
	}
	if opts.CustomEngines["a"] != a || opts.CustomEngines["b"] != b {
		t.Fatalf("custom engines not merged key-wise: %v", opts.CustomEngines)
	}
	if m.Translations().Get("global.noGuildPlayer") == "global.noGuildPlayer" {
		t.Fatalf("translations not loaded")
	}
}
