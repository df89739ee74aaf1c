package handlers

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/kumaplayer/internal/config"
	"github.com/sonroyaalmerol/kumaplayer/internal/engine"
	"github.com/sonroyaalmerol/kumaplayer/internal/i18n"
	"github.com/sonroyaalmerol/kumaplayer/internal/media"
	"github.com/sonroyaalmerol/kumaplayer/internal/player"
	"github.com/sonroyaalmerol/kumaplayer/internal/repository"
	"github.com/sonroyaalmerol/kumaplayer/internal/voice"
	"github.com/sonroyaalmerol/kumaplayer/internal/voice/voicetest"
)

type fakeEngine struct {
	results []media.SearchResult
}

func (f *fakeEngine) Source() string { return engine.SourceYouTube }

func (f *fakeEngine) IsResponsible(context.Context, string, engine.Config) bool { return true }

func (f *fakeEngine) Search(context.Context, string, engine.Config, engine.SearchOptions) ([]media.SearchResult, error) {
	return f.results, nil
}

func (f *fakeEngine) GetStream(_ context.Context, t media.Track, _ engine.Config) (*media.TrackStream, error) {
	return &media.TrackStream{URL: t.URL, Seek: t.Seek}, nil
}

func track(title string) media.Track {
	return media.Track{Title: title, URL: "https://x/" + title, Duration: 60, Source: engine.SourceYouTube}
}

type fixture struct {
	h       *CommandHandler
	adapter *voicetest.Adapter
	eng     *fakeEngine
	repo    *repository.Repo
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, &config.Config{DefaultVolume: 100, StopOnEnd: true, InlineVolume: true, AllowSwitchChannels: true})
}

func newFixtureWith(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()
	db, err := repository.OpenDB(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	log := slog.New(slog.DiscardHandler)
	adapter := voicetest.NewAdapter()
	eng := &fakeEngine{}
	repo, defaults := playerDefaults(cfg, repository.NewRepo(db))
	pm := player.NewManager(defaults, player.Deps{
		Adapter: adapter,
		Engines: []engine.Engine{eng},
		Logger:  log,
	}, i18n.MustLoad("en"))

	return &fixture{
		h:       NewCommandHandler(cfg, repo, pm, log),
		adapter: adapter,
		eng:     eng,
		repo:    repo,
	}
}

func (f *fixture) run(name string, req request) response {
	return f.h.execute(context.Background(), name, req)
}

func listener(opts ...*discordgo.ApplicationCommandInteractionDataOption) request {
	req := request{
		guildID:      "g1",
		userID:       "u1",
		voiceChannel: "c1",
		canSpeak:     true,
		opts:         map[string]*discordgo.ApplicationCommandInteractionDataOption{},
	}
	for _, o := range opts {
		req.opts[o.Name] = o
	}
	return req
}

func strOpt(name, v string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionString, Value: v}
}

// Integer options arrive as float64 from the gateway.
func intOpt(name string, v int) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionInteger, Value: float64(v)}
}

func boolOpt(name string, v bool) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionBoolean, Value: v}
}

func TestCommandDefinitions(t *testing.T) {
	for _, lang := range []string{"en", "de"} {
		defs := commandDefinitions(i18n.MustLoad(lang))
		names := map[string]bool{}
		for _, c := range defs {
			names[c.Name] = true
			if c.Description == "" || len(c.Description) > 100 || strings.Contains(c.Description, ".description") {
				t.Errorf("%s /%s description = %q", lang, c.Name, c.Description)
			}
			for _, o := range c.Options {
				if o.Description == "" || strings.HasSuffix(o.Description, "Description") {
					t.Errorf("%s /%s %s description = %q", lang, c.Name, o.Name, o.Description)
				}
			}
		}
		for _, want := range []string{
			"play", "add", "insert", "jump", "skip", "pause", "resume", "stop", "clear", "shuffle",
			"queue", "song", "seek", "volume", "repeat", "remove", "help", "config", "favorites",
		} {
			if !names[want] {
				t.Errorf("%s: /%s missing", lang, want)
			}
		}
	}
}

func TestGuildOnly(t *testing.T) {
	f := newFixture(t)
	resp := f.run("skip", request{})
	if resp.content != "This command can only be used inside a server." || !resp.ephemeral {
		t.Fatalf("resp = %+v", resp)
	}
	if resp := f.run("help", request{}); !strings.Contains(resp.content, "`/play`") {
		t.Fatalf("help = %q", resp.content)
	}
}

func TestPlayPreconditions(t *testing.T) {
	f := newFixture(t)

	req := listener(strOpt("query", "x"))
	req.voiceChannel = ""
	if resp := f.run("play", req); resp.content != "You need to join a voice channel first." {
		t.Fatalf("no channel = %q", resp.content)
	}

	req = listener(strOpt("query", "x"))
	req.canSpeak = false
	if resp := f.run("play", req); resp.content != "I am not allowed to join or speak in <#c1>." {
		t.Fatalf("no permission = %q", resp.content)
	}

	if resp := f.run("play", listener(strOpt("query", "nothing"))); resp.content != "No tracks were found for: nothing" {
		t.Fatalf("no results = %q", resp.content)
	}
}

func TestNoPlayer(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"skip", "pause", "resume", "stop", "clear", "shuffle", "queue", "song", "seek", "volume", "repeat", "remove", "jump"} {
		resp := f.run(name, listener())
		if resp.content != "No music is currently being played on this server." {
			t.Errorf("%s = %q", name, resp.content)
		}
	}
}

func TestPlaybackFlow(t *testing.T) {
	f := newFixture(t)
	f.eng.results = []media.SearchResult{{
		Tracks:   []media.Track{track("a"), track("b"), track("c")},
		Playlist: &media.Playlist{Title: "Mix"},
	}}

	resp := f.run("play", listener(strOpt("query", "mix")))
	if resp.content != "Now playing [a](<https://x/a>) and 2 more tracks from Mix." {
		t.Fatalf("play = %q", resp.content)
	}
	if got := f.adapter.Joins; len(got) != 1 || got[0] != "c1" {
		t.Fatalf("joins = %v", got)
	}

	if resp := f.run("queue", listener()); resp.embed == nil || !strings.Contains(resp.embed.Description, "`1.` [b]") {
		t.Fatalf("queue = %+v", resp)
	}
	if resp := f.run("queue", listener(intOpt("page", 5))); resp.content != "The queue is not that long." {
		t.Fatalf("queue page 5 = %q", resp.content)
	}

	if resp := f.run("skip", listener()); resp.content != "Skipped [a](<https://x/a>)." {
		t.Fatalf("skip = %q", resp.content)
	}
	if resp := f.run("song", listener()); !strings.HasPrefix(resp.content, "Now playing [b](<https://x/b>).") || resp.embed == nil {
		t.Fatalf("song = %+v", resp)
	}

	if resp := f.run("pause", listener()); resp.content != "Paused." {
		t.Fatalf("pause = %q", resp.content)
	}
	if resp := f.run("resume", listener()); resp.content != "Resumed." {
		t.Fatalf("resume = %q", resp.content)
	}

	if resp := f.run("volume", listener(intOpt("volume", 50))); resp.content != "Volume set to 50%." {
		t.Fatalf("volume = %q", resp.content)
	}
	if resp := f.run("volume", listener(intOpt("volume", 500))); !resp.ephemeral {
		t.Fatalf("volume 500 = %+v", resp)
	}

	if resp := f.run("repeat", listener(strOpt("mode", "track"))); resp.content != "Repeat mode set to Track." {
		t.Fatalf("repeat = %q", resp.content)
	}

	if resp := f.run("seek", listener(strOpt("position", "0:30"))); resp.content != "Seeked to 00:30." {
		t.Fatalf("seek = %q", resp.content)
	}
	if resp := f.run("seek", listener(strOpt("position", "soon"))); resp.content != "Could not seek the current track." {
		t.Fatalf("bad seek = %q", resp.content)
	}

	if resp := f.run("clear", listener()); resp.content != "Removed 1 tracks from the queue." {
		t.Fatalf("clear = %q", resp.content)
	}

	if resp := f.run("stop", listener()); resp.content != "Stopped." {
		t.Fatalf("stop = %q", resp.content)
	}
	if c := f.adapter.Conn("g1"); c != nil && c.Status() != voice.Destroyed {
		t.Fatalf("connection still %v", c.Status())
	}
}

func TestQueueEditing(t *testing.T) {
	f := newFixture(t)
	f.eng.results = []media.SearchResult{{Tracks: []media.Track{track("a")}}}
	if resp := f.run("add", listener(strOpt("query", "a"))); resp.content != "Added [a](<https://x/a>) to the queue." {
		t.Fatalf("add = %q", resp.content)
	}

	f.eng.results = []media.SearchResult{{Tracks: []media.Track{track("b"), track("c")}, Playlist: &media.Playlist{Title: "BC"}}}
	if resp := f.run("add", listener(strOpt("query", "bc"))); resp.content != "Added 2 tracks from BC to the queue." {
		t.Fatalf("add playlist = %q", resp.content)
	}

	f.eng.results = []media.SearchResult{{Tracks: []media.Track{track("z")}}}
	resp := f.run("insert", listener(strOpt("query", "z"), intOpt("position", 99)))
	if resp.content != "Inserted [z](<https://x/z>) at position 3." {
		t.Fatalf("insert = %q", resp.content)
	}

	if resp := f.run("remove", listener(intOpt("position", 1))); resp.content != "Removed [b](<https://x/b>) from the queue." {
		t.Fatalf("remove = %q", resp.content)
	}
	if resp := f.run("remove", listener(intOpt("position", 9))); resp.content != "There is no track at that position." {
		t.Fatalf("remove missing = %q", resp.content)
	}

	if resp := f.run("jump", listener(intOpt("position", 2))); resp.content != "Jumped to [z](<https://x/z>)." {
		t.Fatalf("jump = %q", resp.content)
	}
	p := f.h.pm.Find("g1")
	if cur, _ := p.GetCurrentTrack(); cur.Title != "z" || len(p.GetQueue()) != 0 {
		t.Fatalf("after jump current = %q queue = %v", cur.Title, p.GetQueue())
	}
	if resp := f.run("jump", listener(intOpt("position", 1))); resp.content != "There is no track at that position." {
		t.Fatalf("jump empty = %q", resp.content)
	}
}

func TestChannelSwitchRefused(t *testing.T) {
	f := newFixture(t)
	f.eng.results = []media.SearchResult{{Tracks: []media.Track{track("a")}}}
	f.h.pm.Get("g1", player.Options{AllowSwitchChannels: new(bool)})

	if resp := f.run("play", listener(strOpt("query", "a"))); resp.ephemeral {
		t.Fatalf("first play = %+v", resp)
	}
	req := listener(strOpt("query", "a"))
	req.voiceChannel = "c2"
	if resp := f.run("play", req); resp.content != "I am already playing in another voice channel." {
		t.Fatalf("switch = %q", resp.content)
	}
}

func TestConfigCommands(t *testing.T) {
	f := newFixture(t)

	show := listener()
	show.sub = "show"
	if resp := f.run("config", show); resp.content != "Default volume: 100%. Leave when the queue ends: ✅." {
		t.Fatalf("show = %q", resp.content)
	}

	vol := listener(intOpt("volume", 40))
	vol.sub = "volume"
	if resp := f.run("config", vol); resp.content != "Default volume set to 40%." {
		t.Fatalf("volume = %q", resp.content)
	}

	stop := listener(boolOpt("value", false))
	stop.sub = "stop-on-end"
	if resp := f.run("config", stop); resp.content != "Leave when the queue ends: ❌." {
		t.Fatalf("stop-on-end = %q", resp.content)
	}
	if resp := f.run("config", show); resp.content != "Default volume: 40%. Leave when the queue ends: ❌." {
		t.Fatalf("show after = %q", resp.content)
	}

	f.eng.results = []media.SearchResult{{Tracks: []media.Track{track("a")}}}
	f.run("play", listener(strOpt("query", "a")))
	p := f.h.pm.Find("g1")
	if p.GetVolume() != 40 {
		t.Fatalf("volume = %d, want guild default", p.GetVolume())
	}
	if stopOnEnd := p.Options().StopOnEnd; stopOnEnd == nil || *stopOnEnd {
		t.Fatalf("StopOnEnd override not applied: %v", stopOnEnd)
	}
}

func TestFavorites(t *testing.T) {
	f := newFixture(t)
	f.eng.results = []media.SearchResult{{Tracks: []media.Track{track("lofi")}}}

	create := listener(strOpt("name", "chill"), strOpt("query", "lofi"))
	create.sub = "create"
	if resp := f.run("favorites", create); resp.content != "Saved chill." {
		t.Fatalf("create = %q", resp.content)
	}
	if resp := f.run("favorites", create); resp.content != "A favorite with that name already exists." {
		t.Fatalf("duplicate = %q", resp.content)
	}

	list := listener()
	list.sub = "list"
	if resp := f.run("favorites", list); resp.content != "• chill: lofi (<@u1>)\n" {
		t.Fatalf("list = %q", resp.content)
	}

	use := listener(strOpt("name", "chill"))
	use.sub = "use"
	if resp := f.run("favorites", use); resp.content != "Added [lofi](<https://x/lofi>) to the queue." {
		t.Fatalf("use = %q", resp.content)
	}

	remove := listener(strOpt("name", "chill"))
	remove.sub = "remove"
	remove.userID = "u2"
	if resp := f.run("favorites", remove); resp.content != "You can only remove your own favorites." {
		t.Fatalf("foreign remove = %q", resp.content)
	}
	remove.userID = "u1"
	if resp := f.run("favorites", remove); resp.content != "Removed chill." {
		t.Fatalf("remove = %q", resp.content)
	}
	if resp := f.run("favorites", use); resp.content != "There is no favorite called chill." {
		t.Fatalf("use removed = %q", resp.content)
	}
}

func TestEnvDefaultsApplyToUnsetGuilds(t *testing.T) {
	f := newFixtureWith(t, &config.Config{DefaultVolume: 60, StopOnEnd: false, InlineVolume: true, AllowSwitchChannels: true})
	f.eng.results = []media.SearchResult{{Tracks: []media.Track{track("a")}}}

	show := listener()
	show.sub = "show"
	if resp := f.run("config", show); resp.content != "Default volume: 60%. Leave when the queue ends: ❌." {
		t.Fatalf("show = %q", resp.content)
	}

	f.run("play", listener(strOpt("query", "a")))
	if v := f.h.pm.Find("g1").GetVolume(); v != 60 {
		t.Fatalf("volume = %d, want env default 60", v)
	}

	// A first settings write keeps the env values it did not change.
	vol := listener(intOpt("volume", 30))
	vol.sub = "volume"
	f.run("config", vol)
	set, err := f.repo.GetSettings(context.Background(), "g1")
	if err != nil || set.DefaultVolume != 30 || set.StopOnEnd {
		t.Fatalf("settings = %+v, %v", set, err)
	}
}
