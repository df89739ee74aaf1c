package handlers

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/kumaplayer/internal/config"
	"github.com/sonroyaalmerol/kumaplayer/internal/engine"
	"github.com/sonroyaalmerol/kumaplayer/internal/i18n"
	"github.com/sonroyaalmerol/kumaplayer/internal/media"
	"github.com/sonroyaalmerol/kumaplayer/internal/player"
	"github.com/sonroyaalmerol/kumaplayer/internal/repository"
	"github.com/sonroyaalmerol/kumaplayer/internal/stream"
)

type Bot struct {
	cfg     *config.Config
	repo    *repository.Repo
	session *discordgo.Session
	pm      *player.Manager
	cmd     *CommandHandler
	log     *slog.Logger
}

func NewBot(cfg *config.Config, repo *repository.Repo, engines []engine.Engine, tr *i18n.Translations, log *slog.Logger) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	repo, defaults := playerDefaults(cfg, repo)
	pm := player.NewManager(defaults, player.Deps{
		Adapter: stream.NewAdapter(dg, log),
		Engines: engines,
		Logger:  log,
	}, tr)

	b := &Bot{
		cfg:     cfg,
		repo:    repo,
		session: dg,
		pm:      pm,
		cmd:     NewCommandHandler(cfg, repo, pm, log),
		log:     log,
	}
	pm.OnTrackStart(func(guildID string, t media.Track) {
		log.Debug("track started", "guildID", guildID, "track", t.Title)
	})
	pm.OnError(func(guildID string, err error) {
		log.Warn("player error", "guildID", guildID, "err", err)
	})
	// A destroyed player is rebuilt with fresh guild settings on next use.
	pm.OnDestroyed(pm.Remove)
	return b, nil
}

// playerDefaults binds the env defaults to the settings store, so guilds
// without a settings row resolve to DEFAULT_VOLUME and STOP_ON_END.
func playerDefaults(cfg *config.Config, repo *repository.Repo) (*repository.Repo, player.Options) {
	defaults := cfg.PlayerOptions()
	if repo == nil {
		return nil, defaults
	}
	repo = repo.WithDefaults(cfg.DefaultVolume, cfg.StopOnEnd)
	defaults.InitialVolumeFunc = repo.DefaultVolume
	return repo, defaults
}

func (b *Bot) Run(ctx context.Context) error {
	dg := b.session
	dg.AddHandler(b.onReady)
	dg.AddHandler(func(s *discordgo.Session, g *discordgo.GuildCreate) {
		if b.cfg.RegisterCommandsOnBot {
			return
		}
		if err := b.cmd.RegisterCommands(s, s.State.User.ID, g.ID); err != nil {
			b.log.Error("register guild commands on join", "guildID", g.ID, "err", err)
		}
	})
	dg.AddHandler(b.cmd.HandleInteraction)
	dg.AddHandler(b.onVoiceStateUpdate)

	if err := dg.Open(); err != nil {
		return err
	}
	defer dg.Close()

	<-ctx.Done()
	for _, id := range b.pm.Players() {
		b.pm.Remove(id)
	}
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.log.Info("connected", "user", s.State.User.Username)
	if err := s.UpdateStatusComplex(discordgo.UpdateStatusData{
		Status:     b.cfg.BotStatus,
		Activities: []*discordgo.Activity{{Name: b.cfg.BotActivity, Type: discordgo.ActivityTypeListening}},
	}); err != nil {
		b.log.Warn("update status failed", "err", err)
	}

	appID := s.State.User.ID
	if b.cfg.RegisterCommandsOnBot {
		if err := b.cmd.RegisterCommands(s, appID, ""); err != nil {
			b.log.Error("register global commands", "err", err)
		}
		return
	}

	var wg sync.WaitGroup
	for _, g := range s.State.Guilds {
		wg.Add(1)
		go func(guildID string) {
			defer wg.Done()
			if err := b.cmd.RegisterCommands(s, appID, guildID); err != nil {
				b.log.Error("register guild commands", "guildID", guildID, "err", err)
			}
		}(g.ID)
	}
	wg.Wait()

	if _, err := s.ApplicationCommandBulkOverwrite(appID, "", []*discordgo.ApplicationCommand{}); err != nil {
		b.log.Error("clear global commands", "err", err)
	}
}

// onVoiceStateUpdate leaves a channel once every human listener is gone.
func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	p := b.pm.Find(vs.GuildID)
	if p == nil {
		return
	}
	chID, ok := p.GetVoiceChannel()
	if !ok {
		return
	}
	if n, known := listeners(s, vs.GuildID, chID); known && n == 0 {
		b.log.Info("no listeners left, leaving", "guildID", vs.GuildID, "channelID", chID)
		p.Stop()
	}
}

// listeners counts the members in channelID that are not bots. It reports false when
// the guild is not cached.
func listeners(s *discordgo.Session, guildID, channelID string) (int, bool) {
	g, _ := s.State.Guild(guildID)
	if g == nil {
		return 0, false
	}
	n := 0
	for _, vs := range g.VoiceStates {
		if vs.ChannelID != channelID || (s.State.User != nil && vs.UserID == s.State.User.ID) {
			continue
		}
		m := vs.Member
		if m == nil {
			m, _ = s.State.Member(guildID, vs.UserID)
		}
		if m != nil && m.User != nil && m.User.Bot {
			continue
		}
		n++
	}
	return n, true
}
