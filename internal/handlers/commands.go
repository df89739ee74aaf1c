package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/samber/lo"
	"github.com/sonroyaalmerol/kumaplayer/internal/autocomplete"
	"github.com/sonroyaalmerol/kumaplayer/internal/config"
	"github.com/sonroyaalmerol/kumaplayer/internal/i18n"
	"github.com/sonroyaalmerol/kumaplayer/internal/player"
	"github.com/sonroyaalmerol/kumaplayer/internal/repository"
	"github.com/sonroyaalmerol/kumaplayer/internal/utils"
)

const (
	commandTimeout      = 2 * time.Minute
	autocompleteTimeout = 2500 * time.Millisecond
	queuePageSize       = 10
)

// slowCommands resolve streams before answering and get a deferred reply.
var slowCommands = map[string]bool{
	"play": true, "add": true, "insert": true, "jump": true, "seek": true, "favorites": true,
}

type CommandHandler struct {
	cfg  *config.Config
	repo *repository.Repo
	favs *repository.FavoritesService
	pm   *player.Manager
	tr   *i18n.Translations
	http *http.Client
	log  *slog.Logger
}

func NewCommandHandler(cfg *config.Config, repo *repository.Repo, pm *player.Manager, log *slog.Logger) *CommandHandler {
	h := &CommandHandler{
		cfg:  cfg,
		repo: repo,
		pm:   pm,
		tr:   pm.Translations(),
		http: &http.Client{Timeout: autocompleteTimeout},
		log:  log,
	}
	if repo != nil {
		h.favs = repository.NewFavoritesService(repo)
	}
	return h
}

// request is a parsed slash command invocation.
type request struct {
	guildID string
	userID  string
	// voiceChannel is the invoking user's current voice channel, if any.
	voiceChannel string
	canSpeak     bool
	sub          string
	opts         map[string]*discordgo.ApplicationCommandInteractionDataOption
}

func (r request) str(name string) string {
	if o, ok := r.opts[name]; ok {
		return o.StringValue()
	}
	return ""
}

func (r request) int(name string, def int) int {
	if o, ok := r.opts[name]; ok {
		return int(o.IntValue())
	}
	return def
}

func (r request) bool(name string) bool {
	if o, ok := r.opts[name]; ok {
		return o.BoolValue()
	}
	return false
}

type response struct {
	content   string
	embed     *discordgo.MessageEmbed
	ephemeral bool
}

func (h *CommandHandler) say(key string, args ...string) response {
	return response{content: h.tr.Get(key, args...)}
}

func (h *CommandHandler) fail(key string, args ...string) response {
	return response{content: h.tr.Get(key, args...), ephemeral: true}
}

func commandDefinitions(tr *i18n.Translations) []*discordgo.ApplicationCommand {
	str := func(name, desc string, required, auto bool) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type: discordgo.ApplicationCommandOptionString, Name: name, Description: desc,
			Required: required, Autocomplete: auto,
		}
	}
	integer := func(name, desc string, required bool, low, high float64) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type: discordgo.ApplicationCommandOptionInteger, Name: name, Description: desc,
			Required: required, MinValue: &low, MaxValue: high,
		}
	}
	sub := func(name, desc string, opts ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type: discordgo.ApplicationCommandOptionSubCommand, Name: name, Description: desc, Options: opts,
		}
	}
	query := str("query", tr.Get("play.optionDescription"), true, true)
	position := func(key string) *discordgo.ApplicationCommandOption {
		return integer("position", tr.Get(key), true, 1, 10000)
	}
	volume := func(key string) *discordgo.ApplicationCommandOption {
		return integer("volume", tr.Get(key), true, utils.MinVolume, utils.MaxVolume)
	}
	favName := str("name", tr.Get("favorites.nameDescription"), true, false)

	return []*discordgo.ApplicationCommand{
		{Name: "play", Description: tr.Get("play.description"), Options: []*discordgo.ApplicationCommandOption{query}},
		{Name: "add", Description: tr.Get("add.description"), Options: []*discordgo.ApplicationCommandOption{query}},
		{Name: "insert", Description: tr.Get("insert.description"), Options: []*discordgo.ApplicationCommandOption{
			query, position("insert.optionDescription"),
		}},
		{Name: "jump", Description: tr.Get("jump.description"), Options: []*discordgo.ApplicationCommandOption{
			position("jump.optionDescription"),
		}},
		{Name: "skip", Description: tr.Get("skip.description")},
		{Name: "pause", Description: tr.Get("pause.description")},
		{Name: "resume", Description: tr.Get("resume.description")},
		{Name: "stop", Description: tr.Get("stop.description")},
		{Name: "clear", Description: tr.Get("clear.description")},
		{Name: "shuffle", Description: tr.Get("shuffle.description")},
		{Name: "queue", Description: tr.Get("queue.description"), Options: []*discordgo.ApplicationCommandOption{
			integer("page", tr.Get("queue.pageDescription"), false, 1, 1000),
		}},
		{Name: "song", Description: tr.Get("song.description")},
		{Name: "seek", Description: tr.Get("seek.description"), Options: []*discordgo.ApplicationCommandOption{
			str("position", tr.Get("seek.optionDescription"), true, false),
		}},
		{Name: "volume", Description: tr.Get("setvolume.description"), Options: []*discordgo.ApplicationCommandOption{
			volume("setvolume.optionDescription"),
		}},
		{Name: "repeat", Description: tr.Get("repeat.description"), Options: []*discordgo.ApplicationCommandOption{{
			Type: discordgo.ApplicationCommandOptionString, Name: "mode", Description: tr.Get("repeat.modeDescription"),
			Required: true,
			Choices: lo.Map([]player.RepeatMode{player.RepeatNone, player.RepeatTrack}, func(m player.RepeatMode, _ int) *discordgo.ApplicationCommandOptionChoice {
				return &discordgo.ApplicationCommandOptionChoice{Name: tr.Get("repeat.modes." + m.String()), Value: m.String()}
			}),
		}}},
		{Name: "remove", Description: tr.Get("remove.description"), Options: []*discordgo.ApplicationCommandOption{
			position("remove.optionDescription"),
		}},
		{Name: "help", Description: tr.Get("help.description")},
		{Name: "config", Description: tr.Get("config.description"), Options: []*discordgo.ApplicationCommandOption{
			sub("show", tr.Get("config.showDescription")),
			sub("volume", tr.Get("config.volumeDescription"), volume("config.optionDescription")),
			sub("stop-on-end", tr.Get("config.stopOnEndCommandDescription"), &discordgo.ApplicationCommandOption{
				Type: discordgo.ApplicationCommandOptionBoolean, Name: "value",
				Description: tr.Get("config.stopOnEndDescription"), Required: true,
			}),
		}},
		{Name: "favorites", Description: tr.Get("favorites.description"), Options: []*discordgo.ApplicationCommandOption{
			sub("create", tr.Get("favorites.createDescription"), favName, str("query", tr.Get("favorites.queryDescription"), true, false)),
			sub("use", tr.Get("favorites.useDescription"), favName),
			sub("remove", tr.Get("favorites.removeDescription"), favName),
			sub("list", tr.Get("favorites.listDescription")),
		}},
	}
}

// RegisterCommands overwrites the application commands of guildID, or the
// global ones when guildID is empty.
func (h *CommandHandler) RegisterCommands(s *discordgo.Session, appID, guildID string) error {
	start := time.Now()
	cmds := commandDefinitions(h.tr)
	if _, err := s.ApplicationCommandBulkOverwrite(appID, guildID, cmds); err != nil {
		return err
	}
	h.log.Info("registered commands", "guildID", guildID, "count", len(cmds), "took", time.Since(start))
	return nil
}

func (h *CommandHandler) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		h.handleChatCommand(s, i)
	case discordgo.InteractionApplicationCommandAutocomplete:
		h.handleAutocomplete(s, i)
	default:
		h.log.Debug("interaction: ignored type", "type", i.Type, "guildID", i.GuildID)
	}
}

func (h *CommandHandler) handleChatCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	req := h.buildRequest(s, i, data)
	h.log.Info("command", "name", data.Name, "sub", req.sub, "guildID", req.guildID, "userID", req.userID)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if !slowCommands[data.Name] {
		h.respond(s, i, h.execute(ctx, data.Name, req))
		return
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		h.log.Warn("defer reply failed", "guildID", i.GuildID, "err", err)
		return
	}
	resp := h.execute(ctx, data.Name, req)
	edit := &discordgo.WebhookEdit{Content: &resp.content}
	if resp.embed != nil {
		edit.Embeds = &[]*discordgo.MessageEmbed{resp.embed}
	}
	if _, err := s.InteractionResponseEdit(i.Interaction, edit); err != nil {
		h.log.Warn("edit reply failed", "guildID", i.GuildID, "err", err)
	}
}

func (h *CommandHandler) respond(s *discordgo.Session, i *discordgo.InteractionCreate, resp response) {
	data := &discordgo.InteractionResponseData{Content: resp.content}
	if resp.embed != nil {
		data.Embeds = []*discordgo.MessageEmbed{resp.embed}
	}
	if resp.ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}); err != nil {
		h.log.Warn("reply failed", "guildID", i.GuildID, "err", err)
	}
}

func (h *CommandHandler) buildRequest(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) request {
	req := request{guildID: i.GuildID, userID: userIDOf(i)}
	opts := data.Options
	if len(opts) == 1 && opts[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		req.sub = opts[0].Name
		opts = opts[0].Options
	}
	req.opts = make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, o := range opts {
		req.opts[o.Name] = o
	}

	if req.guildID == "" || req.userID == "" {
		return req
	}
	if vs, err := s.State.VoiceState(req.guildID, req.userID); err == nil && vs.ChannelID != "" {
		req.voiceChannel = vs.ChannelID
		req.canSpeak = canSpeak(s, req.voiceChannel)
	}
	return req
}

func canSpeak(s *discordgo.Session, channelID string) bool {
	if s.State.User == nil {
		return false
	}
	perms, err := s.State.UserChannelPermissions(s.State.User.ID, channelID)
	if err != nil {
		// Unknown to the cache; let the join attempt decide.
		return true
	}
	need := int64(discordgo.PermissionVoiceConnect | discordgo.PermissionVoiceSpeak)
	return perms&need == need
}

func (h *CommandHandler) handleAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	var query string
	for _, opt := range data.Options {
		if opt.Focused && opt.Name == "query" {
			query = strings.TrimSpace(opt.StringValue())
		}
	}

	choices := []*discordgo.ApplicationCommandOptionChoice{}
	if query != "" && i.GuildID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), autocompleteTimeout)
		defer cancel()
		choices = autocomplete.Choices(ctx, h.http, h.playerFor(ctx, i.GuildID), query, 10)
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	}); err != nil {
		h.log.Debug("autocomplete respond failed", "guildID", i.GuildID, "err", err)
	}
}

func (h *CommandHandler) execute(ctx context.Context, name string, req request) response {
	if req.guildID == "" && name != "help" {
		return h.fail("global.unknownGuild")
	}
	switch name {
	case "play":
		return h.cmdPlay(ctx, req, modePlay)
	case "add":
		return h.cmdPlay(ctx, req, modeAdd)
	case "insert":
		return h.cmdPlay(ctx, req, modeInsert)
	case "jump":
		return h.cmdJump(ctx, req)
	case "skip":
		return h.cmdSkip(req)
	case "pause":
		return h.cmdPause(req, true)
	case "resume":
		return h.cmdPause(req, false)
	case "stop":
		return h.cmdStop(req)
	case "clear":
		return h.cmdClear(req)
	case "shuffle":
		return h.cmdShuffle(req)
	case "queue":
		return h.cmdQueue(req)
	case "song":
		return h.cmdSong(req)
	case "seek":
		return h.cmdSeek(ctx, req)
	case "volume":
		return h.cmdVolume(req)
	case "repeat":
		return h.cmdRepeat(req)
	case "remove":
		return h.cmdRemove(req)
	case "help":
		return h.cmdHelp()
	case "config":
		return h.cmdConfig(ctx, req)
	case "favorites":
		return h.cmdFavorites(ctx, req)
	default:
		h.log.Debug("unknown command", "name", name, "guildID", req.guildID)
		return h.fail("global.unsupportedCommand", "command", name)
	}
}

func userIDOf(i *discordgo.InteractionCreate) string {
	switch {
	case i == nil:
		return ""
	case i.Member != nil && i.Member.User != nil:
		return i.Member.User.ID
	case i.User != nil:
		return i.User.ID
	}
	return ""
}
