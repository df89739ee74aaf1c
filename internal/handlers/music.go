package handlers

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/sonroyaalmerol/kumaplayer/internal/media"
	"github.com/sonroyaalmerol/kumaplayer/internal/player"
	"github.com/sonroyaalmerol/kumaplayer/internal/ui"
	"github.com/sonroyaalmerol/kumaplayer/internal/utils"
	"github.com/sonroyaalmerol/kumaplayer/internal/voice"
)

type playMode int

const (
	modePlay playMode = iota
	modeAdd
	modeInsert
)

// playerFor creates the guild's player on demand with its stored settings
// applied.
func (h *CommandHandler) playerFor(ctx context.Context, guildID string) *player.Player {
	if p := h.pm.Find(guildID); p != nil {
		return p
	}
	return h.pm.Get(guildID, h.guildOptions(ctx, guildID))
}

func (h *CommandHandler) guildOptions(ctx context.Context, guildID string) player.Options {
	if h.repo == nil {
		return player.Options{}
	}
	set, err := h.repo.GetSettings(ctx, guildID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			h.log.Warn("get settings failed", "guildID", guildID, "err", err)
		}
		return player.Options{}
	}
	return player.Options{StopOnEnd: lo.ToPtr(set.StopOnEnd)}
}

func (h *CommandHandler) errorResponse(err error) response {
	if errors.Is(err, player.ErrChannelSwitchRefused) {
		return h.fail("global.channelSwitchRefused")
	}
	return h.fail("global.error", "error", err.Error())
}

func trackLink(t media.Track) string {
	return utils.URLToMarkdown(t.Title, t.URL, true)
}

// firstTracks picks the first search result that has anything playable.
func firstTracks(results []media.SearchResult) ([]media.Track, *media.Playlist) {
	res, ok := lo.Find(results, func(r media.SearchResult) bool { return len(r.Tracks) > 0 })
	if !ok {
		return nil, nil
	}
	return res.Tracks, res.Playlist
}

func (h *CommandHandler) cmdPlay(ctx context.Context, req request, mode playMode) response {
	return h.enqueue(ctx, req, req.str("query"), mode)
}

func (h *CommandHandler) enqueue(ctx context.Context, req request, query string, mode playMode) response {
	if req.voiceChannel == "" {
		return h.fail("play.userNotInVoiceChannel")
	}
	if !req.canSpeak {
		return h.fail("play.insufficientVoiceChannelPermissions", "channel", "<#"+req.voiceChannel+">")
	}

	p := h.playerFor(ctx, req.guildID)
	tracks, pl := firstTracks(p.Search(ctx, query, player.SearchOptions{}))
	if len(tracks) == 0 {
		return h.fail("play.noTracksFound", "query", query)
	}

	switch mode {
	case modeInsert:
		queued := len(p.GetQueue())
		index := max(0, min(req.int("position", 1)-1, queued))
		p.Insert(tracks[0], index)
		if p.Status() == voice.Idle {
			if err := p.Play(ctx, player.PlayOptions{ChannelID: req.voiceChannel}); err != nil {
				return h.errorResponse(err)
			}
		}
		return h.say("insert.success", "track", trackLink(tracks[0]), "position", strconv.Itoa(index+1))

	case modeAdd:
		if err := p.Add(ctx, player.PlayOptions{ChannelID: req.voiceChannel, Tracks: tracks}); err != nil {
			return h.errorResponse(err)
		}
		if pl != nil && len(tracks) > 1 {
			return h.say("add.successPlaylist", "count", strconv.Itoa(len(tracks)), "playlist", utils.EscapeMd(pl.Title))
		}
		return h.say("add.successTrack", "track", trackLink(tracks[0]))

	default:
		if err := p.Play(ctx, player.PlayOptions{ChannelID: req.voiceChannel, Tracks: tracks}); err != nil {
			return h.errorResponse(err)
		}
		if pl != nil && len(tracks) > 1 {
			return h.say("play.successPlaylist",
				"track", trackLink(tracks[0]),
				"count", strconv.Itoa(len(tracks)-1),
				"playlist", utils.EscapeMd(pl.Title))
		}
		return h.say("play.successTrack", "track", trackLink(tracks[0]))
	}
}

// withPlayer runs fn against an existing player only.
func (h *CommandHandler) withPlayer(req request, fn func(p *player.Player) response) response {
	p := h.pm.Find(req.guildID)
	if p == nil {
		return h.fail("global.noGuildPlayer")
	}
	return fn(p)
}

func (h *CommandHandler) cmdJump(ctx context.Context, req request) response {
	return h.withPlayer(req, func(p *player.Player) response {
		index := req.int("position", 1) - 1
		queue := p.GetQueue()
		if index < 0 || index >= len(queue) {
			return h.fail("jump.failure")
		}
		ok, err := p.Jump(ctx, index)
		if err != nil {
			return h.errorResponse(err)
		}
		if !ok {
			return h.fail("jump.failure")
		}
		return h.say("jump.success", "track", trackLink(queue[index]))
	})
}

func (h *CommandHandler) cmdSkip(req request) response {
	return h.withPlayer(req, func(p *player.Player) response {
		t, ok := p.Skip()
		if !ok {
			return h.fail("skip.failure")
		}
		return h.say("skip.success", "track", trackLink(t))
	})
}

func (h *CommandHandler) cmdPause(req request, pause bool) response {
	key := "resume"
	if pause {
		key = "pause"
	}
	return h.withPlayer(req, func(p *player.Player) response {
		if _, ok := p.GetCurrentTrack(); !ok || !p.SetPause(pause) {
			return h.fail(key + ".failure")
		}
		return h.say(key + ".success")
	})
}

func (h *CommandHandler) cmdStop(req request) response {
	return h.withPlayer(req, func(p *player.Player) response {
		p.Stop()
		return h.say("stop.success")
	})
}

func (h *CommandHandler) cmdClear(req request) response {
	return h.withPlayer(req, func(p *player.Player) response {
		return h.say("clear.success", "count", strconv.Itoa(p.Clear()))
	})
}

func (h *CommandHandler) cmdShuffle(req request) response {
	return h.withPlayer(req, func(p *player.Player) response {
		p.Shuffle()
		return h.say("shuffle.success")
	})
}

func (h *CommandHandler) cmdQueue(req request) response {
	return h.withPlayer(req, func(p *player.Player) response {
		queue := p.GetQueue()
		np, playing := ui.Snapshot(p)
		if !playing && len(queue) == 0 {
			return h.fail("queue.empty")
		}
		var cur *ui.NowPlaying
		if playing {
			cur = &np
		}
		embed, err := ui.QueueEmbed(h.tr, cur, queue, req.int("page", 1), queuePageSize)
		if err != nil {
			return h.fail("queue.pageOutOfRange")
		}
		return response{embed: embed, ephemeral: true}
	})
}

func (h *CommandHandler) cmdSong(req request) response {
	return h.withPlayer(req, func(p *player.Player) response {
		np, ok := ui.Snapshot(p)
		if !ok {
			return h.fail("global.noGuildPlayer")
		}
		resp := h.say("song.success", "track", trackLink(np.Track), "duration", ui.ProgressLine(np))
		resp.embed = ui.PlayingEmbed(h.tr, np)
		return resp
	})
}

func (h *CommandHandler) cmdSeek(ctx context.Context, req request) response {
	return h.withPlayer(req, func(p *player.Player) response {
		sec := utils.ParseDurationString(req.str("position"))
		if sec < 0 {
			return h.fail("seek.failure")
		}
		ok, err := p.Seek(ctx, time.Duration(sec)*time.Second)
		if err != nil {
			return h.errorResponse(err)
		}
		if !ok {
			return h.fail("seek.failure")
		}
		return h.say("seek.success", "duration", utils.FormatDuration(sec))
	})
}

func (h *CommandHandler) cmdVolume(req request) response {
	return h.withPlayer(req, func(p *player.Player) response {
		v := req.int("volume", -1)
		if !utils.ValidateVolume(v) || !p.SetVolume(v) {
			return h.fail("setvolume.failure")
		}
		return h.say("setvolume.success", "volume", strconv.Itoa(v))
	})
}

func (h *CommandHandler) cmdRepeat(req request) response {
	return h.withPlayer(req, func(p *player.Player) response {
		mode := player.RepeatNone
		if req.str("mode") == player.RepeatTrack.String() {
			mode = player.RepeatTrack
		}
		p.SetRepeat(mode)
		return h.say("repeat.success", "mode", h.tr.Get("repeat.modes."+mode.String()))
	})
}

func (h *CommandHandler) cmdRemove(req request) response {
	return h.withPlayer(req, func(p *player.Player) response {
		t, ok := p.Remove(req.int("position", 1) - 1)
		if !ok {
			return h.fail("remove.failure")
		}
		return h.say("remove.success", "track", trackLink(t))
	})
}

func (h *CommandHandler) cmdHelp() response {
	var b strings.Builder
	for _, c := range commandDefinitions(h.tr) {
		b.WriteString("`/" + c.Name + "`: " + c.Description + "\n")
	}
	return response{content: b.String(), ephemeral: true}
}
