package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sonroyaalmerol/kumaplayer/internal/repository"
	"github.com/sonroyaalmerol/kumaplayer/internal/utils"
)

func yesNo(v bool) string {
	if v {
		return "✅"
	}
	return "❌"
}

func (h *CommandHandler) cmdConfig(ctx context.Context, req request) response {
	if h.repo == nil {
		return h.fail("config.failure")
	}
	switch req.sub {
	case "show":
		volume, stop := h.cfg.DefaultVolume, h.cfg.StopOnEnd
		set, err := h.repo.GetSettings(ctx, req.guildID)
		switch {
		case err == nil:
			volume, stop = set.DefaultVolume, set.StopOnEnd
		case !errors.Is(err, sql.ErrNoRows):
			h.log.Error("get settings failed", "guildID", req.guildID, "err", err)
			return h.fail("config.failure")
		}
		return response{
			content:   h.tr.Get("config.show", "volume", strconv.Itoa(volume), "value", yesNo(stop)),
			ephemeral: true,
		}

	case "volume":
		v := req.int("volume", -1)
		if !utils.ValidateVolume(v) {
			return h.fail("config.failure")
		}
		if err := h.repo.SetDefaultVolume(ctx, req.guildID, v); err != nil {
			h.log.Error("set default volume failed", "guildID", req.guildID, "err", err)
			return h.fail("config.failure")
		}
		h.log.Info("config updated", "guildID", req.guildID, "key", "DefaultVolume", "value", v)
		return h.say("config.success", "volume", strconv.Itoa(v))

	case "stop-on-end":
		val := req.bool("value")
		set, err := h.repo.UpsertSettings(ctx, req.guildID)
		if err == nil {
			set.StopOnEnd = val
			err = h.repo.UpdateSettings(ctx, set)
		}
		if err != nil {
			h.log.Error("update settings failed", "guildID", req.guildID, "err", err)
			return h.fail("config.failure")
		}
		h.log.Info("config updated", "guildID", req.guildID, "key", "StopOnEnd", "value", val)
		return h.say("config.stopOnEndSuccess", "value", yesNo(val))
	}
	return h.fail("global.unsupportedCommand", "command", "config "+req.sub)
}

func (h *CommandHandler) cmdFavorites(ctx context.Context, req request) response {
	if h.favs == nil {
		return h.fail("favorites.failure")
	}
	name := strings.TrimSpace(req.str("name"))

	switch req.sub {
	case "create":
		err := h.favs.Create(ctx, req.guildID, req.userID, name, req.str("query"))
		switch {
		case errors.Is(err, repository.ErrFavoriteExists):
			return h.fail("favorites.exists")
		case err != nil:
			h.log.Warn("favorite create failed", "guildID", req.guildID, "name", name, "err", err)
			return h.fail("favorites.failure")
		}
		return h.say("favorites.created", "name", utils.EscapeMd(name))

	case "use":
		f, err := h.favs.Use(ctx, req.guildID, name)
		if err != nil {
			return h.fail("favorites.notFound", "name", utils.EscapeMd(name))
		}
		return h.enqueue(ctx, req, f.Query, modeAdd)

	case "remove":
		f, err := h.favs.Use(ctx, req.guildID, name)
		if err != nil {
			return h.fail("favorites.notFound", "name", utils.EscapeMd(name))
		}
		if f.Author != req.userID {
			return h.fail("favorites.notOwner")
		}
		if _, err := h.favs.Remove(ctx, req.guildID, name); err != nil {
			h.log.Warn("favorite remove failed", "guildID", req.guildID, "name", name, "err", err)
			return h.fail("favorites.failure")
		}
		return h.say("favorites.removed", "name", utils.EscapeMd(name))

	case "list":
		items, err := h.favs.List(ctx, req.guildID)
		if err != nil {
			h.log.Warn("favorite list failed", "guildID", req.guildID, "err", err)
			return h.fail("favorites.failure")
		}
		if len(items) == 0 {
			return h.fail("favorites.empty")
		}
		var b strings.Builder
		for _, f := range items {
			fmt.Fprintf(&b, "• %s: %s (<@%s>)\n", utils.EscapeMd(f.Name), utils.EscapeMd(f.Query), f.Author)
		}
		return response{content: b.String(), ephemeral: true}
	}
	return h.fail("global.unsupportedCommand", "command", "favorites "+req.sub)
}
