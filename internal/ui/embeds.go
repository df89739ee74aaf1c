package ui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/samber/lo"
	"github.com/sonroyaalmerol/kumaplayer/internal/i18n"
	"github.com/sonroyaalmerol/kumaplayer/internal/media"
	"github.com/sonroyaalmerol/kumaplayer/internal/player"
	"github.com/sonroyaalmerol/kumaplayer/internal/utils"
)

const (
	colorPlaying = 0x006400
	colorPaused  = 0x8B0000
	barWidth     = 10
)

var ErrPageOutOfRange = errors.New("page out of range")

// NowPlaying is a snapshot of a player taken for rendering.
type NowPlaying struct {
	Track    media.Track
	Position time.Duration
	Paused   bool
	Repeat   player.RepeatMode
	Volume   int
}

// Snapshot reports false when nothing is loaded.
func Snapshot(p *player.Player) (NowPlaying, bool) {
	t, ok := p.GetCurrentTrack()
	if !ok {
		return NowPlaying{}, false
	}
	return NowPlaying{
		Track:    t,
		Position: p.GetPlaybackDuration(),
		Paused:   p.IsPaused(),
		Repeat:   p.GetRepeat(),
		Volume:   p.GetVolume(),
	}, true
}

// ProgressLine renders "▶️ ▬▬🔘▬ `[ 01:02/03:00 ]`".
func ProgressLine(np NowPlaying) string {
	pos := int(np.Position / time.Second)
	button := "▶️"
	if np.Paused {
		button = "⏸️"
	}
	elapsed := utils.FormatDuration(pos)
	progress := 0.0
	if np.Track.Duration > 0 {
		progress = float64(pos) / float64(np.Track.Duration)
		elapsed += "/" + utils.FormatDuration(np.Track.Duration)
	}
	line := fmt.Sprintf("%s %s `[ %s ]`", button, ProgressBar(barWidth, progress), elapsed)
	if np.Repeat == player.RepeatTrack {
		line += " 🔂"
	}
	return line
}

func PlayingEmbed(tr *i18n.Translations, np NowPlaying) *discordgo.MessageEmbed {
	title := tr.Get("queue.currentTrack")
	color := colorPlaying
	if np.Paused {
		title = tr.Get("queue.paused")
		color = colorPaused
	}
	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: fmt.Sprintf("**%s**\n\n%s", utils.TrackToMarkdown(np.Track, true), ProgressLine(np)),
		Color:       color,
		Footer:      footer(np.Track),
	}
	if np.Track.ThumbnailURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: np.Track.ThumbnailURL}
	}
	return embed
}

// Pages is the number of pages needed for n items, at least one.
func Pages(n, pageSize int) int {
	if pageSize <= 0 {
		return 1
	}
	return max(1, (n+pageSize-1)/pageSize)
}

// Page returns the 1-based page of items.
func Page[T any](items []T, page, pageSize int) ([]T, error) {
	if page < 1 || page > Pages(len(items), pageSize) {
		return nil, ErrPageOutOfRange
	}
	start := (page - 1) * pageSize
	return items[start:min(start+pageSize, len(items))], nil
}

// QueueEmbed lists one page of queue below the current track. A nil np
// renders the queue alone.
func QueueEmbed(tr *i18n.Translations, np *NowPlaying, queue []media.Track, page, pageSize int) (*discordgo.MessageEmbed, error) {
	items, err := Page(queue, page, pageSize)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	if np != nil {
		fmt.Fprintf(&b, "**%s**\n%s\n\n", utils.TrackToMarkdown(np.Track, true), ProgressLine(*np))
	}
	if len(items) == 0 {
		b.WriteString(tr.Get("queue.empty"))
	} else {
		fmt.Fprintf(&b, "**%s:**\n", tr.Get("queue.upNext"))
		begin := (page - 1) * pageSize
		for i, t := range items {
			fmt.Fprintf(&b, "`%d.` %s\n", begin+i+1, utils.TrackToMarkdown(t, true))
		}
	}

	total := lo.SumBy(queue, func(t media.Track) int { return t.Duration })
	embed := &discordgo.MessageEmbed{
		Title:       tr.Get("queue.currentTrack"),
		Description: b.String(),
		Color:       colorPlaying,
		Fields: []*discordgo.MessageEmbedField{
			{Name: tr.Get("queue.totalLength"), Value: totalLength(total), Inline: true},
			{
				Name:   "#",
				Value:  tr.Get("queue.page", "page", strconv.Itoa(page), "pages", strconv.Itoa(Pages(len(queue), pageSize))),
				Inline: true,
			},
		},
	}
	if np != nil {
		embed.Footer = footer(np.Track)
		if np.Track.ThumbnailURL != "" {
			embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: np.Track.ThumbnailURL}
		}
	}
	return embed, nil
}

func footer(t media.Track) *discordgo.MessageEmbedFooter {
	text := "Source: " + t.Source
	if t.Playlist != nil {
		text += " (" + t.Playlist.Title + ")"
	}
	return &discordgo.MessageEmbedFooter{Text: text}
}

func totalLength(sec int) string {
	if sec <= 0 {
		return "-"
	}
	return utils.FormatDuration(sec)
}
