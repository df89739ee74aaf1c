package player

import (
	"context"

	"github.com/samber/lo"
	"github.com/sonroyaalmerol/kumaplayer/internal/engine"
	"github.com/sonroyaalmerol/kumaplayer/internal/media"
)

const DefaultVolume = 100

type RepeatMode int

const (
	RepeatNone RepeatMode = iota
	RepeatTrack
)

func (m RepeatMode) String() string {
	if m == RepeatTrack {
		return "track"
	}
	return "none"
}

// VolumeResolver looks up the starting volume for a guild.
type VolumeResolver func(ctx context.Context, guildID string) (int, error)

// Options configure a player. Pointer fields distinguish "unset" from the
// zero value so per-guild overrides can be merged onto manager defaults.
type Options struct {
	Quality engine.Quality
	// InlineVolume enables runtime volume changes. Defaults to true.
	InlineVolume *bool
	// InitialVolume is used when InitialVolumeFunc is nil.
	InitialVolume     *int
	InitialVolumeFunc VolumeResolver
	// FileRoot sandboxes the file engine. Empty disables local files.
	FileRoot      string
	CustomEngines map[string]engine.Engine
	// AllowSwitchChannels lets play move an existing connection to another
	// channel. Defaults to true.
	AllowSwitchChannels *bool
	// StopOnEnd tears the connection down once the queue runs dry.
	// Defaults to true.
	StopOnEnd *bool
}

// Merge returns base with every field set in override applied on top.
// CustomEngines are merged key by key.
func Merge(base, override Options) Options {
	out := Options{
		Quality:             lo.CoalesceOrEmpty(override.Quality, base.Quality),
		InlineVolume:        lo.CoalesceOrEmpty(override.InlineVolume, base.InlineVolume),
		InitialVolume:       lo.CoalesceOrEmpty(override.InitialVolume, base.InitialVolume),
		InitialVolumeFunc:   base.InitialVolumeFunc,
		FileRoot:            lo.CoalesceOrEmpty(override.FileRoot, base.FileRoot),
		AllowSwitchChannels: lo.CoalesceOrEmpty(override.AllowSwitchChannels, base.AllowSwitchChannels),
		StopOnEnd:           lo.CoalesceOrEmpty(override.StopOnEnd, base.StopOnEnd),
	}
	if override.InitialVolumeFunc != nil {
		out.InitialVolumeFunc = override.InitialVolumeFunc
	}
	if len(base.CustomEngines) > 0 || len(override.CustomEngines) > 0 {
		out.CustomEngines = lo.Assign(base.CustomEngines, override.CustomEngines)
	}
	return out
}

func (o Options) inlineVolume() bool        { return lo.FromPtrOr(o.InlineVolume, true) }
func (o Options) allowSwitchChannels() bool { return lo.FromPtrOr(o.AllowSwitchChannels, true) }
func (o Options) stopOnEnd() bool           { return lo.FromPtrOr(o.StopOnEnd, true) }

func (o Options) engineConfig() engine.Config {
	return engine.Config{Quality: o.Quality, FileRoot: o.FileRoot}
}

// PlayOptions describe one play or add call.
type PlayOptions struct {
	ChannelID string
	Tracks    []media.Track
	// AddSkippedTrackToQueue puts an interrupted track back at the queue head,
	// resuming where it stopped.
	AddSkippedTrackToQueue bool
}

type SearchOptions struct {
	Limit int
	// Source forces an engine instead of detecting one from the query.
	Source string
}
