// Package voice describes the audio transport a player drives. The real
// implementation lives in the stream package; tests use voicetest.
package voice

import (
	"context"
	"time"

	"github.com/sonroyaalmerol/kumaplayer/internal/media"
)

// Status is the state an AudioPlayer reports.
type Status int

const (
	Idle Status = iota
	Buffering
	Playing
	Paused
	// AutoPaused means playback is held because no connection is listening.
	AutoPaused
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Buffering:
		return "buffering"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case AutoPaused:
		return "autopaused"
	}
	return "unknown"
}

type ConnectionStatus int

const (
	Signalling ConnectionStatus = iota
	Connecting
	Ready
	Disconnected
	Destroyed
)

func (s ConnectionStatus) String() string {
	switch s {
	case Signalling:
		return "signalling"
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	case Disconnected:
		return "disconnected"
	case Destroyed:
		return "destroyed"
	}
	return "unknown"
}

// State is one audio player snapshot. Resource is nil while Idle.
type State struct {
	Status   Status
	Resource Resource
}

type StateListener func(old, new State)

// Metadata travels with a resource so state changes can be traced back to
// the track and channel that produced them.
type Metadata struct {
	Track     media.Track
	ChannelID string
}

type Resource interface {
	Metadata() Metadata
	// HasVolume reports whether inline volume is available.
	HasVolume() bool
	// SetVolume sets the gain, 1.0 being unchanged.
	SetVolume(gain float64)
	PlaybackDuration() time.Duration
	Close() error
}

type ResourceOptions struct {
	InlineVolume bool
	Metadata     Metadata
}

type AudioPlayer interface {
	Play(r Resource)
	// Pause returns false when nothing was playing.
	Pause() bool
	Unpause() bool
	// Stop returns false when the player was already idle.
	Stop() bool
	State() State
	OnStateChange(fn StateListener)
}

type Subscription interface {
	Unsubscribe()
}

type ConnectionListener func(status ConnectionStatus)

type Connection interface {
	GuildID() string
	ChannelID() string
	Status() ConnectionStatus
	Subscribe(p AudioPlayer) Subscription
	OnStatus(fn ConnectionListener)
	RemoveAllListeners()
	// WaitFor blocks until the connection enters status or ctx ends.
	WaitFor(ctx context.Context, status ConnectionStatus) error
	Destroy()
}

// Adapter creates players and resources and manages one connection per guild.
type Adapter interface {
	NewAudioPlayer() AudioPlayer
	NewResource(ctx context.Context, s *media.TrackStream, opts ResourceOptions) (Resource, error)
	// Join connects to channelID, reusing or moving the guild's connection.
	Join(ctx context.Context, guildID, channelID string) (Connection, error)
	// Connection returns the live connection for guildID, if any.
	Connection(guildID string) (Connection, bool)
}
