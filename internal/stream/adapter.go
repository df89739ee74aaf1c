// Package stream plays tracks into Discord voice channels: ffmpeg decoding
// through go-astiav, Opus encoding and discordgo voice connections.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/asticode/go-astiav"
	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/kumaplayer/internal/media"
	"github.com/sonroyaalmerol/kumaplayer/internal/voice"
)

// Adapter implements voice.Adapter on top of a discordgo session.
type Adapter struct {
	session *discordgo.Session
	log     *slog.Logger

	mu    sync.Mutex
	conns map[string]*connection
}

func NewAdapter(s *discordgo.Session, log *slog.Logger) *Adapter {
	astiav.SetLogLevel(astiav.LogLevelError)
	a := &Adapter{session: s, log: log, conns: make(map[string]*connection)}
	s.AddHandler(a.onVoiceStateUpdate)
	return a
}

func (a *Adapter) NewAudioPlayer() voice.AudioPlayer {
	return newAudioPlayer(a.log)
}

func (a *Adapter) NewResource(ctx context.Context, s *media.TrackStream, opts voice.ResourceOptions) (voice.Resource, error) {
	if s == nil {
		return nil, fmt.Errorf("nil stream")
	}
	return newResource(ctx, s, opts, a.log)
}

// Join connects the bot to channelID, moving an existing connection of the
// guild if there is one. A join still in flight for another channel is
// waited for first.
func (a *Adapter) Join(ctx context.Context, guildID, channelID string) (voice.Connection, error) {
	var c *connection
	for {
		var (
			joining <-chan struct{}
			fresh   bool
		)
		c, joining, fresh = a.claim(guildID, channelID)
		if joining != nil {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-joining:
			}
			continue
		}
		if fresh {
			break
		}
		if c.ChannelID() == channelID {
			return c, nil
		}
		c.mu.Lock()
		vc := c.vc
		c.mu.Unlock()
		if vc == nil {
			continue
		}
		if err := vc.ChangeChannel(channelID, false, true); err != nil {
			return nil, fmt.Errorf("move to voice channel %s: %w", channelID, err)
		}
		c.mu.Lock()
		c.channelID = channelID
		c.mu.Unlock()
		return c, nil
	}
	return a.connect(ctx, c)
}

// claim picks the connection Join works with. It returns the guild's live
// connection, or its joining channel while a join for another channel is in
// flight, or a newly registered connection with fresh set.
func (a *Adapter) claim(guildID, channelID string) (c *connection, joining <-chan struct{}, fresh bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if c := a.conns[guildID]; c != nil {
		c.mu.Lock()
		vc, cur, status, pending := c.vc, c.channelID, c.status, c.joining
		c.mu.Unlock()
		inFlight := pending != nil && !isClosed(pending)
		switch {
		case status == voice.Destroyed, vc == nil && !inFlight:
		case cur == channelID, vc != nil:
			return c, nil, false
		default:
			return c, pending, false
		}
	}

	c = &connection{
		adapter:   a,
		guildID:   guildID,
		channelID: channelID,
		status:    voice.Signalling,
		joining:   make(chan struct{}),
		log:       a.log.With("guildID", guildID),
	}
	a.conns[guildID] = c
	return c, nil, true
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// connect runs the gateway voice join for a freshly claimed connection.
func (a *Adapter) connect(ctx context.Context, c *connection) (voice.Connection, error) {
	guildID, channelID := c.guildID, c.ChannelID()
	// forget runs before joining closes so waiters never see the dead entry.
	defer close(c.joining)

	type joined struct {
		vc  *discordgo.VoiceConnection
		err error
	}
	ch := make(chan joined, 1)
	go func() {
		vc, err := a.session.ChannelVoiceJoin(guildID, channelID, false, true)
		ch <- joined{vc, err}
	}()

	var res joined
	select {
	case res = <-ch:
	case <-ctx.Done():
		go func() {
			if late := <-ch; late.vc != nil {
				safeDisconnect(late.vc, c.log)
			}
		}()
		a.forget(c)
		return nil, ctx.Err()
	}
	if res.err != nil {
		a.forget(c)
		return nil, fmt.Errorf("join voice channel %s: %w", channelID, res.err)
	}

	vc := res.vc
	if vc.OpusSend == nil {
		vc.OpusSend = make(chan []byte, 2)
	}
	if vc.OpusRecv == nil {
		vc.OpusRecv = make(chan *discordgo.Packet, 2)
	}
	c.mu.Lock()
	if c.status == voice.Destroyed {
		c.mu.Unlock()
		safeDisconnect(vc, c.log)
		return nil, fmt.Errorf("voice connection to %s destroyed while joining", channelID)
	}
	c.vc = vc
	c.mu.Unlock()
	c.setStatus(voice.Ready)
	return c, nil
}

func (a *Adapter) Connection(guildID string) (voice.Connection, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.conns[guildID]
	if !ok {
		return nil, false
	}
	return c, true
}

func (a *Adapter) forget(c *connection) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conns[c.guildID] == c {
		delete(a.conns, c.guildID)
	}
}

func (a *Adapter) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v.VoiceState == nil || s.State == nil || s.State.User == nil || v.UserID != s.State.User.ID {
		return
	}
	a.mu.Lock()
	c := a.conns[v.GuildID]
	a.mu.Unlock()
	if c != nil {
		c.onVoiceState(v.ChannelID)
	}
}
