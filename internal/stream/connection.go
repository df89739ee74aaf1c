package stream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/kumaplayer/internal/voice"
)

// connection wraps a discordgo voice connection and derives a status from
// gateway voice state updates for the bot user.
type connection struct {
	adapter *Adapter
	guildID string
	log     *slog.Logger

	mu        sync.Mutex
	vc        *discordgo.VoiceConnection
	channelID string
	status    voice.ConnectionStatus
	player    *audioPlayer
	listeners []voice.ConnectionListener
	waiters   []chan voice.ConnectionStatus
	// joining is closed once the initial voice join finished either way.
	joining chan struct{}
}

type subscription struct {
	conn   *connection
	player *audioPlayer
}

func (s *subscription) Unsubscribe() {
	s.player.unsubscribe(s.conn)
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	if s.conn.player == s.player {
		s.conn.player = nil
	}
}

func (c *connection) GuildID() string { return c.guildID }

func (c *connection) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channelID
}

func (c *connection) Status() voice.ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Subscribe routes p's audio to this connection. A previous player is
// detached.
func (c *connection) Subscribe(p voice.AudioPlayer) voice.Subscription {
	ap, ok := p.(*audioPlayer)
	if !ok {
		c.log.Error("unsupported audio player type")
		return &subscription{conn: c, player: newAudioPlayer(c.log)}
	}

	c.mu.Lock()
	prev := c.player
	c.player = ap
	c.mu.Unlock()

	if prev != nil && prev != ap {
		prev.unsubscribe(c)
	}
	ap.subscribe(c)
	return &subscription{conn: c, player: ap}
}

func (c *connection) OnStatus(fn voice.ConnectionListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *connection) RemoveAllListeners() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = nil
}

func (c *connection) setStatus(status voice.ConnectionStatus) {
	c.mu.Lock()
	if c.status == status || c.status == voice.Destroyed {
		c.mu.Unlock()
		return
	}
	c.status = status
	ls := append([]voice.ConnectionListener(nil), c.listeners...)
	ws := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	c.log.Debug("voice connection status", "status", status)
	for _, w := range ws {
		w <- status
	}
	for _, fn := range ls {
		fn(status)
	}
}

func (c *connection) WaitFor(ctx context.Context, status voice.ConnectionStatus) error {
	for {
		c.mu.Lock()
		if c.status == status {
			c.mu.Unlock()
			return nil
		}
		w := make(chan voice.ConnectionStatus, 1)
		c.waiters = append(c.waiters, w)
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case s := <-w:
			if s == status {
				return nil
			}
		}
	}
}

// Destroy leaves the channel and makes the connection unusable.
func (c *connection) Destroy() {
	c.mu.Lock()
	if c.status == voice.Destroyed {
		c.mu.Unlock()
		return
	}
	vc := c.vc
	c.vc = nil
	c.mu.Unlock()

	c.adapter.forget(c)
	safeDisconnect(vc, c.log)
	c.setStatus(voice.Destroyed)
}

// onVoiceState handles a gateway voice state update for the bot user.
func (c *connection) onVoiceState(channelID string) {
	c.mu.Lock()
	status := c.status
	if channelID != "" {
		c.channelID = channelID
	}
	c.mu.Unlock()

	switch {
	case channelID == "" && status != voice.Destroyed:
		c.setStatus(voice.Disconnected)
	case channelID != "" && status == voice.Disconnected:
		c.setStatus(voice.Connecting)
		go c.awaitReady()
	}
}

// awaitReady promotes the connection to Ready once discordgo finished its
// own reconnect.
func (c *connection) awaitReady() {
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if c.ready() {
			c.setStatus(voice.Ready)
			return
		}
		if c.Status() != voice.Connecting {
			return
		}
		time.Sleep(readyBackoff)
	}
}

func (c *connection) ready() bool {
	c.mu.Lock()
	vc := c.vc
	c.mu.Unlock()
	if vc == nil {
		return false
	}
	vc.RLock()
	defer vc.RUnlock()
	return vc.Ready && vc.OpusSend != nil
}

func (c *connection) speaking(on bool) {
	c.mu.Lock()
	vc := c.vc
	c.mu.Unlock()
	if vc != nil {
		_ = vc.Speaking(on)
	}
}

// send hands one Opus packet to discordgo, which paces them at 20ms.
func (c *connection) send(ctx context.Context, pkt []byte) bool {
	c.mu.Lock()
	vc := c.vc
	c.mu.Unlock()
	if vc == nil {
		return false
	}

	timer := time.NewTimer(sendTimeout)
	defer timer.Stop()
	select {
	case vc.OpusSend <- pkt:
		return true
	case <-ctx.Done():
	case <-timer.C:
	}
	return false
}

// safeDisconnect leaves voice without letting a discordgo panic on half
// closed connections take the process down.
func safeDisconnect(vc *discordgo.VoiceConnection, log *slog.Logger) {
	if vc == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("voice disconnect panic recovered", "panic", r)
		}
	}()

	if vc.OpusSend == nil {
		vc.OpusSend = make(chan []byte, 2)
	}
	if vc.OpusRecv == nil {
		vc.OpusRecv = make(chan *discordgo.Packet, 2)
	}
	_ = vc.Speaking(false)
	if err := vc.Disconnect(); err != nil {
		log.Debug("voice disconnect", "err", err)
	}
}
