// Package voicetest provides an in-memory voice.Adapter. State changes are
// delivered synchronously on the calling goroutine.
package voicetest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sonroyaalmerol/kumaplayer/internal/media"
	"github.com/sonroyaalmerol/kumaplayer/internal/voice"
)

type Resource struct {
	mu      sync.Mutex
	meta    voice.Metadata
	inline  bool
	gain    float64
	closed  bool
	Elapsed time.Duration
}

func (r *Resource) Metadata() voice.Metadata { return r.meta }
func (r *Resource) HasVolume() bool          { return r.inline }

func (r *Resource) SetVolume(g float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gain = g
}

func (r *Resource) Gain() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gain
}

func (r *Resource) PlaybackDuration() time.Duration { return r.Elapsed }

func (r *Resource) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *Resource) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// AudioPlayer moves straight from Buffering to Playing when AutoStart is set.
type AudioPlayer struct {
	mu        sync.Mutex
	state     voice.State
	listeners []voice.StateListener
	AutoStart bool
	Played    []*Resource
}

func NewAudioPlayer() *AudioPlayer {
	return &AudioPlayer{AutoStart: true}
}

func (p *AudioPlayer) transition(next voice.State) {
	p.mu.Lock()
	old := p.state
	p.state = next
	ls := append([]voice.StateListener(nil), p.listeners...)
	p.mu.Unlock()

	for _, fn := range ls {
		fn(old, next)
	}
}

func (p *AudioPlayer) Play(r voice.Resource) {
	p.mu.Lock()
	if fr, ok := r.(*Resource); ok {
		p.Played = append(p.Played, fr)
	}
	auto := p.AutoStart
	p.mu.Unlock()

	p.transition(voice.State{Status: voice.Buffering, Resource: r})
	if auto {
		p.Start()
	}
}

// Start promotes a buffering resource to Playing.
func (p *AudioPlayer) Start() {
	st := p.State()
	if st.Status != voice.Buffering {
		return
	}
	p.transition(voice.State{Status: voice.Playing, Resource: st.Resource})
}

func (p *AudioPlayer) Pause() bool {
	st := p.State()
	if st.Status != voice.Playing {
		return false
	}
	p.transition(voice.State{Status: voice.Paused, Resource: st.Resource})
	return true
}

func (p *AudioPlayer) Unpause() bool {
	st := p.State()
	if st.Status != voice.Paused {
		return false
	}
	p.transition(voice.State{Status: voice.Playing, Resource: st.Resource})
	return true
}

func (p *AudioPlayer) Stop() bool {
	if p.State().Status == voice.Idle {
		return false
	}
	p.transition(voice.State{Status: voice.Idle})
	return true
}

// Finish simulates the current resource running out.
func (p *AudioPlayer) Finish() { p.Stop() }

func (p *AudioPlayer) State() voice.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *AudioPlayer) OnStateChange(fn voice.StateListener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

type subscription struct {
	c *Connection
}

func (s subscription) Unsubscribe() {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	s.c.player = nil
}

type Connection struct {
	mu        sync.Mutex
	adapter   *Adapter
	guildID   string
	channelID string
	status    voice.ConnectionStatus
	player    voice.AudioPlayer
	listeners []voice.ConnectionListener
	waiters   []chan voice.ConnectionStatus
}

func (c *Connection) GuildID() string { return c.guildID }

func (c *Connection) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channelID
}

func (c *Connection) Status() voice.ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Connection) Subscribed() voice.AudioPlayer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.player
}

func (c *Connection) Subscribe(p voice.AudioPlayer) voice.Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.player = p
	return subscription{c: c}
}

func (c *Connection) OnStatus(fn voice.ConnectionListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Connection) RemoveAllListeners() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = nil
}

// SetStatus moves the connection to status and notifies listeners and waiters.
func (c *Connection) SetStatus(status voice.ConnectionStatus) {
	c.mu.Lock()
	c.status = status
	ls := append([]voice.ConnectionListener(nil), c.listeners...)
	ws := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	for _, w := range ws {
		w <- status
	}
	for _, fn := range ls {
		fn(status)
	}
}

func (c *Connection) WaitFor(ctx context.Context, status voice.ConnectionStatus) error {
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

func (c *Connection) Destroy() {
	if c.Status() == voice.Destroyed {
		return
	}
	c.adapter.forget(c)
	c.SetStatus(voice.Destroyed)
}

type Adapter struct {
	mu          sync.Mutex
	conns       map[string]*Connection
	Players     []*AudioPlayer
	Joins       []string
	Streams     []*media.TrackStream
	ResourceErr error
	JoinErr     error
}

func NewAdapter() *Adapter {
	return &Adapter{conns: make(map[string]*Connection)}
}

func (a *Adapter) NewAudioPlayer() voice.AudioPlayer {
	p := NewAudioPlayer()
	a.mu.Lock()
	a.Players = append(a.Players, p)
	a.mu.Unlock()
	return p
}

func (a *Adapter) NewResource(_ context.Context, s *media.TrackStream, opts voice.ResourceOptions) (voice.Resource, error) {
	if s == nil {
		return nil, errors.New("nil stream")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ResourceErr != nil {
		return nil, a.ResourceErr
	}
	a.Streams = append(a.Streams, s)
	return &Resource{meta: opts.Metadata, inline: opts.InlineVolume, gain: 1}, nil
}

func (a *Adapter) Join(_ context.Context, guildID, channelID string) (voice.Connection, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.JoinErr != nil {
		return nil, a.JoinErr
	}
	a.Joins = append(a.Joins, channelID)
	if c, ok := a.conns[guildID]; ok {
		c.mu.Lock()
		c.channelID = channelID
		c.mu.Unlock()
		return c, nil
	}
	c := &Connection{adapter: a, guildID: guildID, channelID: channelID, status: voice.Ready}
	a.conns[guildID] = c
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

// Conn is Connection with the concrete type, for driving status changes.
func (a *Adapter) Conn(guildID string) *Connection {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conns[guildID]
}

// Player returns the most recently created audio player.
func (a *Adapter) Player() *AudioPlayer {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.Players) == 0 {
		return nil
	}
	return a.Players[len(a.Players)-1]
}

func (a *Adapter) forget(c *Connection) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conns[c.guildID] == c {
		delete(a.conns, c.guildID)
	}
}
