package stream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sonroyaalmerol/kumaplayer/internal/voice"
)

const (
	// sendTimeout is how long a packet may wait for the voice connection
	// before it is dropped.
	sendTimeout  = 200 * time.Millisecond
	readyBackoff = 100 * time.Millisecond
)

// audioPlayer sends one resource at a time to every subscribed connection.
type audioPlayer struct {
	mu        sync.Mutex
	state     voice.State
	listeners []voice.StateListener
	conns     map[*connection]struct{}
	session   *playSession
	log       *slog.Logger
}

type playSession struct {
	res    *resource
	ctx    context.Context
	cancel context.CancelFunc
	resume chan struct{}
	done   chan struct{}
}

func newAudioPlayer(log *slog.Logger) *audioPlayer {
	return &audioPlayer{conns: make(map[*connection]struct{}), log: log}
}

func (p *audioPlayer) OnStateChange(fn voice.StateListener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

func (p *audioPlayer) State() voice.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// setLocked changes state and returns the notification to run once mu is
// released.
func (p *audioPlayer) setLocked(next voice.State) func() {
	old := p.state
	p.state = next
	ls := append([]voice.StateListener(nil), p.listeners...)
	return func() {
		for _, fn := range ls {
			fn(old, next)
		}
	}
}

// Play replaces whatever is playing with r. The replaced resource is closed.
func (p *audioPlayer) Play(r voice.Resource) {
	res, ok := r.(*resource)
	if !ok {
		p.log.Error("unsupported resource type")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess := &playSession{
		res:    res,
		ctx:    ctx,
		cancel: cancel,
		resume: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	p.mu.Lock()
	old := p.session
	p.session = sess
	notify := p.setLocked(voice.State{Status: voice.Buffering, Resource: res})
	p.mu.Unlock()

	if old != nil {
		old.stop()
	}
	notify()
	go p.run(sess)
}

// stop does not wait for the send loop, which may be the caller.
func (s *playSession) stop() {
	s.cancel()
	go func() {
		<-s.done
		_ = s.res.Close()
	}()
}

func (p *audioPlayer) Pause() bool {
	p.mu.Lock()
	if p.state.Status != voice.Playing && p.state.Status != voice.AutoPaused {
		p.mu.Unlock()
		return false
	}
	notify := p.setLocked(voice.State{Status: voice.Paused, Resource: p.state.Resource})
	p.mu.Unlock()
	notify()
	return true
}

func (p *audioPlayer) Unpause() bool {
	p.mu.Lock()
	if p.state.Status != voice.Paused || p.session == nil {
		p.mu.Unlock()
		return false
	}
	notify := p.setLocked(voice.State{Status: voice.Playing, Resource: p.state.Resource})
	select {
	case p.session.resume <- struct{}{}:
	default:
	}
	p.mu.Unlock()
	notify()
	return true
}

func (p *audioPlayer) Stop() bool {
	p.mu.Lock()
	if p.state.Status == voice.Idle {
		p.mu.Unlock()
		return false
	}
	sess := p.session
	p.session = nil
	notify := p.setLocked(voice.State{Status: voice.Idle})
	p.mu.Unlock()

	if sess != nil {
		sess.stop()
	}
	notify()
	return true
}

// transition applies next only while sess is still the active session.
func (p *audioPlayer) transition(sess *playSession, from []voice.Status, next voice.Status) bool {
	p.mu.Lock()
	if p.session != sess || !hasStatus(from, p.state.Status) {
		p.mu.Unlock()
		return false
	}
	var res voice.Resource = sess.res
	if next == voice.Idle {
		res = nil
		p.session = nil
	}
	notify := p.setLocked(voice.State{Status: next, Resource: res})
	p.mu.Unlock()
	notify()
	return true
}

func hasStatus(list []voice.Status, s voice.Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (p *audioPlayer) subscribe(c *connection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conns[c] = struct{}{}
}

func (p *audioPlayer) unsubscribe(c *connection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.conns, c)
}

func (p *audioPlayer) readyConns() []*connection {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*connection
	for c := range p.conns {
		if c.ready() {
			out = append(out, c)
		}
	}
	return out
}

func (p *audioPlayer) run(sess *playSession) {
	defer close(sess.done)
	ctx := sess.ctx

	pkt, ok := sess.res.next(ctx)
	if !ok {
		if ctx.Err() == nil {
			p.log.Warn("resource produced no audio")
			p.transition(sess, []voice.Status{voice.Buffering}, voice.Idle)
			_ = sess.res.Close()
		}
		return
	}
	p.transition(sess, []voice.Status{voice.Buffering}, voice.Playing)

	speaking := map[*connection]bool{}
	defer func() {
		for c := range speaking {
			c.speaking(false)
		}
	}()

	for {
		switch p.State().Status {
		case voice.Paused:
			select {
			case <-ctx.Done():
				return
			case <-sess.resume:
			}
			continue
		}

		conns := p.readyConns()
		if len(conns) == 0 {
			p.transition(sess, []voice.Status{voice.Playing}, voice.AutoPaused)
			select {
			case <-ctx.Done():
				return
			case <-time.After(readyBackoff):
			}
			continue
		}
		p.transition(sess, []voice.Status{voice.AutoPaused}, voice.Playing)

		for _, c := range conns {
			if !speaking[c] {
				c.speaking(true)
				speaking[c] = true
			}
			if !c.send(ctx, pkt) && ctx.Err() == nil {
				p.log.Debug("dropped packet", "guildID", c.guildID)
			}
		}
		sess.res.markSent()

		if pkt, ok = sess.res.next(ctx); !ok {
			break
		}
	}

	if ctx.Err() != nil {
		return
	}
	if p.transition(sess, []voice.Status{voice.Playing, voice.AutoPaused, voice.Paused}, voice.Idle) {
		_ = sess.res.Close()
	}
}
