package stream

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/kumaplayer/internal/audio"
	"github.com/sonroyaalmerol/kumaplayer/internal/voice"
)

var discard = slog.New(slog.DiscardHandler)

// testResource is a resource whose packets are already encoded. With eos
// unset the sender blocks after the last packet as if ffmpeg were slow.
func testResource(packets int, eos bool) *resource {
	buf := audio.NewBuffer(packets + 1)
	for i := range packets {
		buf.Push([]byte{byte(i)}, int64(i))
	}
	if eos {
		buf.MarkEOS()
	}
	done := make(chan struct{})
	close(done)
	return &resource{buf: buf, cancel: func() {}, done: done, log: discard}
}

func readyConn(queue int) *connection {
	return &connection{
		guildID: "g1",
		log:     discard,
		status:  voice.Ready,
		vc:      &discordgo.VoiceConnection{Ready: true, OpusSend: make(chan []byte, queue)},
	}
}

func watch(p *audioPlayer) <-chan voice.State {
	ch := make(chan voice.State, 64)
	p.OnStateChange(func(_, next voice.State) { ch <- next })
	return ch
}

func expectStatus(t *testing.T, ch <-chan voice.State, want voice.Status) voice.State {
	t.Helper()
	select {
	case s := <-ch:
		if s.Status != want {
			t.Fatalf("status = %s, want %s", s.Status, want)
		}
		return s
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", want)
	}
	return voice.State{}
}

func TestAudioPlayerPlaysResourceToIdle(t *testing.T) {
	p := newAudioPlayer(discard)
	c := readyConn(8)
	p.subscribe(c)
	states := watch(p)

	r := testResource(3, true)
	p.Play(r)

	if s := expectStatus(t, states, voice.Buffering); s.Resource != r {
		t.Fatalf("buffering resource = %v", s.Resource)
	}
	expectStatus(t, states, voice.Playing)
	if s := expectStatus(t, states, voice.Idle); s.Resource != nil {
		t.Fatalf("idle state still holds %v", s.Resource)
	}

	if got := len(c.vc.OpusSend); got != 3 {
		t.Fatalf("sent %d packets, want 3", got)
	}
	for i := range 3 {
		if pkt := <-c.vc.OpusSend; len(pkt) != 1 || pkt[0] != byte(i) {
			t.Fatalf("packet %d = %v", i, pkt)
		}
	}
	if d := r.PlaybackDuration(); d != 60*time.Millisecond {
		t.Fatalf("playback duration = %v", d)
	}
	if p.Stop() {
		t.Fatal("Stop on an idle player reported a change")
	}
}

func TestAudioPlayerEmptyResourceGoesIdle(t *testing.T) {
	p := newAudioPlayer(discard)
	p.subscribe(readyConn(1))
	states := watch(p)

	p.Play(testResource(0, true))
	expectStatus(t, states, voice.Buffering)
	expectStatus(t, states, voice.Idle)
}

func TestAudioPlayerAutoPausesWithoutListener(t *testing.T) {
	p := newAudioPlayer(discard)
	states := watch(p)

	r := testResource(2, true)
	p.Play(r)
	expectStatus(t, states, voice.Buffering)
	expectStatus(t, states, voice.Playing)
	expectStatus(t, states, voice.AutoPaused)
	if r.PlaybackDuration() != 0 {
		t.Fatal("packets counted as sent without a connection")
	}

	c := readyConn(4)
	p.subscribe(c)
	expectStatus(t, states, voice.Playing)
	expectStatus(t, states, voice.Idle)
	if got := len(c.vc.OpusSend); got != 2 {
		t.Fatalf("sent %d packets after resuming, want 2", got)
	}
}

func TestAudioPlayerNotReadyConnectionIsSkipped(t *testing.T) {
	p := newAudioPlayer(discard)
	c := readyConn(4)
	c.vc.Ready = false
	p.subscribe(c)
	states := watch(p)

	p.Play(testResource(1, false))
	expectStatus(t, states, voice.Buffering)
	expectStatus(t, states, voice.Playing)
	expectStatus(t, states, voice.AutoPaused)
	if len(c.vc.OpusSend) != 0 {
		t.Fatal("sent to a connection that is not ready")
	}
	p.Stop()
	expectStatus(t, states, voice.Idle)
}

func TestAudioPlayerPauseUnpauseStop(t *testing.T) {
	p := newAudioPlayer(discard)
	p.subscribe(readyConn(8))
	states := watch(p)

	if p.Pause() || p.Unpause() || p.Stop() {
		t.Fatal("idle player accepted a transition")
	}

	p.Play(testResource(2, false))
	expectStatus(t, states, voice.Buffering)
	expectStatus(t, states, voice.Playing)

	if !p.Pause() {
		t.Fatal("Pause while playing failed")
	}
	expectStatus(t, states, voice.Paused)
	if p.Pause() {
		t.Fatal("Pause while paused reported a change")
	}

	if !p.Unpause() {
		t.Fatal("Unpause while paused failed")
	}
	expectStatus(t, states, voice.Playing)
	if p.Unpause() {
		t.Fatal("Unpause while playing reported a change")
	}

	if !p.Stop() {
		t.Fatal("Stop while playing failed")
	}
	expectStatus(t, states, voice.Idle)
	if p.Stop() {
		t.Fatal("second Stop reported a change")
	}
}

func TestAudioPlayerPlayReplacesSession(t *testing.T) {
	p := newAudioPlayer(discard)
	p.subscribe(readyConn(8))
	states := watch(p)

	first := testResource(1, false)
	p.Play(first)
	expectStatus(t, states, voice.Buffering)
	expectStatus(t, states, voice.Playing)

	p.mu.Lock()
	old := p.session
	p.mu.Unlock()

	second := testResource(0, false)
	p.Play(second)
	if s := expectStatus(t, states, voice.Buffering); s.Resource != second {
		t.Fatalf("buffering resource = %v, want the replacement", s.Resource)
	}
	if p.transition(old, []voice.Status{voice.Buffering, voice.Playing}, voice.Idle) {
		t.Fatal("replaced session still drives the player")
	}

	select {
	case <-old.done:
	case <-time.After(2 * time.Second):
		t.Fatal("replaced send loop did not exit")
	}
	if p.State().Resource != second {
		t.Fatal("replaced session changed the state")
	}
	p.Stop()
	expectStatus(t, states, voice.Idle)
}

func TestConnectionSendDropsWhenQueueIsFull(t *testing.T) {
	c := readyConn(1)
	ctx := context.Background()

	if !c.send(ctx, []byte{1}) {
		t.Fatal("send into an empty queue failed")
	}
	start := time.Now()
	if c.send(ctx, []byte{2}) {
		t.Fatal("send into a full queue succeeded")
	}
	if time.Since(start) < sendTimeout {
		t.Fatal("packet dropped before the send timeout")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if c.send(cancelled, []byte{3}) {
		t.Fatal("send with a cancelled context succeeded")
	}

	c.vc = nil
	if c.ready() || c.send(ctx, []byte{4}) {
		t.Fatal("connection without voice reported ready")
	}
}
