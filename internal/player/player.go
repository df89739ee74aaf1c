package player

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/sonroyaalmerol/kumaplayer/internal/engine"
	"github.com/sonroyaalmerol/kumaplayer/internal/media"
	"github.com/sonroyaalmerol/kumaplayer/internal/utils"
	"github.com/sonroyaalmerol/kumaplayer/internal/voice"
)

// reconnectWait bounds how long a disconnected connection may take to start
// signalling or connecting again before it is destroyed.
const reconnectWait = 5 * time.Second

type nowPlaying struct {
	track     media.Track
	channelID string
	resource  voice.Resource
}

// Player owns the queue and playback of a single guild.
//
// No network or voice call is made while mu is held. Every play bumps gen
// before its first blocking step and commits only if gen is unchanged, so a
// stream that resolves after a newer play, a stop or a teardown is dropped.
type Player struct {
	guildID string
	opts    Options
	router  *engine.Router
	adapter voice.Adapter
	audio   voice.AudioPlayer
	log     *slog.Logger

	reconnectWait time.Duration

	// playMu orders commit plus audio.Play between concurrent plays, so the
	// slot always names the resource the audio player got last.
	playMu sync.Mutex

	mu      sync.Mutex
	queue   []media.Track
	volume  *int
	repeat  RepeatMode
	current *nowPlaying
	sub     voice.Subscription
	gen     uint64

	events
}

// Deps are the collaborators shared by every player of a manager.
type Deps struct {
	Adapter voice.Adapter
	// Engines are the built-in engines in detection order.
	Engines []engine.Engine
	Logger  *slog.Logger
}

func New(guildID string, opts Options, deps Deps) *Player {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	p := &Player{
		guildID:       guildID,
		opts:          opts,
		router:        engine.NewRouter(deps.Engines, opts.CustomEngines),
		adapter:       deps.Adapter,
		audio:         deps.Adapter.NewAudioPlayer(),
		log:           log.With("guildID", guildID),
		reconnectWait: reconnectWait,
	}
	p.audio.OnStateChange(p.handleStateChange)
	return p
}

func (p *Player) GuildID() string  { return p.guildID }
func (p *Player) Options() Options { return p.opts }

// trackStarted is the Buffering to Playing edge. Resuming from a pause or an
// auto pause does not count.
func trackStarted(old, cur voice.Status) bool {
	return old == voice.Buffering && cur == voice.Playing
}

// trackEnded is true when audio stops for good: Playing into anything but a
// pause, Paused into Buffering, or any drop to Idle.
func trackEnded(old, cur voice.Status) bool {
	switch {
	case old == voice.Playing:
		return cur != voice.Playing && cur != voice.Paused && cur != voice.AutoPaused
	case old == voice.Paused && cur == voice.Buffering:
		return true
	}
	return old != voice.Idle && cur == voice.Idle
}

func (p *Player) handleStateChange(old, cur voice.State) {
	if trackStarted(old.Status, cur.Status) {
		if cur.Resource != nil {
			p.emitTrackStart(cur.Resource.Metadata().Track)
		}
		return
	}
	if !trackEnded(old.Status, cur.Status) {
		return
	}
	if old.Status == voice.Playing || old.Status == voice.Paused {
		p.emitTrackEnd()
	}
	// Playing into Buffering means a new resource replaced this one.
	if cur.Status == voice.Idle {
		p.advance()
	}
}

// advance starts the next track after the current one ran out. A track that
// fails to start is skipped; the slot is only kept for one that plays.
func (p *Player) advance() {
	p.mu.Lock()
	cur := p.current
	if cur == nil {
		p.mu.Unlock()
		return
	}
	for {
		next, ok := p.nextTrackLocked()
		if !ok {
			p.current = nil
		}
		gen := p.gen
		p.mu.Unlock()

		if !ok {
			p.log.Debug("queue finished")
			if p.opts.stopOnEnd() {
				p.Stop()
			}
			return
		}

		err := p.Play(context.Background(), PlayOptions{ChannelID: cur.channelID, Tracks: []media.Track{next}})
		if err == nil {
			return
		}
		p.log.Warn("failed to start next track", "track", next.Title, "err", err)

		p.mu.Lock()
		// Play bumps gen once; anything more means a newer play or teardown
		// owns the slot now.
		if p.gen != gen+1 {
			p.mu.Unlock()
			return
		}
		p.current = nil
	}
}

func (p *Player) nextTrackLocked() (media.Track, bool) {
	if p.repeat == RepeatTrack && p.current != nil {
		return p.current.track.FromStart(), true
	}
	if len(p.queue) == 0 {
		return media.Track{}, false
	}
	next := p.queue[0]
	p.queue = p.queue[1:]
	return next, true
}

func (p *Player) fail(err *Error) error {
	p.log.Warn("player error", "code", err.Code, "err", err)
	p.emitError(err)
	return err
}

// Play starts the first of opts.Tracks now, or the queue head when Tracks is
// empty. The remaining tracks go to the front of the queue in order.
func (p *Player) Play(ctx context.Context, opts PlayOptions) error {
	p.mu.Lock()
	var track media.Track
	switch {
	case len(opts.Tracks) > 0:
		track = opts.Tracks[0]
	case len(p.queue) > 0:
		track = p.queue[0]
		p.queue = p.queue[1:]
	default:
		p.mu.Unlock()
		return nil
	}
	channelID := opts.ChannelID
	if channelID == "" && p.current != nil {
		channelID = p.current.channelID
	}
	p.gen++
	gen := p.gen
	p.mu.Unlock()

	if channelID == "" {
		return errors.New("no voice channel to play in")
	}

	eng, ok := p.router.Engine(track.Source)
	if !ok {
		return p.fail(newError(CodeUnknownEngine, nil, "unknown player engine %q", track.Source))
	}
	stream, err := eng.GetStream(ctx, track, p.opts.engineConfig())
	if err != nil {
		return p.fail(newError(CodeStreamUnavailable, err, "unable to create stream for %q", track.Title))
	}
	if stream == nil {
		return p.fail(newError(CodeStreamUnavailable, nil, "unable to create stream for %q", track.Title))
	}

	res, err := p.adapter.NewResource(ctx, stream, voice.ResourceOptions{
		InlineVolume: p.opts.inlineVolume(),
		Metadata:     voice.Metadata{Track: track, ChannelID: channelID},
	})
	if err != nil {
		_ = stream.Close()
		return p.fail(newError(CodeStreamUnavailable, err, "unable to create resource for %q", track.Title))
	}

	volume := p.resolveVolume(ctx)

	conn, err := p.join(ctx, channelID)
	if err != nil {
		_ = res.Close()
		var perr *Error
		if errors.As(err, &perr) {
			return p.fail(perr)
		}
		return err
	}

	p.playMu.Lock()
	defer p.playMu.Unlock()
	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		_ = res.Close()
		p.log.Debug("dropping stale stream", "track", track.Title)
		return nil
	}

	var requeue []media.Track
	if len(opts.Tracks) > 1 {
		requeue = append(requeue, opts.Tracks[1:]...)
	}
	if opts.AddSkippedTrackToQueue && p.current != nil {
		skipped := p.current.track
		skipped.Seek += p.current.resource.PlaybackDuration()
		requeue = append(requeue, skipped)
	}
	if len(requeue) > 0 {
		p.queue = append(requeue, p.queue...)
	}

	p.current = &nowPlaying{track: track, channelID: channelID, resource: res}
	p.applyVolumeLocked(volume)
	p.mu.Unlock()

	p.log.Info("playing", "track", track.Title, "source", track.Source, "channelID", conn.ChannelID())
	p.audio.Play(res)
	return nil
}

// resolveVolume prefers the volume already set on this player, then the
// resolver, then the literal option, then 100.
func (p *Player) resolveVolume(ctx context.Context) int {
	p.mu.Lock()
	v := p.volume
	p.mu.Unlock()
	if v != nil {
		return *v
	}

	if p.opts.InitialVolumeFunc != nil {
		vol, err := p.opts.InitialVolumeFunc(ctx, p.guildID)
		if err != nil {
			p.fail(newError(CodeInitialVolumeResolver, err, "initial volume resolver failed"))
			return DefaultVolume
		}
		return vol
	}
	if p.opts.InitialVolume != nil {
		return *p.opts.InitialVolume
	}
	return DefaultVolume
}

// join connects to channelID and wires connection lifecycle handling.
func (p *Player) join(ctx context.Context, channelID string) (voice.Connection, error) {
	if !p.opts.allowSwitchChannels() {
		if conn, ok := p.adapter.Connection(p.guildID); ok && conn.ChannelID() != channelID {
			return nil, newError(CodeChannelSwitchRefused, nil,
				"refused to join voice channel %s, already connected to %s", channelID, conn.ChannelID())
		}
	}

	conn, err := p.adapter.Join(ctx, p.guildID, channelID)
	if err != nil {
		return nil, err
	}

	sub := conn.Subscribe(p.audio)
	p.mu.Lock()
	p.sub = sub
	p.mu.Unlock()

	conn.RemoveAllListeners()
	conn.OnStatus(func(s voice.ConnectionStatus) {
		switch s {
		case voice.Disconnected:
			go p.awaitReconnect(conn)
		case voice.Destroyed:
			p.handleDestroyed(sub)
		}
	})
	return conn, nil
}

// awaitReconnect treats a disconnect as final unless the connection starts
// signalling or connecting within the wait.
func (p *Player) awaitReconnect(conn voice.Connection) {
	ctx, cancel := context.WithTimeout(context.Background(), p.reconnectWait)
	defer cancel()

	recovered := make(chan struct{}, 2)
	for _, s := range []voice.ConnectionStatus{voice.Signalling, voice.Connecting} {
		go func() {
			if conn.WaitFor(ctx, s) == nil {
				recovered <- struct{}{}
			}
		}()
	}

	select {
	case <-recovered:
		p.log.Debug("voice connection recovering")
	case <-ctx.Done():
		p.log.Info("voice connection lost, destroying")
		conn.Destroy()
	}
}

func (p *Player) handleDestroyed(sub voice.Subscription) {
	p.mu.Lock()
	p.current = nil
	p.gen++
	if p.sub == sub {
		p.sub = nil
	}
	p.mu.Unlock()

	p.audio.Stop()
	if sub != nil {
		sub.Unsubscribe()
	}
	p.log.Info("voice connection destroyed")
	p.emitDestroyed()
}

// Add appends tracks and starts playback when nothing is buffering or playing.
func (p *Player) Add(ctx context.Context, opts PlayOptions) error {
	p.mu.Lock()
	p.queue = append(p.queue, opts.Tracks...)
	p.mu.Unlock()

	switch p.audio.State().Status {
	case voice.Buffering, voice.Playing:
		return nil
	}
	return p.Play(ctx, PlayOptions{ChannelID: opts.ChannelID})
}

// Skip stops the current track. The queue advances through the idle
// transition, not here.
func (p *Player) Skip() (media.Track, bool) {
	cur, ok := p.GetCurrentTrack()
	if !p.audio.Stop() || !ok {
		return media.Track{}, false
	}
	return cur, true
}

// Jump plays the queued track at index and drops everything before it.
func (p *Player) Jump(ctx context.Context, index int) (bool, error) {
	p.mu.Lock()
	if index < 0 || index >= len(p.queue) {
		p.mu.Unlock()
		return false, nil
	}
	track := p.queue[index]
	p.queue = p.queue[index+1:]
	channelID := ""
	if p.current != nil {
		channelID = p.current.channelID
	}
	p.mu.Unlock()

	if channelID == "" {
		if conn, ok := p.adapter.Connection(p.guildID); ok {
			channelID = conn.ChannelID()
		}
	}
	if err := p.Play(ctx, PlayOptions{ChannelID: channelID, Tracks: []media.Track{track}}); err != nil {
		return false, err
	}
	return true, nil
}

// SetPause is idempotent: asking for the state the player is already in
// succeeds without touching the audio player.
func (p *Player) SetPause(pause bool) bool {
	if pause && p.IsPaused() {
		return true
	}
	if !pause && p.IsPlaying() {
		return true
	}
	if pause {
		return p.audio.Pause()
	}
	return p.audio.Unpause()
}

func (p *Player) IsPaused() bool  { return p.audio.State().Status == voice.Paused }
func (p *Player) IsPlaying() bool { return p.audio.State().Status == voice.Playing }

func (p *Player) Status() voice.Status { return p.audio.State().Status }

func (p *Player) Shuffle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	utils.Shuffle(p.queue)
}

// GetCurrentTrack returns a copy of the now playing track.
func (p *Player) GetCurrentTrack() (media.Track, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return media.Track{}, false
	}
	return p.current.track, true
}

// GetVoiceChannel is the channel of the now playing track.
func (p *Player) GetVoiceChannel() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return "", false
	}
	return p.current.channelID, true
}

func (p *Player) GetQueue() []media.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.queue)
}

// Clear empties the queue without touching the current track.
func (p *Player) Clear() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.queue)
	p.queue = nil
	return n
}

// Insert clamps index: negative goes to the front, past the end to the back.
func (p *Player) Insert(track media.Track, index int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	index = max(0, min(index, len(p.queue)))
	p.queue = slices.Insert(p.queue, index, track)
}

func (p *Player) Remove(index int) (media.Track, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.queue) {
		return media.Track{}, false
	}
	removed := p.queue[index]
	p.queue = slices.Delete(p.queue, index, index+1)
	return removed, true
}

// SetVolume only succeeds while a resource with inline volume is loaded.
func (p *Player) SetVolume(v int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.applyVolumeLocked(v)
}

func (p *Player) applyVolumeLocked(v int) bool {
	if !utils.ValidateVolume(v) || p.current == nil || !p.current.resource.HasVolume() {
		return false
	}
	p.volume = &v
	p.current.resource.SetVolume(float64(v) / 100)
	return true
}

func (p *Player) GetVolume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.volume == nil {
		return DefaultVolume
	}
	return *p.volume
}

func (p *Player) SetRepeat(m RepeatMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.repeat = m
}

func (p *Player) GetRepeat() RepeatMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.repeat
}

// GetPlaybackDuration is the position in the current track, counting any
// offset it was started from.
func (p *Player) GetPlaybackDuration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return 0
	}
	return p.current.track.Seek + p.current.resource.PlaybackDuration()
}

// Stop clears the queue and tears down the guild's voice connection.
func (p *Player) Stop() {
	p.mu.Lock()
	p.queue = nil
	p.mu.Unlock()

	if conn, ok := p.adapter.Connection(p.guildID); ok {
		conn.Destroy()
	}
}

// Search runs query against the forced or detected engine. Engine failures
// come back as no results.
func (p *Player) Search(ctx context.Context, query string, opts SearchOptions) []media.SearchResult {
	cfg := p.opts.engineConfig()
	source := opts.Source
	if source == "" {
		source = p.router.Detect(ctx, query, cfg)
	}
	eng, ok := p.router.Engine(source)
	if !ok {
		return nil
	}
	res, err := eng.Search(ctx, query, cfg, engine.SearchOptions{Limit: opts.Limit})
	if err != nil {
		p.log.Warn("search failed", "source", source, "query", query, "err", err)
		return nil
	}
	return res
}

// Seek restarts the current track at offset. An offset at or past a known
// duration skips instead.
func (p *Player) Seek(ctx context.Context, offset time.Duration) (bool, error) {
	p.mu.Lock()
	cur := p.current
	p.mu.Unlock()
	if cur == nil || cur.resource == nil {
		return false, nil
	}

	offset = max(offset, 0)
	if cur.track.Duration > 0 && offset >= time.Duration(cur.track.Duration)*time.Second {
		_, ok := p.Skip()
		return ok, nil
	}

	eng, ok := p.router.Engine(cur.track.Source)
	if !ok || !eng.IsResponsible(ctx, cur.track.URL, p.opts.engineConfig()) {
		p.log.Debug("seek refused, engine no longer responsible", "track", cur.track.Title)
		return false, nil
	}

	track := cur.track
	track.Seek = offset
	if err := p.Play(ctx, PlayOptions{ChannelID: cur.channelID, Tracks: []media.Track{track}}); err != nil {
		return false, err
	}
	return true, nil
}
