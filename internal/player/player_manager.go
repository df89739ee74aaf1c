package player

import (
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/sonroyaalmerol/kumaplayer/internal/i18n"
	"github.com/sonroyaalmerol/kumaplayer/internal/media"
)

// Manager keeps one Player per guild and re-emits their events tagged with
// the guild id.
type Manager struct {
	mu       sync.Mutex
	players  map[string]*Player
	defaults Options
	deps     Deps
	tr       *i18n.Translations
	log      *slog.Logger

	evMu        sync.RWMutex
	onStart     []func(guildID string, t media.Track)
	onEnd       []func(guildID string)
	onDestroyed []func(guildID string)
	onError     []func(guildID string, err error)
}

func NewManager(defaults Options, deps Deps, tr *i18n.Translations) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if tr == nil {
		tr = i18n.MustLoad(i18n.DefaultLanguage)
	}
	return &Manager{
		players:  make(map[string]*Player),
		defaults: defaults,
		deps:     deps,
		tr:       tr,
		log:      deps.Logger,
	}
}

// Get returns the guild's player, creating it with the defaults merged with
// overrides if it does not exist yet. Overrides are ignored for existing
// players.
func (m *Manager) Get(guildID string, overrides ...Options) *Player {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.players[guildID]; ok {
		return p
	}

	opts := m.defaults
	for _, o := range overrides {
		opts = Merge(opts, o)
	}
	p := New(guildID, opts, m.deps)
	m.forward(p)
	m.players[guildID] = p
	m.log.Debug("created player", "guildID", guildID)
	return p
}

// Find does not create a player.
func (m *Manager) Find(guildID string) *Player {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.players[guildID]
}

// Remove stops the guild's player and forgets it.
func (m *Manager) Remove(guildID string) {
	m.mu.Lock()
	p, ok := m.players[guildID]
	delete(m.players, guildID)
	m.mu.Unlock()
	if !ok {
		return
	}
	p.Stop()
	m.log.Debug("removed player", "guildID", guildID)
}

// Players returns the guild ids with a live player, sorted.
func (m *Manager) Players() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.players))
}

func (m *Manager) Translations() *i18n.Translations { return m.tr }

func (m *Manager) forward(p *Player) {
	id := p.GuildID()
	p.OnTrackStart(func(t media.Track) {
		for _, fn := range snapshot(&m.evMu, &m.onStart) {
			fn(id, t)
		}
	})
	p.OnTrackEnd(func() {
		for _, fn := range snapshot(&m.evMu, &m.onEnd) {
			fn(id)
		}
	})
	p.OnDestroyed(func() {
		for _, fn := range snapshot(&m.evMu, &m.onDestroyed) {
			fn(id)
		}
	})
	p.OnError(func(err error) {
		for _, fn := range snapshot(&m.evMu, &m.onError) {
			fn(id, err)
		}
	})
}

func snapshot[T any](mu *sync.RWMutex, fns *[]T) []T {
	mu.RLock()
	defer mu.RUnlock()
	return slices.Clone(*fns)
}

func (m *Manager) OnTrackStart(fn func(guildID string, t media.Track)) {
	m.evMu.Lock()
	defer m.evMu.Unlock()
	m.onStart = append(m.onStart, fn)
}

func (m *Manager) OnTrackEnd(fn func(guildID string)) {
	m.evMu.Lock()
	defer m.evMu.Unlock()
	m.onEnd = append(m.onEnd, fn)
}

func (m *Manager) OnDestroyed(fn func(guildID string)) {
	m.evMu.Lock()
	defer m.evMu.Unlock()
	m.onDestroyed = append(m.onDestroyed, fn)
}

func (m *Manager) OnError(fn func(guildID string, err error)) {
	m.evMu.Lock()
	defer m.evMu.Unlock()
	m.onError = append(m.onError, fn)
}
