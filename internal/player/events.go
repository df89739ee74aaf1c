package player

import (
	"sync"

	"github.com/sonroyaalmerol/kumaplayer/internal/media"
)

// events holds the listeners of one player. Callbacks run on the goroutine
// that produced the event and never under the registry lock.
type events struct {
	evMu        sync.RWMutex
	onStart     []func(media.Track)
	onEnd       []func()
	onDestroyed []func()
	onError     []func(error)
}

// OnTrackStart fires when a buffered track becomes audible.
func (e *events) OnTrackStart(fn func(media.Track)) {
	e.evMu.Lock()
	defer e.evMu.Unlock()
	e.onStart = append(e.onStart, fn)
}

func (e *events) OnTrackEnd(fn func()) {
	e.evMu.Lock()
	defer e.evMu.Unlock()
	e.onEnd = append(e.onEnd, fn)
}

func (e *events) OnDestroyed(fn func()) {
	e.evMu.Lock()
	defer e.evMu.Unlock()
	e.onDestroyed = append(e.onDestroyed, fn)
}

// OnError receives every *Error a player raises, including ones that are
// also returned to the caller.
func (e *events) OnError(fn func(error)) {
	e.evMu.Lock()
	defer e.evMu.Unlock()
	e.onError = append(e.onError, fn)
}

func (e *events) emitTrackStart(t media.Track) {
	e.evMu.RLock()
	fns := append([]func(media.Track){}, e.onStart...)
	e.evMu.RUnlock()
	for _, fn := range fns {
		fn(t)
	}
}

func (e *events) emitTrackEnd() {
	e.evMu.RLock()
	fns := append([]func(){}, e.onEnd...)
	e.evMu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}

func (e *events) emitDestroyed() {
	e.evMu.RLock()
	fns := append([]func(){}, e.onDestroyed...)
	e.evMu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}

func (e *events) emitError(err error) {
	e.evMu.RLock()
	fns := append([]func(error){}, e.onError...)
	e.evMu.RUnlock()
	for _, fn := range fns {
		fn(err)
	}
}
