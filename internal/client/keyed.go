package client

import (
	"errors"
	"sync"
)

// ErrMutationInFlight is returned when a mutation for the same key is already running.
var ErrMutationInFlight = errors.New("mutation already in flight")

// KeyedGuard allows at most one in-flight mutation per key. A second call for a busy
// key fails immediately instead of queueing.
type KeyedGuard struct {
	mu       sync.Mutex
	inFlight map[int64]struct{}
}

func NewKeyedGuard() *KeyedGuard {
	return &KeyedGuard{inFlight: make(map[int64]struct{})}
}

// Do runs fn while holding key.
func (g *KeyedGuard) Do(key int64, fn func() error) error {
	if !g.acquire(key) {
		return ErrMutationInFlight
	}
	defer g.release(key)
	return fn()
}

// Busy reports whether a mutation for key is running.
func (g *KeyedGuard) Busy(key int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.inFlight[key]
	return ok
}

func (g *KeyedGuard) acquire(key int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.inFlight[key]; ok {
		return false
	}
	g.inFlight[key] = struct{}{}
	return true
}

func (g *KeyedGuard) release(key int64) {
	g.mu.Lock()
	delete(g.inFlight, key)
	g.mu.Unlock()
}
