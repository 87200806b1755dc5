package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/tableclock/go/internal/keepawake"
)

const keepAwakeTimeout = 5 * time.Second

// keepAwakeGuard drives a keepawake.Lock off the session's critical path.
// Requests record the wanted state and return; background reconciles move the
// platform lock toward the latest wanted state one call at a time, so a slow
// acquire can never leave the lock held after a later release.
type keepAwakeGuard struct {
	sessionID uuid.UUID
	lock      keepawake.Lock

	mu   sync.Mutex
	want bool

	opMu sync.Mutex
	held bool

	wg sync.WaitGroup
}

func newKeepAwakeGuard(sessionID uuid.UUID, lock keepawake.Lock) *keepAwakeGuard {
	return &keepAwakeGuard{sessionID: sessionID, lock: lock}
}

// Request asks for the wake lock. Failure is logged and otherwise ignored.
func (g *keepAwakeGuard) Request() { g.set(true) }

// Release gives the wake lock back if it is held.
func (g *keepAwakeGuard) Release() { g.set(false) }

func (g *keepAwakeGuard) set(want bool) {
	g.mu.Lock()
	if g.want == want {
		g.mu.Unlock()
		return
	}
	g.want = want
	g.mu.Unlock()

	g.wg.Add(1)
	go g.reconcile()
}

func (g *keepAwakeGuard) reconcile() {
	defer g.wg.Done()

	g.opMu.Lock()
	defer g.opMu.Unlock()

	g.mu.Lock()
	want := g.want
	g.mu.Unlock()

	if want == g.held {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), keepAwakeTimeout)
	defer cancel()

	if want {
		if err := g.lock.Acquire(ctx); err != nil {
			log.Warn().Err(err).Str("session_id", g.sessionID.String()).Msg("keep-awake request failed, continuing without it")
			return
		}
		g.held = true
		return
	}

	if err := g.lock.Release(ctx); err != nil {
		log.Warn().Err(err).Str("session_id", g.sessionID.String()).Msg("keep-awake release failed")
	}
	g.held = false
}

// wait blocks until pending reconciles finish.
func (g *keepAwakeGuard) wait() {
	g.wg.Wait()
}
