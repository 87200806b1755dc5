package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/tableclock/go/internal/clock/events"
	"github.com/mcdev12/tableclock/go/internal/clock/view"
	"github.com/mcdev12/tableclock/go/internal/models"
)

const quantum = 10 * time.Millisecond

type fakeLock struct {
	mu         sync.Mutex
	acquires   int
	releases   int
	holders    int
	acquireErr error
}

func (l *fakeLock) Acquire(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acquires++
	if l.acquireErr != nil {
		return l.acquireErr
	}
	l.holders++
	return nil
}

func (l *fakeLock) Release(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.releases++
	if l.holders > 0 {
		l.holders--
	}
	return nil
}

func (l *fakeLock) state() (acquires, releases int, held bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.acquires, l.releases, l.holders > 0
}

type harness struct {
	t     *testing.T
	clock *clockwork.FakeClock
	lock  *fakeLock
	s     *Session
	views chan view.SessionView

	mu     sync.Mutex
	events []events.Event
}

func newHarness(t *testing.T, playerCount int, playerTimeMs int64) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		clock: clockwork.NewFakeClock(),
		lock:  &fakeLock{},
		views: make(chan view.SessionView, 1024),
	}
	s, err := New(Config{
		Clock:       h.clock,
		TickQuantum: quantum,
		KeepAwake:   h.lock,
		OnView:      func(v view.SessionView) { h.views <- v },
		OnEvent: func(e events.Event) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.events = append(h.events, e)
		},
	}, playerCount, playerTimeMs)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	h.s = s
	return h
}

func (h *harness) drain() int {
	n := 0
	for {
		select {
		case <-h.views:
			n++
		default:
			return n
		}
	}
}

// tick advances the fake clock by one quantum and waits for the scheduler's view.
func (h *harness) tick() view.SessionView {
	h.t.Helper()
	h.drain()
	h.clock.Advance(quantum)
	select {
	case v := <-h.views:
		return v
	case <-time.After(2 * time.Second):
		h.t.Fatal("scheduler did not fire")
	}
	return view.SessionView{}
}

func (h *harness) ticks(n int) view.SessionView {
	h.t.Helper()
	var v view.SessionView
	for i := 0; i < n; i++ {
		v = h.tick()
	}
	return v
}

func (h *harness) assertNoTick() {
	h.t.Helper()
	h.drain()
	h.clock.Advance(quantum)
	select {
	case <-h.views:
		h.t.Fatal("scheduler fired while it should be stopped")
	case <-time.After(50 * time.Millisecond):
	}
}

func (h *harness) times() []int64 {
	players := h.s.Players()
	out := make([]int64, len(players))
	for i, p := range players {
		out[i] = p.TimeRemainingMs
	}
	return out
}

func (h *harness) active() int {
	id, _ := h.s.ActivePlayerID()
	return id
}

func (h *harness) eventTypes() []events.EventType {
	h.mu.Lock()
	defer h.mu.Unlock()
	types := make([]events.EventType, len(h.events))
	for i, e := range h.events {
		types[i] = e.Type
	}
	return types
}

func TestNewBuildsIdleRoster(t *testing.T) {
	for _, n := range []int{1, 2, 4, 6, 13} {
		h := newHarness(t, n, 1500)

		players := h.s.Players()
		require.Len(t, players, n)
		for i, p := range players {
			assert.Equal(t, i+1, p.ID)
			assert.Equal(t, int64(1500), p.TimeRemainingMs)
		}
		_, ok := h.s.ActivePlayerID()
		assert.False(t, ok)
		assert.False(t, h.s.Paused())
		assert.False(t, h.s.Running())
		assert.False(t, h.s.GameOver())
	}
}

func TestNewRejectsInvalidSettings(t *testing.T) {
	_, err := New(Config{}, 0, 1000)
	assert.ErrorIs(t, err, ErrInvalidPlayerCount)

	_, err = New(Config{}, 2, -1)
	assert.ErrorIs(t, err, ErrInvalidPlayerTime)
}

func TestNewWithZeroTimeIsAlreadyOver(t *testing.T) {
	h := newHarness(t, 2, 0)
	assert.True(t, h.s.GameOver())

	v := h.s.Tap(1)
	assert.Nil(t, v.ActivePlayerID)
	assert.False(t, h.s.Running())
}

func TestTapWhileIdleStartsClock(t *testing.T) {
	h := newHarness(t, 4, 1000)

	v := h.s.Tap(3)
	require.NotNil(t, v.ActivePlayerID)
	assert.Equal(t, 3, *v.ActivePlayerID)
	assert.True(t, v.CanPause)
	assert.True(t, h.s.Running())

	v = h.tick()
	assert.Equal(t, []int64{1000, 1000, 990, 1000}, h.times())
	assert.Equal(t, "00:00.990", v.Players[2].TimeLabel)
}

func TestTapOnInactivePlayerIsIgnored(t *testing.T) {
	h := newHarness(t, 3, 1000)
	h.s.Tap(1)

	h.s.Tap(2)
	assert.Equal(t, 1, h.active())
	h.s.Tap(3)
	assert.Equal(t, 1, h.active())
}

func TestTapUnknownPlayerIsIgnored(t *testing.T) {
	h := newHarness(t, 2, 1000)

	h.s.Tap(7)
	assert.Equal(t, 0, h.active())
	assert.False(t, h.s.Running())

	h.s.Tap(1)
	h.s.Tap(-1)
	assert.Equal(t, 1, h.active())
}

func TestTapActiveAdvancesInRotation(t *testing.T) {
	h := newHarness(t, 4, 1000)

	h.s.Tap(3)
	h.s.Tap(3)
	assert.Equal(t, 4, h.active())

	h.s.Tap(4)
	assert.Equal(t, 1, h.active())

	h.s.Tap(1)
	assert.Equal(t, 2, h.active())
}

func TestTapActiveSkipsOutPlayers(t *testing.T) {
	h := newHarness(t, 4, 1000)
	h.s.KnockOut(2)
	h.s.KnockOut(3)

	h.s.Tap(1)
	h.s.Tap(1)
	assert.Equal(t, 4, h.active())
	h.s.Tap(4)
	assert.Equal(t, 1, h.active())
}

func TestSinglePlayerKeepsTurn(t *testing.T) {
	h := newHarness(t, 1, 1000)
	h.s.Tap(1)
	h.s.Tap(1)
	assert.Equal(t, 1, h.active())
	assert.True(t, h.s.Running())
}

func TestTickOnlyDecrementsActivePlayer(t *testing.T) {
	h := newHarness(t, 3, 1000)
	h.s.Tap(2)

	h.ticks(5)
	assert.Equal(t, []int64{1000, 950, 1000}, h.times())

	h.s.Tap(2)
	h.ticks(3)
	assert.Equal(t, []int64{1000, 950, 970}, h.times())
}

func TestExpiryAutoAdvances(t *testing.T) {
	h := newHarness(t, 3, 1000)
	h.s.Tap(1)

	h.ticks(100)
	assert.Equal(t, int64(0), h.times()[0])
	assert.Equal(t, 1, h.active(), "player at zero stays active until the next evaluation")

	v := h.tick()
	assert.Equal(t, 2, h.active())
	assert.True(t, v.Players[0].IsOut)
	assert.Equal(t, []int64{0, 1000, 1000}, h.times())
	assert.Contains(t, h.eventTypes(), events.EventTypePlayerTimedOut)
}

func TestTapAtZeroRecordsTimeout(t *testing.T) {
	h := newHarness(t, 3, 1000)
	h.s.Tap(1)
	h.ticks(100)
	require.Equal(t, 1, h.active())
	require.NotContains(t, h.eventTypes(), events.EventTypePlayerTimedOut)

	h.s.Tap(1)
	assert.Equal(t, 2, h.active())

	h.mu.Lock()
	defer h.mu.Unlock()
	var timedOut []int
	for _, e := range h.events {
		if e.Type != events.EventTypePlayerTimedOut {
			continue
		}
		p, err := events.ParsePayload(e)
		require.NoError(t, err)
		timedOut = append(timedOut, p.(*events.PlayerTimedOutPayload).PlayerID)
	}
	assert.Equal(t, []int{1}, timedOut)
}

func TestExpiryOfEveryoneEndsGame(t *testing.T) {
	h := newHarness(t, 2, 20)
	h.s.Tap(1)

	h.ticks(3) // 10, 0, advance
	assert.Equal(t, 2, h.active())

	v := h.ticks(3) // 10, 0, game over
	assert.True(t, v.IsGameOver)
	assert.Nil(t, v.ActivePlayerID)
	assert.False(t, v.CanPause)
	assert.True(t, h.s.GameOver())
	assert.False(t, h.s.Running())

	h.assertNoTick()

	h.s.awake.wait()
	_, releases, held := h.lock.state()
	assert.Equal(t, 1, releases)
	assert.False(t, held)
	assert.Contains(t, h.eventTypes(), events.EventTypeGameOver)
}

func TestPauseStopsTimeAndResumeContinues(t *testing.T) {
	h := newHarness(t, 2, 1000)
	h.s.Tap(1)
	h.ticks(5)

	v := h.s.TogglePause()
	assert.True(t, v.IsPaused)
	assert.False(t, h.s.Running())
	require.NotNil(t, v.ActivePlayerID)
	assert.Equal(t, 1, *v.ActivePlayerID)

	for i := 0; i < 10; i++ {
		h.assertNoTick()
	}
	h.clock.Advance(time.Hour)
	assert.Equal(t, []int64{950, 1000}, h.times())

	v = h.s.TogglePause()
	assert.False(t, v.IsPaused)
	assert.True(t, h.s.Running())

	h.tick()
	assert.Equal(t, []int64{940, 1000}, h.times())
}

func TestTapWhilePausedIsIgnored(t *testing.T) {
	h := newHarness(t, 3, 1000)
	h.s.Tap(1)
	h.s.TogglePause()

	h.s.Tap(1)
	assert.Equal(t, 1, h.active())
	h.s.Tap(2)
	assert.Equal(t, 1, h.active())
}

func TestPauseWhileIdle(t *testing.T) {
	h := newHarness(t, 2, 1000)

	v := h.s.TogglePause()
	assert.True(t, v.IsPaused)
	h.s.Tap(1)
	assert.Equal(t, 0, h.active())

	v = h.s.TogglePause()
	assert.False(t, v.IsPaused)
	assert.False(t, h.s.Running(), "resuming with nobody active does not start the clock")
}

func TestRapidTogglesKeepOneScheduler(t *testing.T) {
	h := newHarness(t, 2, 1000)
	h.s.Tap(1)

	for i := 0; i < 7; i++ {
		h.s.TogglePause()
	}
	h.s.TogglePause()
	require.False(t, h.s.Paused())

	h.tick()
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, h.drain(), "only one scheduler may fire per quantum")
	assert.Equal(t, []int64{990, 1000}, h.times())
}

func TestStaleHandleDoesNotTick(t *testing.T) {
	h := newHarness(t, 2, 1000)
	h.s.Tap(1)

	h.s.mu.Lock()
	stale := h.s.ticker
	h.s.mu.Unlock()

	h.s.TogglePause()
	h.s.TogglePause()

	h.s.onTick(stale)
	assert.Equal(t, []int64{1000, 1000}, h.times())
}

func TestKnockOutRedistributesTime(t *testing.T) {
	h := newHarness(t, 4, 1000)
	h.s.Tap(1)

	before := models.TotalTimeMs(h.s.Players())
	v := h.s.KnockOut(2)

	assert.Equal(t, []int64{1333, 0, 1334, 1333}, h.times())
	assert.Equal(t, before, models.TotalTimeMs(h.s.Players()))
	assert.True(t, v.Players[1].IsOut)
	assert.Equal(t, 1, h.active(), "knocking out an inactive player keeps the turn")
}

func TestKnockOutSkipsPlayersAlreadyOut(t *testing.T) {
	h := newHarness(t, 3, 900)
	h.s.KnockOut(1)
	assert.Equal(t, []int64{0, 1350, 1350}, h.times())

	h.s.KnockOut(2)
	assert.Equal(t, []int64{0, 0, 2700}, h.times())
}

func TestKnockOutActiveAdvancesImmediately(t *testing.T) {
	h := newHarness(t, 3, 1000)
	h.s.Tap(2)
	h.ticks(10)

	v := h.s.KnockOut(2)
	assert.Equal(t, 3, h.active())
	require.NotNil(t, v.ActivePlayerID)
	assert.Equal(t, 3, *v.ActivePlayerID)
	assert.Equal(t, []int64{1450, 0, 1450}, h.times())
	assert.True(t, h.s.Running())
}

func TestKnockOutWhilePaused(t *testing.T) {
	h := newHarness(t, 2, 1000)
	h.s.Tap(1)
	h.s.TogglePause()

	h.s.KnockOut(1)
	assert.Equal(t, 2, h.active())
	assert.True(t, h.s.Paused())
	assert.False(t, h.s.Running())
	assert.Equal(t, []int64{0, 2000}, h.times())
}

func TestKnockOutLastPlayerDiscardsTimeAndEndsGame(t *testing.T) {
	h := newHarness(t, 2, 1000)
	h.s.Tap(1)
	h.s.KnockOut(2)
	require.Equal(t, []int64{2000, 0}, h.times())

	v := h.s.KnockOut(1)
	assert.Equal(t, []int64{0, 0}, h.times())
	assert.True(t, v.IsGameOver)
	assert.Nil(t, v.ActivePlayerID)
	assert.False(t, h.s.Running())
	h.assertNoTick()
}

func TestKnockOutIgnoresUnknownAndOutPlayers(t *testing.T) {
	h := newHarness(t, 3, 1000)
	h.s.KnockOut(1)
	snapshot := h.times()

	h.s.KnockOut(1)
	h.s.KnockOut(42)
	assert.Equal(t, snapshot, h.times())
}

func TestKeepAwakeFollowsGame(t *testing.T) {
	h := newHarness(t, 2, 1000)
	h.s.Tap(1)
	h.s.awake.wait()

	acquires, _, held := h.lock.state()
	assert.Equal(t, 1, acquires)
	assert.True(t, held)

	h.s.Close()
	h.s.awake.wait()
	_, releases, held := h.lock.state()
	assert.Equal(t, 1, releases)
	assert.False(t, held)
}

func TestKeepAwakeSharedBetweenSessions(t *testing.T) {
	h := newHarness(t, 2, 1000)
	other, err := New(Config{Clock: h.clock, TickQuantum: quantum, KeepAwake: h.lock}, 2, 1000)
	require.NoError(t, err)
	t.Cleanup(other.Close)

	h.s.Tap(1)
	other.Tap(2)
	h.s.awake.wait()
	other.awake.wait()

	h.s.Close()
	h.s.awake.wait()
	acquires, releases, held := h.lock.state()
	assert.Equal(t, 2, acquires)
	assert.Equal(t, 1, releases)
	assert.True(t, held, "the other session is still running")

	other.Close()
	other.awake.wait()
	_, releases, held = h.lock.state()
	assert.Equal(t, 2, releases)
	assert.False(t, held)
}

func TestKeepAwakeFailureDoesNotBlockGame(t *testing.T) {
	h := newHarness(t, 2, 1000)
	h.lock.acquireErr = errors.New("denied")

	h.s.Tap(1)
	h.s.awake.wait()
	h.tick()
	assert.Equal(t, []int64{990, 1000}, h.times())

	_, _, held := h.lock.state()
	assert.False(t, held)
}

func TestCloseStopsEverything(t *testing.T) {
	h := newHarness(t, 2, 1000)
	h.s.Tap(1)
	h.tick()

	h.s.Close()
	h.s.Close()
	assert.False(t, h.s.Running())
	h.assertNoTick()

	h.s.Tap(1)
	h.s.TogglePause()
	h.s.KnockOut(2)
	assert.Equal(t, []int64{990, 1000}, h.times())
	assert.False(t, h.s.Paused())

	types := h.eventTypes()
	assert.Equal(t, events.EventTypeSessionClosed, types[len(types)-1])
}

func TestEventSequence(t *testing.T) {
	h := newHarness(t, 2, 1000)
	h.s.Tap(1)
	h.s.Tap(1)
	h.s.TogglePause()
	h.s.TogglePause()
	h.s.KnockOut(1)
	h.s.KnockOut(2)

	assert.Equal(t, []events.EventType{
		events.EventTypeSessionStarted,
		events.EventTypeTurnStarted,
		events.EventTypeTurnStarted,
		events.EventTypeSessionPaused,
		events.EventTypeSessionResumed,
		events.EventTypePlayerKnockedOut,
		events.EventTypePlayerKnockedOut,
		events.EventTypeGameOver,
	}, h.eventTypes())

	for _, e := range h.events {
		assert.Equal(t, h.s.ID(), e.SessionID)
	}
}
