// Package tui is the terminal clock: one box per player, driven by the
// keyboard.
package tui

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/tableclock/go/internal/clock/table"
	"github.com/mcdev12/tableclock/go/internal/clock/view"
)

// Controller is the table the app drives.
type Controller interface {
	Tap(playerID int) (view.SessionView, error)
	TogglePause() (view.SessionView, error)
	KnockOut(playerID int) (view.SessionView, error)
	Restart() (view.SessionView, error)
	View() (view.SessionView, error)
	Subscribe(fn func(view.SessionView)) func()
}

type mode int

const (
	modeNormal mode = iota
	modeKnockSelect
	modeKnockConfirm
)

// App owns the screen. Everything except the view subscription runs on the
// goroutine that called Run.
type App struct {
	screen tcell.Screen
	table  Controller

	latest atomic.Pointer[view.SessionView]

	current view.SessionView
	mode    mode
	target  int
	status  string
}

// New creates an app drawing on an initialised screen.
func New(screen tcell.Screen, t Controller) *App {
	return &App{screen: screen, table: t}
}

// Run draws and handles input until the user quits or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	unsubscribe := a.table.Subscribe(func(v view.SessionView) {
		a.latest.Store(&v)
		// a dropped wake-up is harmless: the next one renders the latest view
		_ = a.screen.PostEvent(tcell.NewEventInterrupt(nil))
	})
	defer unsubscribe()

	v, err := a.table.View()
	if err != nil && !errors.Is(err, table.ErrNoSession) {
		return fmt.Errorf("failed to read table state: %w", err)
	}
	a.current = v
	a.draw()

	done := make(chan struct{})
	defer close(done)
	eventCh := make(chan tcell.Event, 32)
	go func() {
		for {
			ev := a.screen.PollEvent()
			if ev == nil {
				close(eventCh)
				return
			}
			select {
			case eventCh <- ev:
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-eventCh:
			if !ok {
				return nil
			}
			switch ev := ev.(type) {
			case *tcell.EventResize:
				a.screen.Sync()
			case *tcell.EventInterrupt:
				if latest := a.latest.Load(); latest != nil {
					a.current = *latest
				}
			case *tcell.EventKey:
				if a.handleKey(ev) {
					return nil
				}
			}
			a.draw()
		}
	}
}

// handleKey applies one key press and reports whether the app should quit.
func (a *App) handleKey(ev *tcell.EventKey) bool {
	if ev.Key() == tcell.KeyCtrlC {
		return true
	}

	switch a.mode {
	case modeKnockSelect:
		a.mode = modeNormal
		id, ok := digit(ev)
		if !ok {
			a.status = ""
			return false
		}
		if !a.canKnockOut(id) {
			a.status = fmt.Sprintf("Player %d cannot be knocked out", id)
			return false
		}
		a.mode = modeKnockConfirm
		a.target = id
		a.status = fmt.Sprintf("Knock out player %d and share their time? (y/n)", id)
		return false

	case modeKnockConfirm:
		a.mode = modeNormal
		a.status = ""
		if ev.Key() == tcell.KeyRune && (ev.Rune() == 'y' || ev.Rune() == 'Y') {
			a.apply(a.table.KnockOut(a.target))
		}
		return false
	}

	if ev.Key() == tcell.KeyEscape {
		return true
	}
	if id, ok := digit(ev); ok {
		a.apply(a.table.Tap(id))
		return false
	}
	if ev.Key() != tcell.KeyRune {
		return false
	}

	switch ev.Rune() {
	case ' ':
		if a.current.CanPause {
			a.apply(a.table.TogglePause())
		}
	case 'k', 'K':
		a.mode = modeKnockSelect
		a.status = "Knock out which player? (number, any other key cancels)"
	case 'r', 'R':
		a.apply(a.table.Restart())
	case 'q', 'Q':
		return true
	}
	return false
}

func (a *App) apply(v view.SessionView, err error) {
	if err != nil {
		log.Warn().Err(err).Msg("table command failed")
		a.status = err.Error()
		return
	}
	a.current = v
	a.status = ""
}

func (a *App) canKnockOut(id int) bool {
	for _, p := range a.current.Players {
		if p.ID == id {
			return !p.IsOut
		}
	}
	return false
}

func digit(ev *tcell.EventKey) (int, bool) {
	if ev.Key() != tcell.KeyRune || ev.Rune() < '1' || ev.Rune() > '9' {
		return 0, false
	}
	return int(ev.Rune() - '0'), true
}
