package tui

import (
	"strconv"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/mcdev12/tableclock/go/internal/clock/view"
)

const (
	boxWidth  = 22
	boxHeight = 5
	boxGap    = 2
	maxCols   = 3
)

var (
	titleStyle  = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	textStyle   = tcell.StyleDefault.Foreground(tcell.ColorSilver)
	activeStyle = tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	outStyle    = tcell.StyleDefault.Foreground(tcell.ColorGray)
	pausedStyle = tcell.StyleDefault.Foreground(tcell.ColorOrange).Bold(true)
	helpStyle   = tcell.StyleDefault.Foreground(tcell.ColorGray)
)

func (a *App) draw() {
	s := a.screen
	s.Clear()
	w, h := s.Size()

	drawCentered(s, 0, w, 0, "TABLECLOCK", titleStyle)
	drawCentered(s, 0, w, 1, headline(a.current), headlineStyle(a.current))

	players := a.current.Players
	cols := min(len(players), maxCols)
	if cols > 0 {
		gridW := cols*boxWidth + (cols-1)*boxGap
		x0 := max((w-gridW)/2, 0)
		for i, p := range players {
			x := x0 + (i%cols)*(boxWidth+boxGap)
			y := 3 + (i/cols)*(boxHeight+1)
			drawPlayer(s, x, y, p)
		}
	}

	if a.status != "" {
		drawCentered(s, 0, w, h-2, a.status, titleStyle)
	}
	drawCentered(s, 0, w, h-1, "1-9 tap   space pause   k knock out   r restart   q quit", helpStyle)
	s.Show()
}

func headline(v view.SessionView) string {
	switch {
	case len(v.Players) == 0:
		return "No game started"
	case v.IsGameOver:
		return "GAME OVER"
	case v.IsPaused:
		return "PAUSED"
	case v.ActivePlayerID == nil:
		return "Tap your number to start"
	default:
		return ""
	}
}

func headlineStyle(v view.SessionView) tcell.Style {
	if v.IsPaused && !v.IsGameOver {
		return pausedStyle
	}
	return titleStyle
}

func drawPlayer(s tcell.Screen, x, y int, p view.PlayerView) {
	style := textStyle
	marker := ""
	switch {
	case p.IsOut:
		style = outStyle
		marker = "OUT"
	case p.IsActive:
		style = activeStyle
		marker = "▶ ON THE CLOCK"
	}

	drawBox(s, x, y, boxWidth, boxHeight, style)
	drawCentered(s, x+1, boxWidth-2, y+1, "Player "+strconv.Itoa(p.ID), style)
	drawCentered(s, x+1, boxWidth-2, y+2, p.TimeLabel, style)
	drawCentered(s, x+1, boxWidth-2, y+3, marker, style)
}

func drawBox(s tcell.Screen, x, y, w, h int, style tcell.Style) {
	for col := x + 1; col < x+w-1; col++ {
		s.SetContent(col, y, '─', nil, style)
		s.SetContent(col, y+h-1, '─', nil, style)
	}
	for row := y + 1; row < y+h-1; row++ {
		s.SetContent(x, row, '│', nil, style)
		s.SetContent(x+w-1, row, '│', nil, style)
	}
	s.SetContent(x, y, '┌', nil, style)
	s.SetContent(x+w-1, y, '┐', nil, style)
	s.SetContent(x, y+h-1, '└', nil, style)
	s.SetContent(x+w-1, y+h-1, '┘', nil, style)
}

// drawCentered writes text centred in the span [x, x+width) of row y.
func drawCentered(s tcell.Screen, x, width, y int, text string, style tcell.Style) {
	col := x + max((width-runewidth.StringWidth(text))/2, 0)
	for _, r := range text {
		if col >= x+width {
			return
		}
		s.SetContent(col, y, r, nil, style)
		col += max(runewidth.RuneWidth(r), 1)
	}
}

