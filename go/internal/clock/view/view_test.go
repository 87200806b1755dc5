package view

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/tableclock/go/internal/models"
)

func TestFormatTimeLabel(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "00:00.000"},
		{-250, "00:00.000"},
		{7, "00:00.007"},
		{1000, "00:01.000"},
		{59_999, "00:59.999"},
		{89_999, "01:29.999"},
		{90_000, "01:30"},
		{90_999, "01:30"},
		{300_000, "05:00"},
		{3_599_999, "59:59"},
		{3_600_000, "01:00:00"},
		{3_723_456, "01:02:03"},
		{100 * 3_600_000, "100:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatTimeLabel(tt.ms))
		})
	}
}

func TestToViewIdle(t *testing.T) {
	id := uuid.New()
	v := ToView(Snapshot{
		SessionID: id,
		Players:   models.NewRoster(3, 1000),
	})

	assert.Equal(t, id, v.SessionID)
	assert.Nil(t, v.ActivePlayerID)
	assert.False(t, v.CanPause)
	assert.False(t, v.IsPaused)
	assert.False(t, v.IsGameOver)
	require.Len(t, v.Players, 3)
	for i, p := range v.Players {
		assert.Equal(t, i+1, p.ID)
		assert.Equal(t, "00:01.000", p.TimeLabel)
		assert.False(t, p.IsActive)
		assert.False(t, p.IsOut)
	}

	_, ok := v.Active()
	assert.False(t, ok)
}

func TestToViewActiveAndOut(t *testing.T) {
	v := ToView(Snapshot{
		Players: []models.Player{
			{ID: 1, TimeRemainingMs: -10},
			{ID: 2, TimeRemainingMs: 120_000},
		},
		ActivePlayerID: 2,
		Paused:         true,
	})

	require.NotNil(t, v.ActivePlayerID)
	assert.Equal(t, 2, *v.ActivePlayerID)
	assert.True(t, v.CanPause)
	assert.True(t, v.IsPaused)

	assert.True(t, v.Players[0].IsOut)
	assert.Equal(t, int64(0), v.Players[0].TimeRemainingMs)
	assert.Equal(t, "00:00.000", v.Players[0].TimeLabel)

	active, ok := v.Active()
	require.True(t, ok)
	assert.Equal(t, 2, active.ID)
	assert.Equal(t, "02:00", active.TimeLabel)
}

func TestToViewGameOver(t *testing.T) {
	v := ToView(Snapshot{Players: models.NewRoster(2, 0)})
	assert.True(t, v.IsGameOver)
}

func TestSessionViewJSON(t *testing.T) {
	v := ToView(Snapshot{Players: models.NewRoster(1, 5000), ActivePlayerID: 1})

	data, err := json.Marshal(v)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, float64(1), decoded["active_player_id"])
	assert.Equal(t, true, decoded["can_pause"])
	players := decoded["players"].([]any)
	assert.Equal(t, "00:05.000", players[0].(map[string]any)["time_label"])
}
