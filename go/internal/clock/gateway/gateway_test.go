package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/tableclock/go/internal/clock/history"
	"github.com/mcdev12/tableclock/go/internal/clock/table"
	"github.com/mcdev12/tableclock/go/internal/clock/view"
)

type fakeHistory struct {
	games []history.GameRecord
	limit atomic.Int64
}

func (f *fakeHistory) RecentGames(ctx context.Context, limit int) ([]history.GameRecord, error) {
	f.limit.Store(int64(limit))
	return f.games, nil
}

type testServer struct {
	t       *testing.T
	service *Service
	server  *httptest.Server
}

func newTestServer(t *testing.T, reader HistoryReader) *testServer {
	t.Helper()

	registry := table.NewRegistry(table.Options{Clock: clockwork.NewFakeClock()})
	service := NewService(DefaultConfig(), registry, reader)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		service.Start(ctx)
		close(done)
	}()

	mux := http.NewServeMux()
	service.RegisterRoutes(mux)
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		server.Close()
		cancel()
		<-done
		registry.CloseAll()
	})
	return &testServer{t: t, service: service, server: server}
}

func (ts *testServer) createTable(body string) CreateTableResponse {
	ts.t.Helper()
	resp, err := http.Post(ts.server.URL+"/api/tables", "application/json", strings.NewReader(body))
	require.NoError(ts.t, err)
	defer resp.Body.Close()
	require.Equal(ts.t, http.StatusCreated, resp.StatusCode)

	var created CreateTableResponse
	require.NoError(ts.t, json.NewDecoder(resp.Body).Decode(&created))
	return created
}

func (ts *testServer) dial(tableID string) *websocket.Conn {
	ts.t.Helper()
	url := "ws" + strings.TrimPrefix(ts.server.URL, "http") + "/ws/table?table_id=" + tableID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(ts.t, err)
	ts.t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) OutboundFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame OutboundFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func sendFrame(t *testing.T, conn *websocket.Conn, frame InboundFrame) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(frame))
}

func TestCreateTableAndFetchState(t *testing.T) {
	ts := newTestServer(t, nil)

	created := ts.createTable(`{"player_count":3,"player_time_ms":90000}`)
	require.NotNil(t, created.View)
	assert.True(t, created.Table.Started)
	assert.Len(t, created.View.Players, 3)
	assert.Equal(t, "01:30", created.View.Players[0].TimeLabel)

	resp, err := http.Get(ts.server.URL + "/api/tables/" + created.Table.TableID + "/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var v view.SessionView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	assert.Equal(t, created.View.SessionID, v.SessionID)
}

func TestCreateIdleTable(t *testing.T) {
	ts := newTestServer(t, nil)

	created := ts.createTable("")
	assert.Nil(t, created.View)
	assert.False(t, created.Table.Started)

	resp, err := http.Get(ts.server.URL + "/api/tables/" + created.Table.TableID + "/state")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCreateTableRejectsBadSettings(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, body := range []string{`{"player_count":0,"player_time_ms":1000}`, `{"player_count":7,"player_time_ms":1000}`, `{`} {
		resp, err := http.Post(ts.server.URL+"/api/tables", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
	assert.Empty(t, ts.service.registry.List())
}

func TestListAndDeleteTables(t *testing.T) {
	ts := newTestServer(t, nil)
	a := ts.createTable("")
	ts.createTable(`{"player_count":2,"player_time_ms":1000}`)

	resp, err := http.Get(ts.server.URL + "/api/tables")
	require.NoError(t, err)
	var summaries []table.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summaries))
	resp.Body.Close()
	assert.Len(t, summaries, 2)

	req, err := http.NewRequest(http.MethodDelete, ts.server.URL+"/api/tables/"+a.Table.TableID, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(ts.server.URL + "/api/tables/" + a.Table.TableID + "/state")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(ts.server.URL + "/api/tables/not-a-uuid/state")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebSocketCommands(t *testing.T) {
	ts := newTestServer(t, nil)
	created := ts.createTable(`{"player_count":2,"player_time_ms":60000}`)

	conn := ts.dial(created.Table.TableID)
	watcher := ts.dial(created.Table.TableID)

	initial := readFrame(t, conn)
	require.Equal(t, FrameView, initial.Type)
	require.NotNil(t, initial.Data)
	assert.Nil(t, initial.Data.ActivePlayerID)
	readFrame(t, watcher)

	sendFrame(t, conn, InboundFrame{Type: FrameTap, PlayerID: 2})
	frame := readFrame(t, conn)
	require.Equal(t, FrameView, frame.Type)
	require.NotNil(t, frame.Data.ActivePlayerID)
	assert.Equal(t, 2, *frame.Data.ActivePlayerID)

	// every client on the table sees the change
	other := readFrame(t, watcher)
	require.NotNil(t, other.Data.ActivePlayerID)
	assert.Equal(t, 2, *other.Data.ActivePlayerID)

	sendFrame(t, conn, InboundFrame{Type: FrameTogglePause})
	frame = readFrame(t, conn)
	assert.True(t, frame.Data.IsPaused)

	sendFrame(t, conn, InboundFrame{Type: FrameKnockOut, PlayerID: 1})
	frame = readFrame(t, conn)
	assert.Equal(t, FrameError, frame.Type)
	assert.Contains(t, frame.Message, "confirmation")

	sendFrame(t, conn, InboundFrame{Type: FrameKnockOut, PlayerID: 1, Confirmed: true})
	frame = readFrame(t, conn)
	require.Equal(t, FrameView, frame.Type)
	assert.True(t, frame.Data.Players[0].IsOut)
	assert.Equal(t, int64(120_000), frame.Data.Players[1].TimeRemainingMs)
}

func TestWebSocketErrors(t *testing.T) {
	ts := newTestServer(t, nil)
	created := ts.createTable("")

	conn := ts.dial(created.Table.TableID)

	sendFrame(t, conn, InboundFrame{Type: FrameTap, PlayerID: 1})
	frame := readFrame(t, conn)
	assert.Equal(t, FrameError, frame.Type)
	assert.Contains(t, frame.Message, "start")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	frame = readFrame(t, conn)
	assert.Equal(t, FrameError, frame.Type)

	sendFrame(t, conn, InboundFrame{Type: "shuffle"})
	frame = readFrame(t, conn)
	assert.Equal(t, FrameError, frame.Type)
	assert.Contains(t, frame.Message, "unknown frame type")

	sendFrame(t, conn, InboundFrame{Type: FrameStart, PlayerCount: 2, PlayerTimeMs: 1000})
	frame = readFrame(t, conn)
	require.Equal(t, FrameView, frame.Type)
	assert.Len(t, frame.Data.Players, 2)
}

func TestWebSocketRejectsUnknownTable(t *testing.T) {
	ts := newTestServer(t, nil)

	url := "ws" + strings.TrimPrefix(ts.server.URL, "http") + "/ws/table?table_id=" + uuid.NewString()
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHistoryEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, err := http.Get(ts.server.URL + "/api/history")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	reader := &fakeHistory{games: []history.GameRecord{{SessionID: uuid.New(), PlayerCount: 4, LastPlayerID: 3}}}
	ts = newTestServer(t, reader)

	resp, err = http.Get(ts.server.URL + "/api/history?limit=5000")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(maxHistoryLimit), reader.limit.Load())

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	var games []history.GameRecord
	require.NoError(t, json.Unmarshal(buf.Bytes(), &games))
	require.Len(t, games, 1)
	assert.Equal(t, 3, games[0].LastPlayerID)

	resp, err = http.Get(ts.server.URL + "/api/history?limit=zero")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
