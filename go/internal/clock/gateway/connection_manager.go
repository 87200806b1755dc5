package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// MessageHandler handles a frame received from a client connection.
type MessageHandler func(conn *Connection, message []byte)

// ConnectionManager manages WebSocket connections for table clocks
type ConnectionManager struct {
	// Connection pools organized by table ID
	tableConnections map[uuid.UUID]map[*Connection]bool
	mu               sync.RWMutex

	upgrader  websocket.Upgrader
	config    ConnectionConfig
	onMessage MessageHandler

	broadcastCh chan BroadcastMessage
}

// Connection represents a WebSocket connection to a client watching a table
type Connection struct {
	ID      string
	TableID uuid.UUID
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage is a frame queued for every connection on a table
type BroadcastMessage struct {
	TableID uuid.UUID
	Frame   OutboundFrame
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig, onMessage MessageHandler) *ConnectionManager {
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = 256
	}
	return &ConnectionManager{
		tableConnections: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		onMessage:   onMessage,
		broadcastCh: make(chan BroadcastMessage, 1000),
	}
}

// Start processes broadcast messages until ctx is cancelled
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and attaches it to a table
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, tableID uuid.UUID) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		TableID:     tableID,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("table_id", tableID.String()).
		Msg("WebSocket connection established")

	return connection, nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.tableConnections[conn.TableID] == nil {
		cm.tableConnections[conn.TableID] = make(map[*Connection]bool)
	}
	cm.tableConnections[conn.TableID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("table_id", conn.TableID.String()).
		Int("total_connections", len(cm.tableConnections[conn.TableID])).
		Msg("connection registered")
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	connections, exists := cm.tableConnections[conn.TableID]
	if !exists || !connections[conn] {
		return
	}
	delete(connections, conn)
	close(conn.Send)

	if len(connections) == 0 {
		delete(cm.tableConnections, conn.TableID)
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("table_id", conn.TableID.String()).
		Msg("connection unregistered")
}

// BroadcastToTable queues a frame for every connection on the table. It never
// blocks, so it is safe to call from a session's view callback.
func (cm *ConnectionManager) BroadcastToTable(tableID uuid.UUID, frame OutboundFrame) {
	select {
	case cm.broadcastCh <- BroadcastMessage{TableID: tableID, Frame: frame}:
	default:
		log.Warn().Str("table_id", tableID.String()).Msg("broadcast channel full, dropping message")
	}
}

// DisconnectTable closes every connection watching the table.
func (cm *ConnectionManager) DisconnectTable(tableID uuid.UUID) {
	cm.mu.RLock()
	var targets []*Connection
	for conn := range cm.tableConnections[tableID] {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range targets {
		cm.unregisterConnection(conn)
	}
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	data, err := json.Marshal(message.Frame)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal frame for broadcast")
		return
	}

	// Sends happen under the read lock so unregisterConnection cannot close a
	// Send channel mid-broadcast.
	var slow []*Connection
	cm.mu.RLock()
	connections := cm.tableConnections[message.TableID]
	for conn := range connections {
		select {
		case conn.Send <- data:
		default:
			slow = append(slow, conn)
		}
	}
	count := len(connections)
	cm.mu.RUnlock()

	for _, conn := range slow {
		log.Warn().
			Str("connection_id", conn.ID).
			Str("table_id", conn.TableID.String()).
			Msg("connection send buffer full, closing connection")
		cm.unregisterConnection(conn)
	}

	log.Trace().
		Str("frame_type", string(message.Frame.Type)).
		Str("table_id", message.TableID.String()).
		Int("connections", count).
		Msg("frame broadcasted")
}

// SendTo queues a frame for a single connection.
func (cm *ConnectionManager) SendTo(conn *Connection, frame OutboundFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal frame")
		return
	}

	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if !cm.tableConnections[conn.TableID][conn] {
		return
	}
	select {
	case conn.Send <- data:
	default:
		log.Warn().Str("connection_id", conn.ID).Msg("connection send buffer full, dropping frame")
	}
}

// ConnectionStats summarizes open connections.
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveTables     int            `json:"active_tables"`
	TableConnections map[string]int `json:"table_connections"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		ActiveTables:     len(cm.tableConnections),
		TableConnections: make(map[string]int, len(cm.tableConnections)),
	}
	for tableID, connections := range cm.tableConnections {
		stats.TotalConnections += len(connections)
		stats.TableConnections[tableID.String()] = len(connections)
	}
	return stats
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	var targets []*Connection
	for _, connections := range cm.tableConnections {
		for conn := range connections {
			targets = append(targets, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range targets {
		cm.unregisterConnection(conn)
	}
}

// writePump sends queued frames and pings to the client. It owns all writes
// on the socket.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump reads client frames and hands them to the manager's handler
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		if c.Manager.onMessage != nil {
			c.Manager.onMessage(c, message)
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
