// Package gateway is the client-facing surface: WebSocket fan-out of game
// events and state snapshots per game, plus the HTTP endpoints for guest
// auth, game creation, joining and watching.
package gateway

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/wordparty/catchphrase/internal/models"
)

// ConnectionManager holds the WebSocket connection pools, one per game.
type ConnectionManager struct {
	gameConnections map[string]map[*Connection]bool
	mu              sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan broadcastMessage

	// onMessage is invoked for every client frame. Set once before any
	// connection is accepted.
	onMessage func(conn *Connection, data []byte)
}

// Connection is one client's WebSocket attached to a game.
type Connection struct {
	ID     string
	Player models.Player
	GameID string

	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	manager *ConnectionManager

	connectedAt time.Time
}

// ConnectionConfig holds WebSocket tuning knobs.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns the defaults used in production.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// broadcastMessage targets one game's pool. render produces the frame for a
// given connection, which lets snapshots differ per viewer; events render
// the same bytes for everyone.
type broadcastMessage struct {
	gameID string
	render func(*Connection) []byte
}

// NewConnectionManager creates a manager. handler receives every inbound
// client frame.
func NewConnectionManager(config ConnectionConfig, handler func(conn *Connection, data []byte)) *ConnectionManager {
	return &ConnectionManager{
		gameConnections: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan broadcastMessage, 256),
		onMessage:   handler,
	}
}

// Start processes broadcasts until the context ends.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// Upgrade turns an HTTP request into a registered game connection and
// starts its pumps.
func (cm *ConnectionManager) Upgrade(w http.ResponseWriter, r *http.Request, player models.Player, gameID string) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Player:      player,
		GameID:      gameID,
		conn:        conn,
		send:        make(chan []byte, 64),
		done:        make(chan struct{}),
		manager:     cm,
		connectedAt: time.Now(),
	}
	cm.register(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("uid", player.UID).
		Str("game_id", gameID).
		Msg("websocket connection established")
	return connection, nil
}

func (cm *ConnectionManager) register(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.gameConnections[conn.GameID] == nil {
		cm.gameConnections[conn.GameID] = make(map[*Connection]bool)
	}
	cm.gameConnections[conn.GameID][conn] = true
}

func (cm *ConnectionManager) unregister(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if pool, ok := cm.gameConnections[conn.GameID]; ok {
		if _, ok := pool[conn]; ok {
			delete(pool, conn)
			// send stays open: broadcast and read-pump goroutines may
			// still queue frames for a connection that just dropped.
			// The write pump exits on done and the channel is dropped
			// with the connection.
			close(conn.done)
			if len(pool) == 0 {
				delete(cm.gameConnections, conn.GameID)
			}
			log.Info().
				Str("connection_id", conn.ID).
				Str("uid", conn.Player.UID).
				Str("game_id", conn.GameID).
				Msg("websocket connection closed")
		}
	}
}

// broadcast queues a message; a full queue drops it, since every client
// that cares re-syncs from the next snapshot anyway.
func (cm *ConnectionManager) broadcast(msg broadcastMessage) {
	select {
	case cm.broadcastCh <- msg:
	default:
		log.Warn().Str("game_id", msg.gameID).Msg("broadcast queue full, dropping message")
	}
}

func (cm *ConnectionManager) handleBroadcast(message broadcastMessage) {
	cm.mu.RLock()
	pool, ok := cm.gameConnections[message.gameID]
	if !ok {
		cm.mu.RUnlock()
		return
	}
	targets := make([]*Connection, 0, len(pool))
	for conn := range pool {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range targets {
		frame := message.render(conn)
		if frame == nil {
			continue
		}
		select {
		case conn.send <- frame:
		default:
			// Slow consumer; drop the connection, it can reconnect.
			log.Warn().
				Str("connection_id", conn.ID).
				Str("uid", conn.Player.UID).
				Msg("send buffer full, closing connection")
			cm.unregister(conn)
			conn.conn.Close()
		}
	}
}

// ConnectionCount returns the number of live connections for a game.
func (cm *ConnectionManager) ConnectionCount(gameID string) int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.gameConnections[gameID])
}

// Send queues a frame for one connection.
func (cm *ConnectionManager) Send(conn *Connection, frame []byte) {
	select {
	case conn.send <- frame:
	default:
		log.Warn().Str("connection_id", conn.ID).Msg("send buffer full, dropping frame")
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.manager.unregister(c)
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.manager.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.manager.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("unexpected websocket close")
			}
			break
		}
		if c.manager.onMessage != nil {
			c.manager.onMessage(c, message)
		}
		c.conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	}
}
