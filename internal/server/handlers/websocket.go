// internal/server/handlers/websocket.go

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"orcast/internal/domain/agent"
	"orcast/internal/domain/forecast"
	"orcast/internal/domain/lifecycle"
	"orcast/internal/service/controls"
)

// WebSocketConfig contains configuration for WebSocket connections
type WebSocketConfig struct {
	// Time allowed to write a message to the peer
	WriteWait time.Duration

	// Time allowed to read the next pong message from the peer
	PongWait time.Duration

	// Send pings to peer with this period
	PingPeriod time.Duration

	// Maximum message size allowed from peer
	MaxMessageSize int64

	// Outgoing frames buffered per client before frames are dropped
	SendBuffer int
}

// DefaultWebSocketConfig returns the default WebSocket configuration
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     (60 * time.Second * 9) / 10,
		MaxMessageSize: 64 * 1024,
		SendBuffer:     64,
	}
}

// upgrader is used to upgrade HTTP connections to WebSocket
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origins are enforced by the CORS middleware
		return true
	},
}

// Frame is one server push on the layer socket
type Frame struct {
	Type     string           `json:"type"`
	Layer    interface{}      `json:"layer,omitempty"`
	Filter   interface{}      `json:"filter,omitempty"`
	Message  *agent.Message   `json:"message,omitempty"`
	Messages []agent.Message  `json:"messages,omitempty"`
	Event    *lifecycle.Event `json:"event,omitempty"`
	Error    string           `json:"error,omitempty"`
	Time     time.Time        `json:"time"`
}

// Frame types
const (
	FrameSnapshot = "snapshot"
	FrameLayer    = "layer"
	FrameAgent    = "agent_message"
	FrameEvent    = "event"
	FrameError    = "error"
)

// LayerSocket streams layer commits and agent messages to map clients and
// accepts control actions from them
type LayerSocket struct {
	eventBus lifecycle.Bus
	layers   LayerSource
	panel    agent.Panel
	controls Controller
	logger   *zap.Logger
	config   WebSocketConfig
}

// NewLayerSocket creates the /ws/layer handler
func NewLayerSocket(
	eventBus lifecycle.Bus,
	layers LayerSource,
	panel agent.Panel,
	c Controller,
	logger *zap.Logger,
	config WebSocketConfig,
) *LayerSocket {
	return &LayerSocket{
		eventBus: eventBus,
		layers:   layers,
		panel:    panel,
		controls: c,
		logger:   logger,
		config:   config,
	}
}

// WebSocketClient represents a connected WebSocket client
type WebSocketClient struct {
	socket        *LayerSocket
	conn          *websocket.Conn
	send          chan []byte
	done          chan struct{}
	closeOnce     sync.Once
	unsubscribers []func()
}

// ServeHTTP upgrades the request and starts the client pumps
func (s *LayerSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade to websocket", zap.Error(err))
		return
	}

	client := &WebSocketClient{
		socket: s,
		conn:   conn,
		send:   make(chan []byte, s.config.SendBuffer),
		done:   make(chan struct{}),
	}

	// Snapshot first so the client never misses the layer it subscribes after
	client.push(Frame{
		Type:     FrameSnapshot,
		Layer:    s.layers.Current(),
		Filter:   s.controls.State(),
		Messages: s.panel.Messages(),
	})

	unsubscribe, err := s.eventBus.Subscribe(client.handleEvent)
	if err != nil {
		s.logger.Error("failed to subscribe websocket client", zap.Error(err))
		client.closeConnection()
		return
	}
	client.unsubscribers = append(client.unsubscribers, unsubscribe)
	client.unsubscribers = append(client.unsubscribers, s.panel.Watch(func(m agent.Message) {
		client.push(Frame{Type: FrameAgent, Message: &m})
	}))

	go client.writePump()
	go client.readPump()

	s.logger.Debug("websocket client connected", zap.String("remote", r.RemoteAddr))
}

func (c *WebSocketClient) handleEvent(e lifecycle.Event) {
	if e.Type == lifecycle.RenderCommitted {
		c.push(Frame{Type: FrameLayer, Layer: c.socket.layers.Current()})
		return
	}
	c.push(Frame{Type: FrameEvent, Event: &e})
}

// push queues a frame without blocking the publisher; slow clients lose frames
func (c *WebSocketClient) push(f Frame) {
	if f.Time.IsZero() {
		f.Time = time.Now()
	}
	data, err := json.Marshal(f)
	if err != nil {
		c.socket.logger.Error("failed to marshal websocket frame", zap.String("type", f.Type), zap.Error(err))
		return
	}

	select {
	case <-c.done:
	case c.send <- data:
	default:
		c.socket.logger.Warn("websocket client too slow, dropping frame", zap.String("type", f.Type))
	}
}

// readPump reads control actions from the client
func (c *WebSocketClient) readPump() {
	config := c.socket.config

	defer c.closeConnection()

	c.conn.SetReadLimit(config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.socket.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		c.processIncomingMessage(message)
	}
}

// writePump pumps queued frames to the WebSocket connection
func (c *WebSocketClient) writePump() {
	config := c.socket.config
	ticker := time.NewTicker(config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// processIncomingMessage applies a control action sent by the client. The
// resulting layer arrives through the render commit push.
func (c *WebSocketClient) processIncomingMessage(message []byte) {
	var action controls.Action
	if err := json.Unmarshal(message, &action); err != nil || action.Type == "" {
		c.push(Frame{Type: FrameError, Error: "expected a control action"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if _, err := c.socket.controls.Apply(ctx, action); err != nil && !errors.Is(err, forecast.ErrSuperseded) {
		c.push(Frame{Type: FrameError, Error: err.Error()})
	}
}

// closeConnection detaches the client and closes the connection once
func (c *WebSocketClient) closeConnection() {
	c.closeOnce.Do(func() {
		for _, unsubscribe := range c.unsubscribers {
			unsubscribe()
		}
		close(c.done)
		c.conn.Close()
		c.socket.logger.Debug("websocket client disconnected")
	})
}
