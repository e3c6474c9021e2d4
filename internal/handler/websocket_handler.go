// internal/handler/websocket_handler.go
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"haptic-service/internal/model"
	"haptic-service/internal/service"
	"haptic-service/internal/utils"
	"haptic-service/pkg/haptic"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// WebSocketHandler streams telemetry and loop events, and accepts forces
// from the simulation host
type WebSocketHandler struct {
	upgrader       websocket.Upgrader
	connections    *ConnectionManager
	sessionService *service.SessionService
	period         time.Duration
	logger         *utils.ServiceLogger

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewWebSocketHandler creates a new WebSocket handler and starts the
// telemetry and event broadcasters
func NewWebSocketHandler(
	sessionService *service.SessionService,
	period time.Duration,
	allowedOrigins []string,
	logger *zap.Logger,
) *WebSocketHandler {
	if period <= 0 {
		period = 20 * time.Millisecond
	}

	handler := &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		connections:    NewConnectionManager(),
		sessionService: sessionService,
		period:         period,
		logger:         utils.NewServiceLogger(logger, "websocket-handler"),
		done:           make(chan struct{}),
	}

	events, unsubscribe := sessionService.Events().Subscribe()

	handler.wg.Add(2)
	go handler.broadcastTelemetry()
	go handler.broadcastEvents(events, unsubscribe)

	return handler
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/telemetry", h.HandleTelemetryConnection)
	router.GET("/events", h.HandleEventConnection)
}

// HandleTelemetryConnection streams telemetry at the configured period.
// The client may send forces, which are published to the loop and answered
// with the resulting articulations.
func (h *WebSocketHandler) HandleTelemetryConnection(c *gin.Context) {
	h.accept(c, ClientTelemetry)
}

// HandleEventConnection streams loop events
func (h *WebSocketHandler) HandleEventConnection(c *gin.Context) {
	h.accept(c, ClientEvents)
}

// Close stops the broadcasters and disconnects every client
func (h *WebSocketHandler) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.wg.Wait()
		h.connections.Close()
	})
}

// GetConnectionStats returns connection statistics
func (h *WebSocketHandler) GetConnectionStats() *ConnectionStats {
	return h.connections.GetStats()
}

func (h *WebSocketHandler) accept(c *gin.Context, kind string) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.New().String(),
		Connection:  conn,
		Send:        make(chan []byte, 256),
		Type:        kind,
		UserAgent:   c.Request.UserAgent(),
		RemoteAddr:  c.Request.RemoteAddr,
		ConnectedAt: time.Now(),
	}

	h.connections.Register(client)
	h.logger.Info("WebSocket client connected",
		zap.String("client_id", client.ID),
		zap.String("type", kind),
		zap.String("remote_addr", client.RemoteAddr),
	)

	go h.handleClientRead(client)
	go h.handleClientWrite(client)
}

// handleClientRead handles reading messages from WebSocket client
func (h *WebSocketHandler) handleClientRead(client *Client) {
	defer func() {
		h.connections.Unregister(client)
		client.Connection.Close()
		h.logger.Info("WebSocket client disconnected", zap.String("client_id", client.ID))
	}()

	client.Connection.SetReadDeadline(time.Now().Add(pongWait))
	client.Connection.SetPongHandler(func(string) error {
		client.Connection.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, messageBytes, err := client.Connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket read error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
			}
			return
		}

		var message ClientMessage
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			h.sendError(client, "invalid message: "+err.Error())
			continue
		}

		h.handleClientMessage(client, &message)
	}
}

// handleClientWrite handles writing messages to WebSocket client
func (h *WebSocketHandler) handleClientWrite(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Connection.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Connection.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Error("WebSocket write error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
				return
			}

		case <-ticker.C:
			client.Connection.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) handleClientMessage(client *Client, message *ClientMessage) {
	kind := message.Type
	if kind == "" && message.Forces != nil {
		kind = "forces"
	}

	switch kind {
	case "forces":
		if client.Type != ClientTelemetry {
			h.sendError(client, "forces are only accepted on the telemetry stream")
			return
		}
		if message.Forces == nil {
			h.sendError(client, "forces are required")
			return
		}
		if err := h.sessionService.PushForces(haptic.Forces(*message.Forces)); err != nil {
			h.sendError(client, err.Error())
			return
		}
		articulations, err := h.sessionService.UpdatePosition()
		if err != nil {
			h.sendError(client, err.Error())
			return
		}
		h.sendMessage(client, &WebSocketMessage{Type: "articulations", Data: articulations, Timestamp: time.Now()})

	case "signal":
		signal, err := h.sessionService.Signal(message.Signal)
		if err != nil {
			h.sendError(client, err.Error())
			return
		}
		h.sendMessage(client, &WebSocketMessage{
			Type:      "signal_applied",
			Data:      map[string]interface{}{"signal": signal.String()},
			Timestamp: time.Now(),
		})

	case "ping":
		h.sendMessage(client, &WebSocketMessage{Type: "pong", Timestamp: time.Now()})

	default:
		h.sendError(client, "unknown message type: "+kind)
	}
}

func (h *WebSocketHandler) broadcastTelemetry() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.period)
	defer ticker.Stop()

	var lastVersion uint64
	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
		}

		if len(h.connections.GetClients(ClientTelemetry)) == 0 {
			continue
		}

		telemetry, err := h.sessionService.Telemetry()
		if errors.Is(err, service.ErrNotOpened) || !telemetry.Valid {
			continue
		}
		// Nothing new since the last tick.
		if telemetry.Version == lastVersion {
			continue
		}
		lastVersion = telemetry.Version

		h.broadcast(ClientTelemetry, &WebSocketMessage{
			Type:      "telemetry",
			Data:      telemetry,
			Timestamp: telemetry.Timestamp,
		})
	}
}

func (h *WebSocketHandler) broadcastEvents(events <-chan *model.LoopEvent, unsubscribe func()) {
	defer h.wg.Done()
	defer unsubscribe()

	for {
		select {
		case <-h.done:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			h.broadcast(ClientEvents, &WebSocketMessage{
				Type:      "loop_event",
				Data:      event,
				Timestamp: event.Timestamp,
			})
		}
	}
}

func (h *WebSocketHandler) broadcast(kind string, message *WebSocketMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}

	for _, client := range h.connections.Broadcast(kind, messageBytes) {
		h.logger.Debug("Client send channel full during broadcast",
			zap.String("client_id", client.ID),
		)
	}
}

// sendMessage sends a message to a client
func (h *WebSocketHandler) sendMessage(client *Client, message *WebSocketMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal WebSocket message", zap.Error(err))
		return
	}

	if !h.connections.Send(client, messageBytes) {
		h.logger.Warn("Client send channel full, dropping message",
			zap.String("client_id", client.ID),
		)
	}
}

// sendError sends an error message to a client
func (h *WebSocketHandler) sendError(client *Client, errorMsg string) {
	h.sendMessage(client, &WebSocketMessage{
		Type:      "error",
		Data:      map[string]interface{}{"error": errorMsg},
		Timestamp: time.Now(),
	})
}

// originChecker accepts requests without an Origin header, "*", or an
// origin from the allow list
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}
