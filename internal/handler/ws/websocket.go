// Package ws 通过 WebSocket 提供逐轮交互，适合机器人端长连接。
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	sessionHandler "github.com/zhouzirui/z-companion/backend/internal/handler/session"
	sessionService "github.com/zhouzirui/z-companion/backend/internal/service/session"
	applog "github.com/zhouzirui/z-companion/backend/pkg/log"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 54 * time.Second
	// turnTimeout 限制单轮处理时长，处理期间读循环不读取 pong
	turnTimeout = 45 * time.Second
)

// 消息类型
const (
	TypeText      = "text"
	TypeDecision  = "decision"
	TypeConnected = "connected"
	TypeError     = "error"
)

// Handler WebSocket交互处理器
type Handler struct {
	sessions *sessionService.Service
	turns    *sessionHandler.TurnRunner
	validate *validator.Validate
	upgrader websocket.Upgrader
	logger   logrus.FieldLogger

	readTimeout time.Duration
	turnTimeout time.Duration
}

// New 创建WebSocket处理器
func New(sessions *sessionService.Service, turns *sessionHandler.TurnRunner, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Handler{
		sessions: sessions,
		turns:    turns,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:      logger.WithField("component", "ws"),
		readTimeout: readTimeout,
		turnTimeout: turnTimeout,
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
}

// OutgoingMessage 是服务端推送的消息。
type OutgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// conn 包装连接，gorilla 的连接不允许并发写。
type conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func (c *conn) send(msg OutgoingMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	msg.Timestamp = time.Now().Unix()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(msg)
}

func (c *conn) ping() error {
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, sessionService.ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("upgrade failed")
		return
	}
	defer wsConn.Close()
	c := &conn{ws: wsConn}

	logger := h.logger.WithField("session", sessionID)
	logger.Info("connection opened")

	ctx, cancel := context.WithCancel(r.Context())

	_ = wsConn.SetReadDeadline(time.Now().Add(h.readTimeout))
	wsConn.SetPongHandler(func(string) error {
		return wsConn.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.pingLoop(ctx, c)
	}()
	defer wg.Wait()
	defer cancel()

	_ = c.send(OutgoingMessage{
		Type:      TypeConnected,
		SessionID: sessionID,
		Data:      map[string]string{"persona": session.PersonaID},
	})

	for {
		var msg inboundMessage
		if err := wsConn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.WithError(err).Warn("read error")
			}
			logger.Info("connection closed")
			return
		}
		_ = wsConn.SetReadDeadline(time.Now().Add(h.readTimeout))

		if msg.SessionID != "" && msg.SessionID != sessionID {
			h.sendError(c, "session mismatch")
			continue
		}
		h.handleMessage(ctx, c, sessionID, &msg)
	}
}

func (h *Handler) handleMessage(ctx context.Context, c *conn, sessionID string, msg *inboundMessage) {
	switch msg.Type {
	case TypeText:
		var payload sessionHandler.TurnRequest
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			h.sendError(c, "invalid text payload")
			return
		}
		if err := h.validate.Struct(payload); err != nil {
			h.sendError(c, err.Error())
			return
		}

		// 本轮处理期间读超时顺延到 turnTimeout 之后，结束后恢复
		turnCtx, cancel := context.WithTimeout(ctx, h.turnTimeout)
		defer cancel()
		_ = c.ws.SetReadDeadline(time.Now().Add(h.turnTimeout + h.readTimeout))
		result, err := h.turns.Run(turnCtx, sessionID, payload)
		_ = c.ws.SetReadDeadline(time.Now().Add(h.readTimeout))
		if err != nil {
			h.logger.WithError(err).WithField("session", sessionID).Error("turn failed")
			h.sendError(c, "turn failed")
			return
		}
		if err := c.send(OutgoingMessage{Type: TypeDecision, SessionID: sessionID, Data: result}); err != nil {
			h.logger.WithError(err).Warn("write decision failed")
		}
	default:
		h.sendError(c, "unsupported message type: "+msg.Type)
	}
}

func (h *Handler) sendError(c *conn, message string) {
	if err := c.send(OutgoingMessage{Type: TypeError, Data: map[string]string{"message": message}}); err != nil {
		h.logger.WithError(err).Warn("write error failed")
	}
}

// pingLoop 定期发送ping消息
func (h *Handler) pingLoop(ctx context.Context, c *conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}
