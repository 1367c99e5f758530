// Package session 提供会话相关的 HTTP 接口。
package session

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/z-companion/backend/internal/analysis/pipeline"
	"github.com/zhouzirui/z-companion/backend/internal/model/chat"
	"github.com/zhouzirui/z-companion/backend/internal/model/scene"
	sessionService "github.com/zhouzirui/z-companion/backend/internal/service/session"
	applog "github.com/zhouzirui/z-companion/backend/pkg/log"
	"github.com/zhouzirui/z-companion/backend/pkg/utils"
)

// Handler 会话服务的HTTP处理器
type Handler struct {
	sessions *sessionService.Service
	turns    *TurnRunner
	validate *validator.Validate
	logger   logrus.FieldLogger
}

// New 创建会话处理器
func New(sessions *sessionService.Service, turns *TurnRunner, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Handler{
		sessions: sessions,
		turns:    turns,
		validate: validator.New(),
		logger:   logger.WithField("component", "http"),
	}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Route("/session/{sessionID}", func(r chi.Router) {
		r.Get("/", h.handleGetSession)
		r.Delete("/", h.handleCloseSession)
		r.Post("/turns", h.handleTurn)
		r.Get("/turns", h.handleTranscript)
	})
}

type createSessionRequest struct {
	PersonaID string `json:"personaId" validate:"omitempty,max=64"`
}

// TurnRequest 是一轮输入，Scene 可省略，Text 最多 500 个字符。
// Speak 为 true 且配置了语音合成时，回复附带音频。
type TurnRequest struct {
	Text  string          `json:"text" validate:"required,max=500"`
	Scene *scene.Snapshot `json:"scene,omitempty"`
	Speak bool            `json:"speak,omitempty"`
}

type sessionStateResponse struct {
	Session chat.Session   `json:"session"`
	State   pipeline.State `json:"state"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload createSessionRequest
	if r.ContentLength != 0 {
		if err := utils.DecodeJSON(r, &payload); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if err := h.validate.Struct(payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.sessions.CreateSession(r.Context(), payload.PersonaID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	state, err := h.sessions.State(r.Context(), sessionID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, sessionStateResponse{Session: session, State: state})
}

func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.CloseSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	var payload TurnRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.turns.Run(r.Context(), chi.URLParam(r, "sessionID"), payload)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	turns, err := h.sessions.LoadTranscript(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, turns)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sessionService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, sessionService.ErrPersonaNotFound), errors.Is(err, sessionService.ErrEmptyText):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.WithError(err).Error("session request failed")
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
