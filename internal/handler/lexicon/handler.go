// Package lexicon 暴露规则库的只读视图以及热重载接口。
package lexicon

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/z-companion/backend/internal/model/lexicon"
	applog "github.com/zhouzirui/z-companion/backend/pkg/log"
	"github.com/zhouzirui/z-companion/backend/pkg/utils"
)

// Handler 规则库的HTTP处理器
type Handler struct {
	rules  *lexicon.Store
	logger logrus.FieldLogger
}

func New(rules *lexicon.Store, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Handler{rules: rules, logger: logger.WithField("component", "http")}
}

// RegisterRoutes 注册规则相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/vocabulary", h.handleVocabulary)
	r.Get("/commands", h.handleCommands)
	r.Post("/rules/reload", h.handleReload)
}

type vocabularyResponse struct {
	Vocabulary lexicon.Vocabulary          `json:"groups"`
	All        []string                    `json:"all"`
	Responses  map[lexicon.Intent][]string `json:"responses"`
}

type commandView struct {
	Command             lexicon.CommandID `json:"command"`
	Action              string            `json:"action"`
	Display             string            `json:"display"`
	RequiresSafetyCheck bool              `json:"requiresSafetyCheck"`
	Triggers            []string          `json:"triggers"`
}

func (h *Handler) handleVocabulary(w http.ResponseWriter, r *http.Request) {
	rules := h.rules.Current()
	responses := make(map[lexicon.Intent][]string, len(lexicon.IntentPriority))
	for _, intent := range lexicon.IntentPriority {
		responses[intent] = rules.ResponseVocabulary(intent)
	}
	utils.RespondJSON(w, http.StatusOK, vocabularyResponse{
		Vocabulary: rules.Vocabulary,
		All:        rules.FullVocabulary(),
		Responses:  responses,
	})
}

func (h *Handler) handleCommands(w http.ResponseWriter, r *http.Request) {
	rules := h.rules.Current()
	views := make([]commandView, 0, lexicon.CommandCount)
	for _, id := range lexicon.AllCommands() {
		profile, _ := rules.Command(id)
		views = append(views, commandView{
			Command:             id,
			Action:              profile.Action,
			Display:             profile.Display,
			RequiresSafetyCheck: profile.RequiresSafetyCheck,
			Triggers:            profile.Triggers,
		})
	}
	utils.RespondJSON(w, http.StatusOK, views)
}

// handleReload 重新读取规则文件。已有会话继续使用创建时的规则。
func (h *Handler) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := h.rules.Reload(); err != nil {
		h.logger.WithError(err).Warn("rule reload failed")
		utils.RespondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}
