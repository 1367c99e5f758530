package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	lexiconHandler "github.com/zhouzirui/z-companion/backend/internal/handler/lexicon"
	"github.com/zhouzirui/z-companion/backend/internal/handler/persona"
	"github.com/zhouzirui/z-companion/backend/internal/handler/session"
	"github.com/zhouzirui/z-companion/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/z-companion/backend/internal/middleware"
	"github.com/zhouzirui/z-companion/backend/internal/model/lexicon"
	personaModel "github.com/zhouzirui/z-companion/backend/internal/model/persona"
	"github.com/zhouzirui/z-companion/backend/internal/service/render"
	sessionService "github.com/zhouzirui/z-companion/backend/internal/service/session"
	"github.com/zhouzirui/z-companion/backend/internal/service/speech"
	applog "github.com/zhouzirui/z-companion/backend/pkg/log"
	"github.com/zhouzirui/z-companion/backend/pkg/utils"
)

// Dependencies 是路由需要的全部服务。
type Dependencies struct {
	Rules    *lexicon.Store
	Personas personaModel.Store
	Sessions *sessionService.Service
	Render   *render.Service
	// Speech 可为 nil，此时轮次请求中的 speak 返回 audioError。
	Speech speech.Synthesizer
	Logger logrus.FieldLogger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = applog.Discard()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	turns := session.NewTurnRunner(deps.Sessions, deps.Render, deps.Speech, logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"llm":    deps.Render.LLMEnabled(),
			"speech": deps.Speech != nil,
		})
	})

	r.Route("/api", func(api chi.Router) {
		persona.New(deps.Personas).RegisterRoutes(api)
		session.New(deps.Sessions, turns, logger).RegisterRoutes(api)
		lexiconHandler.New(deps.Rules, logger).RegisterRoutes(api)
		ws.New(deps.Sessions, turns, logger).RegisterRoutes(api)
	})

	return r
}
