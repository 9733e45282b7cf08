package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/edu-agent/internal/handler/ask"
	"github.com/zhouzirui/edu-agent/internal/handler/conversation"
	"github.com/zhouzirui/edu-agent/internal/handler/system"
	middlewarePkg "github.com/zhouzirui/edu-agent/internal/middleware"
	answerService "github.com/zhouzirui/edu-agent/internal/service/answer"
	chatService "github.com/zhouzirui/edu-agent/internal/service/chat"
	"github.com/zhouzirui/edu-agent/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(chatSvc *chatService.Service, answerSvc *answerService.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	conversationHandler := conversation.New(chatSvc)
	askHandler := ask.New(answerSvc)
	systemHandler := system.New(answerSvc)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "页面未找到"})
	})

	r.Route("/api", func(api chi.Router) {
		conversationHandler.RegisterRoutes(api)
		askHandler.RegisterRoutes(api)
		systemHandler.RegisterRoutes(api)
	})

	return r
}
