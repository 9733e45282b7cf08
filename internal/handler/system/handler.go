package system

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/edu-agent/internal/service/answer"
	"github.com/zhouzirui/edu-agent/pkg/utils"
)

// Version 是对外报告的服务版本。
const Version = "1.0.0"

// ModeReporter 报告当前回答模式
type ModeReporter interface {
	Mode() answer.Mode
	KnowledgeBase() string
}

// Handler 系统状态与健康检查处理器
type Handler struct {
	modes ModeReporter
	now   func() time.Time
}

// New 创建系统处理器
func New(modes ModeReporter) *Handler {
	return &Handler{modes: modes, now: time.Now}
}

// RegisterRoutes 注册状态与健康检查路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/status", h.handleStatus)
	r.Get("/health", h.handleHealth)
}

func (h *Handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"system_status":  "online",
		"initialized":    true,
		"timestamp":      h.now().UTC(),
		"version":        Version,
		"mode":           h.modes.Mode(),
		"knowledge_base": h.modes.KnowledgeBase(),
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": h.now().UTC(),
	})
}
