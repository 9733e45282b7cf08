package ask

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/edu-agent/pkg/utils"
)

// Answerer 生成问题的回答
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// Handler 问答接口的HTTP处理器
type Handler struct {
	answers Answerer
	now     func() time.Time
}

// New 创建问答处理器
func New(answers Answerer) *Handler {
	return &Handler{answers: answers, now: time.Now}
}

// RegisterRoutes 注册问答路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/ask", h.handleAsk)
}

type askResponse struct {
	Success   bool       `json:"success"`
	Answer    string     `json:"answer,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Question  string     `json:"question,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// handleAsk 回答单个问题
func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Question *string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Question == nil {
		utils.RespondJSON(w, http.StatusBadRequest, askResponse{Error: "缺少问题参数"})
		return
	}

	question := strings.TrimSpace(*payload.Question)
	if question == "" {
		utils.RespondJSON(w, http.StatusBadRequest, askResponse{Error: "问题不能为空"})
		return
	}

	answer, err := h.answers.Answer(r.Context(), question)
	if err != nil {
		log.Printf("[ask] answering failed: %v", err)
		utils.RespondJSON(w, http.StatusInternalServerError, askResponse{Error: "服务器内部错误: " + err.Error()})
		return
	}

	log.Printf("[ask] question=%q answer_len=%d", truncate(question, 50), len([]rune(answer)))
	ts := h.now().UTC()
	utils.RespondJSON(w, http.StatusOK, askResponse{
		Success:   true,
		Answer:    answer,
		Timestamp: &ts,
		Question:  question,
	})
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
