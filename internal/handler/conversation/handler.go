package conversation

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/edu-agent/internal/model/chat"
	chatService "github.com/zhouzirui/edu-agent/internal/service/chat"
	"github.com/zhouzirui/edu-agent/pkg/utils"
)

// Handler 对话存储的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
}

// New 创建对话处理器
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes 注册对话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/conversations", h.handleList)
	r.Post("/conversations", h.handleCreate)
	r.Get("/conversations/{conversationID}", h.handleGet)
	r.Put("/conversations/{conversationID}", h.handleUpdate)
	r.Delete("/conversations/{conversationID}", h.handleDelete)
}

// handleList 列出对话摘要，读取失败时返回空列表
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.chatSvc.List(r.Context())
	if err != nil {
		log.Printf("[conversation] list failed: %v", err)
		summaries = []chat.Summary{}
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"conversations": summaries})
}

// handleCreate 创建新对话
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title    string         `json:"title"`
		Messages []chat.Message `json:"messages"`
	}
	if err := decodeBody(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conv, err := h.chatSvc.Create(r.Context(), payload.Title, payload.Messages)
	if err != nil {
		respondServiceError(w, "create", err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, conv)
}

// handleGet 获取对话详情
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	conv, err := h.chatSvc.Get(r.Context(), chi.URLParam(r, "conversationID"))
	if err != nil {
		respondServiceError(w, "get", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, conv)
}

// handleUpdate 更新对话消息或标题，updated_at 由服务端重新生成
func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Messages *[]chat.Message `json:"messages"`
		Title    *string         `json:"title"`
	}
	if err := decodeBody(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	update := chatService.Update{Messages: payload.Messages, Title: payload.Title}
	if err := h.chatSvc.Update(r.Context(), chi.URLParam(r, "conversationID"), update); err != nil {
		respondServiceError(w, "update", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleDelete 删除对话
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.Delete(r.Context(), chi.URLParam(r, "conversationID")); err != nil {
		respondServiceError(w, "delete", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// decodeBody 解析JSON请求体，空请求体视为空对象
func decodeBody(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func respondServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, chatService.ErrConversationNotFound):
		utils.RespondError(w, http.StatusNotFound, "对话不存在")
	case errors.Is(err, chatService.ErrInvalidMessage):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("[conversation] %s failed: %v", op, err)
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}
