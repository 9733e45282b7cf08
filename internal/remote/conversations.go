package remote

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/zhouzirui/edu-agent/internal/model/chat"
)

// CreateConversation creates an empty conversation and returns its id.
func (c *Client) CreateConversation(ctx context.Context, title string) (string, error) {
	body := struct {
		Title    string         `json:"title"`
		Messages []chat.Message `json:"messages"`
	}{Title: title, Messages: []chat.Message{}}

	var created chat.Conversation
	if err := c.do(ctx, http.MethodPost, "/api/conversations", body, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", &StatusError{Code: http.StatusCreated, Message: "response carried no conversation id"}
	}
	return created.ID, nil
}

// ListConversations returns the stored conversations, most recently updated first.
func (c *Client) ListConversations(ctx context.Context) ([]chat.Summary, error) {
	var payload struct {
		Conversations []chat.Summary `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/conversations", nil, &payload); err != nil {
		return nil, err
	}
	if payload.Conversations == nil {
		return []chat.Summary{}, nil
	}
	return payload.Conversations, nil
}

// GetConversation fetches one conversation with its full message history.
func (c *Client) GetConversation(ctx context.Context, id string) (chat.Conversation, error) {
	var conv chat.Conversation
	if err := c.do(ctx, http.MethodGet, "/api/conversations/"+url.PathEscape(id), nil, &conv); err != nil {
		return chat.Conversation{}, err
	}
	if conv.ID == "" {
		conv.ID = id
	}
	return conv, nil
}

// UpdateConversation replaces the stored message sequence.
func (c *Client) UpdateConversation(ctx context.Context, id string, messages []chat.Message, updatedAt time.Time) error {
	if messages == nil {
		messages = []chat.Message{}
	}
	body := struct {
		Messages  []chat.Message `json:"messages"`
		UpdatedAt time.Time      `json:"updated_at"`
	}{Messages: messages, UpdatedAt: updatedAt}

	return c.do(ctx, http.MethodPut, "/api/conversations/"+url.PathEscape(id), body, nil)
}

// DeleteConversation removes a conversation.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/conversations/"+url.PathEscape(id), nil, nil)
}
