package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrAnswerFailed marks answers the service itself reported as unsuccessful.
var ErrAnswerFailed = errors.New("answer service reported failure")

// Status is the diagnostic view of the server.
type Status struct {
	SystemStatus  string `json:"system_status"`
	Mode          string `json:"mode"`
	Initialized   bool   `json:"initialized"`
	Version       string `json:"version"`
	KnowledgeBase string `json:"knowledge_base"`
}

// Ask sends a question to the answer service and returns the generated answer.
func (c *Client) Ask(ctx context.Context, question string) (string, error) {
	body := map[string]string{"question": question}

	var payload struct {
		Success bool   `json:"success"`
		Answer  string `json:"answer"`
		Error   string `json:"error"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/ask", body, &payload); err != nil {
		return "", err
	}
	if !payload.Success {
		if payload.Error == "" {
			payload.Error = "服务器返回错误"
		}
		return "", fmt.Errorf("%w: %s", ErrAnswerFailed, payload.Error)
	}
	return payload.Answer, nil
}

// Status reports the server's system status and answering mode.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var status Status
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &status); err != nil {
		return Status{}, err
	}
	return status, nil
}
