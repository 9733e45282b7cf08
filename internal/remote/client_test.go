package remote_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/edu-agent/internal/handler"
	"github.com/zhouzirui/edu-agent/internal/model/chat"
	"github.com/zhouzirui/edu-agent/internal/remote"
	answerService "github.com/zhouzirui/edu-agent/internal/service/answer"
	chatService "github.com/zhouzirui/edu-agent/internal/service/chat"
	"github.com/zhouzirui/edu-agent/internal/store"
)

func newServer(t *testing.T) *remote.Client {
	t.Helper()
	router := handler.NewRouter(chatService.NewService(store.NewMemoryRepository()), answerService.NewDemo(nil))
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return remote.New(srv.URL+"/", 5*time.Second)
}

func TestConversationRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newServer(t)

	id, err := client.CreateConversation(ctx, "对话 2025/3/1 09:00:00")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	conv, err := client.GetConversation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "对话 2025/3/1 09:00:00", conv.Title)
	assert.Empty(t, conv.Messages)

	ts := time.Date(2025, 3, 1, 1, 0, 0, 0, time.UTC)
	msgs := []chat.Message{
		{ID: "msg-1", Sender: chat.SenderUser, Text: "什么是加速度？", Timestamp: ts},
		{ID: "msg-2", Sender: chat.SenderBot, Text: "a = Δv / t", Timestamp: ts.Add(time.Second)},
	}
	require.NoError(t, client.UpdateConversation(ctx, id, msgs, ts.Add(time.Second)))

	conv, err = client.GetConversation(ctx, id)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "msg-2", conv.Messages[1].ID)
	assert.True(t, ts.Equal(conv.Messages[0].Timestamp))

	list, err := client.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].MessageCount)

	require.NoError(t, client.DeleteConversation(ctx, id))
	_, err = client.GetConversation(ctx, id)
	assert.ErrorIs(t, err, remote.ErrNotFound)
	assert.ErrorIs(t, client.DeleteConversation(ctx, id), remote.ErrNotFound)
}

func TestUpdateMissingConversation(t *testing.T) {
	client := newServer(t)
	err := client.UpdateConversation(context.Background(), "missing", nil, time.Now())
	assert.ErrorIs(t, err, remote.ErrNotFound)
}

func TestAskAndStatus(t *testing.T) {
	ctx := context.Background()
	client := newServer(t)

	answer, err := client.Ask(ctx, "牛顿第一定律")
	require.NoError(t, err)
	assert.Contains(t, answer, "惯性定律")

	status, err := client.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "online", status.SystemStatus)
	assert.Equal(t, "demo", status.Mode)
	assert.True(t, status.Initialized)
}

func TestAskBlankQuestionIsStatusError(t *testing.T) {
	client := newServer(t)

	_, err := client.Ask(context.Background(), "  ")
	var statusErr *remote.StatusError
	require.True(t, errors.As(err, &statusErr), "got %v", err)
	assert.Equal(t, http.StatusBadRequest, statusErr.Code)
	assert.Equal(t, "问题不能为空", statusErr.Message)
}

func TestAskReportedFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":false}`))
	}))
	defer srv.Close()

	_, err := remote.New(srv.URL, time.Second).Ask(context.Background(), "q")
	assert.ErrorIs(t, err, remote.ErrAnswerFailed)
	assert.Contains(t, err.Error(), "服务器返回错误")
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := remote.New(url, time.Second).ListConversations(context.Background())
	assert.Error(t, err)
}

func TestCreateWithoutIDFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := remote.New(srv.URL, time.Second).CreateConversation(context.Background(), "t")
	assert.Error(t, err)
}
