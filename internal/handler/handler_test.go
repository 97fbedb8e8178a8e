package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/batch-extractor-bot/internal/dto"
	"github.com/noah-isme/batch-extractor-bot/internal/middleware"
	"github.com/noah-isme/batch-extractor-bot/internal/models"
	"github.com/noah-isme/batch-extractor-bot/internal/service"
	appErrors "github.com/noah-isme/batch-extractor-bot/pkg/errors"
)

type chatMock struct {
	replies []dto.ChatReply
	err     error
	chatID  string
	text    string
}

func (m *chatMock) HandleMessage(ctx context.Context, chatID, text string) ([]dto.ChatReply, error) {
	m.chatID, m.text = chatID, text
	return m.replies, m.err
}

type downloadMock struct {
	download  *service.ExportDownload
	err       error
	delivered []string
}

func (m *downloadMock) ResolveDownload(token string) (*service.ExportDownload, error) {
	return m.download, m.err
}

func (m *downloadMock) MarkDelivered(relPath string) {
	m.delivered = append(m.delivered, relPath)
}

type envelope struct {
	Data  json.RawMessage  `json:"data"`
	Error *appErrors.Error `json:"error"`
}

func newTestRouter(chat *chatMock, downloads *downloadMock, metrics *service.MetricsService, checks map[string]ReadinessCheck) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Metrics(metrics))
	RegisterRoutes(r, "/api/v1", NewChatHandler(chat), NewExportHandler(downloads), NewMetricsHandler(metrics, checks))
	return r
}

func doRequest(r http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestChatHandlerPostMessage(t *testing.T) {
	chat := &chatMock{replies: []dto.ChatReply{{Text: "hello"}}}
	r := newTestRouter(chat, &downloadMock{}, nil, nil)

	w := doRequest(r, http.MethodPost, "/api/v1/chats/42/messages", []byte(`{"text":"physics"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42", chat.chatID)
	assert.Equal(t, "physics", chat.text)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	var resp dto.ChatMessageResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "42", resp.ChatID)
	assert.Equal(t, []dto.ChatReply{{Text: "hello"}}, resp.Replies)
}

func TestChatHandlerValidation(t *testing.T) {
	r := newTestRouter(&chatMock{}, &downloadMock{}, nil, nil)

	for _, body := range []string{`{}`, `{"text":""}`, `not json`} {
		w := doRequest(r, http.MethodPost, "/api/v1/chats/42/messages", []byte(body))
		require.Equal(t, http.StatusBadRequest, w.Code, body)
		var env envelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		assert.Equal(t, appErrors.ErrValidation.Code, env.Error.Code)
	}
}

func TestChatHandlerServiceError(t *testing.T) {
	chat := &chatMock{err: appErrors.Wrap(errors.New("redis down"), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load chat session")}
	r := newTestRouter(chat, &downloadMock{}, nil, nil)

	w := doRequest(r, http.MethodPost, "/api/v1/chats/42/messages", []byte(`{"text":"physics"}`))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestExportHandlerDownload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Physics Batch.txt")
	require.NoError(t, os.WriteFile(path, []byte("📘 Batch: Physics Batch\n\n"), 0o644))
	file, err := os.Open(path)
	require.NoError(t, err)

	downloads := &downloadMock{download: &service.ExportDownload{
		File: file, RelPath: "Physics Batch.txt", Filename: "Physics Batch.txt",
		Format: models.ExportFormatText, Size: int64(len("📘 Batch: Physics Batch\n\n")),
	}}
	r := newTestRouter(&chatMock{}, downloads, nil, nil)

	w := doRequest(r, http.MethodGet, "/api/v1/exports/token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "📘 Batch: Physics Batch\n\n", w.Body.String())
	assert.Equal(t, `attachment; filename="Physics Batch.txt"`, w.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))
	assert.Equal(t, []string{"Physics Batch.txt"}, downloads.delivered)
}

func TestExportHandlerRejectsBadToken(t *testing.T) {
	downloads := &downloadMock{err: appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")}
	r := newTestRouter(&chatMock{}, downloads, nil, nil)

	w := doRequest(r, http.MethodGet, "/api/v1/exports/bad", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, downloads.delivered)
}

func TestProbesAndMetrics(t *testing.T) {
	metrics := service.NewMetricsService()
	failing := false
	checks := map[string]ReadinessCheck{
		"sessions": func(ctx context.Context) error {
			if failing {
				return errors.New("redis down")
			}
			return nil
		},
	}
	r := newTestRouter(&chatMock{}, &downloadMock{}, metrics, checks)

	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodGet, "/ready", nil).Code)
	failing = true
	w := doRequest(r, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "redis down")

	doRequest(r, http.MethodGet, "/nowhere", nil)
	w = doRequest(r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `path="/health"`)
	assert.Contains(t, w.Body.String(), `path="unmatched"`)
}
