// internal/server/server_test.go
package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"council-orchestrator/internal/common/config"
	"council-orchestrator/internal/common/logger"
	"council-orchestrator/internal/models"
)

type scriptedDeliberator struct {
	events    []models.StreamEvent
	lastQuery models.Query
}

func (s *scriptedDeliberator) Deliberate(ctx context.Context, q models.Query) <-chan models.StreamEvent {
	s.lastQuery = q
	out := make(chan models.StreamEvent)
	go func() {
		defer close(out)
		for _, ev := range s.events {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func newTestServer(t *testing.T, deliberator *scriptedDeliberator) *httptest.Server {
	srv := New(config.ServerConfig{Address: ":0"}, deliberator, nil, logger.NewTestLogger(t))
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestHandleStream_WritesEventLines(t *testing.T) {
	deliberator := &scriptedDeliberator{events: []models.StreamEvent{
		models.LogEvent("working"),
		models.TokenEvent("partial "),
		models.AnswerEvent("partial answer"),
	}}
	ts := newTestServer(t, deliberator)

	res, err := http.Get(ts.URL + "/stream?query=test+question&mode=fast&web_search=true&context_window=5&conversation_id=c1")
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "log: working", lines[0])
	assert.Equal(t, `token: "partial "`, lines[1])
	assert.Equal(t, `data: {"answer":"partial answer"}`, lines[2])

	assert.Equal(t, "test question", deliberator.lastQuery.Text)
	assert.Equal(t, models.ModeFast, deliberator.lastQuery.Mode)
	assert.True(t, deliberator.lastQuery.WebSearch)
	assert.Equal(t, 5, deliberator.lastQuery.ContextWindow)
	assert.Equal(t, "c1", deliberator.lastQuery.ConversationID)
}

func TestHandleStream_RequiresQuery(t *testing.T) {
	ts := newTestServer(t, &scriptedDeliberator{})

	res, err := http.Get(ts.URL + "/stream")
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestHandleStream_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, &scriptedDeliberator{})

	res, err := http.Post(ts.URL+"/stream?query=q", "text/plain", nil)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t, &scriptedDeliberator{})

	res, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestHandleJudgmentDownload_BadFilename(t *testing.T) {
	ts := newTestServer(t, &scriptedDeliberator{})

	res, err := http.Get(ts.URL + "/judgments/download?url=notayear.pdf")
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}
