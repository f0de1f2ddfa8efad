package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"post-server/internal/model"
	"post-server/internal/service"
)

// fakePostGenerator - скриптовый генератор: шлет заданные фрагменты в sink
// и возвращает результат.
type fakePostGenerator struct {
	fragments []string
	post      model.Post
	err       error
}

func (f *fakePostGenerator) GeneratePost(ctx context.Context, runID string, req model.GenerationRequest, sink service.StreamSink) (model.Post, error) {
	for _, fragment := range f.fragments {
		if err := sink.Push(ctx, fragment); err != nil {
			return model.Post{}, err
		}
	}
	return f.post, f.err
}

func dialTestServer(t *testing.T, generator *fakePostGenerator) *websocket.Conn {
	t.Helper()
	wsHandler := NewWebSocketHandler(generator, zerolog.Nop())
	server := httptest.NewServer(http.HandlerFunc(wsHandler.ServeWS))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) outboundEnvelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var envelope outboundEnvelope
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(message, &envelope))
	return envelope
}

func sendGenerate(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{
		"event": eventGenerateArticle,
		"data": map[string]any{
			"description":     "city gardens",
			"articleLength":   "4",
			"layoutStructure": "intro, body, conclusion",
		},
	}))
}

func TestServeWS_StreamsFragmentsThenCompletes(t *testing.T) {
	image := "https://img.example/a.jpg"
	generator := &fakePostGenerator{
		fragments: []string{"<b>In", "tro</b>", "<p>body</p>"},
		post:      model.Post{ID: "post-1", Image: &image},
	}
	conn := dialTestServer(t, generator)

	sendGenerate(t, conn)

	// Фрагменты приходят в порядке генерации.
	var received []string
	for i := 0; i < len(generator.fragments); i++ {
		envelope := readEnvelope(t, conn)
		require.Equal(t, eventArticlePart, envelope.Event)
		fragment, ok := envelope.Data.(string)
		require.True(t, ok)
		received = append(received, fragment)
	}
	assert.Equal(t, generator.fragments, received)

	// Терминальное событие завершения с ID созданного поста.
	terminal := readEnvelope(t, conn)
	assert.Equal(t, eventArticleCompleted, terminal.Event)
	result, ok := terminal.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "post-1", result["postId"])
}

func TestServeWS_GenerationFailureSendsTerminalFailure(t *testing.T) {
	generator := &fakePostGenerator{err: model.ErrPipelineAborted}
	conn := dialTestServer(t, generator)

	sendGenerate(t, conn)

	envelope := readEnvelope(t, conn)
	assert.Equal(t, eventArticleFailed, envelope.Event)
	assert.NotEmpty(t, envelope.Error)

	// Соединение переживает сбой прогона: следующий запрос обслуживается.
	generator.err = nil
	generator.post = model.Post{ID: "post-2"}
	sendGenerate(t, conn)

	terminal := readEnvelope(t, conn)
	assert.Equal(t, eventArticleCompleted, terminal.Event)
}

func TestServeWS_FailureEventCarriesStableErrorText(t *testing.T) {
	// Внутренний текст ошибки (обертки, русские сообщения этапов) не должен
	// утекать подписчикам: наружу уходит стабильная строка таксономии.
	internal := fmt.Errorf("%w: этап body: %w: status 500", model.ErrPipelineAborted, model.ErrUpstreamService)
	generator := &fakePostGenerator{err: internal}
	conn := dialTestServer(t, generator)

	sendGenerate(t, conn)

	envelope := readEnvelope(t, conn)
	require.Equal(t, eventArticleFailed, envelope.Event)
	assert.Equal(t, "upstream service failure", envelope.Error)
	assert.NotContains(t, envelope.Error, "этап")
	assert.NotContains(t, envelope.Error, "status 500")
}

func TestClientFacingError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"validation", fmt.Errorf("%w: описание обязательно", model.ErrValidation), "invalid request"},
		{"not found", fmt.Errorf("%w: id=abc", model.ErrPostNotFound), "post not found"},
		{"upstream", fmt.Errorf("%w: status 502", model.ErrUpstreamService), "upstream service failure"},
		{"aborted", fmt.Errorf("%w: прогон отменен", model.ErrPipelineAborted), "article generation aborted"},
		{"unknown", errors.New("boom"), "internal error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, clientFacingError(tc.err))
		})
	}
}

func TestServeWS_MalformedMessageSendsFailureAndKeepsConnection(t *testing.T) {
	generator := &fakePostGenerator{post: model.Post{ID: "post-3"}}
	conn := dialTestServer(t, generator)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	envelope := readEnvelope(t, conn)
	assert.Equal(t, eventArticleFailed, envelope.Event)

	sendGenerate(t, conn)
	terminal := readEnvelope(t, conn)
	assert.Equal(t, eventArticleCompleted, terminal.Event)
}
