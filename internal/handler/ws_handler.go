package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"post-server/internal/model"
	"post-server/internal/service"
)

const (
	// Время, разрешенное для записи сообщения клиенту.
	writeWait = 10 * time.Second
	// Время, разрешенное для чтения следующего pong сообщения от клиента.
	pongWait = 60 * time.Second
	// Отправлять пинги клиенту с этим периодом. Должно быть меньше pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Максимальный размер сообщения, разрешенный от клиента.
	maxMessageSize = 64 * 1024
)

// События протокола.
const (
	eventGenerateArticle  = "generateArticle"
	eventArticlePart      = "articlePartGenerated"
	eventArticleCompleted = "articleGenerationCompleted"
	eventArticleFailed    = "articleGenerationFailed"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Проверяем origin запроса (в продакшене здесь должна быть проверка)
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// inboundEnvelope - входящее сообщение клиента.
type inboundEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// outboundEnvelope - исходящее сообщение клиенту.
type outboundEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// generationResult - полезная нагрузка терминального события завершения.
type generationResult struct {
	PostID string  `json:"postId"`
	Image  *string `json:"image,omitempty"`
}

// PostGenerator - операции генерации, нужные websocket-слою.
type PostGenerator interface {
	GeneratePost(ctx context.Context, runID string, req model.GenerationRequest, sink service.StreamSink) (model.Post, error)
}

// WebSocketHandler обрабатывает запросы на установку WebSocket соединения
// и прогоняет полученные по нему запросы генерации.
type WebSocketHandler struct {
	posts  PostGenerator
	logger zerolog.Logger
}

// NewWebSocketHandler создает новый обработчик WebSocket.
func NewWebSocketHandler(posts PostGenerator, logger zerolog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		posts:  posts,
		logger: logger.With().Str("component", "WebSocketHandler").Logger(),
	}
}

// Client - одно живое WebSocket соединение.
type Client struct {
	conn *websocket.Conn
	send chan []byte

	// closed сигнализирует остановку writePump: sink не должен вечно
	// блокироваться на отправке в мертвое соединение.
	closed    chan struct{}
	closeOnce sync.Once
	cancel    context.CancelFunc

	// generating защищает от параллельных прогонов на одном соединении.
	generating sync.Mutex
}

func (c *Client) markClosed() {
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.cancel != nil {
			c.cancel()
		}
	})
}

// enqueue ставит сообщение в очередь отправки. Возвращает ошибку, если
// соединение закрыто или контекст отменен.
func (c *Client) enqueue(ctx context.Context, message []byte) error {
	select {
	case c.send <- message:
		return nil
	case <-c.closed:
		return errors.New("connection closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// clientSink доставляет фрагменты статьи в очередь отправки клиента
// в порядке поступления.
type clientSink struct {
	client *Client
}

func (s *clientSink) Push(ctx context.Context, fragment string) error {
	message, err := json.Marshal(outboundEnvelope{Event: eventArticlePart, Data: fragment})
	if err != nil {
		return err
	}
	return s.client.enqueue(ctx, message)
}

// ServeWS обрабатывает входящий HTTP запрос для WebSocket.
func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade connection")
		// Не пишем ошибку в http.ResponseWriter, так как upgrader уже это сделал
		return
	}

	h.logger.Info().Str("remoteAddr", conn.RemoteAddr().String()).Msg("WebSocket connection established")

	client := &Client{
		conn:   conn,
		send:   make(chan []byte, 256), // Буферизованный канал для отправки
		closed: make(chan struct{}),
	}

	// Контекст запроса умирает вместе с HTTP хендлером, а соединение
	// живет дальше: прогонам нужен контекст со временем жизни соединения.
	connCtx, connCancel := context.WithCancel(context.Background())
	client.cancel = connCancel

	go client.writePump(h.logger)
	go h.readPump(connCtx, client)
}

// readPump откачивает сообщения от WebSocket соединения и запускает
// прогоны генерации.
func (h *WebSocketHandler) readPump(ctx context.Context, c *Client) {
	logger := h.logger.With().Str("remoteAddr", c.conn.RemoteAddr().String()).Logger()
	defer func() {
		c.markClosed()
		_ = c.conn.Close()
		logger.Info().Msg("readPump finished")
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn().Err(err).Msg("WebSocket read error")
			} else {
				logger.Info().Msg("WebSocket connection closed (expected)")
			}
			break
		}

		var envelope inboundEnvelope
		if err := json.Unmarshal(message, &envelope); err != nil {
			logger.Warn().Err(err).Msg("Malformed inbound message (ignored)")
			h.sendFailure(ctx, c, "malformed message")
			continue
		}

		switch envelope.Event {
		case eventGenerateArticle:
			// Прогон в отдельной горутине: readPump продолжает читать
			// ping/pong и close-фреймы во время генерации.
			go h.runGeneration(ctx, c, envelope.Data, logger)
		default:
			logger.Warn().Str("event", envelope.Event).Msg("Unknown event (ignored)")
		}
	}
}

// runGeneration выполняет один прогон генерации для соединения.
// Любой сбой генерации превращается в терминальное событие с пустым
// результатом: соединение переживает ошибку прогона.
func (h *WebSocketHandler) runGeneration(ctx context.Context, c *Client, data json.RawMessage, logger zerolog.Logger) {
	if !c.generating.TryLock() {
		logger.Warn().Msg("Generation already in progress on this connection")
		h.sendFailure(ctx, c, "generation already in progress")
		return
	}
	defer c.generating.Unlock()

	var req model.GenerationRequest
	if err := json.Unmarshal(data, &req); err != nil {
		logger.Warn().Err(err).Msg("Invalid generation request payload")
		h.sendFailure(ctx, c, "invalid request payload")
		return
	}

	runID := requestRunID()
	logger = logger.With().Str("runID", runID).Logger()
	logger.Info().Str("description", req.Description).Msg("Generation requested over WebSocket")

	post, err := h.posts.GeneratePost(ctx, runID, req, &clientSink{client: c})
	if err != nil {
		logger.Error().Err(err).Msg("Generation run failed")
		h.sendFailure(ctx, c, clientFacingError(err))
		return
	}

	message, err := json.Marshal(outboundEnvelope{
		Event: eventArticleCompleted,
		Data:  generationResult{PostID: post.ID, Image: post.Image},
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to marshal completion event")
		return
	}
	if err := c.enqueue(ctx, message); err != nil {
		logger.Warn().Err(err).Msg("Failed to deliver completion event")
	}
}

// requestRunID выдает идентификатор прогона для логов и уведомлений.
func requestRunID() string {
	return uuid.NewString()
}

// clientFacingError сопоставляет ошибки доменной таксономии стабильным
// строкам для подписчиков. Внутренний текст ошибки остается только в логах.
func clientFacingError(err error) string {
	switch {
	case errors.Is(err, model.ErrValidation):
		return "invalid request"
	case errors.Is(err, model.ErrPostNotFound):
		return "post not found"
	case errors.Is(err, model.ErrUpstreamService):
		return "upstream service failure"
	case errors.Is(err, model.ErrPipelineAborted):
		return "article generation aborted"
	default:
		return "internal error"
	}
}

// sendFailure отправляет терминальное событие сбоя. Ошибки доставки
// только логируются: соединением управляет readPump.
func (h *WebSocketHandler) sendFailure(ctx context.Context, c *Client, detail string) {
	message, err := json.Marshal(outboundEnvelope{Event: eventArticleFailed, Error: detail})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal failure event")
		return
	}
	if err := c.enqueue(ctx, message); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to deliver failure event")
	}
}

// writePump откачивает сообщения из канала send в WebSocket соединение.
// Единственный писатель в соединение.
func (c *Client) writePump(logger zerolog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.markClosed()
		_ = c.conn.Close()
		logger.Info().Msg("writePump finished")
	}()
	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Error().Err(err).Msg("Failed to write message")
				return
			}
		case <-c.closed:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Warn().Err(err).Msg("Failed to send ping")
				return
			}
		}
	}
}
