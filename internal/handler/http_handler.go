package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"post-server/internal/model"
)

// PostOperations - прикладные операции, нужные HTTP-слою.
type PostOperations interface {
	CreatePost(ctx context.Context, text, description string, image *string) (model.Post, error)
	GetPost(ctx context.Context, id string) (model.Post, error)
	UpdatePost(ctx context.Context, id string, upd model.PostUpdate) (model.Post, error)
	GenerateImage(ctx context.Context, description string) (string, error)
	PutReferenceTexts(ctx context.Context, key string, texts model.ReferenceTexts) error
}

// HTTPHandler обслуживает REST API постов.
type HTTPHandler struct {
	posts  PostOperations
	logger zerolog.Logger
}

// NewHTTPHandler создает HTTP обработчик.
func NewHTTPHandler(posts PostOperations, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		posts:  posts,
		logger: logger.With().Str("component", "HTTPHandler").Logger(),
	}
}

// RegisterRoutes регистрирует маршруты API на роутере.
func (h *HTTPHandler) RegisterRoutes(router gin.IRouter) {
	api := router.Group("/api")
	{
		api.POST("/posts", h.createPost)
		api.GET("/posts/:id", h.getPost)
		api.PATCH("/posts/:id", h.updatePost)
		api.POST("/images", h.generateImage)
		api.PUT("/reference-texts", h.putReferenceTexts)
	}
}

type createPostRequest struct {
	Text        string  `json:"text"`
	Description string  `json:"description"`
	Image       *string `json:"image"`
}

func (h *HTTPHandler) createPost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	post, err := h.posts.CreatePost(c.Request.Context(), req.Text, req.Description, req.Image)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *HTTPHandler) getPost(c *gin.Context) {
	post, err := h.posts.GetPost(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// updatePostRequest - сырое тело PATCH запроса. Поле image намеренно принимает
// любой JSON тип: клиенты исторически шлют туда и true, и строки, и объекты.
// Используется только его "правдивость" как сигнал перегенерации, буквальное
// значение отбрасывается.
type updatePostRequest struct {
	Text  *string `json:"text"`
	Image any     `json:"image"`
}

func (h *HTTPHandler) updatePost(c *gin.Context) {
	var req updatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	post, err := h.posts.UpdatePost(c.Request.Context(), c.Param("id"), model.PostUpdate{
		Text:            req.Text,
		RegenerateImage: isTruthy(req.Image),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

type generateImageRequest struct {
	Description string `json:"description"`
}

func (h *HTTPHandler) generateImage(c *gin.Context) {
	var req generateImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	url, err := h.posts.GenerateImage(c.Request.Context(), req.Description)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"image": url})
}

type putReferenceTextsRequest struct {
	Key            string `json:"key"`
	InfoContent    string `json:"infoContent"`
	SampleText     string `json:"sampleText"`
	SampleKeywords string `json:"sampleKeywords"`
}

func (h *HTTPHandler) putReferenceTexts(c *gin.Context) {
	var req putReferenceTextsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	err := h.posts.PutReferenceTexts(c.Request.Context(), req.Key, model.ReferenceTexts{
		InfoContent:    req.InfoContent,
		SampleText:     req.SampleText,
		SampleKeywords: req.SampleKeywords,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// writeError сопоставляет ошибки доменной таксономии HTTP статусам.
func (h *HTTPHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrPostNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
	case errors.Is(err, model.ErrUpstreamService):
		h.logger.Error().Err(err).Msg("Upstream service failure")
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream service failure"})
	default:
		h.logger.Error().Err(err).Msg("Internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// isTruthy интерпретирует произвольное JSON значение как флаг:
// false, null, 0, "" и пустые контейнеры - ложь, все остальное - истина.
func isTruthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != "" && val != "false" && val != "0"
	case float64:
		return val != 0
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}
