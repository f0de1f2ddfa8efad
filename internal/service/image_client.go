package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"post-server/internal/config"
	"post-server/internal/model"
)

// ErrImageGenerationFailed - ошибка при генерации изображения.
var ErrImageGenerationFailed = fmt.Errorf("%w: image generation failed", model.ErrUpstreamService)

// ErrImageSaveFailed - ошибка при сохранении файла изображения.
var ErrImageSaveFailed = errors.New("image save failed")

// Стиль, в котором генерируются изображения постов. Текст описания
// подставляется дословно, без переформулирования.
const imagePromptTemplate = "A realistic photograph illustrating the following topic, natural lighting, no text overlays: %s"

// ImageGenerator определяет интерфейс генерации изображения по описанию поста.
// Любая ошибка фатальна для вызывающего: повторов нет, ошибка не глотается.
type ImageGenerator interface {
	Generate(ctx context.Context, description string) (string, error)
}

// --- DALL-E (OpenAI) Implementation ---

// dalleImageGenerator генерирует изображение через OpenAI Images API
// и возвращает hosted URL.
type dalleImageGenerator struct {
	client *openaigo.Client
	logger *zap.Logger
	model  string
	size   string
}

func (g *dalleImageGenerator) Generate(ctx context.Context, description string) (string, error) {
	if strings.TrimSpace(description) == "" {
		return "", fmt.Errorf("%w: empty description", ErrImageGenerationFailed)
	}
	log := g.logger.With(zap.String("model", g.model))
	prompt := fmt.Sprintf(imagePromptTemplate, description)
	log.Info("Generating post image...", zap.Int("prompt_len", len(prompt)))

	resp, err := g.client.CreateImage(ctx, openaigo.ImageRequest{
		Prompt:         prompt,
		Model:          g.model,
		N:              1,
		Size:           g.size,
		ResponseFormat: openaigo.CreateImageResponseFormatURL,
	})
	if err != nil {
		log.Error("Image API call failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrImageGenerationFailed, err)
	}
	// Ответ без данных - это ошибка, а не успех.
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		log.Error("Image API returned empty data")
		return "", fmt.Errorf("%w: API returned empty data", ErrImageGenerationFailed)
	}

	log.Info("Post image generated", zap.String("url", resp.Data[0].URL))
	return resp.Data[0].URL, nil
}

// --- Local Image Server Implementation ---

// imageServerRequest - структура запроса к локальному серверу генерации.
type imageServerRequest struct {
	Prompt string `json:"prompt"`
	Ratio  string `json:"ratio"`
}

// serverImageGenerator вызывает self-hosted сервер генерации изображений,
// сохраняет полученные байты в файл и возвращает публичный URL.
type serverImageGenerator struct {
	logger        *zap.Logger
	baseURL       string
	client        *http.Client
	imageSavePath string
	imageBaseURL  string
}

func (g *serverImageGenerator) Generate(ctx context.Context, description string) (string, error) {
	if strings.TrimSpace(description) == "" {
		return "", fmt.Errorf("%w: empty description", ErrImageGenerationFailed)
	}
	log := g.logger.With(zap.String("api_url", g.baseURL))
	prompt := fmt.Sprintf(imagePromptTemplate, description)
	log.Info("Generating post image...", zap.Int("prompt_len", len(prompt)))

	imageData, err := g.callImageServer(ctx, prompt)
	if err != nil {
		log.Error("Image server call failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrImageGenerationFailed, err)
	}
	if len(imageData) == 0 {
		log.Error("Image server returned empty image data")
		return "", fmt.Errorf("%w: API returned empty data", ErrImageGenerationFailed)
	}
	log.Info("Image data received", zap.Int("size_bytes", len(imageData)))

	fileName := fmt.Sprintf("%s.jpg", uuid.NewString())
	filePath := filepath.Join(g.imageSavePath, fileName)

	if err := os.WriteFile(filePath, imageData, 0644); err != nil {
		log.Error("Failed to save image to file", zap.String("path", filePath), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrImageSaveFailed, err)
	}
	log.Info("Image saved to file", zap.String("path", filePath))

	imageURL := strings.TrimSuffix(g.imageBaseURL, "/") + "/" + fileName
	if !strings.HasPrefix(imageURL, "https://") && !strings.HasPrefix(imageURL, "http://") {
		imageURL = "https://" + imageURL
	}
	log.Info("Public image URL generated", zap.String("url", imageURL))
	return imageURL, nil
}

// callImageServer выполняет POST /generate и возвращает байты изображения.
func (g *serverImageGenerator) callImageServer(ctx context.Context, prompt string) ([]byte, error) {
	reqBodyBytes, err := json.Marshal(imageServerRequest{Prompt: prompt, Ratio: "3:2"})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	endpointURL := g.baseURL + "/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(reqBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/*")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, readErr := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}
	if readErr != nil {
		return nil, fmt.Errorf("failed to read response body: %w", readErr)
	}
	return bodyBytes, nil
}

// --- Factory Function ---

// NewImageGenerator создает генератор изображений в зависимости от конфигурации.
func NewImageGenerator(cfg *config.Config, logger *zap.Logger) (ImageGenerator, error) {
	switch strings.ToLower(cfg.ImageClientType) {
	case "openai":
		openaiConfig := openaigo.DefaultConfig(cfg.AIAPIKey)
		openaiConfig.HTTPClient = &http.Client{Timeout: cfg.ImageTimeout}
		return &dalleImageGenerator{
			client: openaigo.NewClientWithConfig(openaiConfig),
			logger: logger.Named("ImageGenerator"),
			model:  cfg.ImageModel,
			size:   cfg.ImageSize,
		}, nil
	case "server":
		if cfg.ImageSavePath == "" {
			return nil, errors.New("image save path (IMAGE_SAVE_PATH) is not configured")
		}
		if cfg.ImagePublicBaseURL == "" {
			return nil, errors.New("image public base URL (IMAGE_PUBLIC_BASE_URL) is not configured")
		}
		return &serverImageGenerator{
			logger:        logger.Named("ImageGenerator"),
			baseURL:       cfg.ImageServerURL,
			client:        &http.Client{Timeout: cfg.ImageTimeout},
			imageSavePath: cfg.ImageSavePath,
			imageBaseURL:  cfg.ImagePublicBaseURL,
		}, nil
	default:
		return nil, fmt.Errorf("неизвестный тип image клиента: '%s'", cfg.ImageClientType)
	}
}
