package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"
	openaigo "github.com/sashabaranov/go-openai"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"post-server/internal/config"
	"post-server/internal/model"
)

// Цены за миллион токенов в USD (для оценочной метрики стоимости).
const (
	pricePerMillionInputTokensUSD  = 0.15
	pricePerMillionOutputTokensUSD = 0.60
)

// ErrAIGenerationFailed - ошибка при генерации текста AI.
var ErrAIGenerationFailed = fmt.Errorf("%w: ошибка генерации текста AI", model.ErrUpstreamService)

// GenerationParams - параметры генерации. Используем указатели, чтобы отличить
// 0/0.0 от отсутствия.
type GenerationParams struct {
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
}

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "post_generator_ai_requests_total",
			Help: "Total number of requests to the AI API.",
		},
		[]string{"model", "status"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "post_generator_ai_request_duration_seconds",
			Help:    "Histogram of AI API request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)
	aiPromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "post_generator_ai_prompt_tokens",
			Help:    "Histogram of prompt token counts.",
			Buckets: prometheus.LinearBuckets(250, 250, 20),
		},
		[]string{"model"},
	)
	aiCompletionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "post_generator_ai_completion_tokens",
			Help:    "Histogram of completion token counts.",
			Buckets: prometheus.LinearBuckets(100, 100, 20),
		},
		[]string{"model"},
	)
	aiEstimatedCostUSD = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "post_generator_ai_estimated_cost_usd_total",
			Help: "Estimated total cost of AI requests in USD.",
		},
		[]string{"model"},
	)
)

// UsageInfo содержит информацию об использовании токенов и стоимости.
type UsageInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	EstimatedCostUSD float64
}

// ChatMessage - одно сообщение контекста для внешнего сервиса.
type ChatMessage struct {
	Role    string // system | user | assistant
	Content string
}

// AIClient интерфейс для взаимодействия с AI API.
// Контекст беседы (messages) пересылается целиком на каждый вызов.
type AIClient interface {
	// GenerateText генерирует текст одним вызовом.
	GenerateText(ctx context.Context, runID string, messages []ChatMessage, params GenerationParams) (string, UsageInfo, error)
	// GenerateTextStream генерирует текст в потоковом режиме, вызывая chunkHandler
	// для каждого полученного фрагмента СТРОГО в порядке поступления.
	// Ошибка chunkHandler прерывает стрим и возвращается вызывающему.
	// Возвращает агрегированный текст этапа (конкатенация фрагментов).
	GenerateTextStream(ctx context.Context, runID string, messages []ChatMessage, params GenerationParams, chunkHandler func(string) error) (string, UsageInfo, error)
}

// calculateCost рассчитывает оценочную стоимость запроса на основе токенов.
func calculateCost(promptTokens, completionTokens int) float64 {
	inputCost := float64(promptTokens) * pricePerMillionInputTokensUSD / 1_000_000.0
	outputCost := float64(completionTokens) * pricePerMillionOutputTokensUSD / 1_000_000.0
	return inputCost + outputCost
}

// --- OpenAI Client Implementation ---

// openAIClient реализует AIClient с использованием go-openai.
type openAIClient struct {
	client *openaigo.Client
	model  string
}

func toOpenAIMessages(messages []ChatMessage) []openaigo.ChatCompletionMessage {
	out := make([]openaigo.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openaigo.ChatMessageRoleUser
		switch m.Role {
		case "system":
			role = openaigo.ChatMessageRoleSystem
		case "assistant":
			role = openaigo.ChatMessageRoleAssistant
		}
		out = append(out, openaigo.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

// GenerateText генерирует текст на основе переданного контекста беседы.
func (c *openAIClient) GenerateText(ctx context.Context, runID string, messages []ChatMessage, params GenerationParams) (string, UsageInfo, error) {
	usageInfo := UsageInfo{}

	if len(messages) == 0 {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", usageInfo, fmt.Errorf("%w: пустой контекст беседы", ErrAIGenerationFailed)
	}

	startTime := time.Now()
	log.Printf("[RunID: %s] Отправка запроса к AI: Model=%s, Messages=%d", runID, c.model, len(messages))

	resp, err := c.client.CreateChatCompletion(
		ctx,
		openaigo.ChatCompletionRequest{
			Model:       c.model,
			Messages:    toOpenAIMessages(messages),
			Temperature: float32Val(params.Temperature),
			MaxTokens:   intVal(params.MaxTokens),
			TopP:        float32Val(params.TopP),
		},
	)

	duration := time.Since(startTime)

	if err != nil {
		log.Printf("[RunID: %s] Ошибка от AI API за %v: %v", runID, duration, err)
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", usageInfo, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}

	// Ответ, пришедший без контента, считаем ошибкой, а не успехом.
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		log.Printf("[RunID: %s] AI API вернул пустой ответ за %v", runID, duration)
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_empty_response"}).Inc()
		return "", usageInfo, fmt.Errorf("%w: получен пустой ответ", ErrAIGenerationFailed)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "success"}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": c.model}).Observe(duration.Seconds())

	generatedText := resp.Choices[0].Message.Content
	log.Printf("[RunID: %s] Ответ от AI API получен за %v. Длина ответа: %d символов.", runID, duration, len(generatedText))

	if resp.Usage.TotalTokens > 0 {
		aiPromptTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(resp.Usage.PromptTokens))
		aiCompletionTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(resp.Usage.CompletionTokens))

		usageInfo.PromptTokens = resp.Usage.PromptTokens
		usageInfo.CompletionTokens = resp.Usage.CompletionTokens
		usageInfo.TotalTokens = resp.Usage.TotalTokens
		usageInfo.EstimatedCostUSD = calculateCost(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		if usageInfo.EstimatedCostUSD > 0 {
			aiEstimatedCostUSD.With(prometheus.Labels{"model": c.model}).Add(usageInfo.EstimatedCostUSD)
		}
	}

	return generatedText, usageInfo, nil
}

// GenerateTextStream генерирует текст в потоковом режиме, вызывая chunkHandler.
func (c *openAIClient) GenerateTextStream(ctx context.Context, runID string, messages []ChatMessage, params GenerationParams, chunkHandler func(string) error) (string, UsageInfo, error) {
	usageInfo := UsageInfo{}
	if len(messages) == 0 {
		return "", usageInfo, fmt.Errorf("%w: пустой контекст беседы для стриминга", ErrAIGenerationFailed)
	}

	request := openaigo.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toOpenAIMessages(messages),
		Stream:      true,
		Temperature: float32Val(params.Temperature),
		MaxTokens:   intVal(params.MaxTokens),
		TopP:        float32Val(params.TopP),
	}

	log.Printf("[RunID: %s] Отправка STREAM запроса к OpenAI: Model=%s, Messages=%d", runID, c.model, len(messages))

	stream, err := c.client.CreateChatCompletionStream(ctx, request)
	if err != nil {
		log.Printf("[RunID: %s] Ошибка создания стрима от OpenAI API: %v", runID, err)
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_stream_init"}).Inc()
		return "", usageInfo, fmt.Errorf("%w: ошибка создания стрима: %v", ErrAIGenerationFailed, err)
	}
	defer stream.Close()

	startTime := time.Now()
	completionTokensCount := 0
	var finalUsage openaigo.Usage
	var responseTextBuilder strings.Builder

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Printf("[RunID: %s] Ошибка чтения из стрима OpenAI: %v", runID, err)
			aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_stream_read"}).Inc()
			return "", usageInfo, fmt.Errorf("%w: ошибка чтения стрима: %v", ErrAIGenerationFailed, err)
		}

		// OpenAI присылает Usage последним блоком стрима
		if response.Usage != nil && response.Usage.TotalTokens > 0 {
			finalUsage = *response.Usage
		}

		if len(response.Choices) > 0 {
			chunk := response.Choices[0].Delta.Content
			if chunk == "" {
				continue
			}
			responseTextBuilder.WriteString(chunk)

			if chunkHandler != nil {
				// Фрагмент должен быть доставлен подписчику ДО ожидания
				// следующего; ошибка доставки прерывает стрим целиком
				// (подписчик ушел - генерировать дальше незачем).
				if err := chunkHandler(chunk); err != nil {
					log.Printf("[RunID: %s] Обработчик чанка вернул ошибку, прерываем стрим: %v", runID, err)
					aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_chunk_handler"}).Inc()
					return responseTextBuilder.String(), usageInfo, fmt.Errorf("ошибка обработчика стрима: %w", err)
				}
			}
		}
	}

	duration := time.Since(startTime)
	fullText := responseTextBuilder.String()
	log.Printf("[RunID: %s] Чтение стрима завершено за %v. Длина ответа: %d символов.", runID, duration, len(fullText))

	if fullText == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_empty_response"}).Inc()
		return "", usageInfo, fmt.Errorf("%w: получен пустой ответ", ErrAIGenerationFailed)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "success_stream"}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": c.model}).Observe(duration.Seconds())

	if finalUsage.TotalTokens > 0 {
		usageInfo.PromptTokens = finalUsage.PromptTokens
		usageInfo.CompletionTokens = finalUsage.CompletionTokens
		usageInfo.TotalTokens = finalUsage.TotalTokens
	} else {
		// Финальный блок Usage пришел не от всех моделей - оцениваем токены сами.
		tke, err := tiktoken.EncodingForModel(c.model)
		if err == nil {
			promptTokensCount := 0
			for _, m := range messages {
				promptTokensCount += len(tke.Encode(m.Content, nil, nil))
			}
			completionTokensCount = len(tke.Encode(fullText, nil, nil))
			usageInfo.PromptTokens = promptTokensCount
			usageInfo.CompletionTokens = completionTokensCount
			usageInfo.TotalTokens = promptTokensCount + completionTokensCount
		} else {
			log.Printf("[RunID: %s][WARN] Токенизатор для модели %s недоступен, метрики токенов пропущены.", runID, c.model)
		}
	}

	if usageInfo.TotalTokens > 0 {
		usageInfo.EstimatedCostUSD = calculateCost(usageInfo.PromptTokens, usageInfo.CompletionTokens)
		aiPromptTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(usageInfo.PromptTokens))
		aiCompletionTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(usageInfo.CompletionTokens))
		if usageInfo.EstimatedCostUSD > 0 {
			aiEstimatedCostUSD.With(prometheus.Labels{"model": c.model}).Add(usageInfo.EstimatedCostUSD)
		}
	}

	return fullText, usageInfo, nil
}

// float32Val конвертирует *float64 в float32 для OpenAI API.
func float32Val(f64 *float64) float32 {
	if f64 == nil {
		return 1.0
	}
	return float32(*f64)
}

// intVal конвертирует *int в int (0 = не установлено).
func intVal(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}

// --- Ollama Client Implementation ---

// ollamaClient реализует AIClient с использованием ollama/api.
type ollamaClient struct {
	client  *api.Client
	model   string
	timeout time.Duration
}

// newOllamaClient создает новый клиент для взаимодействия с Ollama.
func newOllamaClient(cfg *config.Config) (AIClient, error) {
	httpClient := &http.Client{
		Timeout: cfg.AITimeout,
	}

	// api.NewClient требует URL без суффикса /v1
	ollamaBaseURL := strings.TrimSuffix(cfg.AIBaseURL, "/v1")
	ollamaBaseURL = strings.TrimSuffix(ollamaBaseURL, "/")

	parsedURL, err := url.Parse(ollamaBaseURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга Ollama Base URL '%s': %w", ollamaBaseURL, err)
	}

	client := api.NewClient(parsedURL, httpClient)
	log.Printf("Ollama Клиент создан. Используемый BaseURL: %s, Model: %s, Timeout: %v", ollamaBaseURL, cfg.AIModel, cfg.AITimeout)

	return &ollamaClient{
		client:  client,
		model:   cfg.AIModel,
		timeout: cfg.AITimeout,
	}, nil
}

func toOllamaMessages(messages []ChatMessage) []api.Message {
	out := make([]api.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, api.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// GenerateText генерирует текст с использованием Ollama.
func (c *ollamaClient) GenerateText(ctx context.Context, runID string, messages []ChatMessage, params GenerationParams) (string, UsageInfo, error) {
	usageInfo := UsageInfo{EstimatedCostUSD: 0} // Ollama локальный, стоимость 0

	if len(messages) == 0 {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", usageInfo, fmt.Errorf("%w: пустой контекст беседы", ErrAIGenerationFailed)
	}

	req := &api.ChatRequest{
		Model:    c.model,
		Messages: toOllamaMessages(messages),
		Stream:   func(b bool) *bool { return &b }(false),
		Options: map[string]interface{}{
			"temperature": params.Temperature,
			"top_p":       params.TopP,
			"num_predict": intVal(params.MaxTokens),
		},
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	startTime := time.Now()
	var resp api.ChatResponse
	err := c.client.Chat(requestCtx, req, func(r api.ChatResponse) error {
		resp = r // Сохраняем последний (полный) ответ
		return nil
	})

	duration := time.Since(startTime)

	if err != nil {
		log.Printf("[RunID: %s] Ошибка от Ollama API за %v: %v", runID, duration, err)
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", usageInfo, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}

	if resp.Message.Content == "" {
		log.Printf("[RunID: %s] Ollama API вернул пустой ответ за %v", runID, duration)
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", usageInfo, fmt.Errorf("%w: получен пустой ответ", ErrAIGenerationFailed)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "success"}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": c.model}).Observe(duration.Seconds())

	usageInfo.PromptTokens = resp.PromptEvalCount
	usageInfo.CompletionTokens = resp.EvalCount
	usageInfo.TotalTokens = resp.PromptEvalCount + resp.EvalCount
	if usageInfo.TotalTokens > 0 {
		aiPromptTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(usageInfo.PromptTokens))
		aiCompletionTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(usageInfo.CompletionTokens))
	}

	return resp.Message.Content, usageInfo, nil
}

// GenerateTextStream генерирует текст с использованием Ollama в потоковом режиме.
func (c *ollamaClient) GenerateTextStream(ctx context.Context, runID string, messages []ChatMessage, params GenerationParams, chunkHandler func(string) error) (string, UsageInfo, error) {
	usageInfo := UsageInfo{EstimatedCostUSD: 0}

	if len(messages) == 0 {
		return "", usageInfo, fmt.Errorf("%w: пустой контекст беседы для стриминга", ErrAIGenerationFailed)
	}

	req := &api.ChatRequest{
		Model:    c.model,
		Messages: toOllamaMessages(messages),
		Stream:   func(b bool) *bool { return &b }(true),
		Options: map[string]interface{}{
			"temperature": params.Temperature,
			"top_p":       params.TopP,
			"num_predict": intVal(params.MaxTokens),
		},
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	startTime := time.Now()
	var responseTextBuilder strings.Builder
	var promptTokens, completionTokens int

	err := c.client.Chat(requestCtx, req, func(resp api.ChatResponse) error {
		if resp.Message.Content != "" {
			responseTextBuilder.WriteString(resp.Message.Content)
			if chunkHandler != nil {
				if err := chunkHandler(resp.Message.Content); err != nil {
					// Прерываем стрим, возвращая ошибку из колбэка
					return fmt.Errorf("ошибка обработчика стрима: %w", err)
				}
			}
		}
		if resp.Done {
			promptTokens = resp.PromptEvalCount
			completionTokens = resp.EvalCount
			if resp.DoneReason != "" && resp.DoneReason != "stop" {
				log.Printf("[RunID: %s] Стрим Ollama завершился не по причине 'stop': %s", runID, resp.DoneReason)
			}
		}
		return nil
	})

	duration := time.Since(startTime)

	if err != nil {
		log.Printf("[RunID: %s] Ошибка во время стриминга Ollama за %v: %v", runID, duration, err)
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_stream"}).Inc()
		return responseTextBuilder.String(), usageInfo, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}

	fullText := responseTextBuilder.String()
	if fullText == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", usageInfo, fmt.Errorf("%w: получен пустой ответ", ErrAIGenerationFailed)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "success_stream"}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": c.model}).Observe(duration.Seconds())

	usageInfo.PromptTokens = promptTokens
	usageInfo.CompletionTokens = completionTokens
	usageInfo.TotalTokens = promptTokens + completionTokens
	if usageInfo.TotalTokens > 0 {
		aiPromptTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(promptTokens))
		aiCompletionTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(completionTokens))
	}

	return fullText, usageInfo, nil
}

// --- Factory Function ---

// NewAIClient создает новый клиент для взаимодействия с AI в зависимости от конфигурации.
func NewAIClient(cfg *config.Config) (AIClient, error) {
	switch strings.ToLower(cfg.AIClientType) {
	case "openai":
		log.Printf("Используется реализация AI клиента: OpenAI")
		openaiConfig := openaigo.DefaultConfig(cfg.AIAPIKey)
		openaiConfig.BaseURL = cfg.AIBaseURL
		openaiConfig.HTTPClient = &http.Client{
			Timeout: cfg.AITimeout,
		}
		client := openaigo.NewClientWithConfig(openaiConfig)
		log.Printf("OpenAI Клиент создан. Используемый BaseURL: %s, Model: %s, Timeout: %v", cfg.AIBaseURL, cfg.AIModel, cfg.AITimeout)
		return &openAIClient{
			client: client,
			model:  cfg.AIModel,
		}, nil
	case "ollama":
		log.Printf("Используется реализация AI клиента: Ollama")
		return newOllamaClient(cfg)
	default:
		return nil, fmt.Errorf("неизвестный тип AI клиента: '%s'", cfg.AIClientType)
	}
}
