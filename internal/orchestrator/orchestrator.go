// Package orchestrator реализует многоэтапный пайплайн генерации статьи:
// INTRODUCTION -> BODY[1..k] -> CONCLUSION -> REFERENCES -> DONE.
// Каждый этап - ровно один потоковый вызов внешнего текстового сервиса
// с полным накопленным контекстом беседы.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"post-server/internal/model"
	"post-server/internal/prompt"
	"post-server/internal/session"
	"post-server/internal/service"
)

// Температура генерации статей. Остальные параметры оставляем дефолтными.
var articleTemperature = 0.7

// stageStep - один шаг плана пайплайна.
type stageStep struct {
	stage     prompt.Stage
	iteration int // имеет смысл только для StageBody (с 1)
}

// Orchestrator последовательно проводит один запрос через все этапы
// пайплайна. Прогоны независимы: каждый получает свежую сессию и не делит
// с другими прогонами никакого изменяемого состояния.
type Orchestrator struct {
	ai               service.AIClient
	aiModel          string
	maxContextTokens int
	logger           zerolog.Logger
}

// New создает оркестратор. AI клиент инжектируется интерфейсом,
// чтобы тесты могли подставить фейк.
func New(ai service.AIClient, aiModel string, maxContextTokens int, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		ai:               ai,
		aiModel:          aiModel,
		maxContextTokens: maxContextTokens,
		logger:           logger.With().Str("component", "Orchestrator").Logger(),
	}
}

// buildPlan возвращает последовательность этапов для запрошенной длины статьи.
func buildPlan(length model.ArticleLength) []stageStep {
	plan := []stageStep{{stage: prompt.StageIntroduction}}
	for i := 1; i <= length.BodyIterations(); i++ {
		plan = append(plan, stageStep{stage: prompt.StageBody, iteration: i})
	}
	plan = append(plan,
		stageStep{stage: prompt.StageConclusion},
		stageStep{stage: prompt.StageReferences},
	)
	return plan
}

// Run выполняет один прогон пайплайна. Каждый полученный фрагмент
// добавляется к полному тексту статьи и немедленно, без батчинга,
// пересылается в sink. Ошибка любого этапа прерывает прогон целиком:
// частичный результат не сохраняется, ошибка уходит вызывающему.
func (o *Orchestrator) Run(ctx context.Context, req model.GenerationRequest, sink service.StreamSink) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if sink == nil {
		sink = service.DiscardSink{}
	}

	// Свежая сессия на каждый прогон: уникальный ID, никакого
	// переиспользования контекста между прогонами.
	sess := session.New(o.aiModel, o.maxContextTokens)
	logger := o.logger.With().Str("runID", sess.ID()).Logger()

	plan := buildPlan(req.ArticleLength)
	systemPrompt := prompt.SystemPrompt(req)

	logger.Info().
		Int("stages", len(plan)).
		Int("bodyIterations", req.ArticleLength.BodyIterations()).
		Str("description", req.Description).
		Msg("Generation run started")

	runStart := time.Now()
	metricsIncrementRunsStarted()

	var fullArticle strings.Builder

	for _, step := range plan {
		// Подписчик мог уйти между этапами - дальше не генерируем.
		if err := ctx.Err(); err != nil {
			metricsIncrementRunFailed("canceled")
			logger.Warn().Err(err).Str("stage", string(step.stage)).Msg("Run canceled before stage")
			return "", fmt.Errorf("%w: прогон отменен перед этапом %s: %w", model.ErrPipelineAborted, step.stage, err)
		}

		instruction := prompt.Compose(step.stage, step.iteration, req)

		// Контекст: системная инструкция + весь лог беседы + инструкция этапа.
		// Прошлый текст не пересылается повторно в инструкции - связность
		// обеспечивает именно контекст сессии.
		messages := make([]service.ChatMessage, 0, sess.Len()+2)
		messages = append(messages, service.ChatMessage{Role: "system", Content: systemPrompt})
		for _, turn := range sess.Messages() {
			messages = append(messages, service.ChatMessage{Role: turn.Role, Content: turn.Content})
		}
		messages = append(messages, service.ChatMessage{Role: session.RoleUser, Content: instruction})

		stageStart := time.Now()
		stageText, usage, err := o.ai.GenerateTextStream(ctx, sess.ID(), messages,
			service.GenerationParams{Temperature: &articleTemperature},
			func(fragment string) error {
				fullArticle.WriteString(fragment)
				return sink.Push(ctx, fragment)
			})

		metricsObserveStageDuration(string(step.stage), time.Since(stageStart))

		if err != nil {
			metricsIncrementStageFailed(string(step.stage))
			metricsIncrementRunFailed("stage_error")
			logger.Error().Err(err).
				Str("stage", string(step.stage)).
				Int("iteration", step.iteration).
				Msg("Stage failed, aborting run")
			return "", fmt.Errorf("%w: этап %s: %w", model.ErrPipelineAborted, step.stage, err)
		}

		logger.Debug().
			Str("stage", string(step.stage)).
			Int("stageChars", len(stageText)).
			Int("totalTokens", usage.TotalTokens).
			Msg("Stage completed")

		// Пара (инструкция, агрегированный ответ этапа) попадает в контекст
		// всех последующих этапов.
		sess.AppendExchange(instruction, stageText)
	}

	metricsIncrementRunSucceeded()
	metricsObserveRunDuration(time.Since(runStart))
	logger.Info().
		Int("articleChars", fullArticle.Len()).
		Dur("duration", time.Since(runStart)).
		Msg("Generation run completed")

	return fullArticle.String(), nil
}

// компилируемая проверка контракта
var _ service.ArticleGenerator = (*Orchestrator)(nil)
