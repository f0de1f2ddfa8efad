package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"post-server/internal/model"
	"post-server/internal/repository"
)

// PostService - прикладные операции над постами: генерация, создание,
// частичное обновление, генерация изображений.
type PostService struct {
	repo      repository.PostRepository
	images    ImageGenerator
	generator ArticleGenerator
	refTexts  ReferenceTextStore
	notifier  Notifier
	logger    zerolog.Logger
}

// NewPostService создает сервис постов.
func NewPostService(
	repo repository.PostRepository,
	images ImageGenerator,
	generator ArticleGenerator,
	refTexts ReferenceTextStore,
	notifier Notifier,
	logger zerolog.Logger,
) *PostService {
	return &PostService{
		repo:      repo,
		images:    images,
		generator: generator,
		refTexts:  refTexts,
		notifier:  notifier,
		logger:    logger.With().Str("component", "PostService").Logger(),
	}
}

// CreatePost сохраняет пост с уже готовым содержимым.
func (s *PostService) CreatePost(ctx context.Context, text, description string, image *string) (model.Post, error) {
	if description == "" {
		return model.Post{}, fmt.Errorf("%w: description is required", model.ErrValidation)
	}
	return s.repo.Create(ctx, model.Post{
		Text:        text,
		Image:       image,
		Description: description,
	})
}

// GetPost возвращает пост по идентификатору.
func (s *PostService) GetPost(ctx context.Context, id string) (model.Post, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdatePost применяет частичное обновление поста.
//
// Политика полей асимметрична и намеренно такая:
//   - Text заменяет сохраненный текст дословно;
//   - RegenerateImage=true перегенерирует изображение по СОХРАНЕННОМУ
//     description поста, буквальное значение image из запроса игнорируется;
//   - description никогда не изменяется после создания.
func (s *PostService) UpdatePost(ctx context.Context, id string, upd model.PostUpdate) (model.Post, error) {
	if upd.Text == nil && !upd.RegenerateImage {
		return model.Post{}, fmt.Errorf("%w: nothing to update", model.ErrValidation)
	}

	// Существование поста проверяется до обращения к генератору изображений:
	// на неизвестный id внешние сервисы не вызываются.
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return model.Post{}, err
	}

	var newImage *string
	if upd.RegenerateImage {
		url, err := s.images.Generate(ctx, existing.Description)
		if err != nil {
			s.logger.Error().Err(err).Str("postID", id).Msg("Image regeneration failed")
			return model.Post{}, err
		}
		newImage = &url
	}

	return s.repo.Update(ctx, id, upd.Text, newImage)
}

// GenerateImage генерирует изображение по произвольному описанию,
// вне привязки к посту.
func (s *PostService) GenerateImage(ctx context.Context, description string) (string, error) {
	if description == "" {
		return "", fmt.Errorf("%w: description is required", model.ErrValidation)
	}
	return s.images.Generate(ctx, description)
}

// PutReferenceTexts сохраняет справочные тексты под ключом для последующего
// однократного потребления прогоном генерации.
func (s *PostService) PutReferenceTexts(ctx context.Context, key string, texts model.ReferenceTexts) error {
	return s.refTexts.Put(ctx, key, texts)
}

// GeneratePost выполняет полный прогон: справочные тексты -> пайплайн статьи
// (с доставкой фрагментов в sink) -> изображение -> сохранение -> уведомление.
// runID идентифицирует прогон в уведомлениях (обычно ID клиентского запроса).
func (s *PostService) GeneratePost(ctx context.Context, runID string, req model.GenerationRequest, sink StreamSink) (model.Post, error) {
	logger := s.logger.With().Str("runID", runID).Logger()

	if req.ReferenceTextsKey != "" {
		texts, err := s.refTexts.Consume(ctx, req.ReferenceTextsKey)
		if err != nil {
			// Прогон ценнее справочных текстов: идем дальше без них.
			logger.Warn().Err(err).Str("key", req.ReferenceTextsKey).Msg("Reference texts unavailable, generating without them")
		} else {
			req.ReferenceTexts = texts
		}
	}

	article, err := s.generator.Run(ctx, req, sink)
	if err != nil {
		s.notifyResult(ctx, runID, "", req.Description, err)
		return model.Post{}, err
	}

	var imageURL *string
	url, err := s.images.Generate(ctx, req.Description)
	if err != nil {
		s.notifyResult(ctx, runID, "", req.Description, err)
		return model.Post{}, err
	}
	imageURL = &url

	post, err := s.repo.Create(ctx, model.Post{
		Text:        article,
		Image:       imageURL,
		Description: req.Description,
	})
	if err != nil {
		s.notifyResult(ctx, runID, "", req.Description, err)
		return model.Post{}, err
	}

	logger.Info().Str("postID", post.ID).Msg("Post generated and stored")
	s.notifyResult(ctx, runID, post.ID, req.Description, nil)
	return post, nil
}

// notifyResult отправляет уведомление о завершении прогона. Сбой уведомления
// логируется, но исход прогона не меняет.
func (s *PostService) notifyResult(ctx context.Context, runID, postID, description string, runErr error) {
	payload := PostGeneratedNotification{
		RunID:       runID,
		PostID:      postID,
		Description: description,
		Status:      NotificationStatusSuccess,
	}
	if runErr != nil {
		payload.Status = NotificationStatusError
		payload.ErrorDetail = runErr.Error()
	}
	if err := s.notifier.Notify(ctx, payload); err != nil {
		s.logger.Error().Err(err).Str("runID", runID).Msg("Failed to publish run notification")
	}
}
