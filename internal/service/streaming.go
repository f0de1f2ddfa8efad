package service

import (
	"context"

	"post-server/internal/model"
)

// StreamSink - абстракция "доставить фрагмент одному живому подписчику".
// Отвязывает пайплайн генерации от транспорта. Реализация обязана сохранять
// порядок фрагментов; ошибка Push означает, что подписчик недоступен,
// и прерывает прогон.
type StreamSink interface {
	Push(ctx context.Context, fragment string) error
}

// DiscardSink - сток для прогонов без живого подписчика
// (не-стриминговый HTTP путь).
type DiscardSink struct{}

func (DiscardSink) Push(ctx context.Context, fragment string) error { return nil }

// ArticleGenerator - контракт пайплайна генерации статьи: прогон запроса
// с доставкой фрагментов в sink, возвращает полный текст статьи.
type ArticleGenerator interface {
	Run(ctx context.Context, req model.GenerationRequest, sink StreamSink) (string, error)
}
