package repository

import (
	"context"

	"post-server/internal/model"
)

// PostRepository - хранилище постов.
type PostRepository interface {
	// Create сохраняет новый пост и возвращает его с заполненными
	// id/created_at/updated_at.
	Create(ctx context.Context, post model.Post) (model.Post, error)
	// GetByID возвращает пост или model.ErrPostNotFound.
	GetByID(ctx context.Context, id string) (model.Post, error)
	// Update применяет частичное обновление. Поля с nil не трогаются.
	// Возвращает обновленный пост или model.ErrPostNotFound.
	Update(ctx context.Context, id string, text *string, image *string) (model.Post, error)
}
