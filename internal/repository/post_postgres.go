package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"post-server/internal/model"
)

// PostgresPostRepository реализует PostRepository для PostgreSQL.
type PostgresPostRepository struct {
	db *pgxpool.Pool
}

// NewPostgresPostRepository создает новый экземпляр PostgresPostRepository.
func NewPostgresPostRepository(db *pgxpool.Pool) *PostgresPostRepository {
	if db == nil {
		log.Fatal().Msg("database connection provided to repository is nil")
	}
	return &PostgresPostRepository{db: db}
}

// Create сохраняет новый пост.
func (r *PostgresPostRepository) Create(ctx context.Context, post model.Post) (model.Post, error) {
	query := `
		INSERT INTO posts (text, image, description, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, text, image, description, created_at, updated_at
	`

	var created model.Post
	err := pgxscan.Get(ctx, r.db, &created, query, post.Text, post.Image, post.Description)
	if err != nil {
		log.Error().Err(err).Msg("Failed to insert post")
		return model.Post{}, fmt.Errorf("failed to insert post: %w", err)
	}

	log.Info().Str("postID", created.ID).Msg("Post created")
	return created, nil
}

// GetByID возвращает пост по идентификатору.
func (r *PostgresPostRepository) GetByID(ctx context.Context, id string) (model.Post, error) {
	query := `
		SELECT id, text, image, description, created_at, updated_at
		FROM posts
		WHERE id = $1
	`

	var post model.Post
	err := pgxscan.Get(ctx, r.db, &post, query, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Warn().Str("postID", id).Msg("Post not found")
			return model.Post{}, fmt.Errorf("%w: id=%s", model.ErrPostNotFound, id)
		}
		log.Error().Err(err).Str("postID", id).Msg("Failed to get post")
		return model.Post{}, fmt.Errorf("failed to get post: %w", err)
	}
	return post, nil
}

// Update применяет частичное обновление поста: COALESCE оставляет нетронутыми
// поля, пришедшие как nil. updated_at двигается всегда.
func (r *PostgresPostRepository) Update(ctx context.Context, id string, text *string, image *string) (model.Post, error) {
	query := `
		UPDATE posts
		SET text       = COALESCE($2, text),
		    image      = COALESCE($3, image),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id, text, image, description, created_at, updated_at
	`

	var updated model.Post
	err := pgxscan.Get(ctx, r.db, &updated, query, id, text, image)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Warn().Str("postID", id).Msg("Post not found for update")
			return model.Post{}, fmt.Errorf("%w: id=%s", model.ErrPostNotFound, id)
		}
		log.Error().Err(err).Str("postID", id).Msg("Failed to update post")
		return model.Post{}, fmt.Errorf("failed to update post: %w", err)
	}

	log.Info().Str("postID", updated.ID).Bool("textChanged", text != nil).Bool("imageChanged", image != nil).Msg("Post updated")
	return updated, nil
}

// компилируемая проверка контракта
var _ PostRepository = (*PostgresPostRepository)(nil)
