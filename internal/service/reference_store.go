package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"post-server/internal/model"
)

// Время жизни непотребленных справочных текстов. Если прогон так и не
// состоялся, тексты не должны жить вечно.
const referenceTextsTTL = 24 * time.Hour

const referenceTextsKeyPrefix = "reference_texts:"

// ReferenceTextStore хранит вспомогательные справочные тексты, передаваемые
// отдельно от запроса генерации. Семантика consume-once: первое чтение
// атомарно удаляет запись, повторное чтение по тому же ключу вернет пустые
// тексты.
type ReferenceTextStore interface {
	Put(ctx context.Context, key string, texts model.ReferenceTexts) error
	// Consume возвращает тексты и удаляет их. Отсутствие записи - не ошибка.
	Consume(ctx context.Context, key string) (model.ReferenceTexts, error)
}

// redisReferenceTextStore реализует ReferenceTextStore поверх Redis.
type redisReferenceTextStore struct {
	client *redis.Client
}

// NewRedisReferenceTextStore создает хранилище справочных текстов.
func NewRedisReferenceTextStore(client *redis.Client) ReferenceTextStore {
	if client == nil {
		log.Fatal().Msg("Redis client is nil for ReferenceTextStore")
	}
	return &redisReferenceTextStore{client: client}
}

func (s *redisReferenceTextStore) Put(ctx context.Context, key string, texts model.ReferenceTexts) error {
	if key == "" {
		return fmt.Errorf("%w: reference texts key is required", model.ErrValidation)
	}
	data, err := json.Marshal(texts)
	if err != nil {
		return fmt.Errorf("failed to marshal reference texts: %w", err)
	}
	if err := s.client.Set(ctx, referenceTextsKeyPrefix+key, data, referenceTextsTTL).Err(); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to store reference texts")
		return fmt.Errorf("failed to store reference texts: %w", err)
	}
	log.Debug().Str("key", key).Msg("Reference texts stored")
	return nil
}

func (s *redisReferenceTextStore) Consume(ctx context.Context, key string) (model.ReferenceTexts, error) {
	var texts model.ReferenceTexts
	if key == "" {
		return texts, nil
	}
	// GETDEL: чтение и удаление одной атомарной операцией,
	// тексты потребляются ровно одним прогоном.
	data, err := s.client.GetDel(ctx, referenceTextsKeyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return texts, nil
		}
		log.Error().Err(err).Str("key", key).Msg("Failed to consume reference texts")
		return texts, fmt.Errorf("failed to consume reference texts: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &texts); err != nil {
		return model.ReferenceTexts{}, fmt.Errorf("failed to unmarshal reference texts: %w", err)
	}
	log.Debug().Str("key", key).Msg("Reference texts consumed")
	return texts, nil
}
