package service_test // Используем _test пакет для изоляции

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"post-server/internal/model"
	"post-server/internal/service"
)

// ReferenceStoreIntegrationSuite проверяет consume-once семантику хранилища
// справочных текстов против настоящего Redis: атомарность GETDEL на моках
// не проверишь.
type ReferenceStoreIntegrationSuite struct {
	suite.Suite
	ctx         context.Context
	rdContainer *tcredis.RedisContainer
	client      *redis.Client
	store       service.ReferenceTextStore
}

// SetupSuite выполняется один раз перед всеми тестами в наборе
func (s *ReferenceStoreIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	rdContainer, err := tcredis.Run(s.ctx,
		"docker.io/redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("* Ready to accept connections").
				WithOccurrence(1).
				WithStartupTimeout(1*time.Minute),
		),
	)
	require.NoError(s.T(), err, "Failed to start redis container")
	s.rdContainer = rdContainer

	host, err := rdContainer.Host(s.ctx)
	require.NoError(s.T(), err)
	port, err := rdContainer.MappedPort(s.ctx, "6379/tcp")
	require.NoError(s.T(), err)

	s.client = redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	require.NoError(s.T(), s.client.Ping(s.ctx).Err(), "Failed to connect to test redis")

	s.store = service.NewRedisReferenceTextStore(s.client)
}

// TearDownSuite выполняется один раз после всех тестов
func (s *ReferenceStoreIntegrationSuite) TearDownSuite() {
	if s.client != nil {
		_ = s.client.Close()
	}
	if s.rdContainer != nil {
		_ = s.rdContainer.Terminate(s.ctx)
	}
}

func (s *ReferenceStoreIntegrationSuite) TestConsumeOnce() {
	t := s.T()
	texts := model.ReferenceTexts{
		InfoContent:    "background facts",
		SampleText:     "style sample",
		SampleKeywords: "one, two",
	}

	require.NoError(t, s.store.Put(s.ctx, "run-key-1", texts))

	// Первое чтение возвращает тексты и удаляет запись.
	got, err := s.store.Consume(s.ctx, "run-key-1")
	require.NoError(t, err)
	assert.Equal(t, texts, got)

	// Повторное чтение того же ключа - пустые тексты, не ошибка.
	again, err := s.store.Consume(s.ctx, "run-key-1")
	require.NoError(t, err)
	assert.Equal(t, model.ReferenceTexts{}, again)

	// Ключ действительно удален из Redis, а не просто опустошен.
	exists, err := s.client.Exists(s.ctx, "reference_texts:run-key-1").Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}

func (s *ReferenceStoreIntegrationSuite) TestConsumeMissingKey() {
	t := s.T()
	got, err := s.store.Consume(s.ctx, "never-stored")
	require.NoError(t, err)
	assert.Equal(t, model.ReferenceTexts{}, got)
}

func (s *ReferenceStoreIntegrationSuite) TestPutOverwritesPreviousTexts() {
	t := s.T()
	require.NoError(t, s.store.Put(s.ctx, "run-key-2", model.ReferenceTexts{InfoContent: "first"}))
	require.NoError(t, s.store.Put(s.ctx, "run-key-2", model.ReferenceTexts{InfoContent: "second"}))

	got, err := s.store.Consume(s.ctx, "run-key-2")
	require.NoError(t, err)
	assert.Equal(t, "second", got.InfoContent)
}

// TestReferenceStoreIntegrationSuite запускает набор тестов
func TestReferenceStoreIntegrationSuite(t *testing.T) {
	// Пропускаем тесты, если запущены с флагом -short
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	suite.Run(t, new(ReferenceStoreIntegrationSuite))
}
