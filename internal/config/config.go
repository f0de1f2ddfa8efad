package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит конфигурацию сервиса генерации постов.
type Config struct {
	// Настройки HTTP/WebSocket сервера
	HTTPPort    string `envconfig:"HTTP_PORT" default:"8080"`
	MetricsPort string `envconfig:"METRICS_PORT" default:"9091"`

	// Настройки AI (OpenAI-совместимый endpoint или Ollama)
	AIClientType       string        `envconfig:"AI_CLIENT_TYPE" default:"openai"`
	AIBaseURL          string        `envconfig:"AI_BASE_URL" default:"https://api.openai.com/v1"`
	AIModel            string        `envconfig:"AI_MODEL" default:"gpt-4o-mini"`
	AITimeout          time.Duration `envconfig:"AI_TIMEOUT" default:"120s"`
	AIMaxContextTokens int           `envconfig:"AI_MAX_CONTEXT_TOKENS" default:"24000"`
	// Секретное поле БЕЗ envconfig тега
	AIAPIKey string

	// Настройки генерации изображений
	ImageClientType    string        `envconfig:"IMAGE_CLIENT_TYPE" default:"openai"`
	ImageServerURL     string        `envconfig:"IMAGE_SERVER_URL" default:"http://localhost:8500"`
	ImageTimeout       time.Duration `envconfig:"IMAGE_TIMEOUT" default:"60s"`
	ImageModel         string        `envconfig:"IMAGE_MODEL" default:"dall-e-3"`
	ImageSize          string        `envconfig:"IMAGE_SIZE" default:"1024x1024"`
	ImageSavePath      string        `envconfig:"IMAGE_SAVE_PATH" default:"/data/images"`
	ImagePublicBaseURL string        `envconfig:"IMAGE_PUBLIC_BASE_URL" default:""`

	// Настройки PostgreSQL
	DBHost        string        `envconfig:"DB_HOST" default:"localhost"`
	DBPort        string        `envconfig:"DB_PORT" default:"5432"`
	DBUser        string        `envconfig:"DB_USER" default:"postgres"`
	DBName        string        `envconfig:"DB_NAME" default:"post_db"`
	DBSSLMode     string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns    int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout time.Duration `envconfig:"DB_MAX_IDLE_MINUTES" default:"5m"`
	// Секретное поле БЕЗ envconfig тега
	DBPassword string

	// Настройки Redis (хранилище справочных текстов)
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Настройки RabbitMQ (опциональные уведомления о готовых постах).
	// Пустой URL отключает нотификатор.
	RabbitMQURL            string `envconfig:"RABBITMQ_URL" default:""`
	NotificationsQueueName string `envconfig:"NOTIFICATIONS_QUEUE" default:"post_generated_events"`
}

// GetDSN возвращает строку подключения (DSN) для PostgreSQL.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// LoadConfig загружает конфигурацию из переменных окружения и секретов.
func LoadConfig() (*Config, error) {
	var cfg Config
	// Загружаем НЕсекретные переменные
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	// Загружаем ОБЯЗАТЕЛЬНЫЕ секреты
	var loadErr error
	cfg.AIAPIKey, loadErr = readSecret("ai_api_key")
	if loadErr != nil {
		return nil, loadErr
	}

	cfg.DBPassword, loadErr = readSecret("db_password")
	if loadErr != nil {
		return nil, loadErr
	}

	// Логируем загруженную конфигурацию (кроме паролей/ключей)
	log.Printf("Конфигурация загружена (секреты из файлов):")
	log.Printf("  HTTP Port: %s, Metrics Port: %s", cfg.HTTPPort, cfg.MetricsPort)
	log.Printf("  AI Client: %s, Base URL: %s, Model: %s", cfg.AIClientType, cfg.AIBaseURL, cfg.AIModel)
	log.Printf("  AI Timeout: %v, Max Context Tokens: %d", cfg.AITimeout, cfg.AIMaxContextTokens)
	log.Printf("  Image Client: %s, Model: %s", cfg.ImageClientType, cfg.ImageModel)
	log.Printf("  DB DSN: %s", cfg.getMaskedDSN())
	log.Printf("  Redis Addr: %s (db %d)", cfg.RedisAddr, cfg.RedisDB)
	if cfg.RabbitMQURL != "" {
		log.Printf("  RabbitMQ: включен, очередь '%s'", cfg.NotificationsQueueName)
	} else {
		log.Printf("  RabbitMQ: отключен")
	}
	log.Println("  AI API Key: [ЗАГРУЖЕН]")

	return &cfg, nil
}

// getMaskedDSN возвращает DSN с замаскированным паролем для логирования.
func (c *Config) getMaskedDSN() string {
	dsn := c.GetDSN()
	parts := strings.Split(dsn, "@")
	if len(parts) != 2 {
		return "[invalid dsn format]"
	}
	userInfo := strings.Split(parts[0], ":")
	if len(userInfo) >= 2 {
		userInfo[len(userInfo)-1] = "********" // Маскируем пароль
	}
	return strings.Join(userInfo, ":") + "@" + parts[1]
}
