package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.uber.org/zap"

	"post-server/internal/config"
	"post-server/internal/handler"
	"post-server/internal/orchestrator"
	"post-server/internal/repository"
	"post-server/internal/service"
	"post-server/migrations"
	"post-server/pkg/database"
	"post-server/pkg/migration"
)

const (
	// Количество попыток подключения к внешней инфраструктуре при старте.
	dbConnectAttempts     = 10
	rabbitConnectAttempts = 5
	rabbitRetryDelay      = 3 * time.Second

	shutdownTimeout = 15 * time.Second
)

func main() {
	log.Println("Запуск сервиса генерации постов...")

	// .env нужен только для локальной разработки, его отсутствие - норма
	if err := godotenv.Load(); err != nil {
		log.Println("Файл .env не найден, используются переменные окружения")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	zlogger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Ошибка инициализации zap логгера: %v", err)
	}
	defer zapLogger.Sync()

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// --- PostgreSQL + миграции ---
	log.Println("Подключение к PostgreSQL...")
	dbPool, err := database.ConnectWithRetry(rootCtx, cfg.GetDSN(), database.PoolOptions{
		MaxConns:    cfg.DBMaxConns,
		IdleTimeout: cfg.DBIdleTimeout,
	}, dbConnectAttempts)
	if err != nil {
		log.Fatalf("Не удалось подключиться к базе данных: %v", err)
	}
	defer dbPool.Close()

	if err := migration.NewMigrator(migrations.FS, ".", dbPool).Up(); err != nil {
		log.Fatalf("Ошибка применения миграций: %v", err)
	}

	// --- Redis (справочные тексты) ---
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redisClient.Ping(rootCtx).Err(); err != nil {
		log.Fatalf("Не удалось подключиться к Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Успешное подключение к Redis")

	// --- RabbitMQ (опциональные уведомления) ---
	notifier := service.NewNoopNotifier()
	if cfg.RabbitMQURL != "" {
		conn, err := connectRabbitMQ(cfg.RabbitMQURL)
		if err != nil {
			log.Fatalf("Не удалось подключиться к RabbitMQ: %v", err)
		}
		defer conn.Close()

		ch, err := conn.Channel()
		if err != nil {
			log.Fatalf("Не удалось открыть канал RabbitMQ: %v", err)
		}
		defer ch.Close()

		notifier, err = service.NewRabbitMQNotifier(ch, cfg.NotificationsQueueName)
		if err != nil {
			log.Fatalf("Не удалось создать нотификатор: %v", err)
		}
	} else {
		log.Println("RabbitMQ не сконфигурирован, уведомления отключены")
	}

	// --- Внешние AI сервисы ---
	aiClient, err := service.NewAIClient(cfg)
	if err != nil {
		log.Fatalf("Ошибка инициализации AI клиента: %v", err)
	}

	imageGenerator, err := service.NewImageGenerator(cfg, zapLogger)
	if err != nil {
		log.Fatalf("Ошибка инициализации генератора изображений: %v", err)
	}

	// --- Сборка приложения ---
	postRepo := repository.NewPostgresPostRepository(dbPool)
	refTextStore := service.NewRedisReferenceTextStore(redisClient)
	generationOrchestrator := orchestrator.New(aiClient, cfg.AIModel, cfg.AIMaxContextTokens, zlogger)
	postService := service.NewPostService(postRepo, imageGenerator, generationOrchestrator, refTextStore, notifier, zlogger)

	httpHandler := handler.NewHTTPHandler(postService, zlogger)
	wsHandler := handler.NewWebSocketHandler(postService, zlogger)

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		MaxAge:           12 * time.Hour,
		AllowCredentials: false,
	}))
	httpHandler.RegisterRoutes(router)
	router.GET("/ws", gin.WrapF(wsHandler.ServeWS))

	go startMetricsServer(cfg.MetricsPort)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
		// Стриминг статьи живет долго, write timeout не ставим
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		log.Printf("Запуск HTTP/WebSocket сервера на порту %s...", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Ошибка запуска HTTP сервера: %v", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Получен сигнал завершения, останавливаем сервер...")

	rootCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Ошибка при остановке HTTP сервера: %v", err)
	}
	log.Println("Сервис остановлен")
}

// connectRabbitMQ подключается к RabbitMQ с повторными попытками.
func connectRabbitMQ(url string) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	for attempt := 1; attempt <= rabbitConnectAttempts; attempt++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			log.Printf("Успешное подключение к RabbitMQ (попытка %d)", attempt)
			return conn, nil
		}
		log.Printf("Попытка подключения к RabbitMQ %d/%d не удалась: %v", attempt, rabbitConnectAttempts, err)
		if attempt < rabbitConnectAttempts {
			time.Sleep(rabbitRetryDelay)
		}
	}
	return nil, err
}

// startMetricsServer запускает HTTP-сервер для эндпоинта /metrics и health.
func startMetricsServer(port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status": "ok"}`))
	})

	log.Printf("Запуск сервера метрик Prometheus на :%s...", port)
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		log.Fatalf("Ошибка запуска сервера метрик: %v", err)
	}
}
