package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// PostGeneratedNotification - событие о завершении прогона генерации.
type PostGeneratedNotification struct {
	RunID       string `json:"runId"`
	PostID      string `json:"postId,omitempty"`
	Description string `json:"description"`
	Status      string `json:"status"` // success | error
	ErrorDetail string `json:"errorDetail,omitempty"`
}

// Статусы уведомлений.
const (
	NotificationStatusSuccess = "success"
	NotificationStatusError   = "error"
)

// Notifier определяет интерфейс для отправки уведомлений о завершении прогона.
type Notifier interface {
	Notify(ctx context.Context, payload PostGeneratedNotification) error
}

// --- RabbitMQ Implementation ---

// rabbitMQNotifier реализует Notifier для отправки сообщений в RabbitMQ.
// Важно: предполагается, что канал уже открыт и будет закрыт в другом месте
// (например, в main.go).
type rabbitMQNotifier struct {
	channel   *amqp.Channel
	queueName string
}

// NewRabbitMQNotifier создает новый экземпляр Notifier для RabbitMQ.
func NewRabbitMQNotifier(ch *amqp.Channel, queueName string) (Notifier, error) {
	// Объявляем очередь уведомлений (делаем ее durable)
	_, err := ch.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		amqp.Table{"x-queue-mode": "lazy"},
	)
	if err != nil {
		return nil, fmt.Errorf("не удалось объявить очередь уведомлений '%s': %w", queueName, err)
	}
	log.Printf("Очередь уведомлений '%s' успешно объявлена/найдена", queueName)

	return &rabbitMQNotifier{channel: ch, queueName: queueName}, nil
}

// Notify публикует уведомление в очередь RabbitMQ.
func (n *rabbitMQNotifier) Notify(ctx context.Context, payload PostGeneratedNotification) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ошибка сериализации уведомления для RunID %s: %w", payload.RunID, err)
	}

	err = n.channel.PublishWithContext(ctx,
		"",
		n.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
			AppId:        "post-server",
			MessageId:    payload.RunID + "-notif",
		},
	)
	if err != nil {
		log.Printf("[RunID: %s] Ошибка публикации уведомления в RabbitMQ: %v", payload.RunID, err)
		return fmt.Errorf("ошибка публикации уведомления для RunID %s: %w", payload.RunID, err)
	}

	log.Printf("[RunID: %s] Уведомление отправлено в очередь '%s'. Status: %s", payload.RunID, n.queueName, payload.Status)
	return nil
}

// --- Noop Implementation ---

// noopNotifier используется, когда RabbitMQ не сконфигурирован.
type noopNotifier struct{}

// NewNoopNotifier возвращает Notifier, который ничего не делает.
func NewNoopNotifier() Notifier {
	return noopNotifier{}
}

func (noopNotifier) Notify(ctx context.Context, payload PostGeneratedNotification) error {
	return nil
}
