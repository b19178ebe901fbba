package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	deliveryQueueKey = "alert_delivery_requests"
)

// DeliveryRequest - запрос на доставку оповещения по одному каналу одному получателю.
// Фактическую доставку (push/email/sms) выполняет внешний шлюз уведомлений.
type DeliveryRequest struct {
	AlertID   uuid.UUID `json:"alert_id"`
	Channel   string    `json:"channel"`
	Recipient string    `json:"recipient"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
}

//go:generate mockgen -source=publisher.go -destination=mocks/publisher_mock.go -package=mocks

// Publisher - интерфейс для постановки запросов доставки в очередь
type Publisher interface {
	Publish(ctx context.Context, req DeliveryRequest) error
}

// RedisPublisher - реализация Publisher, использующая Redis
type RedisPublisher struct {
	redisClient *redis.Client
}

// NewRedisPublisher создает новый RedisPublisher
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{
		redisClient: client,
	}
}

// Publish публикует запрос доставки в очередь Redis
func (p *RedisPublisher) Publish(ctx context.Context, req DeliveryRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery request: %w", err)
	}

	// Используем LPUSH для добавления запроса в левую часть списка (очереди)
	if err := p.redisClient.LPush(ctx, deliveryQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish delivery request to Redis: %w", err)
	}
	return nil
}
