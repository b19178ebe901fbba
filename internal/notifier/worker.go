package notifier

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shenikar/guardian_tracking_system/internal/config"
	"github.com/sirupsen/logrus"
)

// Worker - структура для обработки очереди запросов доставки
type Worker struct {
	redisClient *redis.Client
	logger      *logrus.Logger
	cfg         *config.Config
	httpClient  *http.Client
}

// NewWorker создает новый Worker
func NewWorker(redisClient *redis.Client, logger *logrus.Logger, cfg *config.Config) *Worker {
	return &Worker{
		redisClient: redisClient,
		logger:      logger,
		cfg:         cfg,
		httpClient: &http.Client{
			Timeout: cfg.NotifierTimeout,
		},
	}
}

// Start запускает горутину для обработки очереди доставки
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Starting notifier worker...")
	go func() {
		for {
			select {
			case <-ctx.Done():
				w.logger.Info("Stopping notifier worker.")
				return
			default:
				// BRPOP - блокирующее извлечение из правой части списка (очереди)
				// 0 означает бесконечное ожидание
				result, err := w.redisClient.BRPop(ctx, 0, deliveryQueueKey).Result()
				if err != nil {
					if errors.Is(err, context.Canceled) {
						continue // Контекст отменен, но не ошибка Redis
					}
					w.logger.WithError(err).Error("Failed to pop delivery request from Redis")
					time.Sleep(w.cfg.NotifierTimeout) // Ждем перед повторной попыткой
					continue
				}

				// result[0] - ключ, result[1] - значение
				payload := result[1]
				var req DeliveryRequest
				if err := json.Unmarshal([]byte(payload), &req); err != nil {
					w.logger.WithError(err).Error("Failed to unmarshal delivery request from Redis")
					continue
				}

				w.processDeliveryRequest(ctx, req, payload)
			}
		}
	}()
}

// processDeliveryRequest отправляет запрос доставки во внешний шлюз уведомлений.
// Ошибки доставки только логируются: состояние оповещения остается авторитетным
// вне зависимости от успеха доставки.
func (w *Worker) processDeliveryRequest(ctx context.Context, req DeliveryRequest, rawPayload string) {
	log := w.logger.WithFields(logrus.Fields{
		"alert_id":  req.AlertID,
		"channel":   req.Channel,
		"recipient": req.Recipient,
	})
	log.Debug("Processing delivery request...")

	if w.cfg.NotifierURL == "" {
		log.Warn("Notifier URL is not configured. Skipping delivery.")
		return
	}

	maxRetries := w.cfg.NotifierMaxRetries
	baseDelay := w.cfg.NotifierBaseDelay

	for i := 0; i < maxRetries; i++ {
		httpReq, err := http.NewRequestWithContext(ctx, "POST", w.cfg.NotifierURL, bytes.NewBufferString(rawPayload))
		if err != nil {
			log.WithError(err).Errorf("Failed to create delivery request. Retries left: %d", maxRetries-1-i)
			continue
		}

		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("X-Delivery-Channel", req.Channel)

		// Добавляем HMAC подпись, если NOTIFIER_SECRET задан
		if w.cfg.NotifierSecret != "" {
			signature := generateHMACSHA256(rawPayload, w.cfg.NotifierSecret)
			httpReq.Header.Set("X-Notifier-Signature", signature)
		}

		resp, err := w.httpClient.Do(httpReq)
		if err != nil {
			log.WithError(err).Warnf("Failed to send delivery request. Retrying in %v. Retries left: %d", baseDelay, maxRetries-1-i)
			time.Sleep(baseDelay)
			baseDelay *= 2 // Экспоненциальная задержка
			continue
		}

		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			log.Info("Delivery request sent successfully.")
			return
		}

		log.Warnf("Delivery failed with status code %d. Retrying in %v. Retries left: %d", resp.StatusCode, baseDelay, maxRetries-1-i)
		time.Sleep(baseDelay)
		baseDelay *= 2 // Экспоненциальная задержка
	}

	log.Errorf("Failed to deliver notification after %d retries.", maxRetries)
}

// generateHMACSHA256 генерирует HMAC-SHA256 подпись для данных
func generateHMACSHA256(data, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}
