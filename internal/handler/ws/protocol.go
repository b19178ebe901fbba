package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/guardian_tracking_system/internal/models"
)

// Типы входящих команд
const (
	CommandSubscribe       = "subscribe"
	CommandUnsubscribe     = "unsubscribe"
	CommandPublishLocation = "publish_location"
	CommandStartEscort     = "start_escort"
	CommandConfirmArrival  = "confirm_arrival"
	CommandCancelEscort    = "cancel_escort"
)

// Типы исходящих событий
const (
	EventSubscribed      = "subscribed"
	EventUnsubscribed    = "unsubscribed"
	EventAck             = "ack"
	EventOK              = "ok"
	EventError           = "error"
	EventEscortStarted   = "escort_started"
	EventLocationUpdate  = "location_update"
	EventEscortAutoAlert = "escort_auto_alerted"
	EventSafetyAlert     = "safety_alert"
)

// Машиночитаемые коды ошибок протокола
const (
	CodeBadCommand           = "bad_command"
	CodeValidationError      = "validation_error"
	CodeInvalidDuration      = "invalid_duration"
	CodeSessionAlreadyActive = "session_already_active"
	CodeSessionNotActive     = "session_not_active"
	CodeNotFound             = "not_found"
)

// Envelope - конверт команды клиента: тип и полезная нагрузка
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event - конверт события сервера
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// SubscribePayload - команда подписки/отписки на субъектов
type SubscribePayload struct {
	SubjectIDs []string `json:"subject_ids" validate:"required,min=1,dive,required"`
}

// PublishLocationPayload - публикация сэмпла местоположения.
// Субъект всегда сам пользователь соединения.
type PublishLocationPayload struct {
	Latitude   float64   `json:"latitude" validate:"latitude"`
	Longitude  float64   `json:"longitude" validate:"longitude"`
	CapturedAt time.Time `json:"captured_at,omitempty"`
}

// StartEscortPayload - запуск сессии сопровождения.
// Длительность не валидируется здесь: неположительные значения, включая ноль,
// должны дойти до сервиса и вернуться кодом invalid_duration.
type StartEscortPayload struct {
	Destination     string   `json:"destination" validate:"required,max=255"`
	DurationMinutes int      `json:"duration_minutes"`
	GuardianIDs     []string `json:"guardian_ids,omitempty"`
}

// SessionPayload - команда с идентификатором сессии
type SessionPayload struct {
	SessionID uuid.UUID `json:"session_id" validate:"required"`
}

// ErrorPayload - событие ошибки с машиночитаемым кодом
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AckPayload - подтверждение публикации местоположения.
// Accepted=false означает, что сэмпл отклонен как устаревший.
type AckPayload struct {
	Accepted bool `json:"accepted"`
}

// SubjectsPayload - ответ на подписку/отписку
type SubjectsPayload struct {
	SubjectIDs []string `json:"subject_ids"`
}

// EscortStartedPayload - подтверждение запуска сопровождения
type EscortStartedPayload struct {
	SessionID uuid.UUID `json:"session_id"`
	Deadline  time.Time `json:"deadline"`
}

// LocationUpdatePayload - push-событие с новым сэмплом местоположения
type LocationUpdatePayload struct {
	SubjectID  string    `json:"subject_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	CapturedAt time.Time `json:"captured_at"`
}

// EscortAutoAlertPayload - push-событие авто-эскалации опекунам
type EscortAutoAlertPayload struct {
	SessionID uuid.UUID `json:"session_id"`
	AlertID   uuid.UUID `json:"alert_id"`
}

// SafetyAlertPayload - push-событие активированного оповещения
type SafetyAlertPayload struct {
	ID           uuid.UUID  `json:"id"`
	Title        string     `json:"title"`
	Message      string     `json:"message,omitempty"`
	Severity     string     `json:"severity"`
	Priority     string     `json:"priority"`
	Category     string     `json:"category,omitempty"`
	CampusWide   bool       `json:"campus_wide"`
	Latitude     float64    `json:"latitude,omitempty"`
	Longitude    float64    `json:"longitude,omitempty"`
	RadiusMeters int        `json:"radius_meters,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// locationUpdateEvent строит push-событие из сэмпла
func locationUpdateEvent(sample models.LocationSample) Event {
	return Event{
		Type: EventLocationUpdate,
		Payload: LocationUpdatePayload{
			SubjectID:  sample.SubjectID,
			Latitude:   sample.Latitude,
			Longitude:  sample.Longitude,
			CapturedAt: sample.CapturedAt,
		},
	}
}

// safetyAlertEvent строит push-событие из модели оповещения
func safetyAlertEvent(alert *models.SafetyAlert) Event {
	return Event{
		Type: EventSafetyAlert,
		Payload: SafetyAlertPayload{
			ID:           alert.ID,
			Title:        alert.Title,
			Message:      alert.Message,
			Severity:     alert.Severity,
			Priority:     alert.Priority,
			Category:     alert.Category,
			CampusWide:   alert.Scope.CampusWide,
			Latitude:     alert.Scope.Latitude,
			Longitude:    alert.Scope.Longitude,
			RadiusMeters: alert.Scope.RadiusMeters,
			ExpiresAt:    alert.ExpiresAt,
		},
	}
}
