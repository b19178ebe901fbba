package v1

import (
	"time"

	"github.com/google/uuid"
)

// CreateAlertRequest DTO для создания оповещения безопасности
// @Description DTO для создания оповещения безопасности
type CreateAlertRequest struct {
	Title            string     `json:"title" validate:"required,min=2,max=255"`
	Message          string     `json:"message,omitempty"`
	Severity         string     `json:"severity" validate:"required,oneof=critical warning info"`
	Priority         string     `json:"priority" validate:"required,oneof=high medium low"`
	Category         string     `json:"category,omitempty"`
	ActivationTime   *time.Time `json:"activation_time,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	CampusWide       bool       `json:"campus_wide"`
	Latitude         *float64   `json:"latitude,omitempty" validate:"required_if=CampusWide false,omitempty,latitude"`
	Longitude        *float64   `json:"longitude,omitempty" validate:"required_if=CampusWide false,omitempty,longitude"`
	RadiusMeters     int        `json:"radius_meters,omitempty" validate:"required_if=CampusWide false,omitempty,gt=0"`
	DeliveryChannels []string   `json:"delivery_channels" validate:"required,min=1,dive,oneof=push email sms"`
	Recipients       []string   `json:"recipients,omitempty"`
}

// AlertResponse DTO для ответа с информацией об оповещении
// @Description DTO для ответа с информацией об оповещении
type AlertResponse struct {
	ID               uuid.UUID  `json:"id"`
	Title            string     `json:"title"`
	Message          string     `json:"message,omitempty"`
	Severity         string     `json:"severity"`
	Priority         string     `json:"priority"`
	Category         string     `json:"category,omitempty"`
	CreatedBy        string     `json:"created_by"`
	CreatedAt        time.Time  `json:"created_at"`
	ActivationTime   time.Time  `json:"activation_time"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	CampusWide       bool       `json:"campus_wide"`
	Latitude         float64    `json:"latitude,omitempty"`
	Longitude        float64    `json:"longitude,omitempty"`
	RadiusMeters     int        `json:"radius_meters,omitempty"`
	DeliveryChannels []string   `json:"delivery_channels"`
	Recipients       []string   `json:"recipients,omitempty"`
	State            string     `json:"state"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// LocationAlertsRequest DTO для запроса оповещений по координатам
// @Description DTO для запроса оповещений по координатам
type LocationAlertsRequest struct {
	Latitude  float64 `json:"latitude" validate:"required,latitude"`
	Longitude float64 `json:"longitude" validate:"required,longitude"`
}

// EscortSessionResponse DTO для ответа с информацией о сессии сопровождения
// @Description DTO для ответа с информацией о сессии сопровождения
type EscortSessionResponse struct {
	ID          uuid.UUID  `json:"id"`
	UserID      string     `json:"user_id"`
	Destination string     `json:"destination"`
	Deadline    time.Time  `json:"deadline"`
	State       string     `json:"state"`
	GuardianIDs []string   `json:"guardian_ids,omitempty"`
	AlertID     *uuid.UUID `json:"alert_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}

// StatsResponse DTO для ответа со статистикой сервиса
// @Description DTO для ответа со статистикой сервиса
type StatsResponse struct {
	ActiveAlerts    int `json:"active_alerts"`
	ActiveSessions  int `json:"active_sessions"`
	Subscribers     int `json:"subscribers"`
	TrackedSubjects int `json:"tracked_subjects"`
}
