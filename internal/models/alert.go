package models

import (
	"time"

	"github.com/google/uuid"
)

// AlertState - состояние жизненного цикла оповещения
type AlertState string

const (
	AlertStateScheduled   AlertState = "scheduled"
	AlertStateActive      AlertState = "active"
	AlertStateExpired     AlertState = "expired"
	AlertStateDeactivated AlertState = "deactivated"
)

// Severity оповещения
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Priority оповещения
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Каналы доставки
const (
	ChannelPush  = "push"
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// AlertScope - зона действия оповещения: весь кампус или круг вокруг точки
type AlertScope struct {
	CampusWide   bool    `json:"campus_wide"`
	Latitude     float64 `json:"latitude,omitempty"`
	Longitude    float64 `json:"longitude,omitempty"`
	RadiusMeters int     `json:"radius_meters,omitempty"`
}

// SafetyAlert - оповещение безопасности. Мутируется только через переходы
// жизненного цикла (scheduled -> active -> expired/deactivated), никогда не удаляется.
type SafetyAlert struct {
	ID               uuid.UUID  `json:"id"`
	Title            string     `json:"title"`
	Message          string     `json:"message"`
	Severity         string     `json:"severity"`
	Priority         string     `json:"priority"`
	Category         string     `json:"category"`
	CreatedBy        string     `json:"created_by"`
	CreatedAt        time.Time  `json:"created_at"`
	ActivationTime   time.Time  `json:"activation_time"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	Scope            AlertScope `json:"scope"`
	DeliveryChannels []string   `json:"delivery_channels"`
	Recipients       []string   `json:"recipients,omitempty"`
	State            AlertState `json:"state"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// PriorityRank возвращает числовой ранг приоритета для сортировки (больше - важнее)
func PriorityRank(priority string) int {
	switch priority {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}
