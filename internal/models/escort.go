package models

import (
	"time"

	"github.com/google/uuid"
)

// EscortState - состояние сессии сопровождения
type EscortState string

const (
	EscortStateActive      EscortState = "active"
	EscortStateArrived     EscortState = "arrived"
	EscortStateAutoAlerted EscortState = "auto_alerted"
	EscortStateCancelled   EscortState = "cancelled"
)

// Terminal сообщает, является ли состояние терминальным
func (s EscortState) Terminal() bool {
	return s == EscortStateArrived || s == EscortStateAutoAlerted || s == EscortStateCancelled
}

// EscortSession - сессия сопровождения с дедлайном прибытия.
// Переходы состояний - единственный мутатор; ровно одна активная сессия на пользователя.
type EscortSession struct {
	ID          uuid.UUID   `json:"id"`
	UserID      string      `json:"user_id"`
	Destination string      `json:"destination"`
	Deadline    time.Time   `json:"deadline"`
	State       EscortState `json:"state"`
	GuardianIDs []string    `json:"guardian_ids"`
	CreatedAt   time.Time   `json:"created_at"`
	// AlertID заполняется после авто-эскалации
	AlertID uuid.UUID `json:"alert_id,omitempty"`
	// EndedAt заполняется при переходе в терминальное состояние
	EndedAt time.Time `json:"ended_at,omitempty"`
}
