package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/guardian_tracking_system/internal/config"
	"github.com/shenikar/guardian_tracking_system/internal/hub"
	"github.com/shenikar/guardian_tracking_system/internal/models"
	"github.com/sirupsen/logrus"
)

//go:generate mockgen -source=escort.go -destination=mocks/escort_mock.go -package=mocks

// EscortService определяет контракт управления сессиями сопровождения
type EscortService interface {
	StartEscort(ctx context.Context, userID, destination string, durationMinutes int, guardianIDs []string) (uuid.UUID, error)
	ConfirmArrival(ctx context.Context, sessionID uuid.UUID) error
	CancelEscort(ctx context.Context, sessionID uuid.UUID) error
	GetSession(ctx context.Context, sessionID uuid.UUID) (*models.EscortSession, error)
	ActiveSessionCount() int
	SetPusher(pusher EscortPusher)
	StartJanitor(ctx context.Context)
}

// EscortPusher доставляет событие авто-эскалации соединениям опекунов
type EscortPusher interface {
	PushEscortAlert(guardianIDs []string, sessionID, alertID uuid.UUID)
}

// escortSession - одна сессия с собственным мьютексом. Мьютекс - единственная
// точка взаимного исключения для колбэка таймера, ConfirmArrival и CancelEscort:
// кто первым захватил его, тот и решает исход; проигравший видит терминальное
// состояние и не делает ничего. Так достигается ровно один терминальный исход.
type escortSession struct {
	mu      sync.Mutex
	session models.EscortSession
	timer   *time.Timer
}

type escortService struct {
	mu           sync.RWMutex
	sessions     map[uuid.UUID]*escortSession
	activeByUser map[string]uuid.UUID

	alerts AlertService
	hub    *hub.Hub
	pusher EscortPusher
	logger *logrus.Logger
	cfg    *config.Config

	// minute позволяет тестам ускорить дедлайны
	minute time.Duration
}

// NewEscortService создает менеджер сессий сопровождения
func NewEscortService(alerts AlertService, locationHub *hub.Hub, logger *logrus.Logger, cfg *config.Config) EscortService {
	return &escortService{
		sessions:     make(map[uuid.UUID]*escortSession),
		activeByUser: make(map[string]uuid.UUID),
		alerts:       alerts,
		hub:          locationHub,
		logger:       logger,
		cfg:          cfg,
		minute:       time.Minute,
	}
}

// SetPusher подключает доставку событий эскалации клиентам шлюза.
// Вызывается один раз при старте, до начала обслуживания соединений.
func (s *escortService) SetPusher(pusher EscortPusher) {
	s.pusher = pusher
}

// StartEscort создает сессию и взводит таймер дедлайна. Повторный запуск при
// живой сессии отклоняется (SessionAlreadyActive): молчаливая замена оставила бы
// осиротевший таймер, привязанный к затененному состоянию.
func (s *escortService) StartEscort(ctx context.Context, userID, destination string, durationMinutes int, guardianIDs []string) (uuid.UUID, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "escort",
		"method":  "StartEscort",
		"user_id": userID,
	})

	if durationMinutes <= 0 {
		log.Warn("Rejected escort with non-positive duration")
		return uuid.Nil, fmt.Errorf("service: duration must be positive: %w", ErrInvalidDuration)
	}

	duration := time.Duration(durationMinutes) * s.minute
	now := time.Now()

	s.mu.Lock()
	if existingID, ok := s.activeByUser[userID]; ok {
		s.mu.Unlock()
		log.WithField("session_id", existingID).Warn("User already has an active escort session")
		return uuid.Nil, fmt.Errorf("service: user %s already has an active session: %w", userID, ErrSessionAlreadyActive)
	}

	sessionID := uuid.New()
	sess := &escortSession{
		session: models.EscortSession{
			ID:          sessionID,
			UserID:      userID,
			Destination: destination,
			Deadline:    now.Add(duration),
			State:       models.EscortStateActive,
			GuardianIDs: guardianIDs,
			CreatedAt:   now,
		},
	}
	// Сессия публикуется под собственным мьютексом до взвода таймера,
	// чтобы колбэк не мог сработать раньше, чем таймер будет сохранен
	sess.mu.Lock()
	s.sessions[sessionID] = sess
	s.activeByUser[userID] = sessionID
	s.mu.Unlock()

	sess.timer = time.AfterFunc(duration, func() {
		s.deadlineExpired(sessionID)
	})
	sess.mu.Unlock()

	log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"deadline":   sess.session.Deadline,
	}).Info("Escort session started")
	return sessionID, nil
}

// ConfirmArrival подтверждает прибытие. Допустим только из active; после
// авто-эскалации возвращает SessionNotActive - клиент должен явно узнать,
// что таймер уже сработал.
func (s *escortService) ConfirmArrival(ctx context.Context, sessionID uuid.UUID) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":    "escort",
		"method":     "ConfirmArrival",
		"session_id": sessionID,
	})

	sess, err := s.lookup(sessionID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	if sess.session.State != models.EscortStateActive {
		state := sess.session.State
		sess.mu.Unlock()
		log.WithField("state", state).Warn("Arrival confirmation for a non-active session")
		return fmt.Errorf("service: session %s is in state %s: %w", sessionID, state, ErrSessionNotActive)
	}
	sess.timer.Stop()
	sess.session.State = models.EscortStateArrived
	sess.session.EndedAt = time.Now()
	userID := sess.session.UserID
	sess.mu.Unlock()

	s.clearActive(userID, sessionID)
	log.Info("Arrival confirmed")
	return nil
}

// CancelEscort отменяет сопровождение без эскалации. Допустим только из active.
func (s *escortService) CancelEscort(ctx context.Context, sessionID uuid.UUID) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":    "escort",
		"method":     "CancelEscort",
		"session_id": sessionID,
	})

	sess, err := s.lookup(sessionID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	if sess.session.State != models.EscortStateActive {
		state := sess.session.State
		sess.mu.Unlock()
		log.WithField("state", state).Warn("Cancellation of a non-active session")
		return fmt.Errorf("service: session %s is in state %s: %w", sessionID, state, ErrSessionNotActive)
	}
	sess.timer.Stop()
	sess.session.State = models.EscortStateCancelled
	sess.session.EndedAt = time.Now()
	userID := sess.session.UserID
	sess.mu.Unlock()

	s.clearActive(userID, sessionID)
	log.Info("Escort cancelled")
	return nil
}

// deadlineExpired - колбэк таймера. Переход и создание оповещения выполняются
// под мьютексом сессии: конкурентный ConfirmArrival либо успевает раньше
// (таймер видит терминальное состояние и выходит), либо ждет и получает
// SessionNotActive. Эскалация выполняется ровно один раз.
func (s *escortService) deadlineExpired(sessionID uuid.UUID) {
	log := s.logger.WithFields(logrus.Fields{
		"service":    "escort",
		"method":     "deadlineExpired",
		"session_id": sessionID,
	})

	sess, err := s.lookup(sessionID)
	if err != nil {
		log.Warn("Deadline fired for an unknown session")
		return
	}

	sess.mu.Lock()
	if sess.session.State != models.EscortStateActive {
		// Подтверждение или отмена выиграли гонку
		sess.mu.Unlock()
		return
	}
	sess.session.State = models.EscortStateAutoAlerted
	sess.session.EndedAt = time.Now()

	alert := s.buildEscortAlert(&sess.session)
	// Обрыв соединения или недоступность нотификатора не возвращают сессию
	// в active: назначение дедлайна - физическая безопасность пользователя
	if err := s.alerts.CreateAlert(context.Background(), alert); err != nil {
		log.WithError(err).Error("Failed to raise auto-escalation alert")
	} else {
		sess.session.AlertID = alert.ID
	}
	userID := sess.session.UserID
	guardianIDs := sess.session.GuardianIDs
	alertID := sess.session.AlertID
	sess.mu.Unlock()

	s.clearActive(userID, sessionID)

	log.WithField("alert_id", alertID).Info("Escort deadline expired, auto-alert raised")
	if s.pusher != nil {
		s.pusher.PushEscortAlert(guardianIDs, sessionID, alertID)
	}
}

// buildEscortAlert строит оповещение эскалации: зона - круг вокруг последнего
// известного местоположения пользователя, либо весь кампус, если сэмплов нет
func (s *escortService) buildEscortAlert(session *models.EscortSession) *models.SafetyAlert {
	scope := models.AlertScope{CampusWide: true}
	if last := s.hub.LastSample(session.UserID); last != nil {
		scope = models.AlertScope{
			Latitude:     last.Latitude,
			Longitude:    last.Longitude,
			RadiusMeters: s.cfg.EscortAlertRadiusMeters,
		}
	}

	return &models.SafetyAlert{
		Title:            "Escort deadline missed",
		Message:          fmt.Sprintf("User %s did not confirm arrival at %q before the deadline", session.UserID, session.Destination),
		Severity:         models.SeverityCritical,
		Priority:         models.PriorityHigh,
		Category:         "escort",
		CreatedBy:        "system",
		Scope:            scope,
		DeliveryChannels: []string{models.ChannelPush},
		Recipients:       session.GuardianIDs,
	}
}

// GetSession возвращает копию сессии
func (s *escortService) GetSession(ctx context.Context, sessionID uuid.UUID) (*models.EscortSession, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	session := sess.session
	return &session, nil
}

// ActiveSessionCount возвращает число активных сессий
func (s *escortService) ActiveSessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.activeByUser)
}

// StartJanitor запускает горутину, удаляющую терминальные сессии
// после окончания срока хранения
func (s *escortService) StartJanitor(ctx context.Context) {
	interval := s.cfg.SessionRetention / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.purgeTerminal(time.Now())
			}
		}
	}()
}

// purgeTerminal удаляет терминальные сессии старше срока хранения
func (s *escortService) purgeTerminal(now time.Time) {
	cutoff := now.Add(-s.cfg.SessionRetention)

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		sess.mu.Lock()
		expired := sess.session.State.Terminal() && sess.session.EndedAt.Before(cutoff)
		sess.mu.Unlock()
		if expired {
			delete(s.sessions, id)
		}
	}
}

// lookup находит сессию по id
func (s *escortService) lookup(sessionID uuid.UUID) (*escortSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("service: session %s: %w", sessionID, ErrSessionNotFound)
	}
	return sess, nil
}

// clearActive снимает отметку активной сессии пользователя
func (s *escortService) clearActive(userID string, sessionID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.activeByUser[userID]; ok && current == sessionID {
		delete(s.activeByUser, userID)
	}
}
