package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/guardian_tracking_system/internal/geo"
	"github.com/shenikar/guardian_tracking_system/internal/models"
	"github.com/shenikar/guardian_tracking_system/internal/notifier"
	"github.com/sirupsen/logrus"
)

//go:generate mockgen -source=alert.go -destination=mocks/alert_mock.go -package=mocks

// AlertRepository определяет контракт для работы с бд оповещений
type AlertRepository interface {
	Create(ctx context.Context, alert *models.SafetyAlert) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SafetyAlert, error)
	// UpdateState выполняет переход состояния как compare-and-swap;
	// возвращает false, если оповещение уже не в состоянии from
	UpdateState(ctx context.Context, id uuid.UUID, from, to models.AlertState) (bool, error)
	ListAlerts(ctx context.Context, page, pageSize int) ([]*models.SafetyAlert, error)
	ListByStates(ctx context.Context, states ...models.AlertState) ([]*models.SafetyAlert, error)
	GetAlertFromCache(ctx context.Context, id uuid.UUID) (*models.SafetyAlert, error)
	SetAlertCache(ctx context.Context, alert *models.SafetyAlert) error
	InvalidateAlertCache(ctx context.Context, id uuid.UUID) error
}

// AlertService определяет контракт бизнес-логики жизненного цикла оповещений
type AlertService interface {
	CreateAlert(ctx context.Context, alert *models.SafetyAlert) error
	GetAlert(ctx context.Context, id uuid.UUID) (*models.SafetyAlert, error)
	ListAlerts(ctx context.Context, page, pageSize int) ([]*models.SafetyAlert, error)
	DeactivateAlert(ctx context.Context, id uuid.UUID, actor string) error
	AlertsForLocation(ctx context.Context, lat, lon float64) ([]*models.SafetyAlert, error)
	Sweep(ctx context.Context)
	ActiveAlertCount(ctx context.Context) (int, error)
	SetPusher(pusher AlertPusher)
}

// AlertPusher доставляет активированное оповещение подключенным клиентам,
// чье последнее известное местоположение попадает в зону оповещения
type AlertPusher interface {
	PushAlert(alert *models.SafetyAlert)
}

type alertService struct {
	repo      AlertRepository
	logger    *logrus.Logger
	publisher notifier.Publisher
	pusher    AlertPusher
}

// NewAlertService создает сервис жизненного цикла оповещений
func NewAlertService(repo AlertRepository, logger *logrus.Logger, publisher notifier.Publisher) AlertService {
	return &alertService{
		repo:      repo,
		logger:    logger,
		publisher: publisher,
	}
}

// SetPusher подключает доставку оповещений клиентам шлюза.
// Вызывается один раз при старте, до начала обслуживания соединений.
func (s *alertService) SetPusher(pusher AlertPusher) {
	s.pusher = pusher
}

// CreateAlert валидирует и создает оповещение. Начальное состояние - scheduled,
// если activation_time в будущем, иначе оповещение активируется немедленно.
func (s *alertService) CreateAlert(ctx context.Context, alert *models.SafetyAlert) error {
	log := s.logger.WithFields(logrus.Fields{
		"service": "alert",
		"method":  "CreateAlert",
		"title":   alert.Title,
	})
	log.Info("Attempting to create a new safety alert")

	if err := validateAlertSpec(alert); err != nil {
		log.WithError(err).Warn("Alert spec validation failed")
		return err
	}

	now := time.Now()
	if alert.ActivationTime.IsZero() {
		alert.ActivationTime = now
	}
	switch {
	case alert.ExpiresAt != nil && !alert.ExpiresAt.After(now):
		// Оба срока уже прошли: active требует expires_at > now,
		// поэтому оповещение рождается сразу expired, без побочных эффектов
		alert.State = models.AlertStateExpired
	case alert.ActivationTime.After(now):
		alert.State = models.AlertStateScheduled
	default:
		alert.State = models.AlertStateActive
	}

	if err := s.repo.Create(ctx, alert); err != nil {
		log.WithError(err).Error("Failed to create alert in repository")
		return fmt.Errorf("service: could not create alert: %w", err)
	}

	log.WithField("alert_id", alert.ID).WithField("state", alert.State).Info("Alert created successfully")

	if alert.State == models.AlertStateActive {
		s.activated(ctx, alert)
	}
	return nil
}

// validateAlertSpec проверяет инварианты спецификации оповещения
func validateAlertSpec(alert *models.SafetyAlert) error {
	if alert.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidAlertSpec)
	}
	if len(alert.DeliveryChannels) == 0 {
		return fmt.Errorf("%w: delivery channel set must not be empty", ErrInvalidAlertSpec)
	}
	for _, channel := range alert.DeliveryChannels {
		switch channel {
		case models.ChannelPush, models.ChannelEmail, models.ChannelSMS:
		default:
			return fmt.Errorf("%w: unknown delivery channel %q", ErrInvalidAlertSpec, channel)
		}
	}
	if !alert.Scope.CampusWide {
		// Центр (0, 0) трактуется как незаданный: точка в океане,
		// для кампуса заведомо бессмысленная
		if alert.Scope.Latitude == 0 && alert.Scope.Longitude == 0 {
			return fmt.Errorf("%w: location-specific scope requires an explicit center", ErrInvalidAlertSpec)
		}
		if alert.Scope.RadiusMeters <= 0 {
			return fmt.Errorf("%w: location-specific scope requires a positive radius", ErrInvalidAlertSpec)
		}
	}
	if alert.ExpiresAt != nil {
		activation := alert.ActivationTime
		if activation.IsZero() {
			activation = time.Now()
		}
		if !alert.ExpiresAt.After(activation) {
			return fmt.Errorf("%w: expires_at must be after activation time", ErrInvalidAlertSpec)
		}
	}
	return nil
}

// activated выполняет побочные эффекты активации: постановку запросов доставки
// в очередь нотификатора и push подключенным клиентам в зоне оповещения.
// Ошибки доставки логируются и не откатывают переход состояния.
func (s *alertService) activated(ctx context.Context, alert *models.SafetyAlert) {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "alert",
		"method":   "activated",
		"alert_id": alert.ID,
	})

	recipients := alert.Recipients
	if len(recipients) == 0 {
		// Без явных получателей оповещение адресуется всему кампусу;
		// разрешение адресатов выполняет внешний шлюз уведомлений
		recipients = []string{"campus"}
	}

	for _, channel := range alert.DeliveryChannels {
		for _, recipient := range recipients {
			req := notifier.DeliveryRequest{
				AlertID:   alert.ID,
				Channel:   channel,
				Recipient: recipient,
				Title:     alert.Title,
				Message:   alert.Message,
				Severity:  alert.Severity,
				Timestamp: time.Now(),
			}
			if err := s.publisher.Publish(ctx, req); err != nil {
				log.WithError(err).WithField("channel", channel).Error("Failed to enqueue delivery request")
			}
		}
	}

	if s.pusher != nil {
		s.pusher.PushAlert(alert)
	}
}

// GetAlert получает оповещение по ID, сначала из кеша, затем из БД
func (s *alertService) GetAlert(ctx context.Context, id uuid.UUID) (*models.SafetyAlert, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "alert",
		"method":   "GetAlert",
		"alert_id": id,
	})

	cached, err := s.repo.GetAlertFromCache(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Failed to read alert from cache")
	}
	if cached != nil {
		return cached, nil
	}

	alert, err := s.repo.GetByID(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Failed to get alert from repository")
		return nil, fmt.Errorf("service: could not get alert: %w", ErrAlertNotFound)
	}

	if err := s.repo.SetAlertCache(ctx, alert); err != nil {
		log.WithError(err).Warn("Failed to cache alert")
	}
	return alert, nil
}

// ListAlerts возвращает список оповещений с пагинацией
func (s *alertService) ListAlerts(ctx context.Context, page, pageSize int) ([]*models.SafetyAlert, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	log := s.logger.WithFields(logrus.Fields{
		"service":   "alert",
		"method":    "ListAlerts",
		"page":      page,
		"page_size": pageSize,
	})

	alerts, err := s.repo.ListAlerts(ctx, page, pageSize)
	if err != nil {
		log.WithError(err).Error("Failed to list alerts from repository")
		return nil, fmt.Errorf("service: could not list alerts: %w", err)
	}

	log.WithField("count", len(alerts)).Info("Alerts listed successfully")
	return alerts, nil
}

// DeactivateAlert переводит оповещение из active в deactivated.
// Деактивация - переход состояния, а не удаление: история сохраняется.
func (s *alertService) DeactivateAlert(ctx context.Context, id uuid.UUID, actor string) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "alert",
		"method":   "DeactivateAlert",
		"alert_id": id,
		"actor":    actor,
	})
	log.Info("Attempting to deactivate alert")

	alert, err := s.repo.GetByID(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Attempted to deactivate a non-existent alert")
		return fmt.Errorf("service: alert with id %s not found for deactivate: %w", id, ErrAlertNotFound)
	}

	// Ленивая продвижка: истекшие сроки применяются до проверки состояния
	state := s.evaluate(ctx, alert, time.Now())
	if state != models.AlertStateActive {
		log.WithField("state", state).Warn("Attempted to deactivate a non-active alert")
		return fmt.Errorf("service: alert %s is in state %s: %w", id, state, ErrAlertNotActive)
	}

	changed, err := s.repo.UpdateState(ctx, id, models.AlertStateActive, models.AlertStateDeactivated)
	if err != nil {
		log.WithError(err).Error("Failed to deactivate alert in repository")
		return fmt.Errorf("service: could not deactivate alert: %w", err)
	}
	if !changed {
		// Конкурентный переход выиграл гонку
		return fmt.Errorf("service: alert %s is no longer active: %w", id, ErrAlertNotActive)
	}

	if err := s.repo.InvalidateAlertCache(ctx, id); err != nil {
		log.WithError(err).Warn("Failed to invalidate alert cache")
	}

	log.Info("Alert deactivated successfully")
	return nil
}

// AlertsForLocation возвращает активные оповещения, зона которых накрывает точку:
// все campus-wide плюс круговые зоны, содержащие точку. Сортировка:
// priority по убыванию, при равенстве created_at по убыванию.
func (s *alertService) AlertsForLocation(ctx context.Context, lat, lon float64) ([]*models.SafetyAlert, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "alert",
		"method":  "AlertsForLocation",
	})

	// Продвижка до чтения: результат отражает все истекшие к началу чтения сроки
	s.Sweep(ctx)

	active, err := s.repo.ListByStates(ctx, models.AlertStateActive)
	if err != nil {
		log.WithError(err).Error("Failed to list active alerts")
		return nil, fmt.Errorf("service: could not list active alerts: %w", err)
	}

	matched := make([]*models.SafetyAlert, 0, len(active))
	for _, alert := range active {
		if geo.Contains(alert.Scope, lat, lon) {
			matched = append(matched, alert)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		ri, rj := models.PriorityRank(matched[i].Priority), models.PriorityRank(matched[j].Priority)
		if ri != rj {
			return ri > rj
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	return matched, nil
}

// Sweep продвигает жизненный цикл: scheduled -> active после activation_time,
// active -> expired после expires_at. Продвижка идемпотентна: CAS на уровне
// репозитория гарантирует, что побочные эффекты активации выполняются один раз.
func (s *alertService) Sweep(ctx context.Context) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "alert",
		"method":  "Sweep",
	})

	alerts, err := s.repo.ListByStates(ctx, models.AlertStateScheduled, models.AlertStateActive)
	if err != nil {
		log.WithError(err).Error("Failed to list alerts for sweep")
		return
	}

	now := time.Now()
	for _, alert := range alerts {
		s.evaluate(ctx, alert, now)
	}
}

// evaluate применяет к одному оповещению все наступившие переходы
// и возвращает результирующее состояние
func (s *alertService) evaluate(ctx context.Context, alert *models.SafetyAlert, now time.Time) models.AlertState {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "alert",
		"method":   "evaluate",
		"alert_id": alert.ID,
	})
	state := alert.State

	expired := alert.ExpiresAt != nil && !alert.ExpiresAt.After(now)

	if state == models.AlertStateScheduled && !alert.ActivationTime.After(now) {
		changed, err := s.repo.UpdateState(ctx, alert.ID, models.AlertStateScheduled, models.AlertStateActive)
		if err != nil {
			log.WithError(err).Error("Failed to promote scheduled alert")
			return state
		}
		if changed {
			state = models.AlertStateActive
			if err := s.repo.InvalidateAlertCache(ctx, alert.ID); err != nil {
				log.WithError(err).Warn("Failed to invalidate alert cache")
			}
			if !expired {
				// Побочные эффекты активации выполняются только победителем CAS
				promoted := *alert
				promoted.State = state
				log.Info("Scheduled alert promoted to active")
				s.activated(ctx, &promoted)
			}
		} else {
			state = models.AlertStateActive
		}
	}

	if state == models.AlertStateActive && expired {
		changed, err := s.repo.UpdateState(ctx, alert.ID, models.AlertStateActive, models.AlertStateExpired)
		if err != nil {
			log.WithError(err).Error("Failed to expire alert")
			return state
		}
		if changed {
			state = models.AlertStateExpired
			if err := s.repo.InvalidateAlertCache(ctx, alert.ID); err != nil {
				log.WithError(err).Warn("Failed to invalidate alert cache")
			}
			log.Info("Active alert expired")
		} else {
			state = models.AlertStateExpired
		}
	}

	return state
}

// ActiveAlertCount возвращает число активных оповещений
func (s *alertService) ActiveAlertCount(ctx context.Context) (int, error) {
	active, err := s.repo.ListByStates(ctx, models.AlertStateActive)
	if err != nil {
		return 0, fmt.Errorf("service: could not count active alerts: %w", err)
	}
	return len(active), nil
}
