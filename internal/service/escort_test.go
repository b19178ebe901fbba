package service_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/guardian_tracking_system/internal/config"
	"github.com/shenikar/guardian_tracking_system/internal/hub"
	"github.com/shenikar/guardian_tracking_system/internal/models"
	"github.com/shenikar/guardian_tracking_system/internal/service"
	"github.com/shenikar/guardian_tracking_system/internal/service/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// newTestEscortService — вспомогательная функция для создания инстанса сервиса с моками.
// Единица дедлайна уменьшена до 10мс, чтобы таймеры срабатывали в тестах быстро.
func newTestEscortService(t *testing.T) (service.EscortService, *mocks.MockAlertService, *hub.Hub) {
	ctrl := gomock.NewController(t)
	alertsMock := mocks.NewMockAlertService(ctrl)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	cfg := &config.Config{
		EscortAlertRadiusMeters: 150,
		SessionRetention:        time.Hour,
	}
	locationHub := hub.NewHub(8, logger)

	svc := service.NewEscortService(alertsMock, locationHub, logger, cfg)
	service.SetDeadlineUnit(svc, 10*time.Millisecond)
	return svc, alertsMock, locationHub
}

// waitForState опрашивает состояние сессии, пока оно не станет ожидаемым
func waitForState(t *testing.T, svc service.EscortService, sessionID uuid.UUID, want models.EscortState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		sess, err := svc.GetSession(context.Background(), sessionID)
		require.NoError(t, err)
		if sess.State == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session %s did not reach state %s", sessionID, want)
}

func TestStartEscort_InvalidDuration(t *testing.T) {
	// Подготовка
	svc, _, _ := newTestEscortService(t)

	// Действие
	_, err := svc.StartEscort(context.Background(), "user-1", "Библиотека", 0, nil)

	// Проверки
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrInvalidDuration)
}

func TestStartEscort_DuplicateActiveSession(t *testing.T) {
	// Подготовка
	svc, _, _ := newTestEscortService(t)
	ctx := context.Background()

	firstID, err := svc.StartEscort(ctx, "user-1", "Библиотека", 100, nil)
	require.NoError(t, err)

	// Действие
	_, err = svc.StartEscort(ctx, "user-1", "Общежитие", 100, nil)

	// Проверки
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrSessionAlreadyActive)

	// Первая сессия осталась активной
	sess, err := svc.GetSession(ctx, firstID)
	require.NoError(t, err)
	assert.Equal(t, models.EscortStateActive, sess.State)
	assert.Equal(t, 1, svc.ActiveSessionCount())
}

func TestConfirmArrival_Success(t *testing.T) {
	// Подготовка
	svc, alertsMock, _ := newTestEscortService(t)
	ctx := context.Background()

	// Эскалация не должна произойти
	alertsMock.EXPECT().CreateAlert(gomock.Any(), gomock.Any()).Times(0)

	sessionID, err := svc.StartEscort(ctx, "user-1", "Библиотека", 100, []string{"guardian-1"})
	require.NoError(t, err)

	// Действие
	err = svc.ConfirmArrival(ctx, sessionID)

	// Проверки
	require.NoError(t, err)
	sess, err := svc.GetSession(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, models.EscortStateArrived, sess.State)
	assert.False(t, sess.EndedAt.IsZero())
	assert.Equal(t, 0, svc.ActiveSessionCount())

	// Повторное подтверждение отклоняется
	err = svc.ConfirmArrival(ctx, sessionID)
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrSessionNotActive)

	// Пользователь снова может начать сопровождение
	_, err = svc.StartEscort(ctx, "user-1", "Общежитие", 100, nil)
	require.NoError(t, err)
}

func TestCancelEscort_Success(t *testing.T) {
	// Подготовка
	svc, alertsMock, _ := newTestEscortService(t)
	ctx := context.Background()

	alertsMock.EXPECT().CreateAlert(gomock.Any(), gomock.Any()).Times(0)

	sessionID, err := svc.StartEscort(ctx, "user-1", "Библиотека", 100, nil)
	require.NoError(t, err)

	// Действие
	err = svc.CancelEscort(ctx, sessionID)

	// Проверки
	require.NoError(t, err)
	sess, err := svc.GetSession(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, models.EscortStateCancelled, sess.State)
	assert.Equal(t, 0, svc.ActiveSessionCount())
}

func TestConfirmArrival_UnknownSession(t *testing.T) {
	// Подготовка
	svc, _, _ := newTestEscortService(t)

	// Действие
	err := svc.ConfirmArrival(context.Background(), uuid.New())

	// Проверки
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrSessionNotFound)
}

func TestDeadlineExpired_AutoAlert(t *testing.T) {
	// Подготовка
	ctrl := gomock.NewController(t)
	svc, alertsMock, _ := newTestEscortService(t)
	pusherMock := mocks.NewMockEscortPusher(ctrl)
	svc.SetPusher(pusherMock)
	ctx := context.Background()
	guardians := []string{"guardian-1", "guardian-2"}

	// Ожидания
	var raised *models.SafetyAlert
	alertsMock.EXPECT().
		CreateAlert(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, alert *models.SafetyAlert) error {
			alert.ID = uuid.New()
			raised = alert
			return nil
		}).Times(1)

	pushed := make(chan struct{})
	pusherMock.EXPECT().
		PushEscortAlert(guardians, gomock.Any(), gomock.Any()).
		Do(func(guardianIDs []string, sessionID, alertID uuid.UUID) {
			close(pushed)
		}).Times(1)

	// Действие: дедлайн через 1 единицу (10мс), подтверждения нет
	sessionID, err := svc.StartEscort(ctx, "user-1", "Библиотека", 1, guardians)
	require.NoError(t, err)

	select {
	case <-pushed:
	case <-time.After(2 * time.Second):
		t.Fatal("escalation push did not happen")
	}

	// Проверки
	sess, err := svc.GetSession(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, models.EscortStateAutoAlerted, sess.State)
	assert.Equal(t, raised.ID, sess.AlertID)
	assert.Equal(t, 0, svc.ActiveSessionCount())

	// Сэмплов местоположения не было — зона оповещения весь кампус
	require.NotNil(t, raised)
	assert.True(t, raised.Scope.CampusWide)
	assert.Equal(t, models.SeverityCritical, raised.Severity)
	assert.Equal(t, models.PriorityHigh, raised.Priority)
	assert.Equal(t, guardians, raised.Recipients)

	// Подтверждение после эскалации отклоняется
	err = svc.ConfirmArrival(ctx, sessionID)
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrSessionNotActive)
}

func TestDeadlineExpired_ScopeFromLastSample(t *testing.T) {
	// Подготовка
	ctrl := gomock.NewController(t)
	svc, alertsMock, locationHub := newTestEscortService(t)
	pusherMock := mocks.NewMockEscortPusher(ctrl)
	svc.SetPusher(pusherMock)
	ctx := context.Background()

	// Последний сэмпл пользователя задает центр зоны оповещения
	locationHub.Publish(models.LocationSample{
		SubjectID:  "user-1",
		Latitude:   55.7500,
		Longitude:  37.6100,
		CapturedAt: time.Now(),
	})

	// Ожидания
	var raised *models.SafetyAlert
	alertsMock.EXPECT().
		CreateAlert(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, alert *models.SafetyAlert) error {
			alert.ID = uuid.New()
			raised = alert
			return nil
		}).Times(1)

	pushed := make(chan struct{})
	pusherMock.EXPECT().
		PushEscortAlert(gomock.Any(), gomock.Any(), gomock.Any()).
		Do(func(guardianIDs []string, sessionID, alertID uuid.UUID) {
			close(pushed)
		}).Times(1)

	// Действие
	_, err := svc.StartEscort(ctx, "user-1", "Библиотека", 1, []string{"guardian-1"})
	require.NoError(t, err)

	select {
	case <-pushed:
	case <-time.After(2 * time.Second):
		t.Fatal("escalation push did not happen")
	}

	// Проверки
	require.NotNil(t, raised)
	assert.False(t, raised.Scope.CampusWide)
	assert.InDelta(t, 55.7500, raised.Scope.Latitude, 1e-9)
	assert.InDelta(t, 37.6100, raised.Scope.Longitude, 1e-9)
	assert.Equal(t, 150, raised.Scope.RadiusMeters)
}

func TestConfirmArrival_RaceWithDeadline(t *testing.T) {
	// Подготовка
	svc, alertsMock, _ := newTestEscortService(t)
	ctx := context.Background()

	// Терминальный исход ровно один: эскалация либо происходит один раз,
	// либо не происходит вовсе
	alertsMock.EXPECT().
		CreateAlert(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, alert *models.SafetyAlert) error {
			alert.ID = uuid.New()
			return nil
		}).MaxTimes(1)

	sessionID, err := svc.StartEscort(ctx, "user-1", "Библиотека", 1, nil)
	require.NoError(t, err)

	// Действие: подтверждение гонится с таймером дедлайна
	confirmErr := svc.ConfirmArrival(ctx, sessionID)

	// Проверки
	sess, err := svc.GetSession(ctx, sessionID)
	require.NoError(t, err)
	if confirmErr == nil {
		assert.Equal(t, models.EscortStateArrived, sess.State)
	} else {
		assert.ErrorIs(t, confirmErr, service.ErrSessionNotActive)
		assert.Equal(t, models.EscortStateAutoAlerted, sess.State)
	}
	assert.Equal(t, 0, svc.ActiveSessionCount())
}

func TestPurgeTerminal_RemovesOldSessions(t *testing.T) {
	// Подготовка
	svc, _, _ := newTestEscortService(t)
	ctx := context.Background()

	sessionID, err := svc.StartEscort(ctx, "user-1", "Библиотека", 100, nil)
	require.NoError(t, err)
	require.NoError(t, svc.CancelEscort(ctx, sessionID))

	activeID, err := svc.StartEscort(ctx, "user-2", "Общежитие", 100, nil)
	require.NoError(t, err)

	// Действие: "сейчас" за пределами срока хранения терминальных сессий
	service.PurgeTerminal(svc, time.Now().Add(2*time.Hour))

	// Проверки
	_, err = svc.GetSession(ctx, sessionID)
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrSessionNotFound)

	// Активная сессия уборке не подлежит
	sess, err := svc.GetSession(ctx, activeID)
	require.NoError(t, err)
	assert.Equal(t, models.EscortStateActive, sess.State)
}
