package ws

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
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

// newTestGateway поднимает шлюз на httptest-сервере с мокированными сервисами
func newTestGateway(t *testing.T) (*Gateway, *mocks.MockEscortService, *hub.Hub, *httptest.Server) {
	ctrl := gomock.NewController(t)
	alertsMock := mocks.NewMockAlertService(ctrl)
	escortsMock := mocks.NewMockEscortService(ctrl)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	cfg := &config.Config{
		SubscriberBufferSize: 16,
		SendBufferSize:       16,
	}
	locationHub := hub.NewHub(cfg.SubscriberBufferSize, logger)
	gateway := NewGateway(locationHub, alertsMock, escortsMock, logger, cfg)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ws", gateway.HandleConnection)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return gateway, escortsMock, locationHub, server
}

// dialWS подключает тестового клиента с заданным идентификатором пользователя
func dialWS(t *testing.T, server *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	header := http.Header{}
	header.Set("X-User-ID", userID)

	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// sendCommand отправляет команду в конверте протокола
func sendCommand(t *testing.T, conn *websocket.Conn, cmdType string, payload any) {
	t.Helper()
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		raw = data
	}
	require.NoError(t, conn.WriteJSON(Envelope{Type: cmdType, Payload: raw}))
}

// readEvent читает следующее событие сервера
func readEvent(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&event))
	return event.Type, event.Payload
}

// waitForConnections ждет регистрации заданного числа соединений в шлюзе
func waitForConnections(t *testing.T, gateway *Gateway, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if gateway.ConnectionCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("gateway did not reach %d connections", want)
}

func TestGateway_RejectsMissingUserID(t *testing.T) {
	_, _, _, server := newTestGateway(t)
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)

	require.Error(t, err)
	assert.Nil(t, conn)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGateway_SubscribeAndLocationFlow(t *testing.T) {
	_, _, _, server := newTestGateway(t)

	watcher := dialWS(t, server, "guardian-1")
	student := dialWS(t, server, "student-1")

	// Опекун подписывается на студента
	sendCommand(t, watcher, CommandSubscribe, SubscribePayload{SubjectIDs: []string{"student-1"}})
	eventType, _ := readEvent(t, watcher)
	assert.Equal(t, EventSubscribed, eventType)

	// Студент публикует местоположение
	capturedAt := time.Now()
	sendCommand(t, student, CommandPublishLocation, PublishLocationPayload{
		Latitude:   55.7500,
		Longitude:  37.6100,
		CapturedAt: capturedAt,
	})

	eventType, payload := readEvent(t, student)
	assert.Equal(t, EventAck, eventType)
	var ack AckPayload
	require.NoError(t, json.Unmarshal(payload, &ack))
	assert.True(t, ack.Accepted)

	// Опекун получает push с сэмплом
	eventType, payload = readEvent(t, watcher)
	assert.Equal(t, EventLocationUpdate, eventType)
	var update LocationUpdatePayload
	require.NoError(t, json.Unmarshal(payload, &update))
	assert.Equal(t, "student-1", update.SubjectID)
	assert.InDelta(t, 55.7500, update.Latitude, 1e-9)

	// Устаревший сэмпл отклоняется
	sendCommand(t, student, CommandPublishLocation, PublishLocationPayload{
		Latitude:   55.7501,
		Longitude:  37.6101,
		CapturedAt: capturedAt.Add(-time.Minute),
	})
	eventType, payload = readEvent(t, student)
	assert.Equal(t, EventAck, eventType)
	require.NoError(t, json.Unmarshal(payload, &ack))
	assert.False(t, ack.Accepted)
}

func TestGateway_UnsubscribeStopsUpdates(t *testing.T) {
	_, _, locationHub, server := newTestGateway(t)

	watcher := dialWS(t, server, "guardian-1")

	sendCommand(t, watcher, CommandSubscribe, SubscribePayload{SubjectIDs: []string{"student-1"}})
	eventType, _ := readEvent(t, watcher)
	assert.Equal(t, EventSubscribed, eventType)

	sendCommand(t, watcher, CommandUnsubscribe, SubscribePayload{SubjectIDs: []string{"student-1"}})
	eventType, _ = readEvent(t, watcher)
	assert.Equal(t, EventUnsubscribed, eventType)

	// Публикация после отписки не доставляется
	locationHub.Publish(models.LocationSample{
		SubjectID:  "student-1",
		Latitude:   55.75,
		Longitude:  37.61,
		CapturedAt: time.Now(),
	})

	require.NoError(t, watcher.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	var event Event
	err := watcher.ReadJSON(&event)
	assert.Error(t, err) // Таймаут чтения: событий нет
}

func TestGateway_BadCommandKeepsConnection(t *testing.T) {
	_, _, _, server := newTestGateway(t)

	client := dialWS(t, server, "student-1")

	// Неизвестная команда
	sendCommand(t, client, "warp", nil)
	eventType, payload := readEvent(t, client)
	assert.Equal(t, EventError, eventType)
	var protoErr ErrorPayload
	require.NoError(t, json.Unmarshal(payload, &protoErr))
	assert.Equal(t, CodeBadCommand, protoErr.Code)

	// Мусор вместо JSON
	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("not json")))
	eventType, payload = readEvent(t, client)
	assert.Equal(t, EventError, eventType)
	require.NoError(t, json.Unmarshal(payload, &protoErr))
	assert.Equal(t, CodeBadCommand, protoErr.Code)

	// Невалидная полезная нагрузка
	sendCommand(t, client, CommandSubscribe, SubscribePayload{})
	eventType, payload = readEvent(t, client)
	assert.Equal(t, EventError, eventType)
	require.NoError(t, json.Unmarshal(payload, &protoErr))
	assert.Equal(t, CodeValidationError, protoErr.Code)

	// Соединение живо: валидная команда проходит
	sendCommand(t, client, CommandSubscribe, SubscribePayload{SubjectIDs: []string{"student-2"}})
	eventType, _ = readEvent(t, client)
	assert.Equal(t, EventSubscribed, eventType)
}

func TestGateway_StartEscort(t *testing.T) {
	_, escortsMock, _, server := newTestGateway(t)
	sessionID := uuid.New()
	deadline := time.Now().Add(30 * time.Minute)

	escortsMock.EXPECT().
		StartEscort(gomock.Any(), "student-1", "Library", 30, []string{"guardian-1"}).
		Return(sessionID, nil).
		Times(1)
	escortsMock.EXPECT().
		GetSession(gomock.Any(), sessionID).
		Return(&models.EscortSession{ID: sessionID, Deadline: deadline, State: models.EscortStateActive}, nil).
		Times(1)

	client := dialWS(t, server, "student-1")
	sendCommand(t, client, CommandStartEscort, StartEscortPayload{
		Destination:     "Library",
		DurationMinutes: 30,
		GuardianIDs:     []string{"guardian-1"},
	})

	eventType, payload := readEvent(t, client)
	assert.Equal(t, EventEscortStarted, eventType)
	var started EscortStartedPayload
	require.NoError(t, json.Unmarshal(payload, &started))
	assert.Equal(t, sessionID, started.SessionID)
}

func TestGateway_StartEscort_Errors(t *testing.T) {
	_, escortsMock, _, server := newTestGateway(t)

	escortsMock.EXPECT().
		StartEscort(gomock.Any(), "student-1", "Library", -5, gomock.Any()).
		Return(uuid.Nil, fmt.Errorf("service: duration must be positive: %w", service.ErrInvalidDuration)).
		Times(1)
	escortsMock.EXPECT().
		StartEscort(gomock.Any(), "student-1", "Library", 0, gomock.Any()).
		Return(uuid.Nil, fmt.Errorf("service: duration must be positive: %w", service.ErrInvalidDuration)).
		Times(1)
	escortsMock.EXPECT().
		StartEscort(gomock.Any(), "student-1", "Library", 30, gomock.Any()).
		Return(uuid.Nil, fmt.Errorf("service: user student-1 already has an active session: %w", service.ErrSessionAlreadyActive)).
		Times(1)

	client := dialWS(t, server, "student-1")

	sendCommand(t, client, CommandStartEscort, StartEscortPayload{Destination: "Library", DurationMinutes: -5})
	eventType, payload := readEvent(t, client)
	assert.Equal(t, EventError, eventType)
	var protoErr ErrorPayload
	require.NoError(t, json.Unmarshal(payload, &protoErr))
	assert.Equal(t, CodeInvalidDuration, protoErr.Code)

	// Нулевая длительность - тоже invalid_duration, а не ошибка валидации
	sendCommand(t, client, CommandStartEscort, StartEscortPayload{Destination: "Library", DurationMinutes: 0})
	eventType, payload = readEvent(t, client)
	assert.Equal(t, EventError, eventType)
	require.NoError(t, json.Unmarshal(payload, &protoErr))
	assert.Equal(t, CodeInvalidDuration, protoErr.Code)

	sendCommand(t, client, CommandStartEscort, StartEscortPayload{Destination: "Library", DurationMinutes: 30})
	eventType, payload = readEvent(t, client)
	assert.Equal(t, EventError, eventType)
	require.NoError(t, json.Unmarshal(payload, &protoErr))
	assert.Equal(t, CodeSessionAlreadyActive, protoErr.Code)
}

func TestGateway_ConfirmArrival(t *testing.T) {
	_, escortsMock, _, server := newTestGateway(t)
	sessionID := uuid.New()

	escortsMock.EXPECT().ConfirmArrival(gomock.Any(), sessionID).Return(nil).Times(1)
	escortsMock.EXPECT().
		ConfirmArrival(gomock.Any(), sessionID).
		Return(fmt.Errorf("service: session %s is in state arrived: %w", sessionID, service.ErrSessionNotActive)).
		Times(1)

	client := dialWS(t, server, "student-1")

	sendCommand(t, client, CommandConfirmArrival, SessionPayload{SessionID: sessionID})
	eventType, _ := readEvent(t, client)
	assert.Equal(t, EventOK, eventType)

	// Повторное подтверждение: сессия уже в терминальном состоянии
	sendCommand(t, client, CommandConfirmArrival, SessionPayload{SessionID: sessionID})
	eventType, payload := readEvent(t, client)
	assert.Equal(t, EventError, eventType)
	var protoErr ErrorPayload
	require.NoError(t, json.Unmarshal(payload, &protoErr))
	assert.Equal(t, CodeSessionNotActive, protoErr.Code)
}

func TestGateway_CancelEscort_NotFound(t *testing.T) {
	_, escortsMock, _, server := newTestGateway(t)
	sessionID := uuid.New()

	escortsMock.EXPECT().
		CancelEscort(gomock.Any(), sessionID).
		Return(fmt.Errorf("service: session %s: %w", sessionID, service.ErrSessionNotFound)).
		Times(1)

	client := dialWS(t, server, "student-1")

	sendCommand(t, client, CommandCancelEscort, SessionPayload{SessionID: sessionID})
	eventType, payload := readEvent(t, client)
	assert.Equal(t, EventError, eventType)
	var protoErr ErrorPayload
	require.NoError(t, json.Unmarshal(payload, &protoErr))
	assert.Equal(t, CodeNotFound, protoErr.Code)
}

func TestGateway_PushAlert_ScopeFiltering(t *testing.T) {
	gateway, _, locationHub, server := newTestGateway(t)

	near := dialWS(t, server, "student-near")
	far := dialWS(t, server, "student-far")
	waitForConnections(t, gateway, 2)

	// Последние известные местоположения клиентов
	locationHub.Publish(models.LocationSample{SubjectID: "student-near", Latitude: 55.7500, Longitude: 37.6100, CapturedAt: time.Now()})
	locationHub.Publish(models.LocationSample{SubjectID: "student-far", Latitude: 56.7500, Longitude: 37.6100, CapturedAt: time.Now()})

	// Круговое оповещение накрывает только ближнего клиента
	circle := &models.SafetyAlert{
		ID:       uuid.New(),
		Title:    "Gas leak",
		Severity: models.SeverityCritical,
		Priority: models.PriorityHigh,
		Scope:    models.AlertScope{Latitude: 55.7500, Longitude: 37.6100, RadiusMeters: 300},
	}
	gateway.PushAlert(circle)

	// Campus-wide оповещение получают все
	campus := &models.SafetyAlert{
		ID:       uuid.New(),
		Title:    "Storm warning",
		Severity: models.SeverityWarning,
		Priority: models.PriorityMedium,
		Scope:    models.AlertScope{CampusWide: true},
	}
	gateway.PushAlert(campus)

	// Ближний клиент: сначала круговое, затем campus-wide
	eventType, payload := readEvent(t, near)
	assert.Equal(t, EventSafetyAlert, eventType)
	var alertPayload SafetyAlertPayload
	require.NoError(t, json.Unmarshal(payload, &alertPayload))
	assert.Equal(t, circle.ID, alertPayload.ID)

	eventType, payload = readEvent(t, near)
	assert.Equal(t, EventSafetyAlert, eventType)
	require.NoError(t, json.Unmarshal(payload, &alertPayload))
	assert.Equal(t, campus.ID, alertPayload.ID)

	// Дальний клиент: только campus-wide
	eventType, payload = readEvent(t, far)
	assert.Equal(t, EventSafetyAlert, eventType)
	require.NoError(t, json.Unmarshal(payload, &alertPayload))
	assert.Equal(t, campus.ID, alertPayload.ID)
}

func TestGateway_PushEscortAlert_OnlyGuardians(t *testing.T) {
	gateway, _, _, server := newTestGateway(t)

	guardian := dialWS(t, server, "guardian-1")
	bystander := dialWS(t, server, "student-2")
	waitForConnections(t, gateway, 2)

	sessionID := uuid.New()
	alertID := uuid.New()
	gateway.PushEscortAlert([]string{"guardian-1"}, sessionID, alertID)

	eventType, payload := readEvent(t, guardian)
	assert.Equal(t, EventEscortAutoAlert, eventType)
	var escalation EscortAutoAlertPayload
	require.NoError(t, json.Unmarshal(payload, &escalation))
	assert.Equal(t, sessionID, escalation.SessionID)
	assert.Equal(t, alertID, escalation.AlertID)

	// Посторонний клиент события не получает
	require.NoError(t, bystander.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	var event Event
	err := bystander.ReadJSON(&event)
	assert.Error(t, err) // Таймаут чтения: событий нет
}
