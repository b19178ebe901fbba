package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shenikar/guardian_tracking_system/internal/config"
	"github.com/shenikar/guardian_tracking_system/internal/geo"
	"github.com/shenikar/guardian_tracking_system/internal/hub"
	"github.com/shenikar/guardian_tracking_system/internal/models"
	"github.com/shenikar/guardian_tracking_system/internal/service"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Аутентификацию выполняет фронтирующий слой, origin не ограничиваем
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Gateway обслуживает websocket-протокол клиентов: команды подписки,
// публикации местоположения и управления сопровождением, а также
// push-события оповещений и эскалаций.
type Gateway struct {
	locationHub *hub.Hub
	alerts      service.AlertService
	escorts     service.EscortService
	logger      *logrus.Logger
	validate    *validator.Validate
	cfg         *config.Config

	mu    sync.RWMutex
	conns map[string]*connection
}

// NewGateway создает шлюз websocket-соединений
func NewGateway(locationHub *hub.Hub, alerts service.AlertService, escorts service.EscortService, logger *logrus.Logger, cfg *config.Config) *Gateway {
	return &Gateway{
		locationHub: locationHub,
		alerts:      alerts,
		escorts:     escorts,
		logger:      logger,
		validate:    validator.New(),
		cfg:         cfg,
		conns:       make(map[string]*connection),
	}
}

// HandleConnection - gin-хендлер апгрейда соединения.
// Идентификатор пользователя приходит в X-User-ID от фронтирующей аутентификации.
func (g *Gateway) HandleConnection(c *gin.Context) {
	userID := c.GetHeader("X-User-ID")
	if userID == "" {
		g.logger.Warn("Websocket connection without user id rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user id required"})
		return
	}

	wsConn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.logger.WithError(err).Error("Failed to upgrade websocket connection")
		return
	}

	connID := uuid.New().String()
	conn := &connection{
		id:      connID,
		userID:  userID,
		ws:      wsConn,
		send:    make(chan []byte, g.cfg.SendBufferSize),
		gateway: g,
		logger: g.logger.WithFields(logrus.Fields{
			"conn_id": connID,
			"user_id": userID,
		}),
	}

	subscriber := g.locationHub.Register(connID)

	g.mu.Lock()
	g.conns[connID] = conn
	g.mu.Unlock()

	conn.logger.Info("Websocket client connected")

	go conn.writePump()
	go g.forwardLocations(conn, subscriber)
	conn.readPump()
}

// forwardLocations пересылает сэмплы из хаба в соединение. Закрытие канала
// подписчика (отключение за переполнение или teardown) закрывает и websocket.
func (g *Gateway) forwardLocations(conn *connection, subscriber *hub.Subscriber) {
	for sample := range subscriber.Events() {
		conn.sendEvent(locationUpdateEvent(sample))
	}
	conn.shutdown()
}

// teardown снимает соединение с учета. Таймеры сопровождения переживают
// разрыв соединения: сессии живут в сервисе, а не в шлюзе.
func (g *Gateway) teardown(conn *connection) {
	g.mu.Lock()
	delete(g.conns, conn.id)
	g.mu.Unlock()

	g.locationHub.Disconnect(conn.id)
	conn.shutdown()
	conn.logger.Info("Websocket client disconnected")
}

// handleCommand разбирает конверт команды и выполняет ее.
// Некорректная команда отвечает событием error и не закрывает соединение.
func (g *Gateway) handleCommand(conn *connection, data []byte) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		conn.sendError(CodeBadCommand, "malformed command envelope")
		return
	}

	switch envelope.Type {
	case CommandSubscribe:
		g.handleSubscribe(conn, envelope.Payload)
	case CommandUnsubscribe:
		g.handleUnsubscribe(conn, envelope.Payload)
	case CommandPublishLocation:
		g.handlePublishLocation(conn, envelope.Payload)
	case CommandStartEscort:
		g.handleStartEscort(conn, envelope.Payload)
	case CommandConfirmArrival:
		g.handleConfirmArrival(conn, envelope.Payload)
	case CommandCancelEscort:
		g.handleCancelEscort(conn, envelope.Payload)
	default:
		conn.sendError(CodeBadCommand, "unknown command type")
	}
}

// decodePayload разбирает и валидирует полезную нагрузку команды
func (g *Gateway) decodePayload(conn *connection, raw json.RawMessage, dst any) bool {
	if err := json.Unmarshal(raw, dst); err != nil {
		conn.sendError(CodeValidationError, "malformed command payload")
		return false
	}
	if err := g.validate.Struct(dst); err != nil {
		conn.sendError(CodeValidationError, err.Error())
		return false
	}
	return true
}

func (g *Gateway) handleSubscribe(conn *connection, raw json.RawMessage) {
	var payload SubscribePayload
	if !g.decodePayload(conn, raw, &payload) {
		return
	}

	if err := g.locationHub.Subscribe(conn.id, payload.SubjectIDs); err != nil {
		conn.logger.WithError(err).Error("Failed to subscribe connection")
		conn.sendError(CodeNotFound, "connection is not registered")
		return
	}
	conn.sendEvent(Event{Type: EventSubscribed, Payload: SubjectsPayload{SubjectIDs: payload.SubjectIDs}})
}

func (g *Gateway) handleUnsubscribe(conn *connection, raw json.RawMessage) {
	var payload SubscribePayload
	if !g.decodePayload(conn, raw, &payload) {
		return
	}

	g.locationHub.Unsubscribe(conn.id, payload.SubjectIDs)
	conn.sendEvent(Event{Type: EventUnsubscribed, Payload: SubjectsPayload{SubjectIDs: payload.SubjectIDs}})
}

func (g *Gateway) handlePublishLocation(conn *connection, raw json.RawMessage) {
	var payload PublishLocationPayload
	if !g.decodePayload(conn, raw, &payload) {
		return
	}

	capturedAt := payload.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}

	accepted := g.locationHub.Publish(models.LocationSample{
		SubjectID:  conn.userID,
		Latitude:   payload.Latitude,
		Longitude:  payload.Longitude,
		CapturedAt: capturedAt,
	})
	conn.sendEvent(Event{Type: EventAck, Payload: AckPayload{Accepted: accepted}})
}

func (g *Gateway) handleStartEscort(conn *connection, raw json.RawMessage) {
	var payload StartEscortPayload
	if !g.decodePayload(conn, raw, &payload) {
		return
	}

	sessionID, err := g.escorts.StartEscort(context.Background(), conn.userID, payload.Destination, payload.DurationMinutes, payload.GuardianIDs)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidDuration):
			conn.sendError(CodeInvalidDuration, "escort duration must be positive")
		case errors.Is(err, service.ErrSessionAlreadyActive):
			conn.sendError(CodeSessionAlreadyActive, "user already has an active escort session")
		default:
			conn.logger.WithError(err).Error("Failed to start escort session")
			conn.sendError(CodeBadCommand, "failed to start escort session")
		}
		return
	}

	session, err := g.escorts.GetSession(context.Background(), sessionID)
	if err != nil {
		conn.logger.WithError(err).Error("Failed to read started escort session")
		conn.sendError(CodeNotFound, "session not found")
		return
	}
	conn.sendEvent(Event{Type: EventEscortStarted, Payload: EscortStartedPayload{SessionID: sessionID, Deadline: session.Deadline}})
}

func (g *Gateway) handleConfirmArrival(conn *connection, raw json.RawMessage) {
	var payload SessionPayload
	if !g.decodePayload(conn, raw, &payload) {
		return
	}

	if err := g.escorts.ConfirmArrival(context.Background(), payload.SessionID); err != nil {
		g.sendEscortError(conn, err)
		return
	}
	conn.sendEvent(Event{Type: EventOK})
}

func (g *Gateway) handleCancelEscort(conn *connection, raw json.RawMessage) {
	var payload SessionPayload
	if !g.decodePayload(conn, raw, &payload) {
		return
	}

	if err := g.escorts.CancelEscort(context.Background(), payload.SessionID); err != nil {
		g.sendEscortError(conn, err)
		return
	}
	conn.sendEvent(Event{Type: EventOK})
}

// sendEscortError транслирует ошибки сервиса сопровождения в коды протокола
func (g *Gateway) sendEscortError(conn *connection, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		conn.sendError(CodeNotFound, "session not found")
	case errors.Is(err, service.ErrSessionNotActive):
		conn.sendError(CodeSessionNotActive, "session is not active")
	default:
		conn.logger.WithError(err).Error("Escort command failed")
		conn.sendError(CodeBadCommand, "escort command failed")
	}
}

// PushAlert доставляет активированное оповещение соединениям, чье последнее
// известное местоположение попадает в зону. Campus-wide получают все.
func (g *Gateway) PushAlert(alert *models.SafetyAlert) {
	event := safetyAlertEvent(alert)
	data, err := json.Marshal(event)
	if err != nil {
		g.logger.WithError(err).Error("Failed to marshal safety alert event")
		return
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, conn := range g.conns {
		if !alert.Scope.CampusWide {
			last := g.locationHub.LastSample(conn.userID)
			if last == nil || !geo.Contains(alert.Scope, last.Latitude, last.Longitude) {
				continue
			}
		}
		if !conn.enqueue(data) {
			conn.logger.Warn("Send buffer full, safety alert dropped")
		}
	}
}

// PushEscortAlert доставляет событие авто-эскалации соединениям опекунов
func (g *Gateway) PushEscortAlert(guardianIDs []string, sessionID, alertID uuid.UUID) {
	guardians := make(map[string]struct{}, len(guardianIDs))
	for _, id := range guardianIDs {
		guardians[id] = struct{}{}
	}

	event := Event{Type: EventEscortAutoAlert, Payload: EscortAutoAlertPayload{SessionID: sessionID, AlertID: alertID}}
	data, err := json.Marshal(event)
	if err != nil {
		g.logger.WithError(err).Error("Failed to marshal escort alert event")
		return
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, conn := range g.conns {
		if _, ok := guardians[conn.userID]; !ok {
			continue
		}
		if !conn.enqueue(data) {
			conn.logger.Warn("Send buffer full, escort alert dropped")
		}
	}
}

// ConnectionCount возвращает число подключенных клиентов
func (g *Gateway) ConnectionCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.conns)
}
