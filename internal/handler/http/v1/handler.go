package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shenikar/guardian_tracking_system/internal/config"
	"github.com/shenikar/guardian_tracking_system/internal/hub"
	"github.com/shenikar/guardian_tracking_system/internal/service"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	alertService  service.AlertService
	escortService service.EscortService
	locationHub   *hub.Hub
	logger        *logrus.Logger
	validate      *validator.Validate
	cfg           *config.Config
}

func NewHandler(alertService service.AlertService, escortService service.EscortService, locationHub *hub.Hub, logger *logrus.Logger, cfg *config.Config) *Handler {
	return &Handler{
		alertService:  alertService,
		escortService: escortService,
		locationHub:   locationHub,
		logger:        logger,
		validate:      validator.New(),
		cfg:           cfg,
	}
}

// @Summary Create a new safety alert
// @Description Create a new safety alert. Alerts with a future activation time are scheduled, others activate immediately. Requires API key.
// @Tags Alerts
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param alert body CreateAlertRequest true "Alert creation request"
// @Success 201 {object} AlertResponse
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /alerts [post]
func (h *Handler) createAlert(c *gin.Context) {
	var input CreateAlertRequest
	log := h.logger.WithField("method", "createAlert")

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	createdBy := c.GetHeader("X-User-ID")
	if createdBy == "" {
		createdBy = "admin"
	}

	model := DTOToAlertModel(input, createdBy)
	if err := h.alertService.CreateAlert(c.Request.Context(), model); err != nil {
		if errors.Is(err, service.ErrInvalidAlertSpec) {
			log.WithError(err).Warn("Alert spec rejected")
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.WithError(err).Error("Failed to create alert in service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusCreated, ModelToAlertResponse(model))
}

// @Summary Get a list of safety alerts
// @Description Get a paginated list of all safety alerts. Requires API key.
// @Tags Alerts
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Number of items per page" default(10)
// @Success 200 {array} AlertResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /alerts [get]
func (h *Handler) listAlerts(c *gin.Context) {
	log := h.logger.WithField("method", "listAlerts")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "10"))

	alerts, err := h.alertService.ListAlerts(c.Request.Context(), page, pageSize)
	if err != nil {
		log.WithError(err).Error("Failed to list alerts from service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, ModelsToAlertResponses(alerts))
}

// @Summary Get safety alert by ID
// @Description Get a single safety alert by its ID. Requires API key.
// @Tags Alerts
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Alert ID"
// @Success 200 {object} AlertResponse
// @Failure 400 {object} map[string]string "Invalid alert ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Alert not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /alerts/{id} [get]
func (h *Handler) getAlert(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert ID"})
		return
	}
	log := h.logger.WithField("method", "getAlert").WithField("id", id)

	alert, err := h.alertService.GetAlert(c.Request.Context(), id)
	if err != nil {
		log.WithError(err).Warn("Failed to get alert from service")
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
		return
	}
	c.JSON(http.StatusOK, ModelToAlertResponse(alert))
}

// @Summary Deactivate a safety alert
// @Description Deactivate an active safety alert by its ID. Deactivation is a state transition, the alert record is kept. Requires API key.
// @Tags Alerts
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Alert ID"
// @Success 204 "No Content"
// @Failure 400 {object} map[string]string "Invalid alert ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Alert not found"
// @Failure 409 {object} map[string]string "Alert is not active"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /alerts/{id} [delete]
func (h *Handler) deactivateAlert(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert ID"})
		return
	}
	log := h.logger.WithField("method", "deactivateAlert").WithField("id", id)

	actor := c.GetHeader("X-User-ID")
	if actor == "" {
		actor = "admin"
	}

	if err := h.alertService.DeactivateAlert(c.Request.Context(), id, actor); err != nil {
		switch {
		case errors.Is(err, service.ErrAlertNotFound):
			log.WithError(err).Warn("Alert not found for deactivation")
			c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
		case errors.Is(err, service.ErrAlertNotActive):
			log.WithError(err).Warn("Alert is not active")
			c.JSON(http.StatusConflict, gin.H{"error": "alert is not active"})
		default:
			log.WithError(err).Error("Failed to deactivate alert in service")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to deactivate alert"})
		}
		return
	}

	c.Status(http.StatusNoContent)
}

// @Summary Get active alerts for a location
// @Description Get all active safety alerts whose scope covers the given point: campus-wide alerts plus circular zones containing it, ordered by priority. Requires API key.
// @Tags Location
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param location body LocationAlertsRequest true "Location alerts request"
// @Success 200 {array} AlertResponse
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /location/alerts [post]
func (h *Handler) alertsForLocation(c *gin.Context) {
	var input LocationAlertsRequest
	log := h.logger.WithField("method", "alertsForLocation")

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	alerts, err := h.alertService.AlertsForLocation(c.Request.Context(), input.Latitude, input.Longitude)
	if err != nil {
		log.WithError(err).Error("Failed to get alerts for location from service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, ModelsToAlertResponses(alerts))
}

// @Summary Get escort session by ID
// @Description Get a single escort session by its ID. Requires API key.
// @Tags Escorts
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Session ID"
// @Success 200 {object} EscortSessionResponse
// @Failure 400 {object} map[string]string "Invalid session ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Session not found"
// @Router /escorts/{id} [get]
func (h *Handler) getEscortSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session ID"})
		return
	}
	log := h.logger.WithField("method", "getEscortSession").WithField("id", id)

	session, err := h.escortService.GetSession(c.Request.Context(), id)
	if err != nil {
		log.WithError(err).Warn("Failed to get escort session from service")
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, ModelToEscortSessionResponse(session))
}

// @Summary Get service statistics
// @Description Get counts of active alerts, active escort sessions, connected subscribers and tracked subjects. Requires API key.
// @Tags Admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} StatsResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /stats [get]
func (h *Handler) getStats(c *gin.Context) {
	log := h.logger.WithField("method", "getStats")

	activeAlerts, err := h.alertService.ActiveAlertCount(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("Failed to get active alert count from service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, StatsResponse{
		ActiveAlerts:    activeAlerts,
		ActiveSessions:  h.escortService.ActiveSessionCount(),
		Subscribers:     h.locationHub.SubscriberCount(),
		TrackedSubjects: h.locationHub.SubjectCount(),
	})
}

// @Summary Get application health status
// @Description Get health status of the application
// @Tags System
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string "Status OK"
// @Router /system/health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
