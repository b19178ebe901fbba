package v1

import (
	"github.com/google/uuid"
	"github.com/shenikar/guardian_tracking_system/internal/models"
)

// DTOToAlertModel преобразует DTO создания в доменную модель
func DTOToAlertModel(dto CreateAlertRequest, createdBy string) *models.SafetyAlert {
	scope := models.AlertScope{CampusWide: dto.CampusWide, RadiusMeters: dto.RadiusMeters}
	if dto.Latitude != nil {
		scope.Latitude = *dto.Latitude
	}
	if dto.Longitude != nil {
		scope.Longitude = *dto.Longitude
	}

	alert := &models.SafetyAlert{
		Title:            dto.Title,
		Message:          dto.Message,
		Severity:         dto.Severity,
		Priority:         dto.Priority,
		Category:         dto.Category,
		CreatedBy:        createdBy,
		ExpiresAt:        dto.ExpiresAt,
		Scope:            scope,
		DeliveryChannels: dto.DeliveryChannels,
		Recipients:       dto.Recipients,
	}
	if dto.ActivationTime != nil {
		alert.ActivationTime = *dto.ActivationTime
	}
	return alert
}

// ModelToAlertResponse преобразует доменную модель в DTO для ответа
func ModelToAlertResponse(model *models.SafetyAlert) *AlertResponse {
	return &AlertResponse{
		ID:               model.ID,
		Title:            model.Title,
		Message:          model.Message,
		Severity:         model.Severity,
		Priority:         model.Priority,
		Category:         model.Category,
		CreatedBy:        model.CreatedBy,
		CreatedAt:        model.CreatedAt,
		ActivationTime:   model.ActivationTime,
		ExpiresAt:        model.ExpiresAt,
		CampusWide:       model.Scope.CampusWide,
		Latitude:         model.Scope.Latitude,
		Longitude:        model.Scope.Longitude,
		RadiusMeters:     model.Scope.RadiusMeters,
		DeliveryChannels: model.DeliveryChannels,
		Recipients:       model.Recipients,
		State:            string(model.State),
		UpdatedAt:        model.UpdatedAt,
	}
}

// ModelsToAlertResponses преобразует слайс моделей в слайс DTO
func ModelsToAlertResponses(models []*models.SafetyAlert) []*AlertResponse {
	responses := make([]*AlertResponse, len(models))
	for i, model := range models {
		responses[i] = ModelToAlertResponse(model)
	}
	return responses
}

// ModelToEscortSessionResponse преобразует сессию сопровождения в DTO для ответа
func ModelToEscortSessionResponse(model *models.EscortSession) *EscortSessionResponse {
	resp := &EscortSessionResponse{
		ID:          model.ID,
		UserID:      model.UserID,
		Destination: model.Destination,
		Deadline:    model.Deadline,
		State:       string(model.State),
		GuardianIDs: model.GuardianIDs,
		CreatedAt:   model.CreatedAt,
	}
	if model.AlertID != uuid.Nil {
		alertID := model.AlertID
		resp.AlertID = &alertID
	}
	if !model.EndedAt.IsZero() {
		endedAt := model.EndedAt
		resp.EndedAt = &endedAt
	}
	return resp
}
