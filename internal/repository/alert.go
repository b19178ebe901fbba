package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/guardian_tracking_system/internal/models"
	"github.com/shenikar/guardian_tracking_system/internal/service"
)

type AlertRepository struct {
	db          *pgxpool.Pool
	redisClient *redis.Client
}

func NewAlertRepository(db *pgxpool.Pool, redisClient *redis.Client) service.AlertRepository {
	return &AlertRepository{
		db:          db,
		redisClient: redisClient,
	}
}

const alertColumns = `
	id,
	title,
	message,
	severity,
	priority,
	category,
	created_by,
	created_at,
	activation_time,
	expires_at,
	campus_wide,
	latitude,
	longitude,
	radius_meters,
	delivery_channels,
	recipients,
	state,
	updated_at`

// Create создает новую запись об оповещении в бд
func (r *AlertRepository) Create(ctx context.Context, alert *models.SafetyAlert) error {
	query := `
		INSERT INTO alerts (
			title, message, severity, priority, category, created_by,
			activation_time, expires_at, campus_wide, latitude, longitude,
			radius_meters, delivery_channels, recipients, state
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at;
	`
	err := r.db.QueryRow(ctx, query,
		alert.Title,
		alert.Message,
		alert.Severity,
		alert.Priority,
		alert.Category,
		alert.CreatedBy,
		alert.ActivationTime,
		alert.ExpiresAt,
		alert.Scope.CampusWide,
		alert.Scope.Latitude,
		alert.Scope.Longitude,
		alert.Scope.RadiusMeters,
		alert.DeliveryChannels,
		alert.Recipients,
		alert.State,
	).Scan(&alert.ID, &alert.CreatedAt, &alert.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// scanAlert читает одну строку оповещения
func scanAlert(row pgx.Row) (*models.SafetyAlert, error) {
	alert := &models.SafetyAlert{}
	err := row.Scan(
		&alert.ID,
		&alert.Title,
		&alert.Message,
		&alert.Severity,
		&alert.Priority,
		&alert.Category,
		&alert.CreatedBy,
		&alert.CreatedAt,
		&alert.ActivationTime,
		&alert.ExpiresAt,
		&alert.Scope.CampusWide,
		&alert.Scope.Latitude,
		&alert.Scope.Longitude,
		&alert.Scope.RadiusMeters,
		&alert.DeliveryChannels,
		&alert.Recipients,
		&alert.State,
		&alert.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return alert, nil
}

// GetByID возвращает оповещение по его UUID
func (r *AlertRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SafetyAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1;`

	alert, err := scanAlert(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("alert with id %s not found", id)
		}
		return nil, fmt.Errorf("failed to get alert by id: %w", err)
	}
	return alert, nil
}

// UpdateState выполняет переход состояния как compare-and-swap.
// Возвращает false без ошибки, если оповещение уже не в состоянии from:
// так конкурентная продвижка остается идемпотентной.
func (r *AlertRepository) UpdateState(ctx context.Context, id uuid.UUID, from, to models.AlertState) (bool, error) {
	query := `
		UPDATE alerts SET
			state = $1,
			updated_at = NOW()
		WHERE id = $2 AND state = $3;
	`
	cmdTag, err := r.db.Exec(ctx, query, to, id, from)
	if err != nil {
		return false, fmt.Errorf("failed to update alert state: %w", err)
	}
	return cmdTag.RowsAffected() > 0, nil
}

// ListAlerts возвращает список оповещений с пагинацией
func (r *AlertRepository) ListAlerts(ctx context.Context, page, pageSize int) ([]*models.SafetyAlert, error) {
	// рассчитываем смещение
	offset := (page - 1) * pageSize

	query := `SELECT ` + alertColumns + `
		FROM alerts
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2;
	`
	rows, err := r.db.Query(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	return collectAlerts(rows)
}

// ListByStates возвращает все оповещения в перечисленных состояниях
func (r *AlertRepository) ListByStates(ctx context.Context, states ...models.AlertState) ([]*models.SafetyAlert, error) {
	stateValues := make([]string, len(states))
	for i, state := range states {
		stateValues[i] = string(state)
	}

	query := `SELECT ` + alertColumns + `
		FROM alerts
		WHERE state = ANY($1)
		ORDER BY created_at DESC;
	`
	rows, err := r.db.Query(ctx, query, stateValues)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts by states: %w", err)
	}
	defer rows.Close()

	return collectAlerts(rows)
}

func collectAlerts(rows pgx.Rows) ([]*models.SafetyAlert, error) {
	alerts := make([]*models.SafetyAlert, 0)
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert row: %w", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error alert rows iteration: %w", err)
	}
	return alerts, nil
}

// GetAlertFromCache пытается получить оповещение из Redis
func (r *AlertRepository) GetAlertFromCache(ctx context.Context, id uuid.UUID) (*models.SafetyAlert, error) {
	key := fmt.Sprintf("alert:%s", id.String())
	val, err := r.redisClient.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get alert from cache: %w", err)
	}

	alert := &models.SafetyAlert{}
	if err := json.Unmarshal(val, alert); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alert from cache: %w", err)
	}
	return alert, nil
}

// SetAlertCache сохраняет оповещение в Redis
func (r *AlertRepository) SetAlertCache(ctx context.Context, alert *models.SafetyAlert) error {
	key := fmt.Sprintf("alert:%s", alert.ID.String())
	val, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert for cache: %w", err)
	}
	// Устанавливаем срок жизни кэша, например, 5 минут
	if err := r.redisClient.Set(ctx, key, val, 5*time.Minute).Err(); err != nil {
		return fmt.Errorf("failed to set alert in cache: %w", err)
	}
	return nil
}

// InvalidateAlertCache удаляет оповещение из Redis кэша
func (r *AlertRepository) InvalidateAlertCache(ctx context.Context, id uuid.UUID) error {
	key := fmt.Sprintf("alert:%s", id.String())
	if err := r.redisClient.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate alert cache: %w", err)
	}
	return nil
}
