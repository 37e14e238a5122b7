package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/optivista/lensadvisor/internal/domain/entities"
	"github.com/optivista/lensadvisor/internal/domain/repositories"
	"github.com/optivista/lensadvisor/internal/infrastructure/clients/postgres"
	apperrors "github.com/optivista/lensadvisor/pkg/errors"
)

// RecommendationAdapter implements RecommendationRepository. Tier and
// metadata payloads are stored as JSON documents; they are written once and
// never updated, only the status columns change afterwards.
type RecommendationAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewRecommendationAdapter creates a new recommendation adapter
func NewRecommendationAdapter(client *postgres.Client) repositories.RecommendationRepository {
	return &RecommendationAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create persists a new fusion result
func (a *RecommendationAdapter) Create(ctx context.Context, result *entities.FusionResult) error {
	tiers, err := json.Marshal(result.Tiers)
	if err != nil {
		return apperrors.NewInternalError("failed to encode tiers", err)
	}
	metadata, err := json.Marshal(result.Metadata)
	if err != nil {
		return apperrors.NewInternalError("failed to encode metadata", err)
	}

	record := goqu.Record{
		"id":                 result.ID,
		"order_id":           result.OrderID,
		"tenant_id":          result.TenantID,
		"tiers":              tiers,
		"confidence":         result.Confidence,
		"metadata":           metadata,
		"status":             string(result.Status),
		"chosen_tier":        tierValue(result.ChosenTier),
		"customization_note": sql.NullString{String: result.CustomizationNote, Valid: result.CustomizationNote != ""},
		"created_at":         result.CreatedAt,
		"updated_at":         result.UpdatedAt,
	}

	query, args, err := a.db.Insert("recommendations").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create recommendation", err)
	}
	return nil
}

// GetByID retrieves a fusion result by its record ID
func (a *RecommendationAdapter) GetByID(ctx context.Context, id string) (*entities.FusionResult, error) {
	return a.getByField(ctx, "id", id)
}

// GetByOrderID retrieves the fusion result for an order
func (a *RecommendationAdapter) GetByOrderID(ctx context.Context, orderID string) (*entities.FusionResult, error) {
	return a.getByField(ctx, "order_id", orderID)
}

// UpdateStatus performs a partial update of status metadata only
func (a *RecommendationAdapter) UpdateStatus(ctx context.Context, id string, status entities.RecommendationStatus, chosenTier *entities.Tier, customizationNote string) error {
	record := goqu.Record{
		"status":     string(status),
		"updated_at": time.Now().UTC(),
	}
	if chosenTier != nil {
		record["chosen_tier"] = string(*chosenTier)
	}
	if customizationNote != "" {
		record["customization_note"] = customizationNote
	}

	query, args, err := a.db.Update("recommendations").
		Set(record).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update recommendation status", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return apperrors.NewNotFoundError("recommendation not found: " + id)
	}
	return nil
}

func (a *RecommendationAdapter) getByField(ctx context.Context, field, value string) (*entities.FusionResult, error) {
	query, args, err := a.db.Select(
		"id", "order_id", "tenant_id", "tiers", "confidence", "metadata",
		"status", "chosen_tier", "customization_note", "created_at", "updated_at",
	).From("recommendations").
		Where(goqu.Ex{field: value}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	row := a.client.DB().QueryRowContext(ctx, query, args...)

	result := &entities.FusionResult{}
	var (
		tiers             []byte
		metadata          []byte
		status            string
		chosenTier        sql.NullString
		customizationNote sql.NullString
	)
	err = row.Scan(
		&result.ID,
		&result.OrderID,
		&result.TenantID,
		&tiers,
		&result.Confidence,
		&metadata,
		&status,
		&chosenTier,
		&customizationNote,
		&result.CreatedAt,
		&result.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("recommendation not found for " + field + "=" + value)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get recommendation", err)
	}

	if err := json.Unmarshal(tiers, &result.Tiers); err != nil {
		return nil, apperrors.NewInternalError("failed to decode tiers", err)
	}
	if err := json.Unmarshal(metadata, &result.Metadata); err != nil {
		return nil, apperrors.NewInternalError("failed to decode metadata", err)
	}
	result.Status = entities.RecommendationStatus(status)
	if chosenTier.Valid {
		t := entities.Tier(chosenTier.String)
		result.ChosenTier = &t
	}
	result.CustomizationNote = customizationNote.String

	return result, nil
}

func tierValue(t *entities.Tier) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*t), Valid: true}
}
