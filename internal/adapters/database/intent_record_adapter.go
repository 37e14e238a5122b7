package database

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"
	"github.com/optivista/lensadvisor/internal/domain/entities"
	"github.com/optivista/lensadvisor/internal/domain/repositories"
	"github.com/optivista/lensadvisor/internal/infrastructure/clients/postgres"
	apperrors "github.com/optivista/lensadvisor/pkg/errors"
)

// IntentRecordAdapter implements IntentRecordRepository. Extraction records
// are immutable audit rows; there is deliberately no update path.
type IntentRecordAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewIntentRecordAdapter creates a new intent record adapter
func NewIntentRecordAdapter(client *postgres.Client) repositories.IntentRecordRepository {
	return &IntentRecordAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create persists a new extraction record
func (a *IntentRecordAdapter) Create(ctx context.Context, record *entities.IntentExtractionResult) error {
	tags, err := json.Marshal(record.Tags)
	if err != nil {
		return apperrors.NewInternalError("failed to encode tags", err)
	}
	characteristics, err := json.Marshal(record.Characteristics)
	if err != nil {
		return apperrors.NewInternalError("failed to encode characteristics", err)
	}

	row := goqu.Record{
		"id":                 record.ID,
		"order_id":           sql.NullString{String: record.OrderID, Valid: record.OrderID != ""},
		"tenant_id":          sql.NullString{String: record.TenantID, Valid: record.TenantID != ""},
		"tags":               tags,
		"lifestyle":          record.Lifestyle,
		"complaints":         pq.Array(record.Complaints),
		"clinical_flags":     pq.Array(record.ClinicalFlags),
		"characteristics":    characteristics,
		"summary":            record.Summary,
		"overall_confidence": record.OverallConfidence,
		"created_at":         record.CreatedAt,
	}

	query, args, err := a.db.Insert("intent_records").Rows(row).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create intent record", err)
	}
	return nil
}

// GetByOrderID retrieves the extraction record for an order
func (a *IntentRecordAdapter) GetByOrderID(ctx context.Context, orderID string) (*entities.IntentExtractionResult, error) {
	query, args, err := a.db.Select(
		"id", "order_id", "tenant_id", "tags", "lifestyle",
		"complaints", "clinical_flags", "characteristics",
		"summary", "overall_confidence", "created_at",
	).From("intent_records").
		Where(goqu.Ex{"order_id": orderID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	row := a.client.DB().QueryRowContext(ctx, query, args...)

	record := &entities.IntentExtractionResult{}
	var (
		orderIDCol      sql.NullString
		tenantIDCol     sql.NullString
		tags            []byte
		complaints      pq.StringArray
		clinicalFlags   pq.StringArray
		characteristics []byte
	)
	err = row.Scan(
		&record.ID,
		&orderIDCol,
		&tenantIDCol,
		&tags,
		&record.Lifestyle,
		&complaints,
		&clinicalFlags,
		&characteristics,
		&record.Summary,
		&record.OverallConfidence,
		&record.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("intent record not found for order " + orderID)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get intent record", err)
	}

	record.OrderID = orderIDCol.String
	record.TenantID = tenantIDCol.String
	record.Complaints = complaints
	record.ClinicalFlags = clinicalFlags
	if err := json.Unmarshal(tags, &record.Tags); err != nil {
		return nil, apperrors.NewInternalError("failed to decode tags", err)
	}
	if err := json.Unmarshal(characteristics, &record.Characteristics); err != nil {
		return nil, apperrors.NewInternalError("failed to decode characteristics", err)
	}

	return record, nil
}
