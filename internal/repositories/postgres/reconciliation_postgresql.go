package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/academic-service/internal/models"
	"github.com/SAP-F-2025/academic-service/internal/repositories"
)

type reconciliationPostgreSQL struct {
	db *gorm.DB
}

func NewReconciliationPostgreSQL(db *gorm.DB) repositories.ReconciliationRepository {
	return &reconciliationPostgreSQL{db: db}
}

func (r *reconciliationPostgreSQL) Create(ctx context.Context, record *models.ReconciliationRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return handleDBError(err, "create reconciliation record")
	}
	return nil
}

func (r *reconciliationPostgreSQL) List(ctx context.Context, filters repositories.ReconciliationFilters) ([]*models.ReconciliationRecord, int64, error) {
	if filters.Limit <= 0 || filters.Limit > 100 {
		filters.Limit = 50
	}

	query := r.db.WithContext(ctx).Model(&models.ReconciliationRecord{})
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, handleDBError(err, "count reconciliation records")
	}

	var records []*models.ReconciliationRecord
	if err := query.Order("created_at DESC").Limit(filters.Limit).Offset(filters.Offset).Find(&records).Error; err != nil {
		return nil, 0, handleDBError(err, "list reconciliation records")
	}
	return records, total, nil
}

func (r *reconciliationPostgreSQL) ResolveByExternalID(ctx context.Context, externalID string) error {
	now := time.Now()
	err := r.db.WithContext(ctx).
		Model(&models.ReconciliationRecord{}).
		Where("external_id = ? AND status <> ?", externalID, models.ReconciliationResolved).
		Updates(map[string]interface{}{
			"status":      models.ReconciliationResolved,
			"resolved_at": &now,
		}).Error
	return handleDBError(err, "resolve reconciliation records")
}
