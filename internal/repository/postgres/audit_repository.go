package postgres

import (
	"context"
	"fmt"

	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/domain"
	"gorm.io/gorm"
)

// AuditRepository is the primary audit sink. Rows are append-only.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Name() string { return "postgres" }

func (r *AuditRepository) Write(ctx context.Context, entry *domain.AuditLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("writing audit log: %w", err)
	}
	return nil
}

func (r *AuditRepository) List(ctx context.Context, q *domain.ListAuditLogsQuery) (*domain.PagedAuditLogs, error) {
	tx := r.db.WithContext(ctx).Model(&domain.AuditLog{})

	if q.UserID != nil {
		tx = tx.Where("user_id = ?", *q.UserID)
	}
	if q.TargetType != nil {
		tx = tx.Where("target_type = ?", *q.TargetType)
	}
	if q.TargetID != "" {
		tx = tx.Where("target_id = ?", q.TargetID)
	}
	if q.Action != nil {
		tx = tx.Where("action = ?", *q.Action)
	}
	if q.From != nil {
		tx = tx.Where("occurred_at >= ?", *q.From)
	}
	if q.To != nil {
		tx = tx.Where("occurred_at <= ?", *q.To)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("counting audit logs: %w", err)
	}

	var logs []*domain.AuditLog
	err := tx.Order("occurred_at DESC").
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("listing audit logs: %w", err)
	}

	return &domain.PagedAuditLogs{
		Logs:       logs,
		TotalCount: total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: totalPages(total, q.PageSize),
	}, nil
}
