package repo

import (
	"context"

	"gorm.io/gorm"

	"dtr/internal/models"
)

type AuditStore struct{ db *gorm.DB }

func NewAuditStore(db *gorm.DB) *AuditStore { return &AuditStore{db: db} }

func (s *AuditStore) Append(ctx context.Context, ev *models.AuditEvent) error {
	return translate(s.db.WithContext(ctx).Create(ev).Error)
}

func (s *AuditStore) ListForOrg(ctx context.Context, orgID string, limit int) ([]models.AuditEvent, error) {
	var out []models.AuditEvent
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&out).Error
	return out, translate(err)
}
