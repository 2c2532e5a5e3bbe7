package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dtr/internal/models"
)

type InvitationStore struct{ db *gorm.DB }

func NewInvitationStore(db *gorm.DB) *InvitationStore { return &InvitationStore{db: db} }

func (s *InvitationStore) Create(ctx context.Context, inv *models.Invitation) error {
	return translate(s.db.WithContext(ctx).Create(inv).Error)
}

func (s *InvitationStore) Get(ctx context.Context, id string) (*models.Invitation, error) {
	var inv models.Invitation
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&inv).Error; err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

// ListPending: pending-приглашения, срок которых ещё не вышел.
func (s *InvitationStore) ListPending(ctx context.Context, orgID string, now time.Time) ([]models.Invitation, error) {
	var out []models.Invitation
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND status = ? AND expires_at >= ?", orgID, models.InvitationPending, now).
		Order("created_at desc").
		Find(&out).Error
	return out, translate(err)
}

// MarkExpired переводит pending → expired; терминальные статусы не трогает.
func (s *InvitationStore) MarkExpired(ctx context.Context, id string) error {
	return translate(s.db.WithContext(ctx).Model(&models.Invitation{}).
		Where("id = ? AND status = ?", id, models.InvitationPending).
		Update("status", models.InvitationExpired).Error)
}

// Accept в одной транзакции: перечитывает приглашение под блокировкой,
// добавляет членство и помечает приглашение принятым.
func (s *InvitationStore) Accept(ctx context.Context, id string, m *models.UserOrganization, at time.Time) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inv models.Invitation
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).First(&inv).Error; err != nil {
			return err
		}
		if inv.Status != models.InvitationPending || inv.ExpiredAt(at) {
			return ErrStale
		}
		m.OrgID = inv.OrgID
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		return tx.Model(&models.Invitation{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"status":      models.InvitationAccepted,
				"accepted_at": at,
			}).Error
	})
	return translate(err)
}

// Delete удаляет ещё не использованное приглашение организации.
func (s *InvitationStore) Delete(ctx context.Context, orgID, id string) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND org_id = ? AND status = ?", id, orgID, models.InvitationPending).
		Delete(&models.Invitation{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ExpirePending: пакетный перевод просроченных pending в expired.
func (s *InvitationStore) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Invitation{}).
		Where("status = ? AND expires_at < ?", models.InvitationPending, now).
		Update("status", models.InvitationExpired)
	return res.RowsAffected, translate(res.Error)
}
