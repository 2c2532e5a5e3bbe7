package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"dtr/internal/models"
)

type OrgStore struct{ db *gorm.DB }

func NewOrgStore(db *gorm.DB) *OrgStore { return &OrgStore{db: db} }

// CreateWithAdmin: организация и членство создателя одной транзакцией.
func (s *OrgStore) CreateWithAdmin(ctx context.Context, org *models.Organization, admin *models.UserOrganization) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(org).Error; err != nil {
			return err
		}
		admin.OrgID = org.ID
		return tx.Create(admin).Error
	})
	return translate(err)
}

func (s *OrgStore) Get(ctx context.Context, orgID string) (*models.Organization, error) {
	var o models.Organization
	if err := s.db.WithContext(ctx).Where("id = ?", orgID).First(&o).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (s *OrgStore) ListForUser(ctx context.Context, userID string) ([]models.OrganizationWithRole, error) {
	var out []models.OrganizationWithRole
	err := s.db.WithContext(ctx).
		Table("user_organizations").
		Select("organizations.*, user_organizations.role").
		Joins("JOIN organizations ON organizations.id = user_organizations.org_id").
		Where("user_organizations.user_id = ?", userID).
		Order("organizations.name asc").
		Scan(&out).Error
	return out, translate(err)
}

func (s *OrgStore) Membership(ctx context.Context, userID, orgID string) (*models.UserOrganization, error) {
	var m models.UserOrganization
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND org_id = ?", userID, orgID).
		First(&m).Error
	if err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

// AddMember: дубликат (user_id, org_id) упирается в уникальный индекс и даёт ErrDuplicate.
func (s *OrgStore) AddMember(ctx context.Context, m *models.UserOrganization) error {
	return translate(s.db.WithContext(ctx).Create(m).Error)
}

func (s *OrgStore) Members(ctx context.Context, orgID string) ([]models.UserOrganization, error) {
	var out []models.UserOrganization
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("joined_at asc, id asc").
		Find(&out).Error
	return out, translate(err)
}

func (s *OrgStore) UpdateRole(ctx context.Context, userID, orgID string, role models.Role) error {
	res := s.db.WithContext(ctx).Model(&models.UserOrganization{}).
		Where("user_id = ? AND org_id = ?", userID, orgID).
		Update("role", role)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		// MySQL не считает строку затронутой, если роль не изменилась
		if _, err := s.Membership(ctx, userID, orgID); err != nil {
			return err
		}
	}
	return nil
}

// RemoveMember удаляет членство и закрывает открытую сессию участника в этой организации.
// Возвращает число закрытых сессий.
func (s *OrgStore) RemoveMember(ctx context.Context, userID, orgID string, at time.Time, note string) (int64, error) {
	var closed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND org_id = ?", userID, orgID).Delete(&models.UserOrganization{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		res = tx.Model(&models.TimeEntry{}).
			Where(activeCond, userID, orgID).
			Updates(map[string]any{
				"time_out":   at,
				"note":       note,
				"updated_at": at,
			})
		closed = res.RowsAffected
		return res.Error
	})
	return closed, translate(err)
}

func (s *OrgStore) CountAdmins(ctx context.Context, orgID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.UserOrganization{}).
		Where("org_id = ? AND role = ?", orgID, models.RoleAdmin).
		Count(&n).Error
	return n, translate(err)
}
