package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dtr/internal/models"
)

const activeCond = "user_id = ? AND org_id = ? AND time_out IS NULL"

type TimeEntryStore struct{ db *gorm.DB }

func NewTimeEntryStore(db *gorm.DB) *TimeEntryStore { return &TimeEntryStore{db: db} }

// Active ищет самую свежую открытую запись. Без фильтра по дате: так находится сессия через полночь.
func (s *TimeEntryStore) Active(ctx context.Context, userID, orgID string) (*models.TimeEntry, error) {
	var e models.TimeEntry
	err := s.db.WithContext(ctx).
		Where(activeCond, userID, orgID).
		Order("time_in desc").
		First(&e).Error
	if err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

// Open вставляет новую сессию. Строка членства блокируется на время транзакции,
// поэтому параллельные clock-in одного пользователя в одной организации идут по очереди.
func (s *TimeEntryStore) Open(ctx context.Context, e *models.TimeEntry) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m models.UserOrganization
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND org_id = ?", e.UserID, e.OrgID).
			First(&m).Error; err != nil {
			return err
		}
		var n int64
		if err := tx.Model(&models.TimeEntry{}).Where(activeCond, e.UserID, e.OrgID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrActiveEntry
		}
		return tx.Create(e).Error
	})
	return translate(err)
}

// Close закрывает сессию, если она ещё открыта.
func (s *TimeEntryStore) Close(ctx context.Context, id uint, at time.Time, note string) (*models.TimeEntry, error) {
	res := s.db.WithContext(ctx).Model(&models.TimeEntry{}).
		Where("id = ? AND time_out IS NULL", id).
		Updates(map[string]any{
			"time_out":   at,
			"note":       note,
			"updated_at": at,
		})
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	var e models.TimeEntry
	if err := s.db.WithContext(ctx).First(&e, id).Error; err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

func (s *TimeEntryStore) ForDate(ctx context.Context, userID, orgID, date string) ([]models.TimeEntry, error) {
	var out []models.TimeEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND org_id = ? AND date = ?", userID, orgID, date).
		Order("time_in asc, id asc").
		Find(&out).Error
	return out, translate(err)
}

// ForRange: записи пользователя с from <= date <= to, свежие дни первыми,
// внутри дня по времени clock-in.
func (s *TimeEntryStore) ForRange(ctx context.Context, userID, orgID, from, to string) ([]models.TimeEntry, error) {
	var out []models.TimeEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND org_id = ? AND date >= ? AND date <= ?", userID, orgID, from, to).
		Order("date desc, time_in asc, id asc").
		Find(&out).Error
	return out, translate(err)
}

// ForOrg: записи всей организации (или одного участника, если userID не пуст).
func (s *TimeEntryStore) ForOrg(ctx context.Context, orgID, from, to, userID string) ([]models.TimeEntry, error) {
	q := s.db.WithContext(ctx).Where("org_id = ? AND date >= ? AND date <= ?", orgID, from, to)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var out []models.TimeEntry
	err := q.Order("date asc, time_in asc, id asc").Find(&out).Error
	return out, translate(err)
}
