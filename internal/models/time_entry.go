package models

import "time"

// TimeEntry: одна сессия clock-in/clock-out. Открытая сессия: TimeOut == nil.
// Date берётся из момента clock-in и после вставки не меняется.
type TimeEntry struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    string     `gorm:"size:128;not null;index:idx_time_entries_user_org_date,priority:1" json:"user_id"`
	OrgID     string     `gorm:"size:64;not null;index:idx_time_entries_user_org_date,priority:2;index:idx_time_entries_org_date,priority:1" json:"org_id"`
	Date      string     `gorm:"size:10;not null;index:idx_time_entries_user_org_date,priority:3;index:idx_time_entries_org_date,priority:2" json:"date"`
	TimeIn    time.Time  `gorm:"not null" json:"time_in"`
	TimeOut   *time.Time `json:"time_out"`
	Note      *string    `gorm:"size:2000" json:"note"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (e *TimeEntry) IsActive() bool { return e.TimeOut == nil }
