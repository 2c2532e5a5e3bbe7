package models

import "time"

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

func (r Role) Valid() bool { return r == RoleAdmin || r == RoleMember }

type Organization struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description *string   `gorm:"size:1000" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UserOrganization: членство пользователя; не больше одной строки на (user_id, org_id).
type UserOrganization struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	UserID   string    `gorm:"size:128;not null;uniqueIndex:ux_user_org,priority:1" json:"user_id"`
	OrgID    string    `gorm:"size:64;not null;uniqueIndex:ux_user_org,priority:2;index" json:"org_id"`
	Role     Role      `gorm:"size:16;not null;default:member" json:"role"`
	JoinedAt time.Time `gorm:"not null" json:"joined_at"`
}

// OrganizationWithRole: организация глазами конкретного участника.
type OrganizationWithRole struct {
	Organization
	Role Role `json:"role"`
}
