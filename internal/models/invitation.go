package models

import "time"

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationExpired  InvitationStatus = "expired"
)

// Invitation: приглашение по email. ID одновременно служит токеном в ссылке.
type Invitation struct {
	ID         string           `gorm:"primaryKey;size:64" json:"id"`
	Email      string           `gorm:"size:320;not null" json:"email"`
	OrgID      string           `gorm:"size:64;not null;index" json:"org_id"`
	InviterID  string           `gorm:"size:128;not null" json:"inviter_id"`
	Status     InvitationStatus `gorm:"size:16;not null;default:pending;index:idx_invitations_status_expires,priority:1" json:"status"`
	ExpiresAt  time.Time        `gorm:"not null;index:idx_invitations_status_expires,priority:2" json:"expires_at"`
	CreatedAt  time.Time        `json:"created_at"`
	AcceptedAt *time.Time       `json:"accepted_at"`
}

// ExpiredAt: истёк ли срок к моменту now (сам статус не трогает).
func (i *Invitation) ExpiredAt(now time.Time) bool { return now.After(i.ExpiresAt) }
