package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditEvent: запись журнала действий в организации.
type AuditEvent struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	OrgID     string         `gorm:"size:64;not null;index:idx_audit_org_created,priority:1" json:"org_id"`
	ActorID   string         `gorm:"size:128;not null" json:"actor_id"`
	Action    string         `gorm:"size:64;not null" json:"action"`
	Subject   string         `gorm:"size:128" json:"subject"`
	Payload   datatypes.JSON `json:"payload,omitempty"`
	CreatedAt time.Time      `gorm:"index:idx_audit_org_created,priority:2" json:"created_at"`
}
