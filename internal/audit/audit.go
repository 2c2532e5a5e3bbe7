// Package audit пишет журнал действий организации.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"dtr/internal/logs"
	"dtr/internal/models"
)

const (
	ActionOrgCreated      = "org.created"
	ActionMemberJoined    = "member.joined"
	ActionMemberRemoved   = "member.removed"
	ActionMemberLeft      = "member.left"
	ActionRoleChanged     = "member.role_changed"
	ActionInviteCreated   = "invitation.created"
	ActionInviteAccepted  = "invitation.accepted"
	ActionInviteRevoked   = "invitation.revoked"
	ActionRecordsExported = "records.exported"
	DefaultLimit          = 100
	MaxLimit              = 1000
)

type Store interface {
	Append(ctx context.Context, ev *models.AuditEvent) error
	ListForOrg(ctx context.Context, orgID string, limit int) ([]models.AuditEvent, error)
}

type Log struct {
	store Store
	Now   func() time.Time
}

func New(store Store) *Log { return &Log{store: store, Now: time.Now} }

// Record не прерывает основную операцию: ошибка записи журнала только логируется.
func (l *Log) Record(ctx context.Context, orgID, actorID, action, subject string, payload any) {
	if l == nil || l.store == nil {
		return
	}
	ev := &models.AuditEvent{
		OrgID:     orgID,
		ActorID:   actorID,
		Action:    action,
		Subject:   subject,
		CreatedAt: l.Now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			logs.Logger.Warnf("audit: marshal payload for %s: %v", action, err)
		} else {
			ev.Payload = datatypes.JSON(raw)
		}
	}
	if err := l.store.Append(ctx, ev); err != nil {
		logs.Logger.WithFields(logrus.Fields{
			"org_id": orgID,
			"actor":  actorID,
			"action": action,
		}).Errorf("audit: append: %v", err)
	}
}

func (l *Log) List(ctx context.Context, orgID string, limit int) ([]models.AuditEvent, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return l.store.ListForOrg(ctx, orgID, limit)
}
