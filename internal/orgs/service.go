// Package orgs управляет организациями и членством. Права проверяются здесь, а не в хендлерах.
package orgs

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"dtr/internal/apperr"
	"dtr/internal/audit"
	"dtr/internal/live"
	"dtr/internal/logs"
	"dtr/internal/models"
	"dtr/internal/repo"
)

const (
	maxNameLen        = 255
	maxDescriptionLen = 1000

	// RemovedNote: заметка, которой закрывается сессия удалённого участника.
	RemovedNote = "closed: removed from organization"
	LeftNote    = "closed: left organization"
)

var (
	ErrNotFound      = apperr.NotFound("organization not found")
	ErrAdminRequired = apperr.Forbidden("admin access required")
	ErrAlreadyMember = apperr.Conflict("user is already a member of this organization")
	ErrMemberMissing = apperr.NotFound("member not found")
	ErrLastAdmin     = apperr.Conflict("organization must keep at least one admin")
)

type Store interface {
	CreateWithAdmin(ctx context.Context, org *models.Organization, admin *models.UserOrganization) error
	Get(ctx context.Context, orgID string) (*models.Organization, error)
	ListForUser(ctx context.Context, userID string) ([]models.OrganizationWithRole, error)
	Membership(ctx context.Context, userID, orgID string) (*models.UserOrganization, error)
	AddMember(ctx context.Context, m *models.UserOrganization) error
	Members(ctx context.Context, orgID string) ([]models.UserOrganization, error)
	UpdateRole(ctx context.Context, userID, orgID string, role models.Role) error
	RemoveMember(ctx context.Context, userID, orgID string, at time.Time, note string) (int64, error)
	CountAdmins(ctx context.Context, orgID string) (int64, error)
}

type Service struct {
	store  Store
	audit  *audit.Log
	events live.Publisher

	Now func() time.Time
}

func NewService(store Store, log *audit.Log, events live.Publisher) *Service {
	if events == nil {
		events = live.Nop{}
	}
	return &Service{store: store, audit: log, events: events, Now: time.Now}
}

func (s *Service) now() time.Time { return s.Now().UTC().Truncate(time.Millisecond) }

// Create создаёт организацию; создатель становится её админом в той же транзакции.
func (s *Service) Create(ctx context.Context, creatorID, name string, description *string) (*models.OrganizationWithRole, error) {
	if creatorID == "" {
		return nil, apperr.Unauthorized("missing user")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("organization name is required")
	}
	if len(name) > maxNameLen {
		return nil, apperr.Validation("organization name is too long")
	}
	if description != nil {
		d := strings.TrimSpace(*description)
		if len(d) > maxDescriptionLen {
			return nil, apperr.Validation("description is too long")
		}
		if d == "" {
			description = nil
		} else {
			description = &d
		}
	}

	now := s.now()
	org := &models.Organization{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	admin := &models.UserOrganization{UserID: creatorID, Role: models.RoleAdmin, JoinedAt: now}
	if err := s.store.CreateWithAdmin(ctx, org, admin); err != nil {
		return nil, apperr.Internal(err)
	}

	logs.With(logrus.Fields{"org_id": org.ID, "user_id": creatorID}).Info("organization created")
	s.audit.Record(ctx, org.ID, creatorID, audit.ActionOrgCreated, org.ID, map[string]string{"name": name})
	return &models.OrganizationWithRole{Organization: *org, Role: models.RoleAdmin}, nil
}

func (s *Service) ListForUser(ctx context.Context, userID string) ([]models.OrganizationWithRole, error) {
	out, err := s.store.ListForUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

// Get отдаёт организацию глазами участника. Не-участнику она не видна.
func (s *Service) Get(ctx context.Context, userID, orgID string) (*models.OrganizationWithRole, error) {
	m, err := s.membership(ctx, userID, orgID)
	if err != nil {
		return nil, err
	}
	org, err := s.store.Get(ctx, orgID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &models.OrganizationWithRole{Organization: *org, Role: m.Role}, nil
}

func (s *Service) membership(ctx context.Context, userID, orgID string) (*models.UserOrganization, error) {
	m, err := s.store.Membership(ctx, userID, orgID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return m, nil
}

func (s *Service) IsAdmin(ctx context.Context, userID, orgID string) (bool, error) {
	m, err := s.store.Membership(ctx, userID, orgID)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Internal(err)
	}
	return m.Role == models.RoleAdmin, nil
}

func (s *Service) RequireAdmin(ctx context.Context, userID, orgID string) error {
	ok, err := s.IsAdmin(ctx, userID, orgID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAdminRequired
	}
	return nil
}

// OrgName нужен письмам и страницам, права не проверяет.
func (s *Service) OrgName(ctx context.Context, orgID string) (string, error) {
	org, err := s.store.Get(ctx, orgID)
	if errors.Is(err, repo.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", apperr.Internal(err)
	}
	return org.Name, nil
}

func (s *Service) AddMember(ctx context.Context, userID, orgID string, role models.Role) (*models.UserOrganization, error) {
	if role == "" {
		role = models.RoleMember
	}
	if !role.Valid() {
		return nil, apperr.Validation("role must be admin or member")
	}
	m := &models.UserOrganization{UserID: userID, OrgID: orgID, Role: role, JoinedAt: s.now()}
	switch err := s.store.AddMember(ctx, m); {
	case errors.Is(err, repo.ErrDuplicate):
		return nil, ErrAlreadyMember
	case err != nil:
		return nil, apperr.Internal(err)
	}
	return m, nil
}

func (s *Service) Members(ctx context.Context, actorID, orgID string) ([]models.UserOrganization, error) {
	if err := s.RequireAdmin(ctx, actorID, orgID); err != nil {
		return nil, err
	}
	out, err := s.store.Members(ctx, orgID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

func (s *Service) UpdateRole(ctx context.Context, actorID, orgID, userID string, role models.Role) (*models.UserOrganization, error) {
	if err := s.RequireAdmin(ctx, actorID, orgID); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, apperr.Validation("role must be admin or member")
	}
	m, err := s.store.Membership(ctx, userID, orgID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrMemberMissing
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if m.Role == role {
		return m, nil
	}
	if m.Role == models.RoleAdmin {
		if err := s.keepsAnAdmin(ctx, orgID); err != nil {
			return nil, err
		}
	}
	switch err := s.store.UpdateRole(ctx, userID, orgID, role); {
	case errors.Is(err, repo.ErrNotFound):
		return nil, ErrMemberMissing
	case err != nil:
		return nil, apperr.Internal(err)
	}
	m.Role = role

	s.audit.Record(ctx, orgID, actorID, audit.ActionRoleChanged, userID, map[string]string{"role": string(role)})
	s.events.Publish(ctx, live.Event{Type: live.EventRoleChanged, OrgID: orgID, UserID: userID, At: s.now()})
	return m, nil
}

// Remove удаляет участника и закрывает его открытую сессию.
func (s *Service) Remove(ctx context.Context, actorID, orgID, userID string) error {
	if err := s.RequireAdmin(ctx, actorID, orgID); err != nil {
		return err
	}
	return s.remove(ctx, actorID, orgID, userID, RemovedNote, audit.ActionMemberRemoved)
}

// Leave: участник выходит сам. Последний админ выйти не может.
func (s *Service) Leave(ctx context.Context, userID, orgID string) error {
	if _, err := s.membership(ctx, userID, orgID); err != nil {
		return err
	}
	return s.remove(ctx, userID, orgID, userID, LeftNote, audit.ActionMemberLeft)
}

func (s *Service) remove(ctx context.Context, actorID, orgID, userID, note, action string) error {
	m, err := s.store.Membership(ctx, userID, orgID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrMemberMissing
	}
	if err != nil {
		return apperr.Internal(err)
	}
	if m.Role == models.RoleAdmin {
		if err := s.keepsAnAdmin(ctx, orgID); err != nil {
			return err
		}
	}

	now := s.now()
	closed, err := s.store.RemoveMember(ctx, userID, orgID, now, note)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrMemberMissing
	}
	if err != nil {
		return apperr.Internal(err)
	}

	logs.With(logrus.Fields{
		"org_id":  orgID,
		"user_id": userID,
		"actor":   actorID,
		"closed":  closed,
	}).Info("member removed")
	s.audit.Record(ctx, orgID, actorID, action, userID, map[string]int64{"closed_sessions": closed})
	s.events.Publish(ctx, live.Event{Type: live.EventMemberRemoved, OrgID: orgID, UserID: userID, At: now})
	return nil
}

func (s *Service) keepsAnAdmin(ctx context.Context, orgID string) error {
	n, err := s.store.CountAdmins(ctx, orgID)
	if err != nil {
		return apperr.Internal(err)
	}
	if n <= 1 {
		return ErrLastAdmin
	}
	return nil
}
