// Package invites ведёт приглашения по email через жизненный цикл pending → accepted|expired.
package invites

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"dtr/internal/apperr"
	"dtr/internal/audit"
	"dtr/internal/live"
	"dtr/internal/logs"
	"dtr/internal/mailer"
	"dtr/internal/models"
	"dtr/internal/repo"
)

const DefaultTTL = 7 * 24 * time.Hour

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var (
	ErrNotFound      = apperr.NotFound("invitation not found")
	ErrNotPending    = apperr.Conflict("invitation is no longer pending")
	ErrExpired       = apperr.Expired("invitation has expired")
	ErrAlreadyMember = apperr.Conflict("you are already a member of this organization")
	ErrInvalidEmail  = apperr.Validation("a valid email address is required")
)

type Store interface {
	Create(ctx context.Context, inv *models.Invitation) error
	Get(ctx context.Context, id string) (*models.Invitation, error)
	ListPending(ctx context.Context, orgID string, now time.Time) ([]models.Invitation, error)
	MarkExpired(ctx context.Context, id string) error
	Accept(ctx context.Context, id string, m *models.UserOrganization, at time.Time) error
	Delete(ctx context.Context, orgID, id string) error
	ExpirePending(ctx context.Context, now time.Time) (int64, error)
}

// Orgs: что приглашениям нужно от организаций.
type Orgs interface {
	RequireAdmin(ctx context.Context, userID, orgID string) error
	OrgName(ctx context.Context, orgID string) (string, error)
}

// Inviter: кто приглашает; имя попадает в письмо.
type Inviter struct {
	UserID string
	Name   string
}

// Created: результат создания: ссылка и признак отправки письма.
type Created struct {
	models.Invitation
	URL       string `json:"url"`
	EmailSent bool   `json:"email_sent"`
}

// Details: приглашение для страницы принятия.
type Details struct {
	models.Invitation
	OrgName string `json:"org_name"`
	Expired bool   `json:"expired"`
}

type Options struct {
	BaseURL string
	TTL     time.Duration
}

type Service struct {
	store  Store
	orgs   Orgs
	mail   mailer.Sender
	audit  *audit.Log
	events live.Publisher
	opts   Options

	Now func() time.Time
}

func NewService(store Store, orgs Orgs, mail mailer.Sender, log *audit.Log, events live.Publisher, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if events == nil {
		events = live.Nop{}
	}
	if mail == nil {
		mail = mailer.LogSender{}
	}
	return &Service{store: store, orgs: orgs, mail: mail, audit: log, events: events, opts: opts, Now: time.Now}
}

func (s *Service) now() time.Time { return s.Now().UTC().Truncate(time.Millisecond) }

// NewToken: 24 случайных байта в base64url без паддинга.
func NewToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NormalizeEmail приводит адрес к нижнему регистру и проверяет форму.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if len(email) > 320 || !emailRe.MatchString(email) {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func (s *Service) URL(id string) string { return s.opts.BaseURL + "/invite/" + id }

// Create сохраняет приглашение и отправляет письмо. Ошибка отправки не отменяет приглашение.
func (s *Service) Create(ctx context.Context, inviter Inviter, orgID, email string) (*Created, error) {
	if err := s.orgs.RequireAdmin(ctx, inviter.UserID, orgID); err != nil {
		return nil, err
	}
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	orgName, err := s.orgs.OrgName(ctx, orgID)
	if err != nil {
		return nil, err
	}
	id, err := NewToken()
	if err != nil {
		return nil, apperr.Internal(err)
	}

	now := s.now()
	inv := models.Invitation{
		ID:        id,
		Email:     email,
		OrgID:     orgID,
		InviterID: inviter.UserID,
		Status:    models.InvitationPending,
		ExpiresAt: now.Add(s.opts.TTL),
		CreatedAt: now,
	}
	if err := s.store.Create(ctx, &inv); err != nil {
		return nil, apperr.Internal(err)
	}

	out := &Created{Invitation: inv, URL: s.URL(id)}
	l := logs.With(logrus.Fields{"org_id": orgID, "invitation": id, "inviter": inviter.UserID})

	name := inviter.Name
	if name == "" {
		name = inviter.UserID
	}
	msg, err := mailer.InvitationMail(email, orgName, name, out.URL, inv.ExpiresAt)
	if err == nil {
		err = s.mail.Send(ctx, msg)
	}
	if err != nil {
		l.Warnf("invitation mail not sent: %v", err)
	} else {
		out.EmailSent = true
	}
	l.Info("invitation created")

	s.audit.Record(ctx, orgID, inviter.UserID, audit.ActionInviteCreated, id, map[string]any{
		"email":      email,
		"email_sent": out.EmailSent,
	})
	return out, nil
}

// Get отдаёт публичные сведения о приглашении (для страницы /invite/{id}).
func (s *Service) Get(ctx context.Context, id string) (*Details, error) {
	inv, err := s.store.Get(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	d := &Details{Invitation: *inv}
	d.Expired = inv.Status == models.InvitationExpired ||
		(inv.Status == models.InvitationPending && inv.ExpiredAt(s.now()))
	if name, err := s.orgs.OrgName(ctx, inv.OrgID); err == nil {
		d.OrgName = name
	}
	return d, nil
}

// Accept делает пользователя участником организации из приглашения.
func (s *Service) Accept(ctx context.Context, id, userID string) (*models.UserOrganization, error) {
	if userID == "" {
		return nil, apperr.Unauthorized("missing user")
	}
	inv, err := s.store.Get(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if inv.Status != models.InvitationPending {
		return nil, ErrNotPending
	}

	now := s.now()
	if inv.ExpiredAt(now) {
		if err := s.store.MarkExpired(ctx, id); err != nil {
			logs.Logger.Warnf("invitation %s: mark expired: %v", id, err)
		}
		return nil, ErrExpired
	}

	m := &models.UserOrganization{UserID: userID, Role: models.RoleMember, JoinedAt: now}
	switch err := s.store.Accept(ctx, id, m, now); {
	case errors.Is(err, repo.ErrDuplicate):
		return nil, ErrAlreadyMember
	case errors.Is(err, repo.ErrStale):
		return nil, ErrNotPending
	case errors.Is(err, repo.ErrNotFound):
		return nil, ErrNotFound
	case err != nil:
		return nil, apperr.Internal(err)
	}

	logs.With(logrus.Fields{"org_id": m.OrgID, "user_id": userID, "invitation": id}).Info("invitation accepted")
	s.audit.Record(ctx, m.OrgID, userID, audit.ActionInviteAccepted, id, nil)
	s.audit.Record(ctx, m.OrgID, userID, audit.ActionMemberJoined, userID, nil)
	s.events.Publish(ctx, live.Event{Type: live.EventMemberJoined, OrgID: m.OrgID, UserID: userID, At: now})
	return m, nil
}

func (s *Service) ListPending(ctx context.Context, actorID, orgID string) ([]models.Invitation, error) {
	if err := s.orgs.RequireAdmin(ctx, actorID, orgID); err != nil {
		return nil, err
	}
	out, err := s.store.ListPending(ctx, orgID, s.now())
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

// Revoke удаляет ещё не принятое приглашение.
func (s *Service) Revoke(ctx context.Context, actorID, orgID, id string) error {
	if err := s.orgs.RequireAdmin(ctx, actorID, orgID); err != nil {
		return err
	}
	switch err := s.store.Delete(ctx, orgID, id); {
	case errors.Is(err, repo.ErrNotFound):
		return ErrNotFound
	case err != nil:
		return apperr.Internal(err)
	}
	s.audit.Record(ctx, orgID, actorID, audit.ActionInviteRevoked, id, nil)
	return nil
}

// CleanupExpired переводит просроченные pending в expired; возвращает число строк.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := s.store.ExpirePending(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logs.Logger.Infof("invitations expired: %d", n)
	}
	return n, nil
}
