// Package tracker ведёт сессии clock-in/clock-out и привязывает их к календарным дням.
package tracker

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"dtr/internal/apperr"
	"dtr/internal/live"
	"dtr/internal/logs"
	"dtr/internal/models"
	"dtr/internal/repo"
	"dtr/internal/timefmt"
)

var (
	ErrAlreadyActive   = apperr.Conflict("already clocked in")
	ErrNoActiveSession = apperr.Conflict("no active time entry found, clock in first")
	ErrNoteRequired    = apperr.Validation("note is required when clocking out")
	ErrNotMember       = apperr.Forbidden("not a member of this organization")
	ErrAdminRequired   = apperr.Forbidden("admin access required")
	ErrNoIdentity      = apperr.Unauthorized("missing user or organization")
)

const maxNoteLen = 2000

type Store interface {
	Active(ctx context.Context, userID, orgID string) (*models.TimeEntry, error)
	Open(ctx context.Context, e *models.TimeEntry) error
	Close(ctx context.Context, id uint, at time.Time, note string) (*models.TimeEntry, error)
	ForDate(ctx context.Context, userID, orgID, date string) ([]models.TimeEntry, error)
	ForRange(ctx context.Context, userID, orgID, from, to string) ([]models.TimeEntry, error)
	ForOrg(ctx context.Context, orgID, from, to, userID string) ([]models.TimeEntry, error)
}

// Members: tenant-гейт.
type Members interface {
	Membership(ctx context.Context, userID, orgID string) (*models.UserOrganization, error)
}

// Entry: запись с вычисляемыми полями.
type Entry struct {
	models.TimeEntry
	Duration     *int `json:"duration,omitempty"`
	LiveDuration *int `json:"live_duration,omitempty"`
	IsActive     bool `json:"is_active"`
}

// Minutes для итогов: закрытая или текущая для открытой.
func (e Entry) Minutes() int {
	switch {
	case e.Duration != nil:
		return *e.Duration
	case e.LiveDuration != nil:
		return *e.LiveDuration
	}
	return 0
}

// Status: сводка для экрана трекера.
type Status struct {
	ClockedIn    bool    `json:"clocked_in"`
	Active       *Entry  `json:"active"`
	Today        []Entry `json:"today"`
	Date         string  `json:"date"`
	TotalMinutes int     `json:"total_minutes"`
	Total        string  `json:"total"`
}

type Service struct {
	store   Store
	members Members
	events  live.Publisher
	loc     *time.Location

	Now func() time.Time
}

func NewService(store Store, members Members, events live.Publisher, loc *time.Location) *Service {
	if events == nil {
		events = live.Nop{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, members: members, events: events, loc: loc, Now: time.Now}
}

func (s *Service) now() time.Time { return s.Now().UTC().Truncate(time.Millisecond) }

func (s *Service) Location() *time.Location { return s.loc }

func (s *Service) view(e models.TimeEntry, now time.Time) Entry {
	v := Entry{TimeEntry: e, IsActive: e.TimeOut == nil}
	if e.TimeOut != nil {
		d := timefmt.DurationMinutes(e.TimeIn, *e.TimeOut)
		v.Duration = &d
	} else {
		d := timefmt.DurationMinutes(e.TimeIn, now)
		v.LiveDuration = &d
	}
	return v
}

func (s *Service) views(in []models.TimeEntry, now time.Time) []Entry {
	out := make([]Entry, 0, len(in))
	for _, e := range in {
		out = append(out, s.view(e, now))
	}
	return out
}

func (s *Service) authorize(ctx context.Context, userID, orgID string) (*models.UserOrganization, error) {
	if userID == "" || orgID == "" {
		return nil, ErrNoIdentity
	}
	m, err := s.members.Membership(ctx, userID, orgID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotMember
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return m, nil
}

// ClockIn открывает сессию. Дата записи берётся из момента clock-in.
func (s *Service) ClockIn(ctx context.Context, userID, orgID string) (*Entry, error) {
	if _, err := s.authorize(ctx, userID, orgID); err != nil {
		return nil, err
	}
	if _, err := s.store.Active(ctx, userID, orgID); err == nil {
		return nil, ErrAlreadyActive
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, apperr.Internal(err)
	}

	now := s.now()
	e := &models.TimeEntry{
		UserID:    userID,
		OrgID:     orgID,
		Date:      timefmt.DateOf(now, s.loc),
		TimeIn:    now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch err := s.store.Open(ctx, e); {
	case errors.Is(err, repo.ErrActiveEntry), errors.Is(err, repo.ErrDuplicate):
		return nil, ErrAlreadyActive
	case errors.Is(err, repo.ErrNotFound):
		return nil, ErrNotMember
	case err != nil:
		return nil, apperr.Internal(err)
	}

	logs.With(logrus.Fields{"user_id": userID, "org_id": orgID, "entry_id": e.ID, "date": e.Date}).Info("clock in")
	s.events.Publish(ctx, live.Event{Type: live.EventClockIn, OrgID: orgID, UserID: userID, Entry: e, At: now})
	v := s.view(*e, now)
	return &v, nil
}

// ClockOut закрывает самую свежую открытую сессию, независимо от её даты.
func (s *Service) ClockOut(ctx context.Context, userID, orgID, note string) (*Entry, error) {
	if _, err := s.authorize(ctx, userID, orgID); err != nil {
		return nil, err
	}
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, ErrNoteRequired
	}
	if len(note) > maxNoteLen {
		return nil, apperr.Validation("note is too long")
	}

	active, err := s.store.Active(ctx, userID, orgID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNoActiveSession
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	now := s.now()
	closed, err := s.store.Close(ctx, active.ID, now, note)
	if errors.Is(err, repo.ErrNotFound) {
		// закрыта параллельным запросом
		return nil, ErrNoActiveSession
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	v := s.view(*closed, now)
	logs.With(logrus.Fields{
		"user_id":  userID,
		"org_id":   orgID,
		"entry_id": closed.ID,
		"minutes":  v.Minutes(),
	}).Info("clock out")
	s.events.Publish(ctx, live.Event{Type: live.EventClockOut, OrgID: orgID, UserID: userID, Entry: closed, At: now})
	return &v, nil
}

// Active возвращает открытую сессию или nil.
func (s *Service) Active(ctx context.Context, userID, orgID string) (*Entry, error) {
	if _, err := s.authorize(ctx, userID, orgID); err != nil {
		return nil, err
	}
	e, err := s.store.Active(ctx, userID, orgID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	v := s.view(*e, s.now())
	return &v, nil
}

func (s *Service) IsClockedIn(ctx context.Context, userID, orgID string) (bool, error) {
	e, err := s.Active(ctx, userID, orgID)
	return e != nil, err
}

func (s *Service) ForDate(ctx context.Context, userID, orgID, date string) ([]Entry, error) {
	if _, err := s.authorize(ctx, userID, orgID); err != nil {
		return nil, err
	}
	if _, err := timefmt.ParseDate(date); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	rows, err := s.store.ForDate(ctx, userID, orgID, date)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return s.views(rows, s.now()), nil
}

func (s *Service) ForRange(ctx context.Context, userID, orgID, from, to string) ([]Entry, error) {
	if _, err := s.authorize(ctx, userID, orgID); err != nil {
		return nil, err
	}
	if err := ValidateRange(from, to, 0); err != nil {
		return nil, err
	}
	rows, err := s.store.ForRange(ctx, userID, orgID, from, to)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return s.views(rows, s.now()), nil
}

// Today отдаёт записи с датой "сегодня" плюс вчерашние, закрытые уже сегодня,
// плюс открытая сессия, если она началась раньше. Каждая запись входит один раз.
func (s *Service) Today(ctx context.Context, userID, orgID string) ([]Entry, error) {
	if _, err := s.authorize(ctx, userID, orgID); err != nil {
		return nil, err
	}
	now := s.now()
	return s.today(ctx, userID, orgID, now)
}

func (s *Service) today(ctx context.Context, userID, orgID string, now time.Time) ([]Entry, error) {
	today := timefmt.DateOf(now, s.loc)
	yesterday := timefmt.PrevDate(now, s.loc)

	todays, err := s.store.ForDate(ctx, userID, orgID, today)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	yesterdays, err := s.store.ForDate(ctx, userID, orgID, yesterday)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	seen := make(map[uint]struct{}, len(todays)+len(yesterdays))
	rows := make([]models.TimeEntry, 0, len(todays)+len(yesterdays))
	add := func(e models.TimeEntry) {
		if _, ok := seen[e.ID]; ok {
			return
		}
		seen[e.ID] = struct{}{}
		rows = append(rows, e)
	}
	for _, e := range todays {
		add(e)
	}
	for _, e := range yesterdays {
		if e.TimeOut != nil && timefmt.DateOf(*e.TimeOut, s.loc) == today {
			add(e)
		}
	}
	active, err := s.store.Active(ctx, userID, orgID)
	switch {
	case err == nil:
		add(*active)
	case !errors.Is(err, repo.ErrNotFound):
		return nil, apperr.Internal(err)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].TimeIn.Before(rows[j].TimeIn) })
	return s.views(rows, now), nil
}

// Status собирает открытую сессию, записи за сегодня и итог (открытая считается по текущему времени).
func (s *Service) Status(ctx context.Context, userID, orgID string) (*Status, error) {
	if _, err := s.authorize(ctx, userID, orgID); err != nil {
		return nil, err
	}
	now := s.now()
	today, err := s.today(ctx, userID, orgID, now)
	if err != nil {
		return nil, err
	}
	st := &Status{Today: today, Date: timefmt.DateOf(now, s.loc)}
	for i := range today {
		if today[i].IsActive && (st.Active == nil || today[i].TimeIn.After(st.Active.TimeIn)) {
			st.Active = &today[i]
		}
	}
	st.ClockedIn = st.Active != nil
	st.TotalMinutes = TotalMinutes(today)
	st.Total = timefmt.FormatMinutes(st.TotalMinutes)
	return st, nil
}

// OrgEntries отдаёт записи всех участников (или одного) за период; только для админов.
func (s *Service) OrgEntries(ctx context.Context, actorID, orgID, from, to, userID string, maxDays int) ([]Entry, error) {
	m, err := s.authorize(ctx, actorID, orgID)
	if err != nil {
		return nil, err
	}
	if m.Role != models.RoleAdmin {
		return nil, ErrAdminRequired
	}
	if err := ValidateRange(from, to, maxDays); err != nil {
		return nil, err
	}
	rows, err := s.store.ForOrg(ctx, orgID, from, to, strings.TrimSpace(userID))
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return s.views(rows, s.now()), nil
}

// ValidateRange проверяет from <= to и, если maxDays > 0, длину периода.
func ValidateRange(from, to string, maxDays int) error {
	if from == "" || to == "" {
		return apperr.Validation("start and end dates are required")
	}
	days, err := timefmt.DaysBetween(from, to)
	if err != nil {
		return apperr.Validation(err.Error())
	}
	if days < 1 {
		return apperr.Validation("start date must not be after end date")
	}
	if maxDays > 0 && days > maxDays {
		return apperr.Validation("date range is too long")
	}
	return nil
}

// TotalMinutes суммирует длительности (открытые считаются по текущему времени).
func TotalMinutes(entries []Entry) int {
	total := 0
	for _, e := range entries {
		total += e.Minutes()
	}
	return total
}
