package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"dtr/internal/models"
)

// Memory держит данные в памяти процесса (режим без БД и тесты).
// Семантика совпадает с gorm-хранилищами: те же ошибки, те же инварианты.
type Memory struct {
	Entries     *MemTimeEntryStore
	Orgs        *MemOrgStore
	Invitations *MemInvitationStore
	Audit       *MemAuditStore
}

type memState struct {
	mu          sync.RWMutex
	nextEntry   uint
	nextMember  uint
	nextAudit   uint
	entries     map[uint]*models.TimeEntry
	orgs        map[string]*models.Organization
	members     map[string]*models.UserOrganization // key = orgID + "\x00" + userID
	invitations map[string]*models.Invitation
	audit       []models.AuditEvent
}

func NewMemory() *Memory {
	st := &memState{
		entries:     make(map[uint]*models.TimeEntry),
		orgs:        make(map[string]*models.Organization),
		members:     make(map[string]*models.UserOrganization),
		invitations: make(map[string]*models.Invitation),
	}
	return &Memory{
		Entries:     &MemTimeEntryStore{st: st},
		Orgs:        &MemOrgStore{st: st},
		Invitations: &MemInvitationStore{st: st},
		Audit:       &MemAuditStore{st: st},
	}
}

func memberKey(userID, orgID string) string { return orgID + "\x00" + userID }

func (st *memState) activeLocked(userID, orgID string) *models.TimeEntry {
	var best *models.TimeEntry
	for _, e := range st.entries {
		if e.UserID != userID || e.OrgID != orgID || e.TimeOut != nil {
			continue
		}
		if best == nil || e.TimeIn.After(best.TimeIn) {
			best = e
		}
	}
	return best
}

func (st *memState) addMemberLocked(m *models.UserOrganization) error {
	k := memberKey(m.UserID, m.OrgID)
	if _, ok := st.members[k]; ok {
		return ErrDuplicate
	}
	st.nextMember++
	m.ID = st.nextMember
	cp := *m
	st.members[k] = &cp
	return nil
}

func sortEntries(out []models.TimeEntry, newestDayFirst bool) {
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return (out[i].Date < out[j].Date) != newestDayFirst
		}
		if !out[i].TimeIn.Equal(out[j].TimeIn) {
			return out[i].TimeIn.Before(out[j].TimeIn)
		}
		return out[i].ID < out[j].ID
	})
}

// ---------- time entries ----------

type MemTimeEntryStore struct{ st *memState }

func (s *MemTimeEntryStore) Active(_ context.Context, userID, orgID string) (*models.TimeEntry, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	e := s.st.activeLocked(userID, orgID)
	if e == nil {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *MemTimeEntryStore) Open(_ context.Context, e *models.TimeEntry) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if _, ok := s.st.members[memberKey(e.UserID, e.OrgID)]; !ok {
		return ErrNotFound
	}
	if s.st.activeLocked(e.UserID, e.OrgID) != nil {
		return ErrActiveEntry
	}
	s.st.nextEntry++
	e.ID = s.st.nextEntry
	cp := *e
	s.st.entries[e.ID] = &cp
	return nil
}

func (s *MemTimeEntryStore) Close(_ context.Context, id uint, at time.Time, note string) (*models.TimeEntry, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	e, ok := s.st.entries[id]
	if !ok || e.TimeOut != nil {
		return nil, ErrNotFound
	}
	out := at
	n := note
	e.TimeOut = &out
	e.Note = &n
	e.UpdatedAt = at
	cp := *e
	return &cp, nil
}

func (s *MemTimeEntryStore) filter(newestDayFirst bool, keep func(e *models.TimeEntry) bool) []models.TimeEntry {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	out := make([]models.TimeEntry, 0)
	for _, e := range s.st.entries {
		if keep(e) {
			out = append(out, *e)
		}
	}
	sortEntries(out, newestDayFirst)
	return out
}

func (s *MemTimeEntryStore) ForDate(_ context.Context, userID, orgID, date string) ([]models.TimeEntry, error) {
	return s.filter(false, func(e *models.TimeEntry) bool {
		return e.UserID == userID && e.OrgID == orgID && e.Date == date
	}), nil
}

func (s *MemTimeEntryStore) ForRange(_ context.Context, userID, orgID, from, to string) ([]models.TimeEntry, error) {
	return s.filter(true, func(e *models.TimeEntry) bool {
		return e.UserID == userID && e.OrgID == orgID && e.Date >= from && e.Date <= to
	}), nil
}

func (s *MemTimeEntryStore) ForOrg(_ context.Context, orgID, from, to, userID string) ([]models.TimeEntry, error) {
	return s.filter(false, func(e *models.TimeEntry) bool {
		return e.OrgID == orgID && e.Date >= from && e.Date <= to && (userID == "" || e.UserID == userID)
	}), nil
}

// ---------- organizations ----------

type MemOrgStore struct{ st *memState }

func (s *MemOrgStore) CreateWithAdmin(_ context.Context, org *models.Organization, admin *models.UserOrganization) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if _, ok := s.st.orgs[org.ID]; ok {
		return ErrDuplicate
	}
	admin.OrgID = org.ID
	if err := s.st.addMemberLocked(admin); err != nil {
		return err
	}
	cp := *org
	s.st.orgs[org.ID] = &cp
	return nil
}

func (s *MemOrgStore) Get(_ context.Context, orgID string) (*models.Organization, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	o, ok := s.st.orgs[orgID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *MemOrgStore) ListForUser(_ context.Context, userID string) ([]models.OrganizationWithRole, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	out := make([]models.OrganizationWithRole, 0)
	for _, m := range s.st.members {
		if m.UserID != userID {
			continue
		}
		if o, ok := s.st.orgs[m.OrgID]; ok {
			out = append(out, models.OrganizationWithRole{Organization: *o, Role: m.Role})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemOrgStore) Membership(_ context.Context, userID, orgID string) (*models.UserOrganization, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	m, ok := s.st.members[memberKey(userID, orgID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *MemOrgStore) AddMember(_ context.Context, m *models.UserOrganization) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	return s.st.addMemberLocked(m)
}

func (s *MemOrgStore) Members(_ context.Context, orgID string) ([]models.UserOrganization, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	out := make([]models.UserOrganization, 0)
	for _, m := range s.st.members {
		if m.OrgID == orgID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemOrgStore) UpdateRole(_ context.Context, userID, orgID string, role models.Role) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	m, ok := s.st.members[memberKey(userID, orgID)]
	if !ok {
		return ErrNotFound
	}
	m.Role = role
	return nil
}

func (s *MemOrgStore) RemoveMember(_ context.Context, userID, orgID string, at time.Time, note string) (int64, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	k := memberKey(userID, orgID)
	if _, ok := s.st.members[k]; !ok {
		return 0, ErrNotFound
	}
	delete(s.st.members, k)
	var closed int64
	for _, e := range s.st.entries {
		if e.UserID == userID && e.OrgID == orgID && e.TimeOut == nil {
			out := at
			n := note
			e.TimeOut = &out
			e.Note = &n
			e.UpdatedAt = at
			closed++
		}
	}
	return closed, nil
}

func (s *MemOrgStore) CountAdmins(_ context.Context, orgID string) (int64, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	var n int64
	for _, m := range s.st.members {
		if m.OrgID == orgID && m.Role == models.RoleAdmin {
			n++
		}
	}
	return n, nil
}

// ---------- invitations ----------

type MemInvitationStore struct{ st *memState }

func (s *MemInvitationStore) Create(_ context.Context, inv *models.Invitation) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if _, ok := s.st.invitations[inv.ID]; ok {
		return ErrDuplicate
	}
	cp := *inv
	s.st.invitations[inv.ID] = &cp
	return nil
}

func (s *MemInvitationStore) Get(_ context.Context, id string) (*models.Invitation, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	inv, ok := s.st.invitations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (s *MemInvitationStore) ListPending(_ context.Context, orgID string, now time.Time) ([]models.Invitation, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	out := make([]models.Invitation, 0)
	for _, inv := range s.st.invitations {
		if inv.OrgID == orgID && inv.Status == models.InvitationPending && !inv.ExpiresAt.Before(now) {
			out = append(out, *inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemInvitationStore) MarkExpired(_ context.Context, id string) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if inv, ok := s.st.invitations[id]; ok && inv.Status == models.InvitationPending {
		inv.Status = models.InvitationExpired
	}
	return nil
}

func (s *MemInvitationStore) Accept(_ context.Context, id string, m *models.UserOrganization, at time.Time) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	inv, ok := s.st.invitations[id]
	if !ok {
		return ErrNotFound
	}
	if inv.Status != models.InvitationPending || inv.ExpiredAt(at) {
		return ErrStale
	}
	m.OrgID = inv.OrgID
	if err := s.st.addMemberLocked(m); err != nil {
		return err
	}
	accepted := at
	inv.Status = models.InvitationAccepted
	inv.AcceptedAt = &accepted
	return nil
}

func (s *MemInvitationStore) Delete(_ context.Context, orgID, id string) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	inv, ok := s.st.invitations[id]
	if !ok || inv.OrgID != orgID || inv.Status != models.InvitationPending {
		return ErrNotFound
	}
	delete(s.st.invitations, id)
	return nil
}

func (s *MemInvitationStore) ExpirePending(_ context.Context, now time.Time) (int64, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	var n int64
	for _, inv := range s.st.invitations {
		if inv.Status == models.InvitationPending && inv.ExpiresAt.Before(now) {
			inv.Status = models.InvitationExpired
			n++
		}
	}
	return n, nil
}

// ---------- audit ----------

type MemAuditStore struct{ st *memState }

func (s *MemAuditStore) Append(_ context.Context, ev *models.AuditEvent) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	s.st.nextAudit++
	ev.ID = s.st.nextAudit
	s.st.audit = append(s.st.audit, *ev)
	return nil
}

func (s *MemAuditStore) ListForOrg(_ context.Context, orgID string, limit int) ([]models.AuditEvent, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	out := make([]models.AuditEvent, 0)
	for i := len(s.st.audit) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if s.st.audit[i].OrgID == orgID {
			out = append(out, s.st.audit[i])
		}
	}
	return out, nil
}
