package api_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"dtr/internal/api"
	"dtr/internal/audit"
	"dtr/internal/auth"
	"dtr/internal/invites"
	"dtr/internal/live"
	"dtr/internal/mailer"
	"dtr/internal/middleware"
	"dtr/internal/orgs"
	"dtr/internal/repo"
	"dtr/internal/tracker"
)

type env struct {
	t      *testing.T
	router *mux.Router
	v      *auth.Verifier
	hub    *live.Hub
	clock  time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{t: t, v: auth.NewVerifier("test-secret", ""), hub: live.NewHub(), clock: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	now := func() time.Time { return e.clock }

	m := repo.NewMemory()
	log := audit.New(m.Audit)
	o := orgs.NewService(m.Orgs, log, e.hub)
	o.Now = now
	tr := tracker.NewService(m.Entries, m.Orgs, e.hub, time.UTC)
	tr.Now = now
	inv := invites.NewService(m.Invitations, o, mailer.LogSender{}, log, e.hub, invites.Options{BaseURL: "http://dtr.test"})
	inv.Now = now

	e.router = mux.NewRouter()
	e.router.Use(middleware.RequestID)
	h := &api.Handler{Tracker: tr, Orgs: o, Invites: inv, Audit: log, Hub: e.hub}
	h.Register(e.router, e.v)
	return e
}

func (e *env) token(user string) string {
	tok, err := e.v.Issue(auth.Identity{UserID: user, Email: user + "@example.com", Name: strings.ToUpper(user)}, time.Hour)
	require.NoError(e.t, err)
	return tok
}

func (e *env) do(user, method, path string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+e.token(user))
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func (e *env) createOrg(user, name string) string {
	rec := e.do(user, http.MethodPost, "/api/v1/organizations", map[string]string{"name": name})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	var org struct {
		ID   string `json:"id"`
		Role string `json:"role"`
	}
	decodeBody(e.t, rec, &org)
	require.Equal(e.t, "admin", org.Role)
	return org.ID
}

func (e *env) invite(admin, orgID, member string) {
	rec := e.do(admin, http.MethodPost, "/api/v1/orgs/"+orgID+"/invitations", map[string]string{"email": member + "@example.com"})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	var inv struct {
		ID        string `json:"id"`
		URL       string `json:"url"`
		EmailSent bool   `json:"email_sent"`
	}
	decodeBody(e.t, rec, &inv)
	require.True(e.t, inv.EmailSent)
	require.Equal(e.t, "http://dtr.test/invite/"+inv.ID, inv.URL)

	rec = e.do(member, http.MethodPost, "/api/v1/invitations/"+inv.ID+"/accept", nil)
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRequiresToken(t *testing.T) {
	e := newEnv(t)
	rec := e.do("", http.MethodGet, "/api/v1/organizations", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestClockFlowOverHTTP(t *testing.T) {
	e := newEnv(t)
	org := e.createOrg("alice", "Acme")

	rec := e.do("alice", http.MethodPost, "/api/v1/orgs/"+org+"/clock-in", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do("alice", http.MethodPost, "/api/v1/orgs/"+org+"/clock-in", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	var problem struct {
		Extra struct {
			Code string `json:"code"`
		} `json:"extra"`
	}
	decodeBody(t, rec, &problem)
	require.Equal(t, "conflict", problem.Extra.Code)

	e.clock = e.clock.Add(95 * time.Minute)
	rec = e.do("alice", http.MethodGet, "/api/v1/orgs/"+org+"/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st tracker.Status
	decodeBody(t, rec, &st)
	require.True(t, st.ClockedIn)
	require.Equal(t, 95, st.TotalMinutes)
	require.Equal(t, "1:35", st.Total)

	rec = e.do("alice", http.MethodPost, "/api/v1/orgs/"+org+"/clock-out", map[string]string{"note": "   "})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do("alice", http.MethodPost, "/api/v1/orgs/"+org+"/clock-out", map[string]string{"note": "wrote reports"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out tracker.Entry
	decodeBody(t, rec, &out)
	require.Equal(t, 95, *out.Duration)

	rec = e.do("alice", http.MethodPost, "/api/v1/orgs/"+org+"/clock-out", map[string]string{"note": "again"})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do("alice", http.MethodGet, "/api/v1/orgs/"+org+"/entries?date=2024-01-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Entries []tracker.Entry `json:"entries"`
	}
	decodeBody(t, rec, &list)
	require.Len(t, list.Entries, 1)

	rec = e.do("alice", http.MethodGet, "/api/v1/orgs/"+org+"/entries?from=2024-01-02&to=2024-01-01", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do("alice", http.MethodGet, "/api/v1/orgs/"+org+"/entries/active", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"clocked_in":false`)
}

func TestTenantIsolationOverHTTP(t *testing.T) {
	e := newEnv(t)
	orgA := e.createOrg("alice", "Acme")
	orgB := e.createOrg("bob", "Globex")

	rec := e.do("alice", http.MethodPost, "/api/v1/orgs/"+orgB+"/clock-in", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do("alice", http.MethodGet, "/api/v1/orgs/"+orgB, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do("bob", http.MethodGet, "/api/v1/orgs/"+orgA+"/members", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do("alice", http.MethodGet, "/api/v1/organizations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Organizations []struct {
			ID string `json:"id"`
		} `json:"organizations"`
	}
	decodeBody(t, rec, &list)
	require.Len(t, list.Organizations, 1)
	require.Equal(t, orgA, list.Organizations[0].ID)
}

func TestInvitationAndAdminFlows(t *testing.T) {
	e := newEnv(t)
	org := e.createOrg("alice", "Acme")
	e.invite("alice", org, "bob")

	rec := e.do("bob", http.MethodPost, "/api/v1/orgs/"+org+"/invitations", map[string]string{"email": "carol@example.com"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do("alice", http.MethodPost, "/api/v1/orgs/"+org+"/invitations", map[string]string{"email": "not-an-email"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do("alice", http.MethodGet, "/api/v1/orgs/"+org+"/members", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var members struct {
		Members []struct {
			UserID string `json:"user_id"`
			Role   string `json:"role"`
		} `json:"members"`
	}
	decodeBody(t, rec, &members)
	require.Len(t, members.Members, 2)

	rec = e.do("alice", http.MethodPatch, "/api/v1/orgs/"+org+"/members/bob", map[string]string{"role": "superuser"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do("bob", http.MethodPost, "/api/v1/orgs/"+org+"/clock-in", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	e.clock = e.clock.Add(30 * time.Minute)

	rec = e.do("alice", http.MethodDelete, "/api/v1/orgs/"+org+"/members/bob", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = e.do("bob", http.MethodPost, "/api/v1/orgs/"+org+"/clock-out", map[string]string{"note": "late"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do("alice", http.MethodGet, "/api/v1/orgs/"+org+"/records?from=2024-01-01&to=2024-01-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var records struct {
		Users []struct {
			UserID       string `json:"user_id"`
			TotalMinutes int    `json:"total_minutes"`
		} `json:"users"`
	}
	decodeBody(t, rec, &records)
	require.Len(t, records.Users, 1)
	require.Equal(t, "bob", records.Users[0].UserID)
	require.Equal(t, 30, records.Users[0].TotalMinutes)

	rec = e.do("alice", http.MethodGet, "/api/v1/orgs/"+org+"/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), audit.ActionMemberRemoved)
}

func TestExport(t *testing.T) {
	e := newEnv(t)
	org := e.createOrg("alice", "Acme")
	e.do("alice", http.MethodPost, "/api/v1/orgs/"+org+"/clock-in", nil)
	e.clock = e.clock.Add(time.Hour)
	e.do("alice", http.MethodPost, "/api/v1/orgs/"+org+"/clock-out", map[string]string{"note": "done"})

	rec := e.do("alice", http.MethodGet, "/api/v1/orgs/"+org+"/export?from=2024-01-01&to=2024-01-31&format=csv", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), "dtr-2024-01-01-to-2024-01-31.csv")
	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "60", rows[1][4])

	rec = e.do("alice", http.MethodGet, "/api/v1/orgs/"+org+"/export?from=2024-01-01&to=2024-01-31&format=pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec = e.do("alice", http.MethodGet, "/api/v1/orgs/"+org+"/export?from=2023-01-01&to=2024-01-31", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do("alice", http.MethodGet, "/api/v1/orgs/"+org+"/export?from=2024-01-01&to=2024-01-31&format=xlsx", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLiveReceivesClockEvents(t *testing.T) {
	e := newEnv(t)
	org := e.createOrg("alice", "Acme")
	srv := httptest.NewServer(e.router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/orgs/" + org + "/live?access_token=" + e.token("alice")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return e.hub.Clients(org) == 1 }, time.Second, 10*time.Millisecond)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, srv.URL+"/api/v1/orgs/"+org+"/clock-in", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+e.token("alice"))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev live.Event
	require.NoError(t, conn.ReadJSON(&ev))
	require.Equal(t, live.EventClockIn, ev.Type)
	require.Equal(t, "alice", ev.UserID)

	// чужой организации подписка недоступна
	other := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/orgs/" + org + "/live?access_token=" + e.token("mallory")
	_, resp, err = websocket.DefaultDialer.Dial(other, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLiveDropsRemovedMember(t *testing.T) {
	e := newEnv(t)
	org := e.createOrg("alice", "Acme")
	e.invite("alice", org, "bob")
	srv := httptest.NewServer(e.router)
	t.Cleanup(srv.Close)

	liveURL := func(user string) string {
		return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/orgs/" + org + "/live?access_token=" + e.token(user)
	}
	bob, _, err := websocket.DefaultDialer.Dial(liveURL("bob"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bob.Close() })
	alice, _, err := websocket.DefaultDialer.Dial(liveURL("alice"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = alice.Close() })
	require.Eventually(t, func() bool { return e.hub.Clients(org) == 2 }, time.Second, 10*time.Millisecond)

	rec := e.do("alice", http.MethodDelete, "/api/v1/orgs/"+org+"/members/bob", nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	rec = e.do("alice", http.MethodPost, "/api/v1/orgs/"+org+"/clock-in", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// бывший участник получает только уведомление об удалении
	require.NoError(t, bob.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev live.Event
	require.NoError(t, bob.ReadJSON(&ev))
	require.Equal(t, live.EventMemberRemoved, ev.Type)
	require.Equal(t, "bob", ev.UserID)
	_, _, err = bob.ReadMessage()
	require.Error(t, err)
	require.True(t, websocket.IsCloseError(err, websocket.CloseNoStatusReceived, websocket.CloseNormalClosure), "got %v", err)

	require.NoError(t, alice.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, alice.ReadJSON(&ev))
	require.Equal(t, live.EventMemberRemoved, ev.Type)
	require.NoError(t, alice.ReadJSON(&ev))
	require.Equal(t, live.EventClockIn, ev.Type)
	require.Equal(t, "alice", ev.UserID)
	require.Equal(t, 1, e.hub.Clients(org))

	// повторная подписка уже невозможна
	_, resp, err := websocket.DefaultDialer.Dial(liveURL("bob"), nil)
	require.Error(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
