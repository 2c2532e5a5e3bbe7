// Package api реализует JSON API трекера поверх gorilla/mux.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"dtr/internal/apperr"
	"dtr/internal/audit"
	"dtr/internal/auth"
	"dtr/internal/invites"
	"dtr/internal/live"
	"dtr/internal/logs"
	"dtr/internal/middleware"
	"dtr/internal/models"
	"dtr/internal/orgs"
	"dtr/internal/tracker"
)

// MaxExportDays ограничивает период выгрузки.
const MaxExportDays = 366

const maxBody = 1 << 20

type Handler struct {
	Tracker *tracker.Service
	Orgs    *orgs.Service
	Invites *invites.Service
	Audit   *audit.Log
	Hub     *live.Hub
}

// Register вешает /api/v1 на r. Все маршруты требуют bearer-токен.
func (h *Handler) Register(r *mux.Router, v *auth.Verifier) {
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(auth.Middleware(v, middleware.GetRequestID))

	api.HandleFunc("/organizations", h.listOrgs).Methods(http.MethodGet)
	api.HandleFunc("/organizations", h.createOrg).Methods(http.MethodPost)

	api.HandleFunc("/invitations/{id}", h.getInvitation).Methods(http.MethodGet)
	api.HandleFunc("/invitations/{id}/accept", h.acceptInvitation).Methods(http.MethodPost)

	org := api.PathPrefix("/orgs/{orgId}").Subrouter()
	org.HandleFunc("", h.getOrg).Methods(http.MethodGet)
	org.HandleFunc("/membership", h.leaveOrg).Methods(http.MethodDelete)
	org.HandleFunc("/members", h.listMembers).Methods(http.MethodGet)
	org.HandleFunc("/members/{userId}", h.updateRole).Methods(http.MethodPatch)
	org.HandleFunc("/members/{userId}", h.removeMember).Methods(http.MethodDelete)

	org.HandleFunc("/invitations", h.createInvitation).Methods(http.MethodPost)
	org.HandleFunc("/invitations", h.listInvitations).Methods(http.MethodGet)
	org.HandleFunc("/invitations/{id}", h.revokeInvitation).Methods(http.MethodDelete)

	org.HandleFunc("/clock-in", h.clockIn).Methods(http.MethodPost)
	org.HandleFunc("/clock-out", h.clockOut).Methods(http.MethodPost)
	org.HandleFunc("/status", h.status).Methods(http.MethodGet)
	org.HandleFunc("/entries/active", h.activeEntry).Methods(http.MethodGet)
	org.HandleFunc("/entries/today", h.todayEntries).Methods(http.MethodGet)
	org.HandleFunc("/entries", h.entries).Methods(http.MethodGet)

	org.HandleFunc("/records", h.records).Methods(http.MethodGet)
	org.HandleFunc("/export", h.export).Methods(http.MethodGet)
	org.HandleFunc("/audit", h.auditTrail).Methods(http.MethodGet)

	org.HandleFunc("/live", h.live).Methods(http.MethodGet)
}

func identity(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}

func orgID(r *http.Request) string { return mux.Vars(r)["orgId"] }

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	reqid := middleware.GetRequestID(r)
	if apperr.KindOf(err) == apperr.KindInternal {
		logs.Logger.Errorf("reqid=%s %s %s: %v", reqid, r.Method, r.URL.Path, err)
	}
	models.WriteError(w, err, reqid)
}

// decode читает JSON-тело; пустое тело допустимо, если allowEmpty.
func decode(r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	err := dec.Decode(v)
	if errors.Is(err, io.EOF) && allowEmpty {
		return nil
	}
	if err != nil {
		return apperr.Validation("invalid JSON body")
	}
	return nil
}
