package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"dtr/internal/models"
)

type createOrgRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

type updateRoleRequest struct {
	Role models.Role `json:"role"`
}

func (h *Handler) listOrgs(w http.ResponseWriter, r *http.Request) {
	out, err := h.Orgs.ListForUser(r.Context(), identity(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, map[string]any{"organizations": out})
}

func (h *Handler) createOrg(w http.ResponseWriter, r *http.Request) {
	var req createOrgRequest
	if err := decode(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	org, err := h.Orgs.Create(r.Context(), identity(r).UserID, req.Name, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusCreated, org)
}

func (h *Handler) getOrg(w http.ResponseWriter, r *http.Request) {
	org, err := h.Orgs.Get(r.Context(), identity(r).UserID, orgID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, org)
}

func (h *Handler) leaveOrg(w http.ResponseWriter, r *http.Request) {
	if err := h.Orgs.Leave(r.Context(), identity(r).UserID, orgID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	out, err := h.Orgs.Members(r.Context(), identity(r).UserID, orgID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, map[string]any{"members": out})
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	var req updateRoleRequest
	if err := decode(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.Orgs.UpdateRole(r.Context(), identity(r).UserID, orgID(r), mux.Vars(r)["userId"], req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	if err := h.Orgs.Remove(r.Context(), identity(r).UserID, orgID(r), mux.Vars(r)["userId"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
