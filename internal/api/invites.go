package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"dtr/internal/invites"
	"dtr/internal/models"
)

type createInvitationRequest struct {
	Email string `json:"email"`
}

func (h *Handler) createInvitation(w http.ResponseWriter, r *http.Request) {
	var req createInvitationRequest
	if err := decode(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	id := identity(r)
	out, err := h.Invites.Create(r.Context(), invites.Inviter{UserID: id.UserID, Name: id.DisplayName()}, orgID(r), req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusCreated, out)
}

func (h *Handler) listInvitations(w http.ResponseWriter, r *http.Request) {
	out, err := h.Invites.ListPending(r.Context(), identity(r).UserID, orgID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, map[string]any{"invitations": out})
}

func (h *Handler) revokeInvitation(w http.ResponseWriter, r *http.Request) {
	if err := h.Invites.Revoke(r.Context(), identity(r).UserID, orgID(r), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getInvitation(w http.ResponseWriter, r *http.Request) {
	d, err := h.Invites.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, d)
}

func (h *Handler) acceptInvitation(w http.ResponseWriter, r *http.Request) {
	m, err := h.Invites.Accept(r.Context(), mux.Vars(r)["id"], identity(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, m)
}
