// Package web отдаёт HTML-страницу приглашения, на которую ведёт ссылка из письма.
package web

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"dtr/internal/apperr"
	"dtr/internal/invites"
	"dtr/internal/logs"
)

type InvitationReader interface {
	Get(ctx context.Context, id string) (*invites.Details, error)
}

type Dependencies struct {
	Invites InvitationReader
}

type Handler struct {
	d Dependencies
	t pageTemplates
}

func Attach(r *mux.Router, d Dependencies) error {
	t, err := parseTemplates()
	if err != nil {
		return err
	}
	h := &Handler{d: d, t: t}
	r.HandleFunc("/invite/{id}", h.InvitePage).Methods(http.MethodGet)
	r.HandleFunc("/static/style.css", serveCSS).Methods(http.MethodGet)
	r.HandleFunc("/static/app.js", serveJS).Methods(http.MethodGet)
	return nil
}

func (h *Handler) render(w http.ResponseWriter, status int, page string, data any) {
	t, ok := h.t[page]
	if !ok {
		http.Error(w, "template not found: "+page, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := t.ExecuteTemplate(w, "layout", data); err != nil {
		logs.Logger.Errorf("web: render %s: %v", page, err)
	}
}

func (h *Handler) InvitePage(w http.ResponseWriter, r *http.Request) {
	d, err := h.d.Invites.Get(r.Context(), mux.Vars(r)["id"])
	switch {
	case err == nil:
		h.render(w, http.StatusOK, "invite.tmpl", map[string]any{"Title": "Join " + d.OrgName, "Invitation": d})
	case apperr.KindOf(err) == apperr.KindNotFound:
		h.render(w, http.StatusNotFound, "invite.tmpl", map[string]any{"Title": "Invitation not found"})
	default:
		logs.Logger.Errorf("web: invitation page: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
