package api

import (
	"net/http"

	"dtr/internal/apperr"
	"dtr/internal/models"
)

type clockOutRequest struct {
	Note string `json:"note"`
}

func (h *Handler) clockIn(w http.ResponseWriter, r *http.Request) {
	e, err := h.Tracker.ClockIn(r.Context(), identity(r).UserID, orgID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusCreated, e)
}

func (h *Handler) clockOut(w http.ResponseWriter, r *http.Request) {
	var req clockOutRequest
	if err := decode(r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := h.Tracker.ClockOut(r.Context(), identity(r).UserID, orgID(r), req.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	st, err := h.Tracker.Status(r.Context(), identity(r).UserID, orgID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, st)
}

func (h *Handler) activeEntry(w http.ResponseWriter, r *http.Request) {
	e, err := h.Tracker.Active(r.Context(), identity(r).UserID, orgID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, map[string]any{"clocked_in": e != nil, "entry": e})
}

func (h *Handler) todayEntries(w http.ResponseWriter, r *http.Request) {
	out, err := h.Tracker.Today(r.Context(), identity(r).UserID, orgID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, map[string]any{"entries": out})
}

// entries: ?date=YYYY-MM-DD или ?from=&to=.
func (h *Handler) entries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	user, org := identity(r).UserID, orgID(r)

	var (
		out any
		err error
	)
	switch {
	case q.Get("date") != "":
		out, err = h.Tracker.ForDate(r.Context(), user, org, q.Get("date"))
	case q.Get("from") != "" || q.Get("to") != "":
		out, err = h.Tracker.ForRange(r.Context(), user, org, q.Get("from"), q.Get("to"))
	default:
		err = apperr.Validation("date or from/to query parameters are required")
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, map[string]any{"entries": out})
}
