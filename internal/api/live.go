package api

import (
	"net/http"

	"dtr/internal/logs"
)

// live подписывает участника на события организации по websocket.
func (h *Handler) live(w http.ResponseWriter, r *http.Request) {
	user, org := identity(r).UserID, orgID(r)
	if _, err := h.Orgs.Get(r.Context(), user, org); err != nil {
		writeError(w, r, err)
		return
	}
	// ответ об ошибке upgrade уже записан gorilla/websocket
	if err := h.Hub.Serve(w, r, org, user); err != nil {
		logs.Logger.Debugf("live upgrade org=%s user=%s: %v", org, user, err)
	}
}
