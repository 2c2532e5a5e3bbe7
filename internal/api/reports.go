package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"dtr/internal/apperr"
	"dtr/internal/audit"
	"dtr/internal/models"
	"dtr/internal/report"
	"dtr/internal/timefmt"
)

type recordsResponse struct {
	From         string             `json:"from"`
	To           string             `json:"to"`
	Users        []report.UserGroup `json:"users"`
	TotalMinutes int                `json:"total_minutes"`
	Total        string             `json:"total"`
}

// records: записи организации по участникам (админ).
func (h *Handler) records(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	entries, err := h.Tracker.OrgEntries(r.Context(), identity(r).UserID, orgID(r), from, to, q.Get("userId"), 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	groups := report.GroupByUser(entries)
	total := report.GrandTotal(groups)
	models.WriteJSON(w, http.StatusOK, recordsResponse{
		From:         from,
		To:           to,
		Users:        groups,
		TotalMinutes: total,
		Total:        timefmt.FormatMinutes(total),
	})
}

// export отдаёт CSV или PDF; период не длиннее MaxExportDays.
func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	format := strings.ToLower(q.Get("format"))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "pdf" {
		writeError(w, r, apperr.Validation("format must be csv or pdf"))
		return
	}

	actor, org := identity(r).UserID, orgID(r)
	entries, err := h.Tracker.OrgEntries(r.Context(), actor, org, from, to, q.Get("userId"), MaxExportDays)
	if err != nil {
		writeError(w, r, err)
		return
	}

	loc := h.Tracker.Location()
	var (
		buf         bytes.Buffer
		contentType string
	)
	switch format {
	case "csv":
		contentType = "text/csv; charset=utf-8"
		err = report.WriteCSV(&buf, entries, loc)
	case "pdf":
		contentType = "application/pdf"
		name, nerr := h.Orgs.OrgName(r.Context(), org)
		if nerr != nil {
			writeError(w, r, nerr)
			return
		}
		err = report.WritePDF(&buf, report.Meta{OrgName: name, From: from, To: to}, report.GroupByUser(entries), loc)
	}
	if err != nil {
		writeError(w, r, apperr.Internal(err))
		return
	}

	h.Audit.Record(r.Context(), org, actor, audit.ActionRecordsExported, format, map[string]any{
		"from":    from,
		"to":      to,
		"entries": len(entries),
	})

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="dtr-%s-to-%s.%s"`, from, to, format))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) auditTrail(w http.ResponseWriter, r *http.Request) {
	org := orgID(r)
	if err := h.Orgs.RequireAdmin(r.Context(), identity(r).UserID, org); err != nil {
		writeError(w, r, err)
		return
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, r, apperr.Validation("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	events, err := h.Audit.List(r.Context(), org, limit)
	if err != nil {
		writeError(w, r, apperr.Internal(err))
		return
	}
	models.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}
