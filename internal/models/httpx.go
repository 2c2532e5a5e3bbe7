package models

import (
	"encoding/json"
	"net/http"

	"dtr/internal/apperr"
)

// Problem представляет ответ об ошибке в стиле RFC 7807.
type Problem struct {
	Type     string      `json:"type,omitempty"`   // URL с описанием типа проблемы (можно оставить пустым)
	Title    string      `json:"title"`            // краткое название
	Status   int         `json:"status"`           // HTTP код
	Detail   string      `json:"detail,omitempty"` // подробности
	Instance string      `json:"instance,omitempty"`
	Extra    interface{} `json:"extra,omitempty"` // произвольные поля (map/struct)
}

func WriteProblem(w http.ResponseWriter, status int, title, detail string, extra any) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Title:  title,
		Status: status,
		Detail: detail,
		Extra:  extra,
	})
}

// WriteError переводит ошибку сервиса в problem+json. Детали внутренних ошибок не раскрываются.
func WriteError(w http.ResponseWriter, err error, reqid string) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	WriteProblem(w, status, http.StatusText(status), apperr.Message(err), map[string]any{
		"code":  kind,
		"reqid": reqid,
	})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
