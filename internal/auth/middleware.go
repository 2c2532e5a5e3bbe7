package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"dtr/internal/apperr"
	"dtr/internal/logs"
	"dtr/internal/models"
)

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok && id.UserID != ""
}

// Middleware требует Authorization: Bearer <jwt>. Для websocket-запросов
// токен можно передать в ?access_token=, браузер не даёт ставить заголовки.
func Middleware(v *Verifier, reqID func(*http.Request) string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearer(r)
			if raw == "" && websocket.IsWebSocketUpgrade(r) {
				raw = r.URL.Query().Get("access_token")
			}
			if raw == "" {
				models.WriteError(w, apperr.Unauthorized("missing bearer token"), reqID(r))
				return
			}
			id, err := v.Verify(raw)
			if err != nil {
				logs.Logger.Debugf("auth: %v", err)
				models.WriteError(w, apperr.Unauthorized("invalid or expired token"), reqID(r))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func bearer(r *http.Request) string {
	const p = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) < len(p) || !strings.EqualFold(h[:len(p)], p) {
		return ""
	}
	return strings.TrimSpace(h[len(p):])
}
