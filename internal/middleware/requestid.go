package middleware

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

// заголовок корреляции; эхо уходит клиенту
const HeaderRequestID = "X-Request-Id"

type reqIDKey struct{}

// чужой id попадает в логи и problem-ответы, поэтому только безопасные символы
var validReqID = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// RequestID берёт id из заголовка прокси или генерирует uuid.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if !validReqID.MatchString(id) {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
	})
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, reqIDKey{}, id)
}

// RequestIDFrom возвращает id текущего запроса или "" вне HTTP.
func RequestIDFrom(ctx context.Context) string {
	s, _ := ctx.Value(reqIDKey{}).(string)
	return s
}

func GetRequestID(r *http.Request) string { return RequestIDFrom(r.Context()) }
