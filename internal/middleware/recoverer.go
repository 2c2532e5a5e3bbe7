package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"dtr/internal/apperr"
	"dtr/internal/logs"
	"dtr/internal/models"
)

// Recoverer превращает панику обработчика в 500 problem+json с reqid.
// http.ErrAbortHandler пробрасывается дальше: net/http молча рвёт соединение.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			reqid := GetRequestID(r)
			logs.With(logrus.Fields{
				"reqid":  reqid,
				"method": r.Method,
				"uri":    r.RequestURI,
				"stack":  string(debug.Stack()),
			}).Errorf("panic: %v", rec)
			models.WriteError(w, apperr.Internal(fmt.Errorf("panic: %v", rec)), reqid)
		}()
		next.ServeHTTP(w, r)
	})
}
