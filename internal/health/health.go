package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"dtr/internal/models"
)

// RegisterRoutes: базовый liveness.
func RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", liveness).Methods(http.MethodGet)
}

// RegisterRoutesWithDB добавляет readiness с проверкой БД.
// Без БД (in-memory режим) сервис готов сразу.
func RegisterRoutesWithDB(r *mux.Router, db *gorm.DB) {
	RegisterRoutes(r)
	r.HandleFunc("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if db == nil {
			models.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "storage": "memory"})
			return
		}
		sqlDB, err := db.DB()
		if err != nil {
			notReady(w, "db handle error")
			return
		}
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := sqlDB.PingContext(ctx); err != nil {
			notReady(w, "db unreachable")
			return
		}
		models.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "storage": db.Dialector.Name()})
	}).Methods(http.MethodGet)
}

func notReady(w http.ResponseWriter, detail string) {
	models.WriteProblem(w, http.StatusServiceUnavailable, "Service Unavailable", detail, nil)
}

func liveness(w http.ResponseWriter, _ *http.Request) {
	models.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
