package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"dtr/config"
	"dtr/internal/api"
	"dtr/internal/audit"
	"dtr/internal/auth"
	"dtr/internal/db"
	"dtr/internal/health"
	"dtr/internal/invites"
	"dtr/internal/live"
	"dtr/internal/logs"
	"dtr/internal/middleware"
	"dtr/internal/orgs"
	"dtr/internal/tracker"
	"dtr/internal/web"
)

type App struct {
	cfg        *config.Config
	db         *gorm.DB
	Router     *mux.Router
	handler    http.Handler
	httpServer *http.Server

	hub     *live.Hub
	sweeper *invites.Sweeper
	busRun  func(context.Context)

	ctx    context.Context
	cancel context.CancelFunc
}

func (a *App) Initialize(cfg *config.Config) {
	a.cfg = cfg
	a.ctx, a.cancel = context.WithCancel(context.Background())

	/* 1) Логи */
	logs.Init(logs.Options{
		Level:  a.cfg.Logging.Level,
		Format: a.cfg.Logging.Format,
		File:   a.cfg.Logging.File,
	})

	/* 2) DB (опционально) */
	if drv := a.cfg.Database.Driver; drv != "" {
		d, err := db.Open(drv, a.cfg.Database.DSN)
		if err != nil {
			log.Fatalf("db open failed: %v", err)
		}
		a.db = d
		if err := db.Migrate(a.db); err != nil {
			log.Fatalf("db migrate failed: %v", err)
		}
	}
	st := newStores(a.db)

	/* 3) Live + почта */
	a.hub = live.NewHub()
	events, busRun, err := newPublisher(a.ctx, a.cfg, a.hub)
	if err != nil {
		log.Fatalf("live bus failed: %v", err)
	}
	a.busRun = busRun
	mail, err := newMailer(a.cfg)
	if err != nil {
		log.Fatalf("mailer failed: %v", err)
	}

	/* 4) Сервисы */
	auditLog := audit.New(st.audit)
	orgSvc := orgs.NewService(st.orgs, auditLog, events)
	trackerSvc := tracker.NewService(st.entries, st.orgs, events, a.cfg.Location())
	inviteSvc := invites.NewService(st.invitations, orgSvc, mail, auditLog, events, invites.Options{
		BaseURL: a.cfg.Server.BaseURL,
		TTL:     a.cfg.Invites.TTL,
	})
	a.sweeper = invites.NewSweeper(inviteSvc, a.cfg.Invites.SweepInterval)

	/* 5) Router + middleware */
	a.Router = mux.NewRouter()
	a.Router.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.LoggerMW,
	)

	/* 6) Health */
	health.RegisterRoutesWithDB(a.Router, a.db) // /healthz, /readyz

	/* 7) API + страница приглашения */
	h := &api.Handler{Tracker: trackerSvc, Orgs: orgSvc, Invites: inviteSvc, Audit: auditLog, Hub: a.hub}
	h.Register(a.Router, auth.NewVerifier(a.cfg.Auth.JWTSecret, a.cfg.Auth.Issuer))
	if err := web.Attach(a.Router, web.Dependencies{Invites: inviteSvc}); err != nil {
		log.Fatalf("web templates: %v", err)
	}

	// CORS снаружи роутера, иначе preflight без маршрута получит 405
	a.handler = middleware.CORS(a.cfg.Server.CORSOrigins)(a.Router)

	_ = a.Router.Walk(func(rt *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, err := rt.GetPathTemplate()
		if err != nil {
			return nil
		}
		methods, _ := rt.GetMethods()
		if len(methods) == 0 {
			return nil
		}
		logs.Logger.Debugf("route: %-6v %s", methods, path)
		return nil
	})
}

// Handler возвращает роутер вместе с CORS.
func (a *App) Handler() http.Handler { return a.handler }

func (a *App) Run() error {
	if a.Router == nil || a.cfg == nil {
		return fmt.Errorf("server not initialized")
	}

	bind := net.JoinHostPort(a.cfg.Server.Address, a.cfg.Server.HTTPPort)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigs
		logs.Logger.Infof("shutdown signal: %s", s)
		a.cancel()
	}()

	go a.sweeper.Run(a.ctx)
	if a.busRun != nil {
		go a.busRun(a.ctx)
	}

	a.httpServer = &http.Server{
		Addr:              bind,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second, // PDF-выгрузка за год
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logs.Logger.Infof("HTTP listening on %s (tz=%s)", bind, a.cfg.Location())
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logs.Logger.Fatalf("http server error: %v", err)
		}
	}()

	<-a.ctx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// hijacked websocket-соединения Shutdown не закрывает
	a.hub.Close()
	if err := a.httpServer.Shutdown(ctx); err != nil {
		logs.Logger.Errorf("http shutdown: %v", err)
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return nil
}
