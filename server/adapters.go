package server

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"dtr/config"
	"dtr/internal/audit"
	"dtr/internal/invites"
	"dtr/internal/live"
	"dtr/internal/logs"
	"dtr/internal/mailer"
	"dtr/internal/orgs"
	"dtr/internal/repo"
	"dtr/internal/tracker"
)

// stores: gorm при наличии БД, иначе in-memory.
type stores struct {
	entries     tracker.Store
	orgs        orgs.Store
	invitations invites.Store
	audit       audit.Store
}

func newStores(d *gorm.DB) stores {
	if d == nil {
		logs.Logger.Warn("database.driver is empty: using in-memory storage, data is lost on restart")
		m := repo.NewMemory()
		return stores{entries: m.Entries, orgs: m.Orgs, invitations: m.Invitations, audit: m.Audit}
	}
	return stores{
		entries:     repo.NewTimeEntryStore(d),
		orgs:        repo.NewOrgStore(d),
		invitations: repo.NewInvitationStore(d),
		audit:       repo.NewAuditStore(d),
	}
}

// newPublisher: без redis события живут внутри процесса; с redis расходятся по всем репликам.
// Возвращает run для фоновой подписки (nil, если не нужна).
func newPublisher(ctx context.Context, cfg *config.Config, hub *live.Hub) (live.Publisher, func(context.Context), error) {
	if cfg.Live.RedisAddr == "" {
		return hub, nil, nil
	}
	client, err := live.DialRedis(ctx, cfg.Live.RedisAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("live redis: %w", err)
	}
	bus := live.NewRedisBus(client, cfg.Live.RedisChannel, hub)
	return bus, bus.Run, nil
}

func newMailer(cfg *config.Config) (mailer.Sender, error) {
	return mailer.New(mailer.Options{
		Driver:   cfg.Mail.Driver,
		From:     cfg.Mail.From,
		Host:     cfg.Mail.SMTP.Host,
		Port:     cfg.Mail.SMTP.Port,
		Username: cfg.Mail.SMTP.Username,
		Password: cfg.Mail.SMTP.Password,
	})
}
