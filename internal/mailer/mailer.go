// Package mailer отправляет письма-приглашения.
package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"dtr/internal/logs"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var tmpl = template.Must(template.ParseFS(templatesFS, "templates/*.tmpl"))

type Message struct {
	To      string
	Subject string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Options struct {
	Driver   string // log|smtp
	From     string
	Host     string
	Port     int
	Username string
	Password string
}

// New выбирает драйвер по Options.Driver.
func New(o Options) (Sender, error) {
	switch strings.ToLower(o.Driver) {
	case "", "log":
		return LogSender{}, nil
	case "smtp":
		if o.Host == "" {
			return nil, fmt.Errorf("mailer: smtp host is required")
		}
		if o.Port == 0 {
			o.Port = 587
		}
		from, err := ParseFrom(o.From)
		if err != nil {
			return nil, err
		}
		return &SMTPSender{opts: o, from: from}, nil
	}
	return nil, fmt.Errorf("mailer: unknown driver %q", o.Driver)
}

// InvitationMail собирает письмо-приглашение.
func InvitationMail(to, orgName, inviterName, url string, expiresAt time.Time) (Message, error) {
	var buf bytes.Buffer
	err := tmpl.ExecuteTemplate(&buf, "invitation.html.tmpl", map[string]any{
		"OrgName":     orgName,
		"InviterName": inviterName,
		"URL":         url,
		"ExpiresAt":   expiresAt.UTC().Format("Jan 2, 2006 15:04 MST"),
	})
	if err != nil {
		return Message{}, fmt.Errorf("render invitation mail: %w", err)
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf("You've been invited to join %s", orgName),
		HTML:    buf.String(),
	}, nil
}

// LogSender пишет письмо в лог вместо отправки (dev).
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) error {
	logs.With(logrus.Fields{"to": msg.To, "subject": msg.Subject}).Info("mail (log driver)")
	logs.Logger.Debug(msg.HTML)
	return nil
}
