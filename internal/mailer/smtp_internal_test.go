package mailer

import (
	"context"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type sent struct {
	addr, from, body string
	to               []string
	auth             smtp.Auth
}

func newTestSender(t *testing.T, o Options) (*SMTPSender, *sent) {
	t.Helper()
	o.Driver = "smtp"
	s, err := New(o)
	require.NoError(t, err)
	ss := s.(*SMTPSender)
	got := &sent{}
	ss.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		got.addr, got.auth, got.from, got.to, got.body = addr, a, from, to, string(msg)
		return nil
	}
	return ss, got
}

func TestSMTPSenderBuildsMessage(t *testing.T) {
	s, got := newTestSender(t, Options{Host: "mail.local", Port: 2525, From: "dtr@example.com", Username: "u", Password: "p"})

	err := s.Send(context.Background(), Message{To: "bob@example.com", Subject: "You've been invited to join Acme", HTML: "<p>hi</p>\n"})
	require.NoError(t, err)
	require.NotNil(t, got.auth)
	require.Equal(t, "mail.local:2525", got.addr)
	require.Equal(t, "dtr@example.com", got.from)
	require.Equal(t, []string{"bob@example.com"}, got.to)
	require.True(t, strings.HasPrefix(got.body, "From: <dtr@example.com>\r\nTo: bob@example.com\r\n"))
	require.Contains(t, got.body, "Content-Type: text/html")
	require.True(t, strings.HasSuffix(got.body, "<p>hi</p>\r\n"))
}

func TestSMTPSenderSplitsDisplayName(t *testing.T) {
	s, got := newTestSender(t, Options{Host: "mail.local", From: "DTR <noreply@localhost>"})

	require.NoError(t, s.Send(context.Background(), Message{To: "bob@example.com", Subject: "hi"}))
	// MAIL FROM получает голый адрес, имя остаётся в заголовке
	require.Equal(t, "noreply@localhost", got.from)
	require.Equal(t, "mail.local:587", got.addr)
	require.Nil(t, got.auth)
	require.True(t, strings.HasPrefix(got.body, "From: \"DTR\" <noreply@localhost>\r\n"), got.body)
}

func TestNewRejectsBadFrom(t *testing.T) {
	for _, from := range []string{"", "DTR", "DTR <noreply@", "a@b.c, d@e.f"} {
		_, err := New(Options{Driver: "smtp", Host: "mail.local", From: from})
		require.Error(t, err, from)
	}
}

func TestSMTPSenderHonoursCancelledContext(t *testing.T) {
	s, _ := newTestSender(t, Options{Host: "mail.local", Port: 25, From: "dtr@example.com"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.Send(ctx, Message{To: "x@y.z"}), context.Canceled)
}
