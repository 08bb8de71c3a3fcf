package emailsvc

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkceria/ceria/core"
	logsvc "github.com/tkceria/ceria/services/logger"
)

func setup(t *testing.T) (*core.Config, core.Logger) {
	t.Helper()
	conf := core.NewTestConfig()
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	core.ParseEmailTemplates(conf, logger)
	ResetSentMessages()
	return conf, logger
}

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	conf, logger := setup(t)
	svc := NewConsoleServiceMock(conf, logger)

	svc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: "Pak Budi", Address: "budi@example.com"}},
			Subject:      "Payment receipt: SPP 2024-08",
			TemplateName: "payment_receipt",
			TemplateData: map[string]string{
				"ParentName":  "Pak Budi",
				"PaymentType": "SPP",
				"StudentName": "Dina",
				"Period":      "2024-08",
				"Amount":      "150.000",
				"PaidAt":      "05 Aug 2024 09:00 UTC",
				"Note":        "",
			},
		},
		&core.EmailMessage{Subject: "no recipient", BodyStr: "dropped"},
	)

	require.Len(t, SentMessages, 1)
	msg, ok := LastSentMessage()
	require.True(t, ok)
	assert.Equal(t, "budi@example.com", msg.To[0].Address)
	assert.Contains(t, msg.TextContent, "Amount: Rp 150.000")
	assert.Contains(t, msg.HTMLContent, "150.000")

	ResetSentMessages()
	_, ok = LastSentMessage()
	assert.False(t, ok)
}

func TestConsoleService_format(t *testing.T) {
	conf, logger := setup(t)
	svc := consoleService{defaultFromEmail: conf.DefaultFromEmail, subjPrefix: "[TK Ceria] ", logger: logger}

	msg := core.EmailMessage{
		To:          []mail.Address{{Address: "budi@example.com"}, {Name: "Bu Ani", Address: "ani@example.com"}},
		Cc:          []mail.Address{{Address: "tu@ceria.sch.id"}},
		Subject:     "Rekap",
		TextContent: "halo",
		HTMLContent: "<p>halo</p>",
	}
	require.NoError(t, msg.Attach(bytes.NewBufferString("nis,name\n"), "siswa.csv", "text/csv"))

	body, err := svc.format(msg)
	require.NoError(t, err)
	for _, want := range []string{
		"From: \"TK Ceria\" <noreply@localhost>",
		"To: <budi@example.com>, \"Bu Ani\" <ani@example.com>",
		"CC: <tu@ceria.sch.id>",
		"Subject: [TK Ceria] Rekap",
		"Content-Type: text/plain; charset=utf-8",
		"Content-Type: text/html; charset=utf-8",
		"attachment; filename=siswa.csv",
	} {
		assert.Contains(t, body, want)
	}
	assert.True(t, strings.Contains(body, "multipart/mixed"))
}

func TestSendgridService_prepare(t *testing.T) {
	conf, logger := setup(t)
	svc := NewSendgridService(conf, logger).(*sendgridService)

	m := svc.prepare(core.EmailMessage{
		To:          []mail.Address{{Name: "Pak Budi", Address: "budi@example.com"}},
		Bcc:         []mail.Address{{Address: "arsip@ceria.sch.id"}},
		Subject:     "Reset password",
		TextContent: "halo",
		HTMLContent: "<p>halo</p>",
	})
	require.Len(t, m.Personalizations, 1)
	p := m.Personalizations[0]
	assert.Equal(t, "[TK Ceria] Reset password", p.Subject)
	require.Len(t, p.To, 1)
	assert.Equal(t, "budi@example.com", p.To[0].Address)
	require.Len(t, p.BCC, 1)
	assert.Equal(t, "noreply@localhost", m.From.Address)
	require.Len(t, m.Content, 2)
	assert.Equal(t, "text/plain", m.Content[0].Type)
	assert.Equal(t, []string{appCategory}, m.Categories)
	require.NotNil(t, m.MailSettings)
	require.NotNil(t, m.MailSettings.SandboxMode)
	assert.True(t, *m.MailSettings.SandboxMode.Enable)
}

func TestSendgridService_prepare_receipt(t *testing.T) {
	conf, logger := setup(t)
	conf.TestMode = false
	conf.Env = "PROD"
	svc := NewSendgridService(conf, logger).(*sendgridService)

	m := svc.prepare(core.EmailMessage{
		To:           []mail.Address{{Address: "budi@example.com"}},
		Subject:      "Payment receipt: SPP 2024-08",
		TemplateName: "payment_receipt",
		HTMLContent:  "<p>Rp 150.000</p>",
		Tags:         map[string]string{"payment_id": "p1", "period": "2024-08"},
	})
	assert.Equal(t, []string{appCategory, "payment_receipt"}, m.Categories)
	assert.Equal(t, map[string]string{"payment_id": "p1", "period": "2024-08"}, m.Personalizations[0].CustomArgs)
	assert.Nil(t, m.MailSettings)
	// no empty text/plain part
	require.Len(t, m.Content, 1)
	assert.Equal(t, "text/html", m.Content[0].Type)
}

func TestSendgridService_send(t *testing.T) {
	conf, logger := setup(t)
	conf.SendgridAPIKey = "SG.test-key"
	svc := NewSendgridService(conf, logger).(*sendgridService)

	origHost, origBackoff := host, retryBackoff
	t.Cleanup(func() { host, retryBackoff = origHost, origBackoff })
	retryBackoff = func(int) time.Duration { return 0 }

	tests := []struct {
		name      string
		statuses  []int
		wantCalls int
		wantErr   bool
	}{
		{name: "accepted", statuses: []int{http.StatusAccepted}, wantCalls: 1},
		{name: "retried until accepted", statuses: []int{http.StatusServiceUnavailable, http.StatusTooManyRequests, http.StatusAccepted}, wantCalls: 3},
		{name: "rejected without retry", statuses: []int{http.StatusBadRequest}, wantCalls: 1, wantErr: true},
		{name: "gives up", statuses: []int{http.StatusBadGateway, http.StatusBadGateway, http.StatusBadGateway}, wantCalls: 3, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, endpoint, r.URL.Path)
				assert.Equal(t, "Bearer "+conf.SendgridAPIKey, r.Header.Get("Authorization"))
				status := tt.statuses[len(tt.statuses)-1]
				if calls < len(tt.statuses) {
					status = tt.statuses[calls]
				}
				calls++
				w.WriteHeader(status)
			}))
			defer srv.Close()
			host = srv.URL

			err := svc.send(core.EmailMessage{
				To:          []mail.Address{{Address: "budi@example.com"}},
				Subject:     "halo",
				TextContent: "halo",
			})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}
