package email_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/ErlanBelekov/backup-desk/internal/email"
)

type fakeSender struct {
	to, subject, body string
	err               error
}

func (s *fakeSender) Send(_ context.Context, to, subject, body string) error {
	s.to, s.subject, s.body = to, subject, body
	return s.err
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestNewOrphanAlerter_NoRecipientIsNil(t *testing.T) {
	if a := email.NewOrphanAlerter(&fakeSender{}, "", discardLogger); a != nil {
		t.Fatalf("expected nil alerter, got %+v", a)
	}
}

func TestReportOrphan_SendsEscapedBody(t *testing.T) {
	s := &fakeSender{}
	a := email.NewOrphanAlerter(s, "ops@example.com", discardLogger)

	a.ReportOrphan(context.Background(), "u1", "a<b>@example.com", errors.New("duplicate key"))

	if s.to != "ops@example.com" {
		t.Errorf("to: got %q", s.to)
	}
	if !strings.Contains(s.body, "u1") || !strings.Contains(s.body, "duplicate key") {
		t.Errorf("body missing details: %q", s.body)
	}
	if strings.Contains(s.body, "a<b>") {
		t.Errorf("body not escaped: %q", s.body)
	}
}

func TestReportOrphan_DeliveryFailureIsSwallowed(t *testing.T) {
	s := &fakeSender{err: errors.New("smtp down")}
	a := email.NewOrphanAlerter(s, "ops@example.com", discardLogger)

	a.ReportOrphan(context.Background(), "u1", "a@example.com", nil)

	if !strings.Contains(s.body, "unknown") {
		t.Errorf("body: got %q", s.body)
	}
}

func TestNewSender_LocalLogsInstead(t *testing.T) {
	if _, ok := email.NewSender("local", "re_key", "from@example.com", discardLogger).(*email.LogSender); !ok {
		t.Error("expected LogSender for local")
	}
	if _, ok := email.NewSender("production", "", "from@example.com", discardLogger).(*email.LogSender); !ok {
		t.Error("expected LogSender without api key")
	}
	if _, ok := email.NewSender("production", "re_key", "from@example.com", discardLogger).(*email.ResendSender); !ok {
		t.Error("expected ResendSender")
	}
}
