package mail

import (
	"bytes"
	"context"
	"io"
	"mime/quotedprintable"
	netmail "net/mail"
	"strings"
	"testing"
	"time"

	"locafy/pkg/logger"
)

func TestOTPEmail(t *testing.T) {
	msg, err := OTPEmail("asha@example.com", "482913", 10*time.Minute)
	if err != nil {
		t.Fatalf("OTPEmail() error = %v", err)
	}
	if msg.To[0] != "asha@example.com" {
		t.Errorf("To = %v", msg.To)
	}
	if !strings.Contains(msg.HTML, "482913") || !strings.Contains(msg.HTML, "10 minutes") {
		t.Errorf("OTP body missing code or expiry: %s", msg.HTML)
	}
}

func TestBookingStatusEmailEscapesInput(t *testing.T) {
	msg, err := BookingStatusEmail("u@example.com", BookingStatusData{
		BookingID:     "abc",
		Name:          "<script>alert(1)</script>",
		ServiceName:   "AC Repair",
		Status:        "confirmed",
		ScheduledDate: time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("BookingStatusEmail() error = %v", err)
	}
	if strings.Contains(msg.HTML, "<script>") {
		t.Error("name was not escaped")
	}
	if msg.Subject != "Your booking for AC Repair is confirmed" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	if !strings.Contains(msg.HTML, "Wed, 04 Mar 2026 10:30") {
		t.Errorf("scheduled date not rendered: %s", msg.HTML)
	}
}

func TestPasswordResetEmailKeepsLink(t *testing.T) {
	link := "https://api.locafy.test/api/auth/reset-password/tok.en.value"
	msg, err := PasswordResetEmail("u@example.com", "Ravi", link, 15*time.Minute)
	if err != nil {
		t.Fatalf("PasswordResetEmail() error = %v", err)
	}
	if !strings.Contains(msg.HTML, `href="`+link+`"`) {
		t.Errorf("reset link not rendered verbatim: %s", msg.HTML)
	}
}

func TestContactEmail(t *testing.T) {
	msg, err := ContactEmail("support@locafy.test", "Ravi", "ravi@example.com", " Billing ", "Hello")
	if err != nil {
		t.Fatalf("ContactEmail() error = %v", err)
	}
	if msg.ReplyTo != "ravi@example.com" || msg.Subject != "Contact: Billing" {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestBuildHeaders(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.locafy.test", From: "no-reply@locafy.test"}, logger.Discard())
	parsed := buildAndParse(t, m, Message{
		To:      []string{"a@x.test", "b@x.test"},
		ReplyTo: "ravi@example.com",
		Subject: "Hi",
		HTML:    "<p>x</p>",
	})

	tests := []struct {
		header string
		want   string
	}{
		{"From", "no-reply@locafy.test"},
		{"To", "a@x.test"},
		{"To", "b@x.test"},
		{"Reply-To", "ravi@example.com"},
		{"Subject", "Hi"},
		{"Content-Type", "text/html"},
		{"Content-Transfer-Encoding", "quoted-printable"},
	}
	for _, tt := range tests {
		if got := parsed.Header.Get(tt.header); !strings.Contains(got, tt.want) {
			t.Errorf("%s = %q, want it to contain %q", tt.header, got, tt.want)
		}
	}
	if parsed.Header.Get("Message-Id") == "" || parsed.Header.Get("Date") == "" {
		t.Error("missing Message-ID or Date")
	}
}

func TestBuildFoldsLongBodies(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.locafy.test", From: "no-reply@locafy.test"}, logger.Discard())
	contact, err := ContactEmail("support@locafy.test", "Ravi", "ravi@example.com", "Billing", strings.Repeat("é", 2500))
	if err != nil {
		t.Fatalf("ContactEmail() error = %v", err)
	}

	out, err := m.build(contact)
	if err != nil {
		t.Fatalf("build() error = %v", err)
	}
	var buf bytes.Buffer
	if _, err := out.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}

	for i, line := range strings.Split(buf.String(), "\r\n") {
		if len(line) > 998 {
			t.Fatalf("line %d is %d octets", i, len(line))
		}
	}

	parsed, err := netmail.ReadMessage(&buf)
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	body, err := io.ReadAll(quotedprintable.NewReader(parsed.Body))
	if err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !strings.Contains(string(body), strings.Repeat("é", 2500)) {
		t.Error("decoded body lost the message text")
	}
}

func TestBuildRejectsBadAddresses(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.locafy.test", From: "no-reply@locafy.test"}, logger.Discard())
	if _, err := m.build(Message{To: []string{"not an address"}, Subject: "x"}); err == nil {
		t.Error("expected error for invalid recipient")
	}
}

func buildAndParse(t *testing.T, m *SMTPMailer, msg Message) *netmail.Message {
	t.Helper()
	out, err := m.build(msg)
	if err != nil {
		t.Fatalf("build() error = %v", err)
	}
	var buf bytes.Buffer
	if _, err := out.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	parsed, err := netmail.ReadMessage(&buf)
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	return parsed
}

func TestLogMailer(t *testing.T) {
	if err := NewLogMailer(logger.Discard()).Send(context.Background(), Message{To: []string{"a@x.test"}}); err != nil {
		t.Errorf("LogMailer.Send() error = %v", err)
	}
}

func TestSMTPMailerRejectsNoRecipients(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "localhost", Port: 25}, logger.Discard())
	if err := m.Send(context.Background(), Message{Subject: "x"}); err == nil {
		t.Error("expected error for message without recipients")
	}
}
