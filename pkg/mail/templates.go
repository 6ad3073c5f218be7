package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
)

const layout = `{{define "layout"}}<div style="font-family: Arial, sans-serif; max-width: 600px; margin: auto; padding: 20px; border-radius: 8px; border: 1px solid #ddd; background-color: #f9f9f9;">
{{template "body" .}}
<p style="color: #888; font-size: 12px; margin-top: 24px;">Locafy - local services near you</p>
</div>{{end}}`

var templates = map[string]*template.Template{
	"otp": parse("otp", `{{define "body"}}<h2 style="color: #333; text-align: center;">Email Verification</h2>
<p>Use the code below to verify your email address.</p>
<p style="font-size: 28px; font-weight: bold; letter-spacing: 6px; text-align: center;">{{.Code}}</p>
<p>This code expires in {{.Minutes}} minutes. If you did not request it, ignore this email.</p>{{end}}`),

	"reset": parse("reset", `{{define "body"}}<h2 style="color: #333;">Password Reset</h2>
<p>Hi {{.Name}},</p>
<p>Click <a href="{{.Link}}">here</a> to reset your password. The link is valid for {{.Minutes}} minutes.</p>{{end}}`),

	"booking_status": parse("booking_status", `{{define "body"}}<h2 style="color: #333;">Booking {{.Status}}</h2>
<p>Hi {{.Name}},</p>
<p>Your booking for <strong>{{.ServiceName}}</strong> scheduled on {{.ScheduledDate}} is now <strong>{{.Status}}</strong>.</p>
<p>Booking reference: {{.BookingID}}</p>{{end}}`),

	"contact": parse("contact", `{{define "body"}}<h2 style="color: #333;">New contact request</h2>
<p><strong>From:</strong> {{.Name}} &lt;{{.Email}}&gt;</p>
<p><strong>Subject:</strong> {{.Subject}}</p>
<p style="white-space: pre-wrap;">{{.Message}}</p>{{end}}`),
}

func parse(name, body string) *template.Template {
	return template.Must(template.Must(template.New(name).Parse(layout)).Parse(body))
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("failed to render %s email: %w", name, err)
	}
	return buf.String(), nil
}

func OTPEmail(to, code string, ttl time.Duration) (Message, error) {
	html, err := render("otp", map[string]any{
		"Code":    code,
		"Minutes": int(ttl.Minutes()),
	})
	if err != nil {
		return Message{}, err
	}
	return Message{To: []string{to}, Subject: "Verify Your Email - OTP Code", HTML: html}, nil
}

func PasswordResetEmail(to, name, link string, ttl time.Duration) (Message, error) {
	html, err := render("reset", map[string]any{
		"Name":    name,
		"Link":    template.URL(link),
		"Minutes": int(ttl.Minutes()),
	})
	if err != nil {
		return Message{}, err
	}
	return Message{To: []string{to}, Subject: "Password Reset", HTML: html}, nil
}

type BookingStatusData struct {
	BookingID     string
	Name          string
	ServiceName   string
	Status        string
	ScheduledDate time.Time
}

func BookingStatusEmail(to string, data BookingStatusData) (Message, error) {
	html, err := render("booking_status", map[string]any{
		"BookingID":     data.BookingID,
		"Name":          data.Name,
		"ServiceName":   data.ServiceName,
		"Status":        data.Status,
		"ScheduledDate": data.ScheduledDate.Format("Mon, 02 Jan 2006 15:04"),
	})
	if err != nil {
		return Message{}, err
	}
	subject := fmt.Sprintf("Your booking for %s is %s", data.ServiceName, data.Status)
	return Message{To: []string{to}, Subject: subject, HTML: html}, nil
}

func ContactEmail(support, name, email, subject, message string) (Message, error) {
	html, err := render("contact", map[string]any{
		"Name":    name,
		"Email":   email,
		"Subject": subject,
		"Message": message,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      []string{support},
		ReplyTo: email,
		Subject: "Contact: " + strings.TrimSpace(subject),
		HTML:    html,
	}, nil
}
