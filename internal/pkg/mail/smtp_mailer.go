package mail

import (
	"fmt"
	"log"
	"net/smtp"

	"github.com/erpeaz/siteboard/app/models"
	"github.com/erpeaz/siteboard/internal/pkg/env"
)

// SendMail sends an HTML email via SMTP
func SendMail(to string, subject string, body string) error {
	host := env.GetEnv("SMTP_HOST", "")
	port := env.GetEnv("SMTP_PORT", "")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	sender := env.GetEnv("SMTP_SENDER", "")

	if sender == "" {
		sender = fmt.Sprintf("no-reply@%s", "localhost")
		log.Printf("SMTP_SENDER not set, using default sender: %s", sender)
	}

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	err := smtp.SendMail(addr, auth, sender, []string{to}, msg)
	if err != nil {
		log.Printf("SMTP send error: %v", err)
	} else {
		log.Printf("Email sent to %s via %s", to, addr)
	}
	return err
}

// SendNotificationMail forwards a dashboard notification to the configured
// recipient list. Mail delivery is best-effort: the notification is already
// durable in the store, so failures are logged and swallowed.
func SendNotificationMail(n models.Notification) {
	to := env.GetEnv("NOTIFY_EMAIL_TO", "")
	if to == "" {
		return
	}

	subject := fmt.Sprintf("[SiteBoard] %s", n.Title)
	body := fmt.Sprintf(
		"<h2>%s</h2><p>%s</p><p>Site: %s (%s)</p><p>Severity: %s</p>",
		n.Title, n.Message, n.SiteName, n.SiteID, n.Severity,
	)

	if err := SendMail(to, subject, body); err != nil {
		log.Printf("notification mail for site %s failed: %v", n.SiteID, err)
	}
}
