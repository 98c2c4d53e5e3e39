package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/gomail.v2"
)

// Mailer sends HTML mail through one SMTP account.
type Mailer struct {
	From   string
	dialer *gomail.Dialer
}

func NewMailer(host string, port int, from, password string) *Mailer {
	return &Mailer{
		From:   from,
		dialer: gomail.NewDialer(host, port, from, password),
	}
}

func (m *Mailer) SendEmail(to, subject, body string, attachments ...string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	for _, filePath := range attachments {
		if _, err := os.Stat(filePath); err != nil {
			Logger.Warnf("Attachment not found, skipping: %s", filePath)
			continue
		}
		msg.Attach(filePath, gomail.Rename(filepath.Base(filePath)))
	}

	if err := m.dialer.DialAndSend(msg); err != nil {
		Logger.Errorf("failed to send email to %s", to)
		return fmt.Errorf("failed to send email: %v", err)
	}

	return nil
}
