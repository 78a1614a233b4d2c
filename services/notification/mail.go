package notification

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

// SMTPMailService implements MailService over a shared SMTP dialer.
type SMTPMailService struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailService(host string, port int, username, password, from string) *SMTPMailService {
	return &SMTPMailService{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (s *SMTPMailService) SendMail(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}
