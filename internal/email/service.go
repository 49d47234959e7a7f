package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

type Service interface {
	SendCustom(ctx context.Context, to string, subject string, content string) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// dialer is the part of gomail.Dialer the SMTP service uses.
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPService struct {
	from   string
	dialer dialer
}

func NewSMTPService(cfg Config) *SMTPService {
	return &SMTPService{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (s *SMTPService) SendCustom(ctx context.Context, to string, subject string, content string) error {
	if to == "" {
		return fmt.Errorf("email: empty recipient")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", content)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("email: send to %s: %w", to, err)
	}
	return nil
}
