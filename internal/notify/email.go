package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"repairhub/internal/config"
	"repairhub/internal/models"

	"github.com/rs/zerolog"
)

// SMTPSender delivers client messages over plain SMTP with optional auth.
type SMTPSender struct {
	host     string
	port     int
	from     string
	auth     smtp.Auth
	logger   *zerolog.Logger
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg config.SMTPConfig, logger *zerolog.Logger) *SMTPSender {
	s := &SMTPSender{
		host:     cfg.Host,
		port:     cfg.Port,
		from:     cfg.From,
		logger:   logger,
		sendMail: smtp.SendMail,
	}
	if cfg.User != "" {
		s.auth = smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Host)
	}
	return s
}

func (s *SMTPSender) Send(ctx context.Context, msg *models.ClientMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.Recipient == "" {
		return fmt.Errorf("message %s has no recipient", msg.BookingID)
	}

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	if err := s.sendMail(addr, s.auth, s.from, []string{msg.Recipient}, renderEmail(s.from, msg)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", msg.Recipient, err)
	}

	s.logger.Debug().Str("booking_id", msg.BookingID).Str("template", msg.TemplateKey).Msg("email sent")
	return nil
}

func renderEmail(from string, msg *models.ClientMessage) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.Recipient)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(msg.Body)
	if d := msg.ServiceDetails; d != nil {
		fmt.Fprintf(&b, "\r\n\r\nService: %s\r\nEquipment: %s\r\nDate: %s\r\n", d.ServiceName, d.EquipmentType, d.PreferredDate)
	}
	return []byte(b.String())
}
