package email

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender delivers lead messages over SMTP via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

// SendLeadMessage sends an HTML body with the plain text as alternative.
func (s *SMTPSender) SendLeadMessage(ctx context.Context, lm LeadMessage) error {
	subject := strings.TrimSpace(lm.Subject)
	if subject == "" {
		subject = fmt.Sprintf(subjectLeadMessageFmt, s.fromName)
	}
	msg, err := s.buildMessage(lm, subject)
	if err != nil {
		return err
	}
	return s.send(ctx, msg)
}

func (s *SMTPSender) buildMessage(lm LeadMessage, subject string) (*gomail.Msg, error) {
	content, err := renderEmailTemplate("lead_message.html", leadMessageEmailData{
		baseEmailData: baseEmailData{Title: subject},
		LeadName:      lm.LeadName,
		Paragraphs:    paragraphs(lm.Body),
		Sender:        s.fromName,
	})
	if err != nil {
		return nil, err
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return nil, fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.AddToFormat(lm.LeadName, lm.ToEmail); err != nil {
		return nil, fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, content)
	msg.AddAlternativeString(gomail.TypeTextPlain, lm.Body)
	return msg, nil
}

func (s *SMTPSender) send(ctx context.Context, msg *gomail.Msg) error {
	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
