// Package mail delivers low-stock alerts by e-mail.
package mail

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"text/template"

	"gopkg.in/gomail.v2"

	"tradeledger/internal/domain/lowstock"
)

// Config holds SMTP relay settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

var (
	subjectTmpl = template.Must(template.New("subject").Parse(
		`Low Stock Alert: {{.Alert.ProductName}} - {{.Alert.StoreName}}`))

	textTmpl = template.Must(template.New("text").Parse(`Hello {{.Email}},

{{.Alert.ProductName}} is running low at {{.Alert.StoreName}}.

Current quantity: {{.Alert.CurrentQuantity}}
Threshold:        {{.Alert.Threshold}}

Please restock soon.
`))

	htmlTmpl = htmltemplate.Must(htmltemplate.New("html").Parse(`<!DOCTYPE html>
<html lang="en">
<body>
<p>Hello {{.Email}},</p>
<p><strong>{{.Alert.ProductName}}</strong> is running low at <strong>{{.Alert.StoreName}}</strong>.</p>
<table>
<tr><td>Current quantity</td><td>{{.Alert.CurrentQuantity}}</td></tr>
<tr><td>Threshold</td><td>{{.Alert.Threshold}}</td></tr>
</table>
<p>Please restock soon.</p>
</body>
</html>
`))
)

type view struct {
	Email string
	Alert lowstock.Alert
}

// Sender implements lowstock.Sender over SMTP.
type Sender struct {
	from   string
	dialer dialer
}

var _ lowstock.Sender = (*Sender)(nil)

// NewSender creates an SMTP sender. A new connection is opened per message.
func NewSender(cfg Config) *Sender {
	return &Sender{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// Send renders the alert and mails it to one recipient.
func (s *Sender) Send(ctx context.Context, to lowstock.Recipient, alert lowstock.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m, err := s.compose(to, alert)
	if err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail to %s: %w", to.Email, err)
	}
	return nil
}

func (s *Sender) compose(to lowstock.Recipient, alert lowstock.Alert) (*gomail.Message, error) {
	v := view{Email: to.Email, Alert: alert}

	var subject, text, html bytes.Buffer
	if err := subjectTmpl.Execute(&subject, v); err != nil {
		return nil, fmt.Errorf("render subject: %w", err)
	}
	if err := textTmpl.Execute(&text, v); err != nil {
		return nil, fmt.Errorf("render text body: %w", err)
	}
	if err := htmlTmpl.Execute(&html, v); err != nil {
		return nil, fmt.Errorf("render html body: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to.Email)
	m.SetHeader("Subject", subject.String())
	m.SetBody("text/plain", text.String())
	m.AddAlternative("text/html", html.String())
	return m, nil
}
