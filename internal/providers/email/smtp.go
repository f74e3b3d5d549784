package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPProvider struct {
	cfg       Config
	templates *template.Template
}

func NewSMTP(cfg Config) (*SMTPProvider, error) {
	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	return &SMTPProvider{cfg: cfg, templates: templates}, nil
}

func (p *SMTPProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", p.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	addr := fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)

	// Unauthenticated relays (local dev, mailcatcher) skip AUTH.
	var auth smtp.Auth
	if p.cfg.Username != "" {
		auth = smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)
	}
	return smtp.SendMail(addr, auth, p.cfg.From, to, msg.Bytes())
}

func (p *SMTPProvider) SendTemplate(ctx context.Context, to []string, templateName string, subject string, data any) error {
	var body bytes.Buffer
	if err := p.templates.ExecuteTemplate(&body, templateName+".html", data); err != nil {
		return fmt.Errorf("render email template %s: %w", templateName, err)
	}
	return p.Send(ctx, to, subject, body.String())
}
