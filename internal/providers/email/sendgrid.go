package email

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type SendgridConfig struct {
	APIKey      string
	FromEmail   string
	FromName    string
	SandboxMode bool
}

type sendgridClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type SendgridProvider struct {
	cfg    SendgridConfig
	client sendgridClient
}

func NewSendgrid(cfg SendgridConfig) *SendgridProvider {
	return &SendgridProvider{cfg: cfg, client: sendgrid.NewSendClient(cfg.APIKey)}
}

func (p *SendgridProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	if len(to) == 0 {
		return ErrNoRecipients
	}

	from := mail.NewEmail(p.cfg.FromName, p.cfg.FromEmail)
	msg := mail.NewSingleEmail(from, subject, mail.NewEmail("", to[0]), "", htmlBody)
	if len(to) > 1 {
		for _, addr := range to[1:] {
			msg.Personalizations[0].AddTos(mail.NewEmail("", addr))
		}
	}
	if p.cfg.SandboxMode {
		ms := mail.NewMailSettings()
		ms.SetSandboxMode(mail.NewSetting(true))
		msg.SetMailSettings(ms)
	}

	resp, err := p.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp != nil && resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func (p *SendgridProvider) SendTemplate(ctx context.Context, to []string, templateName string, data interface{}) error {
	body, err := Render(templateName, data)
	if err != nil {
		return err
	}
	return p.Send(ctx, to, subjectFor(templateName, data), body)
}
