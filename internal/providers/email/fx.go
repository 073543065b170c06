package email

import (
	"strings"

	"github.com/smallbiznis/entitlement/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
)

// NewFromConfig selects the delivery backend. Config validation already
// guarantees the credentials of the chosen backend.
func NewFromConfig(cfg config.Config) Provider {
	n := cfg.Notification
	switch strings.ToLower(strings.TrimSpace(n.Provider)) {
	case "sendgrid":
		return NewSendgrid(SendgridConfig{
			APIKey:      n.SendgridAPIKey,
			FromEmail:   n.FromEmail,
			FromName:    n.FromName,
			SandboxMode: n.SandboxMode,
		})
	case "smtp":
		return NewSMTP(Config{
			Host:     n.SMTPHost,
			Port:     n.SMTPPort,
			Username: n.SMTPUsername,
			Password: n.SMTPPassword,
			From:     n.FromEmail,
			FromName: n.FromName,
		})
	default:
		return &NoOpProvider{}
	}
}
