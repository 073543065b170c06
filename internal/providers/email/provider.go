package email

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"sync"
)

type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
	SendTemplate(ctx context.Context, to []string, templateName string, data interface{}) error
}

// Message is implemented by template data that carries its own subject.
type Message interface {
	Subject() string
}

var ErrNoRecipients = errors.New("no_recipients")

type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return nil
}

func (p *NoOpProvider) SendTemplate(ctx context.Context, to []string, templateName string, data interface{}) error {
	return nil
}

//go:embed templates/*.html
var templateFS embed.FS

var (
	parseOnce sync.Once
	parsed    *template.Template
	parseErr  error
)

// Render executes the embedded template templateName with data.
func Render(templateName string, data interface{}) (string, error) {
	parseOnce.Do(func() {
		parsed, parseErr = template.ParseFS(templateFS, "templates/*.html")
	})
	if parseErr != nil {
		return "", fmt.Errorf("parse templates: %w", parseErr)
	}

	var body bytes.Buffer
	if err := parsed.ExecuteTemplate(&body, strings.TrimSpace(templateName)+".html", data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", templateName, err)
	}
	return body.String(), nil
}

func subjectFor(templateName string, data interface{}) string {
	if msg, ok := data.(Message); ok {
		if subject := strings.TrimSpace(msg.Subject()); subject != "" {
			return subject
		}
	}
	if dataMap, ok := data.(map[string]interface{}); ok {
		if subject, ok := dataMap["subject"].(string); ok && subject != "" {
			return subject
		}
	}
	return "Notification from MasterClass"
}
