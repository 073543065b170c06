package email

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/smallbiznis/entitlement/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type purchaseData struct {
	CustomerName   string
	CourseTitle    string
	CourseImageURL string
	PurchaseAmount string
	CourseURL      string
}

func (purchaseData) Subject() string { return "Hello" }

func TestRenderEmbeddedTemplates(t *testing.T) {
	body, err := Render("purchase_confirmation", map[string]interface{}{
		"CustomerName":   "Ada",
		"CourseTitle":    "Go <Fundamentals>",
		"CourseImageURL": "https://img.example.com/go.png",
		"CourseURL":      "http://localhost:3000/courses/C1",
		"PurchaseAmount": "$49.00",
	})
	require.NoError(t, err)
	assert.Contains(t, body, "Hi Ada")
	assert.Contains(t, body, "Go &lt;Fundamentals&gt;")
	assert.Contains(t, body, "$49.00")
	assert.Contains(t, body, "http://localhost:3000/courses/C1")

	body, err = Render("pro_plan_activated", map[string]interface{}{"Name": "Ada", "PlanType": "month", "URL": "http://x"})
	require.NoError(t, err)
	assert.Contains(t, body, "monthly")

	_, err = Render("missing_template", nil)
	assert.Error(t, err)
}

func TestSubjectFor(t *testing.T) {
	assert.Equal(t, "Hello", subjectFor("x", purchaseData{}))
	assert.Equal(t, "Custom", subjectFor("x", map[string]interface{}{"subject": "Custom"}))
	assert.Equal(t, "Notification from MasterClass", subjectFor("x", nil))
}

func TestSMTPProviderBuildsMessage(t *testing.T) {
	p := NewSMTP(Config{Host: "smtp.example.com", Port: 2525, From: "noreply@example.com", FromName: "MasterClass"})
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	p.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	err := p.SendTemplate(context.Background(), []string{"a@example.com", "b@example.com"}, "pro_plan_activated", map[string]interface{}{
		"subject": "Welcome to MasterClass Pro!",
		"Name":    "Ada",
	})
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com:2525", gotAddr)
	assert.Equal(t, "noreply@example.com", gotFrom)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, gotTo)
	msg := string(gotMsg)
	assert.Contains(t, msg, "Subject: Welcome to MasterClass Pro!\r\n")
	assert.Contains(t, msg, "To: a@example.com, b@example.com\r\n")
	assert.True(t, strings.Contains(msg, `From: "MasterClass" <noreply@example.com>`))

	assert.ErrorIs(t, p.Send(context.Background(), nil, "s", "b"), ErrNoRecipients)
}

type fakeSendgrid struct {
	sent   *mail.SGMailV3
	status int
	err    error
}

func (f *fakeSendgrid) SendWithContext(_ context.Context, msg *mail.SGMailV3) (*rest.Response, error) {
	f.sent = msg
	if f.err != nil {
		return nil, f.err
	}
	return &rest.Response{StatusCode: f.status, Body: "body"}, nil
}

func TestSendgridProvider(t *testing.T) {
	fake := &fakeSendgrid{status: 202}
	p := &SendgridProvider{cfg: SendgridConfig{FromEmail: "noreply@example.com", FromName: "MasterClass", SandboxMode: true}, client: fake}

	require.NoError(t, p.SendTemplate(context.Background(), []string{"a@example.com"}, "purchase_confirmation", purchaseData{CourseTitle: "Go"}))
	require.NotNil(t, fake.sent)
	assert.Equal(t, "Hello", fake.sent.Subject)
	assert.Equal(t, "noreply@example.com", fake.sent.From.Address)
	require.NotNil(t, fake.sent.MailSettings)
	require.NotNil(t, fake.sent.MailSettings.SandboxMode)
	assert.True(t, *fake.sent.MailSettings.SandboxMode.Enable)

	fake.status = 401
	assert.Error(t, p.Send(context.Background(), []string{"a@example.com"}, "s", "<p>b</p>"))

	fake.err = errors.New("network")
	assert.Error(t, p.Send(context.Background(), []string{"a@example.com"}, "s", "<p>b</p>"))
}

func TestNewFromConfigSelectsProvider(t *testing.T) {
	cfg := config.Config{}
	cfg.Notification.Provider = "sendgrid"
	cfg.Notification.SendgridAPIKey = "SG.test"
	assert.IsType(t, &SendgridProvider{}, NewFromConfig(cfg))

	cfg.Notification.Provider = "smtp"
	assert.IsType(t, &SMTPProvider{}, NewFromConfig(cfg))

	cfg.Notification.Provider = "noop"
	assert.IsType(t, &NoOpProvider{}, NewFromConfig(cfg))
}
