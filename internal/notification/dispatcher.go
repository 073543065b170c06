package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/smallbiznis/entitlement/internal/config"
	coursedomain "github.com/smallbiznis/entitlement/internal/course/domain"
	"github.com/smallbiznis/entitlement/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/entitlement/internal/payment/domain"
	"github.com/smallbiznis/entitlement/internal/providers/email"
	purchasedomain "github.com/smallbiznis/entitlement/internal/purchase/domain"
	subscriptiondomain "github.com/smallbiznis/entitlement/internal/subscription/domain"
	userdomain "github.com/smallbiznis/entitlement/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	resultSent     = "sent"
	resultSkipped  = "skipped"
	resultDisabled = "disabled"
	resultFailed   = "failed"

	periodLayout = "January 2, 2006"
)

var errNoRecipient = errors.New("user_has_no_email")

type Params struct {
	fx.In

	Config    config.Config
	Templates *config.NotificationConfigHolder `optional:"true"`
	Provider  email.Provider
	DB        *gorm.DB
	Courses   coursedomain.Repository
	Metrics   *metrics.Metrics `optional:"true"`
	Log       *zap.Logger
}

// Dispatcher sends confirmation notices after reconciliation. Delivery
// failures are logged and counted, never returned.
type Dispatcher struct {
	cfg       config.Config
	templates *config.NotificationConfigHolder
	provider  email.Provider
	db        *gorm.DB
	courses   coursedomain.Repository
	metrics   *metrics.Metrics
	log       *zap.Logger

	wg sync.WaitGroup
}

func New(p Params) *Dispatcher {
	m := p.Metrics
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Dispatcher{
		cfg:       p.Config,
		templates: p.Templates,
		provider:  p.Provider,
		db:        p.DB,
		courses:   p.Courses,
		metrics:   m,
		log:       p.Log.Named("notification"),
	}
}

type purchaseConfirmation struct {
	subject        string
	CustomerName   string
	CourseTitle    string
	CourseImageURL string
	PurchaseAmount string
	CourseURL      string
}

func (p purchaseConfirmation) Subject() string { return p.subject }

type proPlanActivated struct {
	subject            string
	Name               string
	PlanType           string
	CurrentPeriodStart string
	CurrentPeriodEnd   string
	URL                string
}

func (p proPlanActivated) Subject() string { return p.subject }

// PurchaseConfirmed notifies the buyer of a newly recorded purchase. The
// course title and image come from checkout metadata, falling back to the
// course catalog.
func (d *Dispatcher) PurchaseConfirmed(ctx context.Context, user *userdomain.User, purchase *purchasedomain.Purchase, checkout paymentdomain.CheckoutCompleted) {
	const name = config.TemplatePurchaseConfirmation
	settings, ok := d.gate(ctx, name)
	if !ok || user == nil || purchase == nil {
		return
	}

	d.dispatch(ctx, name, func(ctx context.Context) error {
		title, image := checkout.CourseTitle(), checkout.CourseImageURL()
		if title == "" || image == "" {
			course, err := d.courses.FindByID(ctx, d.db, purchase.CourseID)
			if err != nil {
				return fmt.Errorf("load course %s: %w", purchase.CourseID, err)
			}
			if course != nil {
				if title == "" {
					title = course.Title
				}
				if image == "" {
					image = course.ImageURL
				}
			}
		}
		if title == "" {
			d.log.Debug("purchase notice skipped, course title unknown", zap.String("course_id", purchase.CourseID))
			d.metrics.RecordNotification(ctx, name, resultSkipped)
			return nil
		}

		return d.send(ctx, name, user, purchaseConfirmation{
			subject:        settings.Subject,
			CustomerName:   user.Name,
			CourseTitle:    title,
			CourseImageURL: image,
			PurchaseAmount: FormatAmount(purchase.Amount, purchase.Currency),
			CourseURL:      fmt.Sprintf("%s/courses/%s", d.cfg.AppURL, purchase.CourseID),
		})
	})
}

// SubscriptionActivated welcomes a user to the Pro plan.
func (d *Dispatcher) SubscriptionActivated(ctx context.Context, user *userdomain.User, sub *subscriptiondomain.Subscription) {
	const name = config.TemplateProPlanActivated
	settings, ok := d.gate(ctx, name)
	if !ok || user == nil || sub == nil {
		return
	}

	d.dispatch(ctx, name, func(ctx context.Context) error {
		return d.send(ctx, name, user, proPlanActivated{
			subject:            settings.Subject,
			Name:               user.Name,
			PlanType:           string(sub.PlanType),
			CurrentPeriodStart: formatPeriod(sub.CurrentPeriodStart),
			CurrentPeriodEnd:   formatPeriod(sub.CurrentPeriodEnd),
			URL:                d.cfg.AppURL,
		})
	})
}

// Wait blocks until in-flight asynchronous notices have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) gate(ctx context.Context, name string) (config.TemplateSettings, bool) {
	if !d.cfg.NotificationsEnabled() {
		return config.TemplateSettings{}, false
	}
	settings, ok := d.templates.Get().Lookup(name)
	if !ok || settings.Disabled {
		d.metrics.RecordNotification(ctx, name, resultDisabled)
		return config.TemplateSettings{}, false
	}
	return settings, true
}

func (d *Dispatcher) dispatch(ctx context.Context, name string, fn func(context.Context) error) {
	run := func(ctx context.Context) {
		if err := fn(ctx); err != nil {
			nerr := &paymentdomain.NotificationError{Template: name, Err: err}
			d.log.Warn("notification failed", zap.String("template", name), zap.Error(nerr))
			d.metrics.RecordNotification(ctx, name, resultFailed)
		}
	}

	if !d.cfg.Notification.Async {
		run(ctx)
		return
	}

	// the request context ends with the response
	detached := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		run(detached)
	}()
}

func (d *Dispatcher) send(ctx context.Context, name string, user *userdomain.User, data email.Message) error {
	to := strings.TrimSpace(user.Email)
	if to == "" {
		return errNoRecipient
	}
	if err := d.provider.SendTemplate(ctx, []string{to}, name, data); err != nil {
		return err
	}
	d.metrics.RecordNotification(ctx, name, resultSent)
	d.log.Info("notification sent", zap.String("template", name), zap.String("user_id", user.ID.String()))
	return nil
}

// FormatAmount renders minor units as a decimal amount with two places.
func FormatAmount(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	value := fmt.Sprintf("%d.%02d", minor/100, minor%100)
	switch strings.ToLower(strings.TrimSpace(currency)) {
	case "", "usd":
		return sign + "$" + value
	default:
		return sign + value + " " + strings.ToUpper(currency)
	}
}

func formatPeriod(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(periodLayout)
}
