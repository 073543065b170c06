package stripe

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/entitlement/internal/config"
	paymentdomain "github.com/smallbiznis/entitlement/internal/payment/domain"
	stripego "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const (
	SignatureHeader  = "Stripe-Signature"
	DefaultTolerance = 300 * time.Second
)

type Adapter struct {
	webhookSecret string
	tolerance     time.Duration
}

func New(cfg config.StripeConfig) *Adapter {
	tolerance := cfg.WebhookTolerance
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Adapter{
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		tolerance:     tolerance,
	}
}

// Provide exposes the adapter behind the payment domain interface.
func Provide(cfg config.Config) paymentdomain.Adapter {
	return New(cfg.Stripe)
}

func (a *Adapter) SignatureHeader() string {
	return SignatureHeader
}

// Verify checks the timestamped HMAC signature over the exact raw bytes.
// API version mismatches are accepted since only a few stable fields are read.
func (a *Adapter) Verify(payload []byte, signatureHeader string) (*paymentdomain.VerifiedEvent, error) {
	signatureHeader = strings.TrimSpace(signatureHeader)
	if signatureHeader == "" || a.webhookSecret == "" {
		return nil, paymentdomain.ErrInvalidSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, a.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                a.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureErr(err) {
			return nil, fmt.Errorf("%w: %v", paymentdomain.ErrInvalidSignature, err)
		}
		// Signed but not a well-formed event envelope.
		return nil, fmt.Errorf("%w: %v", paymentdomain.ErrInvalidPayload, err)
	}

	verified := &paymentdomain.VerifiedEvent{
		ID:   event.ID,
		Type: string(event.Type),
	}
	if event.Created > 0 {
		verified.Created = time.Unix(event.Created, 0).UTC()
	}
	if event.Data != nil {
		verified.Object = event.Data.Raw
	}
	return verified, nil
}

func isSignatureErr(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

// Classify maps the event type onto a domain Kind and decodes the typed
// object for handled kinds. Unknown types are KindUnhandled, never an error.
func (a *Adapter) Classify(event *paymentdomain.VerifiedEvent) (*paymentdomain.Event, error) {
	if event == nil {
		return nil, paymentdomain.ErrInvalidPayload
	}

	out := &paymentdomain.Event{
		ID:      event.ID,
		Type:    event.Type,
		Created: event.Created,
		Kind:    kindOf(event.Type),
	}

	switch out.Kind {
	case paymentdomain.KindCheckoutCompleted:
		checkout, err := decodeCheckout(event.Object)
		if err != nil {
			return nil, err
		}
		out.Checkout = checkout
	case paymentdomain.KindSubscriptionUpserted, paymentdomain.KindSubscriptionDeleted:
		change, err := decodeSubscription(event.Object)
		if err != nil {
			return nil, err
		}
		change.FirstCreation = event.Type == paymentdomain.EventCustomerSubscriptionCreated
		out.Subscription = change
	case paymentdomain.KindUnhandled:
	}
	return out, nil
}

func kindOf(eventType string) paymentdomain.Kind {
	switch strings.TrimSpace(eventType) {
	case paymentdomain.EventCheckoutSessionCompleted:
		return paymentdomain.KindCheckoutCompleted
	case paymentdomain.EventCustomerSubscriptionCreated, paymentdomain.EventCustomerSubscriptionUpdated:
		return paymentdomain.KindSubscriptionUpserted
	case paymentdomain.EventCustomerSubscriptionDeleted:
		return paymentdomain.KindSubscriptionDeleted
	default:
		return paymentdomain.KindUnhandled
	}
}

func decodeCheckout(raw json.RawMessage) (*paymentdomain.CheckoutCompleted, error) {
	if len(raw) == 0 {
		return nil, paymentdomain.ErrInvalidPayload
	}
	var session stripego.CheckoutSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("%w: checkout session: %v", paymentdomain.ErrInvalidPayload, err)
	}
	if strings.TrimSpace(session.ID) == "" {
		return nil, fmt.Errorf("%w: checkout session without id", paymentdomain.ErrInvalidPayload)
	}

	checkout := &paymentdomain.CheckoutCompleted{
		SessionID:   session.ID,
		AmountTotal: session.AmountTotal,
		Currency:    string(session.Currency),
		Metadata:    session.Metadata,
	}
	if session.Customer != nil {
		checkout.CustomerRef = strings.TrimSpace(session.Customer.ID)
	}
	return checkout, nil
}

func decodeSubscription(raw json.RawMessage) (*paymentdomain.SubscriptionChange, error) {
	if len(raw) == 0 {
		return nil, paymentdomain.ErrInvalidPayload
	}
	var sub stripego.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("%w: subscription: %v", paymentdomain.ErrInvalidPayload, err)
	}
	if strings.TrimSpace(sub.ID) == "" {
		return nil, fmt.Errorf("%w: subscription without id", paymentdomain.ErrInvalidPayload)
	}

	change := &paymentdomain.SubscriptionChange{
		SubscriptionRef:   sub.ID,
		Status:            string(sub.Status),
		HasLatestInvoice:  sub.LatestInvoice != nil && strings.TrimSpace(sub.LatestInvoice.ID) != "",
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		change.CustomerRef = strings.TrimSpace(sub.Customer.ID)
	}

	// The first item carries the plan and its billing period.
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0] != nil {
		item := sub.Items.Data[0]
		change.PlanType = planInterval(item)
		change.HasBillingItem = change.PlanType != ""
		if item.CurrentPeriodStart > 0 {
			change.CurrentPeriodStart = time.Unix(item.CurrentPeriodStart, 0).UTC()
		}
		if item.CurrentPeriodEnd > 0 {
			change.CurrentPeriodEnd = time.Unix(item.CurrentPeriodEnd, 0).UTC()
		}
	}
	return change, nil
}

func planInterval(item *stripego.SubscriptionItem) string {
	if item.Plan != nil && item.Plan.Interval != "" {
		return string(item.Plan.Interval)
	}
	if item.Price != nil && item.Price.Recurring != nil {
		return string(item.Price.Recurring.Interval)
	}
	return ""
}

var _ paymentdomain.Adapter = (*Adapter)(nil)
