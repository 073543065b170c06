package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Kind is the closed set of processor event kinds this service reacts to.
type Kind int

const (
	KindUnhandled Kind = iota
	KindCheckoutCompleted
	KindSubscriptionUpserted
	KindSubscriptionDeleted
)

func (k Kind) String() string {
	switch k {
	case KindUnhandled:
		return "unhandled"
	case KindCheckoutCompleted:
		return "checkout_completed"
	case KindSubscriptionUpserted:
		return "subscription_upserted"
	case KindSubscriptionDeleted:
		return "subscription_deleted"
	default:
		return "unknown"
	}
}

// Processor event type strings.
const (
	EventCheckoutSessionCompleted    = "checkout.session.completed"
	EventCustomerSubscriptionCreated = "customer.subscription.created"
	EventCustomerSubscriptionUpdated = "customer.subscription.updated"
	EventCustomerSubscriptionDeleted = "customer.subscription.deleted"
)

// Checkout session metadata keys.
const (
	MetadataCourseID       = "courseId"
	MetadataCourseTitle    = "courseTitle"
	MetadataCourseImageURL = "courseImageUrl"
	MetadataUserID         = "userId"
	MetadataPlanID         = "planId"
)

// VerifiedEvent is an envelope whose signature has been checked. Object holds
// the raw data.object of the event.
type VerifiedEvent struct {
	ID      string
	Type    string
	Created time.Time
	Object  json.RawMessage
}

// Event is a classified VerifiedEvent. Exactly one of Checkout and
// Subscription is set for the handled kinds.
type Event struct {
	ID      string
	Type    string
	Kind    Kind
	Created time.Time

	Checkout     *CheckoutCompleted
	Subscription *SubscriptionChange
}

// CheckoutCompleted is a completed checkout session.
type CheckoutCompleted struct {
	SessionID   string
	CustomerRef string
	AmountTotal int64
	Currency    string
	Metadata    map[string]string
}

// IsSubscriptionCheckout reports whether the session carries the user and
// plan markers that route it to the subscription flow. Such sessions are
// completed by the subscription events that follow them.
func (c CheckoutCompleted) IsSubscriptionCheckout() bool {
	return c.metadata(MetadataUserID) != "" && c.metadata(MetadataPlanID) != ""
}

func (c CheckoutCompleted) CourseRef() string {
	return c.metadata(MetadataCourseID)
}

func (c CheckoutCompleted) CourseTitle() string {
	return c.metadata(MetadataCourseTitle)
}

func (c CheckoutCompleted) CourseImageURL() string {
	return c.metadata(MetadataCourseImageURL)
}

func (c CheckoutCompleted) metadata(key string) string {
	if c.Metadata == nil {
		return ""
	}
	return strings.TrimSpace(c.Metadata[key])
}

// SubscriptionChange is a subscription object carried by a created, updated
// or deleted event.
type SubscriptionChange struct {
	SubscriptionRef    string
	CustomerRef        string
	Status             string
	HasLatestInvoice   bool
	HasBillingItem     bool
	PlanType           string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
	// FirstCreation is set for the created variant only.
	FirstCreation bool
}

// StatusActive is the processor status that grants an entitlement.
const StatusActive = "active"

// IsEntitling reports whether the change can be applied as an active grant.
// Incomplete, trialing-without-invoice and item-less subscriptions are not.
func (s SubscriptionChange) IsEntitling() bool {
	return s.Status == StatusActive && s.HasLatestInvoice && s.HasBillingItem
}

// Outcome is the acknowledged result of one webhook delivery.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeFailed    Outcome = "failed"
)
