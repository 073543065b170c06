package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/smallbiznis/entitlement/internal/config"
	paymentdomain "github.com/smallbiznis/entitlement/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test"

func newAdapter() *Adapter {
	return New(config.StripeConfig{WebhookSecret: testSecret, WebhookTolerance: 5 * time.Minute})
}

func buildStripeSignatureHeader(secret string, payload []byte, timestamp int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(fmt.Sprintf("%d.%s", timestamp, payload)))
	return fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

func eventPayload(t *testing.T, id, eventType string, object map[string]any) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"created":     time.Now().Unix(),
		"api_version": "2025-03-31.basil",
		"data":        map[string]any{"object": object},
	})
	require.NoError(t, err)
	return payload
}

func TestVerifySignature(t *testing.T) {
	adapter := newAdapter()
	payload := eventPayload(t, "evt_123", "charge.succeeded", map[string]any{"id": "ch_1"})
	now := time.Now().Unix()

	verified, err := adapter.Verify(payload, buildStripeSignatureHeader(testSecret, payload, now))
	require.NoError(t, err)
	assert.Equal(t, "evt_123", verified.ID)
	assert.Equal(t, "charge.succeeded", verified.Type)
	assert.JSONEq(t, `{"id":"ch_1"}`, string(verified.Object))

	cases := map[string]struct {
		payload []byte
		header  string
	}{
		"wrong secret":   {payload, buildStripeSignatureHeader("whsec_wrong", payload, now)},
		"missing header": {payload, ""},
		"malformed":      {payload, "not-a-signature"},
		"stale":          {payload, buildStripeSignatureHeader(testSecret, payload, now-int64(time.Hour.Seconds()))},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := adapter.Verify(tc.payload, tc.header)
			require.Error(t, err)
			assert.True(t, errors.Is(err, paymentdomain.ErrInvalidSignature), "got %v", err)
		})
	}
}

func TestVerifyRejectsTamperedByte(t *testing.T) {
	adapter := newAdapter()
	payload := eventPayload(t, "evt_1", "checkout.session.completed", map[string]any{
		"id":           "cs_1",
		"amount_total": 4900,
	})
	header := buildStripeSignatureHeader(testSecret, payload, time.Now().Unix())

	for i := range payload {
		tampered := append([]byte(nil), payload...)
		tampered[i] ^= 0x01
		_, err := adapter.Verify(tampered, header)
		require.Error(t, err, "byte %d", i)
		require.True(t, errors.Is(err, paymentdomain.ErrInvalidSignature), "byte %d: %v", i, err)
	}
}

func TestVerifyWithoutSecretFails(t *testing.T) {
	adapter := New(config.StripeConfig{})
	payload := eventPayload(t, "evt_1", "charge.succeeded", map[string]any{})
	_, err := adapter.Verify(payload, buildStripeSignatureHeader("", payload, time.Now().Unix()))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)
}

func verifiedEvent(t *testing.T, id, eventType string, object map[string]any) *paymentdomain.VerifiedEvent {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	return &paymentdomain.VerifiedEvent{ID: id, Type: eventType, Object: raw}
}

func TestClassifyCheckoutCompleted(t *testing.T) {
	event, err := newAdapter().Classify(verifiedEvent(t, "evt_1", "checkout.session.completed", map[string]any{
		"id":           "cs_123",
		"object":       "checkout.session",
		"customer":     "cus_1",
		"amount_total": 4900,
		"currency":     "usd",
		"metadata": map[string]any{
			"courseId":    "C1",
			"courseTitle": "Go Concurrency",
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.KindCheckoutCompleted, event.Kind)
	require.NotNil(t, event.Checkout)
	assert.Nil(t, event.Subscription)
	assert.Equal(t, "cs_123", event.Checkout.SessionID)
	assert.Equal(t, "cus_1", event.Checkout.CustomerRef)
	assert.Equal(t, int64(4900), event.Checkout.AmountTotal)
	assert.Equal(t, "usd", event.Checkout.Currency)
	assert.Equal(t, "C1", event.Checkout.CourseRef())
	assert.Equal(t, "Go Concurrency", event.Checkout.CourseTitle())
	assert.False(t, event.Checkout.IsSubscriptionCheckout())
}

func subscriptionObject(status string, withInvoice bool) map[string]any {
	obj := map[string]any{
		"id":                   "sub_1",
		"object":               "subscription",
		"customer":             "cus_2",
		"status":               status,
		"cancel_at_period_end": true,
		"items": map[string]any{
			"object": "list",
			"data": []any{
				map[string]any{
					"id":                   "si_1",
					"object":               "subscription_item",
					"current_period_start": 1700000000,
					"current_period_end":   1702592000,
					"plan":                 map[string]any{"id": "plan_1", "object": "plan", "interval": "month"},
				},
			},
		},
	}
	if withInvoice {
		obj["latest_invoice"] = "in_1"
	}
	return obj
}

func TestClassifySubscriptionEvents(t *testing.T) {
	adapter := newAdapter()

	created, err := adapter.Classify(verifiedEvent(t, "evt_c", "customer.subscription.created", subscriptionObject("active", true)))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.KindSubscriptionUpserted, created.Kind)
	require.NotNil(t, created.Subscription)
	change := created.Subscription
	assert.True(t, change.FirstCreation)
	assert.Equal(t, "sub_1", change.SubscriptionRef)
	assert.Equal(t, "cus_2", change.CustomerRef)
	assert.Equal(t, "month", change.PlanType)
	assert.True(t, change.HasLatestInvoice)
	assert.True(t, change.HasBillingItem)
	assert.True(t, change.CancelAtPeriodEnd)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), change.CurrentPeriodStart)
	assert.Equal(t, time.Unix(1702592000, 0).UTC(), change.CurrentPeriodEnd)
	assert.True(t, change.IsEntitling())

	updated, err := adapter.Classify(verifiedEvent(t, "evt_u", "customer.subscription.updated", subscriptionObject("incomplete", false)))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.KindSubscriptionUpserted, updated.Kind)
	assert.False(t, updated.Subscription.FirstCreation)
	assert.False(t, updated.Subscription.HasLatestInvoice)
	assert.False(t, updated.Subscription.IsEntitling())

	deleted, err := adapter.Classify(verifiedEvent(t, "evt_d", "customer.subscription.deleted", subscriptionObject("canceled", true)))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.KindSubscriptionDeleted, deleted.Kind)
	assert.Equal(t, "sub_1", deleted.Subscription.SubscriptionRef)
}

func TestClassifyUnhandled(t *testing.T) {
	for _, eventType := range []string{"invoice.paid", "charge.refunded", "customer.created", ""} {
		event, err := newAdapter().Classify(&paymentdomain.VerifiedEvent{ID: "evt_x", Type: eventType, Object: json.RawMessage(`{"id":"x"}`)})
		require.NoError(t, err)
		assert.Equal(t, paymentdomain.KindUnhandled, event.Kind)
		assert.Nil(t, event.Checkout)
		assert.Nil(t, event.Subscription)
	}
}

func TestClassifyInvalidObject(t *testing.T) {
	adapter := newAdapter()
	_, err := adapter.Classify(&paymentdomain.VerifiedEvent{Type: "checkout.session.completed", Object: json.RawMessage(`[1,2]`)})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidPayload)

	_, err = adapter.Classify(&paymentdomain.VerifiedEvent{Type: "customer.subscription.deleted"})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidPayload)

	_, err = adapter.Classify(nil)
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidPayload)
}
