package tracing

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsCustomerData(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("event_kind", "checkout_completed"),
		attribute.String("customer_ref", "cus_123"),
		attribute.String("email", "a@example.com"),
	)
	require.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("event_kind"), attrs[0].Key)
}

func TestSafeErrorFlattensChain(t *testing.T) {
	base := errors.New("boom")
	err := SafeError(fmt.Errorf("wrap: %w", base))
	assert.EqualError(t, err, "wrap: boom")
	assert.False(t, errors.Is(err, base))
	assert.Nil(t, SafeError(nil))
}

func TestDisabledProviderNeverSamples(t *testing.T) {
	provider, err := NewProvider(nil, Config{Enabled: false}, nil)
	require.NoError(t, err)
	_, span := provider.Tracer("test").Start(context.Background(), "noop")
	defer span.End()
	assert.False(t, span.SpanContext().IsSampled())
}
