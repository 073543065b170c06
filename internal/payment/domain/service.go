package domain

import (
	"context"
	"net/http"
)

// Service ingests raw processor webhooks. A nil error means the delivery must
// be acknowledged; a non-nil error means the sender should retry.
type Service interface {
	IngestWebhook(ctx context.Context, payload []byte, headers http.Header) (Outcome, error)
}

// Verifier authenticates a raw delivery. It never mutates state.
type Verifier interface {
	Verify(payload []byte, signatureHeader string) (*VerifiedEvent, error)
}

// Classifier maps a verified envelope onto a Kind and decodes its object.
type Classifier interface {
	Classify(event *VerifiedEvent) (*Event, error)
}

// Adapter is implemented by processor integrations.
type Adapter interface {
	Verifier
	Classifier
	SignatureHeader() string
}
