package webhook

import (
	"context"
	"fmt"
	"net/http"
	"time"

	obscontext "github.com/smallbiznis/entitlement/internal/observability/context"
	"github.com/smallbiznis/entitlement/internal/observability/logger"
	"github.com/smallbiznis/entitlement/internal/observability/metrics"
	"github.com/smallbiznis/entitlement/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/entitlement/internal/payment/domain"
	"github.com/smallbiznis/entitlement/internal/payment/reconcile"
	purchasedomain "github.com/smallbiznis/entitlement/internal/purchase/domain"
	subscriptiondomain "github.com/smallbiznis/entitlement/internal/subscription/domain"
	userdomain "github.com/smallbiznis/entitlement/internal/user/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	tracerName     = "github.com/smallbiznis/entitlement/internal/payment/webhook"
	kindUnverified = "unverified"
)

// Notifier sends confirmation notices after a successful reconciliation.
type Notifier interface {
	PurchaseConfirmed(ctx context.Context, user *userdomain.User, purchase *purchasedomain.Purchase, checkout paymentdomain.CheckoutCompleted)
	SubscriptionActivated(ctx context.Context, user *userdomain.User, sub *subscriptiondomain.Subscription)
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Adapter  paymentdomain.Adapter
	Engine   *reconcile.Engine
	Notifier Notifier         `optional:"true"`
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	adapter  paymentdomain.Adapter
	engine   *reconcile.Engine
	notifier Notifier
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

func NewService(p Params) paymentdomain.Service {
	m := p.Metrics
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Service{
		log:      p.Log.Named("payment.webhook"),
		adapter:  p.Adapter,
		engine:   p.Engine,
		notifier: p.Notifier,
		metrics:  m,
		tracer:   otel.Tracer(tracerName),
	}
}

// IngestWebhook verifies, classifies and reconciles one delivery. Subscription
// failures are contained and acknowledged; purchase failures are returned so
// the processor retries.
func (s *Service) IngestWebhook(ctx context.Context, payload []byte, headers http.Header) (paymentdomain.Outcome, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "payment.webhook.ingest")
	defer span.End()

	verified, err := s.verify(ctx, payload, headers)
	if err != nil {
		s.finish(ctx, span, kindUnverified, paymentdomain.OutcomeFailed, err, start)
		logger.WithContext(ctx, s.log).Warn("webhook rejected", zap.String("code", paymentdomain.ErrorCode(err)), zap.Error(err))
		return paymentdomain.OutcomeFailed, err
	}

	ctx = obscontext.WithEvent(ctx, verified.ID, verified.Type)
	log := logger.WithContext(ctx, s.log)

	event, err := s.adapter.Classify(verified)
	if err != nil {
		s.finish(ctx, span, kindUnverified, paymentdomain.OutcomeFailed, err, start)
		log.Warn("webhook not classifiable", zap.Error(err))
		return paymentdomain.OutcomeFailed, err
	}
	span.SetAttributes(tracing.SafeAttributes(
		attribute.String("event.id", event.ID),
		attribute.String("event.type", event.Type),
		attribute.String("event.kind", event.Kind.String()),
	)...)

	outcome, err := s.reconcile(ctx, log, event)
	s.finish(ctx, span, event.Kind.String(), outcome, err, start)
	return outcome, err
}

func (s *Service) verify(ctx context.Context, payload []byte, headers http.Header) (*paymentdomain.VerifiedEvent, error) {
	_, span := s.tracer.Start(ctx, "payment.webhook.verify")
	defer span.End()

	verified, err := s.adapter.Verify(payload, headers.Get(s.adapter.SignatureHeader()))
	if err != nil {
		span.SetStatus(codes.Error, paymentdomain.ErrorCode(err))
		return nil, err
	}
	return verified, nil
}

func (s *Service) reconcile(ctx context.Context, log *zap.Logger, event *paymentdomain.Event) (paymentdomain.Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "payment.webhook.reconcile")
	defer span.End()

	switch event.Kind {
	case paymentdomain.KindCheckoutCompleted:
		if event.Checkout == nil {
			return paymentdomain.OutcomeFailed, paymentdomain.ErrInvalidPayload
		}
		res := s.engine.RecordPurchase(ctx, *event.Checkout)
		if res.Failed() {
			s.metrics.RecordReconciliationFailure(ctx, event.Kind.String(), paymentdomain.ErrorCode(res.Err), true)
			log.Error("purchase reconciliation failed", zap.String("code", paymentdomain.ErrorCode(res.Err)), zap.Error(res.Err))
			return res.Outcome, res.Err
		}
		log.Info("checkout reconciled", zap.String("outcome", string(res.Outcome)))
		if res.Outcome == paymentdomain.OutcomeApplied && s.notifier != nil {
			s.notifier.PurchaseConfirmed(ctx, res.User, res.Purchase, *event.Checkout)
		}
		return res.Outcome, nil

	case paymentdomain.KindSubscriptionUpserted:
		if event.Subscription == nil {
			return paymentdomain.OutcomeFailed, paymentdomain.ErrInvalidPayload
		}
		res := s.engine.UpsertSubscription(ctx, *event.Subscription)
		if s.contained(ctx, log, event, res) {
			return res.Outcome, nil
		}
		log.Info("subscription reconciled", zap.String("outcome", string(res.Outcome)))
		if res.FirstActivation && s.notifier != nil {
			s.notifier.SubscriptionActivated(ctx, res.User, res.Subscription)
		}
		return res.Outcome, nil

	case paymentdomain.KindSubscriptionDeleted:
		if event.Subscription == nil {
			return paymentdomain.OutcomeFailed, paymentdomain.ErrInvalidPayload
		}
		res := s.engine.DeleteSubscription(ctx, *event.Subscription)
		if s.contained(ctx, log, event, res) {
			return res.Outcome, nil
		}
		log.Info("subscription cancellation reconciled", zap.String("outcome", string(res.Outcome)))
		return res.Outcome, nil

	case paymentdomain.KindUnhandled:
		log.Debug("event type not handled")
		return paymentdomain.OutcomeIgnored, nil

	default:
		return paymentdomain.OutcomeFailed, fmt.Errorf("%w: %d", paymentdomain.ErrUnknownKind, event.Kind)
	}
}

// contained logs and counts a subscription failure. The delivery is still
// acknowledged.
func (s *Service) contained(ctx context.Context, log *zap.Logger, event *paymentdomain.Event, res reconcile.Result) bool {
	if !res.Failed() {
		return false
	}
	code := paymentdomain.ErrorCode(res.Err)
	s.metrics.RecordReconciliationFailure(ctx, event.Kind.String(), code, false)
	log.Error("subscription reconciliation failed, acknowledging",
		zap.String("code", code),
		zap.Error(res.Err),
	)
	return true
}

func (s *Service) finish(ctx context.Context, span trace.Span, kind string, outcome paymentdomain.Outcome, err error, start time.Time) {
	span.SetAttributes(attribute.String("webhook.outcome", string(outcome)))
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, paymentdomain.ErrorCode(err))
	}
	s.metrics.RecordWebhookEvent(ctx, kind, string(outcome), time.Since(start))
}
