package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlement/internal/clock"
	paymentdomain "github.com/smallbiznis/entitlement/internal/payment/domain"
	purchasedomain "github.com/smallbiznis/entitlement/internal/purchase/domain"
	subscriptiondomain "github.com/smallbiznis/entitlement/internal/subscription/domain"
	userdomain "github.com/smallbiznis/entitlement/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UserResolver resolves billing customer references.
type UserResolver interface {
	ResolveUser(ctx context.Context, customerRef string) (*userdomain.User, error)
}

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Clock         clock.Clock
	Node          *snowflake.Node
	Resolver      UserResolver
	Users         userdomain.Repository
	Purchases     purchasedomain.Repository
	Subscriptions subscriptiondomain.Repository
}

// Engine applies classified events to entitlement records. Every write is a
// conditional statement at the store, so concurrent or repeated deliveries
// of the same event converge on one row.
type Engine struct {
	db            *gorm.DB
	log           *zap.Logger
	clock         clock.Clock
	node          *snowflake.Node
	resolver      UserResolver
	users         userdomain.Repository
	purchases     purchasedomain.Repository
	subscriptions subscriptiondomain.Repository
}

func NewEngine(p Params) *Engine {
	return &Engine{
		db:            p.DB,
		log:           p.Log.Named("payment.reconcile"),
		clock:         p.Clock,
		node:          p.Node,
		resolver:      p.Resolver,
		users:         p.Users,
		purchases:     p.Purchases,
		subscriptions: p.Subscriptions,
	}
}

// RecordPurchase grants course ownership for a completed checkout. All
// failures are fatal.
func (e *Engine) RecordPurchase(ctx context.Context, checkout paymentdomain.CheckoutCompleted) Result {
	if checkout.IsSubscriptionCheckout() {
		e.log.Debug("subscription checkout, waiting for subscription events",
			zap.String("session_id", checkout.SessionID))
		return Done(paymentdomain.OutcomeSkipped)
	}

	courseID := checkout.CourseRef()
	if courseID == "" {
		return Fatal(fmt.Errorf("%w: checkout %s has no course", paymentdomain.ErrMissingReference, checkout.SessionID))
	}
	if checkout.CustomerRef == "" {
		return Fatal(fmt.Errorf("%w: checkout %s has no customer", paymentdomain.ErrMissingReference, checkout.SessionID))
	}

	user, err := e.resolver.ResolveUser(ctx, checkout.CustomerRef)
	if err != nil {
		return Fatal(err)
	}

	purchase := &purchasedomain.Purchase{
		ID:                  e.node.Generate(),
		UserID:              user.ID,
		CourseID:            courseID,
		Amount:              checkout.AmountTotal,
		Currency:            checkout.Currency,
		ExternalPurchaseRef: checkout.SessionID,
		CreatedAt:           e.clock.Now(),
	}
	stored, created, err := e.purchases.InsertIfAbsent(ctx, e.db, purchase)
	if err != nil {
		return Fatal(storeErr("insert_purchase", err))
	}

	res := Result{Outcome: paymentdomain.OutcomeApplied, User: user, Purchase: stored}
	if !created {
		res.Outcome = paymentdomain.OutcomeDuplicate
	}
	return res
}

// UpsertSubscription mirrors an active subscription onto its row and the
// owner's current subscription pointer. Failures are contained.
func (e *Engine) UpsertSubscription(ctx context.Context, change paymentdomain.SubscriptionChange) Result {
	if !change.IsEntitling() {
		e.log.Debug("subscription not entitling",
			zap.String("subscription_ref", change.SubscriptionRef),
			zap.String("status", change.Status),
			zap.Bool("has_latest_invoice", change.HasLatestInvoice),
			zap.Bool("has_billing_item", change.HasBillingItem),
		)
		return Done(paymentdomain.OutcomeSkipped)
	}
	if change.SubscriptionRef == "" {
		return NonFatal(fmt.Errorf("%w: subscription without id", paymentdomain.ErrMissingReference))
	}

	user, err := e.resolver.ResolveUser(ctx, change.CustomerRef)
	if err != nil {
		return NonFatal(err)
	}

	firstActivation := e.isFirstActivation(ctx, change)

	now := e.clock.Now()
	var stored *subscriptiondomain.Subscription
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		stored, err = e.subscriptions.UpsertByExternalRef(ctx, tx, &subscriptiondomain.Subscription{
			ID:                      e.node.Generate(),
			UserID:                  user.ID,
			ExternalSubscriptionRef: change.SubscriptionRef,
			Status:                  subscriptiondomain.SubscriptionStatusActive,
			PlanType:                subscriptiondomain.PlanType(change.PlanType),
			CurrentPeriodStart:      change.CurrentPeriodStart,
			CurrentPeriodEnd:        change.CurrentPeriodEnd,
			CancelAtPeriodEnd:       change.CancelAtPeriodEnd,
			CanceledAt:              nil,
			CreatedAt:               now,
			UpdatedAt:               now,
		})
		if err != nil {
			return storeErr("upsert_subscription", err)
		}
		if stored == nil {
			return storeErr("upsert_subscription", errors.New("row not found after upsert"))
		}
		if err := e.users.SetCurrentSubscription(ctx, tx, user.ID, stored.ID); err != nil {
			return storeErr("set_current_subscription", err)
		}
		return nil
	})
	if err != nil {
		return NonFatal(err)
	}

	return Result{
		Outcome:         paymentdomain.OutcomeApplied,
		User:            user,
		Subscription:    stored,
		FirstActivation: firstActivation,
	}
}

// isFirstActivation trusts the created event kind unless the row is already
// active, which means this delivery is a replay. A failed read keeps the
// event's own hint.
func (e *Engine) isFirstActivation(ctx context.Context, change paymentdomain.SubscriptionChange) bool {
	if !change.FirstCreation {
		return false
	}
	existing, err := e.subscriptions.FindByExternalRef(ctx, e.db, change.SubscriptionRef)
	if err != nil {
		e.log.Debug("first activation check failed", zap.Error(err))
		return true
	}
	return existing == nil || !existing.IsActive()
}

// DeleteSubscription marks the row canceled and detaches it from its owner.
// Absent and already canceled rows are successes. Failures are contained.
func (e *Engine) DeleteSubscription(ctx context.Context, change paymentdomain.SubscriptionChange) Result {
	if change.SubscriptionRef == "" {
		return NonFatal(fmt.Errorf("%w: subscription without id", paymentdomain.ErrMissingReference))
	}

	existing, err := e.subscriptions.FindByExternalRef(ctx, e.db, change.SubscriptionRef)
	if err != nil {
		return NonFatal(storeErr("find_subscription", err))
	}
	if existing == nil {
		return Done(paymentdomain.OutcomeSkipped)
	}

	var canceled bool
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		canceled, err = e.subscriptions.CancelByExternalRef(ctx, tx, change.SubscriptionRef, e.clock.Now())
		if err != nil {
			return storeErr("cancel_subscription", err)
		}
		if !canceled {
			return nil
		}
		if _, err := e.users.ClearCurrentSubscription(ctx, tx, existing.UserID, existing.ID); err != nil {
			return storeErr("clear_current_subscription", err)
		}
		return nil
	})
	if err != nil {
		return NonFatal(err)
	}
	if !canceled {
		return Result{Outcome: paymentdomain.OutcomeDuplicate, Subscription: existing}
	}
	return Result{Outcome: paymentdomain.OutcomeApplied, Subscription: existing}
}

func storeErr(op string, err error) error {
	var se *paymentdomain.StoreError
	if errors.As(err, &se) {
		return err
	}
	return paymentdomain.NewStoreError(op, err)
}
