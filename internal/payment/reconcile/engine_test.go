package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlement/internal/clock"
	paymentdomain "github.com/smallbiznis/entitlement/internal/payment/domain"
	"github.com/smallbiznis/entitlement/internal/payment/resolver"
	purchasedomain "github.com/smallbiznis/entitlement/internal/purchase/domain"
	purchaserepo "github.com/smallbiznis/entitlement/internal/purchase/repository"
	subscriptiondomain "github.com/smallbiznis/entitlement/internal/subscription/domain"
	subscriptionrepo "github.com/smallbiznis/entitlement/internal/subscription/repository"
	userdomain "github.com/smallbiznis/entitlement/internal/user/domain"
	userrepo "github.com/smallbiznis/entitlement/internal/user/repository"
	"github.com/smallbiznis/entitlement/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type fixture struct {
	db     *gorm.DB
	engine *Engine
	clock  *clock.FakeClock
	users  userdomain.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zaptest.NewLogger(t)
	users := userrepo.Provide()
	fake := clock.NewFakeClock(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))

	engine := NewEngine(Params{
		DB:            db,
		Log:           log,
		Clock:         fake,
		Node:          node,
		Resolver:      resolver.New(resolver.Params{DB: db, Log: log, Users: users}),
		Users:         users,
		Purchases:     purchaserepo.Provide(),
		Subscriptions: subscriptionrepo.Provide(),
	})
	return &fixture{db: db, engine: engine, clock: fake, users: users}
}

func (f *fixture) seedUser(t *testing.T, id snowflake.ID, customerRef string) {
	t.Helper()
	now := f.clock.Now()
	require.NoError(t, f.users.Create(context.Background(), f.db, &userdomain.User{
		ID:                 id,
		ExternalAuthID:     "auth_" + customerRef,
		ExternalCustomerID: customerRef,
		Email:              customerRef + "@example.com",
		Name:               customerRef,
		CreatedAt:          now,
		UpdatedAt:          now,
	}))
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func courseCheckout() paymentdomain.CheckoutCompleted {
	return paymentdomain.CheckoutCompleted{
		SessionID:   "evt_1",
		CustomerRef: "cus_u1",
		AmountTotal: 4900,
		Currency:    "usd",
		Metadata:    map[string]string{paymentdomain.MetadataCourseID: "C1"},
	}
}

func activeChange(end time.Time) paymentdomain.SubscriptionChange {
	return paymentdomain.SubscriptionChange{
		SubscriptionRef:    "sub_1",
		CustomerRef:        "cus_u2",
		Status:             "active",
		HasLatestInvoice:   true,
		HasBillingItem:     true,
		PlanType:           "month",
		CurrentPeriodStart: end.AddDate(0, -1, 0),
		CurrentPeriodEnd:   end,
	}
}

func TestRecordPurchaseOncePerReference(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, 1, "cus_u1")
	ctx := context.Background()

	res := f.engine.RecordPurchase(ctx, courseCheckout())
	require.NoError(t, res.Err)
	assert.Equal(t, paymentdomain.OutcomeApplied, res.Outcome)
	require.NotNil(t, res.Purchase)
	assert.EqualValues(t, 1, res.Purchase.UserID)
	assert.Equal(t, "C1", res.Purchase.CourseID)
	assert.Equal(t, int64(4900), res.Purchase.Amount)

	replay := f.engine.RecordPurchase(ctx, courseCheckout())
	require.NoError(t, replay.Err)
	assert.Equal(t, paymentdomain.OutcomeDuplicate, replay.Outcome)
	assert.Equal(t, res.Purchase.ID, replay.Purchase.ID)

	assert.EqualValues(t, 1, f.count(t, &purchasedomain.Purchase{}))
}

func TestRecordPurchaseSkipsSubscriptionCheckout(t *testing.T) {
	f := newFixture(t)
	checkout := courseCheckout()
	checkout.Metadata = map[string]string{
		paymentdomain.MetadataUserID: "u1",
		paymentdomain.MetadataPlanID: "pro_month",
	}

	res := f.engine.RecordPurchase(context.Background(), checkout)
	require.NoError(t, res.Err)
	assert.Equal(t, paymentdomain.OutcomeSkipped, res.Outcome)
	assert.EqualValues(t, 0, f.count(t, &purchasedomain.Purchase{}))
}

func TestRecordPurchaseFailuresAreFatal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	noCourse := courseCheckout()
	noCourse.Metadata = nil
	res := f.engine.RecordPurchase(ctx, noCourse)
	assert.True(t, res.IsFatal())
	assert.ErrorIs(t, res.Err, paymentdomain.ErrMissingReference)

	noCustomer := courseCheckout()
	noCustomer.CustomerRef = ""
	res = f.engine.RecordPurchase(ctx, noCustomer)
	assert.True(t, res.IsFatal())
	assert.ErrorIs(t, res.Err, paymentdomain.ErrMissingReference)

	res = f.engine.RecordPurchase(ctx, courseCheckout())
	assert.True(t, res.IsFatal())
	assert.ErrorIs(t, res.Err, paymentdomain.ErrUserNotFound)
	assert.Equal(t, paymentdomain.OutcomeFailed, res.Outcome)

	assert.EqualValues(t, 0, f.count(t, &purchasedomain.Purchase{}))
}

func TestUpsertSubscriptionCreatesThenUpdatesInPlace(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, 2, "cus_u2")
	ctx := context.Background()
	end := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)

	created := activeChange(end)
	created.FirstCreation = true
	res := f.engine.UpsertSubscription(ctx, created)
	require.NoError(t, res.Err)
	assert.Equal(t, paymentdomain.OutcomeApplied, res.Outcome)
	assert.True(t, res.FirstActivation)
	require.NotNil(t, res.Subscription)
	assert.EqualValues(t, 2, res.Subscription.UserID)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusActive, res.Subscription.Status)
	assert.Equal(t, subscriptiondomain.PlanTypeMonth, res.Subscription.PlanType)

	user, err := f.users.FindByID(ctx, f.db, 2)
	require.NoError(t, err)
	require.NotNil(t, user.CurrentSubscriptionID)
	assert.Equal(t, res.Subscription.ID, *user.CurrentSubscriptionID)

	renewed := activeChange(end.AddDate(0, 1, 0))
	again := f.engine.UpsertSubscription(ctx, renewed)
	require.NoError(t, again.Err)
	assert.False(t, again.FirstActivation)
	assert.Equal(t, res.Subscription.ID, again.Subscription.ID)
	assert.True(t, again.Subscription.CurrentPeriodEnd.Equal(end.AddDate(0, 1, 0)))

	assert.EqualValues(t, 1, f.count(t, &subscriptiondomain.Subscription{}))
}

func TestUpsertSubscriptionReplayedCreationIsNotFirstActivation(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, 2, "cus_u2")
	change := activeChange(time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC))
	change.FirstCreation = true

	first := f.engine.UpsertSubscription(context.Background(), change)
	require.NoError(t, first.Err)
	assert.True(t, first.FirstActivation)

	replay := f.engine.UpsertSubscription(context.Background(), change)
	require.NoError(t, replay.Err)
	assert.False(t, replay.FirstActivation)
	assert.EqualValues(t, 1, f.count(t, &subscriptiondomain.Subscription{}))
}

func TestUpsertSubscriptionSkipsNonEntitling(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, 2, "cus_u2")
	end := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)

	incomplete := activeChange(end)
	incomplete.Status = "incomplete"
	noInvoice := activeChange(end)
	noInvoice.HasLatestInvoice = false
	noItem := activeChange(end)
	noItem.HasBillingItem = false

	for _, change := range []paymentdomain.SubscriptionChange{incomplete, noInvoice, noItem} {
		res := f.engine.UpsertSubscription(context.Background(), change)
		require.NoError(t, res.Err)
		assert.Equal(t, paymentdomain.OutcomeSkipped, res.Outcome)
	}
	assert.EqualValues(t, 0, f.count(t, &subscriptiondomain.Subscription{}))
}

func TestUpsertSubscriptionMissingUserIsContained(t *testing.T) {
	f := newFixture(t)
	res := f.engine.UpsertSubscription(context.Background(), activeChange(time.Now().UTC()))
	require.Error(t, res.Err)
	assert.False(t, res.IsFatal())
	assert.ErrorIs(t, res.Err, paymentdomain.ErrUserNotFound)
	assert.EqualValues(t, 0, f.count(t, &subscriptiondomain.Subscription{}))
}

func TestUpsertSubscriptionStoreErrorIsContained(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, 2, "cus_u2")
	change := activeChange(time.Now().UTC())
	change.PlanType = "week"

	res := f.engine.UpsertSubscription(context.Background(), change)
	require.Error(t, res.Err)
	assert.False(t, res.IsFatal())
	var storeErr *paymentdomain.StoreError
	require.True(t, errors.As(res.Err, &storeErr))
	assert.Equal(t, "upsert_subscription", storeErr.Op)
}

func TestDeleteSubscriptionIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, 2, "cus_u2")
	ctx := context.Background()

	never := f.engine.DeleteSubscription(ctx, paymentdomain.SubscriptionChange{SubscriptionRef: "sub_never"})
	require.NoError(t, never.Err)
	assert.Equal(t, paymentdomain.OutcomeSkipped, never.Outcome)

	created := f.engine.UpsertSubscription(ctx, activeChange(time.Now().UTC()))
	require.NoError(t, created.Err)

	f.clock.Advance(time.Hour)
	deleted := f.engine.DeleteSubscription(ctx, paymentdomain.SubscriptionChange{SubscriptionRef: "sub_1"})
	require.NoError(t, deleted.Err)
	assert.Equal(t, paymentdomain.OutcomeApplied, deleted.Outcome)

	again := f.engine.DeleteSubscription(ctx, paymentdomain.SubscriptionChange{SubscriptionRef: "sub_1"})
	require.NoError(t, again.Err)
	assert.Equal(t, paymentdomain.OutcomeDuplicate, again.Outcome)

	var stored subscriptiondomain.Subscription
	require.NoError(t, f.db.Where("external_subscription_ref = ?", "sub_1").First(&stored).Error)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusCanceled, stored.Status)
	require.NotNil(t, stored.CanceledAt)

	user, err := f.users.FindByID(ctx, f.db, 2)
	require.NoError(t, err)
	assert.Nil(t, user.CurrentSubscriptionID)
}

func TestDeleteKeepsNewerCurrentSubscription(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, 2, "cus_u2")
	ctx := context.Background()

	old := f.engine.UpsertSubscription(ctx, activeChange(time.Now().UTC()))
	require.NoError(t, old.Err)
	newer := activeChange(time.Now().UTC())
	newer.SubscriptionRef = "sub_2"
	latest := f.engine.UpsertSubscription(ctx, newer)
	require.NoError(t, latest.Err)

	res := f.engine.DeleteSubscription(ctx, paymentdomain.SubscriptionChange{SubscriptionRef: "sub_1"})
	require.NoError(t, res.Err)

	user, err := f.users.FindByID(ctx, f.db, 2)
	require.NoError(t, err)
	require.NotNil(t, user.CurrentSubscriptionID)
	assert.Equal(t, latest.Subscription.ID, *user.CurrentSubscriptionID)
}

func TestDeleteSubscriptionWithoutRefIsContained(t *testing.T) {
	f := newFixture(t)
	res := f.engine.DeleteSubscription(context.Background(), paymentdomain.SubscriptionChange{})
	assert.ErrorIs(t, res.Err, paymentdomain.ErrMissingReference)
	assert.False(t, res.IsFatal())
}
