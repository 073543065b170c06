package reconcile

import (
	paymentdomain "github.com/smallbiznis/entitlement/internal/payment/domain"
	purchasedomain "github.com/smallbiznis/entitlement/internal/purchase/domain"
	subscriptiondomain "github.com/smallbiznis/entitlement/internal/subscription/domain"
	userdomain "github.com/smallbiznis/entitlement/internal/user/domain"
)

// Result is returned by every engine operation. A failed Result is either
// fatal, meaning the delivery must not be acknowledged, or contained, meaning
// it is logged and the delivery is still acknowledged.
type Result struct {
	Outcome paymentdomain.Outcome
	Err     error
	fatal   bool

	User         *userdomain.User
	Purchase     *purchasedomain.Purchase
	Subscription *subscriptiondomain.Subscription
	// FirstActivation is a best-effort hint for the welcome notice.
	FirstActivation bool
}

func Done(outcome paymentdomain.Outcome) Result {
	return Result{Outcome: outcome}
}

// Fatal fails the delivery so the sender retries it.
func Fatal(err error) Result {
	return Result{Outcome: paymentdomain.OutcomeFailed, Err: err, fatal: true}
}

// NonFatal records err without failing the delivery.
func NonFatal(err error) Result {
	return Result{Outcome: paymentdomain.OutcomeFailed, Err: err}
}

func (r Result) Failed() bool {
	return r.Err != nil
}

func (r Result) IsFatal() bool {
	return r.Err != nil && r.fatal
}
