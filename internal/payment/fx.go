package payment

import (
	"github.com/smallbiznis/entitlement/internal/notification"
	"github.com/smallbiznis/entitlement/internal/payment/adapters/stripe"
	"github.com/smallbiznis/entitlement/internal/payment/reconcile"
	"github.com/smallbiznis/entitlement/internal/payment/resolver"
	"github.com/smallbiznis/entitlement/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(stripe.Provide),
	fx.Provide(resolver.New),
	fx.Provide(func(r *resolver.Resolver) reconcile.UserResolver { return r }),
	fx.Provide(reconcile.NewEngine),
	fx.Provide(func(d *notification.Dispatcher) webhook.Notifier { return d }),
	fx.Provide(webhook.NewService),
)
