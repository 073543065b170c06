package notification

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("notification",
	fx.Provide(New),
	fx.Invoke(registerShutdown),
)

func registerShutdown(lc fx.Lifecycle, d *Dispatcher) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			done := make(chan struct{})
			go func() {
				d.Wait()
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
