package middleware

import (
	"context"

	"rentspace/internal/app/commands"
	"rentspace/internal/app/uow"
)

// TxOptionsProvider picks per-command transaction options.
type TxOptionsProvider func(cmd commands.Command) uow.TxOptions

// Transaction gives each command its own unit of work, committed only when
// the handler succeeds. Nested dispatches join the unit already in ctx.
func Transaction(factory uow.UoWFactory, options TxOptionsProvider) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next commands.Bus) commands.Bus {
		return dispatchFunc(func(ctx context.Context, cmd commands.Command) (res any, err error) {
			if _, joined := uow.FromContext(ctx); joined {
				return next.Dispatch(ctx, cmd)
			}
			var opts uow.TxOptions
			if options != nil {
				opts = options(cmd)
			}
			unit, txCtx, err := uow.Begin(ctx, factory, opts)
			if err != nil {
				return nil, err
			}
			defer func() {
				if err != nil {
					_ = unit.Rollback(txCtx)
				}
			}()

			if res, err = next.Dispatch(txCtx, cmd); err != nil {
				return nil, err
			}
			if err = unit.Commit(txCtx); err != nil {
				return nil, err
			}
			return res, nil
		})
	}
}
