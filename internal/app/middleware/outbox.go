package middleware

import (
	"context"
	"log/slog"

	"rentspace/internal/app/commands"
)

// Flusher is notified after a command succeeded so pending events are relayed.
type Flusher interface {
	Flush(ctx context.Context) error
}

// OutboxFlush must wrap the Transaction middleware so it runs after commit.
// A failed flush is logged only; the relay picks the events up on its next poll.
func OutboxFlush(box Flusher, logger *slog.Logger) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		return dispatchFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := next.Dispatch(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := box.Flush(ctx); err != nil {
				logger.WarnContext(ctx, "outbox flush failed", "command", cmd.Key(), "error", err)
			}
			return res, nil
		})
	}
}
