package httpapi

import (
	"context"
	"errors"
)

// errShuttingDown is the cancel cause for handlers interrupted by shutdown.
var errShuttingDown = errors.New("server shutting down")

// serverBaseCtx is canceled when the process begins shutting down. Long-poll
// handlers watch it in addition to the request context.
var serverBaseCtx = context.Background()

// SetBaseContext sets the process-level context; nil restores Background.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	serverBaseCtx = ctx
}

// withShutdown derives a context from req that is also canceled, with cause
// errShuttingDown, when the base context ends. Callers must call the returned
// stop func.
func withShutdown(req context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(req)
	unhook := context.AfterFunc(serverBaseCtx, func() { cancel(errShuttingDown) })
	return ctx, func() {
		unhook()
		cancel(nil)
	}
}
