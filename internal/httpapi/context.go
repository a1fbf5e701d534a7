package httpapi

import (
	"context"
	"net/http"
)

// serverBaseCtx is a process-level context that can be canceled on shutdown.
// Defaults to Background if not set.
var serverBaseCtx = context.Background()

// SetBaseContext sets the process-level base context used by handlers.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// inferContext derives the context of an /infer call: it ends with the
// request, with the server base context, or after inferTimeout.
func inferContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(r.Context())
	stop := context.AfterFunc(serverBaseCtx, cancel)
	release := func() {
		stop()
		cancel()
	}
	if inferTimeout <= 0 {
		return ctx, release
	}
	tctx, tcancel := context.WithTimeout(ctx, inferTimeout)
	return tctx, func() {
		tcancel()
		release()
	}
}
