package logs

import (
	"context"
	"log/slog"

	"github.com/Alijeyrad/careflow_backend/pkg/reqctx"
)

// requestHandler tags every record logged with a request context with the
// request id, caller and facility stored there by the HTTP middleware.
type requestHandler struct {
	slog.Handler
}

func (h requestHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs := reqctx.LogAttrs(ctx); len(attrs) > 0 {
		r = r.Clone()
		r.Add(attrs...)
	}
	return h.Handler.Handle(ctx, r)
}

func (h requestHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return requestHandler{h.Handler.WithAttrs(attrs)}
}

func (h requestHandler) WithGroup(name string) slog.Handler {
	return requestHandler{h.Handler.WithGroup(name)}
}
