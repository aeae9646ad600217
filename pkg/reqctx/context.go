package reqctx

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ctxKey int

const (
	keyRequestMeta ctxKey = iota
	keyClaims
	keyFacility
)

// RequestMeta is what the request-id middleware knows about a call before
// authentication runs.
type RequestMeta struct {
	RequestID   string
	ClientIP    string
	UserAgent   string
	RequestedAt time.Time
}

func WithRequestMeta(ctx context.Context, meta *RequestMeta) context.Context {
	return context.WithValue(ctx, keyRequestMeta, meta)
}

func RequestMetaFromContext(ctx context.Context) (*RequestMeta, bool) {
	meta, ok := ctx.Value(keyRequestMeta).(*RequestMeta)
	return meta, ok && meta != nil
}

// RequestIDFromContext returns "" outside an HTTP request.
func RequestIDFromContext(ctx context.Context) string {
	if meta, ok := RequestMetaFromContext(ctx); ok {
		return meta.RequestID
	}
	return ""
}

// WithFacility records the facility the request is scoped to.
func WithFacility(ctx context.Context, facilityID uuid.UUID) context.Context {
	return context.WithValue(ctx, keyFacility, facilityID)
}

func FacilityFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(keyFacility).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// LogAttrs returns slog key/value pairs identifying the request. The logs
// package appends them to every record logged with this context.
func LogAttrs(ctx context.Context) []any {
	var attrs []any
	if rid := RequestIDFromContext(ctx); rid != "" {
		attrs = append(attrs, "request_id", rid)
	}
	if uid, ok := UserIDFromContext(ctx); ok {
		attrs = append(attrs, "user_id", uid.String())
	}
	if fid, ok := FacilityFromContext(ctx); ok {
		attrs = append(attrs, "facility_id", fid.String())
	}
	return attrs
}
