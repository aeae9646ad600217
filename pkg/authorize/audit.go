package authorize

import (
	"context"
	"log/slog"
	"time"

	casbin "github.com/casbin/casbin/v2"
)

// AuditedAuthorization logs every decision and every policy change made
// through the wrapped IAuthorization. Allowed decisions are debug level;
// the review queue checks permissions on every poll.
type AuditedAuthorization struct {
	inner  IAuthorization
	logger *slog.Logger
}

func NewAuditedAuthorization(inner IAuthorization, logger *slog.Logger) IAuthorization {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditedAuthorization{inner: inner, logger: logger.With("component", "authz")}
}

func (a *AuditedAuthorization) Raw() *casbin.DistributedEnforcer { return a.inner.Raw() }

func (a *AuditedAuthorization) Enforce(ctx context.Context, subject GroupSubject, domain Domain, object Resource, action Action) (bool, error) {
	start := time.Now()
	allowed, err := a.inner.Enforce(ctx, subject, domain, object, action)

	level := slog.LevelDebug
	attrs := []any{
		"subject", subject,
		"domain", domain,
		"resource", object,
		"action", action,
		"allowed", allowed,
		"duration_us", time.Since(start).Microseconds(),
	}
	switch {
	case err != nil:
		level = slog.LevelError
		attrs = append(attrs, "error", err)
	case !allowed:
		level = slog.LevelWarn
	}
	a.logger.Log(ctx, level, "authz: decision", attrs...)
	return allowed, err
}

func (a *AuditedAuthorization) MustEnforce(ctx context.Context, subject GroupSubject, domain Domain, object Resource, action Action) error {
	ok, err := a.Enforce(ctx, subject, domain, object, action)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

func (a *AuditedAuthorization) GetRolesForUserInDomain(ctx context.Context, subject GroupSubject, domain Domain) ([]Role, error) {
	return a.inner.GetRolesForUserInDomain(ctx, subject, domain)
}

func (a *AuditedAuthorization) AddRoleForUserInDomain(ctx context.Context, subject GroupSubject, role Role, domain Domain) (bool, error) {
	changed, err := a.inner.AddRoleForUserInDomain(ctx, subject, role, domain)
	a.change(ctx, "add_role", changed, err, "subject", subject, "role", role, "domain", domain)
	return changed, err
}

func (a *AuditedAuthorization) RemoveRoleForUserInDomain(ctx context.Context, subject GroupSubject, role Role, domain Domain) (bool, error) {
	changed, err := a.inner.RemoveRoleForUserInDomain(ctx, subject, role, domain)
	a.change(ctx, "remove_role", changed, err, "subject", subject, "role", role, "domain", domain)
	return changed, err
}

func (a *AuditedAuthorization) AddPermission(ctx context.Context, role Role, domain Domain, object Resource, action Action, effect PolicyEffect) (bool, error) {
	changed, err := a.inner.AddPermission(ctx, role, domain, object, action, effect)
	a.change(ctx, "add_permission", changed, err,
		"role", role, "domain", domain, "resource", object, "action", action, "effect", effect)
	return changed, err
}

func (a *AuditedAuthorization) RemovePermission(ctx context.Context, role Role, domain Domain, object Resource, action Action, effect PolicyEffect) (bool, error) {
	changed, err := a.inner.RemovePermission(ctx, role, domain, object, action, effect)
	a.change(ctx, "remove_permission", changed, err,
		"role", role, "domain", domain, "resource", object, "action", action, "effect", effect)
	return changed, err
}

func (a *AuditedAuthorization) change(ctx context.Context, op string, changed bool, err error, attrs ...any) {
	attrs = append(attrs, "operation", op, "changed", changed)
	if err != nil {
		a.logger.ErrorContext(ctx, "authz: policy change failed", append(attrs, "error", err)...)
		return
	}
	a.logger.InfoContext(ctx, "authz: policy change", attrs...)
}
