// Package reqctx provides centralized request context management.
//
// HTTP middleware stores the request metadata, the verified access-token
// claims and the facility scope here; services and background workers read
// them back through the typed getters (for example to tag log lines with
// request_id and facility_id via LogAttrs).
//
// Contracts:
//
//   - RequestMeta is set by HTTP middleware for all requests
//   - Claims is set only for authenticated requests (token present and valid)
//   - Facility is set once the caller's membership in it has been verified
package reqctx
