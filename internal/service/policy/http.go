package policy

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// HTTPLookup asks the facility service for policy. Facilities it does not
// know about get the defaults.
type HTTPLookup struct {
	client   *resty.Client
	defaults Policy
}

func NewHTTPLookup(baseURL string, timeout time.Duration, defaults Policy) *HTTPLookup {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		SetHeader("Accept", "application/json")
	return &HTTPLookup{client: client, defaults: defaults}
}

func (h *HTTPLookup) Get(ctx context.Context, facilityID uuid.UUID) (Policy, error) {
	var p Policy
	resp, err := h.client.R().
		SetContext(ctx).
		SetPathParam("id", facilityID.String()).
		SetResult(&p).
		Get("/facilities/{id}/policy")
	if err != nil {
		return Policy{}, fmt.Errorf("policy: fetch facility %s: %w", facilityID, err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		slog.Debug("policy: facility unknown upstream, using defaults", "facility_id", facilityID)
		return h.defaults, nil
	case resp.IsError():
		return Policy{}, fmt.Errorf("policy: fetch facility %s: status %d", facilityID, resp.StatusCode())
	}
	return p.WithDefaults(h.defaults), nil
}
