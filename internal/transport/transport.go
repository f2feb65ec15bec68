// Package transport carries the cross-cutting concerns of every
// outgoing backend request: bearer credentials, request correlation
// and the 401 session-destruction rule.
package transport

import (
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/mmhmddd/omega-gateway/internal/metrics"
	"github.com/mmhmddd/omega-gateway/internal/session"
)

// BearerRoundTripper attaches the stored token to outgoing requests
// and destroys the session on a 401. A 403 and every other response
// pass through untouched; nothing is ever retried here.
type BearerRoundTripper struct {
	Base    http.RoundTripper
	Store   *session.Store
	Metrics *metrics.Collector

	// OnUnauthorized runs after a 401 has cleared the session, so the
	// caller can force re-authentication.
	OnUnauthorized func()
}

func (rt *BearerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	base := rt.Base
	if base == nil {
		base = http.DefaultTransport
	}

	out := req.Clone(req.Context())
	if token := rt.Store.Token(); token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	}
	if out.Header.Get("X-Request-Id") == "" {
		out.Header.Set("X-Request-Id", uuid.NewString())
	}

	resp, err := base.RoundTrip(out)
	if err != nil {
		return nil, err
	}

	rt.Metrics.RecordBackendStatus(resp.StatusCode)
	if resp.StatusCode == http.StatusUnauthorized {
		if err := rt.Store.Clear(); err != nil {
			log.Printf("transport: clearing session after 401: %v", err)
		}
		rt.Metrics.RecordSessionCleared()
		if rt.OnUnauthorized != nil {
			rt.OnUnauthorized()
		}
	}
	return resp, nil
}
