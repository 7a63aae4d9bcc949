// Package payment is the thin seam to the external checkout collaborator.
// The core never verifies payment state: on return from checkout the host
// confirms the upgrade and the tier is set to Premium unconditionally.
package payment

import (
	"context"
	"errors"
)

var ErrNotConfigured = errors.New("checkout is not configured")

// Provider starts a checkout and returns the redirect target the client
// should navigate to. Session creation mechanics belong to the collaborator.
type Provider interface {
	CreateCheckout(ctx context.Context) (redirectURL string, err error)
}

// HostedCheckout redirects to a pre-configured hosted checkout page.
type HostedCheckout struct {
	URL string
}

func (h *HostedCheckout) CreateCheckout(ctx context.Context) (string, error) {
	if h.URL == "" {
		return "", ErrNotConfigured
	}
	return h.URL, nil
}
