// Package provider is the seam to the external payment processor.
package provider

import (
	"fmt"

	checkoutdomain "github.com/Tao119/eurekode-sub004/internal/checkout/domain"
)

// Provider renders a hosted payment page for a pending session.
type Provider interface {
	Name() string
	PaymentURL(session *checkoutdomain.CheckoutSession) (string, error)
}

// Noop is the development provider: sessions are payable by calling the
// webhook endpoint it links to directly.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) PaymentURL(session *checkoutdomain.CheckoutSession) (string, error) {
	if session == nil || session.Ref == "" {
		return "", checkoutdomain.ErrSessionNotFound
	}
	return fmt.Sprintf("/credits/checkout/%s/complete", session.Ref), nil
}

// ByName resolves the configured provider, falling back to noop.
func ByName(name string) Provider {
	switch name {
	case "noop", "":
		return Noop{}
	default:
		return Noop{}
	}
}
