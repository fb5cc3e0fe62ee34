// Package billing wraps the Stripe API calls the server needs.
package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/qs3c/nextaction_server/config"
)

var ErrNotConfigured = errors.New("billing: stripe is not configured")

// CheckoutParams describes a subscription checkout for one user.
type CheckoutParams struct {
	UserID     int64
	Email      string
	CustomerID string
}

// Provider is the subset of the payment provider the services use.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (string, error)
	CreatePortalSession(ctx context.Context, customerID string) (string, error)
	FindCustomerIDByEmail(ctx context.Context, email string) (string, error)
	GetCustomerEmail(ctx context.Context, customerID string) (string, error)
	ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error)
}

// StripeProvider implements Provider against the Stripe API.
type StripeProvider struct {
	sc            *client.API
	priceID       string
	webhookSecret string
	clientURL     string
}

func NewStripeProvider(cfg *config.StripeConfig, clientURL string) *StripeProvider {
	return &StripeProvider{
		sc:            client.New(cfg.SecretKey, nil),
		priceID:       cfg.PriceID,
		webhookSecret: cfg.WebhookSecret,
		clientURL:     strings.TrimRight(clientURL, "/"),
	}
}

// NewStripeProviderWithBackends is intended for tests against a fake API.
func NewStripeProviderWithBackends(cfg *config.StripeConfig, clientURL string, backends *stripe.Backends) *StripeProvider {
	p := NewStripeProvider(cfg, clientURL)
	p.sc = client.New(cfg.SecretKey, backends)
	return p
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, cp CheckoutParams) (string, error) {
	if p.priceID == "" {
		return "", ErrNotConfigured
	}

	userID := fmt.Sprintf("%d", cp.UserID)
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		ClientReferenceID: stripe.String(userID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.clientURL + "/billing?success=true"),
		CancelURL:  stripe.String(p.clientURL + "/billing?canceled=true"),
	}
	params.AddMetadata("userId", userID)
	params.Context = ctx

	switch {
	case cp.CustomerID != "":
		params.Customer = stripe.String(cp.CustomerID)
	case cp.Email != "":
		params.CustomerEmail = stripe.String(cp.Email)
	}

	sess, err := p.sc.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

func (p *StripeProvider) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(p.clientURL + "/billing"),
	}
	params.Context = ctx

	sess, err := p.sc.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}
	return sess.URL, nil
}

// FindCustomerIDByEmail returns the first customer with the email, or "".
func (p *StripeProvider) FindCustomerIDByEmail(ctx context.Context, email string) (string, error) {
	params := &stripe.CustomerSearchParams{
		SearchParams: stripe.SearchParams{
			Query:   fmt.Sprintf("email:'%s'", strings.ReplaceAll(email, "'", "\\'")),
			Limit:   stripe.Int64(1),
			Context: ctx,
		},
	}

	iter := p.sc.Customers.Search(params)
	if iter.Next() {
		return iter.Customer().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", fmt.Errorf("search customers: %w", err)
	}
	return "", nil
}

func (p *StripeProvider) GetCustomerEmail(ctx context.Context, customerID string) (string, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx

	cust, err := p.sc.Customers.Get(customerID, params)
	if err != nil {
		return "", fmt.Errorf("get customer: %w", err)
	}
	return cust.Email, nil
}

func (p *StripeProvider) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	if p.webhookSecret == "" {
		return stripe.Event{}, ErrNotConfigured
	}
	return webhook.ConstructEventWithOptions(payload, sigHeader, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}
