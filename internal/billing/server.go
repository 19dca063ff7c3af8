package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	svix "github.com/svix/svix-webhooks/go"

	"github.com/clawmart/clawmart/internal/config"
	"github.com/clawmart/clawmart/internal/user"
	"github.com/clawmart/clawmart/pkg/cerr"
)

// Sessions creates hosted checkout sessions. *checkout/session.Client satisfies it.
type Sessions interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type Users interface {
	Resolve(ctx context.Context, externalID string) (*user.User, error)
	Ensure(ctx context.Context, in user.EnsureInput) (*user.User, bool, error)
	UpdatePlan(ctx context.Context, externalID string, plan user.Plan, stripeCustomerID string) (*user.User, error)
}

// Metadata keys attached to checkout sessions and read back by the webhook.
const (
	MetadataExternalID = "clerkId"
	MetadataPlan       = "planId"
)

type Server struct {
	sessions Sessions
	users    Users
	env      config.BillingEnv
	clerk    *svix.Webhook
}

// NewServer wires the billing flows. sessions may be nil when no Stripe key is configured,
// in which case checkout is unavailable.
func NewServer(sessions Sessions, users Users, env config.BillingEnv) (*Server, error) {
	s := &Server{sessions: sessions, users: users, env: env}
	if env.ClerkWebhookSecret != "" {
		wh, err := svix.NewWebhook(env.ClerkWebhookSecret)
		if err != nil {
			return nil, fmt.Errorf("failed to create identity webhook verifier: %w", err)
		}
		s.clerk = wh
	}
	return s, nil
}

func (s *Server) priceFor(plan user.Plan) string {
	switch plan {
	case user.PlanPro:
		return s.env.StripeProPriceID
	case user.PlanEnterprise:
		return s.env.StripeEnterprisePriceID
	}
	return ""
}

type CheckoutResult struct {
	URL string `json:"url"`
}

// Checkout opens a subscription checkout for plan on behalf of the caller.
func (s *Server) Checkout(ctx context.Context, externalID string, plan user.Plan) (*CheckoutResult, error) {
	price := s.priceFor(plan)
	if price == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "invalid plan", nil)
	}
	if s.sessions == nil {
		return nil, cerr.NewError(cerr.Unavailable, "billing is not configured", nil)
	}
	u, err := s.users.Resolve(ctx, externalID)
	if err != nil {
		return nil, err
	}

	appURL := strings.TrimRight(s.env.AppURL, "/")
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(price), Quantity: stripe.Int64(1)},
		},
		SuccessURL:        stripe.String(appURL + "/dashboard?upgraded=true"),
		CancelURL:         stripe.String(appURL + "/dashboard/billing"),
		ClientReferenceID: stripe.String(externalID),
		Metadata: map[string]string{
			MetadataExternalID: externalID,
			MetadataPlan:       string(plan),
		},
	}
	if u.Email != "" {
		params.CustomerEmail = stripe.String(u.Email)
	}
	params.Context = ctx

	sess, err := s.sessions.New(params)
	if err != nil {
		return nil, cerr.NewError(cerr.Unavailable, "failed to create checkout session", err)
	}
	return &CheckoutResult{URL: sess.URL}, nil
}

// HandleStripe verifies and applies a payment-processor event.
func (s *Server) HandleStripe(ctx context.Context, payload []byte, signature string) error {
	if s.env.StripeWebhookSecret == "" {
		return cerr.NewError(cerr.Unavailable, "payment webhook is not configured", nil)
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, s.env.StripeWebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return cerr.NewError(cerr.InvalidArgument, "invalid signature", err)
	}
	if ev.Data == nil {
		return cerr.NewError(cerr.InvalidArgument, "event has no data", nil)
	}

	switch ev.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
			return cerr.NewError(cerr.InvalidArgument, "malformed checkout session", err)
		}
		externalID, plan := sess.Metadata[MetadataExternalID], sess.Metadata[MetadataPlan]
		if externalID == "" || plan == "" {
			slog.WarnContext(ctx, "checkout session without plan metadata", "session", sess.ID)
			return nil
		}
		var customerID string
		if sess.Customer != nil {
			customerID = sess.Customer.ID
		}
		if _, err := s.users.UpdatePlan(ctx, externalID, user.Plan(plan), customerID); err != nil {
			return err
		}
		slog.InfoContext(ctx, "plan upgraded", "external_id", externalID, "plan", plan, "customer", customerID)

	case stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return cerr.NewError(cerr.InvalidArgument, "malformed subscription", err)
		}
		var customerID string
		if sub.Customer != nil {
			customerID = sub.Customer.ID
		}
		// TODO: downgrade to free once users can be looked up by billing customer id.
		slog.InfoContext(ctx, "subscription cancelled", "customer", customerID)

	default:
		slog.DebugContext(ctx, "ignoring payment event", "type", ev.Type)
	}
	return nil
}

type clerkEvent struct {
	Type string `json:"type"`
	Data struct {
		ID             string `json:"id"`
		FirstName      string `json:"first_name"`
		LastName       string `json:"last_name"`
		ImageURL       string `json:"image_url"`
		EmailAddresses []struct {
			EmailAddress string `json:"email_address"`
		} `json:"email_addresses"`
	} `json:"data"`
}

// HandleClerk verifies an identity-provider event and mirrors user creation locally.
func (s *Server) HandleClerk(ctx context.Context, payload []byte, header http.Header) error {
	if s.clerk == nil {
		return cerr.NewError(cerr.Unavailable, "identity webhook is not configured", nil)
	}
	if err := s.clerk.Verify(payload, header); err != nil {
		return cerr.NewError(cerr.InvalidArgument, "invalid signature", err)
	}
	var ev clerkEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return cerr.NewError(cerr.InvalidArgument, "malformed identity event", err)
	}
	if ev.Type != "user.created" {
		slog.DebugContext(ctx, "ignoring identity event", "type", ev.Type)
		return nil
	}

	in := user.EnsureInput{
		ExternalID: ev.Data.ID,
		Name:       strings.TrimSpace(ev.Data.FirstName + " " + ev.Data.LastName),
		ImageURL:   ev.Data.ImageURL,
	}
	if len(ev.Data.EmailAddresses) > 0 {
		in.Email = ev.Data.EmailAddresses[0].EmailAddress
	}
	u, created, err := s.users.Ensure(ctx, in)
	if err != nil {
		return err
	}
	if created {
		slog.InfoContext(ctx, "user registered", "user_id", u.ID, "external_id", u.ExternalID)
	}
	return nil
}
