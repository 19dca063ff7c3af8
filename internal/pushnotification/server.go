package pushnotification

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/clawmart/clawmart/internal/config"
	"github.com/clawmart/clawmart/internal/pushsubscription"
	"github.com/clawmart/clawmart/internal/user"
	"github.com/clawmart/clawmart/pkg/cerr"
)

type UserResolver interface {
	Resolve(ctx context.Context, externalID string) (*user.User, error)
}

type Server struct {
	vapid  config.VAPIDEnv
	repo   pushsubscription.Repository
	users  UserResolver
	sender *Sender
}

func NewServer(vapid config.VAPIDEnv, repo pushsubscription.Repository, users UserResolver, sender *Sender) *Server {
	return &Server{vapid: vapid, repo: repo, users: users, sender: sender}
}

func (s *Server) VAPIDPublicKey() (string, error) {
	if s.vapid.PublicKey == "" {
		return "", cerr.NewError(cerr.FailedPrecondition, "VAPID keys not configured", nil)
	}
	return s.vapid.PublicKey, nil
}

// RegisterInput mirrors the browser's PushSubscription JSON.
type RegisterInput struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// Register stores a push endpoint for the caller. Registering a known endpoint
// refreshes its keys and moves it to the caller.
func (s *Server) Register(ctx context.Context, externalID string, in RegisterInput) (*pushsubscription.Subscription, error) {
	in.Endpoint = strings.TrimSpace(in.Endpoint)
	switch {
	case in.Endpoint == "":
		return nil, cerr.NewError(cerr.InvalidArgument, "endpoint is required", nil)
	case in.Keys.P256dh == "":
		return nil, cerr.NewError(cerr.InvalidArgument, "keys.p256dh is required", nil)
	case in.Keys.Auth == "":
		return nil, cerr.NewError(cerr.InvalidArgument, "keys.auth is required", nil)
	}
	u, err := s.users.Resolve(ctx, externalID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByEndpoint(ctx, in.Endpoint)
	if err == nil {
		existing.UserID = u.ID
		existing.P256dhKey = in.Keys.P256dh
		existing.AuthKey = in.Keys.Auth
		if err := s.repo.Update(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}
	if !cerr.IsCode(err, cerr.NotFound) {
		return nil, err
	}

	sub := &pushsubscription.Subscription{
		ID:        ulid.Make().String(),
		UserID:    u.ID,
		Endpoint:  in.Endpoint,
		P256dhKey: in.Keys.P256dh,
		AuthKey:   in.Keys.Auth,
		CreatedAt: time.Now(),
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Unregister removes one of the caller's endpoints. Endpoints of other users read as absent.
func (s *Server) Unregister(ctx context.Context, externalID, endpoint string) error {
	if endpoint == "" {
		return cerr.NewError(cerr.InvalidArgument, "endpoint is required", nil)
	}
	u, err := s.users.Resolve(ctx, externalID)
	if err != nil {
		return err
	}
	sub, err := s.repo.FindByEndpoint(ctx, endpoint)
	if err != nil {
		return err
	}
	if sub.UserID != u.ID {
		return cerr.NewError(cerr.NotFound, "push subscription not found", nil)
	}
	return s.repo.Delete(ctx, sub.ID)
}

// SendTest pushes a test notification to the caller's devices.
func (s *Server) SendTest(ctx context.Context, externalID string) (int, error) {
	u, err := s.users.Resolve(ctx, externalID)
	if err != nil {
		return 0, err
	}
	return s.sender.SendToUser(ctx, u.ID, &NotificationPayload{
		Title: "ClawMart",
		Body:  "Push notifications are working!",
	}), nil
}
