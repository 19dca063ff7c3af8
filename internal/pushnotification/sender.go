package pushnotification

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/clawmart/clawmart/internal/config"
	"github.com/clawmart/clawmart/internal/metrics"
	"github.com/clawmart/clawmart/internal/pushsubscription"
)

// Delivery results.
const (
	ResultSent    = "sent"
	ResultExpired = "expired"
	ResultFailed  = "failed"
)

type NotificationPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

type Sender struct {
	vapid  config.VAPIDEnv
	repo   pushsubscription.Repository
	client webpush.HTTPClient
}

// NewSender builds a sender. A nil client uses http.DefaultClient.
func NewSender(vapid config.VAPIDEnv, repo pushsubscription.Repository, client webpush.HTTPClient) *Sender {
	return &Sender{vapid: vapid, repo: repo, client: client}
}

// SendToUser delivers payload to every subscription registered by userID and returns
// how many deliveries the push services accepted.
func (s *Sender) SendToUser(ctx context.Context, userID string, payload *NotificationPayload) int {
	if !s.vapid.Enabled() {
		slog.DebugContext(ctx, "push notification: VAPID keys not configured, skipping")
		return 0
	}

	subs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		slog.ErrorContext(ctx, "push notification: failed to list subscriptions", "user_id", userID, "error", err)
		return 0
	}
	if len(subs) == 0 {
		return 0
	}

	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "push notification: failed to marshal payload", "error", err)
		return 0
	}

	var sent int
	for _, sub := range subs {
		result := s.sendToSubscription(ctx, sub, data)
		metrics.PushDeliveries.WithLabelValues(result).Inc()
		if result == ResultSent {
			sent++
		}
	}
	return sent
}

func (s *Sender) sendToSubscription(ctx context.Context, sub *pushsubscription.Subscription, data []byte) string {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}

	resp, err := webpush.SendNotificationWithContext(ctx, data, wpSub, &webpush.Options{
		HTTPClient:      s.client,
		VAPIDPublicKey:  s.vapid.PublicKey,
		VAPIDPrivateKey: s.vapid.PrivateKey,
		Subscriber:      s.vapid.Contact,
		TTL:             86400,
		Urgency:         webpush.UrgencyNormal,
	})
	if err != nil {
		slog.ErrorContext(ctx, "push notification: failed to send", "endpoint", sub.Endpoint, "error", err)
		return ResultFailed
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		slog.InfoContext(ctx, "push notification: subscription expired, removing", "endpoint", sub.Endpoint)
		if err := s.repo.Delete(ctx, sub.ID); err != nil {
			slog.ErrorContext(ctx, "push notification: failed to delete expired subscription", "id", sub.ID, "error", err)
		}
		return ResultExpired
	}

	if resp.StatusCode >= 400 {
		slog.WarnContext(ctx, "push notification: unexpected status", "endpoint", sub.Endpoint, "status", resp.StatusCode)
		return ResultFailed
	}
	return ResultSent
}
