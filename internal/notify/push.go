// Package notify delivers Web Push notifications to subscribed wallets.
package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"yield-monitor-go/internal/models"
)

// ErrSubscriptionGone means the push service no longer knows the endpoint.
var ErrSubscriptionGone = errors.New("push subscription expired")

// Sender delivers one payload to one subscription.
type Sender interface {
	Send(ctx context.Context, sub models.PushSubscription, payload models.PushPayload) error
}

type VAPIDConfig struct {
	PublicKey  string
	PrivateKey string
	Subject    string
	// TTL in seconds the push service keeps an undelivered message.
	TTL int
}

// EnsureVAPIDKeys fills in a fresh key pair when either key is missing and
// logs it so it can be persisted.
func EnsureVAPIDKeys(cfg *VAPIDConfig, logger *zap.Logger) error {
	if cfg.PublicKey != "" && cfg.PrivateKey != "" {
		return nil
	}
	logger.Warn("VAPID keys not found in environment, generating new keys")
	priv, pub, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return errors.Wrap(err, "failed to generate VAPID keys")
	}
	cfg.PrivateKey, cfg.PublicKey = priv, pub
	logger.Info("generated VAPID keys, add these to your .env file to persist them",
		zap.String("VAPID_PUBLIC_KEY", pub), zap.String("VAPID_PRIVATE_KEY", priv))
	return nil
}

// Pusher sends notifications through webpush with VAPID authentication.
type Pusher struct {
	cfg    VAPIDConfig
	client webpush.HTTPClient
}

func NewPusher(cfg VAPIDConfig, hc *http.Client) *Pusher {
	if cfg.TTL == 0 {
		cfg.TTL = 86400
	}
	p := &Pusher{cfg: cfg}
	if hc != nil {
		p.client = hc
	}
	return p
}

func (p *Pusher) PublicKey() string {
	return p.cfg.PublicKey
}

func (p *Pusher) Send(ctx context.Context, sub models.PushSubscription, payload models.PushPayload) error {
	if !sub.Valid() {
		return errors.New("invalid subscription format")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	s := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}
	resp, err := webpush.SendNotificationWithContext(ctx, body, s, &webpush.Options{
		HTTPClient:      p.client,
		Subscriber:      p.cfg.Subject,
		VAPIDPublicKey:  p.cfg.PublicKey,
		VAPIDPrivateKey: p.cfg.PrivateKey,
		TTL:             p.cfg.TTL,
	})
	if err != nil {
		return errors.Wrap(err, "failed to send push notification")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrSubscriptionGone
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("push service returned %d: %s", resp.StatusCode, msg)
	}
	return nil
}
