package notify

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"yield-monitor-go/internal/metrics"
	"yield-monitor-go/internal/models"
	"yield-monitor-go/internal/store"
	"yield-monitor-go/internal/yield"
)

var ErrNotSubscribed = errors.New("user not subscribed to notifications")

const channel = "push"

// Subscriptions is the part of the store the service needs.
type Subscriptions interface {
	GetSubscription(ctx context.Context, address string) (models.UserSubscription, error)
	RemoveSubscription(ctx context.Context, address string) error
	UpdateLastNotified(ctx context.Context, address string, at time.Time) error
}

type Service struct {
	subs   Subscriptions
	sender Sender
	log    *zap.Logger
	now    func() time.Time
}

func NewService(subs Subscriptions, sender Sender, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{subs: subs, sender: sender, log: logger.Named("notify"), now: time.Now}
}

// YieldPayload builds the daily summary notification.
func YieldPayload(address string, data *models.YieldNotificationData, at time.Time) models.PushPayload {
	balance, err := decimal.NewFromString(data.TotalBalance)
	if err != nil {
		balance = decimal.Zero
	}
	return models.PushPayload{
		Title: "📈 Daily Yield Update",
		Body:  "Total: $" + balance.StringFixed(2) + " | 24h: " + yield.SignedPercentage(data.Yield24hPercentage),
		Data: map[string]any{
			"address":   address,
			"yieldData": data,
			"timestamp": at.UnixMilli(),
		},
	}
}

func (s *Service) subscription(ctx context.Context, address string) (models.UserSubscription, error) {
	sub, err := s.subs.GetSubscription(ctx, address)
	if errors.Is(err, store.ErrNotFound) {
		return models.UserSubscription{}, ErrNotSubscribed
	}
	return sub, err
}

// deliver sends payload and drops the subscription when the push service
// reports it gone.
func (s *Service) deliver(ctx context.Context, address string, sub models.PushSubscription, payload models.PushPayload) error {
	err := s.sender.Send(ctx, sub, payload)
	metrics.RecordNotification(channel, err)
	if errors.Is(err, ErrSubscriptionGone) {
		s.log.Info("removing expired push subscription", zap.String("address", address))
		if rmErr := s.subs.RemoveSubscription(ctx, address); rmErr != nil {
			s.log.Error("failed to remove expired subscription", zap.String("address", address), zap.Error(rmErr))
		}
	}
	return err
}

// SendYield pushes the yield summary to address and records the delivery
// time.
func (s *Service) SendYield(ctx context.Context, address string, data *models.YieldNotificationData) error {
	if data == nil {
		return errors.New("yield data required")
	}
	sub, err := s.subscription(ctx, address)
	if err != nil {
		return err
	}

	now := s.now()
	if err := s.deliver(ctx, address, sub.Subscription, YieldPayload(address, data, now)); err != nil {
		return err
	}
	if err := s.subs.UpdateLastNotified(ctx, address, now.UTC()); err != nil {
		s.log.Warn("failed to update last notified", zap.String("address", address), zap.Error(err))
	}
	s.log.Info("yield notification sent", zap.String("address", address))
	return nil
}

// Welcome confirms a new subscription.
func (s *Service) Welcome(ctx context.Context, address string, sub models.PushSubscription) error {
	return s.deliver(ctx, address, sub, models.PushPayload{
		Title: "🔔 Notifications Enabled!",
		Body:  "You'll now receive daily yield updates from your Morpho vaults.",
		Data:  map[string]any{"type": "welcome", "address": address},
	})
}

// Test sends a test notification to a subscribed address.
func (s *Service) Test(ctx context.Context, address string) error {
	sub, err := s.subscription(ctx, address)
	if err != nil {
		return err
	}
	return s.deliver(ctx, address, sub.Subscription, models.PushPayload{
		Title: "🧪 Test Notification",
		Body:  "Push notifications are working for " + yield.TruncateAddress(address, 4) + ".",
		Data:  map[string]any{"type": "test", "address": address, "timestamp": s.now().UnixMilli()},
	})
}
