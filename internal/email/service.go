package email

import (
	"context"

	"go.uber.org/zap"

	"yield-monitor-go/internal/metrics"
	"yield-monitor-go/internal/models"
)

const channel = "email"

type Config struct {
	From         string
	WelcomeFrom  string
	DashboardURL string
}

type Service struct {
	mailer Mailer
	cfg    Config
	log    *zap.Logger
}

// NewService accepts a nil mailer; every send then fails with
// ErrEmailDisabled.
func NewService(mailer Mailer, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.From == "" {
		cfg.From = "Morpho Yield Monitor <onboarding@resend.dev>"
	}
	if cfg.WelcomeFrom == "" {
		cfg.WelcomeFrom = cfg.From
	}
	return &Service{mailer: mailer, cfg: cfg, log: logger.Named("email")}
}

func (s *Service) Enabled() bool {
	return s.mailer != nil
}

func (s *Service) send(ctx context.Context, msg Message) error {
	if s.mailer == nil {
		s.log.Warn("email sending disabled", zap.Strings("to", msg.To))
		metrics.RecordNotificationSkipped(channel)
		return ErrEmailDisabled
	}
	id, err := s.mailer.Send(ctx, msg)
	metrics.RecordNotification(channel, err)
	if err != nil {
		s.log.Error("failed to send email", zap.Strings("to", msg.To), zap.Error(err))
		return err
	}
	s.log.Info("email sent", zap.Strings("to", msg.To), zap.String("id", id))
	return nil
}

// SendYieldSummary emails the daily digest for address to recipient.
func (s *Service) SendYieldSummary(ctx context.Context, recipient, address string, data *models.YieldNotificationData, rewards *models.ClaimableRewardsData) error {
	html, err := RenderYieldSummary(data, rewards, s.cfg.DashboardURL)
	if err != nil {
		return err
	}
	return s.send(ctx, Message{
		From:    s.cfg.From,
		To:      []string{recipient},
		Subject: Subject(data),
		HTML:    html,
		Headers: map[string]string{
			"X-Entity-Ref-ID":     address,
			"X-Notification-Type": "yield-summary",
		},
	})
}

// Preview renders the digest HTML without sending it.
func (s *Service) Preview(data *models.YieldNotificationData, rewards *models.ClaimableRewardsData) (string, error) {
	return RenderYieldSummary(data, rewards, s.cfg.DashboardURL)
}

func (s *Service) SendWelcome(ctx context.Context, recipient, address string) error {
	html, err := RenderWelcome(address, s.cfg.DashboardURL)
	if err != nil {
		return err
	}
	return s.send(ctx, Message{
		From:    s.cfg.WelcomeFrom,
		To:      []string{recipient},
		Subject: "🎉 Welcome to Morpho Yield Portal Notifications",
		HTML:    html,
	})
}

// SendTest sends the digest filled with sample data.
func (s *Service) SendTest(ctx context.Context, recipient string) error {
	rewards := SampleRewards()
	return s.SendYieldSummary(ctx, recipient, SampleAddress, SampleYieldData(), &rewards)
}

// SampleAddress is the wallet shown in sample emails.
const SampleAddress = "0x742d35Cc6634C0532925a3b8D99D94e13aECCeA8"

func SampleYieldData() *models.YieldNotificationData {
	return &models.YieldNotificationData{
		TotalBalance:       "142341.89",
		TotalDeposited:     "140000.00",
		TotalYield:         "2341.89",
		YieldPercentage:    1.67,
		Yield24h:           "45.23",
		Yield24hPercentage: 0.32,
		VaultBreakdown: []models.VaultBreakdown{
			{Name: "Alpha USDC Catalyst", Balance: "85420.12", Yield: "1420.12", APY: 4.2},
			{Name: "Relend USDC", Balance: "32156.77", Yield: "612.34", APY: 3.8},
			{Name: "OEV-boosted USDC", Balance: "18765.00", Yield: "245.67", APY: 2.9},
			{Name: "Gauntlet USDC Core", Balance: "6000.00", Yield: "63.76", APY: 2.1},
		},
	}
}

func SampleRewards() models.ClaimableRewardsData {
	return models.ClaimableRewardsData{USDC: 175.93, Morpho: 52.16, FXN: 0.02, Total: 303.90}
}
