package email

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yield-monitor-go/internal/models"
)

type captureMailer struct {
	sent []Message
	err  error
}

func (c *captureMailer) Send(_ context.Context, msg Message) (string, error) {
	c.sent = append(c.sent, msg)
	if c.err != nil {
		return "", c.err
	}
	return "msg_1", nil
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("user@example.com"))
	assert.True(t, ValidEmail("a.b+c@sub.example.io"))
	assert.False(t, ValidEmail("user@example"))
	assert.False(t, ValidEmail("user example@x.com"))
	assert.False(t, ValidEmail("@example.com"))
	assert.False(t, ValidEmail(""))
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "💰 Daily Yield: +$2341.89 Total | +$45.23 24h", Subject(SampleYieldData()))

	data := &models.YieldNotificationData{TotalYield: "-12.5", Yield24h: "0"}
	assert.Equal(t, "💰 Daily Yield: -$12.50 Total | $0.00 24h", Subject(data))
}

func TestRenderYieldSummary(t *testing.T) {
	rewards := SampleRewards()
	html, err := RenderYieldSummary(SampleYieldData(), &rewards, "https://dash.example/")
	require.NoError(t, err)

	assert.Contains(t, html, "$142,341.89")
	// html/template encodes "+" in text nodes.
	assert.Contains(t, html, "&#43;$2,341.89")
	assert.Contains(t, html, "&#43;1.67%")
	assert.Contains(t, html, "📈 &#43;$45.23 (&#43;0.32%)")
	assert.Contains(t, html, "Claimable Rewards")
	assert.Contains(t, html, "$303.90")
	assert.Contains(t, html, "0.0200")
	assert.Contains(t, html, "Gauntlet USDC Core")
	assert.Contains(t, html, "4.20%")
	assert.Contains(t, html, `href="https://dash.example/unsubscribe"`)
}

func TestRenderYieldSummaryWithoutRewards(t *testing.T) {
	data := SampleYieldData()
	for i := 0; i < 3; i++ {
		data.VaultBreakdown = append(data.VaultBreakdown, models.VaultBreakdown{Name: "Extra Vault", Balance: "1", Yield: "-1"})
	}
	html, err := RenderYieldSummary(data, &models.ClaimableRewardsData{}, "https://dash.example")
	require.NoError(t, err)

	assert.NotContains(t, html, "Claimable Rewards")
	assert.Equal(t, 1, strings.Count(html, "Extra Vault"), "breakdown is capped at five rows")
	assert.Contains(t, html, "-$1.00")
}

func TestRenderWelcomeEscapesAddress(t *testing.T) {
	html, err := RenderWelcome("<script>", "https://dash.example")
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
}

func TestServiceSendYieldSummary(t *testing.T) {
	m := &captureMailer{}
	svc := NewService(m, Config{From: "Monitor <m@example.com>", DashboardURL: "https://dash.example"}, nil)

	require.NoError(t, svc.SendTest(context.Background(), "user@example.com"))
	require.Len(t, m.sent, 1)
	msg := m.sent[0]
	assert.Equal(t, "Monitor <m@example.com>", msg.From)
	assert.Equal(t, []string{"user@example.com"}, msg.To)
	assert.Equal(t, SampleAddress, msg.Headers["X-Entity-Ref-ID"])
	assert.Equal(t, "yield-summary", msg.Headers["X-Notification-Type"])
	assert.Contains(t, msg.HTML, "Alpha USDC Catalyst")
}

func TestServiceWelcomeUsesWelcomeSender(t *testing.T) {
	m := &captureMailer{}
	svc := NewService(m, Config{From: "a@example.com", WelcomeFrom: "w@example.com"}, nil)

	require.NoError(t, svc.SendWelcome(context.Background(), "user@example.com", "0xabc"))
	assert.Equal(t, "w@example.com", m.sent[0].From)
	assert.Contains(t, m.sent[0].Subject, "Welcome")
}

func TestServiceDisabledAndFailing(t *testing.T) {
	svc := NewService(nil, Config{}, nil)
	assert.False(t, svc.Enabled())
	assert.ErrorIs(t, svc.SendWelcome(context.Background(), "u@example.com", "0xabc"), ErrEmailDisabled)

	boom := errors.New("rate limited")
	svc = NewService(&captureMailer{err: boom}, Config{}, nil)
	assert.ErrorIs(t, svc.SendTest(context.Background(), "u@example.com"), boom)
}

func TestDescribeKey(t *testing.T) {
	assert.False(t, DescribeKey("").Configured)

	info := DescribeKey("re_1234567890abcdef")
	assert.True(t, info.Configured)
	assert.Equal(t, 19, info.Length)
	assert.Equal(t, "re_12345...", info.Prefix)
}

func TestNilResendMailer(t *testing.T) {
	var m *ResendMailer = NewResendMailer("")
	assert.Nil(t, m)
	_, err := m.Send(context.Background(), Message{})
	assert.ErrorIs(t, err, ErrEmailDisabled)
}
