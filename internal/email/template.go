package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"

	"yield-monitor-go/internal/models"
	"yield-monitor-go/internal/yield"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// maxVaultRows caps the breakdown table.
const maxVaultRows = 5

type rewardItem struct {
	Symbol string
	Amount string
}

type rewardsView struct {
	Total string
	Items []rewardItem
}

type vaultRow struct {
	Name       string
	Balance    string
	Yield      string
	YieldClass string
	APY        string
}

type summaryView struct {
	TotalBalance       string
	TotalDeposited     string
	TotalEarned        string
	EarnedClass        string
	YieldPercentage    string
	YieldPctClass      string
	Yield24h           string
	Yield24hPercentage string
	ChangeClass        string
	TrendIcon          string
	Rewards            *rewardsView
	Vaults             []vaultRow
	DashboardURL       string
}

func parseAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// signedCurrency prefixes positive amounts with "+".
func signedCurrency(d decimal.Decimal) string {
	s := yield.FormatCurrency(d, 2)
	if d.IsPositive() {
		return "+" + s
	}
	return s
}

func floatClass(v float64) string {
	return yield.ValueClass(decimal.NewFromFloat(v))
}

func trendIcon(d decimal.Decimal) string {
	switch {
	case d.IsPositive():
		return "📈"
	case d.IsNegative():
		return "📉"
	}
	return "➡️"
}

func buildSummaryView(data *models.YieldNotificationData, rewards *models.ClaimableRewardsData, dashboardURL string) summaryView {
	earned := parseAmount(data.TotalYield)
	change := parseAmount(data.Yield24h)

	v := summaryView{
		TotalBalance:       yield.FormatCurrency(parseAmount(data.TotalBalance), 2),
		TotalDeposited:     yield.FormatCurrency(parseAmount(data.TotalDeposited), 2),
		TotalEarned:        signedCurrency(earned),
		EarnedClass:        yield.ValueClass(earned),
		YieldPercentage:    yield.SignedPercentage(data.YieldPercentage),
		YieldPctClass:      floatClass(data.YieldPercentage),
		Yield24h:           signedCurrency(change),
		Yield24hPercentage: yield.SignedPercentage(data.Yield24hPercentage),
		ChangeClass:        yield.ValueClass(change),
		TrendIcon:          trendIcon(change),
		DashboardURL:       strings.TrimRight(dashboardURL, "/"),
	}

	if rewards != nil && rewards.Total > 0 {
		rv := &rewardsView{Total: yield.FormatCurrency(decimal.NewFromFloat(rewards.Total), 2)}
		if rewards.USDC > 0 {
			rv.Items = append(rv.Items, rewardItem{"USDC", fmt.Sprintf("%.2f", rewards.USDC)})
		}
		if rewards.Morpho > 0 {
			rv.Items = append(rv.Items, rewardItem{"MORPHO", fmt.Sprintf("%.2f", rewards.Morpho)})
		}
		if rewards.FXN > 0 {
			rv.Items = append(rv.Items, rewardItem{"FXN", fmt.Sprintf("%.4f", rewards.FXN)})
		}
		v.Rewards = rv
	}

	for i, vb := range data.VaultBreakdown {
		if i == maxVaultRows {
			break
		}
		y := parseAmount(vb.Yield)
		v.Vaults = append(v.Vaults, vaultRow{
			Name:       vb.Name,
			Balance:    yield.FormatCurrency(parseAmount(vb.Balance), 2),
			Yield:      signedCurrency(y),
			YieldClass: yield.ValueClass(y),
			APY:        yield.FormatPercentage(vb.APY, 2),
		})
	}
	return v
}

// RenderYieldSummary renders the daily summary email. The rewards block is
// omitted when rewards is nil or totals zero.
func RenderYieldSummary(data *models.YieldNotificationData, rewards *models.ClaimableRewardsData, dashboardURL string) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "summary.html", buildSummaryView(data, rewards, dashboardURL)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func RenderWelcome(address, dashboardURL string) (string, error) {
	var buf bytes.Buffer
	err := templates.ExecuteTemplate(&buf, "welcome.html", map[string]string{
		"Address":      address,
		"DashboardURL": strings.TrimRight(dashboardURL, "/"),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Subject summarises total and 24h earnings, e.g.
// "💰 Daily Yield: +$2341.89 Total | +$45.23 24h".
func Subject(data *models.YieldNotificationData) string {
	return fmt.Sprintf("💰 Daily Yield: %s Total | %s 24h",
		yield.SignedUSD(parseAmount(data.TotalYield)),
		yield.SignedUSD(parseAmount(data.Yield24h)))
}
