package models

import "github.com/shopspring/decimal"

// Reward source names as reported in CombinedReward.Sources.
const (
	SourceMerkl               = "merkl"
	SourceMorphoRewards       = "morpho-rewards"
	SourceMorphoDistributions = "morpho-distributions"
)

// CombinedReward is one reward token merged across Merkl and the Morpho
// rewards APIs. Amounts are in token units, values in USD.
type CombinedReward struct {
	Symbol         string          `json:"symbol"`
	Name           string          `json:"name"`
	Address        string          `json:"address"`
	Claimable      decimal.Decimal `json:"claimable"`
	Accruing       decimal.Decimal `json:"accruing"`
	ClaimableValue decimal.Decimal `json:"claimableValue"`
	AccruingValue  decimal.Decimal `json:"accruingValue"`
	Price          decimal.Decimal `json:"price"`
	Sources        []string        `json:"sources"`
}

// ClaimableRewardsData is the condensed rewards block of the email summary.
type ClaimableRewardsData struct {
	USDC   float64 `json:"usdc"`
	Morpho float64 `json:"morpho"`
	FXN    float64 `json:"fxn"`
	Total  float64 `json:"total"`
}
