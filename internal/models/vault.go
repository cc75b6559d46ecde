package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultSharePrice is 1.0 expressed in a 6-decimal asset's base units, the
// fallback the Morpho API implies when a vault reports no share price.
var DefaultSharePrice = decimal.NewFromInt(1_000_000)

type Asset struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name,omitempty"`
	Decimals int32  `json:"decimals"`
}

type RewardToken struct {
	SupplyAPR float64 `json:"supplyApr"`
	Asset     *Asset  `json:"asset,omitempty"`
}

// APY values are percentages (4.2 means 4.2%).
type APY struct {
	Base         float64       `json:"base"`
	Rewards      float64       `json:"rewards"`
	RewardTokens []RewardToken `json:"rewardTokens,omitempty"`
}

func (a APY) Total() float64 {
	return a.Base + a.Rewards
}

type Vault struct {
	ID          string          `json:"id"`
	ChainID     int             `json:"chainId"`
	Name        string          `json:"name"`
	Address     string          `json:"address"`
	TotalAssets string          `json:"totalAssets"`
	TotalSupply string          `json:"totalSupply"`
	SharePrice  decimal.Decimal `json:"sharePrice"`
	APY         APY             `json:"apy"`
	Asset       Asset           `json:"asset"`
}

type VaultRef struct {
	ID      string `json:"id"`
	Address string `json:"address"`
	Name    string `json:"name"`
	Asset   Asset  `json:"asset"`
}

// Position is a user's share balance in one vault. Balance, Deposited and
// Withdrawn are in asset units.
type Position struct {
	Vault      VaultRef        `json:"vault"`
	Balance    decimal.Decimal `json:"balance"`
	Deposited  decimal.Decimal `json:"deposited"`
	Withdrawn  decimal.Decimal `json:"withdrawn"`
	Shares     string          `json:"shares"`
	SharePrice decimal.Decimal `json:"sharePrice"`
	Timestamp  int64           `json:"timestamp,omitempty"`
	APY        *APY            `json:"apy,omitempty"`
}

type TransactionType string

const (
	TxDeposit  TransactionType = "MetaMorphoDeposit"
	TxWithdraw TransactionType = "MetaMorphoWithdraw"
)

type TransactionVault struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
	Name    string `json:"name"`
}

type TransactionData struct {
	Shares    string           `json:"shares"`
	Assets    decimal.Decimal  `json:"assets"`
	AssetsUSD decimal.Decimal  `json:"assetsUsd"`
	Vault     TransactionVault `json:"vault"`
}

type Transaction struct {
	ID        string          `json:"id"`
	Timestamp int64           `json:"timestamp"`
	Hash      string          `json:"hash"`
	Type      TransactionType `json:"type"`
	Data      TransactionData `json:"data"`
}

type YieldCalculation struct {
	CurrentBalance  decimal.Decimal `json:"currentBalance"`
	TotalDeposited  decimal.Decimal `json:"totalDeposited"`
	TotalWithdrawn  decimal.Decimal `json:"totalWithdrawn"`
	NetYield        decimal.Decimal `json:"netYield"`
	YieldPercentage float64         `json:"yieldPercentage"`
	PricePerShare   decimal.Decimal `json:"pricePerShare"`
}

type VaultWithYield struct {
	Vault
	UserPosition *Position        `json:"userPosition,omitempty"`
	YieldData    *YieldCalculation `json:"yieldData,omitempty"`
}

// CurrentBalance is zero for vaults the user holds nothing in.
func (v VaultWithYield) CurrentBalance() decimal.Decimal {
	if v.YieldData == nil {
		return decimal.Zero
	}
	return v.YieldData.CurrentBalance
}

func (v VaultWithYield) NetYield() decimal.Decimal {
	if v.YieldData == nil {
		return decimal.Zero
	}
	return v.YieldData.NetYield
}

type ChainVaultData struct {
	ChainID       int              `json:"chainId"`
	ChainName     string           `json:"chainName"`
	Vaults        []VaultWithYield `json:"vaults"`
	Transactions  []Transaction    `json:"transactions,omitempty"`
	TotalNetYield decimal.Decimal  `json:"totalNetYield"`
	Error         string           `json:"error,omitempty"`
}

type VaultBreakdown struct {
	Name    string  `json:"name"`
	Balance string  `json:"balance"`
	Yield   string  `json:"yield"`
	APY     float64 `json:"apy"`
}

// YieldNotificationData is the cross-chain summary sent in push and email
// notifications. Amounts are fixed 6-decimal strings.
type YieldNotificationData struct {
	TotalBalance       string           `json:"totalBalance"`
	TotalDeposited     string           `json:"totalDeposited"`
	TotalYield         string           `json:"totalYield"`
	YieldPercentage    float64          `json:"yieldPercentage"`
	Yield24h           string           `json:"yield24h"`
	Yield24hPercentage float64          `json:"yield24hPercentage"`
	VaultBreakdown     []VaultBreakdown `json:"vaultBreakdown"`
}

// YieldSnapshot is a row of yield_history.
type YieldSnapshot struct {
	Timestamp      time.Time       `json:"timestamp"`
	TotalBalance   decimal.Decimal `json:"totalBalance"`
	TotalDeposited decimal.Decimal `json:"totalDeposited"`
	TotalYield     decimal.Decimal `json:"totalYield"`
	ChainData      json.RawMessage `json:"chainData,omitempty"`
}

// ChainTotals is stored as a snapshot's chain data.
type ChainTotals struct {
	ChainID   int             `json:"chainId"`
	Balance   decimal.Decimal `json:"balance"`
	Deposited decimal.Decimal `json:"deposited"`
	Yield     decimal.Decimal `json:"yield"`
	Vaults    int             `json:"vaults"`
}
