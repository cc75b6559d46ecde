// Package yield turns vault positions and deposit/withdraw history into
// yield figures.
package yield

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"yield-monitor-go/internal/chains"
	"yield-monitor-go/internal/models"
)

var hundred = decimal.NewFromInt(100)

// FromTransactions computes the yield of one position from the user's
// transaction log. Only transactions against vault count; amounts are the
// USD value at transaction time.
//
//	netYield = currentBalance - (totalDeposited - totalWithdrawn)
func FromTransactions(vault models.Vault, position models.Position, txs []models.Transaction) models.YieldCalculation {
	deposited, withdrawn := decimal.Zero, decimal.Zero
	for _, tx := range txs {
		if !models.SameAddress(tx.Data.Vault.Address, vault.Address) {
			continue
		}
		switch tx.Type {
		case models.TxDeposit:
			deposited = deposited.Add(tx.Data.AssetsUSD)
		case models.TxWithdraw:
			withdrawn = withdrawn.Add(tx.Data.AssetsUSD)
		}
	}
	return calculate(position, deposited, withdrawn)
}

// FromPosition computes yield from the deposited/withdrawn figures carried
// on the position itself. Used when no transaction history is available.
func FromPosition(position models.Position) models.YieldCalculation {
	return calculate(position, position.Deposited, position.Withdrawn)
}

func calculate(position models.Position, deposited, withdrawn decimal.Decimal) models.YieldCalculation {
	balance := position.Balance
	net := balance.Sub(deposited.Sub(withdrawn))

	return models.YieldCalculation{
		CurrentBalance:  balance,
		TotalDeposited:  deposited,
		TotalWithdrawn:  withdrawn,
		NetYield:        net,
		YieldPercentage: percentOf(net, deposited),
		PricePerShare:   scaledSharePrice(position.SharePrice, position.Vault.Asset.Decimals),
	}
}

// percentOf returns part/whole*100, or 0 when whole is not positive.
func percentOf(part, whole decimal.Decimal) float64 {
	if !whole.IsPositive() {
		return 0
	}
	return part.Div(whole).Mul(hundred).InexactFloat64()
}

func scaledSharePrice(price decimal.Decimal, assetDecimals int32) decimal.Decimal {
	if price.IsZero() {
		price = models.DefaultSharePrice
	}
	return price.Shift(-assetDecimals)
}

// PricePerShare returns the vault's share price in asset units.
func PricePerShare(vault models.Vault) decimal.Decimal {
	return scaledSharePrice(vault.SharePrice, vault.Asset.Decimals)
}

// Combine attaches a user's position to a vault and computes its yield,
// preferring the transaction log when one is available.
func Combine(vault models.Vault, position *models.Position, txs []models.Transaction) models.VaultWithYield {
	out := models.VaultWithYield{Vault: vault}
	if position == nil {
		return out
	}

	p := *position
	out.UserPosition = &p

	var calc models.YieldCalculation
	if len(txs) > 0 {
		calc = FromTransactions(vault, p, txs)
	} else {
		calc = FromPosition(p)
	}
	out.YieldData = &calc
	return out
}

// BuildChainVaults combines every listed vault with the user's position in
// it. Positions in vaults missing from the listing are appended as synthetic
// vaults so that no holding is dropped.
func BuildChainVaults(chainID int, vaults []models.Vault, positions []models.Position, txs []models.Transaction) models.ChainVaultData {
	out := models.ChainVaultData{
		ChainID:      chainID,
		ChainName:    chains.Name(chainID),
		Vaults:       make([]models.VaultWithYield, 0, len(vaults)),
		Transactions: txs,
	}

	for _, v := range vaults {
		out.Vaults = append(out.Vaults, Combine(v, findPosition(positions, v.Address), txs))
	}

	for i := range positions {
		p := positions[i]
		if hasVault(vaults, p.Vault.Address) {
			continue
		}
		out.Vaults = append(out.Vaults, Combine(syntheticVault(chainID, p), &p, txs))
	}

	out.TotalNetYield = TotalNetYield(out.Vaults)
	return out
}

func findPosition(positions []models.Position, vaultAddress string) *models.Position {
	for i := range positions {
		if models.SameAddress(positions[i].Vault.Address, vaultAddress) {
			return &positions[i]
		}
	}
	return nil
}

func hasVault(vaults []models.Vault, address string) bool {
	for _, v := range vaults {
		if models.SameAddress(v.Address, address) {
			return true
		}
	}
	return false
}

// syntheticVault stands in for a vault the listing did not return. Total
// assets are a rough estimate that treats the user as 1% of the vault.
func syntheticVault(chainID int, p models.Position) models.Vault {
	apy := models.APY{}
	if p.APY != nil {
		apy = *p.APY
	}
	estimated := p.Balance.Mul(hundred).Shift(p.Vault.Asset.Decimals).Truncate(0)

	return models.Vault{
		ID:          p.Vault.Address,
		ChainID:     chainID,
		Name:        p.Vault.Name,
		Address:     p.Vault.Address,
		TotalAssets: estimated.String(),
		TotalSupply: "0",
		SharePrice:  models.DefaultSharePrice,
		APY:         apy,
		Asset:       p.Vault.Asset,
	}
}

// TotalNetYield sums net yield over vaults that carry yield data.
func TotalNetYield(vaults []models.VaultWithYield) decimal.Decimal {
	total := decimal.Zero
	for _, v := range vaults {
		total = total.Add(v.NetYield())
	}
	return total
}

type SortKey string

const (
	SortByAPY     SortKey = "apy"
	SortByYield   SortKey = "yield"
	SortByBalance SortKey = "balance"
	SortByName    SortKey = "name"
)

// SortVaults returns a sorted copy. Numeric keys sort descending, names
// ascending; unknown keys keep the input order.
func SortVaults(vaults []models.VaultWithYield, by SortKey) []models.VaultWithYield {
	out := make([]models.VaultWithYield, len(vaults))
	copy(out, vaults)

	var less func(a, b models.VaultWithYield) bool
	switch by {
	case SortByAPY:
		less = func(a, b models.VaultWithYield) bool { return a.APY.Total() > b.APY.Total() }
	case SortByYield:
		less = func(a, b models.VaultWithYield) bool { return a.NetYield().GreaterThan(b.NetYield()) }
	case SortByBalance:
		less = func(a, b models.VaultWithYield) bool { return a.CurrentBalance().GreaterThan(b.CurrentBalance()) }
	case SortByName:
		less = func(a, b models.VaultWithYield) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	default:
		return out
	}

	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// RewardAmount estimates the annual reward for balance at rewardAPR percent,
// formatted in the reward token.
func RewardAmount(balance decimal.Decimal, rewardAPR float64, symbol string) string {
	if rewardAPR <= 0 {
		return "0"
	}
	if symbol == "" {
		symbol = "REWARD"
	}
	annual := balance.Mul(decimal.NewFromFloat(rewardAPR)).Div(hundred)

	decimals := 4
	if symbol == "MORPHO" {
		decimals = 2
	}
	return FormatTokenAmount(annual, symbol, decimals)
}
