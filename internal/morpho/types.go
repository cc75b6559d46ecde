package morpho

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"yield-monitor-go/internal/models"
)

// bigString accepts BigInt scalars encoded either as JSON strings or numbers.
type bigString string

func (b *bigString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*b = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*b = bigString(s)
		return nil
	}
	*b = bigString(data)
	return nil
}

// unixTime accepts Int or BigInt timestamps, which the API sends as numbers
// or strings depending on the field.
type unixTime int64

func (u *unixTime) UnmarshalJSON(data []byte) error {
	var raw bigString
	if err := raw.UnmarshalJSON(data); err != nil {
		return err
	}
	if raw == "" {
		*u = 0
		return nil
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(string(raw), 64)
		if ferr != nil {
			return err
		}
		n = int64(f)
	}
	*u = unixTime(n)
	return nil
}

func (b bigString) orDefault(def string) string {
	if b == "" {
		return def
	}
	return string(b)
}

type assetResponse struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int32  `json:"decimals"`
}

func (a assetResponse) model() models.Asset {
	return models.Asset{Address: a.Address, Symbol: a.Symbol, Name: a.Name, Decimals: a.Decimals}
}

type rewardResponse struct {
	SupplyAPR float64        `json:"supplyApr"`
	Asset     *assetResponse `json:"asset"`
}

type vaultStateResponse struct {
	TotalAssets bigString           `json:"totalAssets"`
	TotalSupply bigString           `json:"totalSupply"`
	SharePrice  decimal.NullDecimal `json:"sharePrice"`
	APY         *float64            `json:"apy"`
	NetAPY      *float64            `json:"netApy"`
	Rewards     []rewardResponse    `json:"rewards"`
}

type vaultResponse struct {
	Address  string              `json:"address"`
	Symbol   string              `json:"symbol"`
	Name     string              `json:"name"`
	Asset    assetResponse       `json:"asset"`
	State    *vaultStateResponse `json:"state"`
	Metadata *struct {
		Description string `json:"description"`
	} `json:"metadata"`
}

type vaultsResponse struct {
	Vaults *struct {
		Items []vaultResponse `json:"items"`
	} `json:"vaults"`
}

type positionResponse struct {
	User struct {
		Address string `json:"address"`
	} `json:"user"`
	Vault struct {
		Address string              `json:"address"`
		Symbol  string              `json:"symbol"`
		Name    string              `json:"name"`
		Asset   assetResponse       `json:"asset"`
		State   *vaultStateResponse `json:"state"`
	} `json:"vault"`
	State struct {
		Shares    decimal.Decimal `json:"shares"`
		Timestamp unixTime        `json:"timestamp"`
	} `json:"state"`
}

type positionsResponse struct {
	VaultPositions *struct {
		Items []positionResponse `json:"items"`
	} `json:"vaultPositions"`
}

type transactionResponse struct {
	ID        string                 `json:"id"`
	Timestamp unixTime               `json:"timestamp"`
	Hash      string                 `json:"hash"`
	Type      models.TransactionType `json:"type"`
	Data      struct {
		Shares    bigString               `json:"shares"`
		Assets    decimal.Decimal         `json:"assets"`
		AssetsUSD decimal.Decimal         `json:"assetsUsd"`
		Vault     models.TransactionVault `json:"vault"`
	} `json:"data"`
}

func (t transactionResponse) model() models.Transaction {
	return models.Transaction{
		ID:        t.ID,
		Timestamp: int64(t.Timestamp),
		Hash:      t.Hash,
		Type:      t.Type,
		Data: models.TransactionData{
			Shares:    t.Data.Shares.orDefault("0"),
			Assets:    t.Data.Assets,
			AssetsUSD: t.Data.AssetsUSD,
			Vault:     t.Data.Vault,
		},
	}
}

type transactionsResponse struct {
	Transactions *struct {
		Items []transactionResponse `json:"items"`
	} `json:"transactions"`
}

// apyFromState converts the API's decimal rates into percentages. The base
// rate prefers netApy and falls back to apy when netApy is absent or zero;
// the reward rate is the non-negative gap between the two.
func apyFromState(s *vaultStateResponse) models.APY {
	if s == nil {
		return models.APY{}
	}
	var apy, net float64
	if s.APY != nil {
		apy = *s.APY
	}
	if s.NetAPY != nil {
		net = *s.NetAPY
	}

	base := net
	if base == 0 {
		base = apy
	}

	out := models.APY{
		Base:    base * 100,
		Rewards: math.Max(0, (apy-net)*100),
	}
	for _, r := range s.Rewards {
		rt := models.RewardToken{SupplyAPR: r.SupplyAPR * 100}
		if r.Asset != nil {
			a := r.Asset.model()
			rt.Asset = &a
		}
		out.RewardTokens = append(out.RewardTokens, rt)
	}
	return out
}

func sharePriceOf(s *vaultStateResponse) decimal.Decimal {
	if s == nil || !s.SharePrice.Valid || s.SharePrice.Decimal.IsZero() {
		return models.DefaultSharePrice
	}
	return s.SharePrice.Decimal
}

func nameOr(name, symbol string) string {
	if name != "" {
		return name
	}
	return symbol
}

func (v vaultResponse) model(chainID int) models.Vault {
	out := models.Vault{
		ID:         v.Address,
		ChainID:    chainID,
		Name:       nameOr(v.Name, v.Symbol),
		Address:    v.Address,
		SharePrice: sharePriceOf(v.State),
		APY:        apyFromState(v.State),
		Asset:      v.Asset.model(),
	}
	out.TotalAssets, out.TotalSupply = "0", "0"
	if v.State != nil {
		out.TotalAssets = v.State.TotalAssets.orDefault("0")
		out.TotalSupply = v.State.TotalSupply.orDefault("0")
	}
	return out
}

// sharesDecimals is the fixed precision of MetaMorpho vault shares.
const sharesDecimals = 18

// model converts a raw position into asset units. Shares carry 18 decimals
// and the share price is quoted in asset base units, so
// balance = shares * sharePrice / 1e18 / 10^assetDecimals. The deposited
// baseline assumes shares were bought at a share price of 1.0.
func (p positionResponse) model() models.Position {
	dec := p.Vault.Asset.Decimals
	price := sharePriceOf(p.Vault.State)
	shares := p.State.Shares
	apy := apyFromState(p.Vault.State)
	apy.Rewards = 0
	apy.RewardTokens = nil

	return models.Position{
		Vault: models.VaultRef{
			ID:      p.Vault.Address,
			Address: p.Vault.Address,
			Name:    nameOr(p.Vault.Name, p.Vault.Symbol),
			Asset:   p.Vault.Asset.model(),
		},
		Balance:    shares.Mul(price).Shift(-sharesDecimals - dec),
		Deposited:  shares.Mul(models.DefaultSharePrice).Shift(-sharesDecimals - dec),
		Withdrawn:  decimal.Zero,
		Shares:     shares.String(),
		SharePrice: price,
		Timestamp:  int64(p.State.Timestamp),
		APY:        &apy,
	}
}
