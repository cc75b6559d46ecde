package rewards

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

const DefaultMorphoRewardsURL = "https://rewards.morpho.org"

// MorphoReward is one entry of the rewards endpoint. Amounts are raw base
// units.
type MorphoReward struct {
	Type          string
	AssetAddress  string
	ChainID       int
	ClaimableNow  decimal.Decimal
	ClaimableNext decimal.Decimal
	Claimed       decimal.Decimal
}

type MorphoDistribution struct {
	AssetAddress string
	ChainID      int
	Distributor  string
	Claimable    decimal.Decimal
}

type MorphoClient struct {
	baseURL string
	http    *http.Client
}

func NewMorphoClient(baseURL string, hc *http.Client) *MorphoClient {
	if baseURL == "" {
		baseURL = DefaultMorphoRewardsURL
	}
	return &MorphoClient{baseURL: strings.TrimRight(baseURL, "/"), http: defaultHTTPClient(hc)}
}

func (c *MorphoClient) url(address, kind string, chainID int) string {
	q := url.Values{}
	q.Set("trusted", "true")
	q.Set("chain_id", strconv.Itoa(chainID))
	return c.baseURL + "/v1/users/" + url.PathEscape(address) + "/" + kind + "?" + q.Encode()
}

// Rewards lists reward programs the address participates in on chainID.
// Entries without an amount or for_supply block are skipped.
func (c *MorphoClient) Rewards(ctx context.Context, address string, chainID int) ([]MorphoReward, error) {
	doc, err := getJSON(ctx, c.http, "morpho-rewards", c.url(address, "rewards", chainID))
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch Morpho rewards")
	}

	var out []MorphoReward
	doc.Get("data").ForEach(func(_, r gjson.Result) bool {
		amount := r.Get("amount")
		if !amount.IsObject() {
			amount = r.Get("for_supply")
		}
		if !amount.IsObject() {
			return true
		}
		out = append(out, MorphoReward{
			Type:          r.Get("type").String(),
			AssetAddress:  r.Get("asset.address").String(),
			ChainID:       int(r.Get("asset.chain_id").Int()),
			ClaimableNow:  decimalOf(amount.Get("claimable_now")),
			ClaimableNext: decimalOf(amount.Get("claimable_next")),
			Claimed:       decimalOf(amount.Get("claimed")),
		})
		return true
	})
	return out, nil
}

// Distributions lists merkle distributions claimable by the address on
// chainID.
func (c *MorphoClient) Distributions(ctx context.Context, address string, chainID int) ([]MorphoDistribution, error) {
	doc, err := getJSON(ctx, c.http, "morpho-distributions", c.url(address, "distributions", chainID))
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch Morpho distributions")
	}

	var out []MorphoDistribution
	doc.Get("data").ForEach(func(_, d gjson.Result) bool {
		out = append(out, MorphoDistribution{
			AssetAddress: d.Get("asset.address").String(),
			ChainID:      int(d.Get("asset.chain_id").Int()),
			Distributor:  d.Get("distributor.address").String(),
			Claimable:    decimalOf(d.Get("claimable")),
		})
		return true
	})
	return out, nil
}
