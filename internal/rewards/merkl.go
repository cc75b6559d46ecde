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

const DefaultMerklURL = "https://api.merkl.xyz"

// DefaultMerklChains are queried when no chain is given.
var DefaultMerklChains = []int{1, 8453, 137, 130, 747474, 42161, 10}

type Token struct {
	Address  string
	ChainID  int
	Symbol   string
	Decimals int32
	Price    decimal.Decimal
}

type Breakdown struct {
	Reason     string
	CampaignID string
	Amount     decimal.Decimal
	Claimed    decimal.Decimal
	Pending    decimal.Decimal
}

// MerklReward amounts are raw token base units.
type MerklReward struct {
	Recipient  string
	Amount     decimal.Decimal
	Claimed    decimal.Decimal
	Pending    decimal.Decimal
	Token      Token
	Breakdowns []Breakdown
}

// Totals sums unclaimed and pending amounts over the breakdowns, scaled to
// token units.
func (r MerklReward) Totals() (claimable, accruing decimal.Decimal) {
	claimable, accruing = decimal.Zero, decimal.Zero
	for _, b := range r.Breakdowns {
		claimable = claimable.Add(b.Amount.Sub(b.Claimed))
		accruing = accruing.Add(b.Pending)
	}
	return claimable.Shift(-r.Token.Decimals), accruing.Shift(-r.Token.Decimals)
}

type MerklClient struct {
	baseURL string
	http    *http.Client
}

func NewMerklClient(baseURL string, hc *http.Client) *MerklClient {
	if baseURL == "" {
		baseURL = DefaultMerklURL
	}
	return &MerklClient{baseURL: strings.TrimRight(baseURL, "/"), http: defaultHTTPClient(hc)}
}

// Rewards lists the address's Merkl rewards on chainIDs.
func (c *MerklClient) Rewards(ctx context.Context, address string, chainIDs []int) ([]MerklReward, error) {
	if len(chainIDs) == 0 {
		chainIDs = DefaultMerklChains
	}
	q := url.Values{}
	for _, id := range chainIDs {
		q.Add("chainId", strconv.Itoa(id))
	}
	u := c.baseURL + "/v4/users/" + url.PathEscape(address) + "/rewards?" + q.Encode()

	doc, err := getJSON(ctx, c.http, "merkl", u)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch Merkl rewards")
	}
	return parseMerkl(doc), nil
}

// parseMerkl reads the per-chain array. A chain object carries its rewards
// either as a "rewards" array or under numbered keys.
func parseMerkl(doc gjson.Result) []MerklReward {
	var out []MerklReward
	if !doc.IsArray() {
		return out
	}
	doc.ForEach(func(_, chain gjson.Result) bool {
		if list := chain.Get("rewards"); list.IsArray() {
			list.ForEach(func(_, r gjson.Result) bool {
				out = append(out, parseMerklReward(r))
				return true
			})
			return true
		}
		chain.ForEach(func(key, value gjson.Result) bool {
			if _, err := strconv.Atoi(key.String()); err == nil && value.IsObject() {
				out = append(out, parseMerklReward(value))
			}
			return true
		})
		return true
	})
	return out
}

func parseMerklReward(r gjson.Result) MerklReward {
	tok := r.Get("token")
	out := MerklReward{
		Recipient: r.Get("recipient").String(),
		Amount:    decimalOf(r.Get("amount")),
		Claimed:   decimalOf(r.Get("claimed")),
		Pending:   decimalOf(r.Get("pending")),
		Token: Token{
			Address:  tok.Get("address").String(),
			ChainID:  int(tok.Get("chainId").Int()),
			Symbol:   tok.Get("symbol").String(),
			Decimals: int32(tok.Get("decimals").Int()),
			Price:    decimalOf(tok.Get("price")),
		},
	}
	r.Get("breakdowns").ForEach(func(_, b gjson.Result) bool {
		out.Breakdowns = append(out.Breakdowns, Breakdown{
			Reason:     b.Get("reason").String(),
			CampaignID: b.Get("campaignId").String(),
			Amount:     decimalOf(b.Get("amount")),
			Claimed:    decimalOf(b.Get("claimed")),
			Pending:    decimalOf(b.Get("pending")),
		})
		return true
	})
	return out
}

// decimalOf reads a JSON string or number; anything unparsable is zero.
func decimalOf(v gjson.Result) decimal.Decimal {
	if !v.Exists() || v.Type == gjson.Null {
		return decimal.Zero
	}
	raw := v.Raw
	if v.Type == gjson.String {
		raw = v.Str
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero
	}
	return d
}
