package rewards

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"yield-monitor-go/internal/models"
)

type MerklSource interface {
	Rewards(ctx context.Context, address string, chainIDs []int) ([]MerklReward, error)
}

type MorphoSource interface {
	Rewards(ctx context.Context, address string, chainID int) ([]MorphoReward, error)
	Distributions(ctx context.Context, address string, chainID int) ([]MorphoDistribution, error)
}

// Aggregator merges the three reward feeds into one list per token.
type Aggregator struct {
	merkl  MerklSource
	morpho MorphoSource
	log    *zap.Logger
}

func NewAggregator(merkl MerklSource, morpho MorphoSource, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{merkl: merkl, morpho: morpho, log: logger.Named("rewards")}
}

// Claimable returns the address's rewards on chainID. A source that fails
// contributes nothing; the call itself only fails on a bad address.
func (a *Aggregator) Claimable(ctx context.Context, address string, chainID int) ([]models.CombinedReward, error) {
	address, err := models.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}

	var (
		merkl []MerklReward
		morph []MorphoReward
		dists []MorphoDistribution
	)
	var g errgroup.Group
	g.Go(func() error {
		var err error
		if merkl, err = a.merkl.Rewards(ctx, address, []int{chainID}); err != nil {
			a.log.Warn("merkl rewards unavailable", zap.String("address", address), zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if morph, err = a.morpho.Rewards(ctx, address, chainID); err != nil {
			a.log.Warn("morpho rewards unavailable", zap.String("address", address), zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if dists, err = a.morpho.Distributions(ctx, address, chainID); err != nil {
			a.log.Warn("morpho distributions unavailable", zap.String("address", address), zap.Error(err))
		}
		return nil
	})
	_ = g.Wait()

	return Merge(merkl, morph, dists), nil
}

type tokenMeta struct {
	symbol   string
	decimals int32
	price    decimal.Decimal
}

var unknownToken = tokenMeta{symbol: "UNKNOWN", decimals: 18, price: decimal.Zero}

type sum struct {
	address             string
	claimable, accruing decimal.Decimal
}

// ordered accumulates per-token sums keyed by lowercase address, keeping
// first-seen order.
type ordered struct {
	keys []string
	vals map[string]*sum
}

func (o *ordered) add(address string, claimable, accruing decimal.Decimal) {
	key := strings.ToLower(address)
	if o.vals == nil {
		o.vals = map[string]*sum{}
	}
	if s, ok := o.vals[key]; ok {
		s.claimable = s.claimable.Add(claimable)
		s.accruing = s.accruing.Add(accruing)
		return
	}
	o.keys = append(o.keys, key)
	o.vals[key] = &sum{address: key, claimable: claimable, accruing: accruing}
}

// Merge combines the feeds. Merkl is the base; Morpho rewards and
// distributions replace a token's claimable or accruing figure only when
// they report more, and add tokens Merkl does not know. Token metadata for
// Morpho entries comes from Merkl.
func Merge(merkl []MerklReward, morph []MorphoReward, dists []MorphoDistribution) []models.CombinedReward {
	var (
		out   []models.CombinedReward
		index = map[string]int{}
		meta  = map[string]tokenMeta{}
	)

	for _, r := range merkl {
		key := strings.ToLower(r.Token.Address)
		if _, ok := meta[key]; !ok {
			meta[key] = tokenMeta{symbol: r.Token.Symbol, decimals: r.Token.Decimals, price: r.Token.Price}
		}
		claimable, accruing := r.Totals()
		reward := models.CombinedReward{
			Symbol:         r.Token.Symbol,
			Name:           r.Token.Symbol,
			Address:        r.Token.Address,
			Claimable:      claimable,
			Accruing:       accruing,
			ClaimableValue: claimable.Mul(r.Token.Price),
			AccruingValue:  accruing.Mul(r.Token.Price),
			Price:          r.Token.Price,
			Sources:        []string{models.SourceMerkl},
		}
		if i, ok := index[key]; ok {
			out[i] = reward
			continue
		}
		index[key] = len(out)
		out = append(out, reward)
	}

	lookup := func(address string) tokenMeta {
		if m, ok := meta[address]; ok && m.symbol != "" {
			if m.decimals == 0 {
				m.decimals = 18
			}
			return m
		}
		return unknownToken
	}

	var morphoSums ordered
	for _, r := range morph {
		m := lookup(strings.ToLower(r.AssetAddress))
		morphoSums.add(r.AssetAddress, r.ClaimableNow.Shift(-m.decimals), r.ClaimableNext.Shift(-m.decimals))
	}
	var distSums ordered
	for _, d := range dists {
		m := lookup(strings.ToLower(d.AssetAddress))
		distSums.add(d.AssetAddress, d.Claimable.Shift(-m.decimals), decimal.Zero)
	}

	mergeInto := func(sums ordered, source string, withAccruing bool) {
		for _, key := range sums.keys {
			s := sums.vals[key]
			m := lookup(key)
			if i, ok := index[key]; ok {
				existing := &out[i]
				if s.claimable.GreaterThan(existing.Claimable) {
					existing.Claimable = s.claimable
					existing.ClaimableValue = s.claimable.Mul(m.price)
					existing.Sources = append(existing.Sources, source)
				}
				if withAccruing && s.accruing.GreaterThan(existing.Accruing) {
					existing.Accruing = s.accruing
					existing.AccruingValue = s.accruing.Mul(m.price)
				}
				continue
			}
			index[key] = len(out)
			out = append(out, models.CombinedReward{
				Symbol:         m.symbol,
				Name:           m.symbol,
				Address:        key,
				Claimable:      s.claimable,
				Accruing:       s.accruing,
				ClaimableValue: s.claimable.Mul(m.price),
				AccruingValue:  s.accruing.Mul(m.price),
				Price:          m.price,
				Sources:        []string{source},
			})
		}
	}
	mergeInto(morphoSums, models.SourceMorphoRewards, true)
	mergeInto(distSums, models.SourceMorphoDistributions, false)

	return out
}

// Summarize condenses rewards into the email block: claimable token amounts
// for USDC, MORPHO and FXN plus the USD value of everything claimable.
func Summarize(rewards []models.CombinedReward) models.ClaimableRewardsData {
	var usdc, morpho, fxn, total decimal.Decimal
	for _, r := range rewards {
		switch strings.ToUpper(r.Symbol) {
		case "USDC":
			usdc = usdc.Add(r.Claimable)
		case "MORPHO":
			morpho = morpho.Add(r.Claimable)
		case "FXN":
			fxn = fxn.Add(r.Claimable)
		}
		total = total.Add(r.ClaimableValue)
	}
	return models.ClaimableRewardsData{
		USDC:   usdc.InexactFloat64(),
		Morpho: morpho.InexactFloat64(),
		FXN:    fxn.InexactFloat64(),
		Total:  total.InexactFloat64(),
	}
}
