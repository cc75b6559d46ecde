package yield

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"yield-monitor-go/internal/chains"
	"yield-monitor-go/internal/metrics"
	"yield-monitor-go/internal/models"
)

// ErrNoPositions is returned when an address holds nothing in any scanned
// vault.
var ErrNoPositions = errors.New("no vault positions found")

// DeltaWindow is how far back the snapshot used for the change figure must
// lie.
const DeltaWindow = 24 * time.Hour

// PositionSource fetches Morpho data for one chain.
type PositionSource interface {
	GetVaults(ctx context.Context, chainID int) ([]models.Vault, error)
	GetUserPositions(ctx context.Context, address string, chainID int) ([]models.Position, error)
	GetUserTransactions(ctx context.Context, address string, chainID int) ([]models.Transaction, error)
}

// HistoryStore persists yield snapshots.
type HistoryStore interface {
	SaveSnapshot(ctx context.Context, address string, snap models.YieldSnapshot) error
	// SnapshotBefore returns the newest snapshot taken at or before t.
	SnapshotBefore(ctx context.Context, address string, t time.Time) (models.YieldSnapshot, bool, error)
	History(ctx context.Context, address string, days int) ([]models.YieldSnapshot, error)
}

type Calculator struct {
	source  PositionSource
	history HistoryStore
	log     *zap.Logger
	now     func() time.Time
}

func NewCalculator(source PositionSource, history HistoryStore, logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{
		source:  source,
		history: history,
		log:     logger.Named("yield"),
		now:     time.Now,
	}
}

// ChainData fetches vaults, positions and transactions for one chain and
// combines them. An empty address returns the vault listing only.
func (c *Calculator) ChainData(ctx context.Context, address string, chainID int) (models.ChainVaultData, error) {
	if !chains.IsSupported(chainID) {
		return models.ChainVaultData{}, errors.Errorf("chain %d is not supported by Morpho", chainID)
	}

	var (
		vaults    []models.Vault
		positions []models.Position
		txs       []models.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vaults, err = c.source.GetVaults(gctx, chainID)
		return err
	})
	if address != "" {
		g.Go(func() error {
			var err error
			positions, err = c.source.GetUserPositions(gctx, address, chainID)
			return err
		})
		g.Go(func() error {
			var err error
			txs, err = c.source.GetUserTransactions(gctx, address, chainID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return models.ChainVaultData{}, err
	}

	return BuildChainVaults(chainID, vaults, positions, txs), nil
}

// UserYieldData builds the cross-chain yield summary for address, records a
// snapshot of it and reports the change against the snapshot taken at least
// a day earlier. Chains that fail to load are skipped.
//
// Positions in vaults missing from the chain's vault listing are counted as
// synthetic vaults (see BuildChainVaults), so the totals can exceed a sum over
// listed vaults only.
func (c *Calculator) UserYieldData(ctx context.Context, address string, chainIDs []int) (*models.YieldNotificationData, error) {
	address, err := models.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	if len(chainIDs) == 0 {
		chainIDs = chains.DefaultYieldChains
	}

	perChain := make([]models.ChainVaultData, len(chainIDs))
	ok := make([]bool, len(chainIDs))
	var g errgroup.Group
	for i, chainID := range chainIDs {
		i, chainID := i, chainID
		g.Go(func() error {
			data, err := c.ChainData(ctx, address, chainID)
			if err != nil {
				c.log.Warn("failed to fetch chain data",
					zap.String("address", address), zap.Int("chain_id", chainID), zap.Error(err))
				return nil
			}
			perChain[i], ok[i] = data, true
			return nil
		})
	}
	_ = g.Wait()

	var (
		held                       []models.VaultWithYield
		totalBalance, totalDeposit = decimal.Zero, decimal.Zero
		totalYield                 = decimal.Zero
		chainTotals                []models.ChainTotals
	)
	for i := range perChain {
		if !ok[i] {
			continue
		}
		ct := models.ChainTotals{ChainID: perChain[i].ChainID}
		for _, v := range perChain[i].Vaults {
			if v.UserPosition == nil || v.YieldData == nil || !v.YieldData.CurrentBalance.IsPositive() {
				continue
			}
			held = append(held, v)
			ct.Balance = ct.Balance.Add(v.YieldData.CurrentBalance)
			ct.Deposited = ct.Deposited.Add(v.YieldData.TotalDeposited)
			ct.Yield = ct.Yield.Add(v.YieldData.NetYield)
			ct.Vaults++
		}
		if ct.Vaults > 0 {
			totalBalance = totalBalance.Add(ct.Balance)
			totalDeposit = totalDeposit.Add(ct.Deposited)
			totalYield = totalYield.Add(ct.Yield)
			chainTotals = append(chainTotals, ct)
		}
	}

	if len(held) == 0 {
		metrics.RecordYieldCalculation("no_positions")
		return nil, ErrNoPositions
	}

	now := c.now().UTC()
	yield24h := decimal.Zero
	var yield24hPct float64
	prev, found, err := c.history.SnapshotBefore(ctx, address, now.Add(-DeltaWindow))
	if err != nil {
		metrics.RecordYieldCalculation("error")
		return nil, errors.Wrap(err, "failed to load previous yield snapshot")
	}
	if found {
		yield24h = totalYield.Sub(prev.TotalYield)
		yield24hPct = percentOf(yield24h, prev.TotalYield)
	}

	chainData, err := json.Marshal(chainTotals)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode chain totals")
	}
	snap := models.YieldSnapshot{
		Timestamp:      now,
		TotalBalance:   totalBalance,
		TotalDeposited: totalDeposit,
		TotalYield:     totalYield,
		ChainData:      chainData,
	}
	if err := c.history.SaveSnapshot(ctx, address, snap); err != nil {
		metrics.RecordYieldCalculation("error")
		return nil, errors.Wrap(err, "failed to save yield snapshot")
	}

	sort.SliceStable(held, func(i, j int) bool {
		return held[i].CurrentBalance().GreaterThan(held[j].CurrentBalance())
	})
	breakdown := make([]models.VaultBreakdown, 0, len(held))
	for _, v := range held {
		breakdown = append(breakdown, models.VaultBreakdown{
			Name:    v.Name,
			Balance: v.YieldData.CurrentBalance.StringFixed(6),
			Yield:   v.YieldData.NetYield.StringFixed(6),
			APY:     v.APY.Base,
		})
	}

	metrics.RecordYieldCalculation("ok")
	return &models.YieldNotificationData{
		TotalBalance:       totalBalance.StringFixed(6),
		TotalDeposited:     totalDeposit.StringFixed(6),
		TotalYield:         totalYield.StringFixed(6),
		YieldPercentage:    percentOf(totalYield, totalDeposit),
		Yield24h:           yield24h.StringFixed(6),
		Yield24hPercentage: yield24hPct,
		VaultBreakdown:     breakdown,
	}, nil
}

// History returns the address's snapshots from the last days days, newest
// first.
func (c *Calculator) History(ctx context.Context, address string, days int) ([]models.YieldSnapshot, error) {
	address, err := models.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 30
	}
	return c.history.History(ctx, address, days)
}
