package yield

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yield-monitor-go/internal/models"
)

const holder = "0xAbCdEf0000000000000000000000000000000001"

type fakeSource struct {
	vaults    map[int][]models.Vault
	positions map[int][]models.Position
	txs       map[int][]models.Transaction
	fail      map[int]bool
}

func (f *fakeSource) GetVaults(_ context.Context, chainID int) ([]models.Vault, error) {
	if f.fail[chainID] {
		return nil, errors.New("upstream down")
	}
	return f.vaults[chainID], nil
}

func (f *fakeSource) GetUserPositions(_ context.Context, _ string, chainID int) ([]models.Position, error) {
	return f.positions[chainID], nil
}

func (f *fakeSource) GetUserTransactions(_ context.Context, _ string, chainID int) ([]models.Transaction, error) {
	return f.txs[chainID], nil
}

type fakeHistory struct {
	mu       sync.Mutex
	prev     *models.YieldSnapshot
	saved    []models.YieldSnapshot
	savedFor string
	before   time.Time
}

func (f *fakeHistory) SaveSnapshot(_ context.Context, address string, snap models.YieldSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.savedFor = address
	f.saved = append(f.saved, snap)
	return nil
}

func (f *fakeHistory) SnapshotBefore(_ context.Context, _ string, t time.Time) (models.YieldSnapshot, bool, error) {
	f.before = t
	if f.prev == nil {
		return models.YieldSnapshot{}, false, nil
	}
	return *f.prev, true, nil
}

func (f *fakeHistory) History(_ context.Context, _ string, _ int) ([]models.YieldSnapshot, error) {
	return f.saved, nil
}

func twoChainSource() *fakeSource {
	small := positionIn("0xVaultB", "Beta USDC", "20")
	small.Deposited = d("19")

	return &fakeSource{
		vaults: map[int][]models.Vault{1: {vaultA()}},
		positions: map[int][]models.Position{
			1:   {positionIn("0xvaulta", "Alpha USDC", "1050")},
			137: {small},
		},
		txs: map[int][]models.Transaction{
			1: {tx(models.TxDeposit, "0xvaulta", "1000")},
		},
		fail: map[int]bool{8453: true},
	}
}

func TestUserYieldDataAggregatesAcrossChains(t *testing.T) {
	history := &fakeHistory{prev: &models.YieldSnapshot{TotalYield: d("40")}}
	calc := NewCalculator(twoChainSource(), history, nil)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	calc.now = func() time.Time { return now }

	data, err := calc.UserYieldData(context.Background(), holder, []int{1, 137, 8453})
	require.NoError(t, err)

	assert.Equal(t, "1070.000000", data.TotalBalance)
	assert.Equal(t, "1019.000000", data.TotalDeposited)
	assert.Equal(t, "51.000000", data.TotalYield)
	assert.Equal(t, "11.000000", data.Yield24h)
	assert.InDelta(t, 27.5, data.Yield24hPercentage, 1e-9)
	assert.InDelta(t, 51.0/1019.0*100, data.YieldPercentage, 1e-9)

	require.Len(t, data.VaultBreakdown, 2)
	assert.Equal(t, "Alpha USDC", data.VaultBreakdown[0].Name)
	assert.Equal(t, "1050.000000", data.VaultBreakdown[0].Balance)
	assert.Equal(t, "50.000000", data.VaultBreakdown[0].Yield)
	assert.Equal(t, "Beta USDC", data.VaultBreakdown[1].Name)

	assert.Equal(t, now.Add(-DeltaWindow), history.before)
	require.Len(t, history.saved, 1)
	assert.Equal(t, "0xabcdef0000000000000000000000000000000001", history.savedFor)
	assert.Equal(t, now, history.saved[0].Timestamp)
	assert.Equal(t, "51", history.saved[0].TotalYield.String())

	var totals []models.ChainTotals
	require.NoError(t, json.Unmarshal(history.saved[0].ChainData, &totals))
	require.Len(t, totals, 2)
	assert.Equal(t, 1, totals[0].ChainID)
	assert.Equal(t, 137, totals[1].ChainID)
}

func TestUserYieldDataWithoutPreviousSnapshot(t *testing.T) {
	history := &fakeHistory{}
	calc := NewCalculator(twoChainSource(), history, nil)

	data, err := calc.UserYieldData(context.Background(), holder, []int{1})
	require.NoError(t, err)
	assert.Equal(t, "0.000000", data.Yield24h)
	assert.Zero(t, data.Yield24hPercentage)
}

func TestUserYieldDataNoPositions(t *testing.T) {
	history := &fakeHistory{}
	calc := NewCalculator(&fakeSource{}, history, nil)

	_, err := calc.UserYieldData(context.Background(), holder, nil)
	assert.ErrorIs(t, err, ErrNoPositions)
	assert.Empty(t, history.saved)
}

func TestUserYieldDataRejectsBadAddress(t *testing.T) {
	calc := NewCalculator(&fakeSource{}, &fakeHistory{}, nil)
	_, err := calc.UserYieldData(context.Background(), "not-an-address", nil)
	assert.ErrorIs(t, err, models.ErrInvalidAddress)
}

func TestChainDataRejectsUnsupportedChain(t *testing.T) {
	calc := NewCalculator(&fakeSource{}, &fakeHistory{}, nil)
	_, err := calc.ChainData(context.Background(), "", 999)
	assert.Error(t, err)
}
