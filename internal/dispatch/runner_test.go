package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"yield-monitor-go/internal/models"
	"yield-monitor-go/internal/store"
	"yield-monitor-go/internal/yield"
)

func address(n byte) string {
	return fmt.Sprintf("0x%040x", n)
}

type fakeYield struct {
	mu       sync.Mutex
	calls    map[string]int
	scanned  map[string][][]int
	balances map[string]string
	fail     map[string]bool
}

// UserYieldData reports the number of chains scanned in TotalYield.
func (f *fakeYield) UserYieldData(_ context.Context, addr string, chainIDs []int) (*models.YieldNotificationData, error) {
	f.mu.Lock()
	f.calls[addr]++
	if f.scanned != nil {
		f.scanned[addr] = append(f.scanned[addr], chainIDs)
	}
	f.mu.Unlock()
	if f.fail[addr] {
		return nil, errors.New("upstream down")
	}
	bal, ok := f.balances[addr]
	if !ok {
		return nil, yield.ErrNoPositions
	}
	return &models.YieldNotificationData{TotalBalance: bal, TotalYield: fmt.Sprint(len(chainIDs)), Yield24h: "0"}, nil
}

type fakePush struct {
	sent int32
	fail map[string]bool
}

func (f *fakePush) SendYield(_ context.Context, addr string, _ *models.YieldNotificationData) error {
	if f.fail[addr] {
		return errors.New("push rejected")
	}
	atomic.AddInt32(&f.sent, 1)
	return nil
}

type fakeEmail struct {
	mu      sync.Mutex
	enabled bool
	sent    []string
	data    map[string]*models.YieldNotificationData
	rewards []*models.ClaimableRewardsData
}

func (f *fakeEmail) Enabled() bool { return f.enabled }

func (f *fakeEmail) SendYieldSummary(_ context.Context, to, _ string, d *models.YieldNotificationData, r *models.ClaimableRewardsData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to)
	if f.data != nil {
		f.data[to] = d
	}
	f.rewards = append(f.rewards, r)
	return nil
}

type fakeRewards struct{}

func (fakeRewards) Claimable(context.Context, string, int) ([]models.CombinedReward, error) {
	return []models.CombinedReward{{Symbol: "MORPHO"}}, nil
}

func seed(t *testing.T, n int) *store.MemoryStore {
	t.Helper()
	st := store.NewMemoryStore()
	sub := models.PushSubscription{Endpoint: "e", Keys: models.PushKeys{P256dh: "k", Auth: "a"}}
	for i := 0; i < n; i++ {
		require.NoError(t, st.SaveSubscription(context.Background(), address(byte(i)), sub, []int{1}))
	}
	return st
}

func TestRunCountsOutcomes(t *testing.T) {
	st := seed(t, 7)
	ys := &fakeYield{
		calls: map[string]int{},
		balances: map[string]string{
			address(0): "100", address(1): "0.001", address(2): "50",
			address(3): "10", address(4): "20", address(5): "30",
		},
		fail: map[string]bool{address(6): true},
	}
	push := &fakePush{fail: map[string]bool{address(5): true}}

	r := NewRunner(st, ys, push, nil, nil, Config{BatchSize: 3}, nil)
	report, err := r.Run(context.Background())
	require.NoError(t, err)

	res := report.Push
	assert.Equal(t, 7, res.Total)
	assert.Equal(t, 4, res.Successful)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 1, res.Skipped, "balance below 0.01")
	assert.Len(t, res.Errors, 2)
	assert.Equal(t, int32(4), atomic.LoadInt32(&push.sent))
	assert.Equal(t, 0, report.Email.Total)
}

func TestRunWithoutSubscribers(t *testing.T) {
	r := NewRunner(store.NewMemoryStore(), &fakeYield{calls: map[string]int{}}, &fakePush{}, nil, nil, Config{}, nil)
	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Push.Total)
	assert.NotNil(t, report.Push.Errors)
}

func TestEmailRoundSharesYieldWithPush(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	sub := models.PushSubscription{Endpoint: "e", Keys: models.PushKeys{P256dh: "k", Auth: "a"}}
	require.NoError(t, st.SaveSubscription(ctx, address(0), sub, []int{8453, 1, 137, 42161, 1}))
	_, err := st.SaveEmailSubscription(ctx, address(0), "a@example.com")
	require.NoError(t, err)
	_, err = st.SaveEmailSubscription(ctx, address(9), "b@example.com")
	require.NoError(t, err)

	ys := &fakeYield{calls: map[string]int{}, balances: map[string]string{address(0): "5"}}
	mail := &fakeEmail{enabled: true}
	r := NewRunner(st, ys, &fakePush{}, mail, fakeRewards{}, Config{}, nil)

	report, err := r.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, ys.calls[address(0)], "same chain set computed once per run")
	assert.Equal(t, 2, report.Email.Total)
	assert.Equal(t, 1, report.Email.Successful)
	assert.Equal(t, 1, report.Email.Skipped)
	assert.Equal(t, []string{"a@example.com"}, mail.sent)
	require.NotNil(t, mail.rewards[0])

	subs, _ := st.EmailSubscriptionsFor(ctx, address(0))
	require.Len(t, subs, 1)
	assert.NotNil(t, subs[0].LastEmailed)
}

func TestEmailDigestCoversDefaultChains(t *testing.T) {
	ctx := context.Background()
	st := seed(t, 1)
	_, err := st.SaveEmailSubscription(ctx, address(0), "a@example.com")
	require.NoError(t, err)
	_, err = st.SaveEmailSubscription(ctx, address(5), "b@example.com")
	require.NoError(t, err)

	ys := &fakeYield{
		calls:    map[string]int{},
		scanned:  map[string][][]int{},
		balances: map[string]string{address(0): "5", address(5): "7"},
	}
	mail := &fakeEmail{enabled: true, data: map[string]*models.YieldNotificationData{}}
	r := NewRunner(st, ys, &fakePush{}, mail, fakeRewards{}, Config{}, nil)

	report, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Push.Successful)
	assert.Equal(t, 2, report.Email.Successful)

	assert.Equal(t, [][]int{{1}, {1, 137, 8453, 42161}}, ys.scanned[address(0)])
	assert.Equal(t, [][]int{{1, 137, 8453, 42161}}, ys.scanned[address(5)])

	require.Contains(t, mail.data, "a@example.com")
	assert.Equal(t, "4", mail.data["a@example.com"].TotalYield)
	assert.Equal(t, "4", mail.data["b@example.com"].TotalYield)
}

func TestChainSet(t *testing.T) {
	assert.Equal(t, []int{1, 137, 8453, 42161}, chainSet(nil))
	assert.Equal(t, []int{1, 8453}, chainSet([]int{8453, 1, 8453}))
	assert.Equal(t, "0xab|1,8453", cacheKey("0xAB", []int{1, 8453}))
}

func TestDisabledEmailIsSkipped(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	_, _ = st.SaveEmailSubscription(ctx, address(0), "a@example.com")

	mail := &fakeEmail{enabled: false}
	r := NewRunner(st, &fakeYield{calls: map[string]int{}}, &fakePush{}, mail, nil, Config{}, nil)
	report, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Email.Total)
	assert.Empty(t, mail.sent)
}

func TestBatchesHonourSizeAndCancellation(t *testing.T) {
	r := NewRunner(store.NewMemoryStore(), nil, nil, nil, nil, Config{BatchSize: 2, BatchDelay: time.Hour}, nil)

	var inFlight, peak int32
	ctx, cancel := context.WithCancel(context.Background())
	var calls int32
	done := make(chan error, 1)
	go func() {
		done <- r.batches(ctx, 5, func(context.Context, int) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			atomic.AddInt32(&calls, 1)
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
		})
	}()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 2 }, time.Second, time.Millisecond)
	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "second batch waits for the delay")
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestSchedule(t *testing.T) {
	r := NewRunner(store.NewMemoryStore(), nil, nil, nil, nil, Config{}, nil)
	c := NewCron(zap.NewNop())

	id, err := Schedule(context.Background(), c, "0 9 * * *", r)
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Len(t, c.Entries(), 1)

	_, err = Schedule(context.Background(), c, "not a spec", r)
	assert.Error(t, err)
}

func TestScheduledRunStopsWithBaseContext(t *testing.T) {
	st := seed(t, 3)
	ys := &fakeYield{calls: map[string]int{}, balances: map[string]string{
		address(0): "1", address(1): "1", address(2): "1",
	}}
	r := NewRunner(st, ys, &fakePush{}, nil, nil, Config{BatchSize: 1, BatchDelay: time.Hour}, nil)

	base, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.scheduled(base)()
		close(done)
	}()

	require.Eventually(t, func() bool {
		ys.mu.Lock()
		defer ys.mu.Unlock()
		return len(ys.calls) == 1
	}, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled run ignored cancellation")
	}
	ys.mu.Lock()
	defer ys.mu.Unlock()
	assert.Len(t, ys.calls, 1, "later batches never start")

	// a cancelled base skips the run entirely
	r.scheduled(base)()
	assert.Len(t, ys.calls, 1)
}
