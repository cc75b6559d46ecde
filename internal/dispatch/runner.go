// Package dispatch runs the daily notification job: yield summaries pushed
// to every subscriber and emailed to every active email subscription, in
// small concurrent batches.
package dispatch

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"yield-monitor-go/internal/chains"
	"yield-monitor-go/internal/metrics"
	"yield-monitor-go/internal/models"
	"yield-monitor-go/internal/rewards"
	"yield-monitor-go/internal/yield"
)

type YieldSource interface {
	UserYieldData(ctx context.Context, address string, chainIDs []int) (*models.YieldNotificationData, error)
}

type PushSender interface {
	SendYield(ctx context.Context, address string, data *models.YieldNotificationData) error
}

type EmailSender interface {
	Enabled() bool
	SendYieldSummary(ctx context.Context, recipient, address string, data *models.YieldNotificationData, rewards *models.ClaimableRewardsData) error
}

type RewardSource interface {
	Claimable(ctx context.Context, address string, chainID int) ([]models.CombinedReward, error)
}

type Subscribers interface {
	ListSubscriptions(ctx context.Context) ([]models.UserSubscription, error)
	ActiveEmailSubscriptions(ctx context.Context) ([]models.EmailSubscription, error)
	UpdateLastEmailed(ctx context.Context, id int, at time.Time) error
}

type Config struct {
	BatchSize  int
	BatchDelay time.Duration
	// MinBalance is the total balance below which no notification is sent.
	MinBalance decimal.Decimal
	// RewardsChain is the chain rewards are collected on for email digests.
	RewardsChain int
}

// Result counts one channel's outcome. Skipped covers addresses without
// positions or below the minimum balance.
type Result struct {
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Skipped    int      `json:"skipped"`
	Errors     []string `json:"errors"`
}

type Report struct {
	Push     Result        `json:"push"`
	Email    Result        `json:"email"`
	Duration time.Duration `json:"duration"`
}

type Runner struct {
	subs    Subscribers
	yield   YieldSource
	push    PushSender
	email   EmailSender
	rewards RewardSource
	cfg     Config
	log     *zap.Logger
	now     func() time.Time
}

func NewRunner(subs Subscribers, ys YieldSource, push PushSender, email EmailSender, rs RewardSource, cfg Config, logger *zap.Logger) *Runner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.MinBalance.IsZero() {
		cfg.MinBalance = decimal.RequireFromString("0.01")
	}
	if cfg.RewardsChain == 0 {
		cfg.RewardsChain = chains.DefaultSubscriptionChains[0]
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		subs:    subs,
		yield:   ys,
		push:    push,
		email:   email,
		rewards: rs,
		cfg:     cfg,
		log:     logger.Named("dispatch"),
		now:     time.Now,
	}
}

// tally is a Result guarded for concurrent batch workers.
type tally struct {
	mu sync.Mutex
	r  Result
}

func (t *tally) success() {
	t.mu.Lock()
	t.r.Successful++
	t.mu.Unlock()
}

func (t *tally) skip() {
	t.mu.Lock()
	t.r.Skipped++
	t.mu.Unlock()
}

func (t *tally) fail(msg string) {
	t.mu.Lock()
	t.r.Failed++
	t.r.Errors = append(t.r.Errors, msg)
	t.mu.Unlock()
}

// yieldCache computes each summary at most once per run. Entries are keyed
// by address and chain set, so a wallet whose push subscription and email
// digest scan the same chains shares one snapshot.
type yieldCache struct {
	mu   sync.Mutex
	src  YieldSource
	data map[string]*entry
}

type entry struct {
	once sync.Once
	data *models.YieldNotificationData
	err  error
}

// chainSet returns chainIDs sorted and deduplicated, or the default yield
// chains when none are given.
func chainSet(chainIDs []int) []int {
	if len(chainIDs) == 0 {
		chainIDs = chains.DefaultYieldChains
	}
	sorted := slices.Clone(chainIDs)
	slices.Sort(sorted)
	return slices.Compact(sorted)
}

func cacheKey(address string, chainIDs []int) string {
	parts := make([]string, len(chainIDs))
	for i, id := range chainIDs {
		parts[i] = strconv.Itoa(id)
	}
	return strings.ToLower(address) + "|" + strings.Join(parts, ",")
}

func (c *yieldCache) get(ctx context.Context, address string, chainIDs []int) (*models.YieldNotificationData, error) {
	chainIDs = chainSet(chainIDs)
	key := cacheKey(address, chainIDs)

	c.mu.Lock()
	e, ok := c.data[key]
	if !ok {
		e = &entry{}
		c.data[key] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		e.data, e.err = c.src.UserYieldData(ctx, address, chainIDs)
	})
	return e.data, e.err
}

// Run sends the push round, then the email round.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	start := r.now()
	cache := &yieldCache{src: r.yield, data: map[string]*entry{}}

	push, err := r.runPush(ctx, cache)
	if err != nil {
		return Report{}, err
	}
	mail, err := r.runEmail(ctx, cache)
	if err != nil {
		return Report{Push: push}, err
	}

	d := r.now().Sub(start)
	metrics.ObserveDispatch(d)
	r.log.Info("daily notifications completed",
		zap.Int("push_successful", push.Successful), zap.Int("push_failed", push.Failed),
		zap.Int("email_successful", mail.Successful), zap.Int("email_failed", mail.Failed),
		zap.Duration("duration", d))
	return Report{Push: push, Email: mail, Duration: d}, nil
}

// eligible returns the summary when it is worth sending. A nil summary with
// nil error means skip.
func (r *Runner) eligible(ctx context.Context, cache *yieldCache, address string, chainIDs []int) (*models.YieldNotificationData, error) {
	data, err := cache.get(ctx, address, chainIDs)
	if errors.Is(err, yield.ErrNoPositions) {
		r.log.Info("no yield data found", zap.String("address", address))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	balance, perr := decimal.NewFromString(data.TotalBalance)
	if perr != nil || balance.LessThan(r.cfg.MinBalance) {
		r.log.Info("skipping, balance too low", zap.String("address", address), zap.String("balance", data.TotalBalance))
		return nil, nil
	}
	return data, nil
}

func (r *Runner) runPush(ctx context.Context, cache *yieldCache) (Result, error) {
	subs, err := r.subs.ListSubscriptions(ctx)
	if err != nil {
		return Result{}, errors.Wrap(err, "failed to list subscriptions")
	}
	if len(subs) == 0 {
		r.log.Info("no push subscriptions found")
		return Result{Errors: []string{}}, nil
	}
	r.log.Info("processing daily push notifications", zap.Int("users", len(subs)))

	t := &tally{r: Result{Total: len(subs), Errors: []string{}}}
	err = r.batches(ctx, len(subs), func(ctx context.Context, i int) {
		sub := subs[i]
		data, err := r.eligible(ctx, cache, sub.Address, sub.ChainIDs)
		if err != nil {
			t.fail(fmt.Sprintf("Error processing %s: %v", sub.Address, err))
			return
		}
		if data == nil {
			metrics.RecordNotificationSkipped("push")
			t.skip()
			return
		}
		if err := r.push.SendYield(ctx, sub.Address, data); err != nil {
			t.fail(fmt.Sprintf("Failed to send to %s: %v", sub.Address, err))
			return
		}
		t.success()
	})
	return t.r, err
}

func (r *Runner) runEmail(ctx context.Context, cache *yieldCache) (Result, error) {
	if r.email == nil || !r.email.Enabled() {
		r.log.Info("email disabled, skipping digests")
		return Result{Errors: []string{}}, nil
	}
	subs, err := r.subs.ActiveEmailSubscriptions(ctx)
	if err != nil {
		return Result{}, errors.Wrap(err, "failed to list email subscriptions")
	}
	if len(subs) == 0 {
		return Result{Errors: []string{}}, nil
	}
	r.log.Info("processing daily email digests", zap.Int("subscriptions", len(subs)))

	t := &tally{r: Result{Total: len(subs), Errors: []string{}}}
	err = r.batches(ctx, len(subs), func(ctx context.Context, i int) {
		sub := subs[i]
		// Digests always cover the default chains, whatever the address's
		// push subscription scans.
		data, err := r.eligible(ctx, cache, sub.Address, chains.DefaultYieldChains)
		if err != nil {
			t.fail(fmt.Sprintf("Error processing %s: %v", sub.Email, err))
			return
		}
		if data == nil {
			metrics.RecordNotificationSkipped("email")
			t.skip()
			return
		}
		if err := r.email.SendYieldSummary(ctx, sub.Email, sub.Address, data, r.claimable(ctx, sub.Address)); err != nil {
			t.fail(fmt.Sprintf("Failed to send to %s: %v", sub.Email, err))
			return
		}
		if err := r.subs.UpdateLastEmailed(ctx, sub.ID, r.now().UTC()); err != nil {
			r.log.Warn("failed to update last emailed", zap.Int("id", sub.ID), zap.Error(err))
		}
		t.success()
	})
	return t.r, err
}

// claimable returns the rewards block for a digest, or nil when rewards
// cannot be loaded.
func (r *Runner) claimable(ctx context.Context, address string) *models.ClaimableRewardsData {
	if r.rewards == nil {
		return nil
	}
	list, err := r.rewards.Claimable(ctx, address, r.cfg.RewardsChain)
	if err != nil {
		r.log.Warn("failed to load rewards", zap.String("address", address), zap.Error(err))
		return nil
	}
	sum := rewards.Summarize(list)
	return &sum
}

// batches calls fn for 0..n-1, BatchSize at a time, waiting BatchDelay
// between batches. It stops early when ctx is cancelled.
func (r *Runner) batches(ctx context.Context, n int, fn func(ctx context.Context, i int)) error {
	for start := 0; start < n; start += r.cfg.BatchSize {
		end := min(start+r.cfg.BatchSize, n)

		var g errgroup.Group
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				fn(ctx, i)
				return nil
			})
		}
		_ = g.Wait()

		if end < n && r.cfg.BatchDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.cfg.BatchDelay):
			}
		}
	}
	return nil
}
