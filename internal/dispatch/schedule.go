package dispatch

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// RunTimeout bounds one scheduled run.
const RunTimeout = 30 * time.Minute

// NewCron returns a scheduler that logs through logger and never overlaps a
// job with its previous run.
func NewCron(logger *zap.Logger) *cron.Cron {
	l := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))
	return cron.New(cron.WithLogger(l), cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)))
}

// Schedule registers r on c with a standard five-field cron spec. Each run
// derives its context from base, so cancelling base stops a run in progress.
func Schedule(base context.Context, c *cron.Cron, spec string, r *Runner) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, r.scheduled(base))
	if err != nil {
		return 0, errors.Wrapf(err, "invalid cron spec %q", spec)
	}
	return id, nil
}

func (r *Runner) scheduled(base context.Context) func() {
	return func() {
		if base.Err() != nil {
			return
		}
		ctx, cancel := context.WithTimeout(base, RunTimeout)
		defer cancel()
		if _, err := r.Run(ctx); err != nil {
			r.log.Error("scheduled daily run failed", zap.Error(err))
		}
	}
}
