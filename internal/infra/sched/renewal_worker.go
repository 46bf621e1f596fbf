package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"subscription-tracker/internal/domain"
	"subscription-tracker/internal/infra/redis"
	"subscription-tracker/internal/usecase"
)

const renewalLockKey = "renewal:batch"

// RenewalWorker periodically advances due subscriptions via the renewal use
// case. The redis lock keeps a multi-instance deployment down to one batch
// runner per interval; losing the lock just skips the round.
type RenewalWorker struct {
	interval   time.Duration
	batchLimit int
	lockTTL    time.Duration
	renewalUC  usecase.RenewalUseCase
	locker     redis.Locker
	log        *zerolog.Logger
}

func NewRenewalWorker(interval time.Duration, batchLimit int, lockTTL time.Duration, renewalUC usecase.RenewalUseCase, locker redis.Locker, logger *zerolog.Logger) *RenewalWorker {
	l := logger.With().Str("component", "RenewalWorker").Logger()
	if interval <= 0 {
		interval = time.Hour
	}
	return &RenewalWorker{
		interval:   interval,
		batchLimit: batchLimit,
		lockTTL:    lockTTL,
		renewalUC:  renewalUC,
		locker:     locker,
		log:        &l,
	}
}

func (w *RenewalWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting renewal worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping renewal worker")
			return ctx.Err()
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *RenewalWorker) runOnce(ctx context.Context) {
	token, err := w.locker.TryLock(ctx, renewalLockKey, w.lockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			w.log.Debug().Msg("another instance holds the renewal lock; skipping round")
		} else {
			w.log.Error().Err(err).Msg("renewal lock error")
		}
		return
	}
	defer func() {
		if err := w.locker.Unlock(ctx, renewalLockKey, token); err != nil {
			w.log.Warn().Err(err).Msg("renewal unlock failed; lock will expire by TTL")
		}
	}()

	res, err := w.renewalUC.RenewBatch(ctx, w.batchLimit)
	if err != nil {
		w.log.Error().Err(err).Msg("renewal batch error")
		return
	}
	if res.Processed > 0 || res.Failed > 0 {
		w.log.Info().Int("processed", res.Processed).Int("failed", res.Failed).Msg("renewal batch finished")
	}
}
