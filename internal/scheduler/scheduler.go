package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const overdueSweepLockKey = "lending:lock:overdue-sweep"

// ErrLocked is returned by a Locker when another instance holds the lock.
var ErrLocked = errors.New("lock held elsewhere")

type OverdueSweeper interface {
	SweepOverdue(ctx context.Context) (int64, error)
}

type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// RedisLocker keeps several server instances from sweeping at the same time.
type RedisLocker struct {
	client *redislock.Client
}

func NewRedisLocker(client redislock.RedisClient) *RedisLocker {
	return &RedisLocker{client: redislock.New(client)}
}

func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLocked
	}
	if err != nil {
		return nil, err
	}
	return lock.Release, nil
}

type Scheduler struct {
	cron    *cron.Cron
	sweeper OverdueSweeper
	locker  Locker
	lockTTL time.Duration
	logger  logrus.FieldLogger
}

// New wires the overdue sweep onto spec. A nil locker runs the sweep unguarded.
func New(spec string, sweeper OverdueSweeper, locker Locker, lockTTL time.Duration, logger logrus.FieldLogger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		sweeper: sweeper,
		locker:  locker,
		lockTTL: lockTTL,
		logger:  logger,
	}
	if _, err := s.cron.AddFunc(spec, func() { s.RunOverdueSweep(context.Background()) }); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for a running sweep to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) RunOverdueSweep(ctx context.Context) {
	if s.locker != nil {
		release, err := s.locker.Obtain(ctx, overdueSweepLockKey, s.lockTTL)
		if errors.Is(err, ErrLocked) {
			s.logger.Debug("overdue sweep skipped; another instance holds the lock")
			return
		}
		if err != nil {
			s.logger.WithError(err).Warn("overdue sweep lock unavailable; sweeping without it")
		} else {
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					s.logger.WithError(err).Warn("failed to release overdue sweep lock")
				}
			}()
		}
	}
	n, err := s.sweeper.SweepOverdue(ctx)
	if err != nil {
		s.logger.WithError(err).Error("overdue sweep failed")
		return
	}
	if n > 0 {
		s.logger.WithField("loans", n).Info("marked loans overdue")
	}
}
