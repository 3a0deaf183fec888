package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Scheduler runs tickFn once on start and then every interval on a single
// goroutine, so ticks never overlap.
type Scheduler struct {
	tickFn func(context.Context)
	log    *logrus.Logger

	running atomic.Bool

	mu       sync.Mutex
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

func New(interval time.Duration, tickFn func(context.Context), log *logrus.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if tickFn == nil {
		return nil, errors.New("tickFn must not be nil")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{
		interval: interval,
		tickFn:   tickFn,
		log:      log,
		done:     make(chan struct{}),
	}, nil
}

func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked()
}

func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

// Reset changes the interval. A running scheduler is restarted with it.
func (s *Scheduler) Reset(interval time.Duration) error {
	if interval <= 0 {
		return errors.New("interval must be > 0")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.interval == interval {
		return nil
	}
	s.interval = interval
	if s.stopLocked() {
		s.startLocked()
	}
	return nil
}

func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

func (s *Scheduler) startLocked() bool {
	if s.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)
	interval, done := s.interval, s.done

	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		s.log.WithField("interval", interval.String()).Info("scheduler started")

		s.safeTick(ctx)

		for {
			select {
			case <-ctx.Done():
				s.log.Info("scheduler stopping")
				return
			case <-ticker.C:
				s.safeTick(ctx)
			}
		}
	}()

	return true
}

func (s *Scheduler) stopLocked() bool {
	if !s.running.Load() {
		return false
	}

	s.cancel()
	<-s.done
	s.running.Store(false)

	s.log.Info("scheduler stopped")
	return true
}

func (s *Scheduler) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("panic", r).Error("scheduler tick panic recovered")
		}
	}()

	start := time.Now()
	s.tickFn(ctx)
	s.log.WithField("duration_ms", time.Since(start).Milliseconds()).Debug("scheduler tick completed")
}
