// Package scheduler wires up the cron job that periodically audits listing
// capacity counters against the engagements recorded for them.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"alumnet/engagement-service/internal/lifecycle"
)

// DriftSource reports slot counters alongside engagement counts.
type DriftSource interface {
	CapacityDrift(ctx context.Context, d lifecycle.Domain) ([]lifecycle.CapacityDrift, error)
}

// DriftGauge receives the number of drifted listings per domain.
type DriftGauge interface {
	SetDrift(d lifecycle.Domain, n int)
}

// Scheduler wraps robfig/cron and manages the audit loop.
type Scheduler struct {
	cron   *cron.Cron
	source DriftSource
	gauge  DriftGauge
	log    *zap.Logger
	spec   string // cron spec, e.g. "@every 6h0m0s"
}

// New creates a Scheduler that audits every interval. gauge may be nil.
func New(source DriftSource, gauge DriftGauge, log *zap.Logger, interval time.Duration) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cronLogger{log.Sugar()})),
		source: source,
		gauge:  gauge,
		log:    log,
		spec:   "@every " + interval.String(),
	}
}

// Start registers the job and starts the scheduler. It also runs one audit
// immediately so drift is reported without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.run(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.log.Info("capacity audit scheduled", zap.String("spec", s.spec))

	go s.run(ctx)
	return nil
}

// Stop gracefully shuts down the scheduler and waits for a running audit.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("capacity audit stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	if _, err := s.Audit(ctx); err != nil {
		s.log.Error("capacity audit failed", zap.Error(err))
	}
}

// Audit checks every domain and returns the drifted listings. Overbooked
// listings are logged at warn level; they are the expected outcome of the
// non-strict accept path and are reported, not repaired.
func (s *Scheduler) Audit(ctx context.Context) ([]lifecycle.CapacityDrift, error) {
	var drifted []lifecycle.CapacityDrift
	for _, d := range lifecycle.Domains {
		items, err := s.source.CapacityDrift(ctx, d)
		if err != nil {
			return drifted, fmt.Errorf("audit %s: %w", d.Plural(), err)
		}

		n := 0
		for _, c := range items {
			if !c.Drifted() {
				continue
			}
			n++
			drifted = append(drifted, c)

			fields := []zap.Field{
				zap.String("domain", string(d)),
				zap.Int64("listingId", c.ListingID),
				zap.Int("available", c.Available),
				zap.Int("remaining", c.Remaining),
				zap.Int("engaged", c.Engaged),
			}
			if c.Overbooked() {
				s.log.Warn("listing overbooked", fields...)
			} else {
				s.log.Info("listing capacity drift", fields...)
			}
		}
		if s.gauge != nil {
			s.gauge.SetDrift(d, n)
		}
		s.log.Debug("capacity audit complete",
			zap.String("domain", string(d)),
			zap.Int("checked", len(items)),
			zap.Int("drifted", n),
		)
	}
	return drifted, nil
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
