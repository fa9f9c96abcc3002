// Package scheduler starts interviews when their scheduled time arrives and
// optionally closes calls that stopped producing callbacks.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/recruitx/recruitx/internal/interview"
	"github.com/recruitx/recruitx/internal/storage"
)

// DefaultSpec runs the dispatcher once a minute.
const DefaultSpec = "@every 1m"

const defaultBatchSize = 20

var cronParser = cron.NewParser(
	cron.SecondOptional |
		cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// Store lists the interviews the scheduler acts on.
type Store interface {
	ListDueInterviews(ctx context.Context, now time.Time, limit int) ([]storage.Interview, error)
	ListStaleInterviews(ctx context.Context, cutoff time.Time, limit int) ([]storage.Interview, error)
}

// Lifecycle is the part of the interview service the scheduler drives.
type Lifecycle interface {
	Start(ctx context.Context, id string) (interview.Started, error)
	Status(ctx context.Context, id string) (interview.Status, error)
	Complete(ctx context.Context, id string) (storage.Report, error)
	Cancel(ctx context.Context, id string) error
}

type Config struct {
	// Spec is a cron expression or descriptor such as "@every 1m".
	Spec string
	// StaleAfter enables the sweep of in-progress interviews older than this.
	// Zero disables it.
	StaleAfter time.Duration
	BatchSize  int
}

type Scheduler struct {
	store     Store
	lifecycle Lifecycle
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

func New(store Store, lifecycle Lifecycle, cfg Config, logger *slog.Logger) (*Scheduler, error) {
	if cfg.Spec == "" {
		cfg.Spec = DefaultSpec
	}
	if _, err := cronParser.Parse(cfg.Spec); err != nil {
		return nil, fmt.Errorf("invalid scheduler spec %q: %w", cfg.Spec, err)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{store: store, lifecycle: lifecycle, cfg: cfg, logger: logger, now: time.Now}, nil
}

// Run executes the jobs on the configured schedule until ctx is cancelled and
// then waits for a running job to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithParser(cronParser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(s.cfg.Spec, func() { s.tick(ctx) }); err != nil {
		return err
	}
	c.Start()
	s.logger.Info("scheduler started", "spec", s.cfg.Spec, "stale_after", s.cfg.StaleAfter)

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.DispatchDue(ctx); err != nil {
		s.logger.Error("dispatching due interviews failed", "error", err)
	}
	if s.cfg.StaleAfter <= 0 {
		return
	}
	if _, err := s.SweepStale(ctx); err != nil {
		s.logger.Error("sweeping stale interviews failed", "error", err)
	}
}

// DispatchDue starts every scheduled interview whose time has come and
// returns how many calls were placed. A failed start leaves the interview
// scheduled for the next run.
func (s *Scheduler) DispatchDue(ctx context.Context) (int, error) {
	due, err := s.store.ListDueInterviews(ctx, s.now(), s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("listing due interviews: %w", err)
	}

	started := 0
	for _, iv := range due {
		if ctx.Err() != nil {
			return started, ctx.Err()
		}
		res, err := s.lifecycle.Start(ctx, iv.ID)
		switch {
		case err == nil:
			started++
			s.logger.Info("scheduled interview started", "interview_id", iv.ID, "call_sid", res.CallSID)
		case errors.Is(err, interview.ErrValidation), errors.Is(err, interview.ErrAlreadyComplete):
			// Started or cancelled elsewhere since the listing.
			s.logger.Debug("skipping due interview", "interview_id", iv.ID, "error", err)
		default:
			s.logger.Warn("starting due interview failed", "interview_id", iv.ID, "error", err)
		}
	}
	return started, nil
}

// SweepStale closes interviews that have been in progress longer than
// StaleAfter. Fully answered ones get their report; the rest are cancelled.
// It returns how many interviews were closed.
func (s *Scheduler) SweepStale(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.StaleAfter)
	stale, err := s.store.ListStaleInterviews(ctx, cutoff, s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("listing stale interviews: %w", err)
	}

	closed := 0
	for _, iv := range stale {
		if ctx.Err() != nil {
			return closed, ctx.Err()
		}
		if err := s.close(ctx, iv.ID); err != nil {
			s.logger.Warn("closing stale interview failed", "interview_id", iv.ID, "error", err)
			continue
		}
		closed++
	}
	return closed, nil
}

func (s *Scheduler) close(ctx context.Context, id string) error {
	st, err := s.lifecycle.Status(ctx, id)
	if err != nil {
		return err
	}
	if st.TotalQuestions > 0 && st.Answered >= st.TotalQuestions {
		_, err := s.lifecycle.Complete(ctx, id)
		if errors.Is(err, interview.ErrAlreadyComplete) {
			return nil
		}
		if err == nil {
			s.logger.Info("stale interview completed", "interview_id", id)
		}
		return err
	}
	if err := s.lifecycle.Cancel(ctx, id); err != nil {
		return err
	}
	s.logger.Info("stale interview cancelled", "interview_id", id, "answered", st.Answered, "total", st.TotalQuestions)
	return nil
}
