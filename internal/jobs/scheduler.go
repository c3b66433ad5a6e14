package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"bossfit/internal/config"
	"bossfit/internal/ids"
)

const (
	ModeInline = "inline"
	ModeQueue  = "queue"

	TaskReap = "reap"
)

// Runner is the part of Reaper the scheduler drives.
type Runner interface {
	RunWithID(ctx context.Context, runID string) (ReapResult, error)
}

// Scheduler triggers the reaper on a cron schedule, either in process or by
// publishing a task for cmd/worker.
type Scheduler struct {
	cron    *cron.Cron
	cfg     config.ReaperConfig
	reaper  Runner
	queue   *redis.Client
	stream  string
	timeout time.Duration
	log     zerolog.Logger
}

func NewScheduler(cfg config.ReaperConfig, reaper Runner, queue *redis.Client, stream string, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:    c,
		cfg:     cfg,
		reaper:  reaper,
		queue:   queue,
		stream:  stream,
		timeout: time.Minute,
		log:     log,
	}
}

func (s *Scheduler) Start() error {
	if !s.cfg.Enabled {
		s.log.Info().Msg("reaper disabled")
		return nil
	}

	var job func()
	switch s.cfg.Mode {
	case ModeInline, "":
		if s.reaper == nil {
			return fmt.Errorf("inline reaper mode needs a reaper")
		}
		job = s.runInline
	case ModeQueue:
		if s.queue == nil {
			return fmt.Errorf("queue reaper mode needs redis")
		}
		job = s.enqueueReap
	default:
		return fmt.Errorf("unknown reaper mode %q", s.cfg.Mode)
	}

	if _, err := s.cron.AddFunc(s.cfg.Schedule, job); err != nil {
		return fmt.Errorf("schedule reaper: %w", err)
	}

	s.cron.Start()
	s.log.Info().Str("schedule", s.cfg.Schedule).Str("mode", s.cfg.Mode).Msg("reaper scheduled")
	return nil
}

// Stop waits for a running job to finish, up to ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) runInline() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.reaper.RunWithID(ctx, ids.New()); err != nil {
		s.log.Error().Err(err).Msg("scheduled reap failed")
	}
}

func (s *Scheduler) enqueueReap() {
	if err := s.enqueueTask(map[string]any{
		"type":  TaskReap,
		"runId": ids.New(),
	}); err != nil {
		s.log.Error().Err(err).Msg("enqueue reap failed")
	}
}

func (s *Scheduler) enqueueTask(payload map[string]any) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := s.queue.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: payload,
	}).Result()
	return err
}
