package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"bossfit/internal/ids"
	"bossfit/internal/jobs"
)

type Reaper interface {
	RunWithID(ctx context.Context, runID string) (jobs.ReapResult, error)
}

// Processor dispatches stream messages published by jobs.Scheduler.
type Processor struct {
	reaper Reaper
	logger zerolog.Logger
}

type TaskPayload struct {
	Type  string `json:"type"`
	RunID string `json:"runId"`
}

func NewProcessor(reaper Reaper, logger zerolog.Logger) *Processor {
	return &Processor{
		reaper: reaper,
		logger: logger,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	var payload TaskPayload
	if err := decodePayload(msg.Values, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	switch payload.Type {
	case jobs.TaskReap:
		return p.handleReap(ctx, payload)
	default:
		p.logger.Warn().Str("type", payload.Type).Str("message_id", msg.ID).Msg("unknown task type")
		return nil
	}
}

func decodePayload(values map[string]interface{}, out *TaskPayload) error {
	bytes, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, out)
}

func (p *Processor) handleReap(ctx context.Context, payload TaskPayload) error {
	runID := payload.RunID
	if runID == "" {
		runID = ids.New()
	}
	_, err := p.reaper.RunWithID(ctx, runID)
	return err
}
