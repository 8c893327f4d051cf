// File: internal/orchestrator/orchestrator.go
// Description: Runs the (record, target) cross-product through the submission
// machine one pair at a time and aggregates a batch result.

package orchestrator

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Enroleai/Uni-Automation/api/schemas"
	"github.com/Enroleai/Uni-Automation/internal/submission"
)

// Runner executes one pair. *submission.Machine satisfies it.
type Runner interface {
	Run(ctx context.Context, record schemas.Record, target schemas.Target, password string) submission.Outcome
}

// Orchestrator is the batch coordinator. Pairs run strictly sequentially with a
// fixed delay between them.
type Orchestrator struct {
	runner Runner
	delay  time.Duration
	logger *zap.Logger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates an Orchestrator. A negative delay is treated as zero.
func New(runner Runner, delay time.Duration, logger *zap.Logger) (*Orchestrator, error) {
	if runner == nil || logger == nil {
		return nil, errors.New("cannot initialize orchestrator with nil dependencies")
	}
	if delay < 0 {
		delay = 0
	}
	return &Orchestrator{
		runner: runner,
		delay:  delay,
		logger: logger.Named("orchestrator"),
		now:    time.Now,
		sleep:  sleepContext,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run submits every record to every target, records outer and targets inner.
// Every pair appears in the result exactly once; pairs that never ran because
// the context was cancelled are reported as failed with the cancellation error.
func (o *Orchestrator) Run(ctx context.Context, records []schemas.Record, targets []schemas.Target, password string) schemas.BatchResult {
	total := len(records) * len(targets)
	result := schemas.BatchResult{Details: make([]schemas.BatchDetail, 0, total)}
	o.logger.Info("Starting batch", zap.Int("records", len(records)), zap.Int("targets", len(targets)), zap.Int("pairs", total))

	n := 0
	for _, record := range records {
		for _, target := range targets {
			n++
			if err := ctx.Err(); err != nil {
				result.Append(schemas.BatchDetail{
					RecordID:  record.ID,
					Target:    target.Name,
					Status:    schemas.StatusFailed,
					Error:     err.Error(),
					Timestamp: o.now().UTC(),
				})
				continue
			}

			o.logger.Info("Processing pair", zap.Int("pair", n), zap.Int("of", total),
				zap.Int64("record_id", record.ID), zap.String("target", target.Name))
			out := o.runner.Run(ctx, record, target, password)
			result.Append(detailFor(record, target, out, o.now()))

			if n < total {
				if err := o.sleep(ctx, o.delay); err != nil {
					o.logger.Warn("Batch interrupted during delay", zap.Error(err))
				}
			}
		}
	}

	o.logger.Info("Batch finished",
		zap.Int("total", result.Total),
		zap.Int("successful", result.Successful),
		zap.Int("failed", result.Failed))
	return result
}

func detailFor(record schemas.Record, target schemas.Target, out submission.Outcome, now time.Time) schemas.BatchDetail {
	d := schemas.BatchDetail{
		RecordID:  record.ID,
		Target:    target.Name,
		Success:   out.Success(),
		Status:    schemas.StatusFailed,
		Timestamp: now.UTC(),
	}
	if out.Submission != nil {
		d.SubmissionID = out.Submission.ID
		d.Status = out.Submission.Status
	}
	if out.Err != nil {
		d.Error = out.Err.Error()
	}
	return d
}
