// internal/service/expiry_job.go
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// ExpiryJob runs CardService.ExpireDueCards on a cron schedule.
type ExpiryJob struct {
	cards  CardService
	logger *slog.Logger
	cron   *cron.Cron
}

// NewExpiryJob parses schedule (standard five-field expression or a descriptor such as "@hourly").
func NewExpiryJob(cards CardService, schedule string, logger *slog.Logger) (*ExpiryJob, error) {
	j := &ExpiryJob{
		cards:  cards,
		logger: logger,
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
	if _, err := j.cron.AddFunc(schedule, j.Run); err != nil {
		return nil, fmt.Errorf("invalid expiry sweep schedule %q: %w", schedule, err)
	}
	return j, nil
}

// Run performs one sweep.
func (j *ExpiryJob) Run() {
	n, err := j.cards.ExpireDueCards(context.Background())
	if err != nil {
		j.logger.Error("expiry sweep failed", "error", err)
		return
	}
	if n > 0 {
		j.logger.Info("expiry sweep finished", "expired_cards", n)
	}
}

// Start schedules the job in its own goroutine.
func (j *ExpiryJob) Start() {
	j.cron.Start()
}

// Stop halts scheduling and waits for a running sweep or ctx, whichever ends first.
func (j *ExpiryJob) Stop(ctx context.Context) {
	done := j.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
