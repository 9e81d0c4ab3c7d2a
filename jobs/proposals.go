package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/constructa/propostas/internal/jobs"
	"github.com/constructa/propostas/internal/platform/httpx"
	"github.com/constructa/propostas/internal/platform/mailer"
	"github.com/constructa/propostas/internal/proposals"
)

// ProposalService is the part of proposals.Service run by the worker.
type ProposalService interface {
	Deliver(ctx context.Context, d proposals.Delivery) error
	NotifyResponse(ctx context.Context, proposalID int64) error
	ExpireDue(ctx context.Context) (proposals.Expired, error)
}

// KeyCleaner prunes stored idempotency keys.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// ProposalJobs handles the proposal mail and maintenance tasks.
type ProposalJobs struct {
	Service ProposalService
	Keys    KeyCleaner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handlers lists the task handlers to register on the worker.
func (j *ProposalJobs) Handlers() []TaskHandler {
	hs := []TaskHandler{
		{Type: TaskProposalEmail, Handler: j.HandleProposalEmail},
		{Type: TaskResponseNotice, Handler: j.HandleResponseNotice},
		{Type: TaskExpireProposals, Handler: j.HandleExpire},
	}
	if j.Keys != nil {
		hs = append(hs, TaskHandler{Type: TaskIdempotencySweep, Handler: j.HandleIdempotencySweep})
	}
	return hs
}

func (j *ProposalJobs) HandleProposalEmail(ctx context.Context, t *asynq.Task) error {
	var d proposals.Delivery
	if err := json.Unmarshal(t.Payload(), &d); err != nil || d.ProposalID <= 0 {
		return fmt.Errorf("decode proposal email payload: %w", asynq.SkipRetry)
	}
	tracker := j.Metrics.Track(TaskProposalEmail)
	err := j.Service.Deliver(ctx, d)
	j.Metrics.EmailSent("proposal", err)
	return tracker.End(j.settle(err, slog.Int64("proposal_id", d.ProposalID)))
}

func (j *ProposalJobs) HandleResponseNotice(ctx context.Context, t *asynq.Task) error {
	var payload ResponseNoticePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.ProposalID <= 0 {
		return fmt.Errorf("decode response notice payload: %w", asynq.SkipRetry)
	}
	tracker := j.Metrics.Track(TaskResponseNotice)
	err := j.Service.NotifyResponse(ctx, payload.ProposalID)
	j.Metrics.EmailSent("response", err)
	return tracker.End(j.settle(err, slog.Int64("proposal_id", payload.ProposalID)))
}

func (j *ProposalJobs) HandleExpire(ctx context.Context, _ *asynq.Task) error {
	tracker := j.Metrics.Track(TaskExpireProposals)
	res, err := j.Service.ExpireDue(ctx)
	if err != nil {
		return tracker.End(err)
	}
	j.Metrics.AddExpired(res.Proposals, res.Quotes)
	if res.Proposals > 0 || res.Quotes > 0 {
		j.logger().Info("expired proposals", slog.Int64("proposals", res.Proposals), slog.Int64("quotes", res.Quotes))
	}
	return tracker.End(nil)
}

func (j *ProposalJobs) HandleIdempotencySweep(ctx context.Context, t *asynq.Task) error {
	var payload IdempotencySweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode idempotency sweep payload: %w", asynq.SkipRetry)
		}
	}
	if payload.RetentionHours <= 0 {
		payload.RetentionHours = 72
	}
	tracker := j.Metrics.Track(TaskIdempotencySweep)
	n, err := j.Keys.Cleanup(ctx, time.Duration(payload.RetentionHours)*time.Hour)
	if err != nil {
		return tracker.End(err)
	}
	j.logger().Debug("pruned idempotency keys", slog.Int64("deleted", n))
	return tracker.End(nil)
}

// settle stops retries for failures that a retry cannot fix, such as a
// deleted proposal or an invalid recipient.
func (j *ProposalJobs) settle(err error, attrs ...any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, httpx.ErrNotFound) || errors.Is(err, httpx.ErrValidation) || errors.Is(err, mailer.ErrInvalidMessage) {
		j.logger().Warn("dropping mail task", append(attrs, slog.Any("error", err))...)
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}

func (j *ProposalJobs) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
