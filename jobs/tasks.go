package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/constructa/propostas/internal/proposals"
)

const (
	// QueueDefault carries maintenance work.
	QueueDefault = "default"
	// QueueMail carries outgoing email and is weighted above maintenance.
	QueueMail = "mail"

	TaskProposalEmail    = "mail:proposal"
	TaskResponseNotice   = "mail:proposal_response"
	TaskExpireProposals  = "proposal:expire"
	TaskIdempotencySweep = "idempotency:cleanup"
)

// ResponseNoticePayload identifies the answered proposal whose vendor is notified.
type ResponseNoticePayload struct {
	ProposalID int64 `json:"proposal_id"`
}

// IdempotencySweepPayload sets how long mail idempotency keys are kept.
type IdempotencySweepPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewProposalEmailTask wraps a proposal delivery.
func NewProposalEmailTask(d proposals.Delivery) (*asynq.Task, error) {
	if d.ProposalID <= 0 {
		return nil, fmt.Errorf("proposal email task: invalid proposal id %d", d.ProposalID)
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskProposalEmail, data), nil
}

func NewResponseNoticeTask(proposalID int64) (*asynq.Task, error) {
	if proposalID <= 0 {
		return nil, fmt.Errorf("response notice task: invalid proposal id %d", proposalID)
	}
	data, err := json.Marshal(ResponseNoticePayload{ProposalID: proposalID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskResponseNotice, data), nil
}

// NewExpireProposalsTask builds the periodic expiry sweep. Its payload is empty.
func NewExpireProposalsTask() *asynq.Task {
	return asynq.NewTask(TaskExpireProposals, nil)
}

func NewIdempotencySweepTask(retentionHours int) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencySweepPayload{RetentionHours: retentionHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencySweep, data), nil
}
