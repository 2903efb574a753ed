package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/report-dispatch/internal/domain"
)

type FailedRecipient struct {
	RecipientID int64  `json:"recipientId"`
	Kind        string `json:"kind"`
	Error       string `json:"error,omitempty"`
}

// BatchEvent is the broker payload emitted after a report batch ran.
type BatchEvent struct {
	RunID      string            `json:"runId"`
	Trigger    string            `json:"trigger"`
	Forced     bool              `json:"forced"`
	Date       string            `json:"date"`
	Attempted  int               `json:"attempted"`
	Delivered  int               `json:"delivered"`
	Failed     []FailedRecipient `json:"failed"`
	Skipped    int               `json:"skipped"`
	Error      string            `json:"error,omitempty"`
	StartedAt  time.Time         `json:"startedAt"`
	FinishedAt time.Time         `json:"finishedAt"`
}

// NewBatchEvent builds an event from a run outcome. runErr is the hard
// error of the run, if any.
func NewBatchEvent(runID, trigger string, forced bool, outcome *domain.RunOutcome, runErr error) BatchEvent {
	event := BatchEvent{
		RunID:   runID,
		Trigger: trigger,
		Forced:  forced,
		Failed:  make([]FailedRecipient, 0),
	}
	if runErr != nil {
		event.Error = runErr.Error()
	}
	if outcome == nil {
		return event
	}

	event.Date = outcome.Date.String()
	event.Attempted = outcome.Attempted
	event.Delivered = outcome.Delivered
	event.Skipped = len(outcome.Skipped)
	event.StartedAt = outcome.StartedAt
	event.FinishedAt = outcome.FinishedAt
	for _, f := range outcome.Failed {
		event.Failed = append(event.Failed, FailedRecipient{
			RecipientID: f.RecipientID,
			Kind:        f.Kind.String(),
			Error:       f.Error,
		})
	}
	return event
}

func (e BatchEvent) Validate() error {
	if strings.TrimSpace(e.RunID) == "" {
		return fmt.Errorf("runId is required")
	}
	if strings.TrimSpace(e.Trigger) == "" {
		return fmt.Errorf("trigger is required")
	}
	if e.Date == "" && e.Error == "" {
		return fmt.Errorf("event must carry an outcome or an error")
	}
	return nil
}

// RoutingKey classifies the event for topic subscribers.
func (e BatchEvent) RoutingKey() string {
	switch {
	case e.Error != "":
		return RoutingKeyBatchFailed
	case len(e.Failed) > 0:
		return RoutingKeyBatchPartial
	default:
		return RoutingKeyBatchCompleted
	}
}
