package domain

import (
	"fmt"
	"time"
)

// FailureKind classifies why a recipient did not receive its report.
type FailureKind string

const (
	FailureResolution FailureKind = "resolution"
	FailureRender     FailureKind = "render"
	FailureAuth       FailureKind = "auth"
	FailureConnection FailureKind = "connection"
	FailureRejected   FailureKind = "rejected"
	FailureTimeout    FailureKind = "timeout"
	FailureTransport  FailureKind = "transport"
	FailureQuota      FailureKind = "quota"
)

func (k FailureKind) String() string { return string(k) }

// DeliveryState is the tag of a RecipientResult.
type DeliveryState string

const (
	DeliveryDelivered DeliveryState = "DELIVERED"
	DeliveryFailed    DeliveryState = "FAILED"
)

// RecipientResult is the per-recipient result of a batch.
type RecipientResult struct {
	RecipientID int64
	Email       string
	ClassName   string
	State       DeliveryState
	Kind        FailureKind
	Err         error
	Duration    time.Duration
}

func Delivered(t Teacher, d time.Duration) RecipientResult {
	return RecipientResult{
		RecipientID: t.ID,
		Email:       t.Email,
		ClassName:   t.ClassName,
		State:       DeliveryDelivered,
		Duration:    d,
	}
}

func Failed(t Teacher, kind FailureKind, err error, d time.Duration) RecipientResult {
	return RecipientResult{
		RecipientID: t.ID,
		Email:       t.Email,
		ClassName:   t.ClassName,
		State:       DeliveryFailed,
		Kind:        kind,
		Err:         err,
		Duration:    d,
	}
}

// RecipientFailure is an entry of RunOutcome.Failed.
type RecipientFailure struct {
	RecipientID int64
	Kind        FailureKind
	Error       string
}

// SkippedRecipient is a teacher excluded before fan-out.
type SkippedRecipient struct {
	RecipientID int64
	Reason      string
}

// RunOutcome summarises one batch run.
type RunOutcome struct {
	Date       Date
	Attempted  int
	Delivered  int
	Failed     []RecipientFailure
	Skipped    []SkippedRecipient
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewRunOutcome aggregates results in recipient order.
func NewRunOutcome(date Date, results []RecipientResult, skipped []SkippedRecipient) *RunOutcome {
	outcome := &RunOutcome{
		Date:      date,
		Attempted: len(results),
		Failed:    make([]RecipientFailure, 0),
		Skipped:   skipped,
	}
	if outcome.Skipped == nil {
		outcome.Skipped = make([]SkippedRecipient, 0)
	}
	for _, r := range results {
		if r.State == DeliveryDelivered {
			outcome.Delivered++
			continue
		}
		msg := ""
		if r.Err != nil {
			msg = r.Err.Error()
		}
		outcome.Failed = append(outcome.Failed, RecipientFailure{
			RecipientID: r.RecipientID,
			Kind:        r.Kind,
			Error:       msg,
		})
	}
	return outcome
}

func (o *RunOutcome) PartialFailure() bool {
	return o != nil && len(o.Failed) > 0
}

func (o *RunOutcome) Summary() string {
	if o == nil {
		return "no batch was run"
	}
	return fmt.Sprintf("reports for %s: attempted %d, delivered %d, failed %d, skipped %d",
		o.Date, o.Attempted, o.Delivered, len(o.Failed), len(o.Skipped))
}
