package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/report-dispatch/internal/domain"
	"github.com/kursadbilgin/report-dispatch/internal/observability"
	"github.com/kursadbilgin/report-dispatch/internal/queue"
	"github.com/kursadbilgin/report-dispatch/internal/repository"
	"github.com/kursadbilgin/report-dispatch/internal/schedule"
	"go.uber.org/zap"
)

const eventPublishTimeout = 5 * time.Second

// Trigger names the path that requested an evaluation.
type Trigger string

const (
	TriggerPeriodic Trigger = "periodic"
	TriggerManual   Trigger = "manual"
)

type DispatchRequest struct {
	Trigger Trigger
	// Force bypasses the day, time and duplicate gates.
	Force bool
}

type DispatchResult struct {
	RunID    string
	Trigger  Trigger
	Forced   bool
	Decision schedule.Decision
	Outcome  *domain.RunOutcome
}

func (r *DispatchResult) Ran() bool {
	return r != nil && r.Decision.ShouldRun()
}

func (r *DispatchResult) Summary() string {
	if r == nil {
		return "no evaluation"
	}
	if !r.Ran() {
		return fmt.Sprintf("skipped: %s", r.Decision.Reason)
	}
	return r.Outcome.Summary()
}

// ReportDispatcher is the single entry point shared by both trigger paths.
type ReportDispatcher interface {
	Dispatch(ctx context.Context, req DispatchRequest) (*DispatchResult, error)
}

// BatchRunner executes a batch for a date and commits the marker.
type BatchRunner interface {
	RunBatch(ctx context.Context, date domain.Date) (*domain.RunOutcome, error)
}

// Dispatcher serializes decide, run and commit. At most one evaluation is in
// flight per process, so concurrent triggers cannot both observe Run for the
// same date.
type Dispatcher struct {
	settings repository.SettingsStore
	runner   BatchRunner
	location *time.Location
	logger   *zap.Logger
	metrics  *observability.Metrics
	events   queue.Publisher
	now      func() time.Time
	newRunID func() string
	sem      chan struct{}
}

func NewDispatcher(
	settings repository.SettingsStore,
	runner BatchRunner,
	location *time.Location,
	logger *zap.Logger,
) (*Dispatcher, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings store is required")
	}
	if runner == nil {
		return nil, fmt.Errorf("batch runner is required")
	}
	if location == nil {
		location = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		settings: settings,
		runner:   runner,
		location: location,
		logger:   logger,
		now:      time.Now,
		newRunID: uuid.NewString,
		sem:      make(chan struct{}, 1),
	}, nil
}

func (d *Dispatcher) SetMetrics(metrics *observability.Metrics) {
	d.metrics = metrics
}

// SetEventPublisher enables batch events. Publishing is best effort and
// never changes the result of a run.
func (d *Dispatcher) SetEventPublisher(events queue.Publisher) {
	d.events = events
}

func (d *Dispatcher) Dispatch(ctx context.Context, req DispatchRequest) (*DispatchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if req.Trigger == "" {
		req.Trigger = TriggerManual
	}

	select {
	case d.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-d.sem }()

	runID := d.newRunID()
	ctx = observability.WithRunID(ctx, runID)
	logger := observability.WithContextLogger(d.logger, ctx).With(zap.String("trigger", string(req.Trigger)))

	snap, err := loadSchedule(ctx, d.settings)
	if err != nil {
		logger.Error("failed to load schedule settings", zap.Error(err))
		d.metrics.IncRun(string(req.Trigger), "error")
		return nil, err
	}
	snap.logWarnings(logger)

	now := d.now().In(d.location)
	decision := schedule.Decide(now, snap.Config, snap.Marker)
	if req.Force {
		decision = schedule.Force(now)
	}

	result := &DispatchResult{
		RunID:    runID,
		Trigger:  req.Trigger,
		Forced:   req.Force,
		Decision: decision,
	}
	d.metrics.IncDecision(string(req.Trigger), decisionLabel(decision, req.Force))

	if !decision.ShouldRun() {
		logSkip := logger.Debug
		if req.Trigger == TriggerManual {
			logSkip = logger.Info
		}
		logSkip("report dispatch skipped",
			zap.String("date", decision.Date.String()),
			zap.String("reason", decision.Reason.String()),
		)
		return result, nil
	}

	logger.Info("report dispatch starting",
		zap.String("date", decision.Date.String()),
		zap.Bool("forced", req.Force),
	)

	outcome, err := d.runner.RunBatch(ctx, decision.Date)
	result.Outcome = outcome
	d.publish(ctx, logger, result, err)
	if err != nil {
		d.metrics.IncRun(string(req.Trigger), "error")
		return result, err
	}

	runResult := "success"
	if outcome.PartialFailure() {
		runResult = "partial"
	}
	d.metrics.IncRun(string(req.Trigger), runResult)

	return result, nil
}

func (d *Dispatcher) publish(ctx context.Context, logger *zap.Logger, result *DispatchResult, runErr error) {
	if d.events == nil {
		return
	}

	event := queue.NewBatchEvent(result.RunID, string(result.Trigger), result.Forced, result.Outcome, runErr)
	if event.Date == "" {
		event.Date = result.Decision.Date.String()
	}

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()

	if err := d.events.Publish(publishCtx, event); err != nil {
		logger.Warn("failed to publish batch event",
			zap.String("routingKey", event.RoutingKey()),
			zap.Error(err),
		)
	}
}

func decisionLabel(decision schedule.Decision, forced bool) string {
	switch {
	case forced:
		return "forced"
	case decision.ShouldRun():
		return "run"
	default:
		return strings.ToLower(decision.Reason.String())
	}
}
