package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const defaultPollSchedule = "@every 1m"

// PeriodicTrigger evaluates the dispatch policy on a cron schedule for the
// lifetime of the process. Outcomes are only logged.
type PeriodicTrigger struct {
	dispatcher ReportDispatcher
	schedule   cron.Schedule
	spec       string
	logger     *zap.Logger
}

func NewPeriodicTrigger(dispatcher ReportDispatcher, spec string, logger *zap.Logger) (*PeriodicTrigger, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		spec = defaultPollSchedule
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid poll schedule %q: %w", spec, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PeriodicTrigger{
		dispatcher: dispatcher,
		schedule:   sched,
		spec:       spec,
		logger:     logger,
	}, nil
}

// Start evaluates once immediately, then on every tick until ctx is done.
// A tick that fires while the previous evaluation is still running is
// dropped rather than queued.
func (t *PeriodicTrigger) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	adapter := cronLogger{logger: t.logger.Sugar()}
	c := cron.New(
		cron.WithLogger(adapter),
		cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
	)
	c.Schedule(t.schedule, cron.FuncJob(func() { t.tick(ctx) }))

	t.logger.Info("periodic report trigger started", zap.String("schedule", t.spec))
	t.tick(ctx)

	c.Start()
	<-ctx.Done()

	<-c.Stop().Done()
	t.logger.Info("periodic report trigger stopped")
	return nil
}

func (t *PeriodicTrigger) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	result, err := t.dispatcher.Dispatch(ctx, DispatchRequest{Trigger: TriggerPeriodic})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		fields := []zap.Field{zap.Error(err)}
		if result != nil {
			fields = append(fields, zap.String("runId", result.RunID))
			if result.Outcome != nil {
				fields = append(fields, zap.String("outcome", result.Outcome.Summary()))
			}
		}
		t.logger.Error("periodic report dispatch failed", fields...)
		return
	}
	if result.Ran() {
		t.logger.Info("periodic report dispatch finished",
			zap.String("runId", result.RunID),
			zap.String("outcome", result.Summary()),
		)
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
