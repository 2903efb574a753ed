package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/report-dispatch/internal/domain"
	"github.com/kursadbilgin/report-dispatch/internal/mailer"
	"github.com/kursadbilgin/report-dispatch/internal/observability"
	"github.com/kursadbilgin/report-dispatch/internal/ratelimit"
	"github.com/kursadbilgin/report-dispatch/internal/report"
	"github.com/kursadbilgin/report-dispatch/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultDeliveryTimeout     = 30 * time.Second
	defaultDispatchConcurrency = 4
	markerCommitTimeout        = 10 * time.Second
	pdfContentType             = "application/pdf"
)

// Coordinator runs one report batch: fan-out to every eligible teacher, then
// commit the last-sent marker.
type Coordinator struct {
	recipients  RecipientSource
	renderer    report.Renderer
	transport   mailer.Mailer
	settings    repository.SettingsStore
	limiter     ratelimit.RelayLimiter
	logger      *zap.Logger
	metrics     *observability.Metrics
	timeout     time.Duration
	concurrency int
	now         func() time.Time
}

// NewCoordinator builds a Coordinator. limiter may be nil.
func NewCoordinator(
	recipients RecipientSource,
	renderer report.Renderer,
	transport mailer.Mailer,
	settings repository.SettingsStore,
	limiter ratelimit.RelayLimiter,
	timeout time.Duration,
	concurrency int,
	logger *zap.Logger,
) (*Coordinator, error) {
	if recipients == nil {
		return nil, fmt.Errorf("recipient source is required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if transport == nil {
		return nil, fmt.Errorf("mail transport is required")
	}
	if settings == nil {
		return nil, fmt.Errorf("settings store is required")
	}
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	if concurrency <= 0 {
		concurrency = defaultDispatchConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Coordinator{
		recipients:  recipients,
		renderer:    renderer,
		transport:   transport,
		settings:    settings,
		limiter:     limiter,
		logger:      logger,
		timeout:     timeout,
		concurrency: concurrency,
		now:         time.Now,
	}, nil
}

func (c *Coordinator) SetMetrics(metrics *observability.Metrics) {
	c.metrics = metrics
}

// RunBatch attempts every eligible recipient for date and then commits the
// marker, whatever the per-recipient results. Only a recipient listing
// failure or a marker commit failure is returned as an error; on a commit
// failure the outcome is still returned.
func (c *Coordinator) RunBatch(ctx context.Context, date domain.Date) (*domain.RunOutcome, error) {
	logger := observability.WithContextLogger(c.logger, ctx)
	startedAt := c.now()

	recipients, skipped, err := c.recipients.ResolveRecipients(ctx)
	if err != nil {
		return nil, err
	}

	for _, s := range skipped {
		logger.Info("teacher skipped for report batch",
			zap.Int64("teacherId", s.RecipientID),
			zap.String("reason", s.Reason),
		)
	}
	c.metrics.AddRecipientsSkipped(len(skipped))

	results := make([]domain.RecipientResult, len(recipients))

	g := new(errgroup.Group)
	g.SetLimit(c.concurrency)
	for i := range recipients {
		g.Go(func() error {
			results[i] = c.deliver(ctx, recipients[i], date)
			return nil
		})
	}
	_ = g.Wait()

	outcome := domain.NewRunOutcome(date, results, skipped)
	outcome.StartedAt = startedAt
	outcome.FinishedAt = c.now()

	for _, r := range results {
		c.metrics.ObserveReportDuration(r.Duration)
		if r.State == domain.DeliveryDelivered {
			c.metrics.IncReportDelivered()
			continue
		}
		c.metrics.IncReportFailed(r.Kind.String())
		logger.Warn("report delivery failed",
			zap.Int64("teacherId", r.RecipientID),
			zap.String("class", r.ClassName),
			zap.String("kind", r.Kind.String()),
			zap.Error(r.Err),
		)
	}

	if err := c.commitMarker(ctx, date); err != nil {
		c.metrics.IncMarkerCommit(false)
		logger.Error("failed to commit report marker",
			zap.String("date", date.String()),
			zap.Error(err),
		)
		return outcome, err
	}
	c.metrics.IncMarkerCommit(true)

	logger.Info("report batch completed",
		zap.String("date", date.String()),
		zap.Int("attempted", outcome.Attempted),
		zap.Int("delivered", outcome.Delivered),
		zap.Int("failed", len(outcome.Failed)),
		zap.Int("skipped", len(outcome.Skipped)),
		zap.Duration("duration", outcome.FinishedAt.Sub(outcome.StartedAt)),
	)

	return outcome, nil
}

// commitMarker survives cancellation of the batch context so a batch that
// already attempted its recipients is not re-sent after a shutdown.
func (c *Coordinator) commitMarker(ctx context.Context, date domain.Date) error {
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markerCommitTimeout)
	defer cancel()

	if err := c.settings.Set(commitCtx, domain.SettingLastReportSentDate, date.String()); err != nil {
		return fmt.Errorf("%w for %s: %v", domain.ErrMarkerCommit, date, err)
	}
	return nil
}

// deliver resolves, renders and sends one report under the per-recipient timeout.
func (c *Coordinator) deliver(ctx context.Context, teacher domain.Teacher, date domain.Date) domain.RecipientResult {
	start := c.now()
	elapsed := func() time.Duration { return c.now().Sub(start) }

	recipientCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	roster, err := c.recipients.ResolveRoster(recipientCtx, teacher.ClassName, date)
	if err != nil {
		return domain.Failed(teacher, stageFailureKind(domain.FailureResolution, err), err, elapsed())
	}

	document, err := c.renderer.Render(teacher.ClassName, roster, date)
	if err != nil {
		return domain.Failed(teacher, domain.FailureRender, err, elapsed())
	}
	if err := recipientCtx.Err(); err != nil {
		return domain.Failed(teacher, domain.FailureTimeout, err, elapsed())
	}

	if c.limiter != nil {
		if err := c.limiter.Acquire(recipientCtx, date); err != nil {
			return domain.Failed(teacher, quotaFailureKind(err), fmt.Errorf("relay quota: %w", err), elapsed())
		}
	}

	envelope := domain.ClassReport{ClassName: teacher.ClassName, Date: date}
	msg := mailer.Message{
		To:      teacher.Email,
		Subject: envelope.Subject(),
		Body:    envelope.Body(),
		Attachment: &mailer.Attachment{
			Filename:    envelope.AttachmentFilename(),
			ContentType: pdfContentType,
			Data:        document,
		},
	}
	if err := c.transport.Send(recipientCtx, msg); err != nil {
		return domain.Failed(teacher, transportFailureKind(err), err, elapsed())
	}

	return domain.Delivered(teacher, elapsed())
}

func stageFailureKind(stage domain.FailureKind, err error) domain.FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.FailureTimeout
	}
	return stage
}

func quotaFailureKind(err error) domain.FailureKind {
	if errors.Is(err, ratelimit.ErrDailyQuotaExhausted) {
		return domain.FailureQuota
	}
	return stageFailureKind(domain.FailureTransport, err)
}

func transportFailureKind(err error) domain.FailureKind {
	switch mailer.KindOf(err) {
	case mailer.KindAuth:
		return domain.FailureAuth
	case mailer.KindConnection:
		return domain.FailureConnection
	case mailer.KindRejected:
		return domain.FailureRejected
	case mailer.KindTimeout:
		return domain.FailureTimeout
	default:
		return domain.FailureTransport
	}
}
