package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/report-dispatch/internal/domain"
	"github.com/kursadbilgin/report-dispatch/internal/repository"
	"github.com/kursadbilgin/report-dispatch/internal/schedule"
	"go.uber.org/zap"
)

// ScheduleView is the operator-facing state of the report schedule.
type ScheduleView struct {
	SendDays           []domain.Weekday
	SendDaysRaw        string
	Convention         domain.WeekdayConvention
	SendTime           domain.TimeOfDay
	SendTimeRaw        string
	SendTimeFallback   bool
	LastReportSentDate *domain.Date
	Now                time.Time
	Decision           schedule.Decision
}

// UpdateScheduleInput carries the fields to change; nil fields are kept.
type UpdateScheduleInput struct {
	SendDays   *[]string
	SendTime   *string
	Convention *string
}

type ScheduleService struct {
	settings repository.SettingsStore
	location *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

func NewScheduleService(settings repository.SettingsStore, location *time.Location, logger *zap.Logger) (*ScheduleService, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings store is required")
	}
	if location == nil {
		location = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ScheduleService{
		settings: settings,
		location: location,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Get returns the stored schedule and the decision the policy would make now.
func (s *ScheduleService) Get(ctx context.Context) (*ScheduleView, error) {
	snap, err := loadSchedule(ctx, s.settings)
	if err != nil {
		return nil, err
	}

	now := s.now().In(s.location)
	return &ScheduleView{
		SendDays:           snap.Config.SendDays.Days(),
		SendDaysRaw:        snap.RawSendDays,
		Convention:         snap.Convention,
		SendTime:           snap.Config.SendTime,
		SendTimeRaw:        snap.RawSendTime,
		SendTimeFallback:   snap.SendTimeFallback,
		LastReportSentDate: snap.Marker.LastRunDate,
		Now:                now,
		Decision:           schedule.Decide(now, snap.Config, snap.Marker),
	}, nil
}

// Update validates and stores schedule settings. Unlike reads, writes are
// strict: unknown weekday codes and malformed times are rejected.
func (s *ScheduleService) Update(ctx context.Context, input UpdateScheduleInput) (*ScheduleView, error) {
	if input.SendDays == nil && input.SendTime == nil && input.Convention == nil {
		return nil, fmt.Errorf("%w: at least one of sendDays, sendTime or convention is required", domain.ErrValidation)
	}

	conv := domain.ConventionMonday0
	if input.Convention != nil {
		conv = domain.WeekdayConvention(strings.ToLower(strings.TrimSpace(*input.Convention)))
		if !conv.IsValid() {
			return nil, fmt.Errorf("%w: unknown weekday convention %q", domain.ErrValidation, *input.Convention)
		}
	} else if input.SendDays != nil {
		stored, err := s.settings.Get(ctx, domain.SettingSendDaysConvention)
		if err != nil {
			return nil, fmt.Errorf("failed to read setting %s: %w", domain.SettingSendDaysConvention, err)
		}
		if stored != nil {
			conv = domain.ParseWeekdayConvention(*stored)
		}
	}

	updates := make([][2]string, 0, 3)

	if input.Convention != nil {
		updates = append(updates, [2]string{domain.SettingSendDaysConvention, string(conv)})
	}

	if input.SendDays != nil {
		var set domain.WeekdaySet
		for _, token := range *input.SendDays {
			day, ok := domain.ParseWeekdayCode(token, conv)
			if !ok {
				return nil, fmt.Errorf("%w: invalid weekday %q for convention %s", domain.ErrValidation, token, conv)
			}
			set = set.With(day)
		}
		updates = append(updates, [2]string{domain.SettingSendDays, set.FormatAs(conv)})
	}

	if input.SendTime != nil {
		sendTime, err := domain.ValidateSendTime(*input.SendTime)
		if err != nil {
			return nil, err
		}
		updates = append(updates, [2]string{domain.SettingSendTime, sendTime.String()})
	}

	for _, kv := range updates {
		if err := s.settings.Set(ctx, kv[0], kv[1]); err != nil {
			return nil, fmt.Errorf("failed to save setting %s: %w", kv[0], err)
		}
	}

	s.logger.Info("report schedule updated", zap.Int("changedKeys", len(updates)))
	return s.Get(ctx)
}
