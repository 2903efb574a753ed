package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/report-dispatch/internal/domain"
	"github.com/kursadbilgin/report-dispatch/internal/repository"
	"go.uber.org/zap"
)

// scheduleSnapshot is one read of the schedule settings and marker.
type scheduleSnapshot struct {
	Config     domain.ScheduleConfig
	Marker     domain.DispatchMarker
	Convention domain.WeekdayConvention

	RawSendDays string
	RawSendTime string
	RawMarker   string

	SendTimeFallback bool
	MarkerMalformed  bool
}

// loadSchedule reads the stored settings. Malformed values fall back to
// defaults; only store failures are returned.
func loadSchedule(ctx context.Context, store repository.SettingsStore) (scheduleSnapshot, error) {
	var snap scheduleSnapshot

	raw := make(map[string]string, 4)
	for _, key := range []string{
		domain.SettingSendDays,
		domain.SettingSendDaysConvention,
		domain.SettingSendTime,
		domain.SettingLastReportSentDate,
	} {
		value, err := store.Get(ctx, key)
		if err != nil {
			return snap, fmt.Errorf("failed to read setting %s: %w", key, err)
		}
		if value != nil {
			raw[key] = strings.TrimSpace(*value)
		}
	}

	snap.Convention = domain.ParseWeekdayConvention(raw[domain.SettingSendDaysConvention])
	snap.RawSendDays = raw[domain.SettingSendDays]
	snap.RawSendTime = raw[domain.SettingSendTime]
	snap.RawMarker = raw[domain.SettingLastReportSentDate]

	snap.Config.SendDays = domain.ParseSendDays(snap.RawSendDays, snap.Convention)
	sendTime, ok := domain.ParseSendTime(snap.RawSendTime)
	snap.Config.SendTime = sendTime
	snap.SendTimeFallback = !ok

	if snap.RawMarker != "" {
		date, err := domain.ParseDate(snap.RawMarker)
		if err != nil {
			snap.MarkerMalformed = true
		} else {
			snap.Marker.LastRunDate = &date
		}
	}

	return snap, nil
}

func (s scheduleSnapshot) logWarnings(logger *zap.Logger) {
	if s.SendTimeFallback && s.RawSendTime != "" {
		logger.Warn("stored send time is invalid, using default",
			zap.String("sendTime", s.RawSendTime),
			zap.String("default", domain.DefaultSendTime.String()),
		)
	}
	if s.MarkerMalformed {
		logger.Warn("stored last report date is invalid, treating as never sent",
			zap.String("lastReportSentDate", s.RawMarker),
		)
	}
}
