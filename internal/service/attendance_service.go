package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/report-dispatch/internal/domain"
	"github.com/kursadbilgin/report-dispatch/internal/repository"
)

// AttendanceStatusLookup computes a student's status on a date.
type AttendanceStatusLookup interface {
	StatusOf(ctx context.Context, studentID int64, date domain.Date) (domain.AttendanceStatus, error)
}

// AttendanceService derives status from fingerprint scans: no scan is
// absent, a first scan at or before the cutoff is present, later is late.
type AttendanceService struct {
	scans     repository.AttendanceRepository
	location  *time.Location
	lateAfter domain.TimeOfDay
}

func NewAttendanceService(
	scans repository.AttendanceRepository,
	location *time.Location,
	lateAfter domain.TimeOfDay,
) (*AttendanceService, error) {
	if scans == nil {
		return nil, fmt.Errorf("attendance repository is required")
	}
	if location == nil {
		location = time.Local
	}

	return &AttendanceService{
		scans:     scans,
		location:  location,
		lateAfter: lateAfter,
	}, nil
}

func (s *AttendanceService) StatusOf(ctx context.Context, studentID int64, date domain.Date) (domain.AttendanceStatus, error) {
	dayStart := date.In(s.location)
	dayEnd := dayStart.AddDate(0, 0, 1)

	scans, err := s.scans.ListScans(ctx, studentID, dayStart, dayEnd)
	if err != nil {
		return domain.AttendanceUnknown, fmt.Errorf("failed to list scans for student %d: %w", studentID, err)
	}
	if len(scans) == 0 {
		return domain.AttendanceAbsent, nil
	}

	cutoff := time.Date(dayStart.Year(), dayStart.Month(), dayStart.Day(), s.lateAfter.Hour, s.lateAfter.Minute, 59, 999999999, s.location)
	if scans[0].ScannedAt.In(s.location).After(cutoff) {
		return domain.AttendanceLate, nil
	}
	return domain.AttendancePresent, nil
}
