package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kursadbilgin/report-dispatch/internal/domain"
	"github.com/kursadbilgin/report-dispatch/internal/observability"
	"github.com/kursadbilgin/report-dispatch/internal/repository"
	"go.uber.org/zap"
)

// RecipientSource enumerates report recipients and their class rosters.
type RecipientSource interface {
	ResolveRecipients(ctx context.Context) ([]domain.Teacher, []domain.SkippedRecipient, error)
	ResolveRoster(ctx context.Context, className string, date domain.Date) ([]domain.RosterEntry, error)
}

type RecipientResolver struct {
	teachers   repository.TeacherRepository
	students   repository.StudentRepository
	attendance AttendanceStatusLookup
	logger     *zap.Logger
}

func NewRecipientResolver(
	teachers repository.TeacherRepository,
	students repository.StudentRepository,
	attendance AttendanceStatusLookup,
	logger *zap.Logger,
) (*RecipientResolver, error) {
	if teachers == nil {
		return nil, fmt.Errorf("teacher repository is required")
	}
	if students == nil {
		return nil, fmt.Errorf("student repository is required")
	}
	if attendance == nil {
		return nil, fmt.Errorf("attendance lookup is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RecipientResolver{
		teachers:   teachers,
		students:   students,
		attendance: attendance,
		logger:     logger,
	}, nil
}

// ResolveRecipients splits all teachers into eligible recipients and skipped
// entries, preserving repository order.
func (r *RecipientResolver) ResolveRecipients(ctx context.Context) ([]domain.Teacher, []domain.SkippedRecipient, error) {
	teachers, err := r.teachers.ListAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrRecipientsUnavailable, err)
	}

	eligible := make([]domain.Teacher, 0, len(teachers))
	skipped := make([]domain.SkippedRecipient, 0)
	for _, t := range teachers {
		ok, reason := t.Eligible()
		if !ok {
			skipped = append(skipped, domain.SkippedRecipient{RecipientID: t.ID, Reason: reason})
			continue
		}
		t.Email = strings.TrimSpace(t.Email)
		t.ClassName = strings.TrimSpace(t.ClassName)
		eligible = append(eligible, t)
	}

	return eligible, skipped, nil
}

// ResolveRoster returns the class roster ordered by student name. A student
// whose status cannot be computed is kept with an Unknown status.
func (r *RecipientResolver) ResolveRoster(ctx context.Context, className string, date domain.Date) ([]domain.RosterEntry, error) {
	students, err := r.students.ListByClass(ctx, className)
	if err != nil {
		return nil, fmt.Errorf("failed to list students for class %s: %w", className, err)
	}

	logger := observability.WithContextLogger(r.logger, ctx)
	if len(students) == 0 {
		logger.Warn("class has no students, sending an empty report",
			zap.String("class", className),
			zap.String("date", date.String()),
		)
	}

	roster := make([]domain.RosterEntry, 0, len(students))
	for _, student := range students {
		status, err := r.attendance.StatusOf(ctx, student.ID, date)
		if err != nil {
			// Past the deadline every lookup would fail; fail the recipient instead.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("roster resolution for class %s interrupted: %w", className, ctxErr)
			}
			logger.Warn("attendance lookup failed, reporting status as unknown",
				zap.Int64("studentId", student.ID),
				zap.String("class", className),
				zap.Error(err),
			)
			status = domain.AttendanceUnknown
		}
		roster = append(roster, domain.RosterEntry{Student: student, Status: status})
	}

	sort.SliceStable(roster, func(i, j int) bool {
		a, b := roster[i].Student, roster[j].Student
		an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if an != bn {
			return an < bn
		}
		return a.ID < b.ID
	})

	return roster, nil
}
