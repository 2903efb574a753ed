package repository

import (
	"context"
	"time"

	"github.com/kursadbilgin/report-dispatch/internal/domain"
	"gorm.io/gorm"
)

type AttendanceRepository interface {
	// ListScans returns scans for a student in [from, to), earliest first.
	ListScans(ctx context.Context, studentID int64, from, to time.Time) ([]domain.AttendanceScan, error)
}

type GormAttendanceRepo struct {
	db *gorm.DB
}

func NewGormAttendanceRepo(db *gorm.DB) *GormAttendanceRepo {
	return &GormAttendanceRepo{db: db}
}

func (r *GormAttendanceRepo) ListScans(ctx context.Context, studentID int64, from, to time.Time) ([]domain.AttendanceScan, error) {
	var models []AttendanceScanModel
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND scanned_at >= ? AND scanned_at < ?", studentID, from, to).
		Order("scanned_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	scans := make([]domain.AttendanceScan, 0, len(models))
	for i := range models {
		scans = append(scans, attendanceScanModelToDomain(&models[i]))
	}
	return scans, nil
}
