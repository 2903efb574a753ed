package repository

import (
	"strings"
	"time"

	"github.com/kursadbilgin/report-dispatch/internal/domain"
)

// SettingModel is the persistence model for the key/value settings table.
type SettingModel struct {
	Key       string  `gorm:"type:varchar(64);primaryKey"`
	Value     *string `gorm:"type:text"`
	UpdatedAt time.Time
}

func (SettingModel) TableName() string {
	return "settings"
}

// TeacherModel is the persistence model for teachers.
type TeacherModel struct {
	ID        int64   `gorm:"primaryKey;autoIncrement"`
	Name      string  `gorm:"type:varchar(255);not null"`
	Email     *string `gorm:"type:varchar(255)"`
	ClassName *string `gorm:"column:class;type:varchar(64)"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (TeacherModel) TableName() string {
	return "teachers"
}

// StudentModel is the persistence model for students.
type StudentModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"type:varchar(255);not null"`
	ClassName string `gorm:"column:class;type:varchar(64);not null;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (StudentModel) TableName() string {
	return "students"
}

// AttendanceScanModel is the persistence model for fingerprint check-ins.
type AttendanceScanModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	StudentID int64     `gorm:"not null;index:idx_attendance_scans_student_time,priority:1"`
	ScannedAt time.Time `gorm:"type:timestamptz;not null;index:idx_attendance_scans_student_time,priority:2"`
	CreatedAt time.Time
}

func (AttendanceScanModel) TableName() string {
	return "attendance_scans"
}

func teacherModelToDomain(m *TeacherModel) domain.Teacher {
	if m == nil {
		return domain.Teacher{}
	}

	return domain.Teacher{
		ID:        m.ID,
		Name:      m.Name,
		Email:     derefTrimmed(m.Email),
		ClassName: derefTrimmed(m.ClassName),
	}
}

func studentModelToDomain(m *StudentModel) domain.Student {
	if m == nil {
		return domain.Student{}
	}

	return domain.Student{
		ID:        m.ID,
		Name:      m.Name,
		ClassName: m.ClassName,
	}
}

func attendanceScanModelToDomain(m *AttendanceScanModel) domain.AttendanceScan {
	if m == nil {
		return domain.AttendanceScan{}
	}

	return domain.AttendanceScan{
		ID:        m.ID,
		StudentID: m.StudentID,
		ScannedAt: m.ScannedAt,
	}
}

func derefTrimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
