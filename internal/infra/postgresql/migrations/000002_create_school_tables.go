package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/report-dispatch/internal/repository"
	"gorm.io/gorm"
)

func createTeachersTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_teachers",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.TeacherModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.TeacherModel{})
		},
	}
}

func createStudentsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_students",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.StudentModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_students_class_name ON students (class, name)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.StudentModel{})
		},
	}
}

func createAttendanceScansTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_attendance_scans",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.AttendanceScanModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.AttendanceScanModel{})
		},
	}
}
