package repository

import (
	"context"
	"strings"

	"github.com/kursadbilgin/report-dispatch/internal/domain"
	"gorm.io/gorm"
)

type StudentRepository interface {
	// ListByClass returns the class roster ordered by name. Class names are
	// compared without surrounding whitespace.
	ListByClass(ctx context.Context, className string) ([]domain.Student, error)
}

type GormStudentRepo struct {
	db *gorm.DB
}

func NewGormStudentRepo(db *gorm.DB) *GormStudentRepo {
	return &GormStudentRepo{db: db}
}

func (r *GormStudentRepo) ListByClass(ctx context.Context, className string) ([]domain.Student, error) {
	var models []StudentModel
	err := r.db.WithContext(ctx).
		Where("TRIM(class) = ?", strings.TrimSpace(className)).
		Order("name ASC").
		Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	students := make([]domain.Student, 0, len(models))
	for i := range models {
		students = append(students, studentModelToDomain(&models[i]))
	}
	return students, nil
}
