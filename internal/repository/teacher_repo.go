package repository

import (
	"context"

	"github.com/kursadbilgin/report-dispatch/internal/domain"
	"gorm.io/gorm"
)

type TeacherRepository interface {
	ListAll(ctx context.Context) ([]domain.Teacher, error)
}

type GormTeacherRepo struct {
	db *gorm.DB
}

func NewGormTeacherRepo(db *gorm.DB) *GormTeacherRepo {
	return &GormTeacherRepo{db: db}
}

func (r *GormTeacherRepo) ListAll(ctx context.Context) ([]domain.Teacher, error) {
	var models []TeacherModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	teachers := make([]domain.Teacher, 0, len(models))
	for i := range models {
		teachers = append(teachers, teacherModelToDomain(&models[i]))
	}
	return teachers, nil
}
