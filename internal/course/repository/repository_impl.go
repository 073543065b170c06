package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/entitlement/internal/course/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id string) (*domain.Course, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	var course domain.Course
	err := db.WithContext(ctx).Raw(
		`SELECT id, title, price, image_url, created_at FROM courses WHERE id = ?`,
		id,
	).Scan(&course).Error
	if err != nil {
		return nil, err
	}
	if course.ID == "" {
		return nil, nil
	}
	return &course, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.Course, error) {
	var courses []domain.Course
	err := db.WithContext(ctx).
		Model(&domain.Course{}).
		Order("title asc").
		Find(&courses).Error
	if err != nil {
		return nil, err
	}
	return courses, nil
}
