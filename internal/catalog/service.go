// Package catalog はコースカタログの参照を提供する。読み取り専用。
package catalog

import (
	"context"
	"strings"

	"github.com/hitoshi/learnhub/internal/model"
	"github.com/hitoshi/learnhub/internal/repository"
)

// Service はコースカタログのサービス層。
type Service struct {
	repo repository.CourseRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.CourseRepository) *Service {
	return &Service{repo: repo}
}

// ListActiveCourses は受付中のコースをcategory, title, idの昇順で返す。
// 該当がない場合は空スライスを返す。
func (s *Service) ListActiveCourses(ctx context.Context, filter model.CourseFilter) ([]*model.Course, error) {
	filter.Category = strings.TrimSpace(filter.Category)
	filter.Search = strings.TrimSpace(filter.Search)
	if filter.Level != "" && !filter.Level.IsValid() {
		return nil, model.NewValidationError("level must be one of: Beginner, Intermediate, Advanced")
	}

	courses, err := s.repo.ListActive(ctx, filter)
	if err != nil {
		return nil, model.NewBackendUnavailableError(err)
	}
	if courses == nil {
		courses = []*model.Course{}
	}
	return courses, nil
}

// GetCourse は指定IDのコースを返す。受付停止中のコースも返す。
func (s *Service) GetCourse(ctx context.Context, id string) (*model.Course, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, model.NewBackendUnavailableError(err)
	}
	if c == nil {
		return nil, model.NewCourseNotFoundError(id)
	}
	return c, nil
}
