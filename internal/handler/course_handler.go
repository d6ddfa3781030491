package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/learnhub/internal/model"
)

// CatalogServiceInterface はコースハンドラーが必要とするサービスインターフェース。
type CatalogServiceInterface interface {
	ListActiveCourses(ctx context.Context, filter model.CourseFilter) ([]*model.Course, error)
	GetCourse(ctx context.Context, id string) (*model.Course, error)
}

// CourseHandler はコースカタログのHTTPハンドラー。認証不要。
type CourseHandler struct {
	service CatalogServiceInterface
}

// NewCourseHandler はCourseHandlerを生成する。
func NewCourseHandler(service CatalogServiceInterface) *CourseHandler {
	return &CourseHandler{service: service}
}

// ListCourses は受付中のコース一覧を返す。
// GET /api/courses?category=&level=&q=
func (h *CourseHandler) ListCourses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.CourseFilter{
		Category: q.Get("category"),
		Level:    model.CourseLevel(q.Get("level")),
		Search:   q.Get("q"),
	}

	courses, err := h.service.ListActiveCourses(r.Context(), filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]courseResponse, 0, len(courses))
	for _, c := range courses {
		resp = append(resp, toCourseResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetCourse はコース詳細を返す。
// GET /api/courses/{id}
func (h *CourseHandler) GetCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, model.NewCourseNotFoundError)
	if !ok {
		return
	}

	course, err := h.service.GetCourse(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCourseResponse(course))
}
