package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/learnhub/internal/model"
)

func TestCourseHandler_ListCourses_PassesFilter(t *testing.T) {
	var got model.CourseFilter
	svc := &mockCatalogService{
		listFn: func(ctx context.Context, filter model.CourseFilter) ([]*model.Course, error) {
			got = filter
			return []*model.Course{
				{ID: testCourseID, Title: "Go Basics", Category: "Programming", Level: model.LevelBeginner, DurationWeeks: 4, IsActive: true},
			}, nil
		},
	}
	h := NewCourseHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/courses?category=Programming&level=Beginner&q=go", nil)
	w := httptest.NewRecorder()
	h.ListCourses(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	want := model.CourseFilter{Category: "Programming", Level: model.LevelBeginner, Search: "go"}
	if got != want {
		t.Errorf("filter = %+v, want %+v", got, want)
	}
	body := decodeBody[[]courseResponse](t, w)
	if len(body) != 1 || body[0].ID != testCourseID || body[0].Level != "Beginner" {
		t.Errorf("body = %+v", body)
	}
}

func TestCourseHandler_ListCourses_EmptyIsArray(t *testing.T) {
	h := NewCourseHandler(&mockCatalogService{})

	w := httptest.NewRecorder()
	h.ListCourses(w, httptest.NewRequest(http.MethodGet, "/api/courses", nil))

	if got := w.Body.String(); got != "[]\n" {
		t.Errorf("body = %q, want empty JSON array", got)
	}
}

func TestCourseHandler_ListCourses_InvalidLevel(t *testing.T) {
	svc := &mockCatalogService{
		listFn: func(ctx context.Context, filter model.CourseFilter) ([]*model.Course, error) {
			return nil, model.NewValidationError("unknown level")
		},
	}
	h := NewCourseHandler(svc)

	w := httptest.NewRecorder()
	h.ListCourses(w, httptest.NewRequest(http.MethodGet, "/api/courses?level=Expert", nil))

	assertErrorCode(t, w, http.StatusBadRequest, model.ErrCodeValidationFailed)
}

func TestCourseHandler_GetCourse(t *testing.T) {
	svc := &mockCatalogService{
		getFn: func(ctx context.Context, id string) (*model.Course, error) {
			if id != testCourseID {
				return nil, model.NewCourseNotFoundError(id)
			}
			return &model.Course{ID: testCourseID, Title: "Go Basics", IsActive: true}, nil
		},
	}
	h := NewCourseHandler(svc)

	t.Run("found", func(t *testing.T) {
		req := withChiURLParams(httptest.NewRequest(http.MethodGet, "/api/courses/"+testCourseID, nil), "id", testCourseID)
		w := httptest.NewRecorder()
		h.GetCourse(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		if body := decodeBody[courseResponse](t, w); body.Title != "Go Basics" {
			t.Errorf("title = %q", body.Title)
		}
	})

	t.Run("not found", func(t *testing.T) {
		req := withChiURLParams(httptest.NewRequest(http.MethodGet, "/", nil), "id", "00000000-0000-4000-8000-000000000000")
		w := httptest.NewRecorder()
		h.GetCourse(w, req)

		assertErrorCode(t, w, http.StatusNotFound, model.ErrCodeCourseNotFound)
	})
}
