package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/learnhub/internal/enrollment"
	"github.com/hitoshi/learnhub/internal/middleware"
	"github.com/hitoshi/learnhub/internal/model"
)

// EnrollmentServiceInterface は受講登録ハンドラーが必要とするサービスインターフェース。
type EnrollmentServiceInterface interface {
	Enroll(ctx context.Context, current model.CurrentUser, courseID string) (*model.Enrollment, error)
	Approve(ctx context.Context, actor model.CurrentUser, enrollmentID string) (*model.Enrollment, error)
	UpdateProgress(ctx context.Context, actor model.CurrentUser, enrollmentID string, progress int) (*model.Enrollment, error)
	Complete(ctx context.Context, actor model.CurrentUser, enrollmentID string) (*model.Enrollment, error)
	ListMyEnrollments(ctx context.Context, current model.CurrentUser) ([]model.EnrollmentWithCourse, error)
	Dashboard(ctx context.Context, current model.CurrentUser) (*enrollment.Dashboard, error)
}

// CertificateListerInterface は受講者本人の修了証一覧のサービスインターフェース。
type CertificateListerInterface interface {
	ListMyCertificates(ctx context.Context, current model.CurrentUser) ([]model.EnrollmentWithCourse, error)
}

// EnrollmentHandler は受講者向けの受講登録HTTPハンドラー。
type EnrollmentHandler struct {
	service      EnrollmentServiceInterface
	certificates CertificateListerInterface
}

// NewEnrollmentHandler はEnrollmentHandlerを生成する。
func NewEnrollmentHandler(service EnrollmentServiceInterface, certificates CertificateListerInterface) *EnrollmentHandler {
	return &EnrollmentHandler{service: service, certificates: certificates}
}

type enrollRequest struct {
	CourseID string `json:"course_id"`
}

type updateProgressRequest struct {
	// Progress はnullや欠落を0と区別するためポインタで受ける。
	Progress *int `json:"progress"`
}

// Enroll はコースへの受講登録を作成する。
// POST /api/enrollments
func (h *EnrollmentHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req enrollRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CourseID == "" {
		writeValidationError(w, "course_id is required")
		return
	}
	if !model.ValidID(req.CourseID) {
		middleware.WriteAPIError(w, model.NewCourseNotFoundError(req.CourseID))
		return
	}

	e, err := h.service.Enroll(r.Context(), user, req.CourseID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEnrollmentResponse(e))
}

// ListEnrollments は呼び出し元の受講登録一覧を返す。
// GET /api/enrollments
func (h *EnrollmentHandler) ListEnrollments(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	list, err := h.service.ListMyEnrollments(r.Context(), user)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEnrollmentWithCourseResponses(list))
}

// UpdateProgress は受講の進捗を更新する。
// PUT /api/enrollments/{id}/progress
func (h *EnrollmentHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, model.NewEnrollmentNotFoundError)
	if !ok {
		return
	}

	var req updateProgressRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Progress == nil {
		writeValidationError(w, "progress is required")
		return
	}

	e, err := h.service.UpdateProgress(r.Context(), user, id, *req.Progress)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEnrollmentResponse(e))
}

// Complete は受講を修了にする（進捗100）。
// POST /api/enrollments/{id}/complete
func (h *EnrollmentHandler) Complete(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, model.NewEnrollmentNotFoundError)
	if !ok {
		return
	}

	e, err := h.service.Complete(r.Context(), user, id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEnrollmentResponse(e))
}

// Dashboard は受講者ダッシュボードの集計を返す。
// GET /api/dashboard
func (h *EnrollmentHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	d, err := h.service.Dashboard(r.Context(), user)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardResponse(d))
}

// ListCertificates は呼び出し元の認定済み受講登録を返す。
// GET /api/certificates
func (h *EnrollmentHandler) ListCertificates(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	list, err := h.certificates.ListMyCertificates(r.Context(), user)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEnrollmentWithCourseResponses(list))
}
