package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/learnhub/internal/analytics"
	"github.com/hitoshi/learnhub/internal/model"
)

// CertificationServiceInterface は認定ワークフローのサービスインターフェース。
type CertificationServiceInterface interface {
	ApproveCertificate(ctx context.Context, actor model.CurrentUser, enrollmentID string) (*model.Enrollment, error)
	ListPending(ctx context.Context, actor model.CurrentUser) ([]model.PendingCertificate, error)
	ListMyCertificates(ctx context.Context, current model.CurrentUser) ([]model.EnrollmentWithCourse, error)
}

// UserServiceInterface はユーザー一覧のサービスインターフェース。
type UserServiceInterface interface {
	ListUsers(ctx context.Context, actor model.CurrentUser) ([]model.UserWithRoles, error)
	GetUser(ctx context.Context, actor model.CurrentUser, userID string) (*model.UserWithRoles, error)
}

// AnalyticsServiceInterface は管理者向け集計のサービスインターフェース。
type AnalyticsServiceInterface interface {
	Overview(ctx context.Context, actor model.CurrentUser) (*analytics.Overview, error)
}

// EnrollmentApprover は受講登録承認のサービスインターフェース。
type EnrollmentApprover interface {
	Approve(ctx context.Context, actor model.CurrentUser, enrollmentID string) (*model.Enrollment, error)
}

// AdminHandler は管理者向けのHTTPハンドラー。
// 権限チェックは各サービスがデータアクセスの前に行う。
type AdminHandler struct {
	enrollments    EnrollmentApprover
	certifications CertificationServiceInterface
	users          UserServiceInterface
	roles          RoleServiceInterface
	analytics      AnalyticsServiceInterface
}

// AdminHandlerDeps はAdminHandlerの依存関係。
type AdminHandlerDeps struct {
	Enrollments    EnrollmentApprover
	Certifications CertificationServiceInterface
	Users          UserServiceInterface
	Roles          RoleServiceInterface
	Analytics      AnalyticsServiceInterface
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(deps AdminHandlerDeps) *AdminHandler {
	return &AdminHandler{
		enrollments:    deps.Enrollments,
		certifications: deps.Certifications,
		users:          deps.Users,
		roles:          deps.Roles,
		analytics:      deps.Analytics,
	}
}

// ApproveEnrollment は申込中の受講登録を承認する。
// POST /api/admin/enrollments/{id}/approve
func (h *AdminHandler) ApproveEnrollment(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	id, ok := pathID(w, r, model.NewEnrollmentNotFoundError)
	if !ok {
		return
	}

	e, err := h.enrollments.Approve(r.Context(), actor, id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEnrollmentResponse(e))
}

// ListPendingCertificates は認定待ちの受講登録一覧を返す。
// GET /api/admin/certificates/pending
func (h *AdminHandler) ListPendingCertificates(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	list, err := h.certifications.ListPending(r.Context(), actor)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPendingCertificateResponses(list))
}

// ApproveCertificate は修了済みの受講登録を認定する。
// POST /api/admin/certificates/{id}/approve
func (h *AdminHandler) ApproveCertificate(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	id, ok := pathID(w, r, model.NewEnrollmentNotFoundError)
	if !ok {
		return
	}

	e, err := h.certifications.ApproveCertificate(r.Context(), actor, id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEnrollmentResponse(e))
}

// ListUsers はユーザー一覧をロール付きで返す。
// GET /api/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	users, err := h.users.ListUsers(r.Context(), actor)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	resp := make([]userResponse, 0, len(users))
	for i := range users {
		resp = append(resp, toUserResponse(&users[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetUser はユーザー1人をロール付きで返す。
// GET /api/admin/users/{id}
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	id, ok := pathID(w, r, userNotFound)
	if !ok {
		return
	}

	u, err := h.users.GetUser(r.Context(), actor, id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// GrantRole はユーザーにロールを付与する。
// PUT /api/admin/users/{id}/roles/{role}
func (h *AdminHandler) GrantRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	id, ok := pathID(w, r, userNotFound)
	if !ok {
		return
	}

	err := h.roles.Grant(r.Context(), actor, id, model.Role(chi.URLParam(r, "role")))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RevokeRole はユーザーからロールを剥奪する。
// DELETE /api/admin/users/{id}/roles/{role}
func (h *AdminHandler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	id, ok := pathID(w, r, userNotFound)
	if !ok {
		return
	}

	err := h.roles.Revoke(r.Context(), actor, id, model.Role(chi.URLParam(r, "role")))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Analytics は管理者向け集計を返す。
// GET /api/admin/analytics
func (h *AdminHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	o, err := h.analytics.Overview(r.Context(), actor)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAnalyticsResponse(o))
}
