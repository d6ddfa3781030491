package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/learnhub/internal/analytics"
	"github.com/hitoshi/learnhub/internal/contact"
	"github.com/hitoshi/learnhub/internal/enrollment"
	"github.com/hitoshi/learnhub/internal/middleware"
	"github.com/hitoshi/learnhub/internal/model"
	"github.com/hitoshi/learnhub/internal/profile"
)

// --- ヘルパー ---

var testUser = model.CurrentUser{ID: "user-123", Email: "ada@example.com"}

const (
	testEnrollmentID = "4b0e6f2a-9c1d-4e3b-8a5f-6d7c8e9f0a1b"
	testCourseID     = "1d2e3f4a-5b6c-4d7e-8f90-a1b2c3d4e5f6"
	testTargetUserID = "8e7d6c5b-4a39-4281-9f0e-d1c2b3a4f5e6"
	testSubmissionID = "5a6b7c8d-9e0f-4a1b-8c2d-3e4f5a6b7c8d"
)

// withUser はテスト用に認証済みユーザーをコンテキストに注入する。
func withUser(r *http.Request, user model.CurrentUser) *http.Request {
	return r.WithContext(middleware.ContextWithCurrentUser(r.Context(), user))
}

// withChiURLParams はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// decodeBody はレスポンスボディをJSONとしてデコードする。
func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response body: %v (body=%q)", err, w.Body.String())
	}
	return v
}

// assertErrorCode はエラーレスポンスのステータスとコードを検証する。
func assertErrorCode(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantCode string) {
	t.Helper()
	if w.Code != wantStatus {
		t.Errorf("status = %d, want %d (body=%s)", w.Code, wantStatus, w.Body.String())
	}
	body := decodeBody[middleware.ErrorResponseBody](t, w)
	if body.Code != wantCode {
		t.Errorf("code = %q, want %q", body.Code, wantCode)
	}
}

// --- モック定義 ---

type mockCatalogService struct {
	listFn func(ctx context.Context, filter model.CourseFilter) ([]*model.Course, error)
	getFn  func(ctx context.Context, id string) (*model.Course, error)
}

func (m *mockCatalogService) ListActiveCourses(ctx context.Context, filter model.CourseFilter) ([]*model.Course, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return []*model.Course{}, nil
}

func (m *mockCatalogService) GetCourse(ctx context.Context, id string) (*model.Course, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.NewCourseNotFoundError(id)
}

type mockContactService struct {
	submitFn       func(ctx context.Context, in contact.Input) (*model.ContactSubmission, error)
	listFn         func(ctx context.Context, actor model.CurrentUser, status model.ContactStatus) ([]*model.ContactSubmission, error)
	updateStatusFn func(ctx context.Context, actor model.CurrentUser, id string, to model.ContactStatus) (*model.ContactSubmission, error)
}

func (m *mockContactService) Submit(ctx context.Context, in contact.Input) (*model.ContactSubmission, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, in)
	}
	return &model.ContactSubmission{ID: "sub-1", Status: model.ContactStatusNew}, nil
}

func (m *mockContactService) List(ctx context.Context, actor model.CurrentUser, status model.ContactStatus) ([]*model.ContactSubmission, error) {
	if m.listFn != nil {
		return m.listFn(ctx, actor, status)
	}
	return []*model.ContactSubmission{}, nil
}

func (m *mockContactService) UpdateStatus(ctx context.Context, actor model.CurrentUser, id string, to model.ContactStatus) (*model.ContactSubmission, error) {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, actor, id, to)
	}
	return &model.ContactSubmission{ID: id, Status: to}, nil
}

type mockProfileService struct {
	getFn    func(ctx context.Context, userID string) (*model.Profile, error)
	upsertFn func(ctx context.Context, current model.CurrentUser, in profile.Input) (*model.Profile, error)
}

func (m *mockProfileService) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID)
	}
	return nil, model.NewProfileNotFoundError()
}

func (m *mockProfileService) UpsertProfile(ctx context.Context, current model.CurrentUser, in profile.Input) (*model.Profile, error) {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, current, in)
	}
	return &model.Profile{UserID: current.ID, FullName: in.FullName, Email: current.Email}, nil
}

type mockRoleService struct {
	rolesFn  func(ctx context.Context, userID string) ([]model.Role, error)
	grantFn  func(ctx context.Context, actor model.CurrentUser, userID string, role model.Role) error
	revokeFn func(ctx context.Context, actor model.CurrentUser, userID string, role model.Role) error
}

func (m *mockRoleService) Roles(ctx context.Context, userID string) ([]model.Role, error) {
	if m.rolesFn != nil {
		return m.rolesFn(ctx, userID)
	}
	return []model.Role{model.RoleUser}, nil
}

func (m *mockRoleService) Grant(ctx context.Context, actor model.CurrentUser, userID string, role model.Role) error {
	if m.grantFn != nil {
		return m.grantFn(ctx, actor, userID, role)
	}
	return nil
}

func (m *mockRoleService) Revoke(ctx context.Context, actor model.CurrentUser, userID string, role model.Role) error {
	if m.revokeFn != nil {
		return m.revokeFn(ctx, actor, userID, role)
	}
	return nil
}

type mockEnrollmentService struct {
	enrollFn         func(ctx context.Context, current model.CurrentUser, courseID string) (*model.Enrollment, error)
	approveFn        func(ctx context.Context, actor model.CurrentUser, id string) (*model.Enrollment, error)
	updateProgressFn func(ctx context.Context, actor model.CurrentUser, id string, progress int) (*model.Enrollment, error)
	completeFn       func(ctx context.Context, actor model.CurrentUser, id string) (*model.Enrollment, error)
	listFn           func(ctx context.Context, current model.CurrentUser) ([]model.EnrollmentWithCourse, error)
	dashboardFn      func(ctx context.Context, current model.CurrentUser) (*enrollment.Dashboard, error)
}

func (m *mockEnrollmentService) Enroll(ctx context.Context, current model.CurrentUser, courseID string) (*model.Enrollment, error) {
	if m.enrollFn != nil {
		return m.enrollFn(ctx, current, courseID)
	}
	return &model.Enrollment{ID: testEnrollmentID, UserID: current.ID, CourseID: courseID, Status: model.StatusPending}, nil
}

func (m *mockEnrollmentService) Approve(ctx context.Context, actor model.CurrentUser, id string) (*model.Enrollment, error) {
	if m.approveFn != nil {
		return m.approveFn(ctx, actor, id)
	}
	return &model.Enrollment{ID: id, Status: model.StatusActive}, nil
}

func (m *mockEnrollmentService) UpdateProgress(ctx context.Context, actor model.CurrentUser, id string, progress int) (*model.Enrollment, error) {
	if m.updateProgressFn != nil {
		return m.updateProgressFn(ctx, actor, id, progress)
	}
	return &model.Enrollment{ID: id, Status: model.StatusActive, Progress: progress}, nil
}

func (m *mockEnrollmentService) Complete(ctx context.Context, actor model.CurrentUser, id string) (*model.Enrollment, error) {
	if m.completeFn != nil {
		return m.completeFn(ctx, actor, id)
	}
	return &model.Enrollment{ID: id, Status: model.StatusCompleted, Progress: 100}, nil
}

func (m *mockEnrollmentService) ListMyEnrollments(ctx context.Context, current model.CurrentUser) ([]model.EnrollmentWithCourse, error) {
	if m.listFn != nil {
		return m.listFn(ctx, current)
	}
	return []model.EnrollmentWithCourse{}, nil
}

func (m *mockEnrollmentService) Dashboard(ctx context.Context, current model.CurrentUser) (*enrollment.Dashboard, error) {
	if m.dashboardFn != nil {
		return m.dashboardFn(ctx, current)
	}
	d := enrollment.Summarize(nil)
	return &d, nil
}

type mockCertificationService struct {
	approveFn func(ctx context.Context, actor model.CurrentUser, id string) (*model.Enrollment, error)
	pendingFn func(ctx context.Context, actor model.CurrentUser) ([]model.PendingCertificate, error)
	mineFn    func(ctx context.Context, current model.CurrentUser) ([]model.EnrollmentWithCourse, error)
}

func (m *mockCertificationService) ApproveCertificate(ctx context.Context, actor model.CurrentUser, id string) (*model.Enrollment, error) {
	if m.approveFn != nil {
		return m.approveFn(ctx, actor, id)
	}
	return &model.Enrollment{ID: id, Status: model.StatusCertified, Progress: 100}, nil
}

func (m *mockCertificationService) ListPending(ctx context.Context, actor model.CurrentUser) ([]model.PendingCertificate, error) {
	if m.pendingFn != nil {
		return m.pendingFn(ctx, actor)
	}
	return []model.PendingCertificate{}, nil
}

func (m *mockCertificationService) ListMyCertificates(ctx context.Context, current model.CurrentUser) ([]model.EnrollmentWithCourse, error) {
	if m.mineFn != nil {
		return m.mineFn(ctx, current)
	}
	return []model.EnrollmentWithCourse{}, nil
}

type mockUserService struct {
	listFn func(ctx context.Context, actor model.CurrentUser) ([]model.UserWithRoles, error)
	getFn  func(ctx context.Context, actor model.CurrentUser, userID string) (*model.UserWithRoles, error)
}

func (m *mockUserService) ListUsers(ctx context.Context, actor model.CurrentUser) ([]model.UserWithRoles, error) {
	if m.listFn != nil {
		return m.listFn(ctx, actor)
	}
	return []model.UserWithRoles{}, nil
}

func (m *mockUserService) GetUser(ctx context.Context, actor model.CurrentUser, userID string) (*model.UserWithRoles, error) {
	if m.getFn != nil {
		return m.getFn(ctx, actor, userID)
	}
	return nil, model.NewUserNotFoundError()
}

type mockAnalyticsService struct {
	overviewFn func(ctx context.Context, actor model.CurrentUser) (*analytics.Overview, error)
}

func (m *mockAnalyticsService) Overview(ctx context.Context, actor model.CurrentUser) (*analytics.Overview, error) {
	if m.overviewFn != nil {
		return m.overviewFn(ctx, actor)
	}
	return &analytics.Overview{}, nil
}
