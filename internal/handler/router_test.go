package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/learnhub/internal/middleware"
	"github.com/hitoshi/learnhub/internal/model"
)

// stubVerifier は固定トークンのみを受け付けるTokenVerifier。
type stubVerifier struct {
	tokens map[string]model.CurrentUser
}

func (v *stubVerifier) Verify(token string) (model.CurrentUser, error) {
	if u, ok := v.tokens[token]; ok {
		return u, nil
	}
	return model.CurrentUser{}, errors.New("invalid token")
}

type stubPinger struct {
	err error
}

func (p *stubPinger) PingContext(context.Context) error { return p.err }

// createTestRouter はテスト用の完全なルーターを構築するヘルパー。
// "user-token" は一般ユーザー、"admin-token" は管理者として認証される。
func createTestRouter(t *testing.T, mutate func(*RouterDeps)) http.Handler {
	t.Helper()

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	deps := &RouterDeps{
		TokenVerifier: &stubVerifier{tokens: map[string]model.CurrentUser{
			"user-token":  testUser,
			"admin-token": testAdmin,
		}},
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		HealthChecker:     &stubPinger{},
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("# metrics\n"))
		}),

		CatalogService:       &mockCatalogService{},
		ContactService:       &mockContactService{},
		ProfileService:       &mockProfileService{},
		RoleService:          &mockRoleService{},
		EnrollmentService:    &mockEnrollmentService{},
		CertificationService: &mockCertificationService{},
		UserService:          &mockUserService{},
		AnalyticsService:     &mockAnalyticsService{},
	}
	if mutate != nil {
		mutate(deps)
	}
	return NewRouter(deps)
}

func serve(router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestNewRouter_PublicRoutes(t *testing.T) {
	router := createTestRouter(t, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", http.StatusOK},
		{"course list", http.MethodGet, "/api/courses", "", http.StatusOK},
		{"course detail", http.MethodGet, "/api/courses/missing", "", http.StatusNotFound},
		{"contact", http.MethodPost, "/api/contact", `{"name":"Ada","email":"ada@example.com","subject":"Hi","message":"Hello"}`, http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(router, tt.method, tt.path, "", tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("%s %s status = %d, want %d (body=%s)", tt.method, tt.path, w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestNewRouter_ProtectedRoutesRequireToken(t *testing.T) {
	router := createTestRouter(t, nil)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/profile"},
		{http.MethodPut, "/api/profile"},
		{http.MethodGet, "/api/me/roles"},
		{http.MethodGet, "/api/enrollments"},
		{http.MethodPost, "/api/enrollments"},
		{http.MethodPut, "/api/enrollments/"+testEnrollmentID+"/progress"},
		{http.MethodPost, "/api/enrollments/"+testEnrollmentID+"/complete"},
		{http.MethodGet, "/api/dashboard"},
		{http.MethodGet, "/api/certificates"},
		{http.MethodPost, "/api/admin/enrollments/"+testEnrollmentID+"/approve"},
		{http.MethodGet, "/api/admin/certificates/pending"},
		{http.MethodPost, "/api/admin/certificates/"+testEnrollmentID+"/approve"},
		{http.MethodGet, "/api/admin/users"},
		{http.MethodGet, "/api/admin/users/"+testTargetUserID},
		{http.MethodPut, "/api/admin/users/"+testTargetUserID+"/roles/admin"},
		{http.MethodDelete, "/api/admin/users/"+testTargetUserID+"/roles/admin"},
		{http.MethodGet, "/api/admin/contact-submissions"},
		{http.MethodPut, "/api/admin/contact-submissions/"+testSubmissionID+"/status"},
		{http.MethodGet, "/api/admin/analytics"},
	}

	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			w := serve(router, rt.method, rt.path, "", "")
			assertErrorCode(t, w, http.StatusUnauthorized, model.ErrCodeUnauthenticated)

			w = serve(router, rt.method, rt.path, "forged-token", "")
			if w.Code != http.StatusUnauthorized {
				t.Errorf("invalid token status = %d, want 401", w.Code)
			}
		})
	}
}

func TestNewRouter_AuthenticatedUserReachesHandlers(t *testing.T) {
	router := createTestRouter(t, nil)

	w := serve(router, http.MethodPost, "/api/enrollments", "user-token", `{"course_id":"`+testCourseID+`"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("enroll status = %d, want 201 (body=%s)", w.Code, w.Body.String())
	}
	if body := decodeBody[enrollmentResponse](t, w); body.UserID != testUser.ID {
		t.Errorf("enrollment user = %q, want %q", body.UserID, testUser.ID)
	}

	w = serve(router, http.MethodPut, "/api/enrollments/"+testEnrollmentID+"/progress", "user-token", `{"progress":40}`)
	if w.Code != http.StatusOK {
		t.Errorf("progress status = %d, want 200", w.Code)
	}
}

func TestNewRouter_AdminRoutesPassActorToServices(t *testing.T) {
	var actors []model.CurrentUser
	router := createTestRouter(t, func(d *RouterDeps) {
		d.CertificationService = &mockCertificationService{
			approveFn: func(ctx context.Context, actor model.CurrentUser, id string) (*model.Enrollment, error) {
				actors = append(actors, actor)
				if actor.ID != testAdmin.ID {
					return nil, model.NewUnauthorizedError()
				}
				return &model.Enrollment{ID: id, Status: model.StatusCertified}, nil
			},
		}
	})

	w := serve(router, http.MethodPost, "/api/admin/certificates/"+testEnrollmentID+"/approve", "user-token", "")
	assertErrorCode(t, w, http.StatusForbidden, model.ErrCodeUnauthorized)

	w = serve(router, http.MethodPost, "/api/admin/certificates/"+testEnrollmentID+"/approve", "admin-token", "")
	if w.Code != http.StatusOK {
		t.Errorf("admin status = %d, want 200", w.Code)
	}

	if len(actors) != 2 || actors[0] != testUser || actors[1] != testAdmin {
		t.Errorf("actors = %+v", actors)
	}
}

func TestNewRouter_HealthReportsDatabaseFailure(t *testing.T) {
	router := createTestRouter(t, func(d *RouterDeps) {
		d.HealthChecker = &stubPinger{err: errors.New("connection refused")}
	})

	w := serve(router, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestNewRouter_SecurityAndCORSHeaders(t *testing.T) {
	router := createTestRouter(t, nil)

	w := serve(router, http.MethodGet, "/api/courses", "", "")
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestNewRouter_ContactIsRateLimitedPerIP(t *testing.T) {
	rl := middleware.NewRateLimiter(middleware.PerMinuteRateLimiterConfig(120, 10, 1))
	t.Cleanup(rl.Stop)
	router := createTestRouter(t, func(d *RouterDeps) { d.RateLimiter = rl })

	body := `{"name":"Ada","email":"ada@example.com","subject":"Hi","message":"Hello"}`
	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		statuses = append(statuses, serve(router, http.MethodPost, "/api/contact", "", body).Code)
	}

	if statuses[len(statuses)-1] != http.StatusTooManyRequests {
		t.Errorf("statuses = %v, want the last request to be rate limited", statuses)
	}
}

// postContactFrom はRemoteAddrと転送ヘッダーを指定して問い合わせを送信する。
func postContactFrom(router http.Handler, remoteAddr, forwarded string) int {
	body := `{"name":"Ada","email":"ada@example.com","subject":"Hi","message":"Hello"}`
	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(body))
	req.RemoteAddr = remoteAddr
	req.Header.Set("X-Forwarded-For", forwarded)
	req.Header.Set("X-Real-IP", forwarded)
	req.Header.Set("True-Client-IP", forwarded)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w.Code
}

func TestNewRouter_ContactLimitIgnoresForwardedHeadersByDefault(t *testing.T) {
	rl := middleware.NewRateLimiter(middleware.PerMinuteRateLimiterConfig(120, 10, 5))
	t.Cleanup(rl.Stop)
	router := createTestRouter(t, func(d *RouterDeps) { d.RateLimiter = rl })

	limited := 0
	for i := 0; i < 50; i++ {
		if postContactFrom(router, "203.0.113.7:5555", fmt.Sprintf("198.51.100.%d", i)) == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited != 45 {
		t.Errorf("limited = %d, want 45 (burst of 5 for a single peer)", limited)
	}
}

func TestNewRouter_ContactLimitUsesForwardedIPWhenTrusted(t *testing.T) {
	rl := middleware.NewRateLimiter(middleware.PerMinuteRateLimiterConfig(120, 10, 1))
	t.Cleanup(rl.Stop)
	router := createTestRouter(t, func(d *RouterDeps) {
		d.RateLimiter = rl
		d.TrustProxyHeaders = true
	})

	if code := postContactFrom(router, "10.0.0.2:4000", "198.51.100.1"); code != http.StatusCreated {
		t.Fatalf("first client status = %d, want 201", code)
	}
	if code := postContactFrom(router, "10.0.0.2:4000", "198.51.100.1"); code != http.StatusTooManyRequests {
		t.Errorf("same forwarded client status = %d, want 429", code)
	}
	if code := postContactFrom(router, "10.0.0.2:4000", "198.51.100.2"); code != http.StatusCreated {
		t.Errorf("other forwarded client status = %d, want 201", code)
	}
}
