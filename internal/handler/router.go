package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/learnhub/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	// TrustProxyHeaders がtrueの場合、X-Forwarded-For等でRemoteAddrを書き換える。
	// 信頼できるリバースプロキシの背後でのみ有効にする。
	TrustProxyHeaders bool

	// 監視
	HealthChecker     HealthChecker
	MetricsHandler    http.Handler
	MetricsMiddleware func(http.Handler) http.Handler

	// 公開
	CatalogService CatalogServiceInterface
	ContactService ContactServiceInterface

	// 受講者
	ProfileService    ProfileServiceInterface
	RoleService       RoleServiceInterface
	EnrollmentService EnrollmentServiceInterface

	// 管理者
	CertificationService CertificationServiceInterface
	UserService          UserServiceInterface
	AnalyticsService     AnalyticsServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP(TrustProxyHeaders時のみ) → Metrics → Logging → Recovery → SecurityHeaders → CORS
//	  認証ルート: Auth → RateLimit(General)
//
// /health, /metrics, コース一覧、問い合わせ送信は認証不要。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(chimw.RequestID)
	if deps.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	if deps.MetricsMiddleware != nil {
		r.Use(deps.MetricsMiddleware)
	}
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	courseHandler := NewCourseHandler(deps.CatalogService)
	contactHandler := NewContactHandler(deps.ContactService)
	profileHandler := NewProfileHandler(deps.ProfileService, deps.RoleService)
	enrollmentHandler := NewEnrollmentHandler(deps.EnrollmentService, deps.CertificationService)
	adminHandler := NewAdminHandler(AdminHandlerDeps{
		Enrollments:    deps.EnrollmentService,
		Certifications: deps.CertificationService,
		Users:          deps.UserService,
		Roles:          deps.RoleService,
		Analytics:      deps.AnalyticsService,
	})

	// --- 認証不要のルート ---
	r.Get("/health", HealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api/courses", func(r chi.Router) {
		r.Get("/", courseHandler.ListCourses)
		r.Get("/{id}", courseHandler.GetCourse)
	})

	// POST /api/contact - 問い合わせ送信（クライアントIP単位のレート制限）
	r.With(deps.RateLimiter.ContactMiddleware()).Post("/api/contact", contactHandler.Submit)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/profile", profileHandler.GetProfile)
		r.Put("/api/profile", profileHandler.UpsertProfile)
		r.Get("/api/me/roles", profileHandler.MyRoles)

		r.Route("/api/enrollments", func(r chi.Router) {
			r.Get("/", enrollmentHandler.ListEnrollments)
			// POST /api/enrollments - 受講登録（登録専用レート制限を追加）
			r.With(deps.RateLimiter.EnrollMiddleware()).Post("/", enrollmentHandler.Enroll)

			r.Route("/{id}", func(r chi.Router) {
				r.Put("/progress", enrollmentHandler.UpdateProgress)
				r.Post("/complete", enrollmentHandler.Complete)
			})
		})

		r.Get("/api/dashboard", enrollmentHandler.Dashboard)
		r.Get("/api/certificates", enrollmentHandler.ListCertificates)

		// 管理者向け。権限チェックはサービス層で行う。
		r.Route("/api/admin", func(r chi.Router) {
			r.Post("/enrollments/{id}/approve", adminHandler.ApproveEnrollment)

			r.Get("/certificates/pending", adminHandler.ListPendingCertificates)
			r.Post("/certificates/{id}/approve", adminHandler.ApproveCertificate)

			r.Route("/users", func(r chi.Router) {
				r.Get("/", adminHandler.ListUsers)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", adminHandler.GetUser)
					r.Put("/roles/{role}", adminHandler.GrantRole)
					r.Delete("/roles/{role}", adminHandler.RevokeRole)
				})
			})

			r.Route("/contact-submissions", func(r chi.Router) {
				r.Get("/", contactHandler.List)
				r.Put("/{id}/status", contactHandler.UpdateStatus)
			})

			r.Get("/analytics", adminHandler.Analytics)
		})
	})

	return r
}
