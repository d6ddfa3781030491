package handler

import (
	"time"

	"github.com/hitoshi/learnhub/internal/analytics"
	"github.com/hitoshi/learnhub/internal/enrollment"
	"github.com/hitoshi/learnhub/internal/model"
)

const dateLayout = "2006-01-02"

// courseResponse はコース情報のAPIレスポンス。
type courseResponse struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Category      string  `json:"category"`
	Level         string  `json:"level"`
	Price         float64 `json:"price"`
	DurationWeeks int     `json:"duration_weeks"`
	IsActive      bool    `json:"is_active"`
}

func toCourseResponse(c *model.Course) courseResponse {
	return courseResponse{
		ID:            c.ID,
		Title:         c.Title,
		Description:   c.Description,
		Category:      c.Category,
		Level:         string(c.Level),
		Price:         c.Price,
		DurationWeeks: c.DurationWeeks,
		IsActive:      c.IsActive,
	}
}

// profileResponse はプロフィールのAPIレスポンス。
type profileResponse struct {
	UserID      string    `json:"user_id"`
	FullName    string    `json:"full_name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Address     string    `json:"address"`
	City        string    `json:"city"`
	State       string    `json:"state"`
	Country     string    `json:"country"`
	DateOfBirth string    `json:"date_of_birth,omitempty"`
	Complete    bool      `json:"complete"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toProfileResponse(p *model.Profile) profileResponse {
	resp := profileResponse{
		UserID:    p.UserID,
		FullName:  p.FullName,
		Email:     p.Email,
		Phone:     p.Phone,
		Address:   p.Address,
		City:      p.City,
		State:     p.State,
		Country:   p.Country,
		Complete:  p.IsComplete(),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if p.DateOfBirth != nil {
		resp.DateOfBirth = p.DateOfBirth.Format(dateLayout)
	}
	return resp
}

// enrollmentResponse は受講登録のAPIレスポンス。
// コース情報は一覧取得時のみ埋める。
type enrollmentResponse struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	CourseID       string     `json:"course_id"`
	Status         string     `json:"status"`
	Progress       int        `json:"progress"`
	EnrolledAt     time.Time  `json:"enrolled_at"`
	CompletedAt    *time.Time `json:"completed_at"`
	CourseTitle    string     `json:"course_title,omitempty"`
	CourseCategory string     `json:"course_category,omitempty"`
	CourseLevel    string     `json:"course_level,omitempty"`
	DurationWeeks  int        `json:"duration_weeks,omitempty"`
}

func toEnrollmentResponse(e *model.Enrollment) enrollmentResponse {
	return enrollmentResponse{
		ID:          e.ID,
		UserID:      e.UserID,
		CourseID:    e.CourseID,
		Status:      string(e.Status),
		Progress:    e.Progress,
		EnrolledAt:  e.EnrolledAt,
		CompletedAt: e.CompletedAt,
	}
}

func toEnrollmentWithCourseResponses(list []model.EnrollmentWithCourse) []enrollmentResponse {
	out := make([]enrollmentResponse, 0, len(list))
	for i := range list {
		resp := toEnrollmentResponse(&list[i].Enrollment)
		resp.CourseTitle = list[i].CourseTitle
		resp.CourseCategory = list[i].CourseCategory
		resp.CourseLevel = string(list[i].CourseLevel)
		resp.DurationWeeks = list[i].DurationWeeks
		out = append(out, resp)
	}
	return out
}

// dashboardResponse は受講者ダッシュボードのAPIレスポンス。
type dashboardResponse struct {
	Total           int                  `json:"total"`
	InProgress      int                  `json:"in_progress"`
	Completed       int                  `json:"completed"`
	AverageProgress int                  `json:"average_progress"`
	Enrollments     []enrollmentResponse `json:"enrollments"`
}

func toDashboardResponse(d *enrollment.Dashboard) dashboardResponse {
	return dashboardResponse{
		Total:           d.Total,
		InProgress:      d.InProgress,
		Completed:       d.Completed,
		AverageProgress: d.AverageProgress,
		Enrollments:     toEnrollmentWithCourseResponses(d.Enrollments),
	}
}

// pendingCertificateResponse は認定待ち一覧のAPIレスポンス。
type pendingCertificateResponse struct {
	enrollmentResponse
	StudentName  string `json:"student_name"`
	StudentEmail string `json:"student_email"`
}

func toPendingCertificateResponses(list []model.PendingCertificate) []pendingCertificateResponse {
	out := make([]pendingCertificateResponse, 0, len(list))
	for i := range list {
		resp := pendingCertificateResponse{
			enrollmentResponse: toEnrollmentResponse(&list[i].Enrollment),
			StudentName:        list[i].StudentName,
			StudentEmail:       list[i].StudentEmail,
		}
		resp.CourseTitle = list[i].CourseTitle
		out = append(out, resp)
	}
	return out
}

// userResponse はユーザー一覧のAPIレスポンス。
type userResponse struct {
	profileResponse
	Roles []string `json:"roles"`
}

func toUserResponse(u *model.UserWithRoles) userResponse {
	return userResponse{
		profileResponse: toProfileResponse(&u.Profile),
		Roles:           rolesToStrings(u.Roles),
	}
}

func rolesToStrings(roles []model.Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}

// contactResponse は問い合わせのAPIレスポンス。
type contactResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toContactResponse(s *model.ContactSubmission) contactResponse {
	return contactResponse{
		ID:        s.ID,
		Name:      s.Name,
		Email:     s.Email,
		Phone:     s.Phone,
		Subject:   s.Subject,
		Message:   s.Message,
		Status:    string(s.Status),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// analyticsResponse は管理者向け集計のAPIレスポンス。
type analyticsResponse struct {
	TotalUsers           int                  `json:"total_users"`
	NewUsers             int                  `json:"new_users"`
	UserGrowthPercent    int                  `json:"user_growth_percent"`
	TotalEnrollments     int                  `json:"total_enrollments"`
	CompletedOrCertified int                  `json:"completed_or_certified"`
	PendingCertificates  int                  `json:"pending_certificates"`
	ActiveCourses        int                  `json:"active_courses"`
	TotalCourses         int                  `json:"total_courses"`
	TotalSubmissions     int                  `json:"total_submissions"`
	TopCourses           []courseCountJSON    `json:"top_courses"`
	RecentEnrollments    []enrollmentResponse `json:"recent_enrollments"`
	RecentUsers          []profileResponse    `json:"recent_users"`
}

type courseCountJSON struct {
	CourseID string `json:"course_id"`
	Title    string `json:"title"`
	Count    int    `json:"count"`
}

func toAnalyticsResponse(o *analytics.Overview) analyticsResponse {
	resp := analyticsResponse{
		TotalUsers:           o.TotalUsers,
		NewUsers:             o.NewUsers,
		UserGrowthPercent:    o.UserGrowthPercent,
		TotalEnrollments:     o.TotalEnrollments,
		CompletedOrCertified: o.CompletedOrCertified,
		PendingCertificates:  o.PendingCertificates,
		ActiveCourses:        o.ActiveCourses,
		TotalCourses:         o.TotalCourses,
		TotalSubmissions:     o.TotalSubmissions,
		TopCourses:           make([]courseCountJSON, 0, len(o.TopCourses)),
		RecentEnrollments:    make([]enrollmentResponse, 0, len(o.Recent)),
		RecentUsers:          make([]profileResponse, 0, len(o.RecentUsers)),
	}
	for _, c := range o.TopCourses {
		resp.TopCourses = append(resp.TopCourses, courseCountJSON(c))
	}
	for _, e := range o.Recent {
		resp.RecentEnrollments = append(resp.RecentEnrollments, toEnrollmentResponse(e))
	}
	for _, p := range o.RecentUsers {
		resp.RecentUsers = append(resp.RecentUsers, toProfileResponse(p))
	}
	return resp
}
