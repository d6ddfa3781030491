// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/learnhub/internal/model"
)

// ProfileRepository はプロフィールの永続化インターフェース。
type ProfileRepository interface {
	// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)

	// Upsert はuser_idをキーにプロフィールを作成または更新する。
	// 新規作成だった場合はcreated=trueを返す。CreatedAt/UpdatedAtはDBの値で上書きされる。
	Upsert(ctx context.Context, profile *model.Profile) (created bool, err error)

	// ListAll は全プロフィールをcreated_at降順で返す。
	ListAll(ctx context.Context) ([]*model.Profile, error)
}

// CourseRepository はコースカタログの読み取りインターフェース。
// コースの作成・更新は外部の管理プロセスが行う。
type CourseRepository interface {
	// FindByID は指定IDのコースを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Course, error)

	// ListActive は受付中のコースをcategory, title, idの昇順で返す。
	ListActive(ctx context.Context, filter model.CourseFilter) ([]*model.Course, error)

	// ListAll は受付停止中を含む全コースを返す。
	ListAll(ctx context.Context) ([]*model.Course, error)
}

// ProgressUpdate は進捗の条件付き更新パラメータ。
type ProgressUpdate struct {
	EnrollmentID string
	Progress     int
	// Status は更新後のステータス。進捗100で完了にする場合はStatusCompleted。
	Status      model.EnrollmentStatus
	CompletedAt *time.Time
	// AllowRegression がfalseの場合、現在値より小さい進捗への更新は行わない。
	AllowRegression bool
}

// EnrollmentRepository は受講登録の永続化インターフェース。
type EnrollmentRepository interface {
	// FindByID は指定IDの受講登録を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Enrollment, error)

	// FindByUserAndCourse はユーザーとコースの組で受講登録を検索する。見つからない場合はnilを返す。
	FindByUserAndCourse(ctx context.Context, userID, courseID string) (*model.Enrollment, error)

	// Create は受講登録を作成する。
	// (user_id, course_id)が既に存在する場合はErrDuplicateを返す。
	Create(ctx context.Context, enrollment *model.Enrollment) error

	// ListByUserWithCourse はユーザーの受講登録をコース情報付きでenrolled_at降順に返す。
	ListByUserWithCourse(ctx context.Context, userID string) ([]model.EnrollmentWithCourse, error)

	// ListAll は全受講登録をenrolled_at昇順、id昇順で返す。
	ListAll(ctx context.Context) ([]*model.Enrollment, error)

	// ListPendingCertificates は修了済み（認定待ち）の受講登録を
	// 受講者名とコース名付きでcompleted_at降順に返す。
	ListPendingCertificates(ctx context.Context) ([]model.PendingCertificate, error)

	// TransitionStatus は現在のステータスがfromのいずれかである場合に限りtoへ更新する。
	// 条件に一致しなかった場合はnilを返す。
	TransitionStatus(ctx context.Context, id string, from []model.EnrollmentStatus, to model.EnrollmentStatus, completedAt *time.Time) (*model.Enrollment, error)

	// UpdateProgress は受講中の受講登録の進捗を条件付きで更新する。
	// 条件に一致しなかった場合はnilを返す。
	UpdateProgress(ctx context.Context, update ProgressUpdate) (*model.Enrollment, error)
}

// RoleRepository はロール割り当ての永続化インターフェース。
type RoleRepository interface {
	// ListByUserID はユーザーのロール一覧を返す。
	ListByUserID(ctx context.Context, userID string) ([]model.Role, error)

	// HasRole はユーザーが指定ロールを保持しているかを返す。
	HasRole(ctx context.Context, userID string, role model.Role) (bool, error)

	// Add はロールを冪等に付与する。既に保持している場合はadded=falseを返す。
	Add(ctx context.Context, userID string, role model.Role) (added bool, err error)

	// Remove はロールを剥奪する。保持していなかった場合はremoved=falseを返す。
	Remove(ctx context.Context, userID string, role model.Role) (removed bool, err error)

	// ListAll は全ロール割り当てを返す。
	ListAll(ctx context.Context) ([]model.RoleAssignment, error)
}

// ContactRepository は問い合わせの永続化インターフェース。
type ContactRepository interface {
	// Create は問い合わせを作成する。
	Create(ctx context.Context, submission *model.ContactSubmission) error

	// FindByID は指定IDの問い合わせを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.ContactSubmission, error)

	// List は問い合わせをcreated_at降順で返す。statusが空の場合は全件。
	List(ctx context.Context, status model.ContactStatus) ([]*model.ContactSubmission, error)

	// UpdateStatus は現在のステータスがfromである場合に限りtoへ更新する。
	// 条件に一致しなかった場合はnilを返す。
	UpdateStatus(ctx context.Context, id string, from, to model.ContactStatus, updatedAt time.Time) (*model.ContactSubmission, error)
}
