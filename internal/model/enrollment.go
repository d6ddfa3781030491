package model

import "time"

// EnrollmentStatus は受講登録のライフサイクル状態を表す。
type EnrollmentStatus string

const (
	// StatusPending は登録直後の承認待ち状態。
	StatusPending EnrollmentStatus = "pending"
	// StatusActive は受講中。
	StatusActive EnrollmentStatus = "active"
	// StatusApproved は受講中（activeの同義語。旧データとの互換のため読み取りのみ）。
	StatusApproved EnrollmentStatus = "approved"
	// StatusCompleted は修了済み・証明書承認待ち。
	StatusCompleted EnrollmentStatus = "completed"
	// StatusCertified は証明書承認済み。終端状態。
	StatusCertified EnrollmentStatus = "certified"
)

// InProgressStatuses は「受講中」を表す状態の集合。
var InProgressStatuses = []EnrollmentStatus{StatusActive, StatusApproved}

// IsInProgress は受講中（active/approved）かを返す。
func (s EnrollmentStatus) IsInProgress() bool {
	return s == StatusActive || s == StatusApproved
}

// IsValid は定義済みの状態かを返す。
func (s EnrollmentStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusActive, StatusApproved, StatusCompleted, StatusCertified:
		return true
	}
	return false
}

// CanTransitionTo は状態遷移表に従い、sからtoへの遷移が定義されているかを返す。
//
//	pending         -> active
//	active/approved -> completed
//	completed       -> certified
func (s EnrollmentStatus) CanTransitionTo(to EnrollmentStatus) bool {
	switch {
	case s == StatusPending:
		return to == StatusActive || to == StatusApproved
	case s.IsInProgress():
		return to == StatusCompleted
	case s == StatusCompleted:
		return to == StatusCertified
	default:
		return false
	}
}

// MaxProgress は進捗率の上限（%）。
const MaxProgress = 100

// Enrollment はユーザーとコースの受講関係と進捗を表す。
type Enrollment struct {
	ID          string
	UserID      string
	CourseID    string
	Status      EnrollmentStatus
	Progress    int // 0-100
	EnrolledAt  time.Time
	CompletedAt *time.Time
}

// EnrollmentWithCourse は受講登録とコース情報を結合したモデル。
type EnrollmentWithCourse struct {
	Enrollment
	CourseTitle    string
	CourseCategory string
	CourseLevel    CourseLevel
	DurationWeeks  int
}

// PendingCertificate は証明書承認待ち一覧の1行を表す。
// completedのenrollmentにプロフィールとコースを結合して取得される。
type PendingCertificate struct {
	Enrollment
	StudentName  string
	StudentEmail string
	CourseTitle  string
}
