// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, enrollment, contact, system
	Action   string // ユーザー向け対処方法
	Err      error  // 原因（任意）。レスポンスには含めない
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// エラーカテゴリ
const (
	CategoryAuth       = "auth"
	CategoryValidation = "validation"
	CategoryEnrollment = "enrollment"
	CategoryContact    = "contact"
	CategorySystem     = "system"
)

// 定義済みエラーコード
const (
	ErrCodeProfileNotFound     = "PROFILE_NOT_FOUND"
	ErrCodeCourseNotFound      = "COURSE_NOT_FOUND"
	ErrCodeEnrollmentNotFound  = "ENROLLMENT_NOT_FOUND"
	ErrCodeSubmissionNotFound  = "SUBMISSION_NOT_FOUND"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeDuplicateEnrollment = "DUPLICATE_ENROLLMENT"
	ErrCodeIncompleteProfile   = "INCOMPLETE_PROFILE"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeUnauthenticated     = "UNAUTHENTICATED"
	ErrCodeInvalidState        = "INVALID_STATE"
	ErrCodeCourseInactive      = "COURSE_INACTIVE"
	ErrCodeProgressRegression  = "PROGRESS_REGRESSION"
	ErrCodeOutOfRange          = "OUT_OF_RANGE"
	ErrCodeBackendUnavailable  = "BACKEND_UNAVAILABLE"
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
)

// HasCode はerrのチェーン中に指定コードのAPIErrorが含まれるかを返す。
func HasCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// NewProfileNotFoundError はプロフィール未登録エラーを生成する。
func NewProfileNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  "Profile not found.",
		Category: CategoryValidation,
		Action:   "Please fill in your profile first.",
	}
}

// NewCourseNotFoundError はコース未検出エラーを生成する。
func NewCourseNotFoundError(courseID string) *APIError {
	return &APIError{
		Code:     ErrCodeCourseNotFound,
		Message:  fmt.Sprintf("Course not found: %s", courseID),
		Category: CategoryEnrollment,
		Action:   "Please choose a course from the catalog.",
	}
}

// NewEnrollmentNotFoundError は受講登録未検出エラーを生成する。
func NewEnrollmentNotFoundError(enrollmentID string) *APIError {
	return &APIError{
		Code:     ErrCodeEnrollmentNotFound,
		Message:  fmt.Sprintf("Enrollment not found: %s", enrollmentID),
		Category: CategoryEnrollment,
		Action:   "Please check the enrollment ID.",
	}
}

// NewSubmissionNotFoundError は問い合わせ未検出エラーを生成する。
func NewSubmissionNotFoundError(submissionID string) *APIError {
	return &APIError{
		Code:     ErrCodeSubmissionNotFound,
		Message:  fmt.Sprintf("Contact submission not found: %s", submissionID),
		Category: CategoryContact,
		Action:   "Please reload the inbox.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found.",
		Category: CategoryAuth,
		Action:   "Please check the user ID.",
	}
}

// NewDuplicateEnrollmentError は同一コースへの重複登録エラーを生成する。
func NewDuplicateEnrollmentError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEnrollment,
		Message:  "You are already enrolled in this course.",
		Category: CategoryEnrollment,
		Action:   "Open your dashboard to see the existing enrollment.",
	}
}

// NewIncompleteProfileError はプロフィール未完成エラーを生成する。
func NewIncompleteProfileError() *APIError {
	return &APIError{
		Code:     ErrCodeIncompleteProfile,
		Message:  "Your profile is incomplete.",
		Category: CategoryValidation,
		Action:   "Please add your full name to your profile before enrolling.",
	}
}

// NewUnauthorizedError は権限不足エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "You are not allowed to perform this action.",
		Category: CategoryAuth,
		Action:   "Ask an administrator for access.",
	}
}

// NewUnauthenticatedError は未認証エラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "Authentication required.",
		Category: CategoryAuth,
		Action:   "Please sign in.",
	}
}

// NewInvalidStateError は不正な状態遷移エラーを生成する。
func NewInvalidStateError(from EnrollmentStatus, to EnrollmentStatus) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidState,
		Message:  fmt.Sprintf("Cannot move enrollment from %q to %q.", from, to),
		Category: CategoryEnrollment,
		Action:   "Reload the page to see the current status.",
	}
}

// NewInvalidContactTransitionError は問い合わせステータスの逆行エラーを生成する。
func NewInvalidContactTransitionError(from ContactStatus, to ContactStatus) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidState,
		Message:  fmt.Sprintf("Cannot move submission from %q back to %q.", from, to),
		Category: CategoryContact,
		Action:   "Reload the inbox to see the current status.",
	}
}

// NewCourseInactiveError は募集停止中コースへの登録エラーを生成する。
func NewCourseInactiveError(courseID string) *APIError {
	return &APIError{
		Code:     ErrCodeCourseInactive,
		Message:  fmt.Sprintf("Course is not open for enrollment: %s", courseID),
		Category: CategoryEnrollment,
		Action:   "Please choose another course.",
	}
}

// NewProgressRegressionError は進捗の後退エラーを生成する。
func NewProgressRegressionError(current, requested int) *APIError {
	return &APIError{
		Code:     ErrCodeProgressRegression,
		Message:  fmt.Sprintf("Progress cannot go back from %d%% to %d%%.", current, requested),
		Category: CategoryEnrollment,
		Action:   "Reload the page to see your latest progress.",
	}
}

// NewOutOfRangeError は進捗値の範囲外エラーを生成する。
func NewOutOfRangeError(progress int) *APIError {
	return &APIError{
		Code:     ErrCodeOutOfRange,
		Message:  fmt.Sprintf("Progress must be between 0 and 100: %d", progress),
		Category: CategoryValidation,
		Action:   "Send a percentage between 0 and 100.",
	}
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  detail,
		Category: CategoryValidation,
		Action:   "Please correct the highlighted fields.",
	}
}

// NewBackendUnavailableError はストレージ障害エラーを生成する。
// 原因はログ出力のために保持するが、レスポンスには含めない。
func NewBackendUnavailableError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeBackendUnavailable,
		Message:  "Something went wrong.",
		Category: CategorySystem,
		Action:   "Please try again in a moment.",
		Err:      cause,
	}
}
