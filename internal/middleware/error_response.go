package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/learnhub/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// backendRetryAfterSeconds はBACKEND_UNAVAILABLE時にクライアントへ示す再試行までの秒数。
const backendRetryAfterSeconds = "5"

// StatusCode はAPIErrorのコードに対応するHTTPステータスを返す。
// 未知のコードは500とする。
func StatusCode(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeProfileNotFound,
		model.ErrCodeCourseNotFound,
		model.ErrCodeEnrollmentNotFound,
		model.ErrCodeSubmissionNotFound,
		model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeDuplicateEnrollment,
		model.ErrCodeInvalidState,
		model.ErrCodeCourseInactive,
		model.ErrCodeProgressRegression:
		return http.StatusConflict
	case model.ErrCodeIncompleteProfile, model.ErrCodeOutOfRange:
		return http.StatusUnprocessableEntity
	case model.ErrCodeValidationFailed:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized:
		return http.StatusForbidden
	case model.ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case model.ErrCodeBackendUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteAPIError はコードから決まるステータスでAPIErrorを書き込む。
// 5xxのときは原因を含めず汎用メッセージに置き換える。
func WriteAPIError(w http.ResponseWriter, apiErr *model.APIError) {
	status := StatusCode(apiErr)
	switch {
	case apiErr.Code == model.ErrCodeBackendUnavailable:
		w.Header().Set("Retry-After", backendRetryAfterSeconds)
	case status >= http.StatusInternalServerError:
		WriteInternalServerError(w)
		return
	}
	WriteErrorResponse(w, status, apiErr)
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteInternalServerError は内部エラーの統一レスポンスを書き込む。詳細はログにのみ残す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "Something went wrong.",
		Category: model.CategorySystem,
		Action:   "Please try again in a moment.",
	})
}
