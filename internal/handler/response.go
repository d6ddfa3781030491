package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/learnhub/internal/middleware"
	"github.com/hitoshi/learnhub/internal/model"
)

// maxRequestBodyBytes はJSONリクエストボディの上限。
const maxRequestBodyBytes = 64 << 10

// writeJSON はステータスコードとJSONボディを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("レスポンスのエンコードに失敗しました", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをdstにデコードする。未知のフィールドは拒否する。
// 失敗した場合は400を書き込んでfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "The request body could not be parsed.",
			Category: model.CategoryValidation,
			Action:   "Please send a valid JSON body.",
		})
		return false
	}
	return true
}

// currentUser は認証済みユーザーを取得する。
// 認証ミドルウェアを通っていない場合は401を書き込んでfalseを返す。
func currentUser(w http.ResponseWriter, r *http.Request) (model.CurrentUser, bool) {
	user, err := middleware.CurrentUserFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return model.CurrentUser{}, false
	}
	return user, true
}

// pathID はURLパスの{id}を返す。UUIDでなければnotFoundのエラーを書き込んでfalseを返す。
func pathID(w http.ResponseWriter, r *http.Request, notFound func(id string) *model.APIError) (string, bool) {
	id := chi.URLParam(r, "id")
	if !model.ValidID(id) {
		middleware.WriteAPIError(w, notFound(id))
		return "", false
	}
	return id, true
}

func userNotFound(string) *model.APIError { return model.NewUserNotFoundError() }

// handleServiceError はサービス層から返されたエラーをHTTPレスポンスに変換する。
// APIError以外のエラーと5xxはログに記録する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		slog.Error("internal server error", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	if middleware.StatusCode(apiErr) >= http.StatusInternalServerError {
		slog.Error("service error",
			slog.String("code", apiErr.Code),
			slog.String("error", err.Error()),
		)
	}
	middleware.WriteAPIError(w, apiErr)
}

// writeValidationError はリクエスト形式の不備を400で返す。
func writeValidationError(w http.ResponseWriter, detail string) {
	middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError(detail))
}
