package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/learnhub/internal/contact"
	"github.com/hitoshi/learnhub/internal/model"
)

// ContactServiceInterface は問い合わせハンドラーが必要とするサービスインターフェース。
type ContactServiceInterface interface {
	Submit(ctx context.Context, in contact.Input) (*model.ContactSubmission, error)
	List(ctx context.Context, actor model.CurrentUser, status model.ContactStatus) ([]*model.ContactSubmission, error)
	UpdateStatus(ctx context.Context, actor model.CurrentUser, id string, to model.ContactStatus) (*model.ContactSubmission, error)
}

// ContactHandler は問い合わせフォームと管理者向け受信箱のHTTPハンドラー。
type ContactHandler struct {
	service ContactServiceInterface
}

// NewContactHandler はContactHandlerを生成する。
func NewContactHandler(service ContactServiceInterface) *ContactHandler {
	return &ContactHandler{service: service}
}

// Submit は問い合わせを受け付ける。認証不要。
// POST /api/contact
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var in contact.Input
	if !decodeJSON(w, r, &in) {
		return
	}

	s, err := h.service.Submit(r.Context(), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"id":     s.ID,
		"status": string(s.Status),
	})
}

// List は問い合わせ一覧を返す。
// GET /api/admin/contact-submissions?status=
func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	list, err := h.service.List(r.Context(), actor, model.ContactStatus(r.URL.Query().Get("status")))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]contactResponse, 0, len(list))
	for _, s := range list {
		resp = append(resp, toContactResponse(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

type updateContactStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus は問い合わせの対応状況を更新する。
// PUT /api/admin/contact-submissions/{id}/status
func (h *ContactHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, model.NewSubmissionNotFoundError)
	if !ok {
		return
	}

	var req updateContactStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	s, err := h.service.UpdateStatus(r.Context(), actor, id, model.ContactStatus(req.Status))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContactResponse(s))
}
