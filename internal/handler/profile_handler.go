package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/learnhub/internal/model"
	"github.com/hitoshi/learnhub/internal/profile"
)

// ProfileServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	UpsertProfile(ctx context.Context, current model.CurrentUser, in profile.Input) (*model.Profile, error)
}

// RoleServiceInterface はロール参照・管理のサービスインターフェース。
type RoleServiceInterface interface {
	Roles(ctx context.Context, userID string) ([]model.Role, error)
	Grant(ctx context.Context, actor model.CurrentUser, userID string, role model.Role) error
	Revoke(ctx context.Context, actor model.CurrentUser, userID string, role model.Role) error
}

// ProfileHandler は本人のプロフィールとロールのHTTPハンドラー。
type ProfileHandler struct {
	profiles ProfileServiceInterface
	roles    RoleServiceInterface
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(profiles ProfileServiceInterface, roles RoleServiceInterface) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, roles: roles}
}

// GetProfile は呼び出し元のプロフィールを返す。
// GET /api/profile
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	p, err := h.profiles.GetProfile(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(p))
}

// UpsertProfile は呼び出し元のプロフィールを作成または更新する。
// PUT /api/profile
func (h *ProfileHandler) UpsertProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var in profile.Input
	if !decodeJSON(w, r, &in) {
		return
	}

	p, err := h.profiles.UpsertProfile(r.Context(), user, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(p))
}

// MyRoles は呼び出し元のロール一覧を返す。
// GET /api/me/roles
func (h *ProfileHandler) MyRoles(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	roles, err := h.roles.Roles(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": user.ID,
		"roles":   rolesToStrings(roles),
	})
}
