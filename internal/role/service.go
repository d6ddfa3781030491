// Package role はロールの照会・付与・剥奪と権限チェックを提供する。
package role

import (
	"context"
	"log/slog"

	"github.com/hitoshi/learnhub/internal/model"
	"github.com/hitoshi/learnhub/internal/repository"
)

// Service はロールレジストリのサービス層。
type Service struct {
	repo repository.RoleRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.RoleRepository) *Service {
	return &Service{repo: repo}
}

// HasRole はユーザーが指定ロールを保持しているかを返す。
func (s *Service) HasRole(ctx context.Context, userID string, role model.Role) (bool, error) {
	ok, err := s.repo.HasRole(ctx, userID, role)
	if err != nil {
		return false, model.NewBackendUnavailableError(err)
	}
	return ok, nil
}

// Require はactorがrolesのいずれかを保持していなければUNAUTHORIZEDを返す。
// 特権操作はデータを読み書きする前にこれを呼ぶ。
func (s *Service) Require(ctx context.Context, actor model.CurrentUser, roles ...model.Role) error {
	if actor.ID == "" {
		return model.NewUnauthenticatedError()
	}
	for _, r := range roles {
		ok, err := s.HasRole(ctx, actor.ID, r)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	slog.Warn("権限不足のため操作を拒否しました",
		slog.String("actor_id", actor.ID),
		slog.Any("required_roles", roles),
	)
	return model.NewUnauthorizedError()
}

// Roles はユーザーのロール一覧を返す。
func (s *Service) Roles(ctx context.Context, userID string) ([]model.Role, error) {
	roles, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, model.NewBackendUnavailableError(err)
	}
	if roles == nil {
		roles = []model.Role{}
	}
	return roles, nil
}

// EnsureDefault は既定のuserロールを冪等に付与する。
func (s *Service) EnsureDefault(ctx context.Context, userID string) error {
	added, err := s.repo.Add(ctx, userID, model.RoleUser)
	if err != nil {
		return model.NewBackendUnavailableError(err)
	}
	if added {
		slog.Info("既定ロールを付与しました", slog.String("user_id", userID))
	}
	return nil
}

// Grant は管理者がユーザーにロールを付与する。既に保持している場合も成功とする。
func (s *Service) Grant(ctx context.Context, actor model.CurrentUser, userID string, role model.Role) error {
	if err := s.Require(ctx, actor, model.RoleAdmin); err != nil {
		return err
	}
	if _, err := model.ParseRole(string(role)); err != nil {
		return model.NewValidationError(err.Error())
	}

	added, err := s.repo.Add(ctx, userID, role)
	if err != nil {
		return model.NewBackendUnavailableError(err)
	}
	slog.Info("ロールを付与しました",
		slog.String("actor_id", actor.ID),
		slog.String("user_id", userID),
		slog.String("role", string(role)),
		slog.Bool("changed", added),
	)
	return nil
}

// Revoke は管理者がユーザーからロールを剥奪する。
// 管理者が自分自身のadminロールを外すことはできない。
func (s *Service) Revoke(ctx context.Context, actor model.CurrentUser, userID string, role model.Role) error {
	if err := s.Require(ctx, actor, model.RoleAdmin); err != nil {
		return err
	}
	if _, err := model.ParseRole(string(role)); err != nil {
		return model.NewValidationError(err.Error())
	}
	if userID == actor.ID && role == model.RoleAdmin {
		return &model.APIError{
			Code:     model.ErrCodeInvalidState,
			Message:  "You cannot remove your own admin role.",
			Category: model.CategoryAuth,
			Action:   "Ask another administrator to do this.",
		}
	}

	removed, err := s.repo.Remove(ctx, userID, role)
	if err != nil {
		return model.NewBackendUnavailableError(err)
	}
	slog.Info("ロールを剥奪しました",
		slog.String("actor_id", actor.ID),
		slog.String("user_id", userID),
		slog.String("role", string(role)),
		slog.Bool("changed", removed),
	)
	return nil
}
