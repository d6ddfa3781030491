// Package user は管理画面向けのユーザー一覧を提供する。
package user

import (
	"context"

	"github.com/hitoshi/learnhub/internal/model"
	"github.com/hitoshi/learnhub/internal/repository"
)

// RoleChecker は権限チェックのインターフェース。
type RoleChecker interface {
	Require(ctx context.Context, actor model.CurrentUser, roles ...model.Role) error
}

// Service はユーザー一覧のサービス層。
// ユーザーはプロフィールを持つ利用者として扱い、ロールを結合して返す。
type Service struct {
	profileRepo repository.ProfileRepository
	roleRepo    repository.RoleRepository
	roles       RoleChecker
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	profileRepo repository.ProfileRepository,
	roleRepo repository.RoleRepository,
	roles RoleChecker,
) *Service {
	return &Service{
		profileRepo: profileRepo,
		roleRepo:    roleRepo,
		roles:       roles,
	}
}

// ListUsers は全ユーザーをロール付きでcreated_at降順に返す。adminのみ。
func (s *Service) ListUsers(ctx context.Context, actor model.CurrentUser) ([]model.UserWithRoles, error) {
	if err := s.roles.Require(ctx, actor, model.RoleAdmin); err != nil {
		return nil, err
	}

	profiles, err := s.profileRepo.ListAll(ctx)
	if err != nil {
		return nil, model.NewBackendUnavailableError(err)
	}
	assignments, err := s.roleRepo.ListAll(ctx)
	if err != nil {
		return nil, model.NewBackendUnavailableError(err)
	}

	byUser := make(map[string][]model.Role)
	for _, a := range assignments {
		byUser[a.UserID] = append(byUser[a.UserID], a.Role)
	}

	users := make([]model.UserWithRoles, 0, len(profiles))
	for _, p := range profiles {
		roles := byUser[p.UserID]
		if roles == nil {
			roles = []model.Role{}
		}
		users = append(users, model.UserWithRoles{Profile: *p, Roles: roles})
	}
	return users, nil
}

// GetUser は指定ユーザーのプロフィールとロールを返す。adminのみ。
func (s *Service) GetUser(ctx context.Context, actor model.CurrentUser, userID string) (*model.UserWithRoles, error) {
	if err := s.roles.Require(ctx, actor, model.RoleAdmin); err != nil {
		return nil, err
	}

	p, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, model.NewBackendUnavailableError(err)
	}
	if p == nil {
		return nil, model.NewUserNotFoundError()
	}
	roles, err := s.roleRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, model.NewBackendUnavailableError(err)
	}
	if roles == nil {
		roles = []model.Role{}
	}
	return &model.UserWithRoles{Profile: *p, Roles: roles}, nil
}
