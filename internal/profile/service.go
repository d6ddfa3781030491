// Package profile はプロフィールの参照と登録・更新を提供する。
package profile

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hitoshi/learnhub/internal/cache"
	"github.com/hitoshi/learnhub/internal/model"
	"github.com/hitoshi/learnhub/internal/repository"
	"github.com/hitoshi/learnhub/internal/validation"
)

// Input はプロフィール更新の入力。JSONリクエストボディをそのまま受け取る。
type Input struct {
	FullName    string `json:"full_name" validate:"max=200"`
	Phone       string `json:"phone" validate:"max=32"`
	Address     string `json:"address" validate:"max=500"`
	City        string `json:"city" validate:"max=100"`
	State       string `json:"state" validate:"max=100"`
	Country     string `json:"country" validate:"max=100"`
	DateOfBirth string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02,notfuture"`
}

// DefaultRoleAssigner は初回登録時の既定ロール付与インターフェース。
type DefaultRoleAssigner interface {
	EnsureDefault(ctx context.Context, userID string) error
}

// Service はプロフィールストアのサービス層。
type Service struct {
	repo      repository.ProfileRepository
	cache     cache.ProfileCache
	roles     DefaultRoleAssigner
	validator *validation.Validator
}

// NewService はServiceの新しいインスタンスを生成する。
// cacheがnilの場合はキャッシュを使用しない。
func NewService(
	repo repository.ProfileRepository,
	profileCache cache.ProfileCache,
	roles DefaultRoleAssigner,
	validator *validation.Validator,
) *Service {
	if profileCache == nil {
		profileCache = cache.NopProfileCache{}
	}
	return &Service{
		repo:      repo,
		cache:     profileCache,
		roles:     roles,
		validator: validator,
	}
}

// GetProfile は指定ユーザーのプロフィールを返す。
// キャッシュにあればそれを返し、なければDBから読んでキャッシュに格納する。
// キャッシュの障害はログに残してDBへフォールバックする。
func (s *Service) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	cached, err := s.cache.Get(ctx, userID)
	if err != nil {
		slog.Warn("プロフィールキャッシュの取得に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
	if cached != nil {
		return cached, nil
	}

	p, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, model.NewBackendUnavailableError(err)
	}
	if p == nil {
		return nil, model.NewProfileNotFoundError()
	}

	if err := s.cache.Set(ctx, p); err != nil {
		slog.Warn("プロフィールのキャッシュ格納に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
	return p, nil
}

// UpsertProfile は呼び出し元ユーザーのプロフィールを作成または更新する。
// プロフィールの削除は行わない。書き込んだ行でキャッシュを上書きし、既定ロールを保証する。
// 並行するGetProfileが読んだ古い行はUpdatedAtの比較でキャッシュに残らない。
func (s *Service) UpsertProfile(ctx context.Context, current model.CurrentUser, in Input) (*model.Profile, error) {
	if current.ID == "" {
		return nil, model.NewUnauthenticatedError()
	}
	if s.validator != nil {
		if err := s.validator.Struct(in); err != nil {
			return nil, err
		}
	}
	dob, err := validation.ParseDate(in.DateOfBirth)
	if err != nil {
		return nil, err
	}

	email := current.Email
	if email == "" {
		existing, err := s.repo.FindByUserID(ctx, current.ID)
		if err != nil {
			return nil, model.NewBackendUnavailableError(err)
		}
		if existing != nil {
			email = existing.Email
		}
	}

	p := &model.Profile{
		UserID:      current.ID,
		FullName:    strings.TrimSpace(in.FullName),
		Email:       email,
		Phone:       strings.TrimSpace(in.Phone),
		Address:     strings.TrimSpace(in.Address),
		City:        strings.TrimSpace(in.City),
		State:       strings.TrimSpace(in.State),
		Country:     strings.TrimSpace(in.Country),
		DateOfBirth: dob,
	}
	if p.Country == "" {
		p.Country = model.DefaultCountry
	}

	created, err := s.repo.Upsert(ctx, p)
	if err != nil {
		return nil, model.NewBackendUnavailableError(err)
	}

	if err := s.cache.Set(ctx, p); err != nil {
		slog.Warn("プロフィールのキャッシュ更新に失敗しました",
			slog.String("user_id", current.ID),
			slog.String("error", err.Error()),
		)
		if err := s.cache.Invalidate(ctx, current.ID); err != nil {
			slog.Warn("プロフィールキャッシュの無効化に失敗しました",
				slog.String("user_id", current.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.roles != nil {
		if err := s.roles.EnsureDefault(ctx, current.ID); err != nil {
			return nil, err
		}
	}

	slog.Info("プロフィールを保存しました",
		slog.String("user_id", current.ID),
		slog.Bool("created", created),
		slog.Bool("complete", p.IsComplete()),
	)
	return p, nil
}
