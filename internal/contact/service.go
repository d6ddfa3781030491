// Package contact はお問い合わせの受付と管理者による対応状況の管理を提供する。
package contact

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/learnhub/internal/metrics"
	"github.com/hitoshi/learnhub/internal/model"
	"github.com/hitoshi/learnhub/internal/repository"
	"github.com/hitoshi/learnhub/internal/security"
	"github.com/hitoshi/learnhub/internal/validation"
)

// Input はお問い合わせフォームの入力。
type Input struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required,email,max=320"`
	Phone   string `json:"phone" validate:"max=32"`
	Subject string `json:"subject" validate:"required,max=200"`
	Message string `json:"message" validate:"required,max=5000"`
}

// RoleChecker は権限チェックのインターフェース。
type RoleChecker interface {
	Require(ctx context.Context, actor model.CurrentUser, roles ...model.Role) error
}

// Acknowledger は受付確認メール送信のインターフェース。
type Acknowledger interface {
	ContactAcknowledged(ctx context.Context, s *model.ContactSubmission) error
}

// Service はお問い合わせのサービス層。
type Service struct {
	repo      repository.ContactRepository
	roles     RoleChecker
	sanitizer security.TextSanitizer
	validator *validation.Validator
	ack       Acknowledger
	metrics   metrics.Recorder
	now       func() time.Time
	newID     func() string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	repo repository.ContactRepository,
	roles RoleChecker,
	sanitizer security.TextSanitizer,
	validator *validation.Validator,
	ack Acknowledger,
	recorder metrics.Recorder,
) *Service {
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	return &Service{
		repo:      repo,
		roles:     roles,
		sanitizer: sanitizer,
		validator: validator,
		ack:       ack,
		metrics:   recorder,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Submit はお問い合わせを受け付ける。認証不要。
// 各フィールドはプレーンテキストへ無害化した後に検証する。
func (s *Service) Submit(ctx context.Context, in Input) (*model.ContactSubmission, error) {
	in = Input{
		Name:    s.sanitizer.Line(in.Name),
		Email:   s.sanitizer.Line(in.Email),
		Phone:   s.sanitizer.Line(in.Phone),
		Subject: s.sanitizer.Line(in.Subject),
		Message: s.sanitizer.Multiline(in.Message),
	}
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	now := s.now()
	sub := &model.ContactSubmission{
		ID:        s.newID(),
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		Subject:   in.Subject,
		Message:   in.Message,
		Status:    model.ContactStatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, model.NewBackendUnavailableError(err)
	}

	s.metrics.RecordContactSubmitted()
	slog.Info("お問い合わせを受け付けました", slog.String("submission_id", sub.ID))

	if s.ack != nil {
		if err := s.ack.ContactAcknowledged(ctx, sub); err != nil {
			slog.Warn("受付確認メールの送信に失敗しました",
				slog.String("submission_id", sub.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return sub, nil
}

// List はお問い合わせをcreated_at降順で返す。adminのみ。statusが空の場合は全件。
func (s *Service) List(ctx context.Context, actor model.CurrentUser, status model.ContactStatus) ([]*model.ContactSubmission, error) {
	if err := s.roles.Require(ctx, actor, model.RoleAdmin); err != nil {
		return nil, err
	}
	if status != "" {
		if _, err := model.ParseContactStatus(string(status)); err != nil {
			return nil, model.NewValidationError(err.Error())
		}
	}

	list, err := s.repo.List(ctx, status)
	if err != nil {
		return nil, model.NewBackendUnavailableError(err)
	}
	if list == nil {
		list = []*model.ContactSubmission{}
	}
	return list, nil
}

// UpdateStatus は対応状況を new → in_progress → resolved の順方向に更新する。adminのみ。
// 同じ状態への更新は何もせず成功を返す。逆方向はINVALID_STATE。
func (s *Service) UpdateStatus(ctx context.Context, actor model.CurrentUser, id string, to model.ContactStatus) (*model.ContactSubmission, error) {
	if err := s.roles.Require(ctx, actor, model.RoleAdmin); err != nil {
		return nil, err
	}
	if _, err := model.ParseContactStatus(string(to)); err != nil {
		return nil, model.NewValidationError(err.Error())
	}

	current, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == to {
		return current, nil
	}
	if !current.Status.CanMoveTo(to) {
		return nil, model.NewInvalidContactTransitionError(current.Status, to)
	}

	updated, err := s.repo.UpdateStatus(ctx, id, current.Status, to, s.now())
	if err != nil {
		return nil, model.NewBackendUnavailableError(err)
	}
	if updated == nil {
		// 読み取り後に別の管理者が更新した
		latest, err := s.find(ctx, id)
		if err != nil {
			return nil, err
		}
		if latest.Status == to {
			return latest, nil
		}
		return nil, model.NewInvalidContactTransitionError(latest.Status, to)
	}

	slog.Info("お問い合わせの対応状況を更新しました",
		slog.String("submission_id", id),
		slog.String("actor_id", actor.ID),
		slog.String("from", string(current.Status)),
		slog.String("to", string(to)),
	)
	return updated, nil
}

func (s *Service) find(ctx context.Context, id string) (*model.ContactSubmission, error) {
	sub, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, model.NewBackendUnavailableError(err)
	}
	if sub == nil {
		return nil, model.NewSubmissionNotFoundError(id)
	}
	return sub, nil
}
