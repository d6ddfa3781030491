// Package certification は修了証の承認ワークフローを提供する。
package certification

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/learnhub/internal/metrics"
	"github.com/hitoshi/learnhub/internal/model"
	"github.com/hitoshi/learnhub/internal/repository"
)

// RoleChecker は権限チェックのインターフェース。
type RoleChecker interface {
	Require(ctx context.Context, actor model.CurrentUser, roles ...model.Role) error
}

// ProfileGetter はプロフィール取得のインターフェース。
type ProfileGetter interface {
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
}

// CourseGetter はコース取得のインターフェース。
type CourseGetter interface {
	GetCourse(ctx context.Context, id string) (*model.Course, error)
}

// CertificateNotifier は認定完了通知のインターフェース。
type CertificateNotifier interface {
	CertificateIssued(ctx context.Context, student *model.Profile, courseTitle string) error
}

// Service は修了証承認のサービス層。
type Service struct {
	repo     repository.EnrollmentRepository
	roles    RoleChecker
	profiles ProfileGetter
	courses  CourseGetter
	notifier CertificateNotifier
	metrics  metrics.Recorder
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// notifierがnilの場合は通知を送らない。
func NewService(
	repo repository.EnrollmentRepository,
	roles RoleChecker,
	profiles ProfileGetter,
	courses CourseGetter,
	notifier CertificateNotifier,
	recorder metrics.Recorder,
) *Service {
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	return &Service{
		repo:     repo,
		roles:    roles,
		profiles: profiles,
		courses:  courses,
		notifier: notifier,
		metrics:  recorder,
		now:      time.Now,
	}
}

// ApproveCertificate は修了済みの受講登録を認定済みにする。adminのみ。
// 権限チェックは受講登録の読み取りより先に行う。
// 認定済みの再承認はINVALID_STATEとして拒否する。変更するのはステータスのみ。
func (s *Service) ApproveCertificate(ctx context.Context, actor model.CurrentUser, enrollmentID string) (*model.Enrollment, error) {
	if err := s.roles.Require(ctx, actor, model.RoleAdmin); err != nil {
		return nil, err
	}

	e, err := s.find(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if e.Status != model.StatusCompleted {
		return nil, model.NewInvalidStateError(e.Status, model.StatusCertified)
	}

	updated, err := s.repo.TransitionStatus(ctx, enrollmentID,
		[]model.EnrollmentStatus{model.StatusCompleted}, model.StatusCertified, nil)
	if err != nil {
		return nil, model.NewBackendUnavailableError(err)
	}
	if updated == nil {
		// 並行する承認が先に反映された
		current, err := s.find(ctx, enrollmentID)
		if err != nil {
			return nil, err
		}
		return nil, model.NewInvalidStateError(current.Status, model.StatusCertified)
	}

	s.metrics.RecordStatusTransition(model.StatusCertified)
	s.metrics.RecordCertificateIssued()
	slog.Info("修了証を承認しました",
		slog.String("enrollment_id", enrollmentID),
		slog.String("user_id", updated.UserID),
		slog.String("actor_id", actor.ID),
		slog.Time("approved_at", s.now()),
	)

	s.notifyStudent(ctx, updated)
	return updated, nil
}

// notifyStudent は受講者へ認定完了メールを送る。失敗はログのみ。
func (s *Service) notifyStudent(ctx context.Context, e *model.Enrollment) {
	if s.notifier == nil {
		return
	}
	logFailure := func(err error) {
		slog.Warn("認定完了メールの送信に失敗しました",
			slog.String("enrollment_id", e.ID),
			slog.String("error", err.Error()),
		)
	}

	profile, err := s.profiles.GetProfile(ctx, e.UserID)
	if err != nil {
		logFailure(err)
		return
	}
	title := e.CourseID
	if course, err := s.courses.GetCourse(ctx, e.CourseID); err == nil {
		title = course.Title
	}
	if err := s.notifier.CertificateIssued(ctx, profile, title); err != nil {
		logFailure(err)
	}
}

// ListPending は認定待ち（completed）の受講登録を受講者名・コース名付きで返す。adminのみ。
func (s *Service) ListPending(ctx context.Context, actor model.CurrentUser) ([]model.PendingCertificate, error) {
	if err := s.roles.Require(ctx, actor, model.RoleAdmin); err != nil {
		return nil, err
	}
	list, err := s.repo.ListPendingCertificates(ctx)
	if err != nil {
		return nil, model.NewBackendUnavailableError(err)
	}
	if list == nil {
		list = []model.PendingCertificate{}
	}
	return list, nil
}

// ListMyCertificates は呼び出し元の認定済み受講登録を返す。
func (s *Service) ListMyCertificates(ctx context.Context, current model.CurrentUser) ([]model.EnrollmentWithCourse, error) {
	if current.ID == "" {
		return nil, model.NewUnauthenticatedError()
	}
	list, err := s.repo.ListByUserWithCourse(ctx, current.ID)
	if err != nil {
		return nil, model.NewBackendUnavailableError(err)
	}
	certs := []model.EnrollmentWithCourse{}
	for _, e := range list {
		if e.Status == model.StatusCertified {
			certs = append(certs, e)
		}
	}
	return certs, nil
}

func (s *Service) find(ctx context.Context, enrollmentID string) (*model.Enrollment, error) {
	e, err := s.repo.FindByID(ctx, enrollmentID)
	if err != nil {
		return nil, model.NewBackendUnavailableError(err)
	}
	if e == nil {
		return nil, model.NewEnrollmentNotFoundError(enrollmentID)
	}
	return e, nil
}
