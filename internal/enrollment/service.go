// Package enrollment は受講登録のライフサイクル（登録・承認・進捗・修了）を提供する。
package enrollment

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/learnhub/internal/metrics"
	"github.com/hitoshi/learnhub/internal/model"
	"github.com/hitoshi/learnhub/internal/repository"
)

// 受講登録の拒否理由（メトリクスのラベル）
const (
	rejectIncompleteProfile = "incomplete_profile"
	rejectCourseNotFound    = "course_not_found"
	rejectCourseInactive    = "course_inactive"
	rejectDuplicate         = "duplicate"
	rejectBackend           = "backend"
)

// ProfileGetter はプロフィール取得のインターフェース。
type ProfileGetter interface {
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
}

// CourseGetter はコース取得のインターフェース。
type CourseGetter interface {
	GetCourse(ctx context.Context, id string) (*model.Course, error)
}

// RoleChecker は権限チェックのインターフェース。
type RoleChecker interface {
	Require(ctx context.Context, actor model.CurrentUser, roles ...model.Role) error
	HasRole(ctx context.Context, userID string, role model.Role) (bool, error)
}

// Dashboard は受講者ダッシュボードの集計結果。
type Dashboard struct {
	Total           int
	InProgress      int
	Completed       int
	AverageProgress int
	Enrollments     []model.EnrollmentWithCourse
}

// Service は受講登録台帳のサービス層。
type Service struct {
	repo     repository.EnrollmentRepository
	profiles ProfileGetter
	courses  CourseGetter
	roles    RoleChecker
	metrics  metrics.Recorder
	now      func() time.Time
	newID    func() string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	repo repository.EnrollmentRepository,
	profiles ProfileGetter,
	courses CourseGetter,
	roles RoleChecker,
	recorder metrics.Recorder,
) *Service {
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	return &Service{
		repo:     repo,
		profiles: profiles,
		courses:  courses,
		roles:    roles,
		metrics:  recorder,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Enroll は呼び出し元ユーザーを指定コースに登録する。
// 作成された受講登録はpending、進捗0。
func (s *Service) Enroll(ctx context.Context, current model.CurrentUser, courseID string) (*model.Enrollment, error) {
	if current.ID == "" {
		return nil, model.NewUnauthenticatedError()
	}

	profile, err := s.profiles.GetProfile(ctx, current.ID)
	if err != nil && !model.HasCode(err, model.ErrCodeProfileNotFound) {
		s.metrics.RecordEnrollmentRejected(rejectBackend)
		return nil, err
	}
	if !profile.IsComplete() {
		s.metrics.RecordEnrollmentRejected(rejectIncompleteProfile)
		return nil, model.NewIncompleteProfileError()
	}

	course, err := s.courses.GetCourse(ctx, courseID)
	if err != nil {
		if model.HasCode(err, model.ErrCodeCourseNotFound) {
			s.metrics.RecordEnrollmentRejected(rejectCourseNotFound)
		} else {
			s.metrics.RecordEnrollmentRejected(rejectBackend)
		}
		return nil, err
	}
	if !course.IsActive {
		s.metrics.RecordEnrollmentRejected(rejectCourseInactive)
		return nil, model.NewCourseInactiveError(courseID)
	}

	existing, err := s.repo.FindByUserAndCourse(ctx, current.ID, courseID)
	if err != nil {
		s.metrics.RecordEnrollmentRejected(rejectBackend)
		return nil, model.NewBackendUnavailableError(err)
	}
	if existing != nil {
		s.metrics.RecordEnrollmentRejected(rejectDuplicate)
		return nil, model.NewDuplicateEnrollmentError()
	}

	e := &model.Enrollment{
		ID:         s.newID(),
		UserID:     current.ID,
		CourseID:   courseID,
		Status:     model.StatusPending,
		Progress:   0,
		EnrolledAt: s.now(),
	}
	// 事前チェック後に並行リクエストが登録した場合は一意制約で検出する
	if err := s.repo.Create(ctx, e); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			s.metrics.RecordEnrollmentRejected(rejectDuplicate)
			return nil, model.NewDuplicateEnrollmentError()
		}
		s.metrics.RecordEnrollmentRejected(rejectBackend)
		return nil, model.NewBackendUnavailableError(err)
	}

	s.metrics.RecordEnrollmentCreated()
	slog.Info("受講登録を作成しました",
		slog.String("enrollment_id", e.ID),
		slog.String("user_id", e.UserID),
		slog.String("course_id", e.CourseID),
	)
	return e, nil
}

// Approve は承認待ちの受講登録を受講中にする。admin または moderator のみ。
func (s *Service) Approve(ctx context.Context, actor model.CurrentUser, enrollmentID string) (*model.Enrollment, error) {
	if err := s.roles.Require(ctx, actor, model.RoleAdmin, model.RoleModerator); err != nil {
		return nil, err
	}

	e, err := s.find(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if e.Status != model.StatusPending {
		return nil, model.NewInvalidStateError(e.Status, model.StatusActive)
	}

	updated, err := s.repo.TransitionStatus(ctx, enrollmentID,
		[]model.EnrollmentStatus{model.StatusPending}, model.StatusActive, nil)
	if err != nil {
		return nil, model.NewBackendUnavailableError(err)
	}
	if updated == nil {
		return nil, s.lostRace(ctx, enrollmentID, model.StatusActive)
	}

	s.metrics.RecordStatusTransition(model.StatusActive)
	slog.Info("受講登録を承認しました",
		slog.String("enrollment_id", enrollmentID),
		slog.String("actor_id", actor.ID),
	)
	return updated, nil
}

// UpdateProgress は受講中の受講登録の進捗を更新する。
// 進捗が100に達した場合はcompletedへ遷移しcompleted_atを記録する。
// 進捗の後退はadminのみ許可する。
func (s *Service) UpdateProgress(ctx context.Context, actor model.CurrentUser, enrollmentID string, progress int) (*model.Enrollment, error) {
	if actor.ID == "" {
		return nil, model.NewUnauthenticatedError()
	}
	if progress < 0 || progress > model.MaxProgress {
		return nil, model.NewOutOfRangeError(progress)
	}

	e, err := s.find(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}

	isAdmin, err := s.roles.HasRole(ctx, actor.ID, model.RoleAdmin)
	if err != nil {
		return nil, err
	}
	// 他人の受講登録は存在を明かさない
	if e.UserID != actor.ID && !isAdmin {
		return nil, model.NewEnrollmentNotFoundError(enrollmentID)
	}

	target := model.StatusActive
	if progress == model.MaxProgress {
		target = model.StatusCompleted
	}
	if !e.Status.IsInProgress() {
		return nil, model.NewInvalidStateError(e.Status, target)
	}
	if progress < e.Progress && !isAdmin {
		return nil, model.NewProgressRegressionError(e.Progress, progress)
	}

	upd := repository.ProgressUpdate{
		EnrollmentID:    enrollmentID,
		Progress:        progress,
		Status:          e.Status,
		AllowRegression: isAdmin,
	}
	if target == model.StatusCompleted {
		now := s.now()
		upd.Status = model.StatusCompleted
		upd.CompletedAt = &now
	}

	updated, err := s.repo.UpdateProgress(ctx, upd)
	if err != nil {
		return nil, model.NewBackendUnavailableError(err)
	}
	if updated == nil {
		return nil, s.classifyProgressMiss(ctx, enrollmentID, progress, target)
	}

	if updated.Status == model.StatusCompleted {
		s.metrics.RecordStatusTransition(model.StatusCompleted)
		slog.Info("受講登録が修了しました",
			slog.String("enrollment_id", enrollmentID),
			slog.String("actor_id", actor.ID),
		)
	}
	return updated, nil
}

// Complete は明示的な修了操作。進捗を100にする。
func (s *Service) Complete(ctx context.Context, actor model.CurrentUser, enrollmentID string) (*model.Enrollment, error) {
	return s.UpdateProgress(ctx, actor, enrollmentID, model.MaxProgress)
}

// ListMyEnrollments は呼び出し元の受講登録をコース情報付きでenrolled_at降順に返す。
func (s *Service) ListMyEnrollments(ctx context.Context, current model.CurrentUser) ([]model.EnrollmentWithCourse, error) {
	if current.ID == "" {
		return nil, model.NewUnauthenticatedError()
	}
	list, err := s.repo.ListByUserWithCourse(ctx, current.ID)
	if err != nil {
		return nil, model.NewBackendUnavailableError(err)
	}
	if list == nil {
		list = []model.EnrollmentWithCourse{}
	}
	return list, nil
}

// Dashboard は呼び出し元の受講状況を集計する。
func (s *Service) Dashboard(ctx context.Context, current model.CurrentUser) (*Dashboard, error) {
	list, err := s.ListMyEnrollments(ctx, current)
	if err != nil {
		return nil, err
	}
	d := Summarize(list)
	return &d, nil
}

// Summarize は受講登録一覧からダッシュボードの集計値を計算する。
// 平均進捗は全受講登録の進捗の平均を四捨五入した値で、登録がなければ0。
func Summarize(list []model.EnrollmentWithCourse) Dashboard {
	d := Dashboard{Total: len(list), Enrollments: list}
	sum := 0
	for _, e := range list {
		sum += e.Progress
		switch {
		case e.Status.IsInProgress():
			d.InProgress++
		case e.Status == model.StatusCompleted || e.Status == model.StatusCertified:
			d.Completed++
		}
	}
	if d.Total > 0 {
		d.AverageProgress = int(math.Round(float64(sum) / float64(d.Total)))
	}
	return d
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

// lostRace は条件付き更新が0件だった場合に最新の状態を読み直してエラーを返す。
func (s *Service) lostRace(ctx context.Context, enrollmentID string, to model.EnrollmentStatus) error {
	e, err := s.find(ctx, enrollmentID)
	if err != nil {
		return err
	}
	return model.NewInvalidStateError(e.Status, to)
}

func (s *Service) classifyProgressMiss(ctx context.Context, enrollmentID string, progress int, target model.EnrollmentStatus) error {
	e, err := s.find(ctx, enrollmentID)
	if err != nil {
		return err
	}
	if !e.Status.IsInProgress() {
		return model.NewInvalidStateError(e.Status, target)
	}
	return model.NewProgressRegressionError(e.Progress, progress)
}
