package analytics

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/learnhub/internal/model"
	"github.com/hitoshi/learnhub/internal/repository"
)

// RoleChecker は権限チェックのインターフェース。
type RoleChecker interface {
	Require(ctx context.Context, actor model.CurrentUser, roles ...model.Role) error
}

// Service は集計ビューのサービス層。
type Service struct {
	profiles    repository.ProfileRepository
	courses     repository.CourseRepository
	enrollments repository.EnrollmentRepository
	contacts    repository.ContactRepository
	roles       RoleChecker
	window      time.Duration
	now         func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// windowは新規ユーザー数と増加率の集計期間。
func NewService(
	profiles repository.ProfileRepository,
	courses repository.CourseRepository,
	enrollments repository.EnrollmentRepository,
	contacts repository.ContactRepository,
	roles RoleChecker,
	window time.Duration,
) *Service {
	return &Service{
		profiles:    profiles,
		courses:     courses,
		enrollments: enrollments,
		contacts:    contacts,
		roles:       roles,
		window:      window,
		now:         time.Now,
	}
}

// Overview は管理ダッシュボードの集計を返す。adminのみ。
// 権限チェックの後、各テーブルを並行に読み込んで集計する。
func (s *Service) Overview(ctx context.Context, actor model.CurrentUser) (*Overview, error) {
	if err := s.roles.Require(ctx, actor, model.RoleAdmin); err != nil {
		return nil, err
	}

	snap, err := s.load(ctx)
	if err != nil {
		return nil, model.NewBackendUnavailableError(err)
	}
	o := Summarize(snap, s.now(), s.window)
	return &o, nil
}

func (s *Service) load(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		profiles, err := s.profiles.ListAll(gctx)
		snap.Profiles = profiles
		return err
	})
	g.Go(func() error {
		courses, err := s.courses.ListAll(gctx)
		snap.Courses = courses
		return err
	})
	g.Go(func() error {
		enrollments, err := s.enrollments.ListAll(gctx)
		snap.Enrollments = enrollments
		return err
	})
	if s.contacts != nil {
		g.Go(func() error {
			submissions, err := s.contacts.List(gctx, "")
			snap.TotalSubmissions = len(submissions)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
