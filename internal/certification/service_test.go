package certification

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/learnhub/internal/model"
	"github.com/hitoshi/learnhub/internal/repository"
)

// --- モック ---

type mockEnrollmentRepo struct {
	mu    sync.Mutex
	rows  map[string]*model.Enrollment
	reads atomic.Int32

	listPendingFn func(ctx context.Context) ([]model.PendingCertificate, error)
	listByUserFn  func(ctx context.Context, userID string) ([]model.EnrollmentWithCourse, error)
}

func newMockRepo(rows ...*model.Enrollment) *mockEnrollmentRepo {
	m := &mockEnrollmentRepo{rows: map[string]*model.Enrollment{}}
	for _, e := range rows {
		m.rows[e.ID] = e
	}
	return m
}

func (m *mockEnrollmentRepo) status(id string) model.EnrollmentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id].Status
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*model.Enrollment, error) {
	m.reads.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}
func (m *mockEnrollmentRepo) FindByUserAndCourse(ctx context.Context, userID, courseID string) (*model.Enrollment, error) {
	return nil, nil
}
func (m *mockEnrollmentRepo) Create(ctx context.Context, e *model.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.UserID == e.UserID && existing.CourseID == e.CourseID {
			return repository.ErrDuplicate
		}
	}
	cp := *e
	m.rows[e.ID] = &cp
	return nil
}
func (m *mockEnrollmentRepo) ListByUserWithCourse(ctx context.Context, userID string) ([]model.EnrollmentWithCourse, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID)
	}
	return nil, nil
}
func (m *mockEnrollmentRepo) ListAll(ctx context.Context) ([]*model.Enrollment, error) {
	return nil, nil
}
func (m *mockEnrollmentRepo) ListPendingCertificates(ctx context.Context) ([]model.PendingCertificate, error) {
	if m.listPendingFn != nil {
		return m.listPendingFn(ctx)
	}
	return nil, nil
}
func (m *mockEnrollmentRepo) TransitionStatus(ctx context.Context, id string, from []model.EnrollmentStatus, to model.EnrollmentStatus, completedAt *time.Time) (*model.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	for _, f := range from {
		if e.Status == f {
			e.Status = to
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}
func (m *mockEnrollmentRepo) UpdateProgress(ctx context.Context, u repository.ProgressUpdate) (*model.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[u.EnrollmentID]
	if !ok || !e.Status.IsInProgress() || (!u.AllowRegression && u.Progress < e.Progress) {
		return nil, nil
	}
	e.Progress = u.Progress
	e.Status = u.Status
	e.CompletedAt = u.CompletedAt
	cp := *e
	return &cp, nil
}

type mockRoles struct {
	admins map[string]bool
}

func newMockRoles() *mockRoles {
	return &mockRoles{admins: map[string]bool{admin.ID: true}}
}

func (m *mockRoles) HasRole(ctx context.Context, userID string, role model.Role) (bool, error) {
	return role == model.RoleAdmin && m.admins[userID], nil
}

func (m *mockRoles) Require(ctx context.Context, actor model.CurrentUser, roles ...model.Role) error {
	if actor.ID == "" {
		return model.NewUnauthenticatedError()
	}
	if m.admins[actor.ID] {
		return nil
	}
	return model.NewUnauthorizedError()
}

type mockProfiles struct{}

func (mockProfiles) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	return &model.Profile{UserID: userID, FullName: "Ada Obi", Email: "ada@example.com"}, nil
}

type mockCourses struct{}

func (mockCourses) GetCourse(ctx context.Context, id string) (*model.Course, error) {
	return &model.Course{ID: id, Title: "Data Analysis"}, nil
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (m *mockNotifier) CertificateIssued(ctx context.Context, student *model.Profile, courseTitle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, student.Email+":"+courseTitle)
	return m.err
}

var (
	admin   = model.CurrentUser{ID: "admin-1"}
	student = model.CurrentUser{ID: "student-1"}
)

func newTestService(repo *mockEnrollmentRepo, n *mockNotifier) *Service {
	var notifier CertificateNotifier
	if n != nil {
		notifier = n
	}
	return NewService(repo, newMockRoles(), mockProfiles{}, mockCourses{}, notifier, nil)
}

// --- テスト ---

func TestService_ApproveCertificate_Success(t *testing.T) {
	repo := newMockRepo(&model.Enrollment{ID: "e1", UserID: student.ID, CourseID: "c1", Status: model.StatusCompleted, Progress: 100})
	n := &mockNotifier{}
	svc := newTestService(repo, n)

	e, err := svc.ApproveCertificate(context.Background(), admin, "e1")
	if err != nil {
		t.Fatalf("ApproveCertificate returned error: %v", err)
	}
	if e.Status != model.StatusCertified {
		t.Errorf("status = %s, want certified", e.Status)
	}
	if e.Progress != 100 {
		t.Errorf("progress = %d, want unchanged 100", e.Progress)
	}
	if len(n.sent) != 1 || n.sent[0] != "ada@example.com:Data Analysis" {
		t.Errorf("notifications = %v", n.sent)
	}
}

func TestService_ApproveCertificate_NonAdminNeverReads(t *testing.T) {
	for _, status := range []model.EnrollmentStatus{
		model.StatusPending, model.StatusActive, model.StatusCompleted, model.StatusCertified,
	} {
		t.Run(string(status), func(t *testing.T) {
			repo := newMockRepo(&model.Enrollment{ID: "e1", UserID: student.ID, Status: status})
			svc := newTestService(repo, nil)

			_, err := svc.ApproveCertificate(context.Background(), student, "e1")
			if !model.HasCode(err, model.ErrCodeUnauthorized) {
				t.Fatalf("error = %v, want UNAUTHORIZED", err)
			}
			if repo.reads.Load() != 0 {
				t.Errorf("enrollment reads = %d, want 0", repo.reads.Load())
			}
			if repo.status("e1") != status {
				t.Errorf("status changed to %s", repo.status("e1"))
			}
		})
	}
}

func TestService_ApproveCertificate_NotCompleted(t *testing.T) {
	for _, status := range []model.EnrollmentStatus{
		model.StatusPending, model.StatusActive, model.StatusApproved, model.StatusCertified,
	} {
		t.Run(string(status), func(t *testing.T) {
			repo := newMockRepo(&model.Enrollment{ID: "e1", UserID: student.ID, Status: status})
			svc := newTestService(repo, nil)

			_, err := svc.ApproveCertificate(context.Background(), admin, "e1")
			if !model.HasCode(err, model.ErrCodeInvalidState) {
				t.Fatalf("error = %v, want INVALID_STATE", err)
			}
			if repo.status("e1") != status {
				t.Errorf("status = %s, want unchanged %s", repo.status("e1"), status)
			}
		})
	}
}

func TestService_ApproveCertificate_NotFound(t *testing.T) {
	svc := newTestService(newMockRepo(), nil)
	_, err := svc.ApproveCertificate(context.Background(), admin, "missing")
	if !model.HasCode(err, model.ErrCodeEnrollmentNotFound) {
		t.Errorf("error = %v, want ENROLLMENT_NOT_FOUND", err)
	}
}

func TestService_ApproveCertificate_ConcurrentAdmins(t *testing.T) {
	repo := newMockRepo(&model.Enrollment{ID: "e1", UserID: student.ID, Status: model.StatusCompleted})
	svc := newTestService(repo, nil)

	const workers = 2
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.ApproveCertificate(context.Background(), admin, "e1")
		}(i)
	}
	wg.Wait()

	ok, invalid := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case model.HasCode(err, model.ErrCodeInvalidState):
			invalid++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || invalid != 1 {
		t.Errorf("ok=%d invalid=%d, want 1/1", ok, invalid)
	}
}

func TestService_ApproveCertificate_NotificationFailureIsIgnored(t *testing.T) {
	repo := newMockRepo(&model.Enrollment{ID: "e1", UserID: student.ID, Status: model.StatusCompleted})
	svc := newTestService(repo, &mockNotifier{err: errors.New("smtp down")})

	if _, err := svc.ApproveCertificate(context.Background(), admin, "e1"); err != nil {
		t.Fatalf("ApproveCertificate returned error: %v", err)
	}
	if repo.status("e1") != model.StatusCertified {
		t.Errorf("status = %s, want certified", repo.status("e1"))
	}
}

func TestService_ListPending(t *testing.T) {
	repo := newMockRepo()
	repo.listPendingFn = func(ctx context.Context) ([]model.PendingCertificate, error) {
		return []model.PendingCertificate{{StudentName: "Ada", CourseTitle: "Go"}}, nil
	}
	svc := newTestService(repo, nil)

	if _, err := svc.ListPending(context.Background(), student); !model.HasCode(err, model.ErrCodeUnauthorized) {
		t.Errorf("student error = %v, want UNAUTHORIZED", err)
	}
	list, err := svc.ListPending(context.Background(), admin)
	if err != nil || len(list) != 1 {
		t.Errorf("ListPending = %v, %v", list, err)
	}
}

func TestService_ListMyCertificates(t *testing.T) {
	repo := newMockRepo()
	repo.listByUserFn = func(ctx context.Context, userID string) ([]model.EnrollmentWithCourse, error) {
		return []model.EnrollmentWithCourse{
			{Enrollment: model.Enrollment{ID: "e1", Status: model.StatusCertified}},
			{Enrollment: model.Enrollment{ID: "e2", Status: model.StatusCompleted}},
			{Enrollment: model.Enrollment{ID: "e3", Status: model.StatusCertified}},
		}, nil
	}
	svc := newTestService(repo, nil)

	certs, err := svc.ListMyCertificates(context.Background(), student)
	if err != nil {
		t.Fatalf("ListMyCertificates returned error: %v", err)
	}
	if len(certs) != 2 || certs[0].ID != "e1" || certs[1].ID != "e3" {
		t.Errorf("certificates = %+v", certs)
	}
}
