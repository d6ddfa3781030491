package profile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/learnhub/internal/cache"
	"github.com/hitoshi/learnhub/internal/model"
	"github.com/hitoshi/learnhub/internal/validation"
)

// --- モック ---

type mockProfileRepo struct {
	findFn   func(ctx context.Context, userID string) (*model.Profile, error)
	upsertFn func(ctx context.Context, p *model.Profile) (bool, error)
	findHits int
}

func (m *mockProfileRepo) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	m.findHits++
	if m.findFn != nil {
		return m.findFn(ctx, userID)
	}
	return nil, nil
}
func (m *mockProfileRepo) Upsert(ctx context.Context, p *model.Profile) (bool, error) {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, p)
	}
	return true, nil
}
func (m *mockProfileRepo) ListAll(ctx context.Context) ([]*model.Profile, error) {
	return nil, nil
}

type mockCache struct {
	store       map[string]*model.Profile
	getErr      error
	setErr      error
	invalidated []string
}

func newMockCache() *mockCache {
	return &mockCache{store: map[string]*model.Profile{}}
}

func (m *mockCache) Get(ctx context.Context, userID string) (*model.Profile, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.store[userID], nil
}
func (m *mockCache) Set(ctx context.Context, p *model.Profile) error {
	if m.setErr != nil {
		return m.setErr
	}
	if cache.IsStale(m.store[p.UserID], p) {
		return nil
	}
	m.store[p.UserID] = p
	return nil
}
func (m *mockCache) Invalidate(ctx context.Context, userID string) error {
	m.invalidated = append(m.invalidated, userID)
	delete(m.store, userID)
	return nil
}

type mockRoles struct {
	ensured []string
	err     error
}

func (m *mockRoles) EnsureDefault(ctx context.Context, userID string) error {
	m.ensured = append(m.ensured, userID)
	return m.err
}

var current = model.CurrentUser{ID: "user-1", Email: "ada@example.com"}

// --- テスト ---

func TestService_GetProfile_NotFound(t *testing.T) {
	svc := NewService(&mockProfileRepo{}, newMockCache(), nil, nil)

	_, err := svc.GetProfile(context.Background(), "missing")
	if !model.HasCode(err, model.ErrCodeProfileNotFound) {
		t.Errorf("error = %v, want PROFILE_NOT_FOUND", err)
	}
}

func TestService_GetProfile_ReadThroughCache(t *testing.T) {
	repo := &mockProfileRepo{
		findFn: func(ctx context.Context, userID string) (*model.Profile, error) {
			return &model.Profile{UserID: userID, FullName: "Ada"}, nil
		},
	}
	c := newMockCache()
	svc := NewService(repo, c, nil, nil)

	for i := 0; i < 3; i++ {
		p, err := svc.GetProfile(context.Background(), "user-1")
		if err != nil || p.FullName != "Ada" {
			t.Fatalf("GetProfile = %+v, %v", p, err)
		}
	}
	if repo.findHits != 1 {
		t.Errorf("repository reads = %d, want 1", repo.findHits)
	}
}

func TestService_GetProfile_CacheFailureFallsBack(t *testing.T) {
	repo := &mockProfileRepo{
		findFn: func(ctx context.Context, userID string) (*model.Profile, error) {
			return &model.Profile{UserID: userID, FullName: "Ada"}, nil
		},
	}
	c := newMockCache()
	c.getErr = errors.New("redis down")
	svc := NewService(repo, c, nil, nil)

	p, err := svc.GetProfile(context.Background(), "user-1")
	if err != nil || p == nil {
		t.Fatalf("GetProfile = %+v, %v; want fallback to repository", p, err)
	}
}

func TestService_GetProfile_BackendUnavailable(t *testing.T) {
	repo := &mockProfileRepo{
		findFn: func(ctx context.Context, userID string) (*model.Profile, error) {
			return nil, errors.New("connection reset")
		},
	}
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.GetProfile(context.Background(), "user-1")
	if !model.HasCode(err, model.ErrCodeBackendUnavailable) {
		t.Errorf("error = %v, want BACKEND_UNAVAILABLE", err)
	}
}

func TestService_UpsertProfile_DefaultsAndWriteThrough(t *testing.T) {
	var saved *model.Profile
	repo := &mockProfileRepo{
		upsertFn: func(ctx context.Context, p *model.Profile) (bool, error) {
			saved = p
			return true, nil
		},
	}
	c := newMockCache()
	c.store["user-1"] = &model.Profile{UserID: "user-1", FullName: "stale"}
	roles := &mockRoles{}
	svc := NewService(repo, c, roles, validation.New())

	p, err := svc.UpsertProfile(context.Background(), current, Input{
		FullName:    "  Ada Obi  ",
		DateOfBirth: "1990-01-15",
	})
	if err != nil {
		t.Fatalf("UpsertProfile returned error: %v", err)
	}
	if saved == nil || saved != p {
		t.Fatal("expected the saved profile to be returned")
	}
	if p.FullName != "Ada Obi" {
		t.Errorf("FullName = %q, want trimmed", p.FullName)
	}
	if p.Country != model.DefaultCountry {
		t.Errorf("Country = %q, want %q", p.Country, model.DefaultCountry)
	}
	if p.Email != "ada@example.com" {
		t.Errorf("Email = %q, want copied from current user", p.Email)
	}
	if p.DateOfBirth == nil || !p.DateOfBirth.Equal(time.Date(1990, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("DateOfBirth = %v", p.DateOfBirth)
	}
	if c.store["user-1"] != p {
		t.Errorf("cached = %+v, want the saved profile", c.store["user-1"])
	}
	if len(roles.ensured) != 1 {
		t.Errorf("EnsureDefault calls = %d, want 1", len(roles.ensured))
	}
}

func TestService_UpsertProfile_KeepsExistingEmailWhenTokenHasNone(t *testing.T) {
	repo := &mockProfileRepo{
		findFn: func(ctx context.Context, userID string) (*model.Profile, error) {
			return &model.Profile{UserID: userID, Email: "kept@example.com"}, nil
		},
	}
	svc := NewService(repo, nil, nil, nil)

	p, err := svc.UpsertProfile(context.Background(), model.CurrentUser{ID: "user-1"}, Input{FullName: "Ada"})
	if err != nil {
		t.Fatalf("UpsertProfile returned error: %v", err)
	}
	if p.Email != "kept@example.com" {
		t.Errorf("Email = %q, want kept@example.com", p.Email)
	}
}

func TestService_UpsertProfile_ValidationFailure(t *testing.T) {
	upsertCalled := false
	repo := &mockProfileRepo{
		upsertFn: func(ctx context.Context, p *model.Profile) (bool, error) {
			upsertCalled = true
			return true, nil
		},
	}
	svc := NewService(repo, nil, nil, validation.New())

	_, err := svc.UpsertProfile(context.Background(), current, Input{DateOfBirth: "2999-01-01"})
	if !model.HasCode(err, model.ErrCodeValidationFailed) {
		t.Fatalf("error = %v, want VALIDATION_FAILED", err)
	}
	if upsertCalled {
		t.Error("Upsert should not be called for invalid input")
	}
}

func TestService_UpsertProfile_Unauthenticated(t *testing.T) {
	svc := NewService(&mockProfileRepo{}, nil, nil, nil)
	_, err := svc.UpsertProfile(context.Background(), model.CurrentUser{}, Input{})
	if !model.HasCode(err, model.ErrCodeUnauthenticated) {
		t.Errorf("error = %v, want UNAUTHENTICATED", err)
	}
}

func TestService_UpsertProfile_CacheWriteFailureInvalidates(t *testing.T) {
	c := newMockCache()
	c.store["user-1"] = &model.Profile{UserID: "user-1", FullName: "stale"}
	c.setErr = errors.New("redis down")
	svc := NewService(&mockProfileRepo{}, c, nil, validation.New())

	if _, err := svc.UpsertProfile(context.Background(), current, Input{FullName: "Ada"}); err != nil {
		t.Fatalf("UpsertProfile returned error: %v", err)
	}
	if len(c.invalidated) != 1 || c.invalidated[0] != "user-1" {
		t.Errorf("invalidated = %v, want [user-1]", c.invalidated)
	}
	if _, ok := c.store["user-1"]; ok {
		t.Error("stale cache entry should be removed")
	}
}

// 読み込みミス中に更新が割り込んでも、古い行がキャッシュに残らないこと。
func TestService_GetProfile_ConcurrentUpsertKeepsFreshEntry(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Second)

	c := newMockCache()
	repo := &mockProfileRepo{
		upsertFn: func(ctx context.Context, p *model.Profile) (bool, error) {
			p.UpdatedAt = t1
			return false, nil
		},
	}
	svc := NewService(repo, c, nil, validation.New())

	repo.findFn = func(ctx context.Context, userID string) (*model.Profile, error) {
		old := &model.Profile{UserID: userID, FullName: "Old Name", UpdatedAt: t0}
		// 古い行を読んだ直後、キャッシュ格納前に更新が完了する
		if _, err := svc.UpsertProfile(ctx, current, Input{FullName: "New Name"}); err != nil {
			t.Fatalf("UpsertProfile returned error: %v", err)
		}
		return old, nil
	}

	got, err := svc.GetProfile(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetProfile returned error: %v", err)
	}
	if got.FullName != "Old Name" {
		t.Errorf("GetProfile = %q, want the row it read", got.FullName)
	}
	cached := c.store["user-1"]
	if cached == nil || cached.FullName != "New Name" {
		t.Errorf("cached = %+v, want the upserted row", cached)
	}

	repo.findFn = nil
	next, err := svc.GetProfile(context.Background(), "user-1")
	if err != nil || next.FullName != "New Name" {
		t.Errorf("next GetProfile = %+v, %v; want New Name from cache", next, err)
	}
}
