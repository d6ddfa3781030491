package digest

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/learnhub/internal/model"
)

type mockLister struct {
	listFunc func(ctx context.Context) ([]model.PendingCertificate, error)
	calls    int
}

func (m *mockLister) ListPendingCertificates(ctx context.Context) ([]model.PendingCertificate, error) {
	m.calls++
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return nil, nil
}

type sentDigest struct {
	to      string
	pending []model.PendingCertificate
	asOf    time.Time
}

type mockNotifier struct {
	sent []sentDigest
	err  error
}

func (m *mockNotifier) PendingCertificatesDigest(_ context.Context, to string, pending []model.PendingCertificate, asOf time.Time) error {
	m.sent = append(m.sent, sentDigest{to: to, pending: pending, asOf: asOf})
	return m.err
}

func pendingList(n int) []model.PendingCertificate {
	out := make([]model.PendingCertificate, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, model.PendingCertificate{
			StudentName: "Ada",
			CourseTitle: "Go Basics",
		})
	}
	return out
}

func TestJob_Run_SendsDigest(t *testing.T) {
	fixed := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	lister := &mockLister{listFunc: func(context.Context) ([]model.PendingCertificate, error) {
		return pendingList(3), nil
	}}
	n := &mockNotifier{}
	var buf bytes.Buffer
	job := NewJob(lister, n, slog.New(slog.NewJSONHandler(&buf, nil)), "admin@example.com")
	job.now = func() time.Time { return fixed }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(n.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(n.sent))
	}
	got := n.sent[0]
	if got.to != "admin@example.com" || len(got.pending) != 3 || !got.asOf.Equal(fixed) {
		t.Errorf("digest = %+v", got)
	}
	if !strings.Contains(buf.String(), `"pending_count":3`) {
		t.Errorf("pending_count not logged: %s", buf.String())
	}
}

func TestJob_Run_SkipsWhenNonePending(t *testing.T) {
	lister := &mockLister{listFunc: func(context.Context) ([]model.PendingCertificate, error) {
		return []model.PendingCertificate{}, nil
	}}
	n := &mockNotifier{}
	job := NewJob(lister, n, nil, "admin@example.com")

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(n.sent) != 0 {
		t.Errorf("digest sent with no pending certificates")
	}
}

func TestJob_Run_DisabledWithoutRecipient(t *testing.T) {
	lister := &mockLister{}
	n := &mockNotifier{}
	job := NewJob(lister, n, nil, "")

	if job.Enabled() {
		t.Fatal("Enabled() = true with empty recipient")
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if lister.calls != 0 {
		t.Errorf("repository queried while disabled: %d calls", lister.calls)
	}
}

func TestJob_Run_ListError(t *testing.T) {
	boom := errors.New("connection refused")
	lister := &mockLister{listFunc: func(context.Context) ([]model.PendingCertificate, error) {
		return nil, boom
	}}
	n := &mockNotifier{}
	job := NewJob(lister, n, nil, "admin@example.com")

	err := job.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want wrapped %v", err, boom)
	}
	if len(n.sent) != 0 {
		t.Error("digest sent after list failure")
	}
}

func TestJob_Run_NotifyError(t *testing.T) {
	boom := errors.New("sendgrid down")
	lister := &mockLister{listFunc: func(context.Context) ([]model.PendingCertificate, error) {
		return pendingList(1), nil
	}}
	job := NewJob(lister, &mockNotifier{err: boom}, nil, "admin@example.com")

	if err := job.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("error = %v, want wrapped %v", err, boom)
	}
}
