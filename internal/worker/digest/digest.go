// Package digest は認定待ち受講登録の管理者向けダイジェストメールを送るジョブを提供する。
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/learnhub/internal/model"
)

// PendingLister は認定待ち受講登録の取得インターフェース。
type PendingLister interface {
	ListPendingCertificates(ctx context.Context) ([]model.PendingCertificate, error)
}

// DigestNotifier はダイジェストメールの送信インターフェース。
type DigestNotifier interface {
	PendingCertificatesDigest(ctx context.Context, to string, pending []model.PendingCertificate, asOf time.Time) error
}

// Job は認定待ち一覧を管理者にメールするジョブ。
// 宛先が未設定、または認定待ちが0件の場合は何も送らない。
type Job struct {
	enrollments PendingLister
	notifier    DigestNotifier
	logger      *slog.Logger
	to          string
	now         func() time.Time
}

// NewJob はJobを生成する。toは管理者の通知先アドレス。
func NewJob(enrollments PendingLister, notifier DigestNotifier, logger *slog.Logger, to string) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{
		enrollments: enrollments,
		notifier:    notifier,
		logger:      logger,
		to:          to,
		now:         time.Now,
	}
}

// Name はスケジューラのログに使うジョブ名を返す。
func (j *Job) Name() string {
	return "pending_certificate_digest"
}

// Enabled は通知先が設定されているかを返す。
func (j *Job) Enabled() bool {
	return j.to != ""
}

// Run は認定待ち一覧を取得し、1件以上あればダイジェストを送信する。
func (j *Job) Run(ctx context.Context) error {
	if !j.Enabled() {
		j.logger.Debug("ダイジェストの通知先が未設定のためスキップします")
		return nil
	}

	start := time.Now()

	pending, err := j.enrollments.ListPendingCertificates(ctx)
	if err != nil {
		return fmt.Errorf("listing pending certificates: %w", err)
	}

	if len(pending) == 0 {
		j.logger.Info("認定待ちの受講登録はありません")
		return nil
	}

	if err := j.notifier.PendingCertificatesDigest(ctx, j.to, pending, j.now()); err != nil {
		j.logger.Error("認定待ちダイジェストの送信に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("pending_count", len(pending)),
		)
		return fmt.Errorf("sending pending certificate digest: %w", err)
	}

	j.logger.Info("認定待ちダイジェストを送信しました",
		slog.Int("pending_count", len(pending)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}
