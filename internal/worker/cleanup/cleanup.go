// Package cleanup は対応済み問い合わせの自動削除ジョブを提供する。
// 保持期間（デフォルト365日）を超過したresolvedの問い合わせを
// 日次バッチで削除する。new / in_progress の問い合わせは対象外。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// DefaultRetentionDays は対応済み問い合わせの保持日数のデフォルト値。
const DefaultRetentionDays = 365

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Job は保持期間を超過した対応済み問い合わせの削除ジョブ。
// 何度実行しても結果は変わらない。
type Job struct {
	db            Executor
	logger        *slog.Logger
	RetentionDays int
}

// NewJob は新しいJobを生成する。
// retentionDaysが0以下の場合はDefaultRetentionDaysを使う。
func NewJob(db Executor, logger *slog.Logger, retentionDays int) *Job {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{
		db:            db,
		logger:        logger,
		RetentionDays: retentionDays,
	}
}

// Name はスケジューラのログに使うジョブ名を返す。
func (j *Job) Name() string {
	return "contact_cleanup"
}

const deleteResolvedQuery = `DELETE FROM contact_submissions
WHERE status = 'resolved' AND updated_at < now() - $1::interval`

// Run はupdated_atがRetentionDays日前より古いresolvedの問い合わせを削除する。
// 削除対象がない場合でもエラーにならない。
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()

	interval := fmt.Sprintf("%d days", j.RetentionDays)

	result, err := j.db.ExecContext(ctx, deleteResolvedQuery, interval)
	if err != nil {
		j.logger.Error("問い合わせクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("contact cleanup: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("contact cleanup rows affected: %w", err)
	}

	j.logger.Info("問い合わせクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}
