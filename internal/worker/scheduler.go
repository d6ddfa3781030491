// Package worker はバックグラウンドジョブのスケジューリングを提供する。
// 各ジョブはcron式で登録し、コンテキストがキャンセルされるまで実行を継続する。
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job はスケジュール実行されるジョブのインターフェース。
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler はcron式に従ってジョブを実行する。
// 同じジョブの実行が重なった場合、後続の実行はスキップされる。
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	// jobTimeout は1回のジョブ実行に許す時間。
	jobTimeout time.Duration
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewScheduler はSchedulerを生成する。locがnilの場合はUTCを使う。
func NewScheduler(logger *slog.Logger, loc *time.Location, jobTimeout time.Duration) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	if jobTimeout <= 0 {
		jobTimeout = 10 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		logger:     logger,
		jobTimeout: jobTimeout,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Register はジョブをcron式で登録する。式が不正な場合はエラーを返す。
func (s *Scheduler) Register(spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() { s.RunJob(s.ctx, job) })
	if err != nil {
		return fmt.Errorf("scheduling %s with %q: %w", job.Name(), spec, err)
	}
	s.logger.Info("ジョブを登録しました",
		slog.String("job", job.Name()),
		slog.String("schedule", spec),
	)
	return nil
}

// JobCount は登録済みジョブ数を返す。
func (s *Scheduler) JobCount() int {
	return len(s.cron.Entries())
}

// RunJob はジョブを1回実行し、結果をログに出力する。
// ジョブのエラーやpanicはスケジューラを止めない。
func (s *Scheduler) RunJob(ctx context.Context, job Job) {
	ctx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("ジョブがpanicしました",
				slog.String("job", job.Name()),
				slog.Any("panic", r),
			)
		}
	}()

	if err := job.Run(ctx); err != nil {
		s.logger.Error("ジョブの実行に失敗しました",
			slog.String("job", job.Name()),
			slog.String("error", err.Error()),
			slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
		)
		return
	}
	s.logger.Debug("ジョブが完了しました",
		slog.String("job", job.Name()),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
}

// Start はスケジューラを起動し、ctxがキャンセルされるまでブロックする。
// 停止時は実行中のジョブの完了を待つ。
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("ジョブスケジューラを開始しました", slog.Int("job_count", s.JobCount()))
	s.cron.Start()

	<-ctx.Done()

	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("ジョブスケジューラを停止しました")
}
