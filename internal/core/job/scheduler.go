package job

import (
	"context"
	"errors"
	"time"

	"github.com/gowvp/dayflow/internal/core/analysis"
	"github.com/gowvp/dayflow/internal/core/card"
	"github.com/gowvp/dayflow/internal/core/chunk"
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/reason"
	"gorm.io/gorm"
)

var errClaimLost = errors.New("job was claimed concurrently")

// RunNext 取最早入队的 Pending 任务执行一次
// 分析失败不返回错误，结果体现在任务状态上；没有任务时返回 ErrNoPendingJob
func (s *Scheduler) RunNext(ctx context.Context) (*AnalysisJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	j, err := s.claim(ctx)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "job processing", "job_id", j.ID, "start", j.StartTime, "end", j.EndTime, "attempt", j.Attempts)

	res, err := s.analyze(ctx, j)

	// 终态写入不受取消影响，任务不会停留在 Processing
	wctx := context.WithoutCancel(ctx)
	if err != nil {
		msg := errorMessage(err)
		if ctx.Err() != nil {
			msg = "interrupted: " + msg
		}
		return s.fail(wctx, j, msg)
	}
	return s.complete(wctx, j, res)
}

// claim 按入队顺序取任务并置为 Processing
// 先进先出以 created_at 为准，不是窗口的时间顺序
func (s *Scheduler) claim(ctx context.Context) (*AnalysisJob, error) {
	var out AnalysisJob
	err := s.store.Job().Session(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("status = ?", StatusPending).Order("created_at ASC, id ASC").First(&out).Error; err != nil {
			return err
		}
		res := tx.Model(new(AnalysisJob)).
			Where("id = ? AND status = ?", out.ID, StatusPending).
			Updates(map[string]any{
				"status":   StatusProcessing,
				"attempts": gorm.Expr("attempts + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return errClaimLost
		}
		out.Status = StatusProcessing
		out.Attempts++
		return nil
	})
	switch {
	case err == nil:
		return &out, nil
	case orm.IsErrRecordNotFound(err):
		return nil, ErrNoPendingJob
	case errors.Is(err, errClaimLost):
		return nil, ErrConflict.Withf("claim job[%d]: %s", out.ID, err.Error())
	}
	return nil, reason.ErrDB.Withf(`claim err[%s]`, err.Error())
}

func (s *Scheduler) analyze(ctx context.Context, j *AnalysisJob) (*analysis.Result, error) {
	chunks, err := s.windowChunks(ctx, j.StartTime, j.EndTime)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, chunk.ErrStorage.Withf("no chunks left for window, evicted before analysis")
	}
	path, cleanup, err := s.chunks.ConcatWindow(ctx, chunks)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return s.provider.AnalyzeVideo(ctx, path, j.StartTime, j.EndTime)
}

func (s *Scheduler) fail(ctx context.Context, j *AnalysisJob, msg string) (*AnalysisJob, error) {
	now := s.now().UTC()
	err := s.store.Job().Session(ctx, func(tx *gorm.DB) error {
		return tx.Model(new(AnalysisJob)).
			Where("id = ? AND status = ?", j.ID, StatusProcessing).
			Updates(map[string]any{
				"status":        StatusFailed,
				"error_message": msg,
				"completed_at":  now,
			}).Error
	})
	if err != nil {
		s.log.ErrorContext(ctx, "mark job failed", "job_id", j.ID, "err", err)
		return nil, reason.ErrDB.Withf(`fail job[%d] err[%s]`, j.ID, err.Error())
	}
	j.Status, j.ErrorMessage, j.CompletedAt = StatusFailed, msg, &now
	s.log.WarnContext(ctx, "job failed", "job_id", j.ID, "err", msg)
	return j, nil
}

// complete 状态更新与建卡在同一事务内，建卡失败时任务转为 Failed
func (s *Scheduler) complete(ctx context.Context, j *AnalysisJob, res *analysis.Result) (*AnalysisJob, error) {
	now := s.now().UTC()
	var c card.TimelineCard
	err := s.store.Job().Session(ctx, func(tx *gorm.DB) error {
		r := tx.Model(new(AnalysisJob)).
			Where("id = ? AND status = ?", j.ID, StatusProcessing).
			Updates(map[string]any{
				"status":        StatusCompleted,
				"error_message": "",
				"completed_at":  now,
			})
		if r.Error != nil {
			return r.Error
		}
		if r.RowsAffected != 1 {
			return ErrConflict.Withf("job[%d] is no longer processing", j.ID)
		}
		return nil
	}, s.cards.BuildSession(j.ID, res, &c))
	if err != nil {
		return s.fail(ctx, j, errorMessage(err))
	}
	j.Status, j.ErrorMessage, j.CompletedAt = StatusCompleted, "", &now
	s.log.InfoContext(ctx, "job completed", "job_id", j.ID, "card_id", c.ID, "title", c.Title)
	return j, nil
}

// errorMessage 失败原因，始终非空
func errorMessage(err error) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "unknown error"
}

// Run 工作协程，由 Notify 或轮询唤醒，逐个处理任务直到 ctx 结束
func (s *Scheduler) Run(ctx context.Context) {
	if _, err := s.RecoverInterrupted(ctx); err != nil {
		s.log.ErrorContext(ctx, "recover interrupted jobs", "err", err)
	}
	s.enqueueReady(ctx)

	ticker := time.NewTicker(s.pollInterval())
	defer ticker.Stop()
	s.log.InfoContext(ctx, "scheduler started", "poll_interval", s.pollInterval(), "window", s.windowSize())
	for {
		s.drain(ctx)
		select {
		case <-ctx.Done():
			s.log.InfoContext(ctx, "scheduler stopped")
			return
		case <-s.notify:
		case <-ticker.C:
			s.enqueueReady(ctx)
		}
	}
}

func (s *Scheduler) drain(ctx context.Context) {
	for ctx.Err() == nil {
		_, err := s.RunNext(ctx)
		if errors.Is(err, ErrNoPendingJob) || errors.Is(err, context.Canceled) {
			return
		}
		if err != nil {
			s.log.ErrorContext(ctx, "run job", "err", err)
			return
		}
	}
}

func (s *Scheduler) enqueueReady(ctx context.Context) {
	if n, err := s.EnqueueReady(ctx); err != nil {
		s.log.ErrorContext(ctx, "enqueue ready windows", "err", err)
	} else if n > 0 {
		s.log.InfoContext(ctx, "ready windows enqueued", "count", n)
	}
}

// EnqueueReady 从上一个任务的结束时间起，按固定窗口扫描分片，为完整覆盖的窗口入队
// 存在间隙的窗口被跳过
func (s *Scheduler) EnqueueReady(ctx context.Context) (int, error) {
	latest, err := s.chunks.LatestChunk(ctx)
	if err != nil || latest == nil {
		return 0, err
	}

	size := s.windowSize()
	var last AnalysisJob
	var from time.Time
	err = s.store.Job().Get(ctx, &last, orm.OrderBy("end_time DESC"))
	switch {
	case err == nil:
		from = last.EndTime
	case orm.IsErrRecordNotFound(err):
		earliest, err := s.chunks.EarliestChunk(ctx)
		if err != nil || earliest == nil {
			return 0, err
		}
		from = earliest.StartTime.Truncate(size)
	default:
		return 0, reason.ErrDB.Withf(`last job err[%s]`, err.Error())
	}

	var n int
	limit := latest.EndTime.Add(coverageTolerance)
	for ws := from; !ws.Add(size).After(limit); ws = ws.Add(size) {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		_, created, err := s.Enqueue(ctx, ws, ws.Add(size))
		if errors.Is(err, ErrNotCovered) {
			continue
		}
		if err != nil {
			return n, err
		}
		if created {
			n++
		}
	}
	return n, nil
}
