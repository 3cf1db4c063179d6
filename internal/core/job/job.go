package job

import (
	"context"
	"errors"
	"time"

	"github.com/gowvp/dayflow/internal/core/chunk"
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/reason"
	"gorm.io/gorm"
)

// Enqueue 窗口被分片连续覆盖时创建 Pending 任务
// 与已有任务重叠时无论其状态如何都返回已有任务，created 为 false
// 已失败的任务不会被重新排队，重试只能通过 Reset
func (s *Scheduler) Enqueue(ctx context.Context, start, end time.Time) (*AnalysisJob, bool, error) {
	if !end.After(start) {
		return nil, false, reason.ErrBadRequest.Withf("window end must be after start")
	}
	chunks, err := s.windowChunks(ctx, start, end)
	if err != nil {
		return nil, false, err
	}
	if !covered(chunks, start, end) {
		return nil, false, ErrNotCovered.Withf("window [%s, %s) has %d chunks", start.Format(time.RFC3339), end.Format(time.RFC3339), len(chunks))
	}

	var (
		out     AnalysisJob
		created bool
	)
	err = s.store.Job().Session(ctx, func(tx *gorm.DB) error {
		err := tx.Where("start_time < ? AND end_time > ?", end.UTC(), start.UTC()).
			Order("created_at ASC, id ASC").
			First(&out).Error
		if err == nil {
			return nil
		}
		if !orm.IsErrRecordNotFound(err) {
			return err
		}
		out = AnalysisJob{
			StartTime: start.UTC(),
			EndTime:   end.UTC(),
			Status:    StatusPending,
			CreatedAt: s.now().UTC(),
		}
		created = true
		return tx.Create(&out).Error
	})
	if err != nil {
		return nil, false, reason.ErrDB.Withf(`Enqueue err[%s]`, err.Error())
	}
	if created {
		s.log.InfoContext(ctx, "job enqueued", "job_id", out.ID, "start", out.StartTime, "end", out.EndTime, "chunks", len(chunks))
		s.Notify()
	}
	return &out, created, nil
}

// EnqueueWindow 供 http 接口使用
func (s *Scheduler) EnqueueWindow(ctx context.Context, in *EnqueueInput) (*EnqueueOutput, error) {
	if in.StartMs <= 0 || in.EndMs <= 0 {
		return nil, reason.ErrBadRequest.Withf("start_ms and end_ms are required")
	}
	j, created, err := s.Enqueue(ctx, in.StartAt(), in.EndAt())
	if err != nil {
		return nil, err
	}
	return &EnqueueOutput{Job: j, Created: created, Retryable: !created && j.Status == StatusFailed}, nil
}

// windowChunks 与窗口有交集的分片，按开始时间升序
func (s *Scheduler) windowChunks(ctx context.Context, start, end time.Time) ([]*chunk.VideoChunk, error) {
	items, err := s.chunks.QueryChunks(ctx, start.Add(-chunk.ChunkDuration), end)
	if err != nil {
		return nil, err
	}
	out := items[:0]
	for _, ch := range items {
		if ch.EndTime.After(start) && ch.StartTime.Before(end) {
			out = append(out, ch)
		}
	}
	return out, nil
}

// covered 分片是否无间隙地覆盖 [start, end)
func covered(chunks []*chunk.VideoChunk, start, end time.Time) bool {
	cursor := start
	for _, ch := range chunks {
		if !ch.EndTime.After(cursor) {
			continue
		}
		if ch.StartTime.After(cursor.Add(coverageTolerance)) {
			return false
		}
		cursor = ch.EndTime
	}
	return !cursor.Before(end.Add(-coverageTolerance))
}

// Reset 将 Failed 任务重置为 Pending，是唯一离开终态的途径
func (s *Scheduler) Reset(ctx context.Context, id int64) (*AnalysisJob, error) {
	var out AnalysisJob
	err := s.store.Job().Edit(ctx, &out, func(j *AnalysisJob) error {
		if j.Status != StatusFailed {
			return ErrConflict.Withf("job[%d] is %s, only failed jobs can be reset", j.ID, j.Status)
		}
		j.Status = StatusPending
		j.ErrorMessage = ""
		j.CompletedAt = nil
		return nil
	}, orm.Where("id=?", id))
	if err != nil {
		var e *reason.Error
		switch {
		case errors.As(err, &e):
			return nil, e
		case orm.IsErrRecordNotFound(err):
			return nil, reason.ErrNotFound.Withf(`Reset id[%v]`, id)
		}
		return nil, reason.ErrDB.Withf(`Reset id[%v] err[%s]`, id, err.Error())
	}
	s.log.InfoContext(ctx, "job reset", "job_id", id)
	s.Notify()
	return &out, nil
}

// RecoverInterrupted 启动时将遗留在 Processing 的任务标记为 Failed
func (s *Scheduler) RecoverInterrupted(ctx context.Context) (int64, error) {
	var n int64
	now := s.now().UTC()
	err := s.store.Job().Session(ctx, func(tx *gorm.DB) error {
		res := tx.Model(new(AnalysisJob)).
			Where("status = ?", StatusProcessing).
			Updates(map[string]any{
				"status":        StatusFailed,
				"error_message": "interrupted",
				"completed_at":  now,
			})
		n = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, reason.ErrDB.Withf(`RecoverInterrupted err[%s]`, err.Error())
	}
	if n > 0 {
		s.log.WarnContext(ctx, "interrupted jobs marked failed", "count", n)
	}
	return n, nil
}

// GetJob Query a single object
func (s *Scheduler) GetJob(ctx context.Context, id int64) (*AnalysisJob, error) {
	var out AnalysisJob
	if err := s.store.Job().Get(ctx, &out, orm.Where("id=?", id)); err != nil {
		if orm.IsErrRecordNotFound(err) {
			return nil, reason.ErrNotFound.Withf(`Get id[%v] err[%s]`, id, err.Error())
		}
		return nil, reason.ErrDB.Withf(`Get id[%v] err[%s]`, id, err.Error())
	}
	return &out, nil
}

// FindJobs Paginated search，按入队时间倒序
func (s *Scheduler) FindJobs(ctx context.Context, in *FindJobInput) ([]*AnalysisJob, int64, error) {
	// 未指定 size 时每页 10 条
	if in.Size <= 0 {
		in.Size = 10
	}
	query := orm.NewQuery(2).OrderBy("created_at DESC, id DESC")
	if in.Status != "" {
		if !in.Status.Valid() {
			return nil, 0, reason.ErrBadRequest.Withf("unknown status %q", in.Status)
		}
		query.Where("status = ?", in.Status)
	}
	items := make([]*AnalysisJob, 0, in.Limit())
	total, err := s.store.Job().Find(ctx, &items, in, query.Encode()...)
	if err != nil {
		return nil, 0, reason.ErrDB.Withf(`Find in[%+v] err[%s]`, in, err.Error())
	}
	return items, total, nil
}

// CountByStatus 各状态的任务数
func (s *Scheduler) CountByStatus(ctx context.Context) (map[Status]int64, error) {
	out := make(map[Status]int64, 4)
	for _, st := range []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed} {
		n, err := s.store.Job().Count(ctx, orm.Where("status = ?", st))
		if err != nil {
			return nil, reason.ErrDB.Withf(`Count err[%s]`, err.Error())
		}
		out[st] = n
	}
	return out, nil
}
