package chunk

import (
	"context"
	"log/slog"
	"time"
)

// DefaultRetention 默认保留 3 天
const DefaultRetention = 3 * 24 * time.Hour

// SweepResult 一次清理的结果
type SweepResult struct {
	Cutoff   time.Time   `json:"cutoff"`
	Expired  EvictResult `json:"expired"`
	DiskFull EvictResult `json:"disk_full"`
}

// Sweeper 按保留时长周期性清理分片
type Sweeper struct {
	core      Core
	retention time.Duration
	interval  time.Duration
	threshold float64
	log       *slog.Logger
}

// NewSweeper 根据存储配置创建清理器
func NewSweeper(core Core) *Sweeper {
	s := Sweeper{
		core:      core,
		retention: DefaultRetention,
		interval:  time.Hour,
		log:       slog.With("component", "sweeper"),
	}
	if cfg := core.conf; cfg != nil {
		if cfg.RetainDays > 0 {
			s.retention = time.Duration(cfg.RetainDays) * 24 * time.Hour
		}
		if cfg.SweepInterval > 0 {
			s.interval = cfg.SweepInterval.Duration()
		}
		s.threshold = cfg.DiskUsageThreshold
	}
	return &s
}

// Run 删除早于 now - retention 的分片，每次执行相互独立
func (s *Sweeper) Run(ctx context.Context, retention time.Duration) (SweepResult, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	out := SweepResult{Cutoff: s.core.now().Add(-retention)}

	var err error
	out.Expired, err = s.core.EvictOlderThan(ctx, out.Cutoff)
	if err != nil {
		return out, err
	}
	out.DiskFull, err = s.core.EvictByDiskUsage(ctx, s.threshold)
	return out, err
}

// RunOnce 使用配置的保留时长执行一次
func (s *Sweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	return s.Run(ctx, s.retention)
}

// Start 启动定时清理，启动时先执行一次，ctx 取消后退出
func (s *Sweeper) Start(ctx context.Context) {
	if !s.core.initialized() {
		s.log.Info("chunk cleanup disabled")
		return
	}
	s.log.Info("chunk cleanup worker started",
		"retention", s.retention.String(),
		"interval", s.interval.String(),
		"disk_threshold", s.threshold,
		"storage_dir", s.core.conf.Dir,
	)

	s.runAndLog(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("chunk cleanup worker stopped")
			return
		case <-ticker.C:
			s.runAndLog(ctx)
		}
	}
}

func (s *Sweeper) runAndLog(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
		s.log.ErrorContext(ctx, "sweep", "err", err)
	}
}
