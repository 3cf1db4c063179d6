package job

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gowvp/dayflow/internal/conf"
	"github.com/gowvp/dayflow/internal/core/analysis"
	"github.com/gowvp/dayflow/internal/core/card"
	"github.com/gowvp/dayflow/internal/core/chunk"
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/reason"
	"gorm.io/gorm"
)

const (
	// coverageTolerance 相邻分片之间允许的采集抖动
	coverageTolerance = time.Second

	defaultWindowSize   = 15 * time.Minute
	defaultPollInterval = time.Minute
)

var (
	// ErrNoPendingJob 没有待处理的任务
	ErrNoPendingJob = reason.NewError("ErrNoPendingJob", "没有待处理的任务").SetHTTPStatus(http.StatusNotFound)
	// ErrNotCovered 窗口未被分片连续覆盖
	ErrNotCovered = reason.NewError("ErrNotCovered", "窗口未被分片完整覆盖").SetHTTPStatus(http.StatusConflict)
	// ErrConflict 任务状态不允许当前操作
	ErrConflict = reason.NewError("ErrConflict", "任务状态冲突").SetHTTPStatus(http.StatusConflict)
)

// Storer data persistence
type Storer interface {
	Job() JobStorer
}

// JobStorer Instantiation interface
type JobStorer interface {
	Find(context.Context, *[]*AnalysisJob, orm.Pager, ...orm.QueryOption) (int64, error)
	Get(context.Context, *AnalysisJob, ...orm.QueryOption) error
	Edit(context.Context, *AnalysisJob, func(*AnalysisJob) error, ...orm.QueryOption) error
	Count(context.Context, ...orm.QueryOption) (int64, error)

	Session(context.Context, ...func(*gorm.DB) error) error
}

// ChunkSource 任务读取窗口内分片的方式
type ChunkSource interface {
	QueryChunks(ctx context.Context, start, end time.Time) ([]*chunk.VideoChunk, error)
	ConcatWindow(ctx context.Context, chunks []*chunk.VideoChunk) (string, func(), error)
	EarliestChunk(ctx context.Context) (*chunk.VideoChunk, error)
	LatestChunk(ctx context.Context) (*chunk.VideoChunk, error)
}

// CardBuilder 任务完成时在同一事务内生成卡片
type CardBuilder interface {
	BuildSession(jobID int64, res *analysis.Result, out *card.TimelineCard) func(*gorm.DB) error
}

var (
	_ ChunkSource = chunk.Core{}
	_ CardBuilder = card.Core{}
)

// Scheduler 驱动任务状态机
// 同一时刻最多一个任务处于 Processing
type Scheduler struct {
	store    Storer
	chunks   ChunkSource
	provider analysis.Provider
	cards    CardBuilder
	conf     *conf.ServerScheduler
	now      func() time.Time

	mu     sync.Mutex
	notify chan struct{}
	log    *slog.Logger
}

type Option func(*Scheduler)

// WithConfig 注入调度配置
func WithConfig(conf *conf.ServerScheduler) Option {
	return func(s *Scheduler) {
		s.conf = conf
	}
}

// WithClock 替换时钟，测试使用
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// NewScheduler create business domain
func NewScheduler(store Storer, chunks ChunkSource, provider analysis.Provider, cards CardBuilder, opts ...Option) *Scheduler {
	s := Scheduler{
		store:    store,
		chunks:   chunks,
		provider: provider,
		cards:    cards,
		conf:     &conf.ServerScheduler{},
		now:      time.Now,
		notify:   make(chan struct{}, 1),
		log:      slog.With("component", "scheduler"),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return &s
}

// Notify 唤醒工作协程，不阻塞
func (s *Scheduler) Notify() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Scheduler) windowSize() time.Duration {
	if d := s.conf.WindowSize.Duration(); d > 0 {
		return d
	}
	return defaultWindowSize
}

func (s *Scheduler) pollInterval() time.Duration {
	if d := s.conf.PollInterval.Duration(); d > 0 {
		return d
	}
	return defaultPollInterval
}
