package chunk

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gowvp/dayflow/internal/conf"
	"github.com/ixugo/goddd/pkg/reason"
)

const (
	recordingsDir = "recordings"
	timelapsesDir = "timelapses"
	dateLayout    = "2006-01-02"
)

// ErrStorage 存储未初始化、路径越界或文件读写失败
var ErrStorage = reason.NewError("ErrStorage", "存储异常")

// Storer data persistence
type Storer interface {
	Chunk() ChunkStorer
}

// Concatenator 将多个视频文件无损拼接为一个文件
type Concatenator interface {
	Concat(ctx context.Context, inputs []string, output string) error
}

// Core business domain
type Core struct {
	store     Storer
	conf      *conf.ServerStorage
	concat    Concatenator
	now       func() time.Time
	loc       *time.Location
	diskUsage func(path string) (float64, error)
	batchSize int
	alloc     *allocation
}

// allocation 最近一次分配的日期目录
// 分配之后、文件写入之前目录是空的，清理时需要跳过
type allocation struct {
	mu  sync.Mutex
	dir string
	at  time.Time
}

func (a *allocation) set(dir string, at time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dir, a.at = dir, at
}

// pending 目录是否刚被分配，尚在一个分片时长之内
func (a *allocation) pending(dir string, now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dir == dir && now.Sub(a.at) < ChunkDuration
}

type Option func(*Core)

// WithConfig 注入存储配置
func WithConfig(conf *conf.ServerStorage) Option {
	return func(c *Core) {
		c.conf = conf
	}
}

// WithConcatenator 注入视频拼接实现，用于生成延时视频
func WithConcatenator(concat Concatenator) Option {
	return func(c *Core) {
		c.concat = concat
	}
}

// WithClock 替换时钟，测试使用
func WithClock(now func() time.Time) Option {
	return func(c *Core) {
		c.now = now
	}
}

// WithLocation 日期目录与文件名使用的时区，默认本地时区
func WithLocation(loc *time.Location) Option {
	return func(c *Core) {
		c.loc = loc
	}
}

// WithDiskUsage 替换磁盘使用率的获取方式
func WithDiskUsage(fn func(path string) (float64, error)) Option {
	return func(c *Core) {
		c.diskUsage = fn
	}
}

// WithEvictBatchSize 每批删除的分片数量
func WithEvictBatchSize(n int) Option {
	return func(c *Core) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// NewCore create business domain
func NewCore(store Storer, opts ...Option) Core {
	c := Core{
		store:     store,
		now:       time.Now,
		loc:       time.Local,
		diskUsage: getDiskUsage,
		batchSize: defaultEvictBatchSize,
		alloc:     &allocation{},
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// initialized 存储是否可用
func (c Core) initialized() bool {
	return c.store != nil && c.conf != nil && c.conf.Dir != ""
}

// RecordingsDir 分片根目录
func (c Core) RecordingsDir() string {
	return filepath.Join(c.conf.Dir, recordingsDir)
}

// TimelapsesDir 延时视频根目录
func (c Core) TimelapsesDir() string {
	return filepath.Join(c.conf.Dir, timelapsesDir)
}

// GetFullPath 获取分片文件的完整路径
// relativePath 可能是相对于存储目录的路径，也可能是完整路径
func (c Core) GetFullPath(relativePath string) string {
	if c.conf == nil || c.conf.Dir == "" || filepath.IsAbs(relativePath) {
		return relativePath
	}
	if strings.HasPrefix(relativePath, c.conf.Dir) {
		return relativePath
	}
	return filepath.Join(c.conf.Dir, relativePath)
}

// resolvePath 返回分片文件的绝对路径，路径必须位于 recordings 目录之内
func (c Core) resolvePath(path string) (string, error) {
	if path == "" {
		return "", ErrStorage.Withf("chunk path is empty")
	}
	root, err := filepath.Abs(c.RecordingsDir())
	if err != nil {
		return "", ErrStorage.Withf("resolve root err[%s]", err.Error())
	}
	full, err := filepath.Abs(c.GetFullPath(path))
	if err != nil {
		return "", ErrStorage.Withf("resolve path[%s] err[%s]", path, err.Error())
	}
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrStorage.Withf("path[%s] is outside %s", path, root)
	}
	return full, nil
}

func (c Core) ext() string {
	if c.conf == nil || c.conf.ChunkExt == "" {
		return "mp4"
	}
	return c.conf.ChunkExt
}

func (c Core) dateDir(t time.Time) string {
	return t.In(c.loc).Format(dateLayout)
}
