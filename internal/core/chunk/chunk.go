package chunk

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/ixugo/goddd/pkg/web"
	"gorm.io/gorm"
)

// ChunkStorer Instantiation interface
type ChunkStorer interface {
	Find(context.Context, *[]*VideoChunk, orm.Pager, ...orm.QueryOption) (int64, error)
	Get(context.Context, *VideoChunk, ...orm.QueryOption) error
	Add(context.Context, *VideoChunk) error
	Del(context.Context, *VideoChunk, ...orm.QueryOption) error
	Count(context.Context, ...orm.QueryOption) (int64, error)

	Session(context.Context, ...func(*gorm.DB) error) error
}

// AllocateChunkPath 为即将写入的分片分配路径，确保日期目录存在
// 路径格式: recordings/YYYY-MM-DD/chunk_HHMMSS.<ext>
func (c Core) AllocateChunkPath(ts time.Time) (string, error) {
	if !c.initialized() {
		return "", ErrStorage.Withf("chunk store is not initialized")
	}
	local := ts.In(c.loc)
	dir := filepath.Join(c.RecordingsDir(), local.Format(dateLayout))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", ErrStorage.Withf("mkdir[%s] err[%s]", dir, err.Error())
	}
	c.alloc.set(dir, c.now())
	return filepath.Join(dir, fmt.Sprintf("chunk_%s.%s", local.Format("150405"), c.ext())), nil
}

// RecordChunk 记录已写完的分片，文件大小在此刻读取
// 只接受 recordings 目录内的文件，目录外的路径不会被登记，也就不会被清理删除
func (c Core) RecordChunk(ctx context.Context, path string, startTime time.Time, frameCount int) (*VideoChunk, error) {
	if !c.initialized() {
		return nil, ErrStorage.Withf("chunk store is not initialized")
	}
	fullPath, err := c.resolvePath(path)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(fullPath)
	if err != nil {
		return nil, ErrStorage.Withf("stat chunk[%s] err[%s]", fullPath, err.Error())
	}
	if fi.IsDir() {
		return nil, ErrStorage.Withf("chunk[%s] is a directory", fullPath)
	}

	start := startTime.UTC()
	out := VideoChunk{
		FilePath:   fullPath,
		StartTime:  start,
		EndTime:    start.Add(ChunkDuration),
		FrameCount: frameCount,
		FileSize:   fi.Size(),
		CreatedAt:  c.now().UTC(),
	}
	if err := c.store.Chunk().Add(ctx, &out); err != nil {
		return nil, reason.ErrDB.Withf(`Add err[%s]`, err.Error())
	}
	slog.DebugContext(ctx, "chunk recorded", "id", out.ID, "path", out.FilePath, "size", out.FileSize)
	return &out, nil
}

// AddChunk 供 http 接口使用
func (c Core) AddChunk(ctx context.Context, in *RecordChunkInput) (*VideoChunk, error) {
	if in.Path == "" || in.StartMs <= 0 {
		return nil, reason.ErrBadRequest.Withf("path and start_ms are required")
	}
	return c.RecordChunk(ctx, in.Path, in.StartAt(), in.FrameCount)
}

// QueryChunks 查询开始时间落在 [start, end] 内的分片，按开始时间升序
func (c Core) QueryChunks(ctx context.Context, start, end time.Time) ([]*VideoChunk, error) {
	if !c.initialized() {
		return nil, ErrStorage.Withf("chunk store is not initialized")
	}
	query := orm.NewQuery(2).
		Where("start_time >= ? AND start_time <= ?", start.UTC(), end.UTC()).
		OrderBy("start_time ASC, id ASC")

	items := make([]*VideoChunk, 0, 8)
	// 使用默认分页器避免 nil pointer，一天最多 5760 个分片
	pager := web.PagerFilter{Page: 1, Size: 10000}
	if _, err := c.store.Chunk().Find(ctx, &items, &pager, query.Encode()...); err != nil {
		return nil, reason.ErrDB.Withf(`QueryChunks err[%s]`, err.Error())
	}
	return items, nil
}

// FindChunks 分页查询
func (c Core) FindChunks(ctx context.Context, in *FindChunkInput) ([]*VideoChunk, int64, error) {
	// 未指定 size 时每页 10 条
	if in.Size <= 0 {
		in.Size = 10
	}
	query := orm.NewQuery(2).OrderBy("start_time ASC, id ASC")
	if in.StartMs > 0 && in.EndMs > 0 {
		query.Where("start_time >= ? AND start_time <= ?", in.StartAt().UTC(), in.EndAt().UTC())
	}
	items := make([]*VideoChunk, 0, in.Limit())
	total, err := c.store.Chunk().Find(ctx, &items, in, query.Encode()...)
	if err != nil {
		return nil, 0, reason.ErrDB.Withf(`Find in[%+v] err[%s]`, in, err.Error())
	}
	return items, total, nil
}

// GetChunk Query a single object
func (c Core) GetChunk(ctx context.Context, id int64) (*VideoChunk, error) {
	var out VideoChunk
	if err := c.store.Chunk().Get(ctx, &out, orm.Where("id=?", id)); err != nil {
		if orm.IsErrRecordNotFound(err) {
			return nil, reason.ErrNotFound.Withf(`Get id[%v] err[%s]`, id, err.Error())
		}
		return nil, reason.ErrDB.Withf(`Get id[%v] err[%s]`, id, err.Error())
	}
	return &out, nil
}

// LatestChunk 最近一个分片，没有分片时返回 nil
func (c Core) LatestChunk(ctx context.Context) (*VideoChunk, error) {
	var out VideoChunk
	if err := c.store.Chunk().Get(ctx, &out, orm.OrderBy("start_time DESC")); err != nil {
		if orm.IsErrRecordNotFound(err) {
			return nil, nil
		}
		return nil, reason.ErrDB.Withf(`LatestChunk err[%s]`, err.Error())
	}
	return &out, nil
}

// EarliestChunk 最早的分片，没有分片时返回 nil
func (c Core) EarliestChunk(ctx context.Context) (*VideoChunk, error) {
	var out VideoChunk
	if err := c.store.Chunk().Get(ctx, &out, orm.OrderBy("start_time ASC")); err != nil {
		if orm.IsErrRecordNotFound(err) {
			return nil, nil
		}
		return nil, reason.ErrDB.Withf(`EarliestChunk err[%s]`, err.Error())
	}
	return &out, nil
}

// ChunksOfDay 查询某一天（按配置时区）的全部分片
func (c Core) ChunksOfDay(ctx context.Context, date time.Time) ([]*VideoChunk, error) {
	local := date.In(c.loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
	return c.QueryChunks(ctx, dayStart, dayStart.AddDate(0, 0, 1).Add(-time.Nanosecond))
}

// GetTimeline 返回时间范围内的分片时段
func (c Core) GetTimeline(ctx context.Context, start, end time.Time) ([]TimeRange, error) {
	chunks, err := c.QueryChunks(ctx, start, end)
	if err != nil {
		return nil, err
	}
	result := make([]TimeRange, 0, len(chunks))
	for _, ch := range chunks {
		result = append(result, TimeRange{
			ID:      ch.ID,
			StartMs: ch.StartTime.UnixMilli(),
			EndMs:   ch.EndTime.UnixMilli(),
		})
	}
	return result, nil
}
