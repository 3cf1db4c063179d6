package chunk

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/ixugo/goddd/pkg/web"
	"github.com/shirou/gopsutil/v4/disk"
	"gorm.io/gorm"
)

const defaultEvictBatchSize = 100

// EvictOlderThan 删除 created_at < cutoff 的分片
// 先尽力删除文件（失败只记录日志），再删除记录，最后自底向上清理空的日期目录
// 重复执行是安全的
func (c Core) EvictOlderThan(ctx context.Context, cutoff time.Time) (EvictResult, error) {
	if !c.initialized() {
		return EvictResult{}, ErrStorage.Withf("chunk store is not initialized")
	}
	result, err := c.batchDeleteChunks(ctx, "expired",
		orm.Where("created_at < ?", cutoff.UTC()),
		orm.OrderBy("id ASC"),
	)
	c.cleanupEmptyDirs(c.RecordingsDir())
	c.removeTimelapsesBefore(cutoff)
	if err != nil {
		return result, err
	}

	if result.Deleted > 0 || result.FilesFailed > 0 {
		slog.InfoContext(ctx, "expired chunk cleanup completed",
			"reason", "retention_policy",
			"cutoff_time", cutoff.Format(time.DateTime),
			"chunks_deleted", result.Deleted,
			"failed_files", result.FilesFailed,
			"freed_bytes", result.FreedBytes,
		)
	}
	return result, nil
}

// EvictByDiskUsage 磁盘使用率超过阈值时，从最旧的分片开始删除直到低于阈值
// 删除一批后使用率没有下降，说明空间被其他数据占用，立即停止，避免删光全部分片
func (c Core) EvictByDiskUsage(ctx context.Context, threshold float64) (EvictResult, error) {
	var result EvictResult
	if !c.initialized() || threshold <= 0 || threshold >= 100 {
		return result, nil
	}
	root := c.RecordingsDir()
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return result, nil
	}

	initial, err := c.diskUsage(root)
	if err != nil {
		slog.WarnContext(ctx, "failed to get disk usage", "err", err)
		return result, nil
	}
	usage := initial
	for usage >= threshold {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		batch, err := c.deleteBatch(ctx, orm.OrderBy("start_time ASC, id ASC"))
		if err != nil {
			return result, err
		}
		if batch.Deleted == 0 {
			break
		}
		result.add(batch)

		prev := usage
		if usage, err = c.diskUsage(root); err != nil {
			break
		}
		if usage >= prev {
			slog.WarnContext(ctx, "disk usage not decreasing, stop evicting",
				"usage", usage,
				"threshold", threshold,
				"chunks_deleted", result.Deleted,
			)
			break
		}
	}
	c.cleanupEmptyDirs(root)

	if result.Deleted > 0 || result.FilesFailed > 0 {
		slog.InfoContext(ctx, "disk usage cleanup completed",
			"reason", "disk_threshold_exceeded",
			"initial_usage", initial,
			"threshold", threshold,
			"chunks_deleted", result.Deleted,
			"failed_files", result.FilesFailed,
			"freed_bytes", result.FreedBytes,
		)
	}
	return result, nil
}

// batchDeleteChunks 按条件分批删除，直到没有符合条件的记录
// 批次之间检查 ctx，取消只会发生在两个批次之间
func (c Core) batchDeleteChunks(ctx context.Context, why string, conditions ...orm.QueryOption) (EvictResult, error) {
	var result EvictResult
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		batch, err := c.deleteBatch(ctx, conditions...)
		if err != nil {
			slog.ErrorContext(ctx, "batch delete chunks", "reason", why, "err", err)
			return result, err
		}
		if batch.Deleted == 0 {
			return result, nil
		}
		result.add(batch)
	}
}

func (c Core) deleteBatch(ctx context.Context, conditions ...orm.QueryOption) (EvictResult, error) {
	var result EvictResult
	var chunks []*VideoChunk
	pager := web.PagerFilter{Page: 1, Size: c.batchSize}
	if _, err := c.store.Chunk().Find(ctx, &chunks, &pager, conditions...); err != nil {
		return result, reason.ErrDB.Withf(`find chunks err[%s]`, err.Error())
	}
	if len(chunks) == 0 {
		return result, nil
	}

	ids := make([]int64, 0, len(chunks))
	for _, ch := range chunks {
		ids = append(ids, ch.ID)
		path, err := c.resolvePath(ch.FilePath)
		if err != nil {
			// 存储目录之外的文件不归分片管理，只删除记录
			result.FilesFailed++
			slog.WarnContext(ctx, "skip chunk file outside storage", "path", ch.FilePath, "err", err)
			continue
		}
		if err := os.Remove(path); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				result.FilesFailed++
				slog.WarnContext(ctx, "failed to delete chunk file", "path", path, "err", err)
			}
		} else {
			result.FreedBytes += ch.FileSize
		}
	}

	if err := c.store.Chunk().Session(ctx, func(tx *gorm.DB) error {
		return tx.Where("id IN ?", ids).Delete(&VideoChunk{}).Error
	}); err != nil {
		return result, reason.ErrDB.Withf(`delete chunks err[%s]`, err.Error())
	}
	result.Deleted = len(ids)
	return result, nil
}

// removeTimelapsesBefore 删除日期早于 cutoff 当天的延时视频目录
func (c Core) removeTimelapsesBefore(cutoff time.Time) {
	root := c.TimelapsesDir()
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}
	cutoffDay := c.dateDir(cutoff)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		// 日期格式固定，字符串比较即日期比较
		if _, err := time.Parse(dateLayout, entry.Name()); err != nil || entry.Name() >= cutoffDay {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("failed to delete timelapse dir", "path", dir, "err", err)
		}
	}
}

// cleanupEmptyDirs 递归删除空目录，根目录保留
// 刚由 AllocateChunkPath 创建、分片尚未写入的目录跳过
func (c Core) cleanupEmptyDirs(dir string) {
	now := c.now()
	var walk func(string)
	walk = func(dir string) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			subDir := filepath.Join(dir, entry.Name())
			walk(subDir)

			if c.alloc.pending(subDir, now) {
				continue
			}
			subEntries, err := os.ReadDir(subDir)
			if err == nil && len(subEntries) == 0 {
				if err := os.Remove(subDir); err == nil {
					slog.Debug("removed empty directory", "path", subDir)
				}
			}
		}
	}
	walk(dir)
}

// getDiskUsage 获取指定路径所在磁盘的使用率（百分比）
func getDiskUsage(path string) (float64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.UsedPercent, nil
}

// DiskUsage 存储目录所在磁盘的使用率
func (c Core) DiskUsage() (float64, error) {
	if !c.initialized() {
		return 0, ErrStorage.Withf("chunk store is not initialized")
	}
	return c.diskUsage(c.conf.Dir)
}
