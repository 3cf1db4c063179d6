package chunk

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ixugo/goddd/pkg/reason"
)

// TimelapsePath 某一天延时视频的路径: timelapses/YYYY-MM-DD/timelapse.<ext>
func (c Core) TimelapsePath(date time.Time) string {
	return filepath.Join(c.TimelapsesDir(), c.dateDir(date), "timelapse."+c.ext())
}

// BuildTimelapse 将某一天的全部分片拼接为一个文件
func (c Core) BuildTimelapse(ctx context.Context, date time.Time) (string, error) {
	if !c.initialized() {
		return "", ErrStorage.Withf("chunk store is not initialized")
	}
	if c.concat == nil {
		return "", ErrStorage.Withf("concatenator is not configured")
	}
	chunks, err := c.ChunksOfDay(ctx, date)
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return "", reason.ErrNotFound.Withf("no chunks on %s", c.dateDir(date))
	}

	inputs := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		inputs = append(inputs, c.GetFullPath(ch.FilePath))
	}
	out := c.TimelapsePath(date)
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", ErrStorage.Withf("mkdir err[%s]", err.Error())
	}
	if err := c.concat.Concat(ctx, inputs, out); err != nil {
		return "", ErrStorage.Withf("concat %d chunks err[%s]", len(inputs), err.Error())
	}
	slog.InfoContext(ctx, "timelapse built", "path", out, "chunks", len(inputs))
	return out, nil
}

// ConcatWindow 将窗口内的多个分片拼接到临时文件，返回路径与清理函数
// 只有一个分片时直接返回原文件
func (c Core) ConcatWindow(ctx context.Context, chunks []*VideoChunk) (string, func(), error) {
	noop := func() {}
	switch len(chunks) {
	case 0:
		return "", noop, reason.ErrNotFound.Withf("window has no chunks")
	case 1:
		return c.GetFullPath(chunks[0].FilePath), noop, nil
	}
	if c.concat == nil {
		return "", noop, ErrStorage.Withf("concatenator is not configured")
	}

	dir, err := os.MkdirTemp("", "dayflow-window-*")
	if err != nil {
		return "", noop, ErrStorage.Withf("mkdir temp err[%s]", err.Error())
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	inputs := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		inputs = append(inputs, c.GetFullPath(ch.FilePath))
	}
	out := filepath.Join(dir, fmt.Sprintf("window_%d.%s", chunks[0].ID, c.ext()))
	if err := c.concat.Concat(ctx, inputs, out); err != nil {
		cleanup()
		return "", noop, ErrStorage.Withf("concat window err[%s]", err.Error())
	}
	return out, cleanup, nil
}
