// Package ffwork 封装 ffmpeg 子进程，提供截帧与视频拼接
package ffwork

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ixugo/goddd/pkg/queue"
)

type Config struct {
	// Bin ffmpeg 可执行文件，默认从 PATH 查找
	Bin string
	// Width 截帧缩放宽度，0 表示保持原尺寸
	Width   int
	HWAccel string
	// LogSize 保留的 ffmpeg 日志行数，1~255
	LogSize int
}

type FFWork struct {
	config Config

	m   sync.Mutex
	log *queue.CirQueue[string]
}

func New(cfg Config) *FFWork {
	if cfg.Bin == "" {
		cfg.Bin = "ffmpeg"
	}
	if cfg.LogSize <= 0 || cfg.LogSize > math.MaxUint8 {
		cfg.LogSize = 100
	}
	return &FFWork{config: cfg, log: queue.NewCirQueue[string](uint8(cfg.LogSize))}
}

func (f *FFWork) baseArgs() []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-threads", "2",
	}
	if f.config.HWAccel != "" {
		args = append(args, "-hwaccel", f.config.HWAccel)
	}
	return args
}

// buildFrameArgs -ss 放在 -i 之前走关键帧快速定位
func (f *FFWork) buildFrameArgs(path string, offset time.Duration) []string {
	args := f.baseArgs()
	args = append(args,
		"-ss", strconv.FormatFloat(offset.Seconds(), 'f', 3, 64),
		"-i", path,
		"-frames:v", "1",
	)
	if f.config.Width > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=%d:-2", f.config.Width))
	}
	args = append(args,
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "3",
		"pipe:1",
	)
	return args
}

func (f *FFWork) buildConcatArgs(list, output string) []string {
	args := f.baseArgs()
	return append(args,
		"-f", "concat",
		"-safe", "0",
		"-i", list,
		"-c", "copy",
		"-movflags", "+faststart",
		"-y", output,
	)
}

// ExtractFrame 截取 offset 处的一帧 JPEG
func (f *FFWork) ExtractFrame(ctx context.Context, path string, offset time.Duration) ([]byte, error) {
	var stdout bytes.Buffer
	if err := f.run(ctx, f.buildFrameArgs(path, offset), &stdout); err != nil {
		return nil, err
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("no frame at %s in %s", offset, filepath.Base(path))
	}
	return stdout.Bytes(), nil
}

// Concat 无损拼接多个同编码的视频片段
func (f *FFWork) Concat(ctx context.Context, inputs []string, output string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("concat: no inputs")
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return err
	}
	list, err := os.CreateTemp(filepath.Dir(output), "concat_*.txt")
	if err != nil {
		return err
	}
	defer os.Remove(list.Name())

	if _, err := io.WriteString(list, ConcatList(inputs)); err != nil {
		list.Close()
		return err
	}
	if err := list.Close(); err != nil {
		return err
	}
	return f.run(ctx, f.buildConcatArgs(list.Name(), output), io.Discard)
}

// ConcatList 生成 concat demuxer 的列表文件内容
func ConcatList(inputs []string) string {
	var b strings.Builder
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			abs = in
		}
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(abs, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}

func (f *FFWork) run(ctx context.Context, args []string, stdout io.Writer) error {
	cmd := exec.CommandContext(ctx, f.config.Bin, args...)
	cmd.Stdout = stdout
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to get stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	// ffmpeg 的警告和错误信息都会输出到 stderr
	var last string
	scan := bufio.NewScanner(stderr)
	for scan.Scan() {
		last = scan.Text()
		f.m.Lock()
		f.log.Push(last)
		f.m.Unlock()
	}
	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if last != "" {
			return fmt.Errorf("ffmpeg: %w: %s", err, last)
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}

// Log 最近的 ffmpeg 输出
func (f *FFWork) Log() []string {
	f.m.Lock()
	defer f.m.Unlock()
	return f.log.Range()
}
