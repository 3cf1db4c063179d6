package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gowvp/dayflow/pkg/ollama"
)

// FrameCount 每个窗口均匀采样的帧数，固定值，调用次数因此恒为 33 或 34
const FrameCount = 30

// FrameSampler 截取视频指定偏移处的一帧
type FrameSampler interface {
	ExtractFrame(ctx context.Context, path string, offset time.Duration) ([]byte, error)
}

// Generator 本地多模态模型的一次生成调用
type Generator interface {
	Generate(ctx context.Context, prompt string, images [][]byte) (string, error)
}

// LocalAnalyzer 逐帧描述后合并
// 调用次数: frames 次描述 + 合并 + 标题 + 分类 + (分心判断，分类已可判定时省略)
type LocalAnalyzer struct {
	gen     Generator
	sampler FrameSampler
	frames  int
	log     *slog.Logger
}

func NewLocalAnalyzer(gen Generator, sampler FrameSampler) *LocalAnalyzer {
	return &LocalAnalyzer{
		gen:     gen,
		sampler: sampler,
		frames:  FrameCount,
		log:     slog.With("component", "local_analyzer"),
	}
}

// AnalyzeVideo implements Provider
func (a *LocalAnalyzer) AnalyzeVideo(ctx context.Context, path string, start, end time.Time) (*Result, error) {
	offsets := sampleOffsets(end.Sub(start), a.frames)

	descriptions := make([]string, 0, len(offsets))
	for i, off := range offsets {
		if err := ctx.Err(); err != nil {
			return nil, ErrProvider.Withf("canceled at frame %d: %s", i, err.Error())
		}
		frame, err := a.sampler.ExtractFrame(ctx, path, off)
		if err != nil {
			return nil, ErrProvider.Withf("extract frame %d at %s err[%s]", i, off, err.Error())
		}
		desc, err := a.generate(ctx, fmt.Sprintf("describe frame %d", i), describeFramePrompt, [][]byte{frame})
		if err != nil {
			return nil, err
		}
		descriptions = append(descriptions, desc)
	}

	summary, err := a.generate(ctx, "merge", buildMergePrompt(descriptions, offsets), nil)
	if err != nil {
		return nil, err
	}
	title, err := a.generate(ctx, "title", fmt.Sprintf(titlePrompt, summary), nil)
	if err != nil {
		return nil, err
	}
	title = strings.Trim(title, "\"' ")

	rawCategory, err := a.generate(ctx, "category", fmt.Sprintf(categoryPrompt, categoryList(), summary), nil)
	if err != nil {
		return nil, err
	}
	category := matchCategory(rawCategory)

	distraction := category.IsDistraction()
	if !distraction {
		answer, err := a.generate(ctx, "distraction", fmt.Sprintf(distractionPrompt, summary), nil)
		if err != nil {
			return nil, err
		}
		distraction = parseYes(answer)
	}

	a.log.InfoContext(ctx, "local analysis done", "path", path, "frames", len(offsets), "category", category, "distraction", distraction)
	return &Result{
		Title:         title,
		Summary:       summary,
		Category:      category,
		IsDistraction: distraction,
		StartTime:     start,
		EndTime:       end,
	}, nil
}

// generate 单次调用，调用前检查取消，不会中断进行中的调用
func (a *LocalAnalyzer) generate(ctx context.Context, step, prompt string, images [][]byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", ErrProvider.Withf("canceled before %s: %s", step, err.Error())
	}
	out, err := a.gen.Generate(ctx, prompt, images)
	if err != nil {
		if errors.Is(err, ollama.ErrInvalidResponse) {
			return "", ErrValidation.Withf("%s: %s", step, err.Error())
		}
		return "", ErrProvider.Withf("%s: %s", step, err.Error())
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrValidation.Withf("%s: empty response", step)
	}
	return out, nil
}

// sampleOffsets 在 [0, d) 内均匀取 n 个偏移
func sampleOffsets(d time.Duration, n int) []time.Duration {
	if d <= 0 {
		d = time.Second
	}
	out := make([]time.Duration, n)
	for i := range n {
		out[i] = d * time.Duration(i) / time.Duration(n)
	}
	return out
}

// matchCategory 本地模型输出不稳定，先精确匹配，再找包含的分类名，都失败归为 Other
func matchCategory(s string) Category {
	s = strings.Trim(strings.TrimSpace(s), "\"'.*` ")
	if c, ok := ParseCategory(s); ok {
		return c
	}
	lower := strings.ToLower(s)
	for _, c := range Categories {
		if strings.Contains(lower, strings.ToLower(string(c))) {
			return c
		}
	}
	return CategoryOther
}

func parseYes(s string) bool {
	s = strings.ToLower(strings.TrimLeft(strings.TrimSpace(s), "\"'*` "))
	return strings.HasPrefix(s, "yes") || strings.HasPrefix(s, "true")
}
