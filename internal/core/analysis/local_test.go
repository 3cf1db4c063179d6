package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gowvp/dayflow/pkg/ollama"
	"github.com/stretchr/testify/require"
)

type fakeSampler struct {
	offsets []time.Duration
	err     error
}

func (f *fakeSampler) ExtractFrame(_ context.Context, _ string, offset time.Duration) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.offsets = append(f.offsets, offset)
	return []byte(fmt.Sprintf("frame@%s", offset)), nil
}

// fakeGenerator 按提示词区分调用类型并计数
type fakeGenerator struct {
	mu       sync.Mutex
	category string
	calls    map[string]int
	failAt   string
	err      error
}

func newFakeGenerator(category string) *fakeGenerator {
	return &fakeGenerator{category: category, calls: make(map[string]int)}
}

func (f *fakeGenerator) kind(prompt string, images [][]byte) string {
	switch {
	case len(images) == 1:
		return "describe"
	case strings.HasPrefix(prompt, "Below are chronological"):
		return "merge"
	case strings.HasPrefix(prompt, "Write a short title"):
		return "title"
	case strings.HasPrefix(prompt, "Classify"):
		return "category"
	case strings.HasPrefix(prompt, "A user is expected"):
		return "distraction"
	}
	return "unknown"
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, images [][]byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := f.kind(prompt, images)
	f.calls[k]++
	if k == f.failAt {
		return "", f.err
	}
	switch k {
	case "describe":
		return "an editor with Go code", nil
	case "merge":
		return "The user was writing Go code in an editor.", nil
	case "title":
		return `"Writing Go code"`, nil
	case "category":
		return f.category, nil
	case "distraction":
		return "No.", nil
	}
	return "", errors.New("unexpected prompt")
}

func (f *fakeGenerator) total() int {
	var n int
	for _, v := range f.calls {
		n += v
	}
	return n
}

var (
	windowStart = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	windowEnd   = windowStart.Add(15 * time.Second)
)

func TestLocalAnalyzerCallCount(t *testing.T) {
	gen := newFakeGenerator("Coding")
	sampler := &fakeSampler{}
	a := NewLocalAnalyzer(gen, sampler)

	out, err := a.AnalyzeVideo(context.Background(), "chunk.mp4", windowStart, windowEnd)
	require.NoError(t, err)
	require.Equal(t, 30, gen.calls["describe"])
	require.Equal(t, 1, gen.calls["merge"])
	require.Equal(t, 1, gen.calls["title"])
	require.Equal(t, 1, gen.calls["category"])
	require.Equal(t, 1, gen.calls["distraction"])
	require.Equal(t, 34, gen.total())

	require.Equal(t, "Writing Go code", out.Title)
	require.Equal(t, CategoryCoding, out.Category)
	require.False(t, out.IsDistraction)
	require.Equal(t, windowStart, out.StartTime)
	require.Equal(t, windowEnd, out.EndTime)

	require.Len(t, sampler.offsets, 30)
	require.Equal(t, time.Duration(0), sampler.offsets[0])
	require.Equal(t, 500*time.Millisecond, sampler.offsets[1])
	require.Less(t, sampler.offsets[29], 15*time.Second)
}

func TestLocalAnalyzerSkipsDistractionCall(t *testing.T) {
	for _, c := range []string{"Social Media", "entertainment"} {
		gen := newFakeGenerator(c)
		out, err := NewLocalAnalyzer(gen, &fakeSampler{}).AnalyzeVideo(context.Background(), "chunk.mp4", windowStart, windowEnd)
		require.NoError(t, err)
		require.Equal(t, 33, gen.total())
		require.Zero(t, gen.calls["distraction"])
		require.True(t, out.IsDistraction)
	}
}

func TestLocalAnalyzerFailureAborts(t *testing.T) {
	gen := newFakeGenerator("Coding")
	gen.failAt, gen.err = "title", errors.New("connection refused")
	_, err := NewLocalAnalyzer(gen, &fakeSampler{}).AnalyzeVideo(context.Background(), "chunk.mp4", windowStart, windowEnd)
	require.True(t, errors.Is(err, ErrProvider))
	require.Zero(t, gen.calls["category"])

	gen = newFakeGenerator("Coding")
	gen.failAt, gen.err = "merge", fmt.Errorf("%w: missing response field", ollama.ErrInvalidResponse)
	_, err = NewLocalAnalyzer(gen, &fakeSampler{}).AnalyzeVideo(context.Background(), "chunk.mp4", windowStart, windowEnd)
	require.True(t, errors.Is(err, ErrValidation))

	_, err = NewLocalAnalyzer(newFakeGenerator("Coding"), &fakeSampler{err: errors.New("ffmpeg exit 1")}).
		AnalyzeVideo(context.Background(), "chunk.mp4", windowStart, windowEnd)
	require.True(t, errors.Is(err, ErrProvider))
}

func TestLocalAnalyzerCanceled(t *testing.T) {
	gen := newFakeGenerator("Coding")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLocalAnalyzer(gen, &fakeSampler{}).AnalyzeVideo(ctx, "chunk.mp4", windowStart, windowEnd)
	require.True(t, errors.Is(err, ErrProvider))
	require.Zero(t, gen.total())
}

func TestMatchCategory(t *testing.T) {
	require.Equal(t, CategoryDesign, matchCategory("design"))
	require.Equal(t, CategorySocialMedia, matchCategory("Category: **Social Media**."))
	require.Equal(t, CategoryOther, matchCategory("gaming"))
	require.True(t, parseYes("Yes, it is"))
	require.False(t, parseYes("no"))
}
