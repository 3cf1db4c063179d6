package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gowvp/dayflow/internal/conf"
	"github.com/gowvp/dayflow/internal/core/analysis"
	"github.com/gowvp/dayflow/internal/core/chunk"
	"github.com/gowvp/dayflow/internal/core/job"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeConcat struct{}

func (fakeConcat) Concat(_ context.Context, _ []string, output string) error {
	return os.WriteFile(output, []byte("concat"), 0o644)
}

type fakeProvider struct{}

func (fakeProvider) AnalyzeVideo(_ context.Context, _ string, start, end time.Time) (*analysis.Result, error) {
	return &analysis.Result{Title: "t", Summary: "s", Category: analysis.CategoryCoding, StartTime: start, EndTime: end}, nil
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.db")), &gorm.Config{})
	require.NoError(t, err)

	bc := conf.DefaultConfig()
	bc.Server.Storage.Dir = t.TempDir()
	bc.Server.HTTP.AllowCORS = true

	chunkCore := chunk.NewCore(NewChunkStore(db), chunk.WithConfig(&bc.Server.Storage), chunk.WithConcatenator(fakeConcat{}))
	cardCore := NewCardCore(NewCardStore(db))
	scheduler := NewScheduler(NewJobStore(db), chunkCore, fakeProvider{}, cardCore, &bc)
	sweeper := NewSweeper(chunkCore)
	return NewHTTPHandler(&Usecase{
		Conf:         &bc,
		DB:           db,
		ChunkAPI:     NewChunkAPI(chunkCore),
		JobAPI:       NewJobAPI(scheduler),
		CardAPI:      NewCardAPI(cardCore),
		RetentionAPI: NewRetentionAPI(sweeper, chunkCore),
	})
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	} else if method == http.MethodPost {
		r = bytes.NewReader([]byte("{}"))
	} else {
		r = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestChunkAndJobFlow(t *testing.T) {
	h := newTestHandler(t)
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local)

	w := do(t, h, http.MethodPost, "/chunks/allocate", chunk.AllocateChunkInput{StartMs: start.UnixMilli()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var alloc chunk.AllocateChunkOutput
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &alloc))
	require.True(t, strings.HasSuffix(alloc.Path, filepath.Join("2024-01-01", "chunk_100000.mp4")))
	require.NoError(t, os.WriteFile(alloc.Path, []byte("video"), 0o644))

	w = do(t, h, http.MethodPost, "/chunks", chunk.RecordChunkInput{Path: alloc.Path, StartMs: start.UnixMilli(), FrameCount: 15})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var ch chunk.VideoChunk
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ch))
	require.True(t, ch.EndTime.Equal(start.Add(15*time.Second)))

	q := fmt.Sprintf("start_ms=%d&end_ms=%d", start.Add(-time.Minute).UnixMilli(), start.Add(time.Minute).UnixMilli())
	w = do(t, h, http.MethodGet, "/chunks/playlist.m3u8?"+q, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), "#EXTM3U")
	require.Contains(t, w.Body.String(), "/static/recordings/2024-01-01/chunk_100000.mp4")
	require.Contains(t, w.Body.String(), "#EXT-X-ENDLIST")

	w = do(t, h, http.MethodGet, fmt.Sprintf("/chunks/%d", ch.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	in := job.EnqueueInput{StartMs: start.UnixMilli(), EndMs: start.Add(15 * time.Second).UnixMilli()}
	w = do(t, h, http.MethodPost, "/jobs", in)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out job.EnqueueOutput
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.True(t, out.Created)
	require.Equal(t, job.StatusPending, out.Job.Status)

	w = do(t, h, http.MethodPost, "/jobs", in)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.False(t, out.Created)

	require.False(t, out.Retryable)

	// 只有失败任务可以重试
	w = do(t, h, http.MethodPost, fmt.Sprintf("/jobs/%d/retry", out.Job.ID), nil)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Contains(t, w.Body.String(), "ErrConflict")

	// 窗口没有分片覆盖
	w = do(t, h, http.MethodPost, "/jobs", job.EnqueueInput{StartMs: start.Add(time.Hour).UnixMilli(), EndMs: start.Add(2 * time.Hour).UnixMilli()})
	require.Equal(t, http.StatusConflict, w.Code)
	require.Contains(t, w.Body.String(), "ErrNotCovered")

	w = do(t, h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"pending":1`)
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRecordChunkOutsideStorage(t *testing.T) {
	h := newTestHandler(t)
	outside := filepath.Join(t.TempDir(), "evil.mp4")
	require.NoError(t, os.WriteFile(outside, []byte("video"), 0o644))

	w := do(t, h, http.MethodPost, "/chunks", chunk.RecordChunkInput{Path: outside, StartMs: time.Now().UnixMilli(), FrameCount: 15})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "ErrStorage")
	w = do(t, h, http.MethodPost, "/chunks", chunk.RecordChunkInput{Path: "../../etc/passwd", StartMs: time.Now().UnixMilli(), FrameCount: 15})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBadRequests(t *testing.T) {
	h := newTestHandler(t)

	require.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/cards?date=2024/01/01", nil).Code)
	require.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/chunks/playlist.m3u8", nil).Code)
	require.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/jobs/abc", nil).Code)
	w := do(t, h, http.MethodGet, "/jobs/42", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "ErrNotFound")
	require.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/timelapses/yesterday", nil).Code)
	w = do(t, h, http.MethodPost, "/timelapses/2024-01-01", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "ErrNotFound")

	w = do(t, h, http.MethodPost, "/retention/sweep", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}
