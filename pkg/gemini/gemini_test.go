package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeVideo(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "chunk_120000.mp4")
	require.NoError(t, os.WriteFile(p, []byte("fake-video"), 0o644))
	return p
}

func TestUploadAndGenerate(t *testing.T) {
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+apiUpload, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "k", r.Header.Get("x-goog-api-key"))
		_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		mr := multipart.NewReader(r.Body, params["boundary"])
		_, err = mr.NextPart()
		require.NoError(t, err)
		p, err := mr.NextPart()
		require.NoError(t, err)
		b, _ := io.ReadAll(p)
		require.Equal(t, "fake-video", string(b))
		require.Equal(t, "video/mp4", p.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"file":{"name":"files/abc","uri":"https://x/files/abc","state":"PROCESSING"}}`))
	})
	mux.HandleFunc("GET /v1beta/files/abc", func(w http.ResponseWriter, _ *http.Request) {
		if polls.Add(1) < 2 {
			_, _ = w.Write([]byte(`{"state":"PROCESSING"}`))
			return
		}
		_, _ = w.Write([]byte(`{"state":"ACTIVE"}`))
	})
	mux.HandleFunc("POST /v1beta/models/gemini-test:generateContent", func(w http.ResponseWriter, r *http.Request) {
		var in generateInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		require.Equal(t, "https://x/files/abc", in.Contents[0].Parts[0].FileData.FileURI)
		require.Equal(t, "summarize", in.Contents[0].Parts[1].Text)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"title\":\"t\"}"}]}}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	e := NewEngine().SetConfig(Config{BaseURL: srv.URL, Model: "gemini-test", PollInterval: time.Millisecond, PollAttempts: 5})
	ctx := context.Background()

	f, err := e.UploadFile(ctx, "k", writeVideo(t))
	require.NoError(t, err)
	require.Equal(t, "video/mp4", f.MimeType)
	require.NoError(t, e.WaitActive(ctx, "k", f))
	require.EqualValues(t, 2, polls.Load())

	text, err := e.GenerateContent(ctx, "k", f, "summarize")
	require.NoError(t, err)
	require.Equal(t, `{"title":"t"}`, text)
}

func TestErrors(t *testing.T) {
	status, body := http.StatusOK, `{"file":{}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()
	e := NewEngine().SetConfig(Config{BaseURL: srv.URL, Model: "m"})
	ctx := context.Background()
	path := writeVideo(t)

	_, err := e.UploadFile(ctx, "k", path)
	require.True(t, errors.Is(err, ErrInvalidResponse))

	body = `{"candidates":[]}`
	_, err = e.GenerateContent(ctx, "k", &File{URI: "u"}, "p")
	require.True(t, errors.Is(err, ErrInvalidResponse))

	status, body = http.StatusForbidden, `{"error":{"message":"bad key"}}`
	_, err = e.GenerateContent(ctx, "k", &File{URI: "u"}, "p")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusForbidden, se.Code)
}

func TestMimeType(t *testing.T) {
	require.Equal(t, "video/quicktime", MimeType("a.MOV"))
	require.Equal(t, "video/mp4", MimeType("a.mp4"))
}
