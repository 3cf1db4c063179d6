// Package gemini 云端视频理解接口客户端，负责文件上传与内容生成
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	apiUpload   = "/upload/v1beta/files"
	apiGenerate = "/v1beta/models/%s:generateContent"
	apiFile     = "/v1beta/%s"

	stateActive     = "ACTIVE"
	stateProcessing = "PROCESSING"
)

var (
	// ErrInvalidResponse 响应体不符合约定的结构
	ErrInvalidResponse = errors.New("gemini: invalid response")
	// ErrFileNotReady 上传后的文件在等待时间内未进入可用状态
	ErrFileNotReady = errors.New("gemini: file not ready")
)

// StatusError 非 2xx 响应
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gemini: unexpected status code %d: %s", e.Code, e.Body)
}

type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
	// PollInterval 文件状态轮询间隔，PollAttempts 为 0 时不轮询
	PollInterval time.Duration
	PollAttempts int
}

type Engine struct {
	cfg Config
	cli *http.Client
}

func NewEngine() Engine {
	return Engine{
		cfg: Config{PollInterval: 2 * time.Second, PollAttempts: 30},
		cli: &http.Client{
			Timeout: 5 * time.Minute,
			Transport: &http.Transport{
				MaxIdleConns:        2,
				MaxIdleConnsPerHost: 2,
			},
		},
	}
}

func (e Engine) SetConfig(cfg Config) Engine {
	e.cfg = cfg
	if cfg.Timeout > 0 {
		cli := *e.cli
		cli.Timeout = cfg.Timeout
		e.cli = &cli
	}
	return e
}

// File 上传后的远端文件
type File struct {
	Name     string `json:"name"`
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	State    string `json:"state"`
}

type uploadOutput struct {
	File *File `json:"file"`
}

// UploadFile 以 multipart 方式上传本地视频
func (e Engine) UploadFile(ctx context.Context, apiKey, path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	mimeType := MimeType(path)
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	meta, _ := json.Marshal(map[string]any{
		"file": map[string]string{"display_name": filepath.Base(path)},
	})
	h := make(textproto.MIMEHeader)
	h.Set("Content-Type", "application/json; charset=UTF-8")
	mw, err := w.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := mw.Write(meta); err != nil {
		return nil, err
	}

	h = make(textproto.MIMEHeader)
	h.Set("Content-Type", mimeType)
	fw, err := w.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url(apiUpload), &buf)
	if err != nil {
		return nil, fmt.Errorf("gemini: create request failed: %w", err)
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+w.Boundary())
	req.Header.Set("X-Goog-Upload-Protocol", "multipart")
	req.Header.Set("x-goog-api-key", apiKey)

	var out uploadOutput
	if err := e.do(req, &out); err != nil {
		return nil, err
	}
	if out.File == nil || out.File.URI == "" {
		return nil, fmt.Errorf("%w: missing file uri", ErrInvalidResponse)
	}
	if out.File.MimeType == "" {
		out.File.MimeType = mimeType
	}
	return out.File, nil
}

// WaitActive 轮询文件状态直到可用
func (e Engine) WaitActive(ctx context.Context, apiKey string, file *File) error {
	if file.State == "" || file.State == stateActive || file.Name == "" || e.cfg.PollAttempts <= 0 {
		return nil
	}
	for range e.cfg.PollAttempts {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.cfg.PollInterval):
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.url(fmt.Sprintf(apiFile, file.Name)), nil)
		if err != nil {
			return fmt.Errorf("gemini: create request failed: %w", err)
		}
		req.Header.Set("x-goog-api-key", apiKey)
		var out File
		if err := e.do(req, &out); err != nil {
			return err
		}
		switch out.State {
		case stateActive:
			file.State = stateActive
			return nil
		case stateProcessing:
			continue
		default:
			return fmt.Errorf("%w: state %s", ErrFileNotReady, out.State)
		}
	}
	return ErrFileNotReady
}

type part struct {
	Text     string    `json:"text,omitempty"`
	FileData *fileData `json:"file_data,omitempty"`
}

type fileData struct {
	MimeType string `json:"mime_type"`
	FileURI  string `json:"file_uri"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateInput struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType"`
}

type generateOutput struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text *string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// GenerateContent 引用已上传的文件发起一次生成，返回首个候选的首段文本
func (e Engine) GenerateContent(ctx context.Context, apiKey string, file *File, prompt string) (string, error) {
	in := generateInput{
		Contents: []content{{Parts: []part{
			{FileData: &fileData{MimeType: file.MimeType, FileURI: file.URI}},
			{Text: prompt},
		}}},
		GenerationConfig: generationConfig{Temperature: 0.3, ResponseMimeType: "application/json"},
	}
	body, err := json.Marshal(in)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url(fmt.Sprintf(apiGenerate, e.cfg.Model)), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("gemini: create request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", apiKey)

	var out generateOutput
	if err := e.do(req, &out); err != nil {
		return "", err
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 || out.Candidates[0].Content.Parts[0].Text == nil {
		return "", fmt.Errorf("%w: missing candidates[0].content.parts[0].text", ErrInvalidResponse)
	}
	return *out.Candidates[0].Content.Parts[0].Text, nil
}

func (e Engine) url(path string) string {
	return strings.TrimRight(e.cfg.BaseURL, "/") + path
}

func (e Engine) do(req *http.Request, out any) error {
	resp, err := e.cli.Do(req)
	if err != nil {
		return fmt.Errorf("gemini: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("gemini: read response failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(raw) > 512 {
			raw = raw[:512]
		}
		return &StatusError{Code: resp.StatusCode, Body: string(raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidResponse, err.Error())
	}
	return nil
}

// MimeType 按扩展名推断视频类型
func MimeType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	default:
		return "video/mp4"
	}
}
