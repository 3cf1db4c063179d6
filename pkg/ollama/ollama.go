// Package ollama 本地多模态模型的 generate 接口客户端
package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const apiGenerate = "/api/generate"

// ErrInvalidResponse 响应体不符合约定的结构
var ErrInvalidResponse = errors.New("ollama: invalid response")

type Config struct {
	URL     string
	Model   string
	Timeout time.Duration
}

type Engine struct {
	cfg Config
	cli *http.Client
}

func NewEngine() Engine {
	return Engine{
		cli: &http.Client{
			Timeout: 2 * time.Minute,
			Transport: &http.Transport{
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
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

// GenerateRequest POST /api/generate 请求体
type GenerateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images,omitempty"` // base64 编码的图片
	Stream bool     `json:"stream"`
}

// GenerateResponse 只关心 response 字段，其余字段忽略
type GenerateResponse struct {
	Response *string `json:"response"`
}

// Generate 发送一次非流式生成请求，images 为原始图片字节
func (e Engine) Generate(ctx context.Context, prompt string, images [][]byte) (string, error) {
	in := GenerateRequest{
		Model:  e.cfg.Model,
		Prompt: prompt,
		Stream: false,
	}
	for _, img := range images {
		in.Images = append(in.Images, base64.StdEncoding.EncodeToString(img))
	}
	body, err := json.Marshal(in)
	if err != nil {
		return "", err
	}

	url := strings.TrimRight(e.cfg.URL, "/") + apiGenerate
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ollama: create request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.cli.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ollama: read response failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("ollama: unexpected status code %d: %s", resp.StatusCode, truncate(raw, 512))
	}

	var out GenerateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidResponse, err.Error())
	}
	if out.Response == nil {
		return "", fmt.Errorf("%w: missing response field", ErrInvalidResponse)
	}
	return strings.TrimSpace(*out.Response), nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
