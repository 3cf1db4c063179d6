package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gowvp/dayflow/pkg/gemini"
)

// VideoClient 云端视频理解接口
type VideoClient interface {
	UploadFile(ctx context.Context, apiKey, path string) (*gemini.File, error)
	WaitActive(ctx context.Context, apiKey string, file *gemini.File) error
	GenerateContent(ctx context.Context, apiKey string, file *gemini.File, prompt string) (string, error)
}

var _ VideoClient = gemini.Engine{}

// CloudAnalyzer 上传整段视频，一次生成调用得到结构化结果
type CloudAnalyzer struct {
	cli   VideoClient
	creds CredentialStore
	log   *slog.Logger
}

func NewCloudAnalyzer(cli VideoClient, creds CredentialStore) *CloudAnalyzer {
	return &CloudAnalyzer{
		cli:   cli,
		creds: creds,
		log:   slog.With("component", "cloud_analyzer"),
	}
}

// AnalyzeVideo implements Provider
func (a *CloudAnalyzer) AnalyzeVideo(ctx context.Context, path string, start, end time.Time) (*Result, error) {
	var apiKey string
	if a.creds != nil {
		apiKey, _ = a.creds.APIKey(CredentialGemini)
	}
	if apiKey == "" {
		return nil, ErrConfiguration.Withf("api key for %s is not configured", CredentialGemini)
	}

	file, err := a.cli.UploadFile(ctx, apiKey, path)
	if err != nil {
		return nil, providerErr("upload", err)
	}
	if err := a.cli.WaitActive(ctx, apiKey, file); err != nil {
		return nil, providerErr("wait file", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, ErrProvider.Withf("canceled before generate: %s", err.Error())
	}
	text, err := a.cli.GenerateContent(ctx, apiKey, file, buildCloudPrompt(start, end))
	if err != nil {
		return nil, providerErr("generate", err)
	}

	out, err := parseCloudResult(text)
	if err != nil {
		a.log.WarnContext(ctx, "invalid cloud response", "path", path, "err", err, "text", truncate(text, 256))
		return nil, err
	}
	out.StartTime, out.EndTime = start, end
	a.log.InfoContext(ctx, "cloud analysis done", "path", path, "category", out.Category, "distraction", out.IsDistraction)
	return out, nil
}

// providerErr 响应体结构错误归为 ErrValidation，其余为 ErrProvider
func providerErr(step string, err error) error {
	if errors.Is(err, gemini.ErrInvalidResponse) {
		return ErrValidation.Withf("%s: %s", step, err.Error())
	}
	return ErrProvider.Withf("%s: %s", step, err.Error())
}

type cloudPayload struct {
	Title         *string `json:"title"`
	Summary       *string `json:"summary"`
	Category      *string `json:"category"`
	IsDistraction *bool   `json:"isDistraction"`
}

// parseCloudResult 解析模型返回的 JSON，拒绝未知字段与缺失字段
func parseCloudResult(text string) (*Result, error) {
	body := stripCodeFence(text)
	if body == "" {
		return nil, ErrValidation.Withf("empty response text")
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()
	var p cloudPayload
	if err := dec.Decode(&p); err != nil {
		return nil, ErrValidation.Withf("decode result err[%s]", err.Error())
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, ErrValidation.Withf("trailing data after result")
	}

	switch {
	case p.Title == nil:
		return nil, ErrValidation.Withf("missing field title")
	case p.Summary == nil:
		return nil, ErrValidation.Withf("missing field summary")
	case p.Category == nil:
		return nil, ErrValidation.Withf("missing field category")
	case p.IsDistraction == nil:
		return nil, ErrValidation.Withf("missing field isDistraction")
	}
	category, ok := ParseCategory(*p.Category)
	if !ok {
		return nil, ErrValidation.Withf("unknown category %q", *p.Category)
	}
	return &Result{
		Title:         strings.TrimSpace(*p.Title),
		Summary:       strings.TrimSpace(*p.Summary),
		Category:      category,
		IsDistraction: *p.IsDistraction,
	}, nil
}

// stripCodeFence 去掉 ``` 或 ```json 包裹
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.Contains(s[:i], "{") {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
