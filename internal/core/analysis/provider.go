// Package analysis 将一段录屏转换为结构化的时间轴描述
// 后端由配置选择：本地逐帧多次调用，或云端单次视频调用
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/gowvp/dayflow/internal/conf"
	"github.com/gowvp/dayflow/pkg/ffwork"
	"github.com/gowvp/dayflow/pkg/gemini"
	"github.com/gowvp/dayflow/pkg/ollama"
	"github.com/ixugo/goddd/pkg/reason"
)

var (
	// ErrProvider AI 后端网络异常、非 2xx 响应或调用被取消
	ErrProvider = reason.NewError("ErrProvider", "分析服务异常")
	// ErrConfiguration 缺少凭证等配置问题，在发起任何网络请求之前返回
	ErrConfiguration = reason.NewError("ErrConfiguration", "分析配置错误")
	// ErrValidation AI 后端返回的内容缺失或无法解析
	ErrValidation = reason.NewError("ErrValidation", "分析结果格式错误")
)

// Provider 分析后端
// 任一步骤失败都返回错误，不返回部分结果
type Provider interface {
	AnalyzeVideo(ctx context.Context, path string, start, end time.Time) (*Result, error)
}

var (
	_ Provider = (*LocalAnalyzer)(nil)
	_ Provider = (*CloudAnalyzer)(nil)
)

// CredentialStore 凭证来源
type CredentialStore interface {
	APIKey(provider string) (string, bool)
}

// CredentialGemini 云端后端在凭证存储中的名字
const CredentialGemini = "gemini"

// StaticCredentials 以内存 map 提供凭证
type StaticCredentials map[string]string

func (s StaticCredentials) APIKey(provider string) (string, bool) {
	v, ok := s[provider]
	return v, ok && v != ""
}

// NewCredentials 从配置读取凭证，环境变量已在加载配置时合并
func NewCredentials(bc *conf.Bootstrap) StaticCredentials {
	return StaticCredentials{CredentialGemini: bc.Analysis.Cloud.APIKey}
}

// NewProvider 按配置选择后端
func NewProvider(bc *conf.Bootstrap, ff *ffwork.FFWork, creds CredentialStore) (Provider, error) {
	switch bc.Analysis.Provider {
	case conf.ProviderLocal:
		cfg := bc.Analysis.Local
		gen := ollama.NewEngine().SetConfig(ollama.Config{
			URL:     cfg.URL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout.Duration(),
		})
		return NewLocalAnalyzer(gen, ff), nil
	case conf.ProviderCloud:
		cfg := bc.Analysis.Cloud
		cli := gemini.NewEngine().SetConfig(gemini.Config{
			BaseURL:      cfg.BaseURL,
			Model:        cfg.Model,
			Timeout:      cfg.Timeout.Duration(),
			PollInterval: 2 * time.Second,
			PollAttempts: 60,
		})
		return NewCloudAnalyzer(cli, creds), nil
	default:
		return nil, fmt.Errorf("unknown analysis provider %q", bc.Analysis.Provider)
	}
}
