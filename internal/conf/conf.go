package conf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// 环境变量中的凭证优先于配置文件
const (
	EnvGeminiAPIKey   = "DAYFLOW_GEMINI_API_KEY"
	envGeminiFallback = "GEMINI_API_KEY"
	EnvDSN            = "DAYFLOW_DSN"
)

// DefaultConfig 默认配置
func DefaultConfig() Bootstrap {
	return Bootstrap{
		Server: Server{
			HTTP: ServerHTTP{
				Port:    15123,
				Timeout: Duration(60 * time.Second),
			},
			Storage: ServerStorage{
				Dir:           "./data",
				ChunkExt:      "mp4",
				RetainDays:    3,
				SweepInterval: Duration(time.Hour),
			},
			Scheduler: ServerScheduler{
				PollInterval: Duration(time.Minute),
				WindowSize:   Duration(15 * time.Minute),
			},
		},
		Data: Data{
			Database: Database{
				Dsn:             "configs/data.db",
				MaxIdleConns:    10,
				MaxOpenConns:    50,
				ConnMaxLifetime: Duration(6 * time.Hour),
				SlowThreshold:   Duration(200 * time.Millisecond),
			},
		},
		Log: Log{
			Dir:          "./logs",
			Level:        "info",
			MaxAge:       Duration(7 * 24 * time.Hour),
			RotationTime: Duration(24 * time.Hour),
		},
		Analysis: Analysis{
			Provider: ProviderLocal,
			Local: AnalysisLocal{
				URL:     "http://127.0.0.1:11434",
				Model:   "qwen2.5vl:3b",
				Timeout: Duration(2 * time.Minute),
			},
			Cloud: AnalysisCloud{
				BaseURL: "https://generativelanguage.googleapis.com",
				Model:   "gemini-2.5-flash",
				Timeout: Duration(5 * time.Minute),
			},
		},
	}
}

// SetupConfig 读取配置文件，文件不存在时写入默认配置
func SetupConfig(path string) (Bootstrap, error) {
	bc := DefaultConfig()
	bc.ConfigPath = path
	bc.ConfigDir = filepath.Dir(path)

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := WriteConfig(&bc, path); err != nil {
			return bc, err
		}
	case err != nil:
		return bc, fmt.Errorf("read config: %w", err)
	default:
		if err := toml.Unmarshal(b, &bc); err != nil {
			return bc, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&bc)
	if err := bc.Validate(); err != nil {
		return bc, err
	}
	return bc, nil
}

// WriteConfig 将配置写回文件
func WriteConfig(bc *Bootstrap, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := toml.Marshal(bc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// Validate 检查配置的合法性
func (bc *Bootstrap) Validate() error {
	switch bc.Analysis.Provider {
	case ProviderLocal, ProviderCloud:
	default:
		return fmt.Errorf("analysis.provider must be %q or %q, got %q", ProviderLocal, ProviderCloud, bc.Analysis.Provider)
	}
	if bc.Server.Storage.Dir == "" {
		return fmt.Errorf("server.storage.dir is required")
	}
	bc.Server.Storage.ChunkExt = strings.TrimPrefix(bc.Server.Storage.ChunkExt, ".")
	if bc.Server.Storage.ChunkExt == "" {
		bc.Server.Storage.ChunkExt = "mp4"
	}
	return nil
}

func applyEnvOverrides(bc *Bootstrap) {
	if v := os.Getenv(envGeminiFallback); v != "" {
		bc.Analysis.Cloud.APIKey = v
	}
	if v := os.Getenv(EnvGeminiAPIKey); v != "" {
		bc.Analysis.Cloud.APIKey = v
	}
	if v := os.Getenv(EnvDSN); v != "" {
		bc.Data.Database.Dsn = v
	}
}
