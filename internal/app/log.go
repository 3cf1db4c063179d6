package app

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gowvp/dayflow/internal/conf"
	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
)

// SetupLog 初始化默认 logger，日志同时写入控制台与按天切割的文件
func SetupLog(bc *conf.Bootstrap) (*slog.Logger, func(), error) {
	cfg := bc.Log
	var w io.Writer = os.Stdout
	cleanup := func() {}

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, nil, err
		}
		opts := []rotatelogs.Option{
			rotatelogs.WithLinkName(filepath.Join(cfg.Dir, "dayflow.log")),
		}
		if d := cfg.MaxAge.Duration(); d > 0 {
			opts = append(opts, rotatelogs.WithMaxAge(d))
		}
		if d := cfg.RotationTime.Duration(); d > 0 {
			opts = append(opts, rotatelogs.WithRotationTime(d))
		}
		r, err := rotatelogs.New(filepath.Join(cfg.Dir, "dayflow_%Y%m%d.log"), opts...)
		if err != nil {
			return nil, nil, err
		}
		w = io.MultiWriter(os.Stdout, r)
		cleanup = func() { _ = r.Close() }
	}

	hopts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level, bc.Debug),
		AddSource: bc.Debug,
	}
	var h slog.Handler = slog.NewTextHandler(w, hopts)
	if cfg.JSON {
		h = slog.NewJSONHandler(w, hopts)
	}
	log := slog.New(h).With("version", bc.BuildVersion)
	slog.SetDefault(log)
	return log, cleanup, nil
}

func parseLevel(s string, debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
