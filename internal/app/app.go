// Package app 组装依赖并管理 http 服务与后台协程的生命周期
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gowvp/dayflow/internal/conf"
	"github.com/gowvp/dayflow/internal/core/chunk"
	"github.com/gowvp/dayflow/internal/core/job"
	"golang.org/x/sync/errgroup"
)

// App 进程内的全部长期运行组件
type App struct {
	Conf      *conf.Bootstrap
	Handler   http.Handler
	Scheduler *job.Scheduler
	Sweeper   *chunk.Sweeper
}

// Run 启动服务，ctx 结束后优雅退出
func Run(ctx context.Context, bc *conf.Bootstrap) error {
	app, cleanup, err := wireApp(bc)
	if err != nil {
		return fmt.Errorf("wire app: %w", err)
	}
	defer cleanup()
	return app.Serve(ctx)
}

// Serve http 服务、分析调度与保留清理三个协程，任一失败则整体退出
func (a *App) Serve(ctx context.Context) error {
	cfg := a.Conf.Server.HTTP
	timeout := cfg.Timeout.Duration()
	if timeout <= 0 {
		timeout = time.Minute
	}
	svr := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(cfg.Port)),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
		IdleTimeout:       2 * timeout,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("http server listening", "addr", svr.Addr)
		if err := svr.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return svr.Shutdown(shutdownCtx)
	})
	if a.Conf.Server.Scheduler.Disabled {
		slog.Info("analysis scheduler disabled")
	} else {
		g.Go(func() error {
			a.Scheduler.Run(ctx)
			return nil
		})
	}
	g.Go(func() error {
		a.Sweeper.Start(ctx)
		return nil
	})
	return g.Wait()
}
