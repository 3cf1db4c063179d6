package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/wire"
	"github.com/gowvp/dayflow/internal/conf"
	"github.com/gowvp/dayflow/internal/core/analysis"
	"github.com/gowvp/dayflow/internal/core/card"
	"github.com/gowvp/dayflow/internal/core/card/store/carddb"
	"github.com/gowvp/dayflow/internal/core/chunk"
	"github.com/gowvp/dayflow/internal/core/chunk/store/chunkdb"
	"github.com/gowvp/dayflow/internal/core/job"
	"github.com/gowvp/dayflow/internal/core/job/store/jobdb"
	"github.com/gowvp/dayflow/pkg/ffwork"
	"gorm.io/gorm"
)

var ProviderSet = wire.NewSet(
	wire.Struct(new(Usecase), "*"),
	NewHTTPHandler,
	NewFFWork,
	NewChunkStore, NewChunkCore, NewSweeper, NewChunkAPI,
	NewCredentials, NewAnalysisProvider,
	NewCardStore, NewCardCore, NewCardAPI,
	NewJobStore, NewScheduler, NewJobAPI,
	NewRetentionAPI,
)

type Usecase struct {
	Conf         *conf.Bootstrap
	DB           *gorm.DB
	ChunkAPI     ChunkAPI
	JobAPI       JobAPI
	CardAPI      CardAPI
	RetentionAPI RetentionAPI
}

// NewHTTPHandler 生成Gin框架路由内容
func NewHTTPHandler(uc *Usecase) http.Handler {
	cfg := uc.Conf.Server
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	g := gin.New()
	setupRouter(g, uc)
	return g
}

// NewFFWork ffmpeg 子进程封装，截帧宽度 1280 足够模型识别
func NewFFWork() *ffwork.FFWork {
	return ffwork.New(ffwork.Config{Width: 1280})
}

func NewChunkStore(db *gorm.DB) chunk.Storer {
	return chunkdb.NewDB(db).AutoMigrate(true)
}

func NewChunkCore(store chunk.Storer, cfg *conf.Bootstrap, ff *ffwork.FFWork) chunk.Core {
	return chunk.NewCore(store,
		chunk.WithConfig(&cfg.Server.Storage),
		chunk.WithConcatenator(ff),
	)
}

func NewSweeper(core chunk.Core) *chunk.Sweeper {
	return chunk.NewSweeper(core)
}

func NewCredentials(cfg *conf.Bootstrap) analysis.CredentialStore {
	return analysis.NewCredentials(cfg)
}

func NewAnalysisProvider(cfg *conf.Bootstrap, ff *ffwork.FFWork, creds analysis.CredentialStore) (analysis.Provider, error) {
	return analysis.NewProvider(cfg, ff, creds)
}

func NewCardStore(db *gorm.DB) card.Storer {
	return carddb.NewDB(db).AutoMigrate(true)
}

func NewCardCore(store card.Storer) card.Core {
	return card.NewCore(store)
}

func NewJobStore(db *gorm.DB) job.Storer {
	return jobdb.NewDB(db).AutoMigrate(true)
}

func NewScheduler(store job.Storer, chunks chunk.Core, provider analysis.Provider, cards card.Core, cfg *conf.Bootstrap) *job.Scheduler {
	return job.NewScheduler(store, chunks, provider, cards,
		job.WithConfig(&cfg.Server.Scheduler),
	)
}

var startRuntime = time.Now()
