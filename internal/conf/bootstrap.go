package conf

import "time"

// Bootstrap 配置根节点
type Bootstrap struct {
	Server       Server   `toml:"server"`
	Data         Data     `toml:"data"`
	Log          Log      `toml:"log"`
	Analysis     Analysis `toml:"analysis"`
	Debug        bool     `toml:"-"`
	BuildVersion string   `toml:"-"`
	ConfigDir    string   `toml:"-"`
	ConfigPath   string   `toml:"-"`
}

type Server struct {
	Debug     bool            `toml:"debug"`
	HTTP      ServerHTTP      `toml:"http"`
	Storage   ServerStorage   `toml:"storage"`
	Scheduler ServerScheduler `toml:"scheduler"`
}

type ServerHTTP struct {
	Port      int      `toml:"port"`
	Timeout   Duration `toml:"timeout"`
	AllowCORS bool     `toml:"allow_cors"`
}

// ServerStorage 录像分片存储与保留策略
type ServerStorage struct {
	Dir                string   `toml:"dir"`                  // 存储根目录，其下为 recordings/ 与 timelapses/
	ChunkExt           string   `toml:"chunk_ext"`            // 分片扩展名，如 mp4
	RetainDays         int      `toml:"retain_days"`          // 保留天数，<=0 表示不按时间清理
	SweepInterval      Duration `toml:"sweep_interval"`       // 清理周期
	DiskUsageThreshold float64  `toml:"disk_usage_threshold"` // 磁盘使用率阈值(百分比)，0 表示不检查，超过后从最旧的分片开始删除
}

// ServerScheduler 分析任务调度
type ServerScheduler struct {
	Disabled     bool     `toml:"disabled"`
	PollInterval Duration `toml:"poll_interval"` // 兜底轮询周期
	WindowSize   Duration `toml:"window_size"`   // 自动入队时的窗口长度
}

type Data struct {
	Database Database `toml:"database"`
}

type Database struct {
	Dsn             string   `toml:"dsn"`
	MaxIdleConns    int32    `toml:"max_idle_conns"`
	MaxOpenConns    int32    `toml:"max_open_conns"`
	ConnMaxLifetime Duration `toml:"conn_max_lifetime"`
	SlowThreshold   Duration `toml:"slow_threshold"`
}

type Log struct {
	Dir          string   `toml:"dir"`
	Level        string   `toml:"level"`
	JSON         bool     `toml:"json"`
	MaxAge       Duration `toml:"max_age"`
	RotationTime Duration `toml:"rotation_time"`
}

const (
	ProviderLocal = "local"
	ProviderCloud = "cloud"
)

// Analysis AI 分析后端，Provider 决定启用哪一种实现
type Analysis struct {
	Provider string        `toml:"provider"`
	Local    AnalysisLocal `toml:"local"`
	Cloud    AnalysisCloud `toml:"cloud"`
}

type AnalysisLocal struct {
	URL     string   `toml:"url"`
	Model   string   `toml:"model"`
	Timeout Duration `toml:"timeout"`
}

type AnalysisCloud struct {
	BaseURL string   `toml:"base_url"`
	Model   string   `toml:"model"`
	APIKey  string   `toml:"api_key"`
	Timeout Duration `toml:"timeout"`
}

// Duration 支持 "15s"、"3h" 形式的 toml 字符串
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}
