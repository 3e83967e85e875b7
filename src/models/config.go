package models

// MConfig Structure
type MConfig struct {
	Name     string          `yaml:"name" validate:"required"`
	Host     string          `yaml:"host" validate:"required"`
	Port     int             `yaml:"port" validate:"gt=1024,lte=65535"`
	LogLevel string          `yaml:"log_level" validate:"oneof=DEBUG INFO WARNING ERROR"`
	GrpcHost string          `yaml:"grpc_host"`
	GrpcPort int             `yaml:"grpc_port" validate:"omitempty,gt=1024,lte=65535"`
	Storage  MStorageConfig  `yaml:"storage"`
	Network  MNetworkConfig  `yaml:"network"`
	Exchange MExchangeConfig `yaml:"exchange"`
	Pipeline MPipelineConfig `yaml:"pipeline"`
	Heatmap  MHeatmapConfig  `yaml:"heatmap"`
}

// LogLevelName lets the logger read the level without importing config.
func (c *MConfig) LogLevelName() string {
	return c.LogLevel
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type" validate:"oneof=none sqlite postgres"`
	DBPath             string `yaml:"db_path" validate:"required_if=DBType sqlite"`
	DBConnectionString string `yaml:"db_connection_string" validate:"required_if=DBType postgres"`
}

type MNetworkConfig struct {
	Enabled        bool     `yaml:"enabled"` // rotate through Proxies
	Proxies        []string `yaml:"proxies"`
	RequestTimeout int      `yaml:"timeout" validate:"gt=0"`
	MaxRetries     int      `yaml:"retries" validate:"gte=0"`
	BackoffMillis  int      `yaml:"backoff_ms" validate:"gte=0"`
	UserAgent      string   `yaml:"user_agent"`
}

type MExchangeConfig struct {
	Name          string   `yaml:"name" validate:"required,eq=binance"`
	RestURL       string   `yaml:"rest_url" validate:"required,url"`
	StreamURL     string   `yaml:"stream_url" validate:"required,url"`
	StreamEnabled bool     `yaml:"stream_enabled"`
	Symbols       []string `yaml:"symbols" validate:"required,min=1,dive,required"`
	DefaultSymbol string   `yaml:"default_symbol" validate:"required"`
}

type MPipelineConfig struct {
	RefreshIntervalSeconds int         `yaml:"refresh_interval_seconds" validate:"gt=0"`
	DailyTimeframe         string      `yaml:"daily_timeframe" validate:"required"`
	DailyLimit             int         `yaml:"daily_limit" validate:"gt=0,lte=1000"`
	TradesLookbackSeconds  int         `yaml:"trades_lookback_seconds" validate:"gt=0"`
	ResampleWidthMillis    int64       `yaml:"resample_width_ms" validate:"gt=0"`
	MAWindows              []int       `yaml:"ma_windows" validate:"dive,gt=0"`
	RSIPeriod              int         `yaml:"rsi_period" validate:"gt=0"`
	MACD                   MMACDConfig `yaml:"macd"`
	OrderBookLimit         int         `yaml:"order_book_limit" validate:"gt=0,lte=5000"`
	DepthMode              string      `yaml:"depth_mode" validate:"oneof=passthrough cumulative"`
	TickWindowSize         int         `yaml:"tick_window_size" validate:"gt=0"`
}

type MMACDConfig struct {
	Fast   int `yaml:"fast" validate:"gt=0"`
	Slow   int `yaml:"slow" validate:"gt=0"`
	Signal int `yaml:"signal" validate:"gt=0"`
}

type MHeatmapConfig struct {
	Timeframe          string   `yaml:"timeframe" validate:"required"`
	PageLimit          int      `yaml:"page_limit" validate:"gt=0,lte=1000"`
	PageTimeoutSeconds int      `yaml:"page_timeout_seconds" validate:"gt=0"`
	MaxPages           int      `yaml:"max_pages" validate:"gte=0"` // 0 = unbounded
	PrewarmCron        string   `yaml:"prewarm_cron"`
	Periods            []string `yaml:"periods"`
}
