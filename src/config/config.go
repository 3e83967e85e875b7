package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"market-pipeline/src/analysis"
	"market-pipeline/src/helpers"
	"market-pipeline/src/models"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, &helpers.ConfigurationError{PipelineError: helpers.PipelineError{
			Message: fmt.Sprintf("failed to read config file '%s'", configPath), Cause: err,
		}}
	}

	// 2. Unmarshal over the defaults
	modelConfig := Default()
	if err := yaml.Unmarshal(data, modelConfig); err != nil {
		return nil, &helpers.ConfigurationError{PipelineError: helpers.PipelineError{
			Message: "failed to parse config from YAML", Cause: err,
		}}
	}

	config := &Config{MConfig: modelConfig}

	// 3. Environment wins over the file
	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	// 4. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, &helpers.ConfigurationError{PipelineError: helpers.PipelineError{
			Message: "config validation failed", Cause: err,
		}}
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// Default returns the configuration used for every key the file leaves out.
func Default() *models.MConfig {
	return &models.MConfig{
		Name:     "market-pipeline",
		Host:     "0.0.0.0",
		Port:     8080,
		LogLevel: "INFO",
		GrpcHost: "0.0.0.0",
		GrpcPort: 50051,
		Storage:  models.MStorageConfig{DBType: "none"},
		Network: models.MNetworkConfig{
			RequestTimeout: 10,
			MaxRetries:     3,
			BackoffMillis:  500,
			UserAgent:      "market-pipeline/1.0",
		},
		Exchange: models.MExchangeConfig{
			Name:          "binance",
			RestURL:       "https://api.binance.com",
			StreamURL:     "wss://stream.binance.com:9443",
			Symbols:       []string{"BTC/USDT"},
			DefaultSymbol: "BTC/USDT",
		},
		Pipeline: models.MPipelineConfig{
			RefreshIntervalSeconds: 1,
			DailyTimeframe:         "1h",
			DailyLimit:             720,
			TradesLookbackSeconds:  60,
			ResampleWidthMillis:    1000,
			MAWindows:              []int{50, 200},
			RSIPeriod:              14,
			MACD:                   models.MMACDConfig{Fast: 12, Slow: 26, Signal: 9},
			OrderBookLimit:         100,
			DepthMode:              analysis.DepthPassthrough,
			TickWindowSize:         20000,
		},
		Heatmap: models.MHeatmapConfig{
			Timeframe:          "30m",
			PageLimit:          1000,
			PageTimeoutSeconds: 10,
			PrewarmCron:        "0 */30 * * * *",
			Periods:            []string{"1week", "1month", "3months", "6months"},
		},
	}
}

// -----------------------------------------------------------------------------

// ApplyEnv overrides selected keys from the environment. lookup is os.LookupEnv
// outside of tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str("PIPELINE_HOST", &c.Host)
	str("PIPELINE_LOG_LEVEL", &c.LogLevel)
	str("PIPELINE_DB_TYPE", &c.Storage.DBType)
	str("BINANCE_REST_URL", &c.Exchange.RestURL)
	str("BINANCE_STREAM_URL", &c.Exchange.StreamURL)
	c.LogLevel = strings.ToUpper(c.LogLevel)

	if v, ok := lookup("PIPELINE_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return &helpers.ConfigurationError{PipelineError: helpers.PipelineError{
				Message: fmt.Sprintf("PIPELINE_PORT %q is not a number", v), Cause: err,
			}}
		}
		c.Port = port
	}

	// PIPELINE_SYMBOL replaces the refreshed set with a comma separated list
	if v, ok := lookup("PIPELINE_SYMBOL"); ok && strings.TrimSpace(v) != "" {
		var symbols []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				symbols = append(symbols, strings.ToUpper(s))
			}
		}
		if len(symbols) > 0 {
			c.Exchange.Symbols = symbols
			c.Exchange.DefaultSymbol = symbols[0]
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

// Validate checks struct tags, then the rules that span several fields.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c.MConfig); err != nil {
		return err
	}

	p := c.Pipeline
	if p.MACD.Fast >= p.MACD.Slow {
		return fmt.Errorf("macd fast span (%d) must be shorter than slow span (%d)", p.MACD.Fast, p.MACD.Slow)
	}
	if _, err := models.TimeframeDuration(p.DailyTimeframe); err != nil {
		return err
	}
	if _, err := analysis.NewHeatmapAggregator(c.Heatmap.Timeframe); err != nil {
		return err
	}
	for _, label := range c.Heatmap.Periods {
		if _, err := models.ParsePeriod(label); err != nil {
			return err
		}
	}

	found := false
	for _, s := range c.Exchange.Symbols {
		if s == c.Exchange.DefaultSymbol {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("default symbol %q is not in the symbol list", c.Exchange.DefaultSymbol)
	}

	if c.GrpcPort != 0 && c.GrpcPort == c.Port && c.GrpcHost == c.Host {
		return fmt.Errorf("grpc and http servers cannot share %s:%d", c.Host, c.Port)
	}
	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
