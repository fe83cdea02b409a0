package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"btc-event-study/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Study     StudyConfig     `mapstructure:"study"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
}

// ProvidersConfig lists the data source adapters.
type ProvidersConfig struct {
	BlockchainCom HTTPProviderConfig `mapstructure:"blockchain_com"`
	Blockchair    HTTPProviderConfig `mapstructure:"blockchair"`
	MempoolSpace  HTTPProviderConfig `mapstructure:"mempool_space"`
	Node          NodeProviderConfig `mapstructure:"node"`
}

// HTTPProviderConfig covers a public HTTP API source.
type HTTPProviderConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BaseURL        string        `mapstructure:"base_url"`
	Timespan       string        `mapstructure:"timespan"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	Rank           int           `mapstructure:"rank"`
}

// NodeProviderConfig covers a Bitcoin Core node RPC source.
type NodeProviderConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	RPCURL         string        `mapstructure:"rpc_url"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Rank           int           `mapstructure:"rank"`
}

// EventConfig names one historical event and its anchor date.
type EventConfig struct {
	Name   string `mapstructure:"name"`
	Anchor string `mapstructure:"anchor"`
}

// WindowShapeConfig defines one pre/crisis window shape.
type WindowShapeConfig struct {
	Label    string `mapstructure:"label"`
	PreDays  int    `mapstructure:"pre_days"`
	PostDays int    `mapstructure:"post_days"`
}

// StudyConfig declares the event catalog and comparison parameters.
type StudyConfig struct {
	Events            []EventConfig       `mapstructure:"events"`
	Windows           []WindowShapeConfig `mapstructure:"windows"`
	Metrics           []string            `mapstructure:"metrics"`
	StartDate         string              `mapstructure:"start_date"`
	EndDate           string              `mapstructure:"end_date"`
	RollingWindowDays int                 `mapstructure:"rolling_window_days"`
	MergeTolerance    float64             `mapstructure:"merge_tolerance"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	OutputDir     string `mapstructure:"output_dir"`
	MaxDataPoints int    `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BTCEVENTSTUDY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "btceventstudy")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.advisory_lock_key", int64(0x62746373))

	v.SetDefault("providers.blockchain_com.enabled", true)
	v.SetDefault("providers.blockchain_com.base_url", "https://api.blockchain.info")
	v.SetDefault("providers.blockchain_com.timespan", "all")
	v.SetDefault("providers.blockchain_com.request_timeout", "30s")
	v.SetDefault("providers.blockchain_com.user_agent", "btceventstudy/1.0")
	v.SetDefault("providers.blockchain_com.rank", 10)

	v.SetDefault("providers.blockchair.enabled", true)
	v.SetDefault("providers.blockchair.base_url", "https://api.blockchair.com/bitcoin")
	v.SetDefault("providers.blockchair.request_timeout", "30s")
	v.SetDefault("providers.blockchair.user_agent", "btceventstudy/1.0")
	v.SetDefault("providers.blockchair.rank", 20)

	v.SetDefault("providers.mempool_space.enabled", false)
	v.SetDefault("providers.mempool_space.base_url", "https://mempool.space/api")
	v.SetDefault("providers.mempool_space.timespan", "all")
	v.SetDefault("providers.mempool_space.request_timeout", "30s")
	v.SetDefault("providers.mempool_space.user_agent", "btceventstudy/1.0")
	v.SetDefault("providers.mempool_space.rank", 15)

	// a full node outranks every third-party aggregator
	v.SetDefault("providers.node.enabled", false)
	v.SetDefault("providers.node.request_timeout", "30s")
	v.SetDefault("providers.node.rank", 100)

	v.SetDefault("study.events", []map[string]any{
		{"name": "cyprus_2013", "anchor": "2013-03-16"},
		{"name": "venezuela_2017", "anchor": "2017-12-01"},
		{"name": "covid_cpi_peak_2022", "anchor": "2022-06-01"},
	})
	v.SetDefault("study.windows", []map[string]any{
		{"label": "symmetric_90", "pre_days": 90, "post_days": 90},
		{"label": "long_baseline_30", "pre_days": 180, "post_days": 30},
	})
	v.SetDefault("study.start_date", "2012-01-01")
	v.SetDefault("study.end_date", "2023-01-01")
	v.SetDefault("study.rolling_window_days", 0)
	v.SetDefault("study.merge_tolerance", 0.05)

	v.SetDefault("export.output_dir", "out")
	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if len(c.Study.Events) == 0 {
		return fmt.Errorf("study.events must list at least one event")
	}
	for _, e := range c.Study.Events {
		if e.Name == "" || e.Anchor == "" {
			return fmt.Errorf("study.events entries require name and anchor")
		}
	}
	if len(c.Study.Windows) == 0 {
		return fmt.Errorf("study.windows must list at least one window shape")
	}
	for _, w := range c.Study.Windows {
		if w.PreDays <= 0 || w.PostDays <= 0 {
			return fmt.Errorf("study.windows %q: pre_days and post_days must be positive", w.Label)
		}
	}
	if c.Study.MergeTolerance < 0 {
		return fmt.Errorf("study.merge_tolerance cannot be negative")
	}
	if c.Study.RollingWindowDays < 0 {
		return fmt.Errorf("study.rolling_window_days cannot be negative")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Providers.Node.Enabled && c.Providers.Node.RPCURL == "" {
		return fmt.Errorf("providers.node.rpc_url is required when the node source is enabled")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
