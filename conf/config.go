package conf

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// 配置加载（API密钥等）

type WebhookConfig struct {
	Secret       string        `yaml:"secret"`        // 为空时不校验 X-Signature
	Async        bool          `yaml:"async"`         // true: 立即返回 accepted，后台执行
	AsyncTimeout time.Duration `yaml:"async_timeout"` // 后台执行的超时时间
	DedupeWindow time.Duration `yaml:"dedupe_window"` // 相同 body 的去重窗口，0 表示关闭
}

type ExchangeConfig struct {
	Driver               string        `yaml:"driver"` // bybit / okx / paper
	Testnet              bool          `yaml:"testnet"`
	SettleCoin           string        `yaml:"settle_coin"`
	RecvWindow           int           `yaml:"recv_window"`
	Timeout              time.Duration `yaml:"timeout"`
	RetryCount           int           `yaml:"retry_count"`
	RateLimitPerSec      float64       `yaml:"rate_limit_per_sec"`
	ProtectiveReduceOnly bool          `yaml:"protective_reduce_only"` // 止损止盈是否只减仓
	InstrumentTTL        time.Duration `yaml:"instrument_ttl"`
}

type Bybit struct {
	ApiKey    string `yaml:"apiKey"`
	SecretKey string `yaml:"secretKey"`
}

type Okx struct {
	ApiKey     string `yaml:"apiKey"`
	SecretKey  string `yaml:"secretKey"`
	Password   string `yaml:"password"`
	Leverage   int    `yaml:"leverage"`
	MarginMode string `yaml:"margin_mode"`
}

type RiskConfig struct {
	MaxRiskPerTradePct     float64 `yaml:"max_risk_per_trade_pct"`
	DefaultRiskPerTradePct float64 `yaml:"default_risk_per_trade_pct"`
	MinNotional            float64 `yaml:"min_notional"` // 交易所未返回最小名义价值时使用
}

// SymbolRules 覆盖交易所返回的下单规则
type SymbolRules struct {
	MinQty      float64 `yaml:"min_qty"`
	QtyStep     float64 `yaml:"qty_step"`
	MinNotional float64 `yaml:"min_notional"`
	TickSize    float64 `yaml:"tick_size"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	FileName   string `yaml:"file-name"`
	TimeFormat string `yaml:"time-format"`
	MaxSize    int    `yaml:"max-size"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAge     int    `yaml:"max-age"`
	Compress   bool   `yaml:"compress"`
	LocalTime  bool   `yaml:"local-time"`
	Console    bool   `yaml:"console"`
}

type JournalConfig struct {
	Path string `yaml:"path"`
}

type Config struct {
	AppName      string `yaml:"app_name"`
	Listen       string `yaml:"listen"`
	Mode         string `yaml:"mode"`
	MaxPingCount int    `yaml:"max-ping-count"`
	EnvFile      string `yaml:"env_file"`

	Webhook  WebhookConfig          `yaml:"webhook"`
	Exchange ExchangeConfig         `yaml:"exchange"`
	Bybit    Bybit                  `yaml:"bybit"`
	Okx      Okx                    `yaml:"okx"`
	Risk     RiskConfig             `yaml:"risk"`
	Symbols  map[string]SymbolRules `yaml:"symbols"`
	Log      LogConfig              `yaml:"log"`
	Journal  JournalConfig          `yaml:"journal"`
}

var AppConfig = Default()

// Default 返回带默认值的配置，yaml 中出现的字段会覆盖
func Default() Config {
	return Config{
		AppName:      "edgerelay",
		Listen:       ":8080",
		Mode:         "release",
		MaxPingCount: 10,
		EnvFile:      "config.env",
		Webhook: WebhookConfig{
			AsyncTimeout: 30 * time.Second,
			DedupeWindow: 10 * time.Second,
		},
		Exchange: ExchangeConfig{
			Driver:          "bybit",
			SettleCoin:      "USDT",
			RecvWindow:      5000,
			Timeout:         10 * time.Second,
			RetryCount:      2,
			RateLimitPerSec: 8,
			InstrumentTTL:   time.Hour,
		},
		Okx: Okx{
			Leverage:   10,
			MarginMode: "isolated",
		},
		Risk: RiskConfig{
			MaxRiskPerTradePct:     2,
			DefaultRiskPerTradePct: 0.4,
			MinNotional:            5,
		},
		Log: LogConfig{
			Level:      "info",
			FileName:   "logs/edgerelay.log",
			MaxSize:    100,
			MaxBackups: 7,
			MaxAge:     30,
			Console:    true,
			LocalTime:  true,
		},
		Journal: JournalConfig{
			Path: "logs/executions.jsonl",
		},
	}
}

func LoadConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("Read config file error %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("Unmarshal config yaml error: %w", err)
	}
	AppConfig = cfg
	return nil
}

// ApplyEnv 加载 dotenv 文件并用环境变量覆盖配置，部署时密钥只放在环境变量里
func ApplyEnv(cfg *Config) error {
	if cfg.EnvFile != "" {
		if _, err := os.Stat(cfg.EnvFile); err == nil {
			if err := godotenv.Load(cfg.EnvFile); err != nil {
				return fmt.Errorf("load env file %s: %w", cfg.EnvFile, err)
			}
		}
	}

	setString(&cfg.Bybit.ApiKey, "BYBIT_API_KEY")
	setString(&cfg.Bybit.SecretKey, "BYBIT_SECRET_KEY")
	setString(&cfg.Okx.ApiKey, "OKX_API_KEY")
	setString(&cfg.Okx.SecretKey, "OKX_SECRET_KEY")
	setString(&cfg.Okx.Password, "OKX_PASSPHRASE")
	setString(&cfg.Exchange.Driver, "EXCHANGE_DRIVER")
	setString(&cfg.Webhook.Secret, "WEBHOOK_SECRET")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	if v, ok := os.LookupEnv("BYBIT_TESTNET"); ok {
		cfg.Exchange.Testnet = cast.ToBool(strings.ToLower(strings.TrimSpace(v)))
	}

	// 原部署方式: WEBHOOK_HOST + PORT/WEBHOOK_PORT
	host := os.Getenv("WEBHOOK_HOST")
	port := os.Getenv("PORT")
	if port == "" {
		port = os.Getenv("WEBHOOK_PORT")
	}
	if port != "" {
		if cast.ToInt(port) <= 0 {
			return fmt.Errorf("invalid port %q", port)
		}
		cfg.Listen = host + ":" + port
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func (c *Config) Validate() error {
	switch c.Exchange.Driver {
	case "bybit":
		if c.Bybit.ApiKey == "" || c.Bybit.SecretKey == "" {
			return errors.New("BYBIT_API_KEY and BYBIT_SECRET_KEY must be set")
		}
	case "okx":
		if c.Okx.ApiKey == "" || c.Okx.SecretKey == "" || c.Okx.Password == "" {
			return errors.New("OKX_API_KEY, OKX_SECRET_KEY and OKX_PASSPHRASE must be set")
		}
	case "paper":
	default:
		return fmt.Errorf("unsupported exchange driver: %s", c.Exchange.Driver)
	}
	if c.Risk.MaxRiskPerTradePct <= 0 {
		return errors.New("risk.max_risk_per_trade_pct must be positive")
	}
	if c.Risk.DefaultRiskPerTradePct <= 0 || c.Risk.DefaultRiskPerTradePct > c.Risk.MaxRiskPerTradePct {
		return errors.New("risk.default_risk_per_trade_pct must be in (0, max_risk_per_trade_pct]")
	}
	if c.Exchange.SettleCoin == "" {
		return errors.New("exchange.settle_coin is required")
	}
	return nil
}
