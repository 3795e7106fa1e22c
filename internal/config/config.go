package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// SymbolMap is a venue's asset to instrument mapping, e.g. format
// "%s-USDT" with overrides for assets that do not follow it.
type SymbolMap struct {
	Format    string            `yaml:"format"`
	Overrides map[string]string `yaml:"overrides"`
}

// Config is the process configuration, read once at startup.
type Config struct {
	TelegramToken  string
	TelegramChatID int64

	StoreBackend string
	DBPath       string
	StateFile    string

	PriceVenue         string
	ExposureInterval   time.Duration
	AutoHedgeInterval  time.Duration
	DriftThreshold     float64
	OrderBookDepth     int
	RiskFreeRate       float64
	AssumedVol         float64
	VaRConfidence      float64
	HistoryLimit       int
	HistoryTimeframe   string
	HTTPTimeout        time.Duration
	HTTPRequestsPerSec float64

	OKXBaseURL     string
	DeribitBaseURL string
	AlpacaKeyID    string
	AlpacaSecret   string

	MetricsAddr string

	LogLevel      string
	LogFile       string
	MaxLogSizeMB  int64
	MaxLogBackups int
	// LogConsole selects human-readable console output over JSON on stdout.
	LogConsole bool

	// Symbols is keyed by venue name and comes from the YAML overlay.
	Symbols map[string]SymbolMap
}

// AlpacaEnabled reports whether Alpaca credentials are present.
func (c *Config) AlpacaEnabled() bool {
	return c.AlpacaKeyID != "" && c.AlpacaSecret != ""
}

var secretVars = map[string]bool{
	"TELEGRAM_BOT_TOKEN":  true,
	"APCA_API_KEY_ID":     true,
	"APCA_API_SECRET_KEY": true,
}

// Load reads .env (if present) into the environment, builds the config from
// environment variables and applies the YAML overlay named by
// HEDGE_CONFIG_FILE. Invalid values fall back to their defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, using system environment variables")
	} else {
		echoDotEnv()
	}

	cfg := &Config{
		TelegramToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID: getEnvAsInt64("TELEGRAM_CHAT_ID", 0),

		StoreBackend: strings.ToLower(getEnv("HEDGE_STORE_BACKEND", "sqlite")),
		DBPath:       getEnv("HEDGE_DB_PATH", "db/perpetuals.db"),
		StateFile:    getEnv("HEDGE_STATE_FILE", "hedge_state.json"),

		PriceVenue:         strings.ToLower(getEnv("HEDGE_PRICE_VENUE", "okx")),
		ExposureInterval:   getEnvAsDuration("HEDGE_EXPOSURE_INTERVAL", 30*time.Second),
		AutoHedgeInterval:  getEnvAsDuration("HEDGE_AUTOHEDGE_INTERVAL", 60*time.Second),
		DriftThreshold:     getEnvAsFloat64("HEDGE_DRIFT_THRESHOLD", 0.01),
		OrderBookDepth:     getEnvAsInt("HEDGE_ORDERBOOK_DEPTH", 5),
		RiskFreeRate:       getEnvAsFloat64("HEDGE_RISK_FREE_RATE", 0.05),
		AssumedVol:         getEnvAsFloat64("HEDGE_ASSUMED_VOL", 0.5),
		VaRConfidence:      getEnvAsFloat64("HEDGE_VAR_CONFIDENCE", 0.95),
		HistoryLimit:       getEnvAsInt("HEDGE_HISTORY_LIMIT", 90),
		HistoryTimeframe:   getEnv("HEDGE_HISTORY_TIMEFRAME", "1d"),
		HTTPTimeout:        getEnvAsDuration("HEDGE_HTTP_TIMEOUT", 10*time.Second),
		HTTPRequestsPerSec: getEnvAsFloat64("HEDGE_HTTP_RPS", 5),

		OKXBaseURL:     getEnv("OKX_BASE_URL", ""),
		DeribitBaseURL: getEnv("DERIBIT_BASE_URL", ""),
		AlpacaKeyID:    getEnv("APCA_API_KEY_ID", ""),
		AlpacaSecret:   getEnv("APCA_API_SECRET_KEY", ""),

		MetricsAddr: getEnv("HEDGE_METRICS_ADDR", ":9108"),

		LogLevel:      strings.ToUpper(getEnv("WATCHER_LOG_LEVEL", "INFO")),
		LogFile:       getEnv("WATCHER_LOG_FILE", "hedge_watcher.log"),
		MaxLogSizeMB:  int64(getEnvAsInt("MAX_LOG_SIZE_MB", 10)),
		MaxLogBackups: getEnvAsInt("MAX_LOG_BACKUPS", 3),
		LogConsole:    getEnvAsBool("WATCHER_LOG_CONSOLE", true),
	}

	if cfg.TelegramToken == "" {
		log.Warn().Msg("TELEGRAM_BOT_TOKEN not set, notifications and commands disabled")
	}

	if path := os.Getenv("HEDGE_CONFIG_FILE"); path != "" {
		if err := cfg.applyOverlay(path); err != nil {
			log.Error().Err(err).Str("file", path).Msg("Config overlay ignored")
		}
	}
	return cfg
}

// overlay is the YAML file layout:
//
//	symbols:
//	  okx:
//	    format: "%s-USDT"
//	    overrides: {XBT: BTC-USDT}
type overlay struct {
	Symbols map[string]SymbolMap `yaml:"symbols"`
}

func (c *Config) applyOverlay(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var o overlay
	if err := yaml.Unmarshal(raw, &o); err != nil {
		return err
	}
	if c.Symbols == nil {
		c.Symbols = make(map[string]SymbolMap, len(o.Symbols))
	}
	for venue, m := range o.Symbols {
		overrides := make(map[string]string, len(m.Overrides))
		for asset, sym := range m.Overrides {
			overrides[strings.ToUpper(asset)] = sym
		}
		m.Overrides = overrides
		c.Symbols[strings.ToLower(venue)] = m
	}
	log.Info().Str("file", path).Int("venues", len(o.Symbols)).Msg("Config overlay applied")
	return nil
}

// echoDotEnv logs the variables defined in .env with secrets masked.
func echoDotEnv() {
	envMap, err := godotenv.Read()
	if err != nil {
		return
	}
	for key, val := range envMap {
		if secretVars[key] {
			masked := "***"
			if len(val) > 4 {
				masked = "***" + val[len(val)-4:]
			}
			val = masked
		}
		log.Info().Str("key", key).Str("value", val).Msg(".env variable")
	}
}
