package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Load merges the TOML file at path, when path is not empty, on top of the
// built-in defaults, loads envFile (".env" when empty) if present, then
// applies TRADESIM_* environment variable overrides. The returned Config has
// NOT been validated; the caller should invoke Config.Validate() after Load.
func Load(path, envFile string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if envFile == "" {
		envFile = ".env"
	}
	// a missing .env is not an error.
	_ = godotenv.Load(envFile)

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides reads TRADESIM_* environment variables and overwrites the
// corresponding Config fields when a variable is set and parses.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.DataDir, "TRADESIM_DATA_DIR")
	setDecimal(&cfg.StartingCash, "TRADESIM_STARTING_CASH")
	setStr(&cfg.Currency, "TRADESIM_CURRENCY")
	setStr(&cfg.CostBasis, "TRADESIM_COST_BASIS")

	setStr(&cfg.Provider, "TRADESIM_PROVIDER")
	setBool(&cfg.OfflineFallback, "TRADESIM_OFFLINE_FALLBACK")
	setStr(&cfg.MockPricesFile, "TRADESIM_MOCK_PRICES_FILE")
	setDuration(&cfg.QuoteTimeout, "TRADESIM_QUOTE_TIMEOUT")
	setDuration(&cfg.QuoteCacheTTL, "TRADESIM_QUOTE_CACHE_TTL")
	setStr(&cfg.EODHDAPIKey, "EODHD_API_KEY") // shared with other eodhd tools
	setStr(&cfg.EODHDAPIKey, "TRADESIM_EODHD_API_KEY")

	setBool(&cfg.EnforceMarketHours, "TRADESIM_ENFORCE_MARKET_HOURS")
	setStr(&cfg.HistoryPolicy, "TRADESIM_HISTORY_POLICY")
	setInt(&cfg.HistoryRetries, "TRADESIM_HISTORY_RETRIES")

	setStr(&cfg.LogLevel, "TRADESIM_LOG_LEVEL")

	setStr(&cfg.Addr, "TRADESIM_ADDR")
	setStringSlice(&cfg.CORSOrigins, "TRADESIM_CORS_ORIGINS")
	setStr(&cfg.SnapshotSchedule, "TRADESIM_SNAPSHOT_SCHEDULE")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDecimal(dst *decimal.Decimal, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			*dst = d
		}
	}
}

func setDuration(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		*dst = cleaned
	}
}
