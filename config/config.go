package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"sma-vol-breakdown/internal/markethours"
	"sma-vol-breakdown/internal/store/sqlite"
	"sma-vol-breakdown/internal/strategy"
)

// RawCandleTable holds every fetched candle, replaced on each fetch.
const RawCandleTable = "raw_candle_data"

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Upstox
	UpstoxAccessToken string
	UpstoxBaseURL     string

	// Infrastructure
	SQLitePath    string
	RedisAddr     string // empty uses an in-process run lock
	RedisPassword string
	HTTPAddr      string
	MetricsAddr   string

	// Data
	StocksCSVPath string
	Location      *time.Location
	IntervalUnit  string
	IntervalValue int
	DaysToFetch   int

	// Strategy
	StrategyName string
	Strategy     strategy.Params
	Workers      int // 0 = GOMAXPROCS

	// Output
	ResultsDir string
	LogLevel   string

	// Notifications (all optional)
	WebhookURL       string
	TelegramBotToken string
	TelegramChatID   string
}

// strategyFile is the optional YAML override named by STRATEGY_FILE.
type strategyFile struct {
	Name          string   `yaml:"name"`
	EndTime       string   `yaml:"end_time"`
	StopLossPct   *float64 `yaml:"stop_loss_pct"`
	TakeProfitPct *float64 `yaml:"take_profit_pct"`
}

// Load reads .env (if present), then the environment, then STRATEGY_FILE.
// Any malformed value is an error; nothing is silently defaulted.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		UpstoxAccessToken: getEnv("UPSTOX_ACCESS_TOKEN", ""),
		UpstoxBaseURL:     getEnv("UPSTOX_BASE_URL", "https://api.upstox.com"),

		SQLitePath:    getEnv("SQLITE_PATH", "data/backtest.db"),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),

		StocksCSVPath: getEnv("STOCKS_CSV_PATH", "ind_nifty200list.csv"),
		IntervalUnit:  getEnv("DATA_INTERVAL_UNIT", "minutes"),

		StrategyName: getEnv("STRATEGY_NAME", "SMA_VOL_Breakdown"),

		ResultsDir: getEnv("RESULTS_DIR", "results"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		WebhookURL:       getEnv("WEBHOOK_URL", ""),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
	}

	var err error
	if cfg.Location, err = time.LoadLocation(getEnv("DATA_TIMEZONE", "Asia/Kolkata")); err != nil {
		return nil, fmt.Errorf("DATA_TIMEZONE: %w", err)
	}
	if cfg.IntervalValue, err = positiveInt("DATA_INTERVAL_VALUE", "5"); err != nil {
		return nil, err
	}
	if cfg.DaysToFetch, err = positiveInt("DAYS_TO_FETCH", "10"); err != nil {
		return nil, err
	}
	if cfg.Workers, err = strconv.Atoi(getEnv("WORKERS", "0")); err != nil || cfg.Workers < 0 {
		return nil, fmt.Errorf("WORKERS: invalid value %q", os.Getenv("WORKERS"))
	}

	if cfg.Strategy.EndTime, err = markethours.ParseClock(getEnv("STRATEGY_END_TIME", "11:30")); err != nil {
		return nil, fmt.Errorf("STRATEGY_END_TIME: %w", err)
	}
	if cfg.Strategy.StopLossPct, err = parseFloat("STOP_LOSS_PCT", "0.012"); err != nil {
		return nil, err
	}
	if cfg.Strategy.TakeProfitPct, err = parseFloat("TAKE_PROFIT_PCT", "0.03"); err != nil {
		return nil, err
	}

	if path := os.Getenv("STRATEGY_FILE"); path != "" {
		if err := cfg.applyStrategyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Strategy.Validate(); err != nil {
		return nil, fmt.Errorf("strategy params: %w", err)
	}
	if strings.TrimSpace(cfg.StrategyName) == "" {
		return nil, errors.New("STRATEGY_NAME must not be empty")
	}
	for _, table := range []string{cfg.SignalsTable(), cfg.ResultsTable()} {
		if err := sqlite.ValidTableName(table); err != nil {
			return nil, fmt.Errorf("STRATEGY_NAME %q: %w", cfg.StrategyName, err)
		}
	}
	return cfg, nil
}

func (c *Config) applyStrategyFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("STRATEGY_FILE: %w", err)
	}
	var f strategyFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("STRATEGY_FILE %s: %w", path, err)
	}
	if f.Name != "" {
		c.StrategyName = f.Name
	}
	if f.EndTime != "" {
		if c.Strategy.EndTime, err = markethours.ParseClock(f.EndTime); err != nil {
			return fmt.Errorf("STRATEGY_FILE end_time: %w", err)
		}
	}
	if f.StopLossPct != nil {
		c.Strategy.StopLossPct = *f.StopLossPct
	}
	if f.TakeProfitPct != nil {
		c.Strategy.TakeProfitPct = *f.TakeProfitPct
	}
	log.Printf("[config] strategy overrides loaded from %s", path)
	return nil
}

// RequireToken fails when the Upstox token needed for fetching is absent.
func (c *Config) RequireToken() error {
	if c.UpstoxAccessToken == "" {
		return errors.New("UPSTOX_ACCESS_TOKEN is required to fetch data")
	}
	return nil
}

// SignalsTable is generated_signals_<strategy name, lowercased>.
func (c *Config) SignalsTable() string {
	return "generated_signals_" + strings.ToLower(c.StrategyName)
}

// ResultsTable is backtest_results_<strategy name, lowercased>.
func (c *Config) ResultsTable() string {
	return "backtest_results_" + strings.ToLower(c.StrategyName)
}

// DataStartDate is the first date to fetch, DaysToFetch days before now in the data timezone.
func (c *Config) DataStartDate(now time.Time) string {
	return now.In(c.Location).AddDate(0, 0, -c.DaysToFetch).Format("2006-01-02")
}

func positiveInt(key, fallback string) (int, error) {
	raw := getEnv(key, fallback)
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: expected a positive integer, got %q", key, raw)
	}
	return n, nil
}

func parseFloat(key, fallback string) (float64, error) {
	raw := getEnv(key, fallback)
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s: expected a number, got %q", key, raw)
	}
	return f, nil
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
