package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"sma-vol-breakdown/internal/markethours"
)

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"UPSTOX_ACCESS_TOKEN", "UPSTOX_BASE_URL", "SQLITE_PATH", "REDIS_ADDR",
		"REDIS_PASSWORD", "HTTP_ADDR", "METRICS_ADDR", "STOCKS_CSV_PATH",
		"DATA_TIMEZONE", "DATA_INTERVAL_UNIT", "DATA_INTERVAL_VALUE", "DAYS_TO_FETCH",
		"WORKERS", "STRATEGY_NAME", "STRATEGY_END_TIME", "STOP_LOSS_PCT",
		"TAKE_PROFIT_PCT", "STRATEGY_FILE", "RESULTS_DIR", "LOG_LEVEL",
		"WEBHOOK_URL", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Strategy.EndTime != markethours.NewClock(11, 30) {
		t.Errorf("end time = %v, want 11:30", cfg.Strategy.EndTime)
	}
	if cfg.Strategy.StopLossPct != 0.012 || cfg.Strategy.TakeProfitPct != 0.03 {
		t.Errorf("unexpected pcts: %+v", cfg.Strategy)
	}
	if cfg.DaysToFetch != 10 || cfg.IntervalValue != 5 || cfg.IntervalUnit != "minutes" {
		t.Errorf("unexpected data settings: %d %d %s", cfg.DaysToFetch, cfg.IntervalValue, cfg.IntervalUnit)
	}
	if cfg.Location.String() != "Asia/Kolkata" {
		t.Errorf("location = %s", cfg.Location)
	}
	if got := cfg.SignalsTable(); got != "generated_signals_sma_vol_breakdown" {
		t.Errorf("signals table = %s", got)
	}
	if got := cfg.ResultsTable(); got != "backtest_results_sma_vol_breakdown" {
		t.Errorf("results table = %s", got)
	}
	if err := cfg.RequireToken(); err == nil {
		t.Error("expected missing token error")
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STRATEGY_END_TIME", "10:45")
	t.Setenv("STOP_LOSS_PCT", "0.02")
	t.Setenv("STRATEGY_NAME", "Alt")
	t.Setenv("UPSTOX_ACCESS_TOKEN", "tok")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Strategy.EndTime != markethours.NewClock(10, 45) {
		t.Errorf("end time = %v", cfg.Strategy.EndTime)
	}
	if cfg.Strategy.StopLossPct != 0.02 {
		t.Errorf("stop loss = %v", cfg.Strategy.StopLossPct)
	}
	if cfg.ResultsTable() != "backtest_results_alt" {
		t.Errorf("results table = %s", cfg.ResultsTable())
	}
	if err := cfg.RequireToken(); err != nil {
		t.Errorf("unexpected token error: %v", err)
	}
}

func TestLoad_FailsFast(t *testing.T) {
	cases := []struct{ key, val string }{
		{"STRATEGY_END_TIME", "eleven"},
		{"STOP_LOSS_PCT", "abc"},
		{"STOP_LOSS_PCT", "NaN"},
		{"STOP_LOSS_PCT", "+Inf"},
		{"TAKE_PROFIT_PCT", "-0.1"},
		{"TAKE_PROFIT_PCT", "nan"},
		{"DAYS_TO_FETCH", "0"},
		{"DATA_TIMEZONE", "Mars/Olympus"},
		{"WORKERS", "-2"},
		{"STRATEGY_NAME", "SMA-VOL"},
		{"STRATEGY_NAME", "sma vol"},
	}
	for _, tc := range cases {
		t.Run(tc.key+"="+tc.val, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.val)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%q", tc.key, tc.val)
			}
		})
	}
}

func TestLoad_StrategyFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "strategy.yaml")
	body := "name: Tight\nend_time: \"10:00\"\ntake_profit_pct: 0.015\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STRATEGY_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StrategyName != "Tight" {
		t.Errorf("name = %s", cfg.StrategyName)
	}
	if cfg.Strategy.EndTime != markethours.NewClock(10, 0) {
		t.Errorf("end time = %v", cfg.Strategy.EndTime)
	}
	if cfg.Strategy.TakeProfitPct != 0.015 {
		t.Errorf("take profit = %v", cfg.Strategy.TakeProfitPct)
	}
	if cfg.Strategy.StopLossPct != 0.012 {
		t.Errorf("stop loss should keep env default, got %v", cfg.Strategy.StopLossPct)
	}
}

func TestLoad_StrategyFileMissing(t *testing.T) {
	clearEnv(t)
	t.Setenv("STRATEGY_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
	if _, err := Load(); err == nil {
		t.Error("expected error for missing strategy file")
	}
}

func TestDataStartDate(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	// 20:00 UTC on Oct 14 is already Oct 15 in IST.
	now := time.Date(2025, 10, 14, 20, 0, 0, 0, time.UTC)
	if got := cfg.DataStartDate(now); got != "2025-10-05" {
		t.Errorf("DataStartDate = %s, want 2025-10-05", got)
	}
}

func TestLoad_StrategyFileRejectsBadValues(t *testing.T) {
	for name, body := range map[string]string{
		"table name": "name: sma-vol\n",
		"nan":        "stop_loss_pct: .nan\n",
	} {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			path := filepath.Join(t.TempDir(), "strategy.yaml")
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}
			t.Setenv("STRATEGY_FILE", path)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %q", body)
			}
		})
	}
}
