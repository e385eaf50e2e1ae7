package cfg

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	TgToken string

	Symbol     string
	TF         string
	Feed       string // rest | ws | random
	DryRun     bool
	DBPath     string
	LogLevel   string
	QuoteAsset string

	SimBalance   float64
	RiskPercent  float64
	TickInterval time.Duration

	BinanceAPIKey    string
	BinanceAPISecret string
	BinanceBaseURL   string
}

func Load() Config {
	v := viper.New()
	v.SetConfigFile(".env")
	_ = v.ReadInConfig()
	v.AutomaticEnv()

	v.SetDefault("SYMBOL", "RUNEUSDT")
	v.SetDefault("TF", "1m")
	v.SetDefault("FEED", "rest")
	v.SetDefault("DRY_RUN", true)
	v.SetDefault("DB_PATH", "app.db")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("QUOTE_ASSET", "USDT")
	v.SetDefault("SIM_BALANCE", 10000.0)
	v.SetDefault("RISK_PERCENT", 90.0)
	v.SetDefault("TICK_INTERVAL", "60s")
	v.SetDefault("BINANCE_BASE_URL", "")

	return Config{
		TgToken:          v.GetString("TG_TOKEN"),
		Symbol:           v.GetString("SYMBOL"),
		TF:               v.GetString("TF"),
		Feed:             v.GetString("FEED"),
		DryRun:           v.GetBool("DRY_RUN"),
		DBPath:           v.GetString("DB_PATH"),
		LogLevel:         v.GetString("LOG_LEVEL"),
		QuoteAsset:       v.GetString("QUOTE_ASSET"),
		SimBalance:       v.GetFloat64("SIM_BALANCE"),
		RiskPercent:      v.GetFloat64("RISK_PERCENT"),
		TickInterval:     v.GetDuration("TICK_INTERVAL"),
		BinanceAPIKey:    v.GetString("BINANCE_API_KEY"),
		BinanceAPISecret: v.GetString("BINANCE_API_SECRET"),
		BinanceBaseURL:   v.GetString("BINANCE_BASE_URL"),
	}
}
