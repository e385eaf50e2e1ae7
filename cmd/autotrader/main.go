package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"autotrader/internal/account"
	"autotrader/internal/cfg"
	"autotrader/internal/core"
	"autotrader/internal/data"
	"autotrader/internal/engine"
	"autotrader/internal/exec"
	"autotrader/internal/indicator"
	"autotrader/internal/logx"
	"autotrader/internal/store"
	"autotrader/internal/tg"
)

// backfillLimit bootstraps enough history for the long SMA on a cold start.
const backfillLimit = 200

func main() {
	config := cfg.Load()
	logx.Setup(config.LogLevel)
	log.Info().Str("symbol", config.Symbol).Str("feed", config.Feed).
		Bool("dry_run", config.DryRun).Msg("autotrader starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.Open(config.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("store init")
	}
	defer db.Close()

	var market core.MarketData
	switch config.Feed {
	case "ws":
		feed := data.NewWSFeed(config.Symbol, config.TF)
		go func() {
			if err := feed.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("kline stream stopped")
			}
		}()
		market = feed
	case "random":
		market = data.NewRandomWalk(config.Symbol, config.TF, 4.25, 0.002, time.Now().UnixNano())
	default:
		market = data.NewBinanceREST(config.BinanceBaseURL, config.TF)
	}

	if config.Feed != "random" {
		backfill(ctx, db, config)
	}

	ledger := account.NewLedger(config.SimBalance, db)

	var execPort core.ExecutionPort
	var venue engine.VenueAccount
	if config.DryRun {
		execPort = exec.NewSimulator(config.Symbol, market)
	} else {
		live := exec.NewBinance(config.BinanceBaseURL, config.BinanceAPIKey,
			config.BinanceAPISecret, config.Symbol, config.QuoteAsset)
		execPort = live
		venue = live
	}

	eng := engine.New(engine.Options{
		Symbol:       config.Symbol,
		TickInterval: config.TickInterval,
		RiskPercent:  config.RiskPercent,
		DryRun:       config.DryRun,
		Indicators:   indicator.DefaultParams(),
		Market:       market,
		Store:        db,
		Exec:         execPort,
		Ledger:       ledger,
		Venue:        venue,
	})

	bot := tg.NewBot(config.TgToken, eng)
	if config.TgToken == "" {
		// No control surface: run the engine directly.
		if err := eng.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("engine start")
		}
	} else {
		go func() {
			if err := bot.Run(ctx); err != nil {
				log.Error().Err(err).Msg("telegram bot stopped")
			}
		}()
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	<-sigs
	log.Info().Msg("shutdown")
	cancel()
	if eng.Running() {
		if err := eng.Stop(); err != nil {
			log.Error().Err(err).Msg("engine stop")
		}
	}
}

// backfill seeds the bar history over REST so indicators have a full
// lookback right away instead of warming up one tick at a time.
func backfill(ctx context.Context, db *store.SQLite, config cfg.Config) {
	rest := data.NewBinanceREST(config.BinanceBaseURL, config.TF)
	bars, err := rest.FetchRecentBars(ctx, config.Symbol, backfillLimit)
	if err != nil {
		log.Warn().Err(err).Msg("history backfill failed, warming up from live bars")
		return
	}
	if err := db.AppendBars(ctx, bars); err != nil {
		log.Warn().Err(err).Msg("history backfill persistence failed")
		return
	}
	log.Info().Int("bars", len(bars)).Msg("history backfilled")
}
