// Binary webhook runs the signal dispatch service: it listens for webhook
// payloads and forwards validated orders to the configured broker backends.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"tradehook/internal/broker"
	"tradehook/internal/broker/binance"
	"tradehook/internal/broker/equity"
	"tradehook/internal/broker/paper"
	"tradehook/internal/config"
	"tradehook/internal/dispatch"
	"tradehook/internal/feed"
	"tradehook/internal/journal"
	"tradehook/internal/metrics"
	"tradehook/internal/rules"
	"tradehook/internal/server"
	"tradehook/internal/util"
)

func brokerLimits(b config.Broker) rules.Limits {
	return rules.Limits{
		MinNotional:       decimal.NewFromFloat(b.MinNotional),
		QuantityPrecision: b.QuantityPrecision,
		QuoteSuffixes:     b.QuoteSuffixes,
		AllowedSymbols:    b.AllowedSymbols,
	}
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML configuration file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log := util.NewLogger("info")
		log.Fatal().Err(err).Msg("load config")
	}
	cfg.ApplyEnv()

	log := util.NewLogger(cfg.App.LogLevel)

	if cfg.App.MetricsAddr != "" {
		_ = metrics.Serve(cfg.App.MetricsAddr)
		log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var prices *feed.Cache
	if cfg.Feed.Enabled && len(cfg.Feed.Symbols) > 0 {
		prices = feed.New(cfg.Feed.Symbols, log,
			feed.WithMaxAge(time.Duration(cfg.Feed.MaxAgeSec)*time.Second))
		go func() {
			if err := prices.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("price stream stopped")
			}
		}()
	}

	adapters := make(map[string]broker.Adapter)
	if cfg.Binance.Enabled {
		live := binance.New(binance.Config{
			APIKey:    cfg.Binance.APIKey,
			APISecret: cfg.Binance.APISecret,
			SquareOff: cfg.Binance.SquareOff,
			Limits:    brokerLimits(cfg.Binance),
			Prices:    priceSource(prices),
		}, log)
		testnet := binance.New(binance.Config{
			APIKey:    cfg.Binance.APIKey,
			APISecret: cfg.Binance.APISecret,
			Testnet:   true,
			SquareOff: cfg.Binance.SquareOff,
			Limits:    brokerLimits(cfg.Binance),
			Prices:    priceSource(prices),
		}, log)
		if cfg.Binance.Testnet {
			// Safety: when the process runs in testnet mode the plain tag
			// also binds to the sandbox so a stray live signal cannot trade.
			adapters["BINANCE"] = testnet
		} else {
			adapters["BINANCE"] = live
		}
		adapters["BINANCE_TESTNET"] = testnet
	}
	if cfg.Paper.Enabled {
		adapters["PAPER"] = paper.New(decimal.NewFromInt(10000), brokerLimits(cfg.Paper), priceSource(prices), log)
	}
	if cfg.Equity.Enabled {
		adapters["FLATTRADE"] = equity.New(equity.Config{
			BaseURL: cfg.Equity.BaseURL,
			UserID:  cfg.Equity.APIKey,
			APIKey:  cfg.Equity.APISecret,
			Limits:  brokerLimits(cfg.Equity),
		}, log)
	}

	opts := []dispatch.Option{}
	if cfg.App.JournalPath != "" {
		jw, err := journal.NewWriter(cfg.App.JournalPath)
		if err != nil {
			log.Fatal().Err(err).Msg("open journal")
		}
		defer jw.Close()
		opts = append(opts, dispatch.WithJournal(jw))
	}

	router := dispatch.New(adapters, log, opts...)
	handler := server.NewHandler(router, log)

	srv := &http.Server{Addr: cfg.App.ListenAddr, Handler: handler}
	go func() {
		log.Info().Str("addr", cfg.App.ListenAddr).Int("brokers", len(adapters)).Msg("webhook listener up")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}

// priceSource narrows the optional cache to the adapter interfaces without
// handing them a typed-nil.
func priceSource(c *feed.Cache) binance.PriceSource {
	if c == nil {
		return nil
	}
	return c
}
