package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"orderbook-monitor-go/config"
	"orderbook-monitor-go/exchange"
	"orderbook-monitor-go/infrastructure/alert"
	"orderbook-monitor-go/infrastructure/logger"
	"orderbook-monitor-go/metrics"
	"orderbook-monitor-go/monitor"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfgPath := flag.String("config", "config.yaml", "配置文件路径")
	metricsAddr := flag.String("metricsAddr", "", "覆盖配置中的 metrics 监听地址")
	grace := flag.Duration("shutdownGrace", 30*time.Second, "停机宽限期，超过后强制退出")
	flag.Parse()

	_ = godotenv.Load() // .env 可选，不存在不算错

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return 1
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Outputs:    cfg.Log.Outputs,
		OutputFile: cfg.Log.OutputFile,
		ErrorFile:  cfg.Log.ErrorFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		return 1
	}
	defer log.Close()

	log.Info("starting orderbook monitor",
		zap.Strings("trading_pairs", cfg.TradingPairs),
		zap.Float64("refresh_rate_s", cfg.RefreshRate),
		zap.Float64("threshold_percent", cfg.ThresholdPercentage),
		zap.Float64("target_fill_volume", cfg.TargetFillVolume))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resolver := exchange.NewResolver()
	connectors, streams, err := buildConnectors(cfg, resolver)
	if err != nil {
		log.Error("failed to construct connectors", zap.Error(err))
		return 1
	}
	for _, s := range streams {
		if err := s.Start(ctx, cfg.TradingPairs); err != nil {
			log.Error("failed to start depth stream", zap.Error(err))
			return 1
		}
	}
	for _, c := range connectors {
		log.Info("initialized exchange", zap.String("exchange", c.Name()))
	}

	collector := metrics.New(metrics.DefaultConfig())
	manager := alert.NewManager(
		buildChannels(cfg.Alert, log.Named("alert").Logger),
		time.Duration(cfg.Alert.ThrottleSeconds)*time.Second,
		log.Named("alert").Logger)

	ctrl := monitor.NewShutdownController()
	mon := monitor.New(connectors, manager, ctrl,
		log.Named("monitor").Logger, collector, settingsFrom(cfg))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
		ctrl.RequestShutdown()
	}()

	g, gctx := errgroup.WithContext(ctx)

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		g.Go(func() error {
			log.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
			if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		w := config.Watcher{Path: *cfgPath}
		err := w.Start(gctx, func(newCfg config.AppConfig) {
			log.Info("configuration reloaded")
			mon.ApplySettings(settingsFrom(newCfg))
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		watchdogLoop(gctx)
		return nil
	})

	g.Go(func() error {
		defer cancel() // 监控循环退出后放倒其余任务
		err := mon.Run(gctx)
		if metricsSrv != nil {
			sctx, scancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer scancel()
			_ = metricsSrv.Shutdown(sctx)
		}
		return err
	})

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	// 退出码约定：干净停机 0，宽限期超时强制退出非 0。
	ctrlDone := ctrl.Done()
	var force <-chan time.Time
	for {
		select {
		case err := <-done:
			_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error("monitor exited with error", zap.Error(err))
				return 1
			}
			log.Info("clean shutdown complete")
			return 0
		case <-ctrlDone:
			ctrlDone = nil // 只取一次，之后靠定时器
			force = time.After(*grace)
		case <-force:
			log.Error("shutdown grace period exceeded, forcing exit",
				zap.Duration("grace", *grace))
			return 2
		}
	}
}

// buildConnectors 按配置构造连接器，一个都建不出来视为致命错误。
// 返回的顺序即配置顺序，决定检测时交易所对的枚举顺序。
func buildConnectors(cfg config.AppConfig, resolver *exchange.Resolver) ([]exchange.Connector, []*exchange.BinanceStream, error) {
	var connectors []exchange.Connector
	var streams []*exchange.BinanceStream
	for _, ex := range cfg.EnabledExchanges() {
		rate := ex.RateLimit
		if rate <= 0 {
			rate = 5
		}
		burst := ex.Burst
		if burst <= 0 {
			burst = 10
		}
		opts := exchange.Options{
			Resolver:   resolver,
			Depth:      cfg.OrderbookDepth,
			Limiter:    exchange.NewTokenBucket(rate, burst),
			HTTPClient: exchange.NewDefaultHTTPClient(),
		}
		switch ex.Name {
		case "binance":
			if ex.Transport == "ws" {
				s := exchange.NewBinanceStream(resolver, cfg.OrderbookDepth)
				connectors = append(connectors, s)
				streams = append(streams, s)
				continue
			}
			connectors = append(connectors, exchange.NewBinance(opts))
		case "okx":
			connectors = append(connectors, exchange.NewOKX(opts))
		case "coinbase":
			connectors = append(connectors, exchange.NewCoinbase(opts))
		default:
			return nil, nil, fmt.Errorf("unknown exchange %q", ex.Name)
		}
	}
	if len(connectors) == 0 {
		return nil, nil, errors.New("no connectors constructed")
	}
	return connectors, streams, nil
}

func buildChannels(cfg config.AlertConfig, log *zap.Logger) []alert.Channel {
	channels := []alert.Channel{alert.NewLogChannel(log)}
	if cfg.Console {
		channels = append(channels, alert.NewConsoleChannel())
	}
	if cfg.JSONLFile != "" {
		channels = append(channels, alert.NewJSONLChannel(cfg.JSONLFile))
	}
	if cfg.Telegram.Enabled {
		channels = append(channels, alert.NewTelegramChannel(cfg.Telegram.Token, cfg.Telegram.ChatID))
	}
	return channels
}

func settingsFrom(cfg config.AppConfig) monitor.Settings {
	return monitor.Settings{
		TradingPairs:      cfg.TradingPairs,
		RefreshInterval:   cfg.RefreshInterval(),
		FetchTimeout:      cfg.FetchTimeoutDuration(),
		ThresholdPercent:  cfg.ThresholdPercentage,
		TargetVolume:      cfg.TargetFillVolume,
		TopOfBookFallback: cfg.TopOfBookFallback,
	}
}

// watchdogLoop 在 systemd 启用看门狗时按一半间隔发心跳。
func watchdogLoop(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}
}
