package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"yarnitor/internal/common"
	"yarnitor/internal/fetcher"
	"yarnitor/internal/handler"
	"yarnitor/internal/poller"
	"yarnitor/internal/publisher"
	"yarnitor/internal/rmclient"
	"yarnitor/internal/server"

	"go.uber.org/zap"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Configuration file path")
		development = flag.Bool("dev", false, "Enable development mode")
	)
	flag.Parse()

	// 加载配置文件
	config, err := common.LoadConfig(*configFile)
	if err != nil {
		panic(err)
	}
	if *development {
		config.Log.Development = true
	}

	// 初始化日志系统
	if err := common.InitLoggerFromConfig(config); err != nil {
		panic(err)
	}
	defer common.Sync()

	logger := common.ComponentLogger("yarnitor-worker")
	logger.Info("Starting yarnitor worker",
		zap.String("config_file", *configFile),
		zap.Bool("development", config.Log.Development))

	logger.Info("Configuration loaded",
		zap.Strings("resourcemanager_hosts", config.ResourceManager.Hosts),
		zap.Duration("poll_interval", config.Poller.Interval),
		zap.String("store_address", config.Store.Address),
		zap.String("store_key", config.Store.Key))

	rm, err := rmclient.NewResourceManagerClient(config.ResourceManager.Hosts,
		common.ComponentLogger("rmclient"),
		rmclient.WithAPIVersion(config.ResourceManager.APIVersion),
		rmclient.WithMaxHops(config.ResourceManager.MaxHops),
		rmclient.WithHTTPClient(&http.Client{Timeout: config.ResourceManager.Timeout}))
	if err != nil {
		logger.Fatal("Failed to create ResourceManager client", zap.Error(err))
	}

	registry := handler.NewDefaultRegistry(handler.NewTrackingClient(config.Poller.TrackingTimeout))
	f := fetcher.NewConcurrentFetcher(fetcher.Config{
		Workers:              config.Poller.Workers,
		Timeout:              config.Poller.FetchTimeout,
		MassFailureDowngrade: config.Poller.MassFailureDowngrade,
	}, registry, common.ComponentLogger("fetcher"))

	store := publisher.NewRedisStore(config.Store)
	defer store.Close()

	var notifiers []publisher.Notifier
	if len(config.Kafka.Brokers) > 0 {
		kafkaNotifier := publisher.NewKafkaNotifier(config.Kafka)
		defer kafkaNotifier.Close()
		notifiers = append(notifiers, kafkaNotifier)
		logger.Info("Snapshot notifications enabled",
			zap.Strings("brokers", config.Kafka.Brokers),
			zap.String("topic", config.Kafka.Topic))
	}
	pub := publisher.NewSnapshotPublisher(store, config.Store.Key, common.ComponentLogger("publisher"), notifiers...)

	metrics := common.NewPollerMetrics()
	p := poller.NewPoller(rm, f, pub, common.ComponentLogger("poller"),
		poller.WithInterval(config.Poller.Interval),
		poller.WithMetrics(metrics))

	if config.Server.Address != "" {
		statusServer := server.NewHTTPServer(config.Server.Address, metrics, common.ComponentLogger("server"))
		if err := statusServer.Start(); err != nil {
			logger.Fatal("Failed to start status server", zap.Error(err))
		}
		defer func() {
			if err := statusServer.Stop(); err != nil {
				logger.Error("Error stopping status server", zap.Error(err))
			}
		}()
	}

	// 优雅关闭处理
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Received shutdown signal")
		cancel()
	}()

	if err := p.Run(ctx); err != nil {
		logger.Error("Poller exited with error", zap.Error(err))
	}

	logger.Info("Yarnitor worker exited gracefully")
}
