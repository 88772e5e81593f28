package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/life2you_mini/pnlwatch/internal/analytics"
	"github.com/life2you_mini/pnlwatch/internal/api"
	"github.com/life2you_mini/pnlwatch/internal/config"
	"github.com/life2you_mini/pnlwatch/internal/events"
	"github.com/life2you_mini/pnlwatch/internal/exchange"
	"github.com/life2you_mini/pnlwatch/internal/metrics"
	"github.com/life2you_mini/pnlwatch/internal/monitor"
	_redisClient "github.com/life2you_mini/pnlwatch/internal/redis"
	"github.com/life2you_mini/pnlwatch/internal/storage"
)

// PnlWatchService 账户收益看板服务
type PnlWatchService struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	bus       *events.Broadcaster
	refresher *monitor.Refresher
	collector *metrics.Collector
	store     *storage.SnapshotStore
	server    *api.Server

	wg sync.WaitGroup
}

// NewPnlWatchService 根据配置创建服务
func NewPnlWatchService(parentCtx context.Context, cfg *config.Config, logger *zap.Logger) (*PnlWatchService, error) {
	gateway, err := exchange.NewGateway(exchange.GatewayConfig{
		Name:         cfg.Exchange.Name,
		APIKey:       cfg.Exchange.APIKey,
		APISecret:    cfg.Exchange.APISecret,
		UseTestnet:   cfg.Exchange.UseTestnet,
		RecvWindowMs: cfg.Exchange.RecvWindowMs,
	}, logger.With(zap.String("component", "gateway")))
	if err != nil {
		return nil, fmt.Errorf("创建交易所网关失败: %w", err)
	}

	return newService(parentCtx, cfg, gateway, prometheus.DefaultRegisterer, prometheus.DefaultGatherer, logger)
}

func newService(
	parentCtx context.Context,
	cfg *config.Config,
	gateway monitor.AccountGateway,
	registerer prometheus.Registerer,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
) (*PnlWatchService, error) {
	baseline, err := cfg.BaselineSpec()
	if err != nil {
		return nil, err
	}

	if !cfg.HasCredentials() {
		logger.Warn("未配置API密钥，交易所请求将失败，请设置 BINANCE_API_KEY 和 BINANCE_SECRET_KEY")
	}

	// 创建服务上下文
	ctx, cancel := context.WithCancel(parentCtx)

	bus := events.NewBroadcaster(logger.With(zap.String("component", "events")), 0)
	collector := metrics.NewCollector(registerer)
	bus.Subscribe(collector.Handle)

	calculator := analytics.NewCalculator(baseline, cfg.Refresh.ExcludedSymbols, cfg.Refresh.TradeLimit)
	refresher := monitor.NewRefresher(
		gateway,
		calculator,
		bus,
		collector,
		logger.With(zap.String("component", "refresher")),
		monitor.Options{
			RefreshInterval: cfg.RefreshInterval(),
			TickInterval:    cfg.TickInterval(),
			FetchTimeout:    cfg.FetchTimeout(),
			TradeLimit:      cfg.Refresh.TradeLimit,
		},
	)

	s := &PnlWatchService{
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
		bus:       bus,
		refresher: refresher,
		collector: collector,
	}

	// Redis 不可用时只记录告警，看板照常运行
	if cfg.Redis.Enabled {
		client, err := _redisClient.NewRedisClient(ctx, _redisClient.ClientOptions{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Warn("初始化Redis客户端失败，快照不会写入Redis", zap.Error(err))
		} else {
			s.store = storage.NewSnapshotStore(client, cfg.Redis.KeyPrefix, cfg.SnapshotTTL(), logger.With(zap.String("component", "redis")))
			bus.Subscribe(s.store.Handle)
		}
	}

	if cfg.Server.Enabled {
		s.server = api.NewServer(cfg.Server.Addr, refresher, bus, api.Info{
			HasConfig:       cfg.HasCredentials(),
			UseTestnet:      cfg.Exchange.UseTestnet,
			AppName:         cfg.App.Name,
			AppTitle:        cfg.App.Title,
			Baseline:        baseline,
			RefreshInterval: cfg.RefreshInterval(),
		}, gatherer, logger.With(zap.String("component", "api")))
	}

	return s, nil
}

// Refresher 返回刷新器
func (s *PnlWatchService) Refresher() *monitor.Refresher {
	return s.refresher
}

// Start 启动服务
func (s *PnlWatchService) Start() {
	s.logger.Info("启动账户收益看板服务")

	s.goRun(func() {
		s.bus.Run(s.ctx)
	})

	s.goRun(func() {
		if err := s.refresher.Start(s.ctx); err != nil && s.ctx.Err() == nil {
			s.logger.Error("刷新器异常退出", zap.Error(err))
		}
	})

	if s.server != nil {
		s.goRun(func() {
			if err := s.server.Run(s.ctx); err != nil {
				s.logger.Error("HTTP服务异常退出", zap.Error(err))
			}
		})
	}
}

func (s *PnlWatchService) goRun(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// Stop 停止服务，等待进行中的刷新结束或 ctx 超时
func (s *PnlWatchService) Stop(ctx context.Context) error {
	s.logger.Info("停止账户收益看板服务")

	// 取消服务上下文
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("等待服务关闭超时: %w", ctx.Err())
	}

	s.bus.Close()

	// 关闭Redis连接
	if s.store != nil {
		if closeErr := s.store.Close(); closeErr != nil {
			s.logger.Error("关闭Redis连接失败", zap.Error(closeErr))
		}
	}

	return err
}
