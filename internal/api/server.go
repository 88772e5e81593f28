package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/life2you_mini/pnlwatch/internal/events"
	"github.com/life2you_mini/pnlwatch/internal/model"
	"github.com/life2you_mini/pnlwatch/internal/monitor"
)

const (
	shutdownTimeout = 5 * time.Second
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = pongWait * 9 / 10
	streamBuffer    = 16
)

// SnapshotSource 刷新器提供的只读视图和手动触发
type SnapshotSource interface {
	Latest() *model.Snapshot
	Status() monitor.Status
	Trigger() bool
}

// Subscriber 事件订阅
type Subscriber interface {
	Subscribe(handler events.Handler) func()
}

// Info /api/config 返回的静态信息
type Info struct {
	HasConfig       bool
	UseTestnet      bool
	AppName         string
	AppTitle        string
	Baseline        model.BaselineConfig
	RefreshInterval time.Duration
}

// Server HTTP接口和实时推送
type Server struct {
	addr     string
	source   SnapshotSource
	bus      Subscriber
	info     Info
	gatherer prometheus.Gatherer
	logger   *zap.Logger

	router   *gin.Engine
	upgrader websocket.Upgrader
	srv      *http.Server
}

// NewServer 创建HTTP服务，gatherer 为 nil 时使用默认注册表
func NewServer(addr string, source SnapshotSource, bus Subscriber, info Info, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		addr:     addr,
		source:   source,
		bus:      bus,
		info:     info,
		gatherer: gatherer,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(cors.Default())

	s.router = router
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	api := s.router.Group("/api")
	api.GET("/config", s.handleConfig)
	api.GET("/snapshot", s.handleSnapshot)
	api.GET("/account", s.handleAccount)
	api.GET("/positions", s.handlePositions)
	api.GET("/trades", s.handleTrades)
	api.GET("/status", s.handleStatus)
	api.POST("/refresh", s.handleRefresh)
	api.GET("/stream", s.handleStream)
}

// Handler 返回路由，便于测试
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run 监听直到 ctx 取消，随后优雅关闭
func (s *Server) Run(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP服务启动", zap.String("addr", s.addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP服务异常退出: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("关闭HTTP服务失败: %w", err)
	}
	s.logger.Info("HTTP服务已关闭")
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"hasConfig":  s.info.HasConfig,
		"useTestnet": s.info.UseTestnet,
		"appName":    s.info.AppName,
		"appTitle":   s.info.AppTitle,
		"baseline": gin.H{
			"assetValue": s.info.Baseline.AssetValue,
			"currency":   s.info.Baseline.Currency,
			"date":       s.info.Baseline.Timestamp.Format(time.RFC3339),
		},
		"refreshInterval": int64(s.info.RefreshInterval / time.Second),
		"timestamp":       time.Now().Format(time.RFC3339),
	})
}

// latestOrUnavailable 尚未刷新成功时返回 503
func (s *Server) latestOrUnavailable(c *gin.Context) (*model.Snapshot, bool) {
	snapshot := s.source.Latest()
	if snapshot == nil {
		status := s.source.Status()
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":  "数据尚未加载",
			"status": status,
		})
		return nil, false
	}
	return snapshot, true
}

// freshness 数据时效信息，刷新失败时旧数据继续展示并标记 stale
func (s *Server) freshness() gin.H {
	status := s.source.Status()
	return gin.H{
		"lastSuccess": status.LastSuccess,
		"stale":       status.LastError != "",
		"lastError":   status.LastError,
	}
}

func (s *Server) handleSnapshot(c *gin.Context) {
	snapshot, ok := s.latestOrUnavailable(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"snapshot": snapshot,
		"status":   s.source.Status(),
	})
}

func (s *Server) handleAccount(c *gin.Context) {
	snapshot, ok := s.latestOrUnavailable(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account":   snapshot.Account,
		"freshness": s.freshness(),
	})
}

func (s *Server) handlePositions(c *gin.Context) {
	snapshot, ok := s.latestOrUnavailable(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"positions": snapshot.ActivePositions,
		"invalid":   snapshot.InvalidPositions,
		"freshness": s.freshness(),
	})
}

func (s *Server) handleTrades(c *gin.Context) {
	snapshot, ok := s.latestOrUnavailable(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"trades":    snapshot.Trades,
		"freshness": s.freshness(),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.source.Status())
}

func (s *Server) handleRefresh(c *gin.Context) {
	triggered := s.source.Trigger()
	if !triggered {
		s.logger.Debug("刷新进行中，忽略手动刷新请求")
	}
	c.JSON(http.StatusAccepted, gin.H{"triggered": triggered})
}

// StreamMessage 推送给 websocket 客户端的消息
type StreamMessage struct {
	Type     events.EventType `json:"type"`
	Snapshot *model.Snapshot  `json:"snapshot,omitempty"`
	Error    string           `json:"error,omitempty"`
	At       time.Time        `json:"at"`
}

func newStreamMessage(ev events.Event) StreamMessage {
	msg := StreamMessage{Type: ev.Type, Snapshot: ev.Snapshot, At: ev.At}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}
	return msg
}

// handleStream 连接后先推送最新快照，之后推送每个事件
// 客户端处理不过来时丢弃事件，不阻塞事件总线
func (s *Server) handleStream(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket升级失败", zap.Error(err))
		return
	}
	defer conn.Close()

	out := make(chan StreamMessage, streamBuffer)
	if snapshot := s.source.Latest(); snapshot != nil {
		out <- StreamMessage{Type: events.EventSnapshot, Snapshot: snapshot, At: snapshot.FetchedAt}
	}

	unsubscribe := s.bus.Subscribe(func(ev events.Event) {
		select {
		case out <- newStreamMessage(ev):
		default:
			s.logger.Warn("websocket客户端处理过慢，丢弃事件", zap.String("remote", c.ClientIP()))
		}
	})
	defer unsubscribe()

	// 读协程只用于感知断开和处理 pong
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case msg := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				s.logger.Debug("websocket写入失败", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
