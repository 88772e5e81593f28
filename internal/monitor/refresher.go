package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/life2you_mini/pnlwatch/internal/events"
	"github.com/life2you_mini/pnlwatch/internal/model"
)

// 默认值
const (
	DefaultRefreshInterval = 60 * time.Second
	DefaultTickInterval    = time.Second
	DefaultFetchTimeout    = 15 * time.Second
	DefaultTradeLimit      = 25
)

// ErrTransportFailure 网关读取失败或超时，下一次倒计时归零时自动重试
var ErrTransportFailure = errors.New("刷新数据失败")

// State 刷新状态
type State int32

const (
	StateIdle State = iota
	StateFetching
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	default:
		return "unknown"
	}
}

// AccountGateway 交易所数据源
type AccountGateway interface {
	FetchAccount(ctx context.Context) (model.AccountSnapshot, error)
	FetchPositions(ctx context.Context) ([]model.PositionRecord, error)
	FetchTrades(ctx context.Context, limit int) ([]model.TradeRecord, error)
}

// Analyzer 指标计算
type Analyzer interface {
	Analyze(account model.AccountSnapshot, positions []model.PositionRecord, trades []model.TradeRecord) *model.Snapshot
}

// Publisher 事件发布
type Publisher interface {
	Publish(ev events.Event)
}

// Recorder 刷新过程的指标记录
type Recorder interface {
	ObserveRefresh(result string, duration time.Duration)
	IncSkipped()
}

type nopRecorder struct{}

func (nopRecorder) ObserveRefresh(string, time.Duration) {}
func (nopRecorder) IncSkipped()                          {}

// Options 刷新参数
type Options struct {
	RefreshInterval time.Duration // 自动刷新间隔
	TickInterval    time.Duration // 倒计时步长
	FetchTimeout    time.Duration // 三个请求合并等待的超时
	TradeLimit      int           // 拉取成交条数
}

func (o Options) withDefaults() Options {
	if o.RefreshInterval <= 0 {
		o.RefreshInterval = DefaultRefreshInterval
	}
	if o.TickInterval <= 0 {
		o.TickInterval = DefaultTickInterval
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = DefaultFetchTimeout
	}
	if o.TradeLimit <= 0 {
		o.TradeLimit = DefaultTradeLimit
	}
	return o
}

// Status 刷新器当前状态
type Status struct {
	State       string    `json:"state"`
	Countdown   int64     `json:"countdown"` // 剩余 tick 数
	LastSuccess time.Time `json:"last_success,omitempty"`
	LastAttempt time.Time `json:"last_attempt,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
}

// Refresher 定时刷新账户数据
// 同一时刻最多一个刷新在进行，期间的触发直接忽略，不排队
type Refresher struct {
	gateway   AccountGateway
	analyzer  Analyzer
	publisher Publisher
	recorder  Recorder
	logger    *zap.Logger
	opts      Options

	state     atomic.Int32
	countdown atomic.Int64
	latest    atomic.Pointer[model.Snapshot]

	mu          sync.RWMutex
	lastSuccess time.Time
	lastAttempt time.Time
	lastErr     error

	wg sync.WaitGroup
}

// NewRefresher 创建刷新器，recorder 可以为 nil
func NewRefresher(
	gateway AccountGateway,
	analyzer Analyzer,
	publisher Publisher,
	recorder Recorder,
	logger *zap.Logger,
	opts Options,
) *Refresher {
	if recorder == nil {
		recorder = nopRecorder{}
	}

	r := &Refresher{
		gateway:   gateway,
		analyzer:  analyzer,
		publisher: publisher,
		recorder:  recorder,
		logger:    logger,
		opts:      opts.withDefaults(),
	}
	r.resetCountdown()
	return r
}

// Start 立即刷新一次，之后每个 tick 倒计时减一，归零时触发刷新
// 阻塞直到 ctx 取消，返回前等待进行中的刷新结束
func (r *Refresher) Start(ctx context.Context) error {
	r.logger.Info("启动账户数据刷新",
		zap.Duration("刷新间隔", r.opts.RefreshInterval),
		zap.Duration("超时", r.opts.FetchTimeout),
		zap.Int("成交条数", r.opts.TradeLimit))

	ticker := time.NewTicker(r.opts.TickInterval)
	defer ticker.Stop()
	defer r.wg.Wait()

	r.Trigger()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Tick()
		}
	}
}

// Tick 倒计时减一，从1减到0时触发自动刷新
// 刷新进行中时倒计时继续减为负数，不再重复触发，刷新结束后重置
func (r *Refresher) Tick() {
	if r.countdown.Add(-1) == 0 {
		r.Trigger()
	}
}

// Trigger 异步触发一次刷新，已有刷新在进行时返回 false
func (r *Refresher) Trigger() bool {
	if !r.state.CompareAndSwap(int32(StateIdle), int32(StateFetching)) {
		r.recorder.IncSkipped()
		return false
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.runCycle()
	}()
	return true
}

// Refresh 同步执行一次刷新
// 返回 false 表示已有刷新在进行，本次被忽略
func (r *Refresher) Refresh() (bool, error) {
	if !r.state.CompareAndSwap(int32(StateIdle), int32(StateFetching)) {
		r.recorder.IncSkipped()
		return false, nil
	}
	return true, r.runCycle()
}

// Latest 返回最近一次成功的快照，尚未成功过时为 nil
func (r *Refresher) Latest() *model.Snapshot {
	return r.latest.Load()
}

// Status 返回当前状态
func (r *Refresher) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := Status{
		State:       State(r.state.Load()).String(),
		Countdown:   max(r.countdown.Load(), 0),
		LastSuccess: r.lastSuccess,
		LastAttempt: r.lastAttempt,
	}
	if r.lastErr != nil {
		status.LastError = r.lastErr.Error()
	}
	return status
}

// runCycle 调用方已将状态置为 Fetching
func (r *Refresher) runCycle() error {
	defer r.state.Store(int32(StateIdle))
	defer r.resetCountdown()

	cycleID := uuid.NewString()
	started := time.Now()
	logger := r.logger.With(zap.String("cycle", cycleID))
	logger.Debug("开始刷新数据")

	account, positions, trades, err := r.fetchAll()

	r.mu.Lock()
	r.lastAttempt = started
	r.mu.Unlock()

	if err != nil {
		err = fmt.Errorf("%w: %w", ErrTransportFailure, err)
		r.mu.Lock()
		r.lastErr = err
		r.mu.Unlock()

		r.recorder.ObserveRefresh("failed", time.Since(started))
		logger.Error("数据刷新失败，保留上次数据", zap.Error(err))
		r.publisher.Publish(events.NewErrorEvent(err))
		return err
	}

	snapshot := r.analyzer.Analyze(account, positions, trades)
	snapshot.CycleID = cycleID
	snapshot.FetchedAt = time.Now()
	r.latest.Store(snapshot)

	r.mu.Lock()
	r.lastSuccess = snapshot.FetchedAt
	r.lastErr = nil
	r.mu.Unlock()

	r.recorder.ObserveRefresh("success", time.Since(started))
	logger.Info("数据刷新完成",
		zap.String("wallet_balance", snapshot.Account.WalletBalance.String()),
		zap.String("total_profit", snapshot.Account.TotalProfit.String()),
		zap.String("total_profit_rate", snapshot.Account.TotalProfitRate.StringFixed(2)),
		zap.Int("active_positions", len(snapshot.ActivePositions)),
		zap.Int("trades", len(snapshot.Trades)),
		zap.Duration("耗时", time.Since(started)))

	for _, issue := range snapshot.InvalidPositions {
		logger.Warn("持仓数据无效，已从展示列表移除",
			zap.String("symbol", issue.Symbol),
			zap.String("reason", issue.Reason))
	}

	r.publisher.Publish(events.NewSnapshotEvent(snapshot))
	return nil
}

type fetchResult struct {
	account   model.AccountSnapshot
	positions []model.PositionRecord
	trades    []model.TradeRecord
	err       error
}

// fetchAll 并发拉取账户、持仓、成交，任一失败或超时即整体失败
// 网关不响应 ctx 时也在超时后返回，遗留的请求在后台自行结束
func (r *Refresher) fetchAll() (model.AccountSnapshot, []model.PositionRecord, []model.TradeRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.FetchTimeout)
	defer cancel()

	done := make(chan fetchResult, 1)
	go func() {
		var res fetchResult
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			res.account, err = r.gateway.FetchAccount(gctx)
			return err
		})
		g.Go(func() error {
			var err error
			res.positions, err = r.gateway.FetchPositions(gctx)
			return err
		})
		g.Go(func() error {
			var err error
			res.trades, err = r.gateway.FetchTrades(gctx, r.opts.TradeLimit)
			return err
		})
		res.err = g.Wait()
		done <- res
	}()

	select {
	case res := <-done:
		return res.account, res.positions, res.trades, res.err
	case <-ctx.Done():
		select {
		case res := <-done:
			return res.account, res.positions, res.trades, res.err
		default:
		}
		return model.AccountSnapshot{}, nil, nil, fmt.Errorf("等待交易所响应超时 (%s): %w", r.opts.FetchTimeout, ctx.Err())
	}
}

func (r *Refresher) resetCountdown() {
	ticks := int64(r.opts.RefreshInterval / r.opts.TickInterval)
	if ticks < 1 {
		ticks = 1
	}
	r.countdown.Store(ticks)
}
