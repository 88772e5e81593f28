package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/life2you_mini/pnlwatch/internal/model"
)

// EventType 事件类型
type EventType string

const (
	EventSnapshot EventType = "snapshot" // 刷新成功
	EventError    EventType = "error"    // 刷新失败
)

const defaultQueueSize = 64

// Event 发布给订阅者的事件，Snapshot 与 Err 二选一
type Event struct {
	Type     EventType       `json:"type"`
	Snapshot *model.Snapshot `json:"snapshot,omitempty"`
	Err      error           `json:"-"`
	At       time.Time       `json:"at"`
}

// NewSnapshotEvent 创建快照事件
func NewSnapshotEvent(snapshot *model.Snapshot) Event {
	return Event{Type: EventSnapshot, Snapshot: snapshot, At: time.Now()}
}

// NewErrorEvent 创建错误事件
func NewErrorEvent(err error) Event {
	return Event{Type: EventError, Err: err, At: time.Now()}
}

// Handler 订阅回调，快照只读，不可原地修改
type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Broadcaster 发布订阅总线
// Publish 不阻塞，由单独的分发协程按注册顺序依次回调
type Broadcaster struct {
	logger *zap.Logger
	queue  chan Event

	mu     sync.RWMutex
	subs   []subscription
	nextID uint64

	closeOnce sync.Once
	done      chan struct{}
}

// NewBroadcaster 创建事件总线，queueSize<=0 时使用默认值
func NewBroadcaster(logger *zap.Logger, queueSize int) *Broadcaster {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Broadcaster{
		logger: logger,
		queue:  make(chan Event, queueSize),
		done:   make(chan struct{}),
	}
}

// Subscribe 注册回调，返回取消订阅函数
func (b *Broadcaster) Subscribe(handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish 将事件放入分发队列，队列满时丢弃并记录告警
func (b *Broadcaster) Publish(ev Event) {
	select {
	case <-b.done:
		return
	default:
	}

	select {
	case b.queue <- ev:
	default:
		b.logger.Warn("事件队列已满，丢弃事件", zap.String("type", string(ev.Type)))
	}
}

// Run 分发事件直到 ctx 取消或 Close 被调用
func (b *Broadcaster) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case ev := <-b.queue:
			b.dispatch(ev)
		}
	}
}

// Close 停止分发
func (b *Broadcaster) Close() {
	b.closeOnce.Do(func() {
		close(b.done)
	})
}

func (b *Broadcaster) dispatch(ev Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.subs))
	for i, s := range b.subs {
		handlers[i] = s.handler
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.invoke(h, ev)
	}
}

// invoke 单个订阅者 panic 不影响其他订阅者
func (b *Broadcaster) invoke(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("订阅者处理事件发生panic",
				zap.String("type", string(ev.Type)),
				zap.Any("panic", r))
		}
	}()
	h(ev)
}
