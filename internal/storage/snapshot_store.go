package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/life2you_mini/pnlwatch/internal/events"
	"github.com/life2you_mini/pnlwatch/internal/model"
)

// Redis 键
const (
	keyLatestSnapshot = "snapshot:latest"
	channelEvents     = "events"

	defaultKeyPrefix   = "pnlwatch:"
	defaultSnapshotTTL = 10 * time.Minute
	writeTimeout       = 3 * time.Second
)

// ErrSnapshotNotFound Redis 中没有快照（从未刷新成功或已过期）
var ErrSnapshotNotFound = errors.New("快照不存在")

// Commands 存储层用到的 Redis 命令，*redis.Client 满足该接口
type Commands interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// EventMessage 发布到 Redis 频道的事件摘要
type EventMessage struct {
	Type        events.EventType `json:"type"`
	CycleID     string           `json:"cycle_id,omitempty"`
	TotalProfit string           `json:"total_profit,omitempty"`
	Error       string           `json:"error,omitempty"`
	At          time.Time        `json:"at"`
}

// SnapshotStore 把最新快照写入 Redis 并广播事件
// 只保留最新一份，不保存历史
type SnapshotStore struct {
	client    Commands
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewSnapshotStore 创建快照存储，ttl <= 0 时使用默认过期时间
func NewSnapshotStore(client Commands, keyPrefix string, ttl time.Duration, logger *zap.Logger) *SnapshotStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}
	return &SnapshotStore{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		logger:    logger,
	}
}

// LatestKey 最新快照的键
func (s *SnapshotStore) LatestKey() string {
	return s.keyPrefix + keyLatestSnapshot
}

// EventChannel 事件频道
func (s *SnapshotStore) EventChannel() string {
	return s.keyPrefix + channelEvents
}

// SaveLatest 覆盖保存最新快照
func (s *SnapshotStore) SaveLatest(ctx context.Context, snapshot *model.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("序列化快照失败: %w", err)
	}

	if err := s.client.Set(ctx, s.LatestKey(), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("保存快照失败: %w", err)
	}
	return nil
}

// Latest 读取最新快照
func (s *SnapshotStore) Latest(ctx context.Context) (*model.Snapshot, error) {
	data, err := s.client.Get(ctx, s.LatestKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("读取快照失败: %w", err)
	}

	var snapshot model.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("解析快照失败: %w", err)
	}
	return &snapshot, nil
}

// PublishEvent 向事件频道发布事件摘要
func (s *SnapshotStore) PublishEvent(ctx context.Context, ev events.Event) error {
	msg := EventMessage{Type: ev.Type, At: ev.At}
	if ev.Snapshot != nil {
		msg.CycleID = ev.Snapshot.CycleID
		msg.TotalProfit = ev.Snapshot.Account.TotalProfit.String()
	}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}

	if err := s.client.Publish(ctx, s.EventChannel(), data).Err(); err != nil {
		return fmt.Errorf("发布事件失败: %w", err)
	}
	return nil
}

// Handle 事件总线订阅回调
// 快照事件先保存再发布，错误事件只发布；Redis 异常只记录日志
func (s *SnapshotStore) Handle(ev events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if ev.Type == events.EventSnapshot && ev.Snapshot != nil {
		if err := s.SaveLatest(ctx, ev.Snapshot); err != nil {
			s.logger.Warn("写入Redis快照失败", zap.String("cycle", ev.Snapshot.CycleID), zap.Error(err))
		}
	}

	if err := s.PublishEvent(ctx, ev); err != nil {
		s.logger.Warn("发布Redis事件失败", zap.String("type", string(ev.Type)), zap.Error(err))
	}
}

// Close 关闭Redis连接
func (s *SnapshotStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("关闭Redis连接失败: %w", err)
	}
	s.logger.Info("Redis连接已关闭")
	return nil
}
