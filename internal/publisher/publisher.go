// Package publisher 把快照写入共享存储
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"yarnitor/internal/common"

	"go.uber.org/zap"
)

// DefaultKey 快照在存储中的键
const DefaultKey = "yarnitor:status"

// SnapshotPublisher 序列化快照并整体覆盖存储中的旧快照
type SnapshotPublisher struct {
	store     Store
	key       string
	notifiers []Notifier
	logger    *zap.Logger
}

// NewSnapshotPublisher 创建 publisher，key 为空时使用 DefaultKey
func NewSnapshotPublisher(store Store, key string, logger *zap.Logger, notifiers ...Notifier) *SnapshotPublisher {
	if key == "" {
		key = DefaultKey
	}
	return &SnapshotPublisher{
		store:     store,
		key:       key,
		notifiers: notifiers,
		logger:    logger,
	}
}

// Key 返回存储键
func (p *SnapshotPublisher) Key() string {
	return p.key
}

// Publish 写入快照，写入成功后通知各 notifier
func (p *SnapshotPublisher) Publish(ctx context.Context, snapshot *common.Snapshot) error {
	if snapshot == nil {
		return fmt.Errorf("nil snapshot")
	}
	if snapshot.Current == nil {
		snapshot.Current = map[string]*common.Application{}
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := p.store.Set(ctx, p.key, data); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	logger := common.LoggerFromContextOr(ctx, p.logger)
	logger.Info("Snapshot published",
		zap.String("key", p.key),
		zap.Int("applications", len(snapshot.Current)),
		zap.String("refresh_datetime", snapshot.RefreshDatetime))

	summary := NewSummary(p.key, snapshot)
	for _, n := range p.notifiers {
		if err := n.Notify(ctx, summary); err != nil {
			logger.Warn("Failed to send snapshot notification", zap.Error(err))
		}
	}
	return nil
}

// Latest 读取最近一次发布的快照，尚未发布时返回 ErrSnapshotNotFound
func (p *SnapshotPublisher) Latest(ctx context.Context) (*common.Snapshot, error) {
	data, err := p.store.Get(ctx, p.key)
	if err != nil {
		return nil, err
	}
	var snapshot common.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snapshot, nil
}
