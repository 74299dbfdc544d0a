// Package poller 周期性采集集群状态并发布快照
package poller

import (
	"context"
	"fmt"
	"time"

	"yarnitor/internal/common"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TimestampLayout 快照时间格式，UTC 并以 Z 结尾
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// DefaultInterval 两个周期之间的等待时间
const DefaultInterval = 10 * time.Second

// ResourceManager 轮询用到的 ResourceManager 操作
type ResourceManager interface {
	ListApplications(ctx context.Context, states ...string) (*common.RawAppList, error)
	GetClusterMetrics(ctx context.Context) (common.ClusterMetrics, error)
}

// Fetcher 把应用列表转换为标准化的应用信息
type Fetcher interface {
	Build(ctx context.Context, list *common.RawAppList) (map[string]*common.Application, error)
}

// Publisher 发布快照
type Publisher interface {
	Publish(ctx context.Context, snapshot *common.Snapshot) error
}

// Poller 顺序执行轮询周期，单个周期失败不会终止循环
type Poller struct {
	rm        ResourceManager
	fetcher   Fetcher
	publisher Publisher
	interval  time.Duration
	metrics   *common.PollerMetrics
	logger    *zap.Logger

	now  func() time.Time
	last time.Time
}

// Option Poller 选项
type Option func(*Poller)

// WithInterval 设置轮询间隔
func WithInterval(interval time.Duration) Option {
	return func(p *Poller) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

// WithMetrics 设置指标记录器
func WithMetrics(metrics *common.PollerMetrics) Option {
	return func(p *Poller) {
		p.metrics = metrics
	}
}

// WithClock 替换时间来源
func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		p.now = now
	}
}

// NewPoller 创建 Poller
func NewPoller(rm ResourceManager, fetcher Fetcher, publisher Publisher, logger *zap.Logger, opts ...Option) *Poller {
	p := &Poller{
		rm:        rm,
		fetcher:   fetcher,
		publisher: publisher,
		interval:  DefaultInterval,
		metrics:   common.NewPollerMetrics(),
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Metrics 返回指标记录器
func (p *Poller) Metrics() *common.PollerMetrics {
	return p.metrics
}

// Run 循环执行周期直到 ctx 结束，每次发布完成后等待一个间隔
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("Starting poller", zap.Duration("interval", p.interval))

	for {
		if err := p.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			p.logger.Error("Poll cycle failed, skipping", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			p.logger.Info("Poller stopped")
			return nil
		case <-time.After(p.interval):
		}
	}

	p.logger.Info("Poller stopped")
	return nil
}

// RunOnce 执行一个完整周期。任何阶段失败都不会写入快照。
func (p *Poller) RunOnce(ctx context.Context) (err error) {
	cycleID := uuid.NewString()
	logger := p.logger.With(zap.String("cycle_id", cycleID))
	ctx = common.ContextWithLogger(ctx, logger)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("poll cycle panicked: %v", r)
		}
		if err != nil {
			p.metrics.RecordFailure(cycleID, time.Since(start), err)
		}
	}()

	logger.Debug("Starting poll cycle")

	apps, err := p.rm.ListApplications(ctx, common.ApplicationStateRunning)
	if err != nil {
		return fmt.Errorf("failed to list applications: %w", err)
	}

	current, err := p.fetcher.Build(ctx, apps)
	if err != nil {
		return fmt.Errorf("failed to fetch application details: %w", err)
	}

	metrics, err := p.rm.GetClusterMetrics(ctx)
	if err != nil {
		return fmt.Errorf("failed to get cluster metrics: %w", err)
	}

	snapshot := &common.Snapshot{
		Current:         current,
		ClusterMetrics:  metrics,
		RefreshDatetime: p.timestamp(),
	}
	if err := p.publisher.Publish(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}

	duration := time.Since(start)
	p.metrics.RecordSuccess(cycleID, duration, snapshot)
	logger.Info("Poll cycle completed",
		zap.Int("applications", len(current)),
		zap.Duration("duration", duration))
	return nil
}

// timestamp 返回不早于上一次的 UTC 时间
func (p *Poller) timestamp() string {
	t := p.now().UTC()
	if t.Before(p.last) {
		t = p.last
	}
	p.last = t
	return t.Format(TimestampLayout)
}

