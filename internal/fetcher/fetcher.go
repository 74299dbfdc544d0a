// Package fetcher 并发获取所有应用的详细进度
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"yarnitor/internal/common"
	"yarnitor/internal/handler"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultWorkers 并发 worker 数
	DefaultWorkers = 16
	// DefaultTimeout 一个周期内获取全部应用的时间预算
	DefaultTimeout = 120 * time.Second
)

// Config fetcher 配置
type Config struct {
	Workers int
	Timeout time.Duration
	// MassFailureDowngrade 全部应用都无响应时把状态改为 UNKNOWN
	MassFailureDowngrade bool
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Workers:              DefaultWorkers,
		Timeout:              DefaultTimeout,
		MassFailureDowngrade: true,
	}
}

// Resolver 为应用选择 handler
type Resolver interface {
	HandlerFor(app common.RawApplication) handler.ApplicationHandler
	Fallback(app common.RawApplication) handler.ApplicationHandler
}

// ConcurrentFetcher 有界并发、带全局超时的应用信息获取器
type ConcurrentFetcher struct {
	config   Config
	resolver Resolver
	logger   *zap.Logger
}

// NewConcurrentFetcher 创建 fetcher
func NewConcurrentFetcher(config Config, resolver Resolver, logger *zap.Logger) *ConcurrentFetcher {
	if config.Workers <= 0 {
		config.Workers = DefaultWorkers
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &ConcurrentFetcher{
		config:   config,
		resolver: resolver,
		logger:   logger,
	}
}

// Build 生成以应用 id 为键的标准化应用信息。
// 单个应用失败时回退为 NON_RESPONSIVE；超过时间预算返回 ErrFetchTimeout。
func (f *ConcurrentFetcher) Build(ctx context.Context, list *common.RawAppList) (map[string]*common.Application, error) {
	apps := list.Applications()
	if len(apps) == 0 {
		f.loggerFor(ctx).Warn("No application data available")
		return map[string]*common.Application{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	results := make([]*common.Application, len(apps))
	g := new(errgroup.Group)
	g.SetLimit(f.config.Workers)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range apps {
			if ctx.Err() != nil {
				break
			}
			i := i
			g.Go(func() error {
				results[i] = f.fetchOne(ctx, apps[i])
				return nil
			})
		}
		_ = g.Wait()
	}()

	// 超时后不再等待卡住的请求，它们的结果在本周期被丢弃
	select {
	case <-done:
	case <-ctx.Done():
	}
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s (%d applications)", common.ErrFetchTimeout, f.config.Timeout, len(apps))
		}
		return nil, err
	}

	result := make(map[string]*common.Application, len(results))
	nonResponsive := 0
	for _, info := range results {
		if info.State == common.ApplicationStateNonResponsive {
			nonResponsive++
		}
		result[info.ID] = info
	}

	// 全部无响应时统一标记为 UNKNOWN
	if f.config.MassFailureDowngrade && nonResponsive == len(results) {
		f.loggerFor(ctx).Warn("All applications are non-responsive, marking states unknown",
			zap.Int("applications", len(results)))
		for _, info := range result {
			info.State = common.ApplicationStateUnknown
		}
	}

	return result, nil
}

// fetchOne 获取单个应用，任何错误都回退到基础信息
func (f *ConcurrentFetcher) fetchOne(ctx context.Context, app common.RawApplication) (info *common.Application) {
	logger := f.loggerFor(ctx)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Application handler panicked",
				zap.String("application_id", app.ID),
				zap.Any("panic", r))
			info = f.fallback(ctx, app)
		}
	}()

	info, err := f.resolver.HandlerFor(app).GenerateStandardizedInfo(ctx, app)
	if err == nil && info != nil {
		return info
	}
	if err == nil {
		err = errors.New("handler returned no application info")
	}

	logger.Error("Error fetching application details",
		zap.String("application_id", app.ID),
		zap.String("application_name", app.Name),
		zap.String("application_type", app.ApplicationType),
		zap.Error(err))
	return f.fallback(ctx, app)
}

func (f *ConcurrentFetcher) fallback(ctx context.Context, app common.RawApplication) *common.Application {
	info, err := f.resolver.Fallback(app).GenerateStandardizedInfo(ctx, app)
	if err != nil || info == nil {
		info = handler.StandardizedInfo(app)
	}
	info.State = common.ApplicationStateNonResponsive
	return info
}

func (f *ConcurrentFetcher) loggerFor(ctx context.Context) *zap.Logger {
	return common.LoggerFromContextOr(ctx, f.logger)
}
