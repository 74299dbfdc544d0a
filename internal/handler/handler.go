// Package handler 把 ResourceManager 的应用信息和各类型 tracking 服务的 job 数据
// 转换为统一的 Application 记录
package handler

import (
	"context"

	"yarnitor/internal/common"
)

// ApplicationHandler 生成标准化应用信息
type ApplicationHandler interface {
	GenerateStandardizedInfo(ctx context.Context, app common.RawApplication) (*common.Application, error)
}

// Factory 由 (trackingURL, applicationID) 构造某一类型的 handler
type Factory func(trackingURL, applicationID string, client *TrackingClient) ApplicationHandler

// GenericHandler 兜底 handler，只使用 ResourceManager 自己的信息
type GenericHandler struct{}

// NewGenericHandler 创建兜底 handler
func NewGenericHandler(_, _ string, _ *TrackingClient) ApplicationHandler {
	return &GenericHandler{}
}

// GenerateStandardizedInfo 复制固定字段，并以 RM 百分比作为唯一的进度记录
func (h *GenericHandler) GenerateStandardizedInfo(_ context.Context, app common.RawApplication) (*common.Application, error) {
	return StandardizedInfo(app), nil
}

// StandardizedInfo 生成不需要访问 tracking 服务的基础记录
func StandardizedInfo(app common.RawApplication) *common.Application {
	return &common.Application{
		ID:              app.ID,
		Name:            app.Name,
		User:            app.User,
		ApplicationType: app.ApplicationType,
		Queue:           app.Queue,
		StartedTime:     app.StartedTime,
		AllocatedMB:     app.AllocatedMB,
		AllocatedVCores: app.AllocatedVCores,
		TrackingURL:     app.TrackingURL,
		State:           app.State,
		MemorySeconds:   app.MemorySeconds,
		VcoreSeconds:    app.VcoreSeconds,
		Job:             "1",
		Progress:        []common.Progress{YarnProgress(app.Progress)},
	}
}

// Registry applicationType 到 handler 工厂的映射，未注册的类型使用 GenericHandler
type Registry struct {
	factories map[string]Factory
	client    *TrackingClient
}

// NewRegistry 创建空的注册表
func NewRegistry(client *TrackingClient) *Registry {
	if client == nil {
		client = NewTrackingClient(DefaultTrackingTimeout)
	}
	return &Registry{
		factories: make(map[string]Factory),
		client:    client,
	}
}

// NewDefaultRegistry 创建注册了 Spark 和 MapReduce 的注册表
func NewDefaultRegistry(client *TrackingClient) *Registry {
	r := NewRegistry(client)
	r.Register(common.ApplicationTypeSpark, NewSparkHandler)
	r.Register(common.ApplicationTypeMapReduce, NewMapReduceHandler)
	r.Register(common.ApplicationTypeMapRed, NewMapReduceHandler)
	return r
}

// Register 注册 applicationType 对应的工厂
func (r *Registry) Register(applicationType string, factory Factory) {
	r.factories[applicationType] = factory
}

// HandlerFor 选择 app 对应的 handler
func (r *Registry) HandlerFor(app common.RawApplication) ApplicationHandler {
	factory, ok := r.factories[app.ApplicationType]
	if !ok {
		factory = NewGenericHandler
	}
	return factory(app.TrackingURL, app.ID, r.client)
}

// Fallback 返回兜底 handler
func (r *Registry) Fallback(app common.RawApplication) ApplicationHandler {
	return NewGenericHandler(app.TrackingURL, app.ID, r.client)
}
