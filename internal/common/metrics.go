package common

import (
	"runtime"
	"sync"
	"time"
)

// PollerMetrics 轮询进程指标
type PollerMetrics struct {
	mu sync.RWMutex

	StartTime    time.Time `json:"start_time"`
	CyclesTotal  int64     `json:"cycles_total"`
	CyclesFailed int64     `json:"cycles_failed"`

	LastCycleID       string        `json:"last_cycle_id"`
	LastCycleDuration time.Duration `json:"last_cycle_duration"`
	LastError         string        `json:"last_error"`
	LastRefresh       string        `json:"last_refresh"`

	// 上一次成功周期中各状态的应用数
	ApplicationStates map[string]int `json:"application_states"`
}

// NewPollerMetrics 创建指标实例
func NewPollerMetrics() *PollerMetrics {
	return &PollerMetrics{
		StartTime:         time.Now(),
		ApplicationStates: make(map[string]int),
	}
}

// RecordSuccess 记录成功的周期
func (m *PollerMetrics) RecordSuccess(cycleID string, duration time.Duration, snapshot *Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CyclesTotal++
	m.LastCycleID = cycleID
	m.LastCycleDuration = duration
	m.LastError = ""
	m.LastRefresh = snapshot.RefreshDatetime
	m.ApplicationStates = snapshot.StateCounts()
}

// RecordFailure 记录失败（被跳过）的周期
func (m *PollerMetrics) RecordFailure(cycleID string, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CyclesTotal++
	m.CyclesFailed++
	m.LastCycleID = cycleID
	m.LastCycleDuration = duration
	m.LastError = err.Error()
}

// LastErr 返回上一个周期的错误信息，成功时为空
func (m *PollerMetrics) LastErr() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastError
}

// GetSnapshot 获取指标快照
func (m *PollerMetrics) GetSnapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make(map[string]int, len(m.ApplicationStates))
	for k, v := range m.ApplicationStates {
		states[k] = v
	}

	return map[string]interface{}{
		"uptime_seconds":         time.Since(m.StartTime).Seconds(),
		"cycles_total":           m.CyclesTotal,
		"cycles_failed":          m.CyclesFailed,
		"last_cycle_id":          m.LastCycleID,
		"last_cycle_duration_ms": float64(m.LastCycleDuration.Nanoseconds()) / 1e6,
		"last_error":             m.LastError,
		"last_refresh":           m.LastRefresh,
		"application_states":     states,
		"goroutines":             runtime.NumGoroutine(),
	}
}
