// Package rmclient 实现带主备故障转移的 ResourceManager REST 客户端
package rmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"yarnitor/internal/common"

	"go.uber.org/zap"
)

const (
	// DefaultMaxHops 单次调用允许的重定向/故障转移次数
	DefaultMaxHops = 5
	// DefaultAPIVersion ResourceManager REST API 版本
	DefaultAPIVersion = "v1"
)

// ResourceManagerClient ResourceManager 客户端
//
// primary 在调用之间保持（粘性），只会被驱动该客户端的单个 goroutine 修改。
type ResourceManagerClient struct {
	hosts      []string
	primary    string
	version    string
	maxHops    int
	httpClient *http.Client
	logger     *zap.Logger
}

// Option 客户端选项
type Option func(*ResourceManagerClient)

// WithHTTPClient 使用自定义 HTTP 客户端
func WithHTTPClient(client *http.Client) Option {
	return func(rm *ResourceManagerClient) {
		rm.httpClient = client
	}
}

// WithMaxHops 设置单次调用的最大跳转次数
func WithMaxHops(hops int) Option {
	return func(rm *ResourceManagerClient) {
		if hops > 0 {
			rm.maxHops = hops
		}
	}
}

// WithAPIVersion 设置 REST API 版本
func WithAPIVersion(version string) Option {
	return func(rm *ResourceManagerClient) {
		if version != "" {
			rm.version = version
		}
	}
}

// NewResourceManagerClient 创建新的 ResourceManager 客户端，hosts 的第一个作为初始主节点
func NewResourceManagerClient(hosts []string, logger *zap.Logger, opts ...Option) (*ResourceManagerClient, error) {
	clean := common.CleanupHostList(hosts)
	if len(clean) == 0 {
		return nil, common.NewValidationError("hosts", "at least one resource manager host is required", hosts)
	}

	rm := &ResourceManagerClient{
		hosts:   clean,
		primary: clean[0],
		version: DefaultAPIVersion,
		maxHops: DefaultMaxHops,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(rm)
	}

	// 3xx 由故障转移逻辑自己处理
	client := *rm.httpClient
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	rm.httpClient = &client

	return rm, nil
}

// Primary 返回当前主节点
func (rm *ResourceManagerClient) Primary() string {
	return rm.primary
}

// ListApplications 获取指定状态的应用列表
func (rm *ResourceManagerClient) ListApplications(ctx context.Context, states ...string) (*common.RawAppList, error) {
	params := url.Values{}
	if len(states) > 0 {
		params.Set("state", strings.Join(states, ","))
	}

	var list common.RawAppList
	if err := rm.get(ctx, "/cluster/apps", params, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetClusterMetrics 获取集群指标，保留完整响应 {"clusterMetrics": {...}}
func (rm *ResourceManagerClient) GetClusterMetrics(ctx context.Context) (common.ClusterMetrics, error) {
	metrics := common.ClusterMetrics{}
	if err := rm.get(ctx, "/cluster/metrics", nil, &metrics); err != nil {
		return nil, err
	}
	return metrics, nil
}

// get 对 {host}/ws/{version}{path} 执行一次逻辑 GET，按需故障转移
func (rm *ResourceManagerClient) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	working := make([]string, len(rm.hosts))
	copy(working, rm.hosts)

	hops := 0
	for {
		resp, err := rm.do(ctx, rm.primary, path, params)
		if ctx.Err() != nil {
			if resp != nil {
				resp.Body.Close()
			}
			return ctx.Err()
		}

		var next string
		switch {
		case err != nil || resp.StatusCode >= http.StatusBadRequest:
			failed := rm.primary
			if err == nil {
				err = common.NewHTTPStatusError(common.ErrorTypeResourceManager, resp.StatusCode, failed+path)
				resp.Body.Close()
			}
			working = removeHost(working, failed)
			if len(working) == 0 {
				rm.logger.Error("All resource manager hosts failed",
					zap.String("path", path), zap.Error(err))
				return fmt.Errorf("%w: %v", common.ErrResourceManagerUnavailable, err)
			}
			next = working[0]
			rm.logger.Warn("Resource manager request failed, failing over",
				zap.String("failed", failed),
				zap.String("next", next),
				zap.Error(err))
		default:
			target, ok := redirectTarget(resp)
			if !ok {
				defer resp.Body.Close()
				if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
					return fmt.Errorf("failed to decode response from %s: %w", rm.primary, err)
				}
				return nil
			}
			resp.Body.Close()
			// 发出跳转的节点不是主节点，本次调用内不再回退到它
			working = removeHost(working, rm.primary)
			next = target
			rm.logger.Info("Resource manager redirected to new primary",
				zap.String("from", rm.primary),
				zap.String("to", next))
		}

		hops++
		if hops > rm.maxHops {
			return fmt.Errorf("%w: %d hops for %s", common.ErrTooManyRedirects, rm.maxHops, path)
		}
		rm.primary = next
	}
}

func (rm *ResourceManagerClient) do(ctx context.Context, host, path string, params url.Values) (*http.Response, error) {
	u := fmt.Sprintf("%s/ws/%s%s", host, rm.version, path)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := rm.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

// redirectTarget 解析主备切换信号：Refresh 头 "<seconds>; url=<new-url>"，
// 或 3xx 响应的 Location 头，返回新主节点的 scheme://host
func redirectTarget(resp *http.Response) (string, bool) {
	if refresh := resp.Header.Get("Refresh"); refresh != "" {
		if target, ok := ParseRefreshHeader(refresh); ok {
			return target, true
		}
	}
	if resp.StatusCode >= http.StatusMultipleChoices && resp.StatusCode < http.StatusBadRequest {
		if location := resp.Header.Get("Location"); location != "" {
			return baseURL(location)
		}
	}
	return "", false
}

// ParseRefreshHeader 从 Refresh 头中提取新主节点的 scheme://host
func ParseRefreshHeader(value string) (string, bool) {
	_, rest, found := strings.Cut(value, ";")
	if !found {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	if len(rest) < 4 || !strings.EqualFold(rest[:4], "url=") {
		return "", false
	}
	return baseURL(strings.Trim(strings.TrimSpace(rest[4:]), `"'`))
}

func baseURL(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return u.Scheme + "://" + u.Host, true
}

func removeHost(hosts []string, host string) []string {
	remaining := hosts[:0]
	for _, h := range hosts {
		if h != host {
			remaining = append(remaining, h)
		}
	}
	return remaining
}
