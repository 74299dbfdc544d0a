package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"yarnitor/internal/common"
)

// DefaultTrackingTimeout 单个 tracking 请求的超时时间
const DefaultTrackingTimeout = 10 * time.Second

// TrackingClient 访问各应用 tracking 服务（Spark driver / MapReduce AM）的 HTTP 客户端
type TrackingClient struct {
	httpClient *http.Client
	timeout    time.Duration
}

// NewTrackingClient 创建 tracking 客户端，timeout <= 0 时使用默认值
func NewTrackingClient(timeout time.Duration) *TrackingClient {
	if timeout <= 0 {
		timeout = DefaultTrackingTimeout
	}
	return &TrackingClient{
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		timeout: timeout,
	}
}

// GetJSON 获取 rawURL 并解码 JSON 到 out。
// 部分部署在首次访问 tracking url 时需要点击确认页面，这里预置 checked_<appID> cookie。
func (c *TrackingClient) GetJSON(ctx context.Context, rawURL string, params url.Values, applicationID string, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if len(params) > 0 {
		rawURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.AddCookie(&http.Cookie{Name: "checked_" + applicationID, Value: "true"})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to request tracking url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return common.NewHTTPStatusError(common.ErrorTypeTracking, resp.StatusCode, rawURL)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", rawURL, err)
	}
	return nil
}
