package handler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"yarnitor/internal/common"
)

const sparkAPIVersion = "v1"

// SparkHandler 通过 Spark REST API 获取 job 进度
type SparkHandler struct {
	trackingURL   string
	applicationID string
	client        *TrackingClient
}

// NewSparkHandler 创建 Spark handler
func NewSparkHandler(trackingURL, applicationID string, client *TrackingClient) ApplicationHandler {
	return &SparkHandler{
		trackingURL:   strings.TrimRight(trackingURL, "/"),
		applicationID: applicationID,
		client:        client,
	}
}

// Jobs 获取 job 列表，status 为空时返回全部 job
func (h *SparkHandler) Jobs(ctx context.Context, status string) ([]SparkJob, error) {
	if h.trackingURL == "" {
		return nil, errors.New("application has no tracking url")
	}

	u := fmt.Sprintf("%s/api/%s/applications/%s/jobs", h.trackingURL, sparkAPIVersion, url.PathEscape(h.applicationID))
	params := url.Values{}
	if status != "" {
		params.Set("status", status)
	}

	var jobs []SparkJob
	if err := h.client.GetJSON(ctx, u, params, h.applicationID, &jobs); err != nil {
		return nil, err
	}
	for i := range jobs {
		if err := jobs[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid spark job in %s: %w", u, err)
		}
	}
	return jobs, nil
}

// GenerateStandardizedInfo 有运行中的 job 时状态为 RUNNING，否则为 IDLE
func (h *SparkHandler) GenerateStandardizedInfo(ctx context.Context, app common.RawApplication) (*common.Application, error) {
	info := StandardizedInfo(app)

	running, err := h.Jobs(ctx, "running")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch running spark jobs: %w", err)
	}
	all, err := h.Jobs(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch spark jobs: %w", err)
	}

	if len(running) > 0 {
		info.State = common.ApplicationStateRunning
		info.Job = strconv.FormatInt(maxJobID(running), 10)
		info.Progress = []common.Progress{AggregateSparkTasks(ProgressRunningTasks, running)}
	} else {
		info.State = common.ApplicationStateIdle
		info.Job = strconv.FormatInt(maxJobID(all), 10)
		info.Progress = []common.Progress{{Name: ProgressRunningTasks}}
	}
	info.Progress = append(info.Progress, AggregateSparkTasks(ProgressTotal, all))

	return info, nil
}
