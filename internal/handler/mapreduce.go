package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"yarnitor/internal/common"
)

const mapReduceAPIVersion = "v1"

// MapReduceHandler 通过 MapReduce ApplicationMaster REST API 获取 map/reduce 进度
type MapReduceHandler struct {
	trackingURL   string
	applicationID string
	client        *TrackingClient
}

// NewMapReduceHandler 创建 MapReduce handler
func NewMapReduceHandler(trackingURL, applicationID string, client *TrackingClient) ApplicationHandler {
	return &MapReduceHandler{
		trackingURL:   strings.TrimRight(trackingURL, "/"),
		applicationID: applicationID,
		client:        client,
	}
}

// Jobs 获取 job 列表
func (h *MapReduceHandler) Jobs(ctx context.Context) ([]MapReduceJob, error) {
	if h.trackingURL == "" {
		return nil, errors.New("application has no tracking url")
	}

	u := fmt.Sprintf("%s/ws/%s/mapreduce/jobs", h.trackingURL, mapReduceAPIVersion)
	var resp MapReduceJobs
	if err := h.client.GetJSON(ctx, u, nil, h.applicationID, &resp); err != nil {
		return nil, err
	}

	jobs := resp.List()
	for i := range jobs {
		if err := jobs[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid mapreduce job in %s: %w", u, err)
		}
	}
	return jobs, nil
}

// GenerateStandardizedInfo 没有 job 时保留 RM 的进度记录
func (h *MapReduceHandler) GenerateStandardizedInfo(ctx context.Context, app common.RawApplication) (*common.Application, error) {
	info := StandardizedInfo(app)

	jobs, err := h.Jobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch mapreduce jobs: %w", err)
	}
	if len(jobs) > 0 {
		info.Progress = []common.Progress{AggregateMaps(jobs), AggregateReduces(jobs)}
	}

	return info, nil
}
