package poller

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"yarnitor/internal/common"
	"yarnitor/internal/fetcher"
	"yarnitor/internal/handler"
	"yarnitor/internal/publisher"
	"yarnitor/internal/rmclient"
	"yarnitor/internal/yarntest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRM struct {
	listErr    error
	metricsErr error
	calls      int32
}

func (f *fakeRM) ListApplications(context.Context, ...string) (*common.RawAppList, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &common.RawAppList{}, nil
}

func (f *fakeRM) GetClusterMetrics(context.Context) (common.ClusterMetrics, error) {
	if f.metricsErr != nil {
		return nil, f.metricsErr
	}
	return common.ClusterMetrics{"clusterMetrics": map[string]interface{}{}}, nil
}

type fakeFetcher struct {
	err error
}

func (f *fakeFetcher) Build(context.Context, *common.RawAppList) (map[string]*common.Application, error) {
	if f.err != nil {
		return nil, f.err
	}
	return map[string]*common.Application{}, nil
}

func newEndToEnd(t *testing.T, srv *yarntest.Server) (*Poller, *publisher.SnapshotPublisher) {
	t.Helper()
	rm, err := rmclient.NewResourceManagerClient([]string{srv.URL}, zap.NewNop())
	require.NoError(t, err)

	f := fetcher.NewConcurrentFetcher(fetcher.DefaultConfig(),
		handler.NewDefaultRegistry(handler.NewTrackingClient(time.Second)), zap.NewNop())
	pub := publisher.NewSnapshotPublisher(publisher.NewMemoryStore(), "", zap.NewNop())
	return NewPoller(rm, f, pub, zap.NewNop()), pub
}

func TestRunOncePublishesSnapshot(t *testing.T) {
	srv := yarntest.NewServer()
	defer srv.Close()

	srv.AddSparkApp("application_1_0001",
		yarntest.SparkJob{JobID: 3, Status: "RUNNING", NumTasks: 10, NumActiveTasks: 2, NumCompletedTasks: 5, NumFailedTasks: 1})
	srv.AddMapReduceApp("application_1_0002",
		yarntest.MapReduceJob{MapsTotal: 4, MapsCompleted: 4, ReducesTotal: 2, ReducesRunning: 1})
	srv.AddApp(common.RawApplication{ID: "application_1_0003", ApplicationType: "TEZ", Progress: 80})
	srv.AddApp(common.RawApplication{ID: "application_1_0004", State: "ACCEPTED"})

	p, pub := newEndToEnd(t, srv)
	require.NoError(t, p.RunOnce(context.Background()))

	snapshot, err := pub.Latest(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshot.Current, 3)
	assert.NotContains(t, snapshot.Current, "application_1_0004")

	assert.Equal(t, "3", snapshot.Current["application_1_0001"].Job)
	assert.Equal(t, []common.Progress{
		{Name: "Maps", Completed: 4, Total: 4},
		{Name: "Reduces", Running: 1, Total: 2},
	}, snapshot.Current["application_1_0002"].Progress)
	assert.Equal(t, []common.Progress{{Name: "yarn-progress", Completed: 80, Total: 100}},
		snapshot.Current["application_1_0003"].Progress)

	assert.Contains(t, snapshot.ClusterMetrics, "clusterMetrics")
	assert.True(t, strings.HasSuffix(snapshot.RefreshDatetime, "Z"), snapshot.RefreshDatetime)
	_, err = time.Parse(time.RFC3339Nano, snapshot.RefreshDatetime)
	assert.NoError(t, err)

	assert.Equal(t, int64(1), p.Metrics().CyclesTotal)
	assert.Equal(t, int64(0), p.Metrics().CyclesFailed)
}

func TestRunOnceNullApps(t *testing.T) {
	srv := yarntest.NewServer()
	defer srv.Close()
	srv.SetNullApps(true)

	p, pub := newEndToEnd(t, srv)
	require.NoError(t, p.RunOnce(context.Background()))

	snapshot, err := pub.Latest(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, snapshot.Current)
	assert.Empty(t, snapshot.Current)
}

func TestFailedCycleKeepsPreviousSnapshot(t *testing.T) {
	srv := yarntest.NewServer()
	defer srv.Close()
	srv.AddApp(common.RawApplication{ID: "application_1_0001", Progress: 10})

	p, pub := newEndToEnd(t, srv)
	require.NoError(t, p.RunOnce(context.Background()))
	before, err := pub.Latest(context.Background())
	require.NoError(t, err)

	srv.SetResourceManagerStatus(http.StatusServiceUnavailable)
	err = p.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrResourceManagerUnavailable)

	after, err := pub.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, int64(1), p.Metrics().CyclesFailed)
	assert.NotEmpty(t, p.Metrics().LastErr())
}

func TestFailedStagesDoNotPublish(t *testing.T) {
	tests := []struct {
		name    string
		rm      *fakeRM
		fetcher *fakeFetcher
	}{
		{"list", &fakeRM{listErr: common.ErrResourceManagerUnavailable}, &fakeFetcher{}},
		{"fetch timeout", &fakeRM{}, &fakeFetcher{err: common.ErrFetchTimeout}},
		{"cluster metrics", &fakeRM{metricsErr: errors.New("boom")}, &fakeFetcher{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := publisher.NewMemoryStore()
			p := NewPoller(tt.rm, tt.fetcher, publisher.NewSnapshotPublisher(store, "k", zap.NewNop()), zap.NewNop())

			assert.Error(t, p.RunOnce(context.Background()))
			_, err := store.Get(context.Background(), "k")
			assert.ErrorIs(t, err, common.ErrSnapshotNotFound)
		})
	}
}

func TestTimestampsAreUTCAndNonDecreasing(t *testing.T) {
	local := time.FixedZone("CST", 8*3600)
	times := []time.Time{
		time.Date(2026, 10, 14, 16, 0, 0, 0, local),
		time.Date(2026, 10, 14, 15, 59, 0, 0, local), // 时钟回拨
		time.Date(2026, 10, 14, 16, 0, 1, 500000000, local),
	}
	i := 0
	clock := func() time.Time {
		t := times[i]
		i++
		return t
	}

	store := publisher.NewMemoryStore()
	pub := publisher.NewSnapshotPublisher(store, "k", zap.NewNop())
	p := NewPoller(&fakeRM{}, &fakeFetcher{}, pub, zap.NewNop(), WithClock(clock))

	var stamps []string
	for range times {
		require.NoError(t, p.RunOnce(context.Background()))
		snapshot, err := pub.Latest(context.Background())
		require.NoError(t, err)
		stamps = append(stamps, snapshot.RefreshDatetime)
	}

	assert.Equal(t, []string{
		"2026-10-14T08:00:00.000000Z",
		"2026-10-14T08:00:00.000000Z",
		"2026-10-14T08:00:01.500000Z",
	}, stamps)
}

func TestRunSurvivesFailedCycles(t *testing.T) {
	rm := &fakeRM{listErr: common.ErrResourceManagerUnavailable}
	p := NewPoller(rm, &fakeFetcher{}, publisher.NewSnapshotPublisher(publisher.NewMemoryStore(), "k", zap.NewNop()),
		zap.NewNop(), WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&rm.calls) >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop after cancel")
	}
}

func TestRunWaitsIntervalAfterPublish(t *testing.T) {
	rm := &fakeRM{}
	p := NewPoller(rm, &fakeFetcher{}, publisher.NewSnapshotPublisher(publisher.NewMemoryStore(), "k", zap.NewNop()),
		zap.NewNop(), WithInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&rm.calls) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&rm.calls))

	cancel()
	assert.NoError(t, <-done)
}
