package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"yarnitor/internal/common"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockRedisClient struct {
	mock.Mock
}

func (m *mockRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	args := m.Called(ctx, key)
	return args.Get(0).(*redis.StringCmd)
}

func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	args := m.Called(ctx, key, value, expiration)
	return args.Get(0).(*redis.StatusCmd)
}

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *mockWriter) Close() error {
	return m.Called().Error(0)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, error) { return nil, errors.New("down") }
func (failingStore) Set(context.Context, string, []byte) error   { return errors.New("down") }

type recordingNotifier struct {
	summaries []Summary
	err       error
}

func (n *recordingNotifier) Notify(_ context.Context, s Summary) error {
	n.summaries = append(n.summaries, s)
	return n.err
}

func testSnapshot() *common.Snapshot {
	return &common.Snapshot{
		Current: map[string]*common.Application{
			"application_1_0001": {ID: "application_1_0001", State: common.ApplicationStateRunning, Job: "1",
				Progress: []common.Progress{{Name: "yarn-progress", Completed: 40, Total: 100}}},
			"application_1_0002": {ID: "application_1_0002", State: common.ApplicationStateNonResponsive, Job: "1"},
		},
		ClusterMetrics:  common.ClusterMetrics{"clusterMetrics": map[string]interface{}{"appsRunning": float64(2)}},
		RefreshDatetime: "2026-10-14T08:00:00.000000Z",
	}
}

func TestRedisStoreGet(t *testing.T) {
	client := new(mockRedisClient)
	client.On("Get", mock.Anything, "yarnitor:status").Return(redis.NewStringResult(`{"current":{}}`, nil)).Once()
	client.On("Get", mock.Anything, "missing").Return(redis.NewStringResult("", redis.Nil)).Once()
	client.On("Get", mock.Anything, "broken").Return(redis.NewStringResult("", errors.New("connection refused"))).Once()

	store := NewRedisStoreWithClient(client)

	value, err := store.Get(context.Background(), "yarnitor:status")
	require.NoError(t, err)
	assert.Equal(t, `{"current":{}}`, string(value))

	_, err = store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrSnapshotNotFound)

	_, err = store.Get(context.Background(), "broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrSnapshotNotFound)

	client.AssertExpectations(t)
}

func TestRedisStoreSet(t *testing.T) {
	client := new(mockRedisClient)
	client.On("Set", mock.Anything, "yarnitor:status", []byte("v1"), time.Duration(0)).
		Return(redis.NewStatusResult("OK", nil)).Once()
	client.On("Set", mock.Anything, "yarnitor:status", []byte("v2"), time.Duration(0)).
		Return(redis.NewStatusResult("", errors.New("READONLY"))).Once()

	store := NewRedisStoreWithClient(client)
	assert.NoError(t, store.Set(context.Background(), "yarnitor:status", []byte("v1")))
	assert.Error(t, store.Set(context.Background(), "yarnitor:status", []byte("v2")))
	client.AssertExpectations(t)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Get(context.Background(), "k")
	assert.ErrorIs(t, err, common.ErrSnapshotNotFound)

	require.NoError(t, store.Set(context.Background(), "k", []byte("a")))
	require.NoError(t, store.Set(context.Background(), "k", []byte("b")))
	value, err := store.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "b", string(value))
}

func TestPublishWritesSnapshotJSON(t *testing.T) {
	store := NewMemoryStore()
	p := NewSnapshotPublisher(store, "", zap.NewNop())
	assert.Equal(t, DefaultKey, p.Key())

	require.NoError(t, p.Publish(context.Background(), testSnapshot()))

	data, err := store.Get(context.Background(), DefaultKey)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "current")
	assert.Contains(t, raw, "cluster-metrics")
	assert.Contains(t, raw, "refresh-datetime")

	latest, err := p.Latest(context.Background())
	require.NoError(t, err)
	assert.Len(t, latest.Current, 2)
	assert.Equal(t, "2026-10-14T08:00:00.000000Z", latest.RefreshDatetime)
	assert.Equal(t, []common.Progress{{Name: "yarn-progress", Completed: 40, Total: 100}},
		latest.Current["application_1_0001"].Progress)
}

func TestPublishEmptyCurrent(t *testing.T) {
	store := NewMemoryStore()
	p := NewSnapshotPublisher(store, "k", zap.NewNop())
	require.NoError(t, p.Publish(context.Background(), &common.Snapshot{RefreshDatetime: "2026-10-14T08:00:00.000000Z"}))

	data, err := store.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"current":{}`)
}

func TestLatestBeforePublish(t *testing.T) {
	p := NewSnapshotPublisher(NewMemoryStore(), "k", zap.NewNop())
	_, err := p.Latest(context.Background())
	assert.ErrorIs(t, err, common.ErrSnapshotNotFound)
}

func TestPublishStoreFailureSkipsNotifiers(t *testing.T) {
	notifier := &recordingNotifier{}
	p := NewSnapshotPublisher(failingStore{}, "k", zap.NewNop(), notifier)

	assert.Error(t, p.Publish(context.Background(), testSnapshot()))
	assert.Empty(t, notifier.summaries)
}

func TestPublishNotifierErrorIsIgnored(t *testing.T) {
	failing := &recordingNotifier{err: errors.New("broker down")}
	ok := &recordingNotifier{}
	p := NewSnapshotPublisher(NewMemoryStore(), "k", zap.NewNop(), failing, ok)

	require.NoError(t, p.Publish(context.Background(), testSnapshot()))
	require.Len(t, ok.summaries, 1)
	assert.Equal(t, Summary{Key: "k", RefreshDatetime: "2026-10-14T08:00:00.000000Z", Applications: 2, NonResponsive: 1},
		ok.summaries[0])
}

func TestKafkaNotifier(t *testing.T) {
	writer := new(mockWriter)
	writer.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
		if len(msgs) != 1 || string(msgs[0].Key) != "yarnitor:status" {
			return false
		}
		var s Summary
		return json.Unmarshal(msgs[0].Value, &s) == nil && s.Applications == 2 && s.NonResponsive == 1
	})).Return(nil).Once()
	writer.On("Close").Return(nil).Once()

	n := NewKafkaNotifierWithWriter(writer)
	require.NoError(t, n.Notify(context.Background(), NewSummary("yarnitor:status", testSnapshot())))
	require.NoError(t, n.Close())
	writer.AssertExpectations(t)
}
