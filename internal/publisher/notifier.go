package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"yarnitor/internal/common"

	"github.com/segmentio/kafka-go"
)

// Summary 快照发布后的通知内容
type Summary struct {
	Key             string `json:"key"`
	RefreshDatetime string `json:"refresh-datetime"`
	Applications    int    `json:"applications"`
	NonResponsive   int    `json:"non-responsive"`
}

// NewSummary 从快照生成通知
func NewSummary(key string, snapshot *common.Snapshot) Summary {
	counts := snapshot.StateCounts()
	return Summary{
		Key:             key,
		RefreshDatetime: snapshot.RefreshDatetime,
		Applications:    len(snapshot.Current),
		NonResponsive:   counts[common.ApplicationStateNonResponsive],
	}
}

// Notifier 接收快照发布事件
type Notifier interface {
	Notify(ctx context.Context, summary Summary) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier 把发布事件写入 kafka topic
type KafkaNotifier struct {
	writer messageWriter
}

// NewKafkaNotifier 创建 kafka 通知器
func NewKafkaNotifier(config common.KafkaConfig) *KafkaNotifier {
	return NewKafkaNotifierWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	})
}

// NewKafkaNotifierWithWriter 使用已有的 writer
func NewKafkaNotifierWithWriter(writer messageWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: writer}
}

// Notify 写入一条以存储键为 key 的消息
func (n *KafkaNotifier) Notify(ctx context.Context, summary Summary) error {
	value, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	return n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(summary.Key),
		Value: value,
	})
}

// Close 刷新并关闭 writer
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
