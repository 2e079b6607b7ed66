// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"

	"studymind-go/internal/config"
	"studymind-go/pkg/log"
	"studymind-go/pkg/tasks"
)

// maxAttempts 次失败后提交 offset，放弃该任务。计数跨进程重启累计。
const maxAttempts = 3

// TaskProcessor 由资料处理流水线实现，使消费者与具体实现解耦。
type TaskProcessor interface {
	ProcessTask(ctx context.Context, task tasks.MaterialProcessingTask) error
}

// AttemptCounter 记录任务的失败次数。
type AttemptCounter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

// Producer 把资料处理任务写入 Kafka。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	p := &Producer{writer: &kafka.Writer{
		Addr:     kafka.TCP(strings.Split(cfg.Brokers, ",")...),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}}
	log.Info("Kafka 生产者初始化成功")
	return p
}

// PublishMaterialTask 发送一个资料处理任务，以 material id 作为消息 key。
func (p *Producer) PublishMaterialTask(ctx context.Context, task tasks.MaterialProcessingTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.MaterialID),
		Value: taskBytes,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// StartConsumer 启动一个 Kafka 消费者处理资料任务，直到 ctx 被取消。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor TaskProcessor, counter AttemptCounter) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  strings.Split(cfg.Brokers, ","),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("Kafka 消费者已停止")
			} else {
				log.Error("从 Kafka 读取消息失败", err)
			}
			return
		}

		log.Infof("收到 Kafka 消息: offset %d", m.Offset)
		if handleMessage(ctx, m.Value, processor, counter) {
			if err := r.CommitMessages(context.Background(), m); err != nil {
				log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
			}
		}
	}
}

// retryBackoff 是同一条消息两次处理之间的基础等待时间，第 n 次失败后等待 n 倍。
var retryBackoff = 2 * time.Second

// handleMessage 处理一条消息，失败时在本进程内重试，返回是否应该提交 offset。
// kafka-go 的消费组不会重新投递未提交的消息，因此重试必须在这里完成。
// 失败次数同时写入 Redis，进程重启后重新收到的消息会接着计数。
// 只有 ctx 被取消（停机）时才返回 false。
func handleMessage(ctx context.Context, value []byte, processor TaskProcessor, counter AttemptCounter) bool {
	var task tasks.MaterialProcessingTask
	if err := json.Unmarshal(value, &task); err != nil {
		// 消息格式错误，直接提交，避免阻塞队列
		log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(value))
		return true
	}

	attemptsKey := fmt.Sprintf("kafka:attempts:%s", task.MaterialID)
	log.Infof("开始处理资料任务: MaterialID=%s, FileName=%s", task.MaterialID, task.FileName)
	for local := int64(1); ; local++ {
		err := processor.ProcessTask(ctx, task)
		if err == nil {
			log.Infof("资料任务处理成功: MaterialID=%s", task.MaterialID)
			_ = counter.Reset(ctx, attemptsKey)
			return true
		}
		if ctx.Err() != nil {
			log.Warnf("停机中断资料任务，不提交 offset: MaterialID=%s", task.MaterialID)
			return false
		}

		attempts := local
		if n, incErr := counter.Incr(ctx, attemptsKey); incErr != nil {
			log.Warnf("记录失败次数失败, 使用本地计数: MaterialID=%s: %v", task.MaterialID, incErr)
		} else if n > attempts {
			attempts = n
		}
		log.Errorf("处理资料任务失败(第 %d 次): MaterialID=%s, Error: %v", attempts, task.MaterialID, err)
		if attempts >= maxAttempts {
			log.Errorf("资料任务多次失败(>=%d)，提交 offset 终止重试: MaterialID=%s", maxAttempts, task.MaterialID)
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(retryBackoff * time.Duration(local)):
		}
	}
}

// RedisAttemptCounter 用 Redis INCR 计数，计数键 24 小时后过期。
type RedisAttemptCounter struct {
	RDB *redis.Client
}

func (c RedisAttemptCounter) Incr(ctx context.Context, key string) (int64, error) {
	n, err := c.RDB.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	_ = c.RDB.Expire(ctx, key, 24*time.Hour).Err()
	return n, nil
}

func (c RedisAttemptCounter) Reset(ctx context.Context, key string) error {
	return c.RDB.Del(ctx, key).Err()
}
