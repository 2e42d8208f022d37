package pubsub

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	pkglog "github.com/weiawesome/wes-io-collab/pkg/log"
)

// topicToKafka maps a room topic onto a shared Kafka topic keyed by room,
// so one partitioned topic per kind serves every room:
//
//	"room.r1.code"   → topic "room-code",   key "r1"
//	"room.r1.cursor" → topic "room-cursor", key "r1"
func topicToKafka(topic string) (kafkaTopic, key string, err error) {
	roomID, kind, err := ParseTopic(topic)
	if err != nil {
		return "", "", err
	}
	return "room-" + kind, roomID, nil
}

// patternToKafka maps room.*.<kind> onto the kind's Kafka topic.
func patternToKafka(pattern string) (string, error) {
	kafkaTopic, _, err := topicToKafka(strings.ReplaceAll(pattern, "*", "_any_"))
	return kafkaTopic, err
}

// kafkaToTopic is the inverse of topicToKafka.
func kafkaToTopic(kafkaTopic string, key []byte) string {
	kind := strings.TrimPrefix(kafkaTopic, "room-")
	return topicPrefix + string(key) + "." + kind
}

type kafkaSubscription struct {
	consumer *kafka.Consumer
	cancel   context.CancelFunc
}

// KafkaPubSub implements PubSub on Kafka. Each subscription owns a consumer
// in its own group so every subscriber sees every message; GroupID must be
// unique per process for the same reason.
type KafkaPubSub struct {
	producer      *kafka.Producer
	subscriptions map[string]*kafkaSubscription
	config        KafkaConfig
	mu            sync.Mutex
	closed        bool
	doneCh        chan struct{}
}

// NewKafkaPubSub creates the producer and makes sure the room topics exist.
func NewKafkaPubSub(ctx context.Context, cfg KafkaConfig) (*KafkaPubSub, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"acks":              "1",
		"linger.ms":         5,
		"compression.type":  "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	kps := &KafkaPubSub{
		producer:      p,
		subscriptions: make(map[string]*kafkaSubscription),
		config:        cfg,
		doneCh:        make(chan struct{}),
	}

	go kps.deliveryReportHandler()

	if err := kps.ensureTopics(ctx); err != nil {
		l := pkglog.L()
		l.Warn().Err(err).Msg("failed to ensure kafka topics (may already exist)")
	}

	return kps, nil
}

func (k *KafkaPubSub) ensureTopics(ctx context.Context) error {
	admin, err := kafka.NewAdminClientFromProducer(k.producer)
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	partitions := k.config.Partitions
	if partitions <= 0 {
		partitions = 4
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var specs []kafka.TopicSpecification
	for _, kind := range []string{KindCode, KindCursor} {
		specs = append(specs, kafka.TopicSpecification{
			Topic:             "room-" + kind,
			NumPartitions:     partitions,
			ReplicationFactor: 1,
		})
	}

	results, err := admin.CreateTopics(ctx, specs)
	if err != nil {
		return fmt.Errorf("failed to create topics: %w", err)
	}

	l := pkglog.L()
	for _, r := range results {
		if r.Error.Code() != kafka.ErrNoError && r.Error.Code() != kafka.ErrTopicAlreadyExists {
			l.Warn().Str(pkglog.FieldTopic, r.Topic).Err(r.Error).Msg("failed to create kafka topic")
		}
	}

	return nil
}

func (k *KafkaPubSub) deliveryReportHandler() {
	l := pkglog.L()
	for e := range k.producer.Events() {
		if m, ok := e.(*kafka.Message); ok && m.TopicPartition.Error != nil {
			l.Warn().Err(m.TopicPartition.Error).Msg("kafka delivery failed")
		}
	}
	close(k.doneCh)
}

// Publish produces payload to the Kafka topic for topic's kind, keyed by room.
func (k *KafkaPubSub) Publish(ctx context.Context, topic string, payload []byte) error {
	kafkaTopic, key, err := topicToKafka(topic)
	if err != nil {
		return err
	}

	k.mu.Lock()
	closed := k.closed
	k.mu.Unlock()
	if closed {
		return ErrClosed
	}

	err = k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &kafkaTopic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(key),
		Value: payload,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}

	return nil
}

// Subscribe consumes the kind's Kafka topic, keeping only the room's key.
func (k *KafkaPubSub) Subscribe(ctx context.Context, topic string) (<-chan *Message, error) {
	kafkaTopic, roomID, err := topicToKafka(topic)
	if err != nil {
		return nil, err
	}
	return k.subscribeToTopic(ctx, topic, kafkaTopic, roomID)
}

// SubscribePattern consumes every room of the pattern's kind.
func (k *KafkaPubSub) SubscribePattern(ctx context.Context, pattern string) (<-chan *Message, error) {
	kafkaTopic, err := patternToKafka(pattern)
	if err != nil {
		return nil, err
	}
	return k.subscribeToTopic(ctx, pattern, kafkaTopic, "")
}

func (k *KafkaPubSub) subscribeToTopic(ctx context.Context, subKey, kafkaTopic, filterRoomID string) (<-chan *Message, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil, ErrClosed
	}
	if existing, ok := k.subscriptions[subKey]; ok {
		existing.cancel()
		existing.consumer.Close()
		delete(k.subscriptions, subKey)
	}

	groupID := k.config.GroupID
	if groupID == "" {
		groupID = "collab"
	}

	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":       k.config.Brokers,
		"group.id":                fmt.Sprintf("%s-%s", groupID, sanitizeGroupID(subKey)),
		"auto.offset.reset":       "latest",
		"enable.auto.commit":      true,
		"auto.commit.interval.ms": 5000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	if err := c.Subscribe(kafkaTopic, nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to subscribe to topic %s: %w", kafkaTopic, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	msgCh := make(chan *Message, subscriptionBuffer)

	k.subscriptions[subKey] = &kafkaSubscription{consumer: c, cancel: cancel}

	go k.consumeMessages(subCtx, c, msgCh, filterRoomID)

	return msgCh, nil
}

func (k *KafkaPubSub) consumeMessages(ctx context.Context, c *kafka.Consumer, msgCh chan<- *Message, filterRoomID string) {
	defer close(msgCh)
	l := pkglog.L()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ev := c.Poll(500)
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			if filterRoomID != "" && string(e.Key) != filterRoomID {
				continue
			}
			if e.TopicPartition.Topic == nil {
				continue
			}

			msg := &Message{
				Topic:   kafkaToTopic(*e.TopicPartition.Topic, e.Key),
				Payload: e.Value,
			}
			select {
			case msgCh <- msg:
			case <-ctx.Done():
				return
			default:
				l.Warn().Str(pkglog.FieldTopic, msg.Topic).Msg("subscriber buffer full, message dropped")
			}

		case kafka.Error:
			l.Warn().Err(e).Int("code", int(e.Code())).Bool("fatal", e.IsFatal()).Msg("kafka consumer error")
			if e.IsFatal() {
				return
			}
		}
	}
}

// Unsubscribe stops the consumer registered under topic (or pattern).
func (k *KafkaPubSub) Unsubscribe(ctx context.Context, topic string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if sub, ok := k.subscriptions[topic]; ok {
		sub.cancel()
		delete(k.subscriptions, topic)
		if err := sub.consumer.Close(); err != nil {
			return fmt.Errorf("failed to close consumer: %w", err)
		}
	}

	return nil
}

// Ping asks the cluster for metadata.
func (k *KafkaPubSub) Ping(ctx context.Context) error {
	timeout := 5 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}
	if _, err := k.producer.GetMetadata(nil, false, int(timeout.Milliseconds())); err != nil {
		return fmt.Errorf("kafka metadata: %w", err)
	}
	return nil
}

// Close closes all consumers, flushes and closes the producer.
func (k *KafkaPubSub) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	for key, sub := range k.subscriptions {
		sub.cancel()
		sub.consumer.Close()
		delete(k.subscriptions, key)
	}
	k.mu.Unlock()

	k.producer.Flush(5000)
	k.producer.Close()
	<-k.doneCh

	return nil
}

var groupIDRegexp = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

func sanitizeGroupID(s string) string {
	return groupIDRegexp.ReplaceAllString(s, "-")
}
