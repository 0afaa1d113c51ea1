package queue

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type KafkaConfig struct {
	ClientID string
	Topic    string
	// Consumer group used by Dequeue. Enqueue-only users may leave it empty.
	GroupID string
	Brokers []string
}

// Kafka topic backed queuer. Offsets are committed only once a message is handled
// or poisoned, a failed message is redelivered from the last committed offset.
type KafkaQueuer struct {
	writer *kafka.Writer
	reader *kafka.Reader
	cfg    KafkaConfig
	mu     sync.Mutex
}

var _ Queuer = (*KafkaQueuer)(nil)

func NewKafkaQueuer(cfg KafkaConfig) (*KafkaQueuer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}

	dialer := &kafka.Dialer{
		ClientID:  cfg.ClientID,
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Transport: &kafka.Transport{
			Dial: func(ctx context.Context, network string, address string) (net.Conn, error) {
				return dialer.DialContext(ctx, network, address)
			},
			ClientID: cfg.ClientID,
		},
	}

	return &KafkaQueuer{writer: writer, cfg: cfg}, nil
}

func (q *KafkaQueuer) Enqueue(ctx context.Context, message any) error {
	ctx, span := tracer.Start(ctx, "Kafka.Enqueue", trace.WithAttributes(
		attribute.String("topic", q.cfg.Topic),
	))
	defer span.End()

	msgJSON, err := json.Marshal(message)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal message")
		return err
	}

	span.AddEvent("serialized_message", trace.WithAttributes(
		attribute.String("message", string(msgJSON)),
	))

	err = q.writer.WriteMessages(ctx, kafka.Message{Value: msgJSON, Time: time.Now()})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write message")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "enqueued message")
	return nil
}

func (q *KafkaQueuer) currentReader() (*kafka.Reader, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.cfg.GroupID == "" {
		return nil, errors.New("kafka consumer group is required to dequeue")
	}

	if q.reader == nil {
		q.reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers:     q.cfg.Brokers,
			Topic:       q.cfg.Topic,
			GroupID:     q.cfg.GroupID,
			MinBytes:    1,
			MaxBytes:    10 << 20,
			MaxWait:     time.Second,
			StartOffset: kafka.FirstOffset,
		})
	}

	return q.reader, nil
}

// drops the reader so the next Dequeue rejoins the group at the committed offset
func (q *KafkaQueuer) resetReader() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.reader == nil {
		return nil
	}

	err := q.reader.Close()
	q.reader = nil
	return err
}

func (q *KafkaQueuer) Dequeue(
	ctx context.Context,
	timeout time.Duration,
	handler MessageHandler,
) error {
	ctx, span := tracer.Start(ctx, "Kafka.Dequeue", trace.WithAttributes(
		attribute.String("topic", q.cfg.Topic),
		attribute.Int64("timeoutSecs", int64(timeout.Seconds())),
	))
	defer span.End()

	reader, err := q.currentReader()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no reader")
		return err
	}

	msg, err := reader.FetchMessage(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch message")
		return err
	}

	span.AddEvent("got_message", trace.WithAttributes(
		attribute.String("message", string(msg.Value)),
		attribute.Int("partition", msg.Partition),
		attribute.Int64("offset", msg.Offset),
	))

	handlerCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err = handler.Handle(handlerCtx, msg.Value)
	if err != nil {
		var pe *PoisonError
		if !errors.As(err, &pe) {
			span.AddEvent("failed_message_handler", trace.WithAttributes(
				attribute.String("error", err.Error()),
			))
			if resetErr := q.resetReader(); resetErr != nil {
				span.RecordError(resetErr)
				span.SetStatus(codes.Error, "failed to reset reader")
				return resetErr
			}
			span.RecordError(nil)
			span.SetStatus(codes.Ok, "dequeued message but failed to handle")
			return nil
		}
	}

	if err := reader.CommitMessages(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to commit message")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "dequeued message")
	return nil
}

func (q *KafkaQueuer) Close() error {
	return errors.Join(q.writer.Close(), q.resetReader())
}
