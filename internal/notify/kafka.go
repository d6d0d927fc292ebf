package notify

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/servicecenter/api/internal/config"
)

// requestEvent is the wire format on the notification topic
type requestEvent struct {
	RequestID int64 `json:"request_id"`
}

// KafkaQueue routes notification jobs through a Kafka topic so that a
// multi-instance deployment fans work out across consumers. Semantics
// stay fire-and-forget: publish failures are logged and dropped, and a
// consumed job is acknowledged whether or not dispatch succeeded.
type KafkaQueue struct {
	writer     *kafka.Writer
	reader     *kafka.Reader
	dispatcher *Dispatcher
	logger     *logrus.Logger
}

// NewKafkaQueue creates the producer and consumer for the notification
// topic
func NewKafkaQueue(cfg config.KafkaConfig, dispatcher *Dispatcher, logger *logrus.Logger) *KafkaQueue {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           10 * time.Second,
		AllowAutoTopicCreation: true,
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		GroupID: cfg.GroupID,
		Topic:   cfg.Topic,
	})

	logger.WithFields(logrus.Fields{
		"brokers": cfg.Brokers,
		"topic":   cfg.Topic,
	}).Info("Kafka notification queue initialized")

	return &KafkaQueue{
		writer:     writer,
		reader:     reader,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Enqueue publishes the request ID to the notification topic without
// blocking the caller
func (q *KafkaQueue) Enqueue(requestID int64) {
	go func() {
		value, err := json.Marshal(requestEvent{RequestID: requestID})
		if err != nil {
			q.logger.WithError(err).Error("Failed to marshal notification event")
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err = q.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(strconv.FormatInt(requestID, 10)),
			Value: value,
			Time:  time.Now(),
		})
		if err != nil {
			q.logger.WithFields(logrus.Fields{
				"request_id": requestID,
				"error":      err,
			}).Warn("Failed to publish notification event, dropping")
		}
	}()
}

// Run consumes the notification topic until ctx is cancelled
func (q *KafkaQueue) Run(ctx context.Context) {
	for {
		msg, err := q.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			q.logger.WithError(err).Warn("Kafka read failed")
			continue
		}

		var event requestEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			q.logger.WithError(err).Warn("Skipping malformed notification event")
			continue
		}

		q.dispatcher.Dispatch(ctx, event.RequestID)
	}
}

// Close closes the producer and consumer
func (q *KafkaQueue) Close() error {
	if err := q.writer.Close(); err != nil {
		q.logger.WithError(err).Error("Failed to close Kafka writer")
	}
	return q.reader.Close()
}
