package kafka

import (
	"encoding/json"
	"time"

	"github.com/Shopify/sarama"

	"PlayGrid/logger"
	"PlayGrid/service/gateway"
	errs "PlayGrid/tools/errs"
	"PlayGrid/tools/safe"
)

// EventProducer publishes message.stored events for downstream consumers
// (activity stats, achievement triggers). Async and fire-and-forget: a
// broker hiccup must never slow the broadcast pipeline.
type EventProducer struct {
	ap    sarama.AsyncProducer
	topic string
}

type storedEvent struct {
	MessageID  string `json:"message_id"`
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	CreatedAt  int64  `json:"created_at_ms"`
}

func buildConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_8_0_0

	cfg.Producer.Return.Successes = false
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Retry.Max = 3
	// key = sender id, so one user's events stay ordered per partition
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	cfg.Producer.Compression = sarama.CompressionSnappy

	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	return cfg
}

func NewEventProducer(brokers []string, topic string) (*EventProducer, error) {
	if len(brokers) == 0 {
		return nil, errs.New("brokers is empty")
	}
	if topic == "" {
		return nil, errs.New("topic is empty")
	}
	ap, err := sarama.NewAsyncProducer(brokers, buildConfig())
	if err != nil {
		return nil, errs.WrapMsg(err, "new async producer", "brokers", brokers)
	}
	p := &EventProducer{ap: ap, topic: topic}
	safe.Go(p.drainErrors)
	return p, nil
}

// MessageStored implements gateway.EventSink.
func (p *EventProducer) MessageStored(m *gateway.DirectMessage) {
	b, err := json.Marshal(storedEvent{
		MessageID:  m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		CreatedAt:  m.CreatedAt.UnixMilli(),
	})
	if err != nil {
		logger.Errorf("[kafka] marshal stored event: %v", err)
		return
	}
	select {
	case p.ap.Input() <- &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(m.SenderID),
		Value: sarama.ByteEncoder(b),
	}:
	default:
		// producer backpressure: drop the event, the message itself is safe
		logger.Warnf("[kafka] producer input full, dropping event msg=%s", m.ID)
	}
}

func (p *EventProducer) drainErrors() {
	for err := range p.ap.Errors() {
		logger.Warnf("[kafka] publish failed topic=%s err=%v", err.Msg.Topic, err.Err)
	}
}

func (p *EventProducer) Close() error {
	return p.ap.Close()
}
