package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaStore publishes audit events to a Kafka topic. It implements Store so
// the worker can fan events out to Kafka the same way it would to Postgres.
// Reads are not supported; consumers live downstream.
type KafkaStore struct {
	client *kgo.Client
	topic  string
}

// kafkaPayload is the JSON wire shape for audit events.
type kafkaPayload struct {
	ID         string `json:"id"`
	Action     string `json:"action"`
	IdentityID string `json:"identity_id,omitempty"`
	ActorID    string `json:"actor_id,omitempty"`
	CampaignID string `json:"campaign_id,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// NewKafkaStore connects to the brokers and ensures the topic exists.
func NewKafkaStore(brokers []string, topic string) (*KafkaStore, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerLinger(50*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	adm := kadm.NewClient(client)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := adm.CreateTopics(ctx, 1, 1, nil, topic); err != nil && !strings.Contains(err.Error(), "TOPIC_ALREADY_EXISTS") {
		client.Close()
		return nil, fmt.Errorf("ensure audit topic: %w", err)
	}

	return &KafkaStore{client: client, topic: topic}, nil
}

func (s *KafkaStore) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(kafkaPayload{
		ID:         event.ID,
		Action:     event.Action,
		IdentityID: event.IdentityID,
		ActorID:    event.ActorID,
		CampaignID: event.CampaignID,
		Detail:     event.Detail,
		Timestamp:  event.Timestamp.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.IdentityID),
		Value: payload,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// ListByIdentity is unsupported; Kafka is a write-only sink here.
func (s *KafkaStore) ListByIdentity(ctx context.Context, identityID string) ([]Event, error) {
	return nil, fmt.Errorf("kafka audit store does not support reads")
}

func (s *KafkaStore) Close() {
	s.client.Close()
}
