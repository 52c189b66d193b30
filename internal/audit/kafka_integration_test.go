//go:build integration

package audit_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"fairdraw/internal/audit"
	"fairdraw/pkg/testutil/containers"
)

type KafkaAuditSuite struct {
	suite.Suite
	redpanda *containers.RedpandaContainer
	topic    string
	store    *audit.KafkaStore
	ctx      context.Context
}

func TestKafkaAuditSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaAuditSuite))
}

func (s *KafkaAuditSuite) SetupSuite() {
	s.redpanda = containers.GetManager().GetRedpanda(s.T())
	s.topic = "fairdraw.audit." + uuid.NewString()
	s.ctx = context.Background()

	store, err := audit.NewKafkaStore(s.redpanda.Brokers, s.topic)
	s.Require().NoError(err)
	s.store = store
}

func (s *KafkaAuditSuite) TearDownSuite() {
	if s.store != nil {
		s.store.Close()
	}
}

func (s *KafkaAuditSuite) TestAppendPublishes() {
	event := audit.Event{
		ID:         uuid.NewString(),
		Action:     audit.ActionEntryJoined,
		IdentityID: "u1",
		CampaignID: "c1",
		Timestamp:  time.Now(),
	}
	s.Require().NoError(s.store.Append(s.ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Brokers...),
		kgo.ConsumeTopics(s.topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetchCtx, cancel := context.WithTimeout(s.ctx, 15*time.Second)
	defer cancel()
	fetches := consumer.PollFetches(fetchCtx)
	s.Require().NoError(fetches.Err())

	records := fetches.Records()
	s.Require().NotEmpty(records)
	s.Equal("u1", string(records[0].Key), "records are keyed by identity for per-identity ordering")

	var payload struct {
		ID         string `json:"id"`
		Action     string `json:"action"`
		IdentityID string `json:"identity_id"`
		CampaignID string `json:"campaign_id"`
	}
	s.Require().NoError(json.Unmarshal(records[0].Value, &payload))
	s.Equal(event.ID, payload.ID)
	s.Equal(audit.ActionEntryJoined, payload.Action)
	s.Equal("c1", payload.CampaignID)
}

func (s *KafkaAuditSuite) TestReadsUnsupported() {
	_, err := s.store.ListByIdentity(s.ctx, "u1")
	s.Require().Error(err)
}
