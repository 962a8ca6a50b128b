package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	id "doccontrol/pkg/domain"
)

type fakeProducer struct {
	mu      sync.Mutex
	records []*kgo.Record
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rs...)
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		results = append(results, kgo.ProduceResult{Record: r})
	}
	return results
}

func (f *fakeProducer) produced() []*kgo.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*kgo.Record(nil), f.records...)
}

func TestPublisherForwardsEvents(t *testing.T) {
	producer := &fakeProducer{}
	inbox := make(chan Event, 4)
	pub := NewPublisher(producer, "doccontrol.audit", inbox, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = pub.Run(ctx)
		close(done)
	}()

	actor := id.NewUserID()
	inbox <- Event{
		ID:         id.NewEventID(),
		ActorID:    &actor,
		Action:     ActionSignatureCaptured,
		EntityType: EntityDocumentVersion,
		EntityID:   "v1",
		CreatedAt:  time.Now(),
	}

	require.Eventually(t, func() bool {
		return len(producer.produced()) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done

	record := producer.produced()[0]
	assert.Equal(t, "doccontrol.audit", record.Topic)
	assert.Equal(t, "v1", string(record.Key))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(record.Value, &payload))
	assert.Equal(t, "SIGNATURE_CAPTURED", payload["action"])
	assert.Equal(t, actor.String(), payload["actor_id"])
}
