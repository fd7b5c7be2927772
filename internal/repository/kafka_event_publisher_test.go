package repository

import (
	"context"
	"testing"

	"SalesPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	topic string
	key   []byte
	value interface{}
}

type fakeProducer struct {
	sent   []sentMessage
	closed bool
}

func (f *fakeProducer) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	f.sent = append(f.sent, sentMessage{topic: topic, key: key, value: value})
	return nil
}

func (f *fakeProducer) Close() error {
	f.closed = true
	return nil
}

func TestKafkaEventPublisherKeysByBundle(t *testing.T) {
	fp := &fakeProducer{}
	p := NewKafkaEventPublisher(fp, "salespulse.model-events")

	require.NoError(t, p.PublishModelTrained(context.Background(), models.ModelTrainedEvent{BundleID: "b-1", Samples: 40}))
	require.Len(t, fp.sent, 1)
	assert.Equal(t, "salespulse.model-events", fp.sent[0].topic)
	assert.Equal(t, []byte("b-1"), fp.sent[0].key)

	ev := fp.sent[0].value.(models.ModelTrainedEvent)
	assert.Equal(t, EventTypeModelTrained, ev.Type)
	assert.Equal(t, 40, ev.Samples)

	require.NoError(t, p.Close())
	assert.True(t, fp.closed)
}
