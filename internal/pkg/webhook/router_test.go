package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseTopic(t *testing.T) {
	tests := []struct {
		in   string
		want Topic
	}{
		{in: "orders_v2", want: TopicOrders},
		{in: "items", want: TopicItems},
		{in: "questions", want: TopicQuestions},
		{in: "claims", want: TopicClaims},
		{in: "shipments", want: TopicUnknown},
		{in: "", want: TopicUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseTopic(tt.in), "topic %q", tt.in)
	}
}

func TestDispatch_Order(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := NewRouter(zap.New(core))

	r.Dispatch("orders_v2", "999", []byte(`{"id":2000003508419013,"status":"paid","total_amount":1500.5,"buyer":{"id":456}}`))

	entries := logs.FilterMessage("new order received").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "2000003508419013", fields["order_id"])
	assert.Equal(t, "paid", fields["status"])
	assert.Equal(t, "456", fields["buyer_id"])
}

func TestDispatch_UnknownTopicLoggedAndDropped(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := NewRouter(zap.New(core))

	// Must never panic or error; forward compatibility with new provider
	// topics.
	r.Dispatch("shipments", "999", []byte(`{"id":"SHP1"}`))

	entries := logs.FilterMessage("unhandled notification topic").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "shipments", entries[0].ContextMap()["topic"])
}

func TestDispatch_MalformedPayload(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := NewRouter(zap.New(core))

	r.Dispatch("items", "999", []byte(`not-json`))

	assert.Len(t, logs.FilterMessage("malformed item payload").All(), 1)
	assert.Empty(t, logs.FilterMessage("item updated").All())
}
