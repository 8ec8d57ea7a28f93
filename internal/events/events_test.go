package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"loan-assistant/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent() DecisionEvent {
	evt := NewDecisionEvent("thread-1", models.DecisionApprovedInstant, time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	evt.Phone = "9999999901"
	evt.Amount = decimal.NewFromInt(150000)
	evt.TenureMonths = 24
	evt.EMI = decimal.RequireFromString("7061.02")
	return evt
}

func TestElasticsearchSink_Publish(t *testing.T) {
	var gotPath string
	var gotDoc map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotDoc)

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}))
	defer srv.Close()

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	evt := sampleEvent()
	require.NoError(t, NewElasticsearchSink(es, "loan-decisions").Publish(context.Background(), evt))

	assert.Equal(t, "PUT /loan-decisions/_doc/"+evt.EventID, gotPath)
	assert.Equal(t, "APPROVED_INSTANT", gotDoc["status"])
	assert.Equal(t, "thread-1", gotDoc["thread_id"])
}

func TestElasticsearchSink_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"mapper_parsing_exception"}`))
	}))
	defer srv.Close()

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	assert.Error(t, NewElasticsearchSink(es, "loan-decisions").Publish(context.Background(), sampleEvent()))
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaSink_Publish(t *testing.T) {
	w := &fakeWriter{}
	sink := NewKafkaSink(w)

	evt := sampleEvent()
	require.NoError(t, sink.Publish(context.Background(), evt))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "thread-1", string(msg.Key))

	var decoded DecisionEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, evt.EventID, decoded.EventID)
	assert.True(t, evt.EMI.Equal(decoded.EMI))

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "APPROVED_INSTANT", headers["status"])
	assert.Equal(t, evt.EventID, headers["event_id"])
}

func TestKafkaWriterConfig(t *testing.T) {
	w := NewKafkaWriter([]string{"localhost:9092"}, "loan.decisions")
	defer w.Close()
	assert.Equal(t, "loan.decisions", w.Topic)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
}

type failing struct{ err error }

func (f failing) Publish(context.Context, DecisionEvent) error { return f.err }

func TestMulti_CollectsErrors(t *testing.T) {
	rec := &Recorder{}
	boom := errors.New("broker down")

	err := Multi{failing{err: boom}, rec, Nop{}}.Publish(context.Background(), sampleEvent())
	assert.ErrorIs(t, err, boom)
	assert.Len(t, rec.Events(), 1, "later sinks still receive the event")

	assert.NoError(t, Multi{rec}.Publish(context.Background(), sampleEvent()))
	assert.NoError(t, Multi(nil).Publish(context.Background(), sampleEvent()))
}
