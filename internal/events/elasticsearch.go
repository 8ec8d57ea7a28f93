package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
)

// IndexMapping is applied when the decisions index is created.
const IndexMapping = `{
  "mappings": {
    "properties": {
      "event_id":        {"type": "keyword"},
      "thread_id":       {"type": "keyword"},
      "phone":           {"type": "keyword"},
      "status":          {"type": "keyword"},
      "reason":          {"type": "text"},
      "amount":          {"type": "double"},
      "tenure_months":   {"type": "integer"},
      "emi":             {"type": "double"},
      "sanction_letter": {"type": "keyword"},
      "occurred_at":     {"type": "date"}
    }
  }
}`

// ElasticsearchSink indexes each event as a document keyed by its event id.
type ElasticsearchSink struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticsearchSink(client *elasticsearch.Client, index string) *ElasticsearchSink {
	return &ElasticsearchSink{client: client, index: index}
}

func (s *ElasticsearchSink) Publish(ctx context.Context, evt DecisionEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	res, err := s.client.Index(s.index, bytes.NewReader(body),
		s.client.Index.WithContext(ctx),
		s.client.Index.WithDocumentID(evt.EventID),
	)
	if err != nil {
		return fmt.Errorf("index decision: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index decision: %s", res.Status())
	}
	return nil
}
