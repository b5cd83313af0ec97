// audit/repository.go
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
)

const (
	decisionIndex    = "decision-logs"
	fieldAccessIndex = "field-access-logs"
)

// Repository is the external append-only sink for decision and field-access
// records. The sink owns partitioning, immutability and retention; this
// engine only appends.
type Repository interface {
	IndexDecision(ctx context.Context, record DecisionRecord) error
	IndexFieldAccess(ctx context.Context, record FieldAccessRecord) error
	QueryDecisions(ctx context.Context, from, to time.Time, tenantID, principalID string) ([]DecisionRecord, error)
}

type ElasticsearchRepository struct {
	esClient *elasticsearch.Client
}

// NewElasticsearchRepository creates a new repository with a given Elasticsearch client URL.
func NewElasticsearchRepository(esURL string) (*ElasticsearchRepository, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{esURL},
	}
	esClient, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &ElasticsearchRepository{esClient: esClient}, nil
}

// IndexDecision appends one decision record.
func (r *ElasticsearchRepository) IndexDecision(ctx context.Context, record DecisionRecord) error {
	return r.index(ctx, decisionIndex, record)
}

// IndexFieldAccess appends one field-access record.
func (r *ElasticsearchRepository) IndexFieldAccess(ctx context.Context, record FieldAccessRecord) error {
	return r.index(ctx, fieldAccessIndex, record)
}

func (r *ElasticsearchRepository) index(ctx context.Context, index string, record interface{}) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      index,
		DocumentID: uuid.New().String(),
		Body:       strings.NewReader(string(data)),
	}

	res, err := req.Do(ctx, r.esClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing document: %s", res.String())
	}

	return nil
}

// QueryDecisions searches decision records within a time frame, optionally
// filtered by tenant and principal.
func (r *ElasticsearchRepository) QueryDecisions(ctx context.Context, from, to time.Time, tenantID, principalID string) ([]DecisionRecord, error) {
	must := []interface{}{
		map[string]interface{}{
			"range": map[string]interface{}{
				"timestamp": map[string]interface{}{
					"gte": from.Format(time.RFC3339),
					"lte": to.Format(time.RFC3339),
				},
			},
		},
	}

	if tenantID != "" {
		must = append(must, map[string]interface{}{
			"match": map[string]interface{}{"tenant_id": tenantID},
		})
	}
	if principalID != "" {
		must = append(must, map[string]interface{}{
			"match": map[string]interface{}{"principal_id": principalID},
		})
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"must": must},
		},
	}

	var buf strings.Builder
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, err
	}

	res, err := r.esClient.Search(
		r.esClient.Search.WithContext(ctx),
		r.esClient.Search.WithIndex(decisionIndex),
		r.esClient.Search.WithBody(strings.NewReader(buf.String())),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("error searching documents: %s", res.String())
	}

	var rmap map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&rmap); err != nil {
		return nil, err
	}

	hits := rmap["hits"].(map[string]interface{})["hits"].([]interface{})
	records := make([]DecisionRecord, len(hits))
	for i, hit := range hits {
		source := hit.(map[string]interface{})["_source"]
		data, _ := json.Marshal(source)
		json.Unmarshal(data, &records[i])
	}

	return records, nil
}
