package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	opensearch "github.com/opensearch-project/opensearch-go"
	"github.com/opensearch-project/opensearch-go/opensearchapi"

	"github.com/flightmesh/flightmesh/internal/domain"
)

const observationsIndex = "price-observations"

// Indexer mirrors the shape of NavyaVu's RealOpenSearchClient: a thin
// wrapper that encodes a request body into a bytes.Buffer and calls
// opensearchapi.<Verb>Request{...}.Do(ctx, client). It holds a secondary
// copy of the price observations; prediction_data reads from MySQL
// through Store, not from this index.
type Indexer struct {
	client *opensearch.Client
}

func NewIndexer(addrs []string, username, password string) (*Indexer, error) {
	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: addrs,
		Username:  username,
		Password:  password,
	})
	if err != nil {
		return nil, err
	}
	return &Indexer{client: client}, nil
}

type observationDoc struct {
	QueryKey    string  `json:"query_key"`
	Origin      string  `json:"origin"`
	Destination string  `json:"destination"`
	Fingerprint string  `json:"fingerprint"`
	SourceID    string  `json:"source_id"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	ObservedAt  string  `json:"observed_at"`
}

// IndexObservation upserts a single price_observations row into the
// read-model index, keyed by query_key+fingerprint+source_id so repeated
// observations of the same offer update in place rather than accumulate.
func (ix *Indexer) IndexObservation(ctx context.Context, row domain.PriceHistoryRow) error {
	origin, dest := splitRoute(row.QueryKey)
	doc := observationDoc{
		QueryKey:    row.QueryKey,
		Origin:      origin,
		Destination: dest,
		Fingerprint: row.Fingerprint,
		SourceID:    row.SourceID,
		Amount:      row.Price.Amount,
		Currency:    row.Price.Currency,
		ObservedAt:  row.ObservedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	body := map[string]any{"doc": doc, "doc_as_upsert": true}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	docID := row.QueryKey + ":" + row.Fingerprint + ":" + row.SourceID
	req := opensearchapi.UpdateRequest{
		Index:      observationsIndex,
		DocumentID: docID,
		Body:       bytes.NewReader(b),
	}
	res, err := req.Do(ctx, ix.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("history: opensearch update failed: %s", res.String())
	}
	return nil
}

// PriceHistory returns up to 1000 indexed observations for a route,
// ordered by observed_at. Unlike Repo.PriceHistory it takes no date range,
// and the rows it returns leave ObservedAt unset.
func (ix *Indexer) PriceHistory(ctx context.Context, origin, dest string) ([]domain.PriceHistoryRow, error) {
	query := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must": []map[string]any{
					{"term": map[string]any{"origin": origin}},
					{"term": map[string]any{"destination": dest}},
				},
			},
		},
		"sort": []map[string]any{{"observed_at": map[string]any{"order": "asc"}}},
		"size": 1000,
	}
	b, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	req := opensearchapi.SearchRequest{
		Index: []string{observationsIndex},
		Body:  bytes.NewReader(b),
	}
	res, err := req.Do(ctx, ix.client)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("history: opensearch search failed: %s", res.String())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source observationDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]domain.PriceHistoryRow, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, domain.PriceHistoryRow{
			QueryKey:    h.Source.QueryKey,
			Fingerprint: h.Source.Fingerprint,
			SourceID:    h.Source.SourceID,
			Price:       domain.Price{Amount: h.Source.Amount, Currency: h.Source.Currency},
		})
	}
	return out, nil
}

// DeleteRoute removes every indexed observation for a route, used when a
// route is retired from the coverage table and its history should stop
// showing up in predictions.
func (ix *Indexer) DeleteRoute(ctx context.Context, origin, dest string) error {
	query := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must": []map[string]any{
					{"term": map[string]any{"origin": origin}},
					{"term": map[string]any{"destination": dest}},
				},
			},
		},
	}
	b, err := json.Marshal(query)
	if err != nil {
		return err
	}

	req := opensearchapi.DeleteByQueryRequest{
		Index: []string{observationsIndex},
		Body:  bytes.NewReader(b),
	}
	res, err := req.Do(ctx, ix.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("history: opensearch delete failed: %s", res.String())
	}
	return nil
}

func splitRoute(queryKey string) (origin, dest string) {
	parts := strings.SplitN(queryKey, ":", 3)
	if len(parts) < 2 {
		return "", ""
	}
	return parts[0], parts[1]
}
