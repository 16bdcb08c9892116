// Package search projects approved listings into Elasticsearch and answers
// free-text queries over them. Postgres stays authoritative; the index is
// rebuilt from events and may lag behind it.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	apperrors "affiliate-marketplace/internal/common/errors"
	"affiliate-marketplace/internal/common/logger"
	"affiliate-marketplace/internal/events"
	"affiliate-marketplace/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const indexMapping = `{
  "mappings": {
    "properties": {
      "id":                  {"type": "long"},
      "ownerId":             {"type": "keyword"},
      "name":                {"type": "text"},
      "description":         {"type": "text"},
      "url":                 {"type": "keyword"},
      "commissionStructure": {"type": "text"},
      "paymentTerms":        {"type": "text"},
      "affiliateSignupUrl":  {"type": "keyword"},
      "status":              {"type": "keyword"},
      "createdAt":           {"type": "date"},
      "updatedAt":           {"type": "date"}
    }
  }
}`

// Indexer keeps the approved-listings index in step with review outcomes.
type Indexer struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndexer(client *elasticsearch.Client, index string, log logger.Logger) *Indexer {
	return &Indexer{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"subscriber": "search", "index": index}),
	}
}

// EnsureIndex creates the index with its mapping when it does not exist.
func (i *Indexer) EnsureIndex(ctx context.Context) error {
	res, err := i.client.Indices.Exists([]string{i.index}, i.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = i.client.Indices.Create(i.index,
		i.client.Indices.Create.WithContext(ctx),
		i.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("create index: %s", responseError(res))
	}
	i.logger.Info("search index created", nil)
	return nil
}

func (i *Indexer) Name() string { return "search" }

func (i *Indexer) Accepts(kind events.Kind) bool {
	return kind == events.KindListingStatusChanged || kind == events.KindListingWithdrawn
}

// Handle indexes a listing that became approved and removes one that left
// the approved state or was withdrawn.
func (i *Indexer) Handle(ctx context.Context, e events.Event) error {
	switch ev := e.(type) {
	case events.ListingStatusChanged:
		if ev.NewStatus == models.StatusApproved {
			return i.put(ctx, ev.Listing)
		}
		return i.remove(ctx, ev.Listing.ID)
	case events.ListingWithdrawn:
		return i.remove(ctx, ev.Listing.ID)
	}
	return nil
}

func (i *Indexer) put(ctx context.Context, l models.Listing) error {
	body, err := json.Marshal(l.Public())
	if err != nil {
		return fmt.Errorf("marshal listing: %w", err)
	}

	res, err := i.client.Index(i.index, bytes.NewReader(body),
		i.client.Index.WithContext(ctx),
		i.client.Index.WithDocumentID(strconv.FormatInt(l.ID, 10)),
	)
	if err != nil {
		return fmt.Errorf("index listing %d: %w", l.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index listing %d: %s", l.ID, responseError(res))
	}
	return nil
}

func (i *Indexer) remove(ctx context.Context, id int64) error {
	res, err := i.client.Delete(i.index, strconv.FormatInt(id, 10), i.client.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("delete listing %d: %w", id, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete listing %d: %s", id, responseError(res))
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source models.Listing `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs a multi-field text query and returns matching listings by
// relevance.
func (i *Indexer) Search(ctx context.Context, q string, limit int) ([]models.Listing, error) {
	if limit <= 0 {
		limit = 50
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"multi_match": map[string]interface{}{
						"query":  q,
						"fields": []string{"name^3", "description", "commissionStructure", "paymentTerms"},
					},
				},
				"filter": map[string]interface{}{
					"term": map[string]interface{}{"status": string(models.StatusApproved)},
				},
			},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, apperrors.NewSearchQueryFailedError(err)
	}

	res, err := i.client.Search(
		i.client.Search.WithContext(ctx),
		i.client.Search.WithIndex(i.index),
		i.client.Search.WithBody(bytes.NewReader(body)),
		i.client.Search.WithSize(limit),
	)
	if err != nil {
		return nil, apperrors.NewSearchQueryFailedError(err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return []models.Listing{}, nil
	}
	if res.IsError() {
		return nil, apperrors.NewSearchQueryFailedError(fmt.Errorf("%s", responseError(res)))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewSearchQueryFailedError(fmt.Errorf("decode response: %w", err))
	}

	out := make([]models.Listing, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

func responseError(res *esapi.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return fmt.Sprintf("%s: %s", res.Status(), strings.TrimSpace(string(raw)))
}
