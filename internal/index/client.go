// Package index executes search requests against Elasticsearch.
package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/cloo-solutions/podseek/internal/domain"
	"github.com/cloo-solutions/podseek/internal/query"
	"github.com/cloo-solutions/podseek/internal/service"
)

const DefaultIndex = "episodes"

type Config struct {
	Addresses []string
	Index     string
	Username  string
	Password  string
	APIKey    string
}

// Client implements service.IndexClientInterface
type Client struct {
	es    *elasticsearch.Client
	index string
}

func New(cfg Config) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		APIKey:    cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return NewWithClient(es, cfg.Index), nil
}

func NewWithClient(es *elasticsearch.Client, index string) *Client {
	if index == "" {
		index = DefaultIndex
	}
	return &Client{es: es, index: index}
}

type episodeSource struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Transcript  string `json:"transcript"`
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID        string              `json:"_id"`
			Score     *float64            `json:"_score"`
			Source    episodeSource       `json:"_source"`
			Highlight map[string][]string `json:"highlight"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs req and returns hits in the index's ranking order
func (c *Client) Search(ctx context.Context, req query.Request) (*service.IndexResult, error) {
	body, err := req.JSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, transportError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, responseError(res)
	}

	var decoded searchResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to decode search response", err)
	}

	result := &service.IndexResult{
		Total: decoded.Hits.Total.Value,
		Hits:  make([]service.IndexHit, 0, len(decoded.Hits.Hits)),
	}
	for _, h := range decoded.Hits.Hits {
		hit := service.IndexHit{
			ID:          h.ID,
			Title:       h.Source.Title,
			Description: h.Source.Description,
			Transcript:  h.Source.Transcript,
			Highlights:  make(map[domain.Field][]string, len(h.Highlight)),
		}
		if h.Score != nil {
			hit.Score = *h.Score
		}
		for field, fragments := range h.Highlight {
			hit.Highlights[domain.Field(field)] = fragments
		}
		result.Hits = append(result.Hits, hit)
	}
	return result, nil
}

// EnsureIndex creates the episodes index with its mapping when it does not exist yet
func (c *Client) EnsureIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return transportError(err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return responseError(res)
	}

	res, err = c.es.Indices.Create(c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(strings.NewReader(indexMapping)),
	)
	if err != nil {
		return transportError(err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError(res)
	}
	return nil
}

// Put indexes one episode. refresh makes it visible to the next search.
func (c *Client) Put(ctx context.Context, episode *domain.Episode, refresh bool) error {
	body, err := json.Marshal(episodeSource{
		Title:       episode.Title,
		Description: episode.Description,
		Transcript:  episode.Transcript,
	})
	if err != nil {
		return fmt.Errorf("failed to encode episode: %w", err)
	}

	opts := []func(*esapi.IndexRequest){
		c.es.Index.WithContext(ctx),
		c.es.Index.WithDocumentID(episode.ID),
	}
	if refresh {
		opts = append(opts, c.es.Index.WithRefresh("true"))
	}

	res, err := c.es.Index(c.index, bytes.NewReader(body), opts...)
	if err != nil {
		return transportError(err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError(res)
	}
	return nil
}

func transportError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return domain.NewDomainErrorWithCause(domain.ErrIndexUnavailable.Code, domain.ErrIndexUnavailable.Message, err)
}

func responseError(res *esapi.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return domain.UpstreamError(res.StatusCode, fmt.Errorf("elasticsearch %s: %s", res.Status(), strings.TrimSpace(string(raw))))
}

const indexMapping = `{
  "mappings": {
    "properties": {
      "title":       {"type": "text"},
      "description": {"type": "text"},
      "transcript":  {"type": "text", "term_vector": "with_positions_offsets"}
    }
  }
}`
