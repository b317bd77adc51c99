// Package knowledge answers free-text questions against a per-destination
// vector collection: embed the query, search, return the best passages.
package knowledge

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/bt-bridge/voicebridge/shared"
	"github.com/qdrant/go-client/qdrant"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	defaultCollection = "knowledge"
	embeddingModel    = openai.SmallEmbedding3
)

type Result struct {
	ID    string
	Score float32
	Text  string
}

type Config struct {
	URL        string // Qdrant address, e.g. "https://example.qdrant.io:6334"
	APIKey     string
	Collection string
	OpenAIKey  string
}

// Searcher embeds queries with the embeddings API and searches Qdrant.
type Searcher struct {
	logger     shared.LoggerAdapter
	embedder   *openai.Client
	client     *qdrant.Client
	collection string
}

func NewSearcher(logger shared.LoggerAdapter, cfg Config) (*Searcher, error) {
	if logger == nil {
		return nil, shared.ErrNoLogger
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant URL is required")
	}
	if cfg.OpenAIKey == "" {
		return nil, shared.ErrNoAPIKey
	}
	if cfg.Collection == "" {
		cfg.Collection = defaultCollection
	}

	raw := cfg.URL
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing qdrant URL: %w", err)
	}
	port := 6334
	if u.Port() != "" {
		port, err = strconv.Atoi(u.Port())
		if err != nil {
			return nil, fmt.Errorf("invalid qdrant port: %w", err)
		}
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   u.Hostname(),
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: u.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("creating qdrant client: %w", err)
	}

	return &Searcher{
		logger:     logger,
		embedder:   openai.NewClient(cfg.OpenAIKey),
		client:     client,
		collection: cfg.Collection,
	}, nil
}

// Search returns up to limit passages for the query, scoped to one
// destination's documents. An empty result set is a valid answer.
func (s *Searcher) Search(ctx context.Context, configID, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 3
	}
	embResp, err := s.embedder.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{query},
		Model: embeddingModel,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(embResp.Data) == 0 {
		return nil, fmt.Errorf("embedding response is empty")
	}

	limitUint64 := uint64(limit)
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(embResp.Data[0].Embedding...),
		Limit:          &limitUint64,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("config_id", configID),
			},
		},
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying qdrant: %w", err)
	}

	results := make([]Result, 0, len(points))
	for _, point := range points {
		r := Result{Score: point.Score}
		if point.Id != nil {
			r.ID = point.Id.GetUuid()
		}
		if point.Payload != nil {
			if v, ok := point.Payload["text"]; ok {
				r.Text = v.GetStringValue()
			}
		}
		results = append(results, r)
	}
	s.logger.Debug(
		"knowledge search",
		zap.String("config_id", configID),
		zap.Int("results", len(results)),
	)
	return results, nil
}
