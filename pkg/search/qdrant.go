package search

import (
	"context"
	"fmt"
	"hash/fnv"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection settings for the entry index.
type QdrantConfig struct {
	// URL is the Qdrant server address, e.g. "https://example.qdrant.io:6334".
	URL string

	// Collection is the journal-entry collection name.
	Collection string

	// APIKey is an optional API key.
	APIKey string
}

// QdrantSearcher implements Searcher over a Qdrant collection of
// embedded journal entries.
type QdrantSearcher struct {
	client     *qdrant.Client
	collection string
	embedder   Embedder
}

// NewQdrantSearcher connects to Qdrant.
func NewQdrantSearcher(cfg QdrantConfig, embedder Embedder) (*QdrantSearcher, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}

	raw := cfg.URL
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant url: %w", err)
	}

	host := u.Hostname()
	port := 6334
	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return nil, fmt.Errorf("invalid qdrant port: %w", err)
		}
		port = p
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: u.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	return &QdrantSearcher{
		client:     client,
		collection: cfg.Collection,
		embedder:   embedder,
	}, nil
}

// Search embeds the query and returns the user's closest entries.
func (s *QdrantSearcher) Search(ctx context.Context, userID, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 5
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	limitUint64 := uint64(limit)
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limitUint64,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				{
					ConditionOneOf: &qdrant.Condition_Field{
						Field: &qdrant.FieldCondition{
							Key:   "user_id",
							Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: userID}},
						},
					},
				},
			},
		},
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}

	results := make([]Result, 0, len(points))
	for _, point := range points {
		r := Result{Score: point.Score}
		if point.Id != nil {
			if uuid := point.Id.GetUuid(); uuid != "" {
				r.EntryID = uuid
			} else if num := point.Id.GetNum(); num != 0 {
				r.EntryID = fmt.Sprintf("%d", num)
			}
		}
		for k, v := range point.Payload {
			switch k {
			case "entry_id":
				if str := v.GetStringValue(); str != "" {
					r.EntryID = str
				}
			case "title":
				r.Title = v.GetStringValue()
			case "content":
				r.Snippet = v.GetStringValue()
			case "created_at":
				if str := v.GetStringValue(); str != "" {
					if t, err := time.Parse(time.RFC3339, str); err == nil {
						r.Date = t
					}
				}
			}
		}
		results = append(results, r)
	}
	return results, nil
}

// Index embeds a journal entry and upserts it into the collection.
// Point IDs are derived by hashing the entry ID, which keeps re-indexing
// idempotent; the real ID travels in the payload.
func (s *QdrantSearcher) Index(ctx context.Context, entry IndexedEntry) error {
	vector, err := s.embedder.Embed(ctx, entry.Title+"\n"+entry.Content)
	if err != nil {
		return fmt.Errorf("embed entry: %w", err)
	}

	h := fnv.New64a()
	h.Write([]byte(entry.EntryID))

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDNum(h.Sum64()),
				Vectors: qdrant.NewVectors(vector...),
				Payload: qdrant.NewValueMap(map[string]any{
					"entry_id":   entry.EntryID,
					"user_id":    entry.UserID,
					"title":      entry.Title,
					"content":    entry.Content,
					"created_at": entry.CreatedAt.UTC().Format(time.RFC3339),
				}),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	return nil
}

// Close releases the Qdrant client.
func (s *QdrantSearcher) Close() error {
	return s.client.Close()
}

var (
	_ Searcher = (*QdrantSearcher)(nil)
	_ Indexer  = (*QdrantSearcher)(nil)
)
