// Package memory persists conversation history in two tiers: a Redis list
// per user for fast recall and a PostgreSQL table with optional embeddings
// for long-term and similarity retrieval. Every operation is best-effort.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/codeready-toolchain/quorum/pkg/reasoning"
)

// cacheDepth bounds the per-user Redis list.
const cacheDepth = 50

// Store implements reasoning.MemoryStore. Either tier may be nil; the other
// keeps working.
type Store struct {
	cache    *redis.Client
	pool     *pgxpool.Pool
	embedder Embedder
	logger   *slog.Logger
}

var _ reasoning.MemoryStore = (*Store)(nil)

// NewStore builds a two-tier memory store. embedder may be nil, in which
// case rows are stored without vectors and similarity recall is unavailable.
func NewStore(cache *redis.Client, pool *pgxpool.Pool, embedder Embedder) *Store {
	return &Store{
		cache:    cache,
		pool:     pool,
		embedder: embedder,
		logger:   slog.Default().With("component", "memory"),
	}
}

// Store persists one exchange in both tiers and reports whether at least one
// write succeeded.
func (s *Store) Store(ctx context.Context, userID, prompt, response string) bool {
	stored := false
	if s.storeDatabase(ctx, userID, prompt, response) {
		stored = true
	}
	if s.storeCache(ctx, userID, prompt, response) {
		stored = true
	}
	return stored
}

func (s *Store) storeDatabase(ctx context.Context, userID, prompt, response string) bool {
	if s.pool == nil {
		return false
	}

	promptVec := s.embed(ctx, prompt)
	responseVec := s.embed(ctx, response)

	_, err := s.pool.Exec(ctx,
		`INSERT INTO memory (user_id, prompt, response, prompt_embedding, response_embedding)
		 VALUES ($1, $2, $3, $4, $5)`,
		userID, prompt, response, promptVec, responseVec)
	if err != nil {
		s.logger.Warn("Failed to store memory in database", "user_id", userID, "error", err)
		return false
	}
	return true
}

func (s *Store) storeCache(ctx context.Context, userID, prompt, response string) bool {
	if s.cache == nil {
		return false
	}

	item, err := json.Marshal(reasoning.Recollection{Prompt: prompt, Response: response})
	if err != nil {
		return false
	}
	pipe := s.cache.Pipeline()
	pipe.LPush(ctx, userID, item)
	pipe.LTrim(ctx, userID, 0, cacheDepth-1)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("Failed to store memory in cache", "user_id", userID, "error", err)
		return false
	}
	return true
}

// Recall returns up to topK exchanges relevant to prompt. Semantic recall is
// preferred when the vector tier is available, then the cache, then the most
// recent database rows. Failures yield an empty slice.
func (s *Store) Recall(ctx context.Context, userID, prompt string, topK int) []reasoning.Recollection {
	if topK <= 0 {
		topK = 5
	}
	if got := s.RecallSimilar(ctx, userID, prompt, topK); len(got) > 0 {
		return got
	}
	if got := s.recallCache(ctx, userID, topK); len(got) > 0 {
		return got
	}
	return s.recallDatabase(ctx, userID, topK)
}

func (s *Store) recallCache(ctx context.Context, userID string, topK int) []reasoning.Recollection {
	if s.cache == nil {
		return nil
	}
	items, err := s.cache.LRange(ctx, userID, 0, int64(topK-1)).Result()
	if err != nil {
		s.logger.Warn("Failed to recall memory from cache", "user_id", userID, "error", err)
		return nil
	}
	var out []reasoning.Recollection
	for _, item := range items {
		var r reasoning.Recollection
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (s *Store) recallDatabase(ctx context.Context, userID string, topK int) []reasoning.Recollection {
	if s.pool == nil {
		return nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT prompt, response FROM memory WHERE user_id = $1 ORDER BY timestamp DESC LIMIT $2`,
		userID, topK)
	if err != nil {
		s.logger.Warn("Failed to recall memory from database", "user_id", userID, "error", err)
		return nil
	}
	defer rows.Close()

	var out []reasoning.Recollection
	for rows.Next() {
		var r reasoning.Recollection
		if err := rows.Scan(&r.Prompt, &r.Response); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out
}

// RecallSimilar retrieves the topK stored exchanges whose prompt embeddings
// are closest to the given prompt. Requires an embedder and pgvector.
func (s *Store) RecallSimilar(ctx context.Context, userID, prompt string, topK int) []reasoning.Recollection {
	if s.pool == nil || s.embedder == nil {
		return nil
	}
	vec := s.embed(ctx, prompt)
	if vec == nil {
		return nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT prompt, response FROM memory
		 WHERE user_id = $1 AND prompt_embedding IS NOT NULL
		 ORDER BY prompt_embedding <-> $2::vector LIMIT $3`,
		userID, *vec, topK)
	if err != nil {
		s.logger.Warn("Failed similarity recall", "user_id", userID, "error", err)
		return nil
	}
	defer rows.Close()

	var out []reasoning.Recollection
	for rows.Next() {
		var r reasoning.Recollection
		if err := rows.Scan(&r.Prompt, &r.Response); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out
}

// embed returns the pgvector literal for text, or nil when embedding is
// unavailable or fails.
func (s *Store) embed(ctx context.Context, text string) *string {
	if s.embedder == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.logger.Warn("Embedding failed", "error", err)
		return nil
	}
	lit := vectorLiteral(vec)
	return &lit
}

// vectorLiteral formats a float slice as a pgvector input literal.
func vectorLiteral(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%g", v)
	}
	b.WriteByte(']')
	return b.String()
}
