package kb

import (
	"cmp"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/haivivi/deskmate/pkg/embed"
	"github.com/haivivi/deskmate/pkg/kv"
	"github.com/haivivi/deskmate/pkg/vecstore"
	"github.com/vmihailenco/msgpack/v5"
)

// Score fusion weights.
const (
	weightVector  = 0.7
	weightKeyword = 0.3
)

// IndexConfig configures a new [Index].
type IndexConfig struct {
	// Store caches passage embeddings. Optional: nil disables the cache.
	Store kv.Store

	// Embedder converts passages and queries to vectors. Optional: nil
	// makes search keyword-only.
	Embedder embed.Embedder

	// Vec holds passage vectors. Defaults to vecstore.NewMemory().
	Vec vecstore.Index

	// Prefix scopes cache keys. Default kv.Key{"kb"}.
	Prefix kv.Key

	// Namespace separates caches of different embedding models, typically
	// the model name.
	Namespace string

	// ChunkSize is passed to [Chunk].
	ChunkSize int
}

// Stats reports the work done by [Index.Add].
type Stats struct {
	Articles int
	Passages int
	Embedded int
	Cached   int
}

// Index is an in-process passage index. It is safe for concurrent use.
type Index struct {
	store     kv.Store
	embedder  embed.Embedder
	vec       vecstore.Index
	prefix    kv.Key
	namespace string
	chunkSize int

	mu       sync.RWMutex
	passages map[string]Passage
	terms    map[string]map[string]struct{}
}

// NewIndex creates an empty Index.
func NewIndex(cfg IndexConfig) *Index {
	idx := &Index{
		store:     cfg.Store,
		embedder:  cfg.Embedder,
		vec:       cfg.Vec,
		prefix:    cfg.Prefix,
		namespace: cfg.Namespace,
		chunkSize: cfg.ChunkSize,
		passages:  make(map[string]Passage),
		terms:     make(map[string]map[string]struct{}),
	}
	if idx.vec == nil {
		idx.vec = vecstore.NewMemory()
	}
	if len(idx.prefix) == 0 {
		idx.prefix = kv.Key{"kb"}
	}
	return idx
}

// Len returns the number of indexed passages.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.passages)
}

// Add chunks and indexes articles. Re-adding an article replaces passages
// with the same ID.
func (idx *Index) Add(ctx context.Context, articles ...Article) (Stats, error) {
	stats := Stats{Articles: len(articles)}
	var passages []Passage
	for _, a := range articles {
		passages = append(passages, Chunk(a, idx.chunkSize)...)
	}
	stats.Passages = len(passages)

	ids := make(map[string]struct{}, len(passages))
	for _, p := range passages {
		ids[p.ID] = struct{}{}
	}

	if idx.embedder != nil && len(passages) > 0 {
		vecs, embedded, err := idx.embedAll(ctx, passages)
		if err != nil {
			return stats, err
		}
		stats.Embedded = embedded
		stats.Cached = len(passages) - embedded
		vids := make([]string, len(passages))
		for i, p := range passages {
			vids[i] = p.ID
		}
		if err := idx.vec.BatchInsert(vids, vecs); err != nil {
			return stats, fmt.Errorf("kb: index vectors: %w", err)
		}
	}

	idx.mu.Lock()
	for _, a := range articles {
		idx.removeArticleLocked(a.ID, ids)
	}
	for _, p := range passages {
		idx.passages[p.ID] = p
		idx.terms[p.ID] = termSet(p.Title + " " + p.Text + " " + strings.Join(p.Tags, " "))
	}
	idx.mu.Unlock()
	return stats, nil
}

// removeArticleLocked drops an article's passages except those in keep,
// which were just re-indexed.
func (idx *Index) removeArticleLocked(articleID string, keep map[string]struct{}) {
	for id, p := range idx.passages {
		if _, ok := keep[id]; ok {
			continue
		}
		if p.ArticleID == articleID {
			delete(idx.passages, id)
			delete(idx.terms, id)
			_ = idx.vec.Delete(id)
		}
	}
}

// embedAll returns one vector per passage, calling the embedder only for
// passages missing from the cache.
func (idx *Index) embedAll(ctx context.Context, passages []Passage) ([][]float32, int, error) {
	vecs := make([][]float32, len(passages))
	keys := make([]kv.Key, len(passages))
	var (
		missTexts []string
		missIdx   []int
	)
	for i, p := range passages {
		text := embedText(p)
		keys[i] = idx.cacheKey(text)
		if idx.store != nil {
			if v, err := kv.GetValue[[]float32](ctx, idx.store, keys[i]); err == nil {
				vecs[i] = *v
				continue
			}
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return vecs, 0, nil
	}

	got, err := idx.embedder.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, 0, fmt.Errorf("kb: embed passages: %w", err)
	}
	entries := make([]kv.Entry, 0, len(got))
	for j, v := range got {
		i := missIdx[j]
		vecs[i] = v
		if idx.store == nil {
			continue
		}
		data, err := msgpack.Marshal(v)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, kv.Entry{Key: keys[i], Value: data})
	}
	if idx.store != nil {
		if err := idx.store.BatchSet(ctx, entries); err != nil {
			return nil, 0, fmt.Errorf("kb: cache embeddings: %w", err)
		}
	}
	return vecs, len(missTexts), nil
}

func (idx *Index) cacheKey(text string) kv.Key {
	h := sha256.New()
	h.Write([]byte(idx.namespace))
	h.Write([]byte{0})
	h.Write([]byte(text))
	k := make(kv.Key, len(idx.prefix)+2)
	copy(k, idx.prefix)
	k[len(idx.prefix)] = "emb"
	k[len(idx.prefix)+1] = hex.EncodeToString(h.Sum(nil))
	return k
}

func embedText(p Passage) string {
	return p.Title + "\n\n" + p.Text
}

// Search returns up to topK passages ranked by fused vector and keyword
// score. Passages scoring zero are dropped.
func (idx *Index) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" || topK <= 0 {
		return nil, nil
	}

	vecScores := make(map[string]float64)
	if idx.embedder != nil && idx.vec.Len() > 0 {
		qv, err := idx.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("kb: embed query: %w", err)
		}
		matches, err := idx.vec.Search(qv, max(topK*3, 20))
		if err != nil {
			return nil, fmt.Errorf("kb: vector search: %w", err)
		}
		for _, m := range matches {
			// Opposite and orthogonal vectors both score zero.
			vecScores[m.ID] = max(0, 1-float64(m.Distance))
		}
	}

	qterms := tokenize(query)

	idx.mu.RLock()
	results := make([]Result, 0, len(idx.passages))
	for id, p := range idx.passages {
		score := weightVector*vecScores[id] + weightKeyword*keywordScore(qterms, idx.terms[id])
		if score <= 0 {
			continue
		}
		results = append(results, Result{Passage: p, Score: score})
	}
	idx.mu.RUnlock()

	slices.SortFunc(results, func(a, b Result) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.Passage.ID, b.Passage.ID)
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// keywordScore is the fraction of query terms present in the passage.
func keywordScore(qterms []string, terms map[string]struct{}) float64 {
	if len(qterms) == 0 {
		return 0
	}
	hits := 0
	for _, t := range qterms {
		if _, ok := terms[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(qterms))
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 || stopwords[f] {
			continue
		}
		if _, ok := seen[f]; !ok {
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}
	return out
}

func termSet(text string) map[string]struct{} {
	ts := tokenize(text)
	m := make(map[string]struct{}, len(ts))
	for _, t := range ts {
		m[t] = struct{}{}
	}
	return m
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "how": true, "to": true, "my": true,
	"is": true, "of": true, "in": true, "on": true, "do": true, "can": true,
	"what": true, "a": true, "an": true, "it": true, "with": true, "i": true,
}

var _ Searcher = (*Index)(nil)
