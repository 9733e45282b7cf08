package knowledge

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
)

// DefaultTopK is how many chunks Retrieve returns without a TopK option.
const DefaultTopK = 5

// embedBatch caps the texts sent to the embedder per request.
const embedBatch = 16

// Index is an in-memory vector index over document chunks. Without an embedder it
// scores chunks by character bigram overlap with the query.
type Index struct {
	docs     []*schema.Document
	vectors  [][]float64
	embedder embedding.Embedder
}

var _ retriever.Retriever = (*Index)(nil)

// NewIndex embeds every chunk up front. A nil embedder selects lexical scoring.
func NewIndex(ctx context.Context, docs []*schema.Document, embedder embedding.Embedder) (*Index, error) {
	ix := &Index{docs: docs, embedder: embedder}
	if embedder == nil || len(docs) == 0 {
		return ix, nil
	}

	ix.vectors = make([][]float64, 0, len(docs))
	for start := 0; start < len(docs); start += embedBatch {
		end := min(start+embedBatch, len(docs))
		texts := make([]string, 0, end-start)
		for _, doc := range docs[start:end] {
			texts = append(texts, doc.Content)
		}

		vectors, err := embedder.EmbedStrings(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embedding chunks %d-%d: %w", start, end-1, err)
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("embedding chunks %d-%d: got %d vectors for %d texts", start, end-1, len(vectors), len(texts))
		}
		ix.vectors = append(ix.vectors, vectors...)
	}
	return ix, nil
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int {
	return len(ix.docs)
}

// Retrieve returns the chunks most similar to query, best first. Each result carries its
// similarity as the document score. TopK and ScoreThreshold options are honoured.
func (ix *Index) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	topK := DefaultTopK
	options := retriever.GetCommonOptions(&retriever.Options{TopK: &topK}, opts...)
	if options.TopK != nil {
		topK = *options.TopK
	}
	if topK <= 0 || len(ix.docs) == 0 {
		return []*schema.Document{}, nil
	}

	scores, err := ix.score(ctx, query)
	if err != nil {
		return nil, err
	}

	order := make([]int, len(ix.docs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	out := make([]*schema.Document, 0, min(topK, len(order)))
	for _, i := range order {
		if len(out) == topK {
			break
		}
		if options.ScoreThreshold != nil && scores[i] < *options.ScoreThreshold {
			break
		}
		out = append(out, cloneWithScore(ix.docs[i], scores[i]))
	}
	return out, nil
}

func (ix *Index) score(ctx context.Context, query string) ([]float64, error) {
	scores := make([]float64, len(ix.docs))
	if ix.embedder == nil {
		q := bigrams(query)
		for i, doc := range ix.docs {
			scores[i] = overlap(q, bigrams(doc.Content))
		}
		return scores, nil
	}

	vectors, err := ix.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, errors.New("embedding query: embedder returned no vector")
	}
	for i, vec := range ix.vectors {
		scores[i] = cosine(vectors[0], vec)
	}
	return scores, nil
}

func cloneWithScore(doc *schema.Document, score float64) *schema.Document {
	meta := make(map[string]any, len(doc.MetaData)+1)
	for k, v := range doc.MetaData {
		meta[k] = v
	}
	out := &schema.Document{ID: doc.ID, Content: doc.Content, MetaData: meta}
	return out.WithScore(score)
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// bigrams returns the set of adjacent letter/digit pairs in s. Text with a single such
// rune yields that rune alone.
func bigrams(s string) map[string]struct{} {
	var runes []rune
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			runes = append(runes, r)
		}
	}

	set := make(map[string]struct{}, len(runes))
	if len(runes) == 1 {
		set[string(runes)] = struct{}{}
		return set
	}
	for i := 0; i+1 < len(runes); i++ {
		set[string(runes[i:i+2])] = struct{}{}
	}
	return set
}

// overlap is the share of query grams found in the chunk.
func overlap(query, chunk map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}
	hits := 0
	for g := range query {
		if _, ok := chunk[g]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}
