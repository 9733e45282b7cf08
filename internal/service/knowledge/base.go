package knowledge

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
)

// DefaultTopN is how many reranked chunks reach the prompt.
const DefaultTopN = 3

// Base answers "which passages matter for this question": it retrieves topK candidates
// and keeps the topN that share the most wording with the question.
type Base struct {
	retriever retriever.Retriever
	topK      int
	topN      int
}

// New wraps a retriever. Non-positive limits fall back to DefaultTopK and DefaultTopN.
func New(r retriever.Retriever, topK, topN int) *Base {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &Base{retriever: r, topK: topK, topN: topN}
}

// Load reads a UTF-8 text document, splits it into paragraphs and indexes them.
func Load(ctx context.Context, path string, embedder embedding.Embedder, topK, topN int) (*Base, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading knowledge file: %w", err)
	}

	src := []*schema.Document{{ID: filepath.Base(path), Content: string(raw)}}
	chunks, err := ParagraphSplitter{}.Transform(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("splitting knowledge file: %w", err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("knowledge file %s has no content", path)
	}

	index, err := NewIndex(ctx, chunks, embedder)
	if err != nil {
		return nil, fmt.Errorf("indexing knowledge file: %w", err)
	}

	log.Printf("[knowledge] indexed %d chunks from %s (embedder=%t)", index.Len(), path, embedder != nil)
	return New(index, topK, topN), nil
}

// Passages returns the reference texts for question, most relevant first.
func (b *Base) Passages(ctx context.Context, question string) ([]string, error) {
	docs, err := b.retriever.Retrieve(ctx, question, retriever.WithTopK(b.topK))
	if err != nil {
		return nil, fmt.Errorf("retrieving passages: %w", err)
	}

	kept := Rerank(question, docs, b.topN)
	log.Printf("[knowledge] retrieved %d chunks, kept %d after rerank", len(docs), len(kept))

	passages := make([]string, 0, len(kept))
	for _, doc := range kept {
		passages = append(passages, doc.Content)
	}
	return passages, nil
}

// Rerank orders docs by how much of the question's wording they contain and keeps the
// first n. Ties keep the retrieval order.
func Rerank(question string, docs []*schema.Document, n int) []*schema.Document {
	q := bigrams(question)
	scored := make([]float64, len(docs))
	order := make([]int, len(docs))
	for i, doc := range docs {
		scored[i] = overlap(q, bigrams(doc.Content))
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scored[order[a]] > scored[order[b]]
	})

	if n > len(order) {
		n = len(order)
	}
	out := make([]*schema.Document, 0, n)
	for _, i := range order[:max(n, 0)] {
		out = append(out, docs[i])
	}
	return out
}
