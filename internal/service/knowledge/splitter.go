// Package knowledge serves reference passages from a teaching document to the answer
// chain: the document is split into paragraphs, indexed, retrieved by similarity to the
// question and reranked before it reaches the prompt.
package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"
)

// MetaSource is the metadata key holding the ID of the document a chunk came from.
const MetaSource = "source"

// ParagraphSplitter cuts documents into chunks at blank lines. Blank chunks are dropped.
type ParagraphSplitter struct{}

var _ document.Transformer = ParagraphSplitter{}

// Transform implements document.Transformer.
func (ParagraphSplitter) Transform(_ context.Context, src []*schema.Document, _ ...document.TransformerOption) ([]*schema.Document, error) {
	var out []*schema.Document
	for _, doc := range src {
		content := strings.ReplaceAll(doc.Content, "\r\n", "\n")
		for _, part := range strings.Split(content, "\n\n") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			chunk := &schema.Document{
				ID:       fmt.Sprintf("chunk-%d", len(out)),
				Content:  part,
				MetaData: map[string]any{MetaSource: doc.ID},
			}
			out = append(out, chunk)
		}
	}
	return out, nil
}
