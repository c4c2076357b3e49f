// Package chunker splits course documents into token-bounded chunks along
// paragraph boundaries. Chunking is a pure function of (text, limit,
// counter): identical input always yields identical chunk boundaries.
package chunker

import (
	"fmt"
	"path"
	"strings"
)

// TokenCounter counts tokens under a fixed tokenizer.
type TokenCounter interface {
	Count(text string) int
}

// Chunker accumulates paragraphs into chunks of at most limit tokens.
type Chunker struct {
	counter TokenCounter
	limit   int
}

// New creates a chunker with the given token budget per chunk.
func New(counter TokenCounter, limit int) *Chunker {
	return &Chunker{counter: counter, limit: limit}
}

// Split cuts text into chunks on blank-line paragraph boundaries. A
// paragraph is never split internally: a single paragraph over the token
// budget is emitted verbatim as its own oversized chunk. Splitting
// mid-paragraph would change chunk identity and the citation links derived
// from it, so callers must tolerate oversized chunks instead.
func (c *Chunker) Split(text string) []string {
	paragraphs := strings.Split(text, "\n\n")

	var chunks []string
	var buf []string
	bufTokens := 0

	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		tokens := c.counter.Count(para)
		if len(buf) > 0 && bufTokens+tokens > c.limit {
			chunks = append(chunks, strings.Join(buf, "\n\n"))
			buf = buf[:0:0]
			bufTokens = 0
		}
		buf = append(buf, para)
		bufTokens += tokens
	}

	if len(buf) > 0 {
		chunks = append(chunks, strings.Join(buf, "\n\n"))
	}

	return chunks
}

// ChunkID derives a chunk identifier from its parent document path and
// ordinal position.
func ChunkID(docPath string, ordinal int) string {
	return fmt.Sprintf("%s#%d", docPath, ordinal)
}

// DeepLink computes the published-site URL for a documentation file. The
// site routes by base file name, so "lessons/embeddings.md" maps to
// "<base>/#/embeddings".
func DeepLink(siteBaseURL, docPath string) string {
	p := strings.ReplaceAll(docPath, `\`, "/")
	base := path.Base(p)
	if i := strings.Index(base, ".md"); i >= 0 {
		base = base[:i]
	}
	return strings.TrimRight(siteBaseURL, "/") + "/#/" + base
}
