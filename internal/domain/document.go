package domain

import "strings"

// Source identifies where a piece of indexed text came from.
type Source string

const (
	// SourceChunk marks text cut from a course documentation file.
	SourceChunk Source = "chunk"
	// SourceThread marks text taken from a forum thread post.
	SourceThread Source = "thread"
)

// Document is a unit of source content: a markdown file or a forum post.
type Document struct {
	ID     string
	Text   string
	Source Source

	// Thread metadata, empty for documentation chunks.
	URL         string
	ThreadTitle string
	CreatedBy   string
	PostType    string
}

// Chunk is a bounded, contiguous slice of a document's text. Chunks are
// immutable once produced; the ID carries the parent document ID and the
// chunk's ordinal position.
type Chunk struct {
	ID      string
	Ordinal int
	Text    string
	URL     string
}

// Payload is the non-vector metadata persisted alongside a stored point.
// Field presence depends on Source: documentation chunks carry OriginalID
// and URL, thread posts carry ThreadTitle, PostURL, CreatedBy, and PostType.
type Payload struct {
	Text        string
	Source      Source
	OriginalID  string
	URL         string
	ThreadTitle string
	PostURL     string
	CreatedBy   string
	PostType    string
}

// Link is a citation pointing back at a forum post that contributed to an
// answer's grounding context.
type Link struct {
	URL  string
	Text string
}

// LinkFromPayload builds a citation for a thread-sourced payload. The link
// text is the payload text with internal line breaks collapsed to spaces.
// Returns false when the payload is not a thread post or has no post URL.
func LinkFromPayload(p Payload) (Link, bool) {
	if p.Source != SourceThread || p.PostURL == "" {
		return Link{}, false
	}
	text := strings.ReplaceAll(strings.TrimSpace(p.Text), "\n", " ")
	return Link{URL: p.PostURL, Text: text}, true
}
