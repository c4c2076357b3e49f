// Package manifest defines the offline pipeline's checkpoint files. Each
// stage of the batch pipeline (chunk, embed, upload) reads the previous
// stage's manifest from disk, so a failed run can be resumed without
// re-scraping or re-embedding everything before it.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/coursekb/coursekb/internal/domain"
)

// ChunkEntry is one documentation chunk: id is "<path>#<ordinal>", url the
// deep link into the published site.
type ChunkEntry struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

// Thread is one scraped forum thread with its posts.
type Thread struct {
	Title string `json:"thread_title"`
	URL   string `json:"thread_url"`
	Posts []Post `json:"posts"`
}

// Post is a single forum post within a thread.
type Post struct {
	Type      string `json:"type"` // question, answer, follow-up
	Text      string `json:"text"`
	URL       string `json:"url"`
	CreatedBy string `json:"created_by"`
	CreatedAt string `json:"created_at"`
}

// VectorEntry is one embedded item ready for upload.
type VectorEntry struct {
	ID        string    `json:"id"`
	Embedding []float32 `json:"embedding"`
	Metadata  Metadata  `json:"metadata"`
}

// Metadata is the stored payload of a vector entry. Chunk-sourced entries
// carry OriginalID and URL; thread-sourced entries carry ThreadTitle,
// PostURL, CreatedBy, and PostType.
type Metadata struct {
	Text        string `json:"text"`
	Source      string `json:"source"`
	OriginalID  string `json:"original_id,omitempty"`
	URL         string `json:"url,omitempty"`
	ThreadTitle string `json:"thread_title,omitempty"`
	PostURL     string `json:"post_url,omitempty"`
	CreatedBy   string `json:"created_by,omitempty"`
	PostType    string `json:"type,omitempty"`
}

// ToPayload converts stored metadata into the domain payload shape.
func (m Metadata) ToPayload() domain.Payload {
	return domain.Payload{
		Text:        m.Text,
		Source:      domain.Source(m.Source),
		OriginalID:  m.OriginalID,
		URL:         m.URL,
		ThreadTitle: m.ThreadTitle,
		PostURL:     m.PostURL,
		CreatedBy:   m.CreatedBy,
		PostType:    m.PostType,
	}
}

// LoadChunks reads a chunk manifest.
func LoadChunks(path string) ([]ChunkEntry, error) {
	var out []ChunkEntry
	if err := load(path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadThreads reads a thread manifest.
func LoadThreads(path string) ([]Thread, error) {
	var out []Thread
	if err := load(path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadVectors reads a vector manifest.
func LoadVectors(path string) ([]VectorEntry, error) {
	var out []VectorEntry
	if err := load(path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Save writes a manifest atomically: the file appears complete or not at all,
// so an interrupted run never leaves a half-written checkpoint behind.
func Save(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".manifest-*")
	if err != nil {
		return fmt.Errorf("create temp manifest: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close manifest: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename manifest: %w", err)
	}
	return nil
}

func load(path string, out any) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read manifest %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return nil
}
