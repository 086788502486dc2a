package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ashureev/hacxweb/internal/domain"
)

// JSONExporter exports conversations as one indented JSON document
type JSONExporter struct{}

// Export exports a conversation to JSON format
func (e *JSONExporter) Export(conv *domain.Conversation, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(newDocument(conv)); err != nil {
		return fmt.Errorf("failed to encode conversation: %w", err)
	}
	return nil
}

// Extension returns the file extension for this format
func (e *JSONExporter) Extension() string {
	return "json"
}

// ContentType returns the MIME type for this format
func (e *JSONExporter) ContentType() string {
	return "application/json"
}

// JSONLExporter exports conversations in JSONL format (one turn per line)
type JSONLExporter struct{}

// Export exports a conversation to JSONL format
func (e *JSONLExporter) Export(conv *domain.Conversation, w io.Writer) error {
	enc := json.NewEncoder(w)
	for i, t := range conv.Transcript.Turns() {
		obj := map[string]any{
			"index":   i,
			"role":    t.Role,
			"content": t.Content,
		}
		if err := enc.Encode(obj); err != nil {
			return fmt.Errorf("failed to encode turn: %w", err)
		}
	}
	return nil
}

// Extension returns the file extension for this format
func (e *JSONLExporter) Extension() string {
	return "jsonl"
}

// ContentType returns the MIME type for this format
func (e *JSONLExporter) ContentType() string {
	return "application/x-ndjson"
}
