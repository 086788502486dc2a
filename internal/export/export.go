// Package export renders console conversations for download.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ashureev/hacxweb/internal/domain"
)

// Exporter defines the interface for all export formats
type Exporter interface {
	Export(conv *domain.Conversation, w io.Writer) error
	Extension() string
	ContentType() string
}

// NewExporter creates a new exporter based on format
func NewExporter(format string) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jsonl":
		return &JSONLExporter{}, nil
	case "", "md", "markdown":
		return &MarkdownExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	case "json":
		return &JSONExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: md, json, jsonl, yaml)", format)
	}
}

// Filename returns a download name for conv in the exporter's format.
func Filename(conv *domain.Conversation, e Exporter) string {
	ts := conv.UpdatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return fmt.Sprintf("hacx-%s.%s", ts.UTC().Format("20060102-150405"), e.Extension())
}

// document is the structured form shared by the JSON and YAML exporters.
type document struct {
	SessionID string        `json:"session_id" yaml:"session_id"`
	Provider  string        `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model     string        `json:"model,omitempty" yaml:"model,omitempty"`
	CreatedAt string        `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt string        `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
	Turns     []domain.Turn `json:"turns" yaml:"turns"`
}

func newDocument(conv *domain.Conversation) document {
	turns := conv.Transcript.Turns()
	if turns == nil {
		turns = []domain.Turn{}
	}
	return document{
		SessionID: conv.SessionID,
		Provider:  conv.Provider,
		Model:     conv.Model,
		CreatedAt: formatTime(conv.CreatedAt),
		UpdatedAt: formatTime(conv.UpdatedAt),
		Turns:     turns,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
