package export

import (
	"fmt"
	"io"

	"github.com/ashureev/hacxweb/internal/domain"
)

// MarkdownExporter writes a readable transcript. Turn content is already
// markdown and is written verbatim.
type MarkdownExporter struct{}

// Export exports a conversation to Markdown format
func (e *MarkdownExporter) Export(conv *domain.Conversation, w io.Writer) error {
	if _, err := fmt.Fprintf(w, "# HacxGPT Session %s\n\n", conv.SessionID); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if conv.Provider != "" {
		_, _ = fmt.Fprintf(w, "**Provider:** %s  \n", conv.Provider)
	}
	if conv.Model != "" {
		_, _ = fmt.Fprintf(w, "**Model:** %s  \n", conv.Model)
	}
	_, _ = fmt.Fprintf(w, "**Turns:** %d\n\n", conv.Transcript.Len())
	_, _ = fmt.Fprintf(w, "---\n\n")

	turns := conv.Transcript.Turns()
	for i, t := range turns {
		if _, err := fmt.Fprintf(w, "**%s:**\n\n%s\n\n", t.Role, t.Content); err != nil {
			return fmt.Errorf("write turn %d: %w", i, err)
		}
		if i < len(turns)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}
	return nil
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}

// ContentType returns the MIME type for this format
func (e *MarkdownExporter) ContentType() string {
	return "text/markdown; charset=utf-8"
}
