// Package extract pulls fenced code blocks out of assistant markdown.
package extract

import (
	"bytes"

	"github.com/ashureev/hacxweb/internal/domain"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// CodeBlock is one fenced block. Language is empty when the fence has no info string.
type CodeBlock struct {
	Turn     int    `json:"turn"`
	Language string `json:"language"`
	Code     string `json:"code"`
}

var parser = goldmark.New().Parser()

// CodeBlocks returns the fenced code blocks in markdown, in document order.
func CodeBlocks(markdown string) []CodeBlock {
	src := []byte(markdown)
	doc := parser.Parse(text.NewReader(src))

	var blocks []CodeBlock
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fenced, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		var buf bytes.Buffer
		lines := fenced.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}
		blocks = append(blocks, CodeBlock{
			Language: string(fenced.Language(src)),
			Code:     buf.String(),
		})
		return ast.WalkSkipChildren, nil
	})
	return blocks
}

// FromTranscript collects code blocks from every assistant turn.
func FromTranscript(t domain.Transcript) []CodeBlock {
	out := []CodeBlock{}
	for i, turn := range t.Turns() {
		if turn.Role != domain.RoleAssistant {
			continue
		}
		for _, b := range CodeBlocks(turn.Content) {
			b.Turn = i
			out = append(out, b)
		}
	}
	return out
}
