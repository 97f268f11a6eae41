package parser

import (
	"io"
	"strings"

	"github.com/dgallion1/narrator/internal/document"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark. Headings become
// their own paragraphs; code and raw HTML blocks are not narrated.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var paragraphs []string
	collectBlocks(doc, src, &paragraphs)
	return document.Single(titleFromFilename(filename), paragraphs), nil
}

func collectBlocks(n ast.Node, src []byte, out *[]string) {
	switch n.(type) {
	case *ast.Heading, *ast.Paragraph, *ast.TextBlock:
		var buf strings.Builder
		inlineText(n, src, &buf)
		if t := strings.Join(strings.Fields(buf.String()), " "); t != "" {
			*out = append(*out, t)
		}
		return
	case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock, *ast.ThematicBreak:
		return
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		collectBlocks(c, src, out)
	}
}

// inlineText writes the readable text of n's inline children.
func inlineText(n ast.Node, src []byte, buf *strings.Builder) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		case *ast.AutoLink, *ast.RawHTML:
			// URLs and inline tags are not read aloud.
		default:
			inlineText(c, src, buf)
		}
	}
}
