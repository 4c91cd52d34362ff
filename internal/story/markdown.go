package story

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var blankLines = regexp.MustCompile(`\n{3,}`)

// StripMarkdown turns markdown produced by a model into plain text that can
// be read aloud. Paragraph breaks are kept; code, HTML and link targets are
// dropped.
func StripMarkdown(markdown string) string {
	md := goldmark.New()
	reader := text.NewReader([]byte(markdown))
	doc := md.Parser().Parse(reader)

	var buf strings.Builder
	walkNode(doc, reader.Source(), &buf)

	out := blankLines.ReplaceAllString(buf.String(), "\n\n")
	return strings.TrimSpace(out)
}

func walkChildren(n ast.Node, source []byte, buf *strings.Builder) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		walkNode(c, source, buf)
	}
}

func walkNode(node ast.Node, source []byte, buf *strings.Builder) {
	switch n := node.(type) {
	case *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock, *ast.RawHTML:
		return

	case *ast.ThematicBreak:
		buf.WriteString("\n\n")
		return

	case *ast.Text:
		buf.Write(n.Segment.Value(source))
		switch {
		case n.HardLineBreak():
			buf.WriteString("\n")
		case n.SoftLineBreak():
			buf.WriteString(" ")
		}
		return

	case *ast.String:
		buf.Write(n.Value)
		return

	case *ast.CodeSpan:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				buf.Write(t.Segment.Value(source))
			}
		}
		return

	case *ast.Heading, *ast.Paragraph, *ast.TextBlock:
		walkChildren(n, source, buf)
		buf.WriteString("\n\n")
		return

	case *ast.ListItem:
		walkChildren(n, source, buf)
		buf.WriteString("\n")
		return

	case *ast.Image:
		return

	default:
		walkChildren(node, source, buf)
	}
}
