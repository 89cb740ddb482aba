// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pollui

import (
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// markdownSyntax lists the characters that can start inline markup,
// plus the line breaks the renderer collapses. Text without any of
// them, and without a bare URL, skips parsing.
const markdownSyntax = "*_`~[<&\\\r\n"

func hasMarkup(input string) bool {
	return strings.ContainsAny(input, markdownSyntax) ||
		strings.Contains(input, "://") ||
		strings.Contains(input, "www.")
}

// The parser is built once and shared; Parse keeps per-call state in
// its reader.
var (
	markdownParserInstance goldmark.Markdown
	markdownParserOnce     sync.Once
)

// getMarkdownParser returns a parser for inline markup only. Poll text
// is a single line, so the only block parser is the paragraph: "1. Yes"
// and "# general" stay literal instead of becoming a list and a
// heading.
func getMarkdownParser() goldmark.Markdown {
	markdownParserOnce.Do(func() {
		markdownParserInstance = goldmark.New(
			goldmark.WithParser(parser.NewParser(
				parser.WithBlockParsers(util.Prioritized(parser.NewParagraphParser(), 1000)),
				parser.WithInlineParsers(parser.DefaultInlineParsers()...),
			)),
			goldmark.WithExtensions(
				extension.Strikethrough,
				extension.Linkify,
			),
		)
	})
	return markdownParserInstance
}

// renderMarkdown renders the inline markdown of a poll question or
// answer in base: emphasis, strikethrough, and links become text
// attributes and code spans use the code colour. Line breaks collapse
// to spaces and raw HTML is dropped.
func (s styles) renderMarkdown(input string, base lipgloss.Style) string {
	if !hasMarkup(input) {
		return base.Render(input)
	}
	source := []byte(input)
	document := getMarkdownParser().Parser().Parse(text.NewReader(source))
	renderer := &inlineRenderer{
		source: source,
		base:   base,
		code:   s.code,
	}
	ast.Walk(document, renderer.walk)
	return renderer.output.String()
}

// inlineRenderer walks a goldmark AST and writes styled text. Style
// counters rather than booleans handle nested emphasis.
type inlineRenderer struct {
	source []byte
	base   lipgloss.Style
	code   lipgloss.Style

	output strings.Builder

	boldCount          int
	italicCount        int
	strikethroughCount int
	linkCount          int

	// pendingSpace separates the text of adjacent lines and blocks.
	pendingSpace bool
}

func (renderer *inlineRenderer) style() lipgloss.Style {
	style := renderer.base
	if renderer.boldCount > 0 {
		style = style.Bold(true)
	}
	if renderer.italicCount > 0 {
		style = style.Italic(true)
	}
	if renderer.strikethroughCount > 0 {
		style = style.Strikethrough(true)
	}
	if renderer.linkCount > 0 {
		style = style.Underline(true)
	}
	return style
}

func (renderer *inlineRenderer) write(content string, style lipgloss.Style) {
	if content == "" {
		return
	}
	if renderer.pendingSpace && renderer.output.Len() > 0 {
		renderer.output.WriteString(renderer.base.Render(" "))
	}
	renderer.pendingSpace = false
	renderer.output.WriteString(style.Render(content))
}

func (renderer *inlineRenderer) walk(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := node.(type) {
	case *ast.Emphasis:
		delta := 1
		if !entering {
			delta = -1
		}
		if node.Level >= 2 {
			renderer.boldCount += delta
		} else {
			renderer.italicCount += delta
		}

	case *extast.Strikethrough:
		if entering {
			renderer.strikethroughCount++
		} else {
			renderer.strikethroughCount--
		}

	case *ast.Link:
		if entering {
			renderer.linkCount++
		} else {
			renderer.linkCount--
		}

	case *ast.AutoLink:
		if entering {
			renderer.linkCount++
			renderer.write(string(node.Label(renderer.source)), renderer.style())
			renderer.linkCount--
		}
		return ast.WalkSkipChildren, nil

	case *ast.CodeSpan:
		if entering {
			var builder strings.Builder
			for child := node.FirstChild(); child != nil; child = child.NextSibling() {
				if segment, ok := child.(*ast.Text); ok {
					builder.Write(segment.Segment.Value(renderer.source))
				}
			}
			renderer.write(builder.String(), renderer.code)
		}
		return ast.WalkSkipChildren, nil

	case *ast.RawHTML:
		return ast.WalkSkipChildren, nil

	case *ast.Text:
		if entering {
			value := util.UnescapePunctuations(node.Segment.Value(renderer.source))
			value = util.ResolveNumericReferences(value)
			value = util.ResolveEntityNames(value)
			renderer.write(string(value), renderer.style())
			if node.SoftLineBreak() || node.HardLineBreak() {
				renderer.pendingSpace = true
			}
		}

	case *ast.String:
		if entering {
			renderer.write(string(node.Value), renderer.style())
		}

	default:
		if !entering && node.Type() == ast.TypeBlock {
			renderer.pendingSpace = true
		}
	}
	return ast.WalkContinue, nil
}
