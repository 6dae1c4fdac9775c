// Package ui renders retrieval results for the terminal, styled on a
// TTY and plain everywhere else.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/scholaq/scholaq/internal/cite"
	"github.com/scholaq/scholaq/internal/rag"
	"github.com/scholaq/scholaq/internal/store"
)

const snippetLimit = 400

// Renderer writes query results to a terminal or pipe.
type Renderer struct {
	w      io.Writer
	styles Styles
}

// NewRenderer picks styled or plain output for w. NO_COLOR and non-TTY
// writers both force plain.
func NewRenderer(w io.Writer) *Renderer {
	noColor := DetectNoColor() || !IsTTY(w)
	return &Renderer{w: w, styles: GetStyles(noColor)}
}

// NewPlainRenderer always renders without styling.
func NewPlainRenderer(w io.Writer) *Renderer {
	return &Renderer{w: w, styles: NoColorStyles()}
}

// RenderResult writes the retrieval result. papers supplies citation
// metadata by paper ID; citeStyle may be empty to skip citations.
func (r *Renderer) RenderResult(result *rag.Result, papers map[string]*store.Paper, citeStyle string) error {
	s := r.styles

	if len(result.SubQuestions) > 0 {
		fmt.Fprintln(r.w, s.Header.Render("Sub-questions"))
		for i, sub := range result.SubQuestions {
			fmt.Fprintf(r.w, "  %d. %s\n", i+1, sub)
		}
		fmt.Fprintln(r.w)
	}

	if len(result.Chunks) == 0 {
		fmt.Fprintln(r.w, s.Warning.Render("No results."))
		return nil
	}

	fmt.Fprintln(r.w, s.Header.Render(fmt.Sprintf("Results (%d)", len(result.Chunks))))
	rule := s.Rule.Render(strings.Repeat("-", 60))

	for i, c := range result.Chunks {
		fmt.Fprintln(r.w, rule)

		title := c.PaperID
		if p, ok := papers[c.PaperID]; ok && p.Title != "" {
			title = p.Title
		}
		fmt.Fprintf(r.w, "%s %s\n", s.Rank.Render(fmt.Sprintf("%d.", i+1)), s.Title.Render(title))

		meta := []string{fmt.Sprintf("score %.4f", c.RerankScore)}
		if c.Section != "" {
			meta = append(meta, string(c.Section))
		}
		if c.PageNumber > 0 {
			meta = append(meta, fmt.Sprintf("p.%d", c.PageNumber))
		}
		meta = append(meta, "via "+sourceLabel(c.Sources))
		fmt.Fprintln(r.w, "   "+s.Meta.Render(strings.Join(meta, " | ")))

		fmt.Fprintln(r.w, indent(snippet(c.FinalText()), "   "))

		if citeStyle != "" {
			if p, ok := papers[c.PaperID]; ok {
				ref, err := cite.Format(p, citeStyle)
				if err != nil {
					return err
				}
				fmt.Fprintln(r.w, "   "+s.Meta.Render(ref))
			}
		}
	}
	fmt.Fprintln(r.w, rule)
	return nil
}

func sourceLabel(sources []rag.Source) string {
	if len(sources) == 0 {
		return "?"
	}
	labels := make([]string, len(sources))
	for i, src := range sources {
		labels[i] = string(src)
	}
	return strings.Join(labels, "+")
}

func snippet(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= snippetLimit {
		return text
	}
	cut := text[:snippetLimit]
	if idx := strings.LastIndex(cut, " "); idx > snippetLimit/2 {
		cut = cut[:idx]
	}
	return cut + "..."
}

func indent(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if the NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}
