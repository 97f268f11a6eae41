package document

import "strings"

// Document is the text acquired from one input file.
type Document struct {
	Title string // from metadata or filename
	Pages []Page
}

// Page is one page or section of source text. Formats without pages
// produce a single page.
type Page struct {
	Number int    // 1-based
	Text   string // paragraphs separated by blank lines
}

// Text joins the non-empty pages with a blank line.
func (d *Document) Text() string {
	var parts []string
	for _, p := range d.Pages {
		if t := strings.TrimSpace(p.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

// EmptyPages returns the numbers of pages that carry no text.
func (d *Document) EmptyPages() []int {
	var out []int
	for _, p := range d.Pages {
		if strings.TrimSpace(p.Text) == "" {
			out = append(out, p.Number)
		}
	}
	return out
}

// SetPage replaces the text of page n. It reports false when no such page
// exists.
func (d *Document) SetPage(n int, text string) bool {
	for i := range d.Pages {
		if d.Pages[i].Number == n {
			d.Pages[i].Text = text
			return true
		}
	}
	return false
}

// Single wraps paragraphs into a one-page document.
func Single(title string, paragraphs []string) *Document {
	doc := &Document{Title: title}
	var kept []string
	for _, p := range paragraphs {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) > 0 {
		doc.Pages = []Page{{Number: 1, Text: strings.Join(kept, "\n\n")}}
	}
	return doc
}
