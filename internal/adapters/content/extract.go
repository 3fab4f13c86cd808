package content

import (
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultMaxChars bounds the extracted text handed to the summarizer.
const DefaultMaxChars = 8000

// skipped elements contribute no text.
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
}

// block elements break lines so paragraph structure survives extraction.
var block = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Article: true, atom.Section: true,
	atom.Header: true, atom.Footer: true, atom.Main: true, atom.Aside: true,
	atom.Li: true, atom.Ul: true, atom.Ol: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Br: true, atom.Table: true, atom.Thead: true, atom.Tbody: true, atom.Tfoot: true,
	atom.Tr: true, atom.Td: true, atom.Th: true, atom.Figure: true, atom.Figcaption: true,
}

var (
	inlineSpace = regexp.MustCompile(`[ \t\r\f\v]+`)
	blankLines  = regexp.MustCompile(`\n\s*\n+`)
)

// ExtractHTML returns the human-readable text of an HTML document. Comments and
// script, style, noscript and template content are dropped, block elements become line
// breaks, entities are decoded and whitespace is collapsed. The result is cut to
// maxChars characters when maxChars > 0.
func ExtractHTML(r io.Reader, maxChars int) (string, error) {
	z := html.NewTokenizer(r)
	var b strings.Builder
	depth := 0

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return "", err
			}
			return Normalize(b.String(), maxChars), nil

		case html.TextToken:
			if depth == 0 {
				b.Write(z.Text())
			}

		case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if skipped[a] {
				switch {
				case tt == html.StartTagToken:
					depth++
				case tt == html.EndTagToken && depth > 0:
					depth--
				}
				continue
			}
			if depth > 0 {
				continue
			}
			if block[a] {
				b.WriteByte('\n')
			} else {
				b.WriteByte(' ')
			}
		}
	}
}

// Normalize collapses runs of inline whitespace, squeezes blank lines, trims, and
// cuts the result to maxChars characters when maxChars > 0.
func Normalize(text string, maxChars int) string {
	text = inlineSpace.ReplaceAllString(text, " ")
	text = blankLines.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)
	return truncateRunes(text, maxChars)
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
