package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// articleSelectors are main-content containers, most specific first.
var articleSelectors = []string{
	"article", "[itemprop=articleBody]", ".article-body", ".post-content",
	".entry-content", "main", "#content", ".content",
}

// ArticleStrategy reads the paragraphs of the first main-content container
// holding at least MinChars of text.
type ArticleStrategy struct {
	MinChars int
}

func (ArticleStrategy) Name() string { return "article" }

func (s ArticleStrategy) Extract(doc *goquery.Document) (string, error) {
	for _, sel := range articleSelectors {
		container := doc.Find(sel).First()
		if container.Length() == 0 {
			continue
		}
		text := paragraphText(container.Find("p"))
		if text == "" {
			text = Collapse(container.Text())
		}
		if len(text) >= s.MinChars {
			return text, nil
		}
	}
	return "", fmt.Errorf("no article container with %d+ characters", s.MinChars)
}

// ParagraphStrategy joins every paragraph on the page.
type ParagraphStrategy struct{}

func (ParagraphStrategy) Name() string { return "paragraphs" }

func (ParagraphStrategy) Extract(doc *goquery.Document) (string, error) {
	text := paragraphText(doc.Find("p"))
	if text == "" {
		return "", fmt.Errorf("no paragraph text")
	}
	return text, nil
}

// MetaStrategy falls back to the page title and description tags.
type MetaStrategy struct{}

func (MetaStrategy) Name() string { return "meta" }

func (MetaStrategy) Extract(doc *goquery.Document) (string, error) {
	var parts []string
	seen := make(map[string]bool)
	add := func(s string) {
		s = Collapse(s)
		if s != "" && !seen[s] {
			seen[s] = true
			parts = append(parts, s)
		}
	}
	add(doc.Find("title").First().Text())
	for _, sel := range []string{
		`meta[property="og:title"]`, `meta[name="description"]`,
		`meta[property="og:description"]`, `meta[name="twitter:description"]`,
		`meta[name="keywords"]`,
	} {
		if v, ok := doc.Find(sel).First().Attr("content"); ok {
			add(v)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no title or description")
	}
	return strings.Join(parts, ". "), nil
}

func paragraphText(sel *goquery.Selection) string {
	var parts []string
	sel.Each(func(_ int, p *goquery.Selection) {
		if t := Collapse(p.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, " ")
}
