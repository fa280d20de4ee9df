// Package extract turns a content URL into plain article text.
//
// The page is fetched once and handed to an ordered list of named
// strategies. The first strategy that yields text wins; every attempt is
// reported so callers can see why earlier strategies failed.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ignite/content-signals/internal/pkg/logger"
)

// DefaultMaxChars caps extracted text.
const DefaultMaxChars = 12000

// ErrNoContent is returned when no strategy produced text.
var ErrNoContent = errors.New("no extractable content")

// Fetcher downloads a page body, reading at most limit bytes when limit > 0.
type Fetcher interface {
	Get(ctx context.Context, url string, limit int64) ([]byte, error)
}

// Strategy extracts text from a parsed page.
type Strategy interface {
	Name() string
	Extract(doc *goquery.Document) (string, error)
}

// Attempt records one strategy run.
type Attempt struct {
	Strategy string `json:"strategy"`
	Error    string `json:"error,omitempty"`
}

// Result is the extracted text and the strategy that produced it.
type Result struct {
	URL      string    `json:"url"`
	Text     string    `json:"text"`
	Strategy string    `json:"strategy"`
	Attempts []Attempt `json:"attempts"`
}

// Chain runs strategies in order.
type Chain struct {
	fetcher    Fetcher
	strategies []Strategy
	maxChars   int
	maxBytes   int64
}

// Option configures a Chain.
type Option func(*Chain)

// WithMaxChars caps the extracted text in characters.
func WithMaxChars(n int) Option {
	return func(c *Chain) {
		if n > 0 {
			c.maxChars = n
		}
	}
}

// WithMaxBytes caps the downloaded page size.
func WithMaxBytes(n int64) Option {
	return func(c *Chain) { c.maxBytes = n }
}

// WithStrategies replaces the default strategy list.
func WithStrategies(s ...Strategy) Option {
	return func(c *Chain) { c.strategies = s }
}

// DefaultStrategies returns article, paragraphs and meta, in that order.
func DefaultStrategies() []Strategy {
	return []Strategy{ArticleStrategy{MinChars: 200}, ParagraphStrategy{}, MetaStrategy{}}
}

// NewChain creates a chain over fetcher.
func NewChain(fetcher Fetcher, opts ...Option) *Chain {
	c := &Chain{
		fetcher:    fetcher,
		strategies: DefaultStrategies(),
		maxChars:   DefaultMaxChars,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Extract fetches url and runs the strategies. A fetch failure is returned
// as is; when every strategy fails the error wraps ErrNoContent and the
// result still lists the attempts.
func (c *Chain) Extract(ctx context.Context, url string) (*Result, error) {
	body, err := c.fetcher.Get(ctx, url, c.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	return c.ExtractHTML(url, body)
}

// ExtractHTML runs the strategies over an already downloaded page.
func (c *Chain) ExtractHTML(url string, body []byte) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", url, err)
	}
	doc.Find("script, style, noscript, nav, footer, aside, form, iframe, .sidebar, .menu, .cookie-notice").Remove()

	res := &Result{URL: url}
	for _, s := range c.strategies {
		text, err := s.Extract(doc)
		if err == nil {
			text = Truncate(Collapse(text), c.maxChars)
			if text == "" {
				err = ErrNoContent
			}
		}
		if err != nil {
			res.Attempts = append(res.Attempts, Attempt{Strategy: s.Name(), Error: err.Error()})
			logger.Debug("extract: strategy failed", "url", url, "strategy", s.Name(), "error", err)
			continue
		}
		res.Attempts = append(res.Attempts, Attempt{Strategy: s.Name()})
		res.Text = text
		res.Strategy = s.Name()
		return res, nil
	}
	return res, fmt.Errorf("%s: %w", url, ErrNoContent)
}

// Collapse folds runs of whitespace into single spaces.
func Collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate cuts s to at most n characters.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
