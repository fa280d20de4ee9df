package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
)

// FeedLinks returns the item links of an RSS, Atom or JSON feed, in feed
// order without duplicates. max <= 0 means no limit.
func FeedLinks(ctx context.Context, fetcher Fetcher, feedURL string, max int) ([]string, error) {
	body, err := fetcher.Get(ctx, feedURL, 0)
	if err != nil {
		return nil, fmt.Errorf("fetching feed %s: %w", feedURL, err)
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", feedURL, err)
	}

	seen := make(map[string]bool)
	var links []string
	for _, item := range feed.Items {
		link := strings.TrimSpace(item.Link)
		if link == "" && len(item.Links) > 0 {
			link = strings.TrimSpace(item.Links[0])
		}
		if link == "" || seen[link] {
			continue
		}
		seen[link] = true
		links = append(links, link)
		if max > 0 && len(links) == max {
			break
		}
	}
	return links, nil
}
