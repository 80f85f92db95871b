package parser

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/domain"
	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/scanner"
)

const defaultRSSBaseURL = "https://export.arxiv.org/rss"

// ArxivRSSFetcher reads the per-category arXiv RSS feed of daily
// announcements.
type ArxivRSSFetcher struct {
	parser  *gofeed.Parser
	baseURL string
}

// NewArxivRSSFetcher wires an HTTP client; baseURL defaults to the arXiv
// export host when empty.
func NewArxivRSSFetcher(client *http.Client, baseURL string) *ArxivRSSFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if baseURL == "" {
		baseURL = defaultRSSBaseURL
	}
	p := gofeed.NewParser()
	p.Client = client
	p.UserAgent = "DailyArXivGPT/1.0"
	return &ArxivRSSFetcher{parser: p, baseURL: baseURL}
}

// Name identifies the strategy inside the registry.
func (f *ArxivRSSFetcher) Name() string {
	return "rss"
}

// Fetch downloads the category feed and returns papers inside the window.
// Items without a parseable publication date are kept; the feed itself only
// carries the current announcement cycle.
func (f *ArxivRSSFetcher) Fetch(ctx context.Context, req scanner.Request) ([]domain.Paper, error) {
	feedURL := fmt.Sprintf("%s/%s", strings.TrimSuffix(f.baseURL, "/"), req.Category)

	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", feedURL, err)
	}

	papers := make([]domain.Paper, 0, len(feed.Items))
	seen := map[string]struct{}{}
	for _, item := range feed.Items {
		paper, ok := paperFromItem(item, req.Category)
		if !ok {
			continue
		}
		if item.PublishedParsed != nil {
			paper.PublishedAt = item.PublishedParsed.UTC()
			if !req.Window.Contains(paper.PublishedAt) {
				continue
			}
		} else {
			paper.PublishedAt = req.Window.Start
		}
		if _, dup := seen[paper.ID]; dup {
			continue
		}
		seen[paper.ID] = struct{}{}
		papers = append(papers, paper)
	}

	return papers, nil
}

func paperFromItem(item *gofeed.Item, category string) (domain.Paper, bool) {
	id := arxivIDFromLink(item.Link)
	if id == "" {
		id = arxivIDFromGUID(item.GUID)
	}
	if id == "" {
		return domain.Paper{}, false
	}

	categories := item.Categories
	if len(categories) == 0 {
		categories = []string{category}
	}

	return domain.Paper{
		ID:         id,
		Title:      strings.TrimSpace(item.Title),
		Abstract:   cleanAbstract(item.Description),
		Link:       item.Link,
		Categories: categories,
	}, true
}

// arxivIDFromLink extracts "2408.12345" from "https://arxiv.org/abs/2408.12345".
func arxivIDFromLink(link string) string {
	_, after, found := strings.Cut(link, "/abs/")
	if !found {
		return ""
	}
	return strings.TrimSpace(strings.TrimSuffix(after, "/"))
}

// arxivIDFromGUID extracts the id from "oai:arXiv.org:2408.12345v1".
func arxivIDFromGUID(guid string) string {
	idx := strings.LastIndex(guid, ":")
	if idx < 0 || idx == len(guid)-1 {
		return ""
	}
	return strings.TrimSpace(guid[idx+1:])
}

// cleanAbstract strips the announcement preamble arXiv prepends to the
// item description ("arXiv:... Announce Type: new Abstract: ...").
func cleanAbstract(description string) string {
	if _, after, found := strings.Cut(description, "Abstract:"); found {
		return strings.TrimSpace(after)
	}
	return strings.TrimSpace(description)
}
