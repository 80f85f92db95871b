package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/domain"
	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/scanner"
)

const defaultListingBaseURL = "https://arxiv.org"

var dateExpr = regexp.MustCompile(`\d{1,2} [A-Za-z]{3} \d{4}`)

// ArxivListingFetcher crawls category listing pages and extracts papers
// published inside the requested window. Listing pages are ordered newest
// first, so paging stops once entries predate the window.
type ArxivListingFetcher struct {
	client   *http.Client
	baseURL  string
	pageSize int
}

// NewArxivListingFetcher wires an HTTP client; pageSize defaults to 200.
func NewArxivListingFetcher(client *http.Client, baseURL string) *ArxivListingFetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if baseURL == "" {
		baseURL = defaultListingBaseURL
	}
	return &ArxivListingFetcher{client: client, baseURL: baseURL, pageSize: 200}
}

// Name identifies the strategy inside the registry.
func (a *ArxivListingFetcher) Name() string {
	return "listing"
}

// Fetch walks the category's recent listing and returns papers inside the
// window.
func (a *ArxivListingFetcher) Fetch(ctx context.Context, req scanner.Request) ([]domain.Paper, error) {
	results := make([]domain.Paper, 0)
	seen := map[string]struct{}{}

	skip := 0
	for {
		pageURL, err := a.buildPageURL(req.Category, skip)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", req.Category, err)
		}

		doc, err := a.fetchDocument(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", req.Category, err)
		}

		pagePapers, shouldContinue := a.extractPapers(doc, req.Window, req.Category)
		for _, paper := range pagePapers {
			if _, ok := seen[paper.ID]; ok {
				continue
			}
			seen[paper.ID] = struct{}{}
			results = append(results, paper)
		}

		if !shouldContinue {
			break
		}
		skip += a.pageSize
	}

	return results, nil
}

func (a *ArxivListingFetcher) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "DailyArXivGPT/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func (a *ArxivListingFetcher) extractPapers(doc *goquery.Document, window domain.Window, category string) ([]domain.Paper, bool) {
	var (
		collected    []domain.Paper
		continueScan = true
		processed    int
	)

	doc.Find("dl > dt").EachWithBreak(func(i int, dt *goquery.Selection) bool {
		dd := dt.Next()
		processed++

		paper, publishedAt, err := parseListingEntry(dt, dd, a.baseURL, category)
		if err != nil {
			return true
		}

		if window.Contains(publishedAt) {
			collected = append(collected, paper)
		}
		if publishedAt.Before(window.Start) {
			continueScan = false
			return false
		}

		return true
	})

	if processed < a.pageSize {
		continueScan = false
	}

	return collected, continueScan
}

func parseListingEntry(dt, dd *goquery.Selection, baseURL, category string) (domain.Paper, time.Time, error) {
	link := dt.Find("a[href*=\"/abs/\"]").First()
	href, _ := link.Attr("href")
	if !strings.HasPrefix(href, "http") {
		href = strings.TrimSuffix(baseURL, "/") + href
	}

	id := strings.TrimSpace(link.Text())
	id = strings.TrimPrefix(id, "arXiv:")
	if id == "" {
		id = arxivIDFromLink(href)
	}
	if id == "" {
		return domain.Paper{}, time.Time{}, fmt.Errorf("entry without id")
	}

	title := strings.TrimSpace(dd.Find(".list-title").First().Text())
	title = strings.TrimSpace(strings.TrimPrefix(title, "Title:"))

	abstract := dd.Find(".mathjax").First().Text()
	abstract = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(abstract), "Abstract:"))

	dateText := strings.TrimSpace(dd.Find(".list-date").First().Text())
	if dateText == "" {
		dateText = strings.TrimSpace(dd.Find(".list-dateline").First().Text())
	}

	publishedAt := time.Now().UTC()
	if match := dateExpr.FindString(dateText); match != "" {
		if parsed, err := time.Parse("2 Jan 2006", match); err == nil {
			publishedAt = parsed.UTC()
		}
	}

	paper := domain.Paper{
		ID:          id,
		Title:       title,
		Abstract:    abstract,
		Link:        href,
		Categories:  []string{category},
		PublishedAt: publishedAt,
	}

	return paper, publishedAt, nil
}

func (a *ArxivListingFetcher) buildPageURL(category string, skip int) (string, error) {
	parsed, err := url.Parse(fmt.Sprintf("%s/list/%s/recent", strings.TrimSuffix(a.baseURL, "/"), category))
	if err != nil {
		return "", fmt.Errorf("invalid category url for %s: %w", category, err)
	}

	query := parsed.Query()
	query.Set("skip", strconv.Itoa(skip))
	query.Set("show", strconv.Itoa(a.pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
