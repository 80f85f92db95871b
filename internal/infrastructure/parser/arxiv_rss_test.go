package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/domain"
	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/scanner"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>cs.CV updates on arXiv.org</title>
    <link>http://arxiv.org/</link>
    <description>Computer Vision and Pattern Recognition</description>
    <item>
      <title>Multimodal Retrieval at Scale</title>
      <link>https://arxiv.org/abs/2408.11111</link>
      <guid>oai:arXiv.org:2408.11111v1</guid>
      <category>cs.CV</category>
      <category>cs.CL</category>
      <pubDate>Sun, 30 Aug 2026 00:00:00 GMT</pubDate>
      <description>arXiv:2408.11111v1 Announce Type: new
Abstract: We study retrieval across modalities.</description>
    </item>
    <item>
      <title>Yesterday's Paper</title>
      <link>https://arxiv.org/abs/2408.22222</link>
      <guid>oai:arXiv.org:2408.22222v1</guid>
      <category>cs.CV</category>
      <pubDate>Sat, 29 Aug 2026 00:00:00 GMT</pubDate>
      <description>arXiv:2408.22222v1 Announce Type: new
Abstract: stale.</description>
    </item>
    <item>
      <title>Duplicate Announcement</title>
      <link>https://arxiv.org/abs/2408.11111</link>
      <guid>oai:arXiv.org:2408.11111v1</guid>
      <category>cs.CV</category>
      <pubDate>Sun, 30 Aug 2026 00:00:00 GMT</pubDate>
      <description>Abstract: duplicate of the first item.</description>
    </item>
  </channel>
</rss>`

func TestRSSFetch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cs.CV" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	f := NewArxivRSSFetcher(server.Client(), server.URL)

	window := domain.DayWindow(time.Date(2026, time.August, 30, 9, 0, 0, 0, time.UTC))
	papers, err := f.Fetch(context.Background(), scanner.Request{Category: "cs.CV", Window: window})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}

	if len(papers) != 1 {
		t.Fatalf("expected 1 paper (window + dedup), got %d", len(papers))
	}

	p := papers[0]
	if p.ID != "2408.11111" {
		t.Fatalf("unexpected id: %s", p.ID)
	}
	if p.Title != "Multimodal Retrieval at Scale" {
		t.Fatalf("unexpected title: %s", p.Title)
	}
	if p.Abstract != "We study retrieval across modalities." {
		t.Fatalf("unexpected abstract: %q", p.Abstract)
	}
	if len(p.Categories) != 2 {
		t.Fatalf("expected both cross-listed categories, got %v", p.Categories)
	}
	if !p.PublishedAt.Equal(time.Date(2026, time.August, 30, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected published date: %v", p.PublishedAt)
	}
}

func TestRSSFetchUnavailableUpstream(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	f := NewArxivRSSFetcher(server.Client(), server.URL)
	window := domain.DayWindow(time.Now())

	if _, err := f.Fetch(context.Background(), scanner.Request{Category: "cs.CV", Window: window}); err == nil {
		t.Fatal("expected error from unavailable upstream")
	}
}

func TestArxivIDExtraction(t *testing.T) {
	t.Parallel()

	if got := arxivIDFromLink("https://arxiv.org/abs/2408.11111"); got != "2408.11111" {
		t.Fatalf("unexpected id from link: %s", got)
	}
	if got := arxivIDFromLink("https://example.org/nope"); got != "" {
		t.Fatalf("expected empty id, got %s", got)
	}
	if got := arxivIDFromGUID("oai:arXiv.org:2408.11111v1"); got != "2408.11111v1" {
		t.Fatalf("unexpected id from guid: %s", got)
	}
}
