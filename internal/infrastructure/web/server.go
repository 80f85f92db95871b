package web

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"time"

	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/domain"
	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/ports"
)

var runDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Server exposes persisted digests over HTTP: the most recent one as an
// RSS 2.0 feed at /rss, and any run date as JSON at /digest/{date}.
type Server struct {
	addr    string
	digests ports.DigestStore
	logger  *slog.Logger
	server  *http.Server
}

func NewServer(addr string, digests ports.DigestStore, logger *slog.Logger) *Server {
	s := &Server{
		addr:    addr,
		digests: digests,
		logger:  logger,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /rss", s.handleRSS)
	mux.HandleFunc("GET /digest/{date}", s.handleDigest)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the route table, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving HTTP in the background. Call Shutdown to stop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("web: failed to listen on %s: %w", s.addr, err)
	}
	go func() {
		s.logger.Info("web server listening", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("web server stopped", "error", err)
		}
	}()
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleRSS(w http.ResponseWriter, r *http.Request) {
	digest, err := s.digests.Latest(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrDigestNotFound) {
			http.Error(w, "no digest available yet", http.StatusNotFound)
			return
		}
		s.logger.Error("loading latest digest", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	feed := feedFromDigest(digest)
	body, err := xml.MarshalIndent(feed, "", "  ")
	if err != nil {
		s.logger.Error("rendering feed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	fmt.Fprint(w, xml.Header)
	w.Write(body)
}

func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if !runDatePattern.MatchString(date) {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	digest, err := s.digests.Load(r.Context(), date)
	if err != nil {
		if errors.Is(err, domain.ErrDigestNotFound) {
			http.Error(w, "no digest for that date", http.StatusNotFound)
			return
		}
		s.logger.Error("loading digest", "run_date", date, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(digest)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Language    string    `xml:"language"`
	PubDate     string    `xml:"pubDate"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	GUID        string `xml:"guid"`
	PubDate     string `xml:"pubDate"`
}

func feedFromDigest(digest domain.Digest) rssFeed {
	items := make([]rssItem, 0, len(digest.Entries))
	for _, entry := range digest.Entries {
		items = append(items, rssItem{
			Title: entry.Paper.Title,
			Link:  entry.Paper.Link,
			Description: fmt.Sprintf("Relevance Score: %d<br>Reasons: %s<br><br>%s",
				entry.Verdict.Score, entry.Verdict.Reasons, entry.Paper.Abstract),
			GUID:    entry.Paper.Link,
			PubDate: entry.Paper.PublishedAt.Format(time.RFC1123Z),
		})
	}
	return rssFeed{
		Version: "2.0",
		Channel: rssChannel{
			Title:       "Relevant Research Papers Feed",
			Description: "Latest research papers relevant to my interests",
			Link:        "/rss",
			Language:    "en",
			PubDate:     digest.GeneratedAt.Format(time.RFC1123Z),
			Items:       items,
		},
	}
}
