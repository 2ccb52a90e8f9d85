package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"embedding-gateway/models"
)

// WebpageService fetches a URL and extracts its readable text so web pages
// can be ingested like uploaded text files.
type WebpageService struct {
	httpClient *http.Client
}

// PageContent is the extraction result for one fetched page.
type PageContent struct {
	URL   string
	Title string
	Text  string
}

func NewWebpageService() *WebpageService {
	return &WebpageService{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Fetch downloads a page and strips it to title and body text. Script,
// style and navigation content is discarded.
func (s *WebpageService) Fetch(ctx context.Context, rawURL string) (*PageContent, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("%w: invalid URL %q", models.ErrInvalidInput, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	req.Header.Set("User-Agent", "embedding-gateway/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", models.ErrDependencyUnavailable, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch %s returned status %d", models.ErrDependencyUnavailable, rawURL, resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "text/html") && !strings.Contains(ct, "text/plain") {
		return nil, fmt.Errorf("%w: URL serves %s, not a web page", models.ErrUnsupportedMedia, ct)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", models.ErrUnsupportedMedia, rawURL, err)
	}

	doc.Find("script, style, noscript, nav, header, footer, iframe").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())
	text := normalizeWhitespace(doc.Find("body").Text())
	if text == "" {
		return nil, fmt.Errorf("%w: page has no readable text", models.ErrUnsupportedMedia)
	}

	return &PageContent{URL: rawURL, Title: title, Text: text}, nil
}

// Filename derives a display filename for the ingested page.
func (p *PageContent) Filename() string {
	name := p.Title
	if name == "" {
		if u, err := url.Parse(p.URL); err == nil {
			name = u.Host + strings.ReplaceAll(u.Path, "/", "_")
		}
	}
	if name == "" {
		name = "webpage"
	}
	name = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\':
			return '_'
		}
		return r
	}, name)
	if len(name) > 64 {
		name = name[:64]
	}
	return name + ".html.txt"
}

func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
