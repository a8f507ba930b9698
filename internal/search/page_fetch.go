package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"deepresearch/internal/logging"
)

const (
	defaultFetchCacheSize = 256
	defaultFetchCacheTTL  = 15 * time.Minute
	maxPageBytes          = 2 << 20
)

// PageFetcher retrieves result URLs and reduces them to readable text so the
// model sees article content instead of markup. Fetched pages are cached in an
// expiring LRU because sibling tasks frequently hit the same sources.
type PageFetcher struct {
	httpClient *http.Client
	cache      *expirable.LRU[string, string]
	logger     logging.Logger
}

// NewPageFetcher constructs a fetcher with a bounded, expiring page cache.
func NewPageFetcher() *PageFetcher {
	return &PageFetcher{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				return nil
			},
		},
		cache:  expirable.NewLRU[string, string](defaultFetchCacheSize, nil, defaultFetchCacheTTL),
		logger: logging.NewComponentLogger("PageFetcher"),
	}
}

// Fetch returns the readable text of url, from cache when possible.
func (f *PageFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if cached, ok := f.cache.Get(url); ok {
		return cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build fetch request: %w", err)
	}
	req.Header.Set("User-Agent", "deepresearch/1.0")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") && !strings.Contains(ct, "text") {
		return "", fmt.Errorf("fetch %s: unsupported content type %s", url, ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", url, err)
	}

	text, err := ExtractReadableText(string(data))
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", url, err)
	}

	f.cache.Add(url, text)
	f.logger.Debug("Fetched %s (%d bytes -> %d chars)", url, len(data), len(text))
	return text, nil
}

// ExtractReadableText strips markup noise and returns title, headings, and
// paragraph text from an HTML document.
func ExtractReadableText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, nav, footer, header, aside, iframe").Remove()

	var content strings.Builder
	if title := strings.TrimSpace(doc.Find("title").Text()); title != "" {
		content.WriteString("# " + title + "\n\n")
	}
	doc.Find("h1, h2, h3, h4, h5, h6, p, li").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			content.WriteString(text + "\n")
		}
	})

	return strings.TrimSpace(content.String()), nil
}
