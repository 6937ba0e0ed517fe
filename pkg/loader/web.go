package loader

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/xhad/askdocs/internal/models"
	"github.com/xhad/askdocs/pkg/logger"
)

type WebConfig struct {
	BaseURL           string
	MaxDepth          int
	RateLimit         float64 // requests per second
	IgnorePatterns    []string
	AllowedExtensions []string
	Timeout           time.Duration
	OnProgress        func(url string)
}

// WebLoader crawls a documentation site on a single host.
type WebLoader struct {
	config   WebConfig
	client   *http.Client
	visited  map[string]bool
	limiter  *rate.Limiter
	baseHost string
}

func NewWebLoader(config WebConfig) (*WebLoader, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxDepth == 0 {
		config.MaxDepth = 3
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2 // 2 requests per second by default
	}
	if len(config.AllowedExtensions) == 0 {
		config.AllowedExtensions = []string{".html", ".htm", "/", ""}
	}

	parsedURL, err := url.Parse(config.BaseURL)
	if err != nil || parsedURL.Host == "" {
		return nil, models.ConfigError("invalid base URL %q", config.BaseURL)
	}

	return &WebLoader{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		limiter:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		baseHost: parsedURL.Host,
	}, nil
}

// LoadAll crawls from the configured base URL.
func (w *WebLoader) LoadAll(ctx context.Context) ([]models.Document, error) {
	return w.Scrape(ctx, w.config.BaseURL)
}

// Scrape crawls urlStr and same-host links up to MaxDepth. Failures on linked
// pages are logged and skipped; a failure on urlStr itself is returned.
func (w *WebLoader) Scrape(ctx context.Context, urlStr string) ([]models.Document, error) {
	w.visited = make(map[string]bool)
	var documents []models.Document
	err := w.scrapeRecursive(ctx, urlStr, 0, &documents)
	return documents, err
}

func (w *WebLoader) shouldProcessURL(urlStr string) bool {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	if parsedURL.Host != w.baseHost {
		return false
	}

	ext := strings.ToLower(parsedURL.Path)
	validExt := false
	for _, allowedExt := range w.config.AllowedExtensions {
		if strings.HasSuffix(ext, allowedExt) {
			validExt = true
			break
		}
	}
	if !validExt {
		return false
	}

	for _, pattern := range w.config.IgnorePatterns {
		if strings.Contains(urlStr, pattern) {
			return false
		}
	}

	return true
}

func cleanWebContent(content string) string {
	content = strings.Join(strings.Fields(content), " ")

	noisePatterns := []string{
		"Cookie Policy",
		"Accept Cookies",
		"Privacy Policy",
		"Terms of Service",
	}

	for _, pattern := range noisePatterns {
		content = strings.ReplaceAll(content, pattern, "")
	}

	return strings.TrimSpace(content)
}

func extractMainContent(doc *goquery.Document) string {
	selectors := []string{
		"main",
		"article",
		".content",
		"#content",
		".documentation",
		"#documentation",
	}

	var content string
	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}

	if content == "" {
		content = doc.Find("body").Text()
	}

	return cleanWebContent(content)
}

func (w *WebLoader) scrapeRecursive(ctx context.Context, urlStr string, depth int, documents *[]models.Document) error {
	if depth > w.config.MaxDepth || w.visited[urlStr] {
		return nil
	}

	if !w.shouldProcessURL(urlStr) {
		return nil
	}

	w.visited[urlStr] = true
	if w.config.OnProgress != nil {
		w.config.OnProgress(urlStr)
	}

	if err := w.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return &models.ConnectionError{Target: urlStr, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, urlStr)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return err
	}

	content := extractMainContent(doc)
	title := strings.TrimSpace(doc.Find("title").Text())

	if content != "" {
		*documents = append(*documents, models.Document{
			Content: content,
			Metadata: map[string]any{
				models.MetaSource:   urlStr,
				models.MetaURL:      urlStr,
				models.MetaTitle:    title,
				models.MetaCategory: "web",
				"depth":             depth,
				"contentType":       resp.Header.Get("Content-Type"),
				"lastModified":      resp.Header.Get("Last-Modified"),
			},
		})
	}

	base, err := url.Parse(urlStr)
	if err != nil {
		return err
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, selection *goquery.Selection) {
		href, _ := selection.Attr("href")
		ref, err := url.Parse(href)
		if err != nil {
			logger.Debug("skipping link %q: %v", href, err)
			return
		}
		resolved := base.ResolveReference(ref)
		resolved.Fragment = ""
		links = append(links, resolved.String())
	})

	for _, link := range links {
		if err := w.scrapeRecursive(ctx, link, depth+1, documents); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("error scraping %s: %v", link, err)
		}
	}

	return nil
}
