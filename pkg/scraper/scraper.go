package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ferraz/docqa/internal/models"
	"golang.org/x/time/rate"
)

type ScraperConfig struct {
	RateLimit float64 // requests per second
	Timeout   time.Duration
	UserAgent string
	MinLength int // minimum extracted text length in characters
}

// Scraper fetches one page and reduces it to a single text blob plus
// its title.
type Scraper struct {
	config  ScraperConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewWithConfig(config ScraperConfig) *Scraper {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}
	if config.UserAgent == "" {
		config.UserAgent = "Mozilla/5.0 (compatible; docqa/1.0)"
	}
	if config.MinLength == 0 {
		config.MinLength = 100
	}

	return &Scraper{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

func New() *Scraper {
	return NewWithConfig(ScraperConfig{})
}

// Fetch downloads the page at url and returns its main content as one
// text blob.
func (s *Scraper) Fetch(ctx context.Context, url string) (models.Page, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return models.Page{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.Page{}, fmt.Errorf("invalid scrape URL %q: %w", url, err)
	}
	req.Header.Set("User-Agent", s.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return models.Page{}, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Page{}, fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, url)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return models.Page{}, fmt.Errorf("failed to parse %s: %w", url, err)
	}

	// Strip chrome before extraction.
	doc.Find("script, style, nav, footer, header, iframe, noscript").Remove()

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	text := s.extractMainContent(doc, url)
	text = cleanContent(text)

	// A very short result usually means an anti-bot page or an empty shell.
	if len(text) < s.config.MinLength {
		return models.Page{}, fmt.Errorf("extracted text too short (%d chars) for URL: %s", len(text), url)
	}

	return models.Page{
		URL:   url,
		Title: title,
		Text:  text,
	}, nil
}

func (s *Scraper) extractMainContent(doc *goquery.Document, url string) string {
	// Wikipedia keeps article text under a well-known container.
	if strings.Contains(url, "wikipedia.org") {
		if content := doc.Find("#mw-content-text"); content.Length() > 0 {
			content.Find(".infobox, .navbox, .reflist").Remove()
			return content.Text()
		}
	}

	// Semantic containers first.
	for _, selector := range []string{"article", "main", "section", ".content", "#content"} {
		if selected := doc.Find(selector).First(); selected.Length() > 0 {
			if text := selected.Text(); len(strings.TrimSpace(text)) > 200 {
				return text
			}
		}
	}

	// Fall back to paragraphs with real content.
	var parts []string
	doc.Find("p").Each(func(_ int, selection *goquery.Selection) {
		text := strings.TrimSpace(selection.Text())
		if len(text) > 50 {
			parts = append(parts, text)
		}
	})
	if len(parts) > 0 {
		return strings.Join(parts, "\n\n")
	}

	return doc.Find("body").Text()
}

func cleanContent(content string) string {
	lines := strings.Split(content, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
