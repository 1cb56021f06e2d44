package dataflows

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/finsightlab/finsight/internal/models"
)

const maxArticleBodyLen = 4000

// ArticleScraper fetches full article bodies for news items. Finnhub
// returns one-line summaries; the scraper pulls the page text so the
// analyst has more to work with.
type ArticleScraper struct {
	client *resty.Client
	cache  *CacheManager
}

// NewArticleScraper creates a new article scraper
func NewArticleScraper(config *Config) *ArticleScraper {
	cacheDir := filepath.Join(config.DataCacheDir, "articles")
	cache := NewCacheManager(cacheDir, 2*time.Hour, config.CacheEnabled) // 2 hour cache for articles

	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetHeader("User-Agent", "Mozilla/5.0 (compatible; FinSight/1.0)")

	return &ArticleScraper{
		client: client,
		cache:  cache,
	}
}

// FetchBody downloads an article page and extracts its paragraph text.
func (as *ArticleScraper) FetchBody(articleURL string) (string, error) {
	if strings.TrimSpace(articleURL) == "" {
		return "", fmt.Errorf("article URL cannot be empty")
	}

	var cached string
	if as.cache.Get("articles", "body", articleURL, &cached) {
		return cached, nil
	}

	var body string
	err := WithRetry(DefaultRetryConfig(), func() error {
		resp, err := as.client.R().Get(articleURL)
		if err != nil {
			return fmt.Errorf("failed to fetch article: %w", err)
		}

		if resp.StatusCode() != 200 {
			return fmt.Errorf("HTTP error %d when fetching article", resp.StatusCode())
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
		if err != nil {
			return fmt.Errorf("failed to parse HTML: %w", err)
		}

		body = extractParagraphs(doc)
		return nil
	})

	if err != nil {
		return "", err
	}

	as.cache.Set("articles", "body", articleURL, body)
	return body, nil
}

// Enrich replaces each article's content with the scraped page body
// where available. Scrape failures leave the original summary in place.
func (as *ArticleScraper) Enrich(articles []*models.NewsArticle) {
	for _, article := range articles {
		body, err := as.FetchBody(article.URL)
		if err != nil || strings.TrimSpace(body) == "" {
			continue
		}
		if article.Metadata == nil {
			article.Metadata = map[string]string{}
		}
		article.Metadata["summary"] = article.Content
		article.Content = body
	}
}

func extractParagraphs(doc *goquery.Document) string {
	var parts []string
	total := 0

	// Prefer article containers, fall back to all paragraphs.
	selection := doc.Find("article p")
	if selection.Length() == 0 {
		selection = doc.Find("p")
	}

	selection.EachWithBreak(func(i int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if len(text) < 40 {
			return true // skip nav crumbs and captions
		}
		parts = append(parts, text)
		total += len(text)
		return total < maxArticleBodyLen
	})

	body := strings.Join(parts, "\n\n")
	if len(body) > maxArticleBodyLen {
		body = body[:maxArticleBodyLen]
	}
	return body
}
