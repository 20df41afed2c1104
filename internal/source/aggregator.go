package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/chainboard/jobs-crawler/internal/fetch"
	"github.com/chainboard/jobs-crawler/internal/ingest"
	"github.com/chainboard/jobs-crawler/internal/normalize"
)

const defaultMaxPages = 10

// AggregatorConfig configures the unstructured HTML adapter for one
// aggregator site.
type AggregatorConfig struct {
	// Name is the source identifier written onto records.
	Name string
	// BaseURL is the first listing page.
	BaseURL string
	// PageParam is the query parameter used for pagination. Empty means
	// the site is a single page.
	PageParam string
	// MaxPages caps the crawl regardless of what the site reports.
	MaxPages int
	// RequestDelay spaces sequential page requests.
	RequestDelay time.Duration
}

// Aggregator scrapes listing pages with no stable API. Extraction runs an
// ordered chain of named strategies per page and keeps the first one that
// yields records, so a markup shift on the site degrades the result
// instead of breaking the adapter.
type Aggregator struct {
	fetcher    Fetcher
	cfg        AggregatorConfig
	strategies []extractStrategy
	logger     *zap.Logger
}

type extractStrategy struct {
	name    string
	extract func(doc *goquery.Document, pageURL *url.URL) []ingest.RawJobRecord
}

// NewAggregator builds the adapter.
func NewAggregator(fetcher Fetcher, cfg AggregatorConfig, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	a := &Aggregator{fetcher: fetcher, cfg: cfg, logger: logger}
	a.strategies = []extractStrategy{
		{name: "structured-blob", extract: a.extractStructuredBlob},
		{name: "job-cards", extract: a.extractJobCards},
		{name: "anchors", extract: a.extractAnchors},
	}
	return a
}

// Name implements ingest.SourceAdapter.
func (a *Aggregator) Name() string { return a.cfg.Name }

// Crawl walks listing pages until a page yields nothing new, the site
// stops advertising a next page, or the page cap is reached.
func (a *Aggregator) Crawl(ctx context.Context) ([]ingest.RawJobRecord, error) {
	var records []ingest.RawJobRecord
	seen := make(map[string]bool)

	for page := 1; page <= a.cfg.MaxPages; page++ {
		if ctx.Err() != nil {
			return records, ctx.Err()
		}
		if page > 1 {
			politeSleep(ctx, a.cfg.RequestDelay)
		}

		pageURL := a.pageURL(page)
		payload, err := a.fetcher.Fetch(ctx, fetch.Request{
			URL:            pageURL,
			Source:         a.Name(),
			BrowserHeaders: true,
			UseProxy:       true,
		})
		if err != nil {
			return records, fmt.Errorf("page %d: %w", page, err)
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(payload.Body))
		if err != nil {
			return records, fmt.Errorf("page %d: parse html: %w", page, err)
		}

		pageRecords := a.extract(doc, pageURL)
		added := 0
		for _, record := range pageRecords {
			if seen[record.URL] {
				continue
			}
			seen[record.URL] = true
			records = append(records, record)
			added++
		}
		a.logger.Debug("aggregator page crawled",
			zap.String("source", a.Name()), zap.Int("page", page), zap.Int("new", added))

		if added == 0 {
			break
		}
		if a.cfg.PageParam == "" || !hasNextPage(doc) {
			break
		}
	}
	return records, nil
}

func (a *Aggregator) pageURL(page int) string {
	if page == 1 || a.cfg.PageParam == "" {
		return a.cfg.BaseURL
	}
	u, err := url.Parse(a.cfg.BaseURL)
	if err != nil {
		return a.cfg.BaseURL
	}
	q := u.Query()
	q.Set(a.cfg.PageParam, fmt.Sprintf("%d", page))
	u.RawQuery = q.Encode()
	return u.String()
}

// extract tries each strategy in order and keeps the first non-empty
// result.
func (a *Aggregator) extract(doc *goquery.Document, pageURL string) []ingest.RawJobRecord {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	for _, strategy := range a.strategies {
		records := strategy.extract(doc, base)
		if len(records) > 0 {
			a.logger.Debug("extraction strategy matched",
				zap.String("source", a.Name()),
				zap.String("strategy", strategy.name),
				zap.Int("records", len(records)))
			return records
		}
	}
	return nil
}

// extractStructuredBlob reads machine-readable state the page embeds for
// its own scripts: ld+json JobPosting objects first, then a Next.js
// __NEXT_DATA__ payload walked for job-shaped objects.
func (a *Aggregator) extractStructuredBlob(doc *goquery.Document, pageURL *url.URL) []ingest.RawJobRecord {
	var records []ingest.RawJobRecord

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		records = append(records, a.parseLDJSON(s.Text(), pageURL)...)
	})
	if len(records) > 0 {
		return records
	}

	doc.Find(`script#__NEXT_DATA__`).Each(func(_ int, s *goquery.Selection) {
		var root any
		if err := json.Unmarshal([]byte(s.Text()), &root); err != nil {
			return
		}
		walkForJobs(root, pageURL, a.Name(), &records)
	})
	return records
}

type ldJobPosting struct {
	Type               string `json:"@type"`
	Title              string `json:"title"`
	URL                string `json:"url"`
	DatePosted         string `json:"datePosted"`
	Description        string `json:"description"`
	HiringOrganization struct {
		Name string `json:"name"`
	} `json:"hiringOrganization"`
	JobLocation struct {
		Address struct {
			AddressLocality string `json:"addressLocality"`
			AddressCountry  string `json:"addressCountry"`
		} `json:"address"`
	} `json:"jobLocation"`
}

func (a *Aggregator) parseLDJSON(raw string, pageURL *url.URL) []ingest.RawJobRecord {
	var single ldJobPosting
	var many []ldJobPosting
	if err := json.Unmarshal([]byte(raw), &single); err == nil && single.Type == "JobPosting" {
		many = []ldJobPosting{single}
	} else if err := json.Unmarshal([]byte(raw), &many); err != nil {
		return nil
	}

	var records []ingest.RawJobRecord
	for _, posting := range many {
		if posting.Type != "JobPosting" || posting.Title == "" {
			continue
		}
		record := ingest.RawJobRecord{
			Title:       posting.Title,
			Company:     posting.HiringOrganization.Name,
			URL:         resolveURL(pageURL, posting.URL),
			Location:    joinNonEmpty(posting.JobLocation.Address.AddressLocality, posting.JobLocation.Address.AddressCountry),
			Source:      a.Name(),
			Description: normalize.Clean(posting.Description),
		}
		if record.URL == "" {
			continue
		}
		if t, err := time.Parse("2006-01-02", posting.DatePosted); err == nil {
			record.PostedAt = t.UTC()
		} else if t, err := time.Parse(time.RFC3339, posting.DatePosted); err == nil {
			record.PostedAt = t.UTC()
		}
		records = append(records, record)
	}
	return records
}

// walkForJobs recursively scans a decoded JSON tree for objects carrying
// job-shaped keys. Deliberately loose: aggregators rename their state keys
// often and a partial record beats none.
func walkForJobs(node any, pageURL *url.URL, sourceName string, out *[]ingest.RawJobRecord) {
	switch v := node.(type) {
	case map[string]any:
		title := stringField(v, "title", "jobTitle", "position")
		company := stringField(v, "company", "companyName", "company_name")
		href := stringField(v, "url", "applyUrl", "apply_url", "slug")
		if title != "" && company != "" && href != "" {
			*out = append(*out, ingest.RawJobRecord{
				Title:       title,
				Company:     company,
				URL:         resolveURL(pageURL, href),
				Location:    stringField(v, "location", "jobLocation"),
				Source:      sourceName,
				Description: normalize.Clean(stringField(v, "description", "jobDescription")),
				Tags:        stringSlice(v["tags"]),
			})
			return
		}
		for _, child := range v {
			walkForJobs(child, pageURL, sourceName, out)
		}
	case []any:
		for _, child := range v {
			walkForJobs(child, pageURL, sourceName, out)
		}
	}
}

var cardClassRe = regexp.MustCompile(`(?i)\b(job|card|listing|posting|vacancy)`)

// extractJobCards looks for repeated card-like containers holding an
// anchor and a title-ish node.
func (a *Aggregator) extractJobCards(doc *goquery.Document, pageURL *url.URL) []ingest.RawJobRecord {
	var records []ingest.RawJobRecord

	doc.Find("div, li, article, tr").Each(func(_ int, card *goquery.Selection) {
		class, _ := card.Attr("class")
		if !cardClassRe.MatchString(class) {
			return
		}
		anchor := card.Find("a[href]").First()
		href, ok := anchor.Attr("href")
		if !ok || href == "" {
			return
		}

		title := strings.TrimSpace(card.Find("h1, h2, h3, h4, .title, .job-title").First().Text())
		if title == "" {
			title = strings.TrimSpace(anchor.Text())
		}
		if title == "" {
			return
		}

		records = append(records, ingest.RawJobRecord{
			Title:    title,
			Company:  strings.TrimSpace(card.Find(".company, .company-name, .employer").First().Text()),
			URL:      resolveURL(pageURL, href),
			Location: strings.TrimSpace(card.Find(".location, .job-location").First().Text()),
			Source:   a.Name(),
		})
	})
	return dedupeByURL(records)
}

var jobPathRe = regexp.MustCompile(`(?i)/(jobs?|careers?|positions?|openings?)/[^/]+`)

// extractAnchors is the last resort: any link whose path looks like a job
// detail page, titled by its text.
func (a *Aggregator) extractAnchors(doc *goquery.Document, pageURL *url.URL) []ingest.RawJobRecord {
	var records []ingest.RawJobRecord

	doc.Find("a[href]").Each(func(_ int, anchor *goquery.Selection) {
		href, _ := anchor.Attr("href")
		if !jobPathRe.MatchString(href) {
			return
		}
		title := strings.TrimSpace(anchor.Text())
		if len(title) < 2 {
			return
		}
		records = append(records, ingest.RawJobRecord{
			Title:  title,
			URL:    resolveURL(pageURL, href),
			Source: a.Name(),
		})
	})
	return dedupeByURL(records)
}

func hasNextPage(doc *goquery.Document) bool {
	if doc.Find(`a[rel="next"]`).Length() > 0 {
		return true
	}
	found := false
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.ToLower(strings.TrimSpace(s.Text()))
		if text == "next" || text == "next page" || text == "›" || text == "»" {
			found = true
			return false
		}
		return true
	})
	return found
}

func resolveURL(base *url.URL, href string) string {
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

func dedupeByURL(records []ingest.RawJobRecord) []ingest.RawJobRecord {
	seen := make(map[string]bool, len(records))
	out := records[:0]
	for _, record := range records {
		if record.URL == "" || seen[record.URL] {
			continue
		}
		seen[record.URL] = true
		out = append(out, record)
	}
	return out
}

func stringField(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, strings.TrimSpace(p))
		}
	}
	return strings.Join(kept, ", ")
}
