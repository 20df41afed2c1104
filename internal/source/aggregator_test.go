package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

const ldJSONPage = `<html><head>
<script type="application/ld+json">
[
  {"@type": "JobPosting", "title": "Protocol Engineer",
   "hiringOrganization": {"name": "Chainrail"},
   "url": "/jobs/protocol-engineer", "datePosted": "2026-03-15",
   "description": "<p>Build settlement infrastructure for token networks.</p>",
   "jobLocation": {"address": {"addressLocality": "Berlin", "addressCountry": "DE"}}},
  {"@type": "Organization", "name": "not a job"}
]
</script>
</head><body>
<div class="job-card"><a href="/jobs/should-not-win">Card fallback</a></div>
</body></html>`

func TestAggregator_StructuredBlobWins(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.payloads["https://web3.jobs/list"] = ldJSONPage

	adapter := NewAggregator(fetcher, AggregatorConfig{
		Name:    "web3jobs",
		BaseURL: "https://web3.jobs/list",
	}, nil)

	records, err := adapter.Crawl(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1, "structured data must shadow the card heuristics")

	record := records[0]
	require.Equal(t, "Protocol Engineer", record.Title)
	require.Equal(t, "Chainrail", record.Company)
	require.Equal(t, "https://web3.jobs/jobs/protocol-engineer", record.URL)
	require.Equal(t, "Berlin, DE", record.Location)
	require.Equal(t, "web3jobs", record.Source)
	require.Equal(t, "Build settlement infrastructure for token networks.", record.Description)
}

const nextDataPage = `<html><head>
<script id="__NEXT_DATA__" type="application/json">
{"props": {"pageProps": {"jobs": [
  {"title": "Rust Engineer", "companyName": "Nodewatch", "applyUrl": "https://web3.jobs/jobs/rust", "location": "Remote"},
  {"title": "Designer", "company": "Mintbase", "url": "/jobs/designer"}
]}}}
</script>
</head><body></body></html>`

func TestAggregator_NextDataBlob(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.payloads["https://web3.jobs/list"] = nextDataPage

	adapter := NewAggregator(fetcher, AggregatorConfig{
		Name:    "web3jobs",
		BaseURL: "https://web3.jobs/list",
	}, nil)

	records, err := adapter.Crawl(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "https://web3.jobs/jobs/rust", records[0].URL)
	require.Equal(t, "https://web3.jobs/jobs/designer", records[1].URL)
}

const cardsPage = `<html><body>
<ul>
  <li class="job-listing">
    <h3>Backend Engineer</h3>
    <span class="company">Nodewatch</span>
    <span class="location">Remote</span>
    <a href="/jobs/backend-engineer">Apply</a>
  </li>
  <li class="job-listing">
    <a href="/jobs/untitled-card"></a>
  </li>
  <li class="sidebar-widget">
    <a href="/about">Not a job</a>
  </li>
</ul>
</body></html>`

func TestAggregator_CardHeuristics(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.payloads["https://web3.jobs/list"] = cardsPage

	adapter := NewAggregator(fetcher, AggregatorConfig{
		Name:    "web3jobs",
		BaseURL: "https://web3.jobs/list",
	}, nil)

	records, err := adapter.Crawl(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "Backend Engineer", records[0].Title)
	require.Equal(t, "Nodewatch", records[0].Company)
	require.Equal(t, "Remote", records[0].Location)
	require.Equal(t, "https://web3.jobs/jobs/backend-engineer", records[0].URL)
}

const anchorsPage = `<html><body>
<a href="/jobs/protocol-engineer">Protocol Engineer</a>
<a href="/careers/devrel">DevRel Lead</a>
<a href="/blog/hiring-is-hard">Why hiring is hard</a>
<a href="/jobs/protocol-engineer">Protocol Engineer (duplicate)</a>
</body></html>`

func TestAggregator_AnchorFallback(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.payloads["https://web3.jobs/list"] = anchorsPage

	adapter := NewAggregator(fetcher, AggregatorConfig{
		Name:    "web3jobs",
		BaseURL: "https://web3.jobs/list",
	}, nil)

	records, err := adapter.Crawl(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2, "blog link excluded, duplicate URL collapsed")
	require.Equal(t, "https://web3.jobs/jobs/protocol-engineer", records[0].URL)
	require.Equal(t, "https://web3.jobs/careers/devrel", records[1].URL)
}

func TestAggregator_PaginationStopsOnRepeatedPage(t *testing.T) {
	t.Parallel()

	pageOne := `<html><body>
	  <div class="job-card"><h3>Role One</h3><a href="/jobs/one">Apply</a></div>
	  <a rel="next" href="?page=2">Next</a>
	</body></html>`
	// Page two serves the same record, so nothing new is added.
	pageTwo := `<html><body>
	  <div class="job-card"><h3>Role One</h3><a href="/jobs/one">Apply</a></div>
	  <a rel="next" href="?page=3">Next</a>
	</body></html>`

	fetcher := newFakeFetcher()
	fetcher.payloads["https://web3.jobs/list"] = pageOne
	fetcher.payloads["https://web3.jobs/list?page=2"] = pageTwo

	adapter := NewAggregator(fetcher, AggregatorConfig{
		Name:      "web3jobs",
		BaseURL:   "https://web3.jobs/list",
		PageParam: "page",
		MaxPages:  10,
	}, nil)

	records, err := adapter.Crawl(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t,
		[]string{"https://web3.jobs/list", "https://web3.jobs/list?page=2"},
		fetcher.requested())
}

func TestAggregator_PaginationStopsWithoutNextSignal(t *testing.T) {
	t.Parallel()

	onlyPage := `<html><body>
	  <div class="job-card"><h3>Role One</h3><a href="/jobs/one">Apply</a></div>
	</body></html>`

	fetcher := newFakeFetcher()
	fetcher.payloads["https://web3.jobs/list"] = onlyPage

	adapter := NewAggregator(fetcher, AggregatorConfig{
		Name:      "web3jobs",
		BaseURL:   "https://web3.jobs/list",
		PageParam: "page",
		MaxPages:  10,
	}, nil)

	records, err := adapter.Crawl(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, []string{"https://web3.jobs/list"}, fetcher.requested())
}

func TestAggregator_PageCapBoundsCrawl(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.payloads["https://web3.jobs/list"] = `<html><body>
	  <div class="job-card"><h3>Role A</h3><a href="/jobs/a">Apply</a></div>
	  <a rel="next" href="?page=2">Next</a></body></html>`
	fetcher.payloads["https://web3.jobs/list?page=2"] = `<html><body>
	  <div class="job-card"><h3>Role B</h3><a href="/jobs/b">Apply</a></div>
	  <a rel="next" href="?page=3">Next</a></body></html>`

	adapter := NewAggregator(fetcher, AggregatorConfig{
		Name:      "web3jobs",
		BaseURL:   "https://web3.jobs/list",
		PageParam: "page",
		MaxPages:  2,
	}, nil)

	records, err := adapter.Crawl(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Len(t, fetcher.requested(), 2)
}

func TestAggregator_GarbageMarkupDegradesGracefully(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.payloads["https://web3.jobs/list"] = `<<<<not really html >>>`

	adapter := NewAggregator(fetcher, AggregatorConfig{
		Name:    "web3jobs",
		BaseURL: "https://web3.jobs/list",
	}, nil)

	records, err := adapter.Crawl(context.Background())
	require.NoError(t, err)
	require.Empty(t, records)
}
