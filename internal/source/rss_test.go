package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const rssFeedBody = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Web3 Jobs Feed</title>
    <item>
      <title>Smart Contract Auditor at Quorum Labs</title>
      <link>https://web3.jobs/quorum-labs/auditor</link>
      <pubDate>Mon, 23 Mar 2026 08:00:00 GMT</pubDate>
      <category>solidity</category>
      <category>security</category>
      <description><![CDATA[<p>Audit settlement contracts before they ship to mainnet.</p>]]></description>
    </item>
    <item>
      <title>Orphaned item without a link</title>
    </item>
    <item>
      <title>Community Manager</title>
      <link>https://web3.jobs/misc/community</link>
    </item>
  </channel>
</rss>`

func TestRSS_CrawlMapsItems(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.payloads["https://web3.jobs/feed.xml"] = rssFeedBody

	adapter := NewRSS(fetcher, RSSConfig{FeedURLs: []string{"https://web3.jobs/feed.xml"}}, nil)

	records, err := adapter.Crawl(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2, "the linkless item must be skipped")

	first := records[0]
	require.Equal(t, "Smart Contract Auditor", first.Title)
	require.Equal(t, "Quorum Labs", first.Company)
	require.Equal(t, "https://web3.jobs/quorum-labs/auditor", first.URL)
	require.Equal(t, []string{"solidity", "security"}, first.Tags)
	require.Equal(t, "rss", first.Source)
	require.Equal(t, time.Date(2026, 3, 23, 8, 0, 0, 0, time.UTC), first.PostedAt)
	require.Equal(t, "Audit settlement contracts before they ship to mainnet.", first.Description)

	// No " at " in the title: the whole string stays the title and the
	// record is left for validation to reject.
	second := records[1]
	require.Equal(t, "Community Manager", second.Title)
	require.Empty(t, second.Company)
}

func TestRSS_UnparseableFeed(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.payloads["https://web3.jobs/feed.xml"] = `this is not xml`

	adapter := NewRSS(fetcher, RSSConfig{FeedURLs: []string{"https://web3.jobs/feed.xml"}}, nil)

	records, err := adapter.Crawl(context.Background())
	require.Error(t, err)
	require.Empty(t, records)
}

func TestRSS_FetchErrorPropagates(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.errs["https://web3.jobs/feed.xml"] = errors.New("connection refused")

	adapter := NewRSS(fetcher, RSSConfig{FeedURLs: []string{"https://web3.jobs/feed.xml"}}, nil)

	_, err := adapter.Crawl(context.Background())
	require.Error(t, err)
}

func TestSplitRoleAtCompany(t *testing.T) {
	t.Parallel()

	cases := []struct {
		title, role, company string
	}{
		{"Backend Engineer at Chainrail", "Backend Engineer", "Chainrail"},
		{"Working at Scale at Mintbase Systems", "Working at Scale", "Mintbase Systems"},
		{"Community Manager", "Community Manager", ""},
	}
	for _, tc := range cases {
		role, company := splitRoleAtCompany(tc.title)
		require.Equal(t, tc.role, role)
		require.Equal(t, tc.company, company)
	}
}
