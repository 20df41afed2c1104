package dedup

// PriorityTable resolves a source identifier to its tie-break weight.
// Higher wins during cross-source conflict resolution; sources not in the
// table rank lowest.
type PriorityTable map[string]int

// Tiers for the default table. Structured APIs outrank curated aggregator
// feeds, which outrank generic scrapers.
const (
	PriorityAPI        = 90
	PriorityAggregator = 50
	PriorityScraper    = 10
)

// DefaultPriorities returns the built-in source ranking.
func DefaultPriorities() PriorityTable {
	return PriorityTable{
		"greenhouse": PriorityAPI,
		"lever":      PriorityAPI,
		"rss":        PriorityAggregator,
		"web3jobs":   PriorityAggregator,
		"scraper":    PriorityScraper,
	}
}

// Lookup returns the priority for a source, 0 when unknown.
func (t PriorityTable) Lookup(source string) int {
	if t == nil {
		return 0
	}
	return t[source]
}

// Merge overlays overrides on top of the table and returns the result.
// The receiver is not modified.
func (t PriorityTable) Merge(overrides map[string]int) PriorityTable {
	merged := make(PriorityTable, len(t)+len(overrides))
	for source, p := range t {
		merged[source] = p
	}
	for source, p := range overrides {
		merged[source] = p
	}
	return merged
}
