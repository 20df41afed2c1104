// Package registry provides the static company registry used for
// post-save enrichment. Lookups match by exact name or alias,
// case-insensitive.
package registry

import "strings"

// Company is one registry entry.
type Company struct {
	Name           string
	Aliases        []string
	Backers        []string
	Sector         string
	OfficeLocation string
	HasToken       bool
	Stage          string
	Website        string
}

// Registry is an in-process, read-only lookup table.
type Registry struct {
	byKey map[string]*Company
}

// New builds a Registry from company entries. Later entries win on alias
// collisions.
func New(companies []Company) *Registry {
	r := &Registry{byKey: make(map[string]*Company)}
	for i := range companies {
		c := &companies[i]
		r.byKey[normalizeKey(c.Name)] = c
		for _, alias := range c.Aliases {
			r.byKey[normalizeKey(alias)] = c
		}
	}
	return r
}

// Default returns the built-in registry of companies the board curates.
func Default() *Registry {
	return New(defaultCompanies)
}

// Lookup finds a company by name or alias. The boolean reports whether a
// match was found.
func (r *Registry) Lookup(name string) (Company, bool) {
	c, ok := r.byKey[normalizeKey(name)]
	if !ok {
		return Company{}, false
	}
	return *c, true
}

// Size returns the number of distinct keys in the registry.
func (r *Registry) Size() int { return len(r.byKey) }

func normalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

// defaultCompanies is the curated seed set. The registry is data, not
// behavior: adding a company is an entry here plus nothing else.
var defaultCompanies = []Company{
	{
		Name:           "LayerForge",
		Aliases:        []string{"layerforge labs", "layer forge"},
		Backers:        []string{"Hashed", "Alameda Alumni Fund"},
		Sector:         "Infrastructure",
		OfficeLocation: "Singapore",
		HasToken:       true,
		Stage:          "Series B",
		Website:        "https://layerforge.xyz",
	},
	{
		Name:           "Chainrail",
		Aliases:        []string{"chainrail protocol"},
		Backers:        []string{"Paradigm"},
		Sector:         "DeFi",
		OfficeLocation: "New York",
		HasToken:       true,
		Stage:          "Series A",
		Website:        "https://chainrail.io",
	},
	{
		Name:           "Nodewatch",
		Aliases:        []string{"nodewatch.io"},
		Backers:        []string{"a16z crypto"},
		Sector:         "Security",
		OfficeLocation: "Berlin",
		HasToken:       false,
		Stage:          "Seed",
		Website:        "https://nodewatch.io",
	},
	{
		Name:           "Mintbase Systems",
		Aliases:        []string{"mintbase"},
		Backers:        []string{"Electric Capital"},
		Sector:         "NFT Tooling",
		OfficeLocation: "Lisbon",
		HasToken:       true,
		Stage:          "Pre-IPO",
		Website:        "https://mintbase.systems",
	},
	{
		Name:           "Quorum Labs",
		Aliases:        []string{"quorumlabs"},
		Backers:        []string{"Hashed", "Samsung Next"},
		Sector:         "Wallets",
		OfficeLocation: "Seoul",
		HasToken:       false,
		Stage:          "Series C",
		Website:        "https://quorumlabs.dev",
	},
}
