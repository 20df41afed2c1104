package fetch

import (
	"crypto/rand"
	"math/big"
	"net/http"
)

// browserProfiles are the header sets rotated across requests so upstream
// anti-bot heuristics see plausible browsers rather than one static agent.
var browserProfiles = []http.Header{
	{
		"User-Agent":      {"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"},
		"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"},
		"Accept-Language": {"en-US,en;q=0.9"},
		"Sec-Ch-Ua":       {`"Not/A)Brand";v="8", "Chromium";v="126", "Google Chrome";v="126"`},
	},
	{
		"User-Agent":      {"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15"},
		"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
		"Accept-Language": {"en-US,en;q=0.5"},
	},
	{
		"User-Agent":      {"Mozilla/5.0 (X11; Linux x86_64; rv:127.0) Gecko/20100101 Firefox/127.0"},
		"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"},
		"Accept-Language": {"en-GB,en;q=0.7"},
	},
	{
		"User-Agent":      {"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36 Edg/125.0.0.0"},
		"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
		"Accept-Language": {"en-US,en;q=0.9"},
	},
}

// randomBrowserHeaders returns a copy of one randomly chosen header profile.
func randomBrowserHeaders() http.Header {
	profile := browserProfiles[randIndex(len(browserProfiles))]
	out := make(http.Header, len(profile))
	for k, v := range profile {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// randIndex returns a uniform index in [0, n), falling back to 0 when the
// random source fails.
func randIndex(n int) int {
	if n <= 1 {
		return 0
	}
	i, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(i.Int64())
}
