// Package memory provides an in-memory Store for development and tests.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/chainboard/jobs-crawler/internal/ingest"
)

// Store implements ingest.Store with mutex-guarded maps. The mutex makes
// UpsertByURL atomic, matching the single-conditional-write requirement the
// pipeline places on its storage collaborator.
type Store struct {
	mu       sync.RWMutex
	byURL    map[string]ingest.CanonicalJob
	crawlLog []ingest.CrawlLogEntry
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		byURL: make(map[string]ingest.CanonicalJob),
	}
}

// UpsertByURL inserts or replaces the record stored under the job's URL.
// Field-preservation decisions (postedDate, description) belong to the
// validation engine; the store writes what it is given.
func (s *Store) UpsertByURL(_ context.Context, job ingest.CanonicalJob) (ingest.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.byURL[job.URL]
	if exists {
		job.ID = existing.ID
	} else if job.ID == "" {
		job.ID = uuid.NewString()
	}
	s.byURL[job.URL] = job
	return ingest.UpsertResult{ID: job.ID, IsNew: !exists}, nil
}

// FindByURL looks up the record stored under an exact URL.
func (s *Store) FindByURL(_ context.Context, url string) (ingest.CanonicalJob, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.byURL[url]
	return job, ok, nil
}

// FindActiveByCompany returns active records whose company contains the
// given substring, case-insensitive.
func (s *Store) FindActiveByCompany(_ context.Context, companySubstring string) ([]ingest.CanonicalJob, error) {
	needle := strings.ToLower(strings.TrimSpace(companySubstring))
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ingest.CanonicalJob
	for _, job := range s.byURL {
		if !job.IsActive {
			continue
		}
		if needle == "" || strings.Contains(strings.ToLower(job.Company), needle) {
			out = append(out, job)
		}
	}
	return out, nil
}

// UpdateEnrichment writes derived fields for the record with the given id.
func (s *Store) UpdateEnrichment(
	_ context.Context,
	id string,
	badges []ingest.Badge,
	backers []string,
	sector, officeLocation string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for url, job := range s.byURL {
		if job.ID != id {
			continue
		}
		job.Badges = append([]ingest.Badge(nil), badges...)
		job.Backers = append([]string(nil), backers...)
		job.Sector = sector
		job.OfficeLocation = officeLocation
		s.byURL[url] = job
		return nil
	}
	return nil
}

// Deactivate marks the record with the given id inactive.
func (s *Store) Deactivate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for url, job := range s.byURL {
		if job.ID == id {
			job.IsActive = false
			s.byURL[url] = job
			return nil
		}
	}
	return nil
}

// AppendCrawlLog records an attributed fetch failure.
func (s *Store) AppendCrawlLog(_ context.Context, entry ingest.CrawlLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crawlLog = append(s.crawlLog, entry)
	return nil
}

// CrawlLog returns a copy of the appended log entries (tests).
func (s *Store) CrawlLog() []ingest.CrawlLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ingest.CrawlLogEntry(nil), s.crawlLog...)
}

// All returns every stored record (tests).
func (s *Store) All() []ingest.CanonicalJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ingest.CanonicalJob, 0, len(s.byURL))
	for _, job := range s.byURL {
		out = append(out, job)
	}
	return out
}
