// Package ingest defines core types shared across the ingestion pipeline.
package ingest

import "time"

// RawJobRecord is the output of a source adapter before validation.
// It is ephemeral: records are discarded once the validation engine has
// accepted or rejected them.
type RawJobRecord struct {
	Title          string    `json:"title"`
	Company        string    `json:"company"`
	URL            string    `json:"url"`
	Location       string    `json:"location,omitempty"`
	EmploymentType string    `json:"employment_type,omitempty"`
	Category       string    `json:"category,omitempty"`
	Description    string    `json:"description,omitempty"`
	SalaryMin      int       `json:"salary_min,omitempty"`
	SalaryMax      int       `json:"salary_max,omitempty"`
	SalaryCurrency string    `json:"salary_currency,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	Source         string    `json:"source"`
	PostedAt       time.Time `json:"posted_at,omitempty"`
	CompanyLogo    string    `json:"company_logo,omitempty"`
	CompanyWebsite string    `json:"company_website,omitempty"`
}

// Badge is a derived, recomputable categorical tag on a canonical job.
type Badge string

// Badge values computed by the enrichment engine.
const (
	BadgeVerified  Badge = "Verified"
	BadgeWeb3Perks Badge = "Web3 Perks"
	BadgePreIPO    Badge = "Pre-IPO"
	BadgeRemote    Badge = "Remote"
	BadgeActive    Badge = "Active"
	BadgeEnglish   Badge = "English"
)

// CanonicalJob is the persisted, deduplicated representation of a posting.
// URL is unique per record; two records with equal normalized title and
// company are the same logical posting regardless of URL.
type CanonicalJob struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Company        string     `json:"company"`
	URL            string     `json:"url"`
	Location       string     `json:"location,omitempty"`
	EmploymentType string     `json:"employment_type,omitempty"`
	Category       string     `json:"category,omitempty"`
	Description    string     `json:"description,omitempty"`
	SalaryMin      int        `json:"salary_min,omitempty"`
	SalaryMax      int        `json:"salary_max,omitempty"`
	SalaryCurrency string     `json:"salary_currency,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
	Source         string     `json:"source"`
	Badges         []Badge    `json:"badges,omitempty"`
	Backers        []string   `json:"backers,omitempty"`
	Sector         string     `json:"sector,omitempty"`
	OfficeLocation string     `json:"office_location,omitempty"`
	HasToken       bool       `json:"has_token,omitempty"`
	Stage          string     `json:"stage,omitempty"`
	CompanyLogo    string     `json:"company_logo,omitempty"`
	CompanyWebsite string     `json:"company_website,omitempty"`
	IsActive       bool       `json:"is_active"`
	// PostedDate is immutable once set; re-crawls never overwrite it.
	PostedDate      time.Time  `json:"posted_date"`
	CrawledAt       time.Time  `json:"crawled_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	LastValidatedAt *time.Time `json:"last_validated_at,omitempty"`
}

// CrawlLogEntry is appended for every attributed fetch failure so a later
// observability pass can see which source/domain/error combinations recur.
type CrawlLogEntry struct {
	Source     string    `json:"source"`
	Domain     string    `json:"domain"`
	Kind       string    `json:"kind"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// SourceStatus describes how a single source finished within a run.
type SourceStatus string

// Source outcomes recorded in the run summary.
const (
	SourceSucceeded SourceStatus = "succeeded"
	SourceFailed    SourceStatus = "failed"
	SourceSkipped   SourceStatus = "skipped"
)

// SourceResult is the per-source line item of a run summary.
type SourceResult struct {
	Name      string       `json:"name"`
	Status    SourceStatus `json:"status"`
	Found     int          `json:"found"`
	Saved     int          `json:"saved"`
	New       int          `json:"new"`
	ErrorText string       `json:"error_text,omitempty"`
}

// RunSummary aggregates one orchestration run for notification and the
// status API.
type RunSummary struct {
	RunID          string         `json:"run_id"`
	Started        time.Time      `json:"started_at"`
	Duration       time.Duration  `json:"duration"`
	Sources        []SourceResult `json:"sources"`
	TotalProcessed int            `json:"total_processed"`
	TotalNew       int            `json:"total_new"`
	SourcesFailed  int            `json:"sources_failed"`
}
