package source

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chainboard/jobs-crawler/internal/fetch"
	"github.com/chainboard/jobs-crawler/internal/ingest"
	"github.com/chainboard/jobs-crawler/internal/normalize"
)

const greenhouseAPIBase = "https://boards-api.greenhouse.io/v1/boards"

// GreenhouseBoard identifies one company's board on the Greenhouse API.
type GreenhouseBoard struct {
	// Token is the board slug in the API path.
	Token string
	// Company is the display name written onto records.
	Company string
}

// GreenhouseConfig configures the Greenhouse adapter.
type GreenhouseConfig struct {
	Boards []GreenhouseBoard
	// FetchDetails enables the per-job detail request that carries the
	// full description. Listing payloads have no description.
	FetchDetails bool
	// RequestDelay spaces sequential detail requests. Zero disables the
	// pause.
	RequestDelay time.Duration
}

// Greenhouse crawls the Greenhouse boards API, one board per configured
// company.
type Greenhouse struct {
	fetcher Fetcher
	cfg     GreenhouseConfig
	logger  *zap.Logger
}

// NewGreenhouse builds the adapter.
func NewGreenhouse(fetcher Fetcher, cfg GreenhouseConfig, logger *zap.Logger) *Greenhouse {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Greenhouse{fetcher: fetcher, cfg: cfg, logger: logger}
}

// Name implements ingest.SourceAdapter.
func (g *Greenhouse) Name() string { return "greenhouse" }

type greenhouseListing struct {
	Jobs []greenhouseJob `json:"jobs"`
}

type greenhouseJob struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	AbsoluteURL string `json:"absolute_url"`
	UpdatedAt   string `json:"updated_at"`
	Location    struct {
		Name string `json:"name"`
	} `json:"location"`
	Content     string `json:"content"`
	Departments []struct {
		Name string `json:"name"`
	} `json:"departments"`
}

// Crawl fetches every configured board. Board-level failures are collected
// and returned together with the records from the boards that succeeded.
func (g *Greenhouse) Crawl(ctx context.Context) ([]ingest.RawJobRecord, error) {
	var records []ingest.RawJobRecord
	var firstErr error

	for _, board := range g.cfg.Boards {
		if ctx.Err() != nil {
			return records, ctx.Err()
		}
		boardRecords, err := g.crawlBoard(ctx, board)
		records = append(records, boardRecords...)
		if err != nil {
			g.logger.Warn("greenhouse board failed",
				zap.String("board", board.Token), zap.Error(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("board %s: %w", board.Token, err)
			}
		}
	}
	return records, firstErr
}

func (g *Greenhouse) crawlBoard(ctx context.Context, board GreenhouseBoard) ([]ingest.RawJobRecord, error) {
	listURL := fmt.Sprintf("%s/%s/jobs", greenhouseAPIBase, board.Token)
	payload, err := g.fetcher.Fetch(ctx, fetch.Request{URL: listURL, Source: g.Name()})
	if err != nil {
		return nil, err
	}

	var listing greenhouseListing
	if err := json.Unmarshal(payload.Body, &listing); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}

	records := make([]ingest.RawJobRecord, 0, len(listing.Jobs))
	for i, job := range listing.Jobs {
		record, ok := g.mapJob(board, job)
		if !ok {
			continue
		}
		if g.cfg.FetchDetails {
			if i > 0 {
				politeSleep(ctx, g.cfg.RequestDelay)
			}
			g.fillDetail(ctx, board, job.ID, &record)
		}
		records = append(records, record)
	}
	return records, nil
}

func (g *Greenhouse) mapJob(board GreenhouseBoard, job greenhouseJob) (ingest.RawJobRecord, bool) {
	if job.Title == "" || job.AbsoluteURL == "" {
		g.logger.Debug("greenhouse item skipped",
			zap.String("board", board.Token), zap.Int64("id", job.ID))
		return ingest.RawJobRecord{}, false
	}

	record := ingest.RawJobRecord{
		Title:       job.Title,
		Company:     board.Company,
		URL:         job.AbsoluteURL,
		Location:    job.Location.Name,
		Source:      g.Name(),
		Description: normalize.Clean(job.Content),
	}
	if len(job.Departments) > 0 {
		record.Category = job.Departments[0].Name
	}
	if t, err := time.Parse(time.RFC3339, job.UpdatedAt); err == nil {
		record.PostedAt = t.UTC()
	}
	return record, true
}

// fillDetail backfills the full description from the per-job endpoint.
// Detail failures leave the listing-level record intact.
func (g *Greenhouse) fillDetail(ctx context.Context, board GreenhouseBoard, id int64, record *ingest.RawJobRecord) {
	detailURL := fmt.Sprintf("%s/%s/jobs/%d?content=true", greenhouseAPIBase, board.Token, id)
	payload, err := g.fetcher.Fetch(ctx, fetch.Request{URL: detailURL, Source: g.Name()})
	if err != nil {
		g.logger.Debug("greenhouse detail fetch failed",
			zap.String("board", board.Token), zap.Int64("id", id), zap.Error(err))
		return
	}

	var detail greenhouseJob
	if err := json.Unmarshal(payload.Body, &detail); err != nil {
		g.logger.Debug("greenhouse detail decode failed",
			zap.String("board", board.Token), zap.Int64("id", id), zap.Error(err))
		return
	}
	if desc := normalize.Clean(detail.Content); desc != "" {
		record.Description = desc
	}
}
