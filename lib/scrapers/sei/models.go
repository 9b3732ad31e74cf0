package sei

import (
	"context"
	"time"

	"seiassist/lib/scrapers/sei/tree"
)

// Category is one of the two mutually exclusive listing groups on the
// control panel. The values mirror the portal's own table ids.
type Category string

const (
	CategoryReceived  Category = "Recebidos"
	CategoryGenerated Category = "Gerados"
)

var Categories = []Category{CategoryReceived, CategoryGenerated}

// Process is one row of the control panel listing, enriched over time
// with documents and tree-level metadata.
type Process struct {
	// canonical display number, e.g. 1500.01.0310980/2025-88
	Number string
	// server-issued identifier, the real identity of the record
	ProcedureId string
	Url         string
	Hash        string

	Seen     bool
	Category Category

	Title      string
	TypeDetail string

	AssigneeName string
	AssigneeId   string

	Markers         []string
	HasNewDocuments bool
	HasAnnotations  bool

	Documents []tree.Document

	Confidential    bool
	AccessLevel     string
	Signers         []string
	SignatureAlerts []string

	Metadata map[string]string
}

// Key prefers the server identifier and falls back to the display
// number, mirroring how the portal itself disambiguates rows.
func (p *Process) Key() string {
	if p.ProcedureId != "" {
		return p.ProcedureId
	}
	return p.Number
}

type PaginationInfo struct {
	TotalRecords int
	CurrentPage  int
	TotalPages   int
	ItemsPerPage int
}

// PaginationOptions caps how many listing pages are fetched per
// category. Zero means no cap; a negative ceiling clamps to a single
// page.
type PaginationOptions struct {
	MaxPagesReceived  int
	MaxPagesGenerated int
	MaxPagesTotal     int
}

func (o PaginationOptions) limitFor(category Category, totalPages int) int {
	limit := totalPages
	apply := func(ceiling int) {
		if ceiling < 0 {
			ceiling = 1
		}
		if ceiling > 0 && ceiling < limit {
			limit = ceiling
		}
	}
	apply(o.MaxPagesTotal)
	switch category {
	case CategoryReceived:
		apply(o.MaxPagesReceived)
	case CategoryGenerated:
		apply(o.MaxPagesGenerated)
	}
	if limit < 1 {
		return 1
	}
	return limit
}

// FilterOptions narrow the collected listing in memory. Nil pointer
// fields mean "don't care".
type FilterOptions struct {
	Categories      []Category
	Seen            *bool
	HasNewDocuments *bool
	HasAnnotations  *bool
	Assignees       []string
	Types           []string
	Markers         []string
	Limit           int
}

type EnrichmentOptions struct {
	// caps how many processes get enriched, zero means all
	Limit int
}

// RetryPolicy is the bounded retry schedule the batch orchestrator
// applies around each record. Delay grows linearly with the attempt
// number and is capped at MaxDelay.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second * 2,
		MaxDelay:    time.Second * 10,
	}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	delay := p.BaseDelay * time.Duration(attempt)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

type DownloadOptions struct {
	// caps how many processes are attempted, zero means all
	Limit     int
	OutputDir string
	Retry     RetryPolicy
	// minimum spacing between records in sequential mode, defaults to
	// one second to stay friendly to the portal
	Pace time.Duration

	Parallel bool
	Workers  int
	// required in parallel mode, each worker authenticates its own
	// session instead of sharing cookie state
	NewSession func(ctx context.Context) (Client, error)
}

// DownloadResult is the terminal outcome of one record's generation
// workflow, successful or not. Immutable once produced.
type DownloadResult struct {
	Process  *Process
	Success  bool
	Path     string
	Err      error
	Attempts int
	Elapsed  time.Duration
}
