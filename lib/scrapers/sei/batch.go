package sei

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

// generateFunc produces the terminal outcome for one record. Batch
// tests substitute it to exercise orchestration without a portal.
type generateFunc func(ctx context.Context, client Client, proc *Process) DownloadResult

// DownloadPDFs runs the generation workflow over a whole listing,
// sequentially on this client's session or fanned out over
// freshly-authenticated worker sessions. One record's failure never
// aborts the batch.
func (c Client) DownloadPDFs(ctx context.Context, processes []*Process, opts DownloadOptions) ([]DownloadResult, error) {
	return c.downloadBatch(ctx, processes, opts, func(ctx context.Context, client Client, proc *Process) DownloadResult {
		return client.GeneratePDF(ctx, proc, opts.OutputDir, opts.Retry)
	})
}

func (c Client) downloadBatch(ctx context.Context, processes []*Process, opts DownloadOptions, generate generateFunc) ([]DownloadResult, error) {
	ctx, span := tracer.Start(ctx, "client:DownloadPDFs")
	defer span.End()

	if opts.OutputDir == "" {
		opts.OutputDir = "pdfs"
	}
	if opts.Limit > 0 && opts.Limit < len(processes) {
		processes = processes[:opts.Limit]
	}
	if len(processes) == 0 {
		return nil, nil
	}

	var (
		results []DownloadResult
		err     error
	)
	if opts.Parallel {
		results, err = c.downloadParallel(ctx, processes, opts, generate)
	} else {
		results, err = c.downloadSequential(ctx, processes, opts, generate)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch download failed")
		return results, err
	}

	summarize(ctx, results)
	return results, nil
}

func (c Client) downloadSequential(ctx context.Context, processes []*Process, opts DownloadOptions, generate generateFunc) ([]DownloadResult, error) {
	pace := opts.Pace
	if pace <= 0 {
		pace = time.Second
	}
	limiter := rate.NewLimiter(rate.Every(pace), 1)

	results := make([]DownloadResult, 0, len(processes))
	for i, proc := range processes {
		if err := limiter.Wait(ctx); err != nil {
			return results, err
		}
		slog.InfoContext(ctx, "generating pdf",
			"number", proc.Number,
			"progress", fmt.Sprintf("%d/%d", i+1, len(processes)),
		)
		results = append(results, generate(ctx, c, proc))
	}
	return results, nil
}

func (c Client) downloadParallel(ctx context.Context, processes []*Process, opts DownloadOptions, generate generateFunc) ([]DownloadResult, error) {
	if opts.NewSession == nil {
		return nil, fmt.Errorf("parallel downloads require a session factory")
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 3
	}
	if workers > len(processes) {
		workers = len(processes)
	}

	// sessions are established up front so authentication failures
	// surface before any record is attempted
	sessions := make([]Client, workers)
	for i := range sessions {
		session, err := opts.NewSession(ctx)
		if err != nil {
			return nil, fmt.Errorf("establishing worker session %d: %w", i+1, err)
		}
		sessions[i] = session
	}

	results := make([]DownloadResult, len(processes))
	indices := make(chan int)

	var wg sync.WaitGroup
	for _, session := range sessions {
		wg.Add(1)
		go func(session Client) {
			defer wg.Done()
			for i := range indices {
				slog.InfoContext(ctx, "generating pdf",
					"number", processes[i].Number,
					"progress", fmt.Sprintf("%d/%d", i+1, len(processes)),
				)
				results[i] = generate(ctx, session, processes[i])
			}
		}(session)
	}

	for i := range processes {
		indices <- i
	}
	close(indices)
	wg.Wait()

	return results, nil
}

func summarize(ctx context.Context, results []DownloadResult) {
	succeeded := 0
	var failures []DownloadResult
	for _, result := range results {
		if result.Success {
			succeeded++
		} else {
			failures = append(failures, result)
		}
	}

	slog.InfoContext(ctx, "batch download finished",
		"total", len(results),
		"succeeded", succeeded,
		"failed", len(failures),
	)
	for i, failure := range failures {
		if i == 5 {
			slog.WarnContext(ctx, "more failures omitted", "remaining", len(failures)-i)
			break
		}
		slog.WarnContext(ctx, "pdf generation failed",
			"number", failure.Process.Number,
			"attempts", failure.Attempts,
			"err", failure.Err,
		)
	}
}
