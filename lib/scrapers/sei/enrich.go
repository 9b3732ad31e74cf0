package sei

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"seiassist/lib/scrapers/sei/tree"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

// fetchDocumentTree opens a process page, follows its document tree
// frame and parses the script literals into documents plus
// process-level annotations.
func (c Client) fetchDocumentTree(ctx context.Context, proc *Process) (tree.Result, error) {
	html, err := c.Core.GetPage(ctx, proc.Url)
	if err != nil {
		return tree.Result{}, fmt.Errorf("%w: %v", ErrProcess, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(html))
	if err != nil {
		return tree.Result{}, fmt.Errorf("%w: %v", ErrProcess, err)
	}

	frameSrc := doc.Find("#ifrArvore").AttrOr("src", "")
	if frameSrc == "" {
		return tree.Result{}, fmt.Errorf("%w: document tree frame not found", ErrProcess)
	}

	frameHtml, err := c.Core.GetPage(ctx, c.Core.AbsoluteUrl(frameSrc))
	if err != nil {
		return tree.Result{}, fmt.Errorf("%w: %v", ErrProcess, err)
	}

	frameDoc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(frameHtml))
	if err != nil {
		return tree.Result{}, fmt.Errorf("%w: %v", ErrProcess, err)
	}

	c.saveDebug(fmt.Sprintf("tree_%s.html", sanitizeFilename(proc.Key(), "process")), frameHtml)
	return tree.Parse(tree.ScriptText(frameDoc), proc.ProcedureId, c.Core.AbsoluteUrl), nil
}

func applyTreeResult(proc *Process, result tree.Result) {
	// enrichment replaces previous tree state wholesale, a re-run must
	// not accumulate stale documents or signers
	proc.Documents = result.Documents
	proc.Signers = result.ProcessSigners
	proc.SignatureAlerts = result.ProcessSignatureAlerts
	proc.Confidential = result.ProcessConfidential
	proc.AccessLevel = result.ProcessAccessLevel
	if proc.AccessLevel == "" && proc.Confidential {
		proc.AccessLevel = "sigiloso"
	}

	for _, document := range result.Documents {
		if document.Confidential {
			proc.Confidential = true
		}
		for _, signer := range document.Signers {
			if strings.TrimSpace(signer) != "" {
				proc.Signers = appendMissing(proc.Signers, signer)
			}
		}
	}
}

func appendMissing(list []string, value string) []string {
	for _, existing := range list {
		if strings.EqualFold(existing, value) {
			return list
		}
	}
	return append(list, value)
}

// EnrichProcesses visits each process page and folds in its document
// tree. Per-record failures are logged and skipped, the rest of the
// batch proceeds. The slice is mutated in place and also returned.
func (c Client) EnrichProcesses(ctx context.Context, processes []*Process, opts EnrichmentOptions) []*Process {
	ctx, span := tracer.Start(ctx, "client:EnrichProcesses")
	defer span.End()

	limit := len(processes)
	if opts.Limit > 0 && opts.Limit < limit {
		limit = opts.Limit
	}

	failures := 0
	for i, proc := range processes[:limit] {
		slog.InfoContext(ctx, "enriching process",
			"number", proc.Number,
			"progress", fmt.Sprintf("%d/%d", i+1, limit),
		)
		result, err := c.fetchDocumentTree(ctx, proc)
		if err != nil {
			failures++
			span.RecordError(err)
			slog.WarnContext(ctx, "failed to enrich process",
				"number", proc.Number,
				"err", err,
			)
			// a failed re-enrichment must not leave tree state from a
			// previous run behind
			applyTreeResult(proc, tree.Result{})
			continue
		}
		applyTreeResult(proc, result)
	}

	if failures > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d of %d processes failed enrichment", failures, limit))
	}
	slog.InfoContext(ctx, "enrichment finished", "processed", limit, "failures", failures)
	return processes
}
