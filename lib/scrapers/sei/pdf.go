package sei

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"seiassist/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

// the portal serves whole-process PDFs, anything past this is treated
// as a misbehaving response rather than saved to disk
const maxPdfSize = 100 << 20

var (
	generateLinkRe     = regexp.MustCompile(`['"]([^'"]*acao=procedimento_gerar_pdf[^'"]*)['"]`)
	downloadQuotedRe   = regexp.MustCompile(`['"]([^'"]*acao=exibir_arquivo[^'"]*)['"]`)
	downloadFrameSrcRe = regexp.MustCompile(`getElementById\(['"]ifrDownload['"]\)\.src\s*=\s*['"]([^'"]+)['"]`)
)

// findGenerateLink locates the "generate PDF" action inside the
// document tree frame. The markup varies between portal builds, so
// anchors are tried by href, then by their icon's alt text, then by
// title, and finally a raw scan of the html.
func findGenerateLink(frameDoc *goquery.Document, frameHtml string) string {
	link := frameDoc.Find(`a[href*="acao=procedimento_gerar_pdf"]`).First()
	if href := link.AttrOr("href", ""); href != "" {
		return href
	}

	var found string
	frameDoc.Find("a[href]").EachWithBreak(func(_ int, anchor *goquery.Selection) bool {
		alt := anchor.Find("img").AttrOr("alt", "")
		title := anchor.AttrOr("title", "")
		if strings.Contains(strings.ToLower(alt), "pdf") ||
			strings.Contains(strings.ToLower(title), "gerar arquivo pdf") {
			found = anchor.AttrOr("href", "")
			return found == ""
		}
		return true
	})
	if found != "" {
		return found
	}

	if match := generateLinkRe.FindStringSubmatch(frameHtml); match != nil {
		return strings.ReplaceAll(match[1], "&amp;", "&")
	}
	return ""
}

// findDownloadUrl extracts the generated file's address from a
// post-generation page. Portal builds disagree on whether it lands in
// a frame, an anchor or a bare quoted string.
func findDownloadUrl(doc *goquery.Document, html string) string {
	if src := doc.Find("#ifrDownload").AttrOr("src", ""); strings.Contains(src, "acao=exibir_arquivo") {
		return src
	}
	if href := doc.Find(`a[href*="acao=exibir_arquivo"]`).AttrOr("href", ""); href != "" {
		return href
	}
	if match := downloadQuotedRe.FindStringSubmatch(html); match != nil {
		return strings.ReplaceAll(match[1], "&amp;", "&")
	}
	return ""
}

// secondaryFrameSrc catches builds where the page only assigns the
// download frame's source from script, pointing at an intermediate
// page that must itself be resolved.
func secondaryFrameSrc(html string) string {
	if match := downloadFrameSrcRe.FindStringSubmatch(html); match != nil {
		return strings.ReplaceAll(match[1], "&amp;", "&")
	}
	return ""
}

// portalDiagnostics pulls the portal's own error banners out of a
// page, for failure messages that actually say something.
func portalDiagnostics(doc *goquery.Document) string {
	var messages []string
	doc.Find("#divInfraMensagens .alert, #divInfraMensagens span, .infraMensagem").
		Each(func(_ int, alert *goquery.Selection) {
			if text := strings.TrimSpace(alert.Text()); text != "" {
				messages = append(messages, text)
			}
		})
	return strings.Join(messages, "; ")
}

func looksLikePdf(contentType, disposition string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "application/pdf") {
		return true
	}
	if strings.Contains(strings.ToLower(disposition), ".pdf") {
		return true
	}
	return bytes.HasPrefix(body, []byte("%PDF"))
}

// generatePDFOnce runs one pass of the generation workflow: open the
// process, find the generate action in the tree frame, submit the
// generation form and fetch the produced file.
func (c Client) generatePDFOnce(ctx context.Context, proc *Process, outputDir string) (string, error) {
	processHtml, err := c.Core.GetPage(ctx, proc.Url)
	if err != nil {
		return "", fmt.Errorf("%w: opening process: %v", ErrPDF, err)
	}
	processDoc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(processHtml))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPDF, err)
	}

	frameSrc := processDoc.Find("#ifrArvore").AttrOr("src", "")
	if frameSrc == "" {
		return "", fmt.Errorf("%w: document tree frame not found", ErrPDF)
	}
	frameHtml, err := c.Core.GetPage(ctx, c.Core.AbsoluteUrl(frameSrc))
	if err != nil {
		return "", fmt.Errorf("%w: fetching tree frame: %v", ErrPDF, err)
	}
	frameDoc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(frameHtml))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPDF, err)
	}

	generateHref := findGenerateLink(frameDoc, frameHtml)
	if generateHref == "" {
		return "", fmt.Errorf("%w: generate action not offered for this process", ErrPDF)
	}

	formHtml, err := c.Core.GetPage(ctx, c.Core.AbsoluteUrl(generateHref))
	if err != nil {
		return "", fmt.Errorf("%w: opening generation form: %v", ErrPDF, err)
	}
	formDoc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(formHtml))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPDF, err)
	}
	c.saveDebug(fmt.Sprintf("pdf_form_%s.html", sanitizeFilename(proc.Key(), "process")), formHtml)

	form := formDoc.Find("form").FilterFunction(func(_ int, s *goquery.Selection) bool {
		if s.Find(`input[name="hdnFlagGerar"]`).Length() > 0 {
			return true
		}
		return strings.Contains(strings.ToLower(s.AttrOr("action", "")), "gerar")
	}).First()
	if form.Length() == 0 {
		form = formDoc.Find("form").First()
	}
	if form.Length() == 0 {
		if diag := portalDiagnostics(formDoc); diag != "" {
			return "", fmt.Errorf("%w: %s", ErrPDF, diag)
		}
		return "", fmt.Errorf("%w: generation form not found", ErrPDF)
	}

	data := htmlutil.SerializeForm(form)
	data["hdnFlagGerar"] = "1"
	if v, ok := data["rdoTipo"]; !ok || v == "" {
		data["rdoTipo"] = "T"
	}
	if _, ok := data["btnGerar"]; !ok {
		data["btnGerar"] = "Gerar"
	}

	action := form.AttrOr("action", "")
	if action == "" {
		action = generateHref
	}
	resultHtml, err := c.Core.PostForm(ctx, c.Core.AbsoluteUrl(action), data, c.Core.AbsoluteUrl(generateHref))
	if err != nil {
		return "", fmt.Errorf("%w: submitting generation form: %v", ErrPDF, err)
	}
	resultDoc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(resultHtml))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPDF, err)
	}

	downloadHref := findDownloadUrl(resultDoc, resultHtml)
	if downloadHref == "" {
		if secondary := secondaryFrameSrc(resultHtml); secondary != "" {
			secondaryHtml, err := c.Core.GetPage(ctx, c.Core.AbsoluteUrl(secondary))
			if err != nil {
				return "", fmt.Errorf("%w: fetching download frame: %v", ErrPDF, err)
			}
			secondaryDoc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(secondaryHtml))
			if err != nil {
				return "", fmt.Errorf("%w: %v", ErrPDF, err)
			}
			downloadHref = findDownloadUrl(secondaryDoc, secondaryHtml)
			if downloadHref == "" {
				if diag := portalDiagnostics(secondaryDoc); diag != "" {
					return "", fmt.Errorf("%w: %s", ErrPDF, diag)
				}
			}
		}
	}
	if downloadHref == "" {
		c.saveDebug(fmt.Sprintf("pdf_result_%s.html", sanitizeFilename(proc.Key(), "process")), resultHtml)
		if diag := portalDiagnostics(resultDoc); diag != "" {
			return "", fmt.Errorf("%w: %s", ErrPDF, diag)
		}
		return "", fmt.Errorf("%w: generated file address not found", ErrPDF)
	}

	res, err := c.Core.Http.R().
		SetContext(ctx).
		Get(c.Core.AbsoluteUrl(downloadHref))
	if err != nil {
		return "", fmt.Errorf("%w: downloading file: %v", ErrPDF, err)
	}
	if res.StatusCode() >= 400 {
		return "", fmt.Errorf("%w: downloading file: status %d", ErrPDF, res.StatusCode())
	}

	body := res.Body()
	if len(body) == 0 {
		return "", fmt.Errorf("%w: empty download", ErrPDF)
	}
	if len(body) > maxPdfSize {
		return "", fmt.Errorf("%w: download exceeds %d bytes", ErrPDF, maxPdfSize)
	}
	if !looksLikePdf(res.Header().Get("content-type"), res.Header().Get("content-disposition"), body) {
		return "", fmt.Errorf("%w: response is not a pdf (content-type %q)", ErrPDF, res.Header().Get("content-type"))
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPDF, err)
	}
	name := sanitizeFilename(proc.Number, sanitizeFilename(proc.Key(), "processo")) + ".pdf"
	path := filepath.Join(outputDir, name)
	if err := os.WriteFile(path, body, 0644); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPDF, err)
	}
	return path, nil
}

// GeneratePDF runs the generation workflow for one process under the
// given retry policy and reports the terminal outcome.
func (c Client) GeneratePDF(ctx context.Context, proc *Process, outputDir string, policy RetryPolicy) DownloadResult {
	ctx, span := tracer.Start(ctx, "client:GeneratePDF")
	defer span.End()

	start := time.Now()
	result := DownloadResult{Process: proc}

attempts:
	for attempt := 1; attempt <= policy.attempts(); attempt++ {
		result.Attempts = attempt
		path, err := c.generatePDFOnce(ctx, proc, outputDir)
		if err == nil {
			result.Success = true
			result.Path = path
			result.Err = nil
			break
		}
		result.Err = err
		span.RecordError(err)
		slog.WarnContext(ctx, "pdf generation attempt failed",
			"number", proc.Number,
			"attempt", attempt,
			"max_attempts", policy.attempts(),
			"err", err,
		)
		if attempt < policy.attempts() {
			select {
			case <-ctx.Done():
				result.Err = ctx.Err()
				break attempts
			case <-time.After(policy.backoff(attempt)):
			}
		}
	}

	result.Elapsed = time.Since(start)
	if !result.Success {
		span.SetStatus(codes.Error, "pdf generation failed")
	}
	return result
}
