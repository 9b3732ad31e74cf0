package sei

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"seiassist/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

const controlFormSelector = "#frmProcedimentoControlar"

var (
	captionTotalRe = regexp.MustCompile(`(\d+)\s+registros?`)
	captionRangeRe = regexp.MustCompile(`-\s*(\d+)\s*a\s*(\d+)`)
)

// parseCaption reads "... - 1 a 20 de 45 registros" style summaries.
func parseCaption(text string) (totalRecords, itemsPerPage int) {
	if match := captionTotalRe.FindStringSubmatch(text); match != nil {
		totalRecords, _ = strconv.Atoi(match[1])
	}
	if match := captionRangeRe.FindStringSubmatch(text); match != nil {
		start, _ := strconv.Atoi(match[1])
		end, _ := strconv.Atoi(match[2])
		if end >= start {
			itemsPerPage = end - start + 1
		}
	}
	if itemsPerPage == 0 {
		itemsPerPage = totalRecords
	}
	return totalRecords, itemsPerPage
}

func hiddenValue(doc *goquery.Document, id string) string {
	return doc.Find("#" + id).AttrOr("value", "")
}

// PaginationInfoFrom derives each category's pagination metadata from
// a rendered control panel page. Total pages is never below 1, even on
// an empty listing.
func PaginationInfoFrom(doc *goquery.Document) map[Category]PaginationInfo {
	info := map[Category]PaginationInfo{}

	for _, category := range Categories {
		table := listingTable(doc, category)
		totalRecords := 0
		itemsPerPage := 0

		if table.Length() > 0 {
			caption := table.Find("caption").First()
			if caption.Length() > 0 {
				totalRecords, itemsPerPage = parseCaption(htmlutil.CleanText(caption.Text()))
			}
			rows := table.Find(`tr[id^="P"]`).Length()
			if itemsPerPage <= 0 && rows > 0 {
				itemsPerPage = rows
			}
			if totalRecords <= 0 && rows > 0 {
				totalRecords = rows
			}
		}

		if raw := hiddenValue(doc, fmt.Sprintf("hdn%sNroItens", category)); raw != "" && itemsPerPage <= 0 {
			if n, err := strconv.Atoi(raw); err == nil {
				itemsPerPage = n
			}
		}
		if raw := hiddenValue(doc, fmt.Sprintf("hdn%sItens", category)); raw != "" && totalRecords <= 0 {
			for _, item := range strings.Split(raw, ",") {
				if item != "" {
					totalRecords++
				}
			}
		}

		currentPage := 0
		if raw := hiddenValue(doc, fmt.Sprintf("hdn%sPaginaAtual", category)); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				currentPage = n
			}
		}

		if itemsPerPage <= 0 {
			itemsPerPage = max(1, totalRecords)
		}
		totalPages := max(1, (totalRecords+itemsPerPage-1)/itemsPerPage)

		info[category] = PaginationInfo{
			TotalRecords: totalRecords,
			CurrentPage:  currentPage,
			TotalPages:   totalPages,
			ItemsPerPage: itemsPerPage,
		}
	}
	return info
}

// advancePage re-submits the listing's own form asking for another
// page of the category, leaving every other field untouched.
func (c Client) advancePage(ctx context.Context, currentHtml string, category Category, targetPage int, controlUrl string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(currentHtml))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProcess, err)
	}
	form := doc.Find(controlFormSelector).First()
	if form.Length() == 0 {
		return "", fmt.Errorf("%w: control form not found for pagination", ErrProcess)
	}

	data := htmlutil.SerializeForm(form)
	target := strconv.Itoa(targetPage)

	upper := fmt.Sprintf("sel%sPaginacaoSuperior", category)
	lower := fmt.Sprintf("sel%sPaginacaoInferior", category)
	hidden := fmt.Sprintf("hdn%sPaginaAtual", category)

	if _, ok := data[upper]; ok {
		data[upper] = target
	}
	if _, ok := data[lower]; ok {
		data[lower] = target
	}
	if _, ok := data[hidden]; !ok {
		// without the hidden page field there is no way to express a
		// page change for this category
		return "", fmt.Errorf("%w: pagination unavailable for %s", ErrProcess, category)
	}
	data[hidden] = target

	action := c.Core.AbsoluteUrl(form.AttrOr("action", ""))
	html, err := c.Core.PostForm(ctx, action, data, controlUrl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProcess, err)
	}
	c.saveDebug(fmt.Sprintf("control_%s_%d.html", strings.ToLower(string(category)), targetPage+1), html)
	return html, nil
}

// CollectProcesses walks the control panel pages of both categories,
// accumulating a deduplicated, order-preserving process list.
func (c Client) CollectProcesses(ctx context.Context, controlHtml, controlUrl string, pagination PaginationOptions) ([]*Process, error) {
	ctx, span := tracer.Start(ctx, "client:CollectProcesses")
	defer span.End()

	initial, err := goquery.NewDocumentFromReader(bytes.NewBufferString(controlHtml))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse control panel html")
		return nil, fmt.Errorf("%w: %v", ErrProcess, err)
	}

	info := PaginationInfoFrom(initial)
	processes := appendProcesses(nil, ExtractProcesses(initial, c.Core.AbsoluteUrl))

	for _, category := range Categories {
		catInfo := info[category]
		limit := pagination.limitFor(category, catInfo.TotalPages)
		html := controlHtml

		for page := catInfo.CurrentPage + 1; page < limit; page++ {
			slog.InfoContext(ctx, "loading listing page",
				"category", category,
				"page", page+1,
				"total_pages", catInfo.TotalPages,
			)
			html, err = c.advancePage(ctx, html, category, page, controlUrl)
			if err != nil {
				span.RecordError(err)
				return processes, err
			}
			doc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(html))
			if err != nil {
				span.RecordError(err)
				return processes, fmt.Errorf("%w: %v", ErrProcess, err)
			}
			processes = appendProcesses(processes, ExtractProcesses(doc, c.Core.AbsoluteUrl))
		}
	}

	slog.InfoContext(ctx, "collected processes", "total", len(processes))
	return processes, nil
}

// ListProcesses collects every listing page within the pagination caps
// and applies the filters, returning both the full and narrowed sets.
func (c Client) ListProcesses(ctx context.Context, controlHtml, controlUrl string, pagination PaginationOptions, filters FilterOptions) (all []*Process, filtered []*Process, err error) {
	all, err = c.CollectProcesses(ctx, controlHtml, controlUrl, pagination)
	if err != nil {
		return nil, nil, err
	}
	return all, ApplyFilters(all, filters), nil
}
