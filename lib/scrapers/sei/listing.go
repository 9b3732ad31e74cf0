package sei

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"seiassist/lib/scrapers/sei/tree"

	"github.com/PuerkitoBio/goquery"
)

var (
	// tolerates the inconsistent spacing the portal renders around the
	// number's punctuation
	processNumberRe = regexp.MustCompile(`\b\d{4}\.\s?\d{2}\.\s?\d{7}\s*/\s*\d{4}\s*[-–—]\s*\d{2}\b`)
	tooltipRe       = regexp.MustCompile(`infraTooltipMostrar\('([^']*)',\s*'([^']*)'\)`)
	tooltipTitleRe  = regexp.MustCompile(`infraTooltipMostrar\('([^']*)'`)

	dotSpacingRe  = regexp.MustCompile(`\.\s+`)
	slashSpacesRe = regexp.MustCompile(`\s*/\s*`)
	dashSpacesRe  = regexp.MustCompile(`\s*[-–—]\s*`)
)

// CanonicalNumber collapses the stray spacing the portal sprinkles
// inside process display numbers.
func CanonicalNumber(text string) string {
	text = strings.ReplaceAll(text, " ", " ")
	text = dotSpacingRe.ReplaceAllString(text, ".")
	text = slashSpacesRe.ReplaceAllString(text, "/")
	text = dashSpacesRe.ReplaceAllString(text, "-")
	return strings.TrimSpace(text)
}

func queryParam(href, name string) string {
	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return parsed.Query().Get(name)
}

// parseTooltip decodes the title/type pair the portal renders through
// its tooltip helper.
func parseTooltip(onmouseover string) (title, typeDetail string) {
	match := tooltipRe.FindStringSubmatch(onmouseover)
	if match == nil {
		return "", ""
	}
	return strings.TrimSpace(match[1]), strings.TrimSpace(match[2])
}

// processFromRow turns one listing table row into a Process. Rows that
// don't yield a number and link are not processes, nil is returned.
func processFromRow(row *goquery.Selection, category Category, resolve func(string) string) *Process {
	link := row.Find(`a[href*="acao=procedimento_trabalhar"]`).First()
	if link.Length() == 0 {
		return nil
	}

	text := strings.TrimSpace(link.Text())
	title := link.AttrOr("title", "")
	href := link.AttrOr("href", "")
	if href == "" {
		return nil
	}

	match := processNumberRe.FindString(text)
	if match == "" {
		match = processNumberRe.FindString(title)
	}
	if match == "" {
		match = processNumberRe.FindString(href)
	}
	if match == "" {
		return nil
	}

	pageUrl := resolve(href)
	proc := &Process{
		Number:      CanonicalNumber(match),
		ProcedureId: queryParam(pageUrl, "id_procedimento"),
		Url:         pageUrl,
		Hash:        tree.HashFromUrl(pageUrl),
		Seen:        strings.Contains(link.AttrOr("class", ""), "processoVisualizado"),
		Category:    category,
		Metadata:    map[string]string{},
	}

	tooltipTitle, typeDetail := parseTooltip(link.AttrOr("onmouseover", ""))
	proc.Title = tooltipTitle
	proc.TypeDetail = typeDetail

	assignee := row.Find(`a[href*="acao=procedimento_atribuicao_listar"]`).First()
	if assignee.Length() > 0 {
		proc.AssigneeName = strings.TrimPrefix(assignee.AttrOr("title", ""), "Atribuído para ")
		proc.AssigneeId = strings.TrimSpace(assignee.Text())
	}

	row.Find("img.imagemStatus").Each(func(_ int, img *goquery.Selection) {
		parent := img.ParentsFiltered("a").First()
		if parent.Length() == 0 {
			return
		}
		if match := tooltipTitleRe.FindStringSubmatch(parent.AttrOr("onmouseover", "")); match != nil {
			if marker := strings.TrimSpace(match[1]); marker != "" {
				proc.Markers = append(proc.Markers, marker)
			}
		}
	})

	proc.HasNewDocuments = row.Find(`img[src*="exclamacao.svg"]`).Length() > 0
	proc.HasAnnotations = row.Find(`img[src*="anotacao"]`).Length() > 0

	return proc
}

func listingTable(doc *goquery.Document, category Category) *goquery.Selection {
	return doc.Find(fmt.Sprintf("#tblProcessos%s", category))
}

// ExtractProcesses walks both listing tables of a control panel page.
// Rows that fail to parse are skipped, duplicates (by procedure id)
// keep their first occurrence.
func ExtractProcesses(doc *goquery.Document, resolve func(string) string) []*Process {
	var processes []*Process
	seen := map[string]bool{}

	for _, category := range Categories {
		listingTable(doc, category).Find(`tr[id^="P"]`).Each(func(_ int, row *goquery.Selection) {
			proc := processFromRow(row, category, resolve)
			if proc == nil || proc.ProcedureId == "" || seen[proc.ProcedureId] {
				return
			}
			processes = append(processes, proc)
			seen[proc.ProcedureId] = true
		})
	}
	return processes
}

func appendProcesses(dst []*Process, src []*Process) []*Process {
	seen := map[string]bool{}
	for _, proc := range dst {
		seen[proc.Key()] = true
	}
	for _, proc := range src {
		key := proc.Key()
		if key == "" || seen[key] {
			continue
		}
		dst = append(dst, proc)
		seen[key] = true
	}
	return dst
}
