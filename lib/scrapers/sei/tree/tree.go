package tree

import (
	"bytes"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"seiassist/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// Document is one entry of the per-process document tree, rebuilt from
// the portal's inline `Nos[i] = new infraArvoreNo(...)` statements.
type Document struct {
	Id    string
	Title string
	Type  string

	// resolved link of the tree node itself
	Url string
	// token embedded in the link that authorizes retrieval
	Hash string

	ViewUrl     string
	DownloadUrl string

	Indicators  []string
	Signers     []string
	ActionIcons []string
	AccessLevel string

	Confidential  bool
	HasSignatures bool
	New           bool

	Metadata map[string]string
}

// Result carries the parsed tree. Actions that target the process
// itself (rather than one of its documents) land on the Process*
// fields, the caller folds them into its own record.
type Result struct {
	Documents []Document

	ProcessSigners         []string
	ProcessConfidential    bool
	ProcessAccessLevel     string
	ProcessSignatureAlerts []string
}

var (
	nodeDeclRe   = regexp.MustCompile(`(?s)Nos\[(\d+)\]\s*=\s*new\s+infraArvoreNo\((.*?)\);`)
	nodeAssignRe = regexp.MustCompile(`(?s)Nos\[(\d+)\]\.(\w+)\s*=\s*('(?:\\.|[^'])*'|"(?:\\.|[^"])*"|[^;]+);`)
	actionDeclRe = regexp.MustCompile(`(?s)NosAcoes\[(\d+)\]\s*=\s*new\s+infraArvoreAcao\((.*?)\);`)

	alertSingleRe = regexp.MustCompile(`(?s)alert\('(.*?)'\)`)
	alertDoubleRe = regexp.MustCompile(`(?s)alert\("(.*?)"\)`)
)

// HashFromUrl pulls the access-authorization token out of a portal
// link, empty when absent.
func HashFromUrl(href string) string {
	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return parsed.Query().Get("infra_hash")
}

// ScriptText concatenates every <script> body found in the frame
// markup. The tree only exists inside those.
func ScriptText(doc *goquery.Document) string {
	var blocks []string
	for _, script := range doc.Find("script").Nodes {
		blocks = append(blocks, htmlutil.GetText(script))
	}
	return strings.Join(blocks, "\n")
}

// Parse rebuilds the document tree from the frame's script text.
// `procedureId` is the owning process identifier, used to attach
// process-targeted actions; `resolve` turns relative hrefs into
// absolute portal URLs and may be nil.
func Parse(script, procedureId string, resolve func(string) string) Result {
	if resolve == nil {
		resolve = func(href string) string { return href }
	}

	var result Result
	if strings.TrimSpace(script) == "" {
		return result
	}

	bySlot := map[int]*Document{}

	for _, match := range nodeDeclRe.FindAllStringSubmatch(script, -1) {
		slot, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		args := splitArgs(match[2])
		if len(args) < 7 {
			continue
		}

		nodeType := asString(args[0])
		if nodeType == "" || !strings.Contains(strings.ToUpper(nodeType), "DOCUMENTO") {
			continue
		}

		id := asString(args[1])
		parentId := asString(args[2])
		href := asString(args[3])
		frameTarget := asString(args[4])
		aux := asString(args[5])
		label := asString(args[6])
		if label == "" {
			label = aux
		}
		if label == "" {
			label = id
		}
		var iconPath, cssClass, docNumber string
		if len(args) > 7 {
			iconPath = asString(args[7])
		}
		if len(args) > 14 {
			cssClass = asString(args[14])
		}
		if len(args) > 15 {
			docNumber = asString(args[15])
		}

		doc := &Document{
			Id:       id,
			Title:    label,
			Type:     nodeType,
			Metadata: map[string]string{},
		}
		if href != "" {
			doc.Url = resolve(href)
			doc.Hash = HashFromUrl(href)
		}
		if docNumber != "" {
			doc.Metadata["document_number"] = docNumber
		}
		if parentId != "" {
			// weak reference, the parent may not even be a document
			doc.Metadata["parent_id"] = parentId
		}
		if frameTarget != "" {
			doc.Metadata["frame_target"] = frameTarget
		}
		if iconPath != "" {
			doc.Metadata["icon"] = iconPath
			slug := iconPath[strings.LastIndex(iconPath, "/")+1:]
			if q := strings.IndexByte(slug, '?'); q >= 0 {
				slug = slug[:q]
			}
			doc.Metadata["icon_slug"] = slug
			if strings.Contains(strings.ToLower(iconPath), "sigilo") {
				doc.Confidential = true
			}
		}
		if cssClass != "" {
			doc.Indicators = append(doc.Indicators, cssClass)
			doc.Metadata["css_class"] = cssClass
			if strings.Contains(strings.ToLower(cssClass), "novisitado") {
				doc.New = true
			}
		}
		doc.Metadata["order"] = strconv.Itoa(slot)
		bySlot[slot] = doc
	}

	if len(bySlot) == 0 {
		return result
	}

	byId := map[string]*Document{}
	for _, doc := range bySlot {
		if doc.Id != "" {
			byId[doc.Id] = doc
		}
	}

	applyAssignments(script, bySlot, resolve)
	applyActions(script, byId, procedureId, &result)

	slots := make([]int, 0, len(bySlot))
	for slot := range bySlot {
		slots = append(slots, slot)
	}
	sort.Ints(slots)
	for _, slot := range slots {
		result.Documents = append(result.Documents, *bySlot[slot])
	}
	return result
}

func applyAssignments(script string, bySlot map[int]*Document, resolve func(string) string) {
	for _, match := range nodeAssignRe.FindAllStringSubmatch(script, -1) {
		slot, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		prop := match[2]
		if prop != "assinatura" && prop != "src" && prop != "html" {
			continue
		}
		// a mutation on a slot we never declared has nothing to attach
		// to, drop it
		doc, ok := bySlot[slot]
		if !ok {
			continue
		}

		value := asString(decodeLiteral(match[3]))
		if value == "" {
			continue
		}

		switch prop {
		case "assinatura":
			text := htmlFragmentText(value)
			if text != "" {
				doc.HasSignatures = true
				doc.Signers = []string{text}
				doc.Metadata["signature_text"] = text
			}
		case "src":
			resolved := resolve(value)
			lowered := strings.ToLower(value)
			if strings.Contains(lowered, "documento_visualizar") {
				doc.ViewUrl = resolved
			} else {
				// anything that is not explicitly a viewer link serves
				// the raw file
				doc.DownloadUrl = resolved
			}
			if _, ok := doc.Metadata["src_original"]; !ok {
				doc.Metadata["src_original"] = value
			}
		case "html":
			doc.Metadata["html_fragment"] = value
			if href := firstHref(value); href != "" {
				doc.ViewUrl = resolve(href)
			}
		}
	}
}

func applyActions(script string, byId map[string]*Document, procedureId string, result *Result) {
	for _, match := range actionDeclRe.FindAllStringSubmatch(script, -1) {
		args := splitArgs(match[2])
		if len(args) == 0 {
			continue
		}

		actionType := strings.ToUpper(asString(args[0]))
		var targetId, jsCode, label, icon string
		if len(args) > 2 {
			targetId = asString(args[2])
		}
		if len(args) > 3 {
			jsCode = asString(args[3])
		}
		if len(args) > 5 {
			label = asString(args[5])
		}
		if len(args) > 6 {
			icon = asString(args[6])
		}

		target := byId[targetId]

		switch actionType {
		case "ASSINATURA":
			alert := alertText(jsCode)
			if alert == "" {
				alert = label
			}
			names := signerNames(alert)
			if target != nil {
				if alert != "" {
					if _, ok := target.Metadata["signature_alert"]; !ok {
						target.Metadata["signature_alert"] = alert
					}
				}
				if len(names) > 0 {
					target.HasSignatures = true
					for _, name := range names {
						target.Signers = appendUnique(target.Signers, name)
					}
				}
			} else if procedureId != "" && targetId == procedureId {
				if alert != "" {
					result.ProcessSignatureAlerts = append(result.ProcessSignatureAlerts, alert)
				}
				for _, name := range names {
					result.ProcessSigners = appendUnique(result.ProcessSigners, name)
				}
			}

		case "NIVEL_ACESSO":
			alert := alertText(jsCode)
			if alert == "" {
				alert = label
			}
			if target != nil {
				target.Confidential = true
				if icon != "" {
					target.ActionIcons = append(target.ActionIcons, icon)
				}
				if alert != "" && target.AccessLevel == "" {
					target.AccessLevel = alert
				}
			} else if procedureId != "" && targetId == procedureId {
				result.ProcessConfidential = true
				if alert != "" && result.ProcessAccessLevel == "" {
					result.ProcessAccessLevel = alert
				}
			}

		default:
			if target != nil && icon != "" {
				target.ActionIcons = append(target.ActionIcons, icon)
			}
		}
	}
}

// alertText pulls the human-readable message out of an inline
// `alert('...')` fragment, un-escaping the usual sequences.
func alertText(jsCode string) string {
	if jsCode == "" {
		return ""
	}
	match := alertSingleRe.FindStringSubmatch(jsCode)
	if match == nil {
		match = alertDoubleRe.FindStringSubmatch(jsCode)
	}
	if match == nil {
		return ""
	}
	content := match[1]
	replacer := strings.NewReplacer(
		`\n`, "\n",
		`\r`, "\r",
		`\t`, "\t",
		`\'`, "'",
		`\"`, `"`,
	)
	return replacer.Replace(content)
}

var blankLineRe = regexp.MustCompile(`\n\s*\n`)

// signerNames builds the deduplicated signer list out of the alert
// text the portal shows for a signature action. Blocks are separated
// by blank lines and may open with a "signed by" label line.
func signerNames(alert string) []string {
	text := strings.TrimSpace(alert)
	if text == "" {
		return nil
	}

	var names []string
	for _, group := range blankLineRe.Split(text, -1) {
		var lines []string
		for _, line := range strings.Split(group, "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) == 0 {
			continue
		}
		if strings.HasPrefix(strings.ToLower(lines[0]), "assinado por") {
			lines = lines[1:]
		}
		if len(lines) == 0 {
			continue
		}
		names = appendUnique(names, lines[0])
	}

	if len(names) == 0 && strings.HasPrefix(strings.ToLower(text), "assinado por") {
		var lines []string
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) > 1 {
			names = appendUnique(names, lines[1])
		}
	}
	return names
}

func appendUnique(list []string, value string) []string {
	if value == "" {
		return list
	}
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}

func htmlFragmentText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return htmlutil.CleanText(doc.Text())
}

func firstHref(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(fragment))
	if err != nil {
		return ""
	}
	return doc.Find("a[href]").First().AttrOr("href", "")
}
