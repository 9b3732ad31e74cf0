package htmlutil

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SerializeForm flattens a <form> selection into the key/value map a
// browser would submit by default: text-like inputs always contribute,
// radio/checkbox inputs contribute only when checked, selects contribute
// the selected (or first) option and textareas their trimmed contents.
// Unnamed fields are skipped, nothing here ever fails.
func SerializeForm(form *goquery.Selection) map[string]string {
	data := map[string]string{}

	form.Find("input").Each(func(_ int, input *goquery.Selection) {
		name, ok := input.Attr("name")
		if !ok || name == "" {
			return
		}
		itype := strings.ToLower(input.AttrOr("type", ""))
		value := input.AttrOr("value", "")

		if itype == "radio" || itype == "checkbox" {
			if _, checked := input.Attr("checked"); checked {
				data[name] = value
			}
			return
		}
		data[name] = value
	})

	form.Find("select").Each(func(_ int, sel *goquery.Selection) {
		name, ok := sel.Attr("name")
		if !ok || name == "" {
			return
		}
		selected := sel.Find("option[selected]").First()
		if selected.Length() == 0 {
			selected = sel.Find("option").First()
		}
		if selected.Length() == 0 {
			data[name] = ""
			return
		}
		data[name] = selected.AttrOr("value", "")
	})

	form.Find("textarea").Each(func(_ int, ta *goquery.Selection) {
		name, ok := ta.Attr("name")
		if !ok || name == "" {
			return
		}
		data[name] = strings.TrimSpace(ta.Text())
	})

	// the portal's own script preselects the first visible radio of a
	// group when none is checked, mirror that here
	form.Find("input[type=radio]").Each(func(_ int, radio *goquery.Selection) {
		name, ok := radio.Attr("name")
		if !ok || name == "" {
			return
		}
		if _, exists := data[name]; !exists {
			data[name] = radio.AttrOr("value", "")
		}
	})

	return data
}
