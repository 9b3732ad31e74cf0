package htmlutil

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func parseForm(t *testing.T, markup string) *goquery.Selection {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		t.Fatal(err)
	}
	form := doc.Find("form").First()
	require.Equal(t, 1, form.Length())
	return form
}

func TestSerializeFormDefaults(t *testing.T) {
	form := parseForm(t, `<form>
		<input name="hdnAcao" type="hidden" value="2">
		<input name="txtUsuario" type="text" value="someone">
		<input type="text" value="unnamed-skipped">
		<input name="chkA" type="checkbox" value="on" checked>
		<input name="chkB" type="checkbox" value="on">
		<textarea name="txaObs">
			hello world
		</textarea>
	</form>`)

	data := SerializeForm(form)
	require.Equal(t, map[string]string{
		"hdnAcao":    "2",
		"txtUsuario": "someone",
		"chkA":       "on",
		"txaObs":     "hello world",
	}, data)
}

func TestSerializeFormSelect(t *testing.T) {
	form := parseForm(t, `<form>
		<select name="selExplicit">
			<option value="a">A</option>
			<option value="b" selected>B</option>
		</select>
		<select name="selImplicit">
			<option value="first">First</option>
			<option value="second">Second</option>
		</select>
		<select name="selEmpty"></select>
	</form>`)

	data := SerializeForm(form)
	require.Equal(t, "b", data["selExplicit"])
	require.Equal(t, "first", data["selImplicit"])
	require.Equal(t, "", data["selEmpty"])
}

func TestSerializeFormRadioFallback(t *testing.T) {
	form := parseForm(t, `<form>
		<input name="rdoChecked" type="radio" value="one">
		<input name="rdoChecked" type="radio" value="two" checked>
		<input name="rdoUnchecked" type="radio" value="first">
		<input name="rdoUnchecked" type="radio" value="second">
	</form>`)

	data := SerializeForm(form)
	require.Equal(t, "two", data["rdoChecked"])
	// no radio checked, the first of the group wins
	require.Equal(t, "first", data["rdoUnchecked"])
}
