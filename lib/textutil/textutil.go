package textutil

import (
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

// ContainsAny reports whether the target contains at least one of the
// terms, case-insensitively. An empty term list matches everything.
func ContainsAny(target string, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	target = strings.ToLower(target)
	for _, term := range terms {
		if strings.Contains(target, strings.ToLower(term)) {
			return true
		}
	}
	return false
}
