package tree

import (
	"regexp"
	"strings"
)

// The portal's tree is not markup, it is a wall of inline script
// statements building node objects out of string literals. This file
// decodes just that literal grammar (quoted strings, null/true/false,
// comma-separated argument lists) and nothing more general.

var concatIdiom = regexp.MustCompile(`\.concat\(['"]{0,2}\)`)

// decodeLiteral turns one script literal into a typed value: string,
// bool or nil. Anything it cannot make sense of comes back verbatim,
// decoding is never fatal.
func decodeLiteral(raw string) any {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return ""
	}

	// minified builds tack `.concat('')` onto string literals, strip it
	// before evaluation
	cleaned = concatIdiom.ReplaceAllString(cleaned, "")

	switch cleaned {
	case "null":
		return nil
	case "true":
		return true
	case "false":
		return false
	}

	if len(cleaned) >= 2 {
		quote := cleaned[0]
		if (quote == '\'' || quote == '"') && cleaned[len(cleaned)-1] == quote {
			if unquoted, ok := unquote(cleaned[1:len(cleaned)-1], byte(quote)); ok {
				return unquoted
			}
			return cleaned[1 : len(cleaned)-1]
		}
	}
	return cleaned
}

func unquote(inner string, quote byte) (string, bool) {
	var out strings.Builder
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if c != '\\' {
			if c == quote {
				// an unescaped quote inside the literal means we
				// mis-sliced it, bail out
				return "", false
			}
			out.WriteByte(c)
			continue
		}
		i++
		if i >= len(inner) {
			return "", false
		}
		switch inner[i] {
		case 'n':
			out.WriteByte('\n')
		case 'r':
			out.WriteByte('\r')
		case 't':
			out.WriteByte('\t')
		default:
			out.WriteByte(inner[i])
		}
	}
	return out.String(), true
}

// splitArgs splits the raw argument text of a constructor-style call
// into decoded values, tolerating commas inside quoted strings. On
// unparseable input it returns nil, callers treat a short argument list
// as an unusable node and skip it.
func splitArgs(raw string) []any {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil
	}

	var parts []string
	var current strings.Builder
	var quote byte
	escaped := false

	for i := 0; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			current.WriteByte(c)
			if escaped {
				escaped = false
				continue
			}
			if c == '\\' {
				escaped = true
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
			current.WriteByte(c)
		case ',':
			parts = append(parts, current.String())
			current.Reset()
		default:
			current.WriteByte(c)
		}
	}
	if quote != 0 {
		// unterminated string literal, the statement is garbage
		return nil
	}
	parts = append(parts, current.String())

	args := make([]any, len(parts))
	for i, p := range parts {
		args[i] = decodeLiteral(p)
	}
	return args
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
