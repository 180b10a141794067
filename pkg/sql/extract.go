package sql

import (
	"strings"
	"unicode"
)

// ExtractSelectStatement finds the first SELECT statement embedded in free
// text, such as a model response that was meant to be JSON but is not.
//
// The statement starts at the first standalone SELECT keyword (any case) and
// ends at the first of: a code fence, a semicolon or double quote outside a
// single-quoted literal, or the end of the text. JSON string escapes (\n, \t,
// \") inside the statement are decoded. A candidate must contain a FROM
// clause, so prose such as "select a different option" is skipped. ok is
// false when no candidate qualifies.
func ExtractSelectStatement(text string) (statement string, ok bool) {
	offset := 0
	for offset < len(text) {
		start := indexKeyword(text[offset:], "select")
		if start < 0 {
			return "", false
		}
		start += offset
		statement = readStatement(text[start:])
		if indexKeyword(statement, "from") > 0 && len(strings.Fields(statement)) >= 4 {
			return statement, true
		}
		offset = start + len("select")
	}
	return "", false
}

// readStatement copies text up to the statement terminator.
func readStatement(rest string) string {
	var sb strings.Builder
	inLiteral := false
loop:
	for i := 0; i < len(rest); i++ {
		c := rest[i]
		switch {
		case c == '\\' && i+1 < len(rest):
			i++
			switch rest[i] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
			default:
				sb.WriteByte(rest[i])
			}
		case c == '\'':
			inLiteral = !inLiteral
			sb.WriteByte(c)
		case inLiteral:
			sb.WriteByte(c)
		case c == ';' || c == '"':
			break loop
		case c == '`' && strings.HasPrefix(rest[i:], "```"):
			break loop
		default:
			sb.WriteByte(c)
		}
	}
	return strings.TrimSpace(sb.String())
}

// indexKeyword returns the byte offset of the first case-insensitive
// occurrence of keyword that is not part of a longer word.
func indexKeyword(text, keyword string) int {
	lower := strings.ToLower(text)
	offset := 0
	for {
		i := strings.Index(lower[offset:], keyword)
		if i < 0 {
			return -1
		}
		i += offset
		end := i + len(keyword)
		if isWordBoundary(text, i-1) && isWordBoundary(text, end) {
			return i
		}
		offset = end
	}
}

func isWordBoundary(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	r := rune(text[i])
	return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
}
