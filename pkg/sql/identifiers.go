package sql

import "strings"

// QuoteIdentifier brackets a single SQL Server identifier, escaping ']'.
func QuoteIdentifier(name string) string {
	name = strings.TrimSpace(name)
	if len(name) >= 2 && strings.HasPrefix(name, "[") && strings.HasSuffix(name, "]") {
		name = strings.ReplaceAll(name[1:len(name)-1], "]]", "]")
	}
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// QuoteQualifiedName brackets each part of a dotted name such as
// "dbo.OrderTrends" or "[Sales].[Order Trends]".
func QuoteQualifiedName(name string) string {
	parts := splitQualifiedName(name)
	for i, p := range parts {
		parts[i] = QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

// splitQualifiedName splits on dots that are not inside brackets.
func splitQualifiedName(name string) []string {
	var parts []string
	var current strings.Builder
	inBracket := false
	for _, r := range name {
		switch {
		case r == '[':
			inBracket = true
			current.WriteRune(r)
		case r == ']':
			inBracket = false
			current.WriteRune(r)
		case r == '.' && !inBracket:
			parts = append(parts, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	return append(parts, current.String())
}
