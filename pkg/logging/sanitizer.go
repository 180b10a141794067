package logging

import (
	"regexp"
)

const (
	// MaxQueryLogLength is the maximum length of a query to log
	MaxQueryLogLength = 100
	// MaxPromptLogLength is the maximum length of a prompt or model response to log
	MaxPromptLogLength = 300
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// ADO-style connection string passwords: "Password=x y;", "pwd = 'x;y'".
	// Values run to the next ';' unless quoted.
	adoPasswordPattern = regexp.MustCompile(`(?i)(^|[;\s])(password|pwd)(\s*=\s*)("[^"]*"|'[^']*'|[^;]*)`)

	// URL query passwords: sqlserver://host?password=x&database=y
	queryPasswordPattern = regexp.MustCompile(`(?i)([?&](?:password|pwd)=)[^&\s]*`)

	// Pattern to match connection string credentials (user:pass@host format)
	connStringPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@`)

	// Pattern to match potential API keys in query strings and key=value pairs
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|key)=[A-Za-z0-9-_]{20,}`)

	// Bare provider secrets: "sk-..." (OpenAI, Anthropic) and "AIza..." (Google)
	bareKeyPattern = regexp.MustCompile(`\b(sk-[A-Za-z0-9-_]{20,}|AIza[A-Za-z0-9-_]{30,})`)
)

// SanitizeConnectionString removes sensitive data from connection strings
// Use this before logging any connection string
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}

	sanitized := queryPasswordPattern.ReplaceAllString(connStr, "${1}"+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@")
	sanitized = adoPasswordPattern.ReplaceAllString(sanitized, "${1}${2}${3}"+RedactedText)

	return sanitized
}

// SanitizeError sanitizes error messages that might contain sensitive data
// Use this before logging any error from database or provider operations
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return sanitizeSecrets(err.Error())
}

// SanitizeQuery truncates and sanitizes a SQL query for logging
// Prevents logging very long queries and removes sensitive patterns
func SanitizeQuery(query string) string {
	if query == "" {
		return ""
	}
	return sanitizeSecrets(TruncateString(query, MaxQueryLogLength))
}

// SanitizePrompt truncates a prompt or model response for debug logging.
func SanitizePrompt(text string) string {
	return sanitizeSecrets(TruncateString(text, MaxPromptLogLength))
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func sanitizeSecrets(s string) string {
	s = queryPasswordPattern.ReplaceAllString(s, "${1}"+RedactedText)
	s = connStringPattern.ReplaceAllString(s, "://"+RedactedText+"@")
	s = adoPasswordPattern.ReplaceAllString(s, "${1}${2}${3}"+RedactedText)
	s = apiKeyPattern.ReplaceAllString(s, "${1}="+RedactedText)
	s = bareKeyPattern.ReplaceAllString(s, RedactedText)
	return s
}
