// Package sql provides SQL validation utilities for generated and configured
// SQL Server statements.
package sql

import (
	"errors"
	"strings"
	"unicode"
)

var (
	// ErrMultipleStatements indicates the query contains multiple SQL statements.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")

	// ErrEmptyStatement indicates nothing but whitespace or comments was supplied.
	ErrEmptyStatement = errors.New("empty SQL statement")

	// ErrNotReadOnly indicates the statement is not a plain SELECT or WITH ... SELECT.
	ErrNotReadOnly = errors.New("only read-only SELECT statements are permitted")
)

// ValidationResult contains the normalized SQL and any validation errors.
type ValidationResult struct {
	NormalizedSQL string
	Error         error
}

// writeKeywords may not appear anywhere in a read-only statement.
// SELECT ... INTO creates a table, so INTO is included.
var writeKeywords = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "MERGE": true,
	"DROP": true, "ALTER": true, "CREATE": true, "TRUNCATE": true,
	"EXEC": true, "EXECUTE": true, "GRANT": true, "REVOKE": true,
	"DENY": true, "INTO": true, "BACKUP": true, "RESTORE": true,
	"SHUTDOWN": true, "DBCC": true,
}

// ValidateAndNormalize checks SQL for multiple statements and strips the trailing semicolon.
//
// The validation order is:
// 1. Strip trailing semicolon and whitespace (normalize)
// 2. Check for multiple statements (any remaining semicolons outside literals, identifiers and comments)
func ValidateAndNormalize(sqlQuery string) ValidationResult {
	sqlQuery = strings.TrimSpace(sqlQuery)

	if sqlQuery == "" {
		return ValidationResult{NormalizedSQL: sqlQuery}
	}

	normalized := stripTrailingSemicolon(sqlQuery)

	if scan(normalized).semicolon {
		return ValidationResult{Error: ErrMultipleStatements}
	}

	return ValidationResult{NormalizedSQL: normalized}
}

// ValidateReadOnly normalizes a statement and additionally requires it to be a
// single SELECT (optionally introduced by a CTE) with no write keywords.
func ValidateReadOnly(sqlQuery string) ValidationResult {
	result := ValidateAndNormalize(sqlQuery)
	if result.Error != nil {
		return result
	}

	words := scan(result.NormalizedSQL).words
	if len(words) == 0 {
		return ValidationResult{Error: ErrEmptyStatement}
	}
	if words[0] != "SELECT" && words[0] != "WITH" {
		return ValidationResult{Error: ErrNotReadOnly}
	}
	for _, w := range words {
		if writeKeywords[w] {
			return ValidationResult{Error: ErrNotReadOnly}
		}
	}
	return result
}

type scanResult struct {
	words     []string // upper-cased bare words outside literals, identifiers and comments
	semicolon bool     // a semicolon appeared outside literals, identifiers and comments
}

// scan walks T-SQL text tracking 'string' literals (with '' escapes),
// "quoted" and [bracketed] identifiers, -- line comments and /* */ comments.
func scan(sqlQuery string) scanResult {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
		stateBracket
		stateLineComment
		stateBlockComment
	)

	var res scanResult
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			res.words = append(res.words, strings.ToUpper(word.String()))
			word.Reset()
		}
	}

	runes := []rune(sqlQuery)
	state := stateNormal
	for i := 0; i < len(runes); i++ {
		char := runes[i]
		next := rune(0)
		if i+1 < len(runes) {
			next = runes[i+1]
		}

		switch state {
		case stateNormal:
			switch {
			case char == '-' && next == '-':
				flush()
				state = stateLineComment
				i++
			case char == '/' && next == '*':
				flush()
				state = stateBlockComment
				i++
			case char == '\'':
				flush()
				state = stateSingleQuote
			case char == '"':
				flush()
				state = stateDoubleQuote
			case char == '[':
				flush()
				state = stateBracket
			case char == ';':
				flush()
				res.semicolon = true
			case unicode.IsLetter(char) || char == '_' || (word.Len() > 0 && unicode.IsDigit(char)):
				word.WriteRune(char)
			default:
				flush()
			}
		case stateSingleQuote:
			if char == '\'' {
				if next == '\'' {
					i++
				} else {
					state = stateNormal
				}
			}
		case stateDoubleQuote:
			if char == '"' {
				state = stateNormal
			}
		case stateBracket:
			if char == ']' {
				if next == ']' {
					i++
				} else {
					state = stateNormal
				}
			}
		case stateLineComment:
			if char == '\n' {
				state = stateNormal
			}
		case stateBlockComment:
			if char == '*' && next == '/' {
				state = stateNormal
				i++
			}
		}
	}
	flush()
	return res
}

// stripTrailingSemicolon removes a trailing semicolon and any whitespace after it.
func stripTrailingSemicolon(sqlQuery string) string {
	sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")

	if strings.HasSuffix(sqlQuery, ";") {
		sqlQuery = strings.TrimSuffix(sqlQuery, ";")
		sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")
	}

	return sqlQuery
}
