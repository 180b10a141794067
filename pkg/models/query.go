package models

import "strings"

// SQLGenerationResult is the translator's answer. An empty SQLQuery means
// generation failed and Explanation says why.
type SQLGenerationResult struct {
	SQLQuery    string `json:"sql_query"`
	Explanation string `json:"explanation"`
}

// Failed reports whether no usable query was produced.
func (r SQLGenerationResult) Failed() bool {
	return strings.TrimSpace(r.SQLQuery) == ""
}

// ResultTable holds query rows keyed by column name, with columns in select order.
type ResultTable struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	Truncated bool             `json:"truncated,omitempty"`
}

// QueryOutcome is the terminal result of a natural-language query: a
// failure, an empty success, or a non-empty success, each with its own message.
type QueryOutcome struct {
	Success  bool         `json:"success"`
	Results  *ResultTable `json:"results"`
	Message  string       `json:"message"`
	Summary  *string      `json:"summary"`
	SQLQuery *string      `json:"sql_query"`
}
