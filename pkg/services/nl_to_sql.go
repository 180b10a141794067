package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/ekaya-inc/order-insight/pkg/audit"
	"github.com/ekaya-inc/order-insight/pkg/llm"
	"github.com/ekaya-inc/order-insight/pkg/logging"
	"github.com/ekaya-inc/order-insight/pkg/models"
	"github.com/ekaya-inc/order-insight/pkg/observability"
)

// CompileSQLPrompt renders the SQL generation prompt from a rendered schema
// description and the user's question. Restricted fragments are restated so
// the model avoids them even if a description were incomplete.
func CompileSQLPrompt(schemaText, question string, restricted []string) string {
	var sb strings.Builder
	sb.WriteString("As a SQL expert specializing in Microsoft SQL Server, your task is to convert the following natural language query into a valid SQL query.\n\n")
	sb.WriteString("DATABASE SCHEMA INFORMATION:\n")
	sb.WriteString(schemaText)
	sb.WriteString("\n\nNATURAL LANGUAGE QUERY:\n")
	sb.WriteString(strings.TrimSpace(question))
	sb.WriteString("\n\n")

	guidelines := []string{
		"Generate ONLY a valid Microsoft SQL Server query that answers the user's question.",
		"The query should be runnable as-is on SQL Server.",
		"Use appropriate JOINs where necessary based on the schema relationships.",
		"Use appropriate column names and tables as defined in the schema.",
		"Include clear column aliases for readability.",
		"Limit results to a reasonable number (e.g., TOP 100) if appropriate.",
		"Write a single read-only SELECT statement; never modify data.",
		"Add helpful comments before complex logic.",
	}
	if len(restricted) > 0 {
		quoted := make([]string, len(restricted))
		for i, f := range restricted {
			quoted[i] = "'" + f + "'"
		}
		guidelines = append(guidelines, fmt.Sprintf(
			"IMPORTANT: Do NOT include any columns with %s in their name in your query, regardless of context or necessity. These columns should be completely ignored.",
			strings.Join(quoted, " or ")))
	}

	sb.WriteString("GUIDELINES:\n")
	for i, g := range guidelines {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, g)
	}

	sb.WriteString(`
RESPONSE FORMAT:
Return a JSON object with the following structure:
{
    "sql_query": "Your SQL query here",
    "explanation": "Brief explanation of the query and any assumptions made, explain in natural language do not include columns or tables names directly"
}

Ensure your response is properly escaped JSON without any markdown formatting.
`)
	return sb.String()
}

// SQLTranslator turns questions into SQL Server queries with one model call.
type SQLTranslator struct {
	generator llm.TextGenerator
	policy    ColumnPolicy
	auditor   *audit.SecurityAuditor
	logger    *zap.Logger
}

// NewSQLTranslator creates a translator.
func NewSQLTranslator(generator llm.TextGenerator, policy ColumnPolicy, logger *zap.Logger) *SQLTranslator {
	return &SQLTranslator{
		generator: generator,
		policy:    policy,
		auditor:   audit.NewSecurityAuditor(logger),
		logger:    logger.Named("nl-to-sql"),
	}
}

// Translate never returns an error: failures come back as a result with an
// empty query and an explanation. A model error is reported as "Error: "
// followed by its message. A query naming a restricted column is discarded.
func (t *SQLTranslator) Translate(ctx context.Context, schemaText, question string) models.SQLGenerationResult {
	prompt := CompileSQLPrompt(schemaText, question, t.policy.Fragments())

	t.logger.Info("Translating question",
		zap.String("question", logging.TruncateString(question, 200)),
		zap.String("model", t.generator.Model()))

	start := time.Now()
	raw, err := t.generator.Generate(ctx, prompt)
	observability.ObserveLLMRequest("nl_to_sql", time.Since(start))
	if err != nil {
		t.logger.Error("SQL generation failed", zap.Error(err))
		return models.SQLGenerationResult{Explanation: "Error: " + err.Error()}
	}

	result := NormalizeSQLGeneration(raw)
	if result.Failed() {
		t.logger.Warn("Model response did not yield a query",
			zap.String("response", logging.SanitizePrompt(raw)))
		return result
	}

	if mentionsSensitive(t.policy, result.SQLQuery) {
		t.auditor.LogSensitiveColumnBlocked(ctx, "")
		return sqlGenerationFailure(sqlSensitiveColumnDetail)
	}

	t.logger.Debug("Generated query", zap.String("sql", logging.SanitizeQuery(result.SQLQuery)))
	return result
}

// mentionsSensitive checks every identifier-like word of text, and the text
// as a whole for fragments spanning punctuation.
func mentionsSensitive(policy ColumnPolicy, text string) bool {
	lower := strings.ToLower(text)
	for _, f := range policy.Fragments() {
		if strings.Contains(lower, f) {
			return true
		}
	}
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})
	for _, w := range words {
		if policy.IsSensitive(w) {
			return true
		}
	}
	return false
}
