// Package audit records security-relevant events in a structured form that a
// SIEM can parse: hostile caller input, generated SQL that was refused, and
// generated SQL that ran.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ekaya-inc/order-insight/pkg/logging"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionAttempt is logged when libinjection flags a caller-supplied value.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventGeneratedQueryRejected is logged when generated SQL fails read-only validation.
	EventGeneratedQueryRejected SecurityEventType = "generated_query_rejected"
	// EventSensitiveColumnBlocked is logged when generated SQL referenced a restricted column.
	EventSensitiveColumnBlocked SecurityEventType = "sensitive_column_blocked"
	// EventQueryExecution is logged for every generated query that ran.
	EventQueryExecution SecurityEventType = "query_execution"
)

// Severity levels carried on every event.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// maxLoggedValue bounds SQL and parameter values copied into events.
const maxLoggedValue = 500

// SecurityEvent is one auditable event.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	RequestID string            `json:"request_id,omitempty"`
	Target    string            `json:"target,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"`
}

// SQLInjectionDetails describes a flagged parameter.
type SQLInjectionDetails struct {
	ParamName   string `json:"param_name"`
	ParamValue  string `json:"param_value"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
}

// GeneratedQueryDetails describes generated SQL and what happened to it.
type GeneratedQueryDetails struct {
	SQL    string `json:"sql,omitempty"`
	Reason string `json:"reason,omitempty"`
	Rows   int    `json:"rows,omitempty"`
}

// SecurityAuditor logs security events under the "security_audit" logger name.
type SecurityAuditor struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewSecurityAuditor creates an auditor. A nil logger discards events.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SecurityAuditor{logger: logger.Named("security_audit"), now: time.Now}
}

// LogInjectionAttempt records a caller-supplied value that looked like SQL
// injection. Logged at ERROR with critical severity.
func (a *SecurityAuditor) LogInjectionAttempt(ctx context.Context, target string, details SQLInjectionDetails) {
	details.ParamValue = logging.TruncateString(details.ParamValue, maxLoggedValue)
	a.emit(ctx, zap.ErrorLevel, "SQL injection attempt detected", target, EventSQLInjectionAttempt, SeverityCritical, details,
		zap.String("param_name", details.ParamName),
		zap.String("fingerprint", details.Fingerprint))
}

// LogGeneratedQueryRejected records generated SQL refused before execution.
func (a *SecurityAuditor) LogGeneratedQueryRejected(ctx context.Context, target, sql, reason string) {
	details := GeneratedQueryDetails{SQL: logging.TruncateString(logging.SanitizeQuery(sql), maxLoggedValue), Reason: reason}
	a.emit(ctx, zap.WarnLevel, "Generated query rejected", target, EventGeneratedQueryRejected, SeverityWarning, details,
		zap.String("reason", reason))
}

// LogSensitiveColumnBlocked records generated SQL discarded because it named
// a restricted column. The SQL itself is not logged.
func (a *SecurityAuditor) LogSensitiveColumnBlocked(ctx context.Context, target string) {
	details := GeneratedQueryDetails{Reason: "restricted column referenced"}
	a.emit(ctx, zap.WarnLevel, "Generated query referenced a restricted column", target, EventSensitiveColumnBlocked, SeverityWarning, details)
}

// LogSensitiveResultColumns records restricted columns removed from a query
// result before it was returned. Column names are not logged.
func (a *SecurityAuditor) LogSensitiveResultColumns(ctx context.Context, target string, removed int) {
	details := GeneratedQueryDetails{Reason: fmt.Sprintf("%d restricted result columns removed", removed)}
	a.emit(ctx, zap.WarnLevel, "Restricted columns removed from query result", target, EventSensitiveColumnBlocked, SeverityWarning, details,
		zap.Int("removed_columns", removed))
}

// LogQueryExecution records a generated query that ran.
func (a *SecurityAuditor) LogQueryExecution(ctx context.Context, target, sql string, rows int) {
	details := GeneratedQueryDetails{SQL: logging.TruncateString(logging.SanitizeQuery(sql), maxLoggedValue), Rows: rows}
	a.emit(ctx, zap.InfoLevel, "Generated query executed", target, EventQueryExecution, SeverityInfo, details,
		zap.Int("rows", rows))
}

func (a *SecurityAuditor) emit(
	ctx context.Context,
	level zapcore.Level,
	msg, target string,
	eventType SecurityEventType,
	severity string,
	details any,
	extra ...zap.Field,
) {
	event := SecurityEvent{
		Timestamp: a.now().UTC(),
		EventType: eventType,
		RequestID: chimiddleware.GetReqID(ctx),
		Target:    target,
		Details:   details,
		Severity:  severity,
	}

	// Marshaling these known types cannot fail.
	eventJSON, _ := json.Marshal(event)

	fields := append([]zap.Field{
		zap.String("event_json", string(eventJSON)),
		zap.String("event_type", string(eventType)),
		zap.String("request_id", event.RequestID),
		zap.String("target", target),
		zap.String("severity", severity),
	}, extra...)
	a.logger.Log(level, msg, fields...)
}
