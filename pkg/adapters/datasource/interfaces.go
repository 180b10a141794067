package datasource

import (
	"context"
	"fmt"
	"strings"

	"github.com/ekaya-inc/order-insight/pkg/apperrors"
)

// ConnectionParams identifies a database and how to authenticate to it.
// An empty Username means trusted (integrated) authentication.
type ConnectionParams struct {
	Server   string `json:"server"`
	Database string `json:"database"`
	Username string `json:"username,omitempty"`
	Password string `json:"-"`
}

// Trusted reports whether integrated authentication is requested.
func (p ConnectionParams) Trusted() bool {
	return strings.TrimSpace(p.Username) == ""
}

// WithDatabase returns a copy targeting another database on the same server.
func (p ConnectionParams) WithDatabase(database string) ConnectionParams {
	p.Database = database
	return p
}

// Validate requires a server, and a database when requireDatabase is set.
func (p ConnectionParams) Validate(requireDatabase bool) error {
	if strings.TrimSpace(p.Server) == "" {
		return fmt.Errorf("%w: server", apperrors.ErrMissingConnectionParams)
	}
	if requireDatabase && strings.TrimSpace(p.Database) == "" {
		return fmt.Errorf("%w: database", apperrors.ErrMissingConnectionParams)
	}
	return nil
}

// String describes the target without credentials, for logs.
func (p ConnectionParams) String() string {
	auth := "sql"
	if p.Trusted() {
		auth = "trusted"
	}
	return fmt.Sprintf("%s/%s (%s)", p.Server, p.Database, auth)
}

// ConnectionTester tests database connectivity.
// Each implementation owns its connection and must be closed when done.
type ConnectionTester interface {
	// TestConnection verifies the database is reachable with valid credentials.
	// Returns nil if connection is healthy, error otherwise.
	TestConnection(ctx context.Context) error

	// Close releases the database connection.
	Close() error
}

// MaxQueryLimit is the hard cap on rows returned by Query.
// This protects against unbounded queries that could exhaust memory.
const MaxQueryLimit = 1000

// QueryExecutor executes SQL against a datasource.
type QueryExecutor interface {
	// Query runs a statement as written and returns at most limit rows.
	// The statement is not rewritten, so ORDER BY and TOP behave as written.
	//
	// Limit behavior:
	//   - limit <= 0: uses MaxQueryLimit (1000)
	//   - limit > MaxQueryLimit: capped to MaxQueryLimit (1000)
	//   - otherwise: uses specified limit
	//
	// Rows past the limit are not scanned and Truncated is set.
	Query(ctx context.Context, sqlQuery string, limit int, args ...any) (*QueryExecutionResult, error)

	// Execute runs a DML statement and reports rows affected.
	Execute(ctx context.Context, sqlStatement string, args ...any) (*ExecuteResult, error)
}

// SchemaDiscoverer reads catalog metadata for schema descriptions.
// The exclude predicate is applied while rows are read, so excluded
// columns are never returned.
type SchemaDiscoverer interface {
	// DiscoverColumns returns the columns of all user tables, ordered so that
	// tables taking part in relationships come first.
	DiscoverColumns(ctx context.Context, exclude func(columnName string) bool) ([]ColumnMetadata, error)

	// DiscoverForeignKeys returns foreign key edges, reading at most scanLimit
	// catalog rows. Edges touching an excluded column on either side are dropped.
	DiscoverForeignKeys(ctx context.Context, exclude func(columnName string) bool, scanLimit int) ([]ForeignKeyMetadata, error)
}

// Connection is one live database connection owned by a single invocation.
type Connection interface {
	ConnectionTester

	// DatabaseName returns the connected database.
	DatabaseName() string

	// ListDatabases returns online, writable user databases on the server.
	ListDatabases(ctx context.Context) ([]string, error)

	// QueryExecutor runs statements on this connection.
	QueryExecutor() QueryExecutor

	// SchemaDiscoverer reads catalog metadata on this connection.
	SchemaDiscoverer() SchemaDiscoverer
}

// Connector opens connections. Implementations hold only driver options,
// never live connections.
type Connector interface {
	Connect(ctx context.Context, params ConnectionParams) (Connection, error)
}

// ExecuteResult holds the results from executing a DML statement.
type ExecuteResult struct {
	RowsAffected int64 `json:"rows_affected"`
}

// ColumnInfo describes a result column with database type information.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"` // Database type name (e.g., "NVARCHAR", "DECIMAL", "INT")
}

// QueryExecutionResult holds the results from executing a query.
type QueryExecutionResult struct {
	Columns   []ColumnInfo     `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	RowCount  int              `json:"row_count"`
	Truncated bool             `json:"truncated"`
}

// ColumnNames returns the result column names in select order.
func (r *QueryExecutionResult) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

// ClampLimit applies the MaxQueryLimit rules.
func ClampLimit(limit int) int {
	if limit <= 0 || limit > MaxQueryLimit {
		return MaxQueryLimit
	}
	return limit
}
