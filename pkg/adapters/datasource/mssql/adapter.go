package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/microsoft/go-mssqldb"         // SQL Server driver
	_ "github.com/microsoft/go-mssqldb/azuread" // Azure AD support
	"go.uber.org/zap"

	"github.com/ekaya-inc/order-insight/pkg/adapters/datasource"
	"github.com/ekaya-inc/order-insight/pkg/apperrors"
	"github.com/ekaya-inc/order-insight/pkg/config"
	"github.com/ekaya-inc/order-insight/pkg/logging"
)

// DefaultProbeTimeout bounds connectivity probes when none is configured.
const DefaultProbeTimeout = 3 * time.Second

// Connector opens one SQL Server connection per call. It holds only driver
// options; callers own and close the connections it returns.
type Connector struct {
	opts         Options
	probeTimeout time.Duration
	logger       *zap.Logger

	// open is sql.Open, replaceable in tests.
	open func(driverName, dataSourceName string) (*sql.DB, error)
}

// NewConnector creates a Connector. If logger is nil, a no-op logger is used.
func NewConnector(opts Options, probeTimeout time.Duration, logger *zap.Logger) *Connector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	return &Connector{
		opts:         opts,
		probeTimeout: probeTimeout,
		logger:       logger.Named("mssql"),
		open:         sql.Open,
	}
}

// NewConnectorFromConfig creates a Connector from the application config.
func NewConnectorFromConfig(cfg config.DatabaseConfig, logger *zap.Logger) *Connector {
	return NewConnector(Options{
		Port:                   cfg.Port,
		Encrypt:                cfg.Encrypt,
		TrustServerCertificate: cfg.TrustServerCertificate,
		ConnectionTimeout:      cfg.ConnectionTimeoutSeconds,
		ResolveForDocker:       config.IsRunningInDocker(),
	}, cfg.ProbeTimeout(), logger)
}

// Connect opens a connection and pings it under ctx. Failures to reach the
// server wrap apperrors.ErrConnectivity.
func (c *Connector) Connect(ctx context.Context, params datasource.ConnectionParams) (datasource.Connection, error) {
	return c.connect(ctx, params)
}

func (c *Connector) connect(ctx context.Context, params datasource.ConnectionParams) (*Adapter, error) {
	if err := params.Validate(false); err != nil {
		return nil, err
	}
	if c.opts.ResolveForDocker {
		params.Server = config.ResolveServerForDocker(params.Server)
	}

	cfg, err := FromParams(params, c.opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMissingConnectionParams, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	driver, dsn := cfg.DSN()
	db, err := c.open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %s", apperrors.ErrConnectivity, logging.SanitizeError(err))
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		c.logger.Warn("SQL Server connection failed",
			zap.String("target", params.String()),
			zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("%w: %s", apperrors.ErrConnectivity, logging.SanitizeError(err))
	}

	c.logger.Debug("SQL Server connection opened",
		zap.String("target", params.String()),
		zap.String("auth_method", cfg.AuthMethod))

	return newAdapter(db, params.Database, c.logger), nil
}

// Probe opens a connection, runs a trivial query and closes it, all within
// the probe timeout.
func (c *Connector) Probe(ctx context.Context, params datasource.ConnectionParams) error {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	adapter, err := c.connect(ctx, params)
	if err != nil {
		return err
	}
	defer adapter.Close()

	if err := adapter.TestConnection(ctx); err != nil {
		return fmt.Errorf("%w: %s", apperrors.ErrConnectivity, logging.SanitizeError(err))
	}
	return nil
}

// Adapter is one open SQL Server connection.
type Adapter struct {
	db       *sql.DB
	database string
	logger   *zap.Logger
}

func newAdapter(db *sql.DB, database string, logger *zap.Logger) *Adapter {
	return &Adapter{db: db, database: database, logger: logger}
}

// TestConnection verifies the database is reachable with valid credentials.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	// Run a simple query to ensure we have database access
	var result int
	if err := a.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("test query failed: %w", err)
	}

	return nil
}

// DatabaseName returns the database named in the connection parameters.
func (a *Adapter) DatabaseName() string {
	return a.database
}

const listDatabasesQuery = `SELECT name FROM sys.databases
WHERE database_id > 4 AND state = 0 AND is_read_only = 0
ORDER BY name`

// ListDatabases returns online, writable user databases on the server.
func (a *Adapter) ListDatabases(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, listDatabasesQuery)
	if err != nil {
		return nil, fmt.Errorf("query databases: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan database row: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate database rows: %w", err)
	}
	return names, nil
}

// QueryExecutor returns an executor bound to this connection.
func (a *Adapter) QueryExecutor() datasource.QueryExecutor {
	return &QueryExecutor{db: a.db}
}

// SchemaDiscoverer returns a discoverer bound to this connection.
func (a *Adapter) SchemaDiscoverer() datasource.SchemaDiscoverer {
	return &SchemaDiscoverer{db: a.db, logger: a.logger}
}

// Close releases the connection.
func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// DB returns the underlying *sql.DB.
func (a *Adapter) DB() *sql.DB {
	return a.db
}

var (
	_ datasource.Connector  = (*Connector)(nil)
	_ datasource.Connection = (*Adapter)(nil)
)
