package services

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/order-insight/pkg/adapters/datasource"
	"github.com/ekaya-inc/order-insight/pkg/models"
)

type fakeExecutor struct {
	result   *datasource.QueryExecutionResult
	queryErr error
	affected int64
	execErr  error
	queries  []string
	executed []string
	execArgs [][]any
}

func (e *fakeExecutor) Query(_ context.Context, sqlQuery string, _ int, _ ...any) (*datasource.QueryExecutionResult, error) {
	e.queries = append(e.queries, sqlQuery)
	if e.queryErr != nil {
		return nil, e.queryErr
	}
	if e.result == nil {
		return &datasource.QueryExecutionResult{}, nil
	}
	return e.result, nil
}

func (e *fakeExecutor) Execute(_ context.Context, sqlStatement string, args ...any) (*datasource.ExecuteResult, error) {
	e.executed = append(e.executed, sqlStatement)
	e.execArgs = append(e.execArgs, args)
	if e.execErr != nil {
		return nil, e.execErr
	}
	return &datasource.ExecuteResult{RowsAffected: e.affected}, nil
}

// fakeDiscoverer applies the exclude predicate the way the SQL Server
// discoverer does, so tests see only what a real catalog scan would return.
type fakeDiscoverer struct {
	columns   []datasource.ColumnMetadata
	columnErr error
	fks       []datasource.ForeignKeyMetadata
	fkErr     error
}

func (d *fakeDiscoverer) DiscoverColumns(_ context.Context, exclude func(string) bool) ([]datasource.ColumnMetadata, error) {
	if d.columnErr != nil {
		return nil, d.columnErr
	}
	var out []datasource.ColumnMetadata
	for _, c := range d.columns {
		if exclude != nil && exclude(c.ColumnName) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (d *fakeDiscoverer) DiscoverForeignKeys(_ context.Context, exclude func(string) bool, scanLimit int) ([]datasource.ForeignKeyMetadata, error) {
	if d.fkErr != nil {
		return nil, d.fkErr
	}
	var out []datasource.ForeignKeyMetadata
	for i, fk := range d.fks {
		if i >= scanLimit {
			break
		}
		if exclude != nil && (exclude(fk.SourceColumn) || exclude(fk.TargetColumn)) {
			continue
		}
		out = append(out, fk)
	}
	return out, nil
}

type fakeConnection struct {
	database string
	exec     *fakeExecutor
	disc     *fakeDiscoverer
	closed   int
}

func (c *fakeConnection) TestConnection(context.Context) error { return nil }
func (c *fakeConnection) Close() error                         { c.closed++; return nil }
func (c *fakeConnection) DatabaseName() string                 { return c.database }
func (c *fakeConnection) ListDatabases(context.Context) ([]string, error) {
	return []string{c.database}, nil
}
func (c *fakeConnection) QueryExecutor() datasource.QueryExecutor       { return c.exec }
func (c *fakeConnection) SchemaDiscoverer() datasource.SchemaDiscoverer { return c.disc }

type fakeConnector struct {
	conn   *fakeConnection
	err    error
	// failFirst limits err to the first N calls; zero fails every call.
	failFirst int
	calls     int
	params    []datasource.ConnectionParams
}

func (c *fakeConnector) Connect(_ context.Context, params datasource.ConnectionParams) (datasource.Connection, error) {
	c.calls++
	c.params = append(c.params, params)
	if c.err != nil && (c.failFirst == 0 || c.calls <= c.failFirst) {
		return nil, c.err
	}
	return c.conn, nil
}

func newFakeConnector(database string) *fakeConnector {
	return &fakeConnector{conn: &fakeConnection{
		database: database,
		exec:     &fakeExecutor{},
		disc:     &fakeDiscoverer{},
	}}
}

func testParams() datasource.ConnectionParams {
	return datasource.ConnectionParams{Server: "sql01", Database: "Orders", Username: "app", Password: "secret"}
}

func trend(name string, v float64) models.TrendValue {
	return models.TrendValue{Name: name, Value: &v}
}

// recordSet builds n records numbered 1..n with two trend features each.
func recordSet(n int) *models.RecordSet {
	set := &models.RecordSet{}
	for i := 1; i <= n; i++ {
		set.Records = append(set.Records, models.OrderRecord{
			OrderNumber: fmt.Sprintf("%d", i),
			Comment:     fmt.Sprintf("comment %d", i),
			Trends: models.TrendProfile{
				trend("TREND_LAG1_STRNT", float64(i)),
				trend("TREND_LAG2_STRNT", float64(i)/2),
			},
		})
	}
	return set
}
