// Package testhelpers provides utilities for testing order-insight components.
package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	_ "github.com/microsoft/go-mssqldb" // SQL Server driver
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ekaya-inc/order-insight/pkg/adapters/datasource"
)

// MSSQLImage is the SQL Server image used for integration tests.
const MSSQLImage = "mcr.microsoft.com/mssql/server:2022-latest"

const (
	saPassword   = "OrderInsight!Test1"
	testDatabase = "OrderInsightTest"
)

// seedStatements create a small order history with trend features, a
// customer table reached through a sold-to foreign key, and an empty
// secondary database.
var seedStatements = []string{
	`CREATE TABLE dbo.Customers (
		CustomerID INT NOT NULL PRIMARY KEY,
		CustomerName NVARCHAR(100) NOT NULL
	)`,
	`CREATE TABLE dbo.OrderTrends (
		OrderNumber NVARCHAR(20) NOT NULL PRIMARY KEY,
		SOLD_TO_ID INT NULL REFERENCES dbo.Customers(CustomerID),
		TREND_LAG1_STRNT FLOAT NULL,
		TREND_LAG2_STRNT FLOAT NULL,
		Predicted_Comment NVARCHAR(400) NULL,
		Prediction_Reason NVARCHAR(MAX) NULL,
		Prediction_Date DATETIME2 NULL
	)`,
	`CREATE TABLE dbo.OrderJournal (
		ORDERNUMBER NVARCHAR(20) NOT NULL REFERENCES dbo.OrderTrends(OrderNumber),
		ORDER_JRNL_CMT_TXT NVARCHAR(400) NULL,
		JRNL_DATE DATE NOT NULL
	)`,
	`INSERT INTO dbo.Customers VALUES (1, N'Contoso'), (2, N'Fabrikam')`,
	`INSERT INTO dbo.OrderTrends (OrderNumber, SOLD_TO_ID, TREND_LAG1_STRNT, TREND_LAG2_STRNT) VALUES
		(N'SO-1001', 1, 0.92, 0.40),
		(N'SO-1002', 2, 0.15, 0.10),
		(N'SO-1003', 1, NULL, NULL)`,
	`INSERT INTO dbo.OrderJournal VALUES
		(N'SO-1001', N'Expedite, customer line down', '2024-03-01'),
		(N'SO-1002', N'Standard release', '2024-03-02'),
		(N'SO-1003', N'Awaiting credit check', '2024-03-03')`,
}

// TestMSSQL holds a shared SQL Server container seeded with order data.
type TestMSSQL struct {
	Container testcontainers.Container
	Params    datasource.ConnectionParams // SQL login, server as host,port
	DB        *sql.DB                     // sa connection to the test database
}

var (
	sharedMSSQL     *TestMSSQL
	sharedMSSQLOnce sync.Once
	sharedMSSQLErr  error
)

// GetTestMSSQL returns a shared SQL Server container for integration tests.
// The container is created once and reused across all tests in the run.
func GetTestMSSQL(t *testing.T) *TestMSSQL {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedMSSQLOnce.Do(func() {
		sharedMSSQL, sharedMSSQLErr = setupTestMSSQL()
	})

	if sharedMSSQLErr != nil {
		t.Fatalf("Failed to setup test SQL Server: %v", sharedMSSQLErr)
	}

	return sharedMSSQL
}

func setupTestMSSQL() (*TestMSSQL, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        MSSQLImage,
		ExposedPorts: []string{"1433/tcp"},
		Env: map[string]string{
			"ACCEPT_EULA":       "Y",
			"MSSQL_SA_PASSWORD": saPassword,
			"MSSQL_PID":         "Developer",
		},
		WaitingFor: wait.ForLog("SQL Server is now ready for client connections").
			WithStartupTimeout(3 * time.Minute),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "1433")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	master, err := openSA(host, port.Port(), "master")
	if err != nil {
		return nil, err
	}
	defer master.Close()

	// The log line appears slightly before logins are accepted.
	if err := pingWithRetry(ctx, master); err != nil {
		return nil, err
	}

	for _, stmt := range []string{
		"CREATE DATABASE " + testDatabase,
		"CREATE DATABASE OrderInsightArchive",
	} {
		if _, err := master.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	db, err := openSA(host, port.Port(), testDatabase)
	if err != nil {
		return nil, err
	}
	if err := pingWithRetry(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	for _, stmt := range seedStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to seed test database: %w", err)
		}
	}

	return &TestMSSQL{
		Container: container,
		Params: datasource.ConnectionParams{
			Server:   fmt.Sprintf("%s,%s", host, port.Port()),
			Database: testDatabase,
			Username: "sa",
			Password: saPassword,
		},
		DB: db,
	}, nil
}

func openSA(host, port, database string) (*sql.DB, error) {
	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword("sa", saPassword),
		Host:     host + ":" + port,
		RawQuery: url.Values{"database": {database}, "encrypt": {"disable"}}.Encode(),
	}
	db, err := sql.Open("sqlserver", u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to open sql connection: %w", err)
	}
	return db, nil
}

func pingWithRetry(ctx context.Context, db *sql.DB) error {
	var err error
	for i := 0; i < 30; i++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		time.Sleep(time.Second)
	}
	return fmt.Errorf("test SQL Server not reachable: %w", err)
}
