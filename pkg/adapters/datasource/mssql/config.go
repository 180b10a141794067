package mssql

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/ekaya-inc/order-insight/pkg/adapters/datasource"
)

// Authentication methods understood by the adapter.
const (
	AuthSQL              = "sql"
	AuthTrusted          = "trusted"
	AuthServicePrincipal = "service_principal"
)

const (
	driverSQLServer = "sqlserver"
	driverAzureSQL  = "azuresql"
)

// Options are driver settings shared by every connection a Connector opens.
type Options struct {
	Port                   int
	Encrypt                bool
	TrustServerCertificate bool
	ConnectionTimeout      int // seconds

	// Service principal credentials. When ClientID is set, connections that
	// carry no SQL username authenticate as the principal instead of trusted.
	TenantID     string
	ClientID     string
	ClientSecret string

	// ResolveForDocker rewrites local server names to host.docker.internal.
	ResolveForDocker bool
}

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// DefaultConnectionTimeout returns the default connection timeout in seconds.
func DefaultConnectionTimeout() int {
	return 30
}

// Config contains SQL Server-specific connection options for one connection.
type Config struct {
	Host     string
	Port     int // 0 lets the driver resolve a named instance
	Instance string
	Database string

	// AuthMethod is one of AuthSQL, AuthTrusted or AuthServicePrincipal.
	AuthMethod string

	Username string
	Password string

	TenantID     string
	ClientID     string
	ClientSecret string

	Encrypt                bool
	TrustServerCertificate bool
	ConnectionTimeout      int
}

// FromParams builds a Config from connection parameters. The server may be
// written as host, host,port or host\instance.
func FromParams(params datasource.ConnectionParams, opts Options) (*Config, error) {
	host, port, instance, err := splitServer(params.Server)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Host:                   host,
		Port:                   port,
		Instance:               instance,
		Database:               params.Database,
		Encrypt:                opts.Encrypt,
		TrustServerCertificate: opts.TrustServerCertificate,
		ConnectionTimeout:      opts.ConnectionTimeout,
	}
	if cfg.Port == 0 && cfg.Instance == "" {
		cfg.Port = opts.Port
		if cfg.Port == 0 {
			cfg.Port = DefaultPort()
		}
	}
	if cfg.ConnectionTimeout == 0 {
		cfg.ConnectionTimeout = DefaultConnectionTimeout()
	}

	switch {
	case !params.Trusted():
		cfg.AuthMethod = AuthSQL
		cfg.Username = params.Username
		cfg.Password = params.Password
	case opts.ClientID != "":
		cfg.AuthMethod = AuthServicePrincipal
		cfg.TenantID = opts.TenantID
		cfg.ClientID = opts.ClientID
		cfg.ClientSecret = opts.ClientSecret
	default:
		cfg.AuthMethod = AuthTrusted
	}

	return cfg, nil
}

// Validate checks if the config has all required fields for the selected auth method.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	switch c.AuthMethod {
	case AuthSQL:
		if c.Username == "" {
			return fmt.Errorf("username is required for SQL authentication")
		}
	case AuthTrusted:
	case AuthServicePrincipal:
		if c.TenantID == "" || c.ClientID == "" || c.ClientSecret == "" {
			return fmt.Errorf("tenant_id, client_id and client_secret are required for service principal")
		}
	default:
		return fmt.Errorf("invalid auth method: %s", c.AuthMethod)
	}

	return nil
}

// DSN returns the driver name and connection URL for this config.
func (c *Config) DSN() (driver, dsn string) {
	query := url.Values{}
	if c.Database != "" {
		query.Add("database", c.Database)
	}
	query.Add("encrypt", strconv.FormatBool(c.Encrypt))
	if c.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}
	if c.ConnectionTimeout > 0 {
		query.Add("connection timeout", strconv.Itoa(c.ConnectionTimeout))
	}

	u := &url.URL{Scheme: "sqlserver", Host: c.Host}
	if c.Port > 0 {
		u.Host = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	}
	if c.Instance != "" {
		u.Path = "/" + c.Instance
	}

	driver = driverSQLServer
	switch c.AuthMethod {
	case AuthSQL:
		u.User = url.UserPassword(c.Username, c.Password)
	case AuthServicePrincipal:
		// For Azure AD, use azuresql driver
		driver = driverAzureSQL
		query.Add("fedauth", "ActiveDirectoryServicePrincipal")
		query.Add("user id", c.ClientID+"@"+c.TenantID)
		query.Add("password", c.ClientSecret)
	}
	// AuthTrusted carries no user info; the driver uses integrated authentication.

	u.RawQuery = query.Encode()
	return driver, u.String()
}

// splitServer parses host, host,port and host\instance server strings.
func splitServer(server string) (host string, port int, instance string, err error) {
	server = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(server), "tcp:"))
	if server == "" {
		return "", 0, "", fmt.Errorf("server is required")
	}

	if h, p, found := strings.Cut(server, ","); found {
		port, err = strconv.Atoi(strings.TrimSpace(p))
		if err != nil || port <= 0 || port > 65535 {
			return "", 0, "", fmt.Errorf("invalid port in server %q", server)
		}
		server = strings.TrimSpace(h)
	}
	host, instance, _ = strings.Cut(server, `\`)
	if host == "" {
		return "", 0, "", fmt.Errorf("server %q has no host", server)
	}
	return host, port, instance, nil
}
