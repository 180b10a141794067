// Package directory resolves company names and server/database ids to SQL
// Server connection parameters. Two files feed it: a company directory in
// XML and a server directory in JSON or YAML. Either may be absent.
package directory

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/order-insight/pkg/adapters/datasource"
	"github.com/ekaya-inc/order-insight/pkg/apperrors"
	"github.com/ekaya-inc/order-insight/pkg/config"
	"github.com/ekaya-inc/order-insight/pkg/models"
)

// Directory is an immutable view of both directory files.
type Directory struct {
	companies []companyEntry
	servers   map[string]serverEntry
}

type companyEntry struct {
	name   string
	params datasource.ConnectionParams
}

// Target names a database either by company, by server/database ids, or by
// explicit connection parameters, in that order of precedence.
type Target struct {
	Company    string `json:"company,omitempty"`
	ServerID   string `json:"server_id,omitempty"`
	DatabaseID string `json:"database_id,omitempty"`
	Server     string `json:"server,omitempty"`
	Database   string `json:"database,omitempty"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
}

// Load reads the configured directory files. A missing file yields an empty
// section; a malformed one is an error.
func Load(cfg config.DirectoryConfig, logger *zap.Logger) (*Directory, error) {
	d := &Directory{servers: map[string]serverEntry{}}

	if f, err := open(cfg.CompaniesFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		logger.Info("Company directory not found; company lookups disabled", zap.String("path", cfg.CompaniesFile))
	} else {
		defer f.Close()
		if d.companies, err = parseCompanies(f, logger); err != nil {
			return nil, fmt.Errorf("company directory %s: %w", cfg.CompaniesFile, err)
		}
	}

	if f, err := open(cfg.ServersFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		logger.Info("Server directory not found; server lookups disabled", zap.String("path", cfg.ServersFile))
	} else {
		defer f.Close()
		if d.servers, err = parseServers(f); err != nil {
			return nil, fmt.Errorf("server directory %s: %w", cfg.ServersFile, err)
		}
	}

	logger.Info("Directory loaded",
		zap.Int("companies", len(d.companies)),
		zap.Int("servers", len(d.servers)))
	return d, nil
}

func open(path string) (*os.File, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fs.ErrNotExist
	}
	return os.Open(path)
}

// Companies lists companies in file order, without credentials.
func (d *Directory) Companies() []models.Company {
	out := make([]models.Company, 0, len(d.companies))
	for _, c := range d.companies {
		out = append(out, models.Company{
			Name:     c.name,
			Server:   c.params.Server,
			Database: c.params.Database,
			Trusted:  c.params.Trusted(),
		})
	}
	return out
}

// Company returns the connection parameters of the named company. Names
// match case-insensitively.
func (d *Directory) Company(name string) (datasource.ConnectionParams, error) {
	for _, c := range d.companies {
		if strings.EqualFold(c.name, strings.TrimSpace(name)) {
			return c.params, nil
		}
	}
	return datasource.ConnectionParams{}, fmt.Errorf("company %q: %w", name, apperrors.ErrNotFound)
}

// Servers lists servers sorted by id, without credentials.
func (d *Directory) Servers() []models.ServerEntry {
	ids := make([]string, 0, len(d.servers))
	for id := range d.servers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]models.ServerEntry, 0, len(ids))
	for _, id := range ids {
		out = append(out, d.servers[id].describe(id))
	}
	return out
}

// Server returns one server entry.
func (d *Directory) Server(serverID string) (models.ServerEntry, error) {
	s, ok := d.servers[serverID]
	if !ok {
		return models.ServerEntry{}, fmt.Errorf("server %q: %w", serverID, apperrors.ErrNotFound)
	}
	return s.describe(serverID), nil
}

// ServerDatabase returns the connection parameters for a configured database.
func (d *Directory) ServerDatabase(serverID, databaseID string) (datasource.ConnectionParams, error) {
	s, ok := d.servers[serverID]
	if !ok {
		return datasource.ConnectionParams{}, fmt.Errorf("server %q: %w", serverID, apperrors.ErrNotFound)
	}
	db, ok := s.Databases[databaseID]
	if !ok {
		return datasource.ConnectionParams{}, fmt.Errorf("database %q on server %q: %w", databaseID, serverID, apperrors.ErrNotFound)
	}
	return datasource.ConnectionParams{
		Server:   s.Name,
		Database: db.Name,
		Username: db.Username,
		Password: db.Password,
	}, nil
}

// Table returns the table name registered under tableID.
func (d *Directory) Table(serverID, databaseID, tableID string) (string, error) {
	if _, err := d.ServerDatabase(serverID, databaseID); err != nil {
		return "", err
	}
	name, ok := d.servers[serverID].Databases[databaseID].Tables[tableID]
	if !ok {
		return "", fmt.Errorf("table %q: %w", tableID, apperrors.ErrNotFound)
	}
	return name, nil
}

// Resolve turns a Target into connection parameters. A company target may
// override the database, which is how other databases on the company's
// server are reached. Explicit parameters are validated by the caller.
func (d *Directory) Resolve(t Target) (datasource.ConnectionParams, error) {
	switch {
	case strings.TrimSpace(t.Company) != "":
		params, err := d.Company(t.Company)
		if err != nil {
			return params, err
		}
		if t.Database != "" {
			params = params.WithDatabase(t.Database)
		}
		return params, nil
	case t.ServerID != "":
		if t.DatabaseID == "" {
			return datasource.ConnectionParams{}, fmt.Errorf("%w: database_id", apperrors.ErrMissingConnectionParams)
		}
		return d.ServerDatabase(t.ServerID, t.DatabaseID)
	default:
		return datasource.ConnectionParams{
			Server:   t.Server,
			Database: t.Database,
			Username: t.Username,
			Password: t.Password,
		}, nil
	}
}
