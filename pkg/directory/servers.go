package directory

import (
	"errors"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/order-insight/pkg/models"
)

// The server directory is JSON in existing deployments; YAML with the same
// shape is accepted too.
type serverFile struct {
	Servers map[string]serverEntry `yaml:"servers"`
}

type serverEntry struct {
	Name      string                   `yaml:"name"`
	Databases map[string]databaseEntry `yaml:"databases"`
}

type databaseEntry struct {
	Name     string            `yaml:"name"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	Tables   map[string]string `yaml:"tables"`
}

func parseServers(r io.Reader) (map[string]serverEntry, error) {
	var file serverFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if file.Servers == nil {
		file.Servers = map[string]serverEntry{}
	}
	return file.Servers, nil
}

func (s serverEntry) describe(id string) models.ServerEntry {
	entry := models.ServerEntry{ID: id, Name: s.Name, Databases: []models.DatabaseEntry{}}
	for dbID, db := range s.Databases {
		entry.Databases = append(entry.Databases, models.DatabaseEntry{ID: dbID, Name: db.Name, Tables: db.Tables})
	}
	sort.Slice(entry.Databases, func(i, j int) bool {
		return entry.Databases[i].ID < entry.Databases[j].ID
	})
	return entry
}
