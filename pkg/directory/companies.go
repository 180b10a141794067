package directory

import (
	"encoding/xml"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/order-insight/pkg/adapters/datasource"
)

// companyFile is <Config><Company><Name/><ConnectionString/></Company>...</Config>.
type companyFile struct {
	XMLName   xml.Name `xml:"Config"`
	Companies []struct {
		Name             string `xml:"Name"`
		ConnectionString string `xml:"ConnectionString"`
	} `xml:"Company"`
}

// parseCompanies skips entries without a name or with a connection string
// that names no server, logging a warning for each.
func parseCompanies(r io.Reader, logger *zap.Logger) ([]companyEntry, error) {
	var file companyFile
	if err := xml.NewDecoder(r).Decode(&file); err != nil {
		return nil, err
	}

	entries := make([]companyEntry, 0, len(file.Companies))
	for i, c := range file.Companies {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			logger.Warn("Skipping company without a name", zap.Int("index", i))
			continue
		}
		params, ok := datasource.ParseConnectionString(c.ConnectionString)
		if !ok {
			logger.Warn("Skipping company with an unusable connection string", zap.String("company", name))
			continue
		}
		entries = append(entries, companyEntry{name: name, params: params})
	}
	return entries, nil
}
