package datasource

import (
	"strings"
)

// ParseConnectionString reads an ADO.NET-style connection string such as
//
//	data source=sql01;initial catalog=Orders;User ID=app;Password=secret
//
// Keys are case-insensitive and tolerate extra whitespace; values may be
// quoted with ' or " to contain semicolons. Integrated Security or
// Trusted_Connection set to true/yes/sspi selects trusted authentication.
// ok is false when no server can be found.
func ParseConnectionString(connStr string) (params ConnectionParams, ok bool) {
	trusted := false
	for _, pair := range splitConnectionString(connStr) {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		key = normalizeKey(key)
		value = unquote(strings.TrimSpace(value))

		switch key {
		case "data source", "server", "address", "addr", "network address":
			params.Server = strings.TrimPrefix(value, "tcp:")
		case "initial catalog", "database":
			params.Database = value
		case "user id", "uid", "user":
			params.Username = value
		case "password", "pwd":
			params.Password = value
		case "integrated security", "trusted_connection":
			switch strings.ToLower(value) {
			case "true", "yes", "sspi":
				trusted = true
			}
		}
	}

	if trusted {
		params.Username = ""
		params.Password = ""
	}
	if strings.TrimSpace(params.Server) == "" {
		return ConnectionParams{}, false
	}
	return params, true
}

// splitConnectionString splits on semicolons outside quoted values.
func splitConnectionString(s string) []string {
	var parts []string
	var current strings.Builder
	var quote rune
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
			current.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
			current.WriteRune(r)
		case r == ';':
			parts = append(parts, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.Join(strings.Fields(key), " "))
}

func unquote(value string) string {
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if (first == '\'' || first == '"') && first == last {
			return value[1 : len(value)-1]
		}
	}
	return value
}
