package apperrors

import "errors"

var (
	ErrNotFound                = errors.New("not found")
	ErrMissingAPIKey           = errors.New("missing LLM API key")
	ErrMissingConnectionParams = errors.New("missing required connection parameters")
	ErrConnectivity            = errors.New("database unreachable")
	ErrSchemaUnavailable       = errors.New("schema metadata unavailable")
	ErrNoData                  = errors.New("no data available")
	ErrUnsafeParameter         = errors.New("parameter rejected by injection screening")
	ErrAmbiguousRowKey         = errors.New("row key matches more than one row")
)
