package sql

import (
	"fmt"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/ekaya-inc/order-insight/pkg/apperrors"
)

// InjectionCheckResult contains the result of an injection check on a parameter value.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	ParamName   string // Name of the parameter that failed the check
	ParamValue  string // The value that was checked
}

// CheckParameterForInjection uses libinjection to detect SQL injection
// patterns in a caller-supplied value such as a write-back row key or an
// order number. Returns nil when the value is clean.
func CheckParameterForInjection(paramName, value string) *InjectionCheckResult {
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		IsSQLi:      true,
		Fingerprint: string(fingerprint),
		ParamName:   paramName,
		ParamValue:  value,
	}
}

// ScreenParameter returns an error wrapping apperrors.ErrUnsafeParameter when
// the value looks like an injection attempt. Values are always bound as
// parameters; this only rejects obviously hostile input early.
func ScreenParameter(paramName, value string) error {
	if result := CheckParameterForInjection(paramName, value); result != nil {
		return fmt.Errorf("%w: %s (fingerprint %s)", apperrors.ErrUnsafeParameter, paramName, result.Fingerprint)
	}
	return nil
}
