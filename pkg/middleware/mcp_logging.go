package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/order-insight/pkg/logging"
)

// maxLoggedArgument bounds logged tool argument values such as questions.
const maxLoggedArgument = 200

// MCPRequestLogger logs MCP JSON-RPC calls with the tool name, sanitized
// arguments, duration and whether the tool reported an error. A nil logger
// disables it.
func MCPRequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, err := io.ReadAll(r.Body)
			if err != nil {
				logger.Error("Failed to read MCP request body", zap.Error(err))
				http.Error(w, "failed to read request body", http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

			var rpcReq jsonRPCRequest
			if err := json.Unmarshal(bodyBytes, &rpcReq); err != nil {
				logger.Debug("MCP request is not JSON", zap.Error(err))
			}
			toolName := rpcReq.Params.Name

			logger.Debug("MCP request",
				zap.String("method", rpcReq.Method),
				zap.String("tool", toolName),
				zap.Any("arguments", sanitizeArguments(rpcReq.Params.Arguments)),
			)

			recorder := &mcpResponseRecorder{responseWriter: responseWriter{ResponseWriter: w, statusCode: http.StatusOK}}
			start := time.Now()
			next.ServeHTTP(recorder, r)
			duration := time.Since(start)

			var rpcResp jsonRPCResponse
			if err := json.Unmarshal(recorder.body.Bytes(), &rpcResp); err != nil {
				logger.Debug("MCP response is not JSON", zap.Error(err))
				return
			}

			switch {
			case rpcResp.Error != nil:
				logger.Warn("MCP call failed",
					zap.String("tool", toolName),
					zap.Int("error_code", rpcResp.Error.Code),
					zap.String("error_message", rpcResp.Error.Message),
					zap.Duration("duration", duration))
			case rpcResp.Result.IsError:
				logger.Info("MCP tool returned an error result",
					zap.String("tool", toolName),
					zap.Duration("duration", duration))
			default:
				logger.Debug("MCP call completed",
					zap.String("tool", toolName),
					zap.Duration("duration", duration))
			}
		})
	}
}

type jsonRPCRequest struct {
	Method string `json:"method"`
	Params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"params"`
}

type jsonRPCResponse struct {
	Result struct {
		IsError bool `json:"isError"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// mcpResponseRecorder copies the response body while writing it through.
type mcpResponseRecorder struct {
	responseWriter
	body bytes.Buffer
}

func (r *mcpResponseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.responseWriter.Write(b)
}

var sensitiveArgumentKeys = []string{"password", "secret", "token", "key", "credential"}

// sanitizeArguments redacts credential-like arguments and truncates long values.
func sanitizeArguments(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}

	result := make(map[string]any, len(args))
	for k, v := range args {
		lowerKey := strings.ToLower(k)
		redacted := false
		for _, keyword := range sensitiveArgumentKeys {
			if strings.Contains(lowerKey, keyword) {
				redacted = true
				break
			}
		}
		switch str, isString := v.(string); {
		case redacted:
			result[k] = "[REDACTED]"
		case isString:
			result[k] = logging.TruncateString(str, maxLoggedArgument)
		default:
			result[k] = v
		}
	}
	return result
}
