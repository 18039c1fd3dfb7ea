package log

import (
	"errors"
	"sort"
)

// Field names shared by every component.
const (
	FieldComponent    = "component"
	FieldRequestID    = "request_id"
	FieldClientIP     = "client_ip"
	FieldMethod       = "method"
	FieldPath         = "path"
	FieldQuery        = "query"
	FieldStatusCode   = "status_code"
	FieldDuration     = "duration_ms"
	FieldUserAgent    = "user_agent"
	FieldSuccess      = "success"
	FieldError        = "error"
	FieldErrorType    = "error_type"
	FieldOperation    = "operation"
	FieldUsername     = "username"
	FieldUserID       = "user_id"
	FieldEntriesCount = "entries_count"
	FieldBackend      = "backend"
	FieldModel        = "model"
	FieldPromptLength = "prompt_length"
	FieldSheetRange   = "sheet_range"
)

// Components.
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentAuth      = "auth"
	ComponentEntries   = "entries"
	ComponentAssistant = "assistant"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
	ComponentBackend   = "backend"
	ComponentCLI       = "cli"
)

// Operations.
const (
	OpRegister     = "register"
	OpLogin        = "login"
	OpAuthenticate = "authenticate"
	OpList         = "list"
	OpReplace      = "replace"
	OpSummary      = "summary"
	OpAsk          = "ask"
	OpPublish      = "publish"
	OpConsume      = "consume"
	OpExport       = "export"
	OpMigrate      = "migrate"
	OpStartup      = "startup"
	OpShutdown     = "shutdown"
)

// Error categories.
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeAuth          = "auth_error"
	ErrorTypeConflict      = "conflict_error"
	ErrorTypeUpstream      = "upstream_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields is a small builder for slog key/value pairs.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithError records err and, when given, its category.
func (f LogFields) WithError(err error, errorType ...string) LogFields {
	if err == nil {
		return f
	}
	f[FieldError] = err.Error()
	if len(errorType) > 0 {
		f[FieldErrorType] = errorType[0]
	}
	return f
}

func (f LogFields) WithUser(id, username string) LogFields {
	if id != "" {
		f[FieldUserID] = id
	}
	if username != "" {
		f[FieldUsername] = username
	}
	return f
}

func (f LogFields) WithEntriesCount(n int) LogFields {
	f[FieldEntriesCount] = n
	return f
}

// WithHTTPRequest adds method, path, query and user agent.
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice flattens the fields in key order so output is deterministic.
func (f LogFields) ToSlice() []any {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, 0, len(f)*2)
	for _, k := range keys {
		out = append(out, k, f[k])
	}
	return out
}

// ErrorType returns the category of the first target err matches, or
// internal when none does.
func ErrorType(err error, classes map[error]string) string {
	for target, typ := range classes {
		if errors.Is(err, target) {
			return typ
		}
	}
	return ErrorTypeInternal
}
