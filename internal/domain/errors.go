package domain

import "fmt"

// ConfigError reports malformed or internally inconsistent configuration:
// invalid distribution bounds, unrecognized tokens, inverted pressure
// envelopes. It is raised eagerly at configuration-resolution or
// metadata-sampling time and aborts the whole generation run.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Reason
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Configf builds a ConfigError with a formatted reason.
func Configf(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// InvariantError reports simulator state outside its valid range after
// clamping was applied. Given validated configuration this is unreachable;
// seeing one means a logic defect, so callers treat it as fatal rather
// than recoverable.
type InvariantError struct {
	FacilityID string
	Step       int
	Quantity   string
	Value      float64
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("simulation invariant violated: facility %s step %d: %s = %g out of range",
		e.FacilityID, e.Step, e.Quantity, e.Value)
}
