package pci

import "fmt"

// Severity classifies a finding. Errors block a build; warnings do not.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// FindingCode identifies the rule behind a finding.
type FindingCode string

// Codes produced by the capability walk and BAR parsing. Layout validation
// adds its own codes on top of the same Finding type.
const (
	FindingCycleDetected  FindingCode = "cycle_detected"
	FindingTruncatedChain FindingCode = "truncated_chain"
	FindingMalformedChain FindingCode = "malformed_chain"
	FindingBARSizeUnknown FindingCode = "bar_size_unknown"
)

// Finding is a structured diagnostic produced while parsing or validating a
// snapshot. Findings are collected, never thrown; only malformed parse input
// produces hard errors.
type Finding struct {
	Severity Severity    `json:"severity"`
	Code     FindingCode `json:"code"`
	Message  string      `json:"message"`
	Field    string      `json:"field,omitempty"`
}

// ErrorFinding builds an error-severity finding.
func ErrorFinding(code FindingCode, field, format string, args ...interface{}) Finding {
	return Finding{
		Severity: SeverityError,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Field:    field,
	}
}

// WarningFinding builds a warning-severity finding.
func WarningFinding(code FindingCode, field, format string, args ...interface{}) Finding {
	return Finding{
		Severity: SeverityWarning,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Field:    field,
	}
}

// String renders the finding for operator output.
func (f Finding) String() string {
	if f.Field != "" {
		return fmt.Sprintf("[%s] %s: %s (%s)", f.Severity, f.Code, f.Message, f.Field)
	}
	return fmt.Sprintf("[%s] %s: %s", f.Severity, f.Code, f.Message)
}

// HasErrors reports whether any finding carries error severity.
func HasErrors(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}
