package observability

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
)

// PIILevel defines how questions are sanitized before reaching telemetry.
type PIILevel string

const (
	// PIILevelNone redacts the whole text
	PIILevelNone PIILevel = "none"
	// PIILevelHashed replaces detected PII with a salted hash
	PIILevelHashed PIILevel = "hashed"
	// PIILevelFull performs no sanitization
	PIILevelFull PIILevel = "full"
)

var piiPatterns = []struct {
	label   string
	pattern *regexp.Regexp
}{
	{"EMAIL", regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)},
	{"CARD", regexp.MustCompile(`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`)},
	{"PHONE", regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`)},
	{"IP", regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
	{"SECRET", regexp.MustCompile(`\b(?:sk|pk|api)[-_][A-Za-z0-9]{16,}\b`)},
}

// Redactor sanitizes free text such as questions and SQL before it is logged
// or attached to spans.
type Redactor struct {
	level PIILevel
	salt  string
}

// NewRedactor creates a redactor. Unknown levels behave as hashed.
func NewRedactor(level, salt string) *Redactor {
	return &Redactor{level: PIILevel(level), salt: salt}
}

// Redact returns text sanitized according to the configured level.
func (r *Redactor) Redact(text string) string {
	if r == nil {
		return text
	}
	switch r.level {
	case PIILevelFull:
		return text
	case PIILevelNone:
		return "[REDACTED]"
	default:
		out := text
		for _, p := range piiPatterns {
			out = p.pattern.ReplaceAllStringFunc(out, func(match string) string {
				return fmt.Sprintf("[%s:%s]", p.label, r.hash(match))
			})
		}
		return out
	}
}

func (r *Redactor) hash(value string) string {
	sum := sha256.Sum256([]byte(r.salt + value))
	return hex.EncodeToString(sum[:])[:8]
}
