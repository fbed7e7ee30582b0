// Package threat pattern-matches user input and element mutations for
// injection signatures, and rate-limits failed attempts per identifier.
package threat

import (
	"fmt"
	"regexp"

	"github.com/quillmind/governd/pkg/alert"
	"github.com/quillmind/governd/pkg/model"
)

// Injection signatures. Matching is blocking: a hit means the caller must
// reject the input, not sanitize and continue.
var scriptPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<\s*script`),
	regexp.MustCompile(`(?i)<\s*/\s*script`),
	regexp.MustCompile(`(?i)javascript\s*:`),
	regexp.MustCompile(`(?i)\bon(load|error|click|mouseover|focus|blur)\s*=`),
	regexp.MustCompile(`(?i)<\s*iframe`),
	regexp.MustCompile(`(?i)\beval\s*\(`),
	regexp.MustCompile(`(?i)document\s*\.\s*cookie`),
	regexp.MustCompile(`(?i)\bsrcdoc\s*=`),
}

var sqlPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bunion\s+select\b`),
	regexp.MustCompile(`(?i)\bselect\s+[\w*,\s]+\s+from\b`),
	regexp.MustCompile(`(?i)\binsert\s+into\b`),
	regexp.MustCompile(`(?i)\bdelete\s+from\b`),
	regexp.MustCompile(`(?i)\bdrop\s+(table|database)\b`),
	regexp.MustCompile(`(?i)\btruncate\s+table\b`),
	regexp.MustCompile(`(?i)'\s*(or|and)\s+'?\d+'?\s*=\s*'?\d+`),
	regexp.MustCompile(`(?i)(--|;\s*--|/\*|\*/|\bxp_\w+)`),
}

// ScanResult is the outcome of one input scan.
type ScanResult struct {
	Safe            bool     `json:"safe"`
	MatchedPatterns []string `json:"matchedPatterns,omitempty"`
}

// Scanner checks free text and mutations, and tracks failed attempts.
// ScanInput is synchronous; UI call sites depend on an immediate answer.
type Scanner struct {
	alerts  *alert.Log
	limiter *RateLimiter
}

func NewScanner(alerts *alert.Log) *Scanner {
	return &Scanner{
		alerts:  alerts,
		limiter: NewRateLimiter(alerts),
	}
}

// RateLimiter exposes the scanner's failed-attempt tracker.
func (s *Scanner) RateLimiter() *RateLimiter {
	return s.limiter
}

// ScanInput checks text against the injection signature lists. Any match
// records a high-severity finding and marks the input unsafe.
func (s *Scanner) ScanInput(text, fieldName string) ScanResult {
	var matched []string
	for _, p := range scriptPatterns {
		if p.MatchString(text) {
			matched = append(matched, p.String())
		}
	}
	for _, p := range sqlPatterns {
		if p.MatchString(text) {
			matched = append(matched, p.String())
		}
	}
	if len(matched) == 0 {
		return ScanResult{Safe: true}
	}
	if s.alerts != nil {
		s.alerts.Append(alert.NewFinding(model.FindingInjectionInput, model.SeverityHigh,
			fmt.Sprintf("injection signature in field %q", fieldName),
			map[string]any{"field": fieldName, "patterns": matched}))
	}
	return ScanResult{Safe: false, MatchedPatterns: matched}
}
