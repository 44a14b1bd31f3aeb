package logging

import (
	"regexp"
)

const (
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// Pattern to match potential passwords in connection strings
	// Matches: password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Pattern to match JWT tokens (three base64 segments separated by dots)
	jwtPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_]+\.[A-Za-z0-9-_]+\.[A-Za-z0-9-_]*`)

	// Pattern to match connection string credentials (user:pass@host format)
	connStringPattern = regexp.MustCompile(`://[^:]+:[^@]+@[^/\s]+`)

	// Member contact details must not reach the logs, even inside wrapped
	// database errors that echo row values.
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s-]{7,}\d`)
)

// SanitizeConnectionString removes sensitive data from connection strings
// Use this before logging any connection string
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)

	return sanitized
}

// SanitizeError sanitizes error messages that might contain sensitive data.
// Use this before logging any error from database operations on member rows.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(err.Error(), "${1}="+RedactedText)
	sanitized = jwtPattern.ReplaceAllString(sanitized, "Bearer "+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
	sanitized = emailPattern.ReplaceAllString(sanitized, RedactedText)
	sanitized = phonePattern.ReplaceAllString(sanitized, RedactedText)

	return sanitized
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
