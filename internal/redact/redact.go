// Package redact removes credentials, file paths, and SQL from text before
// it is logged. Database and Redis errors often echo the connection string
// or the failing statement.
package redact

import "regexp"

// Placeholders substituted for redacted text.
const (
	CredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	PathPlaceholder       = "[REDACTED_PATH]"
	SQLPlaceholder        = "[REDACTED_SQL]"
	HostPlaceholder       = "[REDACTED_HOST]"
)

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Rules apply in order; credentials go first so a later rule never leaves
// half of a URL behind.
var rules = []rule{
	// scheme://user:password@ in postgres, redis, and sqlite URLs
	{regexp.MustCompile(`(?i)\b([a-z][a-z0-9+.-]*://)[^/@\s]+@`), "${1}" + CredentialPlaceholder + "@"},
	// key=value passwords in DSNs
	{regexp.MustCompile(`(?i)\b(password|passwd|pwd)(\s*[=:]\s*)('[^']*'|"[^"]*"|[^\s&]+)`), "${1}${2}" + CredentialPlaceholder},
	// SQL statements echoed by drivers; keywords are upper case in every query we build
	{
		regexp.MustCompile(`\b(SELECT|INSERT|UPDATE|DELETE|CREATE|ALTER|DROP)\b[^;\n]*?\b(FROM|INTO|SET|TABLE|INDEX)\b[^;:\n]*`),
		SQLPlaceholder,
	},
	// host:port of database and cache servers
	{regexp.MustCompile(`\b(?:[a-zA-Z0-9-]+\.)+[a-zA-Z]{2,}:\d{1,5}\b`), HostPlaceholder},
	{regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}:\d{1,5}\b`), HostPlaceholder},
	// absolute paths, such as the SQLite database file
	{regexp.MustCompile(`(^|[\s"'(=])(?:/[\w.-]+){2,}`), "${1}" + PathPlaceholder},
}

// String returns input with sensitive fragments replaced by placeholders.
func String(input string) string {
	if input == "" {
		return input
	}
	for _, r := range rules {
		input = r.pattern.ReplaceAllString(input, r.replacement)
	}
	return input
}

// Error returns the redacted message of err, or "" for a nil error.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
