package logger

import "strings"

// RedactSecret masks a credential for safe logging.
// "s3cr3t-value" → "s3***"
// Short values (≤4 chars) are fully masked.
func RedactSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) > 4 {
		return s[:2] + "***"
	}
	return "***"
}

// RedactDSN masks the password of a user:password@host connection string.
// "user:pw@acct/db" → "user:***@acct/db"
// Strings without credentials are returned unchanged.
func RedactDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	if at < 0 {
		return dsn
	}
	head := dsn[:at]
	start := strings.Index(head, "://") + 1
	if start > 0 {
		start += 2
	}
	colon := strings.Index(head[start:], ":")
	if colon < 0 {
		return dsn
	}
	return head[:start+colon+1] + "***" + dsn[at:]
}
