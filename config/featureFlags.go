package config

import (
	"os"
	"strconv"
	"strings"
)

// AuditLogBlocking makes a failed audit (history) write abort the business change.
// By default the audit entry is written in a savepoint and a failure is only logged.
//
// Set via env:
// - AUDIT_LOG_BLOCKING=true
func AuditLogBlocking() bool {
	return boolFromEnv("AUDIT_LOG_BLOCKING")
}

// ImportMaxRows caps the number of data rows accepted by a single schedule import.
//
// Set via env:
// - IMPORT_MAX_ROWS=5000 (default; 0 or negative disables the cap)
func ImportMaxRows() int {
	return intFromEnv("IMPORT_MAX_ROWS", 5000)
}

func boolFromEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
