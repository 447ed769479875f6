package domain

import "time"

// AuditLogEntry is a single audit log record possibly identifying who
// changed a resource. Entries are produced fresh per query and never
// mutated. Missing upstream fields are represented by zero values, a
// missing or malformed timestamp by nil.
type AuditLogEntry struct {
	ResourceName string
	ResourceType string
	Changer      string
	Timestamp    *time.Time
	MethodName   string
	RequestType  string
}
