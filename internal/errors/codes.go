package errors

type Code string

const (
	CodeUnknown          Code = "UNKNOWN"
	CodeInternal         Code = "INTERNAL_ERROR"
	CodeConfigValidation Code = "CONFIG_VALIDATION_ERROR"
	CodeConfigReadError  Code = "CONFIG_READ_ERROR"
	CodeConfigParseError Code = "CONFIG_PARSE_ERROR"

	// Git collaborator
	CodeGitError       Code = "GIT_ERROR"
	CodeGitConfigError Code = "GIT_CONFIG_ERROR"

	// Change attribution
	CodeAuditQueryError Code = "AUDIT_QUERY_ERROR"
	CodeRunQueryError   Code = "RUN_QUERY_ERROR"
	CodeRunParseError   Code = "RUN_PARSE_ERROR"
	CodeUnknownIdentity Code = "UNKNOWN_IDENTITY"
	CodeNotifyError     Code = "NOTIFY_ERROR"

	// Inventory scanning
	CodeInventoryQueryError Code = "INVENTORY_QUERY_ERROR"
	CodeDiscoveryError      Code = "DISCOVERY_ERROR"
	CodeSnapshotWriteError  Code = "SNAPSHOT_WRITE_ERROR"
)

func (c Code) String() string {
	return string(c)
}
