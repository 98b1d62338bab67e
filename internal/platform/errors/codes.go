// Package errors provides structured domain errors with machine-readable
// codes that map onto gRPC status codes.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Decision lifecycle errors
	CodeDecisionNotCurrent     Code = "DECISION_NOT_CURRENT"
	CodeDecisionOptionNotFound Code = "DECISION_OPTION_NOT_FOUND"
	CodeDecisionNotPending     Code = "DECISION_NOT_PENDING"

	// Catalog errors
	CodeCatalogEntryNotFound Code = "CATALOG_ENTRY_NOT_FOUND"
	CodeCatalogInvalidEntry  Code = "CATALOG_INVALID_ENTRY"

	// Impact errors
	CodeImpactInvalidType     Code = "IMPACT_INVALID_TYPE"
	CodeImpactInvalidTarget   Code = "IMPACT_INVALID_TARGET"
	CodeImpactInvalidSeverity Code = "IMPACT_INVALID_SEVERITY"

	// Session errors
	CodeSessionEmptyID    Code = "SESSION_EMPTY_ID"
	CodeSessionGenerating Code = "SESSION_GENERATING"

	// Storage errors
	CodeNotFound      Code = "NOT_FOUND"
	CodeInvalidFilter Code = "INVALID_FILTER"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeDecisionOptionNotFound,
		CodeCatalogInvalidEntry,
		CodeImpactInvalidType,
		CodeImpactInvalidTarget,
		CodeImpactInvalidSeverity,
		CodeSessionEmptyID,
		CodeInvalidFilter:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeDecisionNotCurrent,
		CodeDecisionNotPending,
		CodeSessionGenerating:
		return codes.FailedPrecondition

	// NotFound - resource doesn't exist
	case CodeNotFound,
		CodeCatalogEntryNotFound:
		return codes.NotFound

	default:
		return codes.Internal
	}
}
