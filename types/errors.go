package types

import (
	"errors"
	"strings"
)

// Sentinel errors for the meshpart library.
//
// These errors provide type-safe error checking using errors.Is() and errors.As().
// All components should use these sentinel errors for known error conditions
// and wrap external errors with context using fmt.Errorf("%s: %w", msg, err).
//
// Error Naming Convention:
//   - Use descriptive names with Err prefix
//   - Group by component (LoadBalancer, Partitioner, Communicator, etc.)
//   - Configuration failures additionally match ErrConfiguration

// ErrConfiguration is the category shared by every fatal configuration failure.
//
// A configuration error aborts the collective operation on every participating
// process and is never retried automatically. Test for the category with
// errors.Is(err, ErrConfiguration).
var ErrConfiguration = errors.New("configuration error")

// configError is a sentinel that also matches ErrConfiguration.
type configError struct {
	msg string
}

func (e *configError) Error() string { return e.msg }

// Is reports whether target is the configuration category.
func (e *configError) Is(target error) bool {
	return target == ErrConfiguration
}

func newConfigError(msg string) error {
	return &configError{msg: msg}
}

// Configuration errors - returned by topology construction, partitioners and the load balancer.
var (
	// ErrMeshNotSet is returned when a partitioner is used before SetMesh.
	ErrMeshNotSet = newConfigError("partitioner has no mesh bound")

	// ErrNonMonotonicLevels is returned when a hierarchy level would start below its predecessor.
	ErrNonMonotonicLevels = newConfigError("hierarchy grid levels must be non-decreasing")

	// ErrInvalidHierarchy is returned when a process hierarchy level is malformed.
	ErrInvalidHierarchy = newConfigError("invalid process hierarchy")

	// ErrProcessMapMismatch is returned when partition() produced several partitions
	// without a process map to translate them.
	ErrProcessMapMismatch = newConfigError("process map does not match partition count")

	// ErrHierarchyMismatch is returned when processes disagree about the active hierarchy.
	ErrHierarchyMismatch = newConfigError("process hierarchy differs between processes")

	// ErrPartitionerRequired is returned when the load balancer has no partitioner.
	ErrPartitionerRequired = newConfigError("partitioner is required")

	// ErrCommunicatorRequired is returned when a component is built without a communicator.
	ErrCommunicatorRequired = newConfigError("communicator is required")
)

// Capability errors.
var (
	// ErrUnsupportedOperation is returned by capability checks when a partitioner
	// does not support the requested weighting.
	ErrUnsupportedOperation = errors.New("operation not supported by partitioner")
)

// Communicator errors - returned by collective operations.
var (
	// ErrNotMember is returned when a rank calls a collective on a group it does not belong to.
	ErrNotMember = errors.New("rank is not a member of the communicator")

	// ErrCommunicatorClosed is returned when a collective runs on a closed communicator.
	ErrCommunicatorClosed = errors.New("communicator closed")

	// ErrCollectiveTimeout is returned when not all contributions of a collective arrived in time.
	ErrCollectiveTimeout = errors.New("collective operation timed out")

	// ErrConnectivity indicates a NATS/KV connectivity issue.
	ErrConnectivity = errors.New("connectivity issue")
)

// Redistribution errors - returned by redistributors.
var (
	// ErrInvalidProcessMap is returned when an assignment references a partition
	// index that the process map cannot translate.
	ErrInvalidProcessMap = errors.New("partition index outside process map")

	// ErrPublishFailed is returned when publishing a migration plan fails.
	ErrPublishFailed = errors.New("failed to publish migration plan")

	// ErrNoKeysFound is returned when NATS KV returns no keys (expected condition).
	ErrNoKeysFound = errors.New("no keys found")
)

// IsNoKeysFoundError checks if an error indicates that no keys were found in NATS KV.
//
// This function handles NATS-specific "no keys found" errors which may come as:
//   - Direct error: "nats: no keys found"
//   - Wrapped error: "failed to list KV keys: nats: no keys found"
//
// Parameters:
//   - err: The error to check
//
// Returns:
//   - bool: true if the error indicates no keys were found, false otherwise
func IsNoKeysFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNoKeysFound) {
		return true
	}

	return strings.Contains(err.Error(), "no keys found")
}
