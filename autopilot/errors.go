/*
errors.go - Error types for the Policy/Action Store

PURPOSE:
  Spend-cap rejections are not errors; they come back as an
  ExecutionResult with OK=false and a BLOCKED log entry. The errors here
  cover malformed input (bad policy, empty batch, carrier not offered) and
  the persistence boundary.

SEE ALSO:
  - engine/errors.go: engine sentinels wrapped by store commands
  - api/handlers.go: maps these to HTTP status codes
*/
package autopilot

import (
	"errors"
	"fmt"

	"github.com/warp/autopilot/engine"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidPolicy is returned when a policy or patch violates a constraint.
	ErrInvalidPolicy = errors.New("invalid policy")

	// ErrNoTransfers is returned when a rebalance is executed with an empty batch.
	ErrNoTransfers = errors.New("no transfers to execute")

	// ErrCarrierNotOffered is returned when re-tendering to a carrier that is
	// not among the current options for the shipment.
	ErrCarrierNotOffered = errors.New("carrier not among re-tender options")

	// ErrSnapshotNotFound is returned by a SnapshotStore with nothing saved
	// under the requested key.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrInvalidSnapshot is returned when restoring a snapshot that fails
	// validation.
	ErrInvalidSnapshot = errors.New("invalid snapshot")

	// ErrNoSnapshotStore is returned by Persist/Load on a store built
	// without a SnapshotStore.
	ErrNoSnapshotStore = errors.New("no snapshot store configured")

	// ErrDuplicateAction is returned by an AuditLog asked to append an
	// entry whose ID it already holds.
	ErrDuplicateAction = errors.New("action already recorded")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// PolicyError names the offending policy field.
type PolicyError struct {
	Field  string
	Reason string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("invalid policy: %s %s", e.Field, e.Reason)
}

func (e *PolicyError) Unwrap() error {
	return ErrInvalidPolicy
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPolicy) ||
		errors.Is(err, ErrNoTransfers) ||
		errors.Is(err, ErrCarrierNotOffered) ||
		errors.Is(err, ErrInvalidSnapshot) ||
		engine.IsClientError(err)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSnapshotNotFound) || engine.IsNotFound(err)
}
