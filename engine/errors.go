/*
errors.go - Centralized error types for the engine

PURPOSE:
  The engine is pure computation over well-formed state, so it has very few
  failure modes. Scans and steps never fail: a malformed record is skipped.
  Errors surface only from targeted operations (re-tender a shipment that
  does not exist, toggle an unknown scenario).

USAGE:
    opts, err := engine.RetenderOptions(state, id)
    if engine.IsNotFound(err) {
        // 404
    }

SEE ALSO:
  - transport.go: returns ErrShipmentNotFound / ErrCarrierNotFound
  - autopilot/store.go: wraps these with command context
*/
package engine

import "errors"

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrShipmentNotFound is returned when a shipment id is not in state.
	ErrShipmentNotFound = errors.New("shipment not found")

	// ErrLaneNotFound is returned when a shipment references a missing lane.
	ErrLaneNotFound = errors.New("lane not found")

	// ErrCarrierNotFound is returned when a carrier id is neither a known
	// carrier nor the EXPEDITE option.
	ErrCarrierNotFound = errors.New("carrier not found")

	// ErrSKUNotFound is returned when a record references a missing SKU.
	ErrSKUNotFound = errors.New("sku not found")

	// ErrNodeNotFound is returned when a record references a missing node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrShipmentDelivered is returned when acting on a terminal shipment.
	ErrShipmentDelivered = errors.New("shipment already delivered")

	// ErrUnknownScenario is returned for a scenario toggle name that does not exist.
	ErrUnknownScenario = errors.New("unknown scenario")

	// ErrInvalidTransfer is returned when a submitted transfer cannot be
	// priced against the current state.
	ErrInvalidTransfer = errors.New("invalid transfer")
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrShipmentNotFound) ||
		errors.Is(err, ErrLaneNotFound) ||
		errors.Is(err, ErrCarrierNotFound) ||
		errors.Is(err, ErrSKUNotFound) ||
		errors.Is(err, ErrNodeNotFound)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrShipmentDelivered) ||
		errors.Is(err, ErrUnknownScenario) ||
		errors.Is(err, ErrInvalidTransfer)
}
