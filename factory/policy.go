/*
Package factory provides JSON to Go policy conversion.

PURPOSE:
  Converts JSON guardrail definitions into autopilot.Policy and
  autopilot.PolicyPatch values, and defines the named scenario presets the
  API can load. Operators can tune the spend cap or batch size without code
  changes.

JSON SCHEMA:
  {
    "daily_action_spend_cap": 75000,
    "max_transfers_per_exec": 6,
    "require_approval_over": 50000,
    "allow_auto_execute": false
  }

  Every field is optional. ParsePolicy fills missing fields from
  autopilot.DefaultPolicy; ParsePatch leaves them nil so the store keeps
  its current value.

USAGE:
  f := NewPolicyFactory()

  patch, err := f.ParsePatch(`{"max_transfers_per_exec": 3}`)
  change, err := store.SetPolicy(patch)

  pol, err := f.ParsePolicy(configJSON)

SEE ALSO:
  - autopilot/policy.go: Policy / PolicyPatch
  - factory/presets.go: scenario presets
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/autopilot/autopilot"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PolicyJSON is the JSON representation of a policy. Amounts are dollars.
type PolicyJSON struct {
	DailyActionSpendCap *decimal.Decimal `json:"daily_action_spend_cap,omitempty"`
	MaxTransfersPerExec *int             `json:"max_transfers_per_exec,omitempty"`
	RequireApprovalOver *decimal.Decimal `json:"require_approval_over,omitempty"`
	AllowAutoExecute    *bool            `json:"allow_auto_execute,omitempty"`
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory converts JSON policies to Go structs.
type PolicyFactory struct{}

// NewPolicyFactory creates a new policy factory.
func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{}
}

// ParsePatch parses a partial policy. Unknown fields are rejected so a typo
// does not silently leave a guardrail unchanged.
func (f *PolicyFactory) ParsePatch(jsonStr string) (autopilot.PolicyPatch, error) {
	pj, err := decodePolicyJSON(jsonStr)
	if err != nil {
		return autopilot.PolicyPatch{}, err
	}
	return f.FromJSON(pj)
}

// ParsePolicy parses a full policy, defaulting missing fields, and validates it.
func (f *PolicyFactory) ParsePolicy(jsonStr string) (autopilot.Policy, error) {
	patch, err := f.ParsePatch(jsonStr)
	if err != nil {
		return autopilot.Policy{}, err
	}
	pol := patch.Apply(autopilot.DefaultPolicy())
	if err := pol.Validate(); err != nil {
		return autopilot.Policy{}, err
	}
	return pol, nil
}

// FromJSON converts PolicyJSON to a patch, checking each present field.
func (f *PolicyFactory) FromJSON(pj PolicyJSON) (autopilot.PolicyPatch, error) {
	if pj.DailyActionSpendCap != nil && pj.DailyActionSpendCap.IsNegative() {
		return autopilot.PolicyPatch{}, &autopilot.PolicyError{Field: "daily_action_spend_cap", Reason: "must be >= 0"}
	}
	if pj.MaxTransfersPerExec != nil && *pj.MaxTransfersPerExec < 1 {
		return autopilot.PolicyPatch{}, &autopilot.PolicyError{Field: "max_transfers_per_exec", Reason: "must be >= 1"}
	}
	if pj.RequireApprovalOver != nil && pj.RequireApprovalOver.IsNegative() {
		return autopilot.PolicyPatch{}, &autopilot.PolicyError{Field: "require_approval_over", Reason: "must be >= 0"}
	}

	return autopilot.PolicyPatch{
		DailyActionSpendCap: pj.DailyActionSpendCap,
		MaxTransfersPerExec: pj.MaxTransfersPerExec,
		RequireApprovalOver: pj.RequireApprovalOver,
		AllowAutoExecute:    pj.AllowAutoExecute,
	}, nil
}

// ToJSON converts a Policy to PolicyJSON with every field set.
func (f *PolicyFactory) ToJSON(pol autopilot.Policy) PolicyJSON {
	capUSD := pol.DailyActionSpendCap
	maxTransfers := pol.MaxTransfersPerExec
	approval := pol.RequireApprovalOver
	auto := pol.AllowAutoExecute
	return PolicyJSON{
		DailyActionSpendCap: &capUSD,
		MaxTransfersPerExec: &maxTransfers,
		RequireApprovalOver: &approval,
		AllowAutoExecute:    &auto,
	}
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func decodePolicyJSON(jsonStr string) (PolicyJSON, error) {
	var pj PolicyJSON
	dec := json.NewDecoder(bytes.NewReader([]byte(jsonStr)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&pj); err != nil {
		return PolicyJSON{}, fmt.Errorf("%w: failed to parse policy JSON: %v", autopilot.ErrInvalidPolicy, err)
	}
	return pj, nil
}
