package autopilot

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Policy is the guardrail set every action is checked against.
type Policy struct {
	// DailyActionSpendCap bounds the summed cost of EXECUTED actions per sim day.
	DailyActionSpendCap decimal.Decimal `json:"dailyActionSpendCap"`
	// MaxTransfersPerExec truncates a rebalancing batch.
	MaxTransfersPerExec int `json:"maxTransfersPerExec"`
	// RequireApprovalOver flags (and keeps auto-execute away from) costlier actions.
	RequireApprovalOver decimal.Decimal `json:"requireApprovalOver"`
	AllowAutoExecute    bool            `json:"allowAutoExecute"`
}

// DefaultPolicy is the policy a fresh store starts with.
func DefaultPolicy() Policy {
	return Policy{
		DailyActionSpendCap: decimal.NewFromInt(75000),
		MaxTransfersPerExec: 6,
		RequireApprovalOver: decimal.NewFromInt(50000),
		AllowAutoExecute:    false,
	}
}

// PolicyPatch is a partial update; nil fields are left unchanged.
type PolicyPatch struct {
	DailyActionSpendCap *decimal.Decimal `json:"dailyActionSpendCap,omitempty"`
	MaxTransfersPerExec *int             `json:"maxTransfersPerExec,omitempty"`
	RequireApprovalOver *decimal.Decimal `json:"requireApprovalOver,omitempty"`
	AllowAutoExecute    *bool            `json:"allowAutoExecute,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p PolicyPatch) Empty() bool {
	return p.DailyActionSpendCap == nil && p.MaxTransfersPerExec == nil &&
		p.RequireApprovalOver == nil && p.AllowAutoExecute == nil
}

// Apply returns a copy of pol with the patch merged in.
func (p PolicyPatch) Apply(pol Policy) Policy {
	if p.DailyActionSpendCap != nil {
		pol.DailyActionSpendCap = *p.DailyActionSpendCap
	}
	if p.MaxTransfersPerExec != nil {
		pol.MaxTransfersPerExec = *p.MaxTransfersPerExec
	}
	if p.RequireApprovalOver != nil {
		pol.RequireApprovalOver = *p.RequireApprovalOver
	}
	if p.AllowAutoExecute != nil {
		pol.AllowAutoExecute = *p.AllowAutoExecute
	}
	return pol
}

// Validate checks the policy's numeric bounds.
func (p Policy) Validate() error {
	var errs []error
	if p.DailyActionSpendCap.IsNegative() {
		errs = append(errs, &PolicyError{Field: "dailyActionSpendCap", Reason: "must be >= 0"})
	}
	if p.MaxTransfersPerExec < 1 {
		errs = append(errs, &PolicyError{Field: "maxTransfersPerExec", Reason: "must be >= 1"})
	}
	if p.RequireApprovalOver.IsNegative() {
		errs = append(errs, &PolicyError{Field: "requireApprovalOver", Reason: "must be >= 0"})
	}
	return errors.Join(errs...)
}
