package ledger

import "errors"

var (
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidTenure     = errors.New("tenure must be at least one month")
	ErrInvalidTransition = errors.New("loan is no longer pending")
	ErrNoActiveLoan      = errors.New("no active loan")
	ErrUnknownStaff      = errors.New("staff not found")
	ErrStaffHasRecords   = errors.New("staff still has payments or loans")
)
