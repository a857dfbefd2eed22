package cdp

import "errors"

// Kind groups engine errors by how callers should treat them.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindAuthorization      Kind = "authorization"
	KindInvariantViolation Kind = "invariant"
	KindResourceExhaustion Kind = "resource"
	KindUnknown            Kind = "unknown"
)

type kindError struct {
	kind Kind
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func newError(kind Kind, msg string) error {
	return &kindError{kind: kind, msg: "cdp: " + msg}
}

var (
	ErrZeroAmount        = newError(KindValidation, "amount must be positive")
	ErrLengthMismatch    = newError(KindValidation, "payees and shares length mismatch")
	ErrInvalidRatio      = newError(KindValidation, "liquidation ratio exceeds minimum collateral ratio")
	ErrInvalidFee        = newError(KindValidation, "liquidation fee must be below 100%")
	ErrInvalidCollateral = newError(KindValidation, "collateral type must not be empty")
	ErrInvalidParameter  = newError(KindValidation, "parameter must be non-negative")
	ErrInvalidBorrowRate = newError(KindValidation, "borrow rate must be at least RAY")
	ErrUnknownCollateral = newError(KindValidation, "unknown collateral type")
	ErrVaultNotFound     = newError(KindValidation, "vault not found")
	ErrNoPayees          = newError(KindValidation, "payee table must not be empty")
	ErrZeroShares        = newError(KindValidation, "payee shares must be positive")
	ErrZeroAddressPayee  = newError(KindValidation, "payee must not be the zero address")
	ErrDuplicatePayee    = newError(KindValidation, "duplicate payee")

	ErrNotOwner   = newError(KindAuthorization, "caller is not the vault owner")
	ErrNotManager = newError(KindAuthorization, "caller is not a manager")

	ErrInsufficientCollateral = newError(KindInvariantViolation, "insufficient collateral")
	ErrDebtLimitExceeded      = newError(KindInvariantViolation, "debt limit exceeded")
	ErrUndercollateralized    = newError(KindInvariantViolation, "vault would be undercollateralized")
	ErrNotUnhealthy           = newError(KindInvariantViolation, "vault is not unhealthy")
	ErrNoDebt                 = newError(KindInvariantViolation, "vault has no debt")
	ErrNoIncome               = newError(KindInvariantViolation, "no income to release")
	ErrNoPayeesConfigured     = newError(KindInvariantViolation, "no payees configured")

	ErrInsuranceDepleted = newError(KindResourceExhaustion, "insurance reserve depleted")

	// ErrInvalidRateIndex reports a stored cumulative rate below RAY.
	ErrInvalidRateIndex = newError(KindInvariantViolation, "cumulative rate index below RAY")

	ErrNotReady = errors.New("cdp: engine not initialised")
)

// KindOf classifies an error returned by the engine. Errors raised by
// collaborators are reported as KindUnknown.
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindUnknown
}
