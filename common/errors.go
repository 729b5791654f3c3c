package common

import "errors"

// Ledger errors. Every failed operation returns one of them (possibly wrapped)
// and leaves the state untouched.
var (
	// ErrInvalidAmount is returned for negative inputs and for operations that
	// would drive an allowance negative.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInsufficientFunds is returned when a debit exceeds available balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInsufficientAllowance is returned when a delegated transfer exceeds
	// approved amount.
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	// ErrInvalidRecipient is returned when the target account is the null
	// or some other reserved account.
	ErrInvalidRecipient = errors.New("invalid recipient")
	// ErrAlreadyInitialized is returned on repeated token initialization.
	ErrAlreadyInitialized = errors.New("token is already initialized")
	// ErrNotInitialized is returned by operations called before token
	// initialization.
	ErrNotInitialized = errors.New("token is not initialized")
	// ErrOperationDisabled is returned by operations turned off in the
	// token configuration.
	ErrOperationDisabled = errors.New("operation is disabled")
)
