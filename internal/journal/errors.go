package journal

import (
	"errors"
	"fmt"
)

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountInactive      = errors.New("account is inactive")
	ErrDuplicateAccountCode = errors.New("account code already exists")
	ErrInvalidAccount       = errors.New("invalid account")
	ErrEntryNotFound        = errors.New("journal entry not found")
	ErrInvalidEntry         = errors.New("invalid journal entry")
	ErrUnbalancedEntry      = errors.New("journal entry is not balanced")
	ErrAlreadyPosted        = errors.New("journal entry already posted")

	// ErrPersistence marks failures of the underlying store. The original
	// cause stays in the chain.
	ErrPersistence = errors.New("persistence failure")
)

var domainErrors = []error{
	ErrAccountNotFound,
	ErrAccountInactive,
	ErrDuplicateAccountCode,
	ErrInvalidAccount,
	ErrEntryNotFound,
	ErrInvalidEntry,
	ErrUnbalancedEntry,
	ErrAlreadyPosted,
	ErrPersistence,
}

// storeErr passes domain errors through and tags everything else as a
// persistence failure.
func storeErr(op string, err error) error {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}

	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
