package loan

import (
	"errors"
	"fmt"

	"github.com/notcool100/financial-management-system/internal/emi"
)

var (
	ErrNotFound                  = errors.New("loan not found")
	ErrInvalidStateTransition    = errors.New("invalid loan state transition")
	ErrInstallmentNotFound       = errors.New("installment not found")
	ErrInstallmentAlreadyPaid    = errors.New("installment already paid")
	ErrInsufficientPaymentAmount = errors.New("payment amount is less than the installment")
	ErrInvalidPayment            = errors.New("invalid payment")
	ErrPersistence               = errors.New("persistence failure")

	ErrInvalidLoanParameters = emi.ErrInvalidLoanParameters
)

var domainErrors = []error{
	ErrNotFound,
	ErrInvalidStateTransition,
	ErrInstallmentNotFound,
	ErrInstallmentAlreadyPaid,
	ErrInsufficientPaymentAmount,
	ErrInvalidPayment,
	ErrInvalidLoanParameters,
	ErrPersistence,
}

func storeErr(op string, err error) error {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}

	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
