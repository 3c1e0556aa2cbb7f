package loan

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/notcool100/financial-management-system/internal/emi"
)

// Status represents the lifecycle state of a loan.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusClosed    Status = "closed"
	StatusDefaulted Status = "defaulted"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusActive, StatusClosed, StatusDefaulted:
		return true
	}

	return false
}

// IsTerminal reports whether no transition leaves the status.
func (s Status) IsTerminal() bool {
	return s == StatusClosed || s == StatusDefaulted
}

// Loan holds the terms fixed at origination plus the mutable repayment state.
// RemainingAmount only ever decreases, and reaches zero exactly when every
// installment has been paid.
type Loan struct {
	ID              uuid.UUID
	ClientID        uuid.UUID
	LoanTypeID      uuid.UUID
	Mode            emi.Mode
	Principal       decimal.Decimal
	InterestRate    decimal.Decimal // annual, in percent
	TenureMonths    int
	ProcessingFee   decimal.Decimal
	DisburseDate    time.Time
	EndDate         time.Time
	EMI             decimal.Decimal
	TotalInterest   decimal.Decimal
	TotalPayable    decimal.Decimal
	RemainingAmount decimal.Decimal
	Status          Status
	Notes           string
	CreatedBy       string
	CreatedAt       time.Time
	UpdatedAt       *time.Time
}

// Params returns the terms the schedule is computed from.
func (l *Loan) Params() emi.Params {
	return emi.Params{
		Principal:    l.Principal,
		Rate:         l.InterestRate,
		TenureMonths: l.TenureMonths,
		Mode:         l.Mode,
	}
}

// Installment is one row of a loan's repayment schedule.
type Installment struct {
	ID                 uuid.UUID
	LoanID             uuid.UUID
	Seq                int
	DueDate            time.Time
	EMI                decimal.Decimal
	Principal          decimal.Decimal
	Interest           decimal.Decimal
	RemainingPrincipal decimal.Decimal
	Paid               bool
	PaidDate           *time.Time
}

// Payment records the settlement of exactly one installment.
type Payment struct {
	ID                 uuid.UUID
	LoanID             uuid.UUID
	InstallmentSeq     int
	Amount             decimal.Decimal
	PaymentDate        time.Time
	Late               bool
	LateFee            decimal.Decimal
	RemainingPrincipal decimal.Decimal
	Notes              string
	JournalEntryID     *uuid.UUID
	CreatedBy          string
	CreatedAt          time.Time
}

// TransactionKind names a money-moving event on a loan.
type TransactionKind string

const (
	KindDisbursement  TransactionKind = "disbursement"
	KindProcessingFee TransactionKind = "processing_fee"
	KindRepayment     TransactionKind = "repayment"
	KindLateFee       TransactionKind = "late_fee"
)

// Transaction is an append-only ledger row consumed by reporting. Every
// disbursement, fee and repayment appends one.
type Transaction struct {
	ID             uuid.UUID
	LoanID         uuid.UUID
	Kind           TransactionKind
	Amount         decimal.Decimal
	Date           time.Time
	Description    string
	JournalEntryID *uuid.UUID
	CreatedBy      string
	CreatedAt      time.Time
}
