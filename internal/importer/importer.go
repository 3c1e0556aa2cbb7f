package importer

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/notcool100/financial-management-system/internal/loan"
)

// Row is one parsed repayment, tagged with its 1-based line in the file.
type Row struct {
	Line   int
	Params loan.PaymentParams
}

// RowError reports a line that could not be turned into a repayment.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Batch is the outcome of parsing one file. Malformed lines do not stop the
// parse; they are collected in Errors.
type Batch struct {
	Format string
	Rows   []Row
	Errors []*RowError
}

// Outcome is the result of applying one row through the loan service.
type Outcome struct {
	Line           int
	LoanID         uuid.UUID
	InstallmentSeq int
	PaymentID      uuid.UUID
	Closed         bool
	Err            error
}

// Summary counts the outcomes of an applied batch.
type Summary struct {
	Applied int
	Failed  int
	Skipped int
}
