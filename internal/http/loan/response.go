package loan

import (
	"time"

	"github.com/google/uuid"

	"github.com/notcool100/financial-management-system/internal/amortization"
	"github.com/notcool100/financial-management-system/internal/emi"
	"github.com/notcool100/financial-management-system/internal/http/respond"
	"github.com/notcool100/financial-management-system/internal/journal"
	"github.com/notcool100/financial-management-system/internal/loan"
)

type loanResponse struct {
	ID              uuid.UUID     `json:"id"`
	ClientID        uuid.UUID     `json:"client_id"`
	LoanTypeID      uuid.UUID     `json:"loan_type_id"`
	Mode            emi.Mode      `json:"mode"`
	Principal       respond.Money `json:"principal"`
	InterestRate    string        `json:"interest_rate"`
	TenureMonths    int           `json:"tenure_months"`
	ProcessingFee   respond.Money `json:"processing_fee"`
	DisburseDate    string        `json:"disburse_date"`
	EndDate         string        `json:"end_date"`
	EMI             respond.Money `json:"emi"`
	TotalInterest   respond.Money `json:"total_interest"`
	TotalPayable    respond.Money `json:"total_payable"`
	RemainingAmount respond.Money `json:"remaining_amount"`
	Status          loan.Status   `json:"status"`
	Notes           string        `json:"notes,omitempty"`
	CreatedBy       string        `json:"created_by"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       *time.Time    `json:"updated_at,omitempty"`
}

func toLoanResponse(l *loan.Loan) loanResponse {
	return loanResponse{
		ID:              l.ID,
		ClientID:        l.ClientID,
		LoanTypeID:      l.LoanTypeID,
		Mode:            l.Mode,
		Principal:       respond.Money(l.Principal),
		InterestRate:    l.InterestRate.String(),
		TenureMonths:    l.TenureMonths,
		ProcessingFee:   respond.Money(l.ProcessingFee),
		DisburseDate:    l.DisburseDate.Format(time.DateOnly),
		EndDate:         l.EndDate.Format(time.DateOnly),
		EMI:             respond.Money(l.EMI),
		TotalInterest:   respond.Money(l.TotalInterest),
		TotalPayable:    respond.Money(l.TotalPayable),
		RemainingAmount: respond.Money(l.RemainingAmount),
		Status:          l.Status,
		Notes:           l.Notes,
		CreatedBy:       l.CreatedBy,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
}

func toLoanList(loans []*loan.Loan) []loanResponse {
	out := make([]loanResponse, 0, len(loans))
	for _, l := range loans {
		out = append(out, toLoanResponse(l))
	}

	return out
}

type installmentResponse struct {
	Seq                int           `json:"seq"`
	DueDate            string        `json:"due_date"`
	EMI                respond.Money `json:"emi"`
	Principal          respond.Money `json:"principal"`
	Interest           respond.Money `json:"interest"`
	RemainingPrincipal respond.Money `json:"remaining_principal"`
	Paid               bool          `json:"paid"`
	PaidDate           *time.Time    `json:"paid_date,omitempty"`
}

func toSchedule(items []*loan.Installment) []installmentResponse {
	out := make([]installmentResponse, 0, len(items))
	for _, i := range items {
		out = append(out, installmentResponse{
			Seq:                i.Seq,
			DueDate:            i.DueDate.Format(time.DateOnly),
			EMI:                respond.Money(i.EMI),
			Principal:          respond.Money(i.Principal),
			Interest:           respond.Money(i.Interest),
			RemainingPrincipal: respond.Money(i.RemainingPrincipal),
			Paid:               i.Paid,
			PaidDate:           i.PaidDate,
		})
	}

	return out
}

func rowsToSchedule(rows []amortization.Row) []installmentResponse {
	out := make([]installmentResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, installmentResponse{
			Seq:                r.Seq,
			DueDate:            r.DueDate.Format(time.DateOnly),
			EMI:                respond.Money(r.EMI),
			Principal:          respond.Money(r.Principal),
			Interest:           respond.Money(r.Interest),
			RemainingPrincipal: respond.Money(r.RemainingPrincipal),
		})
	}

	return out
}

type paymentResponse struct {
	ID                 uuid.UUID     `json:"id"`
	InstallmentSeq     int           `json:"installment"`
	Amount             respond.Money `json:"amount"`
	PaymentDate        time.Time     `json:"payment_date"`
	Late               bool          `json:"late"`
	LateFee            respond.Money `json:"late_fee"`
	RemainingPrincipal respond.Money `json:"remaining_principal"`
	Notes              string        `json:"notes,omitempty"`
	JournalEntryID     *uuid.UUID    `json:"journal_entry_id,omitempty"`
	CreatedBy          string        `json:"created_by"`
}

func toPaymentResponse(p *loan.Payment) paymentResponse {
	return paymentResponse{
		ID:                 p.ID,
		InstallmentSeq:     p.InstallmentSeq,
		Amount:             respond.Money(p.Amount),
		PaymentDate:        p.PaymentDate,
		Late:               p.Late,
		LateFee:            respond.Money(p.LateFee),
		RemainingPrincipal: respond.Money(p.RemainingPrincipal),
		Notes:              p.Notes,
		JournalEntryID:     p.JournalEntryID,
		CreatedBy:          p.CreatedBy,
	}
}

type transactionResponse struct {
	ID             uuid.UUID            `json:"id"`
	Kind           loan.TransactionKind `json:"kind"`
	Amount         respond.Money        `json:"amount"`
	Date           time.Time            `json:"date"`
	Description    string               `json:"description"`
	JournalEntryID *uuid.UUID           `json:"journal_entry_id,omitempty"`
	CreatedBy      string               `json:"created_by"`
}

type paymentResultResponse struct {
	Loan          loanResponse            `json:"loan"`
	Payment       paymentResponse         `json:"payment"`
	Closed        bool                    `json:"closed"`
	BalanceChange []journal.BalanceChange `json:"balance_changes"`
}

type calculateResponse struct {
	EMI           respond.Money         `json:"emi"`
	TotalInterest respond.Money         `json:"total_interest"`
	TotalAmount   respond.Money         `json:"total_amount"`
	Schedule      []installmentResponse `json:"schedule,omitempty"`
}
