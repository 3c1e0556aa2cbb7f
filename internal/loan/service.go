package loan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/notcool100/financial-management-system/internal/amortization"
	"github.com/notcool100/financial-management-system/internal/emi"
	"github.com/notcool100/financial-management-system/internal/journal"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=loan
type Repository interface {
	Begin(ctx context.Context) (Tx, error)

	GetLoan(ctx context.Context, id uuid.UUID) (*Loan, error)
	ListLoans(ctx context.Context, filter ListFilter) ([]*Loan, error)
	ListInstallments(ctx context.Context, loanID uuid.UUID) ([]*Installment, error)
	ListPayments(ctx context.Context, loanID uuid.UUID) ([]*Payment, error)
	ListTransactions(ctx context.Context, loanID uuid.UUID) ([]*Transaction, error)
}

// Tx is a unit of work spanning the loan tables and the ledger. Ledger returns
// a journal.Tx bound to the same underlying transaction, so loan state and
// postings commit or roll back together.
type Tx interface {
	CreateLoan(ctx context.Context, l *Loan) error
	CreateInstallments(ctx context.Context, items []*Installment) error
	LockLoan(ctx context.Context, id uuid.UUID) (*Loan, error)
	LockInstallment(ctx context.Context, loanID uuid.UUID, seq int) (*Installment, error)
	UpdateLoan(ctx context.Context, id uuid.UUID, upd Update) error
	MarkInstallmentPaid(ctx context.Context, id uuid.UUID, paidDate time.Time) error
	CountUnpaid(ctx context.Context, loanID uuid.UUID) (int, error)
	CreatePayment(ctx context.Context, p *Payment) error
	CreateTransaction(ctx context.Context, t *Transaction) error
	Ledger() journal.Tx
	Commit() error
	Rollback() error
}

// Ledger posts journal entries inside a transaction owned by the caller.
type Ledger interface {
	PostWithin(ctx context.Context, tx journal.Tx, params journal.CreateEntryParams) (*journal.Posting, error)
}

// Notifier is told about recorded payments after they commit. It must not
// block and has no say in the outcome.
type Notifier interface {
	PaymentRecorded(ctx context.Context, l *Loan, p *Payment)
}

// Accounts holds the chart-of-accounts codes that loan events post to.
type Accounts struct {
	Cash           string
	Portfolio      string
	InterestIncome string
	FeeIncome      string
	PenaltyIncome  string
	ClientAdvance  string
}

type Service struct {
	repo     Repository
	ledger   Ledger
	accounts Accounts
	notifier Notifier
	now      func() time.Time
}

// NewService wires the lifecycle manager. notifier may be nil.
func NewService(repo Repository, ledger Ledger, accounts Accounts, notifier Notifier) *Service {
	if notifier == nil {
		notifier = nopNotifier{}
	}

	return &Service{
		repo:     repo,
		ledger:   ledger,
		accounts: accounts,
		notifier: notifier,
		now:      time.Now,
	}
}

type nopNotifier struct{}

func (nopNotifier) PaymentRecorded(context.Context, *Loan, *Payment) {}

type ListFilter struct {
	Status   *Status
	ClientID *uuid.UUID
}

type CreateParams struct {
	ClientID      uuid.UUID
	LoanTypeID    uuid.UUID
	Mode          emi.Mode
	Principal     decimal.Decimal
	InterestRate  decimal.Decimal
	TenureMonths  int
	DisburseDate  time.Time
	ProcessingFee decimal.Decimal
	Notes         string
	CreatedBy     string
}

func (p CreateParams) terms() emi.Params {
	return emi.Params{
		Principal:    p.Principal,
		Rate:         p.InterestRate,
		TenureMonths: p.TenureMonths,
		Mode:         p.Mode,
	}
}

type PaymentParams struct {
	LoanID         uuid.UUID
	InstallmentSeq int
	Amount         decimal.Decimal
	PaymentDate    time.Time
	LateFee        decimal.Decimal
	Notes          string
	CreatedBy      string
}

// PaymentResult describes everything a recorded payment changed.
type PaymentResult struct {
	Loan        *Loan
	Installment *Installment
	Payment     *Payment
	Posting     *journal.Posting
	Closed      bool
}

// Calculate returns the EMI figures for the given terms without persisting
// anything.
func (s *Service) Calculate(p emi.Params) (emi.Result, error) {
	return emi.Calculate(p)
}

// Create validates the terms, builds the schedule and stores both in one
// transaction. The loan starts pending with RemainingAmount equal to the
// principal.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Loan, []*Installment, error) {
	if params.ClientID == uuid.Nil || params.LoanTypeID == uuid.Nil {
		return nil, nil, fmt.Errorf("%w: client and loan type are required", ErrInvalidLoanParameters)
	}

	if params.ProcessingFee.IsNegative() {
		return nil, nil, fmt.Errorf("%w: processing fee must not be negative", ErrInvalidLoanParameters)
	}

	if !emi.IsMoney(params.ProcessingFee) {
		return nil, nil, fmt.Errorf("%w: processing fee has fractions of a cent", ErrInvalidLoanParameters)
	}

	terms := params.terms()

	result, err := emi.Calculate(terms)
	if err != nil {
		return nil, nil, err
	}

	disbursed := params.DisburseDate
	if disbursed.IsZero() {
		disbursed = s.now()
	}

	disbursed = dateOnly(disbursed)

	rows, err := amortization.Build(terms, disbursed)
	if err != nil {
		return nil, nil, err
	}

	l := &Loan{
		ClientID:        params.ClientID,
		LoanTypeID:      params.LoanTypeID,
		Mode:            params.Mode,
		Principal:       params.Principal,
		InterestRate:    params.InterestRate,
		TenureMonths:    params.TenureMonths,
		ProcessingFee:   params.ProcessingFee,
		DisburseDate:    disbursed,
		EndDate:         rows[len(rows)-1].DueDate,
		EMI:             result.EMI,
		TotalInterest:   result.TotalInterest,
		TotalPayable:    result.TotalAmount,
		RemainingAmount: params.Principal,
		Status:          StatusPending,
		Notes:           params.Notes,
		CreatedBy:       params.CreatedBy,
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, nil, storeErr("begin", err)
	}
	defer tx.Rollback()

	if err := tx.CreateLoan(ctx, l); err != nil {
		return nil, nil, storeErr("create loan", err)
	}

	schedule := installmentsFromRows(l.ID, rows)
	if err := tx.CreateInstallments(ctx, schedule); err != nil {
		return nil, nil, storeErr("create installments", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, storeErr("commit", err)
	}

	slog.Info("loan created",
		"loan_id", l.ID,
		"mode", l.Mode,
		"principal", l.Principal.StringFixed(emi.Scale),
		"emi", l.EMI.StringFixed(emi.Scale),
	)

	return l, schedule, nil
}

// Disburse activates a pending loan and posts the disbursement: the principal
// moves from cash to the loan portfolio, and any processing fee is taken into
// fee income.
func (s *Service) Disburse(ctx context.Context, id uuid.UUID, actor string) (*Loan, error) {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, storeErr("begin", err)
	}
	defer tx.Rollback()

	l, err := tx.LockLoan(ctx, id)
	if err != nil {
		return nil, storeErr("lock loan", err)
	}

	if l.Status != StatusPending {
		return nil, fmt.Errorf("%w: cannot disburse a %s loan", ErrInvalidStateTransition, l.Status)
	}

	details := []journal.DetailParams{
		{AccountCode: s.accounts.Portfolio, Debit: l.Principal, Description: "loan principal disbursed"},
		{AccountCode: s.accounts.Cash, Credit: l.Principal, Description: "loan principal disbursed"},
	}

	if l.ProcessingFee.IsPositive() {
		details = append(details,
			journal.DetailParams{AccountCode: s.accounts.Cash, Debit: l.ProcessingFee, Description: "processing fee"},
			journal.DetailParams{AccountCode: s.accounts.FeeIncome, Credit: l.ProcessingFee, Description: "processing fee"},
		)
	}

	posting, err := s.ledger.PostWithin(ctx, tx.Ledger(), journal.CreateEntryParams{
		Date:        l.DisburseDate,
		Reference:   journal.NewReference("DIS", l.DisburseDate),
		Description: fmt.Sprintf("Disbursement of loan %s", l.ID),
		Details:     details,
		CreatedBy:   actor,
	})
	if err != nil {
		return nil, fmt.Errorf("posting disbursement: %w", err)
	}

	active := StatusActive
	if err := tx.UpdateLoan(ctx, l.ID, Update{Status: &active}); err != nil {
		return nil, storeErr("update loan", err)
	}

	entryID := posting.Entry.ID

	events := []*Transaction{{
		LoanID:         l.ID,
		Kind:           KindDisbursement,
		Amount:         l.Principal,
		Date:           l.DisburseDate,
		Description:    "Loan disbursement",
		JournalEntryID: &entryID,
		CreatedBy:      actor,
	}}

	if l.ProcessingFee.IsPositive() {
		events = append(events, &Transaction{
			LoanID:         l.ID,
			Kind:           KindProcessingFee,
			Amount:         l.ProcessingFee,
			Date:           l.DisburseDate,
			Description:    "Processing fee",
			JournalEntryID: &entryID,
			CreatedBy:      actor,
		})
	}

	for _, t := range events {
		if err := tx.CreateTransaction(ctx, t); err != nil {
			return nil, storeErr("create transaction", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr("commit", err)
	}

	l.Status = active

	slog.Info("loan disbursed", "loan_id", l.ID, "entry_id", entryID, "actor", actor)

	return l, nil
}

// RecordPayment settles one installment. The installment, the loan balance,
// the payment and ledger rows and a possible close are applied atomically.
func (s *Service) RecordPayment(ctx context.Context, params PaymentParams) (*PaymentResult, error) {
	if err := validatePayment(params); err != nil {
		return nil, err
	}

	paidAt := params.PaymentDate
	if paidAt.IsZero() {
		paidAt = s.now()
	}

	lateFee := params.LateFee

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, storeErr("begin", err)
	}
	defer tx.Rollback()

	l, err := tx.LockLoan(ctx, params.LoanID)
	if err != nil {
		return nil, storeErr("lock loan", err)
	}

	if l.Status != StatusActive {
		return nil, fmt.Errorf("%w: cannot accept payments on a %s loan", ErrInvalidStateTransition, l.Status)
	}

	inst, err := tx.LockInstallment(ctx, l.ID, params.InstallmentSeq)
	if err != nil {
		return nil, storeErr("lock installment", err)
	}

	if inst.Paid {
		return nil, fmt.Errorf("%w: installment %d", ErrInstallmentAlreadyPaid, inst.Seq)
	}

	if params.Amount.LessThan(inst.EMI) {
		return nil, fmt.Errorf("%w: got %s, installment %d is %s",
			ErrInsufficientPaymentAmount, params.Amount.StringFixed(emi.Scale), inst.Seq, inst.EMI.StringFixed(emi.Scale))
	}

	if err := tx.MarkInstallmentPaid(ctx, inst.ID, paidAt); err != nil {
		return nil, storeErr("mark installment paid", err)
	}

	unpaid, err := tx.CountUnpaid(ctx, l.ID)
	if err != nil {
		return nil, storeErr("count unpaid", err)
	}

	remaining := l.RemainingAmount.Sub(inst.Principal)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	upd := Update{RemainingAmount: &remaining}

	closed := unpaid == 0
	if closed {
		remaining = decimal.Zero
		upd.Status = new(StatusClosed)
	}

	if err := tx.UpdateLoan(ctx, l.ID, upd); err != nil {
		return nil, storeErr("update loan", err)
	}

	posting, err := s.ledger.PostWithin(ctx, tx.Ledger(), journal.CreateEntryParams{
		Date:        paidAt,
		Reference:   journal.NewReference("REP", paidAt),
		Description: fmt.Sprintf("Repayment of installment %d on loan %s", inst.Seq, l.ID),
		Details:     s.repaymentLines(inst, params.Amount, lateFee),
		CreatedBy:   params.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("posting repayment: %w", err)
	}

	entryID := posting.Entry.ID

	p := &Payment{
		LoanID:             l.ID,
		InstallmentSeq:     inst.Seq,
		Amount:             params.Amount,
		PaymentDate:        paidAt,
		Late:               isLate(paidAt, inst.DueDate),
		LateFee:            lateFee,
		RemainingPrincipal: remaining,
		Notes:              params.Notes,
		JournalEntryID:     &entryID,
		CreatedBy:          params.CreatedBy,
	}
	if err := tx.CreatePayment(ctx, p); err != nil {
		return nil, storeErr("create payment", err)
	}

	events := []*Transaction{{
		LoanID:         l.ID,
		Kind:           KindRepayment,
		Amount:         params.Amount,
		Date:           paidAt,
		Description:    fmt.Sprintf("Installment %d", inst.Seq),
		JournalEntryID: &entryID,
		CreatedBy:      params.CreatedBy,
	}}

	if lateFee.IsPositive() {
		events = append(events, &Transaction{
			LoanID:         l.ID,
			Kind:           KindLateFee,
			Amount:         lateFee,
			Date:           paidAt,
			Description:    fmt.Sprintf("Late fee on installment %d", inst.Seq),
			JournalEntryID: &entryID,
			CreatedBy:      params.CreatedBy,
		})
	}

	for _, t := range events {
		if err := tx.CreateTransaction(ctx, t); err != nil {
			return nil, storeErr("create transaction", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr("commit", err)
	}

	upd.Apply(l)

	inst.Paid = true
	inst.PaidDate = &paidAt

	slog.Info("loan payment recorded",
		"loan_id", l.ID,
		"installment", inst.Seq,
		"amount", params.Amount.StringFixed(emi.Scale),
		"late", p.Late,
		"remaining", remaining.StringFixed(emi.Scale),
	)

	if closed {
		slog.Info("loan closed", "loan_id", l.ID)
	}

	s.notifier.PaymentRecorded(ctx, l, p)

	return &PaymentResult{
		Loan:        l,
		Installment: inst,
		Payment:     p,
		Posting:     posting,
		Closed:      closed,
	}, nil
}

// repaymentLines splits a repayment into its ledger lines. Cash receives the
// full amount plus any late fee; anything paid above the EMI is held as a
// client advance.
func (s *Service) repaymentLines(inst *Installment, amount, lateFee decimal.Decimal) []journal.DetailParams {
	lines := []journal.DetailParams{
		{AccountCode: s.accounts.Cash, Debit: amount.Add(lateFee), Description: "repayment received"},
		{AccountCode: s.accounts.Portfolio, Credit: inst.Principal, Description: "principal"},
	}

	if inst.Interest.IsPositive() {
		lines = append(lines, journal.DetailParams{AccountCode: s.accounts.InterestIncome, Credit: inst.Interest, Description: "interest"})
	}

	if lateFee.IsPositive() {
		lines = append(lines, journal.DetailParams{AccountCode: s.accounts.PenaltyIncome, Credit: lateFee, Description: "late fee"})
	}

	if excess := amount.Sub(inst.EMI); excess.IsPositive() {
		lines = append(lines, journal.DetailParams{AccountCode: s.accounts.ClientAdvance, Credit: excess, Description: "overpayment"})
	}

	return lines
}

// MarkDefaulted moves an active loan to the terminal defaulted state.
func (s *Service) MarkDefaulted(ctx context.Context, id uuid.UUID, actor string) (*Loan, error) {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, storeErr("begin", err)
	}
	defer tx.Rollback()

	l, err := tx.LockLoan(ctx, id)
	if err != nil {
		return nil, storeErr("lock loan", err)
	}

	if l.Status != StatusActive {
		return nil, fmt.Errorf("%w: cannot default a %s loan", ErrInvalidStateTransition, l.Status)
	}

	upd := Update{Status: new(StatusDefaulted)}
	if err := tx.UpdateLoan(ctx, l.ID, upd); err != nil {
		return nil, storeErr("update loan", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr("commit", err)
	}

	upd.Apply(l)

	slog.Info("loan defaulted", "loan_id", l.ID, "actor", actor)

	return l, nil
}

// SetStatus drives the administrative transitions. Only activation and
// default can be requested; closing happens when the last installment is paid.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status Status, actor string) (*Loan, error) {
	switch status {
	case StatusActive:
		return s.Disburse(ctx, id, actor)
	case StatusDefaulted:
		return s.MarkDefaulted(ctx, id, actor)
	}

	if !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidStateTransition, status)
	}

	return nil, fmt.Errorf("%w: %s cannot be set directly", ErrInvalidStateTransition, status)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Loan, error) {
	l, err := s.repo.GetLoan(ctx, id)
	if err != nil {
		return nil, storeErr("get loan", err)
	}

	return l, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Loan, error) {
	loans, err := s.repo.ListLoans(ctx, filter)
	if err != nil {
		return nil, storeErr("list loans", err)
	}

	return loans, nil
}

func (s *Service) Schedule(ctx context.Context, id uuid.UUID) ([]*Installment, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	items, err := s.repo.ListInstallments(ctx, id)
	if err != nil {
		return nil, storeErr("list installments", err)
	}

	return items, nil
}

func (s *Service) Payments(ctx context.Context, id uuid.UUID) ([]*Payment, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	payments, err := s.repo.ListPayments(ctx, id)
	if err != nil {
		return nil, storeErr("list payments", err)
	}

	return payments, nil
}

func (s *Service) Transactions(ctx context.Context, id uuid.UUID) ([]*Transaction, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	txs, err := s.repo.ListTransactions(ctx, id)
	if err != nil {
		return nil, storeErr("list transactions", err)
	}

	return txs, nil
}

func validatePayment(p PaymentParams) error {
	if p.LoanID == uuid.Nil {
		return fmt.Errorf("%w: loan is required", ErrInvalidPayment)
	}

	if p.InstallmentSeq < 1 {
		return fmt.Errorf("%w: installment must be 1 or greater", ErrInvalidPayment)
	}

	if !p.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidPayment)
	}

	if p.LateFee.IsNegative() {
		return fmt.Errorf("%w: late fee must not be negative", ErrInvalidPayment)
	}

	if !emi.IsMoney(p.Amount) || !emi.IsMoney(p.LateFee) {
		return fmt.Errorf("%w: amounts must be whole cents", ErrInvalidPayment)
	}

	return nil
}

func installmentsFromRows(loanID uuid.UUID, rows []amortization.Row) []*Installment {
	items := make([]*Installment, len(rows))
	for i, r := range rows {
		items[i] = &Installment{
			LoanID:             loanID,
			Seq:                r.Seq,
			DueDate:            r.DueDate,
			EMI:                r.EMI,
			Principal:          r.Principal,
			Interest:           r.Interest,
			RemainingPrincipal: r.RemainingPrincipal,
		}
	}

	return items
}

// isLate compares calendar days, so a payment later on the due date is on time.
func isLate(paid, due time.Time) bool {
	return dateOnly(paid).After(dateOnly(due))
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
