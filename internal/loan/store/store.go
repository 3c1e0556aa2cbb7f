package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/notcool100/financial-management-system/internal/emi"
	"github.com/notcool100/financial-management-system/internal/journal"
	journalstore "github.com/notcool100/financial-management-system/internal/journal/store"
	"github.com/notcool100/financial-management-system/internal/loan"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const selectLoanColumns = `
	id, client_id, loan_type_id, mode, principal, interest_rate, tenure_months, processing_fee,
	disburse_date, end_date, emi, total_interest, total_payable, remaining_amount, status, notes,
	created_by, created_at, updated_at
`

// scanLoan expects the columns of selectLoanColumns in order.
func scanLoan(s scanner) (*loan.Loan, error) {
	var l loan.Loan

	var modeStr, statusStr string

	if err := s.Scan(
		&l.ID, &l.ClientID, &l.LoanTypeID, &modeStr, &l.Principal, &l.InterestRate, &l.TenureMonths, &l.ProcessingFee,
		&l.DisburseDate, &l.EndDate, &l.EMI, &l.TotalInterest, &l.TotalPayable, &l.RemainingAmount, &statusStr, &l.Notes,
		&l.CreatedBy, &l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return nil, err
	}

	l.Mode = emi.Mode(modeStr)
	l.Status = loan.Status(statusStr)

	return &l, nil
}

const selectInstallmentColumns = `
	id, loan_id, seq, due_date, emi, principal, interest, remaining_principal, paid, paid_date
`

func scanInstallment(s scanner) (*loan.Installment, error) {
	var i loan.Installment

	if err := s.Scan(
		&i.ID, &i.LoanID, &i.Seq, &i.DueDate, &i.EMI, &i.Principal, &i.Interest, &i.RemainingPrincipal, &i.Paid, &i.PaidDate,
	); err != nil {
		return nil, err
	}

	return &i, nil
}

func (s *Store) GetLoan(ctx context.Context, id uuid.UUID) (*loan.Loan, error) {
	query := `SELECT ` + selectLoanColumns + ` FROM loans WHERE id = $1`

	l, err := scanLoan(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, loan.ErrNotFound
		}

		return nil, fmt.Errorf("getting loan: %w", err)
	}

	return l, nil
}

func (s *Store) ListLoans(ctx context.Context, filter loan.ListFilter) ([]*loan.Loan, error) {
	query := `SELECT ` + selectLoanColumns + ` FROM loans WHERE 1 = 1`

	var args []any

	argIdx := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)

		args = append(args, *filter.Status)
		argIdx++
	}

	if filter.ClientID != nil {
		query += fmt.Sprintf(" AND client_id = $%d", argIdx)

		args = append(args, *filter.ClientID)
	}

	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing loans: %w", err)
	}
	defer rows.Close()

	var loans []*loan.Loan

	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning loan: %w", err)
		}

		loans = append(loans, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating loans: %w", err)
	}

	return loans, nil
}

func (s *Store) ListInstallments(ctx context.Context, loanID uuid.UUID) ([]*loan.Installment, error) {
	query := `SELECT ` + selectInstallmentColumns + ` FROM loan_installments WHERE loan_id = $1 ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, loanID)
	if err != nil {
		return nil, fmt.Errorf("listing installments: %w", err)
	}
	defer rows.Close()

	var items []*loan.Installment

	for rows.Next() {
		i, err := scanInstallment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning installment: %w", err)
		}

		items = append(items, i)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating installments: %w", err)
	}

	return items, nil
}

func (s *Store) ListPayments(ctx context.Context, loanID uuid.UUID) ([]*loan.Payment, error) {
	query := `
		SELECT id, loan_id, installment_seq, amount, payment_date, late, late_fee, remaining_principal,
			notes, journal_entry_id, created_by, created_at
		FROM loan_payments
		WHERE loan_id = $1
		ORDER BY payment_date, installment_seq
	`

	rows, err := s.db.QueryContext(ctx, query, loanID)
	if err != nil {
		return nil, fmt.Errorf("listing payments: %w", err)
	}
	defer rows.Close()

	var payments []*loan.Payment

	for rows.Next() {
		var p loan.Payment
		if err := rows.Scan(
			&p.ID, &p.LoanID, &p.InstallmentSeq, &p.Amount, &p.PaymentDate, &p.Late, &p.LateFee, &p.RemainingPrincipal,
			&p.Notes, &p.JournalEntryID, &p.CreatedBy, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning payment: %w", err)
		}

		payments = append(payments, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating payments: %w", err)
	}

	return payments, nil
}

func (s *Store) ListTransactions(ctx context.Context, loanID uuid.UUID) ([]*loan.Transaction, error) {
	query := `
		SELECT id, loan_id, kind, amount, tx_date, description, journal_entry_id, created_by, created_at
		FROM loan_transactions
		WHERE loan_id = $1
		ORDER BY tx_date, created_at
	`

	rows, err := s.db.QueryContext(ctx, query, loanID)
	if err != nil {
		return nil, fmt.Errorf("listing loan transactions: %w", err)
	}
	defer rows.Close()

	var txs []*loan.Transaction

	for rows.Next() {
		var t loan.Transaction

		var kind string

		if err := rows.Scan(
			&t.ID, &t.LoanID, &kind, &t.Amount, &t.Date, &t.Description, &t.JournalEntryID, &t.CreatedBy, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning loan transaction: %w", err)
		}

		t.Kind = loan.TransactionKind(kind)
		txs = append(txs, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating loan transactions: %w", err)
	}

	return txs, nil
}

func (s *Store) Begin(ctx context.Context) (loan.Tx, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning loan tx: %w", err)
	}

	return &loanTx{tx: dbTx, ledger: journalstore.NewTx(dbTx)}, nil
}

type loanTx struct {
	tx     *sql.Tx
	ledger *journalstore.Tx
}

func (t *loanTx) Commit() error   { return t.tx.Commit() }
func (t *loanTx) Rollback() error { return t.tx.Rollback() }

// Ledger shares the loan transaction, so postings commit with the loan rows.
func (t *loanTx) Ledger() journal.Tx { return t.ledger }

func (t *loanTx) CreateLoan(ctx context.Context, l *loan.Loan) error {
	query := `
		INSERT INTO loans (
			client_id, loan_type_id, mode, principal, interest_rate, tenure_months, processing_fee,
			disburse_date, end_date, emi, total_interest, total_payable, remaining_amount, status, notes,
			created_by, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW())
		RETURNING id, created_at
	`

	err := t.tx.QueryRowContext(ctx, query,
		l.ClientID,
		l.LoanTypeID,
		l.Mode,
		l.Principal,
		l.InterestRate,
		l.TenureMonths,
		l.ProcessingFee,
		l.DisburseDate,
		l.EndDate,
		l.EMI,
		l.TotalInterest,
		l.TotalPayable,
		l.RemainingAmount,
		l.Status,
		l.Notes,
		l.CreatedBy,
	).Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating loan: %w", err)
	}

	return nil
}

func (t *loanTx) CreateInstallments(ctx context.Context, items []*loan.Installment) error {
	query := `
		INSERT INTO loan_installments (loan_id, seq, due_date, emi, principal, interest, remaining_principal, paid)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE)
		RETURNING id
	`

	for _, i := range items {
		err := t.tx.QueryRowContext(ctx, query,
			i.LoanID,
			i.Seq,
			i.DueDate,
			i.EMI,
			i.Principal,
			i.Interest,
			i.RemainingPrincipal,
		).Scan(&i.ID)
		if err != nil {
			return fmt.Errorf("creating installment %d: %w", i.Seq, err)
		}
	}

	return nil
}

func (t *loanTx) LockLoan(ctx context.Context, id uuid.UUID) (*loan.Loan, error) {
	query := `SELECT ` + selectLoanColumns + ` FROM loans WHERE id = $1 FOR UPDATE`

	l, err := scanLoan(t.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, loan.ErrNotFound
		}

		return nil, fmt.Errorf("locking loan: %w", err)
	}

	return l, nil
}

func (t *loanTx) LockInstallment(ctx context.Context, loanID uuid.UUID, seq int) (*loan.Installment, error) {
	query := `SELECT ` + selectInstallmentColumns + `
		FROM loan_installments
		WHERE loan_id = $1 AND seq = $2
		FOR UPDATE`

	i, err := scanInstallment(t.tx.QueryRowContext(ctx, query, loanID, seq))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", loan.ErrInstallmentNotFound, seq)
		}

		return nil, fmt.Errorf("locking installment: %w", err)
	}

	return i, nil
}

// UpdateLoan applies upd with one fixed statement; nil fields keep their
// stored value through COALESCE.
func (t *loanTx) UpdateLoan(ctx context.Context, id uuid.UUID, upd loan.Update) error {
	query := `
		UPDATE loans
		SET status = COALESCE($2, status),
			remaining_amount = COALESCE($3, remaining_amount),
			updated_at = NOW()
		WHERE id = $1
	`

	res, err := t.tx.ExecContext(ctx, query, id, upd.Status, upd.RemainingAmount)
	if err != nil {
		return fmt.Errorf("updating loan: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating loan: %w", err)
	}

	if n == 0 {
		return loan.ErrNotFound
	}

	return nil
}

func (t *loanTx) MarkInstallmentPaid(ctx context.Context, id uuid.UUID, paidDate time.Time) error {
	query := `
		UPDATE loan_installments
		SET paid = TRUE, paid_date = $2
		WHERE id = $1 AND NOT paid
	`

	res, err := t.tx.ExecContext(ctx, query, id, paidDate)
	if err != nil {
		return fmt.Errorf("marking installment paid: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("marking installment paid: %w", err)
	}

	if n == 0 {
		return loan.ErrInstallmentAlreadyPaid
	}

	return nil
}

func (t *loanTx) CountUnpaid(ctx context.Context, loanID uuid.UUID) (int, error) {
	var n int

	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM loan_installments WHERE loan_id = $1 AND NOT paid`, loanID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting unpaid installments: %w", err)
	}

	return n, nil
}

func (t *loanTx) CreatePayment(ctx context.Context, p *loan.Payment) error {
	query := `
		INSERT INTO loan_payments (
			loan_id, installment_seq, amount, payment_date, late, late_fee, remaining_principal,
			notes, journal_entry_id, created_by, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		RETURNING id, created_at
	`

	err := t.tx.QueryRowContext(ctx, query,
		p.LoanID,
		p.InstallmentSeq,
		p.Amount,
		p.PaymentDate,
		p.Late,
		p.LateFee,
		p.RemainingPrincipal,
		p.Notes,
		p.JournalEntryID,
		p.CreatedBy,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return loan.ErrInstallmentAlreadyPaid
		}

		return fmt.Errorf("creating payment: %w", err)
	}

	return nil
}

func (t *loanTx) CreateTransaction(ctx context.Context, tr *loan.Transaction) error {
	query := `
		INSERT INTO loan_transactions (loan_id, kind, amount, tx_date, description, journal_entry_id, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id, created_at
	`

	err := t.tx.QueryRowContext(ctx, query,
		tr.LoanID,
		tr.Kind,
		tr.Amount,
		tr.Date,
		tr.Description,
		tr.JournalEntryID,
		tr.CreatedBy,
	).Scan(&tr.ID, &tr.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating loan transaction: %w", err)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
