package memstore

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/notcool100/financial-management-system/internal/journal"
	"github.com/notcool100/financial-management-system/internal/loan"
)

type LoanRepo struct {
	s *Store
}

func (r *LoanRepo) Begin(ctx context.Context) (loan.Tx, error) {
	tx, err := r.s.begin(ctx)
	if err != nil {
		return nil, err
	}

	return tx, nil
}

func (r *LoanRepo) GetLoan(_ context.Context, id uuid.UUID) (*loan.Loan, error) {
	var l *loan.Loan

	r.s.read(func(st *state) {
		if found, ok := st.loans[id]; ok {
			l = clonePtr(found)
		}
	})

	if l == nil {
		return nil, loan.ErrNotFound
	}

	return l, nil
}

func (r *LoanRepo) ListLoans(_ context.Context, filter loan.ListFilter) ([]*loan.Loan, error) {
	var out []*loan.Loan

	r.s.read(func(st *state) {
		for _, l := range st.loans {
			if filter.Status != nil && l.Status != *filter.Status {
				continue
			}

			if filter.ClientID != nil && l.ClientID != *filter.ClientID {
				continue
			}

			out = append(out, clonePtr(l))
		}
	})

	slices.SortFunc(out, func(a, b *loan.Loan) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return out, nil
}

func (r *LoanRepo) ListInstallments(_ context.Context, loanID uuid.UUID) ([]*loan.Installment, error) {
	var out []*loan.Installment

	r.s.read(func(st *state) {
		out = cloneAll(st.installments[loanID], clonePtr[loan.Installment])
	})

	return out, nil
}

func (r *LoanRepo) ListPayments(_ context.Context, loanID uuid.UUID) ([]*loan.Payment, error) {
	var out []*loan.Payment

	r.s.read(func(st *state) {
		out = cloneAll(st.payments[loanID], clonePtr[loan.Payment])
	})

	return out, nil
}

func (r *LoanRepo) ListTransactions(_ context.Context, loanID uuid.UUID) ([]*loan.Transaction, error) {
	var out []*loan.Transaction

	r.s.read(func(st *state) {
		out = cloneAll(st.transactions[loanID], clonePtr[loan.Transaction])
	})

	return out, nil
}

func (tx *Tx) CreateLoan(_ context.Context, l *loan.Loan) error {
	l.ID = uuid.New()
	l.CreatedAt = tx.store.now()
	tx.state.loans[l.ID] = clonePtr(l)

	return nil
}

func (tx *Tx) CreateInstallments(_ context.Context, items []*loan.Installment) error {
	for _, it := range items {
		it.ID = uuid.New()
		tx.state.installments[it.LoanID] = append(tx.state.installments[it.LoanID], clonePtr(it))
	}

	return nil
}

func (tx *Tx) LockLoan(_ context.Context, id uuid.UUID) (*loan.Loan, error) {
	l, ok := tx.state.loans[id]
	if !ok {
		return nil, loan.ErrNotFound
	}

	return clonePtr(l), nil
}

func (tx *Tx) LockInstallment(_ context.Context, loanID uuid.UUID, seq int) (*loan.Installment, error) {
	for _, it := range tx.state.installments[loanID] {
		if it.Seq == seq {
			return clonePtr(it), nil
		}
	}

	return nil, loan.ErrInstallmentNotFound
}

func (tx *Tx) UpdateLoan(_ context.Context, id uuid.UUID, upd loan.Update) error {
	l, ok := tx.state.loans[id]
	if !ok {
		return loan.ErrNotFound
	}

	upd.Apply(l)
	l.UpdatedAt = new(tx.store.now())

	return nil
}

func (tx *Tx) MarkInstallmentPaid(_ context.Context, id uuid.UUID, paidDate time.Time) error {
	for _, items := range tx.state.installments {
		for _, it := range items {
			if it.ID == id {
				it.Paid = true
				it.PaidDate = &paidDate

				return nil
			}
		}
	}

	return loan.ErrInstallmentNotFound
}

func (tx *Tx) CountUnpaid(_ context.Context, loanID uuid.UUID) (int, error) {
	n := 0

	for _, it := range tx.state.installments[loanID] {
		if !it.Paid {
			n++
		}
	}

	return n, nil
}

func (tx *Tx) CreatePayment(_ context.Context, p *loan.Payment) error {
	p.ID = uuid.New()
	p.CreatedAt = tx.store.now()

	tx.state.payments[p.LoanID] = append(tx.state.payments[p.LoanID], clonePtr(p))

	return nil
}

func (tx *Tx) CreateTransaction(_ context.Context, t *loan.Transaction) error {
	t.ID = uuid.New()
	t.CreatedAt = tx.store.now()

	tx.state.transactions[t.LoanID] = append(tx.state.transactions[t.LoanID], clonePtr(t))

	return nil
}

// Ledger returns tx itself: loan and ledger changes share one working copy.
func (tx *Tx) Ledger() journal.Tx {
	return tx
}
