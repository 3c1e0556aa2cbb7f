package memstore

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/notcool100/financial-management-system/internal/journal"
)

var ErrTxDone = errors.New("memstore: transaction already committed or rolled back")

type JournalRepo struct {
	s *Store
}

func (r *JournalRepo) Begin(ctx context.Context) (journal.Tx, error) {
	tx, err := r.s.begin(ctx)
	if err != nil {
		return nil, err
	}

	return tx, nil
}

func (r *JournalRepo) CreateAccount(ctx context.Context, a *journal.Account) error {
	tx, err := r.s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, existing := range tx.state.accounts {
		if existing.Code == a.Code {
			return journal.ErrDuplicateAccountCode
		}
	}

	a.ID = uuid.New()
	a.CreatedAt = r.s.now()
	tx.state.accounts[a.ID] = clonePtr(a)

	return tx.Commit()
}

func (r *JournalRepo) GetAccount(_ context.Context, id uuid.UUID) (*journal.Account, error) {
	var a *journal.Account

	r.s.read(func(st *state) {
		if found, ok := st.accounts[id]; ok {
			a = clonePtr(found)
		}
	})

	if a == nil {
		return nil, journal.ErrAccountNotFound
	}

	return a, nil
}

func (r *JournalRepo) ListAccounts(_ context.Context, filter journal.AccountFilter) ([]*journal.Account, error) {
	var out []*journal.Account

	r.s.read(func(st *state) {
		for _, a := range st.accounts {
			if filter.Type != nil && a.Type != *filter.Type {
				continue
			}

			if filter.Active != nil && a.Active != *filter.Active {
				continue
			}

			out = append(out, clonePtr(a))
		}
	})

	slices.SortFunc(out, func(a, b *journal.Account) int { return cmp.Compare(a.Code, b.Code) })

	return out, nil
}

func (r *JournalRepo) UpdateAccount(ctx context.Context, id uuid.UUID, upd journal.AccountUpdate) (*journal.Account, error) {
	tx, err := r.s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	a, ok := tx.state.accounts[id]
	if !ok {
		return nil, journal.ErrAccountNotFound
	}

	if upd.Name != nil {
		a.Name = *upd.Name
	}

	if upd.ParentID != nil {
		a.ParentID = new(*upd.ParentID)
	}

	if upd.Active != nil {
		a.Active = *upd.Active
	}

	a.UpdatedAt = new(r.s.now())
	out := clonePtr(a)

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return out, nil
}

func (r *JournalRepo) GetEntry(_ context.Context, id uuid.UUID) (*journal.Entry, error) {
	var e *journal.Entry

	r.s.read(func(st *state) {
		if found, ok := st.entries[id]; ok {
			e = cloneEntry(found)
		}
	})

	if e == nil {
		return nil, journal.ErrEntryNotFound
	}

	return e, nil
}

func (r *JournalRepo) ListEntries(_ context.Context, filter journal.EntryFilter) ([]*journal.Entry, error) {
	var out []*journal.Entry

	r.s.read(func(st *state) {
		for _, e := range st.entries {
			if filter.Posted != nil && e.Posted != *filter.Posted {
				continue
			}

			if filter.StartDate != nil && e.Date.Before(*filter.StartDate) {
				continue
			}

			if filter.EndDate != nil && e.Date.After(*filter.EndDate) {
				continue
			}

			out = append(out, cloneEntry(e))
		}
	})

	slices.SortFunc(out, func(a, b *journal.Entry) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}

		return cmp.Compare(a.Reference, b.Reference)
	})

	return out, nil
}

func (tx *Tx) LockAccount(_ context.Context, id uuid.UUID) (*journal.Account, error) {
	a, ok := tx.state.accounts[id]
	if !ok {
		return nil, journal.ErrAccountNotFound
	}

	return clonePtr(a), nil
}

func (tx *Tx) AccountIDByCode(_ context.Context, code string) (uuid.UUID, error) {
	for _, a := range tx.state.accounts {
		if a.Code == code {
			return a.ID, nil
		}
	}

	return uuid.Nil, journal.ErrAccountNotFound
}

func (tx *Tx) CreateEntry(_ context.Context, e *journal.Entry) error {
	e.ID = uuid.New()
	e.CreatedAt = tx.store.now()

	for i := range e.Details {
		e.Details[i].ID = uuid.New()
		e.Details[i].EntryID = e.ID
	}

	tx.state.entries[e.ID] = cloneEntry(e)

	return nil
}

func (tx *Tx) LockEntry(_ context.Context, id uuid.UUID) (*journal.Entry, error) {
	e, ok := tx.state.entries[id]
	if !ok {
		return nil, journal.ErrEntryNotFound
	}

	return cloneEntry(e), nil
}

func (tx *Tx) ApplyBalance(_ context.Context, accountID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	a, ok := tx.state.accounts[accountID]
	if !ok {
		return decimal.Zero, journal.ErrAccountNotFound
	}

	a.CurrentBalance = a.CurrentBalance.Add(delta)
	a.UpdatedAt = new(tx.store.now())

	return a.CurrentBalance, nil
}

func (tx *Tx) MarkPosted(_ context.Context, id uuid.UUID, postedBy string, at time.Time) error {
	e, ok := tx.state.entries[id]
	if !ok {
		return journal.ErrEntryNotFound
	}

	e.Posted = true
	e.PostedBy = &postedBy
	e.PostedAt = &at

	return nil
}
