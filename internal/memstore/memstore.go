// Package memstore keeps loans and the ledger in process memory.
//
// Transactions are serialized: Begin waits for the single writer slot and
// works on a private copy of the state, which Commit swaps in whole. Readers
// outside a transaction only ever see committed state.
package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/notcool100/financial-management-system/internal/journal"
	"github.com/notcool100/financial-management-system/internal/loan"
)

var (
	_ journal.Repository = (*JournalRepo)(nil)
	_ loan.Repository    = (*LoanRepo)(nil)
	_ journal.Tx         = (*Tx)(nil)
	_ loan.Tx            = (*Tx)(nil)
)

type state struct {
	accounts     map[uuid.UUID]*journal.Account
	entries      map[uuid.UUID]*journal.Entry
	loans        map[uuid.UUID]*loan.Loan
	installments map[uuid.UUID][]*loan.Installment
	payments     map[uuid.UUID][]*loan.Payment
	transactions map[uuid.UUID][]*loan.Transaction
}

func newState() *state {
	return &state{
		accounts:     map[uuid.UUID]*journal.Account{},
		entries:      map[uuid.UUID]*journal.Entry{},
		loans:        map[uuid.UUID]*loan.Loan{},
		installments: map[uuid.UUID][]*loan.Installment{},
		payments:     map[uuid.UUID][]*loan.Payment{},
		transactions: map[uuid.UUID][]*loan.Transaction{},
	}
}

func (s *state) clone() *state {
	c := newState()

	for id, a := range s.accounts {
		c.accounts[id] = clonePtr(a)
	}

	for id, e := range s.entries {
		c.entries[id] = cloneEntry(e)
	}

	for id, l := range s.loans {
		c.loans[id] = clonePtr(l)
	}

	for id, items := range s.installments {
		c.installments[id] = cloneAll(items, clonePtr[loan.Installment])
	}

	// Payments and ledger rows are append-only; sharing the elements is safe.
	for id, ps := range s.payments {
		c.payments[id] = slices.Clone(ps)
	}

	for id, ts := range s.transactions {
		c.transactions[id] = slices.Clone(ts)
	}

	return c
}

type Store struct {
	writer chan struct{}

	mu    sync.RWMutex
	state *state

	now func() time.Time
}

func New() *Store {
	return &Store{
		writer: make(chan struct{}, 1),
		state:  newState(),
		now:    time.Now,
	}
}

// Journal returns the store as a journal.Repository.
func (s *Store) Journal() *JournalRepo {
	return &JournalRepo{s: s}
}

// Loans returns the store as a loan.Repository.
func (s *Store) Loans() *LoanRepo {
	return &LoanRepo{s: s}
}

func (s *Store) begin(ctx context.Context) (*Tx, error) {
	select {
	case s.writer <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.RLock()
	working := s.state.clone()
	s.mu.RUnlock()

	return &Tx{store: s, state: working}, nil
}

func (s *Store) read(fn func(st *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fn(s.state)
}

// Tx implements both journal.Tx and loan.Tx over one working copy.
type Tx struct {
	store *Store
	state *state
	done  bool
}

func (tx *Tx) Commit() error {
	if tx.done {
		return ErrTxDone
	}

	tx.store.mu.Lock()
	tx.store.state = tx.state
	tx.store.mu.Unlock()

	tx.release()

	return nil
}

func (tx *Tx) Rollback() error {
	if tx.done {
		return nil
	}

	tx.release()

	return nil
}

func (tx *Tx) release() {
	tx.done = true
	<-tx.store.writer
}

func cloneAll[T any](items []*T, fn func(*T) *T) []*T {
	out := make([]*T, len(items))
	for i, it := range items {
		out[i] = fn(it)
	}

	return out
}

// clonePtr returns a shallow copy of v.
func clonePtr[T any](v *T) *T {
	c := *v
	return &c
}

func cloneEntry(e *journal.Entry) *journal.Entry {
	c := *e
	c.Details = slices.Clone(e.Details)

	return &c
}
