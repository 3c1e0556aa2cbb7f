package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/notcool100/financial-management-system/internal/journal"
)

const uniqueViolation = "23505"

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const selectAccountColumns = `id, code, name, type, parent_id, current_balance, active, created_at, updated_at`

// scanAccount expects the columns of selectAccountColumns in order.
func scanAccount(s scanner) (*journal.Account, error) {
	var a journal.Account

	var typeStr string

	if err := s.Scan(
		&a.ID, &a.Code, &a.Name, &typeStr, &a.ParentID,
		&a.CurrentBalance, &a.Active, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}

	a.Type = journal.AccountType(typeStr)

	return &a, nil
}

func (s *Store) CreateAccount(ctx context.Context, a *journal.Account) error {
	query := `
		INSERT INTO accounts (code, name, type, parent_id, current_balance, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		a.Code,
		a.Name,
		a.Type,
		a.ParentID,
		a.CurrentBalance,
		a.Active,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return journal.ErrDuplicateAccountCode
		}

		return fmt.Errorf("creating account: %w", err)
	}

	return nil
}

func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (*journal.Account, error) {
	query := `SELECT ` + selectAccountColumns + ` FROM accounts WHERE id = $1`

	a, err := scanAccount(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, journal.ErrAccountNotFound
		}

		return nil, fmt.Errorf("getting account: %w", err)
	}

	return a, nil
}

func (s *Store) ListAccounts(ctx context.Context, filter journal.AccountFilter) ([]*journal.Account, error) {
	query := `SELECT ` + selectAccountColumns + ` FROM accounts WHERE 1 = 1`

	var args []any

	argIdx := 1

	if filter.Type != nil {
		query += fmt.Sprintf(" AND type = $%d", argIdx)

		args = append(args, *filter.Type)
		argIdx++
	}

	if filter.Active != nil {
		query += fmt.Sprintf(" AND active = $%d", argIdx)

		args = append(args, *filter.Active)
	}

	query += " ORDER BY code ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*journal.Account

	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}

		accounts = append(accounts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating accounts: %w", err)
	}

	return accounts, nil
}

// UpdateAccount applies the set fields of upd with one fixed statement; nil
// fields keep their stored value through COALESCE.
func (s *Store) UpdateAccount(ctx context.Context, id uuid.UUID, upd journal.AccountUpdate) (*journal.Account, error) {
	query := `
		UPDATE accounts
		SET name = COALESCE($2, name),
			parent_id = COALESCE($3, parent_id),
			active = COALESCE($4, active),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + selectAccountColumns

	a, err := scanAccount(s.db.QueryRowContext(ctx, query, id, upd.Name, upd.ParentID, upd.Active))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, journal.ErrAccountNotFound
		}

		return nil, fmt.Errorf("updating account: %w", err)
	}

	return a, nil
}

func (s *Store) GetEntry(ctx context.Context, id uuid.UUID) (*journal.Entry, error) {
	return getEntry(ctx, s.db, id, false)
}

func (s *Store) ListEntries(ctx context.Context, filter journal.EntryFilter) ([]*journal.Entry, error) {
	query := `SELECT ` + selectEntryColumns + `
		FROM journal_entries e
		JOIN journal_entry_details d ON d.entry_id = e.id
		WHERE 1 = 1`

	var args []any

	argIdx := 1

	if filter.Posted != nil {
		query += fmt.Sprintf(" AND e.posted = $%d", argIdx)

		args = append(args, *filter.Posted)
		argIdx++
	}

	if filter.StartDate != nil {
		query += fmt.Sprintf(" AND e.entry_date >= $%d", argIdx)

		args = append(args, *filter.StartDate)
		argIdx++
	}

	if filter.EndDate != nil {
		query += fmt.Sprintf(" AND e.entry_date <= $%d", argIdx)

		args = append(args, *filter.EndDate)
	}

	query += " ORDER BY e.entry_date DESC, e.created_at DESC, e.id, d.line_no"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

const selectEntryColumns = `
	e.id, e.entry_date, e.reference, e.description, e.posted, e.created_by, e.posted_by, e.posted_at, e.created_at,
	d.id, d.account_id, d.debit, d.credit, d.description
`

// scanEntries folds joined entry/detail rows, ordered by entry, into entries.
func scanEntries(rows *sql.Rows) ([]*journal.Entry, error) {
	var entries []*journal.Entry

	var current *journal.Entry

	for rows.Next() {
		var e journal.Entry

		var d journal.Detail

		if err := rows.Scan(
			&e.ID, &e.Date, &e.Reference, &e.Description, &e.Posted, &e.CreatedBy, &e.PostedBy, &e.PostedAt, &e.CreatedAt,
			&d.ID, &d.AccountID, &d.Debit, &d.Credit, &d.Description,
		); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}

		if current == nil || current.ID != e.ID {
			current = &e
			entries = append(entries, current)
		}

		d.EntryID = current.ID
		current.Details = append(current.Details, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}

	return entries, nil
}

func getEntry(ctx context.Context, q querier, id uuid.UUID, lock bool) (*journal.Entry, error) {
	query := `SELECT ` + selectEntryColumns + `
		FROM journal_entries e
		JOIN journal_entry_details d ON d.entry_id = e.id
		WHERE e.id = $1
		ORDER BY d.line_no`

	if lock {
		query += " FOR UPDATE OF e"
	}

	rows, err := q.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("getting entry: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		return nil, journal.ErrEntryNotFound
	}

	return entries[0], nil
}

func (s *Store) Begin(ctx context.Context) (journal.Tx, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning ledger tx: %w", err)
	}

	return NewTx(dbTx), nil
}

// Tx runs ledger statements inside a database transaction. Other stores wrap
// their own *sql.Tx with NewTx to post within the same transaction.
type Tx struct {
	tx *sql.Tx
}

func NewTx(tx *sql.Tx) *Tx {
	return &Tx{tx: tx}
}

func (t *Tx) Commit() error   { return t.tx.Commit() }
func (t *Tx) Rollback() error { return t.tx.Rollback() }

func (t *Tx) LockAccount(ctx context.Context, id uuid.UUID) (*journal.Account, error) {
	query := `SELECT ` + selectAccountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`

	a, err := scanAccount(t.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, journal.ErrAccountNotFound
		}

		return nil, fmt.Errorf("locking account: %w", err)
	}

	return a, nil
}

func (t *Tx) AccountIDByCode(ctx context.Context, code string) (uuid.UUID, error) {
	var id uuid.UUID

	err := t.tx.QueryRowContext(ctx, `SELECT id FROM accounts WHERE code = $1`, code).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("%w: code %s", journal.ErrAccountNotFound, code)
		}

		return uuid.Nil, fmt.Errorf("resolving account code: %w", err)
	}

	return id, nil
}

func (t *Tx) CreateEntry(ctx context.Context, e *journal.Entry) error {
	entryQuery := `
		INSERT INTO journal_entries (entry_date, reference, description, posted, created_by, created_at)
		VALUES ($1, $2, $3, FALSE, $4, NOW())
		RETURNING id, created_at
	`

	err := t.tx.QueryRowContext(ctx, entryQuery,
		e.Date,
		e.Reference,
		e.Description,
		e.CreatedBy,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating entry: %w", err)
	}

	detailQuery := `
		INSERT INTO journal_entry_details (entry_id, account_id, line_no, debit, credit, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	for i := range e.Details {
		d := &e.Details[i]
		d.EntryID = e.ID

		err := t.tx.QueryRowContext(ctx, detailQuery,
			e.ID,
			d.AccountID,
			i+1,
			d.Debit,
			d.Credit,
			d.Description,
		).Scan(&d.ID)
		if err != nil {
			return fmt.Errorf("creating entry detail %d: %w", i+1, err)
		}
	}

	return nil
}

func (t *Tx) LockEntry(ctx context.Context, id uuid.UUID) (*journal.Entry, error) {
	return getEntry(ctx, t.tx, id, true)
}

func (t *Tx) ApplyBalance(ctx context.Context, accountID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	query := `
		UPDATE accounts
		SET current_balance = current_balance + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING current_balance
	`

	var balance decimal.Decimal
	if err := t.tx.QueryRowContext(ctx, query, accountID, delta).Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, journal.ErrAccountNotFound
		}

		return decimal.Zero, fmt.Errorf("applying balance: %w", err)
	}

	return balance, nil
}

func (t *Tx) MarkPosted(ctx context.Context, id uuid.UUID, postedBy string, at time.Time) error {
	query := `
		UPDATE journal_entries
		SET posted = TRUE, posted_by = $2, posted_at = $3
		WHERE id = $1 AND NOT posted
	`

	res, err := t.tx.ExecContext(ctx, query, id, postedBy, at)
	if err != nil {
		return fmt.Errorf("marking entry posted: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("marking entry posted: %w", err)
	}

	if n == 0 {
		return journal.ErrAlreadyPosted
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
