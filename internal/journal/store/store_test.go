package store_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notcool100/financial-management-system/internal/journal"
	"github.com/notcool100/financial-management-system/internal/journal/store"
)

var accountColumns = []string{"id", "code", "name", "type", "parent_id", "current_balance", "active", "created_at", "updated_at"}

var entryColumns = []string{
	"id", "entry_date", "reference", "description", "posted", "created_by", "posted_by", "posted_at", "created_at",
	"id", "account_id", "debit", "credit", "description",
}

func newStore(t *testing.T) (*store.Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})

	return store.New(db), mock
}

func TestStore_CreateAccount(t *testing.T) {
	type testCase struct {
		name    string
		setup   func(mock sqlmock.Sqlmock)
		wantErr error
	}

	insert := regexp.QuoteMeta("INSERT INTO accounts")
	id := uuid.New()
	now := time.Now()

	tests := []testCase{
		{
			name: "Success",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(insert).
					WithArgs("1000", "Cash", journal.TypeAsset, nil, decimal.Zero, true).
					WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(id.String(), now))
			},
		},
		{
			name: "DuplicateCode",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(insert).WillReturnError(&pgconn.PgError{Code: "23505"})
			},
			wantErr: journal.ErrDuplicateAccountCode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newStore(t)
			tt.setup(mock)

			a := &journal.Account{Code: "1000", Name: "Cash", Type: journal.TypeAsset, CurrentBalance: decimal.Zero, Active: true}
			err := s.CreateAccount(context.Background(), a)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, id, a.ID)
		})
	}
}

func TestStore_GetAccount_NotFound(t *testing.T) {
	s, mock := newStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM accounts WHERE id = $1")).
		WillReturnRows(sqlmock.NewRows(accountColumns))

	_, err := s.GetAccount(context.Background(), uuid.New())
	assert.ErrorIs(t, err, journal.ErrAccountNotFound)
}

func TestStore_UpdateAccount_PartialFields(t *testing.T) {
	s, mock := newStore(t)

	id := uuid.New()
	name := "Main Cash"
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SET name = COALESCE($2, name)")).
		WithArgs(id, name, nil, nil).
		WillReturnRows(sqlmock.NewRows(accountColumns).
			AddRow(id.String(), "1000", name, "asset", nil, "250.00", true, now, now))

	a, err := s.UpdateAccount(context.Background(), id, journal.AccountUpdate{Name: &name})
	require.NoError(t, err)

	assert.Equal(t, name, a.Name)
	assert.Nil(t, a.ParentID)
	assert.True(t, decimal.RequireFromString("250").Equal(a.CurrentBalance))
}

func TestStore_GetEntry_FoldsDetails(t *testing.T) {
	s, mock := newStore(t)

	entryID := uuid.New()
	cash, revenue := uuid.New(), uuid.New()
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.id = $1")).
		WithArgs(entryID).
		WillReturnRows(sqlmock.NewRows(entryColumns).
			AddRow(entryID.String(), date, "JE-1", "sale", false, "clerk", nil, nil, now,
				uuid.NewString(), cash.String(), "500.00", "0.00", "").
			AddRow(entryID.String(), date, "JE-1", "sale", false, "clerk", nil, nil, now,
				uuid.NewString(), revenue.String(), "0.00", "500.00", ""))

	e, err := s.GetEntry(context.Background(), entryID)
	require.NoError(t, err)

	assert.Equal(t, "JE-1", e.Reference)
	assert.False(t, e.Posted)
	assert.Nil(t, e.PostedBy)
	require.Len(t, e.Details, 2)
	assert.Equal(t, cash, e.Details[0].AccountID)
	assert.Equal(t, entryID, e.Details[1].EntryID)

	debit, credit := e.Totals()
	assert.True(t, debit.Equal(credit))
}

func TestStore_GetEntry_NotFound(t *testing.T) {
	s, mock := newStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.id = $1")).
		WillReturnRows(sqlmock.NewRows(entryColumns))

	_, err := s.GetEntry(context.Background(), uuid.New())
	assert.ErrorIs(t, err, journal.ErrEntryNotFound)
}

func TestTx_PostingStatements(t *testing.T) {
	s, mock := newStore(t)

	accountID := uuid.New()
	entryID := uuid.New()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM accounts WHERE id = $1 FOR UPDATE")).
		WithArgs(accountID).
		WillReturnRows(sqlmock.NewRows(accountColumns).
			AddRow(accountID.String(), "1000", "Cash", "asset", nil, "100.00", true, now, nil))
	mock.ExpectQuery(regexp.QuoteMeta("SET current_balance = current_balance + $2")).
		WithArgs(accountID, decimal.RequireFromString("500")).
		WillReturnRows(sqlmock.NewRows([]string{"current_balance"}).AddRow("600.00"))
	mock.ExpectExec(regexp.QuoteMeta("SET posted = TRUE")).
		WithArgs(entryID, "manager", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET posted = TRUE")).
		WithArgs(entryID, "manager", at).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	a, err := tx.LockAccount(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, "1000", a.Code)

	balance, err := tx.ApplyBalance(ctx, accountID, decimal.RequireFromString("500"))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("600").Equal(balance))

	require.NoError(t, tx.MarkPosted(ctx, entryID, "manager", at))
	assert.ErrorIs(t, tx.MarkPosted(ctx, entryID, "manager", at), journal.ErrAlreadyPosted)

	require.NoError(t, tx.Rollback())
}

func TestTx_AccountIDByCode_Unknown(t *testing.T) {
	s, mock := newStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM accounts WHERE code = $1")).
		WithArgs("9999").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	_, err = tx.AccountIDByCode(ctx, "9999")
	assert.ErrorIs(t, err, journal.ErrAccountNotFound)

	require.NoError(t, tx.Rollback())
}
