package journal_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/notcool100/financial-management-system/internal/journal"
)

var (
	cashID    = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	revenueID = uuid.MustParse("00000000-0000-0000-0000-000000000002")
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type decimalMatcher struct{ want decimal.Decimal }

func decEq(s string) gomock.Matcher {
	return decimalMatcher{want: d(s)}
}

func (m decimalMatcher) Matches(x any) bool {
	got, ok := x.(decimal.Decimal)
	return ok && got.Equal(m.want)
}

func (m decimalMatcher) String() string {
	return "is decimal " + m.want.String()
}

func cash() *journal.Account {
	return &journal.Account{ID: cashID, Code: "1000", Name: "Cash", Type: journal.TypeAsset, Active: true, CurrentBalance: d("100")}
}

func revenue() *journal.Account {
	return &journal.Account{ID: revenueID, Code: "4000", Name: "Interest Income", Type: journal.TypeRevenue, Active: true}
}

func balancedParams(post bool) journal.CreateEntryParams {
	return journal.CreateEntryParams{
		Date:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Reference:   "JE-1",
		Description: "interest received",
		Details: []journal.DetailParams{
			{AccountID: cashID, Debit: d("500")},
			{AccountID: revenueID, Credit: d("500")},
		},
		Post:      post,
		CreatedBy: "alice",
	}
}

func TestValidate(t *testing.T) {
	type testCase struct {
		name    string
		details []journal.DetailParams
		wantErr error
	}

	tests := []testCase{
		{
			name: "Balanced",
			details: []journal.DetailParams{
				{AccountID: cashID, Debit: d("500")},
				{AccountID: revenueID, Credit: d("500")},
			},
		},
		{
			name: "TrailingZeros",
			details: []journal.DetailParams{
				{AccountID: cashID, Debit: d("500.100")},
				{AccountID: revenueID, Credit: d("500.1")},
			},
		},
		{
			name: "Unbalanced",
			details: []journal.DetailParams{
				{AccountID: cashID, Debit: d("500")},
				{AccountID: revenueID, Credit: d("400")},
			},
			wantErr: journal.ErrUnbalancedEntry,
		},
		{
			name: "OffByOneCent",
			details: []journal.DetailParams{
				{AccountID: cashID, Debit: d("500.01")},
				{AccountID: revenueID, Credit: d("500")},
			},
			wantErr: journal.ErrUnbalancedEntry,
		},
		{
			name: "FractionOfCent",
			details: []journal.DetailParams{
				{AccountID: cashID, Debit: d("0.0009")},
			},
			wantErr: journal.ErrInvalidEntry,
		},
		{
			name: "FractionOfCentBalanced",
			details: []journal.DetailParams{
				{AccountID: cashID, Debit: d("10.005")},
				{AccountID: revenueID, Credit: d("10.005")},
			},
			wantErr: journal.ErrInvalidEntry,
		},
		{
			name:    "Empty",
			details: nil,
			wantErr: journal.ErrInvalidEntry,
		},
		{
			name: "BothSides",
			details: []journal.DetailParams{
				{AccountID: cashID, Debit: d("10"), Credit: d("10")},
			},
			wantErr: journal.ErrInvalidEntry,
		},
		{
			name: "Negative",
			details: []journal.DetailParams{
				{AccountID: cashID, Debit: d("-10")},
				{AccountID: revenueID, Credit: d("-10")},
			},
			wantErr: journal.ErrInvalidEntry,
		},
		{
			name: "NoAccount",
			details: []journal.DetailParams{
				{Debit: d("10")},
				{AccountID: revenueID, Credit: d("10")},
			},
			wantErr: journal.ErrInvalidEntry,
		},
		{
			name: "ByCode",
			details: []journal.DetailParams{
				{AccountCode: "1000", Debit: d("10")},
				{AccountCode: "4000", Credit: d("10")},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := journal.Validate(journal.CreateEntryParams{Details: tt.details})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			assert.NoError(t, err)
		})
	}
}

func TestService_CreateEntry_Posted(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := journal.NewMockRepository(ctrl)
	tx := journal.NewMockTx(ctrl)
	svc := journal.NewService(repo)

	entryID := uuid.New()

	repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	gomock.InOrder(
		tx.EXPECT().LockAccount(gomock.Any(), cashID).Return(cash(), nil),
		tx.EXPECT().LockAccount(gomock.Any(), revenueID).Return(revenue(), nil),
	)
	tx.EXPECT().CreateEntry(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e *journal.Entry) error {
			assert.False(t, e.Posted)
			assert.Len(t, e.Details, 2)
			e.ID = entryID
			return nil
		})
	tx.EXPECT().ApplyBalance(gomock.Any(), cashID, decEq("500")).Return(d("600"), nil)
	tx.EXPECT().ApplyBalance(gomock.Any(), revenueID, decEq("-500")).Return(d("-500"), nil)
	tx.EXPECT().MarkPosted(gomock.Any(), entryID, "alice", gomock.Any()).Return(nil)
	tx.EXPECT().Commit().Return(nil)
	tx.EXPECT().Rollback().Return(nil)

	posting, err := svc.CreateEntry(context.Background(), balancedParams(true))
	require.NoError(t, err)

	assert.True(t, posting.Entry.Posted)
	require.NotNil(t, posting.Entry.PostedBy)
	assert.Equal(t, "alice", *posting.Entry.PostedBy)
	require.Len(t, posting.Changes, 2)

	assert.Equal(t, cashID, posting.Changes[0].AccountID)
	assert.True(t, d("100").Equal(posting.Changes[0].Before))
	assert.True(t, d("600").Equal(posting.Changes[0].After))
	assert.True(t, d("500").Equal(posting.Changes[0].Delta))

	assert.Equal(t, revenueID, posting.Changes[1].AccountID)
	assert.True(t, d("-500").Equal(posting.Changes[1].Delta))
}

func TestService_CreateEntry_Unposted(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := journal.NewMockRepository(ctrl)
	tx := journal.NewMockTx(ctrl)
	svc := journal.NewService(repo)

	repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	tx.EXPECT().LockAccount(gomock.Any(), cashID).Return(cash(), nil)
	tx.EXPECT().LockAccount(gomock.Any(), revenueID).Return(revenue(), nil)
	tx.EXPECT().CreateEntry(gomock.Any(), gomock.Any()).Return(nil)
	tx.EXPECT().Commit().Return(nil)
	tx.EXPECT().Rollback().Return(nil)

	posting, err := svc.CreateEntry(context.Background(), balancedParams(false))
	require.NoError(t, err)
	assert.False(t, posting.Entry.Posted)
	assert.Nil(t, posting.Entry.PostedAt)
	assert.Empty(t, posting.Changes)
}

func TestService_CreateEntry_ResolvesCodes(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := journal.NewMockRepository(ctrl)
	tx := journal.NewMockTx(ctrl)
	svc := journal.NewService(repo)

	params := balancedParams(false)
	params.Reference = ""
	params.Details[0] = journal.DetailParams{AccountCode: "1000", Debit: d("500")}

	repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	tx.EXPECT().AccountIDByCode(gomock.Any(), "1000").Return(cashID, nil)
	tx.EXPECT().LockAccount(gomock.Any(), cashID).Return(cash(), nil)
	tx.EXPECT().LockAccount(gomock.Any(), revenueID).Return(revenue(), nil)
	tx.EXPECT().CreateEntry(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e *journal.Entry) error {
			assert.Equal(t, cashID, e.Details[0].AccountID)
			assert.Regexp(t, `^JE-20240301-[0-9A-F]{8}$`, e.Reference)
			return nil
		})
	tx.EXPECT().Commit().Return(nil)
	tx.EXPECT().Rollback().Return(nil)

	_, err := svc.CreateEntry(context.Background(), params)
	require.NoError(t, err)
}

func TestService_CreateEntry_Rejections(t *testing.T) {
	type testCase struct {
		name      string
		params    func() journal.CreateEntryParams
		setupMock func(repo *journal.MockRepository, tx *journal.MockTx)
		wantErr   error
	}

	tests := []testCase{
		{
			name: "Unbalanced",
			params: func() journal.CreateEntryParams {
				p := balancedParams(true)
				p.Details[1].Credit = d("400")
				return p
			},
			setupMock: func(_ *journal.MockRepository, _ *journal.MockTx) {},
			wantErr:   journal.ErrUnbalancedEntry,
		},
		{
			name:   "UnknownAccount",
			params: func() journal.CreateEntryParams { return balancedParams(true) },
			setupMock: func(repo *journal.MockRepository, tx *journal.MockTx) {
				repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().LockAccount(gomock.Any(), cashID).Return(cash(), nil)
				tx.EXPECT().LockAccount(gomock.Any(), revenueID).Return(nil, journal.ErrAccountNotFound)
				tx.EXPECT().Rollback().Return(nil)
			},
			wantErr: journal.ErrAccountNotFound,
		},
		{
			name: "UnknownCode",
			params: func() journal.CreateEntryParams {
				p := balancedParams(true)
				p.Details[0] = journal.DetailParams{AccountCode: "9999", Debit: d("500")}
				return p
			},
			setupMock: func(repo *journal.MockRepository, tx *journal.MockTx) {
				repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().AccountIDByCode(gomock.Any(), "9999").Return(uuid.Nil, journal.ErrAccountNotFound)
				tx.EXPECT().Rollback().Return(nil)
			},
			wantErr: journal.ErrAccountNotFound,
		},
		{
			name:   "InactiveAccount",
			params: func() journal.CreateEntryParams { return balancedParams(true) },
			setupMock: func(repo *journal.MockRepository, tx *journal.MockTx) {
				inactive := revenue()
				inactive.Active = false

				repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().LockAccount(gomock.Any(), cashID).Return(cash(), nil)
				tx.EXPECT().LockAccount(gomock.Any(), revenueID).Return(inactive, nil)
				tx.EXPECT().Rollback().Return(nil)
			},
			wantErr: journal.ErrAccountInactive,
		},
		{
			name:   "BalanceUpdateFails",
			params: func() journal.CreateEntryParams { return balancedParams(true) },
			setupMock: func(repo *journal.MockRepository, tx *journal.MockTx) {
				repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().LockAccount(gomock.Any(), cashID).Return(cash(), nil)
				tx.EXPECT().LockAccount(gomock.Any(), revenueID).Return(revenue(), nil)
				tx.EXPECT().CreateEntry(gomock.Any(), gomock.Any()).Return(nil)
				tx.EXPECT().ApplyBalance(gomock.Any(), cashID, gomock.Any()).Return(decimal.Zero, errors.New("connection reset"))
				tx.EXPECT().Rollback().Return(nil)
			},
			wantErr: journal.ErrPersistence,
		},
		{
			name:   "BeginFails",
			params: func() journal.CreateEntryParams { return balancedParams(true) },
			setupMock: func(repo *journal.MockRepository, _ *journal.MockTx) {
				repo.EXPECT().Begin(gomock.Any()).Return(nil, errors.New("too many connections"))
			},
			wantErr: journal.ErrPersistence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := journal.NewMockRepository(ctrl)
			tx := journal.NewMockTx(ctrl)
			tt.setupMock(repo, tx)

			svc := journal.NewService(repo)
			got, err := svc.CreateEntry(context.Background(), tt.params())

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, got)
		})
	}
}

func TestService_PostEntry(t *testing.T) {
	entryID := uuid.New()

	unposted := func() *journal.Entry {
		return &journal.Entry{
			ID:        entryID,
			Reference: "JE-2",
			Details: []journal.Detail{
				{AccountID: revenueID, Credit: d("250")},
				{AccountID: cashID, Debit: d("250")},
			},
		}
	}

	t.Run("Success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := journal.NewMockRepository(ctrl)
		tx := journal.NewMockTx(ctrl)
		svc := journal.NewService(repo)

		repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
		tx.EXPECT().LockEntry(gomock.Any(), entryID).Return(unposted(), nil)
		gomock.InOrder(
			tx.EXPECT().LockAccount(gomock.Any(), cashID).Return(cash(), nil),
			tx.EXPECT().LockAccount(gomock.Any(), revenueID).Return(revenue(), nil),
		)
		tx.EXPECT().ApplyBalance(gomock.Any(), cashID, decEq("250")).Return(d("350"), nil)
		tx.EXPECT().ApplyBalance(gomock.Any(), revenueID, decEq("-250")).Return(d("-250"), nil)
		tx.EXPECT().MarkPosted(gomock.Any(), entryID, "bob", gomock.Any()).Return(nil)
		tx.EXPECT().Commit().Return(nil)
		tx.EXPECT().Rollback().Return(nil)

		posting, err := svc.PostEntry(context.Background(), entryID, "bob")
		require.NoError(t, err)
		assert.True(t, posting.Entry.Posted)
		assert.NotNil(t, posting.Entry.PostedAt)
		assert.Len(t, posting.Changes, 2)
	})

	t.Run("AlreadyPosted", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := journal.NewMockRepository(ctrl)
		tx := journal.NewMockTx(ctrl)
		svc := journal.NewService(repo)

		posted := unposted()
		posted.Posted = true

		repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
		tx.EXPECT().LockEntry(gomock.Any(), entryID).Return(posted, nil)
		tx.EXPECT().Rollback().Return(nil)

		got, err := svc.PostEntry(context.Background(), entryID, "bob")
		assert.ErrorIs(t, err, journal.ErrAlreadyPosted)
		assert.Nil(t, got)
	})

	t.Run("NotFound", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := journal.NewMockRepository(ctrl)
		tx := journal.NewMockTx(ctrl)
		svc := journal.NewService(repo)

		repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
		tx.EXPECT().LockEntry(gomock.Any(), entryID).Return(nil, journal.ErrEntryNotFound)
		tx.EXPECT().Rollback().Return(nil)

		_, err := svc.PostEntry(context.Background(), entryID, "bob")
		assert.ErrorIs(t, err, journal.ErrEntryNotFound)
		assert.NotErrorIs(t, err, journal.ErrPersistence)
	})
}

func TestService_CreateAccount(t *testing.T) {
	type testCase struct {
		name      string
		params    journal.CreateAccountParams
		setupMock func(m *journal.MockRepository)
		wantErr   error
	}

	parentID := uuid.New()

	tests := []testCase{
		{
			name:   "Success",
			params: journal.CreateAccountParams{Code: " 1200 ", Name: "Loan Portfolio", Type: journal.TypeAsset},
			setupMock: func(m *journal.MockRepository) {
				m.EXPECT().CreateAccount(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, a *journal.Account) error {
						assert.Equal(t, "1200", a.Code)
						assert.True(t, a.Active)
						assert.True(t, a.CurrentBalance.IsZero())
						a.ID = uuid.New()
						return nil
					})
			},
		},
		{
			name:      "InvalidType",
			params:    journal.CreateAccountParams{Code: "1", Name: "X", Type: "contra"},
			setupMock: func(_ *journal.MockRepository) {},
			wantErr:   journal.ErrInvalidAccount,
		},
		{
			name:      "MissingName",
			params:    journal.CreateAccountParams{Code: "1", Type: journal.TypeAsset},
			setupMock: func(_ *journal.MockRepository) {},
			wantErr:   journal.ErrInvalidAccount,
		},
		{
			name:   "MissingParent",
			params: journal.CreateAccountParams{Code: "1210", Name: "Group loans", Type: journal.TypeAsset, ParentID: &parentID},
			setupMock: func(m *journal.MockRepository) {
				m.EXPECT().GetAccount(gomock.Any(), parentID).Return(nil, journal.ErrAccountNotFound)
			},
			wantErr: journal.ErrAccountNotFound,
		},
		{
			name:   "DuplicateCode",
			params: journal.CreateAccountParams{Code: "1000", Name: "Cash", Type: journal.TypeAsset},
			setupMock: func(m *journal.MockRepository) {
				m.EXPECT().CreateAccount(gomock.Any(), gomock.Any()).Return(journal.ErrDuplicateAccountCode)
			},
			wantErr: journal.ErrDuplicateAccountCode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := journal.NewMockRepository(ctrl)
			tt.setupMock(repo)

			svc := journal.NewService(repo)
			got, err := svc.CreateAccount(context.Background(), tt.params)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)

				return
			}

			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, got.ID)
		})
	}
}

func TestService_UpdateAccount_SelfParent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := journal.NewService(journal.NewMockRepository(ctrl))

	_, err := svc.UpdateAccount(context.Background(), cashID, journal.AccountUpdate{ParentID: &cashID})
	assert.ErrorIs(t, err, journal.ErrInvalidAccount)
}

func TestService_TrialBalance(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := journal.NewMockRepository(ctrl)
	svc := journal.NewService(repo)

	repo.EXPECT().ListAccounts(gomock.Any(), journal.AccountFilter{}).Return([]*journal.Account{
		{Code: "1000", Type: journal.TypeAsset, CurrentBalance: d("-120000")},
		{Code: "1200", Type: journal.TypeAsset, CurrentBalance: d("120000")},
		{Code: "4000", Type: journal.TypeRevenue, CurrentBalance: d("-1200")},
		{Code: "1000b", Type: journal.TypeAsset, CurrentBalance: d("1200")},
	}, nil)

	tb, err := svc.TrialBalance(context.Background())
	require.NoError(t, err)

	assert.True(t, tb.Total.IsZero())
	assert.True(t, d("1200").Equal(tb.ByType[journal.TypeAsset]))
	assert.True(t, d("-1200").Equal(tb.ByType[journal.TypeRevenue]))
	assert.True(t, tb.ByType[journal.TypeExpense].IsZero())
	assert.True(t, tb.Debits.Equal(tb.Credits))
}
