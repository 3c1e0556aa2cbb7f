package memstore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notcool100/financial-management-system/internal/emi"
	"github.com/notcool100/financial-management-system/internal/journal"
	"github.com/notcool100/financial-management-system/internal/loan"
	"github.com/notcool100/financial-management-system/internal/memstore"
)

var codes = loan.Accounts{
	Cash:           "1000",
	Portfolio:      "1200",
	InterestIncome: "4000",
	FeeIncome:      "4100",
	PenaltyIncome:  "4200",
	ClientAdvance:  "2100",
}

type fixture struct {
	journal *journal.Service
	loans   *loan.Service
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newFixture(t *testing.T, accounts loan.Accounts) fixture {
	t.Helper()

	store := memstore.New()
	js := journal.NewService(store.Journal())

	created, err := js.SeedChart(context.Background(), journal.DefaultChart())
	require.NoError(t, err)
	require.Equal(t, len(journal.DefaultChart()), created)

	return fixture{
		journal: js,
		loans:   loan.NewService(store.Loans(), js, accounts, nil),
	}
}

func (f fixture) balance(t *testing.T, code string) decimal.Decimal {
	t.Helper()

	accounts, err := f.journal.ListAccounts(context.Background(), journal.AccountFilter{})
	require.NoError(t, err)

	for _, a := range accounts {
		if a.Code == code {
			return a.CurrentBalance
		}
	}

	t.Fatalf("account %s not found", code)

	return decimal.Zero
}

func (f fixture) activeLoan(t *testing.T, mode emi.Mode) (*loan.Loan, []*loan.Installment) {
	t.Helper()

	ctx := context.Background()

	l, schedule, err := f.loans.Create(ctx, loan.CreateParams{
		ClientID:      uuid.New(),
		LoanTypeID:    uuid.New(),
		Mode:          mode,
		Principal:     d("120000"),
		InterestRate:  d("12"),
		TenureMonths:  12,
		DisburseDate:  time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		ProcessingFee: d("1000"),
	})
	require.NoError(t, err)

	l, err = f.loans.Disburse(ctx, l.ID, "officer")
	require.NoError(t, err)

	return l, schedule
}

func TestLifecycle_PayAllInstallments(t *testing.T) {
	for _, mode := range []emi.Mode{emi.ModeFlat, emi.ModeDiminishing} {
		t.Run(string(mode), func(t *testing.T) {
			f := newFixture(t, codes)
			ctx := context.Background()

			l, schedule := f.activeLoan(t, mode)
			assert.Equal(t, loan.StatusActive, l.Status)
			assert.True(t, d("-119000").Equal(f.balance(t, "1000")))
			assert.True(t, d("120000").Equal(f.balance(t, "1200")))
			assert.True(t, d("-1000").Equal(f.balance(t, "4100")))

			previous := l.RemainingAmount

			var collected, interest decimal.Decimal

			for _, inst := range schedule {
				res, err := f.loans.RecordPayment(ctx, loan.PaymentParams{
					LoanID:         l.ID,
					InstallmentSeq: inst.Seq,
					Amount:         inst.EMI,
					PaymentDate:    inst.DueDate,
				})
				require.NoError(t, err)

				assert.True(t, res.Loan.RemainingAmount.LessThanOrEqual(previous))
				assert.False(t, res.Loan.RemainingAmount.IsNegative())
				assert.Equal(t, inst.Seq == len(schedule), res.Closed)

				previous = res.Loan.RemainingAmount
				collected = collected.Add(inst.EMI)
				interest = interest.Add(inst.Interest)
			}

			got, err := f.loans.Get(ctx, l.ID)
			require.NoError(t, err)
			assert.Equal(t, loan.StatusClosed, got.Status)
			assert.True(t, got.RemainingAmount.IsZero())

			assert.True(t, d("-119000").Add(collected).Equal(f.balance(t, "1000")))
			assert.True(t, interest.Neg().Equal(f.balance(t, "4000")))
			assert.True(t, f.balance(t, "1200").IsZero(), "portfolio balance %s", f.balance(t, "1200"))

			tb, err := f.journal.TrialBalance(ctx)
			require.NoError(t, err)
			assert.True(t, tb.Total.IsZero(), "trial balance total %s", tb.Total)

			payments, err := f.loans.Payments(ctx, l.ID)
			require.NoError(t, err)
			assert.Len(t, payments, 12)

			txs, err := f.loans.Transactions(ctx, l.ID)
			require.NoError(t, err)
			assert.Len(t, txs, 14)

			audit, err := f.loans.AuditSchedule(ctx, l.ID)
			require.NoError(t, err)
			assert.True(t, audit.Consistent(), "%+v", audit.Mismatches)

			_, err = f.loans.RecordPayment(ctx, loan.PaymentParams{
				LoanID:         l.ID,
				InstallmentSeq: 1,
				Amount:         schedule[0].EMI,
			})
			assert.ErrorIs(t, err, loan.ErrInvalidStateTransition)
		})
	}
}

func TestLifecycle_BalanceStaysOpenUntilLastInstallment(t *testing.T) {
	f := newFixture(t, codes)
	ctx := context.Background()

	l, schedule, err := f.loans.Create(ctx, loan.CreateParams{
		ClientID:     uuid.New(),
		LoanTypeID:   uuid.New(),
		Mode:         emi.ModeDiminishing,
		Principal:    d("5000"),
		InterestRate: d("48"),
		TenureMonths: 240,
		DisburseDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	_, err = f.loans.Disburse(ctx, l.ID, "officer")
	require.NoError(t, err)

	pay := func(inst *loan.Installment) *loan.PaymentResult {
		res, err := f.loans.RecordPayment(ctx, loan.PaymentParams{
			LoanID:         l.ID,
			InstallmentSeq: inst.Seq,
			Amount:         inst.EMI,
			PaymentDate:    inst.DueDate,
		})
		require.NoError(t, err)

		return res
	}

	for i := len(schedule) - 1; i >= 1; i-- {
		pay(schedule[i])
	}

	got, err := f.loans.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, loan.StatusActive, got.Status)
	assert.True(t, got.RemainingAmount.Equal(schedule[0].Principal), "remaining %s", got.RemainingAmount)
	assert.True(t, got.RemainingAmount.IsPositive())

	res := pay(schedule[0])
	assert.True(t, res.Closed)
	assert.True(t, res.Loan.RemainingAmount.IsZero())
	assert.True(t, f.balance(t, "1200").IsZero(), "portfolio balance %s", f.balance(t, "1200"))
}

func TestLifecycle_RejectsFractionsOfACent(t *testing.T) {
	f := newFixture(t, codes)
	ctx := context.Background()

	_, _, err := f.loans.Create(ctx, loan.CreateParams{
		ClientID:     uuid.New(),
		LoanTypeID:   uuid.New(),
		Mode:         emi.ModeFlat,
		Principal:    d("1000.005"),
		InterestRate: d("12"),
		TenureMonths: 12,
	})
	assert.ErrorIs(t, err, loan.ErrInvalidLoanParameters)

	loans, err := f.loans.List(ctx, loan.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, loans)

	_, err = f.journal.CreateEntry(ctx, journal.CreateEntryParams{
		Date:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Post:    true,
		Details: []journal.DetailParams{{AccountCode: "5000", Debit: d("0.0009")}},
	})
	assert.ErrorIs(t, err, journal.ErrInvalidEntry)
	assert.True(t, f.balance(t, "5000").IsZero())
}

func TestLifecycle_DoublePaymentLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t, codes)
	ctx := context.Background()

	l, schedule := f.activeLoan(t, emi.ModeFlat)

	params := loan.PaymentParams{
		LoanID:         l.ID,
		InstallmentSeq: 3,
		Amount:         schedule[2].EMI,
		PaymentDate:    schedule[2].DueDate,
	}

	_, err := f.loans.RecordPayment(ctx, params)
	require.NoError(t, err)

	before, err := f.loans.Get(ctx, l.ID)
	require.NoError(t, err)

	cash := f.balance(t, "1000")

	_, err = f.loans.RecordPayment(ctx, params)
	assert.ErrorIs(t, err, loan.ErrInstallmentAlreadyPaid)

	after, err := f.loans.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.True(t, before.RemainingAmount.Equal(after.RemainingAmount))
	assert.True(t, cash.Equal(f.balance(t, "1000")))

	payments, err := f.loans.Payments(ctx, l.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestLifecycle_FailedPostingRollsBack(t *testing.T) {
	broken := codes
	broken.InterestIncome = "4999"

	f := newFixture(t, broken)
	ctx := context.Background()

	l, schedule := f.activeLoan(t, emi.ModeFlat)

	_, err := f.loans.RecordPayment(ctx, loan.PaymentParams{
		LoanID:         l.ID,
		InstallmentSeq: 1,
		Amount:         schedule[0].EMI,
	})
	require.ErrorIs(t, err, journal.ErrAccountNotFound)

	got, err := f.loans.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.True(t, d("120000").Equal(got.RemainingAmount))

	items, err := f.loans.Schedule(ctx, l.ID)
	require.NoError(t, err)
	assert.False(t, items[0].Paid)

	payments, err := f.loans.Payments(ctx, l.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)

	assert.True(t, d("-119000").Equal(f.balance(t, "1000")))
}

func TestLifecycle_ConcurrentPaymentsOnSameInstallment(t *testing.T) {
	f := newFixture(t, codes)
	ctx := context.Background()

	l, schedule := f.activeLoan(t, emi.ModeDiminishing)

	const workers = 16

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)

	for range workers {
		wg.Go(func() {
			_, err := f.loans.RecordPayment(ctx, loan.PaymentParams{
				LoanID:         l.ID,
				InstallmentSeq: 1,
				Amount:         schedule[0].EMI,
			})

			mu.Lock()
			defer mu.Unlock()

			if err == nil {
				successes++
				return
			}

			if assert.ErrorIs(t, err, loan.ErrInstallmentAlreadyPaid) {
				conflicts++
			}
		})
	}

	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)

	got, err := f.loans.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.True(t, d("120000").Sub(schedule[0].Principal).Equal(got.RemainingAmount))
}

func TestJournal_ConcurrentPostingsDoNotLoseUpdates(t *testing.T) {
	f := newFixture(t, codes)
	ctx := context.Background()

	const workers = 25

	var wg sync.WaitGroup

	for range workers {
		wg.Go(func() {
			_, err := f.journal.CreateEntry(ctx, journal.CreateEntryParams{
				Description: "cash sale",
				Details: []journal.DetailParams{
					{AccountCode: "1000", Debit: d("10")},
					{AccountCode: "4100", Credit: d("10")},
				},
				Post:      true,
				CreatedBy: "clerk",
			})
			assert.NoError(t, err)
		})
	}

	wg.Wait()

	assert.True(t, d("250").Equal(f.balance(t, "1000")))
	assert.True(t, d("-250").Equal(f.balance(t, "4100")))
}

func TestJournal_PostOnce(t *testing.T) {
	f := newFixture(t, codes)
	ctx := context.Background()

	created, err := f.journal.CreateEntry(ctx, journal.CreateEntryParams{
		Reference: "MAN-1",
		Details: []journal.DetailParams{
			{AccountCode: "1000", Debit: d("500")},
			{AccountCode: "4000", Credit: d("500")},
		},
		CreatedBy: "clerk",
	})
	require.NoError(t, err)
	assert.True(t, f.balance(t, "1000").IsZero())

	posting, err := f.journal.PostEntry(ctx, created.Entry.ID, "manager")
	require.NoError(t, err)
	require.Len(t, posting.Changes, 2)
	assert.True(t, d("500").Equal(f.balance(t, "1000")))
	assert.True(t, d("-500").Equal(f.balance(t, "4000")))

	_, err = f.journal.PostEntry(ctx, created.Entry.ID, "manager")
	assert.ErrorIs(t, err, journal.ErrAlreadyPosted)
	assert.True(t, d("500").Equal(f.balance(t, "1000")))

	stored, err := f.journal.GetEntry(ctx, created.Entry.ID)
	require.NoError(t, err)
	assert.True(t, stored.Posted)
	require.NotNil(t, stored.PostedBy)
	assert.Equal(t, "manager", *stored.PostedBy)
}

func TestJournal_RejectsBeforeMutation(t *testing.T) {
	f := newFixture(t, codes)
	ctx := context.Background()

	_, err := f.journal.CreateEntry(ctx, journal.CreateEntryParams{
		Details: []journal.DetailParams{
			{AccountCode: "1000", Debit: d("500")},
			{AccountCode: "4000", Credit: d("400")},
		},
		Post: true,
	})
	assert.ErrorIs(t, err, journal.ErrUnbalancedEntry)

	_, err = f.journal.CreateEntry(ctx, journal.CreateEntryParams{
		Details: []journal.DetailParams{
			{AccountCode: "1000", Debit: d("500")},
			{AccountID: uuid.New(), Credit: d("500")},
		},
		Post: true,
	})
	assert.ErrorIs(t, err, journal.ErrAccountNotFound)

	assert.True(t, f.balance(t, "1000").IsZero())

	entries, err := f.journal.ListEntries(ctx, journal.EntryFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_DuplicateAccountCode(t *testing.T) {
	f := newFixture(t, codes)

	_, err := f.journal.CreateAccount(context.Background(), journal.CreateAccountParams{
		Code: "1000", Name: "Petty cash", Type: journal.TypeAsset,
	})
	assert.ErrorIs(t, err, journal.ErrDuplicateAccountCode)
}

func TestStore_AccountCodesAreCaseSensitive(t *testing.T) {
	f := newFixture(t, codes)
	ctx := context.Background()

	_, err := f.journal.CreateAccount(ctx, journal.CreateAccountParams{
		Code: "CASH", Name: "Cash box", Type: journal.TypeAsset,
	})
	require.NoError(t, err)

	_, err = f.journal.CreateAccount(ctx, journal.CreateAccountParams{
		Code: "cash", Name: "Petty cash", Type: journal.TypeAsset,
	})
	require.NoError(t, err)

	_, err = f.journal.CreateEntry(ctx, journal.CreateEntryParams{
		Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Post: true,
		Details: []journal.DetailParams{
			{AccountCode: "cash", Debit: d("25")},
			{AccountCode: "4000", Credit: d("25")},
		},
	})
	require.NoError(t, err)

	assert.True(t, d("25").Equal(f.balance(t, "cash")))
	assert.True(t, f.balance(t, "CASH").IsZero())
}

func TestStore_BeginHonoursContext(t *testing.T) {
	store := memstore.New()

	tx, err := store.Journal().Begin(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = store.Loans().Begin(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, tx.Rollback())

	ltx, err := store.Loans().Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, ltx.Commit())
	assert.ErrorIs(t, ltx.Commit(), memstore.ErrTxDone)
}

func TestJournal_SeedChartSkipsExistingCodes(t *testing.T) {
	f := newFixture(t, codes)

	created, err := f.journal.SeedChart(context.Background(), journal.DefaultChart())
	require.NoError(t, err)
	assert.Zero(t, created)

	accounts, err := f.journal.ListAccounts(context.Background(), journal.AccountFilter{})
	require.NoError(t, err)
	assert.Len(t, accounts, len(journal.DefaultChart()))
}
