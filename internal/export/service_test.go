package export

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/notcool100/financial-management-system/internal/loan"
)

func date(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}

	return t
}

func fixture() (*loan.Loan, []*loan.Installment, []*loan.Payment) {
	id := uuid.MustParse("7f1c2a4e-0000-4000-8000-000000000001")
	paid := date("2024-02-10")

	l := &loan.Loan{
		ID:              id,
		Status:          loan.StatusActive,
		Principal:       decimal.NewFromInt(20000),
		EMI:             decimal.RequireFromString("10150.37"),
		RemainingAmount: decimal.RequireFromString("10049.63"),
		DisburseDate:    date("2024-01-15"),
	}

	insts := []*loan.Installment{
		{
			LoanID: id, Seq: 1, DueDate: date("2024-02-15"),
			EMI: decimal.RequireFromString("10150.37"), Principal: decimal.RequireFromString("9950.37"),
			Interest: decimal.NewFromInt(200), RemainingPrincipal: decimal.RequireFromString("10049.63"),
			Paid: true, PaidDate: &paid,
		},
		{
			LoanID: id, Seq: 2, DueDate: date("2024-03-15"),
			EMI: decimal.RequireFromString("10150.13"), Principal: decimal.RequireFromString("10049.63"),
			Interest: decimal.RequireFromString("100.50"), RemainingPrincipal: decimal.Zero,
		},
	}

	payments := []*loan.Payment{
		{LoanID: id, InstallmentSeq: 1, Amount: decimal.RequireFromString("10150.37"), LateFee: decimal.Zero, PaymentDate: paid},
	}

	return l, insts, payments
}

func TestWriteCSV(t *testing.T) {
	l, insts, payments := fixture()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, &Statement{Loan: l, Installments: insts, Payments: payments}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)

	assert.Equal(t, strings.Join(header, ","), lines[0])
	assert.Equal(t, "1,2024-02-15,10150.37,9950.37,200.00,10049.63,true,2024-02-10,10150.37,0.00,false", lines[1])
	assert.Equal(t, "2,2024-03-15,10150.13,10049.63,100.50,0.00,false,,,,", lines[2])
}

func TestService_Statement(t *testing.T) {
	type testCase struct {
		name    string
		setup   func(m *MockLoans, id uuid.UUID)
		wantErr error
	}

	l, insts, payments := fixture()
	errBoom := errors.New("boom")

	tests := []testCase{
		{
			name: "Loads schedule and payments",
			setup: func(m *MockLoans, id uuid.UUID) {
				m.EXPECT().Get(gomock.Any(), id).Return(l, nil)
				m.EXPECT().Schedule(gomock.Any(), id).Return(insts, nil)
				m.EXPECT().Payments(gomock.Any(), id).Return(payments, nil)
			},
		},
		{
			name: "Unknown loan",
			setup: func(m *MockLoans, id uuid.UUID) {
				m.EXPECT().Get(gomock.Any(), id).Return(nil, loan.ErrNotFound)
			},
			wantErr: loan.ErrNotFound,
		},
		{
			name: "Payments fail",
			setup: func(m *MockLoans, id uuid.UUID) {
				m.EXPECT().Get(gomock.Any(), id).Return(l, nil)
				m.EXPECT().Schedule(gomock.Any(), id).Return(insts, nil)
				m.EXPECT().Payments(gomock.Any(), id).Return(nil, errBoom)
			},
			wantErr: errBoom,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			loans := NewMockLoans(ctrl)
			tc.setup(loans, l.ID)

			st, err := NewService(loans).Statement(context.Background(), l.ID)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, l, st.Loan)
			assert.Len(t, st.Installments, 2)
			assert.Len(t, st.Payments, 1)
		})
	}
}

func TestService_Export(t *testing.T) {
	ctrl := gomock.NewController(t)
	loans := NewMockLoans(ctrl)

	l, insts, payments := fixture()
	filter := loan.ListFilter{Status: new(loan.StatusActive)}

	loans.EXPECT().List(gomock.Any(), filter).Return([]*loan.Loan{l}, nil)
	loans.EXPECT().Schedule(gomock.Any(), l.ID).Return(insts, nil)
	loans.EXPECT().Payments(gomock.Any(), l.ID).Return(payments, nil)

	dir := filepath.Join(t.TempDir(), "statements")

	items, err := NewService(loans).Export(context.Background(), filter, dir)
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, filepath.Join(dir, "20240115_7f1c2a4e-0000-4000-8000-000000000001_active.csv"), items[0].FilePath)

	content, err := os.ReadFile(items[0].FilePath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "2,2024-03-15,10150.13")

	assert.Equal(t,
		"* 7f1c2a4e-0000-4000-8000-000000000001 | active | EMI 10150.37 | outstanding 10049.63 | 20240115_7f1c2a4e-0000-4000-8000-000000000001_active.csv\n",
		Summary(items),
	)
}

func TestService_ExportListFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	loans := NewMockLoans(ctrl)

	loans.EXPECT().List(gomock.Any(), loan.ListFilter{}).Return(nil, loan.ErrPersistence)

	_, err := NewService(loans).Export(context.Background(), loan.ListFilter{}, t.TempDir())
	assert.ErrorIs(t, err, loan.ErrPersistence)
}
