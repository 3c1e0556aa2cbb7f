package importer_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/notcool100/financial-management-system/internal/importer"
)

const loanA = "6f1c2a4e-8b1d-4c9a-9a57-3f0e2b7d1c01"

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func TestParser_Standard(t *testing.T) {
	type testCase struct {
		name    string
		csv     string
		wantLen int
		verify  func(t *testing.T, b *importer.Batch)
	}

	tests := []testCase{
		{
			name: "Semicolon European Amounts",
			csv: "loan_id;installment;amount;date;late_fee;notes\n" +
				loanA + ";1;11.200,00;15-02-2024;;first\n" +
				loanA + ";2;11.250,50;2024-03-20;50,00;late\n",
			wantLen: 2,
			verify: func(t *testing.T, b *importer.Batch) {
				assert.Equal(t, "standard", b.Format)

				first := b.Rows[0]
				assert.Equal(t, 2, first.Line)
				assert.Equal(t, uuid.MustParse(loanA), first.Params.LoanID)
				assert.Equal(t, 1, first.Params.InstallmentSeq)
				assert.True(t, decimal.RequireFromString("11200").Equal(first.Params.Amount))
				assert.True(t, first.Params.LateFee.IsZero())
				assert.Equal(t, date(2024, 2, 15), first.Params.PaymentDate)
				assert.Equal(t, "first", first.Params.Notes)

				second := b.Rows[1]
				assert.Equal(t, 3, second.Line)
				assert.True(t, decimal.RequireFromString("11250.50").Equal(second.Params.Amount))
				assert.True(t, decimal.RequireFromString("50").Equal(second.Params.LateFee))
				assert.Equal(t, date(2024, 3, 20), second.Params.PaymentDate)
			},
		},
		{
			name: "Comma Separated Without Optional Columns",
			csv: "date,amount,installment,loan_id\n" +
				"2024-02-15,1234.56,1," + loanA + "\n",
			wantLen: 1,
			verify: func(t *testing.T, b *importer.Batch) {
				assert.True(t, decimal.RequireFromString("1234.56").Equal(b.Rows[0].Params.Amount))
				assert.Empty(t, b.Rows[0].Params.Notes)
			},
		},
		{
			name: "Preamble And Blank Lines",
			csv: "Branch;North\nExported;2024-02-16\n\n" +
				"LOAN_ID;Installment;Amount;Date\n" +
				loanA + ";1;100;15/02/2024\n" +
				";;;\n",
			wantLen: 1,
			verify: func(t *testing.T, b *importer.Batch) {
				assert.Equal(t, 5, b.Rows[0].Line)
				assert.Empty(t, b.Errors)
			},
		},
		{
			name: "Collection Sheet",
			csv: "Loan;Installment No;Amount Paid;Payment Date;Penalty;Remarks\n" +
				loanA + ";3;11.200,00;15-04-2024;25,00;cash at branch\n",
			wantLen: 1,
			verify: func(t *testing.T, b *importer.Batch) {
				assert.Equal(t, "collection", b.Format)
				assert.Equal(t, 3, b.Rows[0].Params.InstallmentSeq)
				assert.True(t, decimal.RequireFromString("25").Equal(b.Rows[0].Params.LateFee))
				assert.Equal(t, "cash at branch", b.Rows[0].Params.Notes)
			},
		},
		{
			name:    "Header Only",
			csv:     "loan_id;installment;amount;date\n",
			wantLen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := importer.NewParser().Parse(strings.NewReader(tt.csv))
			require.NoError(t, err)
			require.Len(t, b.Rows, tt.wantLen)

			if tt.verify != nil {
				tt.verify(t, b)
			}
		})
	}
}

func TestParser_RowErrors(t *testing.T) {
	csv := "loan_id;installment;amount;date;late_fee\n" +
		"not-a-uuid;1;100;2024-02-15;\n" +
		loanA + ";zero;100;2024-02-15;\n" +
		loanA + ";0;100;2024-02-15;\n" +
		loanA + ";1;-5;2024-02-15;\n" +
		loanA + ";1;abc;2024-02-15;\n" +
		loanA + ";1;100;31-31-2024;\n" +
		loanA + ";1;100;2024-02-15;-1\n" +
		loanA + ";1;100.005;2024-02-15;\n" +
		loanA + ";1;100;2024-02-15;\n"

	b, err := importer.NewParser().Parse(strings.NewReader(csv))
	require.NoError(t, err)

	require.Len(t, b.Rows, 1)
	assert.Equal(t, 10, b.Rows[0].Line)

	require.Len(t, b.Errors, 8)

	for i, rowErr := range b.Errors {
		assert.Equal(t, i+2, rowErr.Line)
	}

	assert.Contains(t, b.Errors[0].Error(), "line 2: invalid loan id")
	assert.Contains(t, b.Errors[1].Error(), "invalid installment")
	assert.Contains(t, b.Errors[3].Error(), "amount must be positive")
	assert.Contains(t, b.Errors[5].Error(), "invalid date")
	assert.Contains(t, b.Errors[6].Error(), "late fee")
	assert.Contains(t, b.Errors[7].Error(), "fractions of a cent")
}

func TestParser_NoHeader(t *testing.T) {
	for _, content := range []string{"", "date;amount\n2024-01-01;10\n"} {
		_, err := importer.NewParser().Parse(strings.NewReader(content))
		assert.ErrorIs(t, err, importer.ErrNoHeader)
	}
}

func TestParser_Latin1Notes(t *testing.T) {
	utf8CSV := "loan_id;installment;amount;date;notes\n" + loanA + ";1;100,00;2024-02-15;reçu à l'agence\n"

	latin1, err := charmap.Windows1252.NewEncoder().Bytes([]byte(utf8CSV))
	require.NoError(t, err)

	b, err := importer.NewParser().Parse(bytes.NewReader(latin1))
	require.NoError(t, err)
	require.Len(t, b.Rows, 1)

	assert.Equal(t, "reçu à l'agence", b.Rows[0].Params.Notes)
}

func TestParseAmountFormats(t *testing.T) {
	type testCase struct {
		in   string
		want string
	}

	tests := []testCase{
		{in: "1234.56", want: "1234.56"},
		{in: "1,234.56", want: "1234.56"},
		{in: "1.234,56", want: "1234.56"},
		{in: "1.234.567,00", want: "1234567"},
		{in: "12,5", want: "12.5"},
		{in: "1 000,00", want: "1000"},
		{in: "500", want: "500"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			csv := "loan_id;installment;amount;date\n" + loanA + ";1;" + tt.in + ";2024-02-15\n"

			b, err := importer.NewParser().Parse(strings.NewReader(csv))
			require.NoError(t, err)
			require.Len(t, b.Rows, 1)

			assert.True(t, decimal.RequireFromString(tt.want).Equal(b.Rows[0].Params.Amount),
				"got %s", b.Rows[0].Params.Amount)
		})
	}
}
