package importer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/notcool100/financial-management-system/internal/loan"
)

func TestService_Apply(t *testing.T) {
	ctrl := gomock.NewController(t)
	payer := NewMockPayer(ctrl)
	svc := NewService(payer)

	loanID := uuid.New()
	csv := "loan_id;installment;amount;date\n" +
		loanID.String() + ";1;100;2024-02-15\n" +
		"broken;1;100;2024-02-15\n" +
		loanID.String() + ";1;100;2024-02-16\n" +
		loanID.String() + ";2;100;2024-03-15\n"

	batch, err := svc.Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, batch.Rows, 3)

	paymentID := uuid.New()

	gomock.InOrder(
		payer.EXPECT().RecordPayment(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, p loan.PaymentParams) (*loan.PaymentResult, error) {
				assert.Equal(t, "importer", p.CreatedBy)
				assert.Equal(t, 1, p.InstallmentSeq)

				return &loan.PaymentResult{Payment: &loan.Payment{ID: paymentID}}, nil
			}),
		payer.EXPECT().RecordPayment(gomock.Any(), gomock.Any()).
			Return(nil, loan.ErrInstallmentAlreadyPaid),
		payer.EXPECT().RecordPayment(gomock.Any(), gomock.Any()).
			Return(&loan.PaymentResult{Payment: &loan.Payment{ID: uuid.New()}, Closed: true}, nil),
	)

	outcomes, summary := svc.Apply(context.Background(), batch, "importer")

	assert.Equal(t, Summary{Applied: 2, Failed: 1, Skipped: 1}, summary)
	require.Len(t, outcomes, 3)

	assert.Equal(t, paymentID, outcomes[0].PaymentID)
	assert.Equal(t, 2, outcomes[0].Line)

	assert.ErrorIs(t, outcomes[1].Err, loan.ErrInstallmentAlreadyPaid)
	assert.Equal(t, 4, outcomes[1].Line)

	assert.True(t, outcomes[2].Closed)
	assert.Equal(t, 2, outcomes[2].InstallmentSeq)
}

func TestService_Apply_CancelledContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	payer := NewMockPayer(ctrl)
	svc := NewService(payer)

	batch := &Batch{Rows: []Row{{Line: 2}, {Line: 3}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes, summary := svc.Apply(ctx, batch, "importer")

	assert.Equal(t, 2, summary.Failed)

	for _, out := range outcomes {
		assert.True(t, errors.Is(out.Err, context.Canceled))
	}
}
