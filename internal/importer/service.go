package importer

import (
	"context"
	"io"
	"log/slog"

	"github.com/notcool100/financial-management-system/internal/loan"
)

//go:generate mockgen -source=service.go -destination=payer_mock.go -package=importer
type Payer interface {
	RecordPayment(ctx context.Context, params loan.PaymentParams) (*loan.PaymentResult, error)
}

type Service struct {
	parser *Parser
	payer  Payer
}

func NewService(payer Payer) *Service {
	return &Service{
		parser: NewParser(),
		payer:  payer,
	}
}

func (s *Service) Parse(r io.Reader) (*Batch, error) {
	return s.parser.Parse(r)
}

// Apply records every parsed row in file order, each in its own transaction.
// A failing row does not stop the rest; once ctx is done the remaining rows
// fail with its error.
func (s *Service) Apply(ctx context.Context, batch *Batch, actor string) ([]Outcome, Summary) {
	outcomes := make([]Outcome, 0, len(batch.Rows))
	summary := Summary{Skipped: len(batch.Errors)}

	for _, row := range batch.Rows {
		params := row.Params
		params.CreatedBy = actor

		out := Outcome{
			Line:           row.Line,
			LoanID:         params.LoanID,
			InstallmentSeq: params.InstallmentSeq,
		}

		if err := ctx.Err(); err != nil {
			out.Err = err
		} else if res, err := s.payer.RecordPayment(ctx, params); err != nil {
			out.Err = err
		} else {
			out.PaymentID = res.Payment.ID
			out.Closed = res.Closed
		}

		if out.Err != nil {
			summary.Failed++

			slog.Warn("Repayment row rejected", "line", row.Line, "loan_id", params.LoanID, "error", out.Err)
		} else {
			summary.Applied++
		}

		outcomes = append(outcomes, out)
	}

	slog.Info("Repayment import applied",
		"format", batch.Format,
		"applied", summary.Applied,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
	)

	return outcomes, summary
}
