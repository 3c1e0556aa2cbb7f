package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// DefaultChart is the chart of accounts loan postings expect. It matches the
// rows seeded by the database migrations.
func DefaultChart() []CreateAccountParams {
	return []CreateAccountParams{
		{Code: "1000", Name: "Cash", Type: TypeAsset},
		{Code: "1200", Name: "Loan Portfolio", Type: TypeAsset},
		{Code: "2100", Name: "Client Advances", Type: TypeLiability},
		{Code: "3000", Name: "Retained Earnings", Type: TypeEquity},
		{Code: "4000", Name: "Interest Income", Type: TypeRevenue},
		{Code: "4100", Name: "Fee Income", Type: TypeRevenue},
		{Code: "4200", Name: "Penalty Income", Type: TypeRevenue},
		{Code: "5000", Name: "Operating Expenses", Type: TypeExpense},
	}
}

// SeedChart creates every account in chart whose code is not taken yet and
// returns how many were created.
func (s *Service) SeedChart(ctx context.Context, chart []CreateAccountParams) (int, error) {
	created := 0

	for _, params := range chart {
		_, err := s.CreateAccount(ctx, params)
		if errors.Is(err, ErrDuplicateAccountCode) {
			continue
		}

		if err != nil {
			return created, fmt.Errorf("seeding account %s: %w", params.Code, err)
		}

		created++
	}

	slog.Info("Chart of accounts seeded", "created", created, "total", len(chart))

	return created, nil
}
