package journal

import (
	"context"

	"github.com/shopspring/decimal"
)

// TrialBalance summarises running balances across the chart of accounts.
// Balances follow the ledger's uniform convention (debit +, credit −) for
// every account type, so Total is zero whenever every posting was balanced.
type TrialBalance struct {
	Accounts []*Account
	ByType   map[AccountType]decimal.Decimal
	Debits   decimal.Decimal
	Credits  decimal.Decimal
	Total    decimal.Decimal
}

func (s *Service) TrialBalance(ctx context.Context) (*TrialBalance, error) {
	accounts, err := s.repo.ListAccounts(ctx, AccountFilter{})
	if err != nil {
		return nil, storeErr("list accounts", err)
	}

	tb := &TrialBalance{
		Accounts: accounts,
		ByType:   make(map[AccountType]decimal.Decimal, len(AccountTypes)),
	}

	for _, t := range AccountTypes {
		tb.ByType[t] = decimal.Zero
	}

	for _, a := range accounts {
		tb.ByType[a.Type] = tb.ByType[a.Type].Add(a.CurrentBalance)
		tb.Total = tb.Total.Add(a.CurrentBalance)

		if a.CurrentBalance.IsPositive() {
			tb.Debits = tb.Debits.Add(a.CurrentBalance)
		} else {
			tb.Credits = tb.Credits.Add(a.CurrentBalance.Neg())
		}
	}

	return tb, nil
}
