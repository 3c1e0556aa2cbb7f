package journal

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType classifies a chart-of-accounts node.
type AccountType string

const (
	TypeAsset     AccountType = "asset"
	TypeLiability AccountType = "liability"
	TypeEquity    AccountType = "equity"
	TypeRevenue   AccountType = "revenue"
	TypeExpense   AccountType = "expense"
)

// AccountTypes lists every account type in chart order.
var AccountTypes = []AccountType{TypeAsset, TypeLiability, TypeEquity, TypeRevenue, TypeExpense}

func (t AccountType) IsValid() bool {
	switch t {
	case TypeAsset, TypeLiability, TypeEquity, TypeRevenue, TypeExpense:
		return true
	}

	return false
}

// Account is a node of the chart of accounts. CurrentBalance is only ever
// changed by posting an entry.
type Account struct {
	ID             uuid.UUID
	Code           string
	Name           string
	Type           AccountType
	ParentID       *uuid.UUID
	CurrentBalance decimal.Decimal
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}

// Entry is a journal entry header with its detail lines.
type Entry struct {
	ID          uuid.UUID
	Date        time.Time
	Reference   string
	Description string
	Posted      bool
	CreatedBy   string
	PostedBy    *string
	PostedAt    *time.Time
	Details     []Detail
	CreatedAt   time.Time
}

// Detail is one debit or credit line of an entry.
type Detail struct {
	ID          uuid.UUID
	EntryID     uuid.UUID
	AccountID   uuid.UUID
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

// Net is the line's effect on the account balance: debit minus credit.
func (d Detail) Net() decimal.Decimal {
	return d.Debit.Sub(d.Credit)
}

// Totals returns the debit and credit sums of the entry's lines.
func (e *Entry) Totals() (debit, credit decimal.Decimal) {
	for _, d := range e.Details {
		debit = debit.Add(d.Debit)
		credit = credit.Add(d.Credit)
	}

	return debit, credit
}

// BalanceChange reports how a posting moved one account.
type BalanceChange struct {
	AccountID uuid.UUID       `json:"account_id"`
	Before    decimal.Decimal `json:"before"`
	After     decimal.Decimal `json:"after"`
	Delta     decimal.Decimal `json:"delta"`
}

// Posting is the result of creating or posting an entry. Changes is empty when
// the entry was stored unposted.
type Posting struct {
	Entry   *Entry
	Changes []BalanceChange
}
