package loan

import "github.com/shopspring/decimal"

// Update is a partial update of a loan's mutable fields. Nil fields are left
// untouched; the terms of a loan are never part of it.
type Update struct {
	Status          *Status
	RemainingAmount *decimal.Decimal
}

func (u Update) IsEmpty() bool {
	return u.Status == nil && u.RemainingAmount == nil
}

// Apply copies the set fields onto l.
func (u Update) Apply(l *Loan) {
	if u.Status != nil {
		l.Status = *u.Status
	}

	if u.RemainingAmount != nil {
		l.RemainingAmount = *u.RemainingAmount
	}
}
