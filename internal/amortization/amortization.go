// Package amortization expands loan terms into a dated installment schedule.
//
// Build is a pure function of its inputs: recomputing a schedule from the same
// terms and disbursement date always yields identical rows, which is what the
// schedule audit relies on.
package amortization

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/notcool100/financial-management-system/internal/emi"
)

// Row is one installment of a schedule. EMI always equals Principal + Interest,
// and every row repays at least one cent of principal.
type Row struct {
	Seq                int
	DueDate            time.Time
	EMI                decimal.Decimal
	Principal          decimal.Decimal
	Interest           decimal.Decimal
	RemainingPrincipal decimal.Decimal
}

// Build returns the installments 1..TenureMonths for the given terms.
func Build(p emi.Params, disbursed time.Time) ([]Row, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if p.Mode == emi.ModeFlat {
		return buildFlat(p, disbursed), nil
	}

	return buildDiminishing(p, disbursed), nil
}

func buildFlat(p emi.Params, disbursed time.Time) []Row {
	n := decimal.NewFromInt(int64(p.TenureMonths))
	total := p.Principal.Add(emi.FlatInterest(p))

	payment := total.Div(n).Round(emi.Scale)
	interest := emi.FlatInterest(p).Div(n).Round(emi.Scale)
	perPeriod := payment.Sub(interest)

	rows := make([]Row, 0, p.TenureMonths)
	balance := p.Principal

	for seq := 1; seq <= p.TenureMonths; seq++ {
		principal := balance
		if seq < p.TenureMonths {
			principal = bounded(perPeriod, balance, perPeriod, p.TenureMonths-seq)
		}

		balance = balance.Sub(principal)

		rows = append(rows, Row{
			Seq:                seq,
			DueDate:            DueDate(disbursed, seq),
			EMI:                principal.Add(interest),
			Principal:          principal,
			Interest:           interest,
			RemainingPrincipal: balance,
		})
	}

	return rows
}

// buildDiminishing simulates the outstanding balance at full precision and
// emits each row's principal as the drop in the rounded balance, so rounding
// error never compounds and the principal column sums to the loan principal.
// The final row settles whatever balance is left.
func buildDiminishing(p emi.Params, disbursed time.Time) []Row {
	r := emi.MonthlyRate(p.Rate)
	exact := emi.DiminishingPayment(p)
	payment := exact.Round(emi.Scale)

	rows := make([]Row, 0, p.TenureMonths)
	outstanding := p.Principal
	balance := p.Principal

	for seq := 1; seq <= p.TenureMonths; seq++ {
		interestExact := outstanding.Mul(r)
		outstanding = outstanding.Sub(exact.Sub(interestExact))

		row := Row{Seq: seq, DueDate: DueDate(disbursed, seq)}

		if seq == p.TenureMonths {
			row.Principal = balance
			row.Interest = interestExact.Round(emi.Scale)
			row.EMI = row.Principal.Add(row.Interest)
		} else {
			drop := balance.Sub(outstanding.Round(emi.Scale))
			row.Principal = bounded(drop, balance, payment, p.TenureMonths-seq)
			row.Interest = payment.Sub(row.Principal)
			row.EMI = payment
		}

		balance = balance.Sub(row.Principal)
		row.RemainingPrincipal = balance

		rows = append(rows, row)
	}

	return rows
}

// bounded clamps a row's principal to at least one cent and at most ceiling,
// while leaving a cent for each of the rows still to come.
func bounded(want, balance, ceiling decimal.Decimal, rowsLeft int) decimal.Decimal {
	reserve := emi.Cent.Mul(decimal.NewFromInt(int64(rowsLeft)))
	upper := decimal.Min(ceiling, balance.Sub(reserve))

	return decimal.Max(emi.Cent, decimal.Min(want, upper))
}

// DueDate returns the date `period` months after disbursement on the same day
// of month, clamped to the last day of shorter months (Jan 31 -> Feb 28/29).
// Periods are always counted from the disbursement date, so a clamped month
// does not drag later due dates.
func DueDate(disbursed time.Time, period int) time.Time {
	first := time.Date(disbursed.Year(), disbursed.Month()+time.Month(period), 1, 0, 0, 0, 0, disbursed.Location())

	day := min(disbursed.Day(), daysIn(first.Year(), first.Month()))

	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, disbursed.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Totals sums the principal and interest components of a schedule.
func Totals(rows []Row) (principal, interest decimal.Decimal) {
	for _, r := range rows {
		principal = principal.Add(r.Principal)
		interest = interest.Add(r.Interest)
	}

	return principal, interest
}
