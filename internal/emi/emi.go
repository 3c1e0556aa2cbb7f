// Package emi computes equated periodic installment figures for flat-rate and
// diminishing-rate loans. All functions are pure.
package emi

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Mode is the interest calculation mode of a loan.
type Mode string

const (
	ModeFlat        Mode = "flat"
	ModeDiminishing Mode = "diminishing"
)

// IsValid reports whether m is a known calculation mode.
func (m Mode) IsValid() bool {
	return m == ModeFlat || m == ModeDiminishing
}

var ErrInvalidLoanParameters = errors.New("invalid loan parameters")

// Scale is the number of fractional digits money is rounded to on emission.
const Scale = 2

// RateScale is the number of fractional digits an interest rate may carry.
const RateScale = 4

// MaxTenureMonths caps the schedule length at fifty years.
const MaxTenureMonths = 600

// Cent is the smallest amount of money an installment can carry.
var Cent = decimal.New(1, -Scale)

var (
	hundred       = decimal.NewFromInt(100)
	twelve        = decimal.NewFromInt(12)
	twelveHundred = decimal.NewFromInt(1200)
)

// powScale bounds the precision of the compounding factor so long tenures
// don't grow the decimal without limit.
const powScale = 24

// Params are the loan terms the calculator works on. Rate is an annual
// percentage expressed as a plain number (12.5 means 12.5%).
type Params struct {
	Principal    decimal.Decimal
	Rate         decimal.Decimal
	TenureMonths int
	Mode         Mode
}

// Result holds the loan-level figures, rounded to two decimals.
type Result struct {
	EMI           decimal.Decimal `json:"emi"`
	TotalInterest decimal.Decimal `json:"total_interest"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

// Validate checks the parameter ranges shared by both modes.
func (p Params) Validate() error {
	if !p.Principal.IsPositive() {
		return fmt.Errorf("%w: principal must be positive", ErrInvalidLoanParameters)
	}

	if !IsMoney(p.Principal) {
		return fmt.Errorf("%w: principal has more than %d decimal places", ErrInvalidLoanParameters, Scale)
	}

	if p.Rate.IsNegative() {
		return fmt.Errorf("%w: rate must not be negative", ErrInvalidLoanParameters)
	}

	if !p.Rate.Equal(p.Rate.Round(RateScale)) {
		return fmt.Errorf("%w: rate has more than %d decimal places", ErrInvalidLoanParameters, RateScale)
	}

	if p.TenureMonths < 1 {
		return fmt.Errorf("%w: tenure must be at least one month", ErrInvalidLoanParameters)
	}

	if p.TenureMonths > MaxTenureMonths {
		return fmt.Errorf("%w: tenure must not exceed %d months", ErrInvalidLoanParameters, MaxTenureMonths)
	}

	// Every installment repays at least one cent of principal.
	if p.Principal.LessThan(Cent.Mul(decimal.NewFromInt(int64(p.TenureMonths)))) {
		return fmt.Errorf("%w: principal is too small for %d installments", ErrInvalidLoanParameters, p.TenureMonths)
	}

	if !p.Mode.IsValid() {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidLoanParameters, p.Mode)
	}

	return nil
}

// IsMoney reports whether d fits in whole cents.
func IsMoney(d decimal.Decimal) bool {
	return d.Equal(d.Round(Scale))
}

// Calculate returns the EMI, total interest and total payable amount.
func Calculate(p Params) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}

	n := decimal.NewFromInt(int64(p.TenureMonths))

	switch p.Mode {
	case ModeFlat:
		interest := FlatInterest(p)
		total := p.Principal.Add(interest)

		return Result{
			EMI:           total.Div(n).Round(Scale),
			TotalInterest: interest.Round(Scale),
			TotalAmount:   total.Round(Scale),
		}, nil
	default:
		payment := DiminishingPayment(p)
		total := payment.Mul(n)

		return Result{
			EMI:           payment.Round(Scale),
			TotalInterest: total.Sub(p.Principal).Round(Scale),
			TotalAmount:   total.Round(Scale),
		}, nil
	}
}

// FlatInterest is the unrounded interest charged on the original principal
// over the whole tenure: principal × rate × months / 1200.
func FlatInterest(p Params) decimal.Decimal {
	return p.Principal.
		Mul(p.Rate).
		Mul(decimal.NewFromInt(int64(p.TenureMonths))).
		Div(twelveHundred)
}

// MonthlyRate converts an annual percentage into a monthly fraction.
func MonthlyRate(rate decimal.Decimal) decimal.Decimal {
	return rate.Div(twelve).Div(hundred)
}

// DiminishingPayment is the unrounded amortizing payment
// P × r × (1+r)^n / ((1+r)^n − 1), degrading to P / n when r is zero.
func DiminishingPayment(p Params) decimal.Decimal {
	n := decimal.NewFromInt(int64(p.TenureMonths))

	r := MonthlyRate(p.Rate)
	if r.IsZero() {
		return p.Principal.Div(n)
	}

	factor := compound(decimal.NewFromInt(1).Add(r), p.TenureMonths)

	return p.Principal.Mul(r).Mul(factor).Div(factor.Sub(decimal.NewFromInt(1)))
}

func compound(base decimal.Decimal, periods int) decimal.Decimal {
	f := decimal.NewFromInt(1)
	for range periods {
		f = f.Mul(base).Round(powScale)
	}

	return f
}
