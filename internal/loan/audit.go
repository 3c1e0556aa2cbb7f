package loan

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/notcool100/financial-management-system/internal/amortization"
	"github.com/notcool100/financial-management-system/internal/emi"
)

// Mismatch is a stored schedule value that differs from the recomputed one.
type Mismatch struct {
	Seq      int    `json:"seq"`
	Field    string `json:"field"`
	Stored   string `json:"stored"`
	Expected string `json:"expected"`
}

type Audit struct {
	LoanID     uuid.UUID  `json:"loan_id"`
	Rows       int        `json:"rows"`
	Mismatches []Mismatch `json:"mismatches"`
}

func (a *Audit) Consistent() bool {
	return len(a.Mismatches) == 0
}

// AuditSchedule recomputes a loan's schedule from its stored terms and
// compares it row by row with the persisted installments.
func (s *Service) AuditSchedule(ctx context.Context, id uuid.UUID) (*Audit, error) {
	l, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	stored, err := s.repo.ListInstallments(ctx, id)
	if err != nil {
		return nil, storeErr("list installments", err)
	}

	rows, err := amortization.Build(l.Params(), l.DisburseDate)
	if err != nil {
		return nil, err
	}

	audit := &Audit{LoanID: l.ID, Rows: len(rows), Mismatches: []Mismatch{}}

	if len(stored) != len(rows) {
		audit.Mismatches = append(audit.Mismatches, Mismatch{
			Field:    "count",
			Stored:   fmt.Sprint(len(stored)),
			Expected: fmt.Sprint(len(rows)),
		})
	}

	bySeq := make(map[int]*Installment, len(stored))
	for _, inst := range stored {
		bySeq[inst.Seq] = inst
	}

	for _, r := range rows {
		inst, ok := bySeq[r.Seq]
		if !ok {
			audit.Mismatches = append(audit.Mismatches, Mismatch{Seq: r.Seq, Field: "missing"})
			continue
		}

		audit.compare(r, inst)
	}

	return audit, nil
}

func (a *Audit) compare(r amortization.Row, inst *Installment) {
	fields := []struct {
		field            string
		stored, expected string
	}{
		{"due_date", inst.DueDate.Format(time.DateOnly), r.DueDate.Format(time.DateOnly)},
		{"emi", inst.EMI.StringFixed(emi.Scale), r.EMI.StringFixed(emi.Scale)},
		{"principal", inst.Principal.StringFixed(emi.Scale), r.Principal.StringFixed(emi.Scale)},
		{"interest", inst.Interest.StringFixed(emi.Scale), r.Interest.StringFixed(emi.Scale)},
		{"remaining_principal", inst.RemainingPrincipal.StringFixed(emi.Scale), r.RemainingPrincipal.StringFixed(emi.Scale)},
	}

	for _, m := range fields {
		if m.stored != m.expected {
			a.Mismatches = append(a.Mismatches, Mismatch{Seq: r.Seq, Field: m.field, Stored: m.stored, Expected: m.expected})
		}
	}
}
