// Package export renders loan statements as CSV, one file per loan.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/notcool100/financial-management-system/internal/loan"
)

//go:generate mockgen -source=service.go -destination=loans_mock.go -package=export

// Loans is the read side of the loan service a statement is built from.
type Loans interface {
	Get(ctx context.Context, id uuid.UUID) (*loan.Loan, error)
	List(ctx context.Context, filter loan.ListFilter) ([]*loan.Loan, error)
	Schedule(ctx context.Context, id uuid.UUID) ([]*loan.Installment, error)
	Payments(ctx context.Context, id uuid.UUID) ([]*loan.Payment, error)
}

// Statement is a loan with its schedule and the payments made against it.
type Statement struct {
	Loan         *loan.Loan
	Installments []*loan.Installment
	Payments     []*loan.Payment
}

// Item links an exported loan to the file its statement was written to.
type Item struct {
	Loan     *loan.Loan
	FilePath string
}

var header = []string{
	"installment", "due_date", "emi", "principal", "interest", "remaining_principal",
	"paid", "paid_date", "amount_paid", "late_fee", "late",
}

type Service struct {
	loans Loans
}

func NewService(loans Loans) *Service {
	return &Service{loans: loans}
}

// Statement loads everything a statement shows for one loan.
func (s *Service) Statement(ctx context.Context, id uuid.UUID) (*Statement, error) {
	l, err := s.loans.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.statement(ctx, l)
}

func (s *Service) statement(ctx context.Context, l *loan.Loan) (*Statement, error) {
	insts, err := s.loans.Schedule(ctx, l.ID)
	if err != nil {
		return nil, fmt.Errorf("loading schedule: %w", err)
	}

	payments, err := s.loans.Payments(ctx, l.ID)
	if err != nil {
		return nil, fmt.Errorf("loading payments: %w", err)
	}

	return &Statement{Loan: l, Installments: insts, Payments: payments}, nil
}

// WriteCSV writes one row per installment, joined with the payment that
// settled it.
func WriteCSV(w io.Writer, st *Statement) error {
	bySeq := make(map[int]*loan.Payment, len(st.Payments))
	for _, p := range st.Payments {
		bySeq[p.InstallmentSeq] = p
	}

	cw := csv.NewWriter(w)

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, inst := range st.Installments {
		record := []string{
			strconv.Itoa(inst.Seq),
			inst.DueDate.Format("2006-01-02"),
			inst.EMI.StringFixed(2),
			inst.Principal.StringFixed(2),
			inst.Interest.StringFixed(2),
			inst.RemainingPrincipal.StringFixed(2),
			strconv.FormatBool(inst.Paid),
			"", "", "", "",
		}

		if inst.PaidDate != nil {
			record[7] = inst.PaidDate.Format("2006-01-02")
		}

		if p, ok := bySeq[inst.Seq]; ok {
			record[8] = p.Amount.StringFixed(2)
			record[9] = p.LateFee.StringFixed(2)
			record[10] = strconv.FormatBool(p.Late)
		}

		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing installment %d: %w", inst.Seq, err)
		}
	}

	cw.Flush()

	return cw.Error()
}

// Export writes a statement file for every loan matching the filter into
// outputDir and returns the files written.
func (s *Service) Export(ctx context.Context, filter loan.ListFilter, outputDir string) ([]Item, error) {
	loans, err := s.loans.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing loans: %w", err)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	items := make([]Item, 0, len(loans))

	for _, l := range loans {
		st, err := s.statement(ctx, l)
		if err != nil {
			return nil, fmt.Errorf("loan %s: %w", l.ID, err)
		}

		path := filepath.Join(outputDir, Filename(l))
		if err := writeFile(path, st); err != nil {
			return nil, err
		}

		items = append(items, Item{Loan: l, FilePath: path})
	}

	return items, nil
}

func writeFile(path string, st *Statement) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}

	if err := WriteCSV(f, st); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

// Filename is YYYYMMDD_<loan id>_<status>.csv, keyed on the disbursement date.
func Filename(l *loan.Loan) string {
	status := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}

		return '_'
	}, string(l.Status))

	return fmt.Sprintf("%s_%s_%s.csv", l.DisburseDate.Format("20060102"), l.ID, status)
}

// Summary renders one line per exported loan.
func Summary(items []Item) string {
	var sb strings.Builder

	for _, item := range items {
		l := item.Loan
		fmt.Fprintf(&sb, "* %s | %s | EMI %s | outstanding %s | %s\n",
			l.ID, l.Status, l.EMI.StringFixed(2), l.RemainingAmount.StringFixed(2), filepath.Base(item.FilePath))
	}

	return sb.String()
}
