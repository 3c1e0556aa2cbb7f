package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/notcool100/financial-management-system/internal/emi"
	enc "github.com/notcool100/financial-management-system/internal/encoding"
	"github.com/notcool100/financial-management-system/internal/loan"
)

var ErrNoHeader = errors.New("no repayment header found: expected loan_id, installment, amount and date columns")

// Parser reads repayment CSV files. The charset, separator and column layout
// are detected from the content.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(r io.Reader) (*Batch, error) {
	utf8r, charset, err := enc.NewUTF8Reader(r)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}

	br := bufio.NewReader(utf8r)

	sample, err := br.Peek(2048)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("peek: %w", err)
	}

	reader := csv.NewReader(br)
	reader.Comma = detectSeparator(sample)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	slog.Debug("Parsing repayment file", "charset", charset, "separator", string(reader.Comma))

	var (
		batch   Batch
		profile *Profile
		cols    colIndex
	)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}

		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) && profile != nil {
				batch.Errors = append(batch.Errors, &RowError{Line: parseErr.Line, Err: parseErr.Err})
				continue
			}

			return nil, fmt.Errorf("read csv: %w", err)
		}

		line, _ := reader.FieldPos(0)

		if profile == nil {
			profile, cols = detectProfile(record)
			if profile != nil {
				batch.Format = profile.Name
			}

			continue
		}

		if blank(record) {
			continue
		}

		params, err := parseRow(profile, cols, record)
		if err != nil {
			batch.Errors = append(batch.Errors, &RowError{Line: line, Err: err})
			continue
		}

		batch.Rows = append(batch.Rows, Row{Line: line, Params: params})
	}

	if profile == nil {
		return nil, ErrNoHeader
	}

	return &batch, nil
}

// detectSeparator picks ';' when it is at least as common as ',' in sample.
// European amounts put commas inside ';'-separated rows, never the reverse.
func detectSeparator(sample []byte) rune {
	if bytes.Count(sample, []byte(";")) >= bytes.Count(sample, []byte(",")) && bytes.Contains(sample, []byte(";")) {
		return ';'
	}

	return ','
}

type colIndex map[string]int

func detectProfile(row []string) (*Profile, colIndex) {
	cols := make(colIndex, len(row))

	for i, cell := range row {
		if name := normalizeHeader(cell); name != "" {
			cols[name] = i
		}
	}

	for i := range profiles {
		if matchesProfile(&profiles[i], cols) {
			return &profiles[i], cols
		}
	}

	return nil, nil
}

func matchesProfile(p *Profile, cols colIndex) bool {
	for _, name := range p.requiredCols() {
		if _, ok := cols[name]; !ok {
			return false
		}
	}

	return true
}

func parseRow(p *Profile, cols colIndex, row []string) (loan.PaymentParams, error) {
	var params loan.PaymentParams

	loanID, err := uuid.Parse(cell(row, cols, p.LoanCol))
	if err != nil {
		return params, fmt.Errorf("invalid loan id %q", cell(row, cols, p.LoanCol))
	}

	seqStr := cell(row, cols, p.SeqCol)

	seq, err := strconv.Atoi(seqStr)
	if err != nil || seq < 1 {
		return params, fmt.Errorf("invalid installment %q", seqStr)
	}

	amount, err := parseAmount(cell(row, cols, p.AmountCol))
	if err != nil {
		return params, err
	}

	if !amount.IsPositive() {
		return params, fmt.Errorf("amount must be positive, got %s", amount)
	}

	if !emi.IsMoney(amount) {
		return params, fmt.Errorf("amount %s has fractions of a cent", amount)
	}

	date, err := parseDate(cell(row, cols, p.DateCol))
	if err != nil {
		return params, err
	}

	fee := decimal.Zero

	if s := cell(row, cols, p.FeeCol); s != "" {
		fee, err = parseAmount(s)
		if err != nil {
			return params, fmt.Errorf("late fee: %w", err)
		}

		if fee.IsNegative() {
			return params, fmt.Errorf("late fee must not be negative, got %s", fee)
		}

		if !emi.IsMoney(fee) {
			return params, fmt.Errorf("late fee %s has fractions of a cent", fee)
		}
	}

	return loan.PaymentParams{
		LoanID:         loanID,
		InstallmentSeq: seq,
		Amount:         amount,
		PaymentDate:    date,
		LateFee:        fee,
		Notes:          cell(row, cols, p.NotesCol),
	}, nil
}

// cell returns the trimmed value of the named column, or "" when the column
// is absent from the header or the row is short.
func cell(row []string, cols colIndex, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}

	return true
}
