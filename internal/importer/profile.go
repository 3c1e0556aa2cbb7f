package importer

import "strings"

// Profile describes the column layout of a repayment file. Header matching is
// case-insensitive; Fee and Notes columns are optional.
type Profile struct {
	Name      string
	LoanCol   string
	SeqCol    string
	AmountCol string
	DateCol   string
	FeeCol    string
	NotesCol  string
}

func (p Profile) requiredCols() []string {
	return []string{p.LoanCol, p.SeqCol, p.AmountCol, p.DateCol}
}

// profiles is tried in order against every row until one matches a header.
var profiles = []Profile{
	{
		Name:      "standard",
		LoanCol:   "loan_id",
		SeqCol:    "installment",
		AmountCol: "amount",
		DateCol:   "date",
		FeeCol:    "late_fee",
		NotesCol:  "notes",
	},
	{
		// Branch collection sheets exported from the dashboard.
		Name:      "collection",
		LoanCol:   "loan",
		SeqCol:    "installment no",
		AmountCol: "amount paid",
		DateCol:   "payment date",
		FeeCol:    "penalty",
		NotesCol:  "remarks",
	},
}

func normalizeHeader(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
