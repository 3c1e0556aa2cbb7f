package importcsv

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/notcool100/financial-management-system/internal/http/auth"
	"github.com/notcool100/financial-management-system/internal/http/respond"
	"github.com/notcool100/financial-management-system/internal/importer"
)

type Handler struct {
	importSvc *importer.Service
}

func NewHandler(importSvc *importer.Service) *Handler {
	return &Handler{importSvc: importSvc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/repayments", h.importRepayments)
}

type rowResponse struct {
	Line        int        `json:"line"`
	LoanID      uuid.UUID  `json:"loan_id"`
	Installment int        `json:"installment"`
	Amount      string     `json:"amount,omitempty"`
	PaymentID   *uuid.UUID `json:"payment_id,omitempty"`
	Closed      bool       `json:"closed,omitempty"`
	Error       string     `json:"error,omitempty"`
}

type rowErrorResponse struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

type importResponse struct {
	Format  string             `json:"format"`
	DryRun  bool               `json:"dry_run"`
	Applied int                `json:"applied"`
	Failed  int                `json:"failed"`
	Skipped int                `json:"skipped"`
	Rows    []rowResponse      `json:"rows"`
	Errors  []rowErrorResponse `json:"errors"`
}

// importRepayments parses a multipart "file" field and records each row.
// With dry_run=true the rows are only parsed and echoed back.
func (h *Handler) importRepayments(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		respond.Error(w, respond.Invalid("failed to parse form: %v", err))
		return
	}

	dryRun, _ := strconv.ParseBool(r.FormValue("dry_run"))

	file, _, err := r.FormFile("file")
	if err != nil {
		respond.Error(w, respond.Invalid("file field is required"))
		return
	}
	defer file.Close()

	batch, err := h.importSvc.Parse(file)
	if err != nil {
		if errors.Is(err, importer.ErrNoHeader) {
			respond.Error(w, respond.Invalid("%v", err))
			return
		}

		respond.Error(w, err)

		return
	}

	resp := importResponse{
		Format:  batch.Format,
		DryRun:  dryRun,
		Skipped: len(batch.Errors),
		Rows:    make([]rowResponse, 0, len(batch.Rows)),
		Errors:  make([]rowErrorResponse, 0, len(batch.Errors)),
	}

	for _, e := range batch.Errors {
		resp.Errors = append(resp.Errors, rowErrorResponse{Line: e.Line, Error: e.Err.Error()})
	}

	if dryRun {
		for _, row := range batch.Rows {
			resp.Rows = append(resp.Rows, rowResponse{
				Line:        row.Line,
				LoanID:      row.Params.LoanID,
				Installment: row.Params.InstallmentSeq,
				Amount:      row.Params.Amount.StringFixed(2),
			})
		}

		respond.JSON(w, http.StatusOK, resp)

		return
	}

	outcomes, summary := h.importSvc.Apply(r.Context(), batch, auth.Actor(r.Context()))

	resp.Applied = summary.Applied
	resp.Failed = summary.Failed

	for _, out := range outcomes {
		row := rowResponse{
			Line:        out.Line,
			LoanID:      out.LoanID,
			Installment: out.InstallmentSeq,
			Closed:      out.Closed,
		}

		if out.Err != nil {
			row.Error = out.Err.Error()
		} else {
			row.PaymentID = new(out.PaymentID)
		}

		resp.Rows = append(resp.Rows, row)
	}

	respond.JSON(w, http.StatusOK, resp)
}
