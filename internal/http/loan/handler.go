package loan

import (
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/notcool100/financial-management-system/internal/amortization"
	"github.com/notcool100/financial-management-system/internal/emi"
	"github.com/notcool100/financial-management-system/internal/export"
	"github.com/notcool100/financial-management-system/internal/http/auth"
	"github.com/notcool100/financial-management-system/internal/http/respond"
	"github.com/notcool100/financial-management-system/internal/loan"
)

type Handler struct {
	svc        *loan.Service
	statements *export.Service
	now        func() time.Time
}

func NewHandler(svc *loan.Service) *Handler {
	return &Handler{svc: svc, statements: export.NewService(svc), now: time.Now}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/calculate", h.calculate)
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Get("/{id}/schedule", h.schedule)
	r.Get("/{id}/payments", h.payments)
	r.Get("/{id}/transactions", h.transactions)
	r.Get("/{id}/audit", h.audit)
	r.Get("/{id}/statement", h.statement)
	r.Patch("/{id}/status", h.updateStatus)
	r.Post("/{id}/payments", h.recordPayment)
}

type termsRequest struct {
	Principal    string `json:"principal" validate:"required,numeric"`
	InterestRate string `json:"interest_rate" validate:"required,numeric"`
	TenureMonths int    `json:"tenure_months" validate:"required,min=1,max=600"`
	Mode         string `json:"mode" validate:"required,oneof=flat diminishing"`
}

func (t termsRequest) params() (emi.Params, error) {
	principal, err := respond.ParseDecimal("principal", t.Principal)
	if err != nil {
		return emi.Params{}, err
	}

	rate, err := respond.ParseDecimal("interest_rate", t.InterestRate)
	if err != nil {
		return emi.Params{}, err
	}

	return emi.Params{
		Principal:    principal,
		Rate:         rate,
		TenureMonths: t.TenureMonths,
		Mode:         emi.Mode(t.Mode),
	}, nil
}

type calculateRequest struct {
	termsRequest
	// When set, the response includes the full schedule.
	DisburseDate string `json:"disburse_date" validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) calculate(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, err)
		return
	}

	p, err := req.params()
	if err != nil {
		respond.Error(w, err)
		return
	}

	res, err := h.svc.Calculate(p)
	if err != nil {
		respond.Error(w, err)
		return
	}

	resp := calculateResponse{
		EMI:           respond.Money(res.EMI),
		TotalInterest: respond.Money(res.TotalInterest),
		TotalAmount:   respond.Money(res.TotalAmount),
	}

	if req.DisburseDate != "" {
		disbursed, _ := time.Parse(time.DateOnly, req.DisburseDate)

		rows, err := amortization.Build(p, disbursed)
		if err != nil {
			respond.Error(w, err)
			return
		}

		resp.Schedule = rowsToSchedule(rows)
	}

	respond.JSON(w, http.StatusOK, resp)
}

type createLoanRequest struct {
	termsRequest
	ClientID      string `json:"client_id" validate:"required,uuid"`
	LoanTypeID    string `json:"loan_type_id" validate:"required,uuid"`
	DisburseDate  string `json:"disburse_date" validate:"required,datetime=2006-01-02"`
	ProcessingFee string `json:"processing_fee" validate:"omitempty,numeric"`
	Notes         string `json:"notes"`
}

type createLoanResponse struct {
	Loan     loanResponse          `json:"loan"`
	Schedule []installmentResponse `json:"schedule"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createLoanRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, err)
		return
	}

	p, err := req.params()
	if err != nil {
		respond.Error(w, err)
		return
	}

	fee, err := respond.ParseDecimal("processing_fee", req.ProcessingFee)
	if err != nil {
		respond.Error(w, err)
		return
	}

	disbursed, _ := time.Parse(time.DateOnly, req.DisburseDate)

	l, schedule, err := h.svc.Create(r.Context(), loan.CreateParams{
		ClientID:      uuid.MustParse(req.ClientID),
		LoanTypeID:    uuid.MustParse(req.LoanTypeID),
		Mode:          p.Mode,
		Principal:     p.Principal,
		InterestRate:  p.Rate,
		TenureMonths:  p.TenureMonths,
		DisburseDate:  disbursed,
		ProcessingFee: fee,
		Notes:         req.Notes,
		CreatedBy:     auth.Actor(r.Context()),
	})
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusCreated, createLoanResponse{
		Loan:     toLoanResponse(l),
		Schedule: toSchedule(schedule),
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := loan.ListFilter{}

	if s := r.URL.Query().Get("status"); s != "" {
		status := loan.Status(s)
		if !status.IsValid() {
			respond.Error(w, respond.Invalid("unknown status %q", s))
			return
		}

		filter.Status = &status
	}

	if s := r.URL.Query().Get("client_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			respond.Error(w, respond.Invalid("invalid client_id"))
			return
		}

		filter.ClientID = &id
	}

	loans, err := h.svc.List(r.Context(), filter)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toLoanList(loans))
}

func loanID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, respond.Invalid("invalid id")
	}

	return id, nil
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := loanID(r)
	if err != nil {
		respond.Error(w, err)
		return
	}

	l, err := h.svc.Get(r.Context(), id)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toLoanResponse(l))
}

func (h *Handler) schedule(w http.ResponseWriter, r *http.Request) {
	id, err := loanID(r)
	if err != nil {
		respond.Error(w, err)
		return
	}

	items, err := h.svc.Schedule(r.Context(), id)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toSchedule(items))
}

func (h *Handler) payments(w http.ResponseWriter, r *http.Request) {
	id, err := loanID(r)
	if err != nil {
		respond.Error(w, err)
		return
	}

	payments, err := h.svc.Payments(r.Context(), id)
	if err != nil {
		respond.Error(w, err)
		return
	}

	out := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentResponse(p))
	}

	respond.JSON(w, http.StatusOK, out)
}

func (h *Handler) transactions(w http.ResponseWriter, r *http.Request) {
	id, err := loanID(r)
	if err != nil {
		respond.Error(w, err)
		return
	}

	txs, err := h.svc.Transactions(r.Context(), id)
	if err != nil {
		respond.Error(w, err)
		return
	}

	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, transactionResponse{
			ID:             t.ID,
			Kind:           t.Kind,
			Amount:         respond.Money(t.Amount),
			Date:           t.Date,
			Description:    t.Description,
			JournalEntryID: t.JournalEntryID,
			CreatedBy:      t.CreatedBy,
		})
	}

	respond.JSON(w, http.StatusOK, out)
}

type auditResponse struct {
	*loan.Audit
	Consistent bool `json:"consistent"`
}

func (h *Handler) audit(w http.ResponseWriter, r *http.Request) {
	id, err := loanID(r)
	if err != nil {
		respond.Error(w, err)
		return
	}

	a, err := h.svc.AuditSchedule(r.Context(), id)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, auditResponse{Audit: a, Consistent: a.Consistent()})
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending active closed defaulted"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := loanID(r)
	if err != nil {
		respond.Error(w, err)
		return
	}

	var req updateStatusRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, err)
		return
	}

	l, err := h.svc.SetStatus(r.Context(), id, loan.Status(req.Status), auth.Actor(r.Context()))
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toLoanResponse(l))
}

type recordPaymentRequest struct {
	Installment int    `json:"installment" validate:"required,min=1"`
	Amount      string `json:"amount" validate:"required,numeric"`
	PaymentDate string `json:"payment_date" validate:"omitempty,datetime=2006-01-02"`
	LateFee     string `json:"late_fee" validate:"omitempty,numeric"`
	Notes       string `json:"notes"`
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, err := loanID(r)
	if err != nil {
		respond.Error(w, err)
		return
	}

	var req recordPaymentRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, err)
		return
	}

	amount, err := respond.ParseDecimal("amount", req.Amount)
	if err != nil {
		respond.Error(w, err)
		return
	}

	fee, err := respond.ParseDecimal("late_fee", req.LateFee)
	if err != nil {
		respond.Error(w, err)
		return
	}

	paidAt := h.now()
	if req.PaymentDate != "" {
		paidAt, _ = time.Parse(time.DateOnly, req.PaymentDate)
	}

	res, err := h.svc.RecordPayment(r.Context(), loan.PaymentParams{
		LoanID:         id,
		InstallmentSeq: req.Installment,
		Amount:         amount,
		PaymentDate:    paidAt,
		LateFee:        fee,
		Notes:          req.Notes,
		CreatedBy:      auth.Actor(r.Context()),
	})
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusCreated, paymentResultResponse{
		Loan:          toLoanResponse(res.Loan),
		Payment:       toPaymentResponse(res.Payment),
		Closed:        res.Closed,
		BalanceChange: res.Posting.Changes,
	})
}

func (h *Handler) statement(w http.ResponseWriter, r *http.Request) {
	id, err := loanID(r)
	if err != nil {
		respond.Error(w, err)
		return
	}

	st, err := h.statements.Statement(r.Context(), id)
	if err != nil {
		respond.Error(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": export.Filename(st.Loan)}))

	if err := export.WriteCSV(w, st); err != nil {
		// Headers are already out; the client sees a truncated file.
		slog.Error("failed to write statement", "loan_id", id, "error", err)
	}
}
