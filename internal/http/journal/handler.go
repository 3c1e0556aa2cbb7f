package journal

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/notcool100/financial-management-system/internal/http/auth"
	"github.com/notcool100/financial-management-system/internal/http/respond"
	"github.com/notcool100/financial-management-system/internal/journal"
)

type Handler struct {
	svc *journal.Service
}

func NewHandler(svc *journal.Service) *Handler {
	return &Handler{svc: svc}
}

// AccountRoutes mounts the chart-of-accounts endpoints.
func (h *Handler) AccountRoutes(r chi.Router) {
	r.Post("/", h.createAccount)
	r.Get("/", h.listAccounts)
	r.Get("/{id}", h.getAccount)
	r.Patch("/{id}", h.updateAccount)
}

// EntryRoutes mounts the journal entry endpoints.
func (h *Handler) EntryRoutes(r chi.Router) {
	r.Post("/", h.createEntry)
	r.Get("/", h.listEntries)
	r.Get("/{id}", h.getEntry)
	r.Post("/{id}/post", h.postEntry)
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, respond.Invalid("invalid id")
	}

	return id, nil
}

type createAccountRequest struct {
	Code     string `json:"code" validate:"required,max=32"`
	Name     string `json:"name" validate:"required"`
	Type     string `json:"type" validate:"required,oneof=asset liability equity revenue expense"`
	ParentID string `json:"parent_id" validate:"omitempty,uuid"`
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, err)
		return
	}

	params := journal.CreateAccountParams{
		Code: req.Code,
		Name: req.Name,
		Type: journal.AccountType(req.Type),
	}

	if req.ParentID != "" {
		params.ParentID = new(uuid.MustParse(req.ParentID))
	}

	a, err := h.svc.CreateAccount(r.Context(), params)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusCreated, toAccountResponse(a))
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	filter := journal.AccountFilter{}

	if s := r.URL.Query().Get("type"); s != "" {
		t := journal.AccountType(s)
		if !t.IsValid() {
			respond.Error(w, respond.Invalid("unknown account type %q", s))
			return
		}

		filter.Type = &t
	}

	if s := r.URL.Query().Get("active"); s != "" {
		active, err := strconv.ParseBool(s)
		if err != nil {
			respond.Error(w, respond.Invalid("active must be true or false"))
			return
		}

		filter.Active = &active
	}

	accounts, err := h.svc.ListAccounts(r.Context(), filter)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toAccountList(accounts))
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respond.Error(w, err)
		return
	}

	a, err := h.svc.GetAccount(r.Context(), id)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toAccountResponse(a))
}

type updateAccountRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1"`
	ParentID *string `json:"parent_id" validate:"omitempty,uuid"`
	Active   *bool   `json:"active"`
}

func (h *Handler) updateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respond.Error(w, err)
		return
	}

	var req updateAccountRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, err)
		return
	}

	upd := journal.AccountUpdate{Name: req.Name, Active: req.Active}
	if req.ParentID != nil {
		upd.ParentID = new(uuid.MustParse(*req.ParentID))
	}

	a, err := h.svc.UpdateAccount(r.Context(), id, upd)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toAccountResponse(a))
}

type detailRequest struct {
	AccountID   string `json:"account_id" validate:"omitempty,uuid"`
	AccountCode string `json:"account_code"`
	Debit       string `json:"debit" validate:"omitempty,numeric"`
	Credit      string `json:"credit" validate:"omitempty,numeric"`
	Description string `json:"description"`
}

type createEntryRequest struct {
	Date        string          `json:"date" validate:"required,datetime=2006-01-02"`
	Reference   string          `json:"reference"`
	Description string          `json:"description"`
	Post        bool            `json:"post"`
	Details     []detailRequest `json:"details" validate:"required,min=2,dive"`
}

func (req createEntryRequest) params(actor string) (journal.CreateEntryParams, error) {
	date, _ := time.Parse(time.DateOnly, req.Date)

	params := journal.CreateEntryParams{
		Date:        date,
		Reference:   req.Reference,
		Description: req.Description,
		Post:        req.Post,
		CreatedBy:   actor,
		Details:     make([]journal.DetailParams, 0, len(req.Details)),
	}

	for _, d := range req.Details {
		debit, err := respond.ParseDecimal("debit", d.Debit)
		if err != nil {
			return params, err
		}

		credit, err := respond.ParseDecimal("credit", d.Credit)
		if err != nil {
			return params, err
		}

		line := journal.DetailParams{
			AccountCode: d.AccountCode,
			Debit:       debit,
			Credit:      credit,
			Description: d.Description,
		}

		if d.AccountID != "" {
			line.AccountID = uuid.MustParse(d.AccountID)
		}

		params.Details = append(params.Details, line)
	}

	return params, nil
}

func (h *Handler) createEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, err)
		return
	}

	params, err := req.params(auth.Actor(r.Context()))
	if err != nil {
		respond.Error(w, err)
		return
	}

	posting, err := h.svc.CreateEntry(r.Context(), params)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusCreated, toPostingResponse(posting))
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	filter := journal.EntryFilter{}
	q := r.URL.Query()

	if s := q.Get("posted"); s != "" {
		posted, err := strconv.ParseBool(s)
		if err != nil {
			respond.Error(w, respond.Invalid("posted must be true or false"))
			return
		}

		filter.Posted = &posted
	}

	if s := q.Get("start_date"); s != "" {
		if t, err := time.Parse(time.DateOnly, s); err == nil {
			filter.StartDate = new(t)
		}
	}

	if s := q.Get("end_date"); s != "" {
		if t, err := time.Parse(time.DateOnly, s); err == nil {
			filter.EndDate = new(t)
		}
	}

	entries, err := h.svc.ListEntries(r.Context(), filter)
	if err != nil {
		respond.Error(w, err)
		return
	}

	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}

	respond.JSON(w, http.StatusOK, out)
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respond.Error(w, err)
		return
	}

	e, err := h.svc.GetEntry(r.Context(), id)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toEntryResponse(e))
}

func (h *Handler) postEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respond.Error(w, err)
		return
	}

	posting, err := h.svc.PostEntry(r.Context(), id, auth.Actor(r.Context()))
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toPostingResponse(posting))
}

// TrialBalance serves GET /trial-balance.
func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	tb, err := h.svc.TrialBalance(r.Context())
	if err != nil {
		respond.Error(w, err)
		return
	}

	resp := trialBalanceResponse{
		Accounts: toAccountList(tb.Accounts),
		ByType:   make(map[journal.AccountType]respond.Money, len(tb.ByType)),
		Debits:   respond.Money(tb.Debits),
		Credits:  respond.Money(tb.Credits),
		Total:    respond.Money(tb.Total),
		Balanced: tb.Total.IsZero(),
	}

	for t, v := range tb.ByType {
		resp.ByType[t] = respond.Money(v)
	}

	respond.JSON(w, http.StatusOK, resp)
}
