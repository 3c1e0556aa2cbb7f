package journal

import (
	"time"

	"github.com/google/uuid"

	"github.com/notcool100/financial-management-system/internal/http/respond"
	"github.com/notcool100/financial-management-system/internal/journal"
)

type accountResponse struct {
	ID             uuid.UUID           `json:"id"`
	Code           string              `json:"code"`
	Name           string              `json:"name"`
	Type           journal.AccountType `json:"type"`
	ParentID       *uuid.UUID          `json:"parent_id,omitempty"`
	CurrentBalance respond.Money       `json:"current_balance"`
	Active         bool                `json:"active"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      *time.Time          `json:"updated_at,omitempty"`
}

func toAccountResponse(a *journal.Account) accountResponse {
	return accountResponse{
		ID:             a.ID,
		Code:           a.Code,
		Name:           a.Name,
		Type:           a.Type,
		ParentID:       a.ParentID,
		CurrentBalance: respond.Money(a.CurrentBalance),
		Active:         a.Active,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func toAccountList(accounts []*journal.Account) []accountResponse {
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}

	return out
}

type detailResponse struct {
	AccountID   uuid.UUID     `json:"account_id"`
	Debit       respond.Money `json:"debit"`
	Credit      respond.Money `json:"credit"`
	Description string        `json:"description,omitempty"`
}

type entryResponse struct {
	ID          uuid.UUID        `json:"id"`
	Date        string           `json:"date"`
	Reference   string           `json:"reference"`
	Description string           `json:"description"`
	Posted      bool             `json:"posted"`
	CreatedBy   string           `json:"created_by"`
	PostedBy    *string          `json:"posted_by,omitempty"`
	PostedAt    *time.Time       `json:"posted_at,omitempty"`
	TotalDebit  respond.Money    `json:"total_debit"`
	TotalCredit respond.Money    `json:"total_credit"`
	Details     []detailResponse `json:"details"`
}

func toEntryResponse(e *journal.Entry) entryResponse {
	debit, credit := e.Totals()

	resp := entryResponse{
		ID:          e.ID,
		Date:        e.Date.Format(time.DateOnly),
		Reference:   e.Reference,
		Description: e.Description,
		Posted:      e.Posted,
		CreatedBy:   e.CreatedBy,
		PostedBy:    e.PostedBy,
		PostedAt:    e.PostedAt,
		TotalDebit:  respond.Money(debit),
		TotalCredit: respond.Money(credit),
		Details:     make([]detailResponse, 0, len(e.Details)),
	}

	for _, d := range e.Details {
		resp.Details = append(resp.Details, detailResponse{
			AccountID:   d.AccountID,
			Debit:       respond.Money(d.Debit),
			Credit:      respond.Money(d.Credit),
			Description: d.Description,
		})
	}

	return resp
}

type postingResponse struct {
	Entry   entryResponse           `json:"entry"`
	Changes []journal.BalanceChange `json:"balance_changes"`
}

func toPostingResponse(p *journal.Posting) postingResponse {
	changes := p.Changes
	if changes == nil {
		changes = []journal.BalanceChange{}
	}

	return postingResponse{Entry: toEntryResponse(p.Entry), Changes: changes}
}

type trialBalanceResponse struct {
	Accounts []accountResponse                     `json:"accounts"`
	ByType   map[journal.AccountType]respond.Money `json:"by_type"`
	Debits   respond.Money                         `json:"debits"`
	Credits  respond.Money                         `json:"credits"`
	Total    respond.Money                         `json:"total"`
	Balanced bool                                  `json:"balanced"`
}
