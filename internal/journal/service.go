package journal

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=journal
type Repository interface {
	Begin(ctx context.Context) (Tx, error)

	CreateAccount(ctx context.Context, a *Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*Account, error)
	ListAccounts(ctx context.Context, filter AccountFilter) ([]*Account, error)
	UpdateAccount(ctx context.Context, id uuid.UUID, upd AccountUpdate) (*Account, error)

	GetEntry(ctx context.Context, id uuid.UUID) (*Entry, error)
	ListEntries(ctx context.Context, filter EntryFilter) ([]*Entry, error)
}

// Tx is a unit of work against the ledger tables. Every row it locks stays
// locked until Commit or Rollback.
type Tx interface {
	LockAccount(ctx context.Context, id uuid.UUID) (*Account, error)
	AccountIDByCode(ctx context.Context, code string) (uuid.UUID, error)
	CreateEntry(ctx context.Context, e *Entry) error
	LockEntry(ctx context.Context, id uuid.UUID) (*Entry, error)
	ApplyBalance(ctx context.Context, accountID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error)
	MarkPosted(ctx context.Context, id uuid.UUID, postedBy string, at time.Time) error
	Commit() error
	Rollback() error
}

// BalanceTolerance is the largest debit/credit difference an entry may carry.
var BalanceTolerance = decimal.RequireFromString("0.001")

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

type AccountFilter struct {
	Type   *AccountType
	Active *bool
}

type EntryFilter struct {
	Posted    *bool
	StartDate *time.Time
	EndDate   *time.Time
}

type CreateAccountParams struct {
	Code     string
	Name     string
	Type     AccountType
	ParentID *uuid.UUID
}

// AccountUpdate lists the account fields that may change after creation. Nil
// fields are left untouched. The balance is deliberately absent.
type AccountUpdate struct {
	Name     *string
	ParentID *uuid.UUID
	Active   *bool
}

// DetailParams describes one line. The account is identified by AccountID, or
// by AccountCode when AccountID is nil.
type DetailParams struct {
	AccountID   uuid.UUID
	AccountCode string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

type CreateEntryParams struct {
	Date        time.Time
	Reference   string
	Description string
	Details     []DetailParams
	Post        bool
	CreatedBy   string
}

func (s *Service) CreateAccount(ctx context.Context, params CreateAccountParams) (*Account, error) {
	code := strings.TrimSpace(params.Code)
	name := strings.TrimSpace(params.Name)

	if code == "" || name == "" {
		return nil, fmt.Errorf("%w: code and name are required", ErrInvalidAccount)
	}

	if !params.Type.IsValid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidAccount, params.Type)
	}

	if params.ParentID != nil {
		if _, err := s.repo.GetAccount(ctx, *params.ParentID); err != nil {
			return nil, storeErr("get parent account", err)
		}
	}

	a := &Account{
		Code:           code,
		Name:           name,
		Type:           params.Type,
		ParentID:       params.ParentID,
		CurrentBalance: decimal.Zero,
		Active:         true,
	}
	if err := s.repo.CreateAccount(ctx, a); err != nil {
		return nil, storeErr("create account", err)
	}

	return a, nil
}

func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	a, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		return nil, storeErr("get account", err)
	}

	return a, nil
}

func (s *Service) ListAccounts(ctx context.Context, filter AccountFilter) ([]*Account, error) {
	accounts, err := s.repo.ListAccounts(ctx, filter)
	if err != nil {
		return nil, storeErr("list accounts", err)
	}

	return accounts, nil
}

func (s *Service) UpdateAccount(ctx context.Context, id uuid.UUID, upd AccountUpdate) (*Account, error) {
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidAccount)
	}

	if upd.ParentID != nil {
		if *upd.ParentID == id {
			return nil, fmt.Errorf("%w: account cannot be its own parent", ErrInvalidAccount)
		}

		if _, err := s.repo.GetAccount(ctx, *upd.ParentID); err != nil {
			return nil, storeErr("get parent account", err)
		}
	}

	a, err := s.repo.UpdateAccount(ctx, id, upd)
	if err != nil {
		return nil, storeErr("update account", err)
	}

	return a, nil
}

func (s *Service) GetEntry(ctx context.Context, id uuid.UUID) (*Entry, error) {
	e, err := s.repo.GetEntry(ctx, id)
	if err != nil {
		return nil, storeErr("get entry", err)
	}

	return e, nil
}

func (s *Service) ListEntries(ctx context.Context, filter EntryFilter) ([]*Entry, error) {
	entries, err := s.repo.ListEntries(ctx, filter)
	if err != nil {
		return nil, storeErr("list entries", err)
	}

	return entries, nil
}

// Validate checks an entry's shape and balance without touching the store.
func Validate(params CreateEntryParams) error {
	if len(params.Details) == 0 {
		return fmt.Errorf("%w: at least one detail line is required", ErrInvalidEntry)
	}

	var debit, credit decimal.Decimal

	for i, d := range params.Details {
		if d.AccountID == uuid.Nil && strings.TrimSpace(d.AccountCode) == "" {
			return fmt.Errorf("%w: line %d has no account", ErrInvalidEntry, i+1)
		}

		if d.Debit.IsNegative() || d.Credit.IsNegative() {
			return fmt.Errorf("%w: line %d has a negative amount", ErrInvalidEntry, i+1)
		}

		if d.Debit.IsPositive() && d.Credit.IsPositive() {
			return fmt.Errorf("%w: line %d carries both a debit and a credit", ErrInvalidEntry, i+1)
		}

		if !wholeCents(d.Debit) || !wholeCents(d.Credit) {
			return fmt.Errorf("%w: line %d has fractions of a cent", ErrInvalidEntry, i+1)
		}

		debit = debit.Add(d.Debit)
		credit = credit.Add(d.Credit)
	}

	if debit.Sub(credit).Abs().GreaterThan(BalanceTolerance) {
		return fmt.Errorf("%w: debits %s, credits %s", ErrUnbalancedEntry, debit.StringFixed(2), credit.StringFixed(2))
	}

	return nil
}

func wholeCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

// CreateEntry stores an entry and its lines, posting it in the same
// transaction when params.Post is set.
func (s *Service) CreateEntry(ctx context.Context, params CreateEntryParams) (*Posting, error) {
	if err := Validate(params); err != nil {
		return nil, err
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, storeErr("begin", err)
	}
	defer tx.Rollback()

	posting, err := s.create(ctx, tx, params)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr("commit", err)
	}

	slog.Info("journal entry created",
		"entry_id", posting.Entry.ID,
		"reference", posting.Entry.Reference,
		"posted", posting.Entry.Posted,
	)

	return posting, nil
}

// PostWithin creates and posts an entry inside a transaction owned by the
// caller. The caller commits or rolls back.
func (s *Service) PostWithin(ctx context.Context, tx Tx, params CreateEntryParams) (*Posting, error) {
	params.Post = true

	if err := Validate(params); err != nil {
		return nil, err
	}

	return s.create(ctx, tx, params)
}

// PostEntry applies an unposted entry to its accounts' balances.
func (s *Service) PostEntry(ctx context.Context, id uuid.UUID, postedBy string) (*Posting, error) {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, storeErr("begin", err)
	}
	defer tx.Rollback()

	entry, err := tx.LockEntry(ctx, id)
	if err != nil {
		return nil, storeErr("lock entry", err)
	}

	if entry.Posted {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyPosted, entry.Reference)
	}

	ids := make([]uuid.UUID, len(entry.Details))
	for i, d := range entry.Details {
		ids[i] = d.AccountID
	}

	accounts, err := lockAccounts(ctx, tx, ids)
	if err != nil {
		return nil, err
	}

	changes, err := s.apply(ctx, tx, entry, accounts, postedBy)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr("commit", err)
	}

	slog.Info("journal entry posted", "entry_id", entry.ID, "reference", entry.Reference, "posted_by", postedBy)

	return &Posting{Entry: entry, Changes: changes}, nil
}

func (s *Service) create(ctx context.Context, tx Tx, params CreateEntryParams) (*Posting, error) {
	ids := make([]uuid.UUID, len(params.Details))

	for i, d := range params.Details {
		if d.AccountID != uuid.Nil {
			ids[i] = d.AccountID
			continue
		}

		id, err := tx.AccountIDByCode(ctx, strings.TrimSpace(d.AccountCode))
		if err != nil {
			return nil, storeErr("resolve account "+d.AccountCode, err)
		}

		ids[i] = id
	}

	accounts, err := lockAccounts(ctx, tx, ids)
	if err != nil {
		return nil, err
	}

	date := params.Date
	if date.IsZero() {
		date = s.now()
	}

	reference := strings.TrimSpace(params.Reference)
	if reference == "" {
		reference = NewReference("JE", date)
	}

	entry := &Entry{
		Date:        date,
		Reference:   reference,
		Description: params.Description,
		CreatedBy:   params.CreatedBy,
		Details:     make([]Detail, len(params.Details)),
	}

	for i, d := range params.Details {
		entry.Details[i] = Detail{
			AccountID:   ids[i],
			Debit:       d.Debit,
			Credit:      d.Credit,
			Description: d.Description,
		}
	}

	if err := tx.CreateEntry(ctx, entry); err != nil {
		return nil, storeErr("create entry", err)
	}

	posting := &Posting{Entry: entry}
	if !params.Post {
		return posting, nil
	}

	posting.Changes, err = s.apply(ctx, tx, entry, accounts, params.CreatedBy)
	if err != nil {
		return nil, err
	}

	return posting, nil
}

// apply moves every referenced account by its net debit minus credit and
// stamps the entry as posted. Accounts must already be locked by tx.
func (s *Service) apply(ctx context.Context, tx Tx, entry *Entry, accounts map[uuid.UUID]*Account, postedBy string) ([]BalanceChange, error) {
	deltas := make(map[uuid.UUID]decimal.Decimal, len(accounts))
	for _, d := range entry.Details {
		deltas[d.AccountID] = deltas[d.AccountID].Add(d.Net())
	}

	changes := make([]BalanceChange, 0, len(deltas))

	for _, id := range sortedIDs(deltas) {
		before := accounts[id].CurrentBalance

		after, err := tx.ApplyBalance(ctx, id, deltas[id])
		if err != nil {
			return nil, storeErr("apply balance", err)
		}

		changes = append(changes, BalanceChange{
			AccountID: id,
			Before:    before,
			After:     after,
			Delta:     deltas[id],
		})
	}

	at := s.now()
	if err := tx.MarkPosted(ctx, entry.ID, postedBy, at); err != nil {
		return nil, storeErr("mark posted", err)
	}

	entry.Posted = true
	entry.PostedBy = &postedBy
	entry.PostedAt = &at

	return changes, nil
}

// lockAccounts locks each distinct account once, in ascending id order so
// concurrent postings over overlapping accounts cannot deadlock.
func lockAccounts(ctx context.Context, tx Tx, ids []uuid.UUID) (map[uuid.UUID]*Account, error) {
	set := make(map[uuid.UUID]decimal.Decimal, len(ids))
	for _, id := range ids {
		set[id] = decimal.Zero
	}

	accounts := make(map[uuid.UUID]*Account, len(set))

	for _, id := range sortedIDs(set) {
		a, err := tx.LockAccount(ctx, id)
		if err != nil {
			return nil, storeErr("lock account", err)
		}

		if !a.Active {
			return nil, fmt.Errorf("%w: %s", ErrAccountInactive, a.Code)
		}

		accounts[id] = a
	}

	return accounts, nil
}

func sortedIDs[V any](m map[uuid.UUID]V) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}

	slices.SortFunc(ids, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})

	return ids
}

// NewReference builds a reference number such as JE-20240115-1A2B3C4D.
func NewReference(prefix string, date time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s-%s-%s", prefix, date.Format("20060102"), suffix)
}
