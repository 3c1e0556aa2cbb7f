package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/notcool100/financial-management-system/internal/journal"
)

type ledgerState int

const (
	ledgerStateBalances ledgerState = iota
	ledgerStatePeriod
	ledgerStateEntries
)

// LedgerModel shows the trial balance and the journal for a chosen period.
type LedgerModel struct {
	CommonModel
	journalService *journal.Service

	state    ledgerState
	picker   TimeframePicker
	balances table.Model
	entries  table.Model
	tb       *journal.TrialBalance
	journal  []*journal.Entry
	filter   journal.EntryFilter
	period   string

	loading bool
	err     error
	status  string
}

func NewLedgerModel(journalSvc *journal.Service) LedgerModel {
	return LedgerModel{
		journalService: journalSvc,
		loading:        true,
		picker:         NewTimeframePicker(TimeframeThisMonth),
		balances: newTable([]table.Column{
			{Title: "Code", Width: 6},
			{Title: "Account", Width: 24},
			{Title: "Type", Width: 10},
			{Title: "Debit", Width: 14},
			{Title: "Credit", Width: 14},
			{Title: "Active", Width: 6},
		}, 15),
		entries: newTable([]table.Column{
			{Title: "Date", Width: 12},
			{Title: "Reference", Width: 22},
			{Title: "Description", Width: 30},
			{Title: "Amount", Width: 12},
			{Title: "Posted", Width: 6},
		}, 15),
	}
}

func (m LedgerModel) Title() string { return "Ledger" }

func (m LedgerModel) ShortHelp() string {
	switch m.state {
	case ledgerStatePeriod:
		return "Enter: select | Esc: back"
	case ledgerStateEntries:
		return "Esc: back | p: post selected draft | t: change period"
	}

	return "Esc: back | j: journal | r: refresh"
}

func (m LedgerModel) Init() tea.Cmd {
	return m.loadBalancesCmd()
}

func (m LedgerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case balancesLoadedMsg:
		m.loading = false
		m.err = msg.err
		m.tb = msg.tb
		m.refreshBalances()

		return m, nil

	case entriesLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.status = errorStyle(fmt.Sprintf("Error: %v", msg.err))
			return m, nil
		}

		m.journal = msg.entries
		m.refreshEntries()
		m.state = ledgerStateEntries

		return m, nil

	case entryPostedMsg:
		m.status = okStyle(msg.text)
		if msg.err != nil {
			m.status = errorStyle(fmt.Sprintf("Error: %v", msg.err))
		}

		return m, tea.Batch(m.loadEntriesCmd(), m.loadBalancesCmd())

	case TimeframeSelectedMsg:
		m.filter = journal.EntryFilter{}
		m.period = "All Periods"

		if !msg.All {
			m.filter.StartDate = &msg.Start
			m.filter.EndDate = &msg.End
			m.period = fmt.Sprintf("%s to %s", FormatDate(msg.Start), FormatDate(msg.End))
		}

		m.loading = true

		return m, m.loadEntriesCmd()

	case tea.WindowSizeMsg:
		m.balances.SetHeight(msg.Height - 12)
		m.entries.SetHeight(msg.Height - 10)

		return m, nil
	}

	switch m.state {
	case ledgerStatePeriod:
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc && m.picker.IsSelecting() {
			m.state = ledgerStateBalances
			return m, nil
		}

		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)

		return m, cmd

	case ledgerStateEntries:
		return m.updateEntries(msg)
	}

	return m.updateBalances(msg)
}

func (m LedgerModel) updateBalances(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadBalancesCmd()
		case "j":
			m.picker.Reset()
			m.state = ledgerStatePeriod

			return m, m.picker.Init()
		}
	}

	var cmd tea.Cmd
	m.balances, cmd = m.balances.Update(msg)

	return m, cmd
}

func (m LedgerModel) updateEntries(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			m.state = ledgerStateBalances
			m.status = ""

			return m, nil
		case "t":
			m.picker.Reset()
			m.state = ledgerStatePeriod

			return m, nil
		case "p":
			idx := m.entries.Cursor()
			if idx < 0 || idx >= len(m.journal) {
				return m, nil
			}

			if m.journal[idx].Posted {
				m.status = errorStyle("Entry is already posted")
				return m, nil
			}

			return m, m.postCmd(m.journal[idx])
		}
	}

	var cmd tea.Cmd
	m.entries, cmd = m.entries.Update(msg)

	return m, cmd
}

func (m LedgerModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading ledger...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(errorStyle(fmt.Sprintf("Error: %v", m.err)))
	}

	var content string

	switch m.state {
	case ledgerStatePeriod:
		content = m.picker.View()
	case ledgerStateEntries:
		content = lipgloss.JoinVertical(lipgloss.Left,
			lipgloss.NewStyle().PaddingBottom(1).Render("Journal: "+activeStyle(m.period)),
			boxed(m.entries.View()),
		)
	default:
		content = lipgloss.JoinVertical(lipgloss.Left,
			boxed(m.balances.View()),
			m.viewTotals(),
		)
	}

	if m.status != "" {
		content = m.status + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

func (m LedgerModel) viewTotals() string {
	if m.tb == nil {
		return ""
	}

	var b strings.Builder

	for _, t := range journal.AccountTypes {
		fmt.Fprintf(&b, "%s %s  ", t, FormatMoney(m.tb.ByType[t]))
	}

	balanced := okStyle("balanced")
	if !m.tb.Total.IsZero() {
		balanced = errorStyle("out of balance by " + FormatMoney(m.tb.Total))
	}

	fmt.Fprintf(&b, "\nDebits %s  Credits %s  %s",
		FormatMoney(m.tb.Debits), FormatMoney(m.tb.Credits), balanced)

	return lipgloss.NewStyle().PaddingTop(1).Render(b.String())
}

func (m *LedgerModel) refreshBalances() {
	if m.tb == nil {
		return
	}

	rows := make([]table.Row, 0, len(m.tb.Accounts))
	for _, a := range m.tb.Accounts {
		var debit, credit string
		if a.CurrentBalance.IsPositive() {
			debit = FormatMoney(a.CurrentBalance)
		} else if a.CurrentBalance.IsNegative() {
			credit = FormatMoney(a.CurrentBalance.Neg())
		}

		active := "yes"
		if !a.Active {
			active = "no"
		}

		rows = append(rows, table.Row{a.Code, a.Name, string(a.Type), debit, credit, active})
	}

	m.balances.SetRows(rows)
}

func (m *LedgerModel) refreshEntries() {
	rows := make([]table.Row, 0, len(m.journal))
	for _, e := range m.journal {
		debit, _ := e.Totals()

		posted := "no"
		if e.Posted {
			posted = "yes"
		}

		rows = append(rows, table.Row{
			FormatDate(e.Date),
			e.Reference,
			e.Description,
			FormatMoney(debit),
			posted,
		})
	}

	m.entries.SetRows(rows)
}

// Messages

type balancesLoadedMsg struct {
	tb  *journal.TrialBalance
	err error
}

type entriesLoadedMsg struct {
	entries []*journal.Entry
	err     error
}

type entryPostedMsg struct {
	text string
	err  error
}

func (m LedgerModel) loadBalancesCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		tb, err := m.journalService.TrialBalance(ctx)

		return balancesLoadedMsg{tb: tb, err: err}
	}
}

func (m LedgerModel) loadEntriesCmd() tea.Cmd {
	filter := m.filter

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		entries, err := m.journalService.ListEntries(ctx, filter)

		return entriesLoadedMsg{entries: entries, err: err}
	}
}

func (m LedgerModel) postCmd(e *journal.Entry) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		posting, err := m.journalService.PostEntry(ctx, e.ID, Actor)
		if err != nil {
			return entryPostedMsg{err: err}
		}

		return entryPostedMsg{text: fmt.Sprintf(
			"Posted %s on %s, %d balances changed",
			posting.Entry.Reference, time.Now().Format(time.DateOnly), len(posting.Changes),
		)}
	}
}
