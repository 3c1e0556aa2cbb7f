package view

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/notcool100/financial-management-system/internal/emi"
	"github.com/notcool100/financial-management-system/internal/export"
	"github.com/notcool100/financial-management-system/internal/loan"
)

// Actor is recorded as the creator of loans and payments made from the dashboard.
const Actor = "dashboard"

type loansState int

const (
	loansStateBrowse loansState = iota
	loansStateSchedule
	loansStatePay
	loansStateCreate
)

var loanStatusFilters = []*loan.Status{
	nil,
	new(loan.StatusPending),
	new(loan.StatusActive),
	new(loan.StatusClosed),
	new(loan.StatusDefaulted),
}

type LoansModel struct {
	CommonModel
	loanService   *loan.Service
	exportService *export.Service
	exportDir     string

	state     loansState
	table     table.Model
	schedule  table.Model
	loans     []*loan.Loan
	insts     []*loan.Installment
	current   *loan.Loan
	form      *huh.Form
	filterIdx int

	loading bool
	err     error
	status  string

	// Form bindings live behind pointers so copies of the model share them.
	pay   *paymentForm
	terms *createForm
}

type paymentForm struct {
	seq     string
	amount  string
	date    string
	lateFee string
	notes   string
}

type createForm struct {
	clientID   string
	loanTypeID string
	principal  string
	rate       string
	tenure     string
	mode       string
	disbursed  string
	fee        string
	notes      string
}

func NewLoansModel(loanSvc *loan.Service, exportSvc *export.Service, exportDir string) LoansModel {
	return LoansModel{
		loanService:   loanSvc,
		exportService: exportSvc,
		exportDir:     exportDir,
		loading:       true,
		table: newTable([]table.Column{
			{Title: "Loan", Width: 10},
			{Title: "Status", Width: 10},
			{Title: "Mode", Width: 12},
			{Title: "Principal", Width: 12},
			{Title: "EMI", Width: 10},
			{Title: "Remaining", Width: 12},
			{Title: "Disbursed", Width: 12},
			{Title: "Ends", Width: 12},
		}, 15),
		schedule: newTable([]table.Column{
			{Title: "#", Width: 4},
			{Title: "Due", Width: 12},
			{Title: "EMI", Width: 10},
			{Title: "Principal", Width: 10},
			{Title: "Interest", Width: 10},
			{Title: "Remaining", Width: 12},
			{Title: "Paid", Width: 12},
		}, 15),
	}
}

func (m LoansModel) Title() string { return "Loans" }

func (m LoansModel) ShortHelp() string {
	switch m.state {
	case loansStateSchedule:
		return "Esc: back | p: pay selected installment"
	case loansStatePay, loansStateCreate:
		return "Navigate form | Esc: cancel"
	}

	return "Esc: back | Enter: schedule | n: new | a: activate | x: default | e: export | s: status filter | r: refresh"
}

func (m LoansModel) Init() tea.Cmd {
	return m.loadLoansCmd()
}

func (m LoansModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loansLoadedMsg:
		m.loading = false
		m.err = msg.err
		m.loans = msg.loans
		m.refreshLoans()

		return m, nil

	case scheduleLoadedMsg:
		if msg.err != nil {
			m.status = errorStyle(fmt.Sprintf("Error: %v", msg.err))
			return m, nil
		}

		m.insts = msg.insts
		m.refreshSchedule()
		m.state = loansStateSchedule
		m.schedule.Focus()

		return m, nil

	case loanActionMsg:
		m.status = msg.text
		if msg.err != nil {
			m.status = errorStyle(fmt.Sprintf("Error: %v", msg.err))
		}

		m.form = nil

		if m.state == loansStatePay {
			m.state = loansStateSchedule
			m.schedule.Focus()

			if msg.loan == nil {
				return m, nil
			}

			m.current = msg.loan

			return m, tea.Batch(m.loadLoansCmd(), m.loadScheduleCmd(msg.loan))
		}

		m.state = loansStateBrowse
		m.table.Focus()

		return m, m.loadLoansCmd()

	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 10)
		m.schedule.SetHeight(msg.Height - 12)

		return m, nil
	}

	switch m.state {
	case loansStateBrowse:
		return m.updateBrowse(msg)
	case loansStateSchedule:
		return m.updateSchedule(msg)
	case loansStatePay, loansStateCreate:
		return m.updateForm(msg)
	}

	return m, nil
}

func (m LoansModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadLoansCmd()
		case "s":
			m.filterIdx = (m.filterIdx + 1) % len(loanStatusFilters)
			return m, m.loadLoansCmd()
		case "n":
			return m.enterCreate()
		case "e":
			m.status = fmt.Sprintf("Exporting statements to %s...", m.exportDir)
			return m, m.exportCmd()
		case "enter":
			if l := m.selected(); l != nil {
				m.current = l
				return m, m.loadScheduleCmd(l)
			}

			return m, nil
		case "a":
			if l := m.selected(); l != nil {
				return m, m.activateCmd(l.ID)
			}

			return m, nil
		case "x":
			if l := m.selected(); l != nil {
				return m, m.defaultCmd(l.ID)
			}

			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m LoansModel) updateSchedule(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			m.state = loansStateBrowse
			m.insts = nil
			m.table.Focus()

			return m, nil
		case "p":
			return m.enterPay()
		}
	}

	var cmd tea.Cmd
	m.schedule, cmd = m.schedule.Update(msg)

	return m, cmd
}

func (m LoansModel) enterPay() (tea.Model, tea.Cmd) {
	idx := m.schedule.Cursor()
	if idx < 0 || idx >= len(m.insts) {
		return m, nil
	}

	inst := m.insts[idx]
	if inst.Paid {
		m.status = errorStyle(fmt.Sprintf("Installment %d is already paid", inst.Seq))
		return m, nil
	}

	m.pay = &paymentForm{
		seq:     strconv.Itoa(inst.Seq),
		amount:  FormatMoney(inst.EMI),
		date:    FormatDate(time.Now()),
		lateFee: "0",
	}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Installment").Value(&m.pay.seq).Validate(validSeq),
			huh.NewInput().Title("Amount").Value(&m.pay.amount).Validate(validMoney),
			huh.NewInput().Title("Payment date").Value(&m.pay.date).Validate(validDate),
			huh.NewInput().Title("Late fee").Value(&m.pay.lateFee).Validate(validMoney),
			huh.NewInput().Title("Notes").Value(&m.pay.notes),
		),
	).WithWidth(45).WithShowHelp(false)

	m.state = loansStatePay
	m.schedule.Blur()

	return m, m.form.Init()
}

func (m LoansModel) enterCreate() (tea.Model, tea.Cmd) {
	m.terms = &createForm{
		mode:      string(emi.ModeDiminishing),
		disbursed: FormatDate(time.Now()),
		fee:       "0",
	}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Client ID").Value(&m.terms.clientID).Validate(validUUID),
			huh.NewInput().Title("Loan type ID").Value(&m.terms.loanTypeID).Validate(validUUID),
			huh.NewInput().Title("Principal").Value(&m.terms.principal).Validate(validMoney),
			huh.NewInput().Title("Annual rate (%)").Value(&m.terms.rate).Validate(validMoney),
			huh.NewInput().Title("Tenure (months)").Value(&m.terms.tenure).Validate(validSeq),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Interest mode").
				Options(
					huh.NewOption("Diminishing balance", string(emi.ModeDiminishing)),
					huh.NewOption("Flat", string(emi.ModeFlat)),
				).
				Value(&m.terms.mode),
			huh.NewInput().Title("Disburse date").Value(&m.terms.disbursed).Validate(validDate),
			huh.NewInput().Title("Processing fee").Value(&m.terms.fee).Validate(validMoney),
			huh.NewInput().Title("Notes").Value(&m.terms.notes),
		),
	).WithWidth(45).WithShowHelp(false)

	m.state = loansStateCreate
	m.table.Blur()

	return m, m.form.Init()
}

func (m LoansModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		m.form = nil

		if m.state == loansStatePay {
			m.state = loansStateSchedule
			m.schedule.Focus()

			return m, nil
		}

		m.state = loansStateBrowse
		m.table.Focus()

		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	if m.state == loansStatePay {
		return m, m.payCmd()
	}

	return m, m.createCmd()
}

func (m LoansModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading loans...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(errorStyle(fmt.Sprintf("Error: %v", m.err)))
	}

	var content string

	switch m.state {
	case loansStateSchedule, loansStatePay:
		content = m.viewSchedule()
	default:
		label := "All"
		if f := loanStatusFilters[m.filterIdx]; f != nil {
			label = string(*f)
		}

		content = lipgloss.JoinVertical(lipgloss.Left,
			lipgloss.NewStyle().PaddingBottom(1).Render("Filter: [s] Status: "+activeStyle(label)),
			boxed(m.table.View()),
		)
	}

	if m.form != nil {
		title := "New Loan"
		if m.state == loansStatePay {
			title = "Record Payment"
		}

		panel := lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Width(48).
			Render(title + "\n\n" + m.form.View())

		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panel)
	}

	if m.status != "" {
		content = m.status + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

func (m LoansModel) viewSchedule() string {
	l := m.current
	header := fmt.Sprintf(
		"Loan %s  [%s]  %s %s%% over %d months\nEMI %s  Total payable %s  Remaining %s",
		shortID(l.ID), activeStyle(string(l.Status)), FormatMoney(l.Principal), l.InterestRate.String(),
		l.TenureMonths, FormatMoney(l.EMI), FormatMoney(l.TotalPayable), FormatMoney(l.RemainingAmount),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		boxed(m.schedule.View()),
	)
}

func (m LoansModel) selected() *loan.Loan {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.loans) {
		return nil
	}

	return m.loans[idx]
}

func (m *LoansModel) refreshLoans() {
	rows := make([]table.Row, 0, len(m.loans))
	for _, l := range m.loans {
		rows = append(rows, table.Row{
			shortID(l.ID),
			string(l.Status),
			string(l.Mode),
			FormatMoney(l.Principal),
			FormatMoney(l.EMI),
			FormatMoney(l.RemainingAmount),
			FormatDate(l.DisburseDate),
			FormatDate(l.EndDate),
		})
	}

	m.table.SetRows(rows)
}

func (m *LoansModel) refreshSchedule() {
	rows := make([]table.Row, 0, len(m.insts))
	for _, inst := range m.insts {
		paid := ""
		if inst.PaidDate != nil {
			paid = FormatDate(*inst.PaidDate)
		}

		rows = append(rows, table.Row{
			strconv.Itoa(inst.Seq),
			FormatDate(inst.DueDate),
			FormatMoney(inst.EMI),
			FormatMoney(inst.Principal),
			FormatMoney(inst.Interest),
			FormatMoney(inst.RemainingPrincipal),
			paid,
		})
	}

	m.schedule.SetRows(rows)
}

func validSeq(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return fmt.Errorf("must be a positive whole number")
	}

	return nil
}

func validUUID(s string) error {
	if _, err := uuid.Parse(strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("not a valid ID")
	}

	return nil
}

// Messages

type loansLoadedMsg struct {
	loans []*loan.Loan
	err   error
}

type scheduleLoadedMsg struct {
	insts []*loan.Installment
	err   error
}

type loanActionMsg struct {
	loan *loan.Loan
	text string
	err  error
}

func (m LoansModel) loadLoansCmd() tea.Cmd {
	filter := loan.ListFilter{Status: loanStatusFilters[m.filterIdx]}

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		loans, err := m.loanService.List(ctx, filter)

		return loansLoadedMsg{loans: loans, err: err}
	}
}

func (m LoansModel) loadScheduleCmd(l *loan.Loan) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		insts, err := m.loanService.Schedule(ctx, l.ID)

		return scheduleLoadedMsg{insts: insts, err: err}
	}
}

func (m LoansModel) activateCmd(id uuid.UUID) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		l, err := m.loanService.Disburse(ctx, id, Actor)
		if err != nil {
			return loanActionMsg{err: err}
		}

		return loanActionMsg{text: okStyle(fmt.Sprintf("Loan %s disbursed", shortID(l.ID)))}
	}
}

func (m LoansModel) defaultCmd(id uuid.UUID) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		l, err := m.loanService.MarkDefaulted(ctx, id, Actor)
		if err != nil {
			return loanActionMsg{err: err}
		}

		return loanActionMsg{text: fmt.Sprintf("Loan %s marked defaulted", shortID(l.ID))}
	}
}

func (m LoansModel) payCmd() tea.Cmd {
	form := *m.pay
	loanID := m.current.ID

	return func() tea.Msg {
		seq, _ := strconv.Atoi(strings.TrimSpace(form.seq))
		amount, _ := parseMoney(form.amount)
		lateFee, _ := parseMoney(form.lateFee)
		date, _ := time.Parse(time.DateOnly, strings.TrimSpace(form.date))

		ctx, cancel := DbCtx()
		defer cancel()

		res, err := m.loanService.RecordPayment(ctx, loan.PaymentParams{
			LoanID:         loanID,
			InstallmentSeq: seq,
			Amount:         amount,
			PaymentDate:    date,
			LateFee:        lateFee,
			Notes:          form.notes,
			CreatedBy:      Actor,
		})
		if err != nil {
			return loanActionMsg{err: err}
		}

		text := fmt.Sprintf("Installment %d paid, outstanding principal %s",
			res.Installment.Seq, FormatMoney(res.Loan.RemainingAmount))
		if res.Payment.Late {
			text += " (late)"
		}

		if res.Closed {
			text += ". Loan closed."
		}

		return loanActionMsg{loan: res.Loan, text: okStyle(text)}
	}
}

func (m LoansModel) createCmd() tea.Cmd {
	form := *m.terms

	return func() tea.Msg {
		principal, _ := parseMoney(form.principal)
		rate, _ := parseMoney(form.rate)
		fee, _ := parseMoney(form.fee)
		tenure, _ := strconv.Atoi(strings.TrimSpace(form.tenure))
		disbursed, _ := time.Parse(time.DateOnly, strings.TrimSpace(form.disbursed))

		ctx, cancel := DbCtx()
		defer cancel()

		l, insts, err := m.loanService.Create(ctx, loan.CreateParams{
			ClientID:      uuid.MustParse(strings.TrimSpace(form.clientID)),
			LoanTypeID:    uuid.MustParse(strings.TrimSpace(form.loanTypeID)),
			Mode:          emi.Mode(form.mode),
			Principal:     principal,
			InterestRate:  rate,
			TenureMonths:  tenure,
			DisburseDate:  disbursed,
			ProcessingFee: fee,
			Notes:         form.notes,
			CreatedBy:     Actor,
		})
		if err != nil {
			return loanActionMsg{err: err}
		}

		return loanActionMsg{text: okStyle(fmt.Sprintf(
			"Loan %s created with %d installments of %s", shortID(l.ID), len(insts), FormatMoney(l.EMI),
		))}
	}
}

func (m LoansModel) exportCmd() tea.Cmd {
	filter := loan.ListFilter{Status: loanStatusFilters[m.filterIdx]}

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		items, err := m.exportService.Export(ctx, filter, m.exportDir)
		if err != nil {
			return loanActionMsg{err: err}
		}

		return loanActionMsg{text: okStyle(fmt.Sprintf("Exported %d statements to %s", len(items), m.exportDir)) +
			"\n" + export.Summary(items)}
	}
}
