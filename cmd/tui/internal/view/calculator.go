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

	"github.com/notcool100/financial-management-system/internal/amortization"
	"github.com/notcool100/financial-management-system/internal/emi"
	"github.com/notcool100/financial-management-system/internal/loan"
)

type calcState int

const (
	calcStateForm calcState = iota
	calcStateResult
)

// CalculatorModel previews the installment and schedule for a set of loan
// terms without persisting anything.
type CalculatorModel struct {
	CommonModel
	loanService *loan.Service

	state    calcState
	form     *huh.Form
	fields   *calcForm
	schedule table.Model
	result   emi.Result
	rows     []amortization.Row
	err      error
}

type calcForm struct {
	principal string
	rate      string
	tenure    string
	mode      string
	disbursed string
}

func NewCalculatorModel(loanSvc *loan.Service) CalculatorModel {
	m := CalculatorModel{
		loanService: loanSvc,
		fields: &calcForm{
			mode:      string(emi.ModeDiminishing),
			disbursed: FormatDate(time.Now()),
		},
		schedule: newTable([]table.Column{
			{Title: "#", Width: 4},
			{Title: "Due", Width: 12},
			{Title: "EMI", Width: 10},
			{Title: "Principal", Width: 10},
			{Title: "Interest", Width: 10},
			{Title: "Remaining", Width: 12},
		}, 15),
	}
	m.form = m.newForm()

	return m
}

func (m CalculatorModel) newForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Principal").Value(&m.fields.principal).Validate(validMoney),
			huh.NewInput().Title("Annual rate (%)").Value(&m.fields.rate).Validate(validMoney),
			huh.NewInput().Title("Tenure (months)").Value(&m.fields.tenure).Validate(validSeq),
			huh.NewSelect[string]().
				Title("Interest mode").
				Options(
					huh.NewOption("Diminishing balance", string(emi.ModeDiminishing)),
					huh.NewOption("Flat", string(emi.ModeFlat)),
				).
				Value(&m.fields.mode),
			huh.NewInput().Title("Disburse date").Value(&m.fields.disbursed).Validate(validDate),
		),
	).WithWidth(45).WithShowHelp(false)
}

func (m CalculatorModel) Title() string { return "EMI Calculator" }

func (m CalculatorModel) ShortHelp() string {
	if m.state == calcStateResult {
		return "Esc: edit terms"
	}

	return "Navigate form | Esc: back"
}

func (m CalculatorModel) Init() tea.Cmd {
	return m.form.Init()
}

func (m CalculatorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		if m.state == calcStateForm {
			return m, Back
		}

		m.state = calcStateForm
		m.err = nil
		m.form = m.newForm()

		return m, m.form.Init()
	}

	if m.state == calcStateResult {
		var cmd tea.Cmd
		m.schedule, cmd = m.schedule.Update(msg)

		return m, cmd
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	m.calculate()
	m.state = calcStateResult

	return m, nil
}

func (m *CalculatorModel) calculate() {
	principal, _ := parseMoney(m.fields.principal)
	rate, _ := parseMoney(m.fields.rate)
	tenure, _ := strconv.Atoi(strings.TrimSpace(m.fields.tenure))
	disbursed, _ := time.Parse(time.DateOnly, strings.TrimSpace(m.fields.disbursed))

	terms := emi.Params{
		Principal:    principal,
		Rate:         rate,
		TenureMonths: tenure,
		Mode:         emi.Mode(m.fields.mode),
	}

	m.result, m.err = m.loanService.Calculate(terms)
	if m.err != nil {
		return
	}

	m.rows, m.err = amortization.Build(terms, disbursed)
	if m.err != nil {
		return
	}

	rows := make([]table.Row, 0, len(m.rows))
	for _, r := range m.rows {
		rows = append(rows, table.Row{
			strconv.Itoa(r.Seq),
			FormatDate(r.DueDate),
			FormatMoney(r.EMI),
			FormatMoney(r.Principal),
			FormatMoney(r.Interest),
			FormatMoney(r.RemainingPrincipal),
		})
	}

	m.schedule.SetRows(rows)
}

func (m CalculatorModel) View() string {
	style := lipgloss.NewStyle().Padding(1)

	if m.state == calcStateForm {
		return style.Render("Loan Terms\n\n" + m.form.View())
	}

	if m.err != nil {
		return style.Render(errorStyle(fmt.Sprintf("Error: %v", m.err)) + "\n\n(Esc to edit terms)")
	}

	summary := fmt.Sprintf(
		"EMI %s   Total interest %s   Total payable %s",
		activeStyle(FormatMoney(m.result.EMI)),
		FormatMoney(m.result.TotalInterest),
		FormatMoney(m.result.TotalAmount),
	)

	return style.Render(lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(summary),
		boxed(m.schedule.View()),
	))
}
