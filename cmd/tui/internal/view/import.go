package view

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/notcool100/financial-management-system/internal/importer"
)

const importTimeout = 2 * time.Minute

type importState int

const (
	importStateFilePick importState = iota
	importStateParsing
	importStatePreview
	importStateApplying
	importStateResult
)

// ImportModel loads a repayment sheet, previews the parsed rows and applies
// them as payments.
type ImportModel struct {
	CommonModel
	importService *importer.Service

	state      importState
	filePicker filepicker.Model
	preview    table.Model
	path       string
	batch      *importer.Batch
	outcomes   []importer.Outcome
	summary    importer.Summary

	status string
	err    error
}

func NewImportModel(impSvc *importer.Service) ImportModel {
	fp := filepicker.New()
	fp.CurrentDirectory, _ = os.Getwd()
	fp.AllowedTypes = []string{".csv", ".txt"}
	fp.ShowHidden = false
	fp.DirAllowed = false
	fp.FileAllowed = true
	fp.SetHeight(15)

	return ImportModel{
		importService: impSvc,
		filePicker:    fp,
		preview: newTable([]table.Column{
			{Title: "Line", Width: 5},
			{Title: "Loan", Width: 10},
			{Title: "#", Width: 4},
			{Title: "Amount", Width: 12},
			{Title: "Date", Width: 12},
			{Title: "Late fee", Width: 10},
			{Title: "Notes", Width: 24},
		}, 12),
	}
}

func (m ImportModel) Title() string { return "Import Repayments" }

func (m ImportModel) ShortHelp() string {
	switch m.state {
	case importStatePreview:
		return "Enter: apply payments | Esc: cancel"
	case importStateResult:
		return "Esc: import another file"
	}

	return "Esc: back | Enter: select"
}

func (m ImportModel) Init() tea.Cmd {
	return m.filePicker.Init()
}

func (m ImportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEsc:
			return m.handleEsc()
		case tea.KeyEnter:
			if m.state == importStatePreview {
				m.state = importStateApplying
				m.status = fmt.Sprintf("Applying %d payments...", len(m.batch.Rows))

				return m, m.applyCmd()
			}
		}

	case parsedMsg:
		if msg.err != nil {
			m.state = importStateResult
			m.err = msg.err
			m.status = fmt.Sprintf("Error: %v", msg.err)

			return m, nil
		}

		m.batch = msg.batch
		m.refreshPreview()
		m.state = importStatePreview

		return m, nil

	case appliedMsg:
		m.state = importStateResult
		m.outcomes = msg.outcomes
		m.summary = msg.summary
		m.status = fmt.Sprintf("Applied %d, failed %d, skipped %d.",
			msg.summary.Applied, msg.summary.Failed, msg.summary.Skipped)

		return m, nil
	}

	if m.state == importStatePreview {
		var cmd tea.Cmd
		m.preview, cmd = m.preview.Update(msg)

		return m, cmd
	}

	if m.state != importStateFilePick {
		return m, nil
	}

	var cmd tea.Cmd
	m.filePicker, cmd = m.filePicker.Update(msg)

	if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
		m.state = importStateParsing
		m.path = path
		m.status = fmt.Sprintf("Reading %s...", path)

		return m, m.parseCmd(path)
	}

	return m, cmd
}

func (m ImportModel) handleEsc() (tea.Model, tea.Cmd) {
	switch m.state {
	case importStatePreview, importStateResult:
		m.state = importStateFilePick
		m.batch = nil
		m.outcomes = nil
		m.err = nil
		m.status = ""

		return m, m.filePicker.Init()
	case importStateParsing, importStateApplying:
		return m, nil
	}

	return m, Back
}

func (m ImportModel) View() string {
	switch m.state {
	case importStateFilePick:
		return lipgloss.NewStyle().Padding(1).Render(
			"Select a repayment sheet (CSV):\n\n" + m.filePicker.View(),
		)
	case importStateParsing, importStateApplying:
		return lipgloss.NewStyle().Padding(2).Render(m.status)
	case importStatePreview:
		return m.viewPreview()
	case importStateResult:
		return m.viewResult()
	}

	return ""
}

func (m ImportModel) viewPreview() string {
	header := fmt.Sprintf("%s  [%s]  %d rows ready, %d rejected",
		m.path, activeStyle(m.batch.Format), len(m.batch.Rows), len(m.batch.Errors))

	parts := []string{
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		boxed(m.preview.View()),
	}

	if len(m.batch.Errors) > 0 {
		parts = append(parts, "", errorStyle("Rejected rows:"), rowErrors(m.batch.Errors))
	}

	return lipgloss.NewStyle().Padding(1).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m ImportModel) viewResult() string {
	style := lipgloss.NewStyle().Padding(2)
	if m.err != nil {
		return style.Render(errorStyle(m.status) + "\n\n(Esc to go back)")
	}

	var b strings.Builder

	b.WriteString(okStyle(m.status))

	for _, o := range m.outcomes {
		if o.Err == nil {
			continue
		}

		fmt.Fprintf(&b, "\n%s", errorStyle(fmt.Sprintf("line %d: %v", o.Line, o.Err)))
	}

	if m.summary.Skipped > 0 {
		b.WriteString("\n\nSkipped rows were cancelled before they ran.")
	}

	b.WriteString("\n\n(Esc to go back)")

	return style.Render(b.String())
}

func (m *ImportModel) refreshPreview() {
	rows := make([]table.Row, 0, len(m.batch.Rows))
	for _, r := range m.batch.Rows {
		rows = append(rows, table.Row{
			strconv.Itoa(r.Line),
			shortID(r.Params.LoanID),
			strconv.Itoa(r.Params.InstallmentSeq),
			FormatMoney(r.Params.Amount),
			FormatDate(r.Params.PaymentDate),
			FormatMoney(r.Params.LateFee),
			r.Params.Notes,
		})
	}

	m.preview.SetRows(rows)
}

func rowErrors(errs []*importer.RowError) string {
	lines := make([]string, 0, len(errs))
	for _, e := range errs {
		lines = append(lines, e.Error())
	}

	return strings.Join(lines, "\n")
}

// Messages

type parsedMsg struct {
	batch *importer.Batch
	err   error
}

type appliedMsg struct {
	outcomes []importer.Outcome
	summary  importer.Summary
}

func (m ImportModel) parseCmd(path string) tea.Cmd {
	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return parsedMsg{err: err}
		}
		defer f.Close()

		batch, err := m.importService.Parse(f)
		if err != nil {
			return parsedMsg{err: err}
		}

		if len(batch.Rows) == 0 && len(batch.Errors) == 0 {
			return parsedMsg{err: errors.New("the file holds no repayment rows")}
		}

		return parsedMsg{batch: batch}
	}
}

func (m ImportModel) applyCmd() tea.Cmd {
	batch := m.batch

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), importTimeout)
		defer cancel()

		outcomes, summary := m.importService.Apply(ctx, batch, Actor)

		return appliedMsg{outcomes: outcomes, summary: summary}
	}
}
