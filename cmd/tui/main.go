package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/notcool100/financial-management-system/cmd/tui/internal/view"
	"github.com/notcool100/financial-management-system/internal/app"
	"github.com/notcool100/financial-management-system/internal/config"
	"github.com/notcool100/financial-management-system/internal/logging"
)

type model struct {
	services *app.App

	currentView View
	screen      view.View
}

type View int

const (
	ViewMenu       View = 0
	ViewLoans      View = 1
	ViewCalculator View = 2
	ViewLedger     View = 3
	ViewImport     View = 4
)

func initialModel(services *app.App) model {
	return model{
		services:    services,
		currentView: ViewMenu,
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) open(v View) (tea.Model, tea.Cmd) {
	switch v {
	case ViewLoans:
		m.screen = view.NewLoansModel(m.services.Loans, m.services.Statements, m.services.ExportDir)
	case ViewCalculator:
		m.screen = view.NewCalculatorModel(m.services.Loans)
	case ViewLedger:
		m.screen = view.NewLedgerModel(m.services.Journal)
	case ViewImport:
		m.screen = view.NewImportModel(m.services.Importer)
	default:
		return m, nil
	}

	m.currentView = v

	return m, m.screen.Init()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		if m.currentView == ViewMenu {
			switch msg.String() {
			case "q":
				return m, tea.Quit
			case "1":
				return m.open(ViewLoans)
			case "2":
				return m.open(ViewCalculator)
			case "3":
				return m.open(ViewLedger)
			case "4":
				return m.open(ViewImport)
			}

			return m, nil
		}
	case view.BackMsg:
		m.currentView = ViewMenu
		m.screen = nil

		return m, nil
	}

	if m.screen == nil {
		return m, nil
	}

	newModel, cmd := m.screen.Update(msg)
	if v, ok := newModel.(view.View); ok {
		m.screen = v
	}

	return m, cmd
}

func (m model) View() string {
	if m.currentView == ViewMenu || m.screen == nil {
		return lipgloss.NewStyle().Padding(2).Render(
			"Microfinance Ledger\n\n" +
				"1. Loans\n" +
				"2. EMI Calculator\n" +
				"3. Ledger & Trial Balance\n" +
				"4. Import Repayments\n\n" +
				"q. Quit",
		)
	}

	title := lipgloss.NewStyle().Bold(true).PaddingLeft(1).Render(m.screen.Title())
	help := lipgloss.NewStyle().Faint(true).PaddingLeft(1).Render(m.screen.ShortHelp())

	return lipgloss.JoinVertical(lipgloss.Left, title, m.screen.View(), help)
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// The terminal belongs to the dashboard, so logs go to LOG_FILE or nowhere.
	var logOut io.Writer = io.Discard
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			slog.Error("failed to open log file", "error", err)
			os.Exit(1)
		}
		defer f.Close()

		logOut = f
	}

	if err := logging.Setup(logOut, cfg.Log.Level, cfg.Log.Format); err != nil {
		slog.Error("failed to set up logging", "error", err)
		os.Exit(1)
	}

	services, err := app.New(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to start services", "error", err)
		os.Exit(1)
	}
	defer services.Close()

	p := tea.NewProgram(initialModel(services), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		slog.Error("failed to run TUI", "error", err)
		os.Exit(1)
	}
}
