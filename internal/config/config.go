package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/notcool100/financial-management-system/internal/loan"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"Microfinance Ledger"`
		Port int    `envconfig:"PORT" default:"8080"`
	}

	DB struct {
		Host        string `envconfig:"DB_HOST" default:"localhost"`
		Port        int    `envconfig:"DB_PORT" default:"5432"`
		User        string `envconfig:"DB_USER" default:"postgres"`
		Password    string `envconfig:"DB_PASSWORD" default:""`
		Name        string `envconfig:"DB_NAME" default:"microfinance"`
		AutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"false"`
	}

	Store struct {
		Driver string `envconfig:"STORE_DRIVER" default:"postgres"`
	}

	Server struct {
		Timeout time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
	}

	Log struct {
		Level  string `envconfig:"LOG_LEVEL" default:"info"`
		Format string `envconfig:"LOG_FORMAT" default:"text"`
		File   string `envconfig:"LOG_FILE"`
	}

	Auth struct {
		// Empty disables authentication; requests then act as "system".
		JWTSecret string `envconfig:"JWT_SECRET"`
	}

	CORS struct {
		AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	}

	Notify struct {
		QueueSize int           `envconfig:"NOTIFY_QUEUE_SIZE" default:"64"`
		Timeout   time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"5s"`
	}

	Export struct {
		Dir string `envconfig:"EXPORT_DIR" default:"statements"`
	}

	Ledger struct {
		CashAccount           string `envconfig:"LEDGER_CASH_ACCOUNT" default:"1000"`
		LoanPortfolioAccount  string `envconfig:"LEDGER_LOAN_PORTFOLIO_ACCOUNT" default:"1200"`
		InterestIncomeAccount string `envconfig:"LEDGER_INTEREST_INCOME_ACCOUNT" default:"4000"`
		FeeIncomeAccount      string `envconfig:"LEDGER_FEE_INCOME_ACCOUNT" default:"4100"`
		PenaltyIncomeAccount  string `envconfig:"LEDGER_PENALTY_INCOME_ACCOUNT" default:"4200"`
		ClientAdvanceAccount  string `envconfig:"LEDGER_CLIENT_ADVANCE_ACCOUNT" default:"2100"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

// LoanAccounts returns the account codes loan events post to.
func (c *Config) LoanAccounts() loan.Accounts {
	return loan.Accounts{
		Cash:           c.Ledger.CashAccount,
		Portfolio:      c.Ledger.LoanPortfolioAccount,
		InterestIncome: c.Ledger.InterestIncomeAccount,
		FeeIncome:      c.Ledger.FeeIncomeAccount,
		PenaltyIncome:  c.Ledger.PenaltyIncomeAccount,
		ClientAdvance:  c.Ledger.ClientAdvanceAccount,
	}
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	switch cfg.Store.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.Store.Driver)
	}

	if cfg.Notify.QueueSize < 0 {
		return nil, fmt.Errorf("NOTIFY_QUEUE_SIZE must not be negative, got %d", cfg.Notify.QueueSize)
	}

	return &cfg, nil
}
