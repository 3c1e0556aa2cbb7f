package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/notcool100/financial-management-system/internal/config"
	"github.com/notcool100/financial-management-system/internal/http/auth"
)

const usage = "usage: token USER_ID [TTL]"

const defaultTTL = 24 * time.Hour

var errNoSecret = errors.New("JWT_SECRET is not set; the API accepts every request without a token")

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := run(os.Args[1:], cfg.Auth.JWTSecret, os.Stdout); err != nil {
		slog.Error("failed to issue token", "error", err)
		os.Exit(1)
	}
}

func run(args []string, secret string, out io.Writer) error {
	if len(args) == 0 || len(args) > 2 || args[0] == "" {
		return errors.New(usage)
	}

	if secret == "" {
		return errNoSecret
	}

	ttl := defaultTTL
	if len(args) == 2 {
		d, err := time.ParseDuration(args[1])
		if err != nil {
			return fmt.Errorf("invalid TTL %q: %w", args[1], err)
		}

		if d <= 0 {
			return fmt.Errorf("TTL must be positive, got %s", d)
		}

		ttl = d
	}

	token, err := auth.IssueToken(secret, args[0], ttl)
	if err != nil {
		return fmt.Errorf("signing token: %w", err)
	}

	_, err = fmt.Fprintln(out, token)

	return err
}
