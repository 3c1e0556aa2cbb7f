package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_Paired(t *testing.T) {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	ups := map[string]bool{}
	downs := map[string]bool{}

	for _, name := range names {
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected migration file %s", name)
		}
	}

	assert.Equal(t, ups, downs)
}

func TestMigrations_DefineCoreTables(t *testing.T) {
	var schema strings.Builder

	err := fs.WalkDir(migrations, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".up.sql") {
			return err
		}

		b, err := fs.ReadFile(migrations, path)
		if err != nil {
			return err
		}

		schema.Write(b)

		return nil
	})
	require.NoError(t, err)

	for _, table := range []string{
		"accounts", "journal_entries", "journal_entry_details",
		"loans", "loan_installments", "loan_payments", "loan_transactions",
	} {
		assert.Contains(t, schema.String(), "CREATE TABLE "+table+" (")
	}
}
