package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpSection(t *testing.T) {
	sql := "-- +goose Up\nCREATE TABLE a (id INT);\n-- +goose Down\nDROP TABLE a;\n"
	assert.Equal(t, "CREATE TABLE a (id INT);", upSection(sql))
	assert.Equal(t, "SELECT 1;", upSection("SELECT 1;"))
}

func TestEmbeddedMigrations(t *testing.T) {
	raw, err := migrations.ReadFile("migrations/00001_ledger.sql")
	require.NoError(t, err)

	up := upSection(string(raw))
	for _, table := range []string{"inventory", "orders", "order_items", "obligations", "payments", "transfers"} {
		assert.Contains(t, up, "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
	assert.NotContains(t, up, "DROP TABLE")
}
