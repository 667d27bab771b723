package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tradeledger/internal/core/id"
	"tradeledger/internal/core/types"
)

type LineRow struct {
	ID       id.ID          `db:"id"`
	Quantity types.Quantity `db:"quantity"`
	Note     string         `db:"note"`
	Children []string       `db:"-"`
	skipped  bool
}

type auditedRow struct {
	LineRow
	Version int `db:"version"`
}

func TestExtractDBColumns(t *testing.T) {
	assert.Equal(t, []string{"id", "quantity", "note", "version"}, ExtractDBColumns[auditedRow]())
	assert.Equal(t, []string{"id", "quantity", "note"}, ExtractDBColumns[*LineRow]())
}

func TestStructToMap(t *testing.T) {
	row := auditedRow{
		LineRow: LineRow{ID: id.New(), Quantity: types.NewQuantity(3), Note: "n", skipped: true},
		Version: 7,
	}

	m := StructToMap(&row)

	assert.Len(t, m, 4)
	assert.Equal(t, row.ID, m["id"])
	assert.Equal(t, types.NewQuantity(3), m["quantity"])
	assert.Equal(t, 7, m["version"])
	assert.NotContains(t, m, "children")
}
